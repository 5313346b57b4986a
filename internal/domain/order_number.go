package domain

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
)

const (
	orderNumberPrefix  = "ORD"
	orderSuffixLength  = 6
	orderNumberCharset = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// GenerateOrderNumber builds ORD-<last 6 digits of unix ms>-<6 random base36>.
// Numbers are not guaranteed unique; the store enforces that.
func GenerateOrderNumber(now time.Time) string {
	var sb strings.Builder
	sb.Grow(orderSuffixLength)
	for range orderSuffixLength {
		sb.WriteByte(orderNumberCharset[rand.IntN(len(orderNumberCharset))])
	}
	return fmt.Sprintf("%s-%06d-%s", orderNumberPrefix, now.UnixMilli()%1_000_000, sb.String())
}
