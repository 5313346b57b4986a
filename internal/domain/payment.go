package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// SessionLine is one priced line sent to the payment provider.
type SessionLine struct {
	Name     string
	Author   string
	ImageURL string
	Price    Money
	Quantity int
}

type PaymentSessionRequest struct {
	UserID        string
	CustomerEmail string
	Currency      string
	Lines         []SessionLine
	SuccessURL    string
	CancelURL     string
	Metadata      map[string]string
}

type PaymentSession struct {
	ID          string `json:"sessionId"`
	RedirectURL string `json:"redirectUrl"`
	OrderNumber string `json:"orderNumber"`
	CheckoutKey string `json:"checkoutKey"`
}

// PaymentNotification is a verified "payment completed" event. It carries
// everything needed to materialize the order without reading the cart.
type PaymentNotification struct {
	EventID     string
	SessionID   string
	UserID      string
	OrderNumber string
	CheckoutKey string
	TotalAmount Money
	Items       []OrderItem
	PaidAt      time.Time
}

// Session metadata keys shared by session creation and notification parsing.
const (
	MetaOrderNumber = "orderNumber"
	MetaCheckoutKey = "checkoutKey"
	MetaUserID      = "userId"
	MetaTotalAmount = "totalAmount"
	MetaOrderItems  = "orderItems"
)

// MaxMetadataValueLength is the provider's limit on one metadata value.
const MaxMetadataValueLength = 500

type metadataItem struct {
	Book     string `json:"book"`
	Quantity int    `json:"quantity"`
	Price    Money  `json:"price"`
}

// EncodeOrderItems renders items for session metadata. ok is false when the
// result would not fit in one metadata value.
func EncodeOrderItems(items []OrderItem) (encoded string, ok bool) {
	out := make([]metadataItem, 0, len(items))
	for _, it := range items {
		out = append(out, metadataItem{Book: it.CatalogItemID, Quantity: it.Quantity, Price: it.Price})
	}
	b, err := json.Marshal(out)
	if err != nil || len(b) > MaxMetadataValueLength {
		return "", false
	}
	return string(b), true
}

func DecodeOrderItems(raw string) ([]OrderItem, error) {
	var in []metadataItem
	if err := json.Unmarshal([]byte(raw), &in); err != nil {
		return nil, fmt.Errorf("decode order items: %w", err)
	}
	items := make([]OrderItem, 0, len(in))
	for _, it := range in {
		if it.Book == "" || it.Quantity <= 0 {
			return nil, fmt.Errorf("decode order items: invalid line %+v", it)
		}
		items = append(items, OrderItem{CatalogItemID: it.Book, Quantity: it.Quantity, Price: it.Price})
	}
	return items, nil
}

func SumItems(items []OrderItem) Money {
	var total Money
	for _, it := range items {
		total += it.Price.Mul(it.Quantity)
	}
	return total
}
