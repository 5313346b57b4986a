package cache

import (
	"context"
	"errors"

	"github.com/fjod/go_bookstore/internal/domain"
)

// CartCache holds read copies of carts. Writes always go to the repository
// and invalidate the cached copy.
type CartCache interface {
	Get(ctx context.Context, userID string) (*domain.Cart, error)
	// Set stores cart unless a newer version has been invalidated since it
	// was read.
	Set(ctx context.Context, userID string, cart *domain.Cart) error
	// Invalidate drops the cached cart and rejects later fills older than
	// version.
	Invalidate(ctx context.Context, userID string, version int64) error
}

var ErrCacheMiss = errors.New("cache miss")

// Noop is used when no Redis address is configured. Every Get misses.
type Noop struct{}

func (Noop) Get(context.Context, string) (*domain.Cart, error) { return nil, ErrCacheMiss }

func (Noop) Set(context.Context, string, *domain.Cart) error { return nil }

func (Noop) Invalidate(context.Context, string, int64) error { return nil }
