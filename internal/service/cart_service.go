package service

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/go_bookstore/internal/cache"
	"github.com/fjod/go_bookstore/internal/domain"
	"github.com/fjod/go_bookstore/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type CartService struct {
	repo      repository.CartRepository
	catalog   repository.CatalogRepository
	cache     cache.CartCache
	log       *zap.Logger
	sfg       singleflight.Group // Prevents cache stampede
	now       func() time.Time
	conflicts Counter
}

type CartOption func(*CartService)

func WithCartClock(now func() time.Time) CartOption {
	return func(s *CartService) { s.now = now }
}

// WithConflictCounter counts compare-and-swap retries.
func WithConflictCounter(c Counter) CartOption {
	return func(s *CartService) { s.conflicts = c }
}

func NewCartService(
	repo repository.CartRepository,
	catalog repository.CatalogRepository,
	cache cache.CartCache,
	log *zap.Logger,
	opts ...CartOption,
) *CartService {
	s := &CartService{
		repo:      repo,
		catalog:   catalog,
		cache:     cache,
		log:       log,
		now:       utcNow,
		conflicts: noopCounter{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetCart returns the account's cart, an empty one if none is stored.
func (s *CartService) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	// Use singleflight to prevent multiple concurrent cache misses for same key
	v, err, _ := s.sfg.Do(userID, func() (interface{}, error) {
		cart, err := s.cache.Get(ctx, userID)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.Warn("cache get failed", zap.String("user_id", userID), zap.Error(err))
		}

		cart, err = s.repo.GetCart(ctx, userID)
		if errors.Is(err, repository.ErrCartNotFound) {
			return domain.NewCart(userID, s.now()), nil
		}
		if err != nil {
			return nil, err
		}

		go func() {
			setCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if errSet := s.cache.Set(setCtx, userID, cart); errSet != nil {
				s.log.Warn("cache set failed", zap.String("user_id", userID), zap.Error(errSet))
			}
		}()

		return cart, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*domain.Cart).Clone(), nil
}

// Snapshot reads the cart straight from the store, bypassing the cache.
func (s *CartService) Snapshot(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := s.repo.GetCart(ctx, userID)
	if errors.Is(err, repository.ErrCartNotFound) {
		return domain.NewCart(userID, s.now()), nil
	}
	return cart, err
}

func (s *CartService) AddItem(ctx context.Context, userID, catalogItemID string, quantity int) (*domain.Cart, error) {
	if quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	item, err := s.catalog.FindByID(ctx, catalogItemID)
	if err != nil {
		return nil, lookupBook(err, catalogItemID)
	}

	return s.mutate(ctx, userID, func(c *domain.Cart) (bool, error) {
		return true, c.Add(*item, quantity, s.now())
	})
}

func (s *CartService) UpdateItem(ctx context.Context, userID, lineItemID string, quantity int) (*domain.Cart, error) {
	if quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	return s.mutate(ctx, userID, func(c *domain.Cart) (bool, error) {
		return true, c.UpdateQuantity(lineItemID, quantity)
	})
}

// RemoveItem is idempotent: removing a missing line returns the cart as is.
func (s *CartService) RemoveItem(ctx context.Context, userID, lineItemID string) (*domain.Cart, error) {
	return s.mutate(ctx, userID, func(c *domain.Cart) (bool, error) {
		return c.Remove(lineItemID), nil
	})
}

func (s *CartService) ClearCart(ctx context.Context, userID string) error {
	_, err := s.mutate(ctx, userID, func(c *domain.Cart) (bool, error) {
		if c.IsEmpty() {
			return false, nil
		}
		c.Clear()
		return true, nil
	})
	return err
}

// ClearOrdered takes the items of order orderID out of the cart. Checkout and
// the order-placed consumer both call it, so it must stay idempotent.
func (s *CartService) ClearOrdered(ctx context.Context, userID, orderID string, items []domain.OrderItem) error {
	_, err := s.mutate(ctx, userID, func(c *domain.Cart) (bool, error) {
		return c.RemoveOrdered(orderID, items), nil
	})
	return err
}

// mutate runs fn against a fresh copy of the stored cart and writes it back
// with compare-and-swap, retrying on concurrent modification. fn reports
// whether it changed anything; unchanged carts are not written.
func (s *CartService) mutate(ctx context.Context, userID string, fn func(*domain.Cart) (bool, error)) (*domain.Cart, error) {
	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		cart, err := s.Snapshot(ctx, userID)
		if err != nil {
			return nil, err
		}

		changed, err := fn(cart)
		if err != nil {
			return nil, err
		}
		if !changed {
			return cart, nil
		}

		cart.UpdatedAt = s.now()
		err = s.repo.SaveCart(ctx, cart)
		if err == nil {
			s.invalidateCache(userID, cart.Version)
			return cart, nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			s.log.Error("cart save failed", zap.String("user_id", userID), zap.Error(err))
			return nil, err
		}

		s.conflicts.Inc()
		s.log.Debug("cart version conflict, retrying",
			zap.String("user_id", userID), zap.Int("attempt", attempt))
	}
	return nil, errCartBusy
}

func (s *CartService) invalidateCache(userID string, version int64) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Invalidate(ctx, userID, version); err != nil {
		s.log.Warn("cache invalidate failed", zap.String("user_id", userID), zap.Error(err))
	}
}
