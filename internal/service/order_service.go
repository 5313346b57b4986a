package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_bookstore/internal/domain"
	"github.com/fjod/go_bookstore/internal/repository"
	"go.uber.org/zap"
)

type OrderService struct {
	repo repository.OrderRepository
	log  *zap.Logger
	now  func() time.Time
}

func NewOrderService(repo repository.OrderRepository, log *zap.Logger) *OrderService {
	return &OrderService{repo: repo, log: log, now: utcNow}
}

// ListOrders returns the account's orders, newest first.
func (s *OrderService) ListOrders(ctx context.Context, userID string) ([]*domain.Order, error) {
	return s.repo.ListOrdersByUserID(ctx, userID)
}

// GetOrder hides orders owned by other accounts behind NotFound.
func (s *OrderService) GetOrder(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if errors.Is(err, repository.ErrOrderNotFound) || (err == nil && order.UserID != userID) {
		return nil, domain.Errorf(domain.ErrNotFound, "order %s not found", orderID)
	}
	if err != nil {
		return nil, err
	}
	return order, nil
}

// AdvanceStatus applies a fulfillment transition. The write is conditional on
// the status read, so concurrent transitions cannot skip a state.
func (s *OrderService) AdvanceStatus(ctx context.Context, orderID string, next domain.OrderStatus, trackingNumber string) (*domain.Order, error) {
	if !next.Valid() {
		return nil, domain.Errorf(domain.ErrInvalidArgument, "unknown order status %q", next)
	}

	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		order, err := s.repo.GetOrder(ctx, orderID)
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, domain.Errorf(domain.ErrNotFound, "order %s not found", orderID)
		}
		if err != nil {
			return nil, err
		}

		from := order.Status
		if err := order.Advance(next, trackingNumber, s.now()); err != nil {
			return nil, err
		}

		err = s.repo.UpdateOrderState(ctx, order)
		if err == nil {
			s.log.Info("order status advanced",
				zap.String("order_id", orderID),
				zap.String("from", from.String()),
				zap.String("to", next.String()))
			return order, nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return nil, fmt.Errorf("failed to advance order %s: %w", orderID, err)
		}
	}
	return nil, domain.Errorf(domain.ErrConflict, "order %s was modified concurrently", orderID)
}
