package events

import (
	"context"
	"encoding/json"

	"github.com/fjod/go_bookstore/internal/domain"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const cartClearerGroup = "bookstore-cart-clearer"

type CartClearService interface {
	ClearOrdered(ctx context.Context, userID, orderID string, items []domain.OrderItem) error
}

// CartClearer removes ordered lines from the cart when an order is placed.
// It backs up the in-request clear, which is best effort.
type CartClearer struct {
	*consumer
	carts CartClearService
}

func NewCartClearer(carts CartClearService, log *zap.Logger, brokers ...string) *CartClearer {
	return newCartClearer(carts, newReader(TopicOrders, cartClearerGroup, brokers), log)
}

func newCartClearer(carts CartClearService, reader messageReader, log *zap.Logger) *CartClearer {
	c := &CartClearer{carts: carts}
	c.consumer = &consumer{name: "cart-clearer", reader: reader, handle: c.clearCart, log: log}
	return c
}

func (c *CartClearer) clearCart(ctx context.Context, m kafka.Message) error {
	if t := headerValue(m, headerEventType); t != "" && t != EventOrderPlaced {
		return nil
	}

	var event OrderPlaced
	if err := json.Unmarshal(m.Value, &event); err != nil {
		return domain.Errorf(domain.ErrInvalidArgument, "malformed order event: %v", err)
	}
	if event.UserID == "" || event.OrderID == "" {
		return domain.Errorf(domain.ErrInvalidArgument, "order event %s missing user or order", event.EventID)
	}

	if err := c.carts.ClearOrdered(ctx, event.UserID, event.OrderID, event.Items); err != nil {
		return err
	}
	c.log.Debug("cart cleared for order",
		zap.String("order_number", event.OrderNumber),
		zap.String("user_id", event.UserID))
	return nil
}
