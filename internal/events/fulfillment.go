package events

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/fjod/go_bookstore/internal/domain"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const fulfillmentGroup = "bookstore-fulfillment"

type StatusAdvancer interface {
	AdvanceStatus(ctx context.Context, orderID string, next domain.OrderStatus, trackingNumber string) (*domain.Order, error)
}

// FulfillmentConsumer applies shipping updates to orders.
type FulfillmentConsumer struct {
	*consumer
	orders StatusAdvancer
}

func NewFulfillmentConsumer(orders StatusAdvancer, log *zap.Logger, brokers ...string) *FulfillmentConsumer {
	return newFulfillmentConsumer(orders, newReader(TopicFulfillment, fulfillmentGroup, brokers), log)
}

func newFulfillmentConsumer(orders StatusAdvancer, reader messageReader, log *zap.Logger) *FulfillmentConsumer {
	f := &FulfillmentConsumer{orders: orders}
	f.consumer = &consumer{name: "fulfillment", reader: reader, handle: f.applyUpdate, log: log}
	return f
}

func (f *FulfillmentConsumer) applyUpdate(ctx context.Context, m kafka.Message) error {
	var update FulfillmentUpdate
	if err := json.Unmarshal(m.Value, &update); err != nil {
		return domain.Errorf(domain.ErrInvalidArgument, "malformed fulfillment update: %v", err)
	}
	if update.OrderID == "" {
		return domain.Errorf(domain.ErrInvalidArgument, "fulfillment update missing order id")
	}

	order, err := f.orders.AdvanceStatus(ctx, update.OrderID, update.Status, update.TrackingNumber)
	if errors.Is(err, domain.ErrInvalidState) {
		f.log.Info("fulfillment update rejected",
			zap.String("order_id", update.OrderID),
			zap.String("status", update.Status.String()),
			zap.Error(err))
		return nil
	}
	if err != nil {
		return err
	}

	f.log.Info("order status advanced",
		zap.String("order_number", order.OrderNumber),
		zap.String("status", order.Status.String()))
	return nil
}
