package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fjod/go_bookstore/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	orderNumberIndex = "orders_order_number_unique"
	checkoutKeyIndex = "orders_checkout_key_unique"
)

type orderRepository struct {
	collection *mongo.Collection
}

func NewOrderRepository(db *mongo.Database) OrderRepository {
	return &orderRepository{
		collection: db.Collection("orders"),
	}
}

func (r *orderRepository) CreateOrder(ctx context.Context, order *domain.Order) error {
	_, err := r.collection.InsertOne(ctx, order)
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		switch {
		case strings.Contains(err.Error(), checkoutKeyIndex):
			return ErrDuplicateCheckout
		case strings.Contains(err.Error(), orderNumberIndex):
			return ErrDuplicateOrderNumber
		}
	}
	return fmt.Errorf("failed to insert order: %w", err)
}

func (r *orderRepository) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *orderRepository) GetOrderByCheckoutKey(ctx context.Context, checkoutKey string) (*domain.Order, error) {
	return r.findOne(ctx, bson.M{"checkout_key": checkoutKey})
}

func (r *orderRepository) findOne(ctx context.Context, filter bson.M) (*domain.Order, error) {
	var order domain.Order
	if err := r.collection.FindOne(ctx, filter).Decode(&order); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return &order, nil
}

// ListOrdersByUserID returns the account's orders newest first.
func (r *orderRepository) ListOrdersByUserID(ctx context.Context, userID string) ([]*domain.Order, error) {
	opts := options.Find().SetSort(bson.D{
		{Key: "created_at", Value: -1},
		{Key: "_id", Value: -1},
	})

	cursor, err := r.collection.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer cursor.Close(ctx)

	orders := make([]*domain.Order, 0)
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, fmt.Errorf("failed to decode orders: %w", err)
	}
	return orders, nil
}

func (r *orderRepository) UpdateOrderState(ctx context.Context, order *domain.Order) error {
	filter := bson.M{"_id": order.ID, "version": order.Version}
	update := bson.M{
		"$set": bson.M{
			"status":          order.Status,
			"payment":         order.Payment,
			"tracking_number": order.TrackingNumber,
			"updated_at":      order.UpdatedAt,
			"shipped_at":      order.ShippedAt,
			"delivered_at":    order.DeliveredAt,
		},
		"$inc": bson.M{"version": 1},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	if result.MatchedCount == 0 {
		if _, err := r.GetOrder(ctx, order.ID); err != nil {
			return err
		}
		return ErrVersionConflict
	}
	order.Version++
	return nil
}
