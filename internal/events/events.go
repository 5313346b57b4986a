package events

import (
	"time"

	"github.com/fjod/go_bookstore/internal/domain"
)

const (
	TopicOrders      = "bookstore.orders"
	TopicFulfillment = "bookstore.fulfillment"

	EventOrderPlaced = "order.placed"

	headerEventType = "event_type"
)

// OrderPlaced is published once per created order.
type OrderPlaced struct {
	EventID       string               `json:"event_id"`
	OrderID       string               `json:"order_id"`
	OrderNumber   string               `json:"order_number"`
	UserID        string               `json:"user_id"`
	Items         []domain.OrderItem   `json:"items"`
	TotalAmount   domain.Money         `json:"total_amount"`
	PaymentMethod domain.PaymentMethod `json:"payment_method"`
	Status        domain.OrderStatus   `json:"status"`
	PlacedAt      time.Time            `json:"placed_at"`
}

// FulfillmentUpdate is produced by the warehouse integration.
type FulfillmentUpdate struct {
	OrderID        string             `json:"order_id"`
	Status         domain.OrderStatus `json:"status"`
	TrackingNumber string             `json:"tracking_number,omitempty"`
}
