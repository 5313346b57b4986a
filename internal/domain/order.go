package domain

import (
	"time"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered, OrderStatusCancelled},
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// CanTransitionTo reports whether the status may move forward to next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// String representation (for logging)
func (s OrderStatus) String() string {
	return string(s)
}

type PaymentMethod string

const (
	PaymentMethodCreditCard     PaymentMethod = "credit_card"
	PaymentMethodDebitCard      PaymentMethod = "debit_card"
	PaymentMethodPayPal         PaymentMethod = "paypal"
	PaymentMethodCashOnDelivery PaymentMethod = "cash_on_delivery"
	PaymentMethodStripe         PaymentMethod = "stripe"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCreditCard, PaymentMethodDebitCard, PaymentMethodPayPal,
		PaymentMethodCashOnDelivery, PaymentMethodStripe:
		return true
	}
	return false
}

// ConfirmedExternally is true for methods whose order waits on a provider
// notification before it is processed.
func (m PaymentMethod) ConfirmedExternally() bool {
	return m == PaymentMethodStripe
}

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

type PaymentInfo struct {
	Method    PaymentMethod `bson:"method" json:"method"`
	Status    PaymentStatus `bson:"status" json:"status"`
	SessionID string        `bson:"session_id,omitempty" json:"sessionId,omitempty"`
	PaidAt    *time.Time    `bson:"paid_at,omitempty" json:"paidAt,omitempty"`
}

type OrderItem struct {
	CatalogItemID string `bson:"catalog_item_id" json:"catalogItemId"`
	Quantity      int    `bson:"quantity" json:"quantity"`
	Price         Money  `bson:"price" json:"price"`
}

// Order items and total are fixed at creation. Only status, tracking number,
// payment state and timestamps change afterwards.
type Order struct {
	ID              string      `bson:"_id" json:"id"`
	UserID          string      `bson:"user_id" json:"userId"`
	OrderNumber     string      `bson:"order_number" json:"orderNumber"`
	CheckoutKey     string      `bson:"checkout_key,omitempty" json:"checkoutKey,omitempty"`
	Items           []OrderItem `bson:"items" json:"items"`
	TotalAmount     Money       `bson:"total_amount" json:"totalAmount"`
	ShippingAddress Address     `bson:"shipping_address" json:"shippingAddress"`
	Payment         PaymentInfo `bson:"payment" json:"payment"`
	Status          OrderStatus `bson:"status" json:"status"`
	TrackingNumber  string      `bson:"tracking_number,omitempty" json:"trackingNumber,omitempty"`
	CreatedAt       time.Time   `bson:"created_at" json:"createdAt"`
	UpdatedAt       time.Time   `bson:"updated_at" json:"updatedAt"`
	ShippedAt       *time.Time  `bson:"shipped_at,omitempty" json:"shippedAt,omitempty"`
	DeliveredAt     *time.Time  `bson:"delivered_at,omitempty" json:"deliveredAt,omitempty"`
	Version         int64       `bson:"version" json:"-"`
}

// ItemsFromCart copies the cart lines so the order never shares backing
// storage with the cart.
func ItemsFromCart(c *Cart) []OrderItem {
	items := make([]OrderItem, 0, len(c.Items))
	for _, line := range c.Items {
		items = append(items, OrderItem{
			CatalogItemID: line.CatalogItemID,
			Quantity:      line.Quantity,
			Price:         line.Price,
		})
	}
	return items
}

// Advance moves the order to next, stamping shipped/delivered times. The
// tracking number is kept when empty.
func (o *Order) Advance(next OrderStatus, trackingNumber string, now time.Time) error {
	if !o.Status.CanTransitionTo(next) {
		return Errorf(ErrInvalidState, "illegal transition of order status from %s to %s", o.Status, next)
	}
	o.Status = next
	o.UpdatedAt = now
	if trackingNumber != "" {
		o.TrackingNumber = trackingNumber
	}
	switch next {
	case OrderStatusShipped:
		o.ShippedAt = &now
	case OrderStatusDelivered:
		o.DeliveredAt = &now
	}
	return nil
}

// MarkPaid records a confirmed provider payment. A pending order moves to
// processing; any later status is left alone.
func (o *Order) MarkPaid(sessionID string, now time.Time) {
	o.Payment.Status = PaymentStatusCompleted
	if sessionID != "" {
		o.Payment.SessionID = sessionID
	}
	o.Payment.PaidAt = &now
	o.UpdatedAt = now
	if o.Status == OrderStatusPending {
		o.Status = OrderStatusProcessing
	}
}
