package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_bookstore/internal/domain"
	"github.com/fjod/go_bookstore/internal/service"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type OrderService interface {
	ListOrders(ctx context.Context, userID string) ([]*domain.Order, error)
	GetOrder(ctx context.Context, userID, orderID string) (*domain.Order, error)
}

type CheckoutService interface {
	PlaceOrder(ctx context.Context, req service.PlaceOrderRequest) (*domain.Order, error)
	CreatePaymentSession(ctx context.Context, userID string) (*domain.PaymentSession, error)
	HandlePaymentNotification(ctx context.Context, payload []byte, signature string) error
}

const idempotencyKeyHeader = "Idempotency-Key"

type OrdersHandler struct {
	responder
	orders   OrderService
	checkout CheckoutService
	books    bookJoiner
	timeout  time.Duration
}

func NewOrdersHandler(orders OrderService, checkout CheckoutService, books BookLookup, timeout time.Duration, log *zap.Logger) *OrdersHandler {
	return &OrdersHandler{
		responder: responder{log: log},
		orders:    orders,
		checkout:  checkout,
		books:     bookJoiner{books: books, log: log},
		timeout:   timeout,
	}
}

// PlaceOrderRequestDTO may also carry the client's items; the order is always
// built from the stored cart, so they are ignored.
type PlaceOrderRequestDTO struct {
	ShippingAddress *domain.Address      `json:"shippingAddress,omitempty"`
	PaymentMethod   domain.PaymentMethod `json:"paymentMethod,omitempty"`
	TotalAmount     *domain.Money        `json:"totalAmount,omitempty"`
	CheckoutKey     string               `json:"checkoutKey,omitempty"`
}

type PlaceOrderResponseDTO struct {
	ID          string       `json:"id"`
	OrderNumber string       `json:"orderNumber"`
	Amount      domain.Money `json:"amount"`
}

// GET /api/orders
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orders, err := h.orders.ListOrders(ctx, getUserIDFromContext(r.Context()))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, h.books.orders(ctx, orders))
}

// GET /api/orders/{id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	order, err := h.orders.GetOrder(ctx, getUserIDFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, h.books.orders(ctx, []*domain.Order{order})[0])
}

// POST /api/orders
func (h *OrdersHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req PlaceOrderRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	key := r.Header.Get(idempotencyKeyHeader)
	if key == "" {
		key = req.CheckoutKey
	}

	order, err := h.checkout.PlaceOrder(ctx, service.PlaceOrderRequest{
		UserID:          getUserIDFromContext(r.Context()),
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		CheckoutKey:     key,
		ExpectedTotal:   req.TotalAmount,
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, PlaceOrderResponseDTO{
		ID:          order.ID,
		OrderNumber: order.OrderNumber,
		Amount:      order.TotalAmount,
	})
}
