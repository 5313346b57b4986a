package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/go_bookstore/internal/domain"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type CartService interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	AddItem(ctx context.Context, userID, catalogItemID string, quantity int) (*domain.Cart, error)
	UpdateItem(ctx context.Context, userID, lineItemID string, quantity int) (*domain.Cart, error)
	RemoveItem(ctx context.Context, userID, lineItemID string) (*domain.Cart, error)
	ClearCart(ctx context.Context, userID string) error
}

type CartHandler struct {
	responder
	carts   CartService
	books   bookJoiner
	timeout time.Duration
}

func NewCartHandler(carts CartService, books BookLookup, timeout time.Duration, log *zap.Logger) *CartHandler {
	return &CartHandler{
		responder: responder{log: log},
		carts:     carts,
		books:     bookJoiner{books: books, log: log},
		timeout:   timeout,
	}
}

// catalogRef is a catalog item reference sent either as a document id string
// or as a numeric catalog code.
type catalogRef string

func (c *catalogRef) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*c = catalogRef(s)
		return nil
	}
	var n int64
	dec := json.NewDecoder(bytes.NewReader(b))
	if err := dec.Decode(&n); err != nil {
		return err
	}
	*c = catalogRef(strconv.FormatInt(n, 10))
	return nil
}

type AddItemRequestDTO struct {
	BookID   catalogRef `json:"bookId"`
	Quantity *int       `json:"quantity,omitempty"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

// GET /api/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cart, err := h.carts.GetCart(ctx, getUserIDFromContext(r.Context()))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, h.books.cart(ctx, cart))
}

// POST /api/cart
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.BookID == "" {
		h.respondError(w, http.StatusBadRequest, "invalid_argument", "bookId is required")
		return
	}
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	cart, err := h.carts.AddItem(ctx, getUserIDFromContext(r.Context()), string(req.BookID), quantity)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, h.books.cart(ctx, cart))
}

// PUT /api/cart/{lineItemId}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req UpdateQuantityRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	cart, err := h.carts.UpdateItem(ctx, getUserIDFromContext(r.Context()), chi.URLParam(r, "lineItemId"), req.Quantity)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, h.books.cart(ctx, cart))
}

// DELETE /api/cart/{lineItemId}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cart, err := h.carts.RemoveItem(ctx, getUserIDFromContext(r.Context()), chi.URLParam(r, "lineItemId"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, h.books.cart(ctx, cart))
}

// DELETE /api/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.carts.ClearCart(ctx, getUserIDFromContext(r.Context())); err != nil {
		h.handleError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, MessageResponse{Message: "Cart cleared successfully"})
}
