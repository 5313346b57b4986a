package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_bookstore/internal/domain"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type WishlistService interface {
	GetWishlist(ctx context.Context, userID string) (*domain.Wishlist, error)
	AddItem(ctx context.Context, userID, catalogItemID string) (*domain.Wishlist, error)
	RemoveItem(ctx context.Context, userID, catalogItemID string) (*domain.Wishlist, error)
	ClearWishlist(ctx context.Context, userID string) error
}

type WishlistHandler struct {
	responder
	wishlists WishlistService
	books     bookJoiner
	timeout   time.Duration
}

func NewWishlistHandler(wishlists WishlistService, books BookLookup, timeout time.Duration, log *zap.Logger) *WishlistHandler {
	return &WishlistHandler{
		responder: responder{log: log},
		wishlists: wishlists,
		books:     bookJoiner{books: books, log: log},
		timeout:   timeout,
	}
}

type AddWishlistItemRequestDTO struct {
	BookID catalogRef `json:"bookId"`
}

// GET /api/wishlist
func (h *WishlistHandler) GetWishlist(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	wl, err := h.wishlists.GetWishlist(ctx, getUserIDFromContext(r.Context()))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, h.books.wishlist(ctx, wl))
}

// POST /api/wishlist
func (h *WishlistHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddWishlistItemRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.BookID == "" {
		h.respondError(w, http.StatusBadRequest, "invalid_argument", "bookId is required")
		return
	}

	wl, err := h.wishlists.AddItem(ctx, getUserIDFromContext(r.Context()), string(req.BookID))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, h.books.wishlist(ctx, wl))
}

// DELETE /api/wishlist/{bookId}
func (h *WishlistHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	wl, err := h.wishlists.RemoveItem(ctx, getUserIDFromContext(r.Context()), chi.URLParam(r, "bookId"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, h.books.wishlist(ctx, wl))
}

// DELETE /api/wishlist
func (h *WishlistHandler) ClearWishlist(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.wishlists.ClearWishlist(ctx, getUserIDFromContext(r.Context())); err != nil {
		h.handleError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, MessageResponse{Message: "Wishlist cleared successfully"})
}
