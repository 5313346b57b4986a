package http

import (
	"context"
	"time"

	"github.com/fjod/go_bookstore/internal/domain"
	"go.uber.org/zap"
)

// BookLookup resolves the books referenced by carts, wishlists and orders.
type BookLookup interface {
	FindByIDs(ctx context.Context, ids []string) (map[string]*domain.CatalogItem, error)
}

type BookDTO struct {
	ID              string       `json:"id"`
	Code            int64        `json:"code,omitempty"`
	Name            string       `json:"name"`
	Author          string       `json:"author"`
	Image           string       `json:"image,omitempty"`
	Price           domain.Money `json:"price"`
	DiscountedPrice domain.Money `json:"discountedPrice"`
}

func newBookDTO(b *domain.CatalogItem) *BookDTO {
	if b == nil {
		return nil
	}
	return &BookDTO{
		ID:              b.ID,
		Code:            b.Code,
		Name:            b.Name,
		Author:          b.Author,
		Image:           b.ImageURL,
		Price:           b.Price,
		DiscountedPrice: b.DiscountedPrice,
	}
}

type CartLineDTO struct {
	ID            string       `json:"id"`
	CatalogItemID string       `json:"catalogItemId"`
	Quantity      int          `json:"quantity"`
	Price         domain.Money `json:"price"`
	Subtotal      domain.Money `json:"subtotal"`
	AddedAt       time.Time    `json:"addedAt"`
	Book          *BookDTO     `json:"book,omitempty"`
}

// CartResponseDTO is the stored cart with book details on every line.
type CartResponseDTO struct {
	*domain.Cart
	Items []CartLineDTO `json:"items"`
}

type WishlistResponseDTO struct {
	*domain.Wishlist
	Books []*BookDTO `json:"books"`
}

type OrderItemDTO struct {
	domain.OrderItem
	Book *BookDTO `json:"book,omitempty"`
}

type OrderResponseDTO struct {
	*domain.Order
	Items []OrderItemDTO `json:"items"`
}

// bookJoiner attaches catalog details to responses. The lookup is best
// effort: on failure the response goes out with ids only.
type bookJoiner struct {
	books BookLookup
	log   *zap.Logger
}

func (j bookJoiner) lookup(ctx context.Context, ids []string) map[string]*domain.CatalogItem {
	if j.books == nil || len(ids) == 0 {
		return nil
	}
	books, err := j.books.FindByIDs(ctx, ids)
	if err != nil {
		j.log.Warn("book details lookup failed", zap.Int("ids", len(ids)), zap.Error(err))
		return nil
	}
	return books
}

func (j bookJoiner) cart(ctx context.Context, cart *domain.Cart) CartResponseDTO {
	ids := make([]string, 0, len(cart.Items))
	for _, line := range cart.Items {
		ids = append(ids, line.CatalogItemID)
	}
	books := j.lookup(ctx, ids)

	lines := make([]CartLineDTO, 0, len(cart.Items))
	for _, line := range cart.Items {
		lines = append(lines, CartLineDTO{
			ID:            line.ID,
			CatalogItemID: line.CatalogItemID,
			Quantity:      line.Quantity,
			Price:         line.Price,
			Subtotal:      line.Subtotal(),
			AddedAt:       line.AddedAt,
			Book:          newBookDTO(books[line.CatalogItemID]),
		})
	}
	return CartResponseDTO{Cart: cart, Items: lines}
}

// wishlist lists the books that still exist in the catalog, in wishlist order.
func (j bookJoiner) wishlist(ctx context.Context, wl *domain.Wishlist) WishlistResponseDTO {
	books := j.lookup(ctx, wl.Items)
	out := make([]*BookDTO, 0, len(wl.Items))
	for _, id := range wl.Items {
		if b, ok := books[id]; ok {
			out = append(out, newBookDTO(b))
		}
	}
	return WishlistResponseDTO{Wishlist: wl, Books: out}
}

func (j bookJoiner) orders(ctx context.Context, orders []*domain.Order) []OrderResponseDTO {
	var ids []string
	seen := make(map[string]struct{})
	for _, o := range orders {
		for _, it := range o.Items {
			if _, ok := seen[it.CatalogItemID]; !ok {
				seen[it.CatalogItemID] = struct{}{}
				ids = append(ids, it.CatalogItemID)
			}
		}
	}
	books := j.lookup(ctx, ids)

	out := make([]OrderResponseDTO, 0, len(orders))
	for _, o := range orders {
		items := make([]OrderItemDTO, 0, len(o.Items))
		for _, it := range o.Items {
			items = append(items, OrderItemDTO{OrderItem: it, Book: newBookDTO(books[it.CatalogItemID])})
		}
		out = append(out, OrderResponseDTO{Order: o, Items: items})
	}
	return out
}
