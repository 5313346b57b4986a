package http

import (
	"context"
	"time"

	"github.com/fjod/go_bookstore/internal/domain"
	"github.com/fjod/go_bookstore/internal/service"
)

type CartServiceMock struct {
	cart *domain.Cart
	err  error

	lastUserID   string
	lastItemID   string
	lastQuantity int
	cleared      bool
}

func (m *CartServiceMock) GetCart(_ context.Context, userID string) (*domain.Cart, error) {
	m.lastUserID = userID
	return m.cart, m.err
}

func (m *CartServiceMock) AddItem(_ context.Context, userID, catalogItemID string, quantity int) (*domain.Cart, error) {
	m.lastUserID, m.lastItemID, m.lastQuantity = userID, catalogItemID, quantity
	return m.cart, m.err
}

func (m *CartServiceMock) UpdateItem(_ context.Context, userID, lineItemID string, quantity int) (*domain.Cart, error) {
	m.lastUserID, m.lastItemID, m.lastQuantity = userID, lineItemID, quantity
	return m.cart, m.err
}

func (m *CartServiceMock) RemoveItem(_ context.Context, userID, lineItemID string) (*domain.Cart, error) {
	m.lastUserID, m.lastItemID = userID, lineItemID
	return m.cart, m.err
}

func (m *CartServiceMock) ClearCart(_ context.Context, userID string) error {
	m.lastUserID = userID
	m.cleared = m.err == nil
	return m.err
}

type WishlistServiceMock struct {
	wishlist   *domain.Wishlist
	err        error
	lastItemID string
	cleared    bool
}

func (m *WishlistServiceMock) GetWishlist(context.Context, string) (*domain.Wishlist, error) {
	return m.wishlist, m.err
}

func (m *WishlistServiceMock) AddItem(_ context.Context, _, catalogItemID string) (*domain.Wishlist, error) {
	m.lastItemID = catalogItemID
	return m.wishlist, m.err
}

func (m *WishlistServiceMock) RemoveItem(_ context.Context, _, catalogItemID string) (*domain.Wishlist, error) {
	m.lastItemID = catalogItemID
	return m.wishlist, m.err
}

func (m *WishlistServiceMock) ClearWishlist(context.Context, string) error {
	m.cleared = m.err == nil
	return m.err
}

// OrderServiceMock scopes lookups by owner like the real service.
type OrderServiceMock struct {
	orders []*domain.Order
	err    error
}

func (m *OrderServiceMock) ListOrders(_ context.Context, userID string) ([]*domain.Order, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []*domain.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *OrderServiceMock) GetOrder(_ context.Context, userID, orderID string) (*domain.Order, error) {
	for _, o := range m.orders {
		if o.ID == orderID && o.UserID == userID {
			return o, nil
		}
	}
	return nil, domain.Errorf(domain.ErrNotFound, "order not found")
}

type CheckoutServiceMock struct {
	order   *domain.Order
	session *domain.PaymentSession
	err     error

	lastRequest   service.PlaceOrderRequest
	lastPayload   []byte
	lastSignature string
}

func (m *CheckoutServiceMock) PlaceOrder(_ context.Context, req service.PlaceOrderRequest) (*domain.Order, error) {
	m.lastRequest = req
	return m.order, m.err
}

func (m *CheckoutServiceMock) CreatePaymentSession(context.Context, string) (*domain.PaymentSession, error) {
	return m.session, m.err
}

func (m *CheckoutServiceMock) HandlePaymentNotification(_ context.Context, payload []byte, signature string) error {
	m.lastPayload, m.lastSignature = payload, signature
	return m.err
}

func testCart(userID string) *domain.Cart {
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	c := domain.NewCart(userID, now)
	_ = c.Add(domain.CatalogItem{ID: "book-a", Price: 12000, DiscountedPrice: 10000}, 2, now)
	return c
}

type BookLookupMock struct {
	books   map[string]*domain.CatalogItem
	err     error
	lookups int
}

func (m *BookLookupMock) FindByIDs(_ context.Context, ids []string) (map[string]*domain.CatalogItem, error) {
	m.lookups++
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[string]*domain.CatalogItem, len(ids))
	for _, id := range ids {
		if b, ok := m.books[id]; ok {
			out[id] = b
		}
	}
	return out, nil
}

func testBooks() *BookLookupMock {
	return &BookLookupMock{books: map[string]*domain.CatalogItem{
		"book-a": {ID: "book-a", Code: 101, Name: "Dune", Author: "Frank Herbert", ImageURL: "https://img.test/dune.jpg", Price: 12000, DiscountedPrice: 10000},
		"book-b": {ID: "book-b", Code: 102, Name: "Emma", Author: "Jane Austen", Price: 6000, DiscountedPrice: 5000},
	}}
}
