package repository

import (
	"context"
	"errors"

	"github.com/fjod/go_bookstore/internal/domain"
)

var (
	ErrCartNotFound         = errors.New("cart not found")
	ErrOrderNotFound        = errors.New("order not found")
	ErrBookNotFound         = errors.New("book not found")
	ErrAccountNotFound      = errors.New("account not found")
	ErrVersionConflict      = errors.New("document was modified concurrently")
	ErrDuplicateCheckout    = errors.New("order for checkout key already exists")
	ErrDuplicateOrderNumber = errors.New("order number already taken")
)

// CartRepository stores one cart document per account. SaveCart is a
// compare-and-swap on Cart.Version.
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	SaveCart(ctx context.Context, cart *domain.Cart) error
}

type WishlistRepository interface {
	GetWishlist(ctx context.Context, userID string) (*domain.Wishlist, error)
	AddItem(ctx context.Context, userID, catalogItemID string) (*domain.Wishlist, error)
	RemoveItem(ctx context.Context, userID, catalogItemID string) (*domain.Wishlist, error)
	ClearWishlist(ctx context.Context, userID string) error
}

type OrderRepository interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	GetOrderByCheckoutKey(ctx context.Context, checkoutKey string) (*domain.Order, error)
	ListOrdersByUserID(ctx context.Context, userID string) ([]*domain.Order, error)
	// UpdateOrderState persists status, payment and timestamps only if the
	// stored version still equals order.Version, then bumps it in place.
	UpdateOrderState(ctx context.Context, order *domain.Order) error
}

type CatalogRepository interface {
	// FindByID accepts a document id (hex) or a numeric catalog code.
	FindByID(ctx context.Context, id string) (*domain.CatalogItem, error)
	FindByCode(ctx context.Context, code int64) (*domain.CatalogItem, error)
	// FindByIDs loads the books with the given document ids in one query,
	// keyed by id. Unknown ids are left out.
	FindByIDs(ctx context.Context, ids []string) (map[string]*domain.CatalogItem, error)
}

type AccountRepository interface {
	GetAccount(ctx context.Context, id string) (*domain.Account, error)
}
