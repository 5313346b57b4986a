package service

import (
	"context"
	"errors"

	"github.com/fjod/go_bookstore/internal/domain"
	"github.com/fjod/go_bookstore/internal/repository"
	"go.uber.org/zap"
)

type WishlistService struct {
	repo    repository.WishlistRepository
	catalog repository.CatalogRepository
	log     *zap.Logger
}

func NewWishlistService(repo repository.WishlistRepository, catalog repository.CatalogRepository, log *zap.Logger) *WishlistService {
	return &WishlistService{repo: repo, catalog: catalog, log: log}
}

func (s *WishlistService) GetWishlist(ctx context.Context, userID string) (*domain.Wishlist, error) {
	return s.repo.GetWishlist(ctx, userID)
}

// AddItem stores the book's canonical id, so adding by code and by id yields
// one entry.
func (s *WishlistService) AddItem(ctx context.Context, userID, catalogItemID string) (*domain.Wishlist, error) {
	item, err := s.catalog.FindByID(ctx, catalogItemID)
	if err != nil {
		return nil, lookupBook(err, catalogItemID)
	}
	return s.repo.AddItem(ctx, userID, item.ID)
}

// RemoveItem never fails for an absent id.
func (s *WishlistService) RemoveItem(ctx context.Context, userID, catalogItemID string) (*domain.Wishlist, error) {
	id := catalogItemID
	item, err := s.catalog.FindByID(ctx, catalogItemID)
	switch {
	case err == nil:
		id = item.ID
	case !errors.Is(err, repository.ErrBookNotFound):
		s.log.Warn("catalog lookup failed, removing raw id",
			zap.String("catalog_item_id", catalogItemID), zap.Error(err))
	}
	return s.repo.RemoveItem(ctx, userID, id)
}

func (s *WishlistService) ClearWishlist(ctx context.Context, userID string) error {
	return s.repo.ClearWishlist(ctx, userID)
}
