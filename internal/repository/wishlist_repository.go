package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_bookstore/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type wishlistRepository struct {
	collection *mongo.Collection
}

func NewWishlistRepository(db *mongo.Database) WishlistRepository {
	return &wishlistRepository{
		collection: db.Collection("wishlists"),
	}
}

// GetWishlist returns an empty wishlist when the account has none yet.
func (r *wishlistRepository) GetWishlist(ctx context.Context, userID string) (*domain.Wishlist, error) {
	var w domain.Wishlist

	err := r.collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&w)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.NewWishlist(userID), nil
		}
		return nil, fmt.Errorf("failed to get wishlist: %w", err)
	}
	if w.Items == nil {
		w.Items = []string{}
	}
	return &w, nil
}

func (r *wishlistRepository) AddItem(ctx context.Context, userID, catalogItemID string) (*domain.Wishlist, error) {
	update := bson.M{
		"$addToSet": bson.M{"items": catalogItemID},
		"$set":      bson.M{"updated_at": time.Now().UTC()},
	}
	return r.modify(ctx, userID, update)
}

func (r *wishlistRepository) RemoveItem(ctx context.Context, userID, catalogItemID string) (*domain.Wishlist, error) {
	update := bson.M{
		"$pull": bson.M{"items": catalogItemID},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	}
	return r.modify(ctx, userID, update)
}

func (r *wishlistRepository) ClearWishlist(ctx context.Context, userID string) error {
	update := bson.M{
		"$set": bson.M{"items": bson.A{}, "updated_at": time.Now().UTC()},
	}
	_, err := r.modify(ctx, userID, update)
	return err
}

func (r *wishlistRepository) modify(ctx context.Context, userID string, update bson.M) (*domain.Wishlist, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var w domain.Wishlist
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"user_id": userID}, update, opts).Decode(&w)
	if err != nil {
		return nil, fmt.Errorf("failed to update wishlist: %w", err)
	}
	if w.Items == nil {
		w.Items = []string{}
	}
	return &w, nil
}
