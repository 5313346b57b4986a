package domain

import (
	"slices"
	"time"
)

// Wishlist is a set of catalog item ids saved for later. No id appears twice.
type Wishlist struct {
	UserID    string    `bson:"user_id" json:"userId"`
	Items     []string  `bson:"items" json:"items"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

func NewWishlist(userID string) *Wishlist {
	return &Wishlist{UserID: userID, Items: []string{}}
}

func (w *Wishlist) Contains(catalogItemID string) bool {
	return slices.Contains(w.Items, catalogItemID)
}
