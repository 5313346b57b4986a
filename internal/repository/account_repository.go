package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/go_bookstore/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// userDocument is the slice of the identity provider's users collection the
// store reads. Field names follow that collection.
type userDocument struct {
	ID      primitive.ObjectID `bson:"_id"`
	Name    string             `bson:"name"`
	Email   string             `bson:"email"`
	Phone   string             `bson:"phone"`
	Address struct {
		Street  string `bson:"street"`
		City    string `bson:"city"`
		State   string `bson:"state"`
		ZipCode string `bson:"zipCode"`
		Country string `bson:"country"`
	} `bson:"address"`
}

type accountRepository struct {
	collection *mongo.Collection
}

func NewAccountRepository(db *mongo.Database) AccountRepository {
	return &accountRepository{
		collection: db.Collection("users"),
	}
}

func (r *accountRepository) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrAccountNotFound
	}

	var doc userDocument
	if err := r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return &domain.Account{
		ID:    doc.ID.Hex(),
		Name:  doc.Name,
		Email: doc.Email,
		Phone: doc.Phone,
		Address: domain.Address{
			Street:  doc.Address.Street,
			City:    doc.Address.City,
			State:   doc.Address.State,
			ZipCode: doc.Address.ZipCode,
			Country: doc.Address.Country,
		},
	}, nil
}
