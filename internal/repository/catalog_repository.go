package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/fjod/go_bookstore/internal/domain"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// bookDocument mirrors the books collection as the catalog importer writes
// it: prices are plain numbers in major units.
type bookDocument struct {
	ID              primitive.ObjectID `bson:"_id"`
	Code            int64              `bson:"id"`
	Name            string             `bson:"name"`
	Author          string             `bson:"author"`
	Image           string             `bson:"image"`
	Price           float64            `bson:"price"`
	DiscountedPrice float64            `bson:"discounted_price"`
	DiscountRate    string             `bson:"discount_rate"`
	Genre           string             `bson:"genre"`
	Description     string             `bson:"description"`
}

func (d bookDocument) toDomain() *domain.CatalogItem {
	return &domain.CatalogItem{
		ID:              d.ID.Hex(),
		Code:            d.Code,
		Name:            d.Name,
		Author:          d.Author,
		ImageURL:        d.Image,
		Price:           domain.MoneyFromDecimal(decimal.NewFromFloat(d.Price)),
		DiscountedPrice: domain.MoneyFromDecimal(decimal.NewFromFloat(d.DiscountedPrice)),
		DiscountRate:    d.DiscountRate,
		Genre:           d.Genre,
		Description:     d.Description,
	}
}

type catalogRepository struct {
	collection *mongo.Collection
}

func NewCatalogRepository(db *mongo.Database) CatalogRepository {
	return &catalogRepository{
		collection: db.Collection("books"),
	}
}

func (r *catalogRepository) FindByID(ctx context.Context, id string) (*domain.CatalogItem, error) {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return r.findOne(ctx, bson.M{"_id": oid})
	}
	if code, err := strconv.ParseInt(id, 10, 64); err == nil {
		return r.FindByCode(ctx, code)
	}
	return nil, ErrBookNotFound
}

func (r *catalogRepository) FindByCode(ctx context.Context, code int64) (*domain.CatalogItem, error) {
	return r.findOne(ctx, bson.M{"id": code})
}

func (r *catalogRepository) FindByIDs(ctx context.Context, ids []string) (map[string]*domain.CatalogItem, error) {
	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			oids = append(oids, oid)
		}
	}
	books := make(map[string]*domain.CatalogItem, len(oids))
	if len(oids) == 0 {
		return books, nil
	}

	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": oids}})
	if err != nil {
		return nil, fmt.Errorf("failed to find books: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []bookDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode books: %w", err)
	}
	for _, doc := range docs {
		book := doc.toDomain()
		books[book.ID] = book
	}
	return books, nil
}

func (r *catalogRepository) findOne(ctx context.Context, filter bson.M) (*domain.CatalogItem, error) {
	var doc bookDocument
	if err := r.collection.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrBookNotFound
		}
		return nil, fmt.Errorf("failed to get book: %w", err)
	}
	return doc.toDomain(), nil
}
