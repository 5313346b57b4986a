package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_bookstore/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func setupTestDB(t *testing.T) (*mongo.Database, func()) {
	if testing.Short() {
		t.Skip("skipping MongoDB integration test in short mode")
	}
	ctx := context.Background()

	// Start MongoDB container
	mongoContainer, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)

	uri, err := mongoContainer.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := ConnectMongoDB(ctx, uri, "testdb")
	require.NoError(t, err)

	require.NoError(t, RunMigrations(uri, "testdb"))

	cleanup := func() {
		_ = db.Client().Disconnect(ctx)
		if err := mongoContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return db, cleanup
}

func testNow() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func TestGetCart_NotFound(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	cart, err := NewCartRepository(db).GetCart(context.Background(), "nonexistent")

	assert.ErrorIs(t, err, ErrCartNotFound)
	assert.Nil(t, cart)
}

func TestSaveCart_InsertThenUpdate(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	repo := NewCartRepository(db)
	ctx := context.Background()

	cart := domain.NewCart("user123", testNow())
	require.NoError(t, cart.Add(domain.CatalogItem{ID: "b1", DiscountedPrice: 1500}, 2, testNow()))
	require.NoError(t, repo.SaveCart(ctx, cart))
	assert.Equal(t, int64(1), cart.Version)

	stored, err := repo.GetCart(ctx, "user123")
	require.NoError(t, err)
	assert.Len(t, stored.Items, 1)
	assert.Equal(t, domain.Money(3000), stored.TotalAmount)
	assert.Equal(t, int64(1), stored.Version)

	require.NoError(t, stored.UpdateQuantity(stored.Items[0].ID, 5))
	require.NoError(t, repo.SaveCart(ctx, stored))

	stored, err = repo.GetCart(ctx, "user123")
	require.NoError(t, err)
	assert.Equal(t, 5, stored.Items[0].Quantity)
	assert.Equal(t, domain.Money(7500), stored.TotalAmount)
	assert.Equal(t, int64(2), stored.Version)
}

func TestSaveCart_StaleVersionConflicts(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	repo := NewCartRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.SaveCart(ctx, domain.NewCart("user123", testNow())))

	first, err := repo.GetCart(ctx, "user123")
	require.NoError(t, err)
	second, err := repo.GetCart(ctx, "user123")
	require.NoError(t, err)

	require.NoError(t, first.Add(domain.CatalogItem{ID: "a", DiscountedPrice: 100}, 1, testNow()))
	require.NoError(t, repo.SaveCart(ctx, first))

	require.NoError(t, second.Add(domain.CatalogItem{ID: "b", DiscountedPrice: 100}, 1, testNow()))
	err = repo.SaveCart(ctx, second)
	assert.ErrorIs(t, err, ErrVersionConflict)

	// A second insert for the same account loses on the unique index.
	err = repo.SaveCart(ctx, domain.NewCart("user123", testNow()))
	assert.ErrorIs(t, err, ErrVersionConflict)
}

func TestWishlist_AddIsSetLike(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	repo := NewWishlistRepository(db)
	ctx := context.Background()

	w, err := repo.GetWishlist(ctx, "user123")
	require.NoError(t, err)
	assert.Empty(t, w.Items)

	_, err = repo.AddItem(ctx, "user123", "b1")
	require.NoError(t, err)
	w, err = repo.AddItem(ctx, "user123", "b1")
	require.NoError(t, err)
	assert.Equal(t, []string{"b1"}, w.Items)

	w, err = repo.AddItem(ctx, "user123", "b2")
	require.NoError(t, err)
	assert.Equal(t, []string{"b1", "b2"}, w.Items)

	w, err = repo.RemoveItem(ctx, "user123", "missing")
	require.NoError(t, err)
	assert.Len(t, w.Items, 2)

	w, err = repo.RemoveItem(ctx, "user123", "b1")
	require.NoError(t, err)
	assert.Equal(t, []string{"b2"}, w.Items)

	require.NoError(t, repo.ClearWishlist(ctx, "user123"))
	w, err = repo.GetWishlist(ctx, "user123")
	require.NoError(t, err)
	assert.Empty(t, w.Items)
}

func TestWishlist_ConcurrentAdds(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	repo := NewWishlistRepository(db)
	ctx := context.Background()
	require.NoError(t, repo.ClearWishlist(ctx, "user123"))

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.AddItem(ctx, "user123", "b1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	w, err := repo.GetWishlist(ctx, "user123")
	require.NoError(t, err)
	assert.Equal(t, []string{"b1"}, w.Items)
}

func newTestOrder(userID, number, key string, created time.Time) *domain.Order {
	return &domain.Order{
		ID:          primitive.NewObjectID().Hex(),
		UserID:      userID,
		OrderNumber: number,
		CheckoutKey: key,
		Items:       []domain.OrderItem{{CatalogItemID: "b1", Quantity: 1, Price: 20000}},
		TotalAmount: 20000,
		Payment:     domain.PaymentInfo{Method: domain.PaymentMethodCashOnDelivery, Status: domain.PaymentStatusPending},
		Status:      domain.OrderStatusProcessing,
		CreatedAt:   created,
		UpdatedAt:   created,
	}
}

func TestOrders_CreateAndList(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	repo := NewOrderRepository(db)
	ctx := context.Background()
	base := testNow()

	require.NoError(t, repo.CreateOrder(ctx, newTestOrder("user123", "ORD-000001-AAAAAA", "", base)))
	require.NoError(t, repo.CreateOrder(ctx, newTestOrder("user123", "ORD-000002-BBBBBB", "", base.Add(time.Hour))))
	require.NoError(t, repo.CreateOrder(ctx, newTestOrder("user123", "ORD-000003-CCCCCC", "", base.Add(-time.Hour))))
	require.NoError(t, repo.CreateOrder(ctx, newTestOrder("other", "ORD-000004-DDDDDD", "", base)))

	orders, err := repo.ListOrdersByUserID(ctx, "user123")
	require.NoError(t, err)
	require.Len(t, orders, 3)
	assert.Equal(t, "ORD-000002-BBBBBB", orders[0].OrderNumber)
	assert.Equal(t, "ORD-000001-AAAAAA", orders[1].OrderNumber)
	assert.Equal(t, "ORD-000003-CCCCCC", orders[2].OrderNumber)

	empty, err := repo.ListOrdersByUserID(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestOrders_UniqueConstraints(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	repo := NewOrderRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.CreateOrder(ctx, newTestOrder("u", "ORD-1", "key-1", testNow())))
	// orders without a checkout key do not collide with each other
	require.NoError(t, repo.CreateOrder(ctx, newTestOrder("u", "ORD-2", "", testNow())))
	require.NoError(t, repo.CreateOrder(ctx, newTestOrder("u", "ORD-3", "", testNow())))

	err := repo.CreateOrder(ctx, newTestOrder("u", "ORD-1", "key-2", testNow()))
	assert.ErrorIs(t, err, ErrDuplicateOrderNumber)

	err = repo.CreateOrder(ctx, newTestOrder("u", "ORD-9", "key-1", testNow()))
	assert.ErrorIs(t, err, ErrDuplicateCheckout)

	found, err := repo.GetOrderByCheckoutKey(ctx, "key-1")
	require.NoError(t, err)
	assert.Equal(t, "ORD-1", found.OrderNumber)

	_, err = repo.GetOrderByCheckoutKey(ctx, "key-404")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestOrders_UpdateStateIsConditional(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	repo := NewOrderRepository(db)
	ctx := context.Background()

	order := newTestOrder("u", "ORD-1", "", testNow())
	require.NoError(t, repo.CreateOrder(ctx, order))

	shipped := testNow()
	require.NoError(t, order.Advance(domain.OrderStatusShipped, "TRK-9", shipped))
	stale := *order
	require.NoError(t, repo.UpdateOrderState(ctx, order))
	assert.Equal(t, int64(1), order.Version)

	stored, err := repo.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusShipped, stored.Status)
	assert.Equal(t, "TRK-9", stored.TrackingNumber)
	require.NotNil(t, stored.ShippedAt)
	assert.True(t, shipped.Equal(*stored.ShippedAt))
	assert.Nil(t, stored.DeliveredAt)

	// a writer that read the same version loses, even with an unchanged status
	stale.Status = domain.OrderStatusProcessing
	stale.Payment.Status = domain.PaymentStatusCompleted
	err = repo.UpdateOrderState(ctx, &stale)
	assert.ErrorIs(t, err, ErrVersionConflict)

	stored, err = repo.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusShipped, stored.Status)
	assert.Equal(t, int64(1), stored.Version)

	missing := newTestOrder("u", "ORD-404", "", testNow())
	err = repo.UpdateOrderState(ctx, missing)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestCatalog_FindByIDOrCode(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	repo := NewCatalogRepository(db)
	ctx := context.Background()

	oid := primitive.NewObjectID()
	_, err := db.Collection("books").InsertOne(ctx, bson.M{
		"_id":              oid,
		"id":               int64(42),
		"name":             "The Go Programming Language",
		"author":           "Donovan & Kernighan",
		"image":            "https://example.com/gopl.jpg",
		"price":            899.0,
		"discounted_price": 649.5,
		"discount_rate":    "28% off",
		"genre":            "Programming",
		"description":      "Go from the ground up",
	})
	require.NoError(t, err)

	byHex, err := repo.FindByID(ctx, oid.Hex())
	require.NoError(t, err)
	assert.Equal(t, int64(42), byHex.Code)
	assert.Equal(t, domain.Money(89900), byHex.Price)
	assert.Equal(t, domain.Money(64950), byHex.DiscountedPrice)

	byCode, err := repo.FindByID(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, oid.Hex(), byCode.ID)

	_, err = repo.FindByCode(ctx, 7)
	assert.ErrorIs(t, err, ErrBookNotFound)

	_, err = repo.FindByID(ctx, "not-an-id")
	assert.ErrorIs(t, err, ErrBookNotFound)
}

func TestCatalog_FindByIDs(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	repo := NewCatalogRepository(db)
	ctx := context.Background()

	first, second := primitive.NewObjectID(), primitive.NewObjectID()
	_, err := db.Collection("books").InsertMany(ctx, []interface{}{
		bson.M{"_id": first, "id": int64(1), "name": "Dune", "author": "Frank Herbert", "price": 120.0, "discounted_price": 100.0},
		bson.M{"_id": second, "id": int64(2), "name": "Emma", "author": "Jane Austen", "price": 60.0, "discounted_price": 50.0},
	})
	require.NoError(t, err)

	books, err := repo.FindByIDs(ctx, []string{first.Hex(), second.Hex(), primitive.NewObjectID().Hex(), "not-hex"})
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, "Dune", books[first.Hex()].Name)
	assert.Equal(t, domain.Money(5000), books[second.Hex()].DiscountedPrice)

	empty, err := repo.FindByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestAccount_GetAccount(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	repo := NewAccountRepository(db)
	ctx := context.Background()

	oid := primitive.NewObjectID()
	_, err := db.Collection("users").InsertOne(ctx, bson.M{
		"_id":   oid,
		"name":  "Asha",
		"email": "asha@example.com",
		"address": bson.M{
			"street": "1 MG Road", "city": "Pune", "state": "MH", "zipCode": "411001", "country": "IN",
		},
	})
	require.NoError(t, err)

	acct, err := repo.GetAccount(ctx, oid.Hex())
	require.NoError(t, err)
	assert.Equal(t, "asha@example.com", acct.Email)
	assert.Equal(t, "411001", acct.Address.ZipCode)
	assert.NoError(t, acct.Address.Validate())

	_, err = repo.GetAccount(ctx, primitive.NewObjectID().Hex())
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestRunMigrations_CreatesOrderIndexes(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	cursor, err := db.Collection("orders").Indexes().List(ctx)
	require.NoError(t, err)
	var indexes []bson.M
	require.NoError(t, cursor.All(ctx, &indexes))

	names := make([]string, 0, len(indexes))
	for _, idx := range indexes {
		names = append(names, idx["name"].(string))
	}
	assert.Contains(t, names, orderNumberIndex)
	assert.Contains(t, names, checkoutKeyIndex)
}

func TestContextCancellation(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Nanosecond)
	defer cancel()

	time.Sleep(10 * time.Millisecond) // Ensure context is cancelled

	_, err := NewCartRepository(db).GetCart(ctx, "user123")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "context")
}
