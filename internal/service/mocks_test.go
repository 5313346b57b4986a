package service

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/fjod/go_bookstore/internal/cache"
	"github.com/fjod/go_bookstore/internal/domain"
	"github.com/fjod/go_bookstore/internal/repository"
)

// mockCartRepository keeps carts by user and applies the same version check
// as the Mongo repository.
type mockCartRepository struct {
	m         sync.Mutex
	carts     map[string]*domain.Cart
	err       error
	saveErr   error
	conflicts int // number of SaveCart calls to fail with a version conflict
	saves     int
}

func newMockCartRepository() *mockCartRepository {
	return &mockCartRepository{carts: make(map[string]*domain.Cart)}
}

func (m *mockCartRepository) GetCart(_ context.Context, userID string) (*domain.Cart, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.carts[userID]
	if !ok {
		return nil, repository.ErrCartNotFound
	}
	return c.Clone(), nil
}

func (m *mockCartRepository) SaveCart(_ context.Context, cart *domain.Cart) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	if m.conflicts > 0 {
		m.conflicts--
		return repository.ErrVersionConflict
	}
	stored, ok := m.carts[cart.UserID]
	switch {
	case !ok && cart.Version != 0, ok && stored.Version != cart.Version:
		return repository.ErrVersionConflict
	}
	cart.Version++
	m.carts[cart.UserID] = cart.Clone()
	m.saves++
	return nil
}

func (m *mockCartRepository) put(c *domain.Cart) {
	m.m.Lock()
	defer m.m.Unlock()
	if c.Version == 0 {
		c.Version = 1
	}
	m.carts[c.UserID] = c.Clone()
}

func (m *mockCartRepository) get(userID string) *domain.Cart {
	m.m.Lock()
	defer m.m.Unlock()
	return m.carts[userID]
}

type mockCache struct {
	m     sync.RWMutex
	cart  *domain.Cart
	err   error
	sets  int
	floor int64
}

func (m *mockCache) Get(context.Context, string) (*domain.Cart, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.cart == nil {
		return nil, cache.ErrCacheMiss
	}
	return m.cart, nil
}

func (m *mockCache) Set(_ context.Context, _ string, cart *domain.Cart) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.sets++
	if cart.Version >= m.floor {
		m.cart = cart
	}
	return m.err
}

func (m *mockCache) Invalidate(_ context.Context, _ string, version int64) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.cart = nil
	m.floor = max(m.floor, version)
	return m.err
}

func (m *mockCache) getCart() *domain.Cart {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.cart
}

type mockCatalog struct {
	books map[string]*domain.CatalogItem
	err   error
	// onFind runs once, before the next lookup.
	onFind func(id string)
}

func newMockCatalog(books ...domain.CatalogItem) *mockCatalog {
	m := &mockCatalog{books: make(map[string]*domain.CatalogItem)}
	for i := range books {
		m.books[books[i].ID] = &books[i]
	}
	return m
}

func (m *mockCatalog) FindByID(_ context.Context, id string) (*domain.CatalogItem, error) {
	if hook := m.onFind; hook != nil {
		m.onFind = nil
		hook(id)
	}
	if m.err != nil {
		return nil, m.err
	}
	if b, ok := m.books[id]; ok {
		return b, nil
	}
	for _, b := range m.books {
		if id != "" && id == codeString(b.Code) {
			return b, nil
		}
	}
	return nil, repository.ErrBookNotFound
}

func (m *mockCatalog) FindByIDs(_ context.Context, ids []string) (map[string]*domain.CatalogItem, error) {
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

func (m *mockCatalog) FindByCode(ctx context.Context, code int64) (*domain.CatalogItem, error) {
	return m.FindByID(ctx, codeString(code))
}

func codeString(code int64) string {
	if code == 0 {
		return ""
	}
	return strconv.FormatInt(code, 10)
}

type mockAccounts struct {
	accounts map[string]*domain.Account
	err      error
}

func (m *mockAccounts) GetAccount(_ context.Context, id string) (*domain.Account, error) {
	if m.err != nil {
		return nil, m.err
	}
	if a, ok := m.accounts[id]; ok {
		return a, nil
	}
	return nil, repository.ErrAccountNotFound
}

type mockOrderRepository struct {
	m               sync.Mutex
	orders          map[string]*domain.Order
	numberConflicts int // CreateOrder calls to fail with a duplicate order number
	createErr       error
	creates         int
	// beforeUpdate runs once, under the lock, before the next state update.
	beforeUpdate func(stored *domain.Order)
}

func newMockOrderRepository() *mockOrderRepository {
	return &mockOrderRepository{orders: make(map[string]*domain.Order)}
}

func cloneOrder(o *domain.Order) *domain.Order {
	cp := *o
	cp.Items = append([]domain.OrderItem(nil), o.Items...)
	return &cp
}

func (m *mockOrderRepository) CreateOrder(_ context.Context, order *domain.Order) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.creates++
	if m.createErr != nil {
		return m.createErr
	}
	if m.numberConflicts > 0 {
		m.numberConflicts--
		return repository.ErrDuplicateOrderNumber
	}
	for _, o := range m.orders {
		if order.CheckoutKey != "" && o.CheckoutKey == order.CheckoutKey {
			return repository.ErrDuplicateCheckout
		}
		if o.OrderNumber == order.OrderNumber {
			return repository.ErrDuplicateOrderNumber
		}
	}
	m.orders[order.ID] = cloneOrder(order)
	return nil
}

func (m *mockOrderRepository) GetOrder(_ context.Context, id string) (*domain.Order, error) {
	m.m.Lock()
	defer m.m.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (m *mockOrderRepository) GetOrderByCheckoutKey(_ context.Context, key string) (*domain.Order, error) {
	m.m.Lock()
	defer m.m.Unlock()
	for _, o := range m.orders {
		if o.CheckoutKey == key {
			return cloneOrder(o), nil
		}
	}
	return nil, repository.ErrOrderNotFound
}

func (m *mockOrderRepository) ListOrdersByUserID(_ context.Context, userID string) ([]*domain.Order, error) {
	m.m.Lock()
	defer m.m.Unlock()
	out := make([]*domain.Order, 0)
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *mockOrderRepository) UpdateOrderState(_ context.Context, order *domain.Order) error {
	m.m.Lock()
	defer m.m.Unlock()
	stored, ok := m.orders[order.ID]
	if !ok {
		return repository.ErrOrderNotFound
	}
	if hook := m.beforeUpdate; hook != nil {
		m.beforeUpdate = nil
		hook(stored)
	}
	if stored.Version != order.Version {
		return repository.ErrVersionConflict
	}
	stored.Status = order.Status
	stored.Payment = order.Payment
	stored.TrackingNumber = order.TrackingNumber
	stored.UpdatedAt = order.UpdatedAt
	stored.ShippedAt = order.ShippedAt
	stored.DeliveredAt = order.DeliveredAt
	stored.Version++
	order.Version++
	return nil
}

func (m *mockOrderRepository) all() []*domain.Order {
	m.m.Lock()
	defer m.m.Unlock()
	out := make([]*domain.Order, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, cloneOrder(o))
	}
	return out
}

type mockGateway struct {
	session      *domain.PaymentSession
	sessionErr   error
	lastRequest  domain.PaymentSessionRequest
	notification *domain.PaymentNotification
	parseErr     error
}

func (m *mockGateway) CreateSession(_ context.Context, req domain.PaymentSessionRequest) (*domain.PaymentSession, error) {
	m.lastRequest = req
	if m.sessionErr != nil {
		return nil, m.sessionErr
	}
	cp := *m.session
	return &cp, nil
}

func (m *mockGateway) ParseNotification([]byte, string) (*domain.PaymentNotification, error) {
	if m.parseErr != nil {
		return nil, m.parseErr
	}
	return m.notification, nil
}

type mockPublisher struct {
	m      sync.Mutex
	events []*domain.Order
	err    error
}

func (m *mockPublisher) PublishOrderPlaced(_ context.Context, order *domain.Order) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.events = append(m.events, cloneOrder(order))
	return m.err
}

func (m *mockPublisher) count() int {
	m.m.Lock()
	defer m.m.Unlock()
	return len(m.events)
}
