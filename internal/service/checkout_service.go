package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_bookstore/internal/domain"
	"github.com/fjod/go_bookstore/internal/repository"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type PaymentGateway interface {
	CreateSession(ctx context.Context, req domain.PaymentSessionRequest) (*domain.PaymentSession, error)
	// ParseNotification verifies payload against signature. A verified event
	// that does not complete a payment yields a nil notification.
	ParseNotification(payload []byte, signature string) (*domain.PaymentNotification, error)
}

type OrderEventPublisher interface {
	PublishOrderPlaced(ctx context.Context, order *domain.Order) error
}

// CartSnapshotter is the part of CartService checkout depends on.
type CartSnapshotter interface {
	Snapshot(ctx context.Context, userID string) (*domain.Cart, error)
	ClearOrdered(ctx context.Context, userID, orderID string, items []domain.OrderItem) error
}

type CheckoutDeps struct {
	Carts    CartSnapshotter
	Catalog  repository.CatalogRepository
	Accounts repository.AccountRepository
	Orders   repository.OrderRepository
	// Gateway is nil when no payment provider is configured.
	Gateway PaymentGateway
	Events  OrderEventPublisher
}

type CheckoutSettings struct {
	Currency    string
	MinAmount   domain.Money
	FrontendURL string
}

type PlaceOrderRequest struct {
	UserID          string
	ShippingAddress *domain.Address
	PaymentMethod   domain.PaymentMethod
	CheckoutKey     string
	ExpectedTotal   *domain.Money
}

type CheckoutService struct {
	CheckoutDeps
	settings       CheckoutSettings
	log            *zap.Logger
	now            func() time.Time
	newOrderNumber func(time.Time) string
	newID          func() string
	placed         *prometheus.CounterVec
}

type CheckoutOption func(*CheckoutService)

func WithCheckoutClock(now func() time.Time) CheckoutOption {
	return func(s *CheckoutService) { s.now = now }
}

func WithOrderNumbers(gen func(time.Time) string) CheckoutOption {
	return func(s *CheckoutService) { s.newOrderNumber = gen }
}

// WithPlacedCounter counts created orders by payment method and path.
func WithPlacedCounter(c *prometheus.CounterVec) CheckoutOption {
	return func(s *CheckoutService) { s.placed = c }
}

func NewCheckoutService(deps CheckoutDeps, settings CheckoutSettings, log *zap.Logger, opts ...CheckoutOption) *CheckoutService {
	s := &CheckoutService{
		CheckoutDeps:   deps,
		settings:       settings,
		log:            log,
		now:            utcNow,
		newOrderNumber: domain.GenerateOrderNumber,
		newID:          uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PlaceOrder snapshots the live cart into a new order and clears the cart.
// With a checkout key the call is idempotent: a second call, or a payment
// notification that got there first, returns the existing order.
func (s *CheckoutService) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*domain.Order, error) {
	method := req.PaymentMethod
	if method == "" {
		method = domain.PaymentMethodCashOnDelivery
	}
	if !method.Valid() {
		return nil, domain.ErrInvalidPaymentMethod
	}

	if req.CheckoutKey != "" {
		existing, err := s.orderForCheckout(ctx, req.UserID, req.CheckoutKey)
		if err != nil || existing != nil {
			return existing, err
		}
	}

	cart, err := s.Carts.Snapshot(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to read cart: %w", err)
	}
	if cart.IsEmpty() {
		return nil, domain.ErrEmptyCart
	}
	if req.ExpectedTotal != nil && *req.ExpectedTotal != cart.TotalAmount {
		return nil, domain.Errorf(domain.ErrInvalidArgument,
			"cart changed, total is now %s", cart.TotalAmount)
	}
	if _, err := s.resolveBooks(ctx, cart); err != nil {
		return nil, err
	}

	address, err := s.shippingAddress(ctx, req.UserID, req.ShippingAddress)
	if err != nil {
		return nil, err
	}

	now := s.now()
	order := &domain.Order{
		ID:              s.newID(),
		UserID:          req.UserID,
		CheckoutKey:     req.CheckoutKey,
		Items:           domain.ItemsFromCart(cart),
		TotalAmount:     cart.TotalAmount,
		ShippingAddress: address,
		Payment:         domain.PaymentInfo{Method: method, Status: domain.PaymentStatusPending},
		Status:          domain.OrderStatusProcessing,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if method.ConfirmedExternally() {
		order.Status = domain.OrderStatusPending
	}

	stored, created, err := s.insertOrder(ctx, order)
	if err != nil {
		return nil, err
	}
	if created {
		s.afterPlaced(ctx, stored, "sync")
	}
	return stored, nil
}

// CreatePaymentSession opens a provider checkout session for the live cart.
// The order number and checkout key travel in the session metadata so the
// notification can materialize the order without the cart.
func (s *CheckoutService) CreatePaymentSession(ctx context.Context, userID string) (*domain.PaymentSession, error) {
	if s.Gateway == nil {
		return nil, domain.ErrPaymentsDisabled
	}

	cart, err := s.Carts.Snapshot(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read cart: %w", err)
	}
	if cart.IsEmpty() {
		return nil, domain.ErrEmptyCart
	}
	if cart.TotalAmount < s.settings.MinAmount {
		return nil, domain.Errorf(domain.ErrInvalidArgument,
			"minimum order amount is %s %s", s.settings.MinAmount, s.settings.Currency)
	}

	books, err := s.resolveBooks(ctx, cart)
	if err != nil {
		return nil, err
	}
	lines := make([]domain.SessionLine, 0, len(cart.Items))
	for _, line := range cart.Items {
		book := books[line.CatalogItemID]
		lines = append(lines, domain.SessionLine{
			Name:     book.Name,
			Author:   book.Author,
			ImageURL: book.ImageURL,
			Price:    line.Price,
			Quantity: line.Quantity,
		})
	}

	var email string
	acct, err := s.Accounts.GetAccount(ctx, userID)
	switch {
	case err == nil:
		email = acct.Email
	case !errors.Is(err, repository.ErrAccountNotFound):
		s.log.Warn("account lookup failed, session without customer email",
			zap.String("user_id", userID), zap.Error(err))
	}

	orderNumber := s.newOrderNumber(s.now())
	checkoutKey := s.newID()
	metadata := map[string]string{
		domain.MetaOrderNumber: orderNumber,
		domain.MetaCheckoutKey: checkoutKey,
		domain.MetaUserID:      userID,
		domain.MetaTotalAmount: cart.TotalAmount.String(),
	}
	if encoded, ok := domain.EncodeOrderItems(domain.ItemsFromCart(cart)); ok {
		metadata[domain.MetaOrderItems] = encoded
	} else {
		s.log.Info("order items exceed metadata limit, notification will read the cart",
			zap.String("user_id", userID), zap.Int("lines", len(cart.Items)))
	}

	session, err := s.Gateway.CreateSession(ctx, domain.PaymentSessionRequest{
		UserID:        userID,
		CustomerEmail: email,
		Currency:      s.settings.Currency,
		Lines:         lines,
		SuccessURL:    s.settings.FrontendURL + "/order-success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     s.settings.FrontendURL + "/cart",
		Metadata:      metadata,
	})
	if err != nil {
		s.log.Error("payment session failed", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	session.OrderNumber = orderNumber
	session.CheckoutKey = checkoutKey
	return session, nil
}

// HandlePaymentNotification materializes the order for a completed payment
// from the data carried by the notification. Redelivered notifications and
// notifications racing a synchronous checkout converge on one order.
func (s *CheckoutService) HandlePaymentNotification(ctx context.Context, payload []byte, signature string) error {
	if s.Gateway == nil {
		return domain.ErrPaymentsDisabled
	}

	n, err := s.Gateway.ParseNotification(payload, signature)
	if err != nil {
		s.log.Warn("payment notification rejected", zap.Error(err))
		return err
	}
	if n == nil {
		return nil
	}
	log := s.log.With(zap.String("event_id", n.EventID), zap.String("session_id", n.SessionID))
	if n.UserID == "" {
		return domain.Errorf(domain.ErrInvalidArgument, "payment notification %s has no account", n.EventID)
	}

	if n.CheckoutKey != "" {
		existing, err := s.Orders.GetOrderByCheckoutKey(ctx, n.CheckoutKey)
		switch {
		case err == nil:
			return s.confirmPayment(ctx, existing, n)
		case !errors.Is(err, repository.ErrOrderNotFound):
			return fmt.Errorf("failed to look up checkout %s: %w", n.CheckoutKey, err)
		}
	}

	items := n.Items
	if len(items) == 0 {
		cart, err := s.Carts.Snapshot(ctx, n.UserID)
		if err != nil {
			return fmt.Errorf("failed to read cart: %w", err)
		}
		items = domain.ItemsFromCart(cart)
	}
	if len(items) == 0 {
		return domain.Errorf(domain.ErrInvalidArgument, "payment notification %s carries no items", n.EventID)
	}
	total := domain.SumItems(items)
	if n.TotalAmount != 0 && n.TotalAmount != total {
		log.Warn("notification total differs from its items",
			zap.Stringer("notified", n.TotalAmount), zap.Stringer("items", total))
	}

	var address domain.Address
	if acct, err := s.Accounts.GetAccount(ctx, n.UserID); err == nil {
		address = acct.Address
	} else {
		log.Warn("no profile address for paid order", zap.String("user_id", n.UserID), zap.Error(err))
	}

	now := s.now()
	paidAt := n.PaidAt
	if paidAt.IsZero() {
		paidAt = now
	}
	order := &domain.Order{
		ID:              s.newID(),
		UserID:          n.UserID,
		OrderNumber:     n.OrderNumber,
		CheckoutKey:     n.CheckoutKey,
		Items:           items,
		TotalAmount:     total,
		ShippingAddress: address,
		Payment: domain.PaymentInfo{
			Method:    domain.PaymentMethodStripe,
			Status:    domain.PaymentStatusCompleted,
			SessionID: n.SessionID,
			PaidAt:    &paidAt,
		},
		Status:    domain.OrderStatusProcessing,
		CreatedAt: now,
		UpdatedAt: now,
	}

	stored, created, err := s.insertOrder(ctx, order)
	if err != nil {
		return err
	}
	if !created {
		return s.confirmPayment(ctx, stored, n)
	}

	s.afterPlaced(ctx, stored, "notification")
	return nil
}

// orderForCheckout returns the order already stored under key, or nil.
func (s *CheckoutService) orderForCheckout(ctx context.Context, userID, key string) (*domain.Order, error) {
	existing, err := s.Orders.GetOrderByCheckoutKey(ctx, key)
	if errors.Is(err, repository.ErrOrderNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check idempotency: %w", err)
	}
	if existing.UserID != userID {
		return nil, domain.Errorf(domain.ErrConflict, "checkout key already used")
	}
	s.log.Info("duplicate checkout detected",
		zap.String("checkout_key", key), zap.String("order_id", existing.ID))
	return existing, nil
}

// insertOrder stores order, regenerating its number on collision. created is
// false when another writer already stored an order for the same checkout
// key; that order is returned instead.
func (s *CheckoutService) insertOrder(ctx context.Context, order *domain.Order) (stored *domain.Order, created bool, err error) {
	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		if attempt > 1 || order.OrderNumber == "" {
			order.OrderNumber = s.newOrderNumber(order.CreatedAt)
		}

		err := s.Orders.CreateOrder(ctx, order)
		switch {
		case err == nil:
			return order, true, nil
		case errors.Is(err, repository.ErrDuplicateOrderNumber):
			s.log.Warn("order number collision, regenerating",
				zap.String("order_number", order.OrderNumber), zap.Int("attempt", attempt))
		case errors.Is(err, repository.ErrDuplicateCheckout):
			existing, errGet := s.Orders.GetOrderByCheckoutKey(ctx, order.CheckoutKey)
			if errGet != nil {
				return nil, false, fmt.Errorf("failed to load order for checkout %s: %w", order.CheckoutKey, errGet)
			}
			return existing, false, nil
		default:
			return nil, false, fmt.Errorf("failed to create order: %w", err)
		}
	}
	return nil, false, fmt.Errorf("failed to allocate a unique order number after %d attempts", maxWriteAttempts)
}

// confirmPayment marks an existing order paid. A redelivered notification
// finds the payment completed and does nothing.
func (s *CheckoutService) confirmPayment(ctx context.Context, order *domain.Order, n *domain.PaymentNotification) error {
	paidAt := n.PaidAt
	if paidAt.IsZero() {
		paidAt = s.now()
	}

	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		if order.Payment.Status == domain.PaymentStatusCompleted {
			return nil
		}
		if order.UserID != n.UserID {
			s.log.Warn("payment notification account differs from order",
				zap.String("order_id", order.ID), zap.String("user_id", n.UserID))
		}

		order.MarkPaid(n.SessionID, paidAt)
		err := s.Orders.UpdateOrderState(ctx, order)
		if err == nil {
			s.log.Info("payment confirmed for existing order",
				zap.String("order_id", order.ID), zap.String("order_number", order.OrderNumber))
			return nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return fmt.Errorf("failed to confirm payment for order %s: %w", order.ID, err)
		}

		order, err = s.Orders.GetOrder(ctx, order.ID)
		if err != nil {
			return fmt.Errorf("failed to reload order: %w", err)
		}
	}
	return domain.Errorf(domain.ErrConflict, "order %s was modified concurrently", order.ID)
}

// afterPlaced takes the ordered items out of the cart and announces the order.
// Both are best effort: the order exists, and the order-placed consumer
// retries the clear.
func (s *CheckoutService) afterPlaced(ctx context.Context, order *domain.Order, path string) {
	log := s.log.With(zap.String("order_id", order.ID), zap.String("order_number", order.OrderNumber))

	if err := s.Carts.ClearOrdered(ctx, order.UserID, order.ID, order.Items); err != nil {
		log.Warn("cart clear after checkout failed", zap.Error(err))
	}
	if err := s.Events.PublishOrderPlaced(ctx, order); err != nil {
		log.Warn("publish order placed failed", zap.Error(err))
	}
	if s.placed != nil {
		s.placed.WithLabelValues(string(order.Payment.Method), path).Inc()
	}

	log.Info("order placed",
		zap.String("user_id", order.UserID),
		zap.Stringer("total", order.TotalAmount),
		zap.String("path", path))
}

func (s *CheckoutService) resolveBooks(ctx context.Context, cart *domain.Cart) (map[string]*domain.CatalogItem, error) {
	books := make(map[string]*domain.CatalogItem, len(cart.Items))
	for _, line := range cart.Items {
		book, err := s.Catalog.FindByID(ctx, line.CatalogItemID)
		if err != nil {
			return nil, lookupBook(err, line.CatalogItemID)
		}
		books[line.CatalogItemID] = book
	}
	return books, nil
}

// shippingAddress prefers the address sent with the request and falls back to
// the account's profile address.
func (s *CheckoutService) shippingAddress(ctx context.Context, userID string, given *domain.Address) (domain.Address, error) {
	if given != nil && !given.IsZero() {
		return *given, given.Validate()
	}

	acct, err := s.Accounts.GetAccount(ctx, userID)
	if err != nil && !errors.Is(err, repository.ErrAccountNotFound) {
		return domain.Address{}, fmt.Errorf("failed to read account: %w", err)
	}
	if acct == nil || acct.Address.IsZero() {
		return domain.Address{}, domain.Errorf(domain.ErrInvalidArgument, "shipping address is required")
	}
	return acct.Address, acct.Address.Validate()
}
