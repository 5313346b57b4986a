package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/fjod/go_bookstore/internal/domain"
	"github.com/sony/gobreaker/v2"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"
)

const eventCheckoutCompleted = "checkout.session.completed"

var errProviderUnavailable = domain.Errorf(domain.ErrUpstream, "payment provider unavailable, try again later")

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	// APIURL overrides the API base URL.
	APIURL     string
	MaxRetries int64
}

// StripeGateway creates hosted checkout sessions and verifies webhook
// events. Session creation runs behind a circuit breaker so a provider outage
// fails fast instead of holding request goroutines.
type StripeGateway struct {
	api           *client.API
	webhookSecret string
	breaker       *gobreaker.CircuitBreaker[*stripe.CheckoutSession]
	log           *zap.Logger
}

func NewStripeGateway(cfg StripeConfig, log *zap.Logger) *StripeGateway {
	backendCfg := &stripe.BackendConfig{
		LeveledLogger:     log.Sugar(),
		MaxNetworkRetries: stripe.Int64(cfg.MaxRetries),
	}
	if cfg.APIURL != "" {
		backendCfg.URL = stripe.String(cfg.APIURL)
	}
	backends := &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, backendCfg),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, backendCfg),
	}

	breaker := gobreaker.NewCircuitBreaker[*stripe.CheckoutSession](gobreaker.Settings{
		Name:        "stripe-checkout",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: providerHealthy,
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &StripeGateway{
		api:           client.New(cfg.SecretKey, backends),
		webhookSecret: cfg.WebhookSecret,
		breaker:       breaker,
		log:           log,
	}
}

// providerHealthy keeps request errors (bad parameters, auth) and caller
// cancellations from tripping the breaker. Only outages count.
func providerHealthy(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		code := stripeErr.HTTPStatusCode
		return code >= http.StatusBadRequest && code < http.StatusInternalServerError && code != http.StatusTooManyRequests
	}
	return false
}

func (g *StripeGateway) CreateSession(ctx context.Context, req domain.PaymentSessionRequest) (*domain.PaymentSession, error) {
	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:         stripe.String(req.SuccessURL),
		CancelURL:          stripe.String(req.CancelURL),
		ClientReferenceID:  stripe.String(req.UserID),
	}
	params.Context = ctx
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	for _, line := range req.Lines {
		product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(line.Name),
		}
		if line.Author != "" {
			product.Description = stripe.String("by " + line.Author)
		}
		if line.ImageURL != "" {
			product.Images = stripe.StringSlice([]string{line.ImageURL})
		}
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(req.Currency),
				ProductData: product,
				UnitAmount:  stripe.Int64(int64(line.Price)),
			},
			Quantity: stripe.Int64(int64(line.Quantity)),
		})
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	if key := req.Metadata[domain.MetaCheckoutKey]; key != "" {
		params.SetIdempotencyKey(key)
	}

	sess, err := g.breaker.Execute(func() (*stripe.CheckoutSession, error) {
		return g.api.CheckoutSessions.New(params)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, errProviderUnavailable
		}
		g.log.Error("stripe checkout session failed", zap.String("user_id", req.UserID), zap.Error(err))
		return nil, domain.Errorf(domain.ErrUpstream, "payment processing error")
	}

	return &domain.PaymentSession{ID: sess.ID, RedirectURL: sess.URL}, nil
}

// ParseNotification verifies the Stripe-Signature header and decodes a
// completed checkout session. Other verified events yield nil.
func (g *StripeGateway) ParseNotification(payload []byte, signature string) (*domain.PaymentNotification, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		Tolerance:                webhook.DefaultTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		g.log.Warn("webhook verification failed", zap.Error(err))
		return nil, domain.ErrInvalidSignature
	}

	if string(event.Type) != eventCheckoutCompleted {
		g.log.Debug("ignoring webhook event", zap.String("type", string(event.Type)), zap.String("event_id", event.ID))
		return nil, nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, domain.Errorf(domain.ErrInvalidArgument, "malformed checkout session in event %s", event.ID)
	}
	if sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
		g.log.Info("checkout completed without payment, waiting", zap.String("session_id", sess.ID))
		return nil, nil
	}

	return notificationFromSession(event, &sess)
}

func notificationFromSession(event stripe.Event, sess *stripe.CheckoutSession) (*domain.PaymentNotification, error) {
	md := sess.Metadata
	n := &domain.PaymentNotification{
		EventID:     event.ID,
		SessionID:   sess.ID,
		UserID:      md[domain.MetaUserID],
		OrderNumber: md[domain.MetaOrderNumber],
		CheckoutKey: md[domain.MetaCheckoutKey],
		TotalAmount: domain.Money(sess.AmountTotal),
		PaidAt:      time.Unix(event.Created, 0).UTC(),
	}
	if n.UserID == "" {
		n.UserID = sess.ClientReferenceID
	}
	if raw := md[domain.MetaTotalAmount]; raw != "" {
		total, err := domain.ParseMoney(raw)
		if err != nil {
			return nil, domain.Errorf(domain.ErrInvalidArgument, "malformed total in session %s", sess.ID)
		}
		n.TotalAmount = total
	}
	if raw := md[domain.MetaOrderItems]; raw != "" {
		items, err := domain.DecodeOrderItems(raw)
		if err != nil {
			return nil, domain.Errorf(domain.ErrInvalidArgument, "malformed items in session %s", sess.ID)
		}
		n.Items = items
	}
	return n, nil
}
