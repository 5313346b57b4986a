package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	stripeSignatureHeader = "Stripe-Signature"
	maxWebhookBody        = 64 << 10
)

type PaymentHandler struct {
	responder
	checkout CheckoutService
	timeout  time.Duration
}

func NewPaymentHandler(checkout CheckoutService, timeout time.Duration, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{responder: responder{log: log}, checkout: checkout, timeout: timeout}
}

// POST /api/stripe/create-checkout-session
func (h *PaymentHandler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	session, err := h.checkout.CreatePaymentSession(ctx, getUserIDFromContext(r.Context()))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, session)
}

// POST /api/stripe/webhook
//
// Not behind auth; the payload signature is the credential.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.respondError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "payload too large")
			return
		}
		h.respondError(w, http.StatusBadRequest, "invalid_request", "failed to read body")
		return
	}

	if err := h.checkout.HandlePaymentNotification(ctx, payload, r.Header.Get(stripeSignatureHeader)); err != nil {
		h.handleError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]bool{"received": true})
}
