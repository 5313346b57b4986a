package http

import (
	"net/http"
	"time"

	"github.com/fjod/go_bookstore/pkg/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type Services struct {
	Cart     CartService
	Wishlist WishlistService
	Orders   OrderService
	Checkout CheckoutService
	// Books adds catalog details to responses; nil returns ids only.
	Books BookLookup
}

type RouterConfig struct {
	JWTSecret          []byte
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
	Metrics            *metrics.ServerMetrics
	// MetricsHandler is mounted at /metrics when set.
	MetricsHandler http.Handler
}

func NewRouter(svc Services, cfg RouterConfig, log *zap.Logger) http.Handler {
	cartHandler := NewCartHandler(svc.Cart, svc.Books, cfg.RequestTimeout, log)
	wishlistHandler := NewWishlistHandler(svc.Wishlist, svc.Books, cfg.RequestTimeout, log)
	ordersHandler := NewOrdersHandler(svc.Orders, svc.Checkout, svc.Books, cfg.RequestTimeout, log)
	paymentHandler := NewPaymentHandler(svc.Checkout, cfg.RequestTimeout, log)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(log))
	r.Use(middleware.Recoverer)
	if cfg.Metrics != nil {
		r.Use(MetricsMiddleware(cfg.Metrics))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		responder{log: log}.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		// Stripe signs the raw body; it gets its own size limit.
		r.Post("/stripe/webhook", paymentHandler.Webhook)

		r.Group(func(r chi.Router) {
			r.Use(MaxBodySize(cfg.MaxRequestBodySize))
			r.Use(AuthMiddleware(cfg.JWTSecret, log))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartHandler.GetCart)
				r.Post("/", cartHandler.AddItem)
				r.Delete("/", cartHandler.ClearCart)
				r.Put("/{lineItemId}", cartHandler.UpdateQuantity)
				r.Delete("/{lineItemId}", cartHandler.RemoveItem)
			})

			r.Route("/wishlist", func(r chi.Router) {
				r.Get("/", wishlistHandler.GetWishlist)
				r.Post("/", wishlistHandler.AddItem)
				r.Delete("/", wishlistHandler.ClearWishlist)
				r.Delete("/{bookId}", wishlistHandler.RemoveItem)
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", ordersHandler.ListOrders)
				r.Post("/", ordersHandler.PlaceOrder)
				r.Get("/{id}", ordersHandler.GetOrder)
			})

			r.Post("/stripe/create-checkout-session", paymentHandler.CreateCheckoutSession)
		})
	})

	return r
}
