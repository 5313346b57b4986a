package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ServerMetrics struct {
	Requests      *prometheus.CounterVec
	LatencyMS     *prometheus.HistogramVec
	OrdersPlaced  *prometheus.CounterVec
	CartConflicts prometheus.Counter
}

// NewServerMetrics registers the bookstore collectors on reg.
func NewServerMetrics(reg prometheus.Registerer) *ServerMetrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bookstore",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"handler", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "bookstore",
		Subsystem: "http",
		Name:      "request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"handler"})
	orders := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bookstore",
		Subsystem: "checkout",
		Name:      "orders_placed_total",
		Help:      "Orders created, by payment method and path.",
	}, []string{"payment_method", "path"})
	conflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "bookstore",
		Subsystem: "cart",
		Name:      "write_conflicts_total",
		Help:      "Cart writes retried after a concurrent modification.",
	})

	reg.MustRegister(requests, latency, orders, conflicts)
	return &ServerMetrics{Requests: requests, LatencyMS: latency, OrdersPlaced: orders, CartConflicts: conflicts}
}

// Handler serves the collectors registered on g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
