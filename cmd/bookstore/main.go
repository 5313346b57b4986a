package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fjod/go_bookstore/internal/cache"
	"github.com/fjod/go_bookstore/internal/config"
	"github.com/fjod/go_bookstore/internal/events"
	h "github.com/fjod/go_bookstore/internal/http"
	"github.com/fjod/go_bookstore/internal/payment"
	"github.com/fjod/go_bookstore/internal/repository"
	"github.com/fjod/go_bookstore/internal/service"
	"github.com/fjod/go_bookstore/pkg/logger"
	"github.com/fjod/go_bookstore/pkg/metrics"
	"github.com/fjod/go_bookstore/pkg/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const serviceName = "bookstore"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("bookstore stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitTracing(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn("tracer shutdown failed", zap.Error(err))
		}
	}()

	// Set up MongoDB connection
	if err := repository.RunMigrations(cfg.MongoURI, cfg.MongoDBName); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	mongoDB, err := repository.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		return fmt.Errorf("connect to mongodb: %w", err)
	}
	defer func() {
		if err := mongoDB.Client().Disconnect(context.Background()); err != nil {
			log.Warn("mongodb disconnect failed", zap.Error(err))
		}
	}()
	log.Info("connected to mongodb", zap.String("database", cfg.MongoDBName))

	var cartCache cache.CartCache = cache.Noop{}
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis connection failed: %w", err)
		}
		cartCache = cache.NewRedisCache(redisClient)
		log.Info("redis ping succeeded", zap.String("addr", cfg.RedisAddr))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	serverMetrics := metrics.NewServerMetrics(reg)

	catalogRepo := repository.NewCatalogRepository(mongoDB)
	ordersRepo := repository.NewOrderRepository(mongoDB)

	cartService := service.NewCartService(
		repository.NewCartRepository(mongoDB), catalogRepo, cartCache, log,
		service.WithConflictCounter(serverMetrics.CartConflicts),
	)
	wishlistService := service.NewWishlistService(repository.NewWishlistRepository(mongoDB), catalogRepo, log)
	orderService := service.NewOrderService(ordersRepo, log)

	var publisher interface {
		service.OrderEventPublisher
		Close() error
	} = events.NoopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewPublisher(log, cfg.KafkaBrokers...)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Warn("kafka writer close failed", zap.Error(err))
		}
	}()

	deps := service.CheckoutDeps{
		Carts:    cartService,
		Catalog:  catalogRepo,
		Accounts: repository.NewAccountRepository(mongoDB),
		Orders:   ordersRepo,
		Events:   publisher,
	}
	if cfg.PaymentsEnabled() {
		deps.Gateway = payment.NewStripeGateway(payment.StripeConfig{
			SecretKey:     cfg.StripeSecretKey,
			WebhookSecret: cfg.StripeWebhookKey,
			MaxRetries:    2,
		}, log)
	} else {
		log.Warn("STRIPE_SECRET_KEY not set, payment sessions disabled")
	}
	checkoutService := service.NewCheckoutService(deps, service.CheckoutSettings{
		Currency:    cfg.PaymentCurrency,
		MinAmount:   cfg.PaymentMinAmount,
		FrontendURL: cfg.FrontendURL,
	}, log, service.WithPlacedCounter(serverMetrics.OrdersPlaced))

	var consumers sync.WaitGroup
	if len(cfg.KafkaBrokers) > 0 {
		clearer := events.NewCartClearer(cartService, log, cfg.KafkaBrokers...)
		fulfillment := events.NewFulfillmentConsumer(orderService, log, cfg.KafkaBrokers...)
		for _, c := range []interface {
			Run(context.Context)
			Close()
		}{clearer, fulfillment} {
			consumers.Add(1)
			go func() {
				defer consumers.Done()
				c.Run(ctx)
			}()
			defer c.Close()
		}
	}

	router := h.NewRouter(h.Services{
		Cart:     cartService,
		Wishlist: wishlistService,
		Orders:   orderService,
		Checkout: checkoutService,
		Books:    catalogRepo,
	}, h.RouterConfig{
		JWTSecret:          []byte(cfg.JWTSecret),
		RequestTimeout:     cfg.RequestTimeout,
		MaxRequestBodySize: cfg.MaxRequestBodySize,
		Metrics:            serverMetrics,
		MetricsHandler:     metrics.Handler(reg),
	}, log)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, serviceName),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("bookstore listening", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Graceful shutdown
	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down server...")
	sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	consumers.Wait()

	log.Info("server exited")
	return nil
}
