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

	"github.com/BetterLogicTeam/falcoP-shop-sub000/internal/cart/cache"
	cartrepo "github.com/BetterLogicTeam/falcoP-shop-sub000/internal/cart/repository"
	cartservice "github.com/BetterLogicTeam/falcoP-shop-sub000/internal/cart/service"
	catalogrepo "github.com/BetterLogicTeam/falcoP-shop-sub000/internal/catalog/repository"
	checkoutservice "github.com/BetterLogicTeam/falcoP-shop-sub000/internal/checkout/service"
	h "github.com/BetterLogicTeam/falcoP-shop-sub000/internal/http"
	"github.com/BetterLogicTeam/falcoP-shop-sub000/internal/orders/consumer"
	"github.com/BetterLogicTeam/falcoP-shop-sub000/internal/orders/publisher"
	"github.com/BetterLogicTeam/falcoP-shop-sub000/internal/orders/reconciler"
	ordersrepo "github.com/BetterLogicTeam/falcoP-shop-sub000/internal/orders/repository"
	"github.com/BetterLogicTeam/falcoP-shop-sub000/internal/payment/adapter"
	"github.com/BetterLogicTeam/falcoP-shop-sub000/internal/payment/provider"
	"github.com/BetterLogicTeam/falcoP-shop-sub000/internal/payment/sandbox"
	"github.com/BetterLogicTeam/falcoP-shop-sub000/pkg/circuitbreaker"
	"github.com/BetterLogicTeam/falcoP-shop-sub000/pkg/logger"
	"github.com/BetterLogicTeam/falcoP-shop-sub000/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg := loadConfig()

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)
	log.Info("storefront starting...")

	ctx := context.Background()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Cart persistence slot
	slot, closeSlot, err := openSlot(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to open cart slot", zap.String("backend", cfg.SlotBackend), zap.Error(err))
	}
	defer closeSlot()
	carts := cartservice.NewCartService(slot, log, cartservice.WithMetrics(m))

	// Catalog
	catalog, err := catalogrepo.NewRepository(cfg.CatalogDBPath)
	if err != nil {
		log.Fatal("failed to open catalog", zap.Error(err))
	}
	defer catalog.Close()
	if err := catalog.RunMigrations(); err != nil {
		log.Fatal("failed to run catalog migrations", zap.Error(err))
	}

	// Orders and reconciliation
	orders, err := openOrders(cfg, log)
	if err != nil {
		log.Fatal("failed to open orders store", zap.String("backend", cfg.OrdersBackend), zap.Error(err))
	}
	defer orders.Close()

	rec := reconciler.New(orders, log,
		reconciler.WithBreaker(circuitbreaker.New(circuitbreaker.DefaultSettings("orders"), log, reconciler.IsAnswer)),
		reconciler.WithMetrics(m),
		reconciler.WithTimeout(cfg.ReconcileTimeout),
	)

	var flagConsumer *consumer.Consumer
	var pub publisher.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		flagConsumer = consumer.NewConsumer(orders, rec, log, cfg.KafkaBrokers...)
		pub = publisher.NewKafkaPublisher(cfg.KafkaBrokers...)
		log.Info("reconciliation flags go through kafka", zap.Strings("brokers", cfg.KafkaBrokers))
	} else {
		flagConsumer = consumer.NewHandler(orders, rec, log)
		pub = publisher.NewHandlerPublisher(flagConsumer.Handle)
		log.Info("no kafka brokers configured, reconciling flags in process")
	}
	defer pub.Close()
	poller := publisher.NewFlagPoller(orders, pub, m, log)

	// Payment provider
	var sandboxSrv *http.Server
	if cfg.SandboxEnabled {
		sandboxSrv = startSandbox(cfg, log)
	}
	psp := provider.NewClient(cfg.ProviderURL, cfg.ProviderTimeout, cfg.ProviderBreaker, log)
	payments := adapter.NewDefaultRegistry(psp, log)

	checkout := checkoutservice.NewCheckoutService(carts, payments, rec, log,
		checkoutservice.WithCurrency(cfg.Currency),
		checkoutservice.WithMaxDeclines(cfg.MaxDeclines),
		checkoutservice.WithMetrics(m),
	)

	// Background workers
	workerCtx, stopWorkers := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(4)
	go func() {
		defer wg.Done()
		poller.Run(workerCtx)
	}()
	go func() {
		defer wg.Done()
		flagConsumer.Run(workerCtx)
	}()
	go func() {
		defer wg.Done()
		checkout.RunReaper(workerCtx, cfg.ReaperInterval, cfg.CheckoutIdleTTL)
	}()
	go func() {
		defer wg.Done()
		carts.RunEvictor(workerCtx, cfg.ReaperInterval, cfg.CartIdleTTL)
	}()

	router := h.NewRouter(h.RouterConfig{
		Cart:               h.NewCartHandler(carts, catalog, cfg.RequestTimeout),
		Checkout:           h.NewCheckoutHandler(checkout, cfg.RequestTimeout, cfg.PayWaitTimeout),
		Products:           h.NewProductHandler(catalog, cfg.RequestTimeout),
		Orders:             h.NewOrdersHandler(orders, cfg.RequestTimeout),
		Metrics:            m.Handler(),
		Log:                log,
		RequestTimeout:     cfg.RequestTimeout,
		MaxRequestBodySize: cfg.MaxRequestBodySize,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("storefront listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down storefront...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	if sandboxSrv != nil {
		_ = sandboxSrv.Shutdown(shutdownCtx)
	}

	stopWorkers()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		log.Info("workers stopped cleanly")
	case <-shutdownCtx.Done():
		log.Warn("workers didn't stop in time")
	}
	flagConsumer.Close()

	log.Info("storefront stopped")
}

func openSlot(ctx context.Context, cfg *Config, log *zap.Logger) (cache.Slot, func(), error) {
	switch cfg.SlotBackend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		log.Info("redis ping succeeded", zap.String("addr", cfg.RedisAddr))
		return cache.NewRedisSlot(client, cfg.SlotTTL), func() { _ = client.Close() }, nil
	case "mongo":
		db, err := cartrepo.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			return nil, nil, err
		}
		slot := cartrepo.NewMongoSlot(db)
		if err := slot.CreateIndexes(ctx); err != nil {
			log.Warn("failed to create cart slot indexes", zap.Error(err))
		}
		log.Info("connected to mongodb", zap.String("db", cfg.MongoDBName))
		return slot, func() { _ = db.Client().Disconnect(context.Background()) }, nil
	case "memory":
		log.Warn("cart slot is in memory, carts are lost on restart")
		return cache.NewMemorySlot(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown cart slot backend %q", cfg.SlotBackend)
	}
}

func openOrders(cfg *Config, log *zap.Logger) (ordersrepo.Repository, error) {
	switch cfg.OrdersBackend {
	case "postgres":
		repo, err := ordersrepo.NewPostgresRepository(&ordersrepo.Credentials{
			Host:     cfg.DBHost,
			Port:     cfg.DBPort,
			User:     cfg.DBUser,
			Password: cfg.DBPassword,
			DBName:   cfg.DBName,
		}, log)
		if err != nil {
			return nil, err
		}
		if err := repo.RunMigrations(); err != nil {
			_ = repo.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		log.Info("orders database migrations completed")
		return repo, nil
	case "memory":
		log.Warn("orders are kept in memory")
		return ordersrepo.NewMemoryRepository(), nil
	default:
		return nil, fmt.Errorf("unknown orders backend %q", cfg.OrdersBackend)
	}
}

func startSandbox(cfg *Config, log *zap.Logger) *http.Server {
	var decider sandbox.Decider = sandbox.RandomDecider{}
	if cfg.SandboxDecider == "token" {
		decider = sandbox.TokenDecider{}
	}
	srv := &http.Server{
		Addr:              ":" + cfg.SandboxPort,
		Handler:           sandbox.NewServer(decider, log.Named("sandbox")).Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("payment sandbox listening", zap.String("addr", srv.Addr), zap.String("decider", cfg.SandboxDecider))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("sandbox server error", zap.Error(err))
		}
	}()
	return srv
}
