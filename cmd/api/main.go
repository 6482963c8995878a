package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-laundry-cart/internal/addresses"
	"github.com/ariefcatur/go-laundry-cart/internal/carts"
	"github.com/ariefcatur/go-laundry-cart/internal/config"
	"github.com/ariefcatur/go-laundry-cart/internal/coupons"
	"github.com/ariefcatur/go-laundry-cart/internal/httpx"
	kafkax "github.com/ariefcatur/go-laundry-cart/internal/kafka"
	"github.com/ariefcatur/go-laundry-cart/internal/logx"
	"github.com/ariefcatur/go-laundry-cart/internal/orders"
	"github.com/ariefcatur/go-laundry-cart/internal/postgres"
	"github.com/ariefcatur/go-laundry-cart/internal/pricing"
	"github.com/ariefcatur/go-laundry-cart/internal/redisx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger, err := logx.New(cfg.ServiceName, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()
	if cfg.MigrateOnStart {
		if err := postgres.Migrate(db); err != nil {
			logger.Fatal("migrate", zap.Error(err))
		}
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer, fed by the outbox relay
	prod := kafkax.NewProducer(cfg.KafkaBrokers)
	defer prod.Close()

	calc := pricing.Calculator{DeliveryFee: cfg.DeliveryFee, TaxRate: cfg.TaxRate}

	// Carts
	cartRepo := &carts.Repo{DB: db}
	registry, err := carts.NewRegistry(cartRepo, &redisx.BlobStore{Client: rdb, TTL: cfg.SessionCartTTL}, cfg.CartRegistrySize, logger)
	if err != nil {
		logger.Fatal("cart registry", zap.Error(err))
	}
	locker := &redisx.Locker{Client: rdb}
	registry.UseSessionLock(locker)
	counts := &redisx.CountCache{Client: rdb}
	registry.OnChange(func(owner string, lines []carts.Line) {
		cctx, ccancel := context.WithTimeout(context.Background(), time.Second)
		defer ccancel()
		if err := counts.Set(cctx, owner, pricing.Count(carts.Items(lines))); err != nil {
			logger.Warn("cache cart count", zap.String("owner", owner), zap.Error(err))
		}
	})
	merger := &carts.Merger{Repo: cartRepo, Locker: locker, Log: logger}

	// Coupons, addresses, orders
	couponSvc := &coupons.Service{Repo: &coupons.Repo{DB: db}, Validator: coupons.NewValidator(calc)}
	addressSvc := &addresses.Service{Repo: &addresses.Repo{DB: db}}
	orderRepo := &orders.Repo{DB: db}
	orderSvc := &orders.Service{
		Store:     orderRepo,
		Carts:     registry,
		Coupons:   couponSvc,
		Addresses: addressSvc,
		Producer:  cfg.ServiceName,
		Log:       logger,
	}

	relay := &orders.Relay{Store: orderRepo, Publisher: prod, Log: logger, Interval: cfg.OutboxInterval}
	go relay.Run(ctx)

	router := httpx.NewRouter(logger)
	(&httpx.CartHandler{
		Carts:   registry,
		Merger:  merger,
		Coupons: couponSvc,
		Calc:    calc,
		Counts:  counts,
		Log:     logger,
	}).Register(router)
	(&httpx.OrdersHandler{Addresses: addressSvc, Orders: orderSvc, Log: logger}).Register(router)

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	// graceful shutdown
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	cancel() // stop relay
}
