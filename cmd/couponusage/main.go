package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-laundry-cart/internal/config"
	"github.com/ariefcatur/go-laundry-cart/internal/coupons"
	"github.com/ariefcatur/go-laundry-cart/internal/couponusage"
	kafkax "github.com/ariefcatur/go-laundry-cart/internal/kafka"
	"github.com/ariefcatur/go-laundry-cart/internal/logx"
	"github.com/ariefcatur/go-laundry-cart/internal/orders"
	"github.com/ariefcatur/go-laundry-cart/internal/postgres"
	"github.com/ariefcatur/go-laundry-cart/internal/redisx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger, err := logx.New(cfg.ServiceName+"-couponusage", cfg.LogLevel)
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

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &couponusage.Service{
		Coupons: &coupons.Repo{DB: db},
		Redis:   rdb,
		Log:     logger,
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.CouponUsageGroup, orders.TopicOrderPlaced, cfg.CouponUsageWorker, logger)
	go func() {
		logger.Info("coupon usage consumer started",
			zap.String("group", cfg.CouponUsageGroup), zap.String("topic", orders.TopicOrderPlaced),
			zap.Int("workers", cfg.CouponUsageWorker))
		if err := cons.Start(ctx, svc.HandleOrderPlaced); err != nil {
			logger.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	logger.Info("shutting down consumer")
	cancel()
	time.Sleep(500 * time.Millisecond)
}
