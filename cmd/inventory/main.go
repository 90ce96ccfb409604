package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-fulfillment/internal/apperr"
	"github.com/ariefcatur/go-order-fulfillment/internal/config"
	"github.com/ariefcatur/go-order-fulfillment/internal/inventory"
	kafkax "github.com/ariefcatur/go-order-fulfillment/internal/kafka"
	"github.com/ariefcatur/go-order-fulfillment/internal/metrics"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
	"github.com/ariefcatur/go-order-fulfillment/internal/postgres"
	"github.com/ariefcatur/go-order-fulfillment/internal/redisx"
	"github.com/ariefcatur/go-order-fulfillment/internal/sqlite"
	"github.com/ariefcatur/go-order-fulfillment/internal/telemetry"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger, err := telemetry.NewLogger(cfg.LogLevel, cfg.Env)
	if err != nil {
		panic(err)
	}
	logger = logger.With(zap.String("service", cfg.ServiceName+"-inventory"))
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var store orders.Store
	switch cfg.StoreDriver {
	case "sqlite":
		s, err := sqlite.Open(cfg.SQLitePath, cfg.MaxTxRetries, logger)
		if err != nil {
			logger.Fatal("sqlite", zap.Error(err))
		}
		defer s.Close()
		store = s
	default:
		pool, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns)
		if err != nil {
			logger.Fatal("db", zap.Error(err))
		}
		defer pool.Close()
		if err := postgres.ApplySchema(ctx, pool); err != nil {
			logger.Fatal("schema", zap.Error(err))
		}
		store = postgres.NewStore(pool, cfg.MaxTxRetries, logger)
	}

	// Redis dedup
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	m := metrics.New(prometheus.DefaultRegisterer)
	receipts := inventory.NewReceiptHandler(inventory.NewManager(store, logger, m), redisx.NewCache(rdb), logger)

	cons := kafkax.NewConsumer(cfg.Brokers(), cfg.InventoryGroup, orders.TopicStockReceived, cfg.InventoryWorkers, logger)
	handle := func(ctx context.Context, msg kafka.Message) error {
		env, err := kafkax.UnmarshalEnvelope(msg.Value)
		if err == nil {
			err = receipts.Handle(ctx, env)
		}
		if permanent(err) {
			// skip poison messages, redelivery would fail the same way
			logger.Error("receipt dropped",
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(err))
			return nil
		}
		return err
	}

	go func() {
		logger.Info("inventory consumer started",
			zap.String("group", cfg.InventoryGroup),
			zap.String("topic", orders.TopicStockReceived),
			zap.Int("workers", cfg.InventoryWorkers))
		if err := cons.Start(ctx, handle); err != nil {
			logger.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	logger.Info("shutting down consumer")
	cancel()
}

func permanent(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, kafkax.ErrBadEnvelope) || errors.Is(err, inventory.ErrNotReceipt) {
		return true
	}
	switch apperr.KindOf(err) {
	case apperr.KindBadRequest, apperr.KindNotFound:
		return true
	}
	return false
}
