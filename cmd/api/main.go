package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-fulfillment/internal/checkout"
	"github.com/ariefcatur/go-order-fulfillment/internal/config"
	"github.com/ariefcatur/go-order-fulfillment/internal/coupons"
	"github.com/ariefcatur/go-order-fulfillment/internal/httpx"
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
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.OTelEnabled {
		shutdown, err := telemetry.SetupTracer(ctx, cfg.ServiceName, cfg.OTelEndpoint)
		if err != nil {
			logger.Fatal("tracer", zap.Error(err))
		}
		defer func() {
			sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer scancel()
			_ = shutdown(sctx)
		}()
	}

	// Ledger
	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("store", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	defer closeStore()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	cache := redisx.NewCache(rdb)

	m := metrics.New(prometheus.DefaultRegisterer)
	inv := inventory.NewManager(store, logger, m)
	cpn := coupons.NewEvaluator(store, logger, m)
	orch := checkout.New(store, inv, cpn, checkout.Pricing{
		TaxRate:          cfg.TaxRate,
		ShippingFlatRate: cfg.ShippingFlatRate,
		Currency:         cfg.Currency,
	}, logger, m)

	// Kafka producer
	var prod *kafkax.Producer
	if cfg.KafkaEnabled {
		prod = kafkax.NewProducer(cfg.Brokers(), 1024, logger)
		prod.Start(ctx)
		orch = orch.WithPublisher(prod, cfg.ServiceName)
	}

	router := httpx.NewRouter(logger, m)
	(&httpx.OrdersHandler{Checkout: orch, Cache: cache, Logger: logger}).Register(router)
	(&httpx.InventoryHandler{Manager: inv, Logger: logger}).Register(router)
	(&httpx.CouponsHandler{Coupons: cpn, Store: store, Logger: logger}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr), zap.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")

	sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer scancel()
	_ = srv.Shutdown(sctx)
	if prod != nil {
		prod.Close() // tutup inbox -> flush & close writer
		prod.WaitClosed()
	}
	cancel()
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (orders.Store, func(), error) {
	if cfg.StoreDriver == "sqlite" {
		s, err := sqlite.Open(cfg.SQLitePath, cfg.MaxTxRetries, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	}

	pool, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns)
	if err != nil {
		return nil, nil, err
	}
	if err := postgres.ApplySchema(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return postgres.NewStore(pool, cfg.MaxTxRetries, logger), pool.Close, nil
}
