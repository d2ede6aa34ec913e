package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rl1809/vending/internal/adapter/handler"
	"github.com/rl1809/vending/internal/adapter/messaging"
	"github.com/rl1809/vending/internal/adapter/payment"
	"github.com/rl1809/vending/internal/adapter/storage"
	"github.com/rl1809/vending/internal/config"
	"github.com/rl1809/vending/internal/core/domain"
	"github.com/rl1809/vending/internal/core/inventory"
	"github.com/rl1809/vending/internal/core/service"
	"github.com/rl1809/vending/internal/port"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.App.Env)
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: 20,
	})
	defer rdb.Close()

	var redisAdapter *storage.RedisAdapter
	if err := rdb.Ping(ctx).Err(); err != nil {
		if cfg.Vending.PaymentMode == config.PaymentModeCard {
			logger.Fatal("failed to connect redis", zap.Error(err))
		}
		logger.Warn("redis unavailable, purchase deduplication disabled", zap.Error(err))
	} else {
		redisAdapter = storage.NewRedisAdapter(rdb)
		logger.Info("connected to redis", zap.String("addr", cfg.Redis.Addr))
	}

	// Initialize sale sinks
	var sinks []port.SaleRepository

	if cfg.MySQL.DSN != "" {
		db, err := sql.Open("mysql", cfg.MySQL.DSN)
		if err != nil {
			logger.Fatal("failed to open mysql", zap.Error(err))
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
		defer db.Close()

		if err := db.PingContext(ctx); err != nil {
			logger.Fatal("failed to ping mysql", zap.Error(err))
		}
		mysqlAdapter := storage.NewMySQLAdapter(db)
		if err := mysqlAdapter.EnsureSchema(ctx); err != nil {
			logger.Fatal("failed to prepare sales ledger", zap.Error(err))
		}
		sinks = append(sinks, mysqlAdapter)
		logger.Info("connected to mysql")
	}

	if len(cfg.Kafka.Brokers) > 0 {
		publisher := messaging.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer publisher.Close()
		sinks = append(sinks, publisher)
		logger.Info("publishing sales to kafka", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	// Initialize payment handler
	paymentHandler, err := newPaymentHandler(ctx, cfg, redisAdapter)
	if err != nil {
		logger.Fatal("failed to initialize payment handler", zap.Error(err))
	}

	// Initialize service
	opts := []service.Option{
		service.WithLogger(logger),
		service.WithSaleQueue(cfg.Workers.QueueSize),
	}
	if cfg.Vending.ReleaseTxOnSuccess {
		opts = append(opts, service.WithReleaseOnSuccess())
	}
	vendingService := service.NewVendingService(inventory.NewStore(cfg.Vending.Capacity), paymentHandler, opts...)

	if err := seedInventory(ctx, vendingService, cfg.Vending.Items); err != nil {
		logger.Fatal("failed to seed inventory", zap.Error(err))
	}
	logger.Info("inventory ready", zap.Int("items", len(vendingService.List(ctx))), zap.String("payment", cfg.Vending.PaymentMode))

	// Start worker pool
	workers := service.StartSaleWorkers(cfg.Workers.Count, vendingService.SaleQueue(), sinks, logger)
	logger.Info("started sale workers", zap.Int("count", cfg.Workers.Count), zap.Int("sinks", len(sinks)))

	// idempotency stays a nil interface when redis is down
	var idempotency port.IdempotencyRepository
	if redisAdapter != nil {
		idempotency = redisAdapter
	}

	// Initialize gRPC server
	grpcServer := grpc.NewServer()
	handler.RegisterVendingServer(grpcServer, handler.NewGRPCHandler(vendingService, idempotency, logger))
	healthServer := health.NewServer()
	healthServer.SetServingStatus(handler.VendingServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.App.GRPCPort))
	if err != nil {
		logger.Fatal("failed to listen", zap.Error(err))
	}

	go func() {
		logger.Info("gRPC server listening", zap.Int("port", cfg.App.GRPCPort))
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC server error", zap.Error(err))
		}
	}()

	// Initialize HTTP server
	mux := http.NewServeMux()
	handler.NewHTTPHandler(vendingService, idempotency, logger).Register(mux)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.HTTPPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", zap.Int("port", cfg.App.HTTPPort))
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	logger.Info("HTTP server stopped")

	healthServer.Shutdown()
	grpcServer.GracefulStop()
	logger.Info("gRPC server stopped")

	// Close sale queue and wait for workers
	vendingService.Close()
	workers.Wait()
	logger.Info("workers stopped")
}

func newLogger(env string) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if env == "local" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

func newPaymentHandler(ctx context.Context, cfg *config.Config, wallet *storage.RedisAdapter) (port.PaymentHandler, error) {
	if cfg.Vending.PaymentMode != config.PaymentModeCard {
		return payment.NewCashHandler(), nil
	}

	account := cfg.Vending.CardAccount
	if cfg.Vending.CardBalance != "" {
		balance, err := wallet.Balance(ctx, account)
		if err != nil {
			return nil, fmt.Errorf("read card balance: %w", err)
		}
		if balance == 0 {
			seed := decimal.RequireFromString(cfg.Vending.CardBalance)
			if err := wallet.SetBalance(ctx, account, payment.ToMinor(seed)); err != nil {
				return nil, fmt.Errorf("seed card balance: %w", err)
			}
		}
	}
	return payment.NewCardHandler(wallet, account), nil
}

func seedInventory(ctx context.Context, svc *service.VendingService, items []config.SeedItem) error {
	for _, item := range items {
		price, err := decimal.NewFromString(item.Price)
		if err != nil {
			return fmt.Errorf("price of %s: %w", item.Code, err)
		}
		product := domain.NewProduct(item.Code, item.Name, item.Count, price)
		if err := svc.Stock(ctx, product, item.Position); err != nil {
			return err
		}
	}
	return nil
}
