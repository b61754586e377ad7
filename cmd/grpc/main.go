package main

import (
	"context"
	"log"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fekuna/omnipos-stock-service/config"
	"github.com/fekuna/omnipos-stock-service/internal/middleware"
	"github.com/fekuna/omnipos-stock-service/internal/pkg/broker"
	"github.com/fekuna/omnipos-stock-service/internal/pkg/cache"
	"github.com/fekuna/omnipos-stock-service/internal/pkg/httpserver"
	"github.com/fekuna/omnipos-stock-service/internal/pkg/logger"
	"github.com/fekuna/omnipos-stock-service/internal/pkg/postgres"
	"github.com/fekuna/omnipos-stock-service/internal/pkg/ratelimit"
	"github.com/fekuna/omnipos-stock-service/internal/pkg/tracing"
	"github.com/fekuna/omnipos-stock-service/internal/pin"
	"github.com/fekuna/omnipos-stock-service/migrations"

	articleRepoPkg "github.com/fekuna/omnipos-stock-service/internal/article/repository"
	auditRepoPkg "github.com/fekuna/omnipos-stock-service/internal/audit/repository"
	auditUCPkg "github.com/fekuna/omnipos-stock-service/internal/audit/usecase"
	cartHandlerPkg "github.com/fekuna/omnipos-stock-service/internal/cart/handler"
	cartRepoPkg "github.com/fekuna/omnipos-stock-service/internal/cart/repository"
	cartUCPkg "github.com/fekuna/omnipos-stock-service/internal/cart/usecase"
	orderHandlerPkg "github.com/fekuna/omnipos-stock-service/internal/order/handler"
	orderRepoPkg "github.com/fekuna/omnipos-stock-service/internal/order/repository"
	orderUCPkg "github.com/fekuna/omnipos-stock-service/internal/order/usecase"
	pinRepoPkg "github.com/fekuna/omnipos-stock-service/internal/pin/repository"
	pinUCPkg "github.com/fekuna/omnipos-stock-service/internal/pin/usecase"
	resHandlerPkg "github.com/fekuna/omnipos-stock-service/internal/reservation/handler"
	resRepoPkg "github.com/fekuna/omnipos-stock-service/internal/reservation/repository"
	resUCPkg "github.com/fekuna/omnipos-stock-service/internal/reservation/usecase"
	stockHandlerPkg "github.com/fekuna/omnipos-stock-service/internal/stock/handler"
	stockListenerPkg "github.com/fekuna/omnipos-stock-service/internal/stock/listener"
	stockRepoPkg "github.com/fekuna/omnipos-stock-service/internal/stock/repository"
	stockUCPkg "github.com/fekuna/omnipos-stock-service/internal/stock/usecase"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

const pinCleanupInterval = 10 * time.Minute

func main() {
	// 1. Load Configuration
	_ = godotenv.Load()
	cfg := config.LoadEnv()

	// 2. Initialize Logger
	logConfig := &logger.ZapLoggerConfig{
		IsDevelopment:     false,
		Encoding:          "json",
		Level:             cfg.Logger.Level,
		DisableCaller:     cfg.Logger.DisableCaller,
		DisableStacktrace: cfg.Logger.DisableStacktrace,
	}
	if cfg.Server.AppEnv == "development" || cfg.Server.AppEnv == "dev" {
		logConfig.IsDevelopment = true
		logConfig.Encoding = cfg.Logger.Encoding
	}

	appLogger := logger.NewZapLogger(logConfig)
	defer appLogger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Tracing
	shutdownTracing, err := tracing.Setup(ctx, &tracing.Config{
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		Insecure:    cfg.Tracing.Insecure,
	})
	if err != nil {
		appLogger.Warn("Tracing disabled", zap.Error(err))
	}
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		_ = shutdownTracing(shutdownCtx)
	}()

	// 4. Connect to Database
	db, err := postgres.NewPostgres(&postgres.Config{
		Host:            cfg.Postgres.Host,
		Port:            cfg.Postgres.Port,
		User:            cfg.Postgres.User,
		Password:        cfg.Postgres.Password,
		DBName:          cfg.Postgres.DBName,
		SSLMode:         cfg.Postgres.SSLMode,
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Postgres.ConnMaxLifetime) * time.Second,
		ConnMaxIdleTime: time.Duration(cfg.Postgres.ConnMaxIdleTime) * time.Second,
	})
	if err != nil {
		appLogger.Fatal("Could not connect to database", zap.Error(err))
	}
	defer db.Close()
	appLogger.Info("Connected to PostgreSQL database", zap.String("db_name", cfg.Postgres.DBName))

	if cfg.Postgres.AutoMigrate {
		if err := postgres.Migrate(db, migrations.FS); err != nil {
			appLogger.Fatal("Could not apply migrations", zap.Error(err))
		}
		appLogger.Info("Database migrations applied")
	}

	txManager := postgres.NewTxManager(db, time.Duration(cfg.Postgres.LockTimeoutMS)*time.Millisecond)

	// 5. Initialize Repositories
	articleRepo := articleRepoPkg.NewPGRepository(db)
	auditRepo := auditRepoPkg.NewPGRepository(db)
	stockRepo := stockRepoPkg.NewPGRepository(db)
	cartRepo := cartRepoPkg.NewPGRepository(db)
	orderRepo := orderRepoPkg.NewPGRepository(db)
	resRepo := resRepoPkg.NewPGRepository(db)
	pinRepo := pinRepoPkg.NewPGRepository(db)

	// 6. Initialize Redis
	redisClient, err := cache.NewRedisClient(&cache.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		appLogger.Fatal("Could not connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	appLogger.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr))

	// 7. Initialize Kafka
	kafkaProducer := broker.NewProducer(&broker.Config{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.EventsTopic,
	})
	defer kafkaProducer.Close()

	kafkaConsumer := broker.NewConsumer(&broker.Config{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.ConsumptionTopic,
		GroupID: cfg.Kafka.GroupID,
	})
	defer kafkaConsumer.Close()
	appLogger.Info("Connected to Kafka",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("consumption_topic", cfg.Kafka.ConsumptionTopic),
		zap.String("events_topic", cfg.Kafka.EventsTopic),
	)

	// 8. Initialize UseCases
	auditUC := auditUCPkg.NewAuditUseCase(auditRepo, txManager, appLogger)
	stockUC := stockUCPkg.NewStockUseCase(stockRepo, auditUC, txManager, redisClient, kafkaProducer, stockUCPkg.Options{
		AlertWindow: cfg.Stock.AlertWindow,
		CacheTTL:    cfg.Redis.StockTTL,
	}, appLogger)
	pinUC := pinUCPkg.NewPINUseCase(pinRepo, pinUCPkg.Options{
		Length:     cfg.Stock.PINLength,
		Expiry:     cfg.Stock.PINExpiry,
		Salt:       cfg.Stock.PINSalt,
		Iterations: cfg.Stock.PINIterations,
	}, appLogger)
	orderUC := orderUCPkg.NewOrderUseCase(orderRepo, stockUC, pinUC, auditUC, txManager, kafkaProducer, orderUCPkg.Options{
		SignatureMaxSize: cfg.Stock.SignatureMaxSize,
	}, appLogger)
	cartUC := cartUCPkg.NewCartUseCase(cartRepo, articleRepo, orderUC, auditUC, txManager, appLogger)
	resUC := resUCPkg.NewReservationUseCase(resRepo, stockUC, auditUC, txManager, appLogger)

	// 9. Start Listener and background jobs
	consumptionListener := stockListenerPkg.NewConsumptionListener(kafkaConsumer, stockUC, appLogger)
	go consumptionListener.Start(ctx)
	go cleanupPINs(ctx, pinUC, appLogger)

	// 10. Start HTTP side server
	httpSrv := httpserver.New(cfg.Server.HTTPAddr, db.PingContext, redisClient.Ping)
	go func() {
		if err := httpSrv.Start(); err != nil {
			appLogger.Error("HTTP server stopped", zap.Error(err))
		}
	}()

	// 11. Start gRPC Server
	port := cfg.Server.GRPCPort
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}

	lis, err := net.Listen("tcp", port)
	if err != nil {
		log.Fatalf("failed to listen: %v", err)
	}

	limiter := ratelimit.NewRedisLimiter(redisClient.Client(), cfg.RateLimit.Burst, time.Second,
		ratelimit.NewKeyedLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst))

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			middleware.ContextInterceptor(),
			middleware.ErrorInterceptor(appLogger),
			middleware.RateLimitInterceptor(limiter),
		),
	)

	// Register Handlers (JSON payloads, content subtype "json")
	stockHandlerPkg.NewStockHandler(stockUC, appLogger).Register(grpcServer)
	cartHandlerPkg.NewCartHandler(cartUC, appLogger).Register(grpcServer)
	orderHandlerPkg.NewOrderHandler(orderUC, appLogger).Register(grpcServer)
	resHandlerPkg.NewReservationHandler(resUC, appLogger).Register(grpcServer)

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	// Register Reflection
	reflection.Register(grpcServer)

	appLogger.Info("Starting gRPC server", zap.String("port", port), zap.String("http_addr", cfg.Server.HTTPAddr))

	// Graceful Shutdown
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			appLogger.Fatal("failed to serve", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	cancel()
	healthServer.Shutdown()
	grpcServer.GracefulStop()

	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("HTTP server shutdown failed", zap.Error(err))
	}
	appLogger.Info("Server stopped")
}

func cleanupPINs(ctx context.Context, uc pin.UseCase, log logger.ZapLogger) {
	ticker := time.NewTicker(pinCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := uc.CleanupExpired(ctx); err != nil {
				log.Error("Failed to clean up expired pins", zap.Error(err))
			}
		}
	}
}
