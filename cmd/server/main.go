package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/simaogato/portfolio-valuation/internal/adapter/events"
	grpcadapter "github.com/simaogato/portfolio-valuation/internal/adapter/grpc"
	httpadapter "github.com/simaogato/portfolio-valuation/internal/adapter/http"
	"github.com/simaogato/portfolio-valuation/internal/adapter/lock"
	"github.com/simaogato/portfolio-valuation/internal/adapter/repository/memory"
	"github.com/simaogato/portfolio-valuation/internal/adapter/repository/postgres"
	"github.com/simaogato/portfolio-valuation/internal/domain"
	"github.com/simaogato/portfolio-valuation/internal/platform/config"
	"github.com/simaogato/portfolio-valuation/internal/platform/logger"
	"github.com/simaogato/portfolio-valuation/internal/usecase/deposit"
	"github.com/simaogato/portfolio-valuation/internal/usecase/overview"
	"github.com/simaogato/portfolio-valuation/internal/usecase/pricing"
	"github.com/simaogato/portfolio-valuation/internal/usecase/replay"
	"github.com/simaogato/portfolio-valuation/internal/usecase/rollup"
	"github.com/simaogato/portfolio-valuation/internal/usecase/seeder"
	"github.com/simaogato/portfolio-valuation/internal/usecase/trade"
	"github.com/simaogato/portfolio-valuation/internal/usecase/valuation"
)

const serviceName = "portfolio-valuation"

func main() {
	cfg, err := config.Load("config")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(serviceName, cfg.Log.Level, cfg.Log.Pretty)
	log.Info().Msg("Starting portfolio valuation service")

	initialValue, err := cfg.Valuation.InitialValueDecimal()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid valuation config")
	}
	tolerance, err := cfg.Valuation.WeightToleranceDecimal()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid valuation config")
	}

	ctx := context.Background()

	// 1. Setup storage
	repos, uow, closeStore := setupStorage(ctx, cfg.Database, log)
	defer closeStore()

	// 2. Seed the cash asset
	cash, err := seeder.NewSystemSeeder(repos.Assets).Seed(ctx, seeder.CashAsset(cfg.Valuation.CashAssetSymbol))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to seed cash asset")
	}
	log.Info().Int64("asset_id", cash.ID).Str("symbol", cash.Symbol).Msg("Cash asset ready")

	// 3. Locks and notifications
	locker := setupLocker(ctx, cfg.Redis, log)

	var publisher domain.Publisher = &events.LogPublisher{Logger: log}
	if cfg.Kafka.Enabled {
		kafkaPublisher := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, serviceName)
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("Publishing notifications to kafka")
	}

	// 4. Initialize Services (Use Cases)
	valuationService := valuation.NewValuationService(repos, replay.NewReplayer(cash.ID, log), log)
	valuationService.WeightTolerance = tolerance
	overviewService := overview.NewOverviewService(repos)
	overviewService.Tolerance = tolerance

	tradeService := trade.NewTradeService(uow, locker, publisher, cash.ID, log)
	depositService := deposit.NewDepositService(uow, locker, publisher, cash.ID, log)
	pricingService := pricing.NewPricingService(repos.Assets, repos.Prices, log)
	rollupService := rollup.NewService(uow, locker, cash.ID, log)
	defaultInitial := decimal.NewNullDecimal(initialValue)

	// 5. Start gRPC Server
	grpcServer := grpclib.NewServer(
		grpclib.ChainUnaryInterceptor(
			grpcadapter.LoggingInterceptor(log),
			grpcadapter.MetricsInterceptor(),
			grpcadapter.AuthInterceptor(cfg.Server.APIToken),
		),
	)
	grpcadapter.RegisterValuationServer(grpcServer, grpcadapter.NewServer(
		valuationService,
		tradeService,
		depositService,
		pricingService,
		overviewService,
		rollupService,
		defaultInitial,
	))
	reflection.Register(grpcServer)

	grpcAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.GRPCPort)
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		log.Fatal().Err(err).Str("addr", grpcAddr).Msg("Failed to listen")
	}
	go func() {
		log.Info().Str("addr", grpcAddr).Msg("gRPC server listening")
		if err := grpcServer.Serve(lis); err != nil {
			log.Fatal().Err(err).Msg("Failed to serve gRPC server")
		}
	}()

	// 6. Start HTTP Server
	app := httpadapter.NewRouter(&httpadapter.Handler{
		ValuationService: valuationService,
		TradeService:     tradeService,
		DepositService:   depositService,
		PricingService:   pricingService,
		OverviewService:  overviewService,
		RollupService:    rollupService,
		InitialValue:     defaultInitial,
	}, httpadapter.RouterConfig{
		AppName:  serviceName,
		APIToken: cfg.Server.APIToken,
		Logger:   log,
	})

	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HTTPPort)
	go func() {
		log.Info().Str("addr", httpAddr).Msg("HTTP server listening")
		if err := app.Listen(httpAddr); err != nil {
			log.Fatal().Err(err).Msg("Failed to serve HTTP server")
		}
	}()

	// Graceful shutdown
	waitForShutdown(grpcServer, app, log)
}

func setupStorage(ctx context.Context, cfg config.DatabaseConfig, log zerolog.Logger) (domain.Repositories, domain.UnitOfWork, func()) {
	if cfg.Driver == "memory" {
		log.Warn().Msg("Using in-memory storage, data is lost on restart")
		store := memory.NewStore()
		return store.Repositories(), store, func() {}
	}

	db, err := connectWithRetry(cfg.ConnString(), 5, 2*time.Second, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	log.Info().Msg("Connected to database")

	if cfg.Migrate {
		if err := db.Migrate(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to migrate database")
		}
	}

	closeDB := func() {
		if err := db.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database")
		}
	}
	return postgres.Repositories(db), postgres.NewUnitOfWork(db), closeDB
}

func connectWithRetry(connStr string, attempts int, delay time.Duration, log zerolog.Logger) (*postgres.DB, error) {
	var err error
	for i := 1; i <= attempts; i++ {
		var db *postgres.DB
		if db, err = postgres.NewDB(connStr); err == nil {
			return db, nil
		}
		log.Warn().Err(err).Int("attempt", i).Msg("Database not ready")
		time.Sleep(delay)
	}
	return nil, err
}

func setupLocker(ctx context.Context, cfg config.RedisConfig, log zerolog.Logger) domain.PortfolioLocker {
	if !cfg.Enabled {
		return lock.NewLocalLocker()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Str("addr", cfg.Addr()).Msg("Failed to connect to redis")
	}
	log.Info().Str("addr", cfg.Addr()).Msg("Using redis portfolio locks")
	return lock.NewRedisLocker(client, cfg.LockTTL, log)
}

// waitForShutdown waits for SIGTERM or SIGINT and gracefully shuts down both servers
func waitForShutdown(grpcServer *grpclib.Server, app *fiber.App, log zerolog.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error().Err(err).Msg("Error during HTTP shutdown")
	}
	grpcServer.GracefulStop()
	log.Info().Msg("Servers stopped")
}
