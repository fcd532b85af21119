package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	accountcmd "github.com/eaglebank/ledger-service/internal/command"
	"github.com/eaglebank/ledger-service/internal/config"
	"github.com/eaglebank/ledger-service/internal/database"
	"github.com/eaglebank/ledger-service/internal/handler"
	accountqry "github.com/eaglebank/ledger-service/internal/query"
	"github.com/eaglebank/ledger-service/internal/repository"
	"github.com/eaglebank/ledger-service/shared/events"
	"github.com/eaglebank/ledger-service/shared/logger"
	"github.com/eaglebank/ledger-service/shared/middleware"
	"github.com/eaglebank/ledger-service/shared/models"
	sharedredis "github.com/eaglebank/ledger-service/shared/redis"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = appLogger.Sync() }()

	if err := run(cfg, appLogger); err != nil {
		appLogger.Fatal("Ledger service stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, appLogger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Write store
	store, closeStore, err := openStore(cfg, appLogger)
	if err != nil {
		return err
	}
	defer closeStore()

	// Redis (optional read cache + event stream)
	var redisClient *sharedredis.Client
	if cfg.Redis.Addr != "" {
		redisClient, err = sharedredis.NewClient(ctx, sharedredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err != nil {
			return err
		}
		defer redisClient.Close()
		appLogger.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr))
	}

	publisher, closePublisher, err := newPublisher(cfg, redisClient, appLogger)
	if err != nil {
		return err
	}
	defer closePublisher()

	// --- CQRS wiring ---
	var cache *sharedredis.ViewCache[models.Account]
	if redisClient != nil {
		cache = sharedredis.NewViewCache[models.Account](redisClient.Client, repository.AccountViewKeyPrefix, cfg.CacheTTL, appLogger)
	}
	readRepo := repository.NewAccountReadRepository(store, cache, appLogger)

	commandSvc := accountcmd.NewAccountCommandService(store, readRepo, publisher, appLogger)
	querySvc := accountqry.NewAccountQueryService(readRepo, appLogger)

	accountHandler := handler.NewAccountHandler(commandSvc, querySvc, appLogger)
	transactionHandler := handler.NewTransactionHandler(commandSvc, appLogger)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(middleware.RequestID(), middleware.LoggingMiddleware(appLogger), gin.Recovery())
	handler.RegisterRoutes(router, accountHandler, transactionHandler)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	serveErr := make(chan error, 1)
	go func() {
		appLogger.Info("Ledger service starting",
			zap.String("port", cfg.Port),
			zap.String("store", cfg.StoreDriver),
			zap.String("event_broker", cfg.EventBroker),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Graceful shutdown
	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	appLogger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	appLogger.Info("Server exited")
	return nil
}

// openStore builds the configured Account Store and returns its cleanup.
func openStore(cfg *config.Config, appLogger *zap.Logger) (repository.AccountStore, func(), error) {
	pool := database.PoolConfig{
		MaxOpenConns:    cfg.Pool.MaxOpenConns,
		MaxIdleConns:    cfg.Pool.MaxIdleConns,
		ConnMaxLifetime: cfg.Pool.ConnMaxLifetime,
	}

	switch cfg.StoreDriver {
	case config.StorePostgres:
		db, err := database.OpenPostgres(cfg.DatabaseURL, pool, database.DefaultRetry, appLogger)
		if err != nil {
			return nil, nil, err
		}
		if cfg.MigrateOnStart {
			appLogger.Info("Running database migrations...")
			if err := database.Migrate(cfg.DatabaseURL, appLogger); err != nil {
				_ = db.Close()
				return nil, nil, err
			}
		}
		closeFn := func() {
			if err := db.Close(); err != nil {
				appLogger.Error("Error closing database connection", zap.Error(err))
			}
		}
		return repository.NewPostgresAccountRepository(db), closeFn, nil

	case config.StoreMySQL:
		db, err := database.OpenMySQL(database.MySQLConfig{
			Host:     cfg.MySQL.Host,
			Port:     cfg.MySQL.Port,
			User:     cfg.MySQL.User,
			Password: cfg.MySQL.Password,
			DBName:   cfg.MySQL.DBName,
			LogLevel: cfg.MySQL.LogLevel,
			Pool:     pool,
		}, database.DefaultRetry, appLogger)
		if err != nil {
			return nil, nil, err
		}
		repo := repository.NewGormAccountRepository(db)
		if cfg.MigrateOnStart {
			if err := repo.AutoMigrate(); err != nil {
				_ = database.CloseMySQL(db)
				return nil, nil, err
			}
		}
		closeFn := func() {
			if err := database.CloseMySQL(db); err != nil {
				appLogger.Error("Error closing database connection", zap.Error(err))
			}
		}
		return repo, closeFn, nil

	case config.StoreMemory:
		appLogger.Warn("Using in-memory store; accounts are lost on restart")
		return repository.NewMemoryAccountRepository(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

func newPublisher(cfg *config.Config, redisClient *sharedredis.Client, appLogger *zap.Logger) (events.EventPublisher, func(), error) {
	switch cfg.EventBroker {
	case config.BrokerRedis:
		if redisClient == nil {
			return nil, nil, errors.New("redis event broker requires REDIS_ADDR")
		}
		return events.NewPublisher(redisClient.Client), func() {}, nil
	case config.BrokerKafka:
		p := events.NewKafkaPublisher(cfg.KafkaBrokers, appLogger)
		return p, func() { _ = p.Close() }, nil
	default:
		return events.NopPublisher{}, func() {}, nil
	}
}
