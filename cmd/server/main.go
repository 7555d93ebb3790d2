package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/sunksun/mekong-fish-payments/internal/config"
	"github.com/sunksun/mekong-fish-payments/internal/handler"
	"github.com/sunksun/mekong-fish-payments/internal/lock"
	"github.com/sunksun/mekong-fish-payments/internal/repository"
	"github.com/sunksun/mekong-fish-payments/internal/service"
	"github.com/sunksun/mekong-fish-payments/internal/session"
	"github.com/sunksun/mekong-fish-payments/pkg/logger"
	"github.com/sunksun/mekong-fish-payments/pkg/response"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format, os.Stdout)

	// Initialize database
	db, err := initDB(cfg)
	if err != nil {
		slog.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize Redis
	redisClient := initRedis(cfg)
	defer redisClient.Close()

	pingCtx, cancelPing := context.WithTimeout(context.Background(), cfg.Health.Timeout)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		slog.Warn("redis not reachable at startup", "addr", redisClient.Options().Addr, "error", err)
	}
	cancelPing()

	// Initialize repositories
	recordRepo := repository.NewRecordRepository(db, cfg.Database.QueryTimeout)
	paymentRepo := repository.NewPaymentRepository(db, cfg.Database.QueryTimeout)

	// Initialize services
	locker := lock.NewRedisLocker(redisClient, cfg.Reconcile.LockTTL)
	reconciler := service.NewReconciliationService(recordRepo, paymentRepo, locker, cfg)
	workflow := service.NewWorkflowService(session.NewRedisStore(redisClient, cfg.Reconcile.SessionTTL), reconciler)
	integrity := service.NewIntegrityService(paymentRepo)

	reconciliationHandler := handler.NewReconciliationHandler(reconciler, workflow, integrity, cfg)
	healthHandler := handler.NewHealthHandler(db, redisClient, cfg.Health.Timeout)

	// Setup routes
	router := handler.NewRouter(reconciliationHandler, healthHandler, cfg.ManagerRoles())

	// Start server
	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      response.CORSMiddleware(response.LoggingMiddleware(router)),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("server starting", "addr", server.Addr, "env", cfg.Env, "database", cfg.Database.Driver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("server exited")
}

func initDB(cfg *config.Config) (*sqlx.DB, error) {
	return repository.Open(cfg.Database)
}

func initRedis(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}
