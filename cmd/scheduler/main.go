package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sunksun/mekong-fish-payments/internal/config"
	"github.com/sunksun/mekong-fish-payments/internal/repository"
	"github.com/sunksun/mekong-fish-payments/internal/service"
	"github.com/sunksun/mekong-fish-payments/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format, os.Stdout)
	slog.Info("starting integrity scheduler")

	db, err := repository.Open(cfg.Database)
	if err != nil {
		slog.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	integrity := service.NewIntegrityService(repository.NewPaymentRepository(db, cfg.Database.QueryTimeout))

	loc, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		slog.Error("invalid scheduler timezone", "timezone", cfg.Scheduler.Timezone, "error", err)
		os.Exit(1)
	}

	// Initialize cron scheduler
	c := cron.New(cron.WithSeconds(), cron.WithLocation(loc))

	// Schedule tasks
	if err := setupCronJobs(c, cfg, integrity); err != nil {
		slog.Error("failed to schedule jobs", "error", err)
		os.Exit(1)
	}

	// Start the scheduler
	c.Start()
	slog.Info("scheduler started", "integrity_cron", cfg.Scheduler.IntegrityCron, "timezone", loc.String())

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down scheduler")
	<-c.Stop().Done()
	slog.Info("scheduler stopped")
}

func setupCronJobs(c *cron.Cron, cfg *config.Config, integrity *service.IntegrityService) error {
	// Orphaned-payment sweep (daily at 02:00 by default)
	_, err := c.AddFunc(cfg.Scheduler.IntegrityCron, func() {
		runIntegritySweep(integrity, cfg.Database.QueryTimeout*6)
	})
	return err
}

func runIntegritySweep(integrity *service.IntegrityService, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	report, err := integrity.Sweep(ctx)
	if err != nil {
		slog.Error("integrity sweep failed", "error", err)
		return
	}
	if len(report.Orphans) > 0 {
		slog.Warn("integrity sweep found orphaned payments", "count", len(report.Orphans))
	}
}
