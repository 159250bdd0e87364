package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/segyhp/mediatheque/internal/config"
	"github.com/segyhp/mediatheque/internal/logging"
	"github.com/segyhp/mediatheque/internal/notification"
	"github.com/segyhp/mediatheque/internal/repository"
	"github.com/segyhp/mediatheque/internal/scheduler"
	"github.com/segyhp/mediatheque/internal/service"
)

const lockPrefix = "mediatheque:scheduler:"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(cfg.Logging).With("component", "scheduler")

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		logger.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	loc := cfg.GetSchedulerLocation()
	dispatcher, err := notification.New(cfg.Notification, cfg.GetLateFeePerDay(), loc, logger)
	if err != nil {
		logger.Error("failed to initialize notifications", "error", err)
		os.Exit(1)
	}

	loanService := service.NewLoanService(
		service.Repositories{
			Documents: repository.NewDocumentRepository(db),
			Members:   repository.NewMemberRepository(db),
			Loans:     repository.NewLoanRepository(db),
			Fines:     repository.NewFineRepository(db),
		},
		repository.NewTransactor(db),
		dispatcher,
		service.PolicyFromConfig(cfg),
		logger,
	)

	sched, err := scheduler.New(cfg.Scheduler, loc, loanService, scheduler.NewRedisLocker(redisClient, lockPrefix), logger)
	if err != nil {
		logger.Error("failed to schedule jobs", "error", err)
		os.Exit(1)
	}

	sched.Start()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down scheduler")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := sched.Stop(ctx); err != nil {
		logger.Warn("jobs still running at shutdown", "error", err)
	}

	logger.Info("scheduler stopped")
}
