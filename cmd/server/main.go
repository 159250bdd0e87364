package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/segyhp/mediatheque/internal/config"
	"github.com/segyhp/mediatheque/internal/handler"
	"github.com/segyhp/mediatheque/internal/logging"
	"github.com/segyhp/mediatheque/internal/notification"
	"github.com/segyhp/mediatheque/internal/repository"
	"github.com/segyhp/mediatheque/internal/service"
	"github.com/segyhp/mediatheque/pkg/response"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(cfg.Logging)
	slog.SetDefault(logger)

	// Initialize database
	db, err := initDB(cfg)
	if err != nil {
		logger.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize Redis
	redisClient := initRedis(cfg)
	defer redisClient.Close()

	dispatcher, err := notification.New(cfg.Notification, cfg.GetLateFeePerDay(), cfg.GetSchedulerLocation(), logger)
	if err != nil {
		logger.Error("failed to initialize notifications", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	documentRepo := repository.NewDocumentRepository(db)
	memberRepo := repository.NewMemberRepository(db)
	repos := service.Repositories{
		Documents: documentRepo,
		Members:   memberRepo,
		Loans:     repository.NewLoanRepository(db),
		Fines:     repository.NewFineRepository(db),
	}

	// Initialize services
	loanService := service.NewLoanService(repos, repository.NewTransactor(db), dispatcher, service.PolicyFromConfig(cfg), logger)
	catalogService := service.NewCatalogService(documentRepo, memberRepo)

	router := setupRoutes(
		handler.NewLoanHandler(loanService, cfg.Business.RetryAttempts, logger),
		handler.NewCatalogHandler(catalogService, logger),
		handler.NewHealthHandler(db, redisClient, cfg.Health.Timeout),
		logger,
	)

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server starting", "addr", server.Addr, "env", cfg.Server.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	// Let post-commit notifications finish before the pool closes.
	loanService.Wait()

	logger.Info("server exited")
}

func initDB(cfg *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	return db, nil
}

func initRedis(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

func setupRoutes(loans *handler.LoanHandler, catalog *handler.CatalogHandler, health *handler.HealthHandler, logger *slog.Logger) *mux.Router {
	router := mux.NewRouter()
	router.Use(
		response.RecoveryMiddleware(logger),
		response.LoggingMiddleware(logger),
		response.CORSMiddleware,
	)

	// Health check
	health.Register(router)

	// API routes
	api := router.PathPrefix("/api/v1").Subrouter()
	loans.Register(api)
	catalog.Register(api)

	return router
}
