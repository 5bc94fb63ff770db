package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/gzip"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sjperalta/transfer-ledger/internal/config"
	"github.com/sjperalta/transfer-ledger/internal/database"
	"github.com/sjperalta/transfer-ledger/internal/handlers"
	"github.com/sjperalta/transfer-ledger/internal/jobs"
	"github.com/sjperalta/transfer-ledger/internal/middleware"
	"github.com/sjperalta/transfer-ledger/internal/repository"
	"github.com/sjperalta/transfer-ledger/internal/services"
	"github.com/sjperalta/transfer-ledger/pkg/logger"

	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Setup(cfg.Environment, cfg.LogLevel)

	// Initialize Sentry when DSN is configured
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			TracesSampleRate: 0.2,
			Environment:      cfg.Environment,
		}); err != nil {
			logger.Error("Sentry initialization failed", "error", err)
		} else {
			logger.Info("Sentry initialized")
		}
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	logger.Info("Connected to database")

	if err := database.Migrate(db); err != nil {
		logger.Error("Failed to migrate database", "error", err)
		os.Exit(1)
	}

	repos := repository.NewRepositories(db)
	uow := repository.NewUnitOfWork(db)

	worker := jobs.NewWorker(cfg.WorkerCount)
	logger.Info("Started background worker", "goroutines", cfg.WorkerCount)

	svcs := services.NewServices(repos, uow, worker, cfg.Ledger)

	warmCtx, cancelWarm := context.WithTimeout(context.Background(), 2*time.Minute)
	if err := svcs.Warm(warmCtx, repos); err != nil {
		logger.Error("Failed to load reporting projection", "error", err)
		cancelWarm()
		os.Exit(1)
	}
	cancelWarm()
	logger.Info("Reporting projection loaded", "entries", svcs.Projection.Len())

	svcs.Job.StartReconciliation(cfg.Ledger.ReconcileInterval)
	logger.Info("Scheduled ledger reconciliation", "interval", cfg.Ledger.ReconcileInterval.String(),
		"auto_correct", cfg.Ledger.ReconcileAutoCorrect)
	svcs.Job.StartProjectionRefresh(cfg.Ledger.ProjectionRefresh)

	router := setupRouter(handlers.NewHandlers(svcs), cfg)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	worker.Shutdown()
	logger.Info("Background worker stopped")

	if cfg.SentryDSN != "" {
		sentry.Flush(5 * time.Second)
	}

	logger.Info("Server exited gracefully")
}

func setupRouter(h *handlers.Handlers, cfg *config.Config) *gin.Engine {
	router := gin.New()

	if cfg.SentryDSN != "" {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORS(cfg.AllowedOrigins))
	router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.RegisterRoutes(router, h, cfg.JWTSecret)

	return router
}
