package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DukeRupert/reelscout/internal"
	"github.com/DukeRupert/reelscout/internal/billing"
	"github.com/DukeRupert/reelscout/internal/domain"
	"github.com/DukeRupert/reelscout/internal/handler"
	"github.com/DukeRupert/reelscout/internal/kv"
	"github.com/DukeRupert/reelscout/internal/metrics"
	"github.com/DukeRupert/reelscout/internal/middleware"
	"github.com/DukeRupert/reelscout/internal/ratelimit"
	"github.com/DukeRupert/reelscout/internal/repository"
	"github.com/DukeRupert/reelscout/internal/scraper"
	"github.com/DukeRupert/reelscout/internal/scraper/apify"
	"github.com/DukeRupert/reelscout/internal/scraper/mock"
	"github.com/DukeRupert/reelscout/internal/service"
	"github.com/DukeRupert/reelscout/internal/storage"
	"github.com/DukeRupert/reelscout/internal/worker"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)
	loc := cfg.Location()

	// Initialize database connection
	db, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Run migrations
	if err := internal.RunMigrations(db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database ready")

	// Initialize repository
	repo := repository.New(db)

	healthChecks := map[string]handler.Pinger{"database": db}

	// Key-value store for lockouts, cached subscription status and preferences
	var store kv.Store
	switch cfg.KVBackend {
	case "redis":
		client, err := kv.NewRedisClientFromURL(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis connection failed: %w", err)
		}
		defer client.Close()
		redisStore := kv.NewRedis(client, cfg.RedisPrefix, cfg.RedisDefaultTTL)
		healthChecks["redis"] = handler.PingFunc(redisStore.Ping)
		store = redisStore
	default:
		store = kv.NewMemory(cfg.KVMemorySize, 0)
	}
	logger.Info("Key-value store ready", "backend", cfg.KVBackend)

	// Object storage for exports
	objects, err := storage.New(storage.Config{
		Provider: cfg.StorageProvider,
		Local: storage.LocalConfig{
			BasePath: cfg.LocalStoragePath,
			BaseURL:  cfg.LocalStorageURL,
		},
		R2: storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicURL:       cfg.R2PublicURL,
		},
	}, logger)
	if err != nil {
		return fmt.Errorf("storage initialization failed: %w", err)
	}

	provider, err := newScraper(cfg, logger)
	if err != nil {
		return fmt.Errorf("scraper initialization failed: %w", err)
	}
	logger.Info("Scraper ready", "provider", cfg.ScraperProvider)

	// Billing is optional in development
	var billingService billing.Service
	if cfg.BillingEnabled() {
		billingService = billing.NewStripeService(billing.Options{
			SecretKey:     cfg.StripeSecretKey,
			WebhookSecret: cfg.StripeWebhookSecret,
		})
		logger.Info("Stripe billing enabled")
	} else {
		logger.Warn("Stripe billing not configured, every user resolves to the free tier")
	}

	tiers := domain.NewTierTable(domain.DefaultTiers(cfg.Prices))

	searchLimiter := ratelimit.New(ratelimit.Config{
		Scope:           "search",
		MaxAttempts:     cfg.LockoutMaxAttempts,
		LockoutDuration: cfg.LockoutDuration,
	}, store, nil, logger)

	// Initialize services
	sessionService := service.NewSessionService(repo, logger)
	userService := service.NewUserService(repo, logger)
	subscriptionService := service.NewSubscriptionService(lookupOrNil(billingService), repo, store, tiers, logger)
	usageService := service.NewUsageService(repo, subscriptionService, logger)
	historyService := service.NewHistoryService(repo, logger)
	searchService := service.NewSearchService(provider, searchLimiter, subscriptionService, usageService, historyService,
		service.SearchConfig{Location: loc}, logger)
	exportService := service.NewExportService(objects, historyService, subscriptionService, loc, logger)
	preferencesService := service.NewPreferencesService(store, logger)

	// Background maintenance
	var bgWorker *worker.Worker
	if cfg.WorkerEnabled {
		bgWorker, err = worker.New(worker.DefaultConfig(), logger)
		if err != nil {
			return fmt.Errorf("worker initialization failed: %w", err)
		}
		bgWorker.Register(worker.NewSessionPurgeTask(sessionService, logger), cfg.SessionPurgeInterval)
	}

	// Initialize middleware
	isSecure := cfg.Env != "development"
	authMw := middleware.NewAuthMiddleware(sessionService, logger)
	loggingMw := middleware.NewRequestLogger(logger)
	securityMw := middleware.NewSecureHeaders(isSecure)
	metricsGuard := middleware.NewMetricsGuard(middleware.MetricsAccess{
		Username:    cfg.MetricsUsername,
		Password:    cfg.MetricsPassword,
		AllowedNets: cfg.MetricsAllowedNets,
	}, logger)
	requestLimiter := middleware.NewRateLimiter(cfg.RequestRateLimit, cfg.RequestRateWindow, logger)
	rateLimitMw := middleware.NewRateLimitMiddleware(requestLimiter, logger)

	if metricsGuard.Open() {
		logger.Warn("no metrics credentials or allowed nets configured, /metrics is open")
	}

	// Initialize handlers
	accountHandler := handler.NewAccountHandler(subscriptionService, usageService, logger)
	searchHandler := handler.NewSearchHandler(searchService, searchLimiter, ratelimit.DefaultTick, logger)
	historyHandler := handler.NewHistoryHandler(historyService, exportService, loc, logger)
	preferencesHandler := handler.NewPreferencesHandler(preferencesService, logger)
	billingHandler := handler.NewBillingHandler(billingService, userService, subscriptionService, cfg.AppURL, logger)
	webhookHandler := handler.NewWebhookHandler(billingService, subscriptionService, logger)
	healthHandler := handler.NewHealthHandler(healthChecks, logger)

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	mux.Handle("GET /health", healthHandler)
	mux.Handle("GET /metrics", metricsGuard.Handler(promhttp.Handler()))

	// Exports written to local disk are served directly in development
	if cfg.StorageProvider == storage.ProviderLocal {
		files := http.FileServer(http.Dir(cfg.LocalStoragePath))
		mux.Handle("GET /files/", http.StripPrefix("/files/", files))
	}

	// Stripe calls this directly; authenticated by signature
	webhookHandler.RegisterRoutes(mux)

	// Create middleware stacks for protected routes
	requireUser := middleware.Stack(authMw.WithUser, authMw.RequireUser)

	accountHandler.RegisterRoutes(mux, requireUser)
	searchHandler.RegisterRoutes(mux, requireUser)
	historyHandler.RegisterRoutes(mux, requireUser)
	preferencesHandler.RegisterRoutes(mux, requireUser)
	billingHandler.RegisterRoutes(mux, requireUser)

	root := middleware.Stack(
		loggingMw.Handler,
		securityMw.Handler,
		middleware.NewCORS(cfg.CORSOrigins),
		metrics.Middleware,
		rateLimitMw.Limit,
	)(mux)

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
	}

	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()
	if bgWorker != nil {
		bgWorker.Start(workerCtx)
	}

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
		}
	}()

	// Wait for interrupt signal
	<-sigChan
	logger.Info("Shutdown signal received, initiating graceful shutdown...")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	if bgWorker != nil {
		bgWorker.Stop()
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

// newScraper builds the configured post provider.
func newScraper(cfg *internal.Config, logger *slog.Logger) (scraper.Provider, error) {
	if cfg.ScraperProvider != "apify" {
		return mock.New(logger), nil
	}
	p, err := apify.New(apify.Config{
		BaseURL:        cfg.ApifyBaseURL,
		Token:          cfg.ApifyToken,
		InstagramActor: cfg.ApifyInstagramActor,
		TikTokActor:    cfg.ApifyTikTokActor,
		ProviderConfig: scraper.ProviderConfig{
			MaxRetries:        cfg.ScraperMaxRetries,
			RetryBaseDelay:    cfg.ScraperRetryBaseDelay,
			RequestTimeout:    cfg.ScraperRequestTimeout,
			RequestsPerSecond: cfg.ScraperRequestsPerSec,
		},
	}, logger)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// lookupOrNil keeps an unconfigured billing service a nil interface.
func lookupOrNil(b billing.Service) service.StatusLookup {
	if b == nil {
		return nil
	}
	return b
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
