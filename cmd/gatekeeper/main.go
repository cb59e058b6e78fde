package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/pathlight-platform/gatekeeper/internal/audit"
	"github.com/pathlight-platform/gatekeeper/internal/config"
	"github.com/pathlight-platform/gatekeeper/internal/correlate"
	"github.com/pathlight-platform/gatekeeper/internal/detect"
	"github.com/pathlight-platform/gatekeeper/internal/handlers"
	"github.com/pathlight-platform/gatekeeper/internal/logging"
	"github.com/pathlight-platform/gatekeeper/internal/middleware"
	"github.com/pathlight-platform/gatekeeper/internal/ratelimit"
	"github.com/pathlight-platform/gatekeeper/internal/repository"
	"github.com/pathlight-platform/gatekeeper/internal/server"
	"github.com/pathlight-platform/gatekeeper/pkg/tokens"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.New(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)
	logging.SetDefault(logger)

	logger.Info("Starting gatekeeper service", "port", cfg.Server.Port)
	if *configPath != "" {
		logger.Info("Loaded config", "path", *configPath)
	}

	// Repository: in-memory for dev and tests, PostgreSQL in production.
	var repo repository.Repository
	switch cfg.Database.Type {
	case "postgres":
		connString := cfg.Database.Postgres.ConnString()

		logger.Info("Running database migrations")
		m, err := migrate.New("file://migrations", connString)
		if err != nil {
			log.Fatalf("Failed to initialize migrations: %v", err)
		}
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		logger.Info("Database migrations completed")

		pgRepo, err := repository.NewPostgresRepository(context.Background(), connString)
		if err != nil {
			log.Fatalf("Failed to connect to PostgreSQL: %v", err)
		}
		repo = pgRepo
		logger.Info("Connected to PostgreSQL", "host", cfg.Database.Postgres.Host)
	case "memory", "":
		repo = repository.NewInMemoryRepository()
		logger.Warn("Using in-memory repository; audit trail will not survive restarts")
	default:
		log.Fatalf("Unknown database type: %q", cfg.Database.Type)
	}
	defer repo.Close()

	// Rate-limit counters and IP reputation share a Redis instance when one
	// is configured; otherwise both stay in process memory.
	var limitStore ratelimit.Store
	var reputation detect.ReputationStore
	if cfg.Redis.URL != "" {
		limitStore, err = ratelimit.NewRedisStore(cfg.Redis.URL)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		reputation, err = detect.NewRedisReputationStore(cfg.Redis.URL)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		logger.Info("Connected to Redis", "url", cfg.Redis.URL)
	} else {
		limitStore = ratelimit.NewMemoryStore()
		reputation = detect.NewMemoryReputationStore()
	}
	defer limitStore.Close()
	defer reputation.Close()

	policy := ratelimit.DefaultPolicy()
	if cfg.RateLimit.PolicyFile != "" {
		policy, err = ratelimit.LoadPolicy(cfg.RateLimit.PolicyFile)
		if err != nil {
			log.Fatalf("Failed to load rate limit policy: %v", err)
		}
		logger.Info("Loaded rate limit policy", "path", cfg.RateLimit.PolicyFile)
	}
	limiter := ratelimit.New(limitStore, policy, cfg.RateLimit.Disabled)

	detector := detect.New(reputation)
	writer := audit.NewWriter(cfg.Audit.SigningSecret, repo, logger)

	var notifier correlate.Notifier = &correlate.NoopNotifier{}
	if cfg.NATS.Enabled {
		natsNotifier, err := correlate.NewNATSNotifier(cfg.NATS.URL, cfg.NATS.Subject)
		if err != nil {
			log.Fatalf("Failed to connect to NATS: %v", err)
		}
		defer natsNotifier.Close()
		notifier = natsNotifier
		logger.Info("Connected to NATS", "url", cfg.NATS.URL, "subject", cfg.NATS.Subject)
	}
	correlator := correlate.New(repo, notifier, logger)

	verifier := tokens.NewVerifier(cfg.Auth.JWTSecret)
	authMW := middleware.NewAuthMiddleware(verifier, writer, correlator)
	gate := middleware.NewGate(limiter, detector, writer, correlator, logger, cfg.Server.AdmissionTimeout)

	handler := handlers.New(repo, writer, correlator, detector, logger)
	router := server.NewRouter(handler, gate, authMW)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("Gatekeeper listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server stopped")
}
