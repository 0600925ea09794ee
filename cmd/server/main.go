package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/welldanyogia/webhook-relay/internal/api"
	"github.com/welldanyogia/webhook-relay/internal/auth"
	"github.com/welldanyogia/webhook-relay/internal/config"
	"github.com/welldanyogia/webhook-relay/internal/events"
	"github.com/welldanyogia/webhook-relay/internal/health"
	"github.com/welldanyogia/webhook-relay/internal/logger"
	"github.com/welldanyogia/webhook-relay/internal/metrics"
	appmw "github.com/welldanyogia/webhook-relay/internal/middleware"
	"github.com/welldanyogia/webhook-relay/internal/page"
	"github.com/welldanyogia/webhook-relay/internal/relay"
	"github.com/welldanyogia/webhook-relay/internal/repository"
	"github.com/welldanyogia/webhook-relay/internal/signature"
	"github.com/welldanyogia/webhook-relay/internal/sse"
	"github.com/welldanyogia/webhook-relay/internal/webhook"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	log := logger.New(logger.DefaultConfig())
	slog.SetDefault(log)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("configuration rejected", slog.String("error", err.Error()))
		os.Exit(1)
	}

	policy, err := signature.ParsePolicy(cfg.Webhook.SignaturePolicy)
	if err != nil {
		log.Error("configuration rejected", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if cfg.Webhook.VerifyToken == "" {
		log.Warn("WEBHOOK_VERIFY_TOKEN is empty; subscription handshakes will be refused")
	}

	// Optional receipt audit log
	var db *sqlx.DB
	if cfg.Database.Enabled() {
		db, err = setupDatabase(cfg.Database)
		if err != nil {
			log.Error("failed to connect to database", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer db.Close()
	}

	history := events.NewHistory(cfg.Relay.HistorySize)
	rl := relay.New(relay.Config{
		ReplayInterval: cfg.Relay.ReplayInterval,
		QueueSize:      cfg.Relay.SubscriberQueue,
		MaxSubscribers: cfg.Relay.MaxSubscribers,
	}, history, log.With(slog.String("component", "relay")))

	tokenService := auth.NewTokenService(auth.TokenServiceConfig{
		Secret: cfg.Stream.TokenSecret,
		Expiry: cfg.Stream.TokenExpiry,
		Issuer: cfg.Stream.TokenIssuer,
	})
	authMiddleware := appmw.NewAuthMiddleware(tokenService)
	connectLimiter := appmw.NewConnectRateLimiter(cfg.Stream.ConnectRateLimit)
	defer connectLimiter.Stop()

	webhookConfig := webhook.Config{
		AppSecret:    cfg.Webhook.AppSecret,
		VerifyToken:  cfg.Webhook.VerifyToken,
		Policy:       policy,
		MaxBodyBytes: cfg.Webhook.MaxBodyBytes,
	}
	webhookLog := log.With(slog.String("component", "webhook"))
	var webhookHandler *webhook.Handler
	var receiptHandler *api.ReceiptHandler
	if db != nil {
		receipts := repository.NewReceiptRepository(db)
		webhookHandler = webhook.NewHandler(webhookConfig, rl, receipts, webhookLog)
		receiptHandler = api.NewReceiptHandler(receipts, log)

		collector := metrics.NewDBStatsCollector(db.DB, log)
		collector.Start(15 * time.Second)
		defer collector.Stop()

		if cfg.Database.ReceiptRetention > 0 {
			retention := repository.NewRetentionWorker(receipts, cfg.Database.ReceiptRetention, log)
			retention.Start(time.Hour)
			defer retention.Stop()
		}
	} else {
		webhookHandler = webhook.NewHandler(webhookConfig, rl, nil, webhookLog)
	}

	sseHandler := sse.NewHandler(sse.Config{
		HeartbeatInterval: cfg.Stream.HeartbeatInterval,
		ConnectionTimeout: cfg.Stream.ConnectionTimeout,
	}, rl, log.With(slog.String("component", "sse")))

	pageHandler := page.NewHandler(page.Config{
		Title:      cfg.Page.Title,
		StreamPath: cfg.Stream.Path,
	}, log)

	healthConfig := health.Config{Relay: rl, Version: version}
	if db != nil {
		healthConfig.DB = db.DB
	}
	healthHandler := health.NewHandler(healthConfig)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(appmw.StructuredLogger(log))
	r.Use(metrics.Middleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "Last-Event-ID"},
		ExposedHeaders: []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		MaxAge:         300,
	}))

	webhook.RegisterRoutes(r, cfg.Webhook.Path, webhookHandler)
	sse.RegisterRoutes(r, cfg.Stream.Path, sseHandler, sse.RouteOptions{
		Auth:         authMiddleware.Authenticate,
		ConnectLimit: connectLimiter.Limit,
	})
	page.RegisterRoutes(r, pageHandler)
	health.RegisterRoutes(r, healthHandler)
	r.Handle("/metrics", metrics.Handler())

	if receiptHandler != nil {
		r.Route("/api/v1", func(r chi.Router) {
			api.RegisterReceiptRoutes(r, receiptHandler, authMiddleware.Authenticate)
		})
	}

	srv := &http.Server{
		Addr:        cfg.Server.Addr(),
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		// Streams are long-lived, so there is no write deadline.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("starting server",
			slog.String("addr", srv.Addr),
			slog.String("webhook_path", cfg.Webhook.Path),
			slog.String("stream_path", cfg.Stream.Path),
			slog.String("signature_policy", string(policy)),
			slog.Bool("stream_auth", tokenService.Enabled()),
			slog.Bool("receipts", db != nil),
			slog.Int("history_size", cfg.Relay.HistorySize),
			slog.Duration("replay_interval", cfg.Relay.ReplayInterval),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	healthHandler.SetReady(false)

	// Closing the relay ends every open stream so Shutdown does not wait on them.
	rl.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", slog.String("error", err.Error()))
	}

	log.Info("server exited")
}

// setupDatabase opens and configures the receipt database connection
func setupDatabase(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := sqlx.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
