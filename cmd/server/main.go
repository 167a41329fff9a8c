// MuscleLog - Conversational Fitness Tracking Server
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

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/stripe/stripe-go/v76"

	"github.com/musclelog/server/internal/api"
	"github.com/musclelog/server/internal/auth"
	"github.com/musclelog/server/internal/coach"
	"github.com/musclelog/server/internal/config"
	"github.com/musclelog/server/internal/llm"
	"github.com/musclelog/server/internal/mailer"
	"github.com/musclelog/server/internal/messaging"
	"github.com/musclelog/server/internal/metrics"
	"github.com/musclelog/server/internal/middleware"
	"github.com/musclelog/server/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	if cfg.Stripe.SecretKey != "" {
		stripe.Key = cfg.Stripe.SecretKey
		slog.Info("Billing enabled")
	} else {
		slog.Info("Billing disabled (STRIPE_SECRET_KEY not set)")
	}

	// Initialize services.
	model := llm.NewClient(cfg.LLM)
	orchestrator := coach.New(repo, model)

	// Initialize handlers.
	handler := api.NewHandler(repo, orchestrator, model, cfg)
	whatsappHandler := messaging.NewWhatsAppHandler(repo, orchestrator, messaging.NewTwilioSender(cfg.Twilio))

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(metrics.Middleware)

	corsOrigins := []string{cfg.FrontendURL}
	if cfg.IsDevelopment() {
		corsOrigins = []string{"*"}
	}
	r.Use(middleware.CORS(corsOrigins))

	// Public routes: signed or credentialed at the handler level, not by
	// bearer token.
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/webhooks/stripe", handler.HandleStripeWebhook)
	r.Post("/webhooks/whatsapp", whatsappHandler.ServeHTTP)

	// Authenticated API routes.
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(repo, cfg.ServiceToken))
		handler.RegisterRoutes(r)
	})

	// Weekly summary email job.
	scheduler := cron.New()
	if cfg.Mail.ResendAPIKey != "" {
		job := mailer.NewWeeklyJob(repo, mailer.NewResendClient(cfg.Mail))
		if _, err := scheduler.AddJob(mailer.WeeklySchedule, job); err != nil {
			slog.Error("Failed to schedule weekly email job", "error", err)
			os.Exit(1)
		}
		scheduler.Start()
		slog.Info("Weekly email job scheduled", "cron", mailer.WeeklySchedule)
	} else {
		slog.Info("Weekly email disabled (RESEND_API_KEY not set)")
	}

	// Create server.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // 0 = no timeout, model calls and websockets run long
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	cronCtx := scheduler.Stop()
	<-cronCtx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
