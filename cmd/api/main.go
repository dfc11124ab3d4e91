package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/clinicore/clinic-platform/internal/api/router"
	"github.com/clinicore/clinic-platform/internal/appointments"
	"github.com/clinicore/clinic-platform/internal/booking"
	appconfig "github.com/clinicore/clinic-platform/internal/config"
	"github.com/clinicore/clinic-platform/internal/identity"
	"github.com/clinicore/clinic-platform/internal/notifications"
	"github.com/clinicore/clinic-platform/internal/observability/metrics"
	"github.com/clinicore/clinic-platform/internal/payments"
	"github.com/clinicore/clinic-platform/internal/realtime"
	"github.com/clinicore/clinic-platform/internal/rooms"
	"github.com/clinicore/clinic-platform/internal/schedule"
	"github.com/clinicore/clinic-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting clinic-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	// Postgres
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create postgres pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	pingCtx, cancelPing := context.WithTimeout(ctx, 5*time.Second)
	if err := pool.Ping(pingCtx); err != nil {
		cancelPing()
		logger.Error("failed to ping postgres", "error", err)
		os.Exit(1)
	}
	cancelPing()

	// Redis (realtime push + presence)
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	defer func() { _ = rdb.Close() }()

	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Error("failed to ping redis", "error", err)
		os.Exit(1)
	}

	// Metrics
	var (
		bookingMetrics *metrics.BookingMetrics
		metricsHandler http.Handler
	)
	if cfg.MetricsEnabled {
		registry := prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		bookingMetrics = metrics.NewBookingMetrics(registry)
		metricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	}

	// Repositories
	userStore := identity.NewStore(pool)
	ledger := schedule.NewLedger(pool)
	apptRepo := appointments.NewRepository(pool)
	notifRepo := notifications.NewRepository(pool)

	// Payment gateway
	gateway := payments.NewStripeGateway(cfg.StripeSecretKey, logger)
	if cfg.StripeBaseURL != "" {
		gateway = gateway.WithBaseURL(cfg.StripeBaseURL)
	}

	// Realtime push + presence
	presence := realtime.NewPresence(rdb, cfg.PresenceTTL)
	publisher := realtime.NewPublisher(rdb, logger)
	hub := realtime.NewHub(rdb, presence, logger)

	// Notification fanout (SendGrid sender is nil without an API key;
	// the fanout treats a nil sender as "emails disabled")
	var emailSender notifications.EmailSender
	if sg := notifications.NewSendGridSender(notifications.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sg != nil {
		emailSender = sg
	}
	fanout := notifications.NewFanout(notifRepo, publisher, emailSender, userStore, logger)

	// Room token signing for remote consultations
	roomSigner := rooms.NewSigner(cfg.RoomTokenSecret, cfg.RoomTokenTTL)

	// Services
	bookingService := booking.NewService(userStore, ledger, gateway, cfg.PaymentCurrency, bookingMetrics, logger)
	apptService := appointments.NewService(apptRepo, gateway, roomSigner, fanout, logger)

	// Handlers
	bookingHandler := booking.NewHandler(bookingService, logger)
	scheduleHandler := schedule.NewHandler(ledger, logger)
	apptHandler := appointments.NewHandler(apptService, logger)
	webhookHandler := payments.NewWebhookHandler(
		cfg.StripeWebhookSecret,
		apptRepo,
		gateway,
		fanout,
		bookingMetrics,
		logger,
	)

	// Setup router
	routerCfg := &router.Config{
		Logger:              logger,
		BookingHandler:      bookingHandler,
		ScheduleHandler:     scheduleHandler,
		AppointmentsHandler: apptHandler,
		PaymentWebhook:      webhookHandler,
		RealtimeHub:         hub,
		MetricsHandler:      metricsHandler,
		AuthJWTSecret:       cfg.AuthJWTSecret,
	}
	r := router.New(routerCfg)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.ShutdownGraceSeconds)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
