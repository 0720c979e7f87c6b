// Package main provides the entrypoint for the pushdeck API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/pushdeck/pushdeck/internal/api"
	"github.com/pushdeck/pushdeck/internal/api/middleware"
	"github.com/pushdeck/pushdeck/internal/auth"
	"github.com/pushdeck/pushdeck/internal/database"
	"github.com/pushdeck/pushdeck/internal/device"
	"github.com/pushdeck/pushdeck/internal/dispatch"
	"github.com/pushdeck/pushdeck/internal/exclusion"
	"github.com/pushdeck/pushdeck/internal/feedback"
	"github.com/pushdeck/pushdeck/internal/notification"
	"github.com/pushdeck/pushdeck/internal/provider/urbanairship"
	"github.com/pushdeck/pushdeck/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "pushdeck-api"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting pushdeck API")

	// Get configuration from environment
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	otlpEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otlpEndpoint == "" {
		otlpEndpoint = "localhost:4317"
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	// Initialize OpenTelemetry
	ctx := context.Background()
	telemetryEnabled := os.Getenv("OTEL_ENABLED") == "true"

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    env,
		OTLPEndpoint:   otlpEndpoint,
		Enabled:        telemetryEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if telemetryEnabled {
		log.Info().
			Str("otlp_endpoint", otlpEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	// Connect to database
	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	log.Info().
		Str("host", dbConfig.Host).
		Int("port", dbConfig.Port).
		Str("database", dbConfig.Database).
		Msg("database connected")

	// Initialize service token auth (get signing key from environment)
	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		jwtSigningKey = "local-dev-signing-key-change-in-production"
		log.Warn().Msg("using default JWT signing key - not secure for production")
	}

	authService := auth.NewService(auth.Config{
		SigningKey: jwtSigningKey,
		Issuer:     os.Getenv("JWT_ISSUER"),
		Audience:   serviceName,
	})
	log.Info().Msg("auth service initialized")

	// Initialize the push provider client
	ua := urbanairship.NewClient(urbanairship.ClientConfig{
		BaseURL:    os.Getenv("UA_BASE_URL"),
		AppKey:     os.Getenv("UA_APP_KEY"),
		AppSecret:  os.Getenv("UA_APP_SECRET"),
		PushSecret: os.Getenv("UA_PUSH_SECRET"),
		Logger:     log,
	})
	log.Info().Msg("urbanairship client initialized")

	// Initialize repositories and services
	deviceRepo := device.NewPostgresRepository(pool)
	notificationRepo := notification.NewPostgresRepository(pool)
	broadcastRepo := notification.NewPostgresBroadcastRepository(pool)
	exclusionRepo := exclusion.NewPostgresRepository(pool)
	feedbackRepo := feedback.NewPostgresRepository(pool)

	notificationService := notification.NewService(notificationRepo, broadcastRepo, deviceRepo, exclusionRepo, log)
	deviceService := device.NewService(deviceRepo, ua, notificationService, exclusionRepo, log)
	orchestrator := dispatch.NewOrchestrator(dispatch.Config{
		Notifications: notificationRepo,
		Broadcasts:    broadcastRepo,
		Devices:       deviceRepo,
		Exclusions:    exclusionRepo,
		Pusher:        ua,
		Logger:        log,
	})
	poller := feedback.NewPoller(feedbackRepo, ua, deviceService, log)
	log.Info().Msg("services initialized")

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:             Version,
		BuildTime:           BuildTime,
		Logger:              log,
		ServiceName:         serviceName,
		Metrics:             metrics,
		AuthService:         authService,
		DeviceService:       deviceService,
		NotificationService: notificationService,
		ExclusionRepo:       exclusionRepo,
		Orchestrator:        orchestrator,
		FeedbackPoller:      poller,
		DB:                  pool,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
