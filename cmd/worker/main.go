// Package main provides the entrypoint for the pushdeck background worker:
// scheduled delivery sweeps, feedback polls and Pub/Sub triggered jobs.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/pushdeck/pushdeck/internal/database"
	"github.com/pushdeck/pushdeck/internal/device"
	"github.com/pushdeck/pushdeck/internal/dispatch"
	"github.com/pushdeck/pushdeck/internal/exclusion"
	"github.com/pushdeck/pushdeck/internal/feedback"
	"github.com/pushdeck/pushdeck/internal/notification"
	"github.com/pushdeck/pushdeck/internal/provider/urbanairship"
	"github.com/pushdeck/pushdeck/internal/telemetry"
	"github.com/pushdeck/pushdeck/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "pushdeck-worker"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting pushdeck worker")

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry
	otlpEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otlpEndpoint == "" {
		otlpEndpoint = "localhost:4317"
	}
	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    env,
		OTLPEndpoint:   otlpEndpoint,
		Enabled:        os.Getenv("OTEL_ENABLED") == "true",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	// Connect to database
	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	log.Info().
		Str("host", dbConfig.Host).
		Str("database", dbConfig.Database).
		Msg("database connected")

	// Initialize the push provider client
	ua := urbanairship.NewClient(urbanairship.ClientConfig{
		BaseURL:    os.Getenv("UA_BASE_URL"),
		AppKey:     os.Getenv("UA_APP_KEY"),
		AppSecret:  os.Getenv("UA_APP_SECRET"),
		PushSecret: os.Getenv("UA_PUSH_SECRET"),
		Logger:     log,
	})

	// Wire repositories, services and jobs
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

	jobs := worker.NewJobs(worker.JobsConfig{
		Orchestrator: orchestrator,
		Poller:       poller,
		Logger:       log,
	})

	// Start the cron scheduler
	scheduler, err := worker.NewScheduler(worker.SchedulerConfigFromEnv(jobs, log))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to configure scheduler")
	}
	scheduler.Start()

	// Start the Pub/Sub handler when configured
	projectID := os.Getenv("PUBSUB_PROJECT_ID")
	subscription := os.Getenv("PUBSUB_SUBSCRIPTION")
	if projectID != "" && subscription != "" {
		handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        projectID,
			SubscriptionName: subscription,
			Jobs:             jobs,
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub handler")
		}
		defer handler.Close() //nolint:errcheck // best effort cleanup

		go func() {
			if err := handler.Start(ctx); err != nil {
				log.Error().Err(err).Msg("pubsub handler stopped")
			}
		}()
	} else {
		log.Info().Msg("pubsub not configured, running on schedule only")
	}

	// Health check server for the platform probe
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"ok","version":%q}`, Version)
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := scheduler.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("scheduler forced to stop")
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}
