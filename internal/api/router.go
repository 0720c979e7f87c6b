// Package api provides the HTTP API for pushdeck.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/pushdeck/pushdeck/internal/api/handler"
	"github.com/pushdeck/pushdeck/internal/api/middleware"
	"github.com/pushdeck/pushdeck/internal/auth"
	"github.com/pushdeck/pushdeck/internal/device"
	"github.com/pushdeck/pushdeck/internal/dispatch"
	"github.com/pushdeck/pushdeck/internal/exclusion"
	"github.com/pushdeck/pushdeck/internal/feedback"
	"github.com/pushdeck/pushdeck/internal/notification"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version             string
	BuildTime           string
	Logger              zerolog.Logger
	ServiceName         string
	Metrics             *middleware.Metrics
	AuthService         *auth.Service
	DeviceService       *device.Service
	NotificationService *notification.Service
	ExclusionRepo       exclusion.Repository
	Orchestrator        *dispatch.Orchestrator
	FeedbackPoller      *feedback.Poller
	DB                  handler.Pinger
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "pushdeck-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(chimiddleware.RealIP)            // Real IP extraction
	r.Use(middleware.SecurityHeaders)      // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS)           // TLS enforcement (enabled via REQUIRE_TLS=true)
	r.Use(middleware.RequireJSON)          // Reject non-JSON bodies
	r.Use(middleware.ContentTypeJSON)      // JSON content type

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.DB)
	deviceHandler := handler.NewDeviceHandler(cfg.DeviceService)
	notificationHandler := handler.NewNotificationHandler(cfg.NotificationService, cfg.ExclusionRepo)
	broadcastHandler := handler.NewBroadcastHandler(cfg.NotificationService, cfg.ExclusionRepo)
	jobsHandler := handler.NewJobsHandler(cfg.Orchestrator, cfg.FeedbackPoller)

	authMiddleware := middleware.Auth(cfg.AuthService)

	standardRateLimit := middleware.RateLimitByClient(middleware.StandardRateLimit) // 300 req/min
	deliveryRateLimit := middleware.RateLimitByClient(middleware.DeliveryRateLimit) // 10 req/min

	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
		})

		// Device registry (authenticated services)
		r.Route("/devices", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(standardRateLimit)
			r.Get("/", deviceHandler.GetByToken)
			r.Post("/", deviceHandler.Register)
			r.Route("/{deviceId}", func(r chi.Router) {
				r.Get("/", deviceHandler.Get)
				r.Get("/provider", deviceHandler.ReadProviderInfo)
				r.Delete("/", deviceHandler.Destroy)
			})
		})

		// Notifications
		r.Route("/notifications", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(standardRateLimit)
			r.Post("/", notificationHandler.Create)
			r.Route("/{notificationId}", func(r chi.Router) {
				r.Get("/", notificationHandler.Get)
				r.Post("/exclusions", notificationHandler.CreateExclusion)
			})
		})

		// Broadcasts
		r.Route("/broadcasts", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(standardRateLimit)
			r.Post("/", broadcastHandler.Create)
			r.Route("/{broadcastId}", func(r chi.Router) {
				r.Get("/", broadcastHandler.Get)
				r.Get("/exclusions", broadcastHandler.ListExclusions)
				r.Post("/exclusions", broadcastHandler.CreateExclusion)
			})
		})

		// Manual job triggers - these fan out to the provider, so the limit
		// is strict.
		r.Route("/jobs", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(deliveryRateLimit)
			r.Post("/deliveries", jobsHandler.DeliverPending)
			r.Post("/feedback", jobsHandler.PollFeedback)
		})
	})

	return r
}
