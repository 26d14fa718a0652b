// Package api provides the HTTP API for SafeNet.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/safenet/safenet/internal/alert"
	"github.com/safenet/safenet/internal/api/handler"
	"github.com/safenet/safenet/internal/api/middleware"
	"github.com/safenet/safenet/internal/auth"
	"github.com/safenet/safenet/internal/incident"
	"github.com/safenet/safenet/internal/monitor"
	"github.com/safenet/safenet/internal/risk"
	"github.com/safenet/safenet/internal/route"
	"github.com/safenet/safenet/internal/zone"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	JWTService      *auth.JWTService
	ZoneService     *zone.Service
	IncidentService *incident.Service
	AlertService    *alert.Service
	RouteService    *route.Service
	RiskModel       *risk.Model
	Monitor         *monitor.Monitor

	// RouteAlertThreshold is the aggregate route score below which a
	// route-risk alert is raised. Zero means the danger threshold.
	RouteAlertThreshold float64

	// ReadinessChecks probe backing dependencies for /v1/ops/ready.
	ReadinessChecks []handler.DependencyCheck
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Set default service name if not provided
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "safenet-api"
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
	r.Use(middleware.ContentTypeJSON)      // JSON content type

	// Initialize handlers
	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.ReadinessChecks, cfg.AlertService, cfg.RiskModel)
	zoneHandler := handler.NewZoneHandler(cfg.ZoneService)
	incidentHandler := handler.NewIncidentHandler(cfg.IncidentService)
	markerHandler := handler.NewMarkerHandler(cfg.ZoneService, cfg.IncidentService)
	emergencyHandler := handler.NewEmergencyHandler(cfg.AlertService)
	routeAlertThreshold := cfg.RouteAlertThreshold
	if routeAlertThreshold <= 0 {
		routeAlertThreshold = risk.DangerThreshold
	}
	routeHandler := handler.NewRouteHandler(cfg.RouteService, cfg.AlertService, routeAlertThreshold)
	riskHandler := handler.NewRiskHandler(cfg.RiskModel)
	trackHandler := handler.NewTrackHandler(cfg.Monitor)

	// Create auth middleware
	authMiddleware := middleware.Auth(cfg.JWTService)

	// Create rate limit middleware for different endpoint categories
	expensiveRateLimit := middleware.RateLimitByIP(middleware.ExpensiveRateLimit) // 30 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)   // 100 req/min

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			// Status endpoint requires authentication
			r.With(authMiddleware).Get("/status", opsHandler.SystemStatus)
		})

		// Emergency alert - authenticated, never rate limited
		r.With(authMiddleware).Post("/emergency/alert", emergencyHandler.RaiseAlert)

		// Safety map (authenticated) - user-based rate limiting
		r.Route("/map", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(middleware.RateLimitByUser(middleware.StandardRateLimit)) // 100 req/min per user
			r.Get("/markers", markerHandler.GetMarkers)
			r.Post("/incidents", incidentHandler.ReportIncident)
		})

		// Incident ledger (authenticated)
		r.Route("/incidents", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(middleware.RateLimitByUser(middleware.StandardRateLimit))
			r.Get("/", incidentHandler.ListIncidents)
			r.Post("/", incidentHandler.ReportIncident)
			r.Route("/{incidentId}", func(r chi.Router) {
				r.Get("/", incidentHandler.GetIncident)
				r.Patch("/status", incidentHandler.UpdateIncidentStatus)
			})
		})

		// Zone registry (authenticated)
		r.Route("/zones", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(middleware.RateLimitByUser(middleware.StandardRateLimit))
			r.Get("/", zoneHandler.ListZones)
			r.Post("/", zoneHandler.CreateZone)
			r.Route("/{zoneId}", func(r chi.Router) {
				r.Get("/", zoneHandler.GetZone)
				r.Put("/", zoneHandler.UpdateZone)
				r.Patch("/", zoneHandler.UpdateZone)
				r.Delete("/", zoneHandler.DeleteZone)
			})
		})

		// Route scoring - expensive compute, strict rate limiting
		r.With(authMiddleware, expensiveRateLimit).Post("/routes:score", routeHandler.ScoreRoute)

		// Point risk queries - standard rate limiting
		r.With(authMiddleware, standardRateLimit).Get("/risk/score", riskHandler.GetScore)

		// Live tracking (authenticated) - fixes arrive at high frequency, so
		// the lifecycle endpoints are limited but fix submission is not
		r.Route("/track/{subjectId}", func(r chi.Router) {
			r.Use(authMiddleware)
			r.With(standardRateLimit).Post("/", trackHandler.StartTracking)
			r.With(standardRateLimit).Delete("/", trackHandler.StopTracking)
			r.Post("/fixes", trackHandler.SubmitFix)
		})
	})

	return r
}
