// Package main provides the entrypoint for the SafeNet API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/safenet/safenet/internal/alert"
	"github.com/safenet/safenet/internal/api"
	"github.com/safenet/safenet/internal/api/handler"
	"github.com/safenet/safenet/internal/api/middleware"
	"github.com/safenet/safenet/internal/auth"
	"github.com/safenet/safenet/internal/database"
	"github.com/safenet/safenet/internal/events"
	"github.com/safenet/safenet/internal/incident"
	"github.com/safenet/safenet/internal/monitor"
	"github.com/safenet/safenet/internal/risk"
	"github.com/safenet/safenet/internal/route"
	"github.com/safenet/safenet/internal/spatial"
	"github.com/safenet/safenet/internal/telemetry"
	"github.com/safenet/safenet/internal/zone"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "safenet-api"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting SafeNet API")

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

	// Initialize JWT service (get signing key from environment)
	jwtConfig := auth.ConfigFromEnv()
	if jwtConfig.SigningKey == "" {
		jwtConfig.SigningKey = "local-dev-signing-key-change-in-production"
		log.Warn().Msg("using default JWT signing key - not secure for production")
	}
	jwtService := auth.NewJWTService(jwtConfig)

	// Initialize zone registry and spatial index
	zoneService := zone.NewService(zone.ServiceConfig{
		Repository: zone.NewPostgresRepository(pool),
		Index:      spatial.NewIndex(spatial.DefaultCellSizeMeters),
		Logger:     log,
	})
	if err := zoneService.Rebuild(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to rebuild spatial index")
	}
	log.Info().Msg("zone registry initialized")

	// Initialize risk model and seed it from the ledger
	riskModel, err := risk.NewModel(risk.ConfigFromEnv(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid risk configuration")
	}
	incidentRepo := incident.NewPostgresRepository(pool)
	if err := riskModel.Recompute(ctx, incidentRepo); err != nil {
		log.Fatal().Err(err).Msg("failed to seed risk model")
	}
	log.Info().Int("buckets", riskModel.BucketCount()).Msg("risk model seeded")

	// Initialize event publisher (optional, for the background worker)
	var incidentPublisher incident.Publisher
	if projectID := os.Getenv("PUBSUB_PROJECT_ID"); projectID != "" {
		topic := os.Getenv("PUBSUB_TOPIC")
		if topic == "" {
			topic = "safenet-events"
		}
		publisher, err := events.NewPublisher(ctx, events.PublisherConfig{
			ProjectID: projectID,
			Topic:     topic,
			Logger:    log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create event publisher")
		}
		defer func() {
			if closeErr := publisher.Close(); closeErr != nil {
				log.Error().Err(closeErr).Msg("failed to close event publisher")
			}
		}()
		incidentPublisher = publisher
		log.Info().Str("topic", topic).Msg("event publisher initialized")
	} else {
		log.Warn().Msg("PUBSUB_PROJECT_ID not set - incident events will not be published")
	}

	// Initialize incident service; new reports feed the risk model in-process
	incidentService := incident.NewService(incident.ServiceConfig{
		Repository: incidentRepo,
		Publisher:  incidentPublisher,
		Logger:     log,
	})
	incidentService.OnReported(riskModel.Observe)
	log.Info().Msg("incident service initialized")

	// Initialize route scoring with optional Redis cache
	var routeCache route.Cache
	var redisClient *redis.Client
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     redisAddr,
			Password: os.Getenv("REDIS_PASSWORD"),
		})
		defer redisClient.Close()
		routeCache = route.NewRedisCache(redisClient)
		log.Info().Str("addr", redisAddr).Msg("route cache initialized")
	} else {
		log.Warn().Msg("REDIS_ADDR not set - route scores will not be cached")
	}

	routeService := route.NewService(route.ServiceConfig{
		Risks:  riskModel,
		Cache:  routeCache,
		Logger: log,
	})

	// Initialize alert channels
	var dispatchers []alert.Dispatcher
	if webhookURL := os.Getenv("ALERT_WEBHOOK_URL"); webhookURL != "" {
		dispatchers = append(dispatchers, alert.NewWebhookDispatcher(alert.WebhookConfig{
			Name: "webhook",
			URL:  webhookURL,
		}))
		log.Info().Msg("webhook alert channel initialized")
	} else {
		log.Warn().Msg("ALERT_WEBHOOK_URL not set - alerts will only be logged")
	}

	alertService := alert.NewService(alert.ServiceConfig{
		Dispatchers: dispatchers,
		Logger:      log,
	})

	routeAlertThreshold := risk.DangerThreshold
	if v := os.Getenv("ROUTE_ALERT_THRESHOLD"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || parsed <= 0 || parsed > risk.MaxScore {
			log.Fatal().Str("value", v).Msg("invalid ROUTE_ALERT_THRESHOLD")
		}
		routeAlertThreshold = parsed
	}

	// Initialize the geofence monitor; zone transitions raise alerts
	mon := monitor.New(monitor.DefaultConfig(), zoneService, alertService, log)
	defer mon.Close()
	zoneService.OnDelete(mon.OnZoneDeleted)
	log.Info().Msg("geofence monitor initialized")

	// Readiness probes for backing dependencies
	checks := []handler.DependencyCheck{
		{Name: "postgres", Check: pool.Ping},
	}
	if redisClient != nil {
		checks = append(checks, handler.DependencyCheck{
			Name: "redis",
			Check: func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			},
		})
	}

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:         Version,
		BuildTime:       BuildTime,
		Logger:          log,
		ServiceName:     serviceName,
		Metrics:         metrics,
		JWTService:      jwtService,
		ZoneService:     zoneService,
		IncidentService: incidentService,
		AlertService:    alertService,
		RouteService:    routeService,
		RiskModel:       riskModel,
		Monitor:         mon,
		ReadinessChecks: checks,

		RouteAlertThreshold: routeAlertThreshold,
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
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
