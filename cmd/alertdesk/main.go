package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/alertdesk/pkg/api"
	"github.com/platinummonkey/alertdesk/pkg/audit"
	"github.com/platinummonkey/alertdesk/pkg/auth"
	"github.com/platinummonkey/alertdesk/pkg/config"
	"github.com/platinummonkey/alertdesk/pkg/middleware"
	"github.com/platinummonkey/alertdesk/pkg/observability"
	"github.com/platinummonkey/alertdesk/pkg/store"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	configFile := flag.String("config", "", "Path to a YAML config file (overrides ALERTDESK_CONFIG_FILE)")
	flag.Parse()

	if *configFile != "" {
		os.Setenv("ALERTDESK_CONFIG_FILE", *configFile)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("alertdesk: %v", err)
	}
}

func run(cfg *config.Config) error {
	logger := observability.NewLoggerWithFormat(cfg.Observability.LogLevel, cfg.Observability.LogFormat, os.Stdout).
		WithField("service", cfg.Observability.OTelServiceName).
		WithField("env", cfg.Environment)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	otelProviders, err := observability.InitOTel(ctx, cfg.Observability.OTel(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	db, err := store.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	applied, err := db.Migrate(ctx, logger)
	if err != nil {
		db.Close()
		return err
	}
	logger.WithField("driver", db.Dialect.Name).Infof("Database ready, %d migrations applied", applied)

	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		redisClient, err = store.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			db.Close()
			return err
		}
		logger.Info("Connected to Redis")
	}

	auditLog, err := audit.NewDBLogger(db, nil)
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to create audit logger: %w", err)
	}
	st := store.New(db, auditLog)

	registry := prometheus.NewRegistry()
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics = observability.NewMetrics(registry)
	}

	sessions := auth.NewSessionManager(st, st, cfg.Auth.BcryptCost)
	keys := auth.NewAPIKeyManager(st, st)
	sessionStrategy := auth.NewSessionStrategy(sessions, cfg.Auth.SessionHeader)

	strategies := []auth.Strategy{
		sessionStrategy,
		auth.NewAPIKeyStrategy(keys, cfg.Auth.APIKeyHeader),
	}
	if cfg.Auth.TestMode {
		logger.WithField("header", cfg.Auth.DemoHeader).Warn("Test mode enabled, demo user header is accepted")
		strategies = append(strategies, auth.NewDemoStrategy(st, cfg.Auth.DemoHeader))
	}
	resolver := auth.NewResolver(strategies...).WithObserver(middleware.AuthObserver(metrics))

	limiter, err := newLimiter(cfg.RateLimit, redisClient)
	if err != nil {
		db.Close()
		return err
	}

	server := api.NewServer(api.Deps{
		Store:           st,
		Audit:           auditLog,
		Sessions:        sessions,
		APIKeys:         keys,
		Resolver:        resolver,
		SessionStrategy: sessionStrategy,
		Limiter:         limiter,
		RateLimits:      cfg.RateLimit.Tiers,
		Metrics:         metrics,
		Logger:          logger,
		MaxBodyBytes:    cfg.Server.MaxBodyBytes,
	})

	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Probes and metrics live on their own port
	opsMux := http.NewServeMux()
	observability.RegisterHealthRoutes(opsMux, observability.NewHealthChecker(db.DB, redisClient, version))
	if metrics != nil {
		observability.RegisterMetricsEndpoint(opsMux, registry)
	}
	opsServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler:           opsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	scheduler, err := newHousekeeping(cfg.Auth.SessionPurgeSchedule, sessions, db, metrics, logger)
	if err != nil {
		db.Close()
		return err
	}
	scheduler.Start()

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout, apiServer, opsServer)
	shutdown.RegisterShutdownFunc(scheduler.Stop)
	shutdown.RegisterShutdownFunc(otelProviders.Shutdown)
	if redisClient != nil {
		shutdown.RegisterShutdownFunc(func(context.Context) error {
			return redisClient.Close()
		})
	}
	shutdown.RegisterShutdownFunc(func(context.Context) error {
		return db.Close()
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithField("addr", apiServer.Addr).WithField("version", version).Info("Starting alertdesk API server")
		return listen(apiServer)
	})
	g.Go(func() error {
		logger.WithField("addr", opsServer.Addr).Info("Starting health and metrics server")
		return listen(opsServer)
	})
	g.Go(func() error {
		return shutdown.WaitForSignal(gctx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("alertdesk stopped")
	return nil
}

func listen(server *http.Server) error {
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server on %s failed: %w", server.Addr, err)
	}
	return nil
}

// newLimiter returns nil when rate limiting is disabled
func newLimiter(cfg config.RateLimitConfig, redisClient *redis.Client) (middleware.Limiter, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	switch cfg.Backend {
	case config.RateLimitRedis:
		if redisClient == nil {
			return nil, errors.New("redis rate limiting requires a redis url")
		}
		return middleware.NewDistributedRateLimiter(redisClient, "alertdesk:ratelimit"), nil
	default:
		limiter, err := middleware.NewRateLimiter(cfg.MaxBuckets)
		if err != nil {
			return nil, err
		}
		return limiter, nil
	}
}
