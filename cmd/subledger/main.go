package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/jonboulle/clockwork"
	"github.com/platinummonkey/subledger/pkg/api"
	"github.com/platinummonkey/subledger/pkg/billing"
	"github.com/platinummonkey/subledger/pkg/config"
	"github.com/platinummonkey/subledger/pkg/fx"
	"github.com/platinummonkey/subledger/pkg/observability"
	"github.com/platinummonkey/subledger/pkg/plans"
	"github.com/platinummonkey/subledger/pkg/storage/postgres"
	"github.com/platinummonkey/subledger/pkg/subscriptions"
	"github.com/prometheus/client_golang/prometheus"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		observability.NewLogger(observability.InfoLevel, os.Stderr).WithError(err).Error("failed to load configuration")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	if err := run(context.Background(), cfg, logger); err != nil {
		logger.WithError(err).Error("subledger stopped with error")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *observability.Logger) error {
	otelCfg := cfg.Observability.OTel()
	if otelCfg.ServiceVersion == "" {
		otelCfg.ServiceVersion = version
	}
	providers, err := observability.InitOTel(ctx, otelCfg, logger)
	if err != nil {
		return err
	}

	cm, err := postgres.NewConnectionManager(ctx, postgres.ConnectionConfigFrom(cfg.Storage), logger)
	if err != nil {
		return err
	}

	if cfg.Storage.RunMigrations {
		if err := postgres.RunMigrations(ctx, cm.Primary(), logger); err != nil {
			cm.Close()
			return err
		}
	}

	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(prometheus.DefaultRegisterer)
	}

	clock := clockwork.NewRealClock()

	// Exchange rate cache: in-process L1, shared Redis L2 when configured
	var (
		rateCache   fx.Cache
		redisClient *postgres.RedisClient
	)
	if cfg.Storage.CacheEnabled {
		var l2 fx.Cache
		if cfg.Storage.RedisURL != "" {
			redisClient, err = postgres.NewRedisClient(cfg.Storage)
			if err != nil {
				logger.WithError(err).Warn("redis unavailable, exchange rates cached in memory only")
			} else {
				l2 = fx.NewRedisCache(redisClient, cfg.Storage.FXCacheTTL, clock, logger)
			}
		}
		rateCache = fx.NewTieredCache(fx.NewMemoryCache(cfg.Storage.L1CacheSize, cfg.Storage.FXCacheTTL, clock), l2, metrics)
	}

	converter := fx.NewConverter(fx.NewPostgresStore(cm.Primary()), rateCache, clock, logger).WithMetrics(metrics)
	planService := plans.NewPostgresService(cm.Primary(), cm.ReplicaQuerier(), converter, logger)
	subscriptionService := subscriptions.NewPostgresService(cm.Primary(), clock, logger)

	ledger := billing.NewLedger(logger)
	engine := billing.NewEngine(ledger, subscriptionService, clock, logger).WithMetrics(metrics)
	simulator := billing.NewSimulator(
		billing.NewSelector(cm.Primary(), clock),
		engine,
		cm,
		clock,
		billing.Limits{
			DefaultMaxSubscriptions: cfg.Billing.DefaultMaxSubscriptions,
			DefaultMaxPeriods:       cfg.Billing.DefaultMaxPeriods,
			MaxSubscriptions:        cfg.Billing.MaxSubscriptionsLimit,
			MaxPeriods:              cfg.Billing.MaxPeriodsLimit,
		},
		logger,
	).WithMetrics(metrics)

	handler := api.NewServer(api.Services{
		Plans:         planService,
		Subscriptions: subscriptionService,
		Events:        api.LedgerEvents(ledger, cm.Primary()),
		Simulator:     simulator,
		Rates:         converter,
	}, clock, logger).WithMetrics(metrics)

	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	var redisForHealth *redis.Client
	if redisClient != nil {
		redisForHealth = redisClient.GetClient()
	}
	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(cm.Primary(), redisForHealth, version).WithPools(cm).WithMetrics(metrics))
	if metrics != nil {
		observability.RegisterMetricsEndpoint(healthMux, prometheus.DefaultGatherer)
	}
	healthServer := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler: healthMux,
	}

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout, apiServer, healthServer)
	shutdown.RegisterShutdownFunc(func(context.Context) error { return cm.Close() })
	if redisClient != nil {
		shutdown.RegisterShutdownFunc(func(context.Context) error { return redisClient.Close() })
	}
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, providers, logger)
	})

	serveErr := make(chan error, 2)
	for _, srv := range []*http.Server{apiServer, healthServer} {
		go func(srv *http.Server) {
			logger.WithField("addr", srv.Addr).Info("listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
		}(srv)
	}

	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := <-serveErr; err != nil {
			logger.WithError(err).Error("server failed")
			cancel()
		}
	}()

	logger.WithField("version", version).Info("subledger started")
	return shutdown.WaitForShutdown(waitCtx)
}
