// Package main is the entry point for the Mercura BFF server.
// It wires all dependencies together and starts the HTTP server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pitabwire/mercura/internal/collection"
	"github.com/pitabwire/mercura/internal/command"
	"github.com/pitabwire/mercura/internal/config"
	"github.com/pitabwire/mercura/internal/definition"
	"github.com/pitabwire/mercura/internal/enrich"
	"github.com/pitabwire/mercura/internal/metadata"
	"github.com/pitabwire/mercura/internal/observability"
	"github.com/pitabwire/mercura/internal/transport"
	"github.com/pitabwire/mercura/internal/wizard"
)

// Build-time variables set via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc1234"
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return 1
	}

	observability.Version = version
	observability.Commit = commit

	logger, err := observability.NewLogger(cfg.Observability)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		return 1
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	tracingShutdown, err := observability.InitTracing(ctx, cfg.Observability.Tracing, "mercura-bff", version)
	if err != nil {
		logger.Error("tracing initialization failed", zap.Error(err))
		return 1
	}

	var metrics *observability.Metrics
	if cfg.Observability.Metrics.Enabled {
		metrics = observability.InitMetrics(prometheus.DefaultRegisterer)
	}

	// Load resource definitions, validate, build registry.
	loader := definition.NewLoader()
	defs, err := loader.LoadAll(cfg.Definitions.Directories)
	if err != nil {
		logger.Error("definition loading failed", zap.Error(err))
		return 1
	}
	verrs := definition.NewValidator().Validate(defs)
	if len(verrs) > 0 {
		for _, ve := range verrs {
			logger.Error("definition validation error", zap.String("error", ve.Error()))
		}
		return 1
	}
	registry := definition.NewRegistry(defs)
	if metrics != nil {
		metrics.SetDefinitionsLoaded(float64(len(defs)))
	}

	// Upstream collection client with a read-through list cache.
	client := collection.NewClient(cfg.Upstream, logger)
	lister := collection.NewCachedLister(client, cfg.Cache.TTL, cfg.Cache.MaxEntries)

	var enricher *enrich.Enricher
	if cfg.Enrichment.Enabled {
		enricher = enrich.NewEnricher(enrich.NewSeededProvider(cfg.Enrichment.Seed))
	}

	idemStore, idemCloser, err := buildIdempotencyStore(ctx, cfg.Idempotency, logger)
	if err != nil {
		logger.Error("idempotency store initialization failed", zap.Error(err))
		return 1
	}

	var execOpts []command.ExecutorOption
	if idemStore != nil {
		execOpts = append(execOpts, command.WithIdempotencyStore(idemStore, cfg.Idempotency.Store.DefaultTTL))
	}
	if metrics != nil {
		execOpts = append(execOpts, command.WithObserver(metricsObserver{metrics}))
	}
	executor := command.NewExecutor(registry, client, lister, logger, execOpts...)

	sessionStore, storeCloser, err := buildSessionStore(ctx, cfg.Wizard, logger)
	if err != nil {
		logger.Error("session store initialization failed", zap.Error(err))
		return 1
	}
	engine := wizard.NewEngine(registry, sessionStore, executor, logger,
		wizard.WithSessionTTL(cfg.Wizard.SessionTTL))

	readinessChecks := observability.ReadinessChecks{
		DefinitionsLoaded: func() bool { return len(registry.AllResources()) > 0 },
		UpstreamHealthy:   func() bool { return client.Breaker().State() != collection.BreakerOpen },
	}
	if hc, ok := sessionStore.(observability.HealthChecker); ok {
		readinessChecks.SessionStore = hc
	}
	if hc, ok := idemStore.(observability.HealthChecker); ok {
		readinessChecks.IdempotencyStore = hc
	}

	router := transport.NewRouter(transport.Dependencies{
		Config:   cfg,
		Logger:   logger,
		Pages:    metadata.NewPageProvider(registry, lister, enricher, logger),
		Forms:    metadata.NewFormProvider(registry, lister, logger),
		Executor: executor,
		Wizard:   engine,
		Metrics:  metrics,
		Ready:    readinessChecks,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	bgCtx, bgCancel := context.WithCancel(ctx)
	defer bgCancel()
	go runSessionExpiryProcessor(bgCtx, engine, cfg.Wizard.ExpiryCheckInterval, logger)

	logger.Info("server started",
		zap.Int("port", cfg.Server.Port),
		zap.String("version", version),
		zap.String("commit", commit),
		zap.Int("definitions", len(defs)),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown initiated")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		return 1
	}

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout == 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	// Stop accepting new connections and drain in-flight requests.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	bgCancel()

	if storeCloser != nil {
		storeCloser()
	}
	if idemCloser != nil {
		idemCloser()
	}

	if err := tracingShutdown(shutdownCtx); err != nil {
		logger.Error("tracing shutdown error", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return 0
}

// buildSessionStore creates the wizard session store based on config.
func buildSessionStore(ctx context.Context, cfg config.WizardConfig, logger *zap.Logger) (wizard.SessionStore, func(), error) {
	switch cfg.Store.Driver {
	case "memory", "":
		logger.Info("using in-memory wizard session store")
		return wizard.NewMemorySessionStore(), nil, nil
	case "postgres":
		dsn := os.Getenv(cfg.Store.DSNEnv)
		if dsn == "" {
			if cfg.Store.DSNEnv != "" {
				return nil, nil, fmt.Errorf("session store: %s environment variable not set", cfg.Store.DSNEnv)
			}
			logger.Warn("session store DSN not configured, using in-memory store")
			return wizard.NewMemorySessionStore(), nil, nil
		}

		poolCfg, err := pgxpool.ParseConfig(dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("session store: parse DSN: %w", err)
		}
		poolCfg.MaxConns = int32(cfg.Store.MaxOpenConns)
		poolCfg.MinConns = int32(cfg.Store.MaxIdleConns)
		poolCfg.MaxConnLifetime = cfg.Store.ConnMaxLifetime

		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("session store: connect: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("session store: ping: %w", err)
		}
		return wizard.NewPgSessionStore(pool), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported session store driver: %q", cfg.Store.Driver)
	}
}

// buildIdempotencyStore creates the idempotency store based on config.
// Returns a nil store when idempotency is disabled.
func buildIdempotencyStore(ctx context.Context, cfg config.IdempotencyConfig, logger *zap.Logger) (command.IdempotencyStore, func(), error) {
	if !cfg.Enabled {
		return nil, nil, nil
	}

	switch cfg.Store.Driver {
	case "memory", "":
		logger.Info("using in-memory idempotency store")
		return command.NewMemoryIdempotencyStore(), nil, nil
	case "redis":
		addr := os.Getenv(cfg.Store.AddrEnv)
		if addr == "" {
			if cfg.Store.AddrEnv != "" {
				return nil, nil, fmt.Errorf("idempotency store: %s environment variable not set", cfg.Store.AddrEnv)
			}
			logger.Warn("idempotency store address not configured, using in-memory store")
			return command.NewMemoryIdempotencyStore(), nil, nil
		}

		client := redis.NewClient(&redis.Options{Addr: addr, DB: cfg.Store.DB})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("idempotency store: ping: %w", err)
		}
		return command.NewRedisIdempotencyStore(client), func() { client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported idempotency store driver: %q", cfg.Store.Driver)
	}
}

// runSessionExpiryProcessor periodically marks overdue wizard sessions expired.
func runSessionExpiryProcessor(ctx context.Context, engine *wizard.Engine, interval time.Duration, logger *zap.Logger) {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := engine.ProcessExpirations(ctx); err != nil {
				logger.Error("session expiry processing failed", zap.Error(err))
			}
		}
	}
}

// metricsObserver records create execution outcomes into Prometheus metrics.
type metricsObserver struct {
	metrics *observability.Metrics
}

func (o metricsObserver) OnCreateExecuted(_ context.Context, event command.Event) {
	status := "success"
	if !event.Success {
		status = "failure"
	}
	o.metrics.RecordCreateExecution(event.FormID, status, event.Duration)
}
