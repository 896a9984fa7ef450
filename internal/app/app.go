package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"CaseCollector/internal/casestore"
	"CaseCollector/internal/config"
	"CaseCollector/internal/extract"
	"CaseCollector/internal/infrastructure/scheduler"
	"CaseCollector/internal/infrastructure/sources"
	"CaseCollector/internal/infrastructure/storage"
	"CaseCollector/internal/infrastructure/telegram"
	"CaseCollector/internal/logging"
	"CaseCollector/internal/metrics"
	"CaseCollector/internal/ports"
	"CaseCollector/internal/source"
	"CaseCollector/internal/transport/httpapi"
	"CaseCollector/internal/usecase"
	"CaseCollector/internal/validate"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	docs      ports.DocumentStore
	registry  *prometheus.Registry
	metrics   *metrics.Metrics
	collector *usecase.Collector
}

// Open validates cfg, connects the configured storage backend and builds the collector.
// The periodic trigger starts only when cfg.Collector.Enabled is set.
func Open(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	docs, err := OpenStorage(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	var notifier ports.Notifier
	if tg := cfg.Notifications.Telegram; tg.Enabled() {
		notifier = telegram.NewNotifier(tg.BotToken, tg.ChatID, telegram.WithBaseURL(tg.BaseURL))
	}

	collector := usecase.NewCollector(
		usecase.Settings{
			Enabled:      cfg.Collector.Enabled,
			RequestDelay: cfg.Collector.RequestDelay,
			MaxArticles:  cfg.Collector.MaxArticles,
			Keywords:     cfg.Collector.Keywords,
			Sources:      cfg.Collector.Sources,
			Location:     cfg.Collector.Location(),
		},
		usecase.CollectorDeps{
			Sources:   newSourceRegistry(cfg.Sources, baseLogger),
			Store:     casestore.New(docs, casestore.WithLogger(baseLogger)),
			Extractor: extract.New(extract.WithLogger(baseLogger)),
			Validator: validate.New(cfg.Collector.AutoApproveThreshold),
			Scheduler: scheduler.NewIntervalScheduler(cfg.Collector.Interval),
			Notifier:  notifier,
			Metrics:   m,
			Logger:    baseLogger,
		},
	)

	if err := collector.Initialize(ctx); err != nil {
		_ = docs.Close()
		return nil, err
	}

	baseLogger.Info("application ready",
		"storage", cfg.Storage.Driver,
		"sources", cfg.Collector.Sources,
		"periodic", cfg.Collector.Enabled,
		"telegram", notifier != nil,
	)

	return &Application{
		cfg:       cfg,
		logger:    baseLogger,
		docs:      docs,
		registry:  registry,
		metrics:   m,
		collector: collector,
	}, nil
}

// OpenStorage connects the document store named by cfg.Driver.
func OpenStorage(ctx context.Context, cfg config.StorageConfig) (ports.DocumentStore, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return storage.NewMemoryStore(), nil
	case config.DriverFile:
		return storage.NewFileStore(cfg.DataDir)
	case config.DriverSQLite:
		if dir := filepath.Dir(cfg.DSN); dir != "." && !strings.HasPrefix(cfg.DSN, "file:") {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
		return storage.OpenSQL(ctx, storage.DriverSQLite, cfg.DSN)
	case config.DriverPostgres:
		return storage.OpenSQL(ctx, storage.DriverPostgres, cfg.DSN)
	case config.DriverRedis:
		return storage.NewRedisStore(storage.RedisConfig{
			Addrs:    cfg.Redis.Addrs,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func newSourceRegistry(cfg config.SourcesConfig, logger *slog.Logger) *source.Registry {
	opts := func(sc config.SourceConfig) sources.Options {
		return sources.Options{BaseURL: sc.BaseURL, Timeout: sc.Timeout, Logger: logger}
	}
	return source.NewRegistry(
		sources.NewOASIS(opts(cfg.OASIS)),
		sources.NewKCI(opts(cfg.KCI)),
		sources.NewPubMed(opts(cfg.PubMed), cfg.PubMed.APIKey),
	)
}

// Collector exposes the collector to the CLI.
func (a *Application) Collector() *usecase.Collector {
	return a.collector
}

// Handler builds the HTTP API.
func (a *Application) Handler() http.Handler {
	return httpapi.NewRouter(a.collector, a.metrics, a.registry, a.logger)
}

// Serve runs the HTTP API until ctx is cancelled, then shuts the server down gracefully.
func (a *Application) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:         a.cfg.HTTP.Addr,
		Handler:      a.Handler(),
		ReadTimeout:  a.cfg.HTTP.ReadTimeout,
		WriteTimeout: a.cfg.HTTP.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("starting HTTP server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("received shutdown signal")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	a.logger.Info("server stopped gracefully")
	return nil
}

// Close stops the periodic trigger and releases the storage backend.
func (a *Application) Close(ctx context.Context) error {
	return errors.Join(a.collector.Cleanup(ctx), a.docs.Close())
}
