package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"todoapi/internal/adapters/todos"
	"todoapi/internal/blob"
	"todoapi/internal/config"
	"todoapi/internal/core"
	"todoapi/internal/logging"
	"todoapi/internal/server"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const expvarMetricsName = "todoapi_operations"

// app holds the wired process components.
type app struct {
	cfg       config.Config
	logger    *logging.Logger
	store     core.PersistentStore
	service   *core.Service
	handler   *todos.Handler
	server    *server.Server
	registry  *prometheus.Registry
	traceFile *os.File
}

func newApp(ctx context.Context, cfg config.Config, logOut io.Writer) (*app, error) {
	logOpts := cfg.LoggingOptions()
	logOpts.Output = logOut
	logger, err := logging.New(logOpts)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}
	built := false
	defer func() {
		if !built {
			a.close()
		}
	}()

	store, err := core.OpenPersistentStore(ctx, cfg.StorageOptions())
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Storage.Driver, err)
	}
	a.store = store

	opts := []core.Option{core.WithLogger(logger.With("component", "service"))}
	switch cfg.Metrics.Backend {
	case config.MetricsPrometheus:
		a.registry = prometheus.NewRegistry()
		a.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		rec, err := core.NewPrometheusMetricsRecorder(a.registry)
		if err != nil {
			return nil, err
		}
		opts = append(opts, core.WithMetricsRecorder(rec))
	case config.MetricsExpvar:
		opts = append(opts, core.WithMetricsRecorder(core.NewExpvarMetricsRecorder(expvarMetricsName)))
	}
	if path := cfg.Metrics.TraceFile; path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open trace file: %w", err)
		}
		a.traceFile = f
		opts = append(opts, core.WithTracer(core.NewJSONTracer(f)))
	}
	a.service = core.NewService(store, opts...)

	a.handler = todos.NewHandler(a.service)
	a.handler.Logger = logger.With("component", "http")
	if cfg.ExportsEnabled() {
		bs, err := blob.Open(ctx, cfg.BlobOptions())
		if err != nil {
			return nil, fmt.Errorf("open %s export store: %w", cfg.Exports.Driver, err)
		}
		var exportOpts []todos.ExporterOption
		if cfg.Exports.URLExpiry > 0 {
			exportOpts = append(exportOpts, todos.WithURLExpiry(cfg.Exports.URLExpiry))
		}
		a.handler.Exports = todos.NewExporter(a.service, bs, exportOpts...)
	}

	srv, err := server.New(a.handler, server.Options{
		Addr:              cfg.Addr(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ShutdownTimeout:   cfg.Server.ShutdownTimeout,
		Logger:            logger.With("component", "server"),
		ErrorLog:          logger.Std(),
		CORSOrigins:       cfg.Server.CORSOrigins,
		Registry:          a.registry,
		Expvar:            cfg.Metrics.Backend == config.MetricsExpvar,
	})
	if err != nil {
		return nil, err
	}
	a.server = srv
	built = true
	return a, nil
}

// serve starts the listener and blocks until ctx is cancelled.
func (a *app) serve(ctx context.Context) error {
	if err := a.server.Start(); err != nil {
		return err
	}
	a.logger.Info("todoapi started",
		"addr", a.server.Addr(),
		"storage", a.cfg.Storage.Driver,
		"exports", a.cfg.Exports.Driver,
		"metrics", a.cfg.Metrics.Backend,
	)
	<-ctx.Done()
	a.logger.Info("shutting down")
	// ctx is already done; Stop applies its own timeout.
	return a.server.Stop(context.Background())
}

func (a *app) close() {
	var errs []error
	if a.store != nil {
		errs = append(errs, core.CloseStore(a.store))
	}
	if a.traceFile != nil {
		errs = append(errs, a.traceFile.Close())
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Error("close failed", "error", err)
	}
}
