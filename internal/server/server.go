// Package server hosts the todo API over HTTP together with health, metrics
// and expvar endpoints.
package server

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	stdlog "log"
	"net"
	"net/http"
	"sync"
	"time"

	"todoapi/internal/core"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultAddress is used when Options.Addr is empty.
const DefaultAddress = ":8080"

// Options configures the HTTP server. Zero timeouts take conservative
// defaults.
type Options struct {
	Addr              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	Logger            core.Logger
	ErrorLog          *stdlog.Logger
	// CORSOrigins lists allowed origins; "*" allows any. Empty disables CORS headers.
	CORSOrigins []string
	// Registry, when set, receives the HTTP collectors and is served on /metrics.
	Registry *prometheus.Registry
	// Expvar serves /debug/vars.
	Expvar bool
}

// Server wraps net/http.Server with the middleware chain.
type Server struct {
	http    *http.Server
	opts    Options
	logger  core.Logger
	metrics *httpMetrics

	mu       sync.Mutex
	listener net.Listener
	done     chan struct{}
}

// New builds a server routing everything that is not an operational endpoint
// to api.
func New(api http.Handler, opts Options) (*Server, error) {
	if api == nil {
		return nil, errors.New("server: api handler is nil")
	}
	if opts.Addr == "" {
		opts.Addr = DefaultAddress
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 10 * time.Second
	}
	if opts.ReadHeaderTimeout == 0 {
		opts.ReadHeaderTimeout = 5 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 15 * time.Second
	}
	if opts.IdleTimeout == 0 {
		opts.IdleTimeout = 60 * time.Second
	}
	if opts.ShutdownTimeout == 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = core.NopLogger()
	}

	s := &Server{opts: opts, logger: opts.Logger}
	mux := http.NewServeMux()
	mux.Handle("/", api)
	mux.HandleFunc("GET /healthz", handleHealthz)
	if opts.Registry != nil {
		m, err := newHTTPMetrics(opts.Registry)
		if err != nil {
			return nil, fmt.Errorf("register http metrics: %w", err)
		}
		s.metrics = m
		mux.Handle("GET /metrics", promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{ErrorLog: opts.ErrorLog}))
	}
	if opts.Expvar {
		mux.Handle("GET /debug/vars", expvar.Handler())
	}

	s.http = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.wrap(mux),
		ReadTimeout:       opts.ReadTimeout,
		ReadHeaderTimeout: opts.ReadHeaderTimeout,
		WriteTimeout:      opts.WriteTimeout,
		IdleTimeout:       opts.IdleTimeout,
		ErrorLog:          opts.ErrorLog,
	}
	return s, nil
}

// Handler returns the full middleware-wrapped handler.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// Start binds the listen address and serves in a background goroutine. Bind
// errors are returned directly.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.opts.Addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	s.logger.Info("listening", "addr", ln.Addr().String())
	go func() {
		defer close(done)
		if err := s.http.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("serve failed", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address once started, else the configured one.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.opts.Addr
}

// Stop drains in-flight requests, waiting up to ShutdownTimeout.
func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.ShutdownTimeout)
	defer cancel()
	err := s.http.Shutdown(ctx)
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
		}
	}
	s.logger.Info("stopped")
	return err
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}` + "\n"))
}
