package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/onnwee/lensrank/internal/api"
	"github.com/onnwee/lensrank/internal/config"
	"github.com/onnwee/lensrank/internal/health"
	"github.com/onnwee/lensrank/internal/middleware"
	"github.com/onnwee/lensrank/internal/rankings"
	"github.com/onnwee/lensrank/internal/tracing"
)

const (
	serviceName     = "lensrank-api"
	shutdownTimeout = 10 * time.Second
	corsMaxAge      = 600
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// routerDeps are the collaborators newHandler wires together.
type routerDeps struct {
	Config      *config.Config
	Logger      *slog.Logger
	Rankings    api.RankingsService
	Upstream    api.HealthChecker
	Registry    *prometheus.Registry // nil disables /metrics
	HTTPMetrics *middleware.Metrics
}

// newHandler builds the router and wraps it in the middleware chain:
// RequestID -> Tracing -> Logging -> CORS -> router.
func newHandler(d routerDeps) http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.RouteSpanName)
	if d.HTTPMetrics != nil {
		r.Use(middleware.HTTPMetrics(d.HTTPMetrics))
	}

	healthHandlers := api.NewHealthHandlers(api.HealthHandlersConfig{
		UpstreamChecker: d.Upstream,
		MetricsEnabled:  d.Registry != nil,
	})
	r.HandleFunc("/health", healthHandlers.Health)
	r.HandleFunc("/ready", healthHandlers.Ready)

	if d.Registry != nil {
		metricsHandler := promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{})
		r.Handle("/metrics", middleware.InternalToken(d.Config.MetricsToken)(metricsHandler)).Methods(http.MethodGet)
	}

	api.NewRankingsHandlers(d.Rankings, d.Logger).Register(r)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeNotFound)
		api.WriteError(w, ctx, http.StatusNotFound, api.ErrCodeNotFound, "The requested resource was not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeBadRequest)
		api.WriteError(w, ctx, http.StatusMethodNotAllowed, api.ErrCodeBadRequest, "Method not allowed")
	})

	var handler http.Handler = r
	handler = middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: d.Config.CORSAllowedOrigins,
		MaxAge:         corsMaxAge,
		Logger:         d.Logger,
	})(handler)
	handler = middleware.Logging(d.Logger)(handler)
	handler = middleware.Tracing(serviceName)(handler)
	handler = middleware.RequestID(handler)
	return handler
}

// run initializes tracing, metrics and the rankings client, then serves
// until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	tp, err := tracing.NewProvider(cfg.TracingConfig(serviceName, version), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown tracer provider", "error", err)
		}
	}()

	var (
		registry    *prometheus.Registry
		httpMetrics *middleware.Metrics
		clientOpts  []rankings.Option
	)
	if cfg.MetricsEnabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)

		upstreamMetrics := rankings.NewMetrics()
		if err := upstreamMetrics.Register(registry); err != nil {
			return fmt.Errorf("failed to register rankings metrics: %w", err)
		}
		httpMetrics = middleware.NewMetrics()
		if err := httpMetrics.Register(registry); err != nil {
			return fmt.Errorf("failed to register http metrics: %w", err)
		}
		clientOpts = append(clientOpts, rankings.WithMetrics(upstreamMetrics))
	}

	client, err := rankings.NewClient(cfg.RankingsConfig(), logger, clientOpts...)
	if err != nil {
		return fmt.Errorf("failed to create rankings client: %w", err)
	}

	server := &http.Server{
		Addr: ":" + strconv.Itoa(cfg.Port),
		Handler: newHandler(routerDeps{
			Config:      cfg,
			Logger:      logger,
			Rankings:    client,
			Upstream:    health.NewUpstreamChecker(client, health.DefaultUpstreamTimeout),
			Registry:    registry,
			HTTPMetrics: httpMetrics,
		}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", server.Addr, err)
	}
	return serve(ctx, server, ln, logger)
}

// serve runs server on ln until ctx is cancelled, then shuts it down,
// letting in-flight requests finish within shutdownTimeout.
func serve(ctx context.Context, server *http.Server, ln net.Listener, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", ln.Addr().String())
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}
