package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/onnwee/lensrank/internal/middleware"
)

// HealthChecker defines the interface for components that can be health checked.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandlers provides health and readiness check endpoints for Kubernetes probes.
type HealthHandlers struct {
	upstreamChecker HealthChecker
	metricsEnabled  bool
	readyTimeout    time.Duration
}

// HealthHandlersConfig configures the health check handlers.
type HealthHandlersConfig struct {
	// UpstreamChecker probes the rankings API. Nil skips the check.
	UpstreamChecker HealthChecker
	MetricsEnabled  bool
	// ReadyTimeout bounds the readiness checks (default 5s).
	ReadyTimeout time.Duration
}

// NewHealthHandlers creates a new health check handler.
func NewHealthHandlers(config HealthHandlersConfig) *HealthHandlers {
	timeout := config.ReadyTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthHandlers{
		upstreamChecker: config.UpstreamChecker,
		metricsEnabled:  config.MetricsEnabled,
		readyTimeout:    timeout,
	}
}

// HealthResponse represents the JSON response for health checks.
type HealthResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

// Health handles GET /health (liveness probe).
// Returns 200 whenever the process can serve requests; upstream state is not consulted.
func (h *HealthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, r)
		return
	}

	writeJSON(w, r, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Checks:    map[string]string{"runtime": "ok"},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready handles GET /ready (readiness probe).
// Returns 503 when the rankings API cannot be reached.
func (h *HealthHandlers) Ready(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, r)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.readyTimeout)
	defer cancel()

	checks := make(map[string]string)
	healthy := true

	if h.upstreamChecker != nil {
		if err := h.upstreamChecker.HealthCheck(ctx); err != nil {
			checks["rankings_api"] = "error"
			healthy = false
			slog.WarnContext(ctx, "rankings api health check failed", "error", err)
		} else {
			checks["rankings_api"] = "ok"
		}
	} else {
		checks["rankings_api"] = "not_configured"
	}

	if h.metricsEnabled {
		checks["metrics"] = "ok"
	} else {
		checks["metrics"] = "disabled"
	}

	status := "healthy"
	statusCode := http.StatusOK
	if !healthy {
		status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, r, statusCode, HealthResponse{
		Status:    status,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func writeMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", http.MethodGet)
	ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
	WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
}
