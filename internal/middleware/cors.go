package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/rs/cors"
)

// CORSConfig holds the configuration for CORS middleware.
type CORSConfig struct {
	AllowedOrigins []string // explicit origins, no wildcards
	MaxAge         int      // preflight cache duration in seconds
	Logger         *slog.Logger
}

// CORS returns a middleware that handles Cross-Origin Resource Sharing for
// the read-only API. With no origins configured it is a pass-through.
// Wildcard entries are dropped; only explicitly listed origins are allowed.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	origins := make([]string, 0, len(cfg.AllowedOrigins))
	for _, origin := range cfg.AllowedOrigins {
		origin = strings.TrimSpace(origin)
		if origin == "" || strings.Contains(origin, "*") {
			continue
		}
		origins = append(origins, origin)
	}

	if len(origins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	opts := cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader},
		MaxAge:         cfg.MaxAge,
	}
	if cfg.Logger != nil {
		opts.Logger = slog.NewLogLogger(cfg.Logger.Handler(), slog.LevelDebug)
	}
	return cors.New(opts).Handler
}
