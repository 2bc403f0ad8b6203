// Package config provides configuration loading and validation for the API server.
// It uses koanf to merge environment variables with optional file overrides.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/onnwee/lensrank/internal/rankings"
	"github.com/onnwee/lensrank/internal/tracing"
)

// Config holds all configuration values for the API server.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Upstream rankings API
	LensAPIURL     string        `koanf:"lens_api_url"`
	PerPage        int           `koanf:"per_page"`
	RequestTimeout time.Duration `koanf:"request_timeout"` // 0 disables the client-side timeout
	StrictDecode   bool          `koanf:"strict_decode"`

	// CORS
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`

	// Tracing
	TracingEnabled    bool    `koanf:"tracing_enabled"`
	TracingExporter   string  `koanf:"tracing_exporter"`
	TracingEndpoint   string  `koanf:"tracing_endpoint"`
	TracingSampleRate float64 `koanf:"tracing_sample_rate"`
	TracingInsecure   bool    `koanf:"tracing_insecure"`

	// Metrics
	MetricsEnabled bool   `koanf:"metrics_enabled"`
	MetricsToken   string `koanf:"metrics_token"` // optional X-Internal-Token guard for /metrics
}

// Configuration validation errors.
var (
	ErrInvalidPort           = errors.New("PORT must be a valid integer")
	ErrPortOutOfRange        = errors.New("PORT must be between 1 and 65535")
	ErrInvalidLensAPIURL     = errors.New("LENS_API_URL must be an absolute http(s) URL")
	ErrInvalidPerPage        = errors.New("PER_PAGE must be a positive integer")
	ErrInvalidRequestTimeout = errors.New("REQUEST_TIMEOUT must be a non-negative duration")
	ErrInvalidSampleRate     = errors.New("TRACING_SAMPLE_RATE must be between 0 and 1")
	ErrInvalidBool           = errors.New("value must be a boolean")
)

// Default values for non-secret configuration.
const (
	DefaultPort              = 8080
	DefaultEnv               = "development"
	DefaultLensAPIURL        = rankings.DefaultBaseURL
	DefaultPerPage           = rankings.DefaultPerPage
	DefaultRequestTimeout    = time.Duration(0)
	DefaultTracingExporter   = "otlp-http"
	DefaultTracingSampleRate = 0.1
	DefaultMetricsEnabled    = true
)

// Load reads configuration from environment variables and an optional config file.
// Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if valid).
// If a config file path is provided and the file cannot be loaded, an error is returned.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	// Load from YAML file first if provided (lower precedence)
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	// Try LENSRANK_PORT first, then PORT
	port, err := getEnvIntOrDefaultMulti([]string{"LENSRANK_PORT", "PORT"}, k.Int("port"), DefaultPort)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}

	perPage, err := getEnvIntOrDefault("PER_PAGE", k.Int("per_page"), DefaultPerPage)
	if err != nil {
		loadErrs = append(loadErrs, fmt.Errorf("%w: %w", ErrInvalidPerPage, err))
	}

	timeout, err := getEnvDurationOrDefault("REQUEST_TIMEOUT", k, "request_timeout", DefaultRequestTimeout)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}

	sampleRate, err := getEnvFloatOrDefault("TRACING_SAMPLE_RATE", k, "tracing_sample_rate", DefaultTracingSampleRate)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}

	strictDecode, err := getEnvBoolOrDefault("STRICT_DECODE", k, "strict_decode", false)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	tracingEnabled, err := getEnvBoolOrDefault("TRACING_ENABLED", k, "tracing_enabled", false)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	tracingInsecure, err := getEnvBoolOrDefault("TRACING_INSECURE", k, "tracing_insecure", false)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	metricsEnabled, err := getEnvBoolOrDefault("METRICS_ENABLED", k, "metrics_enabled", DefaultMetricsEnabled)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}

	cfg := &Config{
		Port:               port,
		Env:                getEnvOrDefaultMulti([]string{"LENSRANK_ENV", "ENV", "GO_ENV"}, k.String("env"), DefaultEnv),
		LensAPIURL:         getEnvOrDefault("LENS_API_URL", k.String("lens_api_url"), DefaultLensAPIURL),
		PerPage:            perPage,
		RequestTimeout:     timeout,
		StrictDecode:       strictDecode,
		CORSAllowedOrigins: getEnvListOrKoanf("CORS_ALLOWED_ORIGINS", k, "cors_allowed_origins"),
		TracingEnabled:     tracingEnabled,
		TracingExporter:    getEnvOrDefault("TRACING_EXPORTER", k.String("tracing_exporter"), DefaultTracingExporter),
		TracingEndpoint:    getEnvOrDefault("TRACING_ENDPOINT", k.String("tracing_endpoint"), ""),
		TracingSampleRate:  sampleRate,
		TracingInsecure:    tracingInsecure,
		MetricsEnabled:     metricsEnabled,
		MetricsToken:       getEnvOrDefault("METRICS_TOKEN", k.String("metrics_token"), ""),
	}

	errs := cfg.Validate()
	errs = append(loadErrs, errs...)

	return cfg, errs
}

// RankingsConfig returns the rankings client configuration derived from c.
func (c *Config) RankingsConfig() rankings.Config {
	return rankings.Config{
		BaseURL:      c.LensAPIURL,
		PerPage:      c.PerPage,
		Timeout:      c.RequestTimeout,
		StrictDecode: c.StrictDecode,
	}
}

// TracingConfig returns the tracing provider configuration derived from c.
func (c *Config) TracingConfig(serviceName, serviceVersion string) tracing.Config {
	return tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
		Enabled:        c.TracingEnabled,
		Environment:    c.Env,
		ExporterType:   c.TracingExporter,
		OTLPEndpoint:   c.TracingEndpoint,
		SamplingRate:   c.TracingSampleRate,
		InsecureMode:   c.TracingInsecure,
	}
}

// getEnvOrDefault returns the environment variable value if set, otherwise the koanf value, or default.
func getEnvOrDefault(envKey string, koanfVal string, defaultVal string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvOrDefaultMulti tries multiple environment variable keys in order.
func getEnvOrDefaultMulti(envKeys []string, koanfVal string, defaultVal string) string {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvListOrKoanf reads a comma-separated env var, falling back to a koanf list.
func getEnvListOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) []string {
	raw := k.Strings(koanfKey)
	if val := os.Getenv(envKey); val != "" {
		raw = strings.Split(val, ",")
	}

	var out []string
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// getEnvIntOrDefault returns the environment variable as int if set, otherwise the koanf value, or default.
// A zero koanf value falls back to the default.
func getEnvIntOrDefault(envKey string, koanfVal int, defaultVal int) (int, error) {
	if val := os.Getenv(envKey); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid integer: %w", envKey, err)
		}
		return i, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvIntOrDefaultMulti tries multiple environment variable keys in order.
func getEnvIntOrDefaultMulti(envKeys []string, koanfVal int, defaultVal int) (int, error) {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			i, err := strconv.Atoi(val)
			if err != nil {
				return 0, fmt.Errorf("%s must be a valid integer: %w", key, ErrInvalidPort)
			}
			return i, nil
		}
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvDurationOrDefault parses a Go duration string ("5s", "1m") from env or file.
func getEnvDurationOrDefault(envKey string, k *koanf.Koanf, koanfKey string, defaultVal time.Duration) (time.Duration, error) {
	raw := os.Getenv(envKey)
	if raw == "" && k.Exists(koanfKey) {
		raw = k.String(koanfKey)
	}
	if raw == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidRequestTimeout, err)
	}
	return d, nil
}

// getEnvFloatOrDefault returns the environment variable as float64 if set, otherwise the koanf value, or default.
func getEnvFloatOrDefault(envKey string, k *koanf.Koanf, koanfKey string, defaultVal float64) (float64, error) {
	if val := os.Getenv(envKey); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid float: %w", envKey, err)
		}
		return f, nil
	}
	if k.Exists(koanfKey) {
		return k.Float64(koanfKey), nil
	}
	return defaultVal, nil
}

// getEnvBoolOrDefault reads a boolean flag; env takes precedence over file.
func getEnvBoolOrDefault(envKey string, k *koanf.Koanf, koanfKey string, defaultVal bool) (bool, error) {
	result := defaultVal
	if k.Exists(koanfKey) {
		result = k.Bool(koanfKey)
	}
	if val := os.Getenv(envKey); val != "" {
		switch strings.ToLower(val) {
		case "true", "1", "yes", "on":
			result = true
		case "false", "0", "no", "off":
			result = false
		default:
			return defaultVal, fmt.Errorf("%s: %w", envKey, ErrInvalidBool)
		}
	}
	return result, nil
}

// Validate checks that configuration values are usable.
// Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, ErrPortOutOfRange)
	}

	u, err := url.Parse(c.LensAPIURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, ErrInvalidLensAPIURL)
	}

	if c.PerPage <= 0 {
		errs = append(errs, ErrInvalidPerPage)
	}
	if c.RequestTimeout < 0 {
		errs = append(errs, ErrInvalidRequestTimeout)
	}
	if c.TracingSampleRate < 0 || c.TracingSampleRate > 1 {
		errs = append(errs, ErrInvalidSampleRate)
	}

	return errs
}

// LogSummary returns a summary of the configuration suitable for logging.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                 strconv.Itoa(c.Port),
		"env":                  c.Env,
		"lens_api_url":         c.LensAPIURL,
		"per_page":             strconv.Itoa(c.PerPage),
		"request_timeout":      c.RequestTimeout.String(),
		"strict_decode":        strconv.FormatBool(c.StrictDecode),
		"cors_allowed_origins": strings.Join(c.CORSAllowedOrigins, ","),
		"tracing_enabled":      strconv.FormatBool(c.TracingEnabled),
		"tracing_exporter":     c.TracingExporter,
		"tracing_endpoint":     valueOrNotSet(c.TracingEndpoint),
		"tracing_sample_rate":  strconv.FormatFloat(c.TracingSampleRate, 'f', -1, 64),
		"metrics_enabled":      strconv.FormatBool(c.MetricsEnabled),
		"metrics_token":        maskSecret(c.MetricsToken),
	}
}

func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	return "****"
}

func valueOrNotSet(s string) string {
	if s == "" {
		return "<not set>"
	}
	return s
}
