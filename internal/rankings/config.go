package rankings

import (
	"errors"
	"net/url"
	"time"
)

// Default values for the rankings client.
const (
	DefaultBaseURL = "https://lens-api.k3l.io"
	DefaultPerPage = 50
)

// Configuration errors.
var (
	ErrEmptyBaseURL    = errors.New("rankings base URL cannot be empty")
	ErrInvalidBaseURL  = errors.New("rankings base URL must be an absolute http(s) URL")
	ErrInvalidPerPage  = errors.New("per page must be positive")
	ErrNegativeTimeout = errors.New("timeout cannot be negative")
)

// Config holds configuration for the rankings client.
type Config struct {
	// BaseURL is the API host, e.g. https://lens-api.k3l.io.
	BaseURL string

	// PerPage is the page size sent as limit on paginated endpoints.
	PerPage int

	// Timeout bounds each request. Zero means no client-side timeout.
	Timeout time.Duration

	// StrictDecode rejects payloads missing required fields instead of
	// decoding them to zero values.
	StrictDecode bool
}

// DefaultConfig returns a Config pointed at the public API.
func DefaultConfig() Config {
	return Config{
		BaseURL: DefaultBaseURL,
		PerPage: DefaultPerPage,
	}
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return ErrEmptyBaseURL
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ErrInvalidBaseURL
	}
	if c.PerPage <= 0 {
		return ErrInvalidPerPage
	}
	if c.Timeout < 0 {
		return ErrNegativeTimeout
	}
	return nil
}
