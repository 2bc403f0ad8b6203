// Package health provides readiness checks for the services lensrank depends on.
package health

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/onnwee/lensrank/internal/strategy"
)

// DefaultUpstreamTimeout bounds a single readiness probe of the rankings API.
const DefaultUpstreamTimeout = 3 * time.Second

// ErrNoCounter is returned when the checker has nothing to probe.
var ErrNoCounter = errors.New("rankings client not configured")

// RankingsCounter is the slice of the rankings client the checker needs.
type RankingsCounter interface {
	RankingsCount(ctx context.Context, strategyID string) (int, error)
}

// UpstreamChecker reports the rankings API healthy when a count request
// for the default strategy succeeds.
type UpstreamChecker struct {
	counter    RankingsCounter
	strategyID string
	timeout    time.Duration
}

// NewUpstreamChecker creates a checker probing the default strategy's count.
// A non-positive timeout selects DefaultUpstreamTimeout.
func NewUpstreamChecker(counter RankingsCounter, timeout time.Duration) *UpstreamChecker {
	if timeout <= 0 {
		timeout = DefaultUpstreamTimeout
	}
	return &UpstreamChecker{
		counter:    counter,
		strategyID: strategy.Default().ID,
		timeout:    timeout,
	}
}

// HealthCheck calls RankingsCount and fails on any error, including an
// upstream that answers but reports no ranked profiles.
func (u *UpstreamChecker) HealthCheck(ctx context.Context) error {
	if u.counter == nil {
		return ErrNoCounter
	}

	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	count, err := u.counter.RankingsCount(ctx, u.strategyID)
	if err != nil {
		return fmt.Errorf("rankings api unhealthy: %w", err)
	}
	if count <= 0 {
		return fmt.Errorf("rankings api unhealthy: strategy %s has no ranked profiles", u.strategyID)
	}
	return nil
}
