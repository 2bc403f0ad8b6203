package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/onnwee/lensrank/internal/rankings"
	"github.com/onnwee/lensrank/internal/strategy"
)

type fakeCounter struct {
	count      int
	err        error
	strategyID string
	deadline   bool
}

func (f *fakeCounter) RankingsCount(ctx context.Context, strategyID string) (int, error) {
	f.strategyID = strategyID
	_, f.deadline = ctx.Deadline()
	return f.count, f.err
}

func TestUpstreamChecker_Healthy(t *testing.T) {
	counter := &fakeCounter{count: 120000}
	checker := NewUpstreamChecker(counter, 0)

	if err := checker.HealthCheck(context.Background()); err != nil {
		t.Fatalf("expected healthy upstream, got %v", err)
	}
	if counter.strategyID != strategy.Default().ID {
		t.Errorf("expected probe of strategy %s, got %s", strategy.Default().ID, counter.strategyID)
	}
	if !counter.deadline {
		t.Error("expected probe context to carry a deadline")
	}
	if checker.timeout != DefaultUpstreamTimeout {
		t.Errorf("expected default timeout, got %v", checker.timeout)
	}
}

func TestUpstreamChecker_Failures(t *testing.T) {
	upstreamErr := errors.New("connection refused")

	tests := []struct {
		name    string
		counter RankingsCounter
		wantErr error
	}{
		{"nil counter", nil, ErrNoCounter},
		{"upstream error", &fakeCounter{err: upstreamErr}, upstreamErr},
		{"zero count", &fakeCounter{count: 0}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewUpstreamChecker(tt.counter, time.Second).HealthCheck(context.Background())
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestUpstreamChecker_WithRankingsClient(t *testing.T) {
	var hits atomic.Int32
	var status atomic.Int32
	status.Store(http.StatusOK)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != rankings.PathRankingsCount {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.WriteHeader(int(status.Load()))
		_, _ = w.Write([]byte(`{"count":42}`))
	}))
	defer server.Close()

	cfg := rankings.DefaultConfig()
	cfg.BaseURL = server.URL
	client, err := rankings.NewClient(cfg, nil)
	if err != nil {
		t.Fatalf("NewClient() failed: %v", err)
	}

	checker := NewUpstreamChecker(client, time.Second)
	if err := checker.HealthCheck(context.Background()); err != nil {
		t.Fatalf("expected healthy upstream, got %v", err)
	}

	status.Store(http.StatusServiceUnavailable)
	err = checker.HealthCheck(context.Background())
	if !errors.Is(err, rankings.ErrRequestFailed) {
		t.Errorf("expected ErrRequestFailed, got %v", err)
	}
	if hits.Load() != 2 {
		t.Errorf("expected 2 upstream calls, got %d", hits.Load())
	}
}
