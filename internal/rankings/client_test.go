package rankings

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// upstream is a scripted stand-in for the rankings API.
type upstream struct {
	t      *testing.T
	status int
	body   string

	mu       sync.Mutex
	requests []*http.Request
}

func (u *upstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	u.mu.Lock()
	u.requests = append(u.requests, r.Clone(context.Background()))
	u.mu.Unlock()

	w.WriteHeader(u.status)
	_, _ = w.Write([]byte(u.body))
}

func (u *upstream) last() *http.Request {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.requests) == 0 {
		u.t.Fatal("expected at least one upstream request")
	}
	return u.requests[len(u.requests)-1]
}

func newTestClient(t *testing.T, status int, body string, cfgFn ...func(*Config)) (*Client, *upstream, *bytes.Buffer, *Metrics) {
	t.Helper()

	up := &upstream{t: t, status: status, body: body}
	server := httptest.NewServer(up)
	t.Cleanup(server.Close)

	cfg := DefaultConfig()
	cfg.BaseURL = server.URL
	for _, fn := range cfgFn {
		fn(&cfg)
	}

	logBuf := &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(logBuf, nil))
	metrics := NewMetrics()

	client, err := NewClient(cfg, logger, WithMetrics(metrics))
	if err != nil {
		t.Fatalf("NewClient() error: %v", err)
	}
	return client, up, logBuf, metrics
}

func TestNewClient_InvalidConfig(t *testing.T) {
	_, err := NewClient(Config{PerPage: 50}, nil)
	if !errors.Is(err, ErrEmptyBaseURL) {
		t.Errorf("expected ErrEmptyBaseURL, got %v", err)
	}
}

func TestNewClient_DefaultHTTPClient(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeout = 3 * time.Second

	client, err := NewClient(cfg, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.httpClient == nil {
		t.Fatal("expected HTTP client to be initialized")
	}
	if client.httpClient.Timeout != 3*time.Second {
		t.Errorf("expected timeout 3s, got %v", client.httpClient.Timeout)
	}
	if client.logger == nil {
		t.Error("expected default logger")
	}
	if client.PerPage() != DefaultPerPage {
		t.Errorf("expected per page %d, got %d", DefaultPerPage, client.PerPage())
	}
}

func TestNewClient_WithHTTPClient(t *testing.T) {
	hc := &http.Client{}
	client, err := NewClient(DefaultConfig(), nil, WithHTTPClient(hc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.httpClient != hc {
		t.Error("expected injected HTTP client to be used")
	}
}

func TestGlobalRankings_Success(t *testing.T) {
	body := `[
		{"id":"1","rank":1,"handle":"stani.lens","followersCount":"120000"},
		{"id":"2","rank":2,"handle":"alice.lens","followersCount":"9999999999"}
	]`
	client, up, _, metrics := newTestClient(t, http.StatusOK, body)

	profiles, err := client.GlobalRankings(context.Background(), "6", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(profiles) != 2 {
		t.Fatalf("expected 2 profiles, got %d", len(profiles))
	}
	if profiles[0].Handle != "stani.lens" || profiles[1].Handle != "alice.lens" {
		t.Errorf("expected server order to be preserved, got %+v", profiles)
	}
	if profiles[1].FollowersCount != "9999999999" {
		t.Errorf("expected followersCount string preserved, got %q", profiles[1].FollowersCount)
	}

	req := up.last()
	if req.Method != http.MethodGet {
		t.Errorf("expected GET, got %s", req.Method)
	}
	if req.URL.Path != PathRankings {
		t.Errorf("expected path %s, got %s", PathRankings, req.URL.Path)
	}
	if ct := req.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %q", ct)
	}
	q := req.URL.Query()
	if q.Get("strategy_id") != "6" || q.Get("offset") != "100" || q.Get("limit") != "50" {
		t.Errorf("unexpected query: %s", req.URL.RawQuery)
	}

	if got := counterValue(t, metrics, OpGlobalRankings, OutcomeSuccess); got != 1 {
		t.Errorf("expected 1 success observation, got %v", got)
	}
}

func TestGlobalRankings_NonPositivePageClamps(t *testing.T) {
	client, up, _, _ := newTestClient(t, http.StatusOK, `[]`)

	for _, page := range []int{0, -4} {
		if _, err := client.GlobalRankings(context.Background(), "6", page); err != nil {
			t.Fatalf("page %d: unexpected error: %v", page, err)
		}
		if got := up.last().URL.Query().Get("offset"); got != "0" {
			t.Errorf("page %d: expected offset 0, got %s", page, got)
		}
	}
}

func TestRankingsCount_Success(t *testing.T) {
	client, up, _, _ := newTestClient(t, http.StatusOK, `{"count": 12345}`)

	count, err := client.RankingsCount(context.Background(), "5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 12345 {
		t.Errorf("expected 12345, got %d", count)
	}

	req := up.last()
	if req.URL.Path != PathRankingsCount {
		t.Errorf("expected path %s, got %s", PathRankingsCount, req.URL.Path)
	}
	if req.URL.Query().Get("strategy_id") != "5" {
		t.Errorf("unexpected query: %s", req.URL.RawQuery)
	}
}

func TestGlobalRankByHandle_Success(t *testing.T) {
	client, up, _, _ := newTestClient(t, http.StatusOK, `{"rank": 7}`)

	rank, found, err := client.GlobalRankByHandle(context.Background(), "3", "alice.lens")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found || rank != 7 {
		t.Errorf("expected rank 7 found, got rank=%d found=%v", rank, found)
	}

	q := up.last().URL.Query()
	if q.Get("strategy_id") != "3" || q.Get("handle") != "alice.lens" {
		t.Errorf("unexpected query: %s", up.last().URL.RawQuery)
	}
}

func TestGlobalRankByHandle_HandleNotFound(t *testing.T) {
	client, _, logBuf, metrics := newTestClient(t, http.StatusNotFound, HandleNotFoundBody)

	rank, found, err := client.GlobalRankByHandle(context.Background(), "6", "ghost.lens")
	if err != nil {
		t.Fatalf("expected no error for unknown handle, got %v", err)
	}
	if found {
		t.Errorf("expected found=false, got rank %d", rank)
	}
	if logBuf.Len() != 0 {
		t.Errorf("expected no diagnostic log for unknown handle, got %s", logBuf.String())
	}
	if got := counterValue(t, metrics, OpGlobalRankByHandle, OutcomeNotFound); got != 1 {
		t.Errorf("expected 1 not_found observation, got %v", got)
	}
}

func TestPersonalisedRankings_Success(t *testing.T) {
	body := `[{"id":"9","rank":3,"handle":"bob.lens","followersCount":"12"}]`
	client, up, _, _ := newTestClient(t, http.StatusOK, body)

	profiles, err := client.PersonalisedRankings(context.Background(), "alice.lens", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(profiles) != 1 || profiles[0].Handle != "bob.lens" {
		t.Errorf("unexpected profiles: %+v", profiles)
	}

	req := up.last()
	if req.URL.Path != PathSuggest {
		t.Errorf("expected path %s, got %s", PathSuggest, req.URL.Path)
	}
	q := req.URL.Query()
	if q.Get("handle") != "alice.lens" || q.Get("offset") != "50" || q.Get("limit") != "50" {
		t.Errorf("unexpected query: %s", req.URL.RawQuery)
	}
	if q.Has("strategy_id") {
		t.Error("suggest requests must not carry strategy_id")
	}
}

func TestPersonalisedRankings_PageZeroDoesNotClamp(t *testing.T) {
	client, up, _, _ := newTestClient(t, http.StatusOK, `[]`)

	if _, err := client.PersonalisedRankings(context.Background(), "alice.lens", 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := up.last().URL.Query().Get("offset"); got != "-50" {
		t.Errorf("expected offset -50, got %s", got)
	}
}

func TestPersonalisedRankings_HandleNotFound(t *testing.T) {
	client, _, _, _ := newTestClient(t, http.StatusBadRequest, HandleNotFoundBody)

	profiles, err := client.PersonalisedRankings(context.Background(), "ghost.lens", 1)
	if err != nil {
		t.Fatalf("expected no error for unknown handle, got %v", err)
	}
	if profiles == nil {
		t.Fatal("expected empty non-nil slice")
	}
	if len(profiles) != 0 {
		t.Errorf("expected no profiles, got %d", len(profiles))
	}
}

func TestOperations_FailureStatus(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		op   Operation
		call func(*Client) error
	}{
		{"global rankings", OpGlobalRankings, func(c *Client) error {
			_, err := c.GlobalRankings(ctx, "6", 1)
			return err
		}},
		{"rankings count", OpRankingsCount, func(c *Client) error {
			_, err := c.RankingsCount(ctx, "6")
			return err
		}},
		{"rank by handle", OpGlobalRankByHandle, func(c *Client) error {
			_, _, err := c.GlobalRankByHandle(ctx, "6", "alice.lens")
			return err
		}},
		{"personalised", OpPersonalisedRankings, func(c *Client) error {
			_, err := c.PersonalisedRankings(ctx, "alice.lens", 1)
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _, logBuf, metrics := newTestClient(t, http.StatusInternalServerError, "Internal Server Error")

			err := tt.call(client)
			if err == nil {
				t.Fatal("expected error for failure status")
			}
			if !errors.Is(err, ErrRequestFailed) {
				t.Errorf("expected ErrRequestFailed, got %v", err)
			}

			var reqErr *RequestError
			if !errors.As(err, &reqErr) {
				t.Fatalf("expected *RequestError, got %T", err)
			}
			if reqErr.Op != tt.op {
				t.Errorf("expected op %s, got %s", tt.op, reqErr.Op)
			}
			if reqErr.StatusCode != http.StatusInternalServerError {
				t.Errorf("expected status 500, got %d", reqErr.StatusCode)
			}
			if err.Error() != tt.op.FailureMessage() {
				t.Errorf("expected message %q, got %q", tt.op.FailureMessage(), err.Error())
			}
			if strings.Contains(err.Error(), "Internal Server Error") {
				t.Error("upstream body must not leak into the error")
			}

			logs := logBuf.String()
			if !strings.Contains(logs, "rankings api request failed") {
				t.Errorf("expected diagnostic log, got %s", logs)
			}
			if !strings.Contains(logs, "Internal Server Error") {
				t.Errorf("expected upstream body in log, got %s", logs)
			}
			if !strings.Contains(logs, reqErr.URL) {
				t.Errorf("expected URL in log, got %s", logs)
			}

			if got := counterValue(t, metrics, tt.op, OutcomeError); got != 1 {
				t.Errorf("expected 1 error observation, got %v", got)
			}
		})
	}
}

func TestHandleNotFound_NearMissFallsThrough(t *testing.T) {
	client, _, _, _ := newTestClient(t, http.StatusNotFound, "Handle does not exist.")

	_, found, err := client.GlobalRankByHandle(context.Background(), "6", "alice.lens")
	if !errors.Is(err, ErrRequestFailed) {
		t.Errorf("expected ErrRequestFailed for near-miss body, got %v", err)
	}
	if found {
		t.Error("expected found=false on error")
	}
}

func TestHandleNotFound_IgnoredWithoutHandleParam(t *testing.T) {
	client, _, _, _ := newTestClient(t, http.StatusNotFound, HandleNotFoundBody)

	if _, err := client.GlobalRankings(context.Background(), "6", 1); !errors.Is(err, ErrRequestFailed) {
		t.Errorf("global rankings: expected ErrRequestFailed, got %v", err)
	}
	if _, err := client.RankingsCount(context.Background(), "6"); !errors.Is(err, ErrRequestFailed) {
		t.Errorf("rankings count: expected ErrRequestFailed, got %v", err)
	}
}

func TestDecodeError_OnSuccessStatus(t *testing.T) {
	client, _, _, _ := newTestClient(t, http.StatusOK, `not json`)

	_, err := client.GlobalRankings(context.Background(), "6", 1)
	if !errors.Is(err, ErrDecode) {
		t.Errorf("expected ErrDecode, got %v", err)
	}
	if errors.Is(err, ErrRequestFailed) {
		t.Error("decode failures must not be reported as request failures")
	}
}

func TestStrictDecode_Enabled(t *testing.T) {
	strict := func(c *Config) { c.StrictDecode = true }
	client, _, _, _ := newTestClient(t, http.StatusOK, `{"total": 3}`, strict)

	if _, err := client.RankingsCount(context.Background(), "6"); !errors.Is(err, ErrDecode) {
		t.Errorf("expected ErrDecode in strict mode, got %v", err)
	}
}

func TestTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := server.URL
	server.Close()

	cfg := DefaultConfig()
	cfg.BaseURL = baseURL
	client, err := NewClient(cfg, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	if err != nil {
		t.Fatal(err)
	}

	_, err = client.RankingsCount(context.Background(), "6")
	if err == nil {
		t.Fatal("expected transport error")
	}
	if errors.Is(err, ErrRequestFailed) || errors.Is(err, ErrDecode) {
		t.Errorf("transport errors must not be classified as request/decode failures: %v", err)
	}
}

func TestContextCancellation(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer server.Close()
	defer close(block)

	cfg := DefaultConfig()
	cfg.BaseURL = server.URL
	client, err := NewClient(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = client.GlobalRankings(ctx, "6", 1)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context.DeadlineExceeded, got %v", err)
	}
}

func TestConcurrentCalls(t *testing.T) {
	client, up, _, metrics := newTestClient(t, http.StatusOK, `{"count": 1}`)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := client.RankingsCount(context.Background(), "6"); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	up.mu.Lock()
	n := len(up.requests)
	up.mu.Unlock()
	if n != 20 {
		t.Errorf("expected 20 upstream requests, got %d", n)
	}
	if got := counterValue(t, metrics, OpRankingsCount, OutcomeSuccess); got != 20 {
		t.Errorf("expected 20 success observations, got %v", got)
	}
}
