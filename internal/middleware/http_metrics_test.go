package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func newMeteredRouter(m *Metrics) http.Handler {
	r := mux.NewRouter()
	r.Use(HTTPMetrics(m))
	r.HandleFunc("/strategies/{strategyID}/ranks/{handle}", func(w http.ResponseWriter, r *http.Request) {
		if mux.Vars(r)["handle"] == "ghost" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"rank":3}`))
	})
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"up"}`))
	})
	return r
}

func requestCount(t *testing.T, m *Metrics, method, route, status string) float64 {
	t.Helper()
	metric := &dto.Metric{}
	if err := m.httpRequestsTotal.WithLabelValues(method, route, status).Write(metric); err != nil {
		t.Fatalf("Write() failed: %v", err)
	}
	return metric.GetCounter().GetValue()
}

func TestHTTPMetrics_LabelsByRouteTemplate(t *testing.T) {
	m := NewMetrics()
	handler := newMeteredRouter(m)

	for _, path := range []string{
		"/strategies/6/ranks/alice.lens",
		"/strategies/3/ranks/bob.lens",
		"/strategies/3/ranks/ghost",
	} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	route := "/strategies/{strategyID}/ranks/{handle}"
	if got := requestCount(t, m, "GET", route, "200"); got != 2 {
		t.Errorf("expected 2 successful requests on %s, got %v", route, got)
	}
	if got := requestCount(t, m, "GET", route, "404"); got != 1 {
		t.Errorf("expected 1 not-found request on %s, got %v", route, got)
	}
}

func TestHTTPMetrics_SkipsHealth(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	rr := httptest.NewRecorder()
	newMeteredRouter(m).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() failed: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == MetricHTTPRequestsTotal && len(mf.GetMetric()) > 0 {
			t.Errorf("expected no request metrics for /health, got %d series", len(mf.GetMetric()))
		}
	}
}

func TestHTTPMetrics_OutsideRouter(t *testing.T) {
	m := NewMetrics()
	handler := HTTPMetrics(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/some/raw/path", nil))

	if got := requestCount(t, m, "GET", UnmatchedRoute, "418"); got != 1 {
		t.Errorf("expected request labelled %q, got %v", UnmatchedRoute, got)
	}
}

func TestMetricsResponseWriter(t *testing.T) {
	mrw := newMetricsResponseWriter(httptest.NewRecorder())
	mrw.WriteHeader(http.StatusBadGateway)
	mrw.WriteHeader(http.StatusOK)
	_, _ = mrw.Write([]byte("abc"))

	if mrw.statusCode != http.StatusBadGateway {
		t.Errorf("expected status 502, got %d", mrw.statusCode)
	}
	if mrw.size != 3 {
		t.Errorf("expected size 3, got %d", mrw.size)
	}
}
