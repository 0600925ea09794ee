package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("failed to read counter: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestMiddlewareWithChiRouter(t *testing.T) {
	HTTPRequestsTotal.Reset()

	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/things/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	req := httptest.NewRequest("GET", "/things/123", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Errorf("Expected status 202, got %d", rec.Code)
	}

	got := counterValue(t, HTTPRequestsTotal.WithLabelValues("GET", "/things/{id}", "202"))
	if got != 1 {
		t.Errorf("Expected 1 request recorded under route pattern, got %v", got)
	}
}

func TestResponseWriter_ForwardsFlush(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := newResponseWriter(rec)

	rw.WriteHeader(http.StatusCreated)
	if rw.statusCode != http.StatusCreated {
		t.Errorf("Expected status code 201, got %d", rw.statusCode)
	}

	var _ http.Flusher = rw
	rw.Flush()
	if !rec.Flushed {
		t.Error("Expected Flush to reach the underlying recorder")
	}
}

func TestHandler(t *testing.T) {
	EventsPublished.Inc()

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}

	body := rec.Body.String()
	if !strings.Contains(body, "webhookrelay_relay_events_published_total") {
		t.Errorf("Expected body to contain webhookrelay_relay_events_published_total metric")
	}
}

func TestMetricsRegistration(t *testing.T) {
	collectors := []prometheus.Collector{
		HTTPRequestsTotal,
		HTTPRequestDuration,
		HTTPRequestsInFlight,
		EventsPublished,
		EventsDelivered,
		SubscribersActive,
		SubscribersDropped,
		HistorySize,
		ReplaysActive,
		WebhooksReceived,
		SignatureFailures,
		DBConnectionsOpen,
		DBConnectionsInUse,
		DBConnectionsIdle,
		DBQueryDuration,
	}

	for _, m := range collectors {
		desc := make(chan *prometheus.Desc, 10)
		m.Describe(desc)
		close(desc)

		count := 0
		for range desc {
			count++
		}
		if count == 0 {
			t.Errorf("Metric has no descriptions")
		}
	}
}
