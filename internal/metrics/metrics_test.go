package metrics_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nilvm/node/internal/metrics"
)

func TestServerServesMetrics(t *testing.T) {
	m := metrics.New()
	m.ObservePoolSnapshot("Compare", 100, 40, 10)

	handler := httptest.NewServer(metricsMux(m))
	defer handler.Close()

	resp, err := http.Get(handler.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func metricsMux(m *metrics.Metrics) http.Handler {
	srv := m.Server("unused:0")
	return srv.Handler
}

func TestShutdownReturnsPromptly(t *testing.T) {
	m := metrics.New()
	srv := m.Server("127.0.0.1:0")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := metrics.Shutdown(ctx, srv); err != nil {
		t.Fatalf("Shutdown on a never-started server should be a no-op: %v", err)
	}
}
