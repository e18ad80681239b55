package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecording(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObservePage(100 * time.Millisecond)
	m.ObservePage(200 * time.Millisecond)
	m.ObserveFetchError("timeout", time.Second)
	m.ObserveBlocked()
	m.ObserveViolation("skipped_level")
	m.ObserveViolation("skipped_level")
	m.SetFrontierSize(7)

	if got := testutil.ToFloat64(m.PagesFetched); got != 2 {
		t.Errorf("expected 2 pages fetched, got %v", got)
	}
	if got := testutil.ToFloat64(m.FetchErrors.WithLabelValues("timeout")); got != 1 {
		t.Errorf("expected 1 timeout, got %v", got)
	}
	if got := testutil.ToFloat64(m.RobotsBlocked); got != 1 {
		t.Errorf("expected 1 blocked, got %v", got)
	}
	if got := testutil.ToFloat64(m.Violations.WithLabelValues("skipped_level")); got != 2 {
		t.Errorf("expected 2 violations, got %v", got)
	}
	if got := testutil.ToFloat64(m.FrontierSize); got != 7 {
		t.Errorf("expected frontier size 7, got %v", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.ObservePage(time.Second)
	m.ObserveFetchError("unreachable", time.Second)
	m.ObserveBlocked()
	m.ObserveViolation("no_headings")
	m.SetFrontierSize(1)
}

func TestHandler(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObservePage(time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "headingscan_pages_fetched_total 1") {
		t.Errorf("expected counter in output, got:\n%s", rec.Body.String())
	}
}

func TestServer(t *testing.T) {
	t.Parallel()

	m := New()
	srv, err := Listen("127.0.0.1:0", m, nil)
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	resp, err := http.Get("http://" + srv.Addr() + "/metrics")
	if err != nil {
		cancel()
		t.Fatalf("failed to scrape: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "headingscan_frontier_size") {
		t.Errorf("expected frontier gauge in output")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("unexpected serve error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
