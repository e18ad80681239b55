package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// namespace prefixes every metric name.
const namespace = "headingscan"

// Metrics holds the collectors of a headingscan process.
//
// Collectors are registered on a private registry, never the global one.
//
// All recording methods are safe to call on a nil *Metrics, which records
// nothing. Components can then take metrics as an optional dependency.
type Metrics struct {
	registry *prometheus.Registry

	PagesFetched  prometheus.Counter
	FetchErrors   *prometheus.CounterVec
	RobotsBlocked prometheus.Counter
	FetchDuration prometheus.Histogram
	Violations    *prometheus.CounterVec
	FrontierSize  prometheus.Gauge
}

// New creates and registers the collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		PagesFetched: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_fetched_total",
			Help:      "Total number of pages fetched and analyzed.",
		}),
		FetchErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      "Total number of failed fetches by error kind.",
		}, []string{"kind"}),
		RobotsBlocked: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "robots_blocked_total",
			Help:      "Number of URLs skipped because robots.txt or URL patterns disallow them.",
		}),
		FetchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Time taken to download and parse a page.",
			Buckets:   prometheus.DefBuckets,
		}),
		Violations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "violations_total",
			Help:      "Heading structure violations found, by kind.",
		}, []string{"kind"}),
		FrontierSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "frontier_size",
			Help:      "Current number of URLs waiting in the crawl frontier.",
		}),
	}
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler exposing the collectors.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObservePage records a successful fetch.
func (m *Metrics) ObservePage(d time.Duration) {
	if m == nil {
		return
	}
	m.PagesFetched.Inc()
	m.FetchDuration.Observe(d.Seconds())
}

// ObserveFetchError records a failed fetch of the given kind.
func (m *Metrics) ObserveFetchError(kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.FetchErrors.WithLabelValues(kind).Inc()
	m.FetchDuration.Observe(d.Seconds())
}

// ObserveBlocked records a URL skipped by policy.
func (m *Metrics) ObserveBlocked() {
	if m == nil {
		return
	}
	m.RobotsBlocked.Inc()
}

// ObserveViolation records one violation of the given kind.
func (m *Metrics) ObserveViolation(kind string) {
	if m == nil {
		return
	}
	m.Violations.WithLabelValues(kind).Inc()
}

// SetFrontierSize records the number of queued URLs.
func (m *Metrics) SetFrontierSize(n int) {
	if m == nil {
		return
	}
	m.FrontierSize.Set(float64(n))
}

// Server exposes /metrics over HTTP for the lifetime of a run.
type Server struct {
	srv      *http.Server
	listener net.Listener
	logger   *slog.Logger
}

// Listen binds addr and returns a server ready to Serve.
func Listen(addr string, m *Metrics, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	return &Server{
		srv: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		listener: ln,
		logger:   logger,
	}, nil
}

// Addr returns the bound address.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Serve serves until ctx is cancelled, then shuts the server down.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.Serve(s.listener)
	}()
	s.logger.Debug("metrics server started", "addr", s.Addr())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down metrics server: %w", err)
		}
		return nil
	}
}
