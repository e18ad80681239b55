// Package metrics exposes Prometheus collectors for crawl runs.
//
// Usage:
//
//	m := metrics.New()
//	spider := crawler.NewSpider(fetcher, crawler.WithMetrics(m))
//
//	srv, err := metrics.Listen(":9090", m, logger)
//	go srv.Serve(ctx)
package metrics
