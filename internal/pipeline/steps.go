package pipeline

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/nao1215/headingscan/internal/config"
	"github.com/nao1215/headingscan/internal/crawler"
	"github.com/nao1215/headingscan/internal/metrics"
	"github.com/nao1215/headingscan/internal/model"
)

// CrawlStep walks the site of the seed and analyzes the heading structure
// of every page it fetches.
type CrawlStep struct {
	// spider performs the traversal. It holds configuration only, so one
	// spider can serve several seeds.
	spider *crawler.Spider

	// logger for structured logging.
	logger *slog.Logger
}

// CrawlStepOption configures a CrawlStep.
type CrawlStepOption func(*CrawlStep)

// WithCrawlLogger sets a custom logger for the crawl step.
func WithCrawlLogger(logger *slog.Logger) CrawlStepOption {
	return func(s *CrawlStep) {
		s.logger = logger
	}
}

// NewCrawlStep creates a new crawl step backed by spider.
func NewCrawlStep(spider *crawler.Spider, opts ...CrawlStepOption) *CrawlStep {
	s := &CrawlStep{
		spider: spider,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return "crawl"
}

// Do executes the crawl step. Only an invalid seed is an error; the crawl
// itself records failures and cancellation in result.
func (s *CrawlStep) Do(ctx context.Context, result *model.CrawlResult) error {
	if err := s.spider.CrawlInto(ctx, result); err != nil {
		return err
	}

	s.logger.Info("crawl completed",
		"seed", result.Seed,
		"pages_visited", len(result.Pages),
		"skipped_by_policy", len(result.SkippedByPolicy),
		"failed", len(result.Failures),
		"termination", string(result.Termination),
	)

	return nil
}

// SummaryStep aggregates the per-page verdicts of a finished crawl.
type SummaryStep struct {
	logger *slog.Logger
}

// NewSummaryStep creates a new summary step.
func NewSummaryStep(logger *slog.Logger) *SummaryStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &SummaryStep{logger: logger}
}

// Name returns the step name.
func (s *SummaryStep) Name() string {
	return "summary"
}

// Do computes the summary if the crawl did not already, and logs pages
// with structural violations.
func (s *SummaryStep) Do(_ context.Context, result *model.CrawlResult) error {
	if result.Summary == nil {
		result.Finish()
	}

	summary := result.Summary
	if summary.PagesWithViolations == 0 {
		s.logger.Info("heading structure is sound",
			"seed", result.Seed,
			"pages_visited", summary.PagesVisited,
		)
		return nil
	}

	for _, kind := range model.ViolationKinds {
		if n := summary.ViolationCounts[kind]; n > 0 {
			s.logger.Debug("violations by kind",
				"seed", result.Seed,
				"kind", string(kind),
				"count", n,
			)
		}
	}
	s.logger.Warn("heading structure violations found",
		"seed", result.Seed,
		"pages_with_violations", summary.PagesWithViolations,
		"total_violations", summary.TotalViolations(),
	)

	return nil
}

// DefaultPipelineConfig holds configuration for the default pipeline.
type DefaultPipelineConfig struct {
	// CrawlDepth is the maximum number of link hops from the seed.
	CrawlDepth int

	// MaxPages is the maximum number of fetch attempts.
	MaxPages int

	// Cookie is the cookie string to send with HTTP requests.
	Cookie string

	// Headers are additional HTTP headers to send with requests.
	Headers map[string]string

	// IgnorePatterns are URL path patterns to skip during crawling.
	IgnorePatterns []string

	// FollowPatterns are URL path patterns to follow during crawling.
	FollowPatterns []string

	// Delay is the minimum spacing between HTTP requests.
	Delay time.Duration

	// RespectCrawlDelay raises Delay to the robots.txt Crawl-delay.
	RespectCrawlDelay bool

	// UserAgent is the User-Agent header sent with HTTP requests and the
	// agent matched against robots.txt groups.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes to read.
	MaxBodySize int64

	// Workers bounds the number of concurrent fetches per seed.
	Workers int

	// Metrics receives crawl observations. nil disables them.
	Metrics *metrics.Metrics

	// Progress is called after every wave of fetches.
	Progress func(model.CrawlProgress)
}

// DefaultPipelineOption configures a DefaultPipelineConfig.
type DefaultPipelineOption func(*DefaultPipelineConfig)

// WithPipelineCrawlDepth sets the crawl depth for the pipeline.
func WithPipelineCrawlDepth(depth int) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.CrawlDepth = depth
	}
}

// WithPipelineMaxPages sets the maximum pages to crawl.
func WithPipelineMaxPages(maxPages int) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.MaxPages = maxPages
	}
}

// WithPipelineCookie sets the cookie for HTTP requests.
func WithPipelineCookie(cookie string) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Cookie = cookie
	}
}

// WithPipelineHeaders sets additional HTTP headers.
func WithPipelineHeaders(headers map[string]string) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Headers = headers
	}
}

// WithPipelineIgnorePatterns sets URL patterns to skip during crawling.
func WithPipelineIgnorePatterns(patterns []string) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.IgnorePatterns = patterns
	}
}

// WithPipelineFollowPatterns sets URL patterns to follow during crawling.
func WithPipelineFollowPatterns(patterns []string) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.FollowPatterns = patterns
	}
}

// WithPipelineDelay sets the delay between HTTP requests during crawling.
func WithPipelineDelay(delay time.Duration) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Delay = delay
	}
}

// WithPipelineRespectCrawlDelay controls whether robots.txt Crawl-delay
// may raise the request delay.
func WithPipelineRespectCrawlDelay(respect bool) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.RespectCrawlDelay = respect
	}
}

// WithPipelineUserAgent sets the User-Agent header for HTTP requests.
func WithPipelineUserAgent(userAgent string) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.UserAgent = userAgent
	}
}

// WithPipelineMaxBodySize sets the maximum response body size in bytes.
func WithPipelineMaxBodySize(maxBodySize int64) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.MaxBodySize = maxBodySize
	}
}

// WithPipelineWorkers sets the number of concurrent fetches per seed.
func WithPipelineWorkers(n int) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Workers = n
	}
}

// WithPipelineMetrics sets the metrics collectors.
func WithPipelineMetrics(m *metrics.Metrics) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Metrics = m
	}
}

// WithPipelineProgress sets the progress callback.
func WithPipelineProgress(fn func(model.CrawlProgress)) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Progress = fn
	}
}

// DefaultPipeline creates a pipeline with all default steps configured:
// a crawl over an HTTPFetcher built on client, followed by a summary.
//
// The first variadic parameter accepts pipeline options (WithLogger, etc).
// The second accepts pipeline config options (WithPipelineCrawlDepth, etc).
func DefaultPipeline(client *http.Client, pipelineOpts []Option, configOpts ...DefaultPipelineOption) *Pipeline {
	p := New(pipelineOpts...)

	cfg := &DefaultPipelineConfig{
		CrawlDepth:        config.DefaultCrawlDepth,
		MaxPages:          config.DefaultMaxPages,
		Delay:             config.DefaultRequestDelay,
		RespectCrawlDelay: true,
		UserAgent:         config.DefaultUserAgent,
		MaxBodySize:       config.DefaultMaxBodySize,
		Workers:           config.DefaultWorkers,
	}
	for _, opt := range configOpts {
		opt(cfg)
	}

	fetcherOpts := []crawler.FetcherOption{
		crawler.WithFetcherUserAgent(cfg.UserAgent),
		crawler.WithMaxBodySize(cfg.MaxBodySize),
		crawler.WithFetcherLogger(p.logger),
	}
	if cfg.Cookie != "" {
		fetcherOpts = append(fetcherOpts, crawler.WithCookie(cfg.Cookie))
	}
	if len(cfg.Headers) > 0 {
		fetcherOpts = append(fetcherOpts, crawler.WithHeaders(cfg.Headers))
	}
	fetcher := crawler.NewHTTPFetcher(client, fetcherOpts...)

	spiderOpts := []crawler.SpiderOption{
		crawler.WithMaxDepth(cfg.CrawlDepth),
		crawler.WithMaxPages(cfg.MaxPages),
		crawler.WithDelay(cfg.Delay),
		crawler.WithRespectCrawlDelay(cfg.RespectCrawlDelay),
		crawler.WithSpiderUserAgent(cfg.UserAgent),
		crawler.WithWorkers(cfg.Workers),
		crawler.WithSpiderLogger(p.logger),
		crawler.WithMetrics(cfg.Metrics),
	}
	if len(cfg.IgnorePatterns) > 0 {
		spiderOpts = append(spiderOpts, crawler.WithIgnorePatterns(cfg.IgnorePatterns))
	}
	if len(cfg.FollowPatterns) > 0 {
		spiderOpts = append(spiderOpts, crawler.WithFollowPatterns(cfg.FollowPatterns))
	}
	if cfg.Progress != nil {
		spiderOpts = append(spiderOpts, crawler.WithProgress(cfg.Progress))
	}

	p.AddSteps(
		NewCrawlStep(crawler.NewSpider(fetcher, spiderOpts...), WithCrawlLogger(p.logger)),
		NewSummaryStep(p.logger),
	)

	return p
}

// SiteOptions converts a site configuration into pipeline config options.
// Zero values in site leave the defaults untouched.
func SiteOptions(site config.SiteConfig) []DefaultPipelineOption {
	opts := make([]DefaultPipelineOption, 0)
	if site.Depth != 0 {
		opts = append(opts, WithPipelineCrawlDepth(site.Depth))
	}
	if site.MaxPages != 0 {
		opts = append(opts, WithPipelineMaxPages(site.MaxPages))
	}
	if site.UserAgent != "" {
		opts = append(opts, WithPipelineUserAgent(site.UserAgent))
	}
	if site.Cookie != "" {
		opts = append(opts, WithPipelineCookie(site.Cookie))
	}
	if len(site.Headers) > 0 {
		opts = append(opts, WithPipelineHeaders(site.Headers))
	}
	if len(site.IgnorePatterns) > 0 {
		opts = append(opts, WithPipelineIgnorePatterns(site.IgnorePatterns))
	}
	if len(site.FollowPatterns) > 0 {
		opts = append(opts, WithPipelineFollowPatterns(site.FollowPatterns))
	}
	return opts
}
