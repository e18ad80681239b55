package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/nao1215/headingscan/internal/heading"
	"github.com/nao1215/headingscan/internal/metrics"
	"github.com/nao1215/headingscan/internal/model"
	"github.com/nao1215/headingscan/internal/robots"
)

// Spider crawls the internal pages of a website and analyzes the heading
// structure of each page it fetches.
//
// A Spider holds configuration only. All state of a crawl lives in the
// run created by Crawl, so one Spider can run several crawls at once.
type Spider struct {
	// fetcher retrieves pages.
	fetcher Fetcher

	// robotsClient fetches robots.txt when no policy is injected.
	robotsClient *http.Client

	// maxDepth limits how deep to crawl from the starting URL.
	// 0 means only the starting page, 1 means one level of links, etc.
	maxDepth int

	// maxPages limits the total number of fetch attempts.
	// This prevents runaway crawling on large sites.
	maxPages int

	// delay is the minimum spacing between fetches.
	// This is a politeness setting to avoid overwhelming servers.
	delay time.Duration

	// userAgent is matched against robots.txt groups.
	userAgent string

	// workers bounds the number of concurrent fetches.
	workers int

	// policy is a pre-built robots policy. nil means fetch robots.txt.
	policy *robots.Policy

	// respectCrawlDelay raises delay to the robots.txt Crawl-delay.
	respectCrawlDelay bool

	// ignorePatterns are URL path patterns to skip during crawling.
	// Patterns use glob syntax (e.g., "/admin/*", "*.pdf").
	ignorePatterns []string

	// followPatterns are URL path patterns to follow during crawling.
	// If set, only URLs matching these patterns are crawled.
	// Empty means all URLs are allowed (subject to ignorePatterns).
	followPatterns []string

	logger   *slog.Logger
	metrics  *metrics.Metrics
	progress func(model.CrawlProgress)
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithMaxDepth sets the maximum crawl depth.
// 0 = only the starting page, 1 = starting page plus linked pages, etc.
func WithMaxDepth(depth int) SpiderOption {
	return func(s *Spider) {
		s.maxDepth = depth
	}
}

// WithMaxPages sets the maximum number of pages to fetch.
func WithMaxPages(maxPages int) SpiderOption {
	return func(s *Spider) {
		s.maxPages = maxPages
	}
}

// WithDelay sets the minimum delay between requests.
func WithDelay(d time.Duration) SpiderOption {
	return func(s *Spider) {
		s.delay = d
	}
}

// WithSpiderUserAgent sets the User-Agent used for robots.txt matching.
// The fetcher carries its own User-Agent header.
func WithSpiderUserAgent(ua string) SpiderOption {
	return func(s *Spider) {
		s.userAgent = ua
	}
}

// WithWorkers sets the number of concurrent fetches.
func WithWorkers(n int) SpiderOption {
	return func(s *Spider) {
		s.workers = n
	}
}

// WithPolicy injects a robots policy instead of fetching robots.txt.
func WithPolicy(p *robots.Policy) SpiderOption {
	return func(s *Spider) {
		s.policy = p
	}
}

// WithRobotsClient sets the HTTP client used to fetch robots.txt.
func WithRobotsClient(c *http.Client) SpiderOption {
	return func(s *Spider) {
		s.robotsClient = c
	}
}

// WithRespectCrawlDelay controls whether a robots.txt Crawl-delay longer
// than the configured delay is honored.
func WithRespectCrawlDelay(respect bool) SpiderOption {
	return func(s *Spider) {
		s.respectCrawlDelay = respect
	}
}

// WithIgnorePatterns sets URL path patterns to skip during crawling.
// Patterns use glob syntax (e.g., "/admin/*", "*.pdf", "/logout*").
// URLs matching any of these patterns will not be crawled.
func WithIgnorePatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.ignorePatterns = patterns
	}
}

// WithFollowPatterns sets URL path patterns to follow during crawling.
// Patterns use glob syntax (e.g., "/docs/*", "/blog/*").
// If set, only URLs matching at least one pattern are crawled.
// Empty slice means all URLs are allowed (default behavior).
func WithFollowPatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.followPatterns = patterns
	}
}

// WithSpiderLogger sets the logger.
func WithSpiderLogger(logger *slog.Logger) SpiderOption {
	return func(s *Spider) {
		s.logger = logger
	}
}

// WithMetrics records crawl activity on m.
func WithMetrics(m *metrics.Metrics) SpiderOption {
	return func(s *Spider) {
		s.metrics = m
	}
}

// WithProgress registers a callback invoked after every wave of fetches.
func WithProgress(fn func(model.CrawlProgress)) SpiderOption {
	return func(s *Spider) {
		s.progress = fn
	}
}

// NewSpider creates a new Spider that fetches pages with fetcher.
func NewSpider(fetcher Fetcher, opts ...SpiderOption) *Spider {
	s := &Spider{
		fetcher:           fetcher,
		maxDepth:          5,
		maxPages:          100,
		delay:             500 * time.Millisecond,
		userAgent:         DefaultUserAgent,
		workers:           1,
		respectCrawlDelay: true,
		logger:            slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.workers < 1 {
		s.workers = 1
	}
	if s.robotsClient == nil {
		if hf, ok := fetcher.(*HTTPFetcher); ok {
			s.robotsClient = hf.Client()
		} else {
			s.robotsClient = &http.Client{Timeout: 10 * time.Second}
		}
	}

	return s
}

// crawlRun is the state of one Crawl call.
type crawlRun struct {
	seed     string
	frontier *Frontier
	limiter  *rate.Limiter
	policy   *robots.Policy
	result   *model.CrawlResult
	attempts int
	depth    int
}

// fetchOutcome is the result of one planned fetch.
type fetchOutcome struct {
	target   model.CrawlTarget
	content  *PageContent
	err      error
	started  bool
	duration time.Duration
}

// Crawl crawls the site of seed breadth first and returns the analysis of
// every page it fetched.
//
// An error is returned only when seed is not a valid http(s) URL. Fetch
// failures, policy denials and cancellation are recorded in the result,
// which is always valid and reportable.
func (s *Spider) Crawl(ctx context.Context, seed string) (*model.CrawlResult, error) {
	result := model.NewCrawlResult(seed)
	if err := s.CrawlInto(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}

// CrawlInto crawls the site of result.Seed and records everything into
// result. The seed is replaced by its normalized form.
func (s *Spider) CrawlInto(ctx context.Context, result *model.CrawlResult) error {
	seedURL, err := NormalizeSeed(result.Seed)
	if err != nil {
		return fmt.Errorf("invalid seed URL: %w", err)
	}
	result.Seed = seedURL
	result.StartedAt = time.Now()

	run := s.newRun(ctx, result)
	s.logger.Info("crawl started",
		"seed", seedURL,
		"max_depth", s.maxDepth,
		"max_pages", s.maxPages,
		"workers", s.workers)

	run.frontier.Push(model.CrawlTarget{URL: seedURL, Depth: 0})

	for {
		if ctx.Err() != nil {
			run.result.Termination = model.TerminationCancelled
			break
		}

		wave, budgetReached := s.plan(run)
		if len(wave) > 0 {
			outcomes := s.fetchWave(ctx, run, wave)
			s.merge(run, outcomes)
			s.reportProgress(run)
		}

		if ctx.Err() != nil {
			run.result.Termination = model.TerminationCancelled
			break
		}
		if budgetReached {
			run.result.Termination = model.TerminationMaxPages
			break
		}
		if run.frontier.Len() == 0 {
			run.result.Termination = model.TerminationExhausted
			break
		}
	}

	run.result.Finish()
	s.logger.Info("crawl finished",
		"seed", seedURL,
		"termination", string(run.result.Termination),
		"pages", len(run.result.Pages),
		"skipped", len(run.result.SkippedByPolicy),
		"failed", len(run.result.Failures))

	return nil
}

// newRun creates the per-call state, building the robots policy once.
func (s *Spider) newRun(ctx context.Context, result *model.CrawlResult) *crawlRun {
	seedURL := result.Seed
	result.UserAgent = s.userAgent

	policy := s.policy
	if policy == nil {
		policy = robots.Fetch(ctx, s.robotsClient, Origin(seedURL), s.userAgent)
	}
	if policy.Unavailable() {
		result.PolicyUnavailable = true
		result.PolicyNote = policy.Note()
		s.logger.Warn("robots.txt unavailable, crawling without restrictions", "seed", seedURL, "reason", policy.Note())
	}

	delay := s.delay
	if s.respectCrawlDelay {
		if cd := policy.CrawlDelay(s.userAgent); cd > delay {
			s.logger.Debug("using robots.txt crawl delay", "crawl_delay", cd)
			delay = cd
		}
	}

	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}

	return &crawlRun{
		seed:     seedURL,
		frontier: NewFrontier(),
		limiter:  rate.NewLimiter(limit, 1),
		policy:   policy,
		result:   result,
	}
}

// plan dequeues the next wave of targets. Targets of one wave share a
// depth because links found in a wave are only pushed after it is merged.
// Disallowed targets are recorded and dropped here, without consuming the
// page budget or a limiter token.
func (s *Spider) plan(run *crawlRun) ([]model.CrawlTarget, bool) {
	wave := make([]model.CrawlTarget, 0)
	for {
		target, ok := run.frontier.Peek()
		if !ok {
			return wave, false
		}
		if run.attempts >= s.maxPages {
			return wave, true
		}
		run.frontier.Pop()

		if target.Depth > s.maxDepth {
			continue
		}
		if !s.isAllowed(run, target) {
			run.result.AddSkipped(target)
			s.metrics.ObserveBlocked()
			s.logger.Debug("skipped by policy", "url", target.URL)
			continue
		}

		run.attempts++
		run.depth = target.Depth
		wave = append(wave, target)
	}
}

// isAllowed checks robots.txt and, for discovered links, the URL patterns.
func (s *Spider) isAllowed(run *crawlRun, target model.CrawlTarget) bool {
	if !run.policy.IsAllowed(target.URL, s.userAgent) {
		return false
	}
	if target.Depth == 0 {
		return true
	}
	return s.shouldCrawl(target.URL)
}

// fetchWave fetches the wave with at most s.workers concurrent requests.
//
// Every fetch waits for the rate limiter first. Once ctx is cancelled no
// new fetch starts; fetches already past the limiter run to completion on
// a context detached from cancellation and bounded by the fetcher timeout.
func (s *Spider) fetchWave(ctx context.Context, run *crawlRun, wave []model.CrawlTarget) []fetchOutcome {
	outcomes := make([]fetchOutcome, len(wave))

	var g errgroup.Group
	g.SetLimit(s.workers)
	for i, target := range wave {
		outcomes[i].target = target
		g.Go(func() error {
			if err := run.limiter.Wait(ctx); err != nil {
				return nil
			}
			outcomes[i].started = true

			start := time.Now()
			s.logger.Debug("fetching", "url", target.URL, "depth", target.Depth)
			fetchCtx := withRedirectCheck(context.WithoutCancel(ctx), run.redirectCheck(target.URL, s.userAgent))
			content, err := s.fetcher.Fetch(fetchCtx, target.URL)
			outcomes[i].content = content
			outcomes[i].err = err
			outcomes[i].duration = time.Since(start)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

// redirectCheck returns the rule for redirect hops of a fetch of target:
// they must stay on the seed's origin and be allowed by robots.txt.
func (run *crawlRun) redirectCheck(target, userAgent string) func(string) error {
	return func(next string) error {
		if !SameOrigin(run.seed, next) {
			return &FetchError{Kind: FetchErrorOffOrigin, URL: target, Err: fmt.Errorf("redirected to %s", next)}
		}
		if !run.policy.IsAllowed(next, userAgent) {
			return &FetchError{Kind: FetchErrorDisallowedRedirect, URL: target, Err: fmt.Errorf("redirected to %s", next)}
		}
		return nil
	}
}

// merge records the outcomes in planning order and expands links.
func (s *Spider) merge(run *crawlRun, outcomes []fetchOutcome) {
	for _, o := range outcomes {
		if !o.started {
			continue
		}
		if isDisallowedRedirect(o.err) {
			s.skipRedirect(run, o.target, "")
			continue
		}
		if o.err != nil {
			s.recordFailure(run, o)
			continue
		}
		finalURL, ok := s.checkFinalURL(run, o)
		if !ok {
			continue
		}

		root, verdict := heading.Analyze(o.content.Headings)
		page := &model.PageResult{
			Target:       o.target,
			FinalURL:     finalURL,
			Title:        o.content.Title,
			StatusCode:   o.content.StatusCode,
			ContentHash:  o.content.ContentHash,
			HeadingCount: len(o.content.Headings),
			Tree:         root,
			Verdict:      verdict,
			FetchedAt:    time.Now(),
		}
		run.result.AddPage(page)

		s.metrics.ObservePage(o.duration)
		for _, v := range verdict.Violations {
			s.metrics.ObserveViolation(v.Kind.String())
		}

		if o.target.Depth < s.maxDepth {
			s.expand(run, o.target, o.content.Links)
		}
	}
	s.metrics.SetFrontierSize(run.frontier.Len())
}

// checkFinalURL applies the traversal rules to where a fetch ended up after
// redirects. It returns the normalized final URL when it differs from the
// target, and false when the outcome must not become a page:
//   - a final URL off the seed's origin is a FetchErrorOffOrigin failure
//   - one robots.txt disallows is skipped by policy
//   - one already known to the frontier is dropped, as that page is or
//     will be analyzed under its own URL
func (s *Spider) checkFinalURL(run *crawlRun, o fetchOutcome) (string, bool) {
	if o.content.FinalURL == "" {
		return "", true
	}
	final, err := Normalize(o.content.FinalURL)
	if err != nil || final == o.target.URL {
		return "", true
	}

	switch {
	case !SameOrigin(run.seed, final):
		o.err = &FetchError{
			Kind: FetchErrorOffOrigin,
			URL:  o.target.URL,
			Err:  fmt.Errorf("redirected to %s", final),
		}
		s.recordFailure(run, o)
		return "", false
	case !run.policy.IsAllowed(final, s.userAgent):
		s.skipRedirect(run, o.target, final)
		return "", false
	case !run.frontier.MarkSeen(final):
		s.logger.Debug("redirect to a known page", "url", o.target.URL, "final_url", final)
		return "", false
	}
	return final, true
}

// skipRedirect records target as skipped by policy because it redirects
// into a disallowed URL.
func (s *Spider) skipRedirect(run *crawlRun, target model.CrawlTarget, final string) {
	run.result.AddSkipped(target)
	s.metrics.ObserveBlocked()
	s.logger.Debug("redirect target skipped by policy", "url", target.URL, "final_url", final)
}

func isDisallowedRedirect(err error) bool {
	var fetchErr *FetchError
	return errors.As(err, &fetchErr) && fetchErr.Kind == FetchErrorDisallowedRedirect
}

// expand pushes same-origin links one level deeper. Malformed and
// off-origin links are dropped silently.
func (s *Spider) expand(run *crawlRun, from model.CrawlTarget, links []string) {
	for _, link := range links {
		normalized, err := Normalize(link)
		if err != nil {
			continue
		}
		if !SameOrigin(run.seed, normalized) {
			continue
		}
		run.frontier.Push(model.CrawlTarget{URL: normalized, Depth: from.Depth + 1})
	}
}

func (s *Spider) recordFailure(run *crawlRun, o fetchOutcome) {
	failure := model.FetchFailure{
		Target:  o.target,
		Kind:    string(FetchErrorUnreachable),
		Message: o.err.Error(),
	}
	var fetchErr *FetchError
	if errors.As(o.err, &fetchErr) {
		failure.Kind = string(fetchErr.Kind)
		failure.StatusCode = fetchErr.StatusCode
	}
	run.result.AddFailure(failure)
	s.metrics.ObserveFetchError(failure.Kind, o.duration)
	s.logger.Debug("fetch failed", "url", o.target.URL, "kind", failure.Kind, "error", o.err)
}

func (s *Spider) reportProgress(run *crawlRun) {
	if s.progress == nil {
		return
	}
	last := ""
	if n := len(run.result.Pages); n > 0 {
		last = run.result.Pages[n-1].Target.URL
	}
	s.progress(model.CrawlProgress{
		Seed:      run.seed,
		Visited:   len(run.result.Pages),
		Skipped:   len(run.result.SkippedByPolicy),
		Failed:    len(run.result.Failures),
		Queued:    run.frontier.Len(),
		Depth:     run.depth,
		LastURL:   last,
		Violating: len(run.result.PagesWithViolations()),
	})
}

// shouldCrawl checks if a URL should be crawled based on ignore/follow patterns.
//
// Logic:
//  1. If URL matches any ignorePattern, skip it (return false)
//  2. If followPatterns is set and URL matches none, skip it (return false)
//  3. Otherwise, crawl it (return true)
func (s *Spider) shouldCrawl(targetURL string) bool {
	u, err := url.Parse(targetURL)
	if err != nil {
		return false
	}

	path := u.Path
	if path == "" {
		path = "/"
	}

	for _, pattern := range s.ignorePatterns {
		if matchPattern(pattern, path) {
			return false
		}
	}

	if len(s.followPatterns) > 0 {
		for _, pattern := range s.followPatterns {
			if matchPattern(pattern, path) {
				return true
			}
		}
		return false
	}

	return true
}

// matchPattern checks if a path matches a glob pattern.
// Patterns can use:
//   - * to match any sequence of non-separator characters
//   - ? to match any single character
//   - a trailing /* to match everything below a directory
//
// Examples:
//   - "/admin/*" matches "/admin/dashboard", "/admin/users/1"
//   - "*.pdf" matches "/docs/file.pdf"
//   - "/api/v?" matches "/api/v1", "/api/v2"
func matchPattern(pattern, path string) bool {
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if strings.HasPrefix(path, prefix+"/") || path == prefix {
			return true
		}
	}

	if strings.HasPrefix(pattern, "*.") {
		if strings.HasSuffix(path, strings.TrimPrefix(pattern, "*")) {
			return true
		}
	}

	matched, err := filepath.Match(pattern, path)
	if err != nil {
		return false
	}
	if matched {
		return true
	}

	// Bare patterns like "print-*" match the last path segment.
	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		matched, err := filepath.Match(pattern, filepath.Base(path))
		if err == nil && matched {
			return true
		}
	}

	return false
}
