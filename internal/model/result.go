package model

import (
	"sync"
	"time"
)

// CrawlTarget is a normalized absolute URL and the number of link hops
// from the seed at which it was discovered. The seed has depth 0.
type CrawlTarget struct {
	URL   string `json:"url"`
	Depth int    `json:"depth"`
}

// PageResult is the analysis of one successfully fetched page.
type PageResult struct {
	// Target is the page URL and discovery depth.
	Target CrawlTarget `json:"target"`

	// FinalURL is the normalized URL the page was served from when the
	// request was redirected within the origin.
	FinalURL string `json:"final_url,omitempty"`

	// Title is the <title> text of the page, if any.
	Title string `json:"title,omitempty"`

	// StatusCode is the HTTP status of the response.
	StatusCode int `json:"status_code"`

	// ContentHash is a SHA3-256 hex digest of the body.
	ContentHash string `json:"content_hash,omitempty"`

	// HeadingCount is the number of headings on the page.
	HeadingCount int `json:"heading_count"`

	// Tree is the heading tree. Read-only after validation.
	Tree *HeadingNode `json:"tree"`

	// Verdict is the structural validation result.
	Verdict Verdict `json:"verdict"`

	// FetchedAt is when the page was fetched.
	FetchedAt time.Time `json:"fetched_at"`
}

// DisplayTitle returns the page title or a fallback built from the URL,
// matching the "Heading Structure for <url>" label of the HTML report.
func (p *PageResult) DisplayTitle() string {
	if p.Title != "" {
		return p.Title
	}
	return "Heading Structure for " + p.Target.URL
}

// FetchFailure records a page that could not be fetched.
type FetchFailure struct {
	Target     CrawlTarget `json:"target"`
	Kind       string      `json:"kind"`
	StatusCode int         `json:"status_code,omitempty"`
	Message    string      `json:"message"`
}

// Termination describes why a crawl stopped.
type Termination string

const (
	// TerminationExhausted means the frontier ran empty.
	TerminationExhausted Termination = "exhausted"

	// TerminationMaxPages means the page budget was used up.
	TerminationMaxPages Termination = "max_pages"

	// TerminationCancelled means the run was cancelled externally.
	TerminationCancelled Termination = "cancelled"
)

// CrawlResult is the aggregate outcome of one crawl run. It is the only
// object handed to report writers.
//
// Pages keeps visit order so that reports are reproducible. Page looks up
// a page by normalized URL, which gives the URL to (tree, verdict) mapping.
type CrawlResult struct {
	// Seed is the normalized seed URL.
	Seed string `json:"seed"`

	// UserAgent is the User-Agent the crawl identified itself with.
	UserAgent string `json:"user_agent"`

	// StartedAt and FinishedAt bound the run.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Pages are the analyzed pages in visit order.
	Pages []*PageResult `json:"pages"`

	// SkippedByPolicy are targets that were never fetched because
	// robots.txt or URL patterns disallowed them.
	SkippedByPolicy []CrawlTarget `json:"skipped_by_policy"`

	// Failures are targets whose fetch failed.
	Failures []FetchFailure `json:"failures"`

	// PolicyUnavailable is true when robots.txt could not be read and the
	// crawl fell back to allow-all.
	PolicyUnavailable bool `json:"policy_unavailable"`

	// PolicyNote explains why the policy was unavailable.
	PolicyNote string `json:"policy_note,omitempty"`

	// Termination is why the run stopped.
	Termination Termination `json:"termination"`

	// Summary is the aggregate summary, filled by NewCrawlSummary.
	Summary *CrawlSummary `json:"summary,omitempty"`

	// Error is a fatal error for the run, if any (e.g. an invalid seed in
	// batch mode). Per-page problems never appear here.
	Error string `json:"error,omitempty"`

	// PerformedSteps lists the pipeline steps that ran for this seed.
	PerformedSteps []string `json:"performed_steps,omitempty"`

	index map[string]*PageResult
	mu    sync.Mutex
}

// NewCrawlResult creates an empty CrawlResult for the given seed.
func NewCrawlResult(seed string) *CrawlResult {
	return &CrawlResult{
		Seed:            seed,
		StartedAt:       time.Now(),
		Pages:           make([]*PageResult, 0),
		SkippedByPolicy: make([]CrawlTarget, 0),
		Failures:        make([]FetchFailure, 0),
		Termination:     TerminationExhausted,
		index:           make(map[string]*PageResult),
	}
}

// AddPage records an analyzed page.
func (r *CrawlResult) AddPage(page *PageResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.index == nil {
		r.index = make(map[string]*PageResult)
	}
	r.Pages = append(r.Pages, page)
	r.index[page.Target.URL] = page
}

// AddSkipped records a target skipped by policy.
func (r *CrawlResult) AddSkipped(target CrawlTarget) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.SkippedByPolicy = append(r.SkippedByPolicy, target)
}

// AddFailure records a failed fetch.
func (r *CrawlResult) AddFailure(failure FetchFailure) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Failures = append(r.Failures, failure)
}

// Page returns the analyzed page for a normalized URL.
func (r *CrawlResult) Page(url string) (*PageResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.index == nil {
		r.index = make(map[string]*PageResult, len(r.Pages))
		for _, p := range r.Pages {
			r.index[p.Target.URL] = p
		}
	}
	p, ok := r.index[url]
	return p, ok
}

// PagesWithViolations returns the analyzed pages whose verdict is unsound,
// in visit order.
func (r *CrawlResult) PagesWithViolations() []*PageResult {
	pages := make([]*PageResult, 0)
	for _, p := range r.Pages {
		if !p.Verdict.Sound {
			pages = append(pages, p)
		}
	}
	return pages
}

// Finish stamps the end time and computes the summary.
func (r *CrawlResult) Finish() {
	r.FinishedAt = time.Now()
	r.Summary = NewCrawlSummary(r)
}

// CrawlProgress is a snapshot reported while a crawl is running.
type CrawlProgress struct {
	Seed      string
	Visited   int
	Skipped   int
	Failed    int
	Queued    int
	Depth     int
	LastURL   string
	Violating int
}
