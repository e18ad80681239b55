package main

import (
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/briandowns/spinner"

	"github.com/nao1215/headingscan/internal/model"
)

// progress renders a terminal spinner summarizing the running crawls.
// A nil *progress is valid and does nothing, so callers never need to
// check whether --no-progress was given.
type progress struct {
	spinner *spinner.Spinner

	mu     sync.Mutex
	total  int
	done   int
	latest model.CrawlProgress
}

// newProgress returns a spinner writing to w, or nil when disabled.
func newProgress(w io.Writer, total int, enabled bool) *progress {
	if !enabled {
		return nil
	}
	s := spinner.New(spinner.CharSets[9], 100*time.Millisecond, spinner.WithWriter(w))
	s.Suffix = " starting crawl..."
	return &progress{spinner: s, total: total}
}

// Start begins rendering.
func (p *progress) Start() {
	if p == nil {
		return
	}
	p.spinner.Start()
}

// Stop clears the spinner line.
func (p *progress) Stop() {
	if p == nil {
		return
	}
	p.spinner.Stop()
}

// Update records a crawl snapshot. It is called from crawl goroutines.
func (p *progress) Update(cp model.CrawlProgress) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.latest = cp
	suffix := p.suffix()
	p.mu.Unlock()
	p.setSuffix(suffix)
}

// Done marks one seed as finished.
func (p *progress) Done() {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.done++
	suffix := p.suffix()
	p.mu.Unlock()
	p.setSuffix(suffix)
}

// suffix formats the status line. p.mu must be held.
func (p *progress) suffix() string {
	line := ""
	if p.total > 1 {
		line = fmt.Sprintf(" [%d/%d seeds]", p.done, p.total)
	}
	if p.latest.Seed == "" {
		return line + " starting crawl..."
	}
	return line + fmt.Sprintf(" %s: %d pages, %d queued, depth %d",
		displayHost(p.latest.Seed), p.latest.Visited, p.latest.Queued, p.latest.Depth)
}

func (p *progress) setSuffix(suffix string) {
	p.spinner.Lock()
	p.spinner.Suffix = suffix
	p.spinner.Unlock()
}

// displayHost returns the host of a URL, or the URL itself if it does not
// parse.
func displayHost(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Host
}
