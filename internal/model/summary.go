package model

import "time"

// CrawlSummary is the terminal summary of a crawl run.
// It is derived from a CrawlResult and cached on the result by Finish.
type CrawlSummary struct {
	// Seed is the normalized seed URL.
	Seed string `json:"seed"`

	// PagesVisited is the number of pages fetched and analyzed.
	PagesVisited int `json:"pages_visited"`

	// PagesSkippedByPolicy is the number of targets robots.txt or URL
	// patterns kept from being fetched.
	PagesSkippedByPolicy int `json:"pages_skipped_by_policy"`

	// PagesFailed is the number of targets whose fetch failed.
	PagesFailed int `json:"pages_failed"`

	// PagesWithViolations is the number of analyzed pages whose verdict is
	// not sound.
	PagesWithViolations int `json:"pages_with_violations"`

	// ViolationCounts counts violations by kind across all pages.
	ViolationCounts map[ViolationKind]int `json:"violation_counts"`

	// ViolatingPages lists the URLs of pages with violations in visit order.
	ViolatingPages []string `json:"violating_pages"`

	// Termination is why the run stopped.
	Termination Termination `json:"termination"`

	// PolicyNote is set when robots.txt was unavailable.
	PolicyNote string `json:"policy_note,omitempty"`

	// Duration is the wall time of the run.
	Duration time.Duration `json:"duration"`
}

// NewCrawlSummary aggregates a CrawlResult into a summary.
func NewCrawlSummary(result *CrawlResult) *CrawlSummary {
	s := &CrawlSummary{
		Seed:                 result.Seed,
		PagesVisited:         len(result.Pages),
		PagesSkippedByPolicy: len(result.SkippedByPolicy),
		PagesFailed:          len(result.Failures),
		ViolationCounts:      make(map[ViolationKind]int, len(ViolationKinds)),
		ViolatingPages:       make([]string, 0),
		Termination:          result.Termination,
		PolicyNote:           result.PolicyNote,
	}

	for _, kind := range ViolationKinds {
		s.ViolationCounts[kind] = 0
	}

	for _, page := range result.Pages {
		if page.Verdict.Sound {
			continue
		}
		s.PagesWithViolations++
		s.ViolatingPages = append(s.ViolatingPages, page.Target.URL)
		for _, v := range page.Verdict.Violations {
			s.ViolationCounts[v.Kind]++
		}
	}

	if !result.FinishedAt.IsZero() && !result.StartedAt.IsZero() {
		s.Duration = result.FinishedAt.Sub(result.StartedAt)
	}

	return s
}

// TotalViolations returns the number of violations across all pages.
func (s *CrawlSummary) TotalViolations() int {
	total := 0
	for _, n := range s.ViolationCounts {
		total += n
	}
	return total
}

// Sound reports whether every analyzed page passed validation.
func (s *CrawlSummary) Sound() bool {
	return s.PagesWithViolations == 0
}
