package report

import (
	"io"
	"net/url"
	"strings"

	"github.com/nao1215/headingscan/internal/model"
)

// Writer defines the interface for report output.
// Implementations write crawl results in various formats.
type Writer interface {
	// Write outputs the full crawl result to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(result *model.CrawlResult) (int, error)

	// WriteSummary outputs only the aggregate summary.
	// This is useful for quick overviews without per-page trees.
	WriteSummary(summary *model.CrawlSummary) (int, error)
}

// MultiWriter writes to multiple Writers simultaneously.
// This is useful for outputting to both terminal and file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the result to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(result *model.CrawlResult) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(result)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteSummary outputs the summary to all configured Writers.
func (m *MultiWriter) WriteSummary(summary *model.CrawlSummary) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteSummary(summary)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// ensureSummary returns the result's summary, computing it when the crawl
// was not finished through CrawlResult.Finish.
func ensureSummary(result *model.CrawlResult) *model.CrawlSummary {
	if result.Summary == nil {
		result.Summary = model.NewCrawlSummary(result)
	}
	return result.Summary
}

// statusText describes how the run ended.
func statusText(result *model.CrawlResult) string {
	switch {
	case result.Error != "":
		return "ERROR - " + result.Error
	case result.Termination == model.TerminationCancelled:
		return "Cancelled (partial results)"
	case result.Termination == model.TerminationMaxPages:
		return "Complete (page limit reached)"
	default:
		return "Complete"
	}
}

// pageLabel returns the last path segment of a page URL, or "home" for the
// site root.
func pageLabel(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if last := segments[len(segments)-1]; last != "" {
		return last
	}
	return "home"
}

// headingLine is one heading prepared for rendering.
type headingLine struct {
	Level    int
	Tag      string
	Text     string
	Depth    int
	Position int
	OK       bool
}

// headingLines flattens a page tree in document order, marking headings
// that a violation points at.
func headingLines(page *model.PageResult) []headingLine {
	lines := make([]headingLine, 0, page.HeadingCount)
	if page.Tree == nil {
		return lines
	}
	page.Tree.Walk(func(node *model.HeadingNode, depth int) {
		lines = append(lines, headingLine{
			Level:    node.Level,
			Tag:      node.Tag(),
			Text:     node.Text,
			Depth:    depth,
			Position: node.Position,
			OK:       !page.Verdict.HasViolationAt(node.Position),
		})
	})
	return lines
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
