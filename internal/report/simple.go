package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/headingscan/internal/model"
)

// SimpleWriter outputs human-readable text reports.
// This format is designed for terminal display: each page's heading tree is
// indented by level and marked PASS or FAIL.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with nothing to list are shown.
	showEmpty bool

	// verbose enables violation descriptions in the output.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the full result in human-readable format.
func (w *SimpleWriter) Write(result *model.CrawlResult) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, result)
	w.writePages(&sb, result)
	w.writeSkipped(&sb, result)
	w.writeFailures(&sb, result)
	w.writeSummary(&sb, ensureSummary(result))
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// WriteSummary outputs the summary in human-readable format.
func (w *SimpleWriter) WriteSummary(summary *model.CrawlSummary) (int, error) {
	var sb strings.Builder
	w.writeSummary(&sb, summary)
	return w.output.Write([]byte(sb.String()))
}

// writeSection writes a section title between rules.
func writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}

// writeHeader writes the report header with crawl information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, result *model.CrawlResult) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                         HEADINGSCAN REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("Seed:           %s\n", result.Seed))
	sb.WriteString(fmt.Sprintf("Crawl Date:     %s\n", result.StartedAt.Format("2006-01-02 15:04:05 MST")))
	if result.UserAgent != "" {
		sb.WriteString(fmt.Sprintf("User-Agent:     %s\n", result.UserAgent))
	}
	sb.WriteString(fmt.Sprintf("Pages Crawled:  %d\n", len(result.Pages)))
	sb.WriteString(fmt.Sprintf("Status:         %s\n", statusText(result)))
	if result.PolicyUnavailable {
		sb.WriteString(fmt.Sprintf("robots.txt:     unavailable (%s), crawled without restrictions\n", result.PolicyNote))
	}
	sb.WriteString("\n")
}

// writePages writes the heading tree of every page in visit order.
func (w *SimpleWriter) writePages(sb *strings.Builder, result *model.CrawlResult) {
	if len(result.Pages) == 0 && !w.showEmpty {
		return
	}

	writeSection(sb, "PAGES")

	if len(result.Pages) == 0 {
		sb.WriteString("  No pages crawled\n\n")
		return
	}

	for _, page := range result.Pages {
		verdict := "PASS"
		if !page.Verdict.Sound {
			verdict = "FAIL"
		}
		sb.WriteString(fmt.Sprintf("[%s] %s\n", verdict, page.Target.URL))
		if page.Title != "" {
			sb.WriteString(fmt.Sprintf("       %s\n", page.Title))
		}

		lines := headingLines(page)
		if len(lines) == 0 {
			sb.WriteString("  (no headings)\n")
		}
		for _, line := range lines {
			marker := " "
			if !line.OK {
				marker = "!"
			}
			sb.WriteString(fmt.Sprintf(" %s%s%s %s\n", marker, strings.Repeat("  ", line.Level), line.Tag, line.Text))
		}

		for _, v := range page.Verdict.Violations {
			sb.WriteString(fmt.Sprintf("  * %s", v.Kind))
			if v.Position >= 0 {
				sb.WriteString(fmt.Sprintf(" at heading %d", v.Position+1))
			}
			sb.WriteString("\n")
			if w.verbose && v.Description != "" {
				sb.WriteString(fmt.Sprintf("    %s\n", v.Description))
			}
		}
		sb.WriteString("\n")
	}
}

// writeSkipped writes the pages that robots.txt or URL patterns excluded.
func (w *SimpleWriter) writeSkipped(sb *strings.Builder, result *model.CrawlResult) {
	if len(result.SkippedByPolicy) == 0 && !w.showEmpty {
		return
	}

	writeSection(sb, "SKIPPED BY POLICY")

	if len(result.SkippedByPolicy) == 0 {
		sb.WriteString("  None\n\n")
		return
	}
	for _, target := range result.SkippedByPolicy {
		sb.WriteString(fmt.Sprintf("  [-] %s\n", target.URL))
	}
	sb.WriteString("\n")
}

// writeFailures writes the pages that could not be fetched.
func (w *SimpleWriter) writeFailures(sb *strings.Builder, result *model.CrawlResult) {
	if len(result.Failures) == 0 && !w.showEmpty {
		return
	}

	writeSection(sb, "FETCH FAILURES")

	if len(result.Failures) == 0 {
		sb.WriteString("  None\n\n")
		return
	}
	for _, f := range result.Failures {
		sb.WriteString(fmt.Sprintf("  [x] %s (%s)\n", f.Target.URL, f.Kind))
		if w.verbose && f.Message != "" {
			sb.WriteString(fmt.Sprintf("      %s\n", f.Message))
		}
	}
	sb.WriteString("\n")
}

// writeSummary writes the aggregate counts and the pages with violations.
func (w *SimpleWriter) writeSummary(sb *strings.Builder, summary *model.CrawlSummary) {
	writeSection(sb, "SUMMARY")

	sb.WriteString(fmt.Sprintf("  Pages visited:        %d\n", summary.PagesVisited))
	sb.WriteString(fmt.Sprintf("  Skipped by policy:    %d\n", summary.PagesSkippedByPolicy))
	sb.WriteString(fmt.Sprintf("  Failed:               %d\n", summary.PagesFailed))
	sb.WriteString(fmt.Sprintf("  With violations:      %d\n", summary.PagesWithViolations))
	sb.WriteString("\n")

	for _, kind := range model.ViolationKinds {
		sb.WriteString(fmt.Sprintf("  %-22s%d\n", string(kind)+":", summary.ViolationCounts[kind]))
	}
	sb.WriteString(fmt.Sprintf("  %-22s%d violations\n", "TOTAL:", summary.TotalViolations()))
	sb.WriteString("\n")

	if summary.Sound() {
		sb.WriteString("  All pages have a sound heading structure.\n\n")
		return
	}

	sb.WriteString("  Pages with violations:\n")
	for _, u := range summary.ViolatingPages {
		sb.WriteString(fmt.Sprintf("    [!] %s\n", u))
	}
	sb.WriteString("\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by headingscan\n")
	sb.WriteString("https://github.com/nao1215/headingscan\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
