package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/headingscan/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing, for example as a
// comment on a pull request that changes site content.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the full result in Markdown format.
func (w *MarkdownWriter) Write(result *model.CrawlResult) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, result)
	w.writeSummary(md, ensureSummary(result))
	w.writePages(md, result)
	w.writeNotCrawled(md, result)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteSummary outputs the summary in Markdown format.
func (w *MarkdownWriter) WriteSummary(summary *model.CrawlSummary) (int, error) {
	md := markdown.NewMarkdown(w.output)
	w.writeSummary(md, summary)
	return len(md.String()), md.Build()
}

// kindLabel turns a violation kind into a title, e.g. "Skipped Level".
func kindLabel(kind model.ViolationKind) string {
	return cases.Title(language.English).String(strings.ReplaceAll(string(kind), "_", " "))
}

// writeHeader writes the report header with crawl information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, result *model.CrawlResult) {
	md.H1("Heading Structure Report")
	md.PlainText("")

	rows := [][]string{
		{"Seed", "`" + result.Seed + "`"},
		{"Crawl Date", result.StartedAt.Format("2006-01-02 15:04:05 MST")},
		{"Pages Crawled", strconv.Itoa(len(result.Pages))},
		{"Status", w.getStatusText(result)},
	}
	if result.UserAgent != "" {
		rows = append(rows, []string{"User-Agent", "`" + result.UserAgent + "`"})
	}
	if result.PolicyUnavailable {
		rows = append(rows, []string{"robots.txt", "⚠️ unavailable: " + result.PolicyNote})
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

// getStatusText returns the status text based on result state.
func (w *MarkdownWriter) getStatusText(result *model.CrawlResult) string {
	switch {
	case result.Error != "":
		return "❌ Error - " + result.Error
	case result.Termination == model.TerminationCancelled:
		return "⚠️ Cancelled (partial results)"
	case result.Termination == model.TerminationMaxPages:
		return "✅ Complete (page limit reached)"
	default:
		return "✅ Complete"
	}
}

// writeSummary writes the violation summary section.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, summary *model.CrawlSummary) {
	md.H2("Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Pages", "Count"},
		Rows: [][]string{
			{"Visited", strconv.Itoa(summary.PagesVisited)},
			{"Skipped by policy", strconv.Itoa(summary.PagesSkippedByPolicy)},
			{"Failed", strconv.Itoa(summary.PagesFailed)},
			{"**With violations**", "**" + strconv.Itoa(summary.PagesWithViolations) + "**"},
		},
	})
	md.PlainText("")

	rows := make([][]string, 0, len(model.ViolationKinds)+1)
	for _, kind := range model.ViolationKinds {
		rows = append(rows, []string{kindLabel(kind), strconv.Itoa(summary.ViolationCounts[kind])})
	}
	rows = append(rows, []string{"**Total**", "**" + strconv.Itoa(summary.TotalViolations()) + "**"})
	md.Table(markdown.TableSet{
		Header: []string{"Violation", "Count"},
		Rows:   rows,
	})
	md.PlainText("")

	if summary.TotalViolations() > 0 {
		w.writePieChart(md, summary)
	}

	w.writeAlert(md, summary)

	if len(summary.ViolatingPages) > 0 {
		md.H3("Pages with violations")
		md.PlainText("")
		md.BulletList(summary.ViolatingPages...)
		md.PlainText("")
	}
}

// writePieChart writes a mermaid pie chart for the violation distribution.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, summary *model.CrawlSummary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Violation Distribution"),
		piechart.WithShowData(true),
	)

	for _, kind := range model.ViolationKinds {
		if n := summary.ViolationCounts[kind]; n > 0 {
			chart.LabelAndIntValue(kindLabel(kind), uint64(n))
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an appropriate alert based on the summary.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, summary *model.CrawlSummary) {
	switch {
	case summary.PagesVisited == 0:
		md.Warning("No pages were crawled.")
	case summary.PagesWithViolations == summary.PagesVisited:
		md.Cautionf("Every crawled page has heading structure violations (%d page(s)).", summary.PagesVisited)
	case summary.PagesWithViolations > 0:
		md.Importantf("%d of %d page(s) have heading structure violations.",
			summary.PagesWithViolations, summary.PagesVisited)
	case summary.Termination == model.TerminationCancelled:
		md.Note("The crawl was cancelled. Only the pages crawled so far were checked.")
	default:
		md.Tip("All crawled pages have a sound heading structure.")
	}
	md.PlainText("")
}

// writePages writes the heading outline and violations of every page.
func (w *MarkdownWriter) writePages(md *markdown.Markdown, result *model.CrawlResult) {
	md.H2("Pages")
	md.PlainText("")

	if len(result.Pages) == 0 {
		md.PlainText("No pages crawled.")
		md.PlainText("")
		return
	}

	for _, page := range result.Pages {
		status := "✅"
		if !page.Verdict.Sound {
			status = "❌"
		}
		md.H3(status + " " + page.DisplayTitle())
		md.PlainText("")
		md.PlainText("`" + page.Target.URL + "`")
		md.PlainText("")

		lines := headingLines(page)
		if len(lines) == 0 {
			md.PlainText("No headings found.")
			md.PlainText("")
		} else {
			for _, line := range lines {
				text := line.Tag + " " + line.Text
				if !line.OK {
					text = "**" + text + "** ⚠️"
				}
				md.PlainText(strings.Repeat("  ", line.Depth) + "- " + text)
			}
			md.PlainText("")
		}

		if len(page.Verdict.Violations) > 0 {
			w.writeViolationsTable(md, page.Verdict.Violations)
		}
	}
}

// writeViolationsTable writes a table of a page's violations.
func (w *MarkdownWriter) writeViolationsTable(md *markdown.Markdown, violations []model.Violation) {
	rows := make([][]string, len(violations))
	for i, v := range violations {
		heading := "-"
		if v.Position >= 0 {
			heading = "h" + strconv.Itoa(v.Level) + " " + truncateString(v.Text, 40)
		}
		rows[i] = []string{
			kindLabel(v.Kind),
			heading,
			truncateString(v.Description, 80),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Violation", "Heading", "Description"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeNotCrawled writes pages skipped by policy and failed fetches.
func (w *MarkdownWriter) writeNotCrawled(md *markdown.Markdown, result *model.CrawlResult) {
	if len(result.SkippedByPolicy) > 0 {
		urls := make([]string, len(result.SkippedByPolicy))
		for i, target := range result.SkippedByPolicy {
			urls[i] = target.URL
		}
		md.Details("Skipped by policy ("+strconv.Itoa(len(urls))+")", strings.Join(urls, "\n"))
		md.PlainText("")
	}

	if len(result.Failures) > 0 {
		rows := make([][]string, len(result.Failures))
		for i, f := range result.Failures {
			rows[i] = []string{f.Target.URL, f.Kind, truncateString(f.Message, 60)}
		}
		md.H2("Fetch Failures")
		md.PlainText("")
		md.Table(markdown.TableSet{
			Header: []string{"URL", "Kind", "Message"},
			Rows:   rows,
		})
		md.PlainText("")
	}
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [headingscan](https://github.com/nao1215/headingscan)*")
}
