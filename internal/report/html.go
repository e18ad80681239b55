package report

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"io"

	"github.com/nao1215/headingscan/internal/model"
)

//go:embed templates/report.html.tmpl
var htmlTemplateText string

var htmlTemplate = template.Must(template.New("report").Parse(htmlTemplateText))

// HTMLWriter outputs one combined HTML document for a crawl: a button per
// page that reveals its heading tree, and a report section listing every
// page coloured by verdict.
//
// Headings that a violation points at are coloured as errors; all others
// are coloured as correct.
type HTMLWriter struct {
	baseWriter
}

// NewHTMLWriter creates an HTMLWriter that outputs to the given writer.
func NewHTMLWriter(output io.Writer) *HTMLWriter {
	return &HTMLWriter{baseWriter: newBaseWriter(output)}
}

type htmlPage struct {
	ID         string
	Label      string
	Title      string
	URL        string
	Sound      bool
	Headings   []headingLine
	Violations []string
}

type htmlDocument struct {
	Seed    string
	Date    string
	Status  string
	Pages   []htmlPage
	Summary *model.CrawlSummary
}

// Write outputs the full result as an HTML document.
func (w *HTMLWriter) Write(result *model.CrawlResult) (int, error) {
	doc := htmlDocument{
		Seed:    result.Seed,
		Date:    result.StartedAt.Format("2006-01-02 15:04:05 MST"),
		Status:  statusText(result),
		Pages:   make([]htmlPage, 0, len(result.Pages)),
		Summary: ensureSummary(result),
	}

	for i, page := range result.Pages {
		violations := make([]string, 0, len(page.Verdict.Violations))
		for _, v := range page.Verdict.Violations {
			violations = append(violations, fmt.Sprintf("%s: %s", v.Kind, v.Description))
		}
		doc.Pages = append(doc.Pages, htmlPage{
			ID:         fmt.Sprintf("page%d", i),
			Label:      pageLabel(page.Target.URL),
			Title:      page.DisplayTitle(),
			URL:        page.Target.URL,
			Sound:      page.Verdict.Sound,
			Headings:   headingLines(page),
			Violations: violations,
		})
	}

	return w.render(doc)
}

// WriteSummary outputs a document containing only the report section.
func (w *HTMLWriter) WriteSummary(summary *model.CrawlSummary) (int, error) {
	doc := htmlDocument{
		Seed:    summary.Seed,
		Status:  string(summary.Termination),
		Pages:   make([]htmlPage, 0, len(summary.ViolatingPages)),
		Summary: summary,
	}
	for i, u := range summary.ViolatingPages {
		doc.Pages = append(doc.Pages, htmlPage{
			ID:    fmt.Sprintf("page%d", i),
			Label: pageLabel(u),
			Title: u,
			URL:   u,
		})
	}
	return w.render(doc)
}

// render executes the template into a buffer so a failed render writes
// nothing.
func (w *HTMLWriter) render(doc htmlDocument) (int, error) {
	var buf bytes.Buffer
	if err := htmlTemplate.Execute(&buf, doc); err != nil {
		return 0, fmt.Errorf("failed to render HTML report: %w", err)
	}
	return w.output.Write(buf.Bytes())
}
