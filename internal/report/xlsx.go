package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/nao1215/headingscan/internal/model"
)

// Sheet names of the workbook written by XLSXWriter.
const (
	SheetSummary    = "Summary"
	SheetPages      = "Pages"
	SheetHeadings   = "Headings"
	SheetViolations = "Violations"
)

// XLSXWriter outputs a spreadsheet workbook with one sheet per view of the
// crawl: the summary, the pages, every heading, and every violation.
type XLSXWriter struct {
	baseWriter
}

// NewXLSXWriter creates an XLSXWriter that outputs to the given writer.
func NewXLSXWriter(output io.Writer) *XLSXWriter {
	return &XLSXWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the full result as an XLSX workbook.
func (w *XLSXWriter) Write(result *model.CrawlResult) (int, error) {
	f := excelize.NewFile()
	defer f.Close()

	sb := newSheetBuilder(f)
	sb.summary(ensureSummary(result), result)
	sb.pages(result)
	sb.headings(result)
	sb.violations(result)
	if sb.err != nil {
		return 0, fmt.Errorf("failed to build workbook: %w", sb.err)
	}

	return w.writeFile(f)
}

// WriteSummary outputs a workbook containing only the summary sheet.
func (w *XLSXWriter) WriteSummary(summary *model.CrawlSummary) (int, error) {
	f := excelize.NewFile()
	defer f.Close()

	sb := newSheetBuilder(f)
	sb.summary(summary, nil)
	if sb.err != nil {
		return 0, fmt.Errorf("failed to build workbook: %w", sb.err)
	}

	return w.writeFile(f)
}

func (w *XLSXWriter) writeFile(f *excelize.File) (int, error) {
	n, err := f.WriteTo(w.output)
	if err != nil {
		return int(n), fmt.Errorf("failed to write workbook: %w", err)
	}
	return int(n), nil
}

// sheetBuilder fills a workbook and keeps the first error, so the sheet
// methods read as a straight sequence of rows.
type sheetBuilder struct {
	f      *excelize.File
	header int
	err    error
}

func newSheetBuilder(f *excelize.File) *sheetBuilder {
	sb := &sheetBuilder{f: f}
	sb.header, sb.err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})
	return sb
}

// sheet creates the named sheet, reusing the default first sheet for the
// summary, and writes its header row.
func (sb *sheetBuilder) sheet(name string, header ...any) {
	if sb.err != nil {
		return
	}
	if name == SheetSummary {
		sb.err = sb.f.SetSheetName("Sheet1", name)
	} else {
		_, sb.err = sb.f.NewSheet(name)
	}
	if sb.err != nil {
		return
	}
	sb.row(name, 1, header...)
	if sb.err != nil {
		return
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		sb.err = err
		return
	}
	sb.err = sb.f.SetCellStyle(name, "A1", last, sb.header)
}

// row writes values starting at column A of the given 1-based row.
func (sb *sheetBuilder) row(sheet string, row int, values ...any) {
	if sb.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		sb.err = err
		return
	}
	sb.err = sb.f.SetSheetRow(sheet, cell, &values)
}

func (sb *sheetBuilder) width(sheet, from, to string, width float64) {
	if sb.err != nil {
		return
	}
	sb.err = sb.f.SetColWidth(sheet, from, to, width)
}

func (sb *sheetBuilder) summary(summary *model.CrawlSummary, result *model.CrawlResult) {
	sb.sheet(SheetSummary, "Property", "Value")
	rows := [][]any{
		{"Seed", summary.Seed},
		{"Termination", string(summary.Termination)},
		{"Pages visited", summary.PagesVisited},
		{"Skipped by policy", summary.PagesSkippedByPolicy},
		{"Failed", summary.PagesFailed},
		{"Pages with violations", summary.PagesWithViolations},
	}
	for _, kind := range model.ViolationKinds {
		rows = append(rows, []any{string(kind), summary.ViolationCounts[kind]})
	}
	rows = append(rows, []any{"Total violations", summary.TotalViolations()})
	if summary.PolicyNote != "" {
		rows = append(rows, []any{"robots.txt", summary.PolicyNote})
	}
	if result != nil {
		rows = append(rows,
			[]any{"Status", statusText(result)},
			[]any{"Started", result.StartedAt.Format("2006-01-02 15:04:05 MST")},
			[]any{"User-Agent", result.UserAgent},
		)
	}
	for i, r := range rows {
		sb.row(SheetSummary, i+2, r...)
	}
	sb.width(SheetSummary, "A", "A", 24)
	sb.width(SheetSummary, "B", "B", 60)
}

func (sb *sheetBuilder) pages(result *model.CrawlResult) {
	sb.sheet(SheetPages, "URL", "Depth", "Title", "Status", "Headings", "Verdict", "Violations", "Content Hash")
	for i, page := range result.Pages {
		verdict := "PASS"
		if !page.Verdict.Sound {
			verdict = "FAIL"
		}
		sb.row(SheetPages, i+2,
			page.Target.URL,
			page.Target.Depth,
			page.Title,
			page.StatusCode,
			page.HeadingCount,
			verdict,
			len(page.Verdict.Violations),
			page.ContentHash,
		)
	}
	sb.width(SheetPages, "A", "A", 50)
	sb.width(SheetPages, "C", "C", 40)
}

func (sb *sheetBuilder) headings(result *model.CrawlResult) {
	sb.sheet(SheetHeadings, "URL", "Position", "Tag", "Depth", "Text", "OK")
	row := 2
	for _, page := range result.Pages {
		for _, line := range headingLines(page) {
			sb.row(SheetHeadings, row,
				page.Target.URL,
				line.Position+1,
				line.Tag,
				line.Depth,
				strings.Repeat("  ", line.Depth)+line.Text,
				line.OK,
			)
			row++
		}
	}
	sb.width(SheetHeadings, "A", "A", 50)
	sb.width(SheetHeadings, "E", "E", 60)
}

func (sb *sheetBuilder) violations(result *model.CrawlResult) {
	sb.sheet(SheetViolations, "URL", "Kind", "Position", "Level", "Text", "Description")
	row := 2
	for _, page := range result.Pages {
		for _, v := range page.Verdict.Violations {
			position := ""
			if v.Position >= 0 {
				position = fmt.Sprint(v.Position + 1)
			}
			sb.row(SheetViolations, row,
				page.Target.URL,
				string(v.Kind),
				position,
				v.Level,
				v.Text,
				v.Description,
			)
			row++
		}
	}
	sb.width(SheetViolations, "A", "A", 50)
	sb.width(SheetViolations, "F", "F", 80)
}
