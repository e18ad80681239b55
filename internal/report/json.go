package report

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/nao1215/headingscan/internal/model"
)

// JSONWriter writes the crawl result as one JSON document, for tools that
// post-process a scan. HTML in heading text is written as is, so a heading
// "Q&A" stays "Q&A" rather than "Q\u0026A".
type JSONWriter struct {
	baseWriter

	prefix string
	indent string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent indents nested values with indent, starting each line with
// prefix. Output is a single line otherwise.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.prefix = prefix
		w.indent = indent
	}
}

// WithPrettyPrint indents with two spaces.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter returns a JSONWriter writing to output.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write encodes result, computing its summary first if needed.
func (w *JSONWriter) Write(result *model.CrawlResult) (int, error) {
	ensureSummary(result)
	return w.encode(result)
}

// WriteSummary encodes only summary.
func (w *JSONWriter) WriteSummary(summary *model.CrawlSummary) (int, error) {
	return w.encode(summary)
}

// encode writes v followed by a newline in a single Write call.
func (w *JSONWriter) encode(v any) (int, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if w.prefix != "" || w.indent != "" {
		enc.SetIndent(w.prefix, w.indent)
	}
	if err := enc.Encode(v); err != nil {
		return 0, err
	}
	return w.output.Write(buf.Bytes())
}

// JSONReport is the document written by FullJSONWriter: the result plus
// the version of the tool that produced it.
type JSONReport struct {
	Version string              `json:"version"`
	Report  *model.CrawlResult  `json:"report"`
	Summary *model.CrawlSummary `json:"summary,omitempty"`
}

// NewJSONReport wraps result, summarizing it if that has not happened yet.
func NewJSONReport(result *model.CrawlResult, version string) *JSONReport {
	return &JSONReport{
		Version: version,
		Report:  result,
		Summary: ensureSummary(result),
	}
}

// FullJSONWriter writes a JSONReport per result. It is what the scan
// command uses for --format json.
type FullJSONWriter struct {
	*JSONWriter
	version string
}

// NewFullJSONWriter returns a FullJSONWriter stamping reports with version.
func NewFullJSONWriter(output io.Writer, version string, opts ...JSONWriterOption) *FullJSONWriter {
	return &FullJSONWriter{
		JSONWriter: NewJSONWriter(output, opts...),
		version:    version,
	}
}

// Write encodes result wrapped in a JSONReport.
func (w *FullJSONWriter) Write(result *model.CrawlResult) (int, error) {
	return w.encode(NewJSONReport(result, w.version))
}
