// Package report renders crawl results.
//
// Every format implements Writer:
//
//	text      SimpleWriter     heading trees with PASS/FAIL, for terminals
//	json      FullJSONWriter   the whole result plus the tool version
//	markdown  MarkdownWriter   tables, alerts and a mermaid pie chart
//	html      HTMLWriter       one self-contained page, a button per crawled page
//	xlsx      XLSXWriter       summary, pages, headings and violations sheets
//
// Text, JSON and Markdown stream several results to one io.Writer. HTML and
// XLSX are complete documents, so the scan command writes one file per seed.
package report
