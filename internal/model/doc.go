// Package model defines the core data structures used throughout headingscan.
//
// This package contains the following main types:
//   - HeadingEvent: A heading tag in document order, as produced by the fetcher
//   - HeadingNode: A node of a page's heading tree
//   - Violation and Verdict: The structural validation outcome of a page
//   - CrawlResult: The aggregate result of one crawl run
//   - CrawlSummary: The terminal summary of a run
//
// The models are designed to be serializable to JSON for report output.
package model
