package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
var (
	// ErrNoTarget is returned when no seed URL is specified.
	ErrNoTarget = errors.New("no target specified: provide at least one seed URL")

	// ErrInvalidSeedURL is returned when a seed is not an http(s) URL with a host.
	ErrInvalidSeedURL = errors.New("invalid seed URL: must be an http or https URL with a host")

	// ErrInvalidMaxDepth is returned when the crawl depth is negative.
	// Use 0 to fetch only the seed page.
	ErrInvalidMaxDepth = errors.New("invalid max depth: must be non-negative")

	// ErrInvalidMaxPages is returned when the page budget is less than one.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be at least 1")

	// ErrInvalidRequestDelay is returned when the request delay is negative.
	// A negative delay is invalid; use 0 for no delay between requests.
	ErrInvalidRequestDelay = errors.New("invalid request delay: must be non-negative")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	// A timeout of zero or negative would cause immediate connection failures.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidWorkers is returned when the worker count is less than one.
	ErrInvalidWorkers = errors.New("invalid workers: must be at least 1")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	// A batch size of zero would mean no seed is ever crawled.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrInvalidReportFormat is returned for an unknown --format value.
	ErrInvalidReportFormat = errors.New("invalid report format: use text, json, markdown, html or xlsx")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	// A negative body size is invalid; use 0 to use the default limit.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")
)
