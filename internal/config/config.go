package config

import (
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// DefaultTimeout bounds each HTTP request. Ten seconds is generous for
	// public sites while keeping a stalled server from holding a worker.
	DefaultTimeout = 10 * time.Second

	// DefaultCrawlDepth of 5 covers the navigation of most sites without
	// wandering into deep archives. Depth 0 means the seed page only.
	DefaultCrawlDepth = 5

	// DefaultMaxPages is the maximum number of pages to fetch per seed.
	// This prevents runaway crawling on large or infinitely-generating sites.
	DefaultMaxPages = 100

	// DefaultRequestDelay is the minimum spacing between requests.
	// This is a politeness setting to avoid overwhelming servers.
	DefaultRequestDelay = 500 * time.Millisecond

	// DefaultWorkers is the number of concurrent fetches per seed.
	// One worker gives a strictly sequential breadth-first crawl.
	DefaultWorkers = 1

	// DefaultBatchSize is the number of seeds crawled concurrently.
	DefaultBatchSize = 1

	// AppName is the application name used for XDG directory paths.
	AppName = "headingscan"

	// DefaultUserAgent identifies headingscan in HTTP requests and is the
	// agent matched against robots.txt groups.
	DefaultUserAgent = "headingscan/1.0 (+https://github.com/nao1215/headingscan)"

	// DefaultMaxBodySize limits the maximum response body size to read.
	// 5MB is sufficient for most HTML pages while preventing memory exhaustion
	// from unexpectedly large responses.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultReportFileName is the base name of html and xlsx reports
	// written to the documents directory.
	DefaultReportFileName = "heading_structures"
)

// ReportFormat selects the report writer.
type ReportFormat string

const (
	// ReportFormatText is the human-readable terminal report.
	ReportFormatText ReportFormat = "text"

	// ReportFormatJSON is the full JSON report.
	ReportFormatJSON ReportFormat = "json"

	// ReportFormatMarkdown is the GitHub Flavored Markdown report.
	ReportFormatMarkdown ReportFormat = "markdown"

	// ReportFormatHTML is the combined HTML document of all pages.
	ReportFormatHTML ReportFormat = "html"

	// ReportFormatXLSX is the Excel workbook.
	ReportFormatXLSX ReportFormat = "xlsx"
)

// ReportFormats lists the accepted formats, for flag help.
var ReportFormats = []ReportFormat{
	ReportFormatText,
	ReportFormatJSON,
	ReportFormatMarkdown,
	ReportFormatHTML,
	ReportFormatXLSX,
}

// Valid reports whether f is a known format.
func (f ReportFormat) Valid() bool {
	for _, known := range ReportFormats {
		if f == known {
			return true
		}
	}
	return false
}

// Binary reports whether the format is written to a file by default
// rather than to stdout.
func (f ReportFormat) Binary() bool {
	return f == ReportFormatHTML || f == ReportFormatXLSX
}

// Config holds the options of one scan, filled from CLI flags and the
// site config file.
type Config struct {
	// Targets are the seed URLs to crawl. A seed without a scheme is
	// treated as https.
	Targets []string

	// Timeout is the timeout for each HTTP request, including robots.txt.
	Timeout time.Duration

	// CrawlDepth is the maximum number of link hops from the seed.
	// Depth 0 means only fetch the seed page.
	CrawlDepth int

	// MaxPages is the maximum number of fetch attempts per seed.
	MaxPages int

	// RequestDelay is the minimum spacing between two requests of one crawl.
	RequestDelay time.Duration

	// RespectCrawlDelay raises RequestDelay to the robots.txt Crawl-delay
	// when the latter is longer.
	RespectCrawlDelay bool

	// UserAgent is the User-Agent header sent with HTTP requests and the
	// agent robots.txt rules are evaluated for.
	UserAgent string

	// Workers is the number of concurrent fetches per seed.
	Workers int

	// BatchSize is the number of seeds crawled concurrently.
	BatchSize int

	// MaxBodySize is the maximum response body size in bytes to read.
	MaxBodySize int64

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool

	// ConfigFilePath is the path to the configuration file.
	// If empty, the tool searches for .headingscan in the current
	// directory, the home directory and the XDG config directory.
	ConfigFilePath string

	// SiteConfigs holds site-specific configurations loaded from the config file.
	// This is populated by LoadConfigFile and used during scanning.
	SiteConfigs *File

	// ReportFormat selects the report writer.
	ReportFormat ReportFormat

	// ReportFile is the output file path for the report.
	// When set, the report is written to this file instead of stdout.
	// Directories are created automatically if they don't exist.
	ReportFile string

	// MetricsAddr is the listen address of the Prometheus endpoint.
	// Empty disables it.
	MetricsAddr string

	// NoProgress disables the terminal spinner.
	NoProgress bool

	// FailOnViolations makes the scan command exit non-zero when any page
	// has heading structure violations.
	FailOnViolations bool
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Timeout:           DefaultTimeout,
		CrawlDepth:        DefaultCrawlDepth,
		MaxPages:          DefaultMaxPages,
		RequestDelay:      DefaultRequestDelay,
		RespectCrawlDelay: true,
		UserAgent:         DefaultUserAgent,
		Workers:           DefaultWorkers,
		BatchSize:         DefaultBatchSize,
		MaxBodySize:       DefaultMaxBodySize,
		ReportFormat:      ReportFormatText,
	}
}

// XDGConfigDir returns the XDG config directory for headingscan.
// This follows the XDG Base Directory Specification.
// On Linux: ~/.config/headingscan
// On macOS: ~/Library/Application Support/headingscan
// On Windows: %APPDATA%\headingscan
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// DefaultReportPath returns where an html or xlsx report for domain is
// written when no output file is given:
// <Documents>/<domain>/heading_structures.<ext>
func DefaultReportPath(domain string, format ReportFormat) string {
	domain = strings.NewReplacer(":", "_", "/", "_").Replace(domain)
	return filepath.Join(xdg.UserDirs.Documents, domain, DefaultReportFileName+"."+string(format))
}

// Validate checks if the configuration is valid.
// It returns a specific error describing what is invalid.
// Only the first problem found is reported.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}

	for _, target := range c.Targets {
		if !validSeed(target) {
			return ErrInvalidSeedURL
		}
	}

	// Depth 0 is valid and means seed only
	if c.CrawlDepth < 0 {
		return ErrInvalidMaxDepth
	}

	if c.MaxPages < 1 {
		return ErrInvalidMaxPages
	}

	if c.RequestDelay < 0 {
		return ErrInvalidRequestDelay
	}

	// Timeout must be positive; zero timeout would cause immediate failures
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.Workers < 1 {
		return ErrInvalidWorkers
	}

	if c.BatchSize < 1 {
		return ErrInvalidBatchSize
	}

	if !c.ReportFormat.Valid() {
		return ErrInvalidReportFormat
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	return nil
}

// validSeed reports whether seed is an http(s) URL with a host, allowing
// the scheme to be omitted.
func validSeed(seed string) bool {
	seed = strings.TrimSpace(seed)
	if seed == "" {
		return false
	}
	if !strings.Contains(seed, "://") {
		seed = "https://" + seed
	}
	u, err := url.Parse(seed)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return (scheme == "http" || scheme == "https") && u.Hostname() != ""
}

// SiteFor returns the merged site configuration for host.
// Without a config file it returns an empty SiteConfig.
func (c *Config) SiteFor(host string) SiteConfig {
	if c.SiteConfigs == nil {
		return SiteConfig{}
	}
	return c.SiteConfigs.GetSiteConfig(host)
}
