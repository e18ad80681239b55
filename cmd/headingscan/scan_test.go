package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/nao1215/headingscan/internal/config"
	"github.com/nao1215/headingscan/internal/log"
	"github.com/nao1215/headingscan/internal/model"
	"github.com/nao1215/headingscan/internal/report"
)

// discardLogger returns a logger that drops everything.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newSite starts a two-page site: the home page is sound, /about skips
// from h1 to h3.
func newSite(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		switch r.URL.Path {
		case "/":
			fmt.Fprint(w, `<html><head><title>Home</title></head><body>
<h1>Home</h1><h2>Intro</h2><a href="/about">About</a></body></html>`)
		case "/about":
			fmt.Fprint(w, `<html><body><h1>About</h1><h3>Team</h3></body></html>`)
		default:
			http.NotFound(w, r)
		}
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

// testConfig returns a fast configuration for seeds.
func testConfig(seeds ...string) *config.Config {
	cfg := config.NewConfig()
	cfg.Targets = seeds
	cfg.RequestDelay = 0
	cfg.Timeout = 5 * time.Second
	cfg.NoProgress = true
	return cfg
}

// TestNewScanCmd tests the scan command creation.
func TestNewScanCmd(t *testing.T) {
	t.Parallel()

	cmd := NewScanCmd()

	t.Run("has descriptions", func(t *testing.T) {
		t.Parallel()
		if cmd.Short == "" || cmd.Long == "" || cmd.Example == "" {
			t.Error("expected short, long and example text")
		}
	})

	tests := []struct {
		name      string
		shorthand string
		defValue  string
	}{
		{"depth", "d", "5"},
		{"max-pages", "p", "100"},
		{"delay", "", "500ms"},
		{"user-agent", "u", config.DefaultUserAgent},
		{"timeout", "t", "10s"},
		{"workers", "w", "1"},
		{"batch", "b", "1"},
		{"config", "c", ""},
		{"format", "f", "text"},
		{"output", "o", ""},
		{"ignore-crawl-delay", "", "false"},
		{"metrics-addr", "", ""},
		{"no-progress", "", "false"},
		{"fail-on-violations", "", "false"},
		{"log-json", "", "false"},
	}

	for _, tt := range tests {
		t.Run("has "+tt.name+" flag", func(t *testing.T) {
			t.Parallel()
			flag := cmd.Flags().Lookup(tt.name)
			if flag == nil {
				t.Fatalf("expected %s flag", tt.name)
			}
			if flag.Shorthand != tt.shorthand {
				t.Errorf("expected shorthand %q, got %q", tt.shorthand, flag.Shorthand)
			}
			if flag.DefValue != tt.defValue {
				t.Errorf("expected default %q, got %q", tt.defValue, flag.DefValue)
			}
		})
	}
}

// TestSetupLogger tests the logger setup.
func TestSetupLogger(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		verbose    bool
		jsonFormat bool
		wantDebug  bool
	}{
		{"text warn level", false, false, false},
		{"text debug level", true, false, true},
		{"json warn level", false, true, false},
		{"json debug level", true, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			logger := setupLogger(io.Discard, tt.verbose, tt.jsonFormat)
			if logger == nil {
				t.Fatal("expected non-nil logger")
			}
			if got := logger.Enabled(context.Background(), slog.LevelDebug); got != tt.wantDebug {
				t.Errorf("expected debug enabled %v, got %v", tt.wantDebug, got)
			}
			if !logger.Enabled(context.Background(), slog.LevelWarn) {
				t.Error("expected warn level to be enabled")
			}
		})
	}

	t.Run("masks configured header names", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		logger := setupLogger(&buf, false, false, log.WithSensitiveKeys("X-Staging-Key"))
		logger.Warn("request rejected", "X-Staging-Key", "letmein")
		if strings.Contains(buf.String(), "letmein") {
			t.Errorf("expected header value to be masked, got: %s", buf.String())
		}
	})
}

// TestGetVerboseFlag tests the verbose flag retrieval.
func TestGetVerboseFlag(t *testing.T) {
	t.Parallel()

	t.Run("returns false when flag not set", func(t *testing.T) {
		t.Parallel()
		if getVerboseFlag(NewScanCmd()) {
			t.Error("expected false when flag not set")
		}
	})

	t.Run("returns value from parent verbose flag", func(t *testing.T) {
		t.Parallel()
		root := NewRootCmd()
		if err := root.PersistentFlags().Set("verbose", "true"); err != nil {
			t.Fatal(err)
		}

		scanCmd, _, err := root.Find([]string{"scan"})
		if err != nil {
			t.Fatalf("failed to find scan command: %v", err)
		}
		if !getVerboseFlag(scanCmd) {
			t.Error("expected true from parent verbose flag")
		}
	})
}

// TestBuildConfig tests configuration building from flags.
func TestBuildConfig(t *testing.T) {
	t.Parallel()

	t.Run("builds config with default values", func(t *testing.T) {
		t.Parallel()
		cfg, err := buildConfig(NewScanCmd(), []string{"example.com"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(cfg.Targets) != 1 || cfg.Targets[0] != "example.com" {
			t.Errorf("expected targets [example.com], got %v", cfg.Targets)
		}
		if cfg.CrawlDepth != config.DefaultCrawlDepth {
			t.Errorf("expected depth %d, got %d", config.DefaultCrawlDepth, cfg.CrawlDepth)
		}
		if cfg.RequestDelay != config.DefaultRequestDelay {
			t.Errorf("expected delay %v, got %v", config.DefaultRequestDelay, cfg.RequestDelay)
		}
		if !cfg.RespectCrawlDelay {
			t.Error("expected robots.txt Crawl-delay to be respected by default")
		}
		if cfg.ReportFormat != config.ReportFormatText {
			t.Errorf("expected text format, got %q", cfg.ReportFormat)
		}
		if cfg.SiteConfigs == nil {
			t.Error("expected SiteConfigs to be initialized")
		}
	})

	t.Run("builds config with custom flags", func(t *testing.T) {
		t.Parallel()
		cmd := NewScanCmd()
		set := map[string]string{
			"depth":              "2",
			"max-pages":          "7",
			"delay":              "1s",
			"user-agent":         "tester/1.0",
			"timeout":            "3s",
			"workers":            "4",
			"batch":              "5",
			"format":             "Markdown",
			"output":             "/tmp/report.md",
			"ignore-crawl-delay": "true",
			"metrics-addr":       ":9100",
			"no-progress":        "true",
			"fail-on-violations": "true",
		}
		for name, value := range set {
			if err := cmd.Flags().Set(name, value); err != nil {
				t.Fatalf("failed to set %s: %v", name, err)
			}
		}

		cfg, err := buildConfig(cmd, []string{"a.example", "b.example"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.CrawlDepth != 2 || cfg.MaxPages != 7 {
			t.Errorf("expected depth 2 and max pages 7, got %d and %d", cfg.CrawlDepth, cfg.MaxPages)
		}
		if cfg.RequestDelay != time.Second || cfg.Timeout != 3*time.Second {
			t.Errorf("unexpected durations: delay %v timeout %v", cfg.RequestDelay, cfg.Timeout)
		}
		if cfg.UserAgent != "tester/1.0" {
			t.Errorf("expected user agent tester/1.0, got %q", cfg.UserAgent)
		}
		if cfg.Workers != 4 || cfg.BatchSize != 5 {
			t.Errorf("expected 4 workers and batch 5, got %d and %d", cfg.Workers, cfg.BatchSize)
		}
		if cfg.ReportFormat != config.ReportFormatMarkdown {
			t.Errorf("expected markdown format, got %q", cfg.ReportFormat)
		}
		if cfg.ReportFile != "/tmp/report.md" {
			t.Errorf("expected report file /tmp/report.md, got %q", cfg.ReportFile)
		}
		if cfg.RespectCrawlDelay {
			t.Error("expected Crawl-delay to be ignored")
		}
		if cfg.MetricsAddr != ":9100" || !cfg.NoProgress || !cfg.FailOnViolations {
			t.Errorf("unexpected runtime settings: %+v", cfg)
		}
		if len(cfg.Targets) != 2 {
			t.Errorf("expected 2 targets, got %d", len(cfg.Targets))
		}
	})

	t.Run("loads valid config file", func(t *testing.T) {
		t.Parallel()
		configPath := filepath.Join(t.TempDir(), "headingscan.yaml")
		content := []byte(`
defaults:
  depth: 10
sites:
  example.com:
    cookie: session=xyz
`)
		if err := os.WriteFile(configPath, content, 0o600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		cmd := NewScanCmd()
		_ = cmd.Flags().Set("config", configPath)
		cfg, err := buildConfig(cmd, []string{"example.com"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.SiteConfigs.Defaults.Depth != 10 {
			t.Errorf("expected default depth 10, got %d", cfg.SiteConfigs.Defaults.Depth)
		}
		if got := cfg.SiteFor("example.com").Cookie; got != "session=xyz" {
			t.Errorf("expected site cookie, got %q", got)
		}
	})

	t.Run("returns error for invalid config file", func(t *testing.T) {
		t.Parallel()
		configPath := filepath.Join(t.TempDir(), "invalid.yaml")
		if err := os.WriteFile(configPath, []byte(`{invalid yaml`), 0o600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		cmd := NewScanCmd()
		_ = cmd.Flags().Set("config", configPath)
		if _, err := buildConfig(cmd, []string{"example.com"}); err == nil {
			t.Fatal("expected error for invalid config file")
		}
	})

	t.Run("returns error for missing explicit config file", func(t *testing.T) {
		t.Parallel()
		cmd := NewScanCmd()
		_ = cmd.Flags().Set("config", filepath.Join(t.TempDir(), "missing.yaml"))
		_, err := buildConfig(cmd, []string{"example.com"})
		if !errors.Is(err, config.ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})
}

// TestRunScanCmdValidation tests that invalid input fails before crawling.
func TestRunScanCmdValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		args    []string
		wantErr error
	}{
		{"no seeds", []string{"scan"}, config.ErrNoTarget},
		{"unsupported scheme", []string{"scan", "ftp://example.com"}, config.ErrInvalidSeedURL},
		{"negative depth", []string{"scan", "-d", "-1", "example.com"}, config.ErrInvalidMaxDepth},
		{"zero max pages", []string{"scan", "-p", "0", "example.com"}, config.ErrInvalidMaxPages},
		{"zero workers", []string{"scan", "-w", "0", "example.com"}, config.ErrInvalidWorkers},
		{"zero batch", []string{"scan", "-b", "0", "example.com"}, config.ErrInvalidBatchSize},
		{"zero timeout", []string{"scan", "-t", "0s", "example.com"}, config.ErrInvalidTimeout},
		{"unknown format", []string{"scan", "-f", "pdf", "example.com"}, config.ErrInvalidReportFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			root := NewRootCmd()
			root.SetOut(io.Discard)
			root.SetErr(io.Discard)
			root.SetArgs(tt.args)

			err := root.Execute()
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if !strings.Contains(err.Error(), "configuration error") {
				t.Errorf("expected configuration error prefix, got %v", err)
			}
		})
	}
}

// TestRunScan tests the scan against a local site.
func TestRunScan(t *testing.T) {
	t.Parallel()

	t.Run("writes text report to out", func(t *testing.T) {
		t.Parallel()
		server := newSite(t)

		var out bytes.Buffer
		if err := runScan(context.Background(), testConfig(server.URL), discardLogger(), &out); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got := out.String()
		for _, want := range []string{"HEADINGSCAN REPORT", "[PASS] " + server.URL + "/", "[FAIL] " + server.URL + "/about"} {
			if !strings.Contains(got, want) {
				t.Errorf("expected output to contain %q, got:\n%s", want, got)
			}
		}
	})

	t.Run("empty seed", func(t *testing.T) {
		t.Parallel()
		cfg := testConfig("")
		err := runScan(context.Background(), cfg, discardLogger(), io.Discard)
		if !errors.Is(err, config.ErrInvalidSeedURL) {
			t.Errorf("expected ErrInvalidSeedURL, got %v", err)
		}
	})

	t.Run("no targets", func(t *testing.T) {
		t.Parallel()
		err := runScan(context.Background(), testConfig(), discardLogger(), io.Discard)
		if !errors.Is(err, config.ErrNoTarget) {
			t.Errorf("expected ErrNoTarget, got %v", err)
		}
	})

	t.Run("json report", func(t *testing.T) {
		t.Parallel()
		server := newSite(t)
		cfg := testConfig(server.URL)
		cfg.ReportFormat = config.ReportFormatJSON

		var out bytes.Buffer
		if err := runScan(context.Background(), cfg, discardLogger(), &out); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var decoded struct {
			Version string              `json:"version"`
			Summary *model.CrawlSummary `json:"summary"`
		}
		if err := json.Unmarshal(out.Bytes(), &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if decoded.Version == "" {
			t.Error("expected version in JSON report")
		}
		if decoded.Summary == nil || decoded.Summary.PagesVisited != 2 || decoded.Summary.PagesWithViolations != 1 {
			t.Errorf("unexpected summary: %+v", decoded.Summary)
		}
	})

	t.Run("markdown report to file", func(t *testing.T) {
		t.Parallel()
		server := newSite(t)
		cfg := testConfig(server.URL)
		cfg.ReportFormat = config.ReportFormatMarkdown
		cfg.ReportFile = filepath.Join(t.TempDir(), "reports", "site.md")

		if err := runScan(context.Background(), cfg, discardLogger(), io.Discard); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		content, err := os.ReadFile(cfg.ReportFile)
		if err != nil {
			t.Fatalf("expected report file: %v", err)
		}
		if !strings.Contains(string(content), "Heading Structure Report") {
			t.Errorf("expected markdown report, got:\n%s", content)
		}
	})

	t.Run("xlsx reports per seed", func(t *testing.T) {
		t.Parallel()
		first := newSite(t)
		second := newSite(t)
		cfg := testConfig(first.URL, second.URL)
		cfg.BatchSize = 2
		cfg.ReportFormat = config.ReportFormatXLSX
		cfg.ReportFile = filepath.Join(t.TempDir(), "report.xlsx")

		if err := runScan(context.Background(), cfg, discardLogger(), io.Discard); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		for _, server := range []*httptest.Server{first, second} {
			path := reportPathFor(cfg, server.URL+"/", 2)
			f, err := excelize.OpenFile(path)
			if err != nil {
				t.Fatalf("expected workbook at %s: %v", path, err)
			}
			rows, err := f.GetRows(report.SheetPages)
			if err != nil {
				t.Fatalf("failed to read pages sheet: %v", err)
			}
			// Header plus two pages.
			if len(rows) != 3 {
				t.Errorf("expected 3 rows in %s, got %d", path, len(rows))
			}
			_ = f.Close()
		}
	})

	t.Run("fail on violations", func(t *testing.T) {
		t.Parallel()
		server := newSite(t)
		cfg := testConfig(server.URL)
		cfg.FailOnViolations = true

		err := runScan(context.Background(), cfg, discardLogger(), io.Discard)
		if !errors.Is(err, errViolationsFound) {
			t.Errorf("expected errViolationsFound, got %v", err)
		}
	})

	t.Run("cancelled scan still reports", func(t *testing.T) {
		t.Parallel()
		server := newSite(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		var out bytes.Buffer
		err := runScan(ctx, testConfig(server.URL), discardLogger(), &out)
		if !errors.Is(err, errScanCancelled) {
			t.Errorf("expected errScanCancelled, got %v", err)
		}
		if !strings.Contains(out.String(), "Cancelled (partial results)") {
			t.Errorf("expected partial report, got:\n%s", out.String())
		}
	})

	t.Run("site config overrides flags", func(t *testing.T) {
		t.Parallel()
		server := newSite(t)
		cfg := testConfig(server.URL)
		cfg.SiteConfigs = &config.File{
			Sites: map[string]config.SiteConfig{
				seedHost(server.URL + "/"): {MaxPages: 1},
			},
		}
		cfg.ReportFormat = config.ReportFormatJSON

		var out bytes.Buffer
		if err := runScan(context.Background(), cfg, discardLogger(), &out); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var decoded report.JSONReport
		if err := json.Unmarshal(out.Bytes(), &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if decoded.Summary.PagesVisited != 1 {
			t.Errorf("expected the site's page budget of 1, got %d pages", decoded.Summary.PagesVisited)
		}
	})
}

// TestReportPathFor tests where binary reports are written.
func TestReportPathFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		reportFile string
		seed       string
		total      int
		want       string
	}{
		{
			name:       "single seed uses output as given",
			reportFile: "out/report.xlsx",
			seed:       "https://example.com/",
			total:      1,
			want:       "out/report.xlsx",
		},
		{
			name:       "several seeds insert the domain",
			reportFile: "out/report.xlsx",
			seed:       "https://example.com/",
			total:      2,
			want:       "out/report_example.com.xlsx",
		},
		{
			name:       "port separator is replaced",
			reportFile: "report.html",
			seed:       "http://localhost:8080/",
			total:      3,
			want:       "report_localhost_8080.html",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := config.NewConfig()
			cfg.ReportFormat = config.ReportFormatXLSX
			cfg.ReportFile = tt.reportFile
			if got := reportPathFor(cfg, tt.seed, tt.total); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}

	t.Run("defaults to the documents directory", func(t *testing.T) {
		t.Parallel()
		cfg := config.NewConfig()
		cfg.ReportFormat = config.ReportFormatHTML
		got := reportPathFor(cfg, "https://example.com/", 1)
		if got != config.DefaultReportPath("example.com", config.ReportFormatHTML) {
			t.Errorf("unexpected default path %q", got)
		}
	})
}

// TestNewReportWriter tests writer selection by format.
func TestNewReportWriter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		format config.ReportFormat
		check  func(report.Writer) bool
	}{
		{config.ReportFormatText, func(w report.Writer) bool { _, ok := w.(*report.SimpleWriter); return ok }},
		{config.ReportFormatJSON, func(w report.Writer) bool { _, ok := w.(*report.FullJSONWriter); return ok }},
		{config.ReportFormatMarkdown, func(w report.Writer) bool { _, ok := w.(*report.MarkdownWriter); return ok }},
		{config.ReportFormatHTML, func(w report.Writer) bool { _, ok := w.(*report.HTMLWriter); return ok }},
		{config.ReportFormatXLSX, func(w report.Writer) bool { _, ok := w.(*report.XLSXWriter); return ok }},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			t.Parallel()
			if w := newReportWriter(tt.format, io.Discard, false); !tt.check(w) {
				t.Errorf("unexpected writer %T for %s", w, tt.format)
			}
		})
	}
}

// TestSeedHost tests the site config key derived from a seed.
func TestSeedHost(t *testing.T) {
	t.Parallel()

	tests := []struct {
		seed string
		want string
	}{
		{"https://example.com/", "example.com"},
		{"http://localhost:8080/docs", "localhost:8080"},
		{"://bad", ""},
	}

	for _, tt := range tests {
		t.Run(tt.seed, func(t *testing.T) {
			t.Parallel()
			if got := seedHost(tt.seed); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

// TestFillCancelled tests that unstarted seeds still get a result.
func TestFillCancelled(t *testing.T) {
	t.Parallel()

	done := model.NewCrawlResult("https://a.example/")
	done.Finish()
	results := []*model.CrawlResult{done, nil}

	fillCancelled(results, []string{"https://a.example/", "https://b.example/"})

	if results[0] != done {
		t.Error("expected finished result to be kept")
	}
	if results[1] == nil || results[1].Termination != model.TerminationCancelled || results[1].Summary == nil {
		t.Errorf("expected cancelled result with summary, got %+v", results[1])
	}
	if countViolatingPages(results) != 0 {
		t.Error("expected no violating pages")
	}
}
