package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"github.com/nao1215/headingscan/internal/config"
	"github.com/nao1215/headingscan/internal/crawler"
	"github.com/nao1215/headingscan/internal/log"
	"github.com/nao1215/headingscan/internal/metrics"
	"github.com/nao1215/headingscan/internal/model"
	"github.com/nao1215/headingscan/internal/pipeline"
	"github.com/nao1215/headingscan/internal/report"
)

var (
	// errScanCancelled is returned after a signal stopped the crawl and
	// the partial report has been written.
	errScanCancelled = errors.New("scan cancelled: partial results were reported")

	// errViolationsFound is returned with --fail-on-violations when any
	// page has a heading structure violation.
	errViolationsFound = errors.New("heading structure violations found")
)

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [seed-url]...",
		Short: "Crawl a website and check the heading structure of every page",
		Long: heredoc.Doc(`
			Scan crawls each seed URL breadth-first, staying on the seed's origin,
			and checks the h1-h6 outline of every HTML page it fetches.

			A page is reported when it:
			- has no h1
			- has more than one h1
			- skips a heading level (e.g. an h2 followed by an h4)

			robots.txt is honored for the configured User-Agent. A seed without a
			scheme is crawled over https.
		`),
		Example: heredoc.Doc(`
			# Crawl a site with the default bounds
			$ headingscan scan https://example.com

			# Crawl two sites concurrently and write a Markdown report
			$ headingscan scan -b 2 -f markdown -o report.md example.com example.org

			# Write an Excel workbook to ~/Documents/example.com/heading_structures.xlsx
			$ headingscan scan -f xlsx example.com

			# Fail a CI job when any page has a broken outline
			$ headingscan scan --fail-on-violations -d 2 https://staging.example.com
		`),
		Args: cobra.ArbitraryArgs,
		RunE: runScanCmd,
	}

	// Crawl bounds
	cmd.Flags().IntP("depth", "d", config.DefaultCrawlDepth,
		"Maximum number of link hops from the seed (0 = seed page only)")
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum number of pages to fetch per seed")

	// Politeness and transport
	cmd.Flags().Duration("delay", config.DefaultRequestDelay,
		"Minimum delay between two requests to the same site")
	cmd.Flags().Bool("ignore-crawl-delay", false,
		"Do not raise --delay to the robots.txt Crawl-delay")
	cmd.Flags().StringP("user-agent", "u", config.DefaultUserAgent,
		"User-Agent header, also matched against robots.txt")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each HTTP request")
	cmd.Flags().IntP("workers", "w", config.DefaultWorkers,
		"Number of concurrent fetches per seed")
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of seeds crawled concurrently")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .headingscan in current or home directory)")

	// Report flags
	cmd.Flags().StringP("format", "f", string(config.ReportFormatText),
		"Report format: "+formatList())
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().Bool("fail-on-violations", false,
		"Exit with a non-zero status when any page has heading violations")

	// Runtime
	cmd.Flags().String("metrics-addr", "",
		"Serve Prometheus metrics on this address during the scan (e.g. :9090)")
	cmd.Flags().Bool("no-progress", false,
		"Disable the progress spinner")
	cmd.Flags().Bool("log-json", false,
		"Write logs to stderr as JSON")

	return cmd
}

// formatList returns the accepted --format values for help output.
func formatList() string {
	names := make([]string, 0, len(config.ReportFormats))
	for _, f := range config.ReportFormats {
		names = append(names, string(f))
	}
	return strings.Join(names, ", ")
}

// runScanCmd executes the scan command.
func runScanCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logJSON, err := cmd.Flags().GetBool("log-json")
	if err != nil {
		return err
	}
	logger := setupLogger(os.Stderr, cfg.Verbose, logJSON,
		log.WithSensitiveKeys(cfg.SiteConfigs.HeaderNames()...))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runScan(ctx, cfg, logger, cmd.OutOrStdout())
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error

	if cfg.CrawlDepth, err = flags.GetInt("depth"); err != nil {
		return nil, err
	}
	if cfg.MaxPages, err = flags.GetInt("max-pages"); err != nil {
		return nil, err
	}
	if cfg.RequestDelay, err = flags.GetDuration("delay"); err != nil {
		return nil, err
	}

	ignoreCrawlDelay, err := flags.GetBool("ignore-crawl-delay")
	if err != nil {
		return nil, err
	}
	cfg.RespectCrawlDelay = !ignoreCrawlDelay

	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.Workers, err = flags.GetInt("workers"); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
		return nil, err
	}

	format, err := flags.GetString("format")
	if err != nil {
		return nil, err
	}
	cfg.ReportFormat = config.ReportFormat(strings.ToLower(format))

	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	if cfg.FailOnViolations, err = flags.GetBool("fail-on-violations"); err != nil {
		return nil, err
	}
	if cfg.MetricsAddr, err = flags.GetString("metrics-addr"); err != nil {
		return nil, err
	}
	if cfg.NoProgress, err = flags.GetBool("no-progress"); err != nil {
		return nil, err
	}
	cfg.Verbose = getVerboseFlag(cmd)

	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}

	// If the user named a config file it must exist. Otherwise a missing
	// file simply means no site-specific settings.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	switch {
	case configPath != "":
		cfg.SiteConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	case explicitConfigPath:
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	default:
		cfg.SiteConfigs = &config.File{
			Sites: make(map[string]config.SiteConfig),
		}
	}

	cfg.Targets = args

	return cfg, nil
}

// setupLogger creates the structured logger for a scan.
func setupLogger(w io.Writer, verbose, jsonFormat bool, opts ...log.SecureOption) *slog.Logger {
	if jsonFormat {
		return log.NewSecureJSONLogger(w, verbose, opts...)
	}
	return log.NewSecureLogger(w, verbose, opts...)
}

// runScan crawls every target and writes the reports. Text, JSON and
// Markdown reports go to out unless cfg.ReportFile is set.
func runScan(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer) error {
	if len(cfg.Targets) == 0 {
		return config.ErrNoTarget
	}

	seeds := make([]string, len(cfg.Targets))
	for i, target := range cfg.Targets {
		normalized, err := crawler.NormalizeSeed(target)
		if err != nil {
			return fmt.Errorf("%w %q: %w", config.ErrInvalidSeedURL, target, err)
		}
		seeds[i] = normalized
	}

	logger.Info("starting scan",
		"seeds", seeds,
		"depth", cfg.CrawlDepth,
		"max_pages", cfg.MaxPages,
		"batch", cfg.BatchSize,
	)

	var m *metrics.Metrics
	if cfg.MetricsAddr != "" {
		m = metrics.New()
		stopMetrics, err := startMetricsServer(ctx, cfg.MetricsAddr, m, logger)
		if err != nil {
			return err
		}
		defer stopMetrics()
	}

	prog := newProgress(os.Stderr, len(seeds), !cfg.NoProgress)
	client := &http.Client{Timeout: cfg.Timeout}

	bp := pipeline.NewBatchProcessor(
		func(seed string) *pipeline.Pipeline {
			return createPipelineForSeed(client, logger, cfg, seed, m, prog)
		},
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	startTime := time.Now()
	prog.Start()
	results := make([]*model.CrawlResult, len(seeds))
	batchErr := bp.ProcessBatchWithCallback(ctx, seeds, func(result *model.CrawlResult, index int) {
		// Each index is written by exactly one goroutine.
		results[index] = result
		prog.Done()
	})
	prog.Stop()
	fillCancelled(results, seeds)

	logger.Info("scan finished",
		"seeds", len(seeds),
		"elapsed", time.Since(startTime).Round(time.Millisecond),
	)

	if err := writeReports(cfg, results, out); err != nil {
		return err
	}

	if batchErr != nil {
		if errors.Is(batchErr, context.Canceled) {
			return errScanCancelled
		}
		return batchErr
	}

	if cfg.FailOnViolations {
		if n := countViolatingPages(results); n > 0 {
			return fmt.Errorf("%w on %d page(s)", errViolationsFound, n)
		}
	}

	return nil
}

// fillCancelled replaces the slots of seeds that never started with an
// empty cancelled result so every seed is reported.
func fillCancelled(results []*model.CrawlResult, seeds []string) {
	for i, r := range results {
		if r != nil {
			continue
		}
		r = model.NewCrawlResult(seeds[i])
		r.Termination = model.TerminationCancelled
		r.Finish()
		results[i] = r
	}
}

// countViolatingPages sums the violating pages over all results.
func countViolatingPages(results []*model.CrawlResult) int {
	n := 0
	for _, r := range results {
		if r.Summary != nil {
			n += r.Summary.PagesWithViolations
		}
	}
	return n
}

// startMetricsServer serves /metrics until the returned stop function is
// called.
func startMetricsServer(ctx context.Context, addr string, m *metrics.Metrics, logger *slog.Logger) (func(), error) {
	srv, err := metrics.Listen(addr, m, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to start metrics server: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Serving metrics on http://%s/metrics\n", srv.Addr())

	// The server outlives a cancelled scan until the reports are written.
	serveCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.Serve(serveCtx); err != nil {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	return func() {
		cancel()
		<-done
	}, nil
}

// createPipelineForSeed creates a pipeline for one seed. Flags set the
// global values; the merged site configuration for the seed's host
// overrides them.
func createPipelineForSeed(
	client *http.Client,
	logger *slog.Logger,
	cfg *config.Config,
	seed string,
	m *metrics.Metrics,
	prog *progress,
) *pipeline.Pipeline {
	pipelineOpts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithContinueOnError(true),
	}

	configOpts := []pipeline.DefaultPipelineOption{
		pipeline.WithPipelineCrawlDepth(cfg.CrawlDepth),
		pipeline.WithPipelineMaxPages(cfg.MaxPages),
		pipeline.WithPipelineDelay(cfg.RequestDelay),
		pipeline.WithPipelineRespectCrawlDelay(cfg.RespectCrawlDelay),
		pipeline.WithPipelineUserAgent(cfg.UserAgent),
		pipeline.WithPipelineMaxBodySize(cfg.MaxBodySize),
		pipeline.WithPipelineWorkers(cfg.Workers),
		pipeline.WithPipelineMetrics(m),
	}
	if prog != nil {
		configOpts = append(configOpts, pipeline.WithPipelineProgress(prog.Update))
	}
	configOpts = append(configOpts, pipeline.SiteOptions(cfg.SiteFor(seedHost(seed)))...)

	return pipeline.DefaultPipeline(client, pipelineOpts, configOpts...)
}

// seedHost returns host[:port] of a normalized seed, the key used in the
// sites section of the config file.
func seedHost(seed string) string {
	u, err := url.Parse(seed)
	if err != nil {
		return ""
	}
	return u.Host
}

// newReportWriter returns the writer for format.
func newReportWriter(format config.ReportFormat, w io.Writer, verbose bool) report.Writer {
	switch format {
	case config.ReportFormatJSON:
		return report.NewFullJSONWriter(w, getVersion(), report.WithPrettyPrint())
	case config.ReportFormatMarkdown:
		return report.NewMarkdownWriter(w)
	case config.ReportFormatHTML:
		return report.NewHTMLWriter(w)
	case config.ReportFormatXLSX:
		return report.NewXLSXWriter(w)
	default:
		return report.NewSimpleWriter(w, report.WithVerbose(verbose))
	}
}

// writeReports writes one report per result. HTML and XLSX are whole
// documents, so each seed gets its own file. The other formats stream
// every result, in seed order, to a single destination.
func writeReports(cfg *config.Config, results []*model.CrawlResult, out io.Writer) error {
	if cfg.ReportFormat.Binary() {
		for _, result := range results {
			path := reportPathFor(cfg, result.Seed, len(results))
			if err := writeReportFile(cfg, path, result); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Report written to %s\n", path)
		}
		return nil
	}

	if cfg.ReportFile != "" {
		f, err := createReportFile(cfg.ReportFile)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	writer := newReportWriter(cfg.ReportFormat, out, cfg.Verbose)
	for _, result := range results {
		if _, err := writer.Write(result); err != nil {
			return fmt.Errorf("failed to write report for %s: %w", result.Seed, err)
		}
	}
	return nil
}

// writeReportFile writes a single result to path.
func writeReportFile(cfg *config.Config, path string, result *model.CrawlResult) error {
	f, err := createReportFile(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := newReportWriter(cfg.ReportFormat, f, cfg.Verbose).Write(result); err != nil {
		return fmt.Errorf("failed to write report for %s: %w", result.Seed, err)
	}
	return nil
}

// reportPathFor returns where the report of seed goes. Without --output
// it is the documents directory of the seed's domain. With --output and
// several seeds, the domain is inserted before the extension so the
// files do not overwrite each other.
func reportPathFor(cfg *config.Config, seed string, total int) string {
	domain := seedHost(seed)
	if cfg.ReportFile == "" {
		return config.DefaultReportPath(domain, cfg.ReportFormat)
	}
	if total <= 1 {
		return cfg.ReportFile
	}
	ext := filepath.Ext(cfg.ReportFile)
	base := strings.TrimSuffix(cfg.ReportFile, ext)
	domain = strings.NewReplacer(":", "_", "/", "_").Replace(domain)
	return base + "_" + domain + ext
}

// createReportFile creates or truncates path, creating parent
// directories. Reports may contain URLs of non-public pages, so the file
// is only readable by its owner.
func createReportFile(path string) (*os.File, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, nil
}
