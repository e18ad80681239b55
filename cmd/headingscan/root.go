package main

import (
	"fmt"
	"os"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"
)

// NewRootCmd returns the headingscan command tree.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "headingscan",
		Short: "Crawl a website and check its heading structure",
		Long: heredoc.Doc(`
			headingscan crawls a website breadth-first from one or more seed URLs and
			checks the heading outline (h1-h6) of every page it visits.

			The crawl stays on the seed's origin and obeys robots.txt, waiting
			between requests. Every page is reported with its heading tree and the
			structural problems found in it: a missing h1, a second h1 or a skipped
			level.
		`),
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.AddCommand(NewScanCmd(), NewInitCmd(), NewVersionCmd())

	return cmd
}

// Execute runs the command tree and exits 1 on error. Errors are printed
// here because the commands silence cobra's own reporting.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "headingscan: %v\n", err)
		os.Exit(1)
	}
}
