package main

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"github.com/nao1215/headingscan/internal/config"
)

//go:embed templates/headingscan.yaml
var configTemplate embed.FS

const (
	configTemplatePath = "templates/headingscan.yaml"
	configFileName     = config.DefaultConfigFile
)

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter .headingscan configuration file",
		Long: heredoc.Doc(`
			Write a commented .headingscan file to start a site configuration from.

			It sets the default depth and page budget, and shows how to give a
			site its own cookie, headers and URL patterns. With --global the file
			goes to the user config directory, where every scan finds it.
		`),
		Example: heredoc.Doc(`
			# .headingscan in the current directory
			$ headingscan init

			# somewhere else, replacing an existing file
			$ headingscan init -o configs/staging.yaml -f

			# the user-wide config
			$ headingscan init --global
		`),
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", configFileName, "Path of the file to write")
	cmd.Flags().BoolP("force", "f", false, "Overwrite an existing file")
	cmd.Flags().Bool("global", false, "Write to the user config directory instead of --output")
	cmd.MarkFlagsMutuallyExclusive("output", "global")

	return cmd
}

func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}
	global, err := cmd.Flags().GetBool("global")
	if err != nil {
		return err
	}
	if global {
		outputPath = filepath.Join(config.XDGConfigDir(), config.XDGConfigFile)
	}

	if err := writeConfigTemplate(outputPath, force); err != nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), heredoc.Docf(`
		Created configuration file: %s

		Edit it to set, per site:
		  - crawl depth and page budget
		  - cookies and headers for pages behind a login
		  - URL patterns to ignore or follow
	`, outputPath))
	return nil
}

// writeConfigTemplate writes the embedded template to path, creating parent
// directories. Without force an existing file is left untouched.
func writeConfigTemplate(path string, force bool) error {
	content, err := configTemplate.ReadFile(configTemplatePath)
	if err != nil {
		return fmt.Errorf("failed to read config template: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if force {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	// Owner-only: the file is where cookies and tokens end up.
	f, err := os.OpenFile(path, flags, 0600) //nolint:gosec // path is chosen by the user
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", path)
	}
	if err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		return fmt.Errorf("failed to write configuration file: %w", err)
	}
	return f.Close()
}
