package main

import (
	"cmp"
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Set with -ldflags "-X main.version=... -X main.commit=... -X main.date=...".
// When empty, the values recorded by the Go toolchain are used.
var (
	version = ""
	commit  = ""
	date    = ""
)

const shortCommitLen = 7

func getVersion() string {
	var modVersion string
	if info, ok := debug.ReadBuildInfo(); ok {
		modVersion = info.Main.Version
	}
	return cmp.Or(version, modVersion, "(devel)")
}

// getCommit returns the commit, abbreviated to shortCommitLen characters
// when it comes from the VCS stamp.
func getCommit() string {
	rev := buildSetting("vcs.revision")
	if len(rev) > shortCommitLen {
		rev = rev[:shortCommitLen]
	}
	return cmp.Or(commit, rev, "unknown")
}

func getDate() string {
	return cmp.Or(date, buildSetting("vcs.time"), "unknown")
}

// buildSetting looks up a key such as "vcs.revision" in the embedded build
// settings.
func buildSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == key {
			return s.Value
		}
	}
	return ""
}

// NewVersionCmd creates the version command.
func NewVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  "Print the version, commit, build date and Go runtime of headingscan.",
		Args:  cobra.NoArgs,
		RunE:  runVersionCmd,
	}
	cmd.Flags().BoolP("short", "s", false, "Print only the version number")
	return cmd
}

func runVersionCmd(cmd *cobra.Command, _ []string) error {
	short, err := cmd.Flags().GetBool("short")
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if short {
		_, err = fmt.Fprintln(out, getVersion())
		return err
	}
	_, err = fmt.Fprintf(out, "headingscan version %s\n  commit: %s\n  built:  %s\n  go:     %s %s/%s\n",
		getVersion(), getCommit(), getDate(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
	return err
}
