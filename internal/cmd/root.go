package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for codepack
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "codepack",
		Short: "Export a directory tree into a single text document",
		Long: `Codepack collects the text files of a project into one Markdown or
plain-text document, with a directory tree, per-file sections and an
import/link relationship summary.

With --incremental, a fingerprint cache under .codepack-cache/ tracks
file content and modification times so unchanged files are not
re-analyzed across runs. Watch mode regenerates the export whenever
files change, debounced so editor save-bursts collapse into one run.

Configuration is loaded from .codepack/config.yaml if present.
CLI flags override configuration file settings.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
	}

	cmd.AddCommand(NewGenerateCommand())
	cmd.AddCommand(NewWatchCommand())
	cmd.AddCommand(NewCacheCommand())
	cmd.AddCommand(NewHistoryCommand())

	return cmd
}
