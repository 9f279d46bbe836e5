package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/harrison/codepack/internal/config"
	"github.com/harrison/codepack/internal/display"
	"github.com/harrison/codepack/internal/logger"
)

// NewGenerateCommand creates the generate command
func NewGenerateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate [directory]",
		Short: "Export a directory into a single document",
		Long: `Collect the text files under a directory into one document.

Without --incremental every run reads and analyzes every file. With it,
a fingerprint cache under the cache directory tracks content hashes and
modification times, and only files that actually changed since the last
run are re-analyzed.

Examples:
  # Export the current directory to stdout
  codepack generate

  # Export a project to a file
  codepack generate ./myproject -o codepack.md

  # Incremental run with change report
  codepack generate --incremental --show-changes

  # Reset the cache, then regenerate from scratch
  codepack generate --incremental --clear-cache`,
		Args: cobra.MaximumNArgs(1),
		RunE: runGenerate,
	}

	cmd.Flags().String("config", "", "Path to config file (default: <dir>/.codepack/config.yaml)")
	cmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	cmd.Flags().String("format", "", "Output format: markdown or text")
	cmd.Flags().Bool("incremental", false, "Enable the fingerprint cache")
	cmd.Flags().String("cache-dir", "", "Cache directory (default: .codepack-cache)")
	cmd.Flags().Bool("clear-cache", false, "Clear the cache before running")
	cmd.Flags().Bool("show-changes", false, "Print a summary of new, modified and deleted files")
	cmd.Flags().Bool("progress", false, "Show per-file progress while processing")
	cmd.Flags().String("log-level", "", "Log verbosity: trace, debug, info, warn, error")

	return cmd
}

func runGenerate(cmd *cobra.Command, args []string) error {
	root, err := resolveRoot(args)
	if err != nil {
		return err
	}

	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := loadConfig(root, configPath)
	if err != nil {
		return err
	}
	applyGenerateFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := newLogger(cfg.LogLevel)
	p := newPipeline(root, cfg, log)

	if progress, _ := cmd.Flags().GetBool("progress"); progress {
		p.onProcess = func(files []string) {
			ind := display.NewProgressIndicator(os.Stderr, len(files))
			ind.Start()
			for _, f := range files {
				ind.Step(f)
			}
			ind.Complete()
		}
	}

	clearCache, _ := cmd.Flags().GetBool("clear-cache")
	if clearCache {
		if err := p.store.Clear(); err != nil {
			return fmt.Errorf("clear cache: %w", err)
		}
		log.LogInfo("cache cleared")
	}

	if err := p.initCache(); err != nil {
		return err
	}

	files, err := p.listFiles()
	if err != nil {
		return err
	}
	if len(files) == 0 {
		log.LogWarn(fmt.Sprintf("no matching files under %s", root))
	}

	result, err := p.run(cmd.Context(), files, false)
	if err != nil {
		return err
	}

	if showChanges, _ := cmd.Flags().GetBool("show-changes"); showChanges {
		display.RenderChangeSummary(os.Stderr, result.Changes)
	}
	if len(result.Unreadable) > 0 {
		display.WarnUnreadableFiles(result.Unreadable).Display(os.Stderr)
	}

	if result.OutputPath != "" {
		log.LogInfo(fmt.Sprintf("wrote %s (%d files, %s)",
			result.OutputPath, result.FileCount, logger.FormatDuration(result.Duration)))
	}
	return nil
}

// applyGenerateFlags overlays explicitly-set flags onto the config.
func applyGenerateFlags(cmd *cobra.Command, cfg *config.Config) {
	var incremental *bool
	var cacheDir, output, format *string

	if cmd.Flags().Changed("incremental") {
		v, _ := cmd.Flags().GetBool("incremental")
		incremental = &v
	}
	if cmd.Flags().Changed("cache-dir") {
		v, _ := cmd.Flags().GetString("cache-dir")
		cacheDir = &v
	}
	if cmd.Flags().Changed("output") {
		v, _ := cmd.Flags().GetString("output")
		output = &v
	}
	if cmd.Flags().Changed("format") {
		v, _ := cmd.Flags().GetString("format")
		format = &v
	}
	cfg.MergeWithFlags(incremental, cacheDir, output, format, nil)

	if cmd.Flags().Changed("log-level") {
		v, _ := cmd.Flags().GetString("log-level")
		cfg.LogLevel = v
	}
}
