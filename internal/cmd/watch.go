package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/harrison/codepack/internal/config"
	"github.com/harrison/codepack/internal/scan"
	"github.com/harrison/codepack/internal/watch"
)

// defaultWatchOutput is used when watch mode has no configured output.
// Watch cycles must write to a file; stdout would interleave documents.
const defaultWatchOutput = "codepack.md"

// NewWatchCommand creates the watch command
func NewWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [directory]",
		Short: "Regenerate the export whenever files change",
		Long: `Watch a directory and regenerate the export after changes settle.

Events are debounced: a burst of saves resets a quiet-period timer and
only the final state triggers one regeneration. The debounce interval
accepts "500ms", "2s" or a bare millisecond count.

The fingerprint cache is always enabled in watch mode so each cycle
re-analyzes only the files that changed.

Examples:
  codepack watch
  codepack watch ./myproject -o export.md --debounce 2s
  codepack watch --debounce 250 --smart-diff`,
		Args: cobra.MaximumNArgs(1),
		RunE: runWatch,
	}

	cmd.Flags().String("config", "", "Path to config file (default: <dir>/.codepack/config.yaml)")
	cmd.Flags().StringP("output", "o", "", "Output file path (default: codepack.md)")
	cmd.Flags().String("format", "", "Output format: markdown or text")
	cmd.Flags().String("cache-dir", "", "Cache directory (default: .codepack-cache)")
	cmd.Flags().String("debounce", "", `Quiet period before regeneration ("500ms", "2s", or ms)`)
	cmd.Flags().Bool("smart-diff", false, "Log structural add/remove detail on each cycle")
	cmd.Flags().String("log-level", "", "Log verbosity: trace, debug, info, warn, error")

	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	root, err := resolveRoot(args)
	if err != nil {
		return err
	}

	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := loadConfig(root, configPath)
	if err != nil {
		return err
	}
	applyWatchFlags(cmd, cfg)

	// An invalid debounce is fatal before any session starts
	if cmd.Flags().Changed("debounce") {
		raw, _ := cmd.Flags().GetString("debounce")
		d, err := config.ParseDebounce(raw)
		if err != nil {
			return err
		}
		cfg.Debounce = d
	}

	// Watch mode is inherently incremental and always writes to a file
	cfg.Incremental = true
	if cfg.Output == "" {
		cfg.Output = defaultWatchOutput
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := newLogger(cfg.LogLevel)
	p := newPipeline(root, cfg, log)
	if err := p.initCache(); err != nil {
		return err
	}

	controller := watch.NewController(watch.Options{
		Debounce:   cfg.Debounce,
		SmartDiff:  cfg.SmartDiff,
		IgnoreDirs: scan.DefaultIgnoreDirs,
		Match:      p.scanner.Matches,
	}, watch.Hooks{
		ListFiles: func(string) ([]string, error) {
			return p.listFiles()
		},
		Regenerate: func(_ string, files []string, reason watch.Trigger) error {
			_, err := p.run(cmd.Context(), files, true)
			return err
		},
	}, log)

	if err := controller.Start(root); err != nil {
		return err
	}
	defer controller.Stop("")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	fmt.Fprintln(cmd.ErrOrStderr(), "Watching for changes. Press Ctrl+C to stop.")
	<-ctx.Done()

	log.LogInfo("shutting down")
	return nil
}

// applyWatchFlags overlays explicitly-set flags onto the config.
func applyWatchFlags(cmd *cobra.Command, cfg *config.Config) {
	var cacheDir, output, format *string

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
	cfg.MergeWithFlags(nil, cacheDir, output, format, nil)

	if cmd.Flags().Changed("smart-diff") {
		v, _ := cmd.Flags().GetBool("smart-diff")
		cfg.SmartDiff = v
	}
	if cmd.Flags().Changed("log-level") {
		v, _ := cmd.Flags().GetString("log-level")
		cfg.LogLevel = v
	}
}
