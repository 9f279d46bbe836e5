package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harrison/codepack/internal/cache"
	"github.com/harrison/codepack/internal/display"
)

// NewCacheCommand creates the cache command group
func NewCacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or reset the fingerprint cache",
	}

	cmd.PersistentFlags().String("cache-dir", "", "Cache directory (default: .codepack-cache)")

	cmd.AddCommand(newCacheStatsCommand())
	cmd.AddCommand(newCacheClearCommand())
	return cmd
}

func newCacheStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats [directory]",
		Short: "Show cache contents and location",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openCacheStore(cmd, args)
			if err != nil {
				return err
			}
			display.RenderCacheStats(cmd.OutOrStdout(), store.GetStats())
			return nil
		},
	}
}

func newCacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear [directory]",
		Short: "Delete all cached fingerprints and snapshots",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openCacheStore(cmd, args)
			if err != nil {
				return err
			}
			if err := store.Clear(); err != nil {
				return fmt.Errorf("clear cache: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared.")
			return nil
		},
	}
}

// openCacheStore builds an initialized store for the cache subcommands.
func openCacheStore(cmd *cobra.Command, args []string) (*cache.Store, error) {
	root, err := resolveRoot(args)
	if err != nil {
		return nil, err
	}
	cfg, err := loadConfig(root, "")
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("cache-dir") {
		cfg.CacheDir, _ = cmd.Flags().GetString("cache-dir")
	}

	store := cache.NewStore(root, cfg.CacheDir, newLogger(cfg.LogLevel))
	if err := store.Initialize(); err != nil {
		return nil, err
	}
	return store, nil
}
