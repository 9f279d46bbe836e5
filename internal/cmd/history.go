package cmd

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/harrison/codepack/internal/cache"
	"github.com/harrison/codepack/internal/display"
	"github.com/harrison/codepack/internal/history"
)

// NewHistoryCommand creates the history command
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [directory]",
		Short: "List past generation runs",
		Long: `List recorded generation runs for a directory, newest first.

Runs are recorded automatically by generate and watch in the cache
directory's history database.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistory,
	}

	cmd.Flags().Int("limit", 20, "Maximum number of runs to show")
	cmd.Flags().String("cache-dir", "", "Cache directory (default: .codepack-cache)")

	return cmd
}

func runHistory(cmd *cobra.Command, args []string) error {
	root, err := resolveRoot(args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(root, "")
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("cache-dir") {
		cfg.CacheDir, _ = cmd.Flags().GetString("cache-dir")
	}

	dbPath := filepath.Join(cache.NewStore(root, cfg.CacheDir, nil).Dir(), "history.db")
	store, err := history.NewStore(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := store.ListRuns(cmd.Context(), root, limit)
	if err != nil {
		return err
	}
	display.RenderRuns(cmd.OutOrStdout(), runs)
	return nil
}
