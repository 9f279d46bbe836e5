package display

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/harrison/codepack/internal/cache"
	"github.com/harrison/codepack/internal/history"
)

// maxListedPaths caps how many individual paths a change summary prints
// per category before collapsing the rest into a count.
const maxListedPaths = 10

// RenderChangeSummary writes a human-readable view of a diff, the output
// of --show-changes.
func RenderChangeSummary(w io.Writer, changes *cache.ChangeSet) {
	if changes == nil || (changes.Empty() && len(changes.New) == 0) {
		fmt.Fprintln(w, "No changes detected.")
		return
	}

	newSet := make(map[string]bool, len(changes.New))
	for _, f := range changes.New {
		newSet[f] = true
	}

	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	var modified []string
	for _, f := range changes.Changed {
		if !newSet[f] {
			modified = append(modified, f)
		}
	}

	fmt.Fprintf(w, "Changes: %d new, %d modified, %d deleted\n",
		len(changes.New), len(modified), len(changes.Deleted))
	listPaths(w, green("  + "), changes.New)
	listPaths(w, yellow("  ~ "), modified)
	listPaths(w, red("  - "), changes.Deleted)
}

func listPaths(w io.Writer, prefix string, paths []string) {
	for i, p := range paths {
		if i == maxListedPaths {
			fmt.Fprintf(w, "%s... and %d more\n", prefix, len(paths)-maxListedPaths)
			return
		}
		fmt.Fprintf(w, "%s%s\n", prefix, p)
	}
}

// RenderCacheStats writes the cache stats table for `codepack cache stats`.
func RenderCacheStats(w io.Writer, stats cache.Stats) {
	fmt.Fprintf(w, "Cache directory:  %s\n", stats.CacheDir)
	if !stats.Enabled {
		fmt.Fprintln(w, "Status:           disabled")
		return
	}
	fmt.Fprintln(w, "Status:           enabled")
	fmt.Fprintf(w, "Fingerprints:     %d\n", stats.FileCount)
	fmt.Fprintf(w, "Snapshot entries: %d\n", stats.SnapshotCount)
	fmt.Fprintf(w, "Relationships:    %d\n", stats.RelationshipCount)
}

// RenderRuns writes the run table for `codepack history`.
func RenderRuns(w io.Writer, runs []*history.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No recorded runs.")
		return
	}

	fmt.Fprintf(w, "%-20s %-12s %6s %10s %10s  %s\n",
		"WHEN", "MODE", "FILES", "PROCESSED", "DURATION", "ROOT")
	for _, run := range runs {
		fmt.Fprintf(w, "%-20s %-12s %6d %10d %10s  %s\n",
			run.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			run.Mode,
			run.TotalFiles,
			run.Processed,
			formatRunDuration(run.Duration),
			run.Root,
		)
	}
}

func formatRunDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}
