// Package cache implements the incremental processing cache: per-file
// fingerprints, a parallel snapshot of processed-file metadata, and the
// project relationships blob, persisted across runs as three independent
// JSON sections.
//
// The cache is strictly an optimization. Every failure mode degrades to
// "assume everything changed" rather than blocking generation.
package cache

import (
	"encoding/json"

	"github.com/harrison/codepack/internal/probe"
)

// manifestVersion tags the on-disk schema so future layouts can migrate.
const manifestVersion = "1"

// Section file names inside the cache directory. Each is independently
// parseable and independently recoverable from corruption.
const (
	metadataFile      = "metadata.json"
	snapshotFile      = "snapshot.json"
	relationshipsFile = "relationships.json"
	lockFile          = ".lock"
)

// ChangeSet partitions the current authoritative file list against the
// cache. New is always a subset of Changed: a file without a prior
// fingerprint is reported in both. Deleted holds cached paths absent from
// the current list. A ChangeSet is ephemeral and recomputed every run.
type ChangeSet struct {
	Changed []string `json:"changed"`
	New     []string `json:"new"`
	Deleted []string `json:"deleted"`
}

// Empty reports whether nothing changed, appeared, or disappeared.
func (cs *ChangeSet) Empty() bool {
	return len(cs.Changed) == 0 && len(cs.Deleted) == 0
}

// SnapshotEntry is the payload cached alongside a fingerprint after a file
// is processed. The cache treats it as opaque; staleness is detected only
// through the fingerprint, never by validating the entry itself.
type SnapshotEntry struct {
	Processed   bool   `json:"processed"`
	ProcessedAt string `json:"processedAt"`
	WatchMode   bool   `json:"watchMode,omitempty"`
}

// Stats is a read-only view of the cache state.
type Stats struct {
	Enabled           bool   `json:"enabled"`
	CacheDir          string `json:"cacheDir"`
	FileCount         int    `json:"fileCount"`
	SnapshotCount     int    `json:"snapshotCount"`
	RelationshipCount int    `json:"relationshipCount"`
}

// metadataManifest is the durable form of the fingerprint section.
type metadataManifest struct {
	Version    string                            `json:"version"`
	CreatedAt  string                            `json:"createdAt"`
	WorkingDir string                            `json:"workingDir"`
	Files      map[string]*probe.FileFingerprint `json:"files"`
}

// snapshotManifest is the durable form of the snapshot section.
type snapshotManifest struct {
	Version   string                    `json:"version"`
	CreatedAt string                    `json:"createdAt"`
	Files     map[string]*SnapshotEntry `json:"files"`
}

// relationshipsManifest is the durable form of the relationships section.
// The blob is replaced wholesale on every update.
type relationshipsManifest struct {
	Version       string          `json:"version"`
	CreatedAt     string          `json:"createdAt"`
	Relationships json.RawMessage `json:"relationships"`
}
