package cache

import (
	"encoding/json"
	"time"

	"github.com/harrison/codepack/internal/probe"
)

// ProcessFunc performs the real work for a set of files (relationship
// analysis in the main pipeline) and returns an opaque result that becomes
// the new relationships blob.
type ProcessFunc func(files []string) (json.RawMessage, error)

// ProcessIncremental bridges a ChangeSet and a generic "process these
// files" callback so callers do not need to know caching exists.
//
// Disabled cache: process(files) runs directly as a full run.
// Empty diff: the cached relationships blob is returned without invoking
// the processor on real work (process(nil) only when no blob exists yet).
// Otherwise: deleted entries are cleaned up, process(changed) runs on the
// changed subset only, every changed file gets a fresh fingerprint, and
// the cache is persisted.
//
// New files are implicitly deduplicated: New ⊆ Changed and the processing
// set is always Changed.
//
// A processor error propagates without updating any fingerprints, so the
// next run retries the same files.
func ProcessIncremental(files []string, store *Store, watchMode bool, process ProcessFunc) (json.RawMessage, *ChangeSet, error) {
	if store == nil || !store.Enabled() {
		result, err := process(files)
		if err != nil {
			return nil, nil, err
		}
		full := &ChangeSet{Changed: files, New: files, Deleted: []string{}}
		return result, full, nil
	}

	changes := store.GetChangedFiles(files)

	if changes.Empty() {
		if blob := store.Relationships(); blob != nil {
			return blob, changes, nil
		}
		result, err := process(nil)
		if err != nil {
			return nil, nil, err
		}
		return result, changes, nil
	}

	store.Cleanup(changes.Deleted)

	result, err := process(changes.Changed)
	if err != nil {
		return nil, changes, err
	}

	now := probe.Timestamp(time.Now())
	for _, path := range changes.Changed {
		store.UpdateFileCache(path, &SnapshotEntry{
			Processed:   true,
			ProcessedAt: now,
			WatchMode:   watchMode,
		})
	}

	store.SetRelationships(result)
	store.Save()

	return result, changes, nil
}
