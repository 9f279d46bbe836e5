package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/harrison/codepack/internal/filelock"
	"github.com/harrison/codepack/internal/logger"
	"github.com/harrison/codepack/internal/probe"
)

// Store memoizes per-file processing state for one working directory.
// Instantiate one Store per project root; the in-memory maps are not safe
// for concurrent mutation and the watch controller only touches them from
// one cycle at a time.
type Store struct {
	workingDir string
	dir        string
	enabled    bool
	log        logger.Logger

	files         map[string]*probe.FileFingerprint
	snapshot      map[string]*SnapshotEntry
	relationships json.RawMessage
	createdAt     string
}

// NewStore creates a Store rooted at workingDir. cacheDir may be absolute,
// relative to workingDir, or empty for the default ".codepack-cache".
// Call Initialize before use.
func NewStore(workingDir, cacheDir string, log logger.Logger) *Store {
	if cacheDir == "" {
		cacheDir = ".codepack-cache"
	}
	if !filepath.IsAbs(cacheDir) {
		cacheDir = filepath.Join(workingDir, cacheDir)
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	return &Store{
		workingDir: workingDir,
		dir:        cacheDir,
		log:        log,
		files:      make(map[string]*probe.FileFingerprint),
		snapshot:   make(map[string]*SnapshotEntry),
	}
}

// Initialize ensures the cache directory exists and loads the three
// persisted sections. A section that fails to parse resets only itself; a
// corrupt relationships file must not invalidate fingerprints. If the cache
// directory cannot be created at all, the store disables itself and every
// operation degrades to its "nothing cached" behavior.
func (s *Store) Initialize() error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		s.enabled = false
		s.log.LogWarn(fmt.Sprintf("cache disabled: cannot create %s: %v", s.dir, err))
		return nil
	}
	s.enabled = true
	s.createdAt = probe.Timestamp(time.Now())

	s.loadMetadata()
	s.loadSnapshot()
	s.loadRelationships()

	return nil
}

// Enabled reports whether caching is active.
func (s *Store) Enabled() bool {
	return s.enabled
}

// Dir returns the resolved cache directory.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) loadMetadata() {
	data, err := os.ReadFile(filepath.Join(s.dir, metadataFile))
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.LogWarn(fmt.Sprintf("cache: cannot read %s: %v", metadataFile, err))
		}
		return
	}

	var m metadataManifest
	if err := json.Unmarshal(data, &m); err != nil {
		s.log.LogWarn(fmt.Sprintf("cache: corrupt %s, starting cold: %v", metadataFile, err))
		s.files = make(map[string]*probe.FileFingerprint)
		return
	}

	if m.Files != nil {
		s.files = m.Files
	}
	if m.CreatedAt != "" {
		s.createdAt = m.CreatedAt
	}
}

func (s *Store) loadSnapshot() {
	data, err := os.ReadFile(filepath.Join(s.dir, snapshotFile))
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.LogWarn(fmt.Sprintf("cache: cannot read %s: %v", snapshotFile, err))
		}
		return
	}

	var m snapshotManifest
	if err := json.Unmarshal(data, &m); err != nil {
		s.log.LogWarn(fmt.Sprintf("cache: corrupt %s, starting cold: %v", snapshotFile, err))
		s.snapshot = make(map[string]*SnapshotEntry)
		return
	}

	if m.Files != nil {
		s.snapshot = m.Files
	}
}

func (s *Store) loadRelationships() {
	data, err := os.ReadFile(filepath.Join(s.dir, relationshipsFile))
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.LogWarn(fmt.Sprintf("cache: cannot read %s: %v", relationshipsFile, err))
		}
		return
	}

	var m relationshipsManifest
	if err := json.Unmarshal(data, &m); err != nil {
		s.log.LogWarn(fmt.Sprintf("cache: corrupt %s, discarding: %v", relationshipsFile, err))
		s.relationships = nil
		return
	}

	s.relationships = m.Relationships
}

// abs resolves a cache key (project-relative path) to an absolute path.
func (s *Store) abs(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(s.workingDir, path)
}

// GetChangedFiles diffs the current authoritative file list against the
// cache. When the store is disabled it reports every file as both changed
// and new: incremental processing degrades to full processing, never to a
// no-op.
func (s *Store) GetChangedFiles(allFiles []string) *ChangeSet {
	cs := &ChangeSet{
		Changed: []string{},
		New:     []string{},
		Deleted: []string{},
	}

	if !s.enabled {
		cs.Changed = append(cs.Changed, allFiles...)
		cs.New = append(cs.New, allFiles...)
		return cs
	}

	current := make(map[string]bool, len(allFiles))
	for _, path := range allFiles {
		current[path] = true

		prev := s.files[path]
		if prev == nil {
			cs.New = append(cs.New, path)
			cs.Changed = append(cs.Changed, path)
			continue
		}
		if probe.HasChanged(s.abs(path), prev) {
			cs.Changed = append(cs.Changed, path)
		}
	}

	for path := range s.files {
		if !current[path] {
			cs.Deleted = append(cs.Deleted, path)
		}
	}
	sort.Strings(cs.Deleted)

	return cs
}

// UpdateFileCache re-fingerprints path (full probe, not the mtime fast
// path) and stores it with the snapshot entry. Call this only after the
// file was successfully processed; a fingerprint written early would make
// future runs wrongly skip the file.
func (s *Store) UpdateFileCache(path string, entry *SnapshotEntry) {
	if !s.enabled {
		return
	}

	fp, err := probe.Fingerprint(s.abs(path))
	if err != nil {
		// Leave any stale fingerprint out so the next run retries
		s.log.LogWarn(fmt.Sprintf("cache: fingerprint %s: %v", path, err))
		delete(s.files, path)
		delete(s.snapshot, path)
		return
	}

	now := probe.Timestamp(time.Now())
	fp.Path = path
	fp.LastProcessed = now
	s.files[path] = fp

	if entry != nil {
		if entry.ProcessedAt == "" {
			entry.ProcessedAt = now
		}
		s.snapshot[path] = entry
	}
}

// Fingerprint returns the cached fingerprint for path, if any.
func (s *Store) Fingerprint(path string) *probe.FileFingerprint {
	return s.files[path]
}

// Snapshot returns the cached snapshot entry for path, if any.
func (s *Store) Snapshot(path string) *SnapshotEntry {
	return s.snapshot[path]
}

// Relationships returns the cached relationships blob (nil when absent).
func (s *Store) Relationships() json.RawMessage {
	return s.relationships
}

// SetRelationships replaces the relationships blob wholesale.
func (s *Store) SetRelationships(blob json.RawMessage) {
	s.relationships = blob
}

// Cleanup removes cache entries for paths no longer present and persists
// the fingerprint and snapshot sections immediately. The relationships
// blob is left for the next Save.
func (s *Store) Cleanup(deletedPaths []string) {
	if !s.enabled || len(deletedPaths) == 0 {
		return
	}

	for _, path := range deletedPaths {
		delete(s.files, path)
		delete(s.snapshot, path)
	}

	lock := s.acquireLock()
	defer s.releaseLock(lock)

	s.saveMetadata()
	s.saveSnapshot()
}

// Save persists all three sections. Each section is written independently:
// one failing write is logged and does not prevent attempting the others.
func (s *Store) Save() {
	if !s.enabled {
		return
	}

	lock := s.acquireLock()
	defer s.releaseLock(lock)

	s.saveMetadata()
	s.saveSnapshot()
	s.saveRelationships()
}

// acquireLock takes the cache directory's flock so concurrent invocations
// do not interleave section writes. Lock failure degrades to an unlocked
// best-effort write.
func (s *Store) acquireLock() *filelock.FileLock {
	lock := filelock.NewFileLock(filepath.Join(s.dir, lockFile))
	if err := lock.Lock(); err != nil {
		s.log.LogWarn(fmt.Sprintf("cache: %v", err))
		return nil
	}
	return lock
}

func (s *Store) releaseLock(lock *filelock.FileLock) {
	if lock == nil {
		return
	}
	if err := lock.Unlock(); err != nil {
		s.log.LogWarn(fmt.Sprintf("cache: %v", err))
	}
}

func (s *Store) saveMetadata() {
	m := metadataManifest{
		Version:    manifestVersion,
		CreatedAt:  s.createdAt,
		WorkingDir: s.workingDir,
		Files:      s.files,
	}
	s.writeSection(metadataFile, m)
}

func (s *Store) saveSnapshot() {
	m := snapshotManifest{
		Version:   manifestVersion,
		CreatedAt: s.createdAt,
		Files:     s.snapshot,
	}
	s.writeSection(snapshotFile, m)
}

func (s *Store) saveRelationships() {
	m := relationshipsManifest{
		Version:       manifestVersion,
		CreatedAt:     s.createdAt,
		Relationships: s.relationships,
	}
	s.writeSection(relationshipsFile, m)
}

func (s *Store) writeSection(name string, v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		s.log.LogWarn(fmt.Sprintf("cache: marshal %s: %v", name, err))
		return
	}
	if err := filelock.AtomicWrite(filepath.Join(s.dir, name), data); err != nil {
		s.log.LogWarn(fmt.Sprintf("cache: write %s: %v", name, err))
	}
}

// Clear deletes the entire cache directory and resets in-memory state.
// Used for explicit invalidation (--clear-cache).
func (s *Store) Clear() error {
	s.files = make(map[string]*probe.FileFingerprint)
	s.snapshot = make(map[string]*SnapshotEntry)
	s.relationships = nil

	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("failed to clear cache %s: %w", s.dir, err)
	}
	return nil
}

// GetStats returns a read-only view of the cache state.
func (s *Store) GetStats() Stats {
	return Stats{
		Enabled:           s.enabled,
		CacheDir:          s.dir,
		FileCount:         len(s.files),
		SnapshotCount:     len(s.snapshot),
		RelationshipCount: relationshipCount(s.relationships),
	}
}

// relationshipCount peeks into the opaque blob for a per-file map so stats
// can report a meaningful number. Unknown shapes count as one blob.
func relationshipCount(blob json.RawMessage) int {
	if len(blob) == 0 {
		return 0
	}
	var peek struct {
		Files map[string]json.RawMessage `json:"files"`
	}
	if err := json.Unmarshal(blob, &peek); err == nil && peek.Files != nil {
		return len(peek.Files)
	}
	return 1
}
