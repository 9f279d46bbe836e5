// Package watch implements live re-generation: a recursive fsnotify
// watcher feeds a per-root debounced controller that coalesces event
// bursts into single regeneration cycles.
package watch

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileOp represents the type of file operation
type FileOp int

const (
	// FileCreated indicates a new file was created
	FileCreated FileOp = iota
	// FileWritten indicates a file was written to
	FileWritten
	// FileRemoved indicates a file was removed
	FileRemoved
)

// String returns a human-readable representation of the file operation
func (op FileOp) String() string {
	switch op {
	case FileCreated:
		return "add"
	case FileWritten:
		return "change"
	case FileRemoved:
		return "unlink"
	default:
		return "unknown"
	}
}

// FileEvent represents a file system event for a watched file
type FileEvent struct {
	Path      string    // Absolute path to the file
	Op        FileOp    // Type of operation
	Timestamp time.Time // When the event occurred
}

// DefaultWriteSettle is the per-path delay for coalescing rapid writes to
// the same file, so a half-written save does not trigger a cycle.
const DefaultWriteSettle = 100 * time.Millisecond

// FileWatcher watches a directory tree and emits FileEvents for paths not
// excluded by the ignore set.
type FileWatcher struct {
	watcher    *fsnotify.Watcher
	events     chan FileEvent
	errors     chan error
	done       chan struct{}
	rootDir    string
	ignoreDirs map[string]bool

	mu          sync.Mutex
	writeSettle time.Duration
	settleMap   map[string]*time.Timer
	closed      bool
}

// NewFileWatcher creates a FileWatcher for the given root directory.
// ignoreDirs are directory names (not paths) that are never watched.
func NewFileWatcher(rootDir string, ignoreDirs []string) (*FileWatcher, error) {
	rootDir = filepath.Clean(rootDir)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ignore := make(map[string]bool, len(ignoreDirs))
	for _, d := range ignoreDirs {
		ignore[d] = true
	}

	fw := &FileWatcher{
		watcher:     watcher,
		events:      make(chan FileEvent, 100),
		errors:      make(chan error, 10),
		done:        make(chan struct{}),
		rootDir:     rootDir,
		ignoreDirs:  ignore,
		writeSettle: DefaultWriteSettle,
		settleMap:   make(map[string]*time.Timer),
	}

	if err := fw.addRecursive(rootDir); err != nil {
		watcher.Close()
		return nil, err
	}

	go fw.processEvents()

	return fw, nil
}

// ignoredDir reports whether a directory name is excluded from watching.
func (fw *FileWatcher) ignoredDir(name string) bool {
	return fw.ignoreDirs[name] || strings.HasPrefix(name, ".")
}

// addRecursive adds the directory and all non-ignored subdirectories.
func (fw *FileWatcher) addRecursive(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}

		if !info.IsDir() {
			return nil
		}

		if path != dir && fw.ignoredDir(info.Name()) {
			return filepath.SkipDir
		}

		if err := fw.watcher.Add(path); err != nil {
			if os.IsPermission(err) {
				return nil
			}
			return err
		}

		return nil
	})
}

// processEvents pumps fsnotify events into FileEvents until closed.
func (fw *FileWatcher) processEvents() {
	for {
		select {
		case <-fw.done:
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleEvent(event)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			select {
			case fw.errors <- err:
			default:
				// Error channel full, drop the error
			}
		}
	}
}

// handleEvent processes a single fsnotify event.
func (fw *FileWatcher) handleEvent(event fsnotify.Event) {
	path := event.Name

	if fw.underIgnoredDir(path) {
		return
	}

	// Newly created directories join the watch set
	if event.Has(fsnotify.Create) {
		info, err := os.Stat(path)
		if err == nil && info.IsDir() {
			if !fw.ignoredDir(info.Name()) {
				if err := fw.addRecursive(path); err != nil {
					select {
					case fw.errors <- err:
					default:
					}
				}
			}
			return
		}
	}

	var op FileOp
	switch {
	case event.Has(fsnotify.Create):
		op = FileCreated
	case event.Has(fsnotify.Write):
		op = FileWritten
	case event.Has(fsnotify.Remove):
		op = FileRemoved
	case event.Has(fsnotify.Rename):
		// A rename means the path moved away
		op = FileRemoved
	default:
		// Ignore chmod events
		return
	}

	// Writes wait for the file to settle; create/remove go out immediately
	if op == FileWritten {
		fw.settle(path, op)
	} else {
		fw.sendEvent(path, op)
	}
}

// underIgnoredDir checks every path element below the root against the
// ignore set.
func (fw *FileWatcher) underIgnoredDir(path string) bool {
	rel, err := filepath.Rel(fw.rootDir, path)
	if err != nil {
		return false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	for _, part := range parts[:len(parts)-1] {
		if part != ".." && part != "." && fw.ignoredDir(part) {
			return true
		}
	}
	return false
}

// settle coalesces rapid writes for the same file.
func (fw *FileWatcher) settle(path string, op FileOp) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.closed {
		return
	}

	if timer, exists := fw.settleMap[path]; exists {
		timer.Stop()
	}

	fw.settleMap[path] = time.AfterFunc(fw.writeSettle, func() {
		fw.mu.Lock()
		delete(fw.settleMap, path)
		fw.mu.Unlock()

		fw.sendEvent(path, op)
	})
}

// sendEvent sends a FileEvent to the events channel.
func (fw *FileWatcher) sendEvent(path string, op FileOp) {
	event := FileEvent{
		Path:      path,
		Op:        op,
		Timestamp: time.Now(),
	}

	select {
	case fw.events <- event:
	case <-fw.done:
	default:
		// Events channel full, drop the event
	}
}

// Events returns the channel for receiving file events
func (fw *FileWatcher) Events() <-chan FileEvent {
	return fw.events
}

// Errors returns the channel for receiving errors
func (fw *FileWatcher) Errors() <-chan error {
	return fw.errors
}

// Close stops the file watcher and releases resources
func (fw *FileWatcher) Close() error {
	fw.mu.Lock()
	if fw.closed {
		fw.mu.Unlock()
		return nil
	}
	fw.closed = true

	for _, timer := range fw.settleMap {
		timer.Stop()
	}
	fw.settleMap = nil
	fw.mu.Unlock()

	close(fw.done)

	return fw.watcher.Close()
}

// RootDir returns the root directory being watched
func (fw *FileWatcher) RootDir() string {
	return fw.rootDir
}

// SetWriteSettle sets the write-stability delay.
// This should only be called before the watcher starts receiving events.
func (fw *FileWatcher) SetWriteSettle(delay time.Duration) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	fw.writeSettle = delay
}
