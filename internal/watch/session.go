package watch

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// statsWindow is the number of recent regeneration cycles the rolling
// average covers.
const statsWindow = 10

// SessionStats is a point-in-time view of a watch session's counters.
type SessionStats struct {
	SessionID     string        `json:"sessionId"`
	Root          string        `json:"root"`
	FilesWatched  int           `json:"filesWatched"`
	TotalChanges  int64         `json:"totalChanges"`
	Regenerations int64         `json:"regenerations"`
	AvgProcessing time.Duration `json:"avgProcessing"`
	LastUpdate    time.Time     `json:"lastUpdate"`
	StartedAt     time.Time     `json:"startedAt"`
}

// rollingWindow keeps the last n duration samples and their mean.
type rollingWindow struct {
	samples []time.Duration
	max     int
}

func newRollingWindow(max int) *rollingWindow {
	return &rollingWindow{max: max}
}

func (w *rollingWindow) Add(d time.Duration) {
	w.samples = append(w.samples, d)
	if len(w.samples) > w.max {
		w.samples = w.samples[len(w.samples)-w.max:]
	}
}

func (w *rollingWindow) Mean() time.Duration {
	if len(w.samples) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range w.samples {
		total += d
	}
	return total / time.Duration(len(w.samples))
}

// session tracks one watched root: its watcher, the pending debounce
// timer, the last known file set and its counters.
type session struct {
	id        string
	root      string
	watcher   *FileWatcher
	startedAt time.Time
	done      chan struct{}

	mu            sync.Mutex
	timer         *time.Timer
	lastFiles     map[string]struct{}
	lastTrigger   trigger
	totalChanges  int64
	regenerations int64
	filesWatched  int
	lastUpdate    time.Time
	window        *rollingWindow
	closed        bool

	// genMu serializes regeneration cycles for this root
	genMu sync.Mutex
}

// trigger records what caused a regeneration cycle.
type trigger struct {
	Type string // "initial", "add", "change", "unlink"
	Path string // relative path, empty for initial
}

func newSession(root string, watcher *FileWatcher) *session {
	return &session{
		id:        uuid.New().String(),
		root:      root,
		watcher:   watcher,
		startedAt: time.Now(),
		done:      make(chan struct{}),
		lastFiles: make(map[string]struct{}),
		window:    newRollingWindow(statsWindow),
	}
}

// recordFiles replaces the known file set after a completed cycle.
func (s *session) recordFiles(files []string) {
	set := make(map[string]struct{}, len(files))
	for _, f := range files {
		set[f] = struct{}{}
	}
	s.mu.Lock()
	s.lastFiles = set
	s.filesWatched = len(files)
	s.mu.Unlock()
}

// snapshotFiles returns a copy of the known file set.
func (s *session) snapshotFiles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	files := make([]string, 0, len(s.lastFiles))
	for f := range s.lastFiles {
		files = append(files, f)
	}
	return files
}

// recordCycle folds a finished regeneration into the counters.
func (s *session) recordCycle(elapsed time.Duration) {
	s.mu.Lock()
	s.regenerations++
	s.window.Add(elapsed)
	s.lastUpdate = time.Now()
	s.mu.Unlock()
}

// Stats returns a copy of the session counters.
func (s *session) Stats() SessionStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionStats{
		SessionID:     s.id,
		Root:          s.root,
		FilesWatched:  s.filesWatched,
		TotalChanges:  s.totalChanges,
		Regenerations: s.regenerations,
		AvgProcessing: s.window.Mean(),
		LastUpdate:    s.lastUpdate,
		StartedAt:     s.startedAt,
	}
}

// close stops the pending timer, the event pump and the watcher. Safe to
// call twice.
func (s *session) close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	close(s.done)

	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}
