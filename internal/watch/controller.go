package watch

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/harrison/codepack/internal/logger"
)

// Hooks supplies the enumeration and generation steps a watch cycle runs.
// The controller owns scheduling; the hooks own what a cycle actually does.
type Hooks struct {
	// ListFiles enumerates the current include set for a root.
	ListFiles func(root string) ([]string, error)
	// Regenerate rebuilds the export for a root from the given files.
	Regenerate func(root string, files []string, reason Trigger) error
}

// Trigger records what caused a regeneration cycle.
type Trigger = trigger

// Options configures a Controller.
type Options struct {
	// Debounce is the quiet period after the last event before a cycle
	// runs. Zero means DefaultDebounce.
	Debounce time.Duration
	// SmartDiff enables the structural add/remove diff used for logging.
	SmartDiff bool
	// IgnoreDirs are directory names excluded from watching.
	IgnoreDirs []string
	// Match filters events by root-relative path. Nil accepts everything.
	Match func(rel string) bool
}

// DefaultDebounce is the quiet period used when none is configured.
const DefaultDebounce = 1000 * time.Millisecond

// Controller manages watch sessions, one per root directory. Events for a
// root reset its trailing debounce timer; a cycle runs only after the
// quiet period elapses, so bursts collapse into one regeneration.
type Controller struct {
	debounce   time.Duration
	smartDiff  bool
	ignoreDirs []string
	match      func(rel string) bool
	hooks      Hooks
	log        logger.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

// NewController creates a Controller with the given options and hooks.
func NewController(opts Options, hooks Hooks, log logger.Logger) *Controller {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Controller{
		debounce:   opts.Debounce,
		smartDiff:  opts.SmartDiff,
		ignoreDirs: opts.IgnoreDirs,
		match:      opts.Match,
		hooks:      hooks,
		log:        log,
		sessions:   make(map[string]*session),
	}
}

// Start begins watching root. The initial generation runs eagerly before
// any events arrive; its failure is fatal, later cycle failures are not.
func (c *Controller) Start(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("failed to resolve watch root %s: %w", root, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("failed to access watch root %s: %w", abs, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch root %s is not a directory", abs)
	}

	c.mu.Lock()
	if _, exists := c.sessions[abs]; exists {
		c.mu.Unlock()
		return fmt.Errorf("already watching %s", abs)
	}
	c.mu.Unlock()

	files, err := c.hooks.ListFiles(abs)
	if err != nil {
		return fmt.Errorf("failed to enumerate %s: %w", abs, err)
	}

	sess := newSession(abs, nil)
	sess.recordFiles(files)

	// Initial generation happens before the watcher starts, so the first
	// export reflects the state at startup.
	start := time.Now()
	if err := c.hooks.Regenerate(abs, files, Trigger{Type: "initial"}); err != nil {
		return fmt.Errorf("initial generation for %s failed: %w", abs, err)
	}
	sess.recordCycle(time.Since(start))

	watcher, err := NewFileWatcher(abs, c.ignoreDirs)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", abs, err)
	}
	sess.watcher = watcher

	c.mu.Lock()
	c.sessions[abs] = sess
	c.mu.Unlock()

	go c.pumpEvents(sess)

	c.log.LogInfo(fmt.Sprintf("watch: %s (%d files, debounce %s)", abs, len(files), c.debounce))
	return nil
}

// pumpEvents forwards watcher events into the debounce machinery until the
// session closes. The watcher never closes its channels, so the session's
// done channel is what ends this goroutine.
func (c *Controller) pumpEvents(sess *session) {
	for {
		select {
		case <-sess.done:
			return
		case event, ok := <-sess.watcher.Events():
			if !ok {
				return
			}
			c.handleFileChange(sess, event)
		case err, ok := <-sess.watcher.Errors():
			if !ok {
				return
			}
			c.log.LogWarn(fmt.Sprintf("watch: watcher error for %s: %v", sess.root, err))
		}
	}
}

// handleFileChange counts the raw event and resets the trailing timer.
func (c *Controller) handleFileChange(sess *session, event FileEvent) {
	rel, err := filepath.Rel(sess.root, event.Path)
	if err != nil {
		rel = event.Path
	}
	rel = filepath.ToSlash(rel)

	// Events for files outside the include set must not trigger cycles.
	// Removals pass through: a removed directory arrives as one event for
	// the directory path, which no extension filter would match.
	if c.match != nil && event.Op != FileRemoved && !c.match(rel) {
		c.log.LogTrace(fmt.Sprintf("watch: ignoring %s %s", event.Op, rel))
		return
	}

	sess.mu.Lock()
	if sess.closed {
		sess.mu.Unlock()
		return
	}
	sess.totalChanges++
	sess.lastTrigger = Trigger{Type: event.Op.String(), Path: rel}
	if sess.timer != nil {
		sess.timer.Stop()
	}
	sess.timer = time.AfterFunc(c.debounce, func() {
		c.processChanges(sess)
	})
	sess.mu.Unlock()

	c.log.LogDebug(fmt.Sprintf("watch: %s %s (debouncing %s)", event.Op, rel, c.debounce))
}

// processChanges runs one regeneration cycle. Cycles for the same root
// are serialized; errors are logged and the session keeps running.
func (c *Controller) processChanges(sess *session) {
	sess.genMu.Lock()
	defer sess.genMu.Unlock()

	sess.mu.Lock()
	if sess.closed {
		sess.mu.Unlock()
		return
	}
	reason := sess.lastTrigger
	prev := sess.lastFiles
	sess.mu.Unlock()

	start := time.Now()

	files, err := c.hooks.ListFiles(sess.root)
	if err != nil {
		c.log.LogError(fmt.Sprintf("watch: failed to enumerate %s: %v", sess.root, err))
		return
	}

	plan := PlanChanges(prev, files, c.smartDiff)
	if c.smartDiff {
		c.log.LogDebug(fmt.Sprintf("watch: cycle for %s: %s", sess.root, plan.Summary()))
		for _, f := range plan.Added {
			c.log.LogTrace(fmt.Sprintf("watch:   added %s", f))
		}
		for _, f := range plan.Removed {
			c.log.LogTrace(fmt.Sprintf("watch:   removed %s", f))
		}
	}

	if err := c.hooks.Regenerate(sess.root, files, reason); err != nil {
		c.log.LogError(fmt.Sprintf("watch: regeneration for %s failed: %v", sess.root, err))
		return
	}

	elapsed := time.Since(start)
	sess.recordFiles(files)
	sess.recordCycle(elapsed)

	c.log.LogInfo(fmt.Sprintf("watch: regenerated %s: %d files in %s (trigger: %s %s)",
		sess.root, len(files), logger.FormatDuration(elapsed), reason.Type, reason.Path))
}

// Stop ends the session for root. An empty root stops every session.
// Stopping an unwatched root is a no-op.
func (c *Controller) Stop(root string) error {
	if root == "" {
		return c.stopAll()
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}

	c.mu.Lock()
	sess, ok := c.sessions[abs]
	if ok {
		delete(c.sessions, abs)
	}
	c.mu.Unlock()

	if !ok {
		return nil
	}

	if err := sess.close(); err != nil {
		return err
	}
	c.log.LogInfo(fmt.Sprintf("watch: stopped %s", abs))
	return nil
}

func (c *Controller) stopAll() error {
	c.mu.Lock()
	sessions := make([]*session, 0, len(c.sessions))
	for _, sess := range c.sessions {
		sessions = append(sessions, sess)
	}
	c.sessions = make(map[string]*session)
	c.mu.Unlock()

	var firstErr error
	for _, sess := range sessions {
		if err := sess.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Stats returns the counters for every active session.
func (c *Controller) Stats() []SessionStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	stats := make([]SessionStats, 0, len(c.sessions))
	for _, sess := range c.sessions {
		stats = append(stats, sess.Stats())
	}
	return stats
}

// Watching reports whether root has an active session.
func (c *Controller) Watching(root string) bool {
	abs, err := filepath.Abs(root)
	if err != nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.sessions[abs]
	return ok
}
