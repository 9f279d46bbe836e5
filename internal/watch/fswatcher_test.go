package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWatcher(t *testing.T, ignoreDirs []string) (*FileWatcher, string) {
	t.Helper()
	dir := t.TempDir()
	fw, err := NewFileWatcher(dir, ignoreDirs)
	require.NoError(t, err)
	fw.SetWriteSettle(20 * time.Millisecond)
	t.Cleanup(func() { fw.Close() })
	return fw, dir
}

// waitForEvent blocks until an event for path arrives or the timeout hits.
func waitForEvent(t *testing.T, fw *FileWatcher, path string, timeout time.Duration) (FileEvent, bool) {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case ev := <-fw.Events():
			if ev.Path == path {
				return ev, true
			}
		case <-deadline:
			return FileEvent{}, false
		}
	}
}

func TestWatcherReportsNewFile(t *testing.T) {
	fw, dir := newTestWatcher(t, nil)

	path := filepath.Join(dir, "new.go")
	require.NoError(t, os.WriteFile(path, []byte("package x\n"), 0644))

	ev, ok := waitForEvent(t, fw, path, 2*time.Second)
	require.True(t, ok, "expected an event for %s", path)
	assert.Contains(t, []FileOp{FileCreated, FileWritten}, ev.Op)
	assert.False(t, ev.Timestamp.IsZero())
}

func TestWatcherReportsRemoval(t *testing.T) {
	fw, dir := newTestWatcher(t, nil)

	path := filepath.Join(dir, "gone.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	_, ok := waitForEvent(t, fw, path, 2*time.Second)
	require.True(t, ok)

	require.NoError(t, os.Remove(path))
	ev, ok := waitForEvent(t, fw, path, 2*time.Second)
	require.True(t, ok, "expected a removal event")
	assert.Equal(t, FileRemoved, ev.Op)
}

func TestWatcherIgnoresExcludedDirs(t *testing.T) {
	dir := t.TempDir()
	ignored := filepath.Join(dir, "node_modules")
	require.NoError(t, os.MkdirAll(ignored, 0755))

	fw, err := NewFileWatcher(dir, []string{"node_modules"})
	require.NoError(t, err)
	fw.SetWriteSettle(20 * time.Millisecond)
	defer fw.Close()

	hidden := filepath.Join(ignored, "dep.js")
	require.NoError(t, os.WriteFile(hidden, []byte("module.exports = {}\n"), 0644))

	_, ok := waitForEvent(t, fw, hidden, 300*time.Millisecond)
	assert.False(t, ok, "ignored directory should produce no events")
}

func TestWatcherIgnoresDotDirs(t *testing.T) {
	dir := t.TempDir()
	hidden := filepath.Join(dir, ".git")
	require.NoError(t, os.MkdirAll(hidden, 0755))

	fw, err := NewFileWatcher(dir, nil)
	require.NoError(t, err)
	fw.SetWriteSettle(20 * time.Millisecond)
	defer fw.Close()

	path := filepath.Join(hidden, "HEAD")
	require.NoError(t, os.WriteFile(path, []byte("ref: refs/heads/main\n"), 0644))

	_, ok := waitForEvent(t, fw, path, 300*time.Millisecond)
	assert.False(t, ok, "dot directories should produce no events")
}

func TestWatcherPicksUpNewSubdirs(t *testing.T) {
	fw, dir := newTestWatcher(t, nil)

	sub := filepath.Join(dir, "pkg")
	require.NoError(t, os.MkdirAll(sub, 0755))

	// Give the watcher a moment to add the new directory
	time.Sleep(100 * time.Millisecond)

	path := filepath.Join(sub, "file.go")
	require.NoError(t, os.WriteFile(path, []byte("package pkg\n"), 0644))

	_, ok := waitForEvent(t, fw, path, 2*time.Second)
	assert.True(t, ok, "files in new subdirectories should be reported")
}

func TestWatcherSettlesRapidWrites(t *testing.T) {
	fw, dir := newTestWatcher(t, nil)

	path := filepath.Join(dir, "busy.txt")
	require.NoError(t, os.WriteFile(path, []byte("a"), 0644))
	_, ok := waitForEvent(t, fw, path, 2*time.Second)
	require.True(t, ok)

	// Burst of writes inside the settle window
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("aaaa"), 0644))
		time.Sleep(2 * time.Millisecond)
	}

	count := 0
	deadline := time.After(500 * time.Millisecond)
	for done := false; !done; {
		select {
		case ev := <-fw.Events():
			if ev.Path == path {
				count++
			}
		case <-deadline:
			done = true
		}
	}
	assert.LessOrEqual(t, count, 2, "rapid writes should coalesce")
	assert.GreaterOrEqual(t, count, 1)
}

func TestWatcherCloseTwice(t *testing.T) {
	fw, _ := newTestWatcher(t, nil)
	assert.NoError(t, fw.Close())
	assert.NoError(t, fw.Close())
}

func TestFileOpString(t *testing.T) {
	assert.Equal(t, "add", FileCreated.String())
	assert.Equal(t, "change", FileWritten.String())
	assert.Equal(t, "unlink", FileRemoved.String())
	assert.Equal(t, "unknown", FileOp(99).String())
}
