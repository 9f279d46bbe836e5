package cmd

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheStatsEmpty(t *testing.T) {
	root := writeProject(t, map[string]string{"a.go": "package a\n"})

	out, err := execute(t, "cache", "stats", root)
	require.NoError(t, err)
	assert.Contains(t, out, ".codepack-cache")
	assert.Contains(t, out, "Fingerprints:     0")
}

func TestCacheStatsAfterIncrementalRun(t *testing.T) {
	root := writeProject(t, map[string]string{
		"a.go": "package a\n",
		"b.go": "package b\n",
	})

	_, err := execute(t, "generate", root, "-o", "out.md", "--incremental")
	require.NoError(t, err)

	out, err := execute(t, "cache", "stats", root)
	require.NoError(t, err)
	assert.Contains(t, out, "Fingerprints:     2")
	assert.Contains(t, out, "Snapshot entries: 2")
}

func TestCacheClearCommand(t *testing.T) {
	root := writeProject(t, map[string]string{"a.go": "package a\n"})

	_, err := execute(t, "generate", root, "-o", "out.md", "--incremental")
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(root, ".codepack-cache", "metadata.json"))

	out, err := execute(t, "cache", "clear", root)
	require.NoError(t, err)
	assert.Contains(t, out, "Cache cleared.")
	assert.NoFileExists(t, filepath.Join(root, ".codepack-cache", "metadata.json"))
}

func TestHistoryEmpty(t *testing.T) {
	root := writeProject(t, map[string]string{"a.go": "package a\n"})

	out, err := execute(t, "history", root)
	require.NoError(t, err)
	assert.Contains(t, out, "No recorded runs.")
}

func TestHistoryLimit(t *testing.T) {
	root := writeProject(t, map[string]string{"a.go": "package a\n"})

	for i := 0; i < 3; i++ {
		_, err := execute(t, "generate", root, "-o", "out.md")
		require.NoError(t, err)
	}

	out, err := execute(t, "history", root, "--limit", "2")
	require.NoError(t, err)
	// Header plus two rows
	assert.Equal(t, 3, countLines(out))
}

func countLines(s string) int {
	n := 0
	for _, r := range s {
		if r == '\n' {
			n++
		}
	}
	return n
}
