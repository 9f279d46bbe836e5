// Package scan discovers the files to export: it walks a project tree and
// applies extension, size, and ignore-pattern filters, returning a
// deterministic sorted list of relative paths.
package scan

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultIgnoreDirs are directory names never descended into. The watch
// controller uses the same list for its event deny-list.
var DefaultIgnoreDirs = []string{
	".git",
	".hg",
	".svn",
	"node_modules",
	"vendor",
	"dist",
	"build",
	"out",
	"coverage",
	"__pycache__",
	".codepack-cache",
	".codepack",
}

// DefaultIgnoreFiles are file names always skipped: OS metadata and
// lockfiles whose churn carries no signal.
var DefaultIgnoreFiles = []string{
	".DS_Store",
	"Thumbs.db",
	"package-lock.json",
	"yarn.lock",
	"pnpm-lock.yaml",
	"go.sum",
	"Cargo.lock",
	"composer.lock",
	"Gemfile.lock",
}

// binarySniffLen is how many leading bytes are checked for a NUL byte.
const binarySniffLen = 8 * 1024

// Options configures directory scanning.
type Options struct {
	// Extensions is an allow-list (".go", ".ts"). Empty includes every
	// non-binary file.
	Extensions []string
	// IgnorePatterns are globs matched against the relative path and the
	// base name, merged with the built-in deny-lists.
	IgnorePatterns []string
	// MaxFileSize skips files larger than this many bytes (0 = no limit).
	MaxFileSize int64
}

// Scanner lists project files deterministically: the same filters over the
// same filesystem state always produce the same sorted result.
type Scanner struct {
	opts       Options
	extMap     map[string]bool
	ignoreDirs map[string]bool
	ignoreFile map[string]bool
}

// New creates a Scanner with the given options.
func New(opts Options) *Scanner {
	extMap := make(map[string]bool, len(opts.Extensions))
	for _, ext := range opts.Extensions {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		extMap[strings.ToLower(ext)] = true
	}

	ignoreDirs := make(map[string]bool, len(DefaultIgnoreDirs))
	for _, d := range DefaultIgnoreDirs {
		ignoreDirs[d] = true
	}
	ignoreFile := make(map[string]bool, len(DefaultIgnoreFiles))
	for _, f := range DefaultIgnoreFiles {
		ignoreFile[f] = true
	}

	return &Scanner{
		opts:       opts,
		extMap:     extMap,
		ignoreDirs: ignoreDirs,
		ignoreFile: ignoreFile,
	}
}

// List walks root and returns the matching files as sorted slash-separated
// paths relative to root. Unreadable subtrees are skipped, not fatal; an
// unreadable or missing root is an error.
func (s *Scanner) List(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to access directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", root)
	}

	var files []string

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Permission problems on a subtree should not abort the scan
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if s.ignoreDirs[d.Name()] || strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if s.matchesIgnorePattern(rel, d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		if s.includeFile(path, rel, d) {
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	sort.Strings(files)
	return files, nil
}

// Matches reports whether a single relative path passes the name-based
// filters (extension, ignore patterns, deny-lists). Used by the watch
// controller to decide if a raw event is interesting at all.
func (s *Scanner) Matches(rel string) bool {
	rel = filepath.ToSlash(rel)
	base := filepath.Base(rel)

	if s.ignoreFile[base] || strings.HasPrefix(base, ".") {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(filepath.Dir(rel)), "/") {
		if s.ignoreDirs[part] || (part != "." && strings.HasPrefix(part, ".")) {
			return false
		}
	}
	if s.matchesIgnorePattern(rel, base) {
		return false
	}
	if len(s.extMap) > 0 && !s.extMap[strings.ToLower(filepath.Ext(base))] {
		return false
	}
	return true
}

func (s *Scanner) includeFile(path, rel string, d fs.DirEntry) bool {
	base := d.Name()

	if s.ignoreFile[base] || strings.HasPrefix(base, ".") {
		return false
	}
	if s.matchesIgnorePattern(rel, base) {
		return false
	}

	if len(s.extMap) > 0 && !s.extMap[strings.ToLower(filepath.Ext(base))] {
		return false
	}

	info, err := d.Info()
	if err != nil {
		return false
	}
	if !info.Mode().IsRegular() {
		return false
	}
	if s.opts.MaxFileSize > 0 && info.Size() > s.opts.MaxFileSize {
		return false
	}

	// Without an explicit extension allow-list, fall back to a binary sniff
	if len(s.extMap) == 0 && isBinary(path) {
		return false
	}

	return true
}

func (s *Scanner) matchesIgnorePattern(rel, base string) bool {
	for _, pattern := range s.opts.IgnorePatterns {
		if ok, _ := filepath.Match(pattern, rel); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
	}
	return false
}

// isBinary applies the NUL-byte heuristic to the file's leading bytes.
// Read errors count as binary so the file is excluded rather than breaking
// the export.
func isBinary(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return true
	}
	defer f.Close()

	buf := make([]byte, binarySniffLen)
	n, err := f.Read(buf)
	if n == 0 {
		return err != nil && !errors.Is(err, io.EOF)
	}
	return bytes.IndexByte(buf[:n], 0) >= 0
}
