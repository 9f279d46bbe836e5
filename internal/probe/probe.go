// Package probe computes change fingerprints for individual files.
//
// A fingerprint combines a SHA-256 content digest with the file's size and
// modification time. The digest input includes the mtime, so two files with
// identical content but different mtimes hash differently; this trades a
// small false-positive "changed" rate for never having to re-read unchanged
// files on the fast path.
package probe

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"time"
)

// FileFingerprint captures everything needed to decide whether a file has
// changed since it was last processed.
type FileFingerprint struct {
	// Path is the project-relative path used as the cache key
	Path string `json:"path"`
	// ContentHash is hex(sha256(content || mtime))
	ContentHash string `json:"contentHash"`
	// Size is the byte length at the time of fingerprinting
	Size int64 `json:"size"`
	// MTime is the modification time in RFC 3339 format (UTC)
	MTime string `json:"mtime"`
	// LastProcessed records when the pipeline last finished processing
	// this file. Diagnostic only, never used for change decisions.
	LastProcessed string `json:"lastProcessed,omitempty"`
}

// ModTime parses the stored modification time.
func (fp *FileFingerprint) ModTime() (time.Time, error) {
	return time.Parse(time.RFC3339Nano, fp.MTime)
}

// Timestamp formats a time the way fingerprints store it.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// Fingerprint reads the file at path and computes its fingerprint.
// Path is stored as given; callers working with relative cache keys should
// set fp.Path afterwards.
//
// Any I/O error (file vanished, permission denied) is returned to the
// caller, which must treat the file as changed/unavailable rather than
// failing the run.
func Fingerprint(path string) (*FileFingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("fingerprint %s: is a directory", path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	mtime := Timestamp(info.ModTime())

	h := sha256.New()
	h.Write(content)
	h.Write([]byte(mtime))

	return &FileFingerprint{
		Path:        path,
		ContentHash: hex.EncodeToString(h.Sum(nil)),
		Size:        info.Size(),
		MTime:       mtime,
	}, nil
}

// HasChanged reports whether the file at path should be treated as changed
// relative to a previously recorded fingerprint.
//
// This is an mtime-only fast path: it never re-reads content. A file is
// changed when no prior fingerprint exists, when it cannot be stat'd, or
// when its current mtime is strictly after the cached one. Touching a file
// without editing it therefore reports changed (acceptable false positive);
// an untouched file never does.
func HasChanged(path string, prev *FileFingerprint) bool {
	if prev == nil {
		return true
	}

	info, err := os.Stat(path)
	if err != nil {
		// Unreadable counts as changed so the caller reprocesses it
		return true
	}

	cached, err := prev.ModTime()
	if err != nil {
		return true
	}

	return info.ModTime().UTC().After(cached)
}
