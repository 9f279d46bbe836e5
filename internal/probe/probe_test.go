package probe

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func TestFingerprint(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.go", "package a\n")

	fp, err := Fingerprint(path)
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}

	if fp.ContentHash == "" {
		t.Error("ContentHash is empty")
	}
	if len(fp.ContentHash) != 64 {
		t.Errorf("ContentHash length = %d, want 64 hex chars", len(fp.ContentHash))
	}
	if fp.Size != int64(len("package a\n")) {
		t.Errorf("Size = %d, want %d", fp.Size, len("package a\n"))
	}
	if _, err := fp.ModTime(); err != nil {
		t.Errorf("MTime %q does not parse: %v", fp.MTime, err)
	}
}

func TestFingerprintMissingFile(t *testing.T) {
	if _, err := Fingerprint(filepath.Join(t.TempDir(), "missing.go")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestFingerprintDirectory(t *testing.T) {
	if _, err := Fingerprint(t.TempDir()); err == nil {
		t.Error("expected error for directory")
	}
}

func TestFingerprintIncludesMTime(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.go", "package a\n")

	first, err := Fingerprint(path)
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}

	// Same content, advanced mtime: hash must differ because the mtime is
	// part of the digest input.
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("Chtimes failed: %v", err)
	}

	second, err := Fingerprint(path)
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}

	if first.ContentHash == second.ContentHash {
		t.Error("hash unchanged after mtime advance; mtime should be part of the digest")
	}
}

func TestHasChangedNoPriorFingerprint(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.go", "package a\n")

	if !HasChanged(path, nil) {
		t.Error("HasChanged = false with nil fingerprint, want true")
	}
}

func TestHasChangedStable(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.go", "package a\n")

	fp, err := Fingerprint(path)
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}

	// Repeated checks on an untouched file must never report changed.
	for i := 0; i < 5; i++ {
		if HasChanged(path, fp) {
			t.Fatalf("HasChanged = true on untouched file (iteration %d)", i)
		}
	}
}

func TestHasChangedMTimeAdvance(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.go", "package a\n")

	fp, err := Fingerprint(path)
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}

	// Touch only; identical content still counts as changed.
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("Chtimes failed: %v", err)
	}

	if !HasChanged(path, fp) {
		t.Error("HasChanged = false after mtime advance, want true")
	}
}

func TestHasChangedMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.go", "package a\n")

	fp, err := Fingerprint(path)
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}

	if err := os.Remove(path); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	if !HasChanged(path, fp) {
		t.Error("HasChanged = false for vanished file, want true")
	}
}

func TestHasChangedCorruptMTime(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.go", "package a\n")

	fp := &FileFingerprint{Path: path, MTime: "not-a-timestamp"}
	if !HasChanged(path, fp) {
		t.Error("HasChanged = false with unparseable cached mtime, want true")
	}
}
