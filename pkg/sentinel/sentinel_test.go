package sentinel

import (
	"crypto/sha256"
	"os"
	"path/filepath"
	"testing"
)

func TestHashFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "testfile")
	content := []byte("hello world")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}

	got, err := HashFile(path)
	if err != nil {
		t.Fatalf("HashFile failed: %v", err)
	}

	want := sha256.Sum256(content)
	if got != want {
		t.Errorf("hash mismatch: got %x, want %x", got, want)
	}
}

func TestHashFileDifferentContent(t *testing.T) {
	dir := t.TempDir()

	path1 := filepath.Join(dir, "file1")
	path2 := filepath.Join(dir, "file2")
	if err := os.WriteFile(path1, []byte("content A"), 0644); err != nil {
		t.Fatalf("failed to write file1: %v", err)
	}
	if err := os.WriteFile(path2, []byte("content B"), 0644); err != nil {
		t.Fatalf("failed to write file2: %v", err)
	}

	hash1, err := HashFile(path1)
	if err != nil {
		t.Fatalf("HashFile(file1) failed: %v", err)
	}
	hash2, err := HashFile(path2)
	if err != nil {
		t.Fatalf("HashFile(file2) failed: %v", err)
	}

	if hash1 == hash2 {
		t.Error("expected different hashes for different content")
	}
}

func TestHashFileMissing(t *testing.T) {
	if _, err := HashFile(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestIncreaseBackoffCapped(t *testing.T) {
	s := &Sentinel{backoff: MaxBackoff}
	s.increaseBackoff()
	if s.backoff != MaxBackoff {
		t.Errorf("backoff exceeded cap: %v", s.backoff)
	}
}
