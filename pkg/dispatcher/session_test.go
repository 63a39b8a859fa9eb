// Copyright 2024-2026 Aiku AI

package dispatcher

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestWriteSessionFileOverwrites(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), DefaultSessionFile)

	if err := WriteSessionFile(path, "first-token-that-is-longer"); err != nil {
		t.Fatalf("WriteSessionFile: %v", err)
	}
	if err := WriteSessionFile(path, "second"); err != nil {
		t.Fatalf("WriteSessionFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "second" {
		t.Errorf("file contents = %q, want %q", data, "second")
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("Stat: %v", err)
		}
		if perm := info.Mode().Perm(); perm != 0o600 {
			t.Errorf("mode = %o, want 600", perm)
		}
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want only the session file", len(entries))
	}
}

func TestReadSessionFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	got, err := ReadSessionFile(filepath.Join(dir, "missing"))
	if err != nil || got != "" {
		t.Errorf("ReadSessionFile(missing) = %q, %v; want empty, nil", got, err)
	}

	path := filepath.Join(dir, "session")
	if err := os.WriteFile(path, []byte("token\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	got, err = ReadSessionFile(path)
	if err != nil {
		t.Fatalf("ReadSessionFile: %v", err)
	}
	if got != "token" {
		t.Errorf("ReadSessionFile = %q, want %q", got, "token")
	}
}

func TestWriteSessionFileMissingDir(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nope", "session")
	if err := WriteSessionFile(path, "x"); err == nil {
		t.Error("expected error for missing directory")
	}
}
