// Package vostest has helpers for tests that run commands.
package vostest

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// WriteScript writes an executable shell script named name into dir.
func WriteScript(t *testing.T, dir, name, body string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

// WriteFile writes a plain, non-executable file named name into dir.
func WriteFile(t *testing.T, dir, name, contents string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// PathDir creates a temporary directory holding an executable that exits
// successfully for each name and returns its path.
func PathDir(t *testing.T, names ...string) string {
	t.Helper()

	dir := t.TempDir()
	for _, name := range names {
		WriteScript(t, dir, name, "exit 0")
	}
	return dir
}

// SyncBuffer is a bytes.Buffer that's safe to write from multiple goroutines,
// such as the stages of a pipeline sharing stderr.
type SyncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *SyncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *SyncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *SyncBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.buf.Bytes()...)
}
