package util

import (
	"fmt"
	"os"
	"path/filepath"
)

// TempSuffix marks output files that are still being written.
const TempSuffix = ".tmp"

// AtomicFile writes to path+TempSuffix and renames it into place on Commit,
// so an interrupted crawl never leaves a truncated export behind.
type AtomicFile struct {
	f    *os.File
	path string
	done bool
}

// CreateAtomic creates the temp file, and the parent directory if needed.
func CreateAtomic(path string) (*AtomicFile, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
	}
	f, err := os.Create(path + TempSuffix)
	if err != nil {
		return nil, fmt.Errorf("create output: %w", err)
	}
	return &AtomicFile{f: f, path: path}, nil
}

func (a *AtomicFile) Write(p []byte) (int, error) { return a.f.Write(p) }

// Path is the final path.
func (a *AtomicFile) Path() string { return a.path }

// Commit flushes the temp file and moves it to the final path.
func (a *AtomicFile) Commit() error {
	if a.done {
		return nil
	}
	a.done = true
	if err := a.f.Sync(); err != nil {
		_ = a.f.Close()
		_ = os.Remove(a.f.Name())
		return fmt.Errorf("sync output: %w", err)
	}
	if err := a.f.Close(); err != nil {
		_ = os.Remove(a.f.Name())
		return fmt.Errorf("close output: %w", err)
	}
	if err := os.Rename(a.f.Name(), a.path); err != nil {
		return fmt.Errorf("move output into place: %w", err)
	}
	return nil
}

// Abort discards the temp file. It is a no-op after Commit.
func (a *AtomicFile) Abort() {
	if a.done {
		return
	}
	a.done = true
	_ = a.f.Close()
	_ = os.Remove(a.f.Name())
}
