package fishhist

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/danmuck/plenty/internal/history"
	"github.com/gofrs/flock"
	"github.com/natefinch/atomic"
)

const (
	// FileName is fish's default history file name inside its data dir.
	FileName = "fish_history"

	lockSuffix     = ".plenty.lock"
	lockRetryDelay = 100 * time.Millisecond
)

// DefaultPath returns $XDG_DATA_HOME/fish/fish_history, falling back to
// ~/.local/share when XDG_DATA_HOME is unset.
func DefaultPath() (string, error) {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "fish", FileName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("fishhist: resolve home: %w", err)
	}
	return filepath.Join(home, ".local", "share", "fish", FileName), nil
}

// File is one fish history file on disk.
type File struct {
	path string
}

func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Path() string {
	return f.path
}

// LockPath is the sibling file used for cross-process exclusion.
func (f *File) LockPath() string {
	return f.path + lockSuffix
}

// Lock creates the history directory if needed and blocks until the
// exclusive lock is held or ctx ends. The returned func releases it.
func (f *File) Lock(ctx context.Context) (func() error, error) {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return nil, fmt.Errorf("fishhist: create dir: %w", err)
	}
	fl := flock.New(f.LockPath())
	locked, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("fishhist: lock %s: %w", fl.Path(), err)
	}
	if !locked {
		return nil, fmt.Errorf("fishhist: lock %s: not acquired", fl.Path())
	}
	return fl.Unlock, nil
}

// Read parses the file. A missing file reads as empty history.
func (f *File) Read() ([]history.Record, error) {
	fh, err := os.Open(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []history.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fishhist: open: %w", err)
	}
	defer fh.Close()
	records, err := Parse(fh)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.path, err)
	}
	return records, nil
}

// Write replaces the file contents atomically.
func (f *File) Write(records []history.Record) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("fishhist: create dir: %w", err)
	}
	var buf bytes.Buffer
	if err := Format(&buf, records); err != nil {
		return err
	}
	if err := atomic.WriteFile(f.path, &buf); err != nil {
		return fmt.Errorf("fishhist: replace %s: %w", f.path, err)
	}
	return nil
}
