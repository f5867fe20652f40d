package fishhist

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danmuck/plenty/internal/history"
	"github.com/danmuck/plenty/internal/testutil/testlog"
	"github.com/stretchr/testify/require"
)

func TestDefaultPathHonoursXDG(t *testing.T) {
	testlog.Start(t)
	t.Setenv("XDG_DATA_HOME", "/data")
	got, err := DefaultPath()
	require.NoError(t, err)
	require.Equal(t, "/data/fish/fish_history", got)

	t.Setenv("XDG_DATA_HOME", "")
	t.Setenv("HOME", "/home/u")
	got, err = DefaultPath()
	require.NoError(t, err)
	require.Equal(t, "/home/u/.local/share/fish/fish_history", got)
}

func TestFileReadMissingIsEmpty(t *testing.T) {
	testlog.Start(t)
	f := NewFile(filepath.Join(t.TempDir(), "fish", FileName))
	got, err := f.Read()
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestFileWriteThenRead(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "fish", FileName)
	f := NewFile(path)
	records := []history.Record{
		history.New("ls", 1, ""),
		history.New("vim", 2, "  paths:\n    - /etc/hosts"),
	}
	require.NoError(t, f.Write(records))

	got, err := f.Read()
	require.NoError(t, err)
	require.Equal(t, records, got)

	require.NoError(t, f.Write(records[:1]))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "- cmd: ls\n  when: 1\n", string(raw))
}

func TestFileLockIsExclusive(t *testing.T) {
	testlog.Start(t)
	f := NewFile(filepath.Join(t.TempDir(), "fish", FileName))
	unlock, err := f.Lock(context.Background())
	require.NoError(t, err)
	require.FileExists(t, f.LockPath())

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	_, err = NewFile(f.Path()).Lock(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, unlock())
	unlock, err = NewFile(f.Path()).Lock(context.Background())
	require.NoError(t, err)
	require.NoError(t, unlock())
}
