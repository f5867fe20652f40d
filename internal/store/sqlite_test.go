package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/danmuck/plenty/internal/history"
	"github.com/danmuck/plenty/internal/testutil/testlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestStore(t *testing.T) *SQLite {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	testlog.Start(t)
	s := createTestStore(t)
	_, err := os.Stat(s.Path())
	require.NoError(t, err)

	var version int
	require.NoError(t, s.db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)
}

func TestOpen_Idempotent(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "history.db")
	for i := 0; i < 3; i++ {
		s, err := Open(path)
		require.NoError(t, err, "open iteration %d", i)
		require.NoError(t, s.Commit(context.Background(), []history.Record{history.New("ls", 100, "")}))
		require.NoError(t, s.Close())
	}
	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()
	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCommit_SameRecordTwiceIsIdempotent(t *testing.T) {
	testlog.Start(t)
	s := createTestStore(t)
	ctx := context.Background()
	r := history.New("ls", 100, "")

	require.NoError(t, s.Commit(ctx, []history.Record{r}))
	require.NoError(t, s.Commit(ctx, []history.Record{r, r}))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCommit_DistinctExtraIsRetained(t *testing.T) {
	testlog.Start(t)
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Commit(ctx, []history.Record{
		history.New("make", 42, ""),
		history.New("make", 42, "  paths:\n    - Makefile"),
	}))

	got, err := s.Enumerate(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestEnumerate_OrderedByWhenRegardlessOfInsertOrder(t *testing.T) {
	testlog.Start(t)
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Commit(ctx, []history.Record{
		history.New("c", 300, ""),
		history.New("a", 100, ""),
	}))
	require.NoError(t, s.Commit(ctx, []history.Record{
		history.New("neg", -5, ""),
		history.New("b", 200, ""),
		history.New("a2", 100, ""),
	}))

	got, err := s.Enumerate(ctx)
	require.NoError(t, err)
	require.Equal(t, []history.Record{
		history.New("neg", -5, ""),
		history.New("a", 100, ""),
		history.New("a2", 100, ""),
		history.New("b", 200, ""),
		history.New("c", 300, ""),
	}, got)
}

func TestCommit_FailedBatchLeavesNoTrace(t *testing.T) {
	testlog.Start(t)
	s := createTestStore(t)
	ctx := context.Background()
	_, err := s.db.Exec(`
		CREATE TRIGGER reject_boom BEFORE INSERT ON history
		WHEN NEW.cmd = 'boom'
		BEGIN SELECT RAISE(ABORT, 'boom rejected'); END
	`)
	require.NoError(t, err)

	err = s.Commit(ctx, []history.Record{
		history.New("first", 1, ""),
		history.New("second", 2, ""),
		history.New("boom", 3, ""),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record 3 of 3")

	got, err := s.Enumerate(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEnumerate_ReadsLegacyNullColumns(t *testing.T) {
	testlog.Start(t)
	s := createTestStore(t)
	ctx := context.Background()
	_, err := s.db.Exec(`INSERT INTO history (cmd, "when", extra) VALUES ('old', 7, NULL)`)
	require.NoError(t, err)

	got, err := s.Enumerate(ctx)
	require.NoError(t, err)
	require.Equal(t, []history.Record{history.New("old", 7, "")}, got)
}

func TestCommit_EmptyBatchIsNoop(t *testing.T) {
	testlog.Start(t)
	s := createTestStore(t)
	require.NoError(t, s.Commit(context.Background(), nil))
}
