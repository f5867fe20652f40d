package session

import (
	"context"
	"errors"
	"testing"

	"github.com/danmuck/plenty/internal/history"
	"github.com/danmuck/plenty/internal/testutil/testlog"
	"github.com/stretchr/testify/require"
)

func TestBatcherReportsThreshold(t *testing.T) {
	testlog.Start(t)
	b := NewBatcher(newFakeStore(), 2)
	require.False(t, b.Add(history.New("a", 1, "")))
	require.True(t, b.Add(history.New("b", 2, "")))
	require.Equal(t, 2, b.Len())
}

func TestBatcherFlushCommitsOnceAndClears(t *testing.T) {
	testlog.Start(t)
	store := newFakeStore()
	b := NewBatcher(store, 10)
	b.Add(history.New("a", 1, ""))
	b.Add(history.New("b", 2, ""))

	require.NoError(t, b.Flush(context.Background()))
	require.Equal(t, 1, store.commits)
	require.Zero(t, b.Len())
	require.Equal(t, 2, b.Committed())

	require.NoError(t, b.Flush(context.Background()))
	require.Equal(t, 1, store.commits, "empty flush must not reach the store")
}

func TestBatcherFailedFlushKeepsPending(t *testing.T) {
	testlog.Start(t)
	store := newFakeStore()
	store.commitErr = errors.New("disk full")
	b := NewBatcher(store, 10)
	b.Add(history.New("a", 1, ""))

	require.ErrorContains(t, b.Flush(context.Background()), "disk full")
	require.Equal(t, 1, b.Len())
	require.Zero(t, b.Committed())
	require.Empty(t, store.snapshot())

	require.Equal(t, 1, b.Discard())
	require.Zero(t, b.Len())
}

func TestBatcherDefaultsNonPositiveSize(t *testing.T) {
	testlog.Start(t)
	b := NewBatcher(newFakeStore(), 0)
	for i := 0; i < DefaultBatchSize-1; i++ {
		require.False(t, b.Add(history.New("x", int64(i), "")))
	}
	require.True(t, b.Add(history.New("x", -1, "")))
}
