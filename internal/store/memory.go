package store

import (
	"context"
	"sync"

	"github.com/danmuck/plenty/internal/history"
	"github.com/danmuck/plenty/internal/protocol/session"
)

// Memory is an in-process Store with the same dedup and ordering contract
// as SQLite.
type Memory struct {
	mu      sync.Mutex
	records []history.Record
	index   map[history.Record]struct{}
}

var _ session.Store = (*Memory)(nil)

func NewMemory(seed ...history.Record) *Memory {
	m := &Memory{
		records: make([]history.Record, 0, len(seed)),
		index:   make(map[history.Record]struct{}, len(seed)),
	}
	m.insert(seed)
	return m
}

func (m *Memory) Commit(ctx context.Context, batch []history.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insert(batch)
	return nil
}

func (m *Memory) Enumerate(ctx context.Context) ([]history.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	out := make([]history.Record, len(m.records))
	copy(out, m.records)
	m.mu.Unlock()
	history.SortByWhen(out)
	return out, nil
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func (m *Memory) insert(batch []history.Record) {
	for _, r := range batch {
		if _, ok := m.index[r]; ok {
			continue
		}
		m.index[r] = struct{}{}
		m.records = append(m.records, r)
	}
}
