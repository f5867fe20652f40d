package session

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/danmuck/plenty/internal/history"
	"github.com/danmuck/plenty/internal/protocol/frame"
	"github.com/danmuck/plenty/internal/protocol/record"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// fakeStore is an in-memory Store with failure injection.
type fakeStore struct {
	mu           sync.Mutex
	records      []history.Record
	commits      int
	commitErr    error
	enumerateErr error
}

func newFakeStore(seed ...history.Record) *fakeStore {
	s := &fakeStore{}
	s.add(seed)
	return s
}

func (s *fakeStore) Commit(_ context.Context, batch []history.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.commitErr != nil {
		return s.commitErr
	}
	s.commits++
	s.add(batch)
	return nil
}

func (s *fakeStore) Enumerate(context.Context) ([]history.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.enumerateErr != nil {
		return nil, s.enumerateErr
	}
	out := append([]history.Record(nil), s.records...)
	history.SortByWhen(out)
	return out, nil
}

func (s *fakeStore) snapshot() []history.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]history.Record(nil), s.records...)
	history.SortByWhen(out)
	return out
}

func (s *fakeStore) add(batch []history.Record) {
	for _, r := range batch {
		if !history.Contains(s.records, r) {
			s.records = append(s.records, r)
		}
	}
}

// wire encodes msgs back to back.
func wire(t *testing.T, msgs ...frame.Message) []byte {
	t.Helper()
	var buf bytes.Buffer
	for _, m := range msgs {
		require.NoError(t, frame.WriteMessage(&buf, m))
	}
	return buf.Bytes()
}

func entry(t *testing.T, r history.Record) frame.Message {
	t.Helper()
	m, err := record.EntryMessage(r)
	require.NoError(t, err)
	return m
}

func entries(t *testing.T, records ...history.Record) []frame.Message {
	t.Helper()
	out := make([]frame.Message, 0, len(records))
	for _, r := range records {
		out = append(out, entry(t, r))
	}
	return out
}

// readAll decodes every message in b.
func readAll(t *testing.T, b []byte) []frame.Message {
	t.Helper()
	r := bytes.NewReader(b)
	out := make([]frame.Message, 0)
	for {
		m, err := frame.ReadMessage(r, frame.DefaultLimits())
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, m)
	}
}

func decodeEntries(t *testing.T, msgs []frame.Message) []history.Record {
	t.Helper()
	out := make([]history.Record, 0)
	for _, m := range msgs {
		if m.Kind != frame.KindHistoryEntry {
			continue
		}
		r, err := record.Decode(m.Payload)
		require.NoError(t, err)
		out = append(out, r)
	}
	return out
}

func kinds(msgs []frame.Message) []frame.Kind {
	out := make([]frame.Kind, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Kind)
	}
	return out
}

// scriptedRemote replays a fixed reply stream and records what the
// Initiator wrote.
type scriptedRemote struct {
	reply       io.Reader
	written     bytes.Buffer
	writeErr    error
	waitErr     error
	closedWrite bool
	closed      bool
	waited      bool
}

func newScriptedRemote(reply []byte) *scriptedRemote {
	return &scriptedRemote{reply: bytes.NewReader(reply)}
}

func (r *scriptedRemote) Read(p []byte) (int, error) { return r.reply.Read(p) }

func (r *scriptedRemote) Write(p []byte) (int, error) {
	if r.writeErr != nil {
		return 0, r.writeErr
	}
	return r.written.Write(p)
}

func (r *scriptedRemote) CloseWrite() error {
	r.closedWrite = true
	return nil
}

func (r *scriptedRemote) Wait() error {
	r.waited = true
	return r.waitErr
}

func (r *scriptedRemote) Close() error {
	r.closed = true
	return nil
}

// pipeRemote connects an Initiator to a Responder running in-process.
type pipeRemote struct {
	toResponder   *io.PipeWriter
	fromResponder *io.PipeReader
	g             *errgroup.Group
}

func startResponder(ctx context.Context, store Store, cfg Config) (*pipeRemote, *Responder) {
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	resp := NewResponder(inR, outW, store, cfg)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := resp.Serve(gctx)
		outW.Close()
		inR.Close()
		return err
	})
	return &pipeRemote{toResponder: inW, fromResponder: outR, g: g}, resp
}

func (p *pipeRemote) Read(b []byte) (int, error)  { return p.fromResponder.Read(b) }
func (p *pipeRemote) Write(b []byte) (int, error) { return p.toResponder.Write(b) }
func (p *pipeRemote) CloseWrite() error           { return p.toResponder.Close() }
func (p *pipeRemote) Wait() error                 { return p.g.Wait() }

func (p *pipeRemote) Close() error {
	p.toResponder.Close()
	return p.fromResponder.Close()
}
