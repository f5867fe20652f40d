package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/danmuck/plenty/internal/history"
	"github.com/danmuck/plenty/internal/observability"
	"github.com/danmuck/plenty/internal/protocol/frame"
	"github.com/danmuck/plenty/internal/protocol/record"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const roleResponder = "responder"

// ResponderStats counts records handled during one session.
type ResponderStats struct {
	Received  int
	Rejected  int
	Committed int
	Sent      int
}

// Responder drives the storing side of one synchronization run. It owns
// the store handle for the session's lifetime but does not close it.
type Responder struct {
	cfg   Config
	r     *bufio.Reader
	w     *bufio.Writer
	store Store
	batch *Batcher
	sm    machine
	stats ResponderStats
	log   zerolog.Logger

	// firstReject holds the first decode diagnostic not yet reported to the
	// Initiator; reported counts rejections already covered by a notice.
	firstReject string
	reported    int
}

func NewResponder(r io.Reader, w io.Writer, store Store, cfg Config) *Responder {
	cfg = cfg.WithDefaults()
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}
	return &Responder{
		cfg:   cfg,
		r:     bufio.NewReader(r),
		w:     bufio.NewWriter(w),
		store: store,
		batch: NewBatcher(store, cfg.BatchSize),
		sm:    newMachine(StateListening, responderTransitions),
		log:   log.With().Str("role", roleResponder).Str("run_id", cfg.RunID).Logger(),
	}
}

func (s *Responder) State() State {
	return s.sm.current()
}

func (s *Responder) Stats() ResponderStats {
	st := s.stats
	st.Committed = s.batch.Committed()
	return st
}

// Serve reads messages until the Initiator terminates or the stream ends.
// A nil return means every accepted record was committed.
func (s *Responder) Serve(ctx context.Context) error {
	err := s.serve(ctx)
	st := s.Stats()
	observability.AddRecords(roleResponder, observability.DirectionReceived, st.Received)
	observability.AddRecords(roleResponder, observability.DirectionRejected, st.Rejected)
	observability.AddRecords(roleResponder, observability.DirectionCommitted, st.Committed)
	observability.AddRecords(roleResponder, observability.DirectionSent, st.Sent)
	if err != nil {
		observability.RecordSession(roleResponder, observability.OutcomeFailed)
		s.log.Error().Err(err).Interface("stats", st).Msg("session aborted")
		return err
	}
	observability.RecordSession(roleResponder, observability.OutcomeOK)
	s.log.Info().Interface("stats", st).Msg("session complete")
	return nil
}

func (s *Responder) serve(ctx context.Context) error {
	for {
		msg, err := frame.ReadMessage(s.r, s.cfg.Limits)
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.log.Debug().Msg("stream closed without terminator")
				return s.finish(ctx)
			}
			return s.abort(readError(err))
		}
		done, err := s.handle(ctx, msg)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// handle applies one message in the listening state and reports whether the
// session ended normally.
func (s *Responder) handle(ctx context.Context, msg frame.Message) (bool, error) {
	if s.sm.current() != StateListening {
		return false, transitionError(s.sm.current(), StateListening)
	}
	switch msg.Kind {
	case frame.KindHistoryEntry:
		return false, s.accept(ctx, msg.Payload)
	case frame.KindRequestAll:
		return false, s.answer(ctx)
	case frame.KindTerminate:
		return true, s.finish(ctx)
	case frame.KindError:
		text := string(msg.Payload)
		s.log.Warn().Str("diagnostic", text).Msg("initiator reported error")
		s.batch.Discard()
		_ = s.sm.to(StateErrored)
		return false, &RemoteError{Text: text}
	default:
		return false, s.abort(fmt.Errorf("%w: unexpected %s while %s", ErrProtocolViolation, msg.Kind, s.sm.current()))
	}
}

// accept buffers one record. A payload that fails to decode is skipped and
// the session continues; rejections are reported to the Initiator in one
// notice when it next expects a reply. Nothing is written while the
// Initiator may still be sending, so a peer that is not reading cannot
// stall the session.
func (s *Responder) accept(ctx context.Context, payload []byte) error {
	r, err := record.Decode(payload)
	if err != nil {
		s.stats.Rejected++
		if s.firstReject == "" {
			s.firstReject = err.Error()
		}
		s.log.Warn().Err(err).Int("payload_bytes", len(payload)).Msg("rejecting history entry")
		return nil
	}
	s.stats.Received++
	if !s.batch.Add(r) {
		return s.sm.to(StateListening)
	}
	if err := s.batch.Flush(ctx); err != nil {
		return s.failStore("commit", err)
	}
	s.log.Debug().Int("committed", s.batch.Committed()).Msg("batch committed")
	return s.sm.to(StateListening)
}

// answer flushes pending records, then streams the whole store followed by
// a terminator.
func (s *Responder) answer(ctx context.Context) error {
	if err := s.sm.to(StateAnswering); err != nil {
		return err
	}
	if err := s.batch.Flush(ctx); err != nil {
		return s.failStore("commit", err)
	}
	records, err := s.store.Enumerate(ctx)
	if err != nil {
		return s.failStore("enumerate", err)
	}
	if err := s.reportRejected(); err != nil {
		return s.abort(err)
	}
	if err := s.sendAll(records); err != nil {
		return s.abort(err)
	}
	s.log.Info().Int("records", len(records)).Msg("answered history request")
	return s.sm.to(StateListening)
}

func (s *Responder) sendAll(records []history.Record) error {
	for _, r := range records {
		msg, err := record.EntryMessage(r)
		if err != nil {
			s.log.Warn().Err(err).Int64("when", r.When).Msg("skipping stored history entry")
			continue
		}
		if err := frame.WriteMessage(s.w, msg); err != nil {
			return writeError(frame.KindHistoryEntry, err)
		}
		s.stats.Sent++
	}
	if err := frame.WriteMessage(s.w, frame.Terminate()); err != nil {
		return writeError(frame.KindTerminate, err)
	}
	if err := s.w.Flush(); err != nil {
		return writeError(frame.KindTerminate, err)
	}
	return nil
}

func (s *Responder) finish(ctx context.Context) error {
	if err := s.batch.Flush(ctx); err != nil {
		return s.failStore("commit", err)
	}
	if err := s.reportRejected(); err != nil {
		s.log.Debug().Err(err).Msg("report rejected entries on finish")
	}
	if err := s.w.Flush(); err != nil {
		s.log.Debug().Err(err).Msg("flush on finish")
	}
	return s.sm.to(StateDone)
}

func (s *Responder) failStore(op string, err error) error {
	return s.abort(fmt.Errorf("%w: %s: %w", ErrStore, op, err))
}

// abort notifies the Initiator best effort, drops uncommitted records and
// moves to the errored state.
func (s *Responder) abort(cause error) error {
	if dropped := s.batch.Discard(); dropped > 0 {
		s.log.Warn().Int("dropped", dropped).Msg("discarding uncommitted records")
	}
	s.notify(cause.Error())
	_ = s.sm.to(StateErrored)
	return cause
}

// reportRejected queues a single Error covering every rejection since the
// last report. It is a no-op when nothing was rejected.
func (s *Responder) reportRejected() error {
	pending := s.stats.Rejected - s.reported
	if pending == 0 {
		return nil
	}
	text := "decode history entry: " + s.firstReject
	if pending > 1 {
		text += fmt.Sprintf(" (and %d more)", pending-1)
	}
	s.reported = s.stats.Rejected
	s.firstReject = ""
	if err := frame.WriteMessage(s.w, frame.Error(text)); err != nil {
		return writeError(frame.KindError, err)
	}
	return nil
}

// notify writes an Error message for the Initiator and flushes it. Failures
// are logged and not escalated since the stream may already be unusable.
func (s *Responder) notify(text string) {
	if err := frame.WriteMessage(s.w, frame.Error(text)); err != nil {
		s.log.Debug().Err(err).Msg("queue error notice")
		return
	}
	if err := s.w.Flush(); err != nil {
		s.log.Debug().Err(err).Msg("flush error notice")
	}
}
