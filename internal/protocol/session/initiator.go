package session

import (
	"bufio"
	"context"
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

const roleInitiator = "initiator"

// Remote is the Initiator's end of a started Responder process.
type Remote interface {
	io.Reader
	io.Writer
	// CloseWrite signals end of input to the Responder.
	CloseWrite() error
	// Wait blocks until the Responder exits and reports a non-success exit
	// as an error.
	Wait() error
	// Close tears the stream down without waiting for a clean exit.
	Close() error
}

// InitiatorStats counts records moved during one run.
type InitiatorStats struct {
	Sent     int
	Received int
	// Skipped counts local records that cannot be encoded and never left
	// the machine.
	Skipped int
}

// Initiator drives the client side of one synchronization run.
type Initiator struct {
	cfg      Config
	remote   Remote
	r        *bufio.Reader
	w        *bufio.Writer
	sm       machine
	received []history.Record
	stats    InitiatorStats
	log      zerolog.Logger
}

func NewInitiator(remote Remote, cfg Config) *Initiator {
	cfg = cfg.WithDefaults()
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}
	return &Initiator{
		cfg:      cfg,
		remote:   remote,
		r:        bufio.NewReader(remote),
		w:        bufio.NewWriter(remote),
		sm:       newMachine(StateSending, initiatorTransitions),
		received: make([]history.Record, 0),
		log:      log.With().Str("role", roleInitiator).Str("run_id", cfg.RunID).Logger(),
	}
}

func (i *Initiator) State() State {
	return i.sm.current()
}

func (i *Initiator) Stats() InitiatorStats {
	return i.stats
}

// Run pushes local in caller order, requests the full remote history and
// returns it as received. Any failure is terminal for the run; the remote
// stream is torn down before returning.
func (i *Initiator) Run(ctx context.Context, local []history.Record) ([]history.Record, error) {
	if err := i.run(ctx, local); err != nil {
		i.abort(err)
		observability.RecordSession(roleInitiator, observability.OutcomeFailed)
		return nil, err
	}
	observability.RecordSession(roleInitiator, observability.OutcomeOK)
	i.log.Info().
		Int("sent", i.stats.Sent).
		Int("received", i.stats.Received).
		Int("skipped", i.stats.Skipped).
		Msg("sync exchange complete")
	return i.received, nil
}

func (i *Initiator) run(ctx context.Context, local []history.Record) error {
	if i.sm.current() != StateSending {
		return transitionError(i.sm.current(), StateSending)
	}
	if err := i.send(ctx, local); err != nil {
		return err
	}
	if err := i.request(); err != nil {
		return err
	}
	if err := i.receive(ctx); err != nil {
		return err
	}
	if err := i.finalize(); err != nil {
		return err
	}
	return i.sm.to(StateDone)
}

func (i *Initiator) send(ctx context.Context, local []history.Record) error {
	i.log.Info().Int("records", len(local)).Msg("sending local history")
	for _, r := range local {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrTransport, err)
		}
		msg, err := record.EntryMessage(r)
		if err != nil {
			i.stats.Skipped++
			i.log.Warn().Err(err).Int64("when", r.When).Msg("skipping local history entry")
			continue
		}
		if err := i.write(msg); err != nil {
			return err
		}
		i.stats.Sent++
	}
	if i.stats.Skipped > 0 {
		i.log.Warn().Int("skipped", i.stats.Skipped).Msg("local entries not sent")
	}
	observability.AddRecords(roleInitiator, observability.DirectionSent, i.stats.Sent)
	return i.sm.to(StateRequesting)
}

func (i *Initiator) request() error {
	if err := i.write(frame.RequestAll()); err != nil {
		return err
	}
	if err := i.flush(frame.KindRequestAll); err != nil {
		return err
	}
	i.log.Debug().Msg("requested full history")
	return i.sm.to(StateReceiving)
}

func (i *Initiator) receive(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrTransport, err)
		}
		msg, err := frame.ReadMessage(i.r, i.cfg.Limits)
		if err != nil {
			return readError(err)
		}
		done, err := i.handle(msg)
		if err != nil {
			return err
		}
		if done {
			break
		}
	}
	observability.AddRecords(roleInitiator, observability.DirectionReceived, i.stats.Received)
	i.log.Info().Int("records", i.stats.Received).Msg("received remote history")
	return i.sm.to(StateFinalizing)
}

// handle applies one reply message while receiving and reports whether the
// reply stream is complete.
func (i *Initiator) handle(msg frame.Message) (bool, error) {
	switch msg.Kind {
	case frame.KindHistoryEntry:
		r, err := record.Decode(msg.Payload)
		if err != nil {
			return false, fmt.Errorf("decode history entry from responder: %w", err)
		}
		i.received = append(i.received, r)
		i.stats.Received++
		return false, nil
	case frame.KindTerminate:
		return true, nil
	case frame.KindError:
		return false, &RemoteError{Text: string(msg.Payload)}
	default:
		return false, fmt.Errorf("%w: unexpected %s while %s", ErrProtocolViolation, msg.Kind, i.sm.current())
	}
}

func (i *Initiator) finalize() error {
	if err := i.write(frame.Terminate()); err != nil {
		return err
	}
	if err := i.flush(frame.KindTerminate); err != nil {
		return err
	}
	if err := i.remote.CloseWrite(); err != nil {
		return fmt.Errorf("%w: close write: %w", ErrTransport, err)
	}
	if err := i.remote.Wait(); err != nil {
		return fmt.Errorf("%w: remote exit: %w", ErrTransport, err)
	}
	return nil
}

func (i *Initiator) write(msg frame.Message) error {
	if err := frame.WriteMessage(i.w, msg); err != nil {
		return writeError(msg.Kind, err)
	}
	return nil
}

func (i *Initiator) flush(kind frame.Kind) error {
	if err := i.w.Flush(); err != nil {
		return writeError(kind, err)
	}
	return nil
}

func (i *Initiator) abort(cause error) {
	from := i.sm.current()
	_ = i.sm.to(StateErrored)
	i.received = nil
	if err := i.remote.Close(); err != nil {
		i.log.Debug().Err(err).Msg("close remote after failure")
	}
	i.log.Error().Err(cause).Str("state", string(from)).Msg("sync exchange failed")
}
