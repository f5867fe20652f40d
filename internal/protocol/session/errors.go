package session

import (
	"errors"
	"fmt"
	"io"

	"github.com/danmuck/plenty/internal/protocol/frame"
)

var (
	ErrProtocolViolation = errors.New("session: protocol violation")
	ErrStore             = errors.New("session: store failure")
	ErrTransport         = errors.New("session: transport failure")
	ErrRemote            = errors.New("session: remote error")
	ErrInvalidTransition = errors.New("session: invalid state transition")
)

// RemoteError carries the diagnostic text from a peer's Error message.
type RemoteError struct {
	Text string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %s", ErrRemote, e.Text)
}

func (e *RemoteError) Unwrap() error {
	return ErrRemote
}

// readError maps a frame read failure onto the session error classes.
// Framing errors are returned unchanged so callers still match the frame
// sentinels.
func readError(err error) error {
	switch {
	case errors.Is(err, frame.ErrFraming):
		return err
	case errors.Is(err, io.EOF):
		return fmt.Errorf("%w: peer closed stream: %w", ErrTransport, io.ErrUnexpectedEOF)
	default:
		return fmt.Errorf("%w: read: %w", ErrTransport, err)
	}
}

func writeError(kind frame.Kind, err error) error {
	return fmt.Errorf("%w: write %s: %w", ErrTransport, kind, err)
}
