package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// HeaderLen is the fixed kind byte plus the u32 length prefix.
const HeaderLen = 1 + 4

// Kind is the one-byte message tag.
type Kind uint8

const (
	KindHistoryEntry Kind = 1
	KindRequestAll   Kind = 2
	KindTerminate    Kind = 3
	KindError        Kind = 4

	// KindReservedMin starts the range held back for a future version
	// handshake. Peers today reject it like any other unknown kind.
	KindReservedMin Kind = 0x80
)

var (
	ErrFraming         = errors.New("frame: framing error")
	ErrTruncated       = fmt.Errorf("%w: truncated message", ErrFraming)
	ErrInvalidKind     = fmt.Errorf("%w: invalid message kind", ErrFraming)
	ErrPayloadTooLarge = fmt.Errorf("%w: payload too large", ErrFraming)
)

func (k Kind) Valid() bool {
	switch k {
	case KindHistoryEntry, KindRequestAll, KindTerminate, KindError:
		return true
	default:
		return false
	}
}

func (k Kind) String() string {
	switch k {
	case KindHistoryEntry:
		return "history_entry"
	case KindRequestAll:
		return "request_all"
	case KindTerminate:
		return "terminate"
	case KindError:
		return "error"
	default:
		return fmt.Sprintf("kind(0x%02x)", uint8(k))
	}
}

// Message is one complete wire message.
type Message struct {
	Kind    Kind
	Payload []byte
}

func RequestAll() Message {
	return Message{Kind: KindRequestAll}
}

func Terminate() Message {
	return Message{Kind: KindTerminate}
}

// Error builds an Error message carrying a human-readable diagnostic.
func Error(text string) Message {
	return Message{Kind: KindError, Payload: []byte(text)}
}

// Limits constrains decode memory use.
type Limits struct {
	// MaxPayloadBytes caps the declared payload length; 0 leaves only the
	// u32 wire bound.
	MaxPayloadBytes uint32
}

func DefaultLimits() Limits {
	return Limits{
		MaxPayloadBytes: 8 * 1024 * 1024,
	}
}

// Encode returns exactly HeaderLen+len(payload) bytes.
func Encode(m Message) ([]byte, error) {
	if !m.Kind.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidKind, uint8(m.Kind))
	}
	if uint64(len(m.Payload)) > math.MaxUint32 {
		return nil, ErrPayloadTooLarge
	}
	buf := make([]byte, HeaderLen+len(m.Payload))
	buf[0] = byte(m.Kind)
	binary.BigEndian.PutUint32(buf[1:5], uint32(len(m.Payload)))
	copy(buf[HeaderLen:], m.Payload)
	return buf, nil
}

func WriteMessage(w io.Writer, m Message) error {
	buf, err := Encode(m)
	if err != nil {
		return err
	}
	_, err = w.Write(buf)
	return err
}

// ReadMessage consumes exactly one message from r.
//
// io.EOF is returned only when the stream ends before the kind byte; an end
// of stream anywhere later is ErrTruncated.
func ReadMessage(r io.Reader, limits Limits) (Message, error) {
	var kind [1]byte
	if _, err := io.ReadFull(r, kind[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return Message{}, io.EOF
		}
		return Message{}, err
	}
	k := Kind(kind[0])
	if !k.Valid() {
		return Message{}, fmt.Errorf("%w: %d", ErrInvalidKind, kind[0])
	}

	var length [4]byte
	if _, err := io.ReadFull(r, length[:]); err != nil {
		return Message{}, truncated("length", err)
	}
	n := binary.BigEndian.Uint32(length[:])
	if limits.MaxPayloadBytes > 0 && n > limits.MaxPayloadBytes {
		return Message{}, fmt.Errorf("%w: %s declares %d bytes, limit %d", ErrPayloadTooLarge, k, n, limits.MaxPayloadBytes)
	}

	payload := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return Message{}, truncated(k.String()+" payload", err)
		}
	}
	return Message{Kind: k, Payload: payload}, nil
}

func truncated(part string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: short %s", ErrTruncated, part)
	}
	return err
}
