// Package record owns the HistoryEntry payload layout:
// u32 command length, command, i64 when, u32 extra length, extra.
package record

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/danmuck/plenty/internal/history"
	"github.com/danmuck/plenty/internal/protocol/frame"
)

const (
	lenPrefix = 4
	whenLen   = 8

	// MinLen is the encoded size of a record with empty text fields.
	MinLen = lenPrefix + whenLen + lenPrefix
)

var (
	ErrCodec         = errors.New("record: codec error")
	ErrShortRecord   = fmt.Errorf("%w: short record", ErrCodec)
	ErrInvalidUTF8   = fmt.Errorf("%w: invalid utf-8", ErrCodec)
	ErrTrailingBytes = fmt.Errorf("%w: trailing bytes", ErrCodec)
)

func EncodedLen(r history.Record) int {
	return MinLen + len(r.Command) + len(r.Extra)
}

// Encode lays out r as a HistoryEntry payload. Both text fields must be
// valid UTF-8; the peer rejects anything else.
func Encode(r history.Record) ([]byte, error) {
	if err := Validate(r); err != nil {
		return nil, err
	}
	buf := make([]byte, EncodedLen(r))
	i := putText(buf, 0, r.Command)
	binary.BigEndian.PutUint64(buf[i:i+whenLen], uint64(r.When))
	i += whenLen
	putText(buf, i, r.Extra)
	return buf, nil
}

// Validate reports whether r can be encoded.
func Validate(r history.Record) error {
	if err := validText("command", r.Command); err != nil {
		return err
	}
	return validText("extra", r.Extra)
}

// EntryMessage wraps r in a HistoryEntry message.
func EntryMessage(r history.Record) (frame.Message, error) {
	payload, err := Encode(r)
	if err != nil {
		return frame.Message{}, err
	}
	return frame.Message{Kind: frame.KindHistoryEntry, Payload: payload}, nil
}

func Decode(payload []byte) (history.Record, error) {
	d := decoder{buf: payload}
	cmd, err := d.text("command")
	if err != nil {
		return history.Record{}, err
	}
	when, err := d.fixed64("when")
	if err != nil {
		return history.Record{}, err
	}
	extra, err := d.text("extra")
	if err != nil {
		return history.Record{}, err
	}
	if rest := len(d.buf) - d.pos; rest > 0 {
		return history.Record{}, fmt.Errorf("%w: %d after extra", ErrTrailingBytes, rest)
	}
	return history.Record{Command: cmd, When: when, Extra: extra}, nil
}

func validText(field, s string) error {
	if !utf8.ValidString(s) {
		return fmt.Errorf("%w: %s at byte %d", ErrInvalidUTF8, field, firstInvalid([]byte(s)))
	}
	return nil
}

func putText(buf []byte, i int, s string) int {
	binary.BigEndian.PutUint32(buf[i:i+lenPrefix], uint32(len(s)))
	i += lenPrefix
	return i + copy(buf[i:], s)
}

type decoder struct {
	buf []byte
	pos int
}

func (d *decoder) need(n uint64, field string) error {
	if uint64(len(d.buf)-d.pos) < n {
		return fmt.Errorf("%w: %s needs %d bytes at offset %d, have %d", ErrShortRecord, field, n, d.pos, len(d.buf)-d.pos)
	}
	return nil
}

func (d *decoder) text(field string) (string, error) {
	if err := d.need(lenPrefix, field+" length"); err != nil {
		return "", err
	}
	n := binary.BigEndian.Uint32(d.buf[d.pos : d.pos+lenPrefix])
	d.pos += lenPrefix
	if err := d.need(uint64(n), field); err != nil {
		return "", err
	}
	raw := d.buf[d.pos : d.pos+int(n)]
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("%w: %s at byte %d", ErrInvalidUTF8, field, d.pos+firstInvalid(raw))
	}
	d.pos += int(n)
	return string(raw), nil
}

func (d *decoder) fixed64(field string) (int64, error) {
	if err := d.need(whenLen, field); err != nil {
		return 0, err
	}
	v := int64(binary.BigEndian.Uint64(d.buf[d.pos : d.pos+whenLen]))
	d.pos += whenLen
	return v, nil
}

func firstInvalid(b []byte) int {
	for i := 0; i < len(b); {
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size <= 1 {
			return i
		}
		i += size
	}
	return len(b)
}
