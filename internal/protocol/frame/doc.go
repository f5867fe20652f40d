// Package frame owns the message envelope: one kind byte, a big-endian u32
// payload length, then the payload. The length is the only delimiter.
package frame
