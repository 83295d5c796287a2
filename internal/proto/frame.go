package proto

import (
	"io"

	"github.com/pkg/errors"
)

// Frame: one on-wire unit, 8-byte header + payload.
type Frame struct {
	Flags   byte
	Level   uint8
	Index   uint8
	Payload []byte
}

// WriteFrame writes header + payload to w. Safe for one writer at a
// time; callers serialize writes per connection.
func WriteFrame(w io.Writer, f *Frame) error {
	if len(f.Payload) > MaxPayloadSize {
		return errors.New("payload too large")
	}
	h := PackHeader(f.Flags, f.Level, f.Index, uint32(len(f.Payload)))
	if _, err := w.Write(h[:]); err != nil {
		return err
	}
	if len(f.Payload) > 0 {
		if _, err := w.Write(f.Payload); err != nil {
			return err
		}
	}
	return nil
}

// ReadFrame reads one frame; payloadBuf opt (nil = alloc).
// A header failure is a FormatError: the stream is desynced and the
// connection must close.
func ReadFrame(r io.Reader, payloadBuf []byte) (*Frame, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, err
	}
	flags, level, index, size, err := UnpackHeader(header[:])
	if err != nil {
		return nil, err
	}
	if size > MaxPayloadSize {
		return nil, FormatError("payload size exceeds limit")
	}
	var payload []byte
	if size > 0 {
		if payloadBuf != nil && cap(payloadBuf) >= int(size) {
			payload = payloadBuf[:size]
		} else {
			payload = make([]byte, size)
		}
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, err
		}
	}
	return &Frame{Flags: flags, Level: level, Index: index, Payload: payload}, nil
}
