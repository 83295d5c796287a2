package proto

import (
	"encoding/binary"
	"fmt"
)

// FormatError: malformed frame header. Fatal for the connection, the
// byte stream cannot be resynced.
type FormatError string

func (e FormatError) Error() string { return "frame format: " + string(e) }

// PackHeader builds the 8-byte frame header:
// magic, flags, compression level, packet index, big-endian payload size.
// Reserved flag bits are cleared.
func PackHeader(flags byte, level uint8, index uint8, payloadSize uint32) [HeaderSize]byte {
	var h [HeaderSize]byte
	h[0] = HeaderMagic
	h[1] = flags & (FlagJSON | FlagCipher | FlagYAML | FlagLZ4 | FlagBrotli | FlagNoHeader)
	h[2] = level
	h[3] = index
	binary.BigEndian.PutUint32(h[4:8], payloadSize)
	return h
}

// UnpackHeader parses a frame header. buf may be longer than HeaderSize;
// only the first 8 bytes are read. Unknown flag bits are preserved in
// the returned flags byte and ignored by payload resolution.
func UnpackHeader(buf []byte) (flags byte, level uint8, index uint8, payloadSize uint32, err error) {
	if len(buf) < HeaderSize {
		return 0, 0, 0, 0, FormatError(fmt.Sprintf("short header: %d bytes", len(buf)))
	}
	if buf[0] != HeaderMagic {
		return 0, 0, 0, 0, FormatError(fmt.Sprintf("bad magic byte 0x%02x", buf[0]))
	}
	return buf[1], buf[2], buf[3], binary.BigEndian.Uint32(buf[4:8]), nil
}
