// Package capture abstracts the pixel source behind the server
// pipeline. Payloads are opaque bytes; encoding and compression of
// actual pixels live outside this module.
package capture

import "context"

// Region is a damaged rectangle in window coordinates.
type Region struct {
	X, Y int32
	W, H uint32
}

// Frame is the captured content for one region.
type Frame struct {
	Region   Region
	Encoding string
	Data     []byte
}

// Source produces frames for damaged regions.
type Source interface {
	// Grab captures the region of the window. A nil frame with nil
	// error means the region vanished and nothing should be sent.
	Grab(ctx context.Context, windowID uint32, region Region) (*Frame, error)
}
