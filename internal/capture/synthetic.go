package capture

import (
	"context"
	"sync/atomic"
)

// Synthetic generates deterministic payloads so the binaries run
// end-to-end without a display backend. Each grab fills the region
// with a counter-derived byte, one byte per pixel.
type Synthetic struct {
	counter atomic.Uint64
}

func NewSynthetic() *Synthetic { return &Synthetic{} }

func (s *Synthetic) Grab(ctx context.Context, windowID uint32, region Region) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if region.W == 0 || region.H == 0 {
		return nil, nil
	}
	n := s.counter.Add(1)
	fill := byte(n) ^ byte(windowID)
	data := make([]byte, int(region.W)*int(region.H))
	for i := range data {
		data[i] = fill
	}
	return &Frame{Region: region, Encoding: "synthetic", Data: data}, nil
}
