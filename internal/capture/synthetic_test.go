package capture

import (
	"context"
	"testing"
)

func TestSyntheticGrab(t *testing.T) {
	src := NewSynthetic()
	frame, err := src.Grab(context.Background(), 1, Region{X: 0, Y: 0, W: 4, H: 3})
	if err != nil {
		t.Fatalf("grab: %v", err)
	}
	if frame == nil {
		t.Fatal("expected a frame")
	}
	if len(frame.Data) != 12 {
		t.Fatalf("payload size = %d, want 12", len(frame.Data))
	}
	for i, b := range frame.Data {
		if b != frame.Data[0] {
			t.Fatalf("byte %d = %d, want uniform fill %d", i, b, frame.Data[0])
		}
	}
}

func TestSyntheticEmptyRegion(t *testing.T) {
	src := NewSynthetic()
	frame, err := src.Grab(context.Background(), 1, Region{W: 0, H: 5})
	if err != nil {
		t.Fatalf("grab: %v", err)
	}
	if frame != nil {
		t.Fatal("expected nil frame for empty region")
	}
}

func TestSyntheticCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewSynthetic().Grab(ctx, 1, Region{W: 1, H: 1}); err == nil {
		t.Fatal("expected context error")
	}
}
