package batch

import (
	"time"

	"dev.c0redev.viewlink/internal/stats"
)

// ring: fixed-capacity sample history. Appends evict the oldest entry
// once full; O(1) per insert.
type ring struct {
	buf  []stats.Sample
	next int
	full bool
}

func newRing(capacity int) *ring {
	if capacity < 1 {
		capacity = 1
	}
	return &ring{buf: make([]stats.Sample, capacity)}
}

func (r *ring) Append(t time.Time, v float64) {
	r.buf[r.next] = stats.Sample{T: t, V: v}
	r.next++
	if r.next == len(r.buf) {
		r.next = 0
		r.full = true
	}
}

func (r *ring) Len() int {
	if r.full {
		return len(r.buf)
	}
	return r.next
}

// Values returns the samples oldest first, as a fresh slice.
func (r *ring) Values() []stats.Sample {
	out := make([]stats.Sample, 0, r.Len())
	if r.full {
		out = append(out, r.buf[r.next:]...)
	}
	return append(out, r.buf[:r.next]...)
}

func (r *ring) clone() *ring {
	c := &ring{buf: make([]stats.Sample, len(r.buf)), next: r.next, full: r.full}
	copy(c.buf, r.buf)
	return c
}
