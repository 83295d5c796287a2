package server

import (
	"sync"
	"time"

	"dev.c0redev.viewlink/internal/batch"
	"dev.c0redev.viewlink/internal/stats"
)

// sampleLimit bounds every per-connection sample series.
const sampleLimit = 100

// tracker accumulates the latency statistics one connection feeds
// into the batch recomputation.
type tracker struct {
	mu sync.Mutex

	clientLatency    []stats.Sample
	minClientLatency float64

	damageIn  []stats.Sample
	damageOut []stats.Sample

	queueSizes  []stats.Sample
	decodeSpeed []stats.SizeSample
}

func appendBounded(s []stats.Sample, v stats.Sample) []stats.Sample {
	s = append(s, v)
	if len(s) > sampleLimit {
		s = s[len(s)-sampleLimit:]
	}
	return s
}

// RecordClientLatency ingests one ping roundtrip, in seconds.
func (t *tracker) RecordClientLatency(now time.Time, rtt float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clientLatency = appendBounded(t.clientLatency, stats.Sample{T: now, V: rtt})
	if t.minClientLatency == 0 || rtt < t.minClientLatency {
		t.minClientLatency = rtt
	}
}

// RecordDamageIn: damage event to finished capture, seconds.
func (t *tracker) RecordDamageIn(now time.Time, d float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.damageIn = appendBounded(t.damageIn, stats.Sample{T: now, V: d})
}

// RecordDamageOut: damage event to transport hand-off, seconds.
func (t *tracker) RecordDamageOut(now time.Time, d float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.damageOut = appendBounded(t.damageOut, stats.Sample{T: now, V: d})
}

// RecordQueueSize samples the outbound queue depth.
func (t *tracker) RecordQueueSize(now time.Time, size int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.queueSizes = appendBounded(t.queueSizes, stats.Sample{T: now, V: float64(size)})
}

// RecordDecode ingests a client ack: bytes decoded and how long the
// client took, for the decode-speed factor.
func (t *tracker) RecordDecode(now time.Time, size int, decodeTime float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if decodeTime <= 0 {
		return
	}
	t.decodeSpeed = append(t.decodeSpeed, stats.SizeSample{T: now, Size: float64(size), Elapsed: decodeTime})
	if len(t.decodeSpeed) > sampleLimit {
		t.decodeSpeed = t.decodeSpeed[len(t.decodeSpeed)-sampleLimit:]
	}
}

// Inputs snapshots everything a recomputation reads.
func (t *tracker) Inputs(now time.Time, windowArea, updateArea float64) batch.Inputs {
	t.mu.Lock()
	defer t.mu.Unlock()
	return batch.Inputs{
		Now:              now,
		WindowArea:       windowArea,
		UpdateArea:       updateArea,
		DamageInLatency:  append([]stats.Sample(nil), t.damageIn...),
		DamageOutLatency: append([]stats.Sample(nil), t.damageOut...),
		ClientLatency:    append([]stats.Sample(nil), t.clientLatency...),
		MinClientLatency: t.minClientLatency,
		PacketQueueSizes: append([]stats.Sample(nil), t.queueSizes...),
		DecodeSpeed:      append([]stats.SizeSample(nil), t.decodeSpeed...),
	}
}
