// Package batch decides how long the server waits after a damage
// event before requesting a new capture and sending the update,
// adapting to observed network and client performance.
package batch

import (
	"sync"
	"time"

	"dev.c0redev.viewlink/internal/config"
	"dev.c0redev.viewlink/internal/stats"
)

// historySize bounds the delay histories. Small on purpose: the
// recomputation runs over these on every sample.
const historySize = 16

// Config holds one window's batching state. Owned by exactly one
// update pipeline; outside readers use Clone or GetInfo.
type Config struct {
	WID uint32

	Delay             float64 // current decision, milliseconds
	MinDelay          float64
	MaxDelay          float64
	DelayPerMegapixel float64
	Locked            bool

	LastEvent   time.Time // last damage event seen
	LastUpdated time.Time // last recomputation

	lastDelays       *ring // requested delays
	lastActualDelays *ring // observed delays
	factors          []stats.Factor

	timerMu sync.Mutex
	timer   *time.Timer
}

// NewConfig builds a Config with bounds resolved from settings:
// BATCH_MIN_DELAY (5ms, 0..1000), BATCH_MAX_DELAY (500ms, 1..15000),
// BATCH_START_DELAY (50ms, 1..1000),
// BATCH_DELAY_PER_MEGAPIXEL (25ms, 0..1000).
func NewConfig(wid uint32, settings config.Settings) *Config {
	minDelay := float64(settings.Int("BATCH_MIN_DELAY", 5, 0, 1000))
	maxDelay := float64(settings.Int("BATCH_MAX_DELAY", 500, 1, 15000))
	start := float64(settings.Int("BATCH_START_DELAY", 50, 1, 1000))
	perMP := float64(settings.Int("BATCH_DELAY_PER_MEGAPIXEL", 25, 0, 1000))
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &Config{
		WID:               wid,
		Delay:             clamp(start, minDelay, maxDelay),
		MinDelay:          minDelay,
		MaxDelay:          maxDelay,
		DelayPerMegapixel: perMP,
		lastDelays:        newRing(historySize),
		lastActualDelays:  newRing(historySize),
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// RecordDelay notes a delay the pipeline decided to use.
func (c *Config) RecordDelay(now time.Time, delay float64) {
	c.lastDelays.Append(now, delay)
	c.LastEvent = now
}

// Clone returns an independent deep snapshot. Mutating either copy
// afterwards does not affect the other.
func (c *Config) Clone() *Config {
	n := &Config{
		WID:               c.WID,
		Delay:             c.Delay,
		MinDelay:          c.MinDelay,
		MaxDelay:          c.MaxDelay,
		DelayPerMegapixel: c.DelayPerMegapixel,
		Locked:            c.Locked,
		LastEvent:         c.LastEvent,
		LastUpdated:       c.LastUpdated,
		lastDelays:        c.lastDelays.clone(),
		lastActualDelays:  c.lastActualDelays.clone(),
	}
	n.factors = append([]stats.Factor(nil), c.factors...)
	return n
}

// GetInfo returns a flat snapshot of the state for observability and
// tests. A locked config reports its frozen delay and nothing derived.
func (c *Config) GetInfo() map[string]any {
	info := map[string]any{
		"wid":                 c.WID,
		"min-delay":           c.MinDelay,
		"max-delay":           c.MaxDelay,
		"delay-per-megapixel": c.DelayPerMegapixel,
		"locked":              c.Locked,
		"delay":               c.Delay,
	}
	if c.Locked {
		return info
	}
	if vals := sampleValues(c.lastDelays); len(vals) > 0 {
		for k, v := range stats.ListStats(vals) {
			info["delays."+k] = v
		}
	}
	if vals := sampleValues(c.lastActualDelays); len(vals) > 0 {
		for k, v := range stats.ListStats(vals) {
			info["actual-delays."+k] = v
		}
	}
	for _, f := range c.factors {
		info["factor."+f.Details] = [2]int{int(100 * f.Factor), int(100 * f.Weight)}
	}
	return info
}

func sampleValues(r *ring) []float64 {
	samples := r.Values()
	out := make([]float64, 0, len(samples))
	for _, s := range samples {
		out = append(out, s.V)
	}
	return out
}

// Schedule arms the recomputation timer, replacing any pending one.
func (c *Config) Schedule(d time.Duration, fn func()) {
	c.timerMu.Lock()
	defer c.timerMu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(d, fn)
}

// Cleanup releases any scheduled timer. Idempotent; called when the
// window closes.
func (c *Config) Cleanup() {
	c.timerMu.Lock()
	defer c.timerMu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.factors = nil
}
