package batch

import (
	"fmt"
	"math"
	"time"

	"dev.c0redev.viewlink/internal/stats"
)

// Inputs carries the pipeline statistics one recomputation reads.
// All latencies are in seconds, delays in milliseconds.
type Inputs struct {
	Now time.Time

	// WindowArea in pixels; scales the latency targets the way a full
	// frame does. Zero means a nominal 1 megapixel.
	WindowArea float64

	// UpdateArea: pending damage region, in megapixels.
	UpdateArea float64

	DamageInLatency  []stats.Sample // damage event -> encoded
	DamageOutLatency []stats.Sample // damage event -> handed to transport
	ClientLatency    []stats.Sample // ping echo roundtrips
	MinClientLatency float64        // best roundtrip seen, seconds

	PacketQueueSizes []stats.Sample // outbound queue depth over time

	DecodeSpeed []stats.SizeSample // client-reported decode rates
}

func (in Inputs) lowLimit() float64 {
	if in.WindowArea <= 0 {
		return 1024 * 1024
	}
	return math.Max(8*8, in.WindowArea)
}

// Strategy: one named, independently computed delay adjustment.
// The set is closed and registered once so the recomputation stays
// auditable; ok is false when the strategy has no data yet.
type Strategy interface {
	Name() string
	Compute(cfg *Config, in Inputs) (stats.Factor, bool)
}

// DefaultStrategies returns the factor set in evaluation order.
func DefaultStrategies() []Strategy {
	return []Strategy{
		damageInLatencyFactor{},
		damageOutLatencyFactor{},
		clientLatencyFactor{},
		queueSizeFactor{},
		decodeSpeedFactor{},
		idleFactor{},
	}
}

// damageInLatencyFactor keeps the time from damage event to finished
// encode near a target scaled by the window size.
type damageInLatencyFactor struct{}

func (damageInLatencyFactor) Name() string { return "damage-in-latency" }

func (damageInLatencyFactor) Compute(_ *Config, in Inputs) (stats.Factor, bool) {
	avg, recent, ok := stats.TimeWeightedAverage(in.DamageInLatency, in.Now)
	if !ok {
		return stats.Factor{}, false
	}
	target := 0.010 + 0.050*in.lowLimit()/(1024.0*1024.0)
	return stats.CalculateForTarget("damage processing latency:", target, avg, recent, stats.TargetOpts{
		Aim:       0.8,
		Slope:     0.005,
		Smoothing: math.Sqrt,
	}), true
}

// damageOutLatencyFactor: as above but through to the transport hand-off.
type damageOutLatencyFactor struct{}

func (damageOutLatencyFactor) Name() string { return "damage-out-latency" }

func (damageOutLatencyFactor) Compute(_ *Config, in Inputs) (stats.Factor, bool) {
	avg, recent, ok := stats.TimeWeightedAverage(in.DamageOutLatency, in.Now)
	if !ok {
		return stats.Factor{}, false
	}
	target := 0.025 + 0.060*in.lowLimit()/(1024.0*1024.0)
	return stats.CalculateForTarget("damage send latency:", target, avg, recent, stats.TargetOpts{
		Aim:       0.8,
		Slope:     0.010,
		Smoothing: math.Sqrt,
	}), true
}

// clientLatencyFactor keeps the ping roundtrip as low as the link
// allows; it carries extra weight since it is what the user feels.
type clientLatencyFactor struct{}

func (clientLatencyFactor) Name() string { return "client-latency" }

func (clientLatencyFactor) Compute(_ *Config, in Inputs) (stats.Factor, bool) {
	avg, recent, ok := stats.TimeWeightedAverage(in.ClientLatency, in.Now)
	if !ok {
		return stats.Factor{}, false
	}
	target := 0.005
	if in.MinClientLatency > target {
		target = in.MinClientLatency
	}
	return stats.CalculateForTarget("client latency:", target, avg, recent, stats.TargetOpts{
		Aim:              0.8,
		Slope:            0.005,
		Smoothing:        math.Sqrt,
		WeightMultiplier: 4.0,
	}), true
}

// queueSizeFactor treats outbound queue growth as a congestion signal.
type queueSizeFactor struct{}

func (queueSizeFactor) Name() string { return "packet-queue-size" }

func (queueSizeFactor) Compute(_ *Config, in Inputs) (stats.Factor, bool) {
	f := stats.QueueInspect("packet queue size:", in.PacketQueueSizes, in.Now, 1.0, 1.0, math.Sqrt)
	return f, true
}

// decodeSpeedFactor compares recent client decode speed to its
// average; we have no target for how fast a client should be.
type decodeSpeedFactor struct{}

func (decodeSpeedFactor) Name() string { return "decode-speed" }

func (decodeSpeedFactor) Compute(_ *Config, in Inputs) (stats.Factor, bool) {
	avg, recent, ok := stats.TimeSizeWeightedAverage(in.DecodeSpeed, in.Now, 1000*1000)
	if !ok || avg <= 0 || recent <= 0 {
		return stats.Factor{}, false
	}
	// the calculation aims for lower values, so invert speed:
	// time to decode one megapixel
	avgCost := 1024 * 1024 / avg
	recentCost := 1024 * 1024 / recent
	msg := fmt.Sprintf("client decode speed: avg=%.1f, recent=%.1f (MPixels/s)", avg/1e6, recent/1e6)
	return stats.CalculateForAverage(msg, avgCost, recentCost, 1.0, 0.0, 1.0), true
}

// idleFactor slashes the delay when nothing has happened for a while,
// ignoring short gaps that may just be high damage latency.
type idleFactor struct{}

func (idleFactor) Name() string { return "idle" }

func (idleFactor) Compute(cfg *Config, in Inputs) (stats.Factor, bool) {
	if cfg.LastUpdated.IsZero() {
		return stats.Factor{}, false
	}
	maxLatency := 0.0
	if avg, recent, ok := stats.TimeWeightedAverage(in.DamageOutLatency, in.Now); ok {
		maxLatency = math.Max(avg, recent)
	}
	recalc := math.Max(cfg.MinDelay, cfg.Delay) / 1000.0
	ignoreTime := math.Max(maxLatency+recalc, cfg.Delay/1000.0+recalc)
	ignoreCount := 2 + ignoreTime/recalc
	elapsed := in.Now.Sub(cfg.LastUpdated).Seconds()
	skipped := elapsed / recalc
	weight := stats.Logp(math.Max(0, skipped-ignoreCount))
	msg := fmt.Sprintf("delay not updated for %.0f ms (skipped %d times)", 1000*elapsed, int(skipped))
	return stats.Factor{Details: msg, Factor: 0, Weight: weight}, true
}
