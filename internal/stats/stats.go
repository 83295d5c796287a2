// Package stats implements the time-weighted averaging and trend
// inspection feeding the batch delay controller.
package stats

import (
	"fmt"
	"math"
	"time"
)

// Sample: one timestamped measurement. Ephemeral, appended to bounded
// histories by the owning pipeline.
type Sample struct {
	T time.Time
	V float64
}

// SizeSample records a transfer: how many bytes/pixels and how long it
// took. Used for speed averages where small records must not skew the
// result.
type SizeSample struct {
	T       time.Time
	Size    float64
	Elapsed float64
}

// Factor: one named contribution to the delay recomputation.
// Factor pulls the delay up (>1) or down (<1), Weight says how much
// this contribution matters relative to the others.
type Factor struct {
	Details string
	Factor  float64
	Weight  float64
}

// Logp is a log-scaled damping transform: grows slowly past 1 so a
// single extreme sample cannot produce a runaway adjustment.
// Logp(0)=0, Logp(1)=1.
func Logp(x float64) float64 {
	return math.Log2(1.0 + x)
}

// TimeWeightedAverage returns two decayed averages of the series at
// time now: avg decays linearly with age, recent decays with age
// squared so it is slanted much harder towards the newest samples.
// A series of identical values averages to that value under both.
// ok is false for an empty series.
func TimeWeightedAverage(samples []Sample, now time.Time) (avg, recent float64, ok bool) {
	if len(samples) == 0 {
		return 0, 0, false
	}
	var tv, tw, rv, rw float64
	for _, s := range samples {
		age := now.Sub(s.T).Seconds()
		if age < 0 {
			age = 0
		}
		w := 1.0 / (1.0 + age)
		tv += s.V * w
		tw += w
		w = 1.0 / (0.1 + age*age)
		rv += s.V * w
		rw += w
	}
	return tv / tw, rv / rw, true
}

// TimeSizeWeightedAverage is a time-weighted average where bigger
// records also weigh more, so tiny transfers do not skew a speed
// estimate. Returns averages in size units per second.
func TimeSizeWeightedAverage(samples []SizeSample, now time.Time, sizeUnit float64) (avg, recent float64, ok bool) {
	if len(samples) == 0 {
		return 0, 0, false
	}
	var sizeSum float64
	for _, s := range samples {
		sizeSum += s.Size
	}
	sizeAvg := sizeSum / float64(len(samples))
	if sizeAvg <= 0 {
		return 0, 0, false
	}
	var tv, tw, rv, rw float64
	for _, s := range samples {
		if s.Elapsed <= 0 {
			continue // invalid record
		}
		age := now.Sub(s.T).Seconds()
		if age < 0 {
			age = 0
		}
		pw := Logp(s.Size / sizeAvg)
		sizePS := math.Max(1, s.Size*sizeUnit/s.Elapsed)
		w := pw / (1.0 + age)
		tv += w * sizePS
		tw += w
		w = pw / (0.1 + age*age)
		rv += w * sizePS
		rw += w
	}
	if tw == 0 || rw == 0 {
		return 0, 0, false
	}
	return tv / tw, rv / rw, true
}

// TargetOpts tunes CalculateForTarget. Zero values resolve to the
// defaults: Aim 0.5, Div 1, Slope 0.1, Smoothing Logp, WeightMultiplier 1.
type TargetOpts struct {
	Aim              float64
	Div              float64
	Slope            float64
	Smoothing        func(float64) float64
	WeightMultiplier float64
}

func (o *TargetOpts) defaults() {
	if o.Aim <= 0 || o.Aim >= 1 {
		o.Aim = 0.5
	}
	if o.Div == 0 {
		o.Div = 1.0
	}
	if o.Slope == 0 {
		o.Slope = 0.1
	}
	if o.Smoothing == nil {
		o.Smoothing = Logp
	}
	if o.WeightMultiplier == 0 {
		o.WeightMultiplier = 1.0
	}
}

// CalculateForTarget produces a factor trying to bring the recent
// value closer to target. Aim balances how much the target matters
// versus how things compare to the average (0 = all target,
// 1 = all average).
func CalculateForTarget(msg string, target, avg, recent float64, opts TargetOpts) Factor {
	opts.defaults()
	d := opts.Div
	targetFactor := (recent / d) / (opts.Slope + target/d)
	avgFactor := (recent / d) / (opts.Slope + avg/d)
	aimedAverage := targetFactor*(1.0-opts.Aim) + avgFactor*opts.Aim
	factor := opts.Smoothing(aimedAverage)
	weight := opts.Smoothing(math.Max(0, math.Max(1.0-factor, factor-1.0))) * opts.WeightMultiplier
	details := fmt.Sprintf("%s avg=%.3f, recent=%.3f, target=%.3f, aim=%.2f, aimed avg factor=%.3f",
		msg, avg, recent, target, opts.Aim, aimedAverage)
	return Factor{Details: details, Factor: factor, Weight: weight}
}

// CalculateForAverage produces a factor from how far the recent value
// is from the average. Used for metrics with no known optimal target.
func CalculateForAverage(msg string, avg, recent float64, div, weightOffset, weightDiv float64) Factor {
	if div == 0 {
		div = 1.0
	}
	if weightDiv == 0 {
		weightDiv = 1.0
	}
	a := avg / div
	r := recent / div
	factor := Logp(r / a)
	weight := math.Max(0, math.Max(factor, 1.0/factor)-1.0+weightOffset) / weightDiv
	return Factor{Details: msg, Factor: factor, Weight: weight}
}

// QueueInspect looks at a queue size history and decides whether
// things are getting better or worse. Empty history is a neutral
// factor with zero weight, never an error: the control loop must not
// stall on missing data.
func QueueInspect(msg string, samples []Sample, now time.Time, target, div float64, smoothing func(float64) float64) Factor {
	if len(samples) == 0 {
		return Factor{Details: msg + " (empty)", Factor: 1.0, Weight: 0.0}
	}
	if target == 0 {
		target = 1.0
	}
	avg, recent, _ := TimeWeightedAverage(samples, now)
	return CalculateForTarget(msg, target, avg, recent, TargetOpts{
		Aim:       0.25,
		Div:       div,
		Slope:     1.0,
		Smoothing: smoothing,
	})
}

// ListStats summarizes a value series for observability output.
func ListStats(values []float64) map[string]float64 {
	if len(values) == 0 {
		return nil
	}
	minV, maxV := values[0], values[0]
	var sum float64
	for _, v := range values {
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
		sum += v
	}
	avg := sum / float64(len(values))
	var varSum float64
	for _, v := range values {
		varSum += (v - avg) * (v - avg)
	}
	return map[string]float64{
		"min": minV,
		"max": maxV,
		"avg": avg,
		"std": math.Sqrt(varSum / float64(len(values))),
	}
}
