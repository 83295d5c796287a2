package batch

import (
	"math"

	"dev.c0redev.viewlink/internal/stats"

	"github.com/sirupsen/logrus"
)

var logger logrus.FieldLogger = logrus.StandardLogger()

// Controller drives one Config's delay recomputation. Single writer:
// only the owning pipeline calls Recompute.
type Controller struct {
	Config     *Config
	strategies []Strategy
}

// NewController binds cfg to the default factor set.
func NewController(cfg *Config) *Controller {
	return &Controller{Config: cfg, strategies: DefaultStrategies()}
}

// Recompute ingests one observed delay sample (milliseconds) and
// recalculates the batch delay from the factor set. A locked config
// records the sample but keeps its frozen delay. Never returns an
// error: invalid inputs resolve to keeping the current delay so the
// flow-control loop cannot stall the session.
func (ctl *Controller) Recompute(in Inputs, actualDelay float64) {
	cfg := ctl.Config
	cfg.lastActualDelays.Append(in.Now, actualDelay)
	if cfg.Locked {
		return
	}

	factors := make([]stats.Factor, 0, len(ctl.strategies))
	for _, s := range ctl.strategies {
		if f, ok := s.Compute(cfg, in); ok {
			factors = append(factors, f)
		}
	}
	cfg.factors = factors
	ctl.updateDelay(in, factors)
}

// updateDelay combines a decayed time-weighted average of previous
// delays with the factor contributions, then applies the region-size
// component and clamps into [MinDelay, MaxDelay].
func (ctl *Controller) updateDelay(in Inputs, factors []stats.Factor) {
	cfg := ctl.Config
	current := cfg.Delay
	if current <= 0 {
		current = math.Max(1, cfg.MinDelay)
	}

	// Older values matter more when we batch a lot already.
	minRef := math.Max(1, cfg.MinDelay)
	decay := math.Max(1, stats.Logp(current/minRef)/5.0)
	var tv, tw float64
	for _, s := range cfg.lastDelays.Values() {
		age := in.Now.Sub(s.T).Seconds() / decay
		w := 1.0 / (1.0 + age*age)
		tv += clamp(s.V, cfg.MinDelay, cfg.MaxDelay) * w
		tw += w
	}
	histW := tw

	var allWeight, maxFactor float64
	for _, f := range factors {
		allWeight += f.Weight
		if f.Factor > maxFactor {
			maxFactor = f.Factor
		}
	}
	if allWeight == 0 {
		logger.WithField("wid", cfg.WID).Debug("batch: no factor weights yet")
		return
	}

	// mitigate low factors when some are really high
	factorMinLimit := math.Min(0.5, maxFactor/10.0)
	for _, f := range factors {
		actual := math.Max(factorMinLimit, f.Factor)
		target := clamp(current*actual, cfg.MinDelay, cfg.MaxDelay)
		w := math.Max(1, histW) * f.Weight / allWeight
		tv += target * w
		tw += w
	}
	newDelay := tv / tw
	if cfg.DelayPerMegapixel > 0 && in.UpdateArea > 0 {
		newDelay += cfg.DelayPerMegapixel * in.UpdateArea
	}
	cfg.Delay = clamp(newDelay, cfg.MinDelay, cfg.MaxDelay)
	cfg.LastUpdated = in.Now
}
