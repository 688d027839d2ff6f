package telemetry

import (
	"math"
	"sync/atomic"
)

// Collector accumulates per-tick events within a time window and produces
// a WindowStats snapshot when the window closes. RecordBirth and
// RecordReproduceFailure are called from organism.Sphere.Step, which runs
// concurrently across the scheduler's worker pool during a tick — the
// three counters are atomics for that reason, even though ShouldFlush and
// Flush are only ever called from the single-threaded tick loop between
// ticks.
type Collector struct {
	windowDurationSec   float64
	windowDurationTicks int32
	tickDuration        float32

	windowStartTick int32

	births             atomic.Int64
	reproduceAttempts  atomic.Int64
	reproduceSuccesses atomic.Int64
}

// NewCollector creates a new stats collector.
// windowDurationSec: how long each stats window lasts in simulation seconds.
// tickDuration: seconds per tick (used for tick-to-time conversion).
func NewCollector(windowDurationSec float64, tickDuration float32) *Collector {
	// tickDuration is a float32, so the ratio can land just below a whole
	// number (1.0 / float32(0.1) is 9.99999985); the small tolerance keeps
	// that case at 10 ticks rather than truncating it to 9.
	ticksPerWindow := int32(math.Floor(windowDurationSec/float64(tickDuration) + 1e-6))
	if ticksPerWindow < 1 {
		ticksPerWindow = 1
	}

	return &Collector{
		windowDurationSec:   windowDurationSec,
		windowDurationTicks: ticksPerWindow,
		tickDuration:        tickDuration,
	}
}

// RecordBirth records a successful Reproduce call that placed a child.
func (c *Collector) RecordBirth() {
	c.births.Add(1)
	c.reproduceAttempts.Add(1)
	c.reproduceSuccesses.Add(1)
}

// RecordReproduceFailure records a Reproduce call that exhausted all five
// attempts without placing a child.
func (c *Collector) RecordReproduceFailure() {
	c.reproduceAttempts.Add(1)
}

// ShouldFlush returns true if enough ticks have passed to flush the window.
func (c *Collector) ShouldFlush(currentTick int32) bool {
	return currentTick-c.windowStartTick >= c.windowDurationTicks
}

// Flush produces a WindowStats and resets counters for the next window.
// sizes is the current population's sphere radii, used for the size mean
// and percentiles.
func (c *Collector) Flush(currentTick int32, population int, sizes []float64) WindowStats {
	births := c.births.Load()
	attempts := c.reproduceAttempts.Load()
	successes := c.reproduceSuccesses.Load()

	var successRate float64
	if attempts > 0 {
		successRate = float64(successes) / float64(attempts)
	}

	sizeMean, sizeP10, sizeP50, sizeP90 := ComputeStats(sizes)

	stats := WindowStats{
		WindowStartTick: c.windowStartTick,
		WindowEndTick:   currentTick,
		SimTimeSec:      float64(currentTick) * float64(c.tickDuration),

		Population: population,
		Births:     int(births),

		ReproduceAttempts:  int(attempts),
		ReproduceSuccesses: int(successes),
		ReproduceRate:      successRate,

		SizeMean: sizeMean,
		SizeP10:  sizeP10,
		SizeP50:  sizeP50,
		SizeP90:  sizeP90,
	}

	c.windowStartTick = currentTick
	c.births.Store(0)
	c.reproduceAttempts.Store(0)
	c.reproduceSuccesses.Store(0)

	return stats
}

// WindowDurationTicks returns the number of ticks per window.
func (c *Collector) WindowDurationTicks() int32 {
	return c.windowDurationTicks
}
