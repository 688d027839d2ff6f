package telemetry

import (
	"log/slog"
	"sort"
)

// WindowStats holds aggregated statistics for a time window.
type WindowStats struct {
	WindowStartTick int32   `csv:"-"`
	WindowEndTick   int32   `csv:"window_end"`
	SimTimeSec      float64 `csv:"sim_time"`

	Population int `csv:"population"`
	Births     int `csv:"births"`

	ReproduceAttempts  int     `csv:"reproduce_attempts"`
	ReproduceSuccesses int     `csv:"reproduce_successes"`
	ReproduceRate      float64 `csv:"reproduce_rate"`

	// Size distribution of the current population (sampled at window end).
	SizeMean float64 `csv:"size_mean"`
	SizeP10  float64 `csv:"size_p10"`
	SizeP50  float64 `csv:"size_p50"`
	SizeP90  float64 `csv:"size_p90"`
}

// Percentile calculates the p-th percentile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// ComputeStats calculates the mean and 10th/50th/90th percentiles of a
// value sample, used for the organism size distribution.
func ComputeStats(values []float64) (mean, p10, p50, p90 float64) {
	n := len(values)
	if n == 0 {
		return 0, 0, 0, 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean = sum / float64(n)

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	p10 = Percentile(sorted, 0.10)
	p50 = Percentile(sorted, 0.50)
	p90 = Percentile(sorted, 0.90)

	return mean, p10, p50, p90
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("window_end", int(s.WindowEndTick)),
		slog.Float64("sim_time", s.SimTimeSec),
		slog.Int("population", s.Population),
		slog.Int("births", s.Births),
		slog.Int("reproduce_attempts", s.ReproduceAttempts),
		slog.Int("reproduce_successes", s.ReproduceSuccesses),
		slog.Float64("reproduce_rate", s.ReproduceRate),
		slog.Float64("size_mean", s.SizeMean),
		slog.Float64("size_p10", s.SizeP10),
		slog.Float64("size_p50", s.SizeP50),
		slog.Float64("size_p90", s.SizeP90),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats",
		"window_end", s.WindowEndTick,
		"sim_time", s.SimTimeSec,
		"population", s.Population,
		"births", s.Births,
		"reproduce_attempts", s.ReproduceAttempts,
		"reproduce_successes", s.ReproduceSuccesses,
		"reproduce_rate", s.ReproduceRate,
		"size_mean", s.SizeMean,
		"size_p10", s.SizeP10,
		"size_p50", s.SizeP50,
		"size_p90", s.SizeP90,
	)
}
