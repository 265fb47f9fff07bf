// Package risk holds the bounded allocation arithmetic shared by the
// evaluator and the aggregator.
package risk

import "math"

// Clamp01 bounds v to [0,1]; NaN maps to 0.
func Clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Step moves current by delta and clamps the result to [0,1].
func Step(current, delta float64) float64 {
	return Clamp01(current + delta)
}

// Cap truncates v to limit. A non-positive limit disables the cap.
func Cap(v, limit float64) float64 {
	if limit <= 0 || v <= limit {
		return v
	}
	return limit
}

// Deviation is the absolute distance between a proposed and a held fraction.
func Deviation(proposed, holding float64) float64 {
	return math.Abs(proposed - holding)
}

// WithinBand reports whether a proposed fraction is close enough to the
// holding to be ignored. A small tolerance absorbs float noise so that a
// deviation of exactly band stays inside it.
func WithinBand(proposed, holding, band float64) bool {
	const eps = 1e-9
	return Deviation(proposed, holding) <= band+eps
}
