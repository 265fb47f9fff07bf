package signal

import (
	"github.com/evdnx/gosignal/risk"
	"github.com/evdnx/gosignal/types"
)

// ZeroSumPolicy decides what Aggregate returns when no symbol scored.
type ZeroSumPolicy string

const (
	// ZeroSumFlat returns zero for every symbol.
	ZeroSumFlat ZeroSumPolicy = "flat"
	// ZeroSumEven spreads the book evenly across every symbol.
	ZeroSumEven ZeroSumPolicy = "even"
)

type AggregateOptions struct {
	// Cap truncates any single fraction; zero disables it. Excess is not
	// redistributed.
	Cap     float64
	ZeroSum ZeroSumPolicy
}

// normalizeEps keeps an already-normalized set from being divided again
// because of float rounding in its sum.
const normalizeEps = 1e-12

// Aggregate turns per-symbol scores into fractions. Negative and
// non-finite scores count as zero. When the positive total exceeds 1 every
// score is divided by the total. The result always sums to at most 1 and
// is a pure function of its inputs.
func Aggregate(scores map[string]float64, opts AggregateOptions) types.Decision {
	out := make(types.Decision, len(scores))
	total := 0.0
	for sym, v := range scores {
		if !finite(v) || v < 0 {
			v = 0
		}
		out[sym] = v
		total += v
	}
	switch {
	case total == 0:
		if opts.ZeroSum == ZeroSumEven && len(out) > 0 {
			share := 1 / float64(len(out))
			for sym := range out {
				out[sym] = share
			}
		}
	case total > 1+normalizeEps:
		for sym, v := range out {
			out[sym] = v / total
		}
	}
	if opts.Cap > 0 {
		for sym, v := range out {
			out[sym] = risk.Cap(v, opts.Cap)
		}
	}
	return out
}
