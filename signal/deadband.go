package signal

import (
	"github.com/evdnx/gosignal/risk"
	"github.com/evdnx/gosignal/types"
)

// DefaultDeadband is the minimum deviation worth rebalancing for.
const DefaultDeadband = 0.02

// ApplyDeadband withholds a decision whose every symbol is within band of
// its holding. Once any symbol is outside the band the full proposal is
// returned, so a decision is applied whole or not at all.
func ApplyDeadband(proposed types.Decision, holdings types.Holdings, band float64) (types.Decision, bool) {
	if band < 0 {
		band = 0
	}
	for sym, target := range proposed {
		if risk.WithinBand(target, holdings.Of(sym), band) {
			continue
		}
		out := make(types.Decision, len(proposed))
		for k, v := range proposed {
			out[k] = v
		}
		return out, true
	}
	return nil, false
}
