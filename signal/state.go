package signal

import (
	"fmt"
	"strings"

	"github.com/evdnx/gosignal/types"
)

// State is the small amount of memory one strategy carries for one symbol
// between cycles. It is owned by the caller, passed into EvaluateState and
// replaced by the returned copy; it must never be shared by two
// concurrent evaluations.
type State struct {
	// Last holds the newest sample of every channel read in the previous
	// cycle. A crossover over a single-sample channel uses it as a[-2].
	Last map[string]float64
	// HoldingPeriod counts consecutive cycles with a non-zero target.
	HoldingPeriod int
	// EntryPrice is the close observed when the current position opened.
	EntryPrice float64
	// Signal is the previous cycle's proposed target.
	Signal float64
	Cycles int
}

// PriceChannel is read to record EntryPrice.
const PriceChannel = "close"

// Operands that read carried state instead of a channel.
const (
	StatePrefix        = "@"
	StateEntryPrice    = StatePrefix + "entry_price"
	StatePrevSignal    = StatePrefix + "prev_signal"
	StateHoldingPeriod = StatePrefix + "holding_period"
)

// IsStateChannel reports whether name refers to carried state.
func IsStateChannel(name string) bool { return strings.HasPrefix(name, StatePrefix) }

func knownStateChannel(name string) bool {
	switch name {
	case StateEntryPrice, StatePrevSignal, StateHoldingPeriod:
		return true
	}
	return false
}

// value returns the carried value behind a state operand. An entry price
// exists only while a position is open and a previous signal only after
// the first cycle.
func (s State) value(name string) (float64, error) {
	switch name {
	case StateEntryPrice:
		if s.HoldingPeriod == 0 || s.EntryPrice == 0 {
			return 0, fmt.Errorf("%w: no open position for %q", ErrInsufficientData, name)
		}
		return s.EntryPrice, nil
	case StatePrevSignal:
		if s.Cycles == 0 {
			return 0, fmt.Errorf("%w: no previous cycle for %q", ErrInsufficientData, name)
		}
		return s.Signal, nil
	case StateHoldingPeriod:
		return float64(s.HoldingPeriod), nil
	}
	return 0, fmt.Errorf("%w: unknown state operand %q", ErrInvalidSeriesShape, name)
}

// Clone deep-copies the state.
func (s State) Clone() State {
	out := s
	if s.Last != nil {
		out.Last = make(map[string]float64, len(s.Last))
		for k, v := range s.Last {
			out.Last[k] = v
		}
	}
	return out
}

// advance produces the state for the next cycle.
func (s State) advance(b types.Bundle, channels []string, target float64) State {
	next := s.Clone()
	next.Cycles++
	if next.Last == nil {
		next.Last = make(map[string]float64, len(channels))
	}
	for _, ch := range channels {
		if v, ok := b[ch].Last(1); ok && finite(v) {
			next.Last[ch] = v
		}
	}
	if target > 0 {
		if next.HoldingPeriod == 0 {
			if px, ok := b[PriceChannel].Last(1); ok && finite(px) {
				next.EntryPrice = px
			}
		}
		next.HoldingPeriod++
	} else {
		next.HoldingPeriod = 0
		next.EntryPrice = 0
	}
	next.Signal = target
	return next
}
