package types

import (
	"math"
	"sort"
)

// Series is one indicator channel, chronological, most recent sample last.
type Series []float64

// Last returns the sample n positions from the end (Last(1) is the newest).
// ok is false when the series is too short.
func (s Series) Last(n int) (v float64, ok bool) {
	if n <= 0 || n > len(s) {
		return 0, false
	}
	return s[len(s)-n], true
}

// Tail returns the newest n samples (shares the backing array).
func (s Series) Tail(n int) Series {
	if n >= len(s) {
		return s
	}
	return s[len(s)-n:]
}

// Finite reports whether every sample is a real number.
func (s Series) Finite() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Bundle maps channel name ("macd_line", "rsi", ...) to its series.
type Bundle map[string]Series

// MaxLen is the length of the longest channel.
func (b Bundle) MaxLen() int {
	n := 0
	for _, s := range b {
		if len(s) > n {
			n = len(s)
		}
	}
	return n
}

// Clone deep-copies the bundle.
func (b Bundle) Clone() Bundle {
	out := make(Bundle, len(b))
	for k, s := range b {
		cp := make(Series, len(s))
		copy(cp, s)
		out[k] = cp
	}
	return out
}

// Holdings is the current allocation per symbol, each in [0,1].
type Holdings map[string]float64

// Of returns the holding for symbol, 0 when unknown.
func (h Holdings) Of(symbol string) float64 {
	if h == nil {
		return 0
	}
	return h[symbol]
}

// Decision is a target allocation per symbol, each in [0,1].
type Decision map[string]float64

// Symbols returns the decision's symbols in sorted order.
func (d Decision) Symbols() []string {
	out := make([]string, 0, len(d))
	for s := range d {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Total is the sum of all target fractions.
func (d Decision) Total() float64 {
	sum := 0.0
	for _, v := range d {
		sum += v
	}
	return sum
}

// Bar is a single OHLCV candle.
type Bar struct {
	High   float64
	Low    float64
	Close  float64
	Volume float64
}
