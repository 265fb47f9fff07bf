package provider

import (
	"math"

	"github.com/evdnx/gosignal/signal"
	"github.com/evdnx/gosignal/types"
)

// Lookbacks, in samples, for the window statistics.
const (
	trendSpan = 7
	slopeSpan = 9
	volSpan   = 9
)

// Window is a bounded series of recent samples. SuiteProvider keeps one
// per channel and derives the close_slope, volatility and trend channels
// from the close window.
type Window struct {
	max int
	s   types.Series
}

func NewWindow(max int) *Window {
	if max <= 0 {
		max = 16
	}
	return &Window{max: max}
}

func (w *Window) Add(v float64) {
	w.s = append(w.s, v)
	if len(w.s) > w.max {
		w.s = append(types.Series(nil), w.s.Tail(w.max)...)
	}
}

// Series returns a copy of the window, oldest first.
func (w *Window) Series() types.Series {
	return append(types.Series{}, w.s...)
}

func (w *Window) Len() int { return len(w.s) }

func (w *Window) Last() float64 {
	v, _ := w.s.Last(1)
	return v
}

// steps returns the first differences over the newest span samples.
func (w *Window) steps(span int) []float64 {
	tail := w.s.Tail(span)
	if len(tail) < 2 {
		return nil
	}
	out := make([]float64, len(tail)-1)
	for i := 1; i < len(tail); i++ {
		out[i-1] = tail[i] - tail[i-1]
	}
	return out
}

// Trend is 1 or -1 when up or down steps dominate the recent samples by at
// least two, 0 otherwise.
func (w *Window) Trend() int {
	d := w.steps(trendSpan)
	if len(d) == 0 {
		return 0
	}
	score := 0
	for _, v := range d {
		switch {
		case v > 0:
			score++
		case v < 0:
			score--
		}
	}
	need := len(d) / 3
	if need < 2 {
		need = 2
	}
	switch {
	case score >= need:
		return 1
	case score <= -need:
		return -1
	}
	return 0
}

// Slope is the mean step over the recent samples.
func (w *Window) Slope() float64 {
	k := slopeSpan
	if len(w.s) < k {
		k = len(w.s)
	}
	v, ok := signal.Slope(w.s, k)
	if !ok {
		return 0
	}
	return v
}

// Volatility is the mean absolute step over the recent samples.
func (w *Window) Volatility() float64 {
	d := w.steps(volSpan)
	if len(d) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range d {
		sum += math.Abs(v)
	}
	return sum / float64(len(d))
}
