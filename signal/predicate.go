package signal

import (
	"fmt"

	"github.com/evdnx/gosignal/types"
)

// window is the number of newest samples a condition reads from each
// operand. Zero means the condition does not read series at all.
func (c Condition) window() int {
	switch c.Kind {
	case KindCrossUp, KindCrossDown, KindConverge:
		return 2
	case KindAbove, KindBelow:
		return 1
	case KindSlopeAbove, KindSlopeBelow:
		if c.Window == 0 {
			return DefaultSlopeWindow
		}
		return c.Window
	default:
		return 0
	}
}

// resolved is an operand reduced to exactly n samples.
type resolved struct {
	samples     types.Series
	substituted bool
}

// resolve returns the newest n samples of the operand. A constant or a
// state operand is repeated n times. A channel with a single sample is
// extended with the value carried from the previous cycle when n is 2.
func (o Operand) resolve(b types.Bundle, n int, st State) (resolved, error) {
	if o.IsConst() {
		return resolved{samples: repeat(o.Value, n)}, nil
	}
	if IsStateChannel(o.Channel) {
		v, err := st.value(o.Channel)
		if err != nil {
			return o.fallback(n, err)
		}
		return resolved{samples: repeat(v*o.scale(), n)}, nil
	}
	last := st.Last
	if b == nil {
		return o.fallback(n, fmt.Errorf("%w: no series bundle for channel %q", ErrInvalidSeriesShape, o.Channel))
	}
	s, ok := b[o.Channel]
	if !ok {
		return o.fallback(n, fmt.Errorf("%w: channel %q absent", ErrInsufficientData, o.Channel))
	}
	if len(s) < n && n == 2 && len(s) == 1 {
		if prev, ok := last[o.Channel]; ok {
			s = types.Series{prev, s[0]}
		}
	}
	if len(s) < n {
		return o.fallback(n, fmt.Errorf("%w: channel %q has %d samples, need %d", ErrInsufficientData, o.Channel, len(s), n))
	}
	tail := s.Tail(n)
	if !tail.Finite() {
		return o.fallback(n, fmt.Errorf("%w: channel %q has non-finite samples", ErrInsufficientData, o.Channel))
	}
	k := o.scale()
	out := make(types.Series, n)
	for i, v := range tail {
		out[i] = v * k
	}
	return resolved{samples: out}, nil
}

func (o Operand) fallback(n int, err error) (resolved, error) {
	if o.Default == nil {
		return resolved{}, err
	}
	return resolved{samples: repeat(*o.Default, n), substituted: true}, nil
}

func repeat(v float64, n int) types.Series {
	out := make(types.Series, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// check evaluates the condition against the bundle. substituted is true
// when a configured neutral default stood in for missing data.
func (c Condition) check(b types.Bundle, st State) (ok, substituted bool, err error) {
	switch c.Kind {
	case KindAlways:
		return true, false, nil
	case KindHeldFor:
		return st.HoldingPeriod >= c.Window, false, nil
	}
	n := c.window()
	a, err := c.A.resolve(b, n, st)
	if err != nil {
		return false, false, err
	}
	switch c.Kind {
	case KindSlopeAbove, KindSlopeBelow:
		// The threshold is always a single latest value.
		th, err := c.B.resolve(b, 1, st)
		if err != nil {
			return false, a.substituted, err
		}
		slope := meanDiff(a.samples)
		sub := a.substituted || th.substituted
		if c.Kind == KindSlopeAbove {
			return slope > th.samples[0], sub, nil
		}
		return slope < th.samples[0], sub, nil
	}
	bb, err := c.B.resolve(b, n, st)
	if err != nil {
		return false, a.substituted, err
	}
	sub := a.substituted || bb.substituted
	x, y := a.samples, bb.samples
	switch c.Kind {
	case KindCrossUp:
		return CrossUp(x, y), sub, nil
	case KindCrossDown:
		return CrossDown(x, y), sub, nil
	case KindConverge:
		return Converging(x, y), sub, nil
	case KindAbove:
		return x[0] > y[0], sub, nil
	case KindBelow:
		return x[0] < y[0], sub, nil
	}
	return false, sub, fmt.Errorf("unknown predicate %q", c.Kind)
}

// CrossUp reports a[-2] < b[-2] && a[-1] > b[-1]. Both series need at
// least two samples; shorter input never crosses.
func CrossUp(a, b types.Series) bool {
	a0, ok1 := a.Last(2)
	b0, ok2 := b.Last(2)
	a1, _ := a.Last(1)
	b1, _ := b.Last(1)
	return ok1 && ok2 && a0 < b0 && a1 > b1
}

// CrossDown reports a[-2] > b[-2] && a[-1] < b[-1].
func CrossDown(a, b types.Series) bool {
	a0, ok1 := a.Last(2)
	b0, ok2 := b.Last(2)
	a1, _ := a.Last(1)
	b1, _ := b.Last(1)
	return ok1 && ok2 && a0 > b0 && a1 < b1
}

// Converging reports that the gap a-b is shrinking toward zero without
// changing sign, from above or from below.
func Converging(a, b types.Series) bool {
	a0, ok1 := a.Last(2)
	b0, ok2 := b.Last(2)
	if !ok1 || !ok2 {
		return false
	}
	a1, _ := a.Last(1)
	b1, _ := b.Last(1)
	prev, cur := a0-b0, a1-b1
	return (cur > 0 && prev > cur) || (cur < 0 && prev < cur)
}

// Slope is the mean first difference over the newest k samples.
func Slope(s types.Series, k int) (float64, bool) {
	if k < 2 || len(s) < k {
		return 0, false
	}
	return meanDiff(s.Tail(k)), true
}

func meanDiff(s types.Series) float64 {
	if len(s) < 2 {
		return 0
	}
	sum := 0.0
	for i := 1; i < len(s); i++ {
		sum += s[i] - s[i-1]
	}
	return sum / float64(len(s)-1)
}
