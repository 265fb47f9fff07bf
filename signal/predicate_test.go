package signal

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/evdnx/gosignal/types"
)

func nan() float64 { return math.NaN() }

func TestCrossUpAndDown(t *testing.T) {
	a := types.Series{-1, -0.2}
	b := types.Series{-0.8, -0.3}
	assert.True(t, CrossUp(a, b))
	assert.False(t, CrossDown(a, b))
	assert.True(t, CrossDown(b, a))

	// Touching is not crossing.
	assert.False(t, CrossUp(types.Series{1, 2}, types.Series{1, 1}))
	assert.False(t, CrossUp(types.Series{1}, types.Series{0}))
}

func TestCrossoverAntisymmetry(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 1000; i++ {
		a := types.Series{r.Float64()*2 - 1, r.Float64()*2 - 1}
		b := types.Series{r.Float64()*2 - 1, r.Float64()*2 - 1}
		if CrossUp(a, b) && CrossDown(a, b) {
			t.Fatalf("both crossings at once for a=%v b=%v", a, b)
		}
	}
}

func TestConverging(t *testing.T) {
	// Positive gap shrinking.
	assert.True(t, Converging(types.Series{1.0, 0.6}, types.Series{0.2, 0.4}))
	// Negative gap shrinking.
	assert.True(t, Converging(types.Series{-1.0, -0.5}, types.Series{0, 0}))
	// Widening.
	assert.False(t, Converging(types.Series{0.5, 1.0}, types.Series{0, 0}))
	// Sign change is a cross, not convergence.
	assert.False(t, Converging(types.Series{0.5, -0.1}, types.Series{0, 0}))
	assert.False(t, Converging(types.Series{0.5}, types.Series{0}))
}

func TestSlope(t *testing.T) {
	s, ok := Slope(types.Series{9, 1, 2, 4}, 3)
	assert.True(t, ok)
	assert.InDelta(t, 1.5, s, 1e-12)

	_, ok = Slope(types.Series{1, 2}, 3)
	assert.False(t, ok)
	_, ok = Slope(types.Series{1, 2, 3}, 1)
	assert.False(t, ok)
}

func TestConditionCheck_SlopeWindow(t *testing.T) {
	b := types.Bundle{"ema": {5, 4, 1, 2, 3}}
	c := Condition{Kind: KindSlopeAbove, A: Chan("ema"), B: Const(0.5)}
	ok, _, err := c.check(b, State{})
	assert.NoError(t, err)
	assert.True(t, ok)

	// Over five samples the mean difference is negative.
	c.Window = 5
	ok, _, err = c.check(b, State{})
	assert.NoError(t, err)
	assert.False(t, ok)

	c.Window = 6
	_, _, err = c.check(b, State{})
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestConditionCheck_QualifiedChannel(t *testing.T) {
	b := types.Bundle{"SPY:macd_line": {0.1, 0.3}, "SPY:signal_line": {0.2, 0.2}}
	c := Condition{Kind: KindCrossUp, A: Chan("SPY:macd_line"), B: Chan("SPY:signal_line")}
	ok, _, err := c.check(b, State{})
	assert.NoError(t, err)
	assert.True(t, ok)
}
