package signal

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evdnx/gosignal/types"
)

func capture() (*[]Event, EventSink) {
	var events []Event
	return &events, EventSinkFunc(func(e Event) { events = append(events, e) })
}

func setRule(name string, when Condition, target float64) Rule {
	return Rule{Name: name, When: when, Action: Action{Kind: ActionSet, Target: target}}
}

/*
   Crossover up on the MACD pair allocates fully.
*/
func TestEvaluate_CrossoverUp(t *testing.T) {
	ev := NewEvaluator()
	b := types.Bundle{
		"macd_line":   {-1, -0.2},
		"signal_line": {-0.8, -0.3},
	}
	rules := []Rule{setRule("macd_up", Condition{Kind: KindCrossUp, A: Chan("macd_line"), B: Chan("signal_line")}, 1.0)}

	target, ok := ev.Evaluate("SPY", b, 0, rules)
	assert.True(t, ok)
	assert.Equal(t, 1.0, target)
}

/*
   An RSI threshold proposes 0.2; whether it is applied depends on the
   deadband against the holding.
*/
func TestEvaluate_ThresholdThenDeadband(t *testing.T) {
	ev := NewEvaluator()
	b := types.Bundle{"rsi": {80}}
	rules := []Rule{setRule("rsi_hot", Condition{Kind: KindAbove, A: Chan("rsi"), B: Const(70)}, 0.2)}

	target, ok := ev.Evaluate("QQQ", b, 0.25, rules)
	require.True(t, ok)
	assert.Equal(t, 0.2, target)

	dec, apply := ApplyDeadband(types.Decision{"QQQ": target}, types.Holdings{"QQQ": 0.25}, DefaultDeadband)
	assert.True(t, apply)
	assert.Equal(t, 0.2, dec["QQQ"])

	target, ok = ev.Evaluate("QQQ", b, 0.19, rules)
	require.True(t, ok)
	_, apply = ApplyDeadband(types.Decision{"QQQ": target}, types.Holdings{"QQQ": 0.19}, DefaultDeadband)
	assert.False(t, apply, "deviation of 0.01 must be withheld")
}

func TestEvaluate_NoRuleFiresKeepsHolding(t *testing.T) {
	ev := NewEvaluator()
	b := types.Bundle{"rsi": {45}}
	rules := []Rule{
		setRule("oversold", Condition{Kind: KindBelow, A: Chan("rsi"), B: Const(30)}, 1.0),
		setRule("overbought", Condition{Kind: KindAbove, A: Chan("rsi"), B: Const(70)}, 0.2),
	}
	target, ok := ev.Evaluate("SPY", b, 0.3, rules)
	assert.False(t, ok)
	assert.Equal(t, 0.3, target)
}

func TestEvaluate_LaterRuleOverrides(t *testing.T) {
	ev := NewEvaluator()
	b := types.Bundle{
		"macd_line":   {-1, -0.2},
		"signal_line": {-0.8, -0.3},
		"rsi":         {75},
	}
	rules := []Rule{
		setRule("macd_up", Condition{Kind: KindCrossUp, A: Chan("macd_line"), B: Chan("signal_line")}, 1.0),
		setRule("rsi_hot", Condition{Kind: KindAbove, A: Chan("rsi"), B: Const(70)}, 0.2),
	}
	target, ok := ev.Evaluate("SPY", b, 0, rules)
	assert.True(t, ok)
	assert.Equal(t, 0.2, target)
}

func TestEvaluate_MissingChannelSkipsRuleOnly(t *testing.T) {
	events, sink := capture()
	ev := NewEvaluator(WithSink(sink), WithName("test"))
	b := types.Bundle{"rsi": {20}}
	rules := []Rule{
		setRule("macd_up", Condition{Kind: KindCrossUp, A: Chan("macd_line"), B: Chan("signal_line")}, 1.0),
		setRule("oversold", Condition{Kind: KindBelow, A: Chan("rsi"), B: Const(30)}, 0.5),
	}

	out, _ := ev.EvaluateState(Input{Symbol: "SPY", Series: b, Rules: rules}, State{})
	assert.Equal(t, 0.5, out.Target)
	assert.Equal(t, 1, out.Skipped)
	assert.Equal(t, 1, out.Fired)

	require.Len(t, *events, 2)
	first := (*events)[0]
	assert.True(t, first.Skipped)
	assert.True(t, errors.Is(first.Err, ErrInsufficientData))
	assert.Equal(t, "test", first.Strategy)
	assert.True(t, (*events)[1].Fired)
}

func TestEvaluate_ShortSeriesIsSkipped(t *testing.T) {
	ev := NewEvaluator()
	b := types.Bundle{"macd_line": {0.5}, "signal_line": {0.1}}
	rules := []Rule{setRule("macd_up", Condition{Kind: KindCrossUp, A: Chan("macd_line"), B: Chan("signal_line")}, 1.0)}

	target, ok := ev.Evaluate("SPY", b, 0.4, rules)
	assert.False(t, ok)
	assert.Equal(t, 0.4, target)
}

func TestEvaluate_NilBundleNeverPanics(t *testing.T) {
	events, sink := capture()
	ev := NewEvaluator(WithSink(sink))
	rules := []Rule{setRule("rsi_hot", Condition{Kind: KindAbove, A: Chan("rsi"), B: Const(70)}, 0.2)}

	target, ok := ev.Evaluate("SPY", nil, 0.1, rules)
	assert.False(t, ok)
	assert.Equal(t, 0.1, target)
	require.Len(t, *events, 1)
	assert.True(t, errors.Is((*events)[0].Err, ErrInvalidSeriesShape))
}

func TestEvaluate_NeutralDefault(t *testing.T) {
	events, sink := capture()
	ev := NewEvaluator(WithSink(sink))
	rules := []Rule{setRule("rsi_cool", Condition{Kind: KindBelow, A: Chan("rsi").Or(50), B: Const(60)}, 0.7)}

	target, ok := ev.Evaluate("SPY", types.Bundle{}, 0, rules)
	assert.True(t, ok)
	assert.Equal(t, 0.7, target)
	require.Len(t, *events, 1)
	assert.True(t, (*events)[0].Substituted)
}

func TestEvaluate_NaNSampleIsInsufficient(t *testing.T) {
	events, sink := capture()
	ev := NewEvaluator(WithSink(sink))
	b := types.Bundle{"rsi": {nan()}}
	rules := []Rule{setRule("rsi_hot", Condition{Kind: KindAbove, A: Chan("rsi"), B: Const(70)}, 0.2)}

	_, ok := ev.Evaluate("SPY", b, 0, rules)
	assert.False(t, ok)
	assert.True(t, errors.Is((*events)[0].Err, ErrInsufficientData))
}

func TestEvaluate_DynamicThreshold(t *testing.T) {
	ev := NewEvaluator()
	// close - ema > 0.5 * atr; spread is carried as its own channel.
	rules := []Rule{setRule("breakout", Condition{Kind: KindAbove, A: Chan("spread"), B: Chan("atr").Scaled(0.5)}, 1.0)}

	target, ok := ev.Evaluate("SPY", types.Bundle{"spread": {1.2}, "atr": {2}}, 0, rules)
	assert.True(t, ok)
	assert.Equal(t, 1.0, target)

	_, ok = ev.Evaluate("SPY", types.Bundle{"spread": {0.9}, "atr": {2}}, 0, rules)
	assert.False(t, ok)
}

func TestEvaluate_GateBlocksAction(t *testing.T) {
	ev := NewEvaluator()
	rule := Rule{
		Name:   "slope_up_in_uptrend",
		When:   Condition{Kind: KindSlopeAbove, A: Chan("ema"), B: Const(0)},
		Gates:  []Condition{{Kind: KindAbove, A: Chan("close"), B: Chan("sma")}},
		Action: Action{Kind: ActionSet, Target: 0.8},
	}
	up := types.Bundle{"ema": {1, 2, 3}, "close": {10}, "sma": {9}}
	target, ok := ev.Evaluate("SPY", up, 0, []Rule{rule})
	assert.True(t, ok)
	assert.Equal(t, 0.8, target)

	down := types.Bundle{"ema": {1, 2, 3}, "close": {8}, "sma": {9}}
	target, ok = ev.Evaluate("SPY", down, 0, []Rule{rule})
	assert.False(t, ok)
	assert.Equal(t, 0.0, target)
}

func TestEvaluate_StepsClampToUnitRange(t *testing.T) {
	ev := NewEvaluator(WithStep(0.25))
	always := Condition{Kind: KindAlways}
	rules := []Rule{
		{Name: "up1", When: always, Action: Action{Kind: ActionIncrease}},
		{Name: "up2", When: always, Action: Action{Kind: ActionIncrease, Step: 0.5}},
	}
	target, ok := ev.Evaluate("SPY", nil, 0.5, rules)
	assert.True(t, ok)
	assert.Equal(t, 1.0, target)

	rules = []Rule{{Name: "down", When: always, Action: Action{Kind: ActionDecrease}}}
	target, _ = ev.Evaluate("SPY", nil, 0.1, rules)
	assert.Equal(t, 0.0, target)
}

func TestEvaluate_RuleScope(t *testing.T) {
	ev := NewEvaluator()
	rule := Rule{Name: "only_spy", Symbols: []string{"SPY"}, When: Condition{Kind: KindAlways}, Action: Action{Kind: ActionSet, Target: 1}}

	_, ok := ev.Evaluate("QQQ", nil, 0, []Rule{rule})
	assert.False(t, ok)
	_, ok = ev.Evaluate("SPY", nil, 0, []Rule{rule})
	assert.True(t, ok)
}

/*
   With a single sample per channel a crossover can still be detected when
   the previous cycle's values are carried in State.
*/
func TestEvaluateState_CarriesPreviousSample(t *testing.T) {
	ev := NewEvaluator()
	rules := []Rule{setRule("macd_up", Condition{Kind: KindCrossUp, A: Chan("macd_line"), B: Chan("signal_line")}, 1.0)}

	out, st := ev.EvaluateState(Input{Symbol: "SPY", Series: types.Bundle{"macd_line": {-1}, "signal_line": {-0.8}}, Rules: rules}, State{})
	assert.Equal(t, 1, out.Skipped)
	assert.Equal(t, -1.0, st.Last["macd_line"])
	assert.Equal(t, -0.8, st.Last["signal_line"])

	out, st = ev.EvaluateState(Input{Symbol: "SPY", Series: types.Bundle{"macd_line": {-0.2}, "signal_line": {-0.3}, "close": {101}}, Rules: rules}, st)
	assert.Equal(t, 1, out.Fired)
	assert.Equal(t, 1.0, out.Target)
	assert.Equal(t, 1, st.HoldingPeriod)
	assert.Equal(t, 101.0, st.EntryPrice)
	assert.Equal(t, 2, st.Cycles)
}

func TestEvaluateState_HeldForExit(t *testing.T) {
	ev := NewEvaluator()
	rules := []Rule{
		{Name: "enter", When: Condition{Kind: KindAlways}, Action: Action{Kind: ActionSet, Target: 1}},
		{Name: "time_exit", When: Condition{Kind: KindHeldFor, Window: 2}, Action: Action{Kind: ActionSet, Target: 0}},
	}
	st := State{}
	var out Outcome
	for i := 0; i < 3; i++ {
		out, st = ev.EvaluateState(Input{Symbol: "SPY", Rules: rules}, st)
	}
	// Cycles 1 and 2 hold; the third sees a holding period of 2 and exits.
	assert.Equal(t, 0.0, out.Target)
	assert.Equal(t, 0, st.HoldingPeriod)
}

func TestEvaluateState_DoesNotMutateInputState(t *testing.T) {
	ev := NewEvaluator()
	in := State{Last: map[string]float64{"rsi": 10}}
	rules := []Rule{setRule("rsi_hot", Condition{Kind: KindAbove, A: Chan("rsi"), B: Const(70)}, 0.2)}

	_, next := ev.EvaluateState(Input{Symbol: "SPY", Series: types.Bundle{"rsi": {80}}, Rules: rules}, in)
	assert.Equal(t, 10.0, in.Last["rsi"])
	assert.Equal(t, 80.0, next.Last["rsi"])
}

/*
   State operands: the entry price is unavailable until a position opens,
   the previous signal until one cycle has run.
*/
func TestEvaluateState_StateOperands(t *testing.T) {
	ev := NewEvaluator()
	stop := setRule("stop", Condition{Kind: KindBelow, A: Chan("close"), B: Chan(StateEntryPrice).Scaled(0.9)}, 0)
	enter := setRule("enter", Condition{Kind: KindAlways}, 1)

	out, st := ev.EvaluateState(Input{Symbol: "SPY", Series: types.Bundle{"close": {50}}, Rules: []Rule{stop, enter}}, State{})
	assert.Equal(t, 1, out.Skipped)
	assert.Equal(t, 1.0, out.Target)
	assert.Equal(t, 50.0, st.EntryPrice)

	out, _ = ev.EvaluateState(Input{Symbol: "SPY", Series: types.Bundle{"close": {44}}, Holding: 1, Rules: []Rule{stop}}, st)
	assert.Equal(t, 1, out.Fired)
	assert.Equal(t, 0.0, out.Target)

	// Re-enter only when the previous cycle was flat.
	reenter := setRule("reenter", Condition{Kind: KindBelow, A: Chan(StatePrevSignal), B: Const(0.5)}, 1)
	out, st = ev.EvaluateState(Input{Symbol: "SPY", Rules: []Rule{reenter}}, State{})
	assert.Equal(t, 1, out.Skipped)
	out, _ = ev.EvaluateState(Input{Symbol: "SPY", Rules: []Rule{reenter}}, st)
	assert.Equal(t, 1, out.Fired)
}
