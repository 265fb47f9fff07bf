package strategy

import (
	"github.com/evdnx/gosignal/config"
	"github.com/evdnx/gosignal/provider"
	"github.com/evdnx/gosignal/signal"
)

// Channel names used by the presets. Providers fill them under these keys.
const (
	ChClose     = "close"
	ChMACD      = "macd_line"
	ChMACDSig   = "signal_line"
	ChMACDHist  = "macd_hist"
	ChRSI       = "rsi"
	ChATR       = "atr"
	ChEMA       = "ema"
	ChEMAFast   = "ema_fast"
	ChEMASlow   = "ema_slow"
	ChSMA       = "sma"
	ChBBUpper   = "bb_upper"
	ChBBLower   = "bb_lower"
	neutralRSI  = 50
	macdMinBars = 26
)

func preset(cfg config.StrategyConfig) config.StrategyConfig {
	// Only malformed default tags can fail here.
	if err := config.ApplyDefaults(&cfg); err != nil {
		panic(err)
	}
	return cfg
}

func set(name string, when signal.Condition, target float64, gates ...signal.Condition) signal.Rule {
	return signal.Rule{Name: name, When: when, Gates: gates, Action: signal.Action{Kind: signal.ActionSet, Target: target}}
}

func cond(kind signal.Kind, a, b signal.Operand) signal.Condition {
	return signal.Condition{Kind: kind, A: a, B: b}
}

// MACDCrossover buys on a MACD/signal cross up and exits on a cross down.
// With carried state it also works when the provider only supplies the
// newest sample of each line.
func MACDCrossover(symbol string) config.StrategyConfig {
	return preset(config.StrategyConfig{
		Name:     "macd_crossover",
		Symbols:  []string{symbol},
		Interval: "1day",
		Channels: []string{ChMACD, ChMACDSig},
		Rules: []signal.Rule{
			set("macd_cross_up", cond(signal.KindCrossUp, signal.Chan(ChMACD), signal.Chan(ChMACDSig)), 1),
			set("macd_cross_down", cond(signal.KindCrossDown, signal.Chan(ChMACD), signal.Chan(ChMACDSig)), 0),
		},
	})
}

// HistogramCross goes long when the MACD histogram turns positive and
// flat when it turns negative.
func HistogramCross(symbol string) config.StrategyConfig {
	return preset(config.StrategyConfig{
		Name:     "macd_histogram",
		Symbols:  []string{symbol},
		Interval: "5min",
		Channels: []string{ChMACDHist},
		Rules: []signal.Rule{
			set("hist_turns_up", cond(signal.KindCrossUp, signal.Chan(ChMACDHist), signal.Const(0)), 1),
			set("hist_turns_down", cond(signal.KindCrossDown, signal.Chan(ChMACDHist), signal.Const(0)), 0),
		},
	})
}

// RSIBands holds half a position, buys oversold and exits overbought.
func RSIBands(symbol string) config.StrategyConfig {
	return preset(config.StrategyConfig{
		Name:     "rsi_bands",
		Symbols:  []string{symbol},
		Interval: "1day",
		Channels: []string{ChRSI, ChClose},
		MinBars:  14,
		Rules: []signal.Rule{
			set("neutral", signal.Condition{Kind: signal.KindAlways}, 0.5),
			set("oversold", cond(signal.KindBelow, signal.Chan(ChRSI), signal.Const(30)), 1),
			set("overbought", cond(signal.KindAbove, signal.Chan(ChRSI), signal.Const(70)), 0),
		},
	})
}

// MACDRSIThreshold combines deep MACD readings with RSI extremes. A missing
// RSI reads as neutral.
func MACDRSIThreshold(symbol string) config.StrategyConfig {
	rsi := signal.Chan(ChRSI).Or(neutralRSI)
	return preset(config.StrategyConfig{
		Name:     "macd_rsi_threshold",
		Symbols:  []string{symbol},
		Interval: "5min",
		Channels: []string{ChMACD, ChRSI, ChClose},
		MinBars:  macdMinBars,
		Rules: []signal.Rule{
			set("deep_oversold", cond(signal.KindBelow, signal.Chan(ChMACD), signal.Const(-0.45)), 1,
				cond(signal.KindBelow, rsi, signal.Const(40))),
			set("overheated", cond(signal.KindAbove, signal.Chan(ChMACD), signal.Const(0.75)), 0.2,
				cond(signal.KindAbove, rsi, signal.Const(70))),
		},
	})
}

// MACDHedge rotates between an index and an inverse ETF from the index's
// MACD: a converging gap moves half the book into the hedge, a cross up
// moves everything back into the index.
func MACDHedge(index, hedge string) config.StrategyConfig {
	line := signal.Chan(index + signal.QualifierSep + ChMACD)
	sig := signal.Chan(index + signal.QualifierSep + ChMACDSig)
	return preset(config.StrategyConfig{
		Name:     "macd_hedge",
		Symbols:  []string{index, hedge},
		Interval: "1day",
		Channels: []string{ChMACD, ChMACDSig},
		Rules: []signal.Rule{
			{Name: "converge_exit_index", Symbols: []string{index}, When: cond(signal.KindConverge, line, sig),
				Action: signal.Action{Kind: signal.ActionSet, Target: 0}},
			{Name: "converge_enter_hedge", Symbols: []string{hedge}, When: cond(signal.KindConverge, line, sig),
				Action: signal.Action{Kind: signal.ActionSet, Target: 0.5}},
			{Name: "cross_enter_index", Symbols: []string{index}, When: cond(signal.KindCrossUp, line, sig),
				Action: signal.Action{Kind: signal.ActionSet, Target: 1}},
			{Name: "cross_exit_hedge", Symbols: []string{hedge}, When: cond(signal.KindCrossUp, line, sig),
				Action: signal.Action{Kind: signal.ActionSet, Target: 0}},
		},
	})
}

// MovingAverageTrend is fully invested while the SMA is above the EMA and
// keeps 40% otherwise.
func MovingAverageTrend(symbol string) config.StrategyConfig {
	return preset(config.StrategyConfig{
		Name:     "ma_trend",
		Symbols:  []string{symbol},
		Interval: "1hour",
		Channels: []string{ChSMA, ChEMA},
		Rules: []signal.Rule{
			set("baseline", signal.Condition{Kind: signal.KindAlways}, 0.4),
			set("sma_over_ema", cond(signal.KindAbove, signal.Chan(ChSMA), signal.Chan(ChEMA)), 1),
		},
	})
}

// ATRBreakout enters when price climbs faster than half an ATR per bar
// and exits on the mirrored move, but only with the trend.
func ATRBreakout(symbol string) config.StrategyConfig {
	return preset(config.StrategyConfig{
		Name:     "atr_breakout",
		Symbols:  []string{symbol},
		Interval: "1hour",
		Channels: []string{ChClose, ChATR, ChEMAFast, ChEMASlow},
		Rules: []signal.Rule{
			set("breakout_up", cond(signal.KindSlopeAbove, signal.Chan(ChClose), signal.Chan(ChATR).Scaled(0.5)), 1,
				cond(signal.KindAbove, signal.Chan(ChEMAFast), signal.Chan(ChEMASlow))),
			set("breakdown", cond(signal.KindSlopeBelow, signal.Chan(ChClose), signal.Chan(ChATR).Scaled(-0.5)), 0),
		},
	})
}

// BollingerReversion buys below the lower band and sells above the upper.
func BollingerReversion(symbol string) config.StrategyConfig {
	return preset(config.StrategyConfig{
		Name:     "bollinger_reversion",
		Symbols:  []string{symbol},
		Interval: "1day",
		Channels: []string{ChClose, ChBBUpper, ChBBLower},
		Rules: []signal.Rule{
			set("below_lower_band", cond(signal.KindBelow, signal.Chan(ChClose), signal.Chan(ChBBLower)), 1),
			set("above_upper_band", cond(signal.KindAbove, signal.Chan(ChClose), signal.Chan(ChBBUpper)), 0),
		},
	})
}

// EMASlope scales in by step while the EMA rises and out while it falls.
func EMASlope(symbol string, step float64) config.StrategyConfig {
	return preset(config.StrategyConfig{
		Name:           "ema_slope",
		Symbols:        []string{symbol},
		Interval:       "1hour",
		Channels:       []string{ChEMA},
		AllocationStep: config.Float(step),
		Rules: []signal.Rule{
			{Name: "ema_rising", When: signal.Condition{Kind: signal.KindSlopeAbove, A: signal.Chan(ChEMA), B: signal.Const(0), Window: signal.DefaultSlopeWindow},
				Action: signal.Action{Kind: signal.ActionIncrease}},
			{Name: "ema_falling", When: signal.Condition{Kind: signal.KindSlopeBelow, A: signal.Chan(ChEMA), B: signal.Const(0), Window: signal.DefaultSlopeWindow},
				Action: signal.Action{Kind: signal.ActionDecrease}},
		},
	})
}

// TimedExit holds a full position after an RSI dip for at most bars cycles.
func TimedExit(symbol string, bars int) config.StrategyConfig {
	return preset(config.StrategyConfig{
		Name:     "rsi_timed_exit",
		Symbols:  []string{symbol},
		Interval: "1day",
		Channels: []string{ChRSI, ChClose},
		Rules: []signal.Rule{
			set("oversold", cond(signal.KindBelow, signal.Chan(ChRSI), signal.Const(30)), 1),
			set("time_exit", signal.Condition{Kind: signal.KindHeldFor, Window: bars}, 0),
		},
	})
}

// StopLoss buys an RSI dip and exits once the close falls more than pct
// below the price the position was opened at.
func StopLoss(symbol string, pct float64) config.StrategyConfig {
	return preset(config.StrategyConfig{
		Name:     "rsi_stop_loss",
		Symbols:  []string{symbol},
		Interval: "1day",
		Channels: []string{ChRSI, ChClose},
		Rules: []signal.Rule{
			set("oversold", cond(signal.KindBelow, signal.Chan(ChRSI), signal.Const(30)), 1),
			set("stop_loss", signal.Condition{Kind: signal.KindHeldFor, Window: 1}, 0,
				cond(signal.KindBelow, signal.Chan(ChClose), signal.Chan(signal.StateEntryPrice).Scaled(1-pct))),
		},
	})
}

// MultiIntervalRotation spreads the book across symbols whose average RSI
// over the intervals is above 50 with a bullish MACD on at least two of
// them, at most 25% each.
func MultiIntervalRotation(symbols []string, intervals ...string) config.StrategyConfig {
	if len(intervals) == 0 {
		intervals = []string{"5min", "10min", "15min"}
	}
	return preset(config.StrategyConfig{
		Name:         "multi_interval_rotation",
		Symbols:      append([]string(nil), symbols...),
		Interval:     intervals[0],
		PerSymbolCap: config.Float(0.25),
		ZeroSum:      signal.ZeroSumFlat,
		Rotation:     &config.RotationConfig{Intervals: append([]string(nil), intervals...)},
	})
}

// OscillatorReversion reads the indicator-suite channels: it buys when RSI
// crosses back above its oversold line while money flow is weak and exits
// when RSI falls back below overbought while money flow is strong.
func OscillatorReversion(symbol string) config.StrategyConfig {
	return preset(config.StrategyConfig{
		Name:     "oscillator_reversion",
		Symbols:  []string{symbol},
		Interval: "1hour",
		Channels: append([]string(nil), provider.SuiteChannels...),
		MinBars:  15,
		Rules: []signal.Rule{
			set("rsi_leaves_oversold", cond(signal.KindCrossUp, signal.Chan(provider.ChRSI), signal.Const(30)), 1,
				cond(signal.KindBelow, signal.Chan(provider.ChMFI), signal.Const(neutralRSI))),
			set("rsi_leaves_overbought", cond(signal.KindCrossDown, signal.Chan(provider.ChRSI), signal.Const(70)), 0,
				cond(signal.KindAbove, signal.Chan(provider.ChMFI), signal.Const(neutralRSI))),
		},
	})
}

// TrendComposite goes long when ADMO turns positive with positive ATSO
// momentum and an up-trending close, and flat on the mirrored setup.
func TrendComposite(symbol string) config.StrategyConfig {
	return preset(config.StrategyConfig{
		Name:     "trend_composite",
		Symbols:  []string{symbol},
		Interval: "1hour",
		Channels: append([]string(nil), provider.SuiteChannels...),
		MinBars:  15,
		Rules: []signal.Rule{
			set("trend_up", cond(signal.KindCrossUp, signal.Chan(provider.ChADMO), signal.Const(0)), 1,
				cond(signal.KindAbove, signal.Chan(provider.ChATSO), signal.Const(0)),
				cond(signal.KindAbove, signal.Chan(provider.ChTrend), signal.Const(0))),
			set("trend_down", cond(signal.KindCrossDown, signal.Chan(provider.ChADMO), signal.Const(0)), 0,
				cond(signal.KindBelow, signal.Chan(provider.ChATSO), signal.Const(0))),
		},
	})
}
