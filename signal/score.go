package signal

import "github.com/evdnx/gosignal/types"

// ConfirmationOptions configures ConfirmationScore.
type ConfirmationOptions struct {
	RSIChannel    string
	MACDChannel   string
	SignalChannel string
	// NeutralRSI stands in for an interval with no usable RSI.
	NeutralRSI float64
	// MinRSI is the average RSI a symbol must exceed.
	MinRSI float64
	// MinConfirmations is the number of intervals whose MACD line must be
	// above its signal line.
	MinConfirmations int
}

func DefaultConfirmationOptions() ConfirmationOptions {
	return ConfirmationOptions{
		RSIChannel:       "rsi",
		MACDChannel:      "macd_line",
		SignalChannel:    "signal_line",
		NeutralRSI:       50,
		MinRSI:           50,
		MinConfirmations: 2,
	}
}

// Confirmation is a symbol's composite multi-interval reading.
type Confirmation struct {
	Symbol   string
	AvgRSI   float64
	Bullish  int
	Eligible bool
	// Score is AvgRSI for eligible symbols and 0 otherwise.
	Score float64
	// Missing lists intervals that had no usable RSI.
	Missing []string
}

// ConfirmationScore averages the newest RSI across intervals and counts the
// intervals with a bullish MACD. Missing data counts as neutral RSI and not
// bullish; it never fails.
func ConfirmationScore(symbol string, byInterval map[string]types.Bundle, intervals []string, opts ConfirmationOptions) Confirmation {
	c := Confirmation{Symbol: symbol}
	if len(intervals) == 0 {
		return c
	}
	sum := 0.0
	for _, iv := range intervals {
		b := byInterval[iv]
		rsi, ok := b[opts.RSIChannel].Last(1)
		if !ok || !finite(rsi) {
			rsi = opts.NeutralRSI
			c.Missing = append(c.Missing, iv)
		}
		sum += rsi
		m, ok1 := b[opts.MACDChannel].Last(1)
		s, ok2 := b[opts.SignalChannel].Last(1)
		if ok1 && ok2 && finite(m) && finite(s) && m > s {
			c.Bullish++
		}
	}
	c.AvgRSI = sum / float64(len(intervals))
	c.Eligible = c.AvgRSI > opts.MinRSI && c.Bullish >= opts.MinConfirmations
	if c.Eligible {
		c.Score = c.AvgRSI
	}
	return c
}
