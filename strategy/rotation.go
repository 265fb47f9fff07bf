package strategy

import (
	"time"

	"github.com/evdnx/gosignal/config"
	"github.com/evdnx/gosignal/logger"
	"github.com/evdnx/gosignal/metrics"
	"github.com/evdnx/gosignal/signal"
	"github.com/evdnx/gosignal/types"
)

// confirmationRule labels rotation events and metrics.
const confirmationRule = "multi_interval_confirmation"

// Rotation spreads the book across a basket using the multi-interval
// confirmation score. It carries no state between cycles.
type Rotation struct {
	Cfg config.StrategyConfig
	Log logger.Logger

	sink signal.EventSink
	opts signal.ConfirmationOptions
}

// NewRotation validates cfg, which must carry a rotation section.
func NewRotation(cfg config.StrategyConfig, log logger.Logger, sinks ...signal.EventSink) (*Rotation, error) {
	if cfg.Rotation == nil {
		return nil, &signal.ConfigError{Field: "rotation", Reason: "missing rotation section"}
	}
	log, err := prepare(&cfg, log)
	if err != nil {
		return nil, err
	}
	return &Rotation{
		Cfg:  cfg,
		Log:  log,
		sink: newSink(log, sinks),
		opts: cfg.Rotation.Options(),
	}, nil
}

func (r *Rotation) Name() string        { return r.Cfg.Name }
func (r *Rotation) Symbols() []string   { return append([]string(nil), r.Cfg.Symbols...) }
func (r *Rotation) Intervals() []string { return append([]string(nil), r.Cfg.Rotation.Intervals...) }

// Cycle scores every symbol across the configured intervals, normalizes
// the scores into fractions and applies the deadband.
func (r *Rotation) Cycle(u Universe, holdings types.Holdings) Result {
	start := time.Now()
	defer func() {
		metrics.CycleDuration.WithLabelValues(r.Cfg.Name).Observe(time.Since(start).Seconds())
	}()

	res := Result{Cycle: newCycleID()}
	scores := make(map[string]float64, len(r.Cfg.Symbols))
	for _, sym := range r.Cfg.Symbols {
		byInterval := make(map[string]types.Bundle, len(r.Cfg.Rotation.Intervals))
		for _, iv := range r.Cfg.Rotation.Intervals {
			if b, ok := u[iv][sym]; ok {
				byInterval[iv] = b
			}
		}
		c := signal.ConfirmationScore(sym, byInterval, r.Cfg.Rotation.Intervals, r.opts)
		scores[sym] = c.Score

		outcome := "idle"
		if c.Eligible {
			outcome = "fired"
		}
		metrics.RuleEvaluations.WithLabelValues(r.Cfg.Name, confirmationRule, outcome).Inc()
		ev := signal.Event{
			Type:     signal.EventRule,
			Cycle:    res.Cycle,
			Strategy: r.Cfg.Name,
			Symbol:   sym,
			Rule:     confirmationRule,
			Fired:    c.Eligible,
			Value:    c.Score,
			At:       time.Now(),
		}
		if len(c.Missing) > 0 {
			ev.Substituted = true
			metrics.RuleSkips.WithLabelValues(r.Cfg.Name, signal.Reason(signal.ErrInsufficientData)).Inc()
			ev.Err = signal.ErrInsufficientData
			r.Log.Warn("rotation_interval_missing",
				logger.String("symbol", sym),
				logger.Strings("intervals", c.Missing),
			)
		}
		r.sink.Record(ev)
		r.Log.Debug("rotation_score",
			logger.String("symbol", sym),
			logger.Float64("avg_rsi", c.AvgRSI),
			logger.Int("bullish", c.Bullish),
			logger.Bool("eligible", c.Eligible),
		)
	}

	res.Proposed = signal.Aggregate(scores, signal.AggregateOptions{
		Cap:     r.Cfg.Cap(),
		ZeroSum: r.Cfg.ZeroSum,
	})
	finish(r.Cfg.Name, &r.Cfg, r.sink, r.Log, &res, holdings)
	return res
}
