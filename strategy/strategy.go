package strategy

import (
	"time"

	"github.com/google/uuid"

	"github.com/evdnx/gosignal/config"
	"github.com/evdnx/gosignal/logger"
	"github.com/evdnx/gosignal/metrics"
	"github.com/evdnx/gosignal/signal"
	"github.com/evdnx/gosignal/types"
)

// Universe is every series a cycle may read: interval → symbol → bundle.
type Universe map[string]map[string]types.Bundle

// Engine is implemented by Strategy and Rotation.
type Engine interface {
	Name() string
	Symbols() []string
	// Intervals lists the bar intervals Cycle reads from the universe.
	Intervals() []string
	Cycle(u Universe, holdings types.Holdings) Result
}

// Result is the output of one evaluation cycle.
type Result struct {
	Cycle string
	// Proposed holds the target for every configured symbol.
	Proposed types.Decision
	// Decision is the full proposal once any symbol is outside the
	// deadband; nil when the cycle was withheld.
	Decision types.Decision
	Applied  bool
	Outcomes []signal.Outcome
}

// Build returns a Rotation when cfg configures one and a rule Strategy
// otherwise.
func Build(cfg config.StrategyConfig, log logger.Logger, sinks ...signal.EventSink) (Engine, error) {
	if cfg.Rotation != nil {
		return NewRotation(cfg, log, sinks...)
	}
	return New(cfg, log, sinks...)
}

// prepare fills defaults and validates; every constructor calls it first.
func prepare(cfg *config.StrategyConfig, log logger.Logger) (logger.Logger, error) {
	if err := config.ApplyDefaults(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNop()
	}
	return logger.With(log, logger.String("strategy", cfg.Name)), nil
}

func newSink(log logger.Logger, sinks []signal.EventSink) signal.EventSink {
	all := signal.MultiSink{signal.LogSink{Log: log}}
	for _, s := range sinks {
		if s != nil {
			all = append(all, s)
		}
	}
	return all
}

// finish applies the deadband, records metrics and emits the per-symbol
// decision events shared by both engines.
func finish(name string, cfg *config.StrategyConfig, sink signal.EventSink, log logger.Logger,
	res *Result, holdings types.Holdings) {

	for sym, v := range res.Proposed {
		metrics.TargetAllocation.WithLabelValues(name, sym).Set(v)
	}
	dec, ok := signal.ApplyDeadband(res.Proposed, holdings, cfg.Deadband())
	now := time.Now()
	if !ok {
		metrics.Decisions.WithLabelValues(name, "withheld").Inc()
		sink.Record(signal.Event{Type: signal.EventWithheld, Cycle: res.Cycle, Strategy: name, At: now})
		log.Debug("cycle_withheld", logger.String("cycle", res.Cycle), logger.Float64("deadband", cfg.Deadband()))
		return
	}
	res.Decision, res.Applied = dec, true
	metrics.Decisions.WithLabelValues(name, "applied").Inc()
	for _, sym := range dec.Symbols() {
		sink.Record(signal.Event{
			Type:     signal.EventDecision,
			Cycle:    res.Cycle,
			Strategy: name,
			Symbol:   sym,
			Value:    dec[sym],
			At:       now,
		})
	}
}

func newCycleID() string { return uuid.NewString() }
