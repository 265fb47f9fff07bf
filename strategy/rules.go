package strategy

import (
	"strings"
	"sync"
	"time"

	"github.com/evdnx/gosignal/config"
	"github.com/evdnx/gosignal/logger"
	"github.com/evdnx/gosignal/metrics"
	"github.com/evdnx/gosignal/risk"
	"github.com/evdnx/gosignal/signal"
	"github.com/evdnx/gosignal/types"
)

// Strategy evaluates a fixed rule list for every configured symbol on a
// single interval. Carried per-symbol state is guarded by a mutex so
// that cycles of the same strategy never overlap.
type Strategy struct {
	Cfg config.StrategyConfig
	Log logger.Logger

	eval      *signal.Evaluator
	sink      signal.EventSink
	qualified []string

	mu     sync.Mutex
	states map[string]signal.State
}

// New validates cfg and builds the strategy. Configuration errors are
// returned here and never during a cycle.
func New(cfg config.StrategyConfig, log logger.Logger, sinks ...signal.EventSink) (*Strategy, error) {
	log, err := prepare(&cfg, log)
	if err != nil {
		return nil, err
	}
	sink := newSink(log, sinks)
	s := &Strategy{
		Cfg:    cfg,
		Log:    log,
		sink:   sink,
		states: make(map[string]signal.State, len(cfg.Symbols)),
		eval: signal.NewEvaluator(
			signal.WithName(cfg.Name),
			signal.WithSink(sink),
			signal.WithStep(cfg.Step()),
		),
	}
	seen := map[string]bool{}
	for _, r := range cfg.Rules {
		for _, ch := range r.Channels() {
			if strings.Contains(ch, signal.QualifierSep) && !seen[ch] {
				seen[ch] = true
				s.qualified = append(s.qualified, ch)
			}
		}
	}
	return s, nil
}

func (s *Strategy) Name() string        { return s.Cfg.Name }
func (s *Strategy) Symbols() []string   { return append([]string(nil), s.Cfg.Symbols...) }
func (s *Strategy) Intervals() []string { return []string{s.Cfg.Interval} }

// Cycle evaluates the strategy's interval from u.
func (s *Strategy) Cycle(u Universe, holdings types.Holdings) Result {
	return s.Evaluate(u[s.Cfg.Interval], holdings)
}

// Evaluate runs every rule for every symbol, then applies the per-symbol
// cap and the rebalance deadband. It never fails; data problems are
// reported through the event sinks.
func (s *Strategy) Evaluate(bundles map[string]types.Bundle, holdings types.Holdings) Result {
	start := time.Now()
	defer func() {
		metrics.CycleDuration.WithLabelValues(s.Cfg.Name).Observe(time.Since(start).Seconds())
	}()

	res := Result{Cycle: newCycleID(), Proposed: make(types.Decision, len(s.Cfg.Symbols))}

	s.mu.Lock()
	for _, sym := range s.Cfg.Symbols {
		holding := risk.Clamp01(holdings.Of(sym))
		b := s.bundleFor(sym, bundles)
		if s.Cfg.MinBars > 0 && b.MaxLen() < s.Cfg.MinBars {
			res.Proposed[sym] = holding
			metrics.RuleSkips.WithLabelValues(s.Cfg.Name, "warmup").Inc()
			s.Log.Debug("symbol_warming_up",
				logger.String("symbol", sym),
				logger.Int("bars", b.MaxLen()),
				logger.Int("min_bars", s.Cfg.MinBars),
			)
			continue
		}
		out, next := s.eval.EvaluateState(signal.Input{
			Cycle:   res.Cycle,
			Symbol:  sym,
			Series:  b,
			Holding: holding,
			Rules:   s.Cfg.Rules,
		}, s.states[sym])
		s.states[sym] = next
		res.Proposed[sym] = risk.Cap(out.Target, s.Cfg.Cap())
		res.Outcomes = append(res.Outcomes, out)
	}
	s.mu.Unlock()

	finish(s.Cfg.Name, &s.Cfg, s.sink, s.Log, &res, holdings)
	return res
}

// bundleFor returns the symbol's own channels plus every symbol-qualified
// channel the rules reference.
func (s *Strategy) bundleFor(sym string, bundles map[string]types.Bundle) types.Bundle {
	own := bundles[sym]
	if len(s.qualified) == 0 {
		if own == nil {
			return types.Bundle{}
		}
		return own
	}
	merged := make(types.Bundle, len(own)+len(s.qualified))
	for k, v := range own {
		merged[k] = v
	}
	for _, q := range s.qualified {
		other, ch := signal.SplitChannel(q)
		if series, ok := bundles[other][ch]; ok {
			merged[q] = series
		}
	}
	return merged
}

// State returns a copy of the carried state for sym.
func (s *Strategy) State(sym string) signal.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[sym].Clone()
}

// Reset forgets all carried state.
func (s *Strategy) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = make(map[string]signal.State, len(s.Cfg.Symbols))
}
