// Package signal evaluates declarative rules over precomputed indicator
// series and turns the result into target allocations.
package signal

import (
	"time"

	"github.com/evdnx/gosignal/metrics"
	"github.com/evdnx/gosignal/risk"
	"github.com/evdnx/gosignal/types"
)

// Evaluator applies an ordered rule list to one symbol at a time. It holds
// no per-symbol state and is safe for concurrent use.
type Evaluator struct {
	name        string
	sink        EventSink
	defaultStep float64
	now         func() time.Time
}

type Option func(*Evaluator)

// WithName sets the strategy label on events and metrics.
func WithName(name string) Option { return func(e *Evaluator) { e.name = name } }

// WithSink routes diagnostics to s.
func WithSink(s EventSink) Option {
	return func(e *Evaluator) {
		if s != nil {
			e.sink = s
		}
	}
}

// WithStep sets the increase/decrease step used by rules without their own.
func WithStep(step float64) Option { return func(e *Evaluator) { e.defaultStep = step } }

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) Option { return func(e *Evaluator) { e.now = now } }

func NewEvaluator(opts ...Option) *Evaluator {
	e := &Evaluator{name: "default", sink: NopSink, now: time.Now}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Evaluator) Name() string { return e.name }

// Input is one symbol's evaluation request.
type Input struct {
	Cycle   string
	Symbol  string
	Series  types.Bundle
	Holding float64
	Rules   []Rule
}

// Outcome summarises one EvaluateState call.
type Outcome struct {
	Symbol  string
	Holding float64
	Target  float64
	Fired   int
	Skipped int
}

// Changed reports whether any rule fired. A cycle where nothing fires keeps
// the holding and is "no change".
func (o Outcome) Changed() bool { return o.Fired > 0 }

// Evaluate runs rules against one symbol with no carried state. It returns
// the final target and whether any rule fired; ok=false means no change.
func (e *Evaluator) Evaluate(symbol string, series types.Bundle, holding float64, rules []Rule) (float64, bool) {
	out, _ := e.EvaluateState(Input{Symbol: symbol, Series: series, Holding: holding, Rules: rules}, State{})
	return out.Target, out.Changed()
}

// EvaluateState runs rules in order against the running target, which
// starts at the holding. Later rules override earlier ones. A rule whose
// data is missing or malformed is skipped and reported; nothing is
// returned as an error.
func (e *Evaluator) EvaluateState(in Input, st State) (Outcome, State) {
	running := risk.Clamp01(in.Holding)
	out := Outcome{Symbol: in.Symbol, Holding: running, Target: running}
	var channels []string
	for _, r := range in.Rules {
		if !r.AppliesTo(in.Symbol) {
			continue
		}
		channels = append(channels, r.Channels()...)
		ev := Event{
			Type:     EventRule,
			Cycle:    in.Cycle,
			Strategy: e.name,
			Symbol:   in.Symbol,
			Rule:     r.Name,
			Kind:     r.When.Kind,
			Action:   r.Action.Kind,
			At:       e.now(),
		}
		fired, sub, err := e.test(r, in.Series, st)
		ev.Substituted = sub
		switch {
		case err != nil:
			ev.Skipped, ev.Err = true, err
			out.Skipped++
			metrics.RuleEvaluations.WithLabelValues(e.name, r.Name, "skipped").Inc()
			metrics.RuleSkips.WithLabelValues(e.name, Reason(err)).Inc()
		case fired:
			running = e.apply(r.Action, running)
			ev.Fired = true
			out.Fired++
			metrics.RuleEvaluations.WithLabelValues(e.name, r.Name, "fired").Inc()
		default:
			metrics.RuleEvaluations.WithLabelValues(e.name, r.Name, "idle").Inc()
		}
		ev.Value = running
		e.sink.Record(ev)
	}
	out.Target = running
	return out, st.advance(in.Series, channels, running)
}

// test evaluates the primary predicate and then every gate. Gates are only
// consulted once the primary predicate holds.
func (e *Evaluator) test(r Rule, b types.Bundle, st State) (fired, substituted bool, err error) {
	ok, sub, err := r.When.check(b, st)
	if err != nil || !ok {
		return false, sub, err
	}
	for _, g := range r.Gates {
		gok, gsub, gerr := g.check(b, st)
		sub = sub || gsub
		if gerr != nil {
			return false, sub, gerr
		}
		if !gok {
			return false, sub, nil
		}
	}
	return true, sub, nil
}

func (e *Evaluator) apply(a Action, running float64) float64 {
	step := a.Step
	if step == 0 {
		step = e.defaultStep
	}
	switch a.Kind {
	case ActionSet:
		return risk.Clamp01(a.Target)
	case ActionIncrease:
		return risk.Step(running, step)
	case ActionDecrease:
		return risk.Step(running, -step)
	default:
		return running
	}
}
