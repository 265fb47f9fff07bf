package signal

import (
	"math"
	"strings"

	"go.uber.org/multierr"
)

// Kind names a predicate over the newest samples of one or two operands.
type Kind string

const (
	KindCrossUp    Kind = "cross_up"    // a[-2] < b[-2] && a[-1] > b[-1]
	KindCrossDown  Kind = "cross_down"  // a[-2] > b[-2] && a[-1] < b[-1]
	KindConverge   Kind = "converge"    // |a-b| shrinking toward zero without changing sign
	KindAbove      Kind = "above"       // a[-1] > b[-1]
	KindBelow      Kind = "below"       // a[-1] < b[-1]
	KindSlopeAbove Kind = "slope_above" // mean first difference of a over Window > b[-1]
	KindSlopeBelow Kind = "slope_below"
	KindHeldFor    Kind = "held_for" // carried holding period >= Window
	KindAlways     Kind = "always"
)

// DefaultSlopeWindow gives two successive first differences.
const DefaultSlopeWindow = 3

// QualifierSep separates a symbol prefix from a channel name ("SPY:macd_line").
const QualifierSep = ":"

// Operand is either a constant or a (possibly scaled) channel reference.
// A channel starting with "@" reads carried state ("@entry_price"); quote
// it in YAML.
type Operand struct {
	Channel string  `yaml:"channel,omitempty"`
	Value   float64 `yaml:"value,omitempty"`
	// Scale multiplies every channel sample; 0 means 1.
	Scale float64 `yaml:"scale,omitempty"`
	// Default replaces a missing or short channel with a neutral constant.
	Default *float64 `yaml:"default,omitempty"`
}

// Chan references a channel.
func Chan(name string) Operand { return Operand{Channel: name} }

// Const is a fixed threshold.
func Const(v float64) Operand { return Operand{Value: v} }

// Scaled returns a copy multiplying the channel by f (e.g. 0.5 * atr).
func (o Operand) Scaled(f float64) Operand {
	o.Scale = f
	return o
}

// Or returns a copy that falls back to def when the channel is unusable.
func (o Operand) Or(def float64) Operand {
	o.Default = &def
	return o
}

func (o Operand) IsConst() bool { return o.Channel == "" }

func (o Operand) scale() float64 {
	if o.Scale == 0 {
		return 1
	}
	return o.Scale
}

// Condition is one predicate.
type Condition struct {
	Kind   Kind    `yaml:"kind"`
	A      Operand `yaml:"a"`
	B      Operand `yaml:"b"`
	Window int     `yaml:"window,omitempty"`
}

// ActionKind is what a firing rule does to the running target.
type ActionKind string

const (
	ActionSet      ActionKind = "set"
	ActionIncrease ActionKind = "increase"
	ActionDecrease ActionKind = "decrease"
	ActionHold     ActionKind = "hold"
)

type Action struct {
	Kind   ActionKind `yaml:"kind"`
	Target float64    `yaml:"target,omitempty"`
	// Step overrides the strategy's allocation_step for increase/decrease.
	Step float64 `yaml:"step,omitempty"`
}

// Rule is a declarative signal: when When (and every gate) holds for a
// symbol in scope, Action is applied to that symbol's running target.
type Rule struct {
	Name    string      `yaml:"name"`
	Symbols []string    `yaml:"symbols,omitempty"`
	When    Condition   `yaml:"when"`
	Gates   []Condition `yaml:"gates,omitempty"`
	Action  Action      `yaml:"action"`
}

// AppliesTo reports whether symbol is in the rule's scope. An empty scope
// means every symbol.
func (r Rule) AppliesTo(symbol string) bool {
	if len(r.Symbols) == 0 {
		return true
	}
	for _, s := range r.Symbols {
		if s == symbol {
			return true
		}
	}
	return false
}

// Channels lists every channel the rule reads, qualified names included.
// State operands are not channels and are left out.
func (r Rule) Channels() []string {
	var out []string
	seen := map[string]bool{}
	add := func(o Operand) {
		if o.Channel != "" && !IsStateChannel(o.Channel) && !seen[o.Channel] {
			seen[o.Channel] = true
			out = append(out, o.Channel)
		}
	}
	for _, c := range append([]Condition{r.When}, r.Gates...) {
		add(c.A)
		add(c.B)
	}
	return out
}

// SplitChannel separates an optional symbol qualifier from a channel name.
func SplitChannel(name string) (symbol, channel string) {
	if sym, ch, ok := strings.Cut(name, QualifierSep); ok {
		return sym, ch
	}
	return "", name
}

// Catalog is what a rule may refer to. Empty channel lists disable the
// channel check.
type Catalog struct {
	Symbols     []string
	Channels    []string
	DefaultStep float64
}

func (c Catalog) hasSymbol(s string) bool  { return contains(c.Symbols, s) }
func (c Catalog) hasChannel(s string) bool { return len(c.Channels) == 0 || contains(c.Channels, s) }

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// Validate returns every configuration problem in the rule, combined.
func (r Rule) Validate(cat Catalog) error {
	var errs error
	if strings.TrimSpace(r.Name) == "" {
		errs = multierr.Append(errs, configErr("", "name", "must not be empty"))
	}
	for _, s := range r.Symbols {
		if !cat.hasSymbol(s) {
			errs = multierr.Append(errs, configErr(r.Name, "symbols", "unknown symbol %q", s))
		}
	}
	errs = multierr.Append(errs, validateCondition(r.Name, "when", r.When, cat))
	for _, g := range r.Gates {
		errs = multierr.Append(errs, validateCondition(r.Name, "gates", g, cat))
	}
	errs = multierr.Append(errs, validateAction(r.Name, r.Action, cat.DefaultStep))
	return errs
}

func validateCondition(rule, field string, c Condition, cat Catalog) error {
	var errs error
	switch c.Kind {
	case KindAlways:
		return nil
	case KindHeldFor:
		if c.Window < 1 {
			errs = multierr.Append(errs, configErr(rule, field+".window", "held_for needs window >= 1"))
		}
		return errs
	case KindCrossUp, KindCrossDown, KindConverge, KindAbove, KindBelow:
	case KindSlopeAbove, KindSlopeBelow:
		if c.Window != 0 && c.Window < 2 {
			errs = multierr.Append(errs, configErr(rule, field+".window", "slope needs window >= 2, got %d", c.Window))
		}
	case "":
		return configErr(rule, field+".kind", "must not be empty")
	default:
		return configErr(rule, field+".kind", "unknown predicate %q", c.Kind)
	}
	if c.A.IsConst() {
		errs = multierr.Append(errs, configErr(rule, field+".a", "%s needs a channel operand", c.Kind))
	}
	errs = multierr.Append(errs, validateOperand(rule, field+".a", c.A, cat))
	errs = multierr.Append(errs, validateOperand(rule, field+".b", c.B, cat))
	return errs
}

func validateOperand(rule, field string, o Operand, cat Catalog) error {
	var errs error
	if !finite(o.Value) || !finite(o.Scale) {
		errs = multierr.Append(errs, configErr(rule, field, "non-finite constant"))
	}
	if o.Default != nil && !finite(*o.Default) {
		errs = multierr.Append(errs, configErr(rule, field+".default", "non-finite default"))
	}
	if o.IsConst() {
		return errs
	}
	if IsStateChannel(o.Channel) {
		if !knownStateChannel(o.Channel) {
			errs = multierr.Append(errs, configErr(rule, field, "unknown state operand %q", o.Channel))
		}
		return errs
	}
	sym, ch := SplitChannel(o.Channel)
	if sym != "" && !cat.hasSymbol(sym) {
		errs = multierr.Append(errs, configErr(rule, field, "channel %q qualifies unknown symbol %q", o.Channel, sym))
	}
	if ch == "" || !cat.hasChannel(ch) {
		errs = multierr.Append(errs, configErr(rule, field, "undefined channel %q", o.Channel))
	}
	return errs
}

func validateAction(rule string, a Action, defaultStep float64) error {
	switch a.Kind {
	case ActionSet:
		if a.Target < 0 || a.Target > 1 || !finite(a.Target) {
			return configErr(rule, "action.target", "must be within [0,1], got %v", a.Target)
		}
	case ActionIncrease, ActionDecrease:
		step := a.Step
		if step == 0 {
			step = defaultStep
		}
		if step <= 0 || step > 1 || !finite(step) {
			return configErr(rule, "action.step", "needs a step in (0,1] or allocation_step, got %v", step)
		}
	case ActionHold:
	case "":
		return configErr(rule, "action.kind", "must not be empty")
	default:
		return configErr(rule, "action.kind", "unknown action %q", a.Kind)
	}
	return nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
