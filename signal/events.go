package signal

import (
	"time"

	"github.com/evdnx/gosignal/logger"
)

// EventType distinguishes per-rule reports from per-cycle outcomes.
type EventType string

const (
	EventRule     EventType = "rule"
	EventDecision EventType = "decision"
	EventWithheld EventType = "withheld"
)

// Event is one structured diagnostic. Delivery is advisory: sinks must not
// influence evaluation.
type Event struct {
	Type     EventType
	Cycle    string
	Strategy string
	Symbol   string
	Rule     string
	Kind     Kind
	Fired    bool
	Skipped  bool
	// Substituted is set when a configured default replaced missing data.
	Substituted bool
	Err         error
	Action      ActionKind
	Value       float64
	At          time.Time
}

// EventSink receives diagnostics.
type EventSink interface {
	Record(Event)
}

// EventSinkFunc adapts a function.
type EventSinkFunc func(Event)

func (f EventSinkFunc) Record(e Event) { f(e) }

// MultiSink fans an event out to every member.
type MultiSink []EventSink

func (m MultiSink) Record(e Event) {
	for _, s := range m {
		if s != nil {
			s.Record(e)
		}
	}
}

type nopSink struct{}

func (nopSink) Record(Event) {}

// NopSink drops everything.
var NopSink EventSink = nopSink{}

// LogSink writes events through a Logger. Skips are warnings, firings are
// info and idle rules are debug.
type LogSink struct {
	Log logger.Logger
}

func (s LogSink) Record(e Event) {
	if s.Log == nil {
		return
	}
	fields := []logger.Field{
		logger.String("strategy", e.Strategy),
		logger.String("cycle", e.Cycle),
		logger.String("symbol", e.Symbol),
	}
	switch e.Type {
	case EventDecision:
		s.Log.Info("decision_applied", append(fields, logger.Float64("target", e.Value))...)
	case EventWithheld:
		s.Log.Debug("decision_withheld", append(fields, logger.Float64("target", e.Value))...)
	default:
		fields = append(fields,
			logger.String("rule", e.Rule),
			logger.String("predicate", string(e.Kind)),
		)
		switch {
		case e.Skipped:
			s.Log.Warn("rule_skipped", append(fields, logger.Err(e.Err))...)
		case e.Fired:
			s.Log.Info("rule_fired", append(fields,
				logger.String("action", string(e.Action)),
				logger.Float64("value", e.Value),
				logger.Bool("substituted", e.Substituted),
			)...)
		default:
			s.Log.Debug("rule_idle", fields...)
		}
	}
}
