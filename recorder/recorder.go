// Package recorder persists evaluation diagnostics for later analysis.
package recorder

import (
	"time"

	"github.com/evdnx/gosignal/signal"
	"github.com/evdnx/gosignal/types"
)

// DecisionRecord is one cycle's proposal. Applied is true when the whole
// proposal went to the sink and false when it was withheld or rejected.
type DecisionRecord struct {
	Cycle    string
	Strategy string
	Proposed types.Decision
	Applied  bool
	At       time.Time
}

// DecisionRow is one stored (cycle, symbol) decision.
type DecisionRow struct {
	Cycle    string
	Strategy string
	Symbol   string
	Proposed float64
	Applied  bool
	At       time.Time
}

// Recorder persists diagnostics. It doubles as a signal.EventSink; Record
// never fails, write errors are logged instead.
type Recorder interface {
	signal.EventSink
	RecordEvent(e signal.Event) error
	RecordDecision(d *DecisionRecord) error
	Close() error
}
