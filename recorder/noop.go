package recorder

import "github.com/evdnx/gosignal/signal"

// NoopRecorder is used when no database is configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) Record(_ signal.Event)                  {}
func (n *NoopRecorder) RecordEvent(_ signal.Event) error       { return nil }
func (n *NoopRecorder) RecordDecision(_ *DecisionRecord) error { return nil }
func (n *NoopRecorder) Close() error                           { return nil }
