package testutils

import (
	"context"
	"sync"

	"github.com/evdnx/gosignal/signal"
	"github.com/evdnx/gosignal/types"
)

// MockSink records every decision it is asked to apply and tracks the
// resulting holdings, so it can serve as both ends of a runner.
type MockSink struct {
	mu        sync.RWMutex
	holdings  types.Holdings
	decisions []types.Decision
	// Err, when set, is returned by Apply and nothing is recorded.
	Err error
}

func NewMockSink(initial types.Holdings) *MockSink {
	h := make(types.Holdings, len(initial))
	for k, v := range initial {
		h[k] = v
	}
	return &MockSink{holdings: h}
}

func (m *MockSink) Apply(_ context.Context, d types.Decision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	cp := make(types.Decision, len(d))
	for k, v := range d {
		cp[k] = v
		m.holdings[k] = v
	}
	m.decisions = append(m.decisions, cp)
	return nil
}

func (m *MockSink) Holdings(_ context.Context) (types.Holdings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(types.Holdings, len(m.holdings))
	for k, v := range m.holdings {
		out[k] = v
	}
	return out, nil
}

// Decisions returns a copy of all applied decisions (useful for assertions).
func (m *MockSink) Decisions() []types.Decision {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.Decision, len(m.decisions))
	copy(out, m.decisions)
	return out
}

// EventRecorder is a signal.EventSink that keeps everything in memory.
type EventRecorder struct {
	mu     sync.Mutex
	events []signal.Event
}

func NewEventRecorder() *EventRecorder { return &EventRecorder{} }

func (r *EventRecorder) Record(e signal.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *EventRecorder) Events() []signal.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]signal.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Filter returns the recorded events of type t.
func (r *EventRecorder) Filter(t signal.EventType) []signal.Event {
	var out []signal.Event
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
