package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/evdnx/gosignal/testutils"
	"github.com/evdnx/gosignal/types"
)

func TestPaperPortfolio_ApplyAndHoldings(t *testing.T) {
	log := testutils.NewMockLogger()
	p := NewPaperPortfolio(10_000, log)

	if err := p.Apply(context.Background(), types.Decision{"SPY": 0.6, "QQQ": 0.4}); err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	h, err := p.Holdings(context.Background())
	if err != nil {
		t.Fatalf("holdings failed: %v", err)
	}
	if h["SPY"] != 0.6 || h["QQQ"] != 0.4 {
		t.Fatalf("unexpected holdings: %v", h)
	}
	if n := p.Notional("SPY"); n != 6000 {
		t.Fatalf("expected notional 6000, got %v", n)
	}
	if log.Count("allocation_applied") != 2 {
		t.Fatalf("expected two allocation logs, got %d", log.Count("allocation_applied"))
	}
}

func TestPaperPortfolio_PartialDecisionKeepsOthers(t *testing.T) {
	p := NewPaperPortfolio(1000, nil)
	p.Set("SPY", 0.5)
	p.Set("QQQ", 0.3)

	if err := p.Apply(context.Background(), types.Decision{"QQQ": 0.5}); err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	h, _ := p.Holdings(context.Background())
	if h["SPY"] != 0.5 || h["QQQ"] != 0.5 {
		t.Fatalf("unexpected holdings: %v", h)
	}
}

/*
   A decision that would over-allocate is rejected whole; nothing changes.
*/
func TestPaperPortfolio_RejectsOverAllocation(t *testing.T) {
	log := testutils.NewMockLogger()
	p := NewPaperPortfolio(1000, log)
	p.Set("SPY", 0.8)

	err := p.Apply(context.Background(), types.Decision{"QQQ": 0.3, "IWM": 0.1})
	if !errors.Is(err, ErrOverAllocated) {
		t.Fatalf("expected ErrOverAllocated, got %v", err)
	}
	h, _ := p.Holdings(context.Background())
	if _, ok := h["QQQ"]; ok {
		t.Fatalf("decision was partially applied: %v", h)
	}
	if log.LastMessage() != "allocation_rejected" {
		t.Fatalf("expected rejection log, got %q", log.LastMessage())
	}
	if p.Applied() != 0 {
		t.Fatalf("expected no applied decisions")
	}
}

func TestPaperPortfolio_RejectsInvalidFraction(t *testing.T) {
	p := NewPaperPortfolio(1000, nil)
	if err := p.Apply(context.Background(), types.Decision{"SPY": 1.2}); !errors.Is(err, ErrInvalidFraction) {
		t.Fatalf("expected ErrInvalidFraction, got %v", err)
	}
}

func TestPaperPortfolio_CancelledContext(t *testing.T) {
	p := NewPaperPortfolio(1000, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Apply(ctx, types.Decision{"SPY": 0.5}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if _, err := p.Holdings(ctx); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}
