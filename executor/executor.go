package executor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/evdnx/gosignal/logger"
	"github.com/evdnx/gosignal/types"
)

var (
	ErrInvalidFraction = errors.New("target fraction outside [0,1]")
	ErrOverAllocated   = errors.New("allocations exceed the whole book")
)

// Sink consumes allocation decisions. A decision is applied in full or
// not at all.
type Sink interface {
	Apply(ctx context.Context, d types.Decision) error
}

// Holder supplies the current allocation per symbol.
type Holder interface {
	Holdings(ctx context.Context) (types.Holdings, error)
}

// PaperPortfolio is an in-memory book with perfect fills. It is both the
// holdings source and the execution sink for dry runs.
type PaperPortfolio struct {
	mu       sync.RWMutex
	equity   float64
	holdings types.Holdings
	applied  int
	log      logger.Logger
}

func NewPaperPortfolio(equity float64, log logger.Logger) *PaperPortfolio {
	if log == nil {
		log = logger.NewNop()
	}
	return &PaperPortfolio{
		equity:   equity,
		holdings: make(types.Holdings),
		log:      log,
	}
}

// Apply replaces the fraction of every symbol named in d. Symbols absent
// from d keep their holding.
func (p *PaperPortfolio) Apply(ctx context.Context, d types.Decision) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for sym, v := range d {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return fmt.Errorf("%s=%v: %w", sym, v, ErrInvalidFraction)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	total := 0.0
	for sym, v := range p.holdings {
		if _, ok := d[sym]; !ok {
			total += v
		}
	}
	total += d.Total()
	if total > 1+1e-9 {
		p.log.Error("allocation_rejected",
			logger.Float64("total", total),
			logger.Err(ErrOverAllocated),
		)
		return fmt.Errorf("total %.4f: %w", total, ErrOverAllocated)
	}

	for _, sym := range d.Symbols() {
		from, to := p.holdings[sym], d[sym]
		p.holdings[sym] = to
		p.log.Info("allocation_applied",
			logger.String("symbol", sym),
			logger.Float64("from", from),
			logger.Float64("to", to),
			logger.Float64("notional", to*p.equity),
		)
	}
	p.applied++
	return nil
}

// Holdings returns a copy of the current book.
func (p *PaperPortfolio) Holdings(ctx context.Context) (types.Holdings, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(types.Holdings, len(p.holdings))
	for k, v := range p.holdings {
		out[k] = v
	}
	return out, nil
}

// Set seeds a holding directly.
func (p *PaperPortfolio) Set(symbol string, fraction float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.holdings[symbol] = fraction
}

func (p *PaperPortfolio) Equity() float64 { return p.equity }

// Notional is the capital currently allocated to symbol.
func (p *PaperPortfolio) Notional(symbol string) float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.holdings[symbol] * p.equity
}

// Applied counts accepted decisions.
func (p *PaperPortfolio) Applied() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.applied
}
