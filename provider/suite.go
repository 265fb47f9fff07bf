package provider

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/evdnx/goti"

	"github.com/evdnx/gosignal/logger"
	"github.com/evdnx/gosignal/signal"
	"github.com/evdnx/gosignal/types"
)

// Channels filled by SuiteProvider.
const (
	ChClose      = "close"
	ChRSI        = "rsi"
	ChMFI        = "mfi"
	ChADMO       = "admo"
	ChATSO       = "atso"
	ChSlope      = "close_slope"
	ChVolatility = "volatility"
	ChTrend      = "trend"
)

// SuiteChannels lists every channel a SuiteProvider bundle may carry.
var SuiteChannels = []string{ChClose, ChRSI, ChMFI, ChADMO, ChATSO, ChSlope, ChVolatility, ChTrend}

// SuiteFactory builds a fresh indicator suite for one (symbol, interval).
type SuiteFactory func() (*goti.IndicatorSuite, error)

// DefaultSuiteFactory uses the library defaults with the usual RSI and MFI
// bands.
func DefaultSuiteFactory() (*goti.IndicatorSuite, error) {
	ic := goti.DefaultConfig()
	ic.RSIOverbought = 70
	ic.RSIOversold = 30
	ic.MFIOverbought = 80
	ic.MFIOversold = 20
	return goti.NewIndicatorSuiteWithConfig(ic)
}

type feedKey struct{ symbol, interval string }

type feed struct {
	suite   *goti.IndicatorSuite
	windows map[string]*Window
}

// SuiteProvider turns raw bars into indicator bundles. Each (symbol,
// interval) pair owns a goti suite and a rolling window per channel.
// Indicators that cannot be computed yet are recorded as NaN so that
// rules reading them are skipped rather than fed stale values.
type SuiteProvider struct {
	mu      sync.Mutex
	factory SuiteFactory
	size    int
	feeds   map[feedKey]*feed
	log     logger.Logger
}

func NewSuiteProvider(factory SuiteFactory, window int, log logger.Logger) *SuiteProvider {
	if factory == nil {
		factory = DefaultSuiteFactory
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &SuiteProvider{
		factory: factory,
		size:    window,
		feeds:   make(map[feedKey]*feed),
		log:     log,
	}
}

func (p *SuiteProvider) feedFor(symbol, interval string) (*feed, error) {
	k := feedKey{symbol, interval}
	if f, ok := p.feeds[k]; ok {
		return f, nil
	}
	suite, err := p.factory()
	if err != nil {
		return nil, fmt.Errorf("build suite for %s@%s: %w", symbol, interval, err)
	}
	f := &feed{suite: suite, windows: make(map[string]*Window, len(SuiteChannels))}
	for _, ch := range SuiteChannels {
		f.windows[ch] = NewWindow(p.size)
	}
	p.feeds[k] = f
	return f, nil
}

// AddBar feeds one candle and appends the resulting indicator readings.
func (p *SuiteProvider) AddBar(symbol, interval string, bar types.Bar) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	f, err := p.feedFor(symbol, interval)
	if err != nil {
		return err
	}
	if err := f.suite.Add(bar.High, bar.Low, bar.Close, bar.Volume); err != nil {
		p.log.Warn("suite_add_error",
			logger.String("symbol", symbol),
			logger.String("interval", interval),
			logger.Err(err),
		)
		return err
	}
	closes := f.windows[ChClose]
	closes.Add(bar.Close)
	f.windows[ChRSI].Add(reading(f.suite.GetRSI().Calculate()))
	f.windows[ChMFI].Add(reading(f.suite.GetMFI().Calculate()))
	f.windows[ChADMO].Add(reading(f.suite.GetAMDO().Calculate()))
	f.windows[ChATSO].Add(reading(f.suite.GetATSO().Calculate()))
	f.windows[ChSlope].Add(closes.Slope())
	f.windows[ChVolatility].Add(closes.Volatility())
	f.windows[ChTrend].Add(float64(closes.Trend()))
	return nil
}

func reading(v float64, err error) float64 {
	if err != nil {
		return math.NaN()
	}
	return v
}

// Bundle returns a copy of every channel for the pair.
func (p *SuiteProvider) Bundle(ctx context.Context, symbol, interval string) (types.Bundle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	f, ok := p.feeds[feedKey{symbol, interval}]
	if !ok {
		return nil, fmt.Errorf("%s@%s: no bars: %w", symbol, interval, signal.ErrInsufficientData)
	}
	b := make(types.Bundle, len(f.windows))
	for ch, w := range f.windows {
		b[ch] = w.Series()
	}
	return b, nil
}
