// Package provider supplies indicator series and holdings to strategies.
package provider

import (
	"context"
	"fmt"
	"sync"

	"github.com/evdnx/gosignal/signal"
	"github.com/evdnx/gosignal/types"
)

// Provider supplies the indicator bundle for one symbol on one interval.
type Provider interface {
	Bundle(ctx context.Context, symbol, interval string) (types.Bundle, error)
}

// ProviderFunc adapts a function.
type ProviderFunc func(ctx context.Context, symbol, interval string) (types.Bundle, error)

func (f ProviderFunc) Bundle(ctx context.Context, symbol, interval string) (types.Bundle, error) {
	return f(ctx, symbol, interval)
}

// Static serves bundles stored ahead of time. It is safe for concurrent use.
type Static struct {
	mu   sync.RWMutex
	data map[string]map[string]types.Bundle
}

func NewStatic() *Static {
	return &Static{data: make(map[string]map[string]types.Bundle)}
}

// Put stores a copy of b.
func (s *Static) Put(interval, symbol string, b types.Bundle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data[interval] == nil {
		s.data[interval] = make(map[string]types.Bundle)
	}
	s.data[interval][symbol] = b.Clone()
}

func (s *Static) Bundle(ctx context.Context, symbol, interval string) (types.Bundle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.data[interval][symbol]
	if !ok {
		return nil, fmt.Errorf("%s@%s: %w", symbol, interval, signal.ErrInsufficientData)
	}
	return b.Clone(), nil
}

// FromTuple names the members of a multi-valued indicator result, such as
// the (line, signal, histogram) triple of a MACD. A result with the wrong
// arity is reported as ErrInvalidSeriesShape.
func FromTuple(names []string, values ...types.Series) (types.Bundle, error) {
	if len(names) != len(values) {
		return nil, fmt.Errorf("%w: expected %d series, got %d", signal.ErrInvalidSeriesShape, len(names), len(values))
	}
	b := make(types.Bundle, len(names))
	for i, n := range names {
		b[n] = values[i]
	}
	return b, nil
}

// Merge combines bundles; later channels replace earlier ones.
func Merge(bundles ...types.Bundle) types.Bundle {
	out := types.Bundle{}
	for _, b := range bundles {
		for k, v := range b {
			out[k] = v
		}
	}
	return out
}
