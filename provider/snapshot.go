package provider

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/evdnx/gosignal/types"
)

// snapshotDoc is the on-disk layout: interval → symbol → channel → samples,
// oldest first.
type snapshotDoc map[string]map[string]map[string][]float64

// ParseSnapshot decodes a YAML snapshot into a Static provider.
func ParseSnapshot(data []byte) (*Static, error) {
	var doc snapshotDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	s := NewStatic()
	for interval, symbols := range doc {
		for symbol, channels := range symbols {
			b := make(types.Bundle, len(channels))
			for ch, v := range channels {
				b[ch] = types.Series(v)
			}
			s.Put(interval, symbol, b)
		}
	}
	return s, nil
}

// Snapshot re-reads a YAML file on every call, so an external process can
// refresh indicator values between cycles.
type Snapshot struct {
	Path string
}

func (s Snapshot) Bundle(ctx context.Context, symbol, interval string) (types.Bundle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	st, err := ParseSnapshot(data)
	if err != nil {
		return nil, err
	}
	return st.Bundle(ctx, symbol, interval)
}
