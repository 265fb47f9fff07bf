package signal

import (
	"errors"
	"fmt"
)

// Recoverable evaluation failures. They are always wrapped with the channel
// or rule that produced them and never escape Evaluate.
var (
	ErrInsufficientData   = errors.New("insufficient data")
	ErrInvalidSeriesShape = errors.New("invalid series shape")
)

// ConfigError reports a rule that cannot be evaluated at all. It is raised
// while a strategy is being built, before any cycle runs.
type ConfigError struct {
	Rule   string
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Rule == "" {
		return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("config: rule %q: %s: %s", e.Rule, e.Field, e.Reason)
}

func configErr(rule, field, format string, args ...interface{}) error {
	return &ConfigError{Rule: rule, Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Reason maps a recoverable error to a short metrics label.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, ErrInvalidSeriesShape):
		return "invalid_shape"
	default:
		return "other"
	}
}
