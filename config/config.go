package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/evdnx/gosignal/signal"
)

// Intervals are the bar intervals a strategy may run on.
var Intervals = []string{"1min", "5min", "10min", "15min", "30min", "1hour", "4hour", "1day"}

// StrategyConfig holds everything needed to build a strategy. Rules are
// immutable once the strategy is constructed.
type StrategyConfig struct {
	Name     string   `yaml:"name" default:"strategy" validate:"required"`
	Symbols  []string `yaml:"symbols" validate:"required,min=1,dive,required"`
	Interval string   `yaml:"interval" default:"1day" validate:"oneof=1min 5min 10min 15min 30min 1hour 4hour 1day"`
	// Channels declares the indicator channels rules may read. Leaving it
	// empty disables the undefined-channel check.
	Channels []string      `yaml:"channels"`
	Rules    []signal.Rule `yaml:"rules"`

	RebalanceDeadband *float64 `yaml:"rebalance_deadband" default:"0.02" validate:"omitempty,gte=0,lt=1"`
	// AllocationStep is the default increase/decrease step. nil means rules
	// using those actions must carry their own step.
	AllocationStep *float64             `yaml:"allocation_step" validate:"omitempty,gt=0,lte=1"`
	PerSymbolCap   *float64             `yaml:"per_symbol_cap" validate:"omitempty,gt=0,lte=1"`
	ZeroSum        signal.ZeroSumPolicy `yaml:"zero_sum" default:"flat" validate:"oneof=flat even"`
	// MinBars keeps a symbol's holding until its longest channel has this
	// many samples.
	MinBars int `yaml:"min_bars" validate:"gte=0"`

	Rotation *RotationConfig `yaml:"rotation"`

	LogLevel string `yaml:"log_level" default:"info" validate:"oneof=debug info warn error"`
	// RecorderPath is a SQLite file for diagnostics; empty disables recording.
	RecorderPath string `yaml:"recorder_path"`
}

// RotationConfig switches a strategy to multi-interval confirmation scoring.
type RotationConfig struct {
	Intervals        []string `yaml:"intervals" validate:"required,min=1,dive,oneof=1min 5min 10min 15min 30min 1hour 4hour 1day"`
	RSIChannel       string   `yaml:"rsi_channel" default:"rsi"`
	MACDChannel      string   `yaml:"macd_channel" default:"macd_line"`
	SignalChannel    string   `yaml:"signal_channel" default:"signal_line"`
	// Pointers so that an explicit 0 survives the defaults.
	NeutralRSI       *float64 `yaml:"neutral_rsi" default:"50" validate:"omitempty,gte=0,lte=100"`
	MinRSI           *float64 `yaml:"min_rsi" default:"50" validate:"omitempty,gte=0,lte=100"`
	MinConfirmations *int     `yaml:"min_confirmations" default:"2" validate:"omitempty,gte=0"`
}

// Options converts the rotation settings for the scorer. Unset values take
// the scorer's defaults.
func (r *RotationConfig) Options() signal.ConfirmationOptions {
	opts := signal.DefaultConfirmationOptions()
	if r.RSIChannel != "" {
		opts.RSIChannel = r.RSIChannel
	}
	if r.MACDChannel != "" {
		opts.MACDChannel = r.MACDChannel
	}
	if r.SignalChannel != "" {
		opts.SignalChannel = r.SignalChannel
	}
	if r.NeutralRSI != nil {
		opts.NeutralRSI = *r.NeutralRSI
	}
	if r.MinRSI != nil {
		opts.MinRSI = *r.MinRSI
	}
	if r.MinConfirmations != nil {
		opts.MinConfirmations = *r.MinConfirmations
	}
	return opts
}

// Deadband returns the effective rebalance deadband.
func (c *StrategyConfig) Deadband() float64 {
	if c.RebalanceDeadband == nil {
		return signal.DefaultDeadband
	}
	return *c.RebalanceDeadband
}

// Step returns the default allocation step, 0 when unset.
func (c *StrategyConfig) Step() float64 {
	if c.AllocationStep == nil {
		return 0
	}
	return *c.AllocationStep
}

// Cap returns the per-symbol cap, 0 when unset.
func (c *StrategyConfig) Cap() float64 {
	if c.PerSymbolCap == nil {
		return 0
	}
	return *c.PerSymbolCap
}

// Float is a helper for the optional numeric settings.
func Float(v float64) *float64 { return &v }

// Int is Float for integer settings.
func Int(v int) *int { return &v }

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ApplyDefaults fills every zero-valued field that has a default.
func ApplyDefaults(c *StrategyConfig) error {
	if err := defaults.Set(c); err != nil {
		return fmt.Errorf("apply defaults: %w", err)
	}
	if c.Rotation != nil {
		if err := defaults.Set(c.Rotation); err != nil {
			return fmt.Errorf("apply rotation defaults: %w", err)
		}
	}
	return nil
}

// Validate checks field bounds and every rule. All problems are returned
// together; each one is a *signal.ConfigError.
func (c *StrategyConfig) Validate() error {
	var errs error
	if err := validate.Struct(c); err != nil {
		var ve validator.ValidationErrors
		if !errors.As(err, &ve) {
			return err
		}
		for _, fe := range ve {
			errs = multierr.Append(errs, &signal.ConfigError{
				Field:  strings.TrimPrefix(fe.Namespace(), "StrategyConfig."),
				Reason: reason(fe),
			})
		}
	}

	seen := map[string]bool{}
	for _, s := range c.Symbols {
		if seen[s] {
			errs = multierr.Append(errs, &signal.ConfigError{Field: "symbols", Reason: fmt.Sprintf("duplicate symbol %q", s)})
		}
		if strings.Contains(s, signal.QualifierSep) {
			errs = multierr.Append(errs, &signal.ConfigError{Field: "symbols", Reason: fmt.Sprintf("symbol %q contains %q", s, signal.QualifierSep)})
		}
		seen[s] = true
	}

	if len(c.Rules) == 0 && c.Rotation == nil {
		errs = multierr.Append(errs, &signal.ConfigError{Field: "rules", Reason: "no rules and no rotation configured"})
	}
	if len(c.Rules) > 0 && c.Rotation != nil {
		errs = multierr.Append(errs, &signal.ConfigError{Field: "rotation", Reason: "rules and rotation are mutually exclusive"})
	}
	cat := signal.Catalog{Symbols: c.Symbols, Channels: c.Channels, DefaultStep: c.Step()}
	names := map[string]bool{}
	for i, r := range c.Rules {
		if r.Name != "" && names[r.Name] {
			errs = multierr.Append(errs, &signal.ConfigError{Rule: r.Name, Field: fmt.Sprintf("rules[%d].name", i), Reason: "duplicate rule name"})
		}
		names[r.Name] = true
		errs = multierr.Append(errs, r.Validate(cat))
	}
	return errs
}

func reason(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
	return fmt.Sprintf("failed %q check (%s), got %v", fe.Tag(), fe.Param(), fe.Value())
}

// Parse decodes YAML, fills defaults and validates.
func Parse(data []byte) (*StrategyConfig, error) {
	var c StrategyConfig
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := ApplyDefaults(&c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*StrategyConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// LoadWithEnv loads envFile (if present) into the process environment,
// reads the YAML at path and applies GOSIGNAL_* overrides before
// validation.
func LoadWithEnv(path, envFile string) (*StrategyConfig, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var c StrategyConfig
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := applyEnv(&c); err != nil {
		return nil, err
	}
	if err := ApplyDefaults(&c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

func applyEnv(c *StrategyConfig) error {
	if v := os.Getenv("GOSIGNAL_SYMBOLS"); v != "" {
		c.Symbols = nil
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				c.Symbols = append(c.Symbols, s)
			}
		}
	}
	if v := os.Getenv("GOSIGNAL_INTERVAL"); v != "" {
		c.Interval = v
	}
	if v := os.Getenv("GOSIGNAL_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("GOSIGNAL_RECORDER_PATH"); v != "" {
		c.RecorderPath = v
	}
	for key, dst := range map[string]**float64{
		"GOSIGNAL_REBALANCE_DEADBAND": &c.RebalanceDeadband,
		"GOSIGNAL_ALLOCATION_STEP":    &c.AllocationStep,
		"GOSIGNAL_PER_SYMBOL_CAP":     &c.PerSymbolCap,
	} {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = Float(f)
	}
	return nil
}
