// Package runner drives strategy cycles on a cron schedule: fetch
// holdings and indicator bundles, evaluate, apply the decision.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/evdnx/gosignal/config"
	"github.com/evdnx/gosignal/executor"
	"github.com/evdnx/gosignal/logger"
	"github.com/evdnx/gosignal/provider"
	"github.com/evdnx/gosignal/recorder"
	"github.com/evdnx/gosignal/strategy"
	"github.com/evdnx/gosignal/types"
)

var ErrUnknownInterval = errors.New("unknown interval")

// Six-field (seconds first) specs, one per supported bar interval.
var specs = map[string]string{
	"1min":  "0 * * * * *",
	"5min":  "0 */5 * * * *",
	"10min": "0 */10 * * * *",
	"15min": "0 */15 * * * *",
	"30min": "0 */30 * * * *",
	"1hour": "0 0 * * * *",
	"4hour": "0 0 */4 * * *",
	"1day":  "0 0 0 * * *",
}

// Spec returns the cron spec that fires once per bar of interval.
func Spec(interval string) (string, error) {
	s, ok := specs[interval]
	if !ok {
		return "", fmt.Errorf("%q: %w", interval, ErrUnknownInterval)
	}
	return s, nil
}

// finest returns the shortest of intervals, ordered as in config.Intervals.
func finest(intervals []string) (string, error) {
	want := make(map[string]bool, len(intervals))
	for _, iv := range intervals {
		want[iv] = true
	}
	for _, iv := range config.Intervals {
		if want[iv] {
			return iv, nil
		}
	}
	if len(intervals) == 0 {
		return "", fmt.Errorf("no intervals: %w", ErrUnknownInterval)
	}
	return "", fmt.Errorf("%q: %w", intervals[0], ErrUnknownInterval)
}

// Runner manages the cron task of one engine.
type Runner struct {
	Cron     *cron.Cron
	Engine   strategy.Engine
	Provider provider.Provider
	Holder   executor.Holder
	Sink     executor.Sink
	Recorder recorder.Recorder
	Log      logger.Logger
	// Timeout bounds a scheduled cycle; zero means no limit.
	Timeout time.Duration

	ctx context.Context
	mu  sync.Mutex
}

// New builds a runner. A nil recorder disables decision recording.
func New(ctx context.Context, eng strategy.Engine, p provider.Provider, h executor.Holder,
	sink executor.Sink, rec recorder.Recorder, log logger.Logger) *Runner {

	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Runner{
		Cron:     cron.New(cron.WithSeconds()),
		Engine:   eng,
		Provider: p,
		Holder:   h,
		Sink:     sink,
		Recorder: rec,
		Log:      logger.With(log, logger.String("strategy", eng.Name())),
		ctx:      ctx,
	}
}

// Register schedules the cycle on the engine's finest interval and returns
// the spec used.
func (r *Runner) Register() (string, error) {
	iv, err := finest(r.Engine.Intervals())
	if err != nil {
		return "", err
	}
	spec, err := Spec(iv)
	if err != nil {
		return "", err
	}
	if _, err := r.Cron.AddFunc(spec, r.scheduled); err != nil {
		return "", fmt.Errorf("register %s cycle: %w", iv, err)
	}
	r.Log.Info("cycle_registered", logger.String("interval", iv), logger.String("spec", spec))
	return spec, nil
}

func (r *Runner) Start() {
	r.Cron.Start()
	r.Log.Info("runner_started")
}

// Stop stops the scheduler and waits for a running cycle to finish.
func (r *Runner) Stop() {
	<-r.Cron.Stop().Done()
	r.Log.Info("runner_stopped")
}

func (r *Runner) scheduled() {
	ctx := r.ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	if _, err := r.RunOnce(ctx); err != nil {
		r.Log.Error("cycle_failed", logger.Err(err))
	}
}

// RunOnce executes a single cycle immediately. Bundle fetch errors skip the
// affected symbol; the engine then treats it as missing data. Holdings and
// apply errors abort the cycle.
func (r *Runner) RunOnce(ctx context.Context) (strategy.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	holdings, err := r.Holder.Holdings(ctx)
	if err != nil {
		return strategy.Result{}, fmt.Errorf("fetch holdings: %w", err)
	}

	u := make(strategy.Universe)
	for _, iv := range r.Engine.Intervals() {
		bundles := make(map[string]types.Bundle)
		for _, sym := range r.Engine.Symbols() {
			b, err := r.Provider.Bundle(ctx, sym, iv)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return strategy.Result{}, ctxErr
				}
				r.Log.Warn("bundle_unavailable",
					logger.String("symbol", sym),
					logger.String("interval", iv),
					logger.Err(err),
				)
				continue
			}
			bundles[sym] = b
		}
		u[iv] = bundles
	}

	res := r.Engine.Cycle(u, holdings)
	rec := &recorder.DecisionRecord{
		Cycle:    res.Cycle,
		Strategy: r.Engine.Name(),
		Proposed: res.Proposed,
		At:       time.Now(),
	}
	if res.Applied {
		if err := r.Sink.Apply(ctx, res.Decision); err != nil {
			r.record(rec)
			return res, fmt.Errorf("apply decision: %w", err)
		}
		rec.Applied = true
	}
	r.record(rec)
	r.Log.Info("cycle_complete",
		logger.String("cycle", res.Cycle),
		logger.Bool("applied", res.Applied),
		logger.Int("symbols", len(res.Decision)),
	)
	return res, nil
}

func (r *Runner) record(d *recorder.DecisionRecord) {
	if err := r.Recorder.RecordDecision(d); err != nil {
		r.Log.Error("record_decision_failed", logger.String("cycle", d.Cycle), logger.Err(err))
	}
}
