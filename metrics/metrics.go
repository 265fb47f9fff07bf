package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RuleEvaluations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gosignal_rule_evaluations_total",
			Help: "Rule evaluations by outcome (fired, idle, skipped).",
		},
		[]string{"strategy", "rule", "outcome"},
	)

	RuleSkips = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gosignal_rule_skips_total",
			Help: "Rules skipped because of recoverable data problems, by reason.",
		},
		[]string{"strategy", "reason"},
	)

	Decisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gosignal_decisions_total",
			Help: "Evaluation cycles by result (applied, withheld).",
		},
		[]string{"strategy", "result"},
	)

	TargetAllocation = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gosignal_target_allocation",
			Help: "Most recent target fraction per symbol.",
		},
		[]string{"strategy", "symbol"},
	)

	CycleDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gosignal_cycle_duration_seconds",
			Help:    "Wall time of a full evaluation cycle.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"strategy"},
	)
)

func init() {
	prometheus.MustRegister(RuleEvaluations, RuleSkips, Decisions, TargetAllocation, CycleDuration)
}
