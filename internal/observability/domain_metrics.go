package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	askTurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "baseline_ask_turns_total",
			Help: "Total number of ask turns by intent, verdict and cache outcome.",
		},
		[]string{"intent", "verdict", "cached"},
	)
	guardViolationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "baseline_guard_violations_total",
			Help: "Total number of guard checklist violations by check.",
		},
		[]string{"check"},
	)
	guardFixesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "baseline_guard_fixes_total",
			Help: "Total number of guard auto-corrections by check.",
		},
		[]string{"check"},
	)
	generatorCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "baseline_generator_calls_total",
			Help: "Total number of SQL generator calls by outcome.",
		},
		[]string{"outcome"},
	)
	turnDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "baseline_turn_duration_seconds",
			Help:    "End-to-end ask turn latency in seconds.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)
	queryRowsReturned = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "baseline_query_rows_returned",
			Help:    "Rows returned per executed query.",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 200},
		},
	)
	generatorDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "baseline_generator_duration_seconds",
			Help:    "SQL generator call latency in seconds.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15, 30},
		},
	)
	followUpDegradationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "baseline_followup_degradations_total",
			Help: "Follow-up questions that fell back to fresh classification.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		askTurnsTotal,
		guardViolationsTotal,
		guardFixesTotal,
		generatorCallsTotal,
		turnDurationSeconds,
		queryRowsReturned,
		generatorDurationSeconds,
		followUpDegradationsTotal,
	)
}

func ObserveAskTurn(intent, verdict string, cached bool, elapsed time.Duration) {
	cachedLabel := "false"
	if cached {
		cachedLabel = "true"
	}
	askTurnsTotal.WithLabelValues(intent, verdict, cachedLabel).Inc()
	turnDurationSeconds.Observe(elapsed.Seconds())
}

func ObserveGuardViolation(check string) {
	guardViolationsTotal.WithLabelValues(check).Inc()
}

func ObserveGuardFix(check string) {
	guardFixesTotal.WithLabelValues(check).Inc()
}

func ObserveGeneratorCall(outcome string, elapsed time.Duration) {
	generatorCallsTotal.WithLabelValues(outcome).Inc()
	generatorDurationSeconds.Observe(elapsed.Seconds())
}

func ObserveFollowUpDegradation() {
	followUpDegradationsTotal.Inc()
}

func ObserveQueryRows(rows int) {
	if rows < 0 {
		rows = 0
	}
	queryRowsReturned.Observe(float64(rows))
}
