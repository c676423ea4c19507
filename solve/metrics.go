package solve

import (
	"errors"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/katalvlaran/hydronet/formulation"
	"github.com/katalvlaran/hydronet/milp"
)

// Run outcome labels.
const (
	OutcomeSolved   = "solved"
	OutcomeFailed   = "failed"
	OutcomeInvalid  = "invalid"
	OutcomeCanceled = "canceled"
)

// Metrics holds the orchestrator's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	RunsTotal       *prometheus.CounterVec
	AttemptsTotal   *prometheus.CounterVec
	AttemptDuration *prometheus.HistogramVec
	BranchNodes     *prometheus.HistogramVec
	RunsInFlight    prometheus.Gauge
	FallbacksTotal  prometheus.Counter
}

// NewMetrics registers the collectors on reg, or on a fresh registry when
// reg is nil.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{registry: reg}

	m.RunsTotal = promauto.With(reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "hydronet_runs_total",
			Help: "Total number of orchestrated runs by final outcome and mode",
		},
		[]string{"outcome", "mode"},
	)
	m.AttemptsTotal = promauto.With(reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "hydronet_attempts_total",
			Help: "Total number of solve attempts by mode and solver status",
		},
		[]string{"mode", "status"},
	)
	m.AttemptDuration = promauto.With(reg).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hydronet_attempt_duration_seconds",
			Help:    "Solve attempt duration in seconds",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 30.0},
		},
		[]string{"mode"},
	)
	m.BranchNodes = promauto.With(reg).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hydronet_branch_nodes",
			Help:    "Branch-and-bound nodes explored per successful attempt",
			Buckets: []float64{1, 4, 16, 64, 256, 1024, 4096, 16384},
		},
		[]string{"mode"},
	)
	m.RunsInFlight = promauto.With(reg).NewGauge(
		prometheus.GaugeOpts{
			Name: "hydronet_runs_in_flight",
			Help: "Number of runs currently executing",
		},
	)
	m.FallbacksTotal = promauto.With(reg).NewCounter(
		prometheus.CounterOpts{
			Name: "hydronet_fallbacks_total",
			Help: "Total number of runs that fell back to absolute equity",
		},
	)

	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// recordAttempt counts one attempt; a result stopped by a solver limit is
// labelled "feasible".
func (m *Metrics) recordAttempt(mode formulation.Mode, res *formulation.Result, err error, d time.Duration) {
	if m == nil {
		return
	}
	status := StatusLabel(err)
	if err == nil && !res.Optimal {
		status = milp.StatusFeasible.String()
	}
	m.AttemptsTotal.WithLabelValues(mode.Key(), status).Inc()
	m.AttemptDuration.WithLabelValues(mode.Key()).Observe(d.Seconds())
	if err == nil {
		m.BranchNodes.WithLabelValues(mode.Key()).Observe(float64(res.SolverNodes))
	}
}

func (m *Metrics) recordRun(outcome, mode string) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(outcome, mode).Inc()
}

// StatusLabel maps an attempt error to a metric label: "optimal" for nil,
// the solver status for a *milp.SolveError, "canceled" for context errors and
// "error" otherwise.
func StatusLabel(err error) string {
	if err == nil {
		return "optimal"
	}
	var se *milp.SolveError
	if errors.As(err, &se) {
		return strings.ReplaceAll(se.Status.String(), " ", "_")
	}
	if isContextErr(err) {
		return OutcomeCanceled
	}

	return "error"
}
