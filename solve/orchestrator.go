// Package solve runs the two-mode solving strategy over a network:
// proportional equity first, absolute equity as the fallback, and an
// AggregateFailure when both fail.
//
// The run is an explicit state machine:
//
//	TryProportional ──ok──▶ Solved
//	       │ fail
//	       ▼
//	TryAbsolute ─────ok──▶ Solved
//	       │ fail
//	       ▼
//	    Failed
//
// Each attempt builds a fresh model. There are no retries and no partial
// results. Context cancellation aborts the run and is returned unchanged.
//
// Orchestrator.Run blocks; Runner executes runs on an ants goroutine pool for
// callers that must stay responsive.
package solve

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/katalvlaran/hydronet/diagnostics"
	"github.com/katalvlaran/hydronet/flow"
	"github.com/katalvlaran/hydronet/formulation"
	"github.com/katalvlaran/hydronet/milp"
	"github.com/katalvlaran/hydronet/network"
)

// State is a step of the run state machine.
type State uint8

const (
	StateTryProportional State = iota
	StateTryAbsolute
	StateSolved
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateTryProportional:
		return "try-proportional"
	case StateTryAbsolute:
		return "try-absolute"
	case StateSolved:
		return "solved"
	default:
		return "failed"
	}
}

// MarshalText encodes the state name.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText is the inverse of MarshalText.
func (s *State) UnmarshalText(b []byte) error {
	for _, v := range [...]State{StateTryProportional, StateTryAbsolute, StateSolved, StateFailed} {
		if v.String() == string(b) {
			*s = v
			return nil
		}
	}

	return fmt.Errorf("solve: unknown state %q", b)
}

// Attempt records one mode's try.
type Attempt struct {
	Mode     formulation.Mode `json:"mode"`
	Err      error            `json:"-"`
	Error    string           `json:"error,omitempty"`
	Duration time.Duration    `json:"duration"`
}

// Outcome is everything a run produced. Result is set only in StateSolved.
type Outcome struct {
	RunID     string                `json:"run_id"`
	State     State                 `json:"state"`
	PreReport string                `json:"pre_report"`
	Analysis  *diagnostics.Analysis `json:"analysis,omitempty"`
	Attempts  []Attempt             `json:"attempts"`
	Result    *formulation.Result   `json:"result,omitempty"`
}

// Fallback reports whether the absolute mode was attempted.
func (o *Outcome) Fallback() bool { return len(o.Attempts) > 1 }

// Options configures an Orchestrator.
type Options struct {
	Formulation formulation.Options
	Logger      *slog.Logger
	Metrics     *Metrics
	NewRunID    func() string
	Analyze     bool // append the structural analysis to the pre-report
}

// Option mutates Options.
type Option func(*Options)

// WithFormulation sets weights and min_flow gating.
func WithFormulation(fo formulation.Options) Option {
	return func(o *Options) { o.Formulation = fo }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithMetrics records every run and attempt on m.
func WithMetrics(m *Metrics) Option {
	return func(o *Options) { o.Metrics = m }
}

// WithRunIDs replaces the uuid run-id generator.
func WithRunIDs(fn func() string) Option {
	return func(o *Options) { o.NewRunID = fn }
}

// WithAnalysis toggles the structural analysis in the pre-report.
func WithAnalysis(on bool) Option {
	return func(o *Options) { o.Analyze = on }
}

// Orchestrator drives the fallback strategy. It is safe for concurrent use
// as long as each run gets its own network or the network is not mutated.
type Orchestrator struct {
	solver milp.Solver
	opts   Options
}

// New returns an orchestrator using solver for every attempt.
func New(solver milp.Solver, opts ...Option) *Orchestrator {
	o := Options{
		Formulation: formulation.DefaultOptions(),
		NewRunID:    uuid.NewString,
	}
	for _, fn := range opts {
		fn(&o)
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if o.NewRunID == nil {
		o.NewRunID = uuid.NewString
	}

	return &Orchestrator{solver: solver, opts: o}
}

// SolveDraft validates d, builds the network and runs it. A validation
// failure returns the *network.ValidationError before any model is built.
func (o *Orchestrator) SolveDraft(ctx context.Context, d *network.Draft) (*Outcome, error) {
	net, err := d.Build()
	if err != nil {
		o.opts.Logger.Warn("network rejected", slog.String("error", err.Error()))
		o.opts.Metrics.recordRun(OutcomeInvalid, "")
		return nil, err
	}

	return o.Run(ctx, net)
}

// Run executes the state machine on net.
//
// Steps:
//  1. Render the pre-report (always; it is embedded in any failure).
//  2. TryProportional: success ends the run.
//  3. TryAbsolute: success ends the run.
//  4. Failed: return the Outcome with an *AggregateFailure.
//
// On cancellation the partial Outcome is returned with the context error.
func (o *Orchestrator) Run(ctx context.Context, net *network.Network) (*Outcome, error) {
	if o.solver == nil {
		return nil, ErrNilSolver
	}
	if net == nil {
		return nil, formulation.ErrNilNetwork
	}
	if ctx == nil {
		ctx = context.Background()
	}

	out := &Outcome{RunID: o.opts.NewRunID(), State: StateTryProportional}
	logger := o.opts.Logger.With(slog.String("run_id", out.RunID), slog.String("network", net.Name()))
	if m := o.opts.Metrics; m != nil {
		m.RunsInFlight.Inc()
		defer m.RunsInFlight.Dec()
	}

	out.PreReport = diagnostics.Diagnose(net)
	if o.opts.Analyze {
		an, err := diagnostics.Analyze(net, flow.Options{Ctx: ctx, Logger: o.opts.Logger})
		if err != nil {
			o.opts.Metrics.recordRun(OutcomeCanceled, "")
			return out, err
		}
		out.Analysis = &an
		out.PreReport += "\n" + an.String()
	}
	logger.Info("run started", slog.Int("nodes", net.NodeCount()), slog.Int("arcs", net.ArcCount()))

	failure := &AggregateFailure{RunID: out.RunID, PreReport: out.PreReport}
	for {
		switch out.State {
		case StateTryProportional, StateTryAbsolute:
			mode := formulation.Proportional
			if out.State == StateTryAbsolute {
				mode = formulation.Absolute
			}
			res, err := o.attempt(ctx, logger, net, mode, out)
			if err != nil && ctx.Err() != nil {
				o.opts.Metrics.recordRun(OutcomeCanceled, mode.Key())
				return out, ctx.Err()
			}
			switch {
			case err == nil:
				res.RunID = out.RunID
				out.Result = res
				out.State = StateSolved
			case mode == formulation.Proportional:
				failure.Proportional = err
				out.State = StateTryAbsolute
				if m := o.opts.Metrics; m != nil {
					m.FallbacksTotal.Inc()
				}
			default:
				failure.Absolute = err
				out.State = StateFailed
			}

		case StateSolved:
			logger.Info("run solved",
				slog.String("mode", out.Result.Mode.Key()),
				slog.Float64("objective", out.Result.Objective),
				slog.Bool("optimal", out.Result.Optimal),
				slog.Float64("gap", out.Result.Gap))
			o.opts.Metrics.recordRun(OutcomeSolved, out.Result.Mode.Key())
			return out, nil

		default:
			logger.Error("both modes failed",
				slog.String("proportional", errText(failure.Proportional)),
				slog.String("absolute", errText(failure.Absolute)))
			o.opts.Metrics.recordRun(OutcomeFailed, "")
			return out, failure
		}
	}
}

// attempt builds and solves one mode and records it on out.
func (o *Orchestrator) attempt(ctx context.Context, logger *slog.Logger, net *network.Network, mode formulation.Mode, out *Outcome) (*formulation.Result, error) {
	start := time.Now()
	res, err := formulation.Solve(ctx, net, mode, o.solver, o.opts.Formulation)
	elapsed := time.Since(start)

	a := Attempt{Mode: mode, Err: err, Duration: elapsed}
	if err != nil {
		a.Error = err.Error()
		logger.Warn("attempt failed",
			slog.String("mode", mode.Key()),
			slog.String("status", StatusLabel(err)),
			slog.Duration("elapsed", elapsed),
			slog.String("error", err.Error()))
	} else {
		logger.Debug("attempt succeeded",
			slog.String("mode", mode.Key()),
			slog.Duration("elapsed", elapsed),
			slog.Int("branch_nodes", res.SolverNodes),
			slog.Float64("gap", res.Gap))
	}
	out.Attempts = append(out.Attempts, a)
	o.opts.Metrics.recordAttempt(mode, res, err, elapsed)

	return res, err
}
