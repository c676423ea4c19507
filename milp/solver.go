package milp

import (
	"context"
	"errors"
	"fmt"
)

// Status is the outcome of a solve.
type Status uint8

const (
	StatusUnknown Status = iota
	StatusOptimal
	StatusInfeasible
	StatusUnbounded
	StatusFeasible
	StatusNodeLimit
	StatusTimeLimit
	StatusInvalidModel
	StatusBackendError
)

var statusNames = [...]string{
	StatusUnknown:      "unknown",
	StatusOptimal:      "optimal",
	StatusInfeasible:   "infeasible",
	StatusUnbounded:    "unbounded",
	StatusFeasible:     "feasible",
	StatusNodeLimit:    "node limit reached",
	StatusTimeLimit:    "time limit reached",
	StatusInvalidModel: "invalid model",
	StatusBackendError: "backend error",
}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}

	return fmt.Sprintf("status(%d)", s)
}

// Sentinel errors, one per failure status.
var (
	ErrInfeasible   = errors.New("milp: infeasible")
	ErrUnbounded    = errors.New("milp: unbounded")
	ErrNodeLimit    = errors.New("milp: node limit reached")
	ErrTimeLimit    = errors.New("milp: time limit reached")
	ErrInvalidModel = errors.New("milp: invalid model")
	ErrBackend      = errors.New("milp: backend error")
)

// Err returns the sentinel for s, or nil for the two success statuses.
func (s Status) Err() error {
	switch s {
	case StatusOptimal, StatusFeasible:
		return nil
	case StatusInfeasible:
		return ErrInfeasible
	case StatusUnbounded:
		return ErrUnbounded
	case StatusNodeLimit:
		return ErrNodeLimit
	case StatusTimeLimit:
		return ErrTimeLimit
	case StatusInvalidModel:
		return ErrInvalidModel
	default:
		return ErrBackend
	}
}

// SolveError reports why a model has no usable solution.
type SolveError struct {
	Model  string
	Status Status
	Detail string
}

func (e *SolveError) Error() string {
	msg := fmt.Sprintf("milp: model %q: %s", e.Model, e.Status)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}

	return msg
}

// Unwrap exposes the status sentinel to errors.Is.
func (e *SolveError) Unwrap() error { return e.Status.Err() }

// Solution is an integral assignment.
//
// StatusOptimal means the objective is within the backend's relative gap
// tolerance of the best bound. StatusFeasible means a node or time limit
// stopped the search first; Values is then the best assignment found and
// Gap says how far it may be from optimal.
type Solution struct {
	Status    Status
	Values    []float64
	Objective float64

	// Bound is the best proven lower bound on the objective.
	Bound float64
	// Gap is (Objective − Bound) / max(|Objective|, 1), 0 when unknown.
	Gap float64

	// Nodes is the number of branch-and-bound nodes explored (0 if the
	// backend does not report it).
	Nodes int
}

// Proven reports whether the search finished within its gap tolerance.
func (s *Solution) Proven() bool { return s.Status == StatusOptimal }

// Value returns the value of v, or 0 when v is out of range.
func (s *Solution) Value(v VarID) float64 {
	if v < 0 || int(v) >= len(s.Values) {
		return 0
	}

	return s.Values[v]
}

// Solver is the capability a backend must provide.
//
// Contract: on success the returned Solution has StatusOptimal or
// StatusFeasible and err is nil; otherwise err is a *SolveError (or the
// context error) and the Solution is nil. A Solver must not retain or
// mutate the Model.
type Solver interface {
	Solve(ctx context.Context, m *Model) (*Solution, error)
}

// SolverFunc adapts a function to the Solver interface.
type SolverFunc func(ctx context.Context, m *Model) (*Solution, error)

// Solve calls f(ctx, m).
func (f SolverFunc) Solve(ctx context.Context, m *Model) (*Solution, error) { return f(ctx, m) }
