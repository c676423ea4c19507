package solve

import (
	"context"
	"errors"
	"strings"

	"github.com/katalvlaran/hydronet/diagnostics"
	"github.com/katalvlaran/hydronet/formulation"
)

// Failure frame line.
const FailureHeading = "=== BOTH MODES FAILED ==="

// ErrNilSolver is returned by Run when the orchestrator has no solver.
var ErrNilSolver = errors.New("solve: solver is nil")

// AggregateFailure is the only error a caller sees once validation passed:
// both equity modes failed. It carries the pre-solve report and both
// per-mode errors.
type AggregateFailure struct {
	RunID        string
	PreReport    string
	Proportional error
	Absolute     error
}

// Error renders the pre-report followed by each mode's error under a
// heading naming the mode.
func (e *AggregateFailure) Error() string {
	var b strings.Builder
	b.WriteString(e.PreReport)
	b.WriteString("\n\n" + FailureHeading + "\n")
	b.WriteString("\n--- " + formulation.Proportional.String() + " ---\n")
	b.WriteString(errText(e.Proportional))
	b.WriteString("\n--- " + formulation.Absolute.String() + " ---\n")
	b.WriteString(errText(e.Absolute))

	return b.String()
}

// Unwrap exposes both mode errors to errors.Is and errors.As.
func (e *AggregateFailure) Unwrap() []error {
	return []error{e.Proportional, e.Absolute}
}

// Explain wraps both raw errors in the generic failure guidance.
func (e *AggregateFailure) Explain() string {
	raw := formulation.Proportional.String() + ": " + errText(e.Proportional) + "\n" +
		formulation.Absolute.String() + ": " + errText(e.Absolute)

	return diagnostics.Explain(raw)
}

func errText(err error) string {
	if err == nil {
		return "<nil>"
	}

	return err.Error()
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
