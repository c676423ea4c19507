package solve

import (
	"context"
	"errors"
	"fmt"

	"github.com/panjf2000/ants/v2"

	"github.com/katalvlaran/hydronet/network"
)

// ErrRunnerClosed is returned by Submit after Release.
var ErrRunnerClosed = errors.New("solve: runner is closed")

// Completion is what a Runner delivers for one submitted run.
type Completion struct {
	Outcome *Outcome
	Err     error
}

// Runner executes orchestrations on a bounded goroutine pool.
type Runner struct {
	orch *Orchestrator
	pool *ants.Pool
}

// NewRunner starts a pool of size workers (size ≤ 0 means unbounded).
func NewRunner(orch *Orchestrator, size int) (*Runner, error) {
	if orch == nil {
		return nil, errors.New("solve: orchestrator is nil")
	}
	if size <= 0 {
		size = -1
	}
	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, fmt.Errorf("solve: start pool: %w", err)
	}

	return &Runner{orch: orch, pool: pool}, nil
}

// Submit schedules a run on a clone of net, so later edits to net never race
// the solve. The returned channel yields exactly one Completion and is then
// closed. Submit blocks while the pool is saturated.
func (r *Runner) Submit(ctx context.Context, net *network.Network) (<-chan Completion, error) {
	if net == nil {
		return nil, errors.New("solve: network is nil")
	}
	snapshot := net.Clone()
	done := make(chan Completion, 1)

	err := r.pool.Submit(func() {
		defer close(done)
		out, err := r.orch.Run(ctx, snapshot)
		done <- Completion{Outcome: out, Err: err}
	})
	if errors.Is(err, ants.ErrPoolClosed) {
		return nil, ErrRunnerClosed
	}
	if err != nil {
		return nil, fmt.Errorf("solve: submit: %w", err)
	}

	return done, nil
}

// Running returns the number of runs currently executing.
func (r *Runner) Running() int { return r.pool.Running() }

// Release stops accepting work. Runs already executing finish normally.
func (r *Runner) Release() { r.pool.Release() }
