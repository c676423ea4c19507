package flow

import (
	"context"
	"fmt"
	"log/slog"
)

// ErrNoSupply is returned when no node has negative demand.
var ErrNoSupply = fmt.Errorf("flow: %w", errNoSupply)
var errNoSupply = fmt.Errorf("network has no supplier")

// ErrNoDemand is returned when no node has positive demand.
var ErrNoDemand = fmt.Errorf("flow: %w", errNoDemand)
var errNoDemand = fmt.Errorf("network has no consumer")

// Options configures MaxDeliverable.
//   - Ctx: cancellation for long runs (default context.Background()).
//   - Epsilon: residual capacities ≤ Epsilon are treated as zero (default 1e-9).
//   - Logger: if non-nil, each augmentation is logged at debug level.
type Options struct {
	Ctx     context.Context
	Epsilon float64
	Logger  *slog.Logger
}

// DefaultOptions returns production-safe defaults.
func DefaultOptions() Options {
	return Options{
		Ctx:     context.Background(),
		Epsilon: 1e-9,
	}
}

// normalize fills zero values with defaults.
func (o *Options) normalize() {
	if o.Ctx == nil {
		o.Ctx = context.Background()
	}
	if o.Epsilon <= 0 {
		o.Epsilon = 1e-9
	}
}

// Deliverable is the outcome of MaxDeliverable.
type Deliverable struct {
	// Total is the maximum volume that reaches consumers (lossless bound).
	Total float64

	// Demand is the sum of positive demands.
	Demand float64

	// PerConsumer maps consumer names to the volume delivered to them in the
	// maximum flow found. Only one maximum flow is reported; others may
	// distribute the same Total differently.
	PerConsumer map[string]float64
}

// MinShortage returns Demand − Total, the shortage no solver can avoid.
func (d Deliverable) MinShortage() float64 {
	s := d.Demand - d.Total
	if s < 0 {
		return 0
	}

	return s
}
