package formulation

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Sentinel errors.
var (
	ErrNilNetwork  = errors.New("formulation: network is nil")
	ErrNilSolver   = errors.New("formulation: solver is nil")
	ErrUnknownMode = errors.New("formulation: unknown equity mode")
	ErrBadWeights  = errors.New("formulation: objective weights must be finite and non-negative")
)

// Mode selects how unmet demand is shared among consumers.
type Mode uint8

const (
	// Proportional guarantees every consumer the same fraction r of its demand.
	Proportional Mode = iota
	// Absolute caps the largest absolute shortage of any consumer.
	Absolute
)

// Modes lists the modes in fallback order.
var Modes = [...]Mode{Proportional, Absolute}

// String returns the human-readable label used in results and reports.
func (m Mode) String() string {
	switch m {
	case Proportional:
		return "proportional equity"
	case Absolute:
		return "absolute equity"
	default:
		return fmt.Sprintf("mode(%d)", m)
	}
}

// Key returns the short machine name ("proportional", "absolute").
func (m Mode) Key() string {
	switch m {
	case Proportional:
		return "proportional"
	case Absolute:
		return "absolute"
	default:
		return "unknown"
	}
}

// ParseMode accepts a Key or a label, case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "proportional", "proportional equity":
		return Proportional, nil
	case "absolute", "absolute equity":
		return Absolute, nil
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// MarshalText encodes the mode as its Key.
func (m Mode) MarshalText() ([]byte, error) {
	if m != Proportional && m != Absolute {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMode, m)
	}

	return []byte(m.Key()), nil
}

// UnmarshalText is the inverse of MarshalText.
func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v

	return nil
}

// OverloadFraction is the share of capacity above which flow is penalized.
const OverloadFraction = 0.8

// Default objective weights.
const (
	DefaultAlpha             = 1.0
	DefaultBeta              = 10.0
	DefaultActivation        = 3.0
	DefaultProportionalGamma = 500.0
	DefaultAbsoluteGamma     = 1000.0
)

// Weights are the objective coefficients of one mode.
type Weights struct {
	Alpha      float64 `json:"alpha" toml:"alpha" validate:"gte=0"`           // transport cost
	Beta       float64 `json:"beta" toml:"beta" validate:"gte=0"`             // overload penalty
	Gamma      float64 `json:"gamma" toml:"gamma" validate:"gte=0"`           // shortage penalty
	Activation float64 `json:"activation" toml:"activation" validate:"gte=0"` // per open arc
}

// DefaultWeights returns the stock weights of m.
func DefaultWeights(m Mode) Weights {
	w := Weights{Alpha: DefaultAlpha, Beta: DefaultBeta, Activation: DefaultActivation, Gamma: DefaultProportionalGamma}
	if m == Absolute {
		w.Gamma = DefaultAbsoluteGamma
	}

	return w
}

func (w Weights) check() error {
	for _, v := range [...]float64{w.Alpha, w.Beta, w.Gamma, w.Activation} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %+v", ErrBadWeights, w)
		}
	}

	return nil
}

// Options tunes Build.
//   - Proportional, Absolute: objective weights per mode. A zero Weights
//     value selects DefaultWeights for that mode.
//   - GateMinFlow: apply min_flow only to open arcs (x ≥ min_flow·open).
//     Off by default: min_flow then binds even on closed arcs, so a closed
//     arc with positive min_flow makes the model infeasible.
type Options struct {
	Proportional Weights
	Absolute     Weights
	GateMinFlow  bool
}

// DefaultOptions returns stock weights for both modes and ungated min_flow.
func DefaultOptions() Options {
	return Options{
		Proportional: DefaultWeights(Proportional),
		Absolute:     DefaultWeights(Absolute),
	}
}

// Weights returns the effective weights for m.
func (o Options) Weights(m Mode) Weights {
	w := o.Proportional
	if m == Absolute {
		w = o.Absolute
	}
	if w == (Weights{}) {
		return DefaultWeights(m)
	}

	return w
}
