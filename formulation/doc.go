// Package formulation translates a network.Network and an equity mode into a
// milp.Model, and reads an optimal milp.Solution back into a Result.
//
// Variables, per arc a = (u, v) with capacity C and threshold T:
//
//	open_a      binary         arc enabled
//	x1_a        [0, min(T,C)]  flow billed at cost_low
//	x2_a        [0, max(C−T,0)] flow billed at cost_high
//	x_a         [0, C]         total flow
//	overload_a  ≥ 0            flow above 0.8·C
//
// Per node: slack_n ≥ 0 (fixed to 0 for demand ≤ 0). Proportional mode adds
// the equity ratio r ∈ [0,1]; absolute mode adds the shortage cap s_max ≥ 0.
//
// Constraints, per arc:
//
//	x = x1 + x2
//	x ≤ C·open
//	x ≥ min_flow          (x ≥ min_flow·open with Options.GateMinFlow)
//	overload ≥ x − 0.8·C
//
// Conservation, per node n, where inflow is discounted by (1 − loss_rate):
//
//	demand > 0:  in − out + slack = demand, and
//	             slack = (1 − r)·demand   (proportional)
//	             slack ≤ s_max            (absolute)
//	demand ≤ 0:  in − out ≥ demand
//
// Objective (minimize):
//
//	α·Σ(cost_low·x1 + cost_high·x2) + β·Σ overload + k·Σ open + γ·(1 − r)   proportional
//	α·Σ(cost_low·x1 + cost_high·x2) + β·Σ overload + k·Σ open + γ·s_max     absolute
//
// with α=1, β=10, k=3 and γ=500 (proportional) or γ=1000 (absolute) unless
// overridden through Options.
//
// Every Build produces a fresh model; nothing is shared between attempts.
//
// Errors:
//
//	ErrNilNetwork   - Build called without a network.
//	ErrNilSolver    - Solve called without a solver.
//	ErrUnknownMode  - mode outside {Proportional, Absolute}.
//	ErrBadWeights   - negative or non-finite objective weight.
package formulation
