// Package milp is the narrow capability boundary between formulation code and
// a mixed-integer linear programming backend.
//
// A Model collects:
//   - continuous variables with finite lower and optional upper bounds,
//   - binary variables,
//   - linear constraints  Σ aᵢ·xᵢ + c  {≤, ≥, =}  rhs,
//   - one minimization objective Σ cᵢ·xᵢ + c₀.
//
// A Solver turns a Model into a Solution or a *SolveError whose Status tells
// infeasible, unbounded, limits and backend failures apart. Formulation and
// orchestration code depend only on the Solver interface, so tests can swap in
// deterministic stubs.
//
// # Reference backend
//
// BranchAndBound runs on gonum's optimize/convex/lp simplex:
//
//  1. Each node relaxation is presolved first: fixed columns, singleton and
//     redundant rows, forcing rows, dominated columns and implied-free
//     columns of short equalities are removed, and restored afterwards.
//  2. The reduced LP is put in standard form and solved in two phases, each
//     started from an explicit basis.
//  3. Open nodes are explored best bound first, branching on the most
//     fractional binary. Rounding and a fix-and-resolve heuristic look for an
//     early incumbent, and nodes within Options.MIPGap of it are pruned.
//  4. A node limit or Options.TimeLimit (DefaultTimeLimit unless changed)
//     ends the search. With an incumbent the result is StatusFeasible with
//     its Gap and Bound; without one it is a failure. The time limit and
//     context cancellation also interrupt a relaxation between pivots.
//
// Complexity: exponential in the number of binaries in the worst case; each
// simplex pivot factors the basis in O(rows³).
//
// Errors:
//
//	ErrInfeasible       - no assignment satisfies all constraints.
//	ErrUnbounded        - the objective decreases without bound.
//	ErrNodeLimit        - node budget exhausted before any incumbent.
//	ErrTimeLimit        - Options.TimeLimit elapsed before any incumbent.
//	ErrInvalidModel     - malformed model (bad variable id, NaN, infinite lower bound).
//	ErrBackend          - backend-specific failure (configuration, licensing, …).
package milp
