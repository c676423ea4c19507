// Package hydronet optimizes the distribution of water over a capacitated,
// lossy network of producers, consumers and junctions.
//
// 🚰 What does it solve?
//
//	Given nodes with demands (negative = production, positive = consumption)
//	and directed arcs with capacity, minimum flow, a two-tier cost, an
//	overload band and a loss rate, hydronet builds a mixed-integer program and
//	picks the cheapest flow that still shares any shortage fairly:
//		• Proportional equity: every consumer receives the same fraction r.
//		• Absolute equity: no consumer is short by more than s_max.
//	Proportional equity is tried first; absolute equity is the fallback.
//
// ✨ What else is in the box?
//
//   - Input validation of editor-style drafts (numbers or numeric strings)
//   - Pre-solve diagnostics and a lossless max-flow bound (Dinic)
//   - A MILP backend: branch-and-bound over gonum's LP simplex, with presolve
//   - Prometheus metrics, a worker pool, snappy run snapshots, an HTTP API
//
// Packages:
//
//	network/     nodes, arcs, drafts, validation, YAML codec
//	flow/        Dinic max-flow and the lossless deliverable bound
//	milp/        model builder, presolve, LP relaxations, branch and bound
//	formulation/ the distribution MILP for both equity modes
//	diagnostics/ pre-solve report, failure explanation, reachability
//	solve/       two-mode orchestration, metrics, worker pool
//	config/      TOML + dotenv + HYDRONET_* configuration
//	report/      compressed run snapshots
//	server/      gin HTTP API
//	cmd/hydronet command line front end
//
// Quick ASCII example:
//
//	    S(-10) ──cap 10──▶ C(+10)
//
//	one producer, one consumer: 5 units at cost_low, 5 at cost_high.
//
//	go install github.com/katalvlaran/hydronet/cmd/hydronet@latest
package hydronet
