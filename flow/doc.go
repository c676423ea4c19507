// Package flow computes lossless transport bounds over a *network.Network
// with Dinic's maximum-flow algorithm (level graph + blocking flows).
//
// The solver formulation models pipe losses, tiered costs and equity; this
// package deliberately ignores all of that and answers a narrower question:
// how much of the total consumer demand could be delivered at all if pipes
// were lossless and free. The answer is an upper bound on delivered volume,
// so total demand minus the bound is a lower bound on the shortage any
// solver can achieve. Diagnostics use it to explain infeasible or
// shortage-heavy solves.
//
// # Construction
//
// The residual graph is an arena of paired edges (forward + reverse) indexed
// by integers, with two extra vertices:
//
//	super-source ──|d_s|──▶ supplier s      (one edge per supplier)
//	u ──max(C,0)──▶ v                        (one edge per network arc)
//	consumer c ──d_c──▶ super-sink           (one edge per consumer)
//
// Parallel arcs stay separate edges; their capacities add up naturally.
//
// # Complexity
//
//	Time:   O(V²·E) worst case, far less on the sparse networks seen in practice.
//	Memory: O(V + E).
//
// # Errors
//
//	ErrNoSupply   - the network has no supplier (nothing can be delivered).
//	ErrNoDemand   - the network has no consumer.
//	context.Canceled / context.DeadlineExceeded - if Options.Ctx is done.
package flow
