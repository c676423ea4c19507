package flow

import (
	"context"
	"log/slog"
	"math"

	"github.com/katalvlaran/hydronet/network"
)

// residual is an arena of paired edges: edge i and edge i^1 are each other's
// reverse, so pushing flow on i adds the same amount of capacity to i^1.
type residual struct {
	head []int     // head[v] = first edge index leaving v, or -1
	next []int     // next[e] = following edge leaving the same vertex
	to   []int     // to[e]   = destination vertex
	cap  []float64 // cap[e]  = remaining capacity
}

func newResidual(vertices, edgeHint int) *residual {
	r := &residual{
		head: make([]int, vertices),
		next: make([]int, 0, 2*edgeHint),
		to:   make([]int, 0, 2*edgeHint),
		cap:  make([]float64, 0, 2*edgeHint),
	}
	for i := range r.head {
		r.head[i] = -1
	}

	return r
}

// addEdge inserts u→v with capacity c and its zero-capacity reverse.
// It returns the forward edge index.
func (r *residual) addEdge(u, v int, c float64) int {
	e := len(r.to)
	r.to = append(r.to, v, u)
	r.cap = append(r.cap, c, 0)
	r.next = append(r.next, r.head[u], r.head[v])
	r.head[u] = e
	r.head[v] = e + 1

	return e
}

// MaxDeliverable computes the lossless max-flow from all suppliers to all
// consumers of net.
//
// Steps:
//  1. Normalize options.
//  2. Build the residual arena: super-source (index V) feeds suppliers,
//     arcs keep max(Capacity,0), consumers drain into super-sink (V+1).
//  3. Run Dinic: BFS level graph, then DFS blocking flows, until the sink is
//     unreachable. Cancellation is checked before each phase and push.
//  4. Read delivered volume per consumer from the consumer→sink edges.
//
// Complexity: see package doc.
func MaxDeliverable(net *network.Network, opts Options) (Deliverable, error) {
	// 1) Normalize options (set default Ctx and Epsilon if needed)
	opts.normalize()
	ctx := opts.Ctx
	if err := ctx.Err(); err != nil {
		return Deliverable{}, err
	}

	// 2) Build residual arena.
	nodes := net.Nodes()
	arcs := net.Arcs()
	V := len(nodes)
	source, sink := V, V+1
	r := newResidual(V+2, len(arcs)+V)

	var (
		supply    float64
		demand    float64
		sinkEdges = make(map[string]int)
	)
	for _, n := range nodes {
		switch {
		case n.IsSupplier():
			supply += -n.Demand
			r.addEdge(source, int(n.ID), -n.Demand)
		case n.IsConsumer():
			demand += n.Demand
			sinkEdges[n.Name] = r.addEdge(int(n.ID), sink, n.Demand)
		}
	}
	if supply <= opts.Epsilon {
		return Deliverable{}, ErrNoSupply
	}
	if demand <= opts.Epsilon {
		return Deliverable{}, ErrNoDemand
	}
	for _, a := range arcs {
		if a.From == a.To {
			continue // self-loops never carry useful flow
		}
		r.addEdge(int(a.From), int(a.To), math.Max(a.Capacity, 0))
	}

	// 3) Dinic main loop.
	var (
		total = 0.0
		level = make([]int, V+2)
		iter  = make([]int, V+2)
		queue = make([]int, 0, V+2)
	)
	for {
		if err := ctx.Err(); err != nil {
			return Deliverable{}, err
		}

		// 3a) BFS levels from the super-source.
		for i := range level {
			level[i] = -1
		}
		level[source] = 0
		queue = append(queue[:0], source)
		for i := 0; i < len(queue); i++ {
			u := queue[i]
			for e := r.head[u]; e >= 0; e = r.next[e] {
				if r.cap[e] > opts.Epsilon && level[r.to[e]] < 0 {
					level[r.to[e]] = level[u] + 1
					queue = append(queue, r.to[e])
				}
			}
		}
		// 3b) Sink unreachable: flow is maximum.
		if level[sink] < 0 {
			break
		}

		// 3c) Blocking flow.
		copy(iter, r.head)
		for {
			if err := ctx.Err(); err != nil {
				return Deliverable{}, err
			}
			pushed := r.push(ctx, level, iter, source, sink, math.Inf(1), opts.Epsilon)
			if pushed <= opts.Epsilon {
				break
			}
			total += pushed
			if opts.Logger != nil {
				opts.Logger.Debug("dinic augmentation",
					slog.Float64("pushed", pushed), slog.Float64("total", total))
			}
		}
	}

	// 4) Per-consumer delivery: the reverse edge holds what was pushed.
	per := make(map[string]float64, len(sinkEdges))
	for name, e := range sinkEdges {
		per[name] = r.cap[e^1]
	}

	return Deliverable{Total: total, Demand: demand, PerConsumer: per}, nil
}

// push sends up to available units from u toward sink along the level graph
// and returns the amount actually sent. iter[u] remembers the next edge to
// try so saturated edges are not rescanned within a phase.
func (r *residual) push(
	ctx context.Context,
	level, iter []int,
	u, sink int,
	available, eps float64,
) float64 {
	if u == sink {
		return available
	}
	if ctx.Err() != nil {
		return 0
	}
	for ; iter[u] >= 0; iter[u] = r.next[iter[u]] {
		e := iter[u]
		v := r.to[e]
		if r.cap[e] <= eps || level[v] != level[u]+1 {
			continue
		}
		pushed := r.push(ctx, level, iter, v, sink, math.Min(available, r.cap[e]), eps)
		if pushed > eps {
			r.cap[e] -= pushed
			r.cap[e^1] += pushed

			return pushed
		}
	}

	return 0
}
