package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/katalvlaran/hydronet/flow"
	"github.com/katalvlaran/hydronet/network"
)

// Analysis frame lines.
const (
	AnalysisHeader = "=== STRUCTURAL ANALYSIS ==="
	AnalysisFooter = "=== END STRUCTURAL ANALYSIS ==="
)

// Analysis is the structural view of a network: what can physically reach
// consumers before any cost or equity trade-off.
type Analysis struct {
	// Unreachable lists consumers with no path from a supplier over arcs of
	// positive capacity, in node order.
	Unreachable []string `json:"unreachable,omitempty"`

	// Isolated lists nodes with no incident arc, in node order.
	Isolated []string `json:"isolated,omitempty"`

	// Deliverable is the lossless max-flow bound. Losses only lower it.
	Deliverable flow.Deliverable `json:"deliverable"`
}

// MinShortage is the shortage every solution must accept.
func (a Analysis) MinShortage() float64 { return a.Deliverable.MinShortage() }

// walker runs a multi-source BFS over positive-capacity arcs.
type walker struct {
	net     *network.Network
	adj     *network.Adjacency
	arcs    []network.Arc
	ctx     context.Context
	queue   []network.NodeID
	visited []bool
}

// reachable marks every node reachable from a supplier.
func (w *walker) reachable() error {
	for _, n := range w.net.Nodes() {
		if n.IsSupplier() {
			w.enqueue(n.ID)
		}
	}
	for len(w.queue) > 0 {
		select {
		case <-w.ctx.Done():
			return w.ctx.Err()
		default:
		}
		u := w.queue[0]
		w.queue = w.queue[1:]
		for _, id := range w.adj.Out[u] {
			if a := w.arcs[id]; a.Capacity > 0 && !w.visited[a.To] {
				w.enqueue(a.To)
			}
		}
	}

	return nil
}

func (w *walker) enqueue(id network.NodeID) {
	w.visited[id] = true
	w.queue = append(w.queue, id)
}

// Analyze reports unreachable consumers, isolated nodes and the
// max-deliverable bound.
//
// Steps:
//  1. Multi-source BFS from every supplier over arcs with capacity > 0.
//  2. Consumers left unvisited are unreachable; nodes of degree 0 isolated.
//  3. flow.MaxDeliverable gives the bound; a network with no supplier or
//     no consumer gets Total = 0 instead of an error.
//
// Only cancellation of opts.Ctx is returned as an error.
//
// Complexity: O(V + E) for the BFS plus the Dinic bound O(E·V²).
func Analyze(net *network.Network, opts flow.Options) (Analysis, error) {
	if opts.Ctx == nil {
		opts.Ctx = context.Background()
	}
	w := &walker{
		net:     net,
		adj:     net.Adjacency(),
		arcs:    net.Arcs(),
		ctx:     opts.Ctx,
		visited: make([]bool, net.NodeCount()),
	}
	if err := w.reachable(); err != nil {
		return Analysis{}, err
	}

	var an Analysis
	demand := 0.0
	for _, n := range net.Nodes() {
		if n.IsConsumer() {
			demand += n.Demand
			if !w.visited[n.ID] {
				an.Unreachable = append(an.Unreachable, n.Name)
			}
		}
		if w.adj.Degree(n.ID) == 0 {
			an.Isolated = append(an.Isolated, n.Name)
		}
	}

	d, err := flow.MaxDeliverable(net, opts)
	switch {
	case err == nil:
		an.Deliverable = d
	case errors.Is(err, flow.ErrNoSupply), errors.Is(err, flow.ErrNoDemand):
		an.Deliverable = flow.Deliverable{Demand: demand, PerConsumer: map[string]float64{}}
	default:
		return Analysis{}, err
	}

	return an, nil
}

// String renders the analysis between its frame lines.
func (a Analysis) String() string {
	var b strings.Builder
	b.WriteString(AnalysisHeader + "\n")
	fmt.Fprintf(&b, "Deliverable without losses: %.3f of %.3f\n", a.Deliverable.Total, a.Deliverable.Demand)
	fmt.Fprintf(&b, "Unavoidable shortage: %.3f\n", a.MinShortage())
	if len(a.Unreachable) > 0 {
		fmt.Fprintf(&b, "Unreachable consumers: %s\n", strings.Join(a.Unreachable, ", "))
	}
	if len(a.Isolated) > 0 {
		fmt.Fprintf(&b, "Isolated nodes: %s\n", strings.Join(a.Isolated, ", "))
	}
	b.WriteString(AnalysisFooter)

	return b.String()
}
