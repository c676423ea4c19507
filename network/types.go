// Package network defines the distribution network handed to the solver:
// nodes with demand, arcs with capacity/cost/threshold/loss attributes, and
// the per-solve adjacency index.
//
// Nodes and arcs live in arenas (plain slices) and are addressed by stable
// indices (NodeID, ArcID) assigned in insertion order. Duplicate arcs sharing
// the same (u, v) pair are legal and remain distinct by ArcID.
//
// A Network is owned by its editor. Validation, diagnostics and solving only
// read it; callers that hand a network to another goroutine should pass a
// Clone.
//
// Errors:
//
//	ErrEmptyNodeName    - node name is blank.
//	ErrNodeExists       - node name already declared.
//	ErrNodeNotFound     - arc endpoint or lookup references an unknown node.
//	ErrArcNotFound      - ArcID out of range.
package network

import (
	"errors"
	"fmt"
)

// Sentinel errors for programmatic network construction.
var (
	// ErrEmptyNodeName indicates a blank node name.
	ErrEmptyNodeName = errors.New("network: node name is empty")

	// ErrNodeExists indicates a node name was declared twice.
	ErrNodeExists = errors.New("network: node already exists")

	// ErrNodeNotFound indicates a reference to an undeclared node.
	ErrNodeNotFound = errors.New("network: node not found")

	// ErrArcNotFound indicates an ArcID outside the arc arena.
	ErrArcNotFound = errors.New("network: arc not found")
)

// NodeID is the stable index of a node inside its Network.
type NodeID int

// ArcID is the stable index of an arc inside its Network.
type ArcID int

// Node is a demand point.
//
// Demand > 0 is a consumption requirement, Demand < 0 a supply capability
// (magnitude = maximum producible), Demand == 0 a pure transshipment node.
type Node struct {
	ID     NodeID  `json:"id"`
	Name   string  `json:"name"`
	Demand float64 `json:"demand"`
}

// IsConsumer reports whether the node has a positive demand.
func (n Node) IsConsumer() bool { return n.Demand > 0 }

// IsSupplier reports whether the node can produce flow.
func (n Node) IsSupplier() bool { return n.Demand < 0 }

// Arc is a directed pipe From→To.
//
// Flow below Threshold is charged CostLow per unit, flow above it CostHigh.
// LossRate is the fraction of flow lost in transit, applied on arrival at To.
// Capacity ≥ 0 and MinFlow ≤ Capacity are intended but not enforced here;
// violations surface as diagnostic warnings or solver infeasibility.
type Arc struct {
	ID        ArcID   `json:"id"`
	From      NodeID  `json:"from"`
	To        NodeID  `json:"to"`
	Capacity  float64 `json:"capacity"`
	MinFlow   float64 `json:"min_flow"`
	CostLow   float64 `json:"cost_low"`
	CostHigh  float64 `json:"cost_high"`
	Threshold float64 `json:"threshold"`
	LossRate  float64 `json:"loss_rate"`
}

// ArcSpec carries the attributes of an arc to be added by name.
type ArcSpec struct {
	From, To  string
	Capacity  float64
	MinFlow   float64
	CostLow   float64
	CostHigh  float64
	Threshold float64
	LossRate  float64
}

// Network is the node/arc arena.
type Network struct {
	name   string
	nodes  []Node
	arcs   []Arc
	byName map[string]NodeID
}

// New returns an empty network.
func New(name string) *Network {
	return &Network{
		name:   name,
		byName: make(map[string]NodeID),
	}
}

// Name returns the network name.
func (n *Network) Name() string { return n.name }

// AddNode declares a node and returns its stable ID.
//
// Complexity: O(1) amortized.
func (n *Network) AddNode(name string, demand float64) (NodeID, error) {
	if isBlank(name) {
		return 0, ErrEmptyNodeName
	}
	if _, ok := n.byName[name]; ok {
		return 0, fmt.Errorf("%w: %q", ErrNodeExists, name)
	}
	id := NodeID(len(n.nodes))
	n.nodes = append(n.nodes, Node{ID: id, Name: name, Demand: demand})
	n.byName[name] = id

	return id, nil
}

// AddArc appends an arc between two declared nodes and returns its stable ID.
// Parallel arcs are allowed.
//
// Complexity: O(1) amortized.
func (n *Network) AddArc(spec ArcSpec) (ArcID, error) {
	from, ok := n.byName[spec.From]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrNodeNotFound, spec.From)
	}
	to, ok := n.byName[spec.To]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrNodeNotFound, spec.To)
	}
	id := ArcID(len(n.arcs))
	n.arcs = append(n.arcs, Arc{
		ID:        id,
		From:      from,
		To:        to,
		Capacity:  spec.Capacity,
		MinFlow:   spec.MinFlow,
		CostLow:   spec.CostLow,
		CostHigh:  spec.CostHigh,
		Threshold: spec.Threshold,
		LossRate:  spec.LossRate,
	})

	return id, nil
}

// NodeCount returns the number of nodes.
func (n *Network) NodeCount() int { return len(n.nodes) }

// ArcCount returns the number of arcs.
func (n *Network) ArcCount() int { return len(n.arcs) }

// Nodes returns a copy of the node arena in ID order.
func (n *Network) Nodes() []Node {
	out := make([]Node, len(n.nodes))
	copy(out, n.nodes)

	return out
}

// Arcs returns a copy of the arc arena in ID order.
func (n *Network) Arcs() []Arc {
	out := make([]Arc, len(n.arcs))
	copy(out, n.arcs)

	return out
}

// Node returns the node with the given ID. The ID must be in range.
func (n *Network) Node(id NodeID) Node { return n.nodes[id] }

// Arc returns the arc with the given ID, or ErrArcNotFound.
func (n *Network) Arc(id ArcID) (Arc, error) {
	if id < 0 || int(id) >= len(n.arcs) {
		return Arc{}, ErrArcNotFound
	}

	return n.arcs[id], nil
}

// NodeByName resolves a node name.
func (n *Network) NodeByName(name string) (Node, bool) {
	id, ok := n.byName[name]
	if !ok {
		return Node{}, false
	}

	return n.nodes[id], true
}

// ArcsBetween returns every arc u→v in ID order. Duplicate arcs are all
// returned; callers must not assume a single match.
//
// Complexity: O(E).
func (n *Network) ArcsBetween(u, v string) []ArcID {
	from, ok := n.byName[u]
	if !ok {
		return nil
	}
	to, ok := n.byName[v]
	if !ok {
		return nil
	}
	var out []ArcID
	for i := range n.arcs {
		if n.arcs[i].From == from && n.arcs[i].To == to {
			out = append(out, n.arcs[i].ID)
		}
	}

	return out
}

// Label renders an arc as "u->v". Arcs that share their endpoint pair with
// another arc get a "#id" suffix so reports stay unambiguous.
func (n *Network) Label(id ArcID) string {
	a := n.arcs[id]
	base := n.nodes[a.From].Name + "->" + n.nodes[a.To].Name
	for i := range n.arcs {
		if n.arcs[i].ID != id && n.arcs[i].From == a.From && n.arcs[i].To == a.To {
			return fmt.Sprintf("%s#%d", base, id)
		}
	}

	return base
}

// Clone returns a deep, independent copy.
//
// Complexity: O(V + E).
func (n *Network) Clone() *Network {
	c := &Network{
		name:   n.name,
		nodes:  n.Nodes(),
		arcs:   n.Arcs(),
		byName: make(map[string]NodeID, len(n.byName)),
	}
	for k, v := range n.byName {
		c.byName[k] = v
	}

	return c
}
