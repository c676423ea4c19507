package network

// Adjacency indexes, for every node, the arcs leaving and entering it.
//
// It is built once per solve so conservation constraints can be assembled in
// O(deg(n)) per node instead of rescanning the arc list. Arc IDs within each
// list are in ascending order, which keeps model construction deterministic.
type Adjacency struct {
	Out [][]ArcID
	In  [][]ArcID
}

// Adjacency builds the incidence index.
//
// Steps:
//  1. Allocate one Out and one In list per node (O(V)).
//  2. Scan arcs in ID order and append each to Out[From] and In[To] (O(E)).
//
// Self-loops appear in both lists of their node.
//
// Complexity: Time O(V + E), Memory O(V + E).
func (n *Network) Adjacency() *Adjacency {
	adj := &Adjacency{
		Out: make([][]ArcID, len(n.nodes)),
		In:  make([][]ArcID, len(n.nodes)),
	}
	for i := range n.arcs {
		a := &n.arcs[i]
		adj.Out[a.From] = append(adj.Out[a.From], a.ID)
		adj.In[a.To] = append(adj.In[a.To], a.ID)
	}

	return adj
}

// Degree returns the total number of arcs incident to id.
func (adj *Adjacency) Degree(id NodeID) int {
	return len(adj.Out[id]) + len(adj.In[id])
}
