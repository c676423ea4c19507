package formulation

import (
	"errors"
	"math"

	"github.com/katalvlaran/hydronet/milp"
	"github.com/katalvlaran/hydronet/network"
)

// ErrNotOptimal is returned by Extract for a solution that carries no
// usable assignment (neither optimal nor a feasible incumbent).
var ErrNotOptimal = errors.New("formulation: solution is not optimal")

// ArcFlow is the solved state of one arc.
type ArcFlow struct {
	Arc      network.ArcID `json:"arc"`
	Label    string        `json:"label"`
	Flow     float64       `json:"flow"`
	Low      float64       `json:"low"`  // billed at cost_low
	High     float64       `json:"high"` // billed at cost_high
	Overload float64       `json:"overload"`
	Open     bool          `json:"open"`
}

// NodeSlack is the unmet demand of one node (0 for demand ≤ 0).
type NodeSlack struct {
	Node   network.NodeID `json:"node"`
	Name   string         `json:"name"`
	Demand float64        `json:"demand"`
	Slack  float64        `json:"slack"`
}

// Breakdown splits the objective into its weighted terms.
type Breakdown struct {
	Transport  float64 `json:"transport"`
	Overload   float64 `json:"overload"`
	Activation float64 `json:"activation"`
	Shortage   float64 `json:"shortage"`
}

// Result is the immutable outcome of one successful solve.
type Result struct {
	RunID     string      `json:"run_id,omitempty"`
	Mode      Mode        `json:"mode"`
	ModeLabel string      `json:"mode_label"`
	Objective float64     `json:"objective"`
	Arcs      []ArcFlow   `json:"arcs"`  // indexed by ArcID
	Nodes     []NodeSlack `json:"nodes"` // indexed by NodeID

	// EquityRatio is r, set only in proportional mode.
	EquityRatio *float64 `json:"equity_ratio,omitempty"`
	// ShortageCap is s_max, set only in absolute mode.
	ShortageCap *float64 `json:"shortage_cap,omitempty"`

	Breakdown   Breakdown `json:"breakdown"`
	SolverNodes int       `json:"solver_nodes"`

	// Optimal is false when a solver limit ended the search; Gap is then
	// the relative distance to the best proven bound.
	Optimal bool    `json:"optimal"`
	Gap     float64 `json:"gap,omitempty"`
}

// Flow returns the flow on arc id, 0 when id is out of range.
func (r *Result) Flow(id network.ArcID) float64 {
	if id < 0 || int(id) >= len(r.Arcs) {
		return 0
	}

	return r.Arcs[id].Flow
}

// Slack returns the slack of node id, 0 when id is out of range.
func (r *Result) Slack(id network.NodeID) float64 {
	if id < 0 || int(id) >= len(r.Nodes) {
		return 0
	}

	return r.Nodes[id].Slack
}

// TotalShortage sums node slack.
func (r *Result) TotalShortage() float64 {
	s := 0.0
	for _, n := range r.Nodes {
		s += n.Slack
	}

	return s
}

// OpenArcs counts arcs with Open set.
func (r *Result) OpenArcs() int {
	c := 0
	for _, a := range r.Arcs {
		if a.Open {
			c++
		}
	}

	return c
}

// clean snaps solver noise around zero.
func clean(v float64) float64 {
	if math.Abs(v) < 1e-9 {
		return 0
	}

	return v
}

// Extract reads sol back into a Result. The run id is left empty.
func (f *Formulation) Extract(sol *milp.Solution) (*Result, error) {
	if sol == nil || sol.Status.Err() != nil || len(sol.Values) < f.Model.NumVars() {
		return nil, ErrNotOptimal
	}

	res := &Result{
		Mode:        f.Mode,
		ModeLabel:   f.Mode.String(),
		Objective:   sol.Objective,
		Arcs:        make([]ArcFlow, len(f.arcs)),
		Nodes:       make([]NodeSlack, len(f.slack)),
		SolverNodes: sol.Nodes,
		Optimal:     sol.Proven(),
		Gap:         sol.Gap,
	}

	for id, v := range f.arcs {
		aid := network.ArcID(id)
		res.Arcs[id] = ArcFlow{
			Arc:      aid,
			Label:    f.net.Label(aid),
			Flow:     clean(sol.Value(v.x)),
			Low:      clean(sol.Value(v.x1)),
			High:     clean(sol.Value(v.x2)),
			Overload: clean(sol.Value(v.overload)),
			Open:     sol.Value(v.open) > 0.5,
		}
		res.Breakdown.Overload += f.weights.Beta * res.Arcs[id].Overload
		if res.Arcs[id].Open {
			res.Breakdown.Activation += f.weights.Activation
		}
	}
	res.Breakdown.Transport = f.weights.Alpha * f.cost.Eval(sol.Values)

	for _, n := range f.net.Nodes() {
		s := 0.0
		if n.IsConsumer() {
			s = clean(sol.Value(f.slack[n.ID]))
		}
		res.Nodes[n.ID] = NodeSlack{Node: n.ID, Name: n.Name, Demand: n.Demand, Slack: s}
	}

	g := clean(sol.Value(f.global))
	if f.Mode == Proportional {
		res.EquityRatio = &g
		res.Breakdown.Shortage = f.weights.Gamma * (1 - g)
	} else {
		res.ShortageCap = &g
		res.Breakdown.Shortage = f.weights.Gamma * g
	}

	return res, nil
}
