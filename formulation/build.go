package formulation

import (
	"context"
	"fmt"
	"math"

	"github.com/katalvlaran/hydronet/milp"
	"github.com/katalvlaran/hydronet/network"
)

// arcVars are the decision variables of one arc.
type arcVars struct {
	open, x1, x2, x, overload milp.VarID
}

// Formulation is a built model together with the variable map needed to read
// a solution back.
type Formulation struct {
	Mode  Mode
	Model *milp.Model

	net     *network.Network
	weights Weights
	arcs    []arcVars    // indexed by ArcID
	slack   []milp.VarID // indexed by NodeID
	global  milp.VarID   // r or s_max
	cost    milp.Expr    // transport term (before α)
}

// Build constructs the MILP of net under mode.
//
// Steps:
//  1. Declare per-arc variables (open, x1, x2, x, overload) with their bounds.
//  2. Add tier, capacity/activation, min_flow and overload rows per arc.
//  3. Declare slack per node and r or s_max.
//  4. Add conservation rows using the adjacency index; consumers also get the
//     equity row of the mode.
//  5. Set the weighted objective.
//
// Complexity: O(V + E) variables and constraints.
func Build(net *network.Network, mode Mode, opts Options) (*Formulation, error) {
	if net == nil {
		return nil, ErrNilNetwork
	}
	if mode != Proportional && mode != Absolute {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMode, mode)
	}
	w := opts.Weights(mode)
	if err := w.check(); err != nil {
		return nil, err
	}

	m := milp.NewModel(fmt.Sprintf("%s/%s", net.Name(), mode.Key()))
	f := &Formulation{
		Mode:    mode,
		Model:   m,
		net:     net,
		weights: w,
		arcs:    make([]arcVars, net.ArcCount()),
		slack:   make([]milp.VarID, net.NodeCount()),
	}

	// 1-2) Arcs.
	var overloadSum, openSum milp.Expr
	for _, a := range net.Arcs() {
		label := net.Label(a.ID)
		v := arcVars{
			open:     m.AddBinary("open[" + label + "]"),
			x1:       m.AddContinuous("x1["+label+"]", 0, math.Min(a.Threshold, a.Capacity)),
			x2:       m.AddContinuous("x2["+label+"]", 0, math.Max(a.Capacity-a.Threshold, 0)),
			x:        m.AddContinuous("x["+label+"]", 0, a.Capacity),
			overload: m.AddNonNegative("overload[" + label + "]"),
		}
		f.arcs[a.ID] = v

		var tier milp.Expr
		tier.Add(v.x, 1).Add(v.x1, -1).Add(v.x2, -1)
		m.AddConstraint("tier["+label+"]", tier, milp.Equal, 0)

		var gate milp.Expr
		gate.Add(v.x, 1).Add(v.open, -a.Capacity)
		m.AddConstraint("capacity["+label+"]", gate, milp.LessEq, 0)

		var lower milp.Expr
		lower.Add(v.x, 1)
		if opts.GateMinFlow {
			lower.Add(v.open, -a.MinFlow)
			m.AddConstraint("min_flow["+label+"]", lower, milp.GreaterEq, 0)
		} else {
			m.AddConstraint("min_flow["+label+"]", lower, milp.GreaterEq, a.MinFlow)
		}

		var over milp.Expr
		over.Add(v.overload, 1).Add(v.x, -1)
		m.AddConstraint("overload["+label+"]", over, milp.GreaterEq, -OverloadFraction*a.Capacity)

		f.cost.Add(v.x1, a.CostLow).Add(v.x2, a.CostHigh)
		overloadSum.Add(v.overload, 1)
		openSum.Add(v.open, 1)
	}

	// 3) Slack and the mode's global variable.
	nodes := net.Nodes()
	for _, n := range nodes {
		if n.IsConsumer() {
			f.slack[n.ID] = m.AddNonNegative("slack[" + n.Name + "]")
		} else {
			f.slack[n.ID] = m.AddContinuous("slack["+n.Name+"]", 0, 0)
		}
	}
	if mode == Proportional {
		f.global = m.AddContinuous("r", 0, 1)
	} else {
		f.global = m.AddNonNegative("s_max")
	}

	// 4) Conservation.
	adj := net.Adjacency()
	arcs := net.Arcs()
	for _, n := range nodes {
		var bal milp.Expr
		for _, id := range adj.In[n.ID] {
			bal.Add(f.arcs[id].x, 1-arcs[id].LossRate)
		}
		for _, id := range adj.Out[n.ID] {
			bal.Add(f.arcs[id].x, -1)
		}

		if !n.IsConsumer() {
			m.AddConstraint("balance["+n.Name+"]", bal, milp.GreaterEq, n.Demand)
			continue
		}
		bal.Add(f.slack[n.ID], 1)
		m.AddConstraint("balance["+n.Name+"]", bal, milp.Equal, n.Demand)

		var eq milp.Expr
		if mode == Proportional {
			// slack = (1 − r)·d  ⇔  slack + d·r = d
			eq.Add(f.slack[n.ID], 1).Add(f.global, n.Demand)
			m.AddConstraint("equity["+n.Name+"]", eq, milp.Equal, n.Demand)
		} else {
			eq.Add(f.slack[n.ID], 1).Add(f.global, -1)
			m.AddConstraint("equity["+n.Name+"]", eq, milp.LessEq, 0)
		}
	}

	// 5) Objective.
	var obj milp.Expr
	for _, t := range f.cost.Terms {
		obj.Add(t.Var, w.Alpha*t.Coef)
	}
	for _, t := range overloadSum.Terms {
		obj.Add(t.Var, w.Beta)
	}
	for _, t := range openSum.Terms {
		obj.Add(t.Var, w.Activation)
	}
	if mode == Proportional {
		obj.Add(f.global, -w.Gamma).AddConstant(w.Gamma)
	} else {
		obj.Add(f.global, w.Gamma)
	}
	m.Minimize(obj)

	return f, nil
}

// Solve builds the model of mode, hands it to solver and extracts the result.
// Solver errors are returned unchanged (typically a *milp.SolveError).
func Solve(ctx context.Context, net *network.Network, mode Mode, solver milp.Solver, opts Options) (*Result, error) {
	if solver == nil {
		return nil, ErrNilSolver
	}
	f, err := Build(net, mode, opts)
	if err != nil {
		return nil, err
	}
	sol, err := solver.Solve(ctx, f.Model)
	if err != nil {
		return nil, err
	}

	return f.Extract(sol)
}
