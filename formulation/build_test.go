package formulation_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/hydronet/formulation"
	"github.com/katalvlaran/hydronet/milp"
	"github.com/katalvlaran/hydronet/network"
)

const tol = 1e-6

type node struct {
	name   string
	demand float64
}

func mustNet(t *testing.T, nodes []node, arcs []network.ArcSpec) *network.Network {
	t.Helper()
	net := network.New("t")
	for _, n := range nodes {
		_, err := net.AddNode(n.name, n.demand)
		require.NoError(t, err)
	}
	for _, a := range arcs {
		_, err := net.AddArc(a)
		require.NoError(t, err)
	}

	return net
}

// scenario returns A(−10) → B(+10) over one arc of the given capacity.
func scenario(t *testing.T, capacity float64) *network.Network {
	return mustNet(t,
		[]node{{"A", -10}, {"B", 10}},
		[]network.ArcSpec{{From: "A", To: "B", Capacity: capacity, CostLow: 1, CostHigh: 5, Threshold: 5}},
	)
}

func solveMode(t *testing.T, net *network.Network, mode formulation.Mode, opts formulation.Options) (*formulation.Result, error) {
	t.Helper()
	return formulation.Solve(context.Background(), net, mode, milp.NewBranchAndBound(milp.WithMIPGap(0)), opts)
}

func TestScenarioA_Proportional(t *testing.T) {
	res, err := solveMode(t, scenario(t, 10), formulation.Proportional, formulation.DefaultOptions())
	require.NoError(t, err)

	require.Equal(t, formulation.Proportional, res.Mode)
	require.Equal(t, "proportional equity", res.ModeLabel)
	require.InDelta(t, 10.0, res.Flow(0), tol)
	require.InDelta(t, 5.0, res.Arcs[0].Low, tol)
	require.InDelta(t, 5.0, res.Arcs[0].High, tol)
	require.True(t, res.Arcs[0].Open)
	require.InDelta(t, 0.0, res.Slack(1), tol)
	require.NotNil(t, res.EquityRatio)
	require.InDelta(t, 1.0, *res.EquityRatio, tol)
	require.Nil(t, res.ShortageCap)

	// Transport 1·5 + 5·5; overload 10·(10 − 8); activation 3.
	require.InDelta(t, 30.0, res.Breakdown.Transport, tol)
	require.InDelta(t, 20.0, res.Breakdown.Overload, tol)
	require.InDelta(t, 3.0, res.Breakdown.Activation, tol)
	require.InDelta(t, 0.0, res.Breakdown.Shortage, tol)
	require.InDelta(t, 53.0, res.Objective, tol)
}

func TestScenarioB_Proportional(t *testing.T) {
	res, err := solveMode(t, scenario(t, 5), formulation.Proportional, formulation.DefaultOptions())
	require.NoError(t, err)

	require.InDelta(t, 5.0, res.Flow(0), tol)
	require.InDelta(t, 5.0, res.Slack(1), tol)
	require.InDelta(t, 0.5, *res.EquityRatio, tol)
	require.Equal(t, 0.0, res.Slack(0))
	// 5 transport + 10·1 overload + 3 activation + 500·0.5 shortage.
	require.InDelta(t, 268.0, res.Objective, tol)
}

func TestScenarioB_Absolute(t *testing.T) {
	res, err := solveMode(t, scenario(t, 5), formulation.Absolute, formulation.DefaultOptions())
	require.NoError(t, err)

	require.Equal(t, "absolute equity", res.ModeLabel)
	require.Nil(t, res.EquityRatio)
	require.NotNil(t, res.ShortageCap)
	require.InDelta(t, 5.0, *res.ShortageCap, tol)
	require.InDelta(t, 5.0, res.Slack(1), tol)
	require.InDelta(t, 5018.0, res.Objective, tol)
	require.InDelta(t, 5000.0, res.Breakdown.Shortage, tol)
}

// TestScenarioC_BothModesInfeasible: min_flow exceeds what the supplier
// can send.
func TestScenarioC_BothModesInfeasible(t *testing.T) {
	net := mustNet(t,
		[]node{{"A", -10}, {"B", 10}},
		[]network.ArcSpec{{From: "A", To: "B", Capacity: 30, MinFlow: 20, CostLow: 1, CostHigh: 1, Threshold: 30}},
	)
	for _, mode := range formulation.Modes {
		_, err := solveMode(t, net, mode, formulation.DefaultOptions())
		require.ErrorIs(t, err, milp.ErrInfeasible, mode.String())
	}
}

func TestUnequalDemands(t *testing.T) {
	net := mustNet(t,
		[]node{{"S", -9}, {"B", 10}, {"C", 5}},
		[]network.ArcSpec{
			{From: "S", To: "B", Capacity: 10, CostLow: 1, CostHigh: 1, Threshold: 10},
			{From: "S", To: "C", Capacity: 10, CostLow: 1, CostHigh: 1, Threshold: 10},
		},
	)

	prop, err := solveMode(t, net, formulation.Proportional, formulation.DefaultOptions())
	require.NoError(t, err)
	require.InDelta(t, 0.6, *prop.EquityRatio, tol)
	require.InDelta(t, 4.0, prop.Slack(1), tol)
	require.InDelta(t, 2.0, prop.Slack(2), tol)
	require.InDelta(t, 215.0, prop.Objective, tol)

	abs, err := solveMode(t, net, formulation.Absolute, formulation.DefaultOptions())
	require.NoError(t, err)
	require.InDelta(t, 3.0, *abs.ShortageCap, tol)
	require.InDelta(t, 3.0, abs.Slack(1), tol)
	require.InDelta(t, 3.0, abs.Slack(2), tol)
	require.InDelta(t, 6.0, abs.TotalShortage(), tol)
}

func TestDuplicateArcsBothCarryFlow(t *testing.T) {
	net := mustNet(t,
		[]node{{"A", -10}, {"B", 10}},
		[]network.ArcSpec{
			{From: "A", To: "B", Capacity: 5, CostLow: 1, CostHigh: 1, Threshold: 5},
			{From: "A", To: "B", Capacity: 5, CostLow: 1, CostHigh: 1, Threshold: 5},
		},
	)
	res, err := solveMode(t, net, formulation.Proportional, formulation.DefaultOptions())
	require.NoError(t, err)

	require.Equal(t, "A->B#0", res.Arcs[0].Label)
	require.Equal(t, "A->B#1", res.Arcs[1].Label)
	require.InDelta(t, 5.0, res.Flow(0), tol)
	require.InDelta(t, 5.0, res.Flow(1), tol)
	require.Equal(t, 2, res.OpenArcs())
	require.InDelta(t, 36.0, res.Objective, tol)
}

func TestLossAppliedAtHead(t *testing.T) {
	net := mustNet(t,
		[]node{{"A", -20}, {"B", 10}},
		[]network.ArcSpec{{From: "A", To: "B", Capacity: 30, CostLow: 1, CostHigh: 1, Threshold: 30, LossRate: 0.5}},
	)
	res, err := solveMode(t, net, formulation.Proportional, formulation.DefaultOptions())
	require.NoError(t, err)
	require.InDelta(t, 20.0, res.Flow(0), tol)
	require.InDelta(t, 0.0, res.Slack(1), tol)
	require.InDelta(t, 23.0, res.Objective, tol)
}

// TestGateMinFlow: a dead-end pipe with min_flow only solves when the
// lower bound follows the activation binary.
func TestGateMinFlow(t *testing.T) {
	net := mustNet(t,
		[]node{{"A", -10}, {"B", 10}, {"C", 0}},
		[]network.ArcSpec{
			{From: "A", To: "B", Capacity: 10, CostLow: 1, CostHigh: 1, Threshold: 10},
			{From: "C", To: "B", Capacity: 5, MinFlow: 3, CostLow: 1, CostHigh: 1, Threshold: 5},
		},
	)

	_, err := solveMode(t, net, formulation.Proportional, formulation.DefaultOptions())
	require.ErrorIs(t, err, milp.ErrInfeasible)

	opts := formulation.DefaultOptions()
	opts.GateMinFlow = true
	res, err := solveMode(t, net, formulation.Proportional, opts)
	require.NoError(t, err)
	require.False(t, res.Arcs[1].Open)
	require.Equal(t, 0.0, res.Flow(1))
	require.InDelta(t, 10.0, res.Flow(0), tol)
}

func TestBuild_ModelShape(t *testing.T) {
	net := mustNet(t,
		[]node{{"S", -9}, {"H", 0}, {"B", 10}, {"C", 5}},
		[]network.ArcSpec{
			{From: "S", To: "H", Capacity: 10},
			{From: "H", To: "B", Capacity: 10},
			{From: "H", To: "C", Capacity: 10},
		},
	)
	f, err := formulation.Build(net, formulation.Absolute, formulation.Options{})
	require.NoError(t, err)
	require.Equal(t, "t/absolute", f.Model.Name())
	// 5 per arc, 1 per node, s_max.
	require.Equal(t, 5*3+4+1, f.Model.NumVars())
	// 4 per arc, 1 balance per node, 1 equity per consumer.
	require.Equal(t, 4*3+4+2, f.Model.NumConstraints())
	require.Equal(t, "open[S->H]", f.Model.Var(0).Name)
	require.Equal(t, milp.Binary, f.Model.Var(0).Kind)
}

func TestBuild_Errors(t *testing.T) {
	_, err := formulation.Build(nil, formulation.Proportional, formulation.DefaultOptions())
	require.ErrorIs(t, err, formulation.ErrNilNetwork)

	net := scenario(t, 10)
	_, err = formulation.Build(net, formulation.Mode(7), formulation.DefaultOptions())
	require.ErrorIs(t, err, formulation.ErrUnknownMode)

	opts := formulation.DefaultOptions()
	opts.Absolute.Gamma = -1
	_, err = formulation.Build(net, formulation.Absolute, opts)
	require.ErrorIs(t, err, formulation.ErrBadWeights)

	_, err = formulation.Solve(context.Background(), net, formulation.Proportional, nil, opts)
	require.ErrorIs(t, err, formulation.ErrNilSolver)
}

func TestSolve_PropagatesSolverError(t *testing.T) {
	boom := &milp.SolveError{Model: "x", Status: milp.StatusBackendError, Detail: "no license"}
	stub := milp.SolverFunc(func(context.Context, *milp.Model) (*milp.Solution, error) { return nil, boom })

	_, err := formulation.Solve(context.Background(), scenario(t, 10), formulation.Absolute, stub, formulation.DefaultOptions())
	require.True(t, errors.Is(err, milp.ErrBackend))
	require.Same(t, boom, err)
}

func TestExtract_RejectsNonOptimal(t *testing.T) {
	f, err := formulation.Build(scenario(t, 10), formulation.Proportional, formulation.DefaultOptions())
	require.NoError(t, err)
	_, err = f.Extract(nil)
	require.ErrorIs(t, err, formulation.ErrNotOptimal)
	_, err = f.Extract(&milp.Solution{Status: milp.StatusOptimal})
	require.ErrorIs(t, err, formulation.ErrNotOptimal)
	_, err = f.Extract(&milp.Solution{Status: milp.StatusNodeLimit, Values: make([]float64, f.Model.NumVars())})
	require.ErrorIs(t, err, formulation.ErrNotOptimal)
}

// TestExtract_FeasibleIncumbent keeps an incumbent returned at a limit and
// marks it as not proven.
func TestExtract_FeasibleIncumbent(t *testing.T) {
	f, err := formulation.Build(scenario(t, 10), formulation.Proportional, formulation.DefaultOptions())
	require.NoError(t, err)

	sol := &milp.Solution{Status: milp.StatusFeasible, Values: make([]float64, f.Model.NumVars()), Objective: 42, Bound: 40, Gap: 2.0 / 42}
	res, err := f.Extract(sol)
	require.NoError(t, err)
	require.False(t, res.Optimal)
	require.InDelta(t, 2.0/42, res.Gap, 1e-12)
	require.Equal(t, 42.0, res.Objective)

	sol.Status, sol.Gap = milp.StatusOptimal, 0
	res, err = f.Extract(sol)
	require.NoError(t, err)
	require.True(t, res.Optimal)
	require.Zero(t, res.Gap)
}

func TestMode_TextAndParse(t *testing.T) {
	for _, m := range formulation.Modes {
		b, err := m.MarshalText()
		require.NoError(t, err)
		var back formulation.Mode
		require.NoError(t, back.UnmarshalText(b))
		require.Equal(t, m, back)

		parsed, err := formulation.ParseMode(m.String())
		require.NoError(t, err)
		require.Equal(t, m, parsed)
	}
	_, err := formulation.ParseMode("greedy")
	require.ErrorIs(t, err, formulation.ErrUnknownMode)
	_, err = formulation.Mode(9).MarshalText()
	require.ErrorIs(t, err, formulation.ErrUnknownMode)
	require.Equal(t, "mode(9)", formulation.Mode(9).String())
}

func TestOptions_ZeroWeightsFallBackToDefaults(t *testing.T) {
	var o formulation.Options
	require.Equal(t, formulation.DefaultWeights(formulation.Absolute), o.Weights(formulation.Absolute))
	require.Equal(t, 500.0, o.Weights(formulation.Proportional).Gamma)
	require.Equal(t, 1000.0, o.Weights(formulation.Absolute).Gamma)
}

func ExampleSolve() {
	net := network.New("demo")
	_, _ = net.AddNode("A", -10)
	_, _ = net.AddNode("B", 10)
	_, _ = net.AddArc(network.ArcSpec{From: "A", To: "B", Capacity: 10, CostLow: 1, CostHigh: 5, Threshold: 5})

	res, err := formulation.Solve(context.Background(), net, formulation.Proportional,
		milp.NewBranchAndBound(), formulation.DefaultOptions())
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Printf("%s: flow=%.1f r=%.2f transport=%.1f\n",
		res.ModeLabel, res.Flow(0), *res.EquityRatio, res.Breakdown.Transport)
	// Output: proportional equity: flow=10.0 r=1.00 transport=30.0
}
