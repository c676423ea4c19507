package milp

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// pipes is the two-pipe fixed-charge model: both gates are presolved away
// and restored from the flows.
func pipes() *Model {
	m := NewModel("pipes")
	xa := m.AddContinuous("xa", 0, 10)
	xb := m.AddContinuous("xb", 0, 10)
	oa := m.AddBinary("open_a")
	ob := m.AddBinary("open_b")
	m.AddConstraint("gate_a", *(&Expr{}).Add(xa, 1).Add(oa, -10), LessEq, 0)
	m.AddConstraint("gate_b", *(&Expr{}).Add(xb, 1).Add(ob, -10), LessEq, 0)
	m.AddConstraint("need", *(&Expr{}).Add(xa, 1).Add(xb, 1), GreaterEq, 12)
	m.Minimize(*(&Expr{}).Add(xa, 1).Add(xb, 2).Add(oa, 5).Add(ob, 5))

	return m
}

func TestSolveLP_RestoresEliminatedColumns(t *testing.T) {
	p, lb, ub, err := relax(pipes())
	require.NoError(t, err)

	var stop atomic.Bool
	res := solveLP(p, lb, ub, &stop, DefaultTolerance)
	require.Equal(t, StatusOptimal, res.status)
	require.InDelta(t, 20.0, res.obj, 1e-9)
	require.InDelta(t, 10.0, res.x[0], 1e-9)
	require.InDelta(t, 2.0, res.x[1], 1e-9)
	require.InDelta(t, 1.0, res.x[2], 1e-9)
	require.InDelta(t, 0.2, res.x[3], 1e-9)
}

func TestSolveLP_StopFlag(t *testing.T) {
	p, lb, ub, err := relax(pipes())
	require.NoError(t, err)

	var stop atomic.Bool
	stop.Store(true)
	res := solveLP(p, lb, ub, &stop, DefaultTolerance)
	require.Equal(t, StatusUnknown, res.status)
	require.Nil(t, res.x)
}

func TestPresolve_FixingsReachBounds(t *testing.T) {
	p, lb, ub, err := relax(pipes())
	require.NoError(t, err)

	// open_b = 0 closes pipe b, so pipe a alone cannot carry 12.
	lb[3], ub[3] = 0, 0
	ps := newPresolver(p, lb, ub)
	require.Equal(t, StatusInfeasible, ps.run())

	lb[3], ub[3] = 1, 1
	var stop atomic.Bool
	res := solveLP(p, lb, ub, &stop, DefaultTolerance)
	require.Equal(t, StatusOptimal, res.status)
	require.InDelta(t, 24.0, res.obj, 1e-9)
}

func TestSimplex_WatchedMatrixStops(t *testing.T) {
	a := mat.NewDense(1, 2, []float64{1, 1})
	var stop atomic.Bool

	obj, x, err := simplex(&stop, []float64{1, 2}, a, []float64{3}, 0, []int{0})
	require.NoError(t, err)
	require.InDelta(t, 3.0, obj, 1e-12)
	require.Equal(t, []float64{3, 0}, x)

	stop.Store(true)
	_, _, err = simplex(&stop, []float64{1, 2}, a, []float64{3}, 0, []int{0})
	require.ErrorIs(t, err, errInterrupted)
	require.Equal(t, StatusUnknown, simplexStatus(err))
}

func TestCompleteBasis(t *testing.T) {
	// Two rows, two structural columns, slacks at 2 and 3.
	a := mat.NewDense(2, 4, []float64{
		0, 1, 1, 0,
		3, 1, 0, 1,
	})
	require.Equal(t, []int{0, 2}, completeBasis(a, 2, 2, []int{0}))
	require.Equal(t, []int{0, 1}, completeBasis(a, 2, 2, []int{0, 1}))
	require.Equal(t, []int{2, 3}, completeBasis(a, 2, 2, nil))
}
