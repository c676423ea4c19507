package milp

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// errInterrupted unwinds a running simplex once the search is stopped.
var errInterrupted = errors.New("milp: relaxation interrupted")

// lpResult is the outcome of one relaxation. StatusUnknown means the
// search was stopped while it ran.
type lpResult struct {
	status Status
	x      []float64
	obj    float64
	detail string
}

// watched is a read-only view of a matrix whose reads panic with
// errInterrupted once stop is set. The simplex reads a column of A on every
// pivot, so a stop takes effect within one iteration.
type watched struct {
	a    mat.Matrix
	stop *atomic.Bool
}

func (w watched) Dims() (int, int) { return w.a.Dims() }

func (w watched) At(i, j int) float64 {
	if w.stop.Load() {
		panic(errInterrupted)
	}
	return w.a.At(i, j)
}

func (w watched) T() mat.Matrix { return mat.Transpose{Matrix: w} }

// simplex runs lp.Simplex on a watched view of a. A supplied basis that the
// simplex rejects is retried without one.
func simplex(stop *atomic.Bool, c []float64, a mat.Matrix, b []float64, tol float64, basis []int) (float64, []float64, error) {
	obj, x, err, rejected := guardedSimplex(stop, c, a, b, tol, basis)
	if rejected && basis != nil {
		obj, x, err, _ = guardedSimplex(stop, c, a, b, tol, nil)
	}

	return obj, x, err
}

func guardedSimplex(stop *atomic.Bool, c []float64, a mat.Matrix, b []float64, tol float64, basis []int) (obj float64, x []float64, err error, rejected bool) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok && errors.Is(e, errInterrupted) {
				err = errInterrupted
				return
			}
			err, rejected = fmt.Errorf("simplex: %v", r), true
		}
	}()
	obj, x, err = lp.Simplex(c, watched{a: a, stop: stop}, b, tol, basis)

	return obj, x, err, false
}

// standard is a presolved relaxation in the form lp.Simplex expects:
//
//	min c·y  s.t.  [M | S | R]·[y; s; a] = b,  y, s, a ≥ 0
//
// y are the live columns shifted by their lower bounds, S holds one ±1
// slack per row (so A has full row rank) and R one artificial per row whose
// right-hand side had to be negated.
type standard struct {
	a    *mat.Dense
	b    []float64
	c    []float64 // structural costs, len nl
	nl   int
	m    int
	flip []bool // row negated, artificial in use
	arts []int  // row of each artificial column
}

// aggWeight is the positive weight of equality row i in the aggregate row.
func aggWeight(i int) float64 {
	const phi = 0.6180339887498949
	return 1 + math.Mod(float64(i)*phi, 1)
}

// buildStandard lays out the live part of ps.
//
// Steps:
//  1. Shift each live column to y = x − lb.
//  2. Every live row becomes Σ a·y + s = b with s ≥ 0. Equalities also feed
//     one aggregate row Σ wᵢ·aᵢ·y ≥ Σ wᵢ·bᵢ (wᵢ > 0), which together with
//     the ≤ rows forces each of them tight.
//  3. Finite upper bounds not implied by a row become y ≤ ub − lb.
//  4. Rows with b < 0 are negated and get an artificial column.
func buildStandard(ps *presolver, cols, rows []int) *standard {
	pos := make(map[int]int, len(cols))
	for i, j := range cols {
		pos[j] = i
	}
	nl := len(cols)

	type dense struct {
		coef []float64
		rhs  float64
	}
	var out []dense

	// 1-2) Rows.
	agg := dense{coef: make([]float64, nl)}
	var eqs []dense
	for k, r := range rows {
		row := &ps.rows[r]
		d := dense{coef: make([]float64, nl), rhs: row.rhs}
		for j, a := range row.terms {
			d.coef[pos[j]] = a
			d.rhs -= a * ps.lb[j]
		}
		out = append(out, d)
		if row.eq {
			w := aggWeight(k)
			for i, a := range d.coef {
				agg.coef[i] -= w * a
			}
			agg.rhs -= w * d.rhs
			eqs = append(eqs, d)
		}
	}
	if len(eqs) > 0 {
		nz := false
		for _, a := range agg.coef {
			if math.Abs(a) > zeroTol {
				nz = true
				break
			}
		}
		if nz {
			out = append(out, agg)
		} else {
			for _, d := range eqs {
				neg := dense{coef: make([]float64, nl), rhs: -d.rhs}
				for i, a := range d.coef {
					neg.coef[i] = -a
				}
				out = append(out, neg)
			}
		}
	}

	// 3) Upper bounds.
	for i, j := range cols {
		if math.IsInf(ps.ub[j], 1) || ps.impliedUpper(j) {
			continue
		}
		d := dense{coef: make([]float64, nl), rhs: ps.ub[j] - ps.lb[j]}
		d.coef[i] = 1
		out = append(out, d)
	}

	// 4) Matrix.
	m := len(out)
	s := &standard{nl: nl, m: m, b: make([]float64, m), flip: make([]bool, m)}
	for _, d := range out {
		if d.rhs < 0 {
			s.arts = append(s.arts, 0)
		}
	}
	s.a = mat.NewDense(m, nl+m+len(s.arts), nil)
	art := 0
	for i, d := range out {
		sign := 1.0
		if d.rhs < 0 {
			sign = -1
			s.flip[i] = true
			s.arts[art] = i
			s.a.Set(i, nl+m+art, 1)
			art++
		}
		for k, a := range d.coef {
			if a != 0 {
				s.a.Set(i, k, sign*a)
			}
		}
		s.a.Set(i, nl+i, sign)
		s.b[i] = sign * d.rhs
	}

	s.c = make([]float64, nl)
	for i, j := range cols {
		s.c[i] = ps.c[j]
	}

	return s
}

// solve returns y for the structural columns.
//
// Phase 1 starts from the slack/artificial identity basis and minimizes the
// artificials. Phase 2 starts from the phase-1 vertex, completed to a basis
// with slack columns, and minimizes c·y.
func (s *standard) solve(stop *atomic.Bool, tol float64) ([]float64, Status, string) {
	n2 := s.nl + s.m
	c2 := make([]float64, n2)
	copy(c2, s.c)

	var (
		x2  []float64
		err error
	)
	if len(s.arts) == 0 {
		basis := make([]int, s.m)
		for i := range basis {
			basis[i] = s.nl + i
		}
		_, x2, err = simplex(stop, c2, s.a, s.b, tol, basis)
	} else {
		n1 := n2 + len(s.arts)
		c1 := make([]float64, n1)
		basis := make([]int, s.m)
		for i := range basis {
			basis[i] = s.nl + i
		}
		for k, row := range s.arts {
			c1[n2+k] = 1
			basis[row] = n2 + k
		}
		infeas, x1, err1 := simplex(stop, c1, s.a, s.b, tol, basis)
		if err1 != nil {
			return nil, simplexStatus(err1), err1.Error()
		}
		scale := 1.0
		for _, v := range s.b {
			scale = math.Max(scale, math.Abs(v))
		}
		if infeas > feasTol*scale {
			return nil, StatusInfeasible, ""
		}

		var support []int
		for j := s.nl; j < n2; j++ {
			if x1[j] > 0 {
				support = append(support, j)
			}
		}
		for j := 0; j < s.nl; j++ {
			if x1[j] > 0 {
				support = append(support, j)
			}
		}
		a2 := s.a.Slice(0, s.m, 0, n2)
		_, x2, err = simplex(stop, c2, a2, s.b, tol, completeBasis(a2, s.m, s.nl, support))
	}
	if err != nil {
		return nil, simplexStatus(err), err.Error()
	}

	return x2[:s.nl], StatusOptimal, ""
}

// simplexStatus maps lp errors onto solve statuses.
func simplexStatus(err error) Status {
	switch {
	case errors.Is(err, errInterrupted):
		return StatusUnknown
	case errors.Is(err, lp.ErrInfeasible):
		return StatusInfeasible
	case errors.Is(err, lp.ErrUnbounded):
		return StatusUnbounded
	default:
		return StatusBackendError
	}
}

// completeBasis picks the linearly independent columns of support (slack
// columns first) and fills the remaining rows with their slack columns.
// Column nl+i is the slack of row i.
func completeBasis(a mat.Matrix, m, nl int, support []int) []int {
	k := len(support)
	w := make([][]float64, m)
	for i := range w {
		w[i] = make([]float64, k)
		for c, j := range support {
			w[i][c] = a.At(i, j)
		}
	}

	used := make([]bool, m)
	basis := make([]int, 0, m)
	for c, j := range support {
		p, best := -1, 1e-9
		for i := 0; i < m; i++ {
			if v := math.Abs(w[i][c]); !used[i] && v > best {
				p, best = i, v
			}
		}
		if p < 0 {
			continue
		}
		used[p] = true
		basis = append(basis, j)
		for i := 0; i < m; i++ {
			if used[i] || w[i][c] == 0 {
				continue
			}
			f := w[i][c] / w[p][c]
			for cc := c + 1; cc < k; cc++ {
				w[i][cc] -= f * w[p][cc]
			}
			w[i][c] = 0
		}
	}
	for i := 0; i < m; i++ {
		if !used[i] {
			basis = append(basis, nl+i)
		}
	}

	return basis
}

// solveLP solves the relaxation of p under lb ≤ x ≤ ub.
//
// Steps:
//  1. Presolve; contradictions end here as infeasible.
//  2. Lay out the surviving rows and columns in standard form and run the
//     two simplex phases.
//  3. Shift back, restore eliminated columns and evaluate the objective.
//
// Complexity: each simplex pivot factors the m×m basis, O(m³).
func solveLP(p *problem, lb, ub []float64, stop *atomic.Bool, tol float64) lpResult {
	// 1) Presolve.
	ps := newPresolver(p, lb, ub)
	if st := ps.run(); st != StatusOptimal {
		return lpResult{status: st}
	}

	// The simplex rejects all-zero columns; settle any left without a row.
	var cols, rows []int
	for j := 0; j < ps.n; j++ {
		if ps.live[j] && len(ps.liveRows(j)) == 0 {
			ps.reduceCol(j)
		}
		if ps.live[j] {
			cols = append(cols, j)
		}
	}
	for r := range ps.rows {
		if ps.rows[r].live {
			rows = append(rows, r)
		}
	}

	// 2) Simplex.
	x := make([]float64, p.n)
	if len(rows) > 0 && len(cols) > 0 {
		s := buildStandard(ps, cols, rows)
		y, st, detail := s.solve(stop, tol)
		if st != StatusOptimal {
			return lpResult{status: st, detail: detail}
		}
		for i, j := range cols {
			x[j] = ps.lb[j] + y[i]
		}
	} else {
		for _, j := range cols {
			x[j] = ps.lb[j]
		}
	}

	// 3) Postsolve.
	if ps.ray {
		return lpResult{status: StatusUnbounded}
	}
	x = ps.restore(x)

	return lpResult{status: StatusOptimal, x: x, obj: p.objective(x)}
}
