package milp

import "math"

// Presolve tolerances.
const (
	feasTol   = 1e-7  // row and bound feasibility, scaled by 1+|rhs|
	zeroTol   = 1e-12 // coefficients below this vanish
	maxPasses = 32
)

// prow is a working copy of one row.
type prow struct {
	terms map[int]float64
	eq    bool
	rhs   float64
	live  bool
}

// elimination records x[col] = (rhs − Σ terms·x) / coef for postsolve.
type elimination struct {
	col   int
	coef  float64
	rhs   float64
	terms map[int]float64
}

// presolver shrinks one node relaxation before it reaches the simplex.
//
// Every reduction keeps the optimal value and lets restore rebuild a full
// optimal point:
//   - fixed columns (lb = ub) move into right-hand sides and c0,
//   - empty rows are checked and dropped, singleton rows become bounds,
//   - rows redundant by activity bounds are dropped, forcing rows fix
//     their columns,
//   - a column every row lets decrease (increase) is fixed at its lower
//     (upper) bound when its cost agrees,
//   - a column whose bounds are implied by an equality row, or by the only
//     inequality it appears in when its cost pushes that row tight, is
//     substituted out.
type presolver struct {
	n      int
	lb, ub []float64
	c      []float64
	c0     float64
	rows   []prow
	cols   [][]int // may hold dead or repeated row ids
	live   []bool
	x      []float64 // values of fixed columns
	elims  []elimination

	// ray is set when a column can decrease the objective without bound;
	// the relaxation is then unbounded if it is feasible at all.
	ray bool
}

func newPresolver(p *problem, lb, ub []float64) *presolver {
	ps := &presolver{
		n:    p.n,
		lb:   append([]float64(nil), lb...),
		ub:   append([]float64(nil), ub...),
		c:    append([]float64(nil), p.c...),
		c0:   p.c0,
		rows: make([]prow, len(p.rows)),
		cols: make([][]int, p.n),
		live: make([]bool, p.n),
		x:    make([]float64, p.n),
	}
	for j := range ps.live {
		ps.live[j] = true
		ps.cols[j] = append([]int(nil), p.cols[j]...)
	}
	for i, r := range p.rows {
		terms := make(map[int]float64, len(r.idx))
		for k, j := range r.idx {
			if math.Abs(r.coef[k]) > zeroTol {
				terms[j] = r.coef[k]
			}
		}
		ps.rows[i] = prow{terms: terms, eq: r.eq, rhs: r.rhs, live: true}
	}

	return ps
}

// run applies reductions until none fires. It returns StatusInfeasible when
// a contradiction is found and StatusOptimal otherwise.
func (ps *presolver) run() Status {
	for j := 0; j < ps.n; j++ {
		if ps.lb[j] > ps.ub[j]+feasTol*(1+math.Abs(ps.lb[j])) {
			return StatusInfeasible
		}
	}

	for pass := 0; pass < maxPasses; pass++ {
		changed := false
		for r := range ps.rows {
			if !ps.rows[r].live {
				continue
			}
			ch, ok := ps.reduceRow(r)
			if !ok {
				return StatusInfeasible
			}
			changed = changed || ch
		}
		for j := 0; j < ps.n; j++ {
			if !ps.live[j] {
				continue
			}
			ch, ok := ps.reduceCol(j)
			if !ok {
				return StatusInfeasible
			}
			changed = changed || ch
		}
		if !changed {
			break
		}
	}

	return StatusOptimal
}

// rowTol is the feasibility tolerance of a row with right-hand side rhs.
func rowTol(rhs float64) float64 { return feasTol * (1 + math.Abs(rhs)) }

// reduceRow tries the row reductions on r. ok is false on infeasibility.
func (ps *presolver) reduceRow(r int) (changed, ok bool) {
	row := &ps.rows[r]
	tol := rowTol(row.rhs)

	switch len(row.terms) {
	case 0:
		if (row.eq && math.Abs(row.rhs) > tol) || (!row.eq && row.rhs < -tol) {
			return false, false
		}
		row.live = false
		return true, true
	case 1:
		for j, a := range row.terms {
			v := row.rhs / a
			lo, hi := ps.lb[j], ps.ub[j]
			switch {
			case row.eq:
				lo, hi = math.Max(lo, v), math.Min(hi, v)
			case a > 0:
				hi = math.Min(hi, v)
			default:
				lo = math.Max(lo, v)
			}
			if lo > hi+rowTol(v) {
				return false, false
			}
			if lo > hi {
				hi = lo
			}
			ps.lb[j], ps.ub[j] = lo, hi
		}
		row.live = false
		return true, true
	}

	lo, hi := ps.activity(r, -1)
	if lo > row.rhs+tol || (row.eq && hi < row.rhs-tol) {
		return false, false
	}
	switch {
	case !row.eq && hi <= row.rhs+tol:
		row.live = false
		return true, true
	case lo >= row.rhs-tol:
		ps.force(r, true)
		return true, true
	case row.eq && hi <= row.rhs+tol:
		ps.force(r, false)
		return true, true
	}

	return false, true
}

// activity returns the min and max of the row's left-hand side over the
// current bounds, leaving out column skip.
func (ps *presolver) activity(r, skip int) (lo, hi float64) {
	for j, a := range ps.rows[r].terms {
		if j == skip {
			continue
		}
		if a > 0 {
			lo += a * ps.lb[j]
			hi += a * ps.ub[j]
		} else {
			lo += a * ps.ub[j]
			hi += a * ps.lb[j]
		}
	}

	return lo, hi
}

// force fixes every column of r at the bound giving the row's minimum
// (low) or maximum activity and drops the row.
func (ps *presolver) force(r int, low bool) {
	terms := make(map[int]float64, len(ps.rows[r].terms))
	for j, a := range ps.rows[r].terms {
		terms[j] = a
	}
	ps.rows[r].live = false
	for j, a := range terms {
		if (a > 0) == low {
			ps.fix(j, ps.lb[j])
		} else {
			ps.fix(j, ps.ub[j])
		}
	}
}

// fix sets column j to v and removes it from every live row.
func (ps *presolver) fix(j int, v float64) {
	for _, r := range ps.cols[j] {
		row := &ps.rows[r]
		if !row.live {
			continue
		}
		if a, ok := row.terms[j]; ok {
			row.rhs -= a * v
			delete(row.terms, j)
		}
	}
	ps.c0 += ps.c[j] * v
	ps.x[j] = v
	ps.lb[j], ps.ub[j] = v, v
	ps.live[j] = false
}

// liveRows lists the live rows holding column j, without repeats.
func (ps *presolver) liveRows(j int) []int {
	out := ps.cols[j][:0:0]
	for _, r := range ps.cols[j] {
		if !ps.rows[r].live {
			continue
		}
		if _, ok := ps.rows[r].terms[j]; !ok {
			continue
		}
		dup := false
		for _, q := range out {
			if q == r {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, r)
		}
	}
	ps.cols[j] = append(ps.cols[j][:0], out...)

	return out
}

// reduceCol tries the column reductions on j. ok is false on infeasibility.
func (ps *presolver) reduceCol(j int) (changed, ok bool) {
	if ps.ub[j]-ps.lb[j] <= feasTol*(1+math.Abs(ps.lb[j])) {
		ps.fix(j, ps.lb[j])
		return true, true
	}

	rows := ps.liveRows(j)
	cj := ps.c[j]

	// Every row lets j move down (up) freely: fix it where the cost wants it.
	down, up := true, true
	for _, r := range rows {
		a := ps.rows[r].terms[j]
		if ps.rows[r].eq {
			down, up = false, false
			break
		}
		down = down && a > 0
		up = up && a < 0
	}
	if len(rows) == 0 {
		down, up = true, true
	}
	switch {
	case down && cj >= -zeroTol:
		ps.fix(j, ps.lb[j])
		return true, true
	case up && cj <= zeroTol:
		if !math.IsInf(ps.ub[j], 1) {
			ps.fix(j, ps.ub[j])
			return true, true
		}
		if cj < -zeroTol {
			ps.ray = true
			ps.fix(j, ps.lb[j])
			return true, true
		}
	}

	// Column singleton in an inequality its cost keeps tight.
	if len(rows) == 1 && !ps.rows[rows[0]].eq {
		a := ps.rows[rows[0]].terms[j]
		if (cj >= -zeroTol && a < 0) || (cj <= zeroTol && a > 0) {
			return ps.substitute(j, rows[0]), true
		}
		return false, true
	}

	// Implied-free column of a short equality.
	if len(rows) > 8 {
		return false, true
	}
	for _, r := range rows {
		if ps.rows[r].eq && len(ps.rows[r].terms) <= 4 && ps.substitute(j, r) {
			return true, true
		}
	}

	return false, true
}

// substitute eliminates column j through row r, read as an equality, when
// the row alone keeps j inside its bounds. It reports whether it did.
func (ps *presolver) substitute(j, r int) bool {
	row := &ps.rows[r]
	a := row.terms[j]
	lo, hi := ps.activity(r, j)

	// x_j = (rhs − rest) / a over rest ∈ [lo, hi].
	xlo, xhi := (row.rhs-hi)/a, (row.rhs-lo)/a
	if a < 0 {
		xlo, xhi = xhi, xlo
	}
	if math.IsNaN(xlo) || math.IsNaN(xhi) {
		return false
	}
	if xlo < ps.lb[j]-rowTol(ps.lb[j]) || xhi > ps.ub[j]+rowTol(ps.ub[j]) {
		return false
	}

	others := make(map[int]float64, len(row.terms)-1)
	for k, v := range row.terms {
		if k != j {
			others[k] = v
		}
	}

	for _, s := range ps.cols[j] {
		if s == r || !ps.rows[s].live {
			continue
		}
		rs := &ps.rows[s]
		b, ok := rs.terms[j]
		if !ok {
			continue
		}
		f := b / a
		delete(rs.terms, j)
		rs.rhs -= f * row.rhs
		for k, v := range others {
			old, had := rs.terms[k]
			nv := old - f*v
			if math.Abs(nv) <= zeroTol {
				delete(rs.terms, k)
				continue
			}
			if !had {
				ps.cols[k] = append(ps.cols[k], s)
			}
			rs.terms[k] = nv
		}
	}

	if cj := ps.c[j]; cj != 0 {
		f := cj / a
		ps.c0 += f * row.rhs
		for k, v := range others {
			ps.c[k] -= f * v
		}
		ps.c[j] = 0
	}

	ps.elims = append(ps.elims, elimination{col: j, coef: a, rhs: row.rhs, terms: others})
	row.live = false
	ps.live[j] = false

	return true
}

// impliedUpper reports whether some live row bounds column j from above at
// or below ub[j] using only lower bounds of the other columns.
func (ps *presolver) impliedUpper(j int) bool {
	for _, r := range ps.liveRows(j) {
		row := &ps.rows[r]
		a := row.terms[j]
		if a < 0 && !row.eq {
			continue
		}
		rest, same := 0.0, true
		for k, v := range row.terms {
			if k == j {
				continue
			}
			if (v > 0) != (a > 0) {
				same = false
				break
			}
			rest += v * ps.lb[k]
		}
		if same && (row.rhs-rest)/a <= ps.ub[j]+zeroTol {
			return true
		}
	}

	return false
}

// restore fills the eliminated columns of x, whose live entries are set.
func (ps *presolver) restore(x []float64) []float64 {
	for j := 0; j < ps.n; j++ {
		if !ps.live[j] {
			x[j] = ps.x[j]
		}
	}
	for i := len(ps.elims) - 1; i >= 0; i-- {
		e := ps.elims[i]
		s := e.rhs
		for k, v := range e.terms {
			s -= v * x[k]
		}
		x[e.col] = s / e.coef
	}

	return x
}
