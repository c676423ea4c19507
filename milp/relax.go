package milp

import (
	"fmt"
	"math"
)

// lpRow is Σ coef·x ≤ rhs, or = rhs when eq is set. ≥ rows are negated
// on load and repeated variables are merged.
type lpRow struct {
	idx  []int
	coef []float64
	eq   bool
	rhs  float64
}

// problem is the continuous relaxation of a Model: min c·x + c0 over rows,
// with per-node bounds supplied at solve time.
type problem struct {
	n        int
	c        []float64
	c0       float64
	rows     []lpRow
	cols     [][]int // rows touching each column
	binaries []int
}

// objective evaluates c·x + c0.
func (p *problem) objective(x []float64) float64 {
	s := p.c0
	for j, cj := range p.c {
		s += cj * x[j]
	}

	return s
}

// relax converts m into a problem plus root bounds.
//
// Steps:
//  1. Check variable bounds (finite lower, no NaN) and pin binaries to [0, 1].
//  2. Check every term for a known variable and a finite coefficient.
//  3. Move expression constants to the right-hand side, merge repeated
//     variables and negate ≥ rows.
func relax(m *Model) (*problem, []float64, []float64, error) {
	n := len(m.vars)
	p := &problem{n: n, c: make([]float64, n), cols: make([][]int, n)}
	lb := make([]float64, n)
	ub := make([]float64, n)

	// 1) Bounds.
	for j, v := range m.vars {
		if math.IsNaN(v.Lower) || math.IsInf(v.Lower, 0) {
			return nil, nil, nil, fmt.Errorf("variable %q needs a finite lower bound", v.Name)
		}
		if math.IsNaN(v.Upper) {
			return nil, nil, nil, fmt.Errorf("variable %q has a NaN upper bound", v.Name)
		}
		lb[j], ub[j] = v.Lower, v.Upper
		if v.Kind == Binary {
			lb[j], ub[j] = 0, 1
			p.binaries = append(p.binaries, j)
		}
	}

	// 2) Terms.
	checkTerms := func(where string, terms []Term) error {
		for _, t := range terms {
			if t.Var < 0 || int(t.Var) >= n {
				return fmt.Errorf("%s references unknown variable %d", where, t.Var)
			}
			if math.IsNaN(t.Coef) || math.IsInf(t.Coef, 0) {
				return fmt.Errorf("%s has a non-finite coefficient on %q", where, m.vars[t.Var].Name)
			}
		}
		return nil
	}

	if err := checkTerms("objective", m.objective.Terms); err != nil {
		return nil, nil, nil, err
	}
	for _, t := range m.objective.Terms {
		p.c[t.Var] += t.Coef
	}
	p.c0 = m.objective.Constant
	if math.IsNaN(p.c0) || math.IsInf(p.c0, 0) {
		return nil, nil, nil, fmt.Errorf("objective has a non-finite constant")
	}

	// 3) Rows.
	p.rows = make([]lpRow, 0, len(m.cons))
	pos := make(map[int]int)
	for i, c := range m.cons {
		where := fmt.Sprintf("constraint %d (%s)", i, c.Name)
		if err := checkTerms(where, c.Expr.Terms); err != nil {
			return nil, nil, nil, err
		}
		rhs := c.RHS - c.Expr.Constant
		if math.IsNaN(rhs) || math.IsInf(rhs, 0) {
			return nil, nil, nil, fmt.Errorf("%s has a non-finite right-hand side", where)
		}

		sign := 1.0
		if c.Sense == GreaterEq {
			sign = -1
		}
		r := lpRow{eq: c.Sense == Equal, rhs: sign * rhs}
		clear(pos)
		for _, t := range c.Expr.Terms {
			j := int(t.Var)
			if k, ok := pos[j]; ok {
				r.coef[k] += sign * t.Coef
				continue
			}
			pos[j] = len(r.idx)
			r.idx = append(r.idx, j)
			r.coef = append(r.coef, sign*t.Coef)
		}
		row := len(p.rows)
		for k, j := range r.idx {
			if r.coef[k] != 0 {
				p.cols[j] = append(p.cols[j], row)
			}
		}
		p.rows = append(p.rows, r)
	}

	return p, lb, ub, nil
}
