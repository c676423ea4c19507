package milp

import "math"

// VarID indexes a variable inside its Model.
type VarID int

// VarKind distinguishes continuous from binary variables.
type VarKind uint8

const (
	// Continuous variables take any value within their bounds.
	Continuous VarKind = iota
	// Binary variables take 0 or 1.
	Binary
)

// Var describes a declared variable.
type Var struct {
	Name  string
	Kind  VarKind
	Lower float64
	Upper float64 // math.Inf(1) when unbounded above
}

// Term is one coefficient·variable product.
type Term struct {
	Var  VarID
	Coef float64
}

// Expr is a linear expression Σ Coef·Var + Constant.
// Repeated variables are summed when the model is solved.
type Expr struct {
	Terms    []Term
	Constant float64
}

// Add appends coef·v and returns e for chaining.
func (e *Expr) Add(v VarID, coef float64) *Expr {
	e.Terms = append(e.Terms, Term{Var: v, Coef: coef})

	return e
}

// AddConstant adds c to the constant part and returns e.
func (e *Expr) AddConstant(c float64) *Expr {
	e.Constant += c

	return e
}

// Eval evaluates e at the given variable values.
func (e Expr) Eval(values []float64) float64 {
	s := e.Constant
	for _, t := range e.Terms {
		s += t.Coef * values[t.Var]
	}

	return s
}

// Sense is the relation of a constraint.
type Sense uint8

const (
	LessEq Sense = iota
	GreaterEq
	Equal
)

// String returns the operator symbol.
func (s Sense) String() string {
	switch s {
	case LessEq:
		return "<="
	case GreaterEq:
		return ">="
	default:
		return "="
	}
}

// Constraint is Expr (Sense) RHS.
type Constraint struct {
	Name  string
	Expr  Expr
	Sense Sense
	RHS   float64
}

// Model is a minimization MILP under construction.
// It is not safe for concurrent mutation.
type Model struct {
	name      string
	vars      []Var
	cons      []Constraint
	objective Expr
}

// NewModel returns an empty model.
func NewModel(name string) *Model { return &Model{name: name} }

// Name returns the model name.
func (m *Model) Name() string { return m.name }

// AddContinuous declares lb ≤ x ≤ ub. Use math.Inf(1) for no upper bound.
func (m *Model) AddContinuous(name string, lb, ub float64) VarID {
	m.vars = append(m.vars, Var{Name: name, Kind: Continuous, Lower: lb, Upper: ub})

	return VarID(len(m.vars) - 1)
}

// AddNonNegative declares x ≥ 0 with no upper bound.
func (m *Model) AddNonNegative(name string) VarID {
	return m.AddContinuous(name, 0, math.Inf(1))
}

// AddBinary declares x ∈ {0, 1}.
func (m *Model) AddBinary(name string) VarID {
	m.vars = append(m.vars, Var{Name: name, Kind: Binary, Lower: 0, Upper: 1})

	return VarID(len(m.vars) - 1)
}

// AddConstraint records e (sense) rhs and returns its index.
func (m *Model) AddConstraint(name string, e Expr, sense Sense, rhs float64) int {
	m.cons = append(m.cons, Constraint{Name: name, Expr: e, Sense: sense, RHS: rhs})

	return len(m.cons) - 1
}

// Minimize sets the objective.
func (m *Model) Minimize(e Expr) { m.objective = e }

// NumVars returns the number of declared variables.
func (m *Model) NumVars() int { return len(m.vars) }

// NumConstraints returns the number of constraints.
func (m *Model) NumConstraints() int { return len(m.cons) }

// Var returns the declaration of v.
func (m *Model) Var(v VarID) Var { return m.vars[v] }

// Vars returns a copy of all declarations.
func (m *Model) Vars() []Var {
	out := make([]Var, len(m.vars))
	copy(out, m.vars)

	return out
}

// Constraints returns the constraints in insertion order. The slice is
// shared; callers must not modify it.
func (m *Model) Constraints() []Constraint { return m.cons }

// Objective returns the objective expression.
func (m *Model) Objective() Expr { return m.objective }

// Violation returns the largest constraint or bound violation of values,
// 0 for a feasible assignment. Useful for checking backend output.
func (m *Model) Violation(values []float64) float64 {
	worst := 0.0
	for i, v := range m.vars {
		x := values[i]
		worst = math.Max(worst, v.Lower-x)
		worst = math.Max(worst, x-v.Upper)
		if v.Kind == Binary {
			worst = math.Max(worst, math.Min(math.Abs(x), math.Abs(x-1)))
		}
	}
	for _, c := range m.cons {
		lhs := c.Expr.Eval(values)
		switch c.Sense {
		case LessEq:
			worst = math.Max(worst, lhs-c.RHS)
		case GreaterEq:
			worst = math.Max(worst, c.RHS-lhs)
		default:
			worst = math.Max(worst, math.Abs(lhs-c.RHS))
		}
	}

	return worst
}
