package milp

import (
	"container/heap"
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"
)

// Default limits of the reference backend.
const (
	DefaultTolerance      = 1e-9
	DefaultIntegralityTol = 1e-6
	DefaultMIPGap         = 1e-4
	DefaultMaxNodes       = 1 << 16
	DefaultTimeLimit      = 10 * time.Second
)

// repairEvery is how often, in nodes, the fix-and-resolve heuristic runs
// while there is no incumbent.
const repairEvery = 16

// Options configures BranchAndBound.
type Options struct {
	Tolerance      float64       // simplex tolerance
	IntegralityTol float64       // |x − round(x)| ≤ IntegralityTol counts as integral
	MIPGap         float64       // relative incumbent/bound gap that ends the search
	MaxNodes       int           // branch-and-bound node budget
	TimeLimit      time.Duration // 0 = unlimited
	Logger         *slog.Logger  // nil = silent
}

// Option mutates Options.
type Option func(*Options)

// WithTolerance sets the simplex tolerance. Panics on non-positive values.
func WithTolerance(tol float64) Option {
	if !(tol > 0) {
		panic("milp: WithTolerance requires a positive value")
	}
	return func(o *Options) { o.Tolerance = tol }
}

// WithMIPGap sets the relative gap at which an incumbent counts as optimal.
// Panics outside [0, 1).
func WithMIPGap(gap float64) Option {
	if !(gap >= 0 && gap < 1) {
		panic("milp: WithMIPGap requires 0 ≤ gap < 1")
	}
	return func(o *Options) { o.MIPGap = gap }
}

// WithMaxNodes bounds the number of explored nodes. Panics if n < 1.
func WithMaxNodes(n int) Option {
	if n < 1 {
		panic("milp: WithMaxNodes requires n ≥ 1")
	}
	return func(o *Options) { o.MaxNodes = n }
}

// WithTimeLimit sets the wall-clock budget; 0 disables it.
func WithTimeLimit(d time.Duration) Option {
	if d < 0 {
		panic("milp: WithTimeLimit requires d ≥ 0")
	}
	return func(o *Options) { o.TimeLimit = d }
}

// WithLogger enables debug logging of search progress.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// BranchAndBound is the reference Solver. Relaxations are solved with
// gonum's simplex after presolve; the tree is searched best-bound first.
type BranchAndBound struct {
	opts Options
}

// NewBranchAndBound returns a backend configured by opts.
func NewBranchAndBound(opts ...Option) *BranchAndBound {
	o := Options{
		Tolerance:      DefaultTolerance,
		IntegralityTol: DefaultIntegralityTol,
		MIPGap:         DefaultMIPGap,
		MaxNodes:       DefaultMaxNodes,
		TimeLimit:      DefaultTimeLimit,
	}
	for _, fn := range opts {
		fn(&o)
	}

	return &BranchAndBound{opts: o}
}

// Options returns the effective configuration.
func (b *BranchAndBound) Options() Options { return b.opts }

// fixing pins one binary to 0 or 1 inside a search node.
type fixing struct {
	v   int
	val float64
}

// node is an open subproblem; bound is its parent's relaxation value.
type node struct {
	fix   []fixing
	bound float64
}

// nodePQ implements heap.Interface for []*node, smallest bound first and
// deeper nodes first on ties.
type nodePQ []*node

func (pq nodePQ) Len() int { return len(pq) }
func (pq nodePQ) Less(i, j int) bool {
	if pq[i].bound != pq[j].bound {
		return pq[i].bound < pq[j].bound
	}
	return len(pq[i].fix) > len(pq[j].fix)
}
func (pq nodePQ) Swap(i, j int) { pq[i], pq[j] = pq[j], pq[i] }
func (pq *nodePQ) Push(x any)   { *pq = append(*pq, x.(*node)) }
func (pq *nodePQ) Pop() any {
	old := *pq
	n := len(old)
	it := old[n-1]
	*pq = old[:n-1]
	return it
}

// bbEngine holds the search state of one Solve call.
type bbEngine struct {
	model  *Model
	p      *problem
	lb, ub []float64 // root bounds
	opts   Options
	stop   *atomic.Bool
	scale  float64 // 1 + largest finite right-hand side or bound

	queue   nodePQ
	nodes   int
	found   bool
	best    []float64
	bestObj float64
	bound   float64
}

// Solve runs branch and bound on m.
//
// Steps:
//  1. Relax m into an LP (validating ids, coefficients and bounds).
//  2. Pop the open node with the lowest bound and solve its relaxation.
//  3. Prune infeasible nodes and nodes that cannot beat the incumbent by
//     more than the gap; accept integral relaxations; try rounding and
//     fix-and-resolve for an early incumbent; branch on the most
//     fractional binary.
//  4. Stop once the gap closes or the tree is empty (optimal), or at the
//     node or time limit, returning the incumbent as StatusFeasible.
//
// The time limit and ctx interrupt a relaxation mid-pivot.
func (b *BranchAndBound) Solve(ctx context.Context, m *Model) (*Solution, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, lb, ub, err := relax(m)
	if err != nil {
		return nil, &SolveError{Model: m.Name(), Status: StatusInvalidModel, Detail: err.Error()}
	}

	sctx, cancel := ctx, context.CancelFunc(func() {})
	if b.opts.TimeLimit > 0 {
		sctx, cancel = context.WithTimeout(ctx, b.opts.TimeLimit)
	}
	defer cancel()
	var stop atomic.Bool
	release := context.AfterFunc(sctx, func() { stop.Store(true) })
	defer release()

	e := &bbEngine{
		model:   m,
		p:       p,
		lb:      lb,
		ub:      ub,
		opts:    b.opts,
		stop:    &stop,
		scale:   problemScale(p, lb, ub),
		bestObj: math.Inf(1),
		bound:   math.Inf(-1),
	}

	st, detail := e.search()
	if st == StatusUnknown {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		st, detail = StatusTimeLimit, fmt.Sprintf("after %d nodes", e.nodes)
	}
	switch st {
	case StatusOptimal:
	case StatusNodeLimit, StatusTimeLimit:
		if !e.found {
			return nil, &SolveError{Model: m.Name(), Status: st, Detail: detail}
		}
		st = StatusFeasible
	default:
		return nil, &SolveError{Model: m.Name(), Status: st, Detail: detail}
	}

	sol := &Solution{
		Status:    st,
		Values:    e.best,
		Objective: e.bestObj,
		Bound:     math.Min(e.bound, e.bestObj),
		Nodes:     e.nodes,
	}
	sol.Gap = math.Max(0, (sol.Objective-sol.Bound)/math.Max(math.Abs(sol.Objective), 1))
	if e.opts.Logger != nil {
		e.opts.Logger.Debug("search done",
			slog.String("status", st.String()),
			slog.Float64("objective", sol.Objective),
			slog.Float64("gap", sol.Gap),
			slog.Int("nodes", e.nodes))
	}

	return sol, nil
}

// search runs the best-first loop. It returns StatusUnknown when stopped.
func (e *bbEngine) search() (Status, string) {
	heap.Push(&e.queue, &node{bound: math.Inf(-1)})

	for e.queue.Len() > 0 {
		e.bound = math.Min(e.queue[0].bound, e.bestObj)
		if e.found && e.closed(e.bound) {
			return StatusOptimal, ""
		}
		if e.stop.Load() {
			return StatusUnknown, ""
		}
		if e.nodes >= e.opts.MaxNodes {
			return StatusNodeLimit, fmt.Sprintf("%d nodes explored", e.nodes)
		}

		nd := heap.Pop(&e.queue).(*node)
		if e.found && e.closed(nd.bound) {
			continue
		}
		lb, ub := e.nodeBounds(nd.fix)
		res := solveLP(e.p, lb, ub, e.stop, e.opts.Tolerance)
		root := e.nodes == 0
		e.nodes++

		switch res.status {
		case StatusOptimal:
		case StatusInfeasible:
			if root {
				return StatusInfeasible, "LP relaxation has no feasible point"
			}
			continue
		case StatusUnbounded:
			if root {
				return StatusUnbounded, "LP relaxation is unbounded"
			}
			continue
		case StatusUnknown:
			heap.Push(&e.queue, nd)
			e.bound = math.Min(e.queue[0].bound, e.bestObj)
			return StatusUnknown, ""
		default:
			return res.status, fmt.Sprintf("relaxation at node %d: %s", e.nodes, res.detail)
		}

		if e.found && e.closed(res.obj) {
			continue
		}

		branch := e.mostFractional(res.x)
		if branch < 0 {
			if err := e.acceptRelaxation(res.x); err != nil {
				return StatusBackendError, err.Error()
			}
			continue
		}

		near := math.Round(res.x[branch])
		heap.Push(&e.queue, &node{fix: appendFixing(nd.fix, fixing{v: branch, val: near}), bound: res.obj})
		heap.Push(&e.queue, &node{fix: appendFixing(nd.fix, fixing{v: branch, val: 1 - near}), bound: res.obj})
		if e.opts.Logger != nil {
			e.opts.Logger.Debug("branch",
				slog.String("var", e.model.Var(VarID(branch)).Name),
				slog.Float64("value", res.x[branch]),
				slog.Float64("bound", res.obj),
				slog.Int("depth", len(nd.fix)))
		}

		e.round(res.x)
		if root || (!e.found && e.nodes%repairEvery == 0) {
			e.repair(nd.fix, res.x)
		}
	}

	if !e.found {
		return StatusInfeasible, fmt.Sprintf("no integral point in %d nodes", e.nodes)
	}
	e.bound = e.bestObj

	return StatusOptimal, ""
}

// closed reports whether a node with this bound cannot improve the
// incumbent by more than the gap tolerance.
func (e *bbEngine) closed(bound float64) bool {
	tol := math.Max(e.opts.MIPGap, 1e-9) * math.Max(math.Abs(e.bestObj), 1)
	return bound >= e.bestObj-tol
}

// nodeBounds returns the root bounds with fix applied.
func (e *bbEngine) nodeBounds(fix []fixing) ([]float64, []float64) {
	lb := append([]float64(nil), e.lb...)
	ub := append([]float64(nil), e.ub...)
	for _, f := range fix {
		lb[f.v], ub[f.v] = f.val, f.val
	}

	return lb, ub
}

// mostFractional returns the binary farthest from integral, lowest index
// on ties, or −1 when all are integral.
func (e *bbEngine) mostFractional(x []float64) int {
	branch, frac := -1, 0.0
	for _, j := range e.p.binaries {
		f := math.Abs(x[j] - math.Round(x[j]))
		if f > e.opts.IntegralityTol && f > frac+1e-12 {
			branch, frac = j, f
		}
	}

	return branch
}

// acceptRelaxation offers an integral relaxation point. A point the model
// rejects means the LP came back wrong.
func (e *bbEngine) acceptRelaxation(x []float64) error {
	vals := e.snap(x, math.Round)
	if v := e.model.Violation(vals); v > 1e-5*e.scale {
		return fmt.Errorf("relaxation point violates the model by %g", v)
	}
	e.offer(vals)

	return nil
}

// round tries the binaries of x rounded up, then to nearest, keeping the
// continuous part.
func (e *bbEngine) round(x []float64) {
	up := func(v float64) float64 { return math.Ceil(v - e.opts.IntegralityTol) }
	for _, fn := range []func(float64) float64{up, math.Round} {
		vals := e.snap(x, fn)
		if e.model.Violation(vals) <= 1e-6*e.scale {
			e.offer(vals)
			return
		}
	}
}

// repair fixes every binary at its rounded-up value and re-solves the
// continuous part.
func (e *bbEngine) repair(fix []fixing, x []float64) {
	lb, ub := e.nodeBounds(fix)
	for _, j := range e.p.binaries {
		v := math.Min(math.Max(math.Ceil(x[j]-e.opts.IntegralityTol), lb[j]), ub[j])
		lb[j], ub[j] = v, v
	}
	res := solveLP(e.p, lb, ub, e.stop, e.opts.Tolerance)
	if res.status != StatusOptimal {
		return
	}
	if vals := e.snap(res.x, math.Round); e.model.Violation(vals) <= 1e-6*e.scale {
		e.offer(vals)
	}
}

// snap copies x with binaries mapped through fn and round-off cleared.
func (e *bbEngine) snap(x []float64, fn func(float64) float64) []float64 {
	vals := append([]float64(nil), x...)
	for _, j := range e.p.binaries {
		vals[j] = math.Min(math.Max(fn(vals[j]), 0), 1)
	}
	for j := range vals {
		if math.Abs(vals[j]) < 1e-12 {
			vals[j] = 0
		}
	}

	return vals
}

// offer records vals as incumbent if it improves.
func (e *bbEngine) offer(vals []float64) {
	obj := e.model.Objective().Eval(vals)
	if e.found && obj >= e.bestObj-1e-12 {
		return
	}
	e.found, e.best, e.bestObj = true, vals, obj
	if e.opts.Logger != nil {
		e.opts.Logger.Debug("incumbent", slog.Float64("objective", obj), slog.Int("nodes", e.nodes))
	}
}

// appendFixing copies fix and adds f, so sibling nodes never share storage.
func appendFixing(fix []fixing, f fixing) []fixing {
	out := make([]fixing, len(fix), len(fix)+1)
	copy(out, fix)

	return append(out, f)
}

// problemScale is 1 plus the largest finite right-hand side or bound.
func problemScale(p *problem, lb, ub []float64) float64 {
	s := 0.0
	for _, r := range p.rows {
		s = math.Max(s, math.Abs(r.rhs))
	}
	for j := range lb {
		s = math.Max(s, math.Abs(lb[j]))
		if !math.IsInf(ub[j], 1) {
			s = math.Max(s, math.Abs(ub[j]))
		}
	}

	return 1 + s
}
