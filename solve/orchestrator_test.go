package solve_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/katalvlaran/hydronet/diagnostics"
	"github.com/katalvlaran/hydronet/formulation"
	"github.com/katalvlaran/hydronet/milp"
	"github.com/katalvlaran/hydronet/network"
	"github.com/katalvlaran/hydronet/solve"
)

// recorder is a stub solver that fails the modes listed in fail and
// delegates the rest to the reference backend.
type recorder struct {
	mu    sync.Mutex
	fail  map[string]error
	calls []string
}

func (r *recorder) Solve(ctx context.Context, m *milp.Model) (*milp.Solution, error) {
	mode := m.Name()[strings.LastIndex(m.Name(), "/")+1:]
	r.mu.Lock()
	r.calls = append(r.calls, mode)
	err := r.fail[mode]
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}

	return milp.NewBranchAndBound().Solve(ctx, m)
}

func scenario(t *testing.T, capacity, minFlow float64) *network.Network {
	t.Helper()
	net := network.New("scenario")
	_, err := net.AddNode("A", -10)
	require.NoError(t, err)
	_, err = net.AddNode("B", 10)
	require.NoError(t, err)
	_, err = net.AddArc(network.ArcSpec{From: "A", To: "B", Capacity: capacity, MinFlow: minFlow, CostLow: 1, CostHigh: 5, Threshold: 5})
	require.NoError(t, err)

	return net
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))

	return m.GetCounter().GetValue()
}

type OrchestratorSuite struct {
	suite.Suite
	metrics *solve.Metrics
	logs    *bytes.Buffer
}

func (s *OrchestratorSuite) SetupTest() {
	s.metrics = solve.NewMetrics(nil)
	s.logs = &bytes.Buffer{}
}

func (s *OrchestratorSuite) orchestrator(solver milp.Solver, opts ...solve.Option) *solve.Orchestrator {
	base := []solve.Option{
		solve.WithMetrics(s.metrics),
		solve.WithLogger(slog.New(slog.NewTextHandler(s.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))),
		solve.WithRunIDs(func() string { return "run-1" }),
	}

	return solve.New(solver, append(base, opts...)...)
}

// TestProportionalSuccessSkipsAbsolute: the fallback is never attempted.
func (s *OrchestratorSuite) TestProportionalSuccessSkipsAbsolute() {
	rec := &recorder{}
	out, err := s.orchestrator(rec).Run(context.Background(), scenario(s.T(), 10, 0))
	s.Require().NoError(err)

	s.Require().Equal([]string{"proportional"}, rec.calls)
	s.Require().Equal(solve.StateSolved, out.State)
	s.Require().False(out.Fallback())
	s.Require().Equal("run-1", out.RunID)
	s.Require().Equal("run-1", out.Result.RunID)
	s.Require().Equal(formulation.Proportional, out.Result.Mode)
	s.Require().InDelta(10.0, out.Result.Flow(0), 1e-6)
	s.Require().Equal(diagnostics.Diagnose(scenario(s.T(), 10, 0)), out.PreReport)

	s.Require().Equal(1.0, counterValue(s.T(), s.metrics.RunsTotal.WithLabelValues(solve.OutcomeSolved, "proportional")))
	s.Require().Equal(1.0, counterValue(s.T(), s.metrics.AttemptsTotal.WithLabelValues("proportional", "optimal")))
	s.Require().Equal(0.0, counterValue(s.T(), s.metrics.FallbacksTotal))
	s.Require().Contains(s.logs.String(), "run_id=run-1")
}

// TestFallbackToAbsolute: any proportional failure triggers absolute.
func (s *OrchestratorSuite) TestFallbackToAbsolute() {
	rec := &recorder{fail: map[string]error{
		"proportional": &milp.SolveError{Model: "p", Status: milp.StatusBackendError, Detail: "license"},
	}}
	out, err := s.orchestrator(rec).Run(context.Background(), scenario(s.T(), 5, 0))
	s.Require().NoError(err)

	s.Require().Equal([]string{"proportional", "absolute"}, rec.calls)
	s.Require().True(out.Fallback())
	s.Require().Equal(formulation.Absolute, out.Result.Mode)
	s.Require().Nil(out.Result.EquityRatio)
	s.Require().InDelta(5.0, *out.Result.ShortageCap, 1e-6)
	s.Require().Len(out.Attempts, 2)
	s.Require().Contains(out.Attempts[0].Error, "license")
	s.Require().Empty(out.Attempts[1].Error)

	s.Require().Equal(1.0, counterValue(s.T(), s.metrics.FallbacksTotal))
	s.Require().Equal(1.0, counterValue(s.T(), s.metrics.AttemptsTotal.WithLabelValues("proportional", "backend_error")))
	s.Require().Contains(s.logs.String(), "attempt failed")
}

// TestScenarioC: both modes infeasible on the real backend.
func (s *OrchestratorSuite) TestScenarioC() {
	out, err := s.orchestrator(milp.NewBranchAndBound()).Run(context.Background(), scenario(s.T(), 30, 20))
	s.Require().Error(err)
	s.Require().Equal(solve.StateFailed, out.State)
	s.Require().Nil(out.Result)

	var agg *solve.AggregateFailure
	s.Require().True(errors.As(err, &agg))
	s.Require().Equal("run-1", agg.RunID)
	s.Require().ErrorIs(err, milp.ErrInfeasible)

	text := err.Error()
	s.Require().True(strings.HasPrefix(text, diagnostics.DiagnoseHeader))
	s.Require().Contains(text, diagnostics.DiagnoseFooter)
	s.Require().Contains(text, solve.FailureHeading)
	s.Require().Contains(text, "--- proportional equity ---")
	s.Require().Contains(text, "--- absolute equity ---")
	s.Require().Contains(text, `milp: model "scenario/proportional": infeasible`)
	s.Require().Contains(text, `milp: model "scenario/absolute": infeasible`)
	s.Require().Less(strings.Index(text, "proportional equity"), strings.Index(text, "absolute equity"))

	s.Require().Contains(agg.Explain(), "scenario/absolute")
	s.Require().Equal(1.0, counterValue(s.T(), s.metrics.RunsTotal.WithLabelValues(solve.OutcomeFailed, "")))
}

// TestValidationStopsBeforeModel: no solver call on an invalid draft.
func (s *OrchestratorSuite) TestValidationStopsBeforeModel() {
	rec := &recorder{}
	d := &network.Draft{Nodes: []network.DraftNode{{ID: "A", Demand: "ten"}}}

	out, err := s.orchestrator(rec).SolveDraft(context.Background(), d)
	s.Require().Nil(out)
	s.Require().ErrorIs(err, network.ErrDemandNotNumeric)
	s.Require().Empty(rec.calls)
	s.Require().Equal(1.0, counterValue(s.T(), s.metrics.RunsTotal.WithLabelValues(solve.OutcomeInvalid, "")))
}

func (s *OrchestratorSuite) TestSolveDraft() {
	d := scenario(s.T(), 10, 0).ToDraft()
	out, err := s.orchestrator(milp.NewBranchAndBound()).SolveDraft(context.Background(), d)
	s.Require().NoError(err)
	s.Require().InDelta(1.0, *out.Result.EquityRatio, 1e-6)
}

// TestCancellationIsNotAFailure: a canceled context aborts without fallback.
func (s *OrchestratorSuite) TestCancellationIsNotAFailure() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := &recorder{}

	out, err := s.orchestrator(rec).Run(ctx, scenario(s.T(), 10, 0))
	s.Require().ErrorIs(err, context.Canceled)
	s.Require().Equal([]string{"proportional"}, rec.calls)
	s.Require().Len(out.Attempts, 1)
	var agg *solve.AggregateFailure
	s.Require().False(errors.As(err, &agg))
}

func (s *OrchestratorSuite) TestAnalysisInPreReport() {
	out, err := s.orchestrator(milp.NewBranchAndBound(), solve.WithAnalysis(true)).
		Run(context.Background(), scenario(s.T(), 5, 0))
	s.Require().NoError(err)
	s.Require().NotNil(out.Analysis)
	s.Require().Equal(5.0, out.Analysis.Deliverable.Total)
	s.Require().Contains(out.PreReport, diagnostics.AnalysisHeader)
}

func (s *OrchestratorSuite) TestNilInputs() {
	_, err := solve.New(nil).Run(context.Background(), scenario(s.T(), 1, 0))
	s.Require().ErrorIs(err, solve.ErrNilSolver)
	_, err = solve.New(milp.NewBranchAndBound()).Run(context.Background(), nil)
	s.Require().ErrorIs(err, formulation.ErrNilNetwork)
}

func TestOrchestratorSuite(t *testing.T) {
	suite.Run(t, new(OrchestratorSuite))
}

func TestAggregateFailure_Layout(t *testing.T) {
	agg := &solve.AggregateFailure{
		PreReport:    "PRE",
		Proportional: errors.New("first"),
		Absolute:     errors.New("second"),
	}
	want := "PRE\n\n=== BOTH MODES FAILED ===\n" +
		"\n--- proportional equity ---\nfirst" +
		"\n--- absolute equity ---\nsecond"
	require.Equal(t, want, agg.Error())
	require.Len(t, agg.Unwrap(), 2)
}

func TestStatusLabel(t *testing.T) {
	require.Equal(t, "optimal", solve.StatusLabel(nil))
	require.Equal(t, "node_limit_reached", solve.StatusLabel(&milp.SolveError{Status: milp.StatusNodeLimit}))
	require.Equal(t, "canceled", solve.StatusLabel(context.DeadlineExceeded))
	require.Equal(t, "error", solve.StatusLabel(errors.New("x")))
}

func TestState_String(t *testing.T) {
	require.Equal(t, "try-proportional", solve.StateTryProportional.String())
	require.Equal(t, "try-absolute", solve.StateTryAbsolute.String())
	require.Equal(t, "failed", solve.StateFailed.String())
}
