package report_test

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/hydronet/diagnostics"
	"github.com/katalvlaran/hydronet/milp"
	"github.com/katalvlaran/hydronet/network"
	"github.com/katalvlaran/hydronet/report"
	"github.com/katalvlaran/hydronet/solve"
)

func scenario(t *testing.T, capacity, minFlow float64) *network.Network {
	t.Helper()
	net := network.New("snap")
	_, _ = net.AddNode("A", -10)
	_, _ = net.AddNode("B", 10)
	_, err := net.AddArc(network.ArcSpec{From: "A", To: "B", Capacity: capacity, MinFlow: minFlow, CostLow: 1, CostHigh: 5, Threshold: 5})
	require.NoError(t, err)

	return net
}

func TestSnapshot_RoundTrip(t *testing.T) {
	net := scenario(t, 5, 0)
	out, err := solve.New(milp.NewBranchAndBound()).Run(context.Background(), net)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, report.WriteSnapshot(&buf, report.NewSnapshot(net, out, nil)))
	require.NotContains(t, buf.String(), `"pre_report"`, "payload is compressed")

	back, err := report.ReadSnapshot(&buf)
	require.NoError(t, err)
	require.Equal(t, report.SnapshotVersion, back.Version)
	require.Empty(t, back.Failure)
	require.Equal(t, out.RunID, back.Outcome.RunID)
	require.Equal(t, solve.StateSolved, back.Outcome.State)
	require.Equal(t, out.Result.Mode, back.Outcome.Result.Mode)
	require.Equal(t, out.Result.Arcs, back.Outcome.Result.Arcs)
	require.InDelta(t, *out.Result.EquityRatio, *back.Outcome.Result.EquityRatio, 1e-12)

	rebuilt, err := back.Network.Build()
	require.NoError(t, err)
	require.Equal(t, diagnostics.Diagnose(net), diagnostics.Diagnose(rebuilt))
}

func TestSnapshot_FailureAndFiles(t *testing.T) {
	net := scenario(t, 30, 20)
	out, runErr := solve.New(milp.NewBranchAndBound()).Run(context.Background(), net)
	require.Error(t, runErr)

	path := filepath.Join(t.TempDir(), "run.sz")
	require.NoError(t, report.SaveFile(path, report.NewSnapshot(net, out, runErr)))

	back, err := report.LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, solve.StateFailed, back.Outcome.State)
	require.Nil(t, back.Outcome.Result)
	require.Len(t, back.Outcome.Attempts, 2)
	require.Contains(t, back.Failure, solve.FailureHeading)
}

func TestSnapshot_Errors(t *testing.T) {
	require.ErrorIs(t, report.WriteSnapshot(&bytes.Buffer{}, nil), report.ErrNilSnapshot)

	_, err := report.ReadSnapshot(strings.NewReader("not snappy at all"))
	require.ErrorIs(t, err, report.ErrCorrupt)

	var buf bytes.Buffer
	require.NoError(t, report.WriteSnapshot(&buf, &report.Snapshot{Version: 99}))
	_, err = report.ReadSnapshot(&buf)
	require.ErrorIs(t, err, report.ErrVersion)

	_, err = report.LoadFile(filepath.Join(t.TempDir(), "missing.sz"))
	require.Error(t, err)
}
