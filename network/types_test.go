package network_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/hydronet/network"
)

// mustDiamond builds S→{A,B}→T with a duplicated S→A pipe.
func mustDiamond(t *testing.T) *network.Network {
	t.Helper()
	net := network.New("diamond")
	for _, n := range []struct {
		name   string
		demand float64
	}{{"S", -20}, {"A", 0}, {"B", 0}, {"T", 15}} {
		_, err := net.AddNode(n.name, n.demand)
		require.NoError(t, err)
	}
	for _, e := range [][2]string{{"S", "A"}, {"S", "A"}, {"S", "B"}, {"A", "T"}, {"B", "T"}} {
		_, err := net.AddArc(network.ArcSpec{From: e[0], To: e[1], Capacity: 10, Threshold: 5, CostLow: 1, CostHigh: 2})
		require.NoError(t, err)
	}

	return net
}

func TestNetwork_AddNodeErrors(t *testing.T) {
	net := network.New("n")
	_, err := net.AddNode(" ", 1)
	require.ErrorIs(t, err, network.ErrEmptyNodeName)

	_, err = net.AddNode("A", 1)
	require.NoError(t, err)
	_, err = net.AddNode("A", 2)
	require.ErrorIs(t, err, network.ErrNodeExists)

	_, err = net.AddArc(network.ArcSpec{From: "A", To: "B"})
	require.ErrorIs(t, err, network.ErrNodeNotFound)
}

func TestNetwork_StableIDsAndDuplicates(t *testing.T) {
	net := mustDiamond(t)
	require.Equal(t, 4, net.NodeCount())
	require.Equal(t, 5, net.ArcCount())

	dup := net.ArcsBetween("S", "A")
	require.Equal(t, []network.ArcID{0, 1}, dup)
	require.Equal(t, "S->A#0", net.Label(0))
	require.Equal(t, "S->A#1", net.Label(1))
	require.Equal(t, "S->B", net.Label(2))
	require.Nil(t, net.ArcsBetween("S", "nowhere"))

	_, err := net.Arc(99)
	require.ErrorIs(t, err, network.ErrArcNotFound)

	node, ok := net.NodeByName("T")
	require.True(t, ok)
	require.True(t, node.IsConsumer())
	require.Equal(t, network.NodeID(3), node.ID)
}

func TestNetwork_Adjacency(t *testing.T) {
	net := mustDiamond(t)
	adj := net.Adjacency()

	require.Equal(t, []network.ArcID{0, 1, 2}, adj.Out[0])
	require.Empty(t, adj.In[0])
	require.Equal(t, []network.ArcID{3, 4}, adj.In[3])
	require.Equal(t, 3, adj.Degree(1)) // two S→A duplicates in, A→T out
}

func TestNetwork_CloneIsIndependent(t *testing.T) {
	net := mustDiamond(t)
	c := net.Clone()
	_, err := net.AddNode("X", 1)
	require.NoError(t, err)

	require.Equal(t, 4, c.NodeCount())
	_, ok := c.NodeByName("X")
	require.False(t, ok)
}

func TestDraft_BuildRoundTrip(t *testing.T) {
	net, err := validDraft().Build()
	require.NoError(t, err)
	require.Equal(t, "pair", net.Name())

	arc, err := net.Arc(0)
	require.NoError(t, err)
	require.Equal(t, 10.0, arc.Capacity)
	require.Equal(t, 5.0, arc.CostHigh)
	require.Equal(t, 10.0, net.Node(1).Demand)

	back, err := net.ToDraft().Build()
	require.NoError(t, err)
	require.Equal(t, net.Arcs(), back.Arcs())
	require.Equal(t, net.Nodes(), back.Nodes())
}

func TestDraft_BuildRejectsInvalid(t *testing.T) {
	d := validDraft()
	d.Nodes = append(d.Nodes, network.DraftNode{ID: "", Demand: 0})
	_, err := d.Build()
	require.ErrorIs(t, err, network.ErrBlankNodeID)
}

func TestCodec_DecodeEncode(t *testing.T) {
	const doc = `
name: yaml-pair
nodes:
  - {id: A, demand: -10}
  - {id: B, demand: "10"}
  - {id: 7, demand: 0}
arcs:
  - {u: A, v: B, capacity: 10, min_flow: 0, cost_low: 1, cost_high: 5, threshold: 5, loss_rate: 0.1}
  - {u: B, v: 7, capacity: 2.5, min_flow: 0, cost_low: 1, cost_high: 1, threshold: 1, loss_rate: 0}
`
	d, err := network.Decode(strings.NewReader(doc))
	require.NoError(t, err)
	net, err := d.Build()
	require.NoError(t, err)
	require.Equal(t, 3, net.NodeCount())
	require.Equal(t, []network.ArcID{1}, net.ArcsBetween("B", "7"))

	arc, err := net.Arc(0)
	require.NoError(t, err)
	require.InDelta(t, 0.1, arc.LossRate, 1e-12)

	var buf bytes.Buffer
	require.NoError(t, network.Encode(&buf, net.ToDraft()))
	again, err := network.Decode(&buf)
	require.NoError(t, err)
	rebuilt, err := again.Build()
	require.NoError(t, err)
	require.Equal(t, net.Arcs(), rebuilt.Arcs())
}

func TestCodec_UnknownField(t *testing.T) {
	_, err := network.Decode(strings.NewReader("nodez: []\n"))
	require.Error(t, err)
}

func TestCodec_EmptyDocument(t *testing.T) {
	d, err := network.Decode(strings.NewReader(""))
	require.NoError(t, err)
	require.ErrorIs(t, network.Validate(d), network.ErrNoNodes)
}
