package network

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Arc field keys of a DraftArc. All eight are required.
const (
	FieldFrom      = "u"
	FieldTo        = "v"
	FieldCapacity  = "capacity"
	FieldMinFlow   = "min_flow"
	FieldCostLow   = "cost_low"
	FieldCostHigh  = "cost_high"
	FieldThreshold = "threshold"
	FieldLossRate  = "loss_rate"
)

// RequiredArcFields lists the DraftArc keys in validation order.
var RequiredArcFields = []string{
	FieldFrom, FieldTo, FieldCapacity, FieldMinFlow,
	FieldCostLow, FieldCostHigh, FieldThreshold, FieldLossRate,
}

// NumericArcFields lists the DraftArc keys that must parse as numbers.
var NumericArcFields = []string{
	FieldCapacity, FieldMinFlow, FieldCostLow, FieldCostHigh, FieldThreshold, FieldLossRate,
}

// DraftNode is a node as typed into an editor: Demand may be a number or a
// numeric string.
type DraftNode struct {
	ID     string `json:"id" yaml:"id"`
	Demand any    `json:"demand" yaml:"demand"`
}

// DraftArc is an arc record keyed by the Field* constants. Values may be
// numbers or numeric strings; endpoints are node identifiers.
type DraftArc map[string]any

// Draft is the editor-facing, unvalidated form of a network.
type Draft struct {
	Name  string      `json:"name,omitempty" yaml:"name,omitempty"`
	Nodes []DraftNode `json:"nodes" yaml:"nodes"`
	Arcs  []DraftArc  `json:"arcs" yaml:"arcs"`
}

// Build validates d and converts it into a Network.
// The first violated rule is returned as a *ValidationError.
//
// Complexity: O(V + E).
func (d *Draft) Build() (*Network, error) {
	if err := Validate(d); err != nil {
		return nil, err
	}

	net := New(d.Name)
	for _, dn := range d.Nodes {
		demand, _ := numeric(dn.Demand)
		if _, err := net.AddNode(dn.ID, demand); err != nil {
			return nil, err
		}
	}
	for _, da := range d.Arcs {
		spec := ArcSpec{
			From: endpoint(da[FieldFrom]),
			To:   endpoint(da[FieldTo]),
		}
		spec.Capacity, _ = numeric(da[FieldCapacity])
		spec.MinFlow, _ = numeric(da[FieldMinFlow])
		spec.CostLow, _ = numeric(da[FieldCostLow])
		spec.CostHigh, _ = numeric(da[FieldCostHigh])
		spec.Threshold, _ = numeric(da[FieldThreshold])
		spec.LossRate, _ = numeric(da[FieldLossRate])
		if _, err := net.AddArc(spec); err != nil {
			return nil, err
		}
	}

	return net, nil
}

// ToDraft converts a Network back into its editor form. Numbers are kept as
// float64 values.
func (n *Network) ToDraft() *Draft {
	d := &Draft{
		Name:  n.name,
		Nodes: make([]DraftNode, len(n.nodes)),
		Arcs:  make([]DraftArc, len(n.arcs)),
	}
	for i, node := range n.nodes {
		d.Nodes[i] = DraftNode{ID: node.Name, Demand: node.Demand}
	}
	for i, a := range n.arcs {
		d.Arcs[i] = DraftArc{
			FieldFrom:      n.nodes[a.From].Name,
			FieldTo:        n.nodes[a.To].Name,
			FieldCapacity:  a.Capacity,
			FieldMinFlow:   a.MinFlow,
			FieldCostLow:   a.CostLow,
			FieldCostHigh:  a.CostHigh,
			FieldThreshold: a.Threshold,
			FieldLossRate:  a.LossRate,
		}
	}

	return d
}

// numeric interprets an editor value as a finite float64.
// Strings are trimmed and parsed; NaN and ±Inf are rejected.
func numeric(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case int32:
		f = float64(x)
	case uint64:
		f = float64(x)
	case uint:
		f = float64(x)
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}

	return f, true
}

// endpoint renders an arc endpoint value as a node identifier.
// YAML decodes bare numeric names (e.g. 1) as integers; they are accepted.
func endpoint(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

func isBlank(s string) bool { return strings.TrimSpace(s) == "" }
