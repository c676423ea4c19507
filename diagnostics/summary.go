// Package diagnostics renders human-readable reports around a solve: a
// pre-solve summary of the network (Diagnose), a templated explanation of a
// solver failure (Explain), and a structural analysis of reachability and
// deliverable volume (Analyze).
//
// Reports are plain text framed by fixed header and footer lines so they can
// be embedded verbatim into failure messages.
package diagnostics

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/katalvlaran/hydronet/network"
)

// Report frame lines.
const (
	DiagnoseHeader = "=== NETWORK DIAGNOSTIC ==="
	DiagnoseFooter = "=== END DIAGNOSTIC ==="
)

// ImbalanceTolerance is the |Σ demand| above which a network is flagged as
// unbalanced.
const ImbalanceTolerance = 1e-6

// WarningKind classifies a suspicious arc.
type WarningKind uint8

const (
	// NegativeCapacity: capacity < 0. Blocks any solve.
	NegativeCapacity WarningKind = iota
	// MinFlowAboveCapacity: min_flow > capacity. Blocks any solve.
	MinFlowAboveCapacity
	// ThresholdAboveCapacity: threshold > capacity. The high tier is unused.
	ThresholdAboveCapacity
)

// Blocking reports whether the warning makes the model infeasible.
func (k WarningKind) Blocking() bool { return k != ThresholdAboveCapacity }

func (k WarningKind) String() string {
	switch k {
	case NegativeCapacity:
		return "negative capacity"
	case MinFlowAboveCapacity:
		return "min_flow > capacity"
	default:
		return "threshold > capacity"
	}
}

// Warning is one flagged arc.
type Warning struct {
	Kind     WarningKind   `json:"kind"`
	Arc      network.ArcID `json:"arc"`
	Label    string        `json:"label"`
	Capacity float64       `json:"capacity"`
	Value    float64       `json:"value"` // min_flow or threshold; capacity for NegativeCapacity
}

// Summary holds the figures behind Diagnose.
type Summary struct {
	Nodes       int       `json:"nodes"`
	Arcs        int       `json:"arcs"`
	TotalDemand float64   `json:"total_demand"`
	Consumption float64   `json:"consumption"` // Σ positive demand
	Production  float64   `json:"production"`  // Σ negative demand (≤ 0)
	Warnings    []Warning `json:"warnings,omitempty"`
	Imbalanced  bool      `json:"imbalanced"`
}

// Blocking returns the warnings that make every solve infeasible.
func (s Summary) Blocking() []Warning {
	var out []Warning
	for _, w := range s.Warnings {
		if w.Kind.Blocking() {
			out = append(out, w)
		}
	}

	return out
}

// Summarize scans net once. Every arc is checked individually, duplicates
// included.
//
// Complexity: O(V + E).
func Summarize(net *network.Network) Summary {
	s := Summary{Nodes: net.NodeCount(), Arcs: net.ArcCount()}
	for _, n := range net.Nodes() {
		s.TotalDemand += n.Demand
		switch {
		case n.Demand > 0:
			s.Consumption += n.Demand
		case n.Demand < 0:
			s.Production += n.Demand
		}
	}

	for _, a := range net.Arcs() {
		label := net.Label(a.ID)
		if a.Threshold > a.Capacity {
			s.Warnings = append(s.Warnings, Warning{Kind: ThresholdAboveCapacity, Arc: a.ID, Label: label, Capacity: a.Capacity, Value: a.Threshold})
		}
		if a.Capacity < 0 {
			s.Warnings = append(s.Warnings, Warning{Kind: NegativeCapacity, Arc: a.ID, Label: label, Capacity: a.Capacity, Value: a.Capacity})
		}
		if a.MinFlow > a.Capacity {
			s.Warnings = append(s.Warnings, Warning{Kind: MinFlowAboveCapacity, Arc: a.ID, Label: label, Capacity: a.Capacity, Value: a.MinFlow})
		}
	}
	s.Imbalanced = math.Abs(s.TotalDemand) > ImbalanceTolerance

	return s
}

// Diagnose renders the pre-solve report of net.
//
// Layout: header; node and arc counts; total, positive and negative demand
// (3 decimals); threshold warnings; grouped negative-capacity and
// min_flow warnings; the imbalance note; footer.
func Diagnose(net *network.Network) string {
	return Summarize(net).String()
}

// String renders s in the Diagnose layout.
func (s Summary) String() string {
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}

	line(DiagnoseHeader)
	line("Nodes: %d", s.Nodes)
	line("Arcs: %d", s.Arcs)
	line("Total demand (sum d_i): %.3f", s.TotalDemand)
	line("  > positive part (consumption): %.3f", s.Consumption)
	line("  > negative part (max production): %.3f", s.Production)

	var negCap, minFlow []Warning
	for _, w := range s.Warnings {
		switch w.Kind {
		case ThresholdAboveCapacity:
			line("WARNING threshold > capacity on arc %s (threshold=%s, capacity=%s)", w.Label, num(w.Value), num(w.Capacity))
		case NegativeCapacity:
			negCap = append(negCap, w)
		case MinFlowAboveCapacity:
			minFlow = append(minFlow, w)
		}
	}
	if len(negCap) > 0 {
		line("WARNING negative capacity on arcs:")
		for _, w := range negCap {
			line("  - %s (capacity=%s)", w.Label, num(w.Capacity))
		}
	}
	if len(minFlow) > 0 {
		line("WARNING min_flow > capacity on arcs:")
		for _, w := range minFlow {
			line("  - %s (min_flow=%s > capacity=%s)", w.Label, num(w.Value), num(w.Capacity))
		}
	}
	if s.Imbalanced {
		line("WARNING total demand is not zero.")
		line("  Expected when shortages are allowed; a balanced network has sum d_i = 0.")
	}
	b.WriteString(DiagnoseFooter)

	return b.String()
}

// num prints v in its shortest exact form.
func num(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
