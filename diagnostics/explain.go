package diagnostics

import "strings"

// Explanation frame lines.
const (
	ExplainHeader = "=== SOLVER FAILURE ANALYSIS ==="
	ExplainFooter = "=== END ANALYSIS ==="
)

// CommonCauses lists the generic failure causes printed by Explain.
var CommonCauses = [...]string{
	"min_flow > capacity on some arcs, or bounds that contradict each other",
	"demand that cannot be met even with slack",
	"disconnected network: some consumers have no path from any supplier",
	"solver configuration or licensing error",
}

// Explain wraps a raw solver error in generic guidance. raw is embedded
// verbatim; the failure itself is not inspected.
func Explain(raw string) string {
	var b strings.Builder
	b.WriteString(ExplainHeader + "\n")
	b.WriteString("Raw solver message:\n")
	b.WriteString(raw + "\n\n")
	b.WriteString("Common causes:\n")
	for _, c := range CommonCauses {
		b.WriteString("  - " + c + "\n")
	}
	b.WriteString("\nCheck the network diagnostic as well (nodes, arcs, demand balance).\n")
	b.WriteString(ExplainFooter)

	return b.String()
}
