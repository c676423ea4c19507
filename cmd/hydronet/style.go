package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/katalvlaran/hydronet/solve"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00FFFF"))

	okStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#00FF00"))

	failStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF5555"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#00FFFF")).
			Padding(0, 1)
)

// renderResult formats an optimal result: a summary box followed by the
// open arcs and the consumers with a shortage.
func renderResult(out *solve.Outcome) string {
	res := out.Result
	var head strings.Builder
	fmt.Fprintf(&head, "%s\n", titleStyle.Render("Solved with "+res.ModeLabel))
	fmt.Fprintf(&head, "run       %s\n", out.RunID)
	fmt.Fprintf(&head, "objective %.3f\n", res.Objective)
	if !res.Optimal {
		fmt.Fprintf(&head, "gap       %.2f%% (solver limit reached)\n", 100*res.Gap)
	}
	if res.EquityRatio != nil {
		fmt.Fprintf(&head, "ratio r   %.4f\n", *res.EquityRatio)
	}
	if res.ShortageCap != nil {
		fmt.Fprintf(&head, "s_max     %.4f\n", *res.ShortageCap)
	}
	b := res.Breakdown
	fmt.Fprintf(&head, "costs     transport=%.3f overload=%.3f activation=%.3f shortage=%.3f",
		b.Transport, b.Overload, b.Activation, b.Shortage)
	if out.Fallback() {
		head.WriteString("\n" + mutedStyle.Render("proportional equity failed; absolute equity used"))
	}

	var body strings.Builder
	body.WriteString(boxStyle.Render(head.String()))
	body.WriteString("\n\n" + titleStyle.Render("Open arcs") + "\n")
	for _, a := range res.Arcs {
		if !a.Open {
			continue
		}
		fmt.Fprintf(&body, "  %-16s flow=%9.3f  low=%9.3f  high=%9.3f  overload=%8.3f\n",
			a.Label, a.Flow, a.Low, a.High, a.Overload)
	}
	body.WriteString("\n" + titleStyle.Render("Shortages") + "\n")
	if res.TotalShortage() == 0 {
		body.WriteString("  " + okStyle.Render("none") + "\n")
	}
	for _, n := range res.Nodes {
		if n.Slack > 0 {
			fmt.Fprintf(&body, "  %-16s %9.3f of %9.3f\n", n.Name, n.Slack, n.Demand)
		}
	}

	return body.String()
}

// renderAttempts lists the attempts of a run with their status.
func renderAttempts(out *solve.Outcome) string {
	var b strings.Builder
	for _, a := range out.Attempts {
		status := okStyle.Render("optimal")
		switch {
		case a.Error != "":
			status = failStyle.Render(a.Error)
		case out.Result != nil && !out.Result.Optimal:
			status = mutedStyle.Render("feasible")
		}
		fmt.Fprintf(&b, "  %-20s %8s  %s\n", a.Mode.String(), a.Duration.Round(time.Microsecond), status)
	}

	return b.String()
}
