package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/litmuschaos/chaos-advisor/pkg/types"
)

// Impact is the relative change of one metric over a run
type Impact struct {
	Metric  string
	Percent float64
}

// Outcome is the structured, presentation ready record of a finished run
type Outcome struct {
	RunID           string
	Title           string
	Action          types.Action
	Status          types.RunState
	DurationSeconds float64
	AbortReason     string
	Impacts         []Impact
	FinalMetrics    map[string]float64
	Summary         string
	Diagram         string
}

// Assemble turns a final report into an outcome
func Assemble(report types.FinalReport) Outcome {
	impacts := make([]Impact, 0, len(report.Impact))
	for metric, percent := range report.Impact {
		impacts = append(impacts, Impact{Metric: metric, Percent: percent})
	}
	sort.Slice(impacts, func(i, j int) bool { return impacts[i].Metric < impacts[j].Metric })

	final := make(map[string]float64, len(report.FinalMetrics))
	for k, v := range report.FinalMetrics {
		final[k] = v
	}

	outcome := Outcome{
		RunID:           report.RunID,
		Title:           report.Intent.Title,
		Action:          report.Intent.Action,
		Status:          report.Status,
		DurationSeconds: report.DurationSeconds,
		AbortReason:     report.AbortReason,
		Impacts:         impacts,
		FinalMetrics:    final,
	}
	outcome.Summary = Summary(outcome)
	outcome.Diagram = Diagram(outcome)
	return outcome
}

// Summary is the short chat friendly description of an outcome
func Summary(o Outcome) string {
	title := o.Title
	if title == "" {
		title = "Unknown Experiment"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "**%s** - %s\n", title, strings.ToUpper(string(o.Status)))
	fmt.Fprintf(&b, "Duration: %.0fs | Run ID: %s\n", o.DurationSeconds, o.RunID)
	if o.AbortReason != "" {
		fmt.Fprintf(&b, "Aborted: %s\n", o.AbortReason)
	}
	if len(o.Impacts) > 0 {
		parts := make([]string, 0, len(o.Impacts))
		for _, impact := range o.Impacts {
			parts = append(parts, fmt.Sprintf("%s: %.1f%%", impact.Metric, impact.Percent))
		}
		b.WriteString("Impact: " + strings.Join(parts, ", "))
	}
	return b.String()
}

// Diagram renders the run as a Mermaid sequence diagram, with the abort path for aborted runs
func Diagram(o Outcome) string {
	action := string(o.Action)
	if action == "" {
		action = "unknown"
	}
	lines := []string{
		"sequenceDiagram",
		"    participant U as User",
		"    participant C as Chaos Agent",
		"    participant K as Kubernetes",
		"    participant T as Target Service",
		"    participant M as Monitoring",
		"",
		"    U->>C: Start Experiment",
		"    C->>K: Apply Chaos Resource",
		"    K->>T: Execute " + action,
		"    T->>M: Report Metrics",
		"    M->>C: Monitor Status",
		"    C->>U: Report Results",
	}
	if o.AbortReason != "" {
		lines = append(lines,
			"",
			"    Note over M,C: Abort Condition Met",
			"    C->>K: Stop Experiment",
			"    K->>T: Restore Normal State",
		)
	}
	return strings.Join(lines, "\n")
}
