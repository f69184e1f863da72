package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
	"k8s.io/utils/clock"

	"github.com/litmuschaos/chaos-advisor/pkg/llm"
	"github.com/litmuschaos/chaos-advisor/pkg/log"
	"github.com/litmuschaos/chaos-advisor/pkg/types"
	"github.com/litmuschaos/chaos-advisor/pkg/utils/stringutils"
)

const (
	// LatestReport always holds a copy of the most recent report
	LatestReport = "latest.md"

	DefaultReportsDir = "reports"

	slugLength      = 50
	timestampLayout = "2006-01-02_15-04-05"
)

// Narrator turns a final report into a human readable artifact and returns its location
type Narrator interface {
	Narrate(ctx context.Context, report types.FinalReport) (string, error)
}

// Insights are the free text sections of a report
type Insights struct {
	Summary         string `json:"summary"`
	Findings        string `json:"findings"`
	Timeline        string `json:"timeline"`
	ImpactAnalysis  string `json:"impact_analysis"`
	Recommendations string `json:"recommendations"`
}

// DefaultInsights are used when no provider is configured or its answer is unusable
var DefaultInsights = Insights{
	Summary:         "Chaos experiment completed successfully.",
	Findings:        "No significant issues detected during the experiment.",
	Timeline:        "Experiment ran for the specified duration without interruption.",
	ImpactAnalysis:  "Minimal impact observed on system performance.",
	Recommendations: "Consider running more intensive experiments to test system resilience.",
}

// MarkdownNarrator writes markdown RCA reports into a directory
type MarkdownNarrator struct {
	dir      string
	provider llm.Provider
	clock    clock.PassiveClock
	tmpl     *template.Template
}

// NewMarkdownNarrator returns a narrator writing into dir, a nil provider uses DefaultInsights
func NewMarkdownNarrator(dir string, provider llm.Provider, c clock.PassiveClock) *MarkdownNarrator {
	if dir == "" {
		dir = DefaultReportsDir
	}
	if c == nil {
		c = clock.RealClock{}
	}
	return &MarkdownNarrator{
		dir:      dir,
		provider: provider,
		clock:    c,
		tmpl:     template.Must(template.New("rca").Parse(markdownTemplate)),
	}
}

type namedValue struct {
	Name  string
	Value float64
}

type reportData struct {
	Outcome
	StartedAt       string
	Insights        Insights
	Config          string
	FinalMetrics    []namedValue
	AbortConditions string
}

// Narrate implements Narrator
func (n *MarkdownNarrator) Narrate(ctx context.Context, report types.FinalReport) (string, error) {
	content, err := n.Render(ctx, report)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(n.dir, 0755); err != nil {
		return "", errors.Wrapf(err, "unable to create the reports directory %v", n.dir)
	}
	name := fmt.Sprintf("%s_%s_%s.md", n.clock.Now().UTC().Format(timestampLayout),
		stringutils.Slugify(report.Intent.Title, slugLength), report.RunID)
	path := filepath.Join(n.dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", errors.Wrapf(err, "unable to write the report %v", path)
	}
	if err := os.WriteFile(filepath.Join(n.dir, LatestReport), []byte(content), 0644); err != nil {
		return "", errors.Wrapf(err, "unable to write the latest report")
	}

	log.InfoWithValues("[Report]: The RCA report has been written", logrus.Fields{
		"RunID": report.RunID,
		"Path":  path,
	})
	return path, nil
}

// Render returns the markdown report without writing it
func (n *MarkdownNarrator) Render(ctx context.Context, report types.FinalReport) (string, error) {
	outcome := Assemble(report)

	config, err := yaml.Marshal(report.Intent)
	if err != nil {
		return "", errors.Wrapf(err, "unable to render the experiment configuration")
	}

	data := reportData{
		Outcome:         outcome,
		StartedAt:       report.StartedAt.UTC().Format(time.RFC3339),
		Insights:        n.insights(ctx, report),
		Config:          string(config),
		FinalMetrics:    sortedMetrics(report.FinalMetrics),
		AbortConditions: abortConditions(report),
	}

	var b strings.Builder
	if err := n.tmpl.Execute(&b, data); err != nil {
		return "", errors.Wrapf(err, "unable to render the report of run %v", report.RunID)
	}
	return b.String(), nil
}

func (n *MarkdownNarrator) insights(ctx context.Context, report types.FinalReport) Insights {
	if n.provider == nil {
		return DefaultInsights
	}
	response, err := n.provider.GenerateText(ctx, insightsPrompt(report))
	if err != nil {
		log.Warnf("[Report]: Unable to generate insights, err: %v", err)
		return DefaultInsights
	}
	insights, err := ParseInsights(response)
	if err != nil {
		log.Warnf("[Report]: Unable to parse the generated insights, err: %v", err)
		return DefaultInsights
	}
	return insights
}

// ParseInsights decodes a JSON insights answer, a surrounding ```json fence is ignored
func ParseInsights(response string) (Insights, error) {
	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimSuffix(response, "```")
	response = strings.TrimSpace(response)

	var insights Insights
	if err := json.Unmarshal([]byte(response), &insights); err != nil {
		return Insights{}, errors.Wrapf(err, "insights are not valid JSON")
	}
	return insights, nil
}

func insightsPrompt(report types.FinalReport) string {
	metrics, _ := json.MarshalIndent(report.FinalMetrics, "", "  ")
	impact, _ := json.MarshalIndent(report.Impact, "", "  ")
	reason := report.AbortReason
	if reason == "" {
		reason = "None"
	}
	return fmt.Sprintf(`You are an expert SRE analyzing a chaos engineering experiment. Generate insights for this experiment:

**Experiment Details:**
- Title: %s
- Action: %s
- Status: %s
- Duration: %.0f seconds
- Abort Reason: %s

**Metrics:**
%s

**Impact Analysis:**
%s

Please provide:
1. A concise summary of what happened
2. Key findings and insights
3. A timeline of events
4. Impact analysis
5. Specific recommendations for improvement

Format your response as JSON:
{
  "summary": "Brief description of what happened",
  "findings": "Key insights and observations",
  "timeline": "Chronological sequence of events",
  "impact_analysis": "Analysis of the impact",
  "recommendations": "Specific recommendations"
}
`, report.Intent.Title, report.Intent.Action, report.Status, report.DurationSeconds, reason, metrics, impact)
}

func sortedMetrics(metrics map[string]float64) []namedValue {
	out := make([]namedValue, 0, len(metrics))
	for name, value := range metrics {
		out = append(out, namedValue{Name: name, Value: value})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func abortConditions(report types.FinalReport) string {
	switch rule := report.Intent.AbortThreshold; {
	case report.AbortReason != "":
		return "**Aborted**: " + report.AbortReason
	case rule != nil && rule.Metric != "":
		operator := rule.Operator
		if operator == "" {
			operator = ">"
		}
		return fmt.Sprintf("**Threshold**: %s %s %v", rule.Metric, operator, rule.Value)
	default:
		return "**No abort conditions configured**"
	}
}
