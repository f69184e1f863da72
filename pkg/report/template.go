package report

const markdownTemplate = `# Chaos Experiment RCA: {{ .Title }}

## Executive Summary

**Experiment**: {{ .Title }}
**Run ID**: {{ .RunID }}
**Status**: {{ .Status }}
**Duration**: {{ printf "%.0f" .DurationSeconds }} seconds
**Started**: {{ .StartedAt }}

## What Happened

{{ .Insights.Summary }}

## Key Findings

{{ .Insights.Findings }}

## Timeline

{{ .Insights.Timeline }}

## Impact Analysis

{{ .Insights.ImpactAnalysis }}

## Recommendations

{{ .Insights.Recommendations }}

## Technical Details

### Experiment Configuration
` + "```yaml" + `
{{ .Config }}` + "```" + `

### Metrics Summary
{{- if .FinalMetrics }}
### Final Metrics
{{- range .FinalMetrics }}
- **{{ .Name }}**: {{ printf "%.3f" .Value }}
{{- end }}
{{- end }}
{{- if .Impacts }}

### Impact Analysis
{{- range .Impacts }}
- **{{ .Metric }}**: {{ printf "%.1f" .Percent }}%
{{- end }}
{{- end }}

### Abort Conditions
{{ .AbortConditions }}

## System Architecture

` + "```mermaid" + `
{{ .Diagram }}
` + "```" + `
`
