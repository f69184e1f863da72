package types

import (
	"os"
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

// Action is the abstract chaos action requested by an experiment intent
type Action string

const (
	PodKill      Action = "pod-kill"
	CPUHog       Action = "cpu-hog"
	MemoryHog    Action = "memory-hog"
	NetworkDelay Action = "network-delay"
	NetworkLoss  Action = "network-loss"
)

// Engine selects the chaos controller the manifest is written for
type Engine string

const (
	LitmusChaos Engine = "litmuschaos"
	ChaosMesh   Engine = "chaos-mesh"
)

// RunState is the lifecycle state of a run
type RunState string

const (
	StatePending   RunState = "pending"
	StateRunning   RunState = "running"
	StateCompleted RunState = "completed"
	StateAborted   RunState = "aborted"
	StateFailed    RunState = "failed"
	StateUnknown   RunState = "unknown"
)

// IsTerminal reports whether no further transition is expected
func (s RunState) IsTerminal() bool {
	return s == StateCompleted || s == StateAborted || s == StateFailed
}

// DefaultIntensity is applied when the intent leaves the intensity out
const DefaultIntensity = 0.5

// ExperimentIntent is the abstract, immutable description of an experiment
type ExperimentIntent struct {
	Title          string         `json:"title" yaml:"title" validate:"required"`
	Description    string         `json:"description,omitempty" yaml:"description,omitempty"`
	Env            string         `json:"env,omitempty" yaml:"env,omitempty"`
	Engine         Engine         `json:"chaos_engine,omitempty" yaml:"chaos_engine,omitempty"`
	Action         Action         `json:"action" yaml:"action" validate:"required"`
	TargetSelector TargetSelector `json:"target_selector" yaml:"target_selector"`
	Parameters     Parameters     `json:"parameters" yaml:"parameters"`
	AbortThreshold *AbortRule     `json:"abort_threshold,omitempty" yaml:"abort_threshold,omitempty"`
	ExpectedImpact string         `json:"expected_impact,omitempty" yaml:"expected_impact,omitempty"`
	RiskLevel      string         `json:"risk_level,omitempty" yaml:"risk_level,omitempty"`
}

// TargetSelector selects the workloads the chaos is injected into
type TargetSelector struct {
	Namespace     string `json:"namespace" yaml:"namespace" validate:"required"`
	LabelSelector string `json:"label_selector,omitempty" yaml:"label_selector,omitempty"`
	ResourceType  string `json:"resource_type,omitempty" yaml:"resource_type,omitempty"`
}

// Parameters contains the action independent knobs of an experiment
type Parameters struct {
	Duration  string   `json:"duration" yaml:"duration" validate:"required"`
	Intensity *float64 `json:"intensity,omitempty" yaml:"intensity,omitempty" validate:"omitempty,gte=0,lte=1"`
}

// IntensityOrDefault returns the intensity, or DefaultIntensity when unset
func (p Parameters) IntensityOrDefault() float64 {
	if p.Intensity == nil {
		return DefaultIntensity
	}
	return *p.Intensity
}

// AbortRule is a safety threshold on a single metric
type AbortRule struct {
	Metric   string  `json:"metric" yaml:"metric"`
	Operator string  `json:"operator,omitempty" yaml:"operator,omitempty"`
	Value    float64 `json:"value" yaml:"value"`
}

// ChaosManifest is the cluster resource derived from an intent, one per run
type ChaosManifest struct {
	RunID      string
	Engine     Engine
	Action     Action
	Name       string
	Namespace  string
	Resource   schema.GroupVersionResource
	Parameters map[string]string
	Object     *unstructured.Unstructured
}

// RunRecord is the executor's view of a single run
type RunRecord struct {
	RunID       string
	Intent      ExperimentIntent
	Manifest    *ChaosManifest
	State       RunState
	StartedAt   time.Time
	LastChecked time.Time
	EndedAt     time.Time
	AbortedAt   time.Time
}

// RunStatus is the live status of a run as reported by the executor
type RunStatus struct {
	RunID        string    `json:"run_id"`
	State        RunState  `json:"status"`
	StartedAt    time.Time `json:"started_at"`
	LastChecked  time.Time `json:"last_checked"`
	EngineStatus string    `json:"engine_status,omitempty"`
	Verdict      string    `json:"verdict,omitempty"`
	Note         string    `json:"note,omitempty"`
}

// MetricSample is a timestamped set of SLI values
type MetricSample struct {
	Timestamp time.Time          `json:"timestamp"`
	Metrics   map[string]float64 `json:"metrics"`
}

// SessionStatus is a point in time view of an active monitoring session
type SessionStatus struct {
	RunID         string             `json:"run_id"`
	Title         string             `json:"title"`
	Status        RunState           `json:"status"`
	StartedAt     time.Time          `json:"started_at"`
	Elapsed       time.Duration      `json:"elapsed"`
	SampleCount   int                `json:"sample_count"`
	LatestMetrics map[string]float64 `json:"latest_metrics,omitempty"`
}

// FinalReport is the immutable result of a monitored run
type FinalReport struct {
	RunID           string             `json:"run_id"`
	Status          RunState           `json:"status"`
	StartedAt       time.Time          `json:"started_at"`
	DurationSeconds float64            `json:"duration_seconds"`
	Baseline        map[string]float64 `json:"baseline_metrics"`
	FinalMetrics    map[string]float64 `json:"final_metrics"`
	Impact          map[string]float64 `json:"impact_percent"`
	AbortReason     string             `json:"abort_reason,omitempty"`
	MetricsHistory  []MetricSample     `json:"metrics_history"`
	Intent          ExperimentIntent   `json:"spec"`
}

// AdvisorDetails contains the runtime configuration of the advisor
type AdvisorDetails struct {
	KubeConfig      string
	PrometheusURL   string
	SlackWebhookURL string
	MonitorInterval time.Duration
	QueryTimeout    time.Duration
	ProgressEvery   int
	RetryCount      int
	RetryDelay      time.Duration
	ChaosSvcAccount string
	LLMProvider     string
	OpenAIAPIKey    string
	OpenAIModel     string
	ReportsDir      string
	OTelEndpoint    string
	PushgatewayURL  string
	LogLevel        string
}

// Getenv fetch the env and set the default value, if any
func Getenv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		value = defaultValue
	}
	return value
}
