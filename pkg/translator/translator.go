package translator

import (
	"strconv"
	"strings"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/litmuschaos/chaos-advisor/pkg/cerrors"
	"github.com/litmuschaos/chaos-advisor/pkg/math"
	"github.com/litmuschaos/chaos-advisor/pkg/types"
)

// Labels stamped on every chaos resource
const (
	LabelRunID     = "chaos-run-id"
	LabelAction    = "chaos-action"
	LabelName      = "app.kubernetes.io/name"
	ManagedByValue = "chaos-advisor"
)

// DefaultServiceAccount runs the litmus experiment pods
const DefaultServiceAccount = "litmus-admin"

// actionSpec is the native rendition of an abstract action
type actionSpec struct {
	// litmus experiment name and the env carrying the scaled intensity
	experiment string
	envName    string
	// intensity scale onto the native unit, zero when the action has no intensity
	scale float64
}

var actions = map[types.Action]actionSpec{
	types.PodKill:      {experiment: "pod-delete"},
	types.CPUHog:       {experiment: "pod-cpu-hog", envName: "CPU_CORES", scale: 2},
	types.MemoryHog:    {experiment: "pod-memory-hog", envName: "MEMORY_CONSUMPTION", scale: 100},
	types.NetworkDelay: {experiment: "pod-network-latency", envName: "NETWORK_LATENCY", scale: 200},
	types.NetworkLoss:  {experiment: "pod-network-loss", envName: "LOSS_PERCENTAGE", scale: 50},
}

var aliases = map[string]types.Action{
	"pod-delete":          types.PodKill,
	"pod-cpu-hog":         types.CPUHog,
	"pod-memory-hog":      types.MemoryHog,
	"pod-network-latency": types.NetworkDelay,
	"pod-network-loss":    types.NetworkLoss,
}

// NormalizeAction resolves an action or one of its litmus experiment aliases
func NormalizeAction(action types.Action) (types.Action, bool) {
	key := strings.ToLower(strings.TrimSpace(string(action)))
	if _, ok := actions[types.Action(key)]; ok {
		return types.Action(key), true
	}
	alias, ok := aliases[key]
	return alias, ok
}

// backend renders the native chaos resource of a single engine
type backend interface {
	resource(action types.Action) schema.GroupVersionResource
	build(in buildInput) *unstructured.Unstructured
}

type buildInput struct {
	intent  types.ExperimentIntent
	action  types.Action
	spec    actionSpec
	runID   string
	name    string
	seconds int
	// scaled intensity in the native unit of the action
	amount int
}

// Translator converts experiment intents into chaos manifests, it performs no I/O
type Translator struct {
	ServiceAccount string
}

// New returns a Translator, an empty service account falls back to DefaultServiceAccount
func New(serviceAccount string) *Translator {
	if serviceAccount == "" {
		serviceAccount = DefaultServiceAccount
	}
	return &Translator{ServiceAccount: serviceAccount}
}

// Translate converts an intent with the default settings
func Translate(intent types.ExperimentIntent, runID string) (*types.ChaosManifest, error) {
	return New("").Translate(intent, runID)
}

// Translate validates the intent and derives the chaos manifest of the run
func (t *Translator) Translate(intent types.ExperimentIntent, runID string) (*types.ChaosManifest, error) {
	if err := Validate(intent); err != nil {
		return nil, err
	}
	action, ok := NormalizeAction(intent.Action)
	if !ok {
		return nil, cerrors.UnsupportedAction{Action: string(intent.Action)}
	}
	seconds, err := ParseDuration(intent.Parameters.Duration)
	if err != nil {
		return nil, err
	}

	var b backend
	engine := intent.Engine
	switch engine {
	case "", types.LitmusChaos:
		engine = types.LitmusChaos
		b = litmusBackend{serviceAccount: t.ServiceAccount}
	case types.ChaosMesh:
		b = chaosMeshBackend{}
	default:
		return nil, cerrors.Validation{Field: "chaos_engine", Reason: "must be litmuschaos or chaos-mesh"}
	}

	spec := actions[action]
	in := buildInput{
		intent:  intent,
		action:  action,
		spec:    spec,
		runID:   runID,
		name:    runID + "-" + string(action),
		seconds: seconds,
	}
	params := map[string]string{"TOTAL_CHAOS_DURATION": strconv.Itoa(seconds)}
	if spec.envName != "" {
		in.amount = math.Scale(intent.Parameters.IntensityOrDefault(), spec.scale)
		params[spec.envName] = strconv.Itoa(in.amount)
	}

	return &types.ChaosManifest{
		RunID:      runID,
		Engine:     engine,
		Action:     action,
		Name:       in.name,
		Namespace:  intent.TargetSelector.Namespace,
		Resource:   b.resource(action),
		Parameters: params,
		Object:     b.build(in),
	}, nil
}

func objectMeta(in buildInput) map[string]interface{} {
	return map[string]interface{}{
		"name":      in.name,
		"namespace": in.intent.TargetSelector.Namespace,
		"labels": map[string]interface{}{
			LabelRunID:  in.runID,
			LabelAction: string(in.action),
			LabelName:   ManagedByValue,
		},
	}
}
