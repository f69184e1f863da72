package translator

import (
	"strconv"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/litmuschaos/chaos-advisor/pkg/types"
)

// Litmus resources, group litmuschaos.io/v1alpha1
var (
	ChaosEngineResource = schema.GroupVersionResource{Group: "litmuschaos.io", Version: "v1alpha1", Resource: "chaosengines"}
	ChaosResultResource = schema.GroupVersionResource{Group: "litmuschaos.io", Version: "v1alpha1", Resource: "chaosresults"}
)

const (
	defaultAppKind = "deployment"
	chaosInterval  = "10"
)

type litmusBackend struct {
	serviceAccount string
}

func (litmusBackend) resource(types.Action) schema.GroupVersionResource {
	return ChaosEngineResource
}

func (b litmusBackend) build(in buildInput) *unstructured.Unstructured {
	target := in.intent.TargetSelector
	appKind := target.ResourceType
	if appKind == "" {
		appKind = defaultAppKind
	}

	env := []interface{}{
		envVar("TOTAL_CHAOS_DURATION", strconv.Itoa(in.seconds)),
		envVar("CHAOS_INTERVAL", chaosInterval),
	}
	if in.spec.envName != "" {
		env = append(env, envVar(in.spec.envName, strconv.Itoa(in.amount)))
	} else {
		env = append(env, envVar("FORCE", "false"))
	}

	return &unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion": "litmuschaos.io/v1alpha1",
		"kind":       "ChaosEngine",
		"metadata":   objectMeta(in),
		"spec": map[string]interface{}{
			"appinfo": map[string]interface{}{
				"appns":    target.Namespace,
				"applabel": target.LabelSelector,
				"appkind":  appKind,
			},
			"engineState":         "active",
			"chaosServiceAccount": b.serviceAccount,
			"monitoring":          true,
			"jobCleanUpPolicy":    "retain",
			"annotationCheck":     "false",
			"experiments": []interface{}{
				map[string]interface{}{
					"name": in.spec.experiment,
					"spec": map[string]interface{}{
						"components": map[string]interface{}{
							"env": env,
						},
					},
				},
			},
		},
	}}
}

func envVar(name, value string) interface{} {
	return map[string]interface{}{"name": name, "value": value}
}

// ExperimentName returns the litmus experiment of a ChaosEngine object
func ExperimentName(engine *unstructured.Unstructured) string {
	experiments, _, _ := unstructured.NestedSlice(engine.Object, "spec", "experiments")
	if len(experiments) == 0 {
		return ""
	}
	exp, ok := experiments[0].(map[string]interface{})
	if !ok {
		return ""
	}
	name, _, _ := unstructured.NestedString(exp, "name")
	return name
}

// ResultName is the ChaosResult the litmus operator writes for an engine, <engine>-<experiment>
func ResultName(engine *unstructured.Unstructured) string {
	return engine.GetName() + "-" + ExperimentName(engine)
}
