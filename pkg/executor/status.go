package executor

import (
	"strings"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/litmuschaos/chaos-advisor/pkg/types"
)

// mapState maps the status of a chaos resource onto a RunState, it also returns the raw engine status
func mapState(engine types.Engine, obj *unstructured.Unstructured) (types.RunState, string) {
	if engine == types.ChaosMesh {
		return meshState(obj)
	}
	return litmusState(obj)
}

func litmusState(obj *unstructured.Unstructured) (types.RunState, string) {
	engineStatus, _, _ := unstructured.NestedString(obj.Object, "status", "engineStatus")
	switch strings.ToLower(engineStatus) {
	case "initialized", "running":
		return types.StateRunning, engineStatus
	case "completed":
		return types.StateCompleted, engineStatus
	case "stopped":
		return types.StateAborted, engineStatus
	default:
		return types.StateUnknown, engineStatus
	}
}

// meshState reads the chaos mesh conditions, Paused wins over AllRecovered which wins over AllInjected
func meshState(obj *unstructured.Unstructured) (types.RunState, string) {
	conditions, _, _ := unstructured.NestedSlice(obj.Object, "status", "conditions")
	active := map[string]bool{}
	for _, c := range conditions {
		condition, ok := c.(map[string]interface{})
		if !ok {
			continue
		}
		kind, _, _ := unstructured.NestedString(condition, "type")
		status, _, _ := unstructured.NestedString(condition, "status")
		active[kind] = strings.EqualFold(status, "true")
	}

	switch {
	case active["Paused"]:
		return types.StateAborted, "Paused"
	case active["AllRecovered"]:
		return types.StateCompleted, "AllRecovered"
	case active["AllInjected"]:
		return types.StateRunning, "AllInjected"
	default:
		return types.StateUnknown, ""
	}
}

// resultVerdict reads status.experimentStatus.verdict of a litmus ChaosResult
func resultVerdict(result *unstructured.Unstructured) string {
	verdict, _, _ := unstructured.NestedString(result.Object, "status", "experimentStatus", "verdict")
	return verdict
}
