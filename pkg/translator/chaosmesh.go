package translator

import (
	"strconv"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/selection"

	"github.com/litmuschaos/chaos-advisor/pkg/types"
)

const chaosMeshAPIVersion = "chaos-mesh.org/v1alpha1"

// Chaos Mesh resources, group chaos-mesh.org/v1alpha1
var (
	PodChaosResource     = schema.GroupVersionResource{Group: "chaos-mesh.org", Version: "v1alpha1", Resource: "podchaos"}
	StressChaosResource  = schema.GroupVersionResource{Group: "chaos-mesh.org", Version: "v1alpha1", Resource: "stresschaos"}
	NetworkChaosResource = schema.GroupVersionResource{Group: "chaos-mesh.org", Version: "v1alpha1", Resource: "networkchaos"}
)

// chaosMeshBackend renders one resource kind per action family
type chaosMeshBackend struct{}

func (chaosMeshBackend) resource(action types.Action) schema.GroupVersionResource {
	return meshKinds[action].gvr
}

var meshKinds = map[types.Action]struct {
	kind string
	gvr  schema.GroupVersionResource
}{
	types.PodKill:      {"PodChaos", PodChaosResource},
	types.CPUHog:       {"StressChaos", StressChaosResource},
	types.MemoryHog:    {"StressChaos", StressChaosResource},
	types.NetworkDelay: {"NetworkChaos", NetworkChaosResource},
	types.NetworkLoss:  {"NetworkChaos", NetworkChaosResource},
}

func (chaosMeshBackend) build(in buildInput) *unstructured.Unstructured {
	spec := map[string]interface{}{
		"mode":     "all",
		"selector": meshSelector(in.intent.TargetSelector),
		"duration": strconv.Itoa(in.seconds) + "s",
	}

	switch in.action {
	case types.PodKill:
		spec["action"] = "pod-kill"
		spec["mode"] = "one"
	case types.CPUHog:
		spec["stressors"] = map[string]interface{}{
			"cpu": map[string]interface{}{"workers": int64(atLeastOne(in.amount)), "load": int64(100)},
		}
	case types.MemoryHog:
		spec["stressors"] = map[string]interface{}{
			"memory": map[string]interface{}{"workers": int64(1), "size": strconv.Itoa(in.amount) + "%"},
		}
	case types.NetworkDelay:
		spec["action"] = "delay"
		spec["delay"] = map[string]interface{}{"latency": strconv.Itoa(in.amount) + "ms"}
	case types.NetworkLoss:
		spec["action"] = "loss"
		spec["loss"] = map[string]interface{}{"loss": strconv.Itoa(in.amount)}
	}

	return &unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion": chaosMeshAPIVersion,
		"kind":       meshKinds[in.action].kind,
		"metadata":   objectMeta(in),
		"spec":       spec,
	}}
}

// meshSelector splits a label selector into equality labels and set based expressions
func meshSelector(target types.TargetSelector) map[string]interface{} {
	selector := map[string]interface{}{
		"namespaces": []interface{}{target.Namespace},
	}
	// the selector was checked by Validate
	parsed, _ := labels.Parse(target.LabelSelector)
	requirements, _ := parsed.Requirements()

	matchLabels := map[string]interface{}{}
	var expressions []interface{}
	for _, r := range requirements {
		values := []interface{}{}
		for _, v := range r.Values().List() {
			values = append(values, v)
		}
		switch r.Operator() {
		case selection.Equals, selection.DoubleEquals:
			matchLabels[r.Key()] = values[0]
		case selection.NotEquals, selection.NotIn:
			expressions = append(expressions, expression(r.Key(), "NotIn", values))
		case selection.In:
			expressions = append(expressions, expression(r.Key(), "In", values))
		case selection.Exists:
			expressions = append(expressions, expression(r.Key(), "Exists", nil))
		case selection.DoesNotExist:
			expressions = append(expressions, expression(r.Key(), "DoesNotExist", nil))
		}
	}
	if len(matchLabels) > 0 {
		selector["labelSelectors"] = matchLabels
	}
	if len(expressions) > 0 {
		selector["expressionSelectors"] = expressions
	}
	return selector
}

func expression(key, operator string, values []interface{}) interface{} {
	expr := map[string]interface{}{"key": key, "operator": operator}
	if len(values) > 0 {
		expr["values"] = values
	}
	return expr
}

func atLeastOne(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
