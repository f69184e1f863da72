package translator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/litmuschaos/chaos-advisor/pkg/cerrors"
	"github.com/litmuschaos/chaos-advisor/pkg/types"
)

const runID = "chaos-1a2b3c4d"

func intensity(v float64) *float64 {
	return &v
}

func newIntent(action types.Action) types.ExperimentIntent {
	return types.ExperimentIntent{
		Title:  "Redis experiment",
		Action: action,
		TargetSelector: types.TargetSelector{
			Namespace:     "sock-shop",
			LabelSelector: "app=redis",
		},
		Parameters: types.Parameters{Duration: "60s", Intensity: intensity(0.5)},
	}
}

func litmusEnv(t *testing.T, obj *unstructured.Unstructured) map[string]string {
	experiments, found, err := unstructured.NestedSlice(obj.Object, "spec", "experiments")
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, experiments, 1)
	env, _, err := unstructured.NestedSlice(experiments[0].(map[string]interface{}), "spec", "components", "env")
	require.NoError(t, err)

	values := map[string]string{}
	for _, e := range env {
		kv := e.(map[string]interface{})
		values[kv["name"].(string)] = kv["value"].(string)
	}
	return values
}

func TestTranslate_Litmus(t *testing.T) {
	tests := []struct {
		action     types.Action
		intensity  float64
		experiment string
		env        map[string]string
	}{
		{types.PodKill, 0.5, "pod-delete", map[string]string{"FORCE": "false"}},
		{types.CPUHog, 0.5, "pod-cpu-hog", map[string]string{"CPU_CORES": "1"}},
		{types.CPUHog, 1, "pod-cpu-hog", map[string]string{"CPU_CORES": "2"}},
		{types.MemoryHog, 0.8, "pod-memory-hog", map[string]string{"MEMORY_CONSUMPTION": "80"}},
		{types.NetworkDelay, 0.5, "pod-network-latency", map[string]string{"NETWORK_LATENCY": "100"}},
		{types.NetworkLoss, 0.3, "pod-network-loss", map[string]string{"LOSS_PERCENTAGE": "15"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			intent := newIntent(tt.action)
			intent.Parameters.Intensity = intensity(tt.intensity)

			manifest, err := Translate(intent, runID)
			require.NoError(t, err)

			assert.Equal(t, runID+"-"+string(tt.action), manifest.Name)
			assert.Equal(t, "sock-shop", manifest.Namespace)
			assert.Equal(t, types.LitmusChaos, manifest.Engine)
			assert.Equal(t, ChaosEngineResource, manifest.Resource)
			assert.Equal(t, "ChaosEngine", manifest.Object.GetKind())
			assert.Equal(t, map[string]string{
				LabelRunID:  runID,
				LabelAction: string(tt.action),
				LabelName:   ManagedByValue,
			}, manifest.Object.GetLabels())
			assert.Equal(t, tt.experiment, ExperimentName(manifest.Object))
			assert.Equal(t, manifest.Name+"-"+tt.experiment, ResultName(manifest.Object))

			sa, _, _ := unstructured.NestedString(manifest.Object.Object, "spec", "chaosServiceAccount")
			assert.Equal(t, DefaultServiceAccount, sa)
			appKind, _, _ := unstructured.NestedString(manifest.Object.Object, "spec", "appinfo", "appkind")
			assert.Equal(t, "deployment", appKind)
			appLabel, _, _ := unstructured.NestedString(manifest.Object.Object, "spec", "appinfo", "applabel")
			assert.Equal(t, "app=redis", appLabel)

			env := litmusEnv(t, manifest.Object)
			assert.Equal(t, "60", env["TOTAL_CHAOS_DURATION"])
			assert.Equal(t, "10", env["CHAOS_INTERVAL"])
			for k, v := range tt.env {
				assert.Equal(t, v, env[k], k)
			}
		})
	}
}

func TestTranslate_DefaultIntensity(t *testing.T) {
	intent := newIntent(types.MemoryHog)
	intent.Parameters.Intensity = nil

	manifest, err := Translate(intent, runID)
	require.NoError(t, err)
	assert.Equal(t, "50", manifest.Parameters["MEMORY_CONSUMPTION"])
}

func TestTranslate_CustomServiceAccount(t *testing.T) {
	manifest, err := New("chaos-runner").Translate(newIntent(types.PodKill), runID)
	require.NoError(t, err)

	sa, _, _ := unstructured.NestedString(manifest.Object.Object, "spec", "chaosServiceAccount")
	assert.Equal(t, "chaos-runner", sa)
}

func TestTranslate_Aliases(t *testing.T) {
	intent := newIntent("pod-network-latency")

	manifest, err := Translate(intent, runID)
	require.NoError(t, err)
	assert.Equal(t, types.NetworkDelay, manifest.Action)
	assert.Equal(t, runID+"-network-delay", manifest.Name)
}

func TestTranslate_ChaosMesh(t *testing.T) {
	tests := []struct {
		action types.Action
		kind   string
		path   []string
		value  interface{}
	}{
		{types.PodKill, "PodChaos", []string{"spec", "action"}, "pod-kill"},
		{types.CPUHog, "StressChaos", []string{"spec", "stressors", "cpu", "workers"}, int64(1)},
		{types.MemoryHog, "StressChaos", []string{"spec", "stressors", "memory", "size"}, "50%"},
		{types.NetworkDelay, "NetworkChaos", []string{"spec", "delay", "latency"}, "100ms"},
		{types.NetworkLoss, "NetworkChaos", []string{"spec", "loss", "loss"}, "25"},
	}

	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			intent := newIntent(tt.action)
			intent.Engine = types.ChaosMesh
			intent.TargetSelector.LabelSelector = "app=redis,tier in (cache,db),!canary"

			manifest, err := Translate(intent, runID)
			require.NoError(t, err)

			assert.Equal(t, tt.kind, manifest.Object.GetKind())
			assert.Equal(t, "chaos-mesh.org/v1alpha1", manifest.Object.GetAPIVersion())
			assert.Equal(t, "chaos-mesh.org", manifest.Resource.Group)

			value, found, err := unstructured.NestedFieldNoCopy(manifest.Object.Object, tt.path...)
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, tt.value, value)

			duration, _, _ := unstructured.NestedString(manifest.Object.Object, "spec", "duration")
			assert.Equal(t, "60s", duration)

			matchLabels, _, _ := unstructured.NestedStringMap(manifest.Object.Object, "spec", "selector", "labelSelectors")
			assert.Equal(t, map[string]string{"app": "redis"}, matchLabels)
			expressions, _, _ := unstructured.NestedSlice(manifest.Object.Object, "spec", "selector", "expressionSelectors")
			assert.Len(t, expressions, 2)
		})
	}
}

func TestTranslate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*types.ExperimentIntent)
		field  string
	}{
		{"missing title", func(i *types.ExperimentIntent) { i.Title = "" }, "title"},
		{"missing action", func(i *types.ExperimentIntent) { i.Action = "" }, "action"},
		{"missing namespace", func(i *types.ExperimentIntent) { i.TargetSelector.Namespace = "" }, "target_selector.namespace"},
		{"missing duration", func(i *types.ExperimentIntent) { i.Parameters.Duration = "" }, "parameters.duration"},
		{"zero duration", func(i *types.ExperimentIntent) { i.Parameters.Duration = "0s" }, "parameters.duration"},
		{"garbled duration", func(i *types.ExperimentIntent) { i.Parameters.Duration = "soon" }, "parameters.duration"},
		{"intensity above one", func(i *types.ExperimentIntent) { i.Parameters.Intensity = intensity(1.5) }, "parameters.intensity"},
		{"negative intensity", func(i *types.ExperimentIntent) { i.Parameters.Intensity = intensity(-0.1) }, "parameters.intensity"},
		{"bad label selector", func(i *types.ExperimentIntent) { i.TargetSelector.LabelSelector = "app in (" }, "target_selector.label_selector"},
		{"unknown engine", func(i *types.ExperimentIntent) { i.Engine = "gremlin" }, "chaos_engine"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intent := newIntent(types.PodKill)
			tt.mutate(&intent)

			manifest, err := Translate(intent, runID)
			assert.Nil(t, manifest)
			require.True(t, cerrors.IsValidation(err), "expected a validation error, got %v", err)

			var verr cerrors.Validation
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestTranslate_UnsupportedAction(t *testing.T) {
	_, err := Translate(newIntent("disk-fill"), runID)

	require.True(t, cerrors.IsUnsupportedAction(err))
	assert.EqualError(t, err, "unsupported chaos action: 'disk-fill'")
}

func TestTranslate_Deterministic(t *testing.T) {
	for _, engine := range []types.Engine{types.LitmusChaos, types.ChaosMesh} {
		t.Run(string(engine), func(t *testing.T) {
			intent := newIntent(types.NetworkLoss)
			intent.Engine = engine

			first, err := Translate(intent, runID)
			require.NoError(t, err)
			second, err := Translate(intent, runID)
			require.NoError(t, err)

			firstJSON, err := first.JSON()
			require.NoError(t, err)
			secondJSON, err := second.JSON()
			require.NoError(t, err)
			assert.Equal(t, firstJSON, secondJSON)

			other, err := Translate(intent, "chaos-99999999")
			require.NoError(t, err)
			otherJSON, err := other.JSON()
			require.NoError(t, err)
			assert.NotEqual(t, firstJSON, otherJSON)
		})
	}
}

func TestSaveManifest(t *testing.T) {
	manifest, err := Translate(newIntent(types.CPUHog), runID)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "manifests", runID+".yaml")
	require.NoError(t, manifest.SaveManifest(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	assert.Equal(t, "ChaosEngine", decoded["kind"])
	assert.Equal(t, "litmuschaos.io/v1alpha1", decoded["apiVersion"])
}
