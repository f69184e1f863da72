package executor

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/utils/clock"

	"github.com/litmuschaos/chaos-advisor/pkg/cerrors"
	"github.com/litmuschaos/chaos-advisor/pkg/clients"
	"github.com/litmuschaos/chaos-advisor/pkg/events"
	"github.com/litmuschaos/chaos-advisor/pkg/log"
	"github.com/litmuschaos/chaos-advisor/pkg/telemetry"
	"github.com/litmuschaos/chaos-advisor/pkg/translator"
	"github.com/litmuschaos/chaos-advisor/pkg/types"
	"github.com/litmuschaos/chaos-advisor/pkg/utils/stringutils"
)

const notFoundNote = "chaos resource not found, assuming external cleanup"

// Executor applies chaos manifests to the cluster and tracks the resulting runs.
// It is the only component that mutates cluster state.
type Executor struct {
	clients    *clients.ClientSets
	translator *translator.Translator
	registry   *Registry
	clock      clock.PassiveClock
	newRunID   func() string
}

// Option configures an Executor
type Option func(*Executor)

// WithRegistry injects the run registry
func WithRegistry(registry *Registry) Option {
	return func(e *Executor) {
		e.registry = registry
	}
}

// WithServiceAccount sets the service account of the litmus experiment pods
func WithServiceAccount(serviceAccount string) Option {
	return func(e *Executor) {
		e.translator = translator.New(serviceAccount)
	}
}

// WithClock replaces the wall clock used for the record timestamps
func WithClock(c clock.PassiveClock) Option {
	return func(e *Executor) {
		e.clock = c
	}
}

// WithRunIDGenerator replaces the run ID source
func WithRunIDGenerator(fn func() string) Option {
	return func(e *Executor) {
		e.newRunID = fn
	}
}

// New returns an Executor bound to the given clients
func New(clientSets *clients.ClientSets, opts ...Option) *Executor {
	e := &Executor{
		clients:    clientSets,
		translator: translator.New(""),
		registry:   NewRegistry(),
		clock:      clock.RealClock{},
		newRunID:   stringutils.GetRunID,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the run registry of the executor
func (e *Executor) Registry() *Registry {
	return e.registry
}

// Apply translates the intent and, unless dryRun is set, creates the chaos resource and registers the run
func (e *Executor) Apply(ctx context.Context, intent types.ExperimentIntent, dryRun bool) (string, error) {
	ctx, span := otel.Tracer(telemetry.TracerName).Start(ctx, "ApplyChaos")
	defer span.End()

	if dryRun {
		runID := e.uniqueRunID()
		span.SetAttributes(attribute.String("chaos.run_id", runID), attribute.Bool("chaos.dry_run", true))
		manifest, err := e.translator.Translate(intent, runID)
		if err != nil {
			telemetry.FailSpan(span, "could not translate the experiment intent", err)
			return "", err
		}
		log.InfoWithValues("[Dry-run]: Chaos manifest validated", logrus.Fields{
			"RunID":     runID,
			"Kind":      manifest.Object.GetKind(),
			"Name":      manifest.Name,
			"Namespace": manifest.Namespace,
		})
		return runID, nil
	}

	manifest, err := e.reserve(intent)
	if err != nil {
		telemetry.FailSpan(span, "could not translate the experiment intent", err)
		return "", err
	}
	runID := manifest.RunID
	span.SetAttributes(attribute.String("chaos.run_id", runID), attribute.Bool("chaos.dry_run", false))

	if err := e.clients.EnsureNamespace(ctx, manifest.Namespace); err != nil {
		e.registry.Remove(runID)
		err = clusterError("ensure namespace", manifest.Namespace, err)
		telemetry.FailSpan(span, "could not ensure the target namespace", err)
		return "", err
	}
	if _, err := e.clients.CreateChaosResource(ctx, manifest.Resource, manifest.Object); err != nil {
		e.registry.Remove(runID)
		err = clusterError("create "+manifest.Object.GetKind(), manifest.Namespace+"/"+manifest.Name, err)
		telemetry.FailSpan(span, "could not create the chaos resource", err)
		return "", err
	}

	now := e.clock.Now()
	e.registry.Update(runID, func(r *types.RunRecord) {
		r.State = types.StateRunning
		r.StartedAt = now
		r.LastChecked = now
	})

	log.InfoWithValues("[Chaos]: The chaos resource has been applied", logrus.Fields{
		"RunID":     runID,
		"Kind":      manifest.Object.GetKind(),
		"Name":      manifest.Name,
		"Namespace": manifest.Namespace,
	})
	e.emit(ctx, manifest, events.ChaosInject, fmt.Sprintf("Injecting %v chaos on application pods", manifest.Action))
	return runID, nil
}

// GetStatus returns the live status of a run
func (e *Executor) GetStatus(ctx context.Context, runID string) (types.RunStatus, error) {
	record, ok := e.registry.Get(runID)
	if !ok {
		return types.RunStatus{}, cerrors.RunNotFound{RunID: runID}
	}
	// runs ended locally, e.g. aborted, are not looked up again
	if record.State.IsTerminal() || record.State == types.StatePending {
		return statusOf(record), nil
	}

	manifest := record.Manifest
	obj, err := e.clients.GetChaosResource(ctx, manifest.Resource, manifest.Namespace, manifest.Name)
	now := e.clock.Now()
	if err != nil {
		if !k8serrors.IsNotFound(err) {
			return types.RunStatus{}, clusterError("get "+manifest.Object.GetKind(), manifest.Namespace+"/"+manifest.Name, err)
		}
		record, _ = e.registry.Update(runID, func(r *types.RunRecord) {
			r.LastChecked = now
			if r.State.IsTerminal() {
				return
			}
			r.State = types.StateCompleted
			r.EndedAt = now
		})
		status := statusOf(record)
		if record.State == types.StateCompleted {
			status.Note = notFoundNote
		}
		return status, nil
	}

	state, engineStatus := mapState(manifest.Engine, obj)
	record, _ = e.registry.Update(runID, func(r *types.RunRecord) {
		r.LastChecked = now
		// a concurrent abort wins over the observed state
		if r.State.IsTerminal() || state == types.StateUnknown {
			return
		}
		r.State = state
		if state.IsTerminal() {
			r.EndedAt = now
		}
	})

	status := statusOf(record)
	if state == types.StateUnknown && !record.State.IsTerminal() {
		status.State = types.StateUnknown
	}
	status.EngineStatus = engineStatus
	if manifest.Engine == types.LitmusChaos {
		status.Verdict = e.verdict(ctx, manifest.Namespace, translator.ResultName(obj))
	}
	return status, nil
}

// Abort stops a run by deleting its chaos resource, aborting an aborted run is a no-op
func (e *Executor) Abort(ctx context.Context, runID string) error {
	ctx, span := otel.Tracer(telemetry.TracerName).Start(ctx, "AbortChaos")
	defer span.End()
	span.SetAttributes(attribute.String("chaos.run_id", runID))

	record, ok := e.registry.Get(runID)
	if !ok {
		return cerrors.RunNotFound{RunID: runID}
	}
	if record.State == types.StateAborted {
		return nil
	}
	if record.State == types.StatePending {
		return cerrors.Generic{Phase: "Abort", Reason: fmt.Sprintf("run %s is still being applied", runID)}
	}

	manifest := record.Manifest
	if err := e.clients.DeleteChaosResource(ctx, manifest.Resource, manifest.Namespace, manifest.Name); err != nil {
		err = clusterError("delete "+manifest.Object.GetKind(), manifest.Namespace+"/"+manifest.Name, err)
		telemetry.FailSpan(span, "could not delete the chaos resource", err)
		return err
	}

	now := e.clock.Now()
	e.registry.Update(runID, func(r *types.RunRecord) {
		r.State = types.StateAborted
		r.AbortedAt = now
		r.EndedAt = now
		r.LastChecked = now
	})

	log.InfoWithValues("[Abort]: The chaos run has been aborted", logrus.Fields{
		"RunID":     runID,
		"Name":      manifest.Name,
		"Namespace": manifest.Namespace,
	})
	e.emit(ctx, manifest, events.Summary, fmt.Sprintf("%v chaos has been aborted", manifest.Action))
	return nil
}

// Cleanup drops the completed and aborted runs from the registry, the cluster is not touched
func (e *Executor) Cleanup() int {
	removed := e.registry.Prune(func(r types.RunRecord) bool {
		return r.State == types.StateCompleted || r.State == types.StateAborted
	})
	if removed > 0 {
		log.Infof("[Cleanup]: Removed %d finished runs from the registry", removed)
	}
	return removed
}

// ListRuns returns every tracked run, oldest first
func (e *Executor) ListRuns() []types.RunRecord {
	return e.registry.List()
}

// Record returns the record of a single run
func (e *Executor) Record(runID string) (types.RunRecord, error) {
	record, ok := e.registry.Get(runID)
	if !ok {
		return types.RunRecord{}, cerrors.RunNotFound{RunID: runID}
	}
	return record, nil
}

// reserve translates the intent under a fresh run ID and registers it as pending,
// concurrent applies never share a run ID
func (e *Executor) reserve(intent types.ExperimentIntent) (*types.ChaosManifest, error) {
	for {
		manifest, err := e.translator.Translate(intent, e.newRunID())
		if err != nil {
			return nil, err
		}
		if e.registry.Add(types.RunRecord{
			RunID:    manifest.RunID,
			Intent:   intent,
			Manifest: manifest,
			State:    types.StatePending,
		}) {
			return manifest, nil
		}
	}
}

func (e *Executor) uniqueRunID() string {
	for {
		if id := e.newRunID(); !e.registry.Exists(id) {
			return id
		}
	}
}

// verdict reads the litmus ChaosResult, an unreadable result yields no verdict
func (e *Executor) verdict(ctx context.Context, namespace, name string) string {
	result, err := e.clients.GetChaosResource(ctx, translator.ChaosResultResource, namespace, name)
	if err != nil {
		log.Debugf("[Status]: ChaosResult %v/%v is not readable, err: %v", namespace, name, err)
		return ""
	}
	return resultVerdict(result)
}

// emit records a kubernetes event against the chaos resource, failures are only logged
func (e *Executor) emit(ctx context.Context, manifest *types.ChaosManifest, reason, message string) {
	if e.clients.KubeClient == nil {
		return
	}
	if err := events.GenerateEvents(ctx, events.ForManifest(manifest, reason, message), e.clients.KubeClient); err != nil {
		log.Warnf("[Event]: Unable to create the %v event for %v, err: %v", reason, manifest.Name, err)
	}
}

func statusOf(record types.RunRecord) types.RunStatus {
	return types.RunStatus{
		RunID:       record.RunID,
		State:       record.State,
		StartedAt:   record.StartedAt,
		LastChecked: record.LastChecked,
	}
}

// clusterError converts an API error into cerrors.ClusterAPI
func clusterError(operation, target string, err error) error {
	cerr := cerrors.ClusterAPI{Operation: operation, Target: target, Reason: err.Error(), Err: err}
	var status k8serrors.APIStatus
	if errors.As(err, &status) {
		cerr.Code = status.Status().Code
	}
	return cerr
}
