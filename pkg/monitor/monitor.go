package monitor

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"k8s.io/utils/clock"

	"github.com/litmuschaos/chaos-advisor/pkg/abort"
	"github.com/litmuschaos/chaos-advisor/pkg/cerrors"
	"github.com/litmuschaos/chaos-advisor/pkg/log"
	"github.com/litmuschaos/chaos-advisor/pkg/notify"
	"github.com/litmuschaos/chaos-advisor/pkg/telemetry"
	"github.com/litmuschaos/chaos-advisor/pkg/translator"
	"github.com/litmuschaos/chaos-advisor/pkg/types"
)

// Monitor watches running experiments, samples their SLIs and enforces abort thresholds
type Monitor struct {
	status  StatusSource
	metrics MetricsSource

	interval      time.Duration
	statusTimeout time.Duration
	progressEvery int
	notifier      notify.Notifier
	recorder      Recorder
	onAbort       AbortFunc
	clock         clock.Clock

	mu       sync.RWMutex
	sessions map[string]*session
}

// New returns a Monitor reading run status and metrics from the given sources
func New(status StatusSource, metrics MetricsSource, opts ...Option) *Monitor {
	m := &Monitor{
		status:        status,
		metrics:       metrics,
		interval:      DefaultInterval,
		statusTimeout: DefaultStatusTimeout,
		progressEvery: DefaultProgressEvery,
		notifier:      notify.Nop{},
		recorder:      nopRecorder{},
		clock:         clock.RealClock{},
		sessions:      map[string]*session{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Monitor blocks until the run completes, is aborted, or fails. The report is returned
// for every outcome; a failed run also returns a MonitorFailure.
func (m *Monitor) Monitor(ctx context.Context, runID string, intent types.ExperimentIntent) (*types.FinalReport, error) {
	ctx, span := otel.Tracer(telemetry.TracerName).Start(ctx, "MonitorRun")
	defer span.End()
	span.SetAttributes(attribute.String("run.id", runID), attribute.String("run.action", string(intent.Action)))

	seconds, err := translator.ParseDuration(intent.Parameters.Duration)
	if err != nil {
		telemetry.FailSpan(span, "invalid experiment duration", err)
		return nil, err
	}

	s := newSession(runID, intent, m.clock.Now(), time.Duration(seconds)*time.Second)
	if !m.register(s) {
		err := cerrors.MonitorFailure{RunID: runID, Reason: "run is already monitored"}
		telemetry.FailSpan(span, "duplicate monitoring session", err)
		return nil, err
	}

	log.InfoWithValues("[Monitor]: Monitoring the chaos run", logrus.Fields{
		"RunID":    runID,
		"Action":   intent.Action,
		"Duration": seconds,
		"Interval": m.interval.String(),
	})
	m.notify(ctx, s, notify.Started, nil)

	failure := m.loop(ctx, s)

	report := s.report(m.clock.Now())
	m.unregister(runID)

	// the caller's context may already be gone, the terminal notification still goes out
	detached := context.WithoutCancel(ctx)
	m.notify(detached, s, string(report.Status), report.FinalMetrics)
	elapsed := time.Duration(report.DurationSeconds * float64(time.Second))
	if err := m.recorder.Finish(detached, runID, string(intent.Action), elapsed, report.Status); err != nil {
		log.Warnf("[Monitor]: Unable to export the final metrics of run %v, err: %v", runID, err)
	}

	log.InfoWithValues("[Monitor]: The chaos run has ended", logrus.Fields{
		"RunID":   runID,
		"Status":  report.Status,
		"Samples": len(report.MetricsHistory),
		"Reason":  report.AbortReason,
	})

	if failure != nil {
		telemetry.FailSpan(span, "monitoring failed", failure)
		return report, failure
	}
	span.SetAttributes(attribute.String("run.status", string(report.Status)))
	return report, nil
}

// loop runs the ticks of a session until it reaches a terminal status
func (m *Monitor) loop(ctx context.Context, s *session) (failure error) {
	defer func() {
		if r := recover(); r != nil {
			reason := fmt.Sprintf("panic during monitoring: %v", r)
			s.finish(types.StateFailed, reason)
			failure = cerrors.MonitorFailure{RunID: s.runID, Reason: reason}
		}
	}()

	for {
		if err := m.tick(ctx, s); err != nil {
			return err
		}
		if s.state().IsTerminal() {
			return nil
		}

		now := m.clock.Now()
		if !now.Before(s.deadline) {
			s.finish(types.StateCompleted, "")
			return nil
		}
		wait := m.interval
		if remaining := s.deadline.Sub(now); remaining < wait {
			wait = remaining
		}

		select {
		case <-ctx.Done():
			reason := "monitoring was cancelled"
			s.finish(types.StateFailed, reason)
			return cerrors.MonitorFailure{RunID: s.runID, Reason: reason, Err: ctx.Err()}
		case <-m.clock.After(wait):
		}

		if !m.clock.Now().Before(s.deadline) {
			s.finish(types.StateCompleted, "")
			return nil
		}
	}
}

// tick performs a status check, a metrics sample and an abort check
func (m *Monitor) tick(ctx context.Context, s *session) error {
	statusCtx, cancel := context.WithTimeout(ctx, m.statusTimeout)
	status, err := m.status.GetStatus(statusCtx, s.runID)
	cancel()
	switch {
	case err == nil:
		if status.State.IsTerminal() {
			reason := ""
			if status.State == types.StateAborted {
				reason = "Run was aborted outside of the monitor"
			}
			s.finish(status.State, reason)
			log.Infof("[Monitor]: Run %v reached the %v state", s.runID, status.State)
			return nil
		}
	case cerrors.IsRunNotFound(err):
		reason := "run is no longer tracked by the executor"
		s.finish(types.StateFailed, reason)
		return cerrors.MonitorFailure{RunID: s.runID, Reason: reason, Err: err}
	default:
		log.Warnf("[Monitor]: Unable to get the status of run %v, err: %v", s.runID, err)
	}

	target := s.intent.TargetSelector
	metrics := m.metrics.Query(ctx, target.Namespace, target.LabelSelector)
	count := s.append(types.MetricSample{Timestamp: m.clock.Now(), Metrics: metrics})
	m.recorder.Observe(ctx, s.runID, string(s.intent.Action), m.clock.Since(s.startedAt), types.StateRunning)
	log.InfoWithValues("[Monitor]: Collected a metrics sample", logrus.Fields{
		"RunID":   s.runID,
		"Sample":  count,
		"Metrics": formatMetrics(metrics),
	})

	if rule := s.intent.AbortThreshold; abort.ShouldAbort(metrics, rule) {
		reason := abort.Reason(metrics, rule)
		log.Warnf("[Monitor]: Aborting run %v, %v", s.runID, reason)
		s.finish(types.StateAborted, reason)
		if m.onAbort != nil {
			if err := m.onAbort(ctx, s.runID); err != nil {
				failReason := "unable to abort the chaos run"
				s.forceFail(failReason + ": " + reason)
				return cerrors.MonitorFailure{RunID: s.runID, Reason: failReason, Err: errors.WithStack(err)}
			}
		}
		return nil
	}

	if m.progressEvery > 0 && count%m.progressEvery == 0 {
		m.notify(ctx, s, notify.Update, metrics)
	}
	return nil
}

// GetStatus returns a snapshot of an active session
func (m *Monitor) GetStatus(runID string) (types.SessionStatus, error) {
	m.mu.RLock()
	s, ok := m.sessions[runID]
	m.mu.RUnlock()
	if !ok {
		return types.SessionStatus{}, cerrors.RunNotFound{RunID: runID}
	}
	return s.snapshot(m.clock.Now()), nil
}

// ListActive returns snapshots of all active sessions ordered by run ID
func (m *Monitor) ListActive() []types.SessionStatus {
	m.mu.RLock()
	sessions := make([]*session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	now := m.clock.Now()
	out := make([]types.SessionStatus, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.snapshot(now))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RunID < out[j].RunID })
	return out
}

func (m *Monitor) register(s *session) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.runID]; ok {
		return false
	}
	m.sessions[s.runID] = s
	return true
}

func (m *Monitor) unregister(runID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, runID)
}

// notify delivers a notification, delivery errors and notifier panics are only logged
func (m *Monitor) notify(ctx context.Context, s *session, kind string, metrics map[string]float64) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("[Monitor]: The notifier panicked on the %v notification of run %v: %v", kind, s.runID, r)
		}
	}()
	s.mu.Lock()
	n := notify.Notification{
		Kind:    kind,
		RunID:   s.runID,
		Title:   s.intent.Title,
		Action:  s.intent.Action,
		Metrics: metrics,
		Reason:  s.abortReason,
		Time:    m.clock.Now(),
	}
	s.mu.Unlock()
	if err := m.notifier.Notify(ctx, n); err != nil {
		log.Warnf("[Monitor]: Unable to send the %v notification of run %v, err: %v", kind, s.runID, err)
	}
}

func formatMetrics(metrics map[string]float64) string {
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	out := ""
	for i, name := range names {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%s=%.4g", name, metrics[name])
	}
	return out
}
