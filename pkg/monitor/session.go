package monitor

import (
	"sync"
	"time"

	"github.com/litmuschaos/chaos-advisor/pkg/math"
	"github.com/litmuschaos/chaos-advisor/pkg/types"
)

// baselineSamples is the number of leading samples averaged into the baseline
const baselineSamples = 2

// session is the mutable state of one monitored run, it lives as long as the Monitor call
type session struct {
	mu          sync.Mutex
	runID       string
	intent      types.ExperimentIntent
	startedAt   time.Time
	deadline    time.Time
	samples     []types.MetricSample
	status      types.RunState
	abortReason string
}

func newSession(runID string, intent types.ExperimentIntent, start time.Time, duration time.Duration) *session {
	return &session{
		runID:     runID,
		intent:    intent,
		startedAt: start,
		deadline:  start.Add(duration),
		status:    types.StateRunning,
	}
}

// append stores a sample and returns the new sample count
func (s *session) append(sample types.MetricSample) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, sample)
	return len(s.samples)
}

// finish moves a running session into a terminal status, the first terminal status wins
func (s *session) finish(status types.RunState, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.IsTerminal() {
		return
	}
	s.status = status
	if reason != "" {
		s.abortReason = reason
	}
}

func (s *session) state() types.RunState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *session) snapshot(now time.Time) types.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	status := types.SessionStatus{
		RunID:       s.runID,
		Title:       s.intent.Title,
		Status:      s.status,
		StartedAt:   s.startedAt,
		Elapsed:     now.Sub(s.startedAt),
		SampleCount: len(s.samples),
	}
	if n := len(s.samples); n > 0 {
		status.LatestMetrics = copyMetrics(s.samples[n-1].Metrics)
	}
	return status
}

// report builds the final report. The baseline is the mean of the first two samples,
// a run that ended with fewer samples averages what it has, so its impact reads as zero.
func (s *session) report(now time.Time) *types.FinalReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := make([]types.MetricSample, len(s.samples))
	copy(history, s.samples)

	baseline := map[string]float64{}
	final := map[string]float64{}
	impact := map[string]float64{}
	if n := len(history); n > 0 {
		head := history
		if n > baselineSamples {
			head = history[:baselineSamples]
		}
		// a metric missing from a baseline sample counts as zero
		for _, sample := range head {
			for name := range sample.Metrics {
				baseline[name] = 0
			}
		}
		for name := range baseline {
			values := make([]float64, 0, len(head))
			for _, sample := range head {
				values = append(values, sample.Metrics[name])
			}
			baseline[name] = math.Mean(values)
		}

		final = copyMetrics(history[n-1].Metrics)
		for name, value := range final {
			impact[name] = math.ImpactPercent(baseline[name], value)
		}
	}

	return &types.FinalReport{
		RunID:           s.runID,
		Status:          s.status,
		StartedAt:       s.startedAt,
		DurationSeconds: now.Sub(s.startedAt).Seconds(),
		Baseline:        baseline,
		FinalMetrics:    final,
		Impact:          impact,
		AbortReason:     s.abortReason,
		MetricsHistory:  history,
		Intent:          s.intent,
	}
}

func copyMetrics(metrics map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(metrics))
	for k, v := range metrics {
		out[k] = v
	}
	return out
}

// forceFail overrides any status, it is used when an abort could not be carried out
func (s *session) forceFail(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = types.StateFailed
	s.abortReason = reason
}
