package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/litmuschaos/chaos-advisor/pkg/cerrors"
	"github.com/litmuschaos/chaos-advisor/pkg/notify"
	"github.com/litmuschaos/chaos-advisor/pkg/types"
)

var startTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

const testInterval = 30 * time.Second

// fakeStatus answers the n-th status call (starting at 1) through respond
type fakeStatus struct {
	mu      sync.Mutex
	calls   int
	respond func(call int) (types.RunStatus, error)
}

func (f *fakeStatus) GetStatus(_ context.Context, runID string) (types.RunStatus, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()
	if f.respond == nil {
		return types.RunStatus{RunID: runID, State: types.StateRunning}, nil
	}
	return f.respond(call)
}

// fakeMetrics returns the samples in order and repeats the last one
type fakeMetrics struct {
	mu      sync.Mutex
	samples []map[string]float64
	calls   int
	panics  bool
}

func (f *fakeMetrics) Query(context.Context, string, string) map[string]float64 {
	if f.panics {
		panic("sampler bug")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.samples) == 0 {
		return map[string]float64{}
	}
	i := f.calls - 1
	if i >= len(f.samples) {
		i = len(f.samples) - 1
	}
	return f.samples[i]
}

type recordingNotifier struct {
	mu    sync.Mutex
	sent  []notify.Notification
	fails bool
}

func (r *recordingNotifier) Notify(_ context.Context, n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	if r.fails {
		return errors.New("webhook unreachable")
	}
	return nil
}

func (r *recordingNotifier) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kinds []string
	for _, n := range r.sent {
		kinds = append(kinds, n.Kind)
	}
	return kinds
}

type fakeRecorder struct {
	mu       sync.Mutex
	observed int
	finished types.RunState
}

func (f *fakeRecorder) Observe(context.Context, string, string, time.Duration, types.RunState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.observed++
}

func (f *fakeRecorder) Finish(_ context.Context, _, _ string, _ time.Duration, state types.RunState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished = state
	return nil
}

func intentFor(duration string, rule *types.AbortRule) types.ExperimentIntent {
	return types.ExperimentIntent{
		Title:          "Checkout resilience",
		Action:         types.PodKill,
		TargetSelector: types.TargetSelector{Namespace: "shop", LabelSelector: "app=checkout"},
		Parameters:     types.Parameters{Duration: duration},
		AbortThreshold: rule,
	}
}

type result struct {
	report *types.FinalReport
	err    error
}

// start runs Monitor in the background
func start(ctx context.Context, m *Monitor, runID string, intent types.ExperimentIntent) <-chan result {
	done := make(chan result, 1)
	go func() {
		report, err := m.Monitor(ctx, runID, intent)
		done <- result{report: report, err: err}
	}()
	return done
}

// drive steps the fake clock whenever the monitor sleeps, until it returns
func drive(t *testing.T, clk *testingclock.FakeClock, done <-chan result) result {
	t.Helper()
	timeout := time.After(10 * time.Second)
	for {
		select {
		case r := <-done:
			return r
		case <-timeout:
			t.Fatal("monitor did not return")
		default:
		}
		if clk.HasWaiters() {
			clk.Step(testInterval)
		}
		time.Sleep(time.Millisecond)
	}
}

func newMonitor(status StatusSource, metrics MetricsSource, clk *testingclock.FakeClock, opts ...Option) *Monitor {
	return New(status, metrics, append([]Option{WithClock(clk), WithInterval(testInterval)}, opts...)...)
}

func TestMonitorCompletesAtDeadline(t *testing.T) {
	clk := testingclock.NewFakeClock(startTime)
	recorder := &fakeRecorder{}
	notifier := &recordingNotifier{}
	m := newMonitor(&fakeStatus{}, &fakeMetrics{samples: []map[string]float64{{"error_rate": 0.01}}}, clk,
		WithRecorder(recorder), WithNotifier(notifier))

	r := drive(t, clk, start(context.Background(), m, "chaos-1", intentFor("90s", nil)))

	require.NoError(t, r.err)
	assert.Equal(t, types.StateCompleted, r.report.Status)
	assert.Len(t, r.report.MetricsHistory, 3)
	assert.Equal(t, 90.0, r.report.DurationSeconds)
	assert.Equal(t, startTime, r.report.StartedAt)
	assert.Empty(t, r.report.AbortReason)
	assert.Equal(t, "Checkout resilience", r.report.Intent.Title)
	assert.Equal(t, 3, recorder.observed)
	assert.Equal(t, types.StateCompleted, recorder.finished)
	assert.Equal(t, []string{notify.Started, "completed"}, notifier.kinds())
}

func TestMonitorAbortsOnThreshold(t *testing.T) {
	clk := testingclock.NewFakeClock(startTime)
	metrics := &fakeMetrics{samples: []map[string]float64{
		{"error_rate": 0.01},
		{"error_rate": 0.02},
		{"error_rate": 0.08},
	}}
	var aborted []string
	notifier := &recordingNotifier{}
	m := newMonitor(&fakeStatus{}, metrics, clk, WithNotifier(notifier),
		WithAbortFunc(func(_ context.Context, runID string) error {
			aborted = append(aborted, runID)
			return nil
		}))

	rule := &types.AbortRule{Metric: "error_rate", Operator: ">", Value: 0.05}
	r := drive(t, clk, start(context.Background(), m, "chaos-1", intentFor("300s", rule)))

	require.NoError(t, r.err)
	assert.Equal(t, types.StateAborted, r.report.Status)
	assert.Len(t, r.report.MetricsHistory, 3)
	assert.Equal(t, "Threshold exceeded: error_rate > 0.05 (observed 0.08)", r.report.AbortReason)
	assert.Equal(t, []string{"chaos-1"}, aborted)
	assert.Equal(t, 60.0, r.report.DurationSeconds)

	kinds := notifier.kinds()
	require.Len(t, kinds, 2)
	assert.Equal(t, "aborted", kinds[1])
	assert.Equal(t, r.report.AbortReason, notifier.sent[1].Reason)
}

func TestMonitorAbortCallbackFailure(t *testing.T) {
	clk := testingclock.NewFakeClock(startTime)
	m := newMonitor(&fakeStatus{}, &fakeMetrics{samples: []map[string]float64{{"error_rate": 0.5}}}, clk,
		WithAbortFunc(func(context.Context, string) error {
			return cerrors.ClusterAPI{Operation: "delete", Target: "chaos-1", Code: 403, Reason: "forbidden"}
		}))

	rule := &types.AbortRule{Metric: "error_rate", Value: 0.05}
	r := drive(t, clk, start(context.Background(), m, "chaos-1", intentFor("300s", rule)))

	require.Error(t, r.err)
	assert.True(t, cerrors.IsMonitorFailure(r.err))
	require.NotNil(t, r.report)
	assert.Equal(t, types.StateFailed, r.report.Status)
	assert.Contains(t, r.report.AbortReason, "Threshold exceeded")
}

func TestMonitorImpact(t *testing.T) {
	tests := []struct {
		name     string
		samples  []map[string]float64
		duration string
		baseline map[string]float64
		final    map[string]float64
		impact   map[string]float64
	}{
		{
			name: "baseline is the mean of the first two samples",
			samples: []map[string]float64{
				{"error_rate": 0.04, "latency_p95": 0.2},
				{"error_rate": 0.04, "latency_p95": 0.4},
				{"error_rate": 0.07, "latency_p95": 0.3},
			},
			duration: "90s",
			baseline: map[string]float64{"error_rate": 0.04, "latency_p95": 0.3},
			final:    map[string]float64{"error_rate": 0.07, "latency_p95": 0.3},
			impact:   map[string]float64{"error_rate": 75, "latency_p95": 0},
		},
		{
			name: "zero baseline yields zero impact",
			samples: []map[string]float64{
				{"error_rate": 0},
				{"error_rate": 0},
				{"error_rate": 0.5},
			},
			duration: "90s",
			baseline: map[string]float64{"error_rate": 0},
			final:    map[string]float64{"error_rate": 0.5},
			impact:   map[string]float64{"error_rate": 0},
		},
		{
			name: "metric missing from a baseline sample counts as zero",
			samples: []map[string]float64{
				{"cpu_usage": 10},
				{},
				{"cpu_usage": 10},
			},
			duration: "90s",
			baseline: map[string]float64{"cpu_usage": 5},
			final:    map[string]float64{"cpu_usage": 10},
			impact:   map[string]float64{"cpu_usage": 100},
		},
		{
			name:     "single sample has no impact",
			samples:  []map[string]float64{{"error_rate": 0.3}},
			duration: "10s",
			baseline: map[string]float64{"error_rate": 0.3},
			final:    map[string]float64{"error_rate": 0.3},
			impact:   map[string]float64{"error_rate": 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clk := testingclock.NewFakeClock(startTime)
			m := newMonitor(&fakeStatus{}, &fakeMetrics{samples: tt.samples}, clk)

			r := drive(t, clk, start(context.Background(), m, "chaos-1", intentFor(tt.duration, nil)))

			require.NoError(t, r.err)
			assert.Len(t, r.report.MetricsHistory, len(tt.samples))
			assertMetrics(t, tt.baseline, r.report.Baseline)
			assertMetrics(t, tt.final, r.report.FinalMetrics)
			assertMetrics(t, tt.impact, r.report.Impact)
		})
	}
}

func assertMetrics(t *testing.T, expected, actual map[string]float64) {
	t.Helper()
	require.Len(t, actual, len(expected))
	for name, value := range expected {
		assert.InDelta(t, value, actual[name], 1e-9, name)
	}
}

func TestMonitorAdoptsTerminalStatus(t *testing.T) {
	tests := []struct {
		name   string
		state  types.RunState
		reason string
	}{
		{name: "aborted outside of the monitor", state: types.StateAborted, reason: "Run was aborted outside of the monitor"},
		{name: "completed by the engine", state: types.StateCompleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clk := testingclock.NewFakeClock(startTime)
			status := &fakeStatus{respond: func(call int) (types.RunStatus, error) {
				if call == 2 {
					return types.RunStatus{State: tt.state}, nil
				}
				return types.RunStatus{State: types.StateRunning}, nil
			}}
			m := newMonitor(status, &fakeMetrics{samples: []map[string]float64{{"error_rate": 0.01}}}, clk)

			r := drive(t, clk, start(context.Background(), m, "chaos-1", intentFor("300s", nil)))

			require.NoError(t, r.err)
			assert.Equal(t, tt.state, r.report.Status)
			assert.Equal(t, tt.reason, r.report.AbortReason)
			assert.Len(t, r.report.MetricsHistory, 1)
		})
	}
}

func TestMonitorRunNotFound(t *testing.T) {
	clk := testingclock.NewFakeClock(startTime)
	status := &fakeStatus{respond: func(int) (types.RunStatus, error) {
		return types.RunStatus{}, cerrors.RunNotFound{RunID: "chaos-1"}
	}}
	m := newMonitor(status, &fakeMetrics{}, clk)

	r := drive(t, clk, start(context.Background(), m, "chaos-1", intentFor("300s", nil)))

	require.Error(t, r.err)
	assert.True(t, cerrors.IsMonitorFailure(r.err))
	assert.True(t, cerrors.IsRunNotFound(r.err))
	require.NotNil(t, r.report)
	assert.Equal(t, types.StateFailed, r.report.Status)
	assert.Empty(t, r.report.MetricsHistory)
	assert.Empty(t, r.report.Baseline)

	_, err := m.GetStatus("chaos-1")
	assert.True(t, cerrors.IsRunNotFound(err))
}

func TestMonitorContinuesOnStatusErrors(t *testing.T) {
	clk := testingclock.NewFakeClock(startTime)
	status := &fakeStatus{respond: func(int) (types.RunStatus, error) {
		return types.RunStatus{}, cerrors.ClusterAPI{Operation: "get", Target: "chaos-1", Code: 503, Reason: "unavailable"}
	}}
	metrics := &fakeMetrics{samples: []map[string]float64{{"error_rate": 0.01}}}
	m := newMonitor(status, metrics, clk)

	r := drive(t, clk, start(context.Background(), m, "chaos-1", intentFor("60s", nil)))

	require.NoError(t, r.err)
	assert.Equal(t, types.StateCompleted, r.report.Status)
	assert.Len(t, r.report.MetricsHistory, 2)
}

func TestMonitorProgressNotifications(t *testing.T) {
	clk := testingclock.NewFakeClock(startTime)
	notifier := &recordingNotifier{fails: true}
	m := newMonitor(&fakeStatus{}, &fakeMetrics{samples: []map[string]float64{{"error_rate": 0.01}}}, clk,
		WithNotifier(notifier), WithProgressEvery(2))

	r := drive(t, clk, start(context.Background(), m, "chaos-1", intentFor("150s", nil)))

	require.NoError(t, r.err)
	assert.Len(t, r.report.MetricsHistory, 5)
	assert.Equal(t, []string{notify.Started, notify.Update, notify.Update, "completed"}, notifier.kinds())
}

func TestMonitorCancelled(t *testing.T) {
	clk := testingclock.NewFakeClock(startTime)
	m := newMonitor(&fakeStatus{}, &fakeMetrics{samples: []map[string]float64{{"error_rate": 0.01}}}, clk)

	ctx, cancel := context.WithCancel(context.Background())
	done := start(ctx, m, "chaos-1", intentFor("300s", nil))
	require.Eventually(t, clk.HasWaiters, 5*time.Second, time.Millisecond)
	cancel()

	r := <-done
	require.Error(t, r.err)
	assert.True(t, cerrors.IsMonitorFailure(r.err))
	assert.ErrorIs(t, r.err, context.Canceled)
	assert.Equal(t, types.StateFailed, r.report.Status)
	assert.Len(t, r.report.MetricsHistory, 1)
}

func TestMonitorRecoversFromPanics(t *testing.T) {
	clk := testingclock.NewFakeClock(startTime)
	m := newMonitor(&fakeStatus{}, &fakeMetrics{panics: true}, clk)

	r := drive(t, clk, start(context.Background(), m, "chaos-1", intentFor("300s", nil)))

	require.Error(t, r.err)
	assert.True(t, cerrors.IsMonitorFailure(r.err))
	assert.Equal(t, types.StateFailed, r.report.Status)
	assert.Contains(t, r.report.AbortReason, "sampler bug")
}

func TestMonitorInvalidDuration(t *testing.T) {
	for _, duration := range []string{"soon", "3000000h"} {
		t.Run(duration, func(t *testing.T) {
			m := New(&fakeStatus{}, &fakeMetrics{})

			report, err := m.Monitor(context.Background(), "chaos-1", intentFor(duration, nil))

			assert.Nil(t, report)
			assert.True(t, cerrors.IsValidation(err))
			assert.Empty(t, m.ListActive())
		})
	}
}

// panickingNotifier records the notification kinds and then panics
type panickingNotifier struct {
	recordingNotifier
}

func (p *panickingNotifier) Notify(ctx context.Context, n notify.Notification) error {
	_ = p.recordingNotifier.Notify(ctx, n)
	panic("slack client bug")
}

func TestMonitorSurvivesPanickingNotifier(t *testing.T) {
	clk := testingclock.NewFakeClock(startTime)
	recorder := &fakeRecorder{}
	notifier := &panickingNotifier{}
	m := newMonitor(&fakeStatus{}, &fakeMetrics{samples: []map[string]float64{{"error_rate": 0.01}}}, clk,
		WithNotifier(notifier), WithRecorder(recorder), WithProgressEvery(1))

	r := drive(t, clk, start(context.Background(), m, "chaos-1", intentFor("60s", nil)))

	require.NoError(t, r.err)
	assert.Equal(t, types.StateCompleted, r.report.Status)
	assert.Len(t, r.report.MetricsHistory, 2)
	assert.Equal(t, []string{notify.Started, notify.Update, notify.Update, "completed"}, notifier.kinds())
	assert.Equal(t, types.StateCompleted, recorder.finished)
	assert.Empty(t, m.ListActive())
}

func TestMonitorSessionStatus(t *testing.T) {
	clk := testingclock.NewFakeClock(startTime)
	m := newMonitor(&fakeStatus{}, &fakeMetrics{samples: []map[string]float64{{"error_rate": 0.01}}}, clk)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := start(ctx, m, "chaos-1", intentFor("300s", nil))
	require.Eventually(t, clk.HasWaiters, 5*time.Second, time.Millisecond)

	status, err := m.GetStatus("chaos-1")
	require.NoError(t, err)
	assert.Equal(t, types.StateRunning, status.Status)
	assert.Equal(t, "Checkout resilience", status.Title)
	assert.Equal(t, 1, status.SampleCount)
	assert.Equal(t, map[string]float64{"error_rate": 0.01}, status.LatestMetrics)

	active := m.ListActive()
	require.Len(t, active, 1)
	assert.Equal(t, "chaos-1", active[0].RunID)

	report, err := m.Monitor(ctx, "chaos-1", intentFor("300s", nil))
	assert.Nil(t, report)
	assert.True(t, cerrors.IsMonitorFailure(err))

	cancel()
	<-done
	assert.Empty(t, m.ListActive())
}
