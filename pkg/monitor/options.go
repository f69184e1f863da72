package monitor

import (
	"context"
	"time"

	"k8s.io/utils/clock"

	"github.com/litmuschaos/chaos-advisor/pkg/notify"
	"github.com/litmuschaos/chaos-advisor/pkg/types"
)

const (
	DefaultInterval      = 30 * time.Second
	DefaultStatusTimeout = 10 * time.Second
	DefaultProgressEvery = 10
)

// StatusSource reports the live status of a run
type StatusSource interface {
	GetStatus(ctx context.Context, runID string) (types.RunStatus, error)
}

// MetricsSource samples the SLIs of a target, it never fails
type MetricsSource interface {
	Query(ctx context.Context, namespace, labelSelector string) map[string]float64
}

// Recorder exports the progress of monitored runs
type Recorder interface {
	Observe(ctx context.Context, runID, experiment string, elapsed time.Duration, state types.RunState)
	Finish(ctx context.Context, runID, experiment string, elapsed time.Duration, state types.RunState) error
}

// AbortFunc stops a run once its abort threshold is crossed
type AbortFunc func(ctx context.Context, runID string) error

// Option configures a Monitor
type Option func(*Monitor)

// WithInterval sets the time between two ticks
func WithInterval(interval time.Duration) Option {
	return func(m *Monitor) {
		if interval > 0 {
			m.interval = interval
		}
	}
}

// WithStatusTimeout bounds every status lookup
func WithStatusTimeout(timeout time.Duration) Option {
	return func(m *Monitor) {
		if timeout > 0 {
			m.statusTimeout = timeout
		}
	}
}

// WithProgressEvery sends an update notification every n samples, zero disables updates
func WithProgressEvery(n int) Option {
	return func(m *Monitor) {
		m.progressEvery = n
	}
}

// WithNotifier sets the notifier of lifecycle notifications
func WithNotifier(n notify.Notifier) Option {
	return func(m *Monitor) {
		if n != nil {
			m.notifier = n
		}
	}
}

// WithRecorder sets the metrics recorder
func WithRecorder(r Recorder) Option {
	return func(m *Monitor) {
		if r != nil {
			m.recorder = r
		}
	}
}

// WithAbortFunc sets the callback invoked when a run crosses its abort threshold
func WithAbortFunc(fn AbortFunc) Option {
	return func(m *Monitor) {
		m.onAbort = fn
	}
}

// WithClock replaces the wall clock, tests use a fake one
func WithClock(c clock.Clock) Option {
	return func(m *Monitor) {
		m.clock = c
	}
}

type nopRecorder struct{}

func (nopRecorder) Observe(context.Context, string, string, time.Duration, types.RunState) {}

func (nopRecorder) Finish(context.Context, string, string, time.Duration, types.RunState) error {
	return nil
}
