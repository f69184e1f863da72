package metrics

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/litmuschaos/chaos-advisor/pkg/types"
)

const pushJob = "chaos_advisor"

// status values of the chaos_experiment_status gauge
var statusValue = map[types.RunState]float64{
	types.StateRunning:   0,
	types.StateCompleted: 1,
	types.StateAborted:   2,
	types.StateFailed:    3,
}

// Recorder exports the progress of monitored runs as prometheus gauges and otel counters
type Recorder struct {
	registry *prometheus.Registry
	duration *prometheus.GaugeVec
	status   *prometheus.GaugeVec
	samples  metric.Int64Counter
	outcomes metric.Int64Counter
	pusher   *push.Pusher
}

// NewRecorder registers the gauges on registry and the counters on meter
func NewRecorder(registry *prometheus.Registry, meter metric.Meter) (*Recorder, error) {
	r := &Recorder{
		registry: registry,
		duration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "chaos_experiment_duration_seconds",
			Help: "Duration of chaos experiment",
		}, []string{"run_id", "experiment"}),
		status: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "chaos_experiment_status",
			Help: "Status of chaos experiment (0=running, 1=completed, 2=aborted, 3=failed)",
		}, []string{"run_id", "experiment"}),
	}
	for _, c := range []prometheus.Collector{r.duration, r.status} {
		if err := registry.Register(c); err != nil {
			return nil, errors.Wrapf(err, "unable to register the experiment gauges")
		}
	}

	var err error
	if r.samples, err = meter.Int64Counter("chaos_advisor.metric_samples",
		metric.WithDescription("Metric samples collected by the run monitor")); err != nil {
		return nil, errors.Wrapf(err, "unable to create the samples counter")
	}
	if r.outcomes, err = meter.Int64Counter("chaos_advisor.runs",
		metric.WithDescription("Monitored runs by final status")); err != nil {
		return nil, errors.Wrapf(err, "unable to create the runs counter")
	}
	return r, nil
}

// WithPushgateway pushes the registry to the pushgateway at url whenever a run finishes
func (r *Recorder) WithPushgateway(url string) *Recorder {
	if url != "" {
		r.pusher = push.New(url, pushJob).Gatherer(r.registry)
	}
	return r
}

// Observe records a sample of a running experiment
func (r *Recorder) Observe(ctx context.Context, runID, experiment string, elapsed time.Duration, state types.RunState) {
	r.duration.WithLabelValues(runID, experiment).Set(elapsed.Seconds())
	r.status.WithLabelValues(runID, experiment).Set(statusValue[state])
	r.samples.Add(ctx, 1, metric.WithAttributes(attribute.String("run_id", runID)))
}

// Finish records the final status of a run and pushes the registry when a pushgateway is configured
func (r *Recorder) Finish(ctx context.Context, runID, experiment string, elapsed time.Duration, state types.RunState) error {
	r.duration.WithLabelValues(runID, experiment).Set(elapsed.Seconds())
	r.status.WithLabelValues(runID, experiment).Set(statusValue[state])
	r.outcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(state))))
	if r.pusher == nil {
		return nil
	}
	if err := r.pusher.PushContext(ctx); err != nil {
		return errors.Wrapf(err, "unable to push the metrics of run %v", runID)
	}
	return nil
}
