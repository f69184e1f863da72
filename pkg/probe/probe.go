package probe

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/litmuschaos/chaos-advisor/pkg/cerrors"
	"github.com/litmuschaos/chaos-advisor/pkg/log"
)

// SLI names reported by the probe
const (
	ErrorRate   = "error_rate"
	LatencyP95  = "latency_p95"
	CPUUsage    = "cpu_usage"
	MemoryUsage = "memory_usage"
)

// DefaultQueryTimeout bounds every single query
const DefaultQueryTimeout = 10 * time.Second

// Backend evaluates an instant query, ok is false when the query matched no series
type Backend interface {
	Query(ctx context.Context, expr string) (value float64, ok bool, err error)
}

// Query is a named PromQL expression
type Query struct {
	Metric string
	Expr   string
}

// Queries returns the SLI queries of a target
func Queries(namespace, labelSelector string) []Query {
	m := Matchers(namespace, labelSelector)
	return []Query{
		{ErrorRate, fmt.Sprintf(`sum(rate(http_requests_total{status=~"5..",%s}[5m])) / sum(rate(http_requests_total{%s}[5m]))`, m, m)},
		{LatencyP95, fmt.Sprintf(`histogram_quantile(0.95, sum(rate(http_request_duration_seconds_bucket{%s}[5m])) by (le))`, m)},
		{CPUUsage, fmt.Sprintf(`avg(rate(container_cpu_usage_seconds_total{%s}[5m])) * 100`, m)},
		{MemoryUsage, fmt.Sprintf(`avg(container_memory_usage_bytes{%s}) / avg(container_spec_memory_limit_bytes{%s}) * 100`, m, m)},
	}
}

// Probe samples the SLIs of a target
type Probe struct {
	backend Backend
	timeout time.Duration
}

// New returns a Probe, a non positive timeout falls back to DefaultQueryTimeout
func New(backend Backend, timeout time.Duration) *Probe {
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	return &Probe{backend: backend, timeout: timeout}
}

// Query samples every SLI of the target. A query that fails, times out or returns
// no finite value leaves its metric out of the result, Query itself never fails.
func (p *Probe) Query(ctx context.Context, namespace, labelSelector string) map[string]float64 {
	metrics := map[string]float64{}
	for _, q := range Queries(namespace, labelSelector) {
		value, ok, err := p.query(ctx, q.Expr)
		switch {
		case err != nil:
			log.WarnWithValues("[Probe]: Metric is unavailable", logrus.Fields{
				"Metric": q.Metric,
				"Err":    cerrors.TelemetryUnavailable{Query: q.Expr, Reason: err.Error()}.Error(),
			})
		case !ok:
			log.Debugf("[Probe]: No series matched the %v query", q.Metric)
		case math.IsNaN(value) || math.IsInf(value, 0):
			log.Debugf("[Probe]: Dropping the non finite %v value %v", q.Metric, value)
		default:
			metrics[q.Metric] = value
		}
	}
	return metrics
}

func (p *Probe) query(ctx context.Context, expr string) (value float64, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			value, ok, err = 0, false, fmt.Errorf("metrics backend panicked: %v", r)
		}
	}()
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.backend.Query(ctx, expr)
}
