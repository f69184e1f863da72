package probe

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/api"
	promv1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"

	"github.com/litmuschaos/chaos-advisor/pkg/log"
)

// PrometheusBackend evaluates instant queries against the Prometheus HTTP API
type PrometheusBackend struct {
	api promv1.API
}

// NewPrometheusBackend returns a backend for the Prometheus server at address
func NewPrometheusBackend(address string) (*PrometheusBackend, error) {
	client, err := api.NewClient(api.Config{Address: address})
	if err != nil {
		return nil, errors.Wrapf(err, "unable to create the prometheus client for %v", address)
	}
	return &PrometheusBackend{api: promv1.NewAPI(client)}, nil
}

// Query returns the first sample of an instant query
func (b *PrometheusBackend) Query(ctx context.Context, expr string) (float64, bool, error) {
	result, warnings, err := b.api.Query(ctx, expr, time.Now())
	if err != nil {
		return 0, false, err
	}
	if len(warnings) > 0 {
		log.Debugf("[Probe]: Prometheus returned warnings: %v", warnings)
	}

	switch v := result.(type) {
	case model.Vector:
		if len(v) == 0 {
			return 0, false, nil
		}
		return float64(v[0].Value), true, nil
	case *model.Scalar:
		return float64(v.Value), true, nil
	default:
		return 0, false, errors.Errorf("unexpected %v result", result.Type())
	}
}
