package telemetry

import (
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	TracerName = "litmuschaos.io/chaos-advisor"
	MeterName  = "litmuschaos.io/chaos-advisor"
)

// FailSpan marks the span as failed and records the error on it
func FailSpan(span trace.Span, description string, err error) {
	span.SetStatus(codes.Error, description)
	span.RecordError(err)
}
