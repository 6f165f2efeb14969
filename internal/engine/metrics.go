package engine

import (
	"context"
	"math"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/roach88/tokenstream/internal/ir"
)

const meterName = "github.com/roach88/tokenstream/internal/engine"

// Metric names.
const (
	MetricOperations = "tokenstream.operations"
	MetricSettled    = "tokenstream.settled"
)

type metrics struct {
	ops     metric.Int64Counter
	settled metric.Int64Counter
}

func newMetrics(mp metric.MeterProvider) (*metrics, error) {
	m := mp.Meter(meterName)

	ops, err := m.Int64Counter(MetricOperations,
		metric.WithDescription("Engine operations by outcome"),
		metric.WithUnit("{operation}"))
	if err != nil {
		return nil, err
	}
	settled, err := m.Int64Counter(MetricSettled,
		metric.WithDescription("Token base units moved through the transfer port"),
		metric.WithUnit("{unit}"))
	if err != nil {
		return nil, err
	}
	return &metrics{ops: ops, settled: settled}, nil
}

// record counts one operation. outcome is "ok" or the lower-cased error code.
func (m *metrics) record(ctx context.Context, op string, err error, moved ir.Amount) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
		if code := ir.CodeOf(err); code != "" {
			outcome = strings.ToLower(string(code))
		}
	}
	m.ops.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("outcome", outcome),
	))
	if err == nil && moved > 0 {
		m.settled.Add(ctx, int64(min(moved, math.MaxInt64)), metric.WithAttributes(
			attribute.String("op", op),
		))
	}
}
