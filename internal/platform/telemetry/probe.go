package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/jsamuelsen/go-eager-context/internal/platform/logging"
)

const instrumentationName = "github.com/jsamuelsen/go-eager-context/internal/platform/telemetry"

// ProbeMetrics records readiness probe runs.
type ProbeMetrics struct {
	duration metric.Float64Histogram
	runs     metric.Int64Counter
}

// NewProbeMetrics creates the probe instruments on the global meter provider.
func NewProbeMetrics() (*ProbeMetrics, error) {
	meter := otel.Meter(instrumentationName)

	duration, err := meter.Float64Histogram(
		"eager.probe.duration",
		metric.WithDescription("Duration of a readiness probe run in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	runs, err := meter.Int64Counter(
		"eager.probe.runs",
		metric.WithDescription("Readiness probe runs by outcome"),
	)
	if err != nil {
		return nil, err
	}

	return &ProbeMetrics{duration: duration, runs: runs}, nil
}

// Start opens a span for one probe run. The returned context carries the span
// and a logger tagged with its trace ID. The end function records the outcome
// and must be called exactly once.
func (m *ProbeMetrics) Start(ctx context.Context, backend string) (context.Context, func(error)) {
	start := time.Now()

	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "ctxprobe.run",
		trace.WithAttributes(attribute.String("runtime", backend)),
	)

	if sc := span.SpanContext(); sc.HasTraceID() {
		ctx = logging.WithTraceID(ctx, sc.TraceID().String())
	}

	return ctx, func(err error) {
		outcome := "ok"
		if err != nil {
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}

		attrs := metric.WithAttributes(
			attribute.String("runtime", backend),
			attribute.String("outcome", outcome),
		)

		m.duration.Record(ctx, time.Since(start).Seconds(), attrs)
		m.runs.Add(ctx, 1, attrs)
		span.End()
	}
}
