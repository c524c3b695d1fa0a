package orchestrator

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/doeshing/genosma/internal/domain"
)

const tracerName = "github.com/doeshing/genosma/orchestrator"

func (o *Orchestrator) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return o.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// endSpan closes a span, marking it failed when err is set.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func stepAttributes(step domain.Step, revision int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int("genosma.step.ordinal", step.Ordinal),
		attribute.Int("genosma.plan.revision", revision),
		attribute.String("genosma.step.risk", string(step.RiskTier)),
	}
}

func resultAttributes(result domain.ExecutionResult) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int("genosma.step.exit_code", result.ExitCode),
		attribute.Bool("genosma.step.timed_out", result.TimedOut),
		attribute.Int64("genosma.step.duration_ms", result.Duration.Milliseconds()),
	}
}
