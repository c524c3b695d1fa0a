package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/doeshing/genosma/internal/domain"
)

func recordSpans(t *testing.T, f *fixture) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	f.tracer = provider
	return recorder
}

func spanCounts(spans []sdktrace.ReadOnlySpan) map[string]int {
	counts := map[string]int{}
	for _, span := range spans {
		counts[span.Name()]++
	}
	return counts
}

func intAttr(span sdktrace.ReadOnlySpan, key string) (int64, bool) {
	for _, kv := range span.Attributes() {
		if kv.Key == attribute.Key(key) {
			return kv.Value.AsInt64(), true
		}
	}
	return 0, false
}

func TestRunRecordsStageAndStepSpans(t *testing.T) {
	f := newFixture(steps("mkdir a", "bad", "ls a"), steps("good", "ls a"))
	f.exec.script["bad"] = []domain.ExecutionResult{fail(1)}
	recorder := recordSpans(t, f)

	report := f.run(t, "set up a")
	require.Equal(t, domain.OutcomeSuccess, report.Outcome)

	spans := recorder.Ended()
	assert.Equal(t, map[string]int{
		"genosma.run":        1,
		"genosma.comprehend": 1,
		"genosma.plan":       2,
		"genosma.examine":    2,
		"genosma.step":       4,
	}, spanCounts(spans))

	var root sdktrace.ReadOnlySpan
	for _, span := range spans {
		if span.Name() == "genosma.run" {
			root = span
		}
	}
	require.NotNil(t, root)
	assert.Equal(t, codes.Unset, root.Status().Code)

	var failed []sdktrace.ReadOnlySpan
	for _, span := range spans {
		assert.Equal(t, root.SpanContext().TraceID(), span.SpanContext().TraceID(), span.Name())
		if span.Name() != "genosma.step" {
			continue
		}
		assert.Equal(t, root.SpanContext().SpanID(), span.Parent().SpanID())
		if span.Status().Code == codes.Error {
			failed = append(failed, span)
		}
	}
	require.Len(t, failed, 1)
	ordinal, ok := intAttr(failed[0], "genosma.step.ordinal")
	require.True(t, ok)
	assert.EqualValues(t, 2, ordinal)
	exitCode, ok := intAttr(failed[0], "genosma.step.exit_code")
	require.True(t, ok)
	assert.EqualValues(t, 1, exitCode)
	assert.NotEmpty(t, failed[0].Events(), "the failure is recorded on the span")
}

func TestRunSpanFailsWhenBudgetExhausted(t *testing.T) {
	zero := 0
	f := newFixture(steps("broken"))
	f.cfg.Planning.ReplanBudget = &zero
	f.exec.script["broken"] = []domain.ExecutionResult{fail(1)}
	recorder := recordSpans(t, f)

	report := f.run(t, "do it")
	require.Equal(t, domain.OutcomeFailure, report.Outcome)

	for _, span := range recorder.Ended() {
		switch span.Name() {
		case "genosma.run", "genosma.step":
			assert.Equal(t, codes.Error, span.Status().Code, span.Name())
		default:
			assert.Equal(t, codes.Unset, span.Status().Code, span.Name())
		}
	}
}
