package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/genosma/internal/domain"
)

func TestAuditorRecordsAndForwards(t *testing.T) {
	var forwarded []domain.AuditRecord
	sink := SinkFunc(func(_ context.Context, r domain.AuditRecord) error {
		forwarded = append(forwarded, r)
		return nil
	})
	a := NewAuditor("run-1", sink, nil)

	a.Note(context.Background(), domain.StagePlanning, "drafted 2 steps")
	rec := a.Record(context.Background(), domain.AuditRecord{Stage: domain.StageExecution, Event: domain.EventStepStarted, StepOrdinal: 1})

	assert.Equal(t, "run-1", rec.RunID)
	assert.False(t, rec.Timestamp.IsZero())
	records := a.Records()
	require.Len(t, records, 2)
	assert.Equal(t, domain.EventNote, records[0].Event)
	assert.Equal(t, records, forwarded)

	records[0].Detail = "changed"
	assert.Equal(t, "drafted 2 steps", a.Records()[0].Detail, "Records returns a copy")
}

func TestAuditorSinkErrorIsSwallowed(t *testing.T) {
	sink := SinkFunc(func(context.Context, domain.AuditRecord) error { return errors.New("disk full") })
	a := NewAuditor("run-1", sink, nil)
	a.Note(context.Background(), domain.StageComprehension, "x")
	assert.Len(t, a.Records(), 1)
}

func TestSummarize(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	a := NewAuditor("run-1", nil, nil)
	tick := start
	a.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}

	finish := func(ordinal, revision, exit int, timedOut bool, d time.Duration) {
		a.Record(context.Background(), domain.AuditRecord{
			Stage: domain.StageExecution,
			Event: domain.EventStepFinished,
			Result: &domain.ExecutionResult{
				StepOrdinal: ordinal, Revision: revision, Command: "cmd",
				ExitCode: exit, TimedOut: timedOut, Duration: d,
			},
		})
	}

	a.Note(context.Background(), domain.StageComprehension, "start")
	finish(1, 0, 0, false, 2*time.Second)
	finish(2, 0, 1, false, time.Second)
	finish(1, 1, domain.TimeoutExitCode, true, 3*time.Second)
	finish(1, 2, 0, false, time.Second)

	summary := a.Summarize()
	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 2, summary.Failed)
	assert.Equal(t, 1, summary.TimedOut)
	assert.Equal(t, 7*time.Second, summary.Busy)
	assert.Equal(t, 4*time.Second, summary.Elapsed)
	require.Len(t, summary.Steps, 4)
	assert.True(t, summary.Steps[2].TimedOut)
	assert.Equal(t, 1, summary.Steps[2].Revision)
}

func TestTee(t *testing.T) {
	var count int
	ok := SinkFunc(func(context.Context, domain.AuditRecord) error { count++; return nil })
	bad := SinkFunc(func(context.Context, domain.AuditRecord) error { count++; return errors.New("nope") })

	err := Tee{bad, nil, ok}.Write(context.Background(), domain.AuditRecord{})
	assert.EqualError(t, err, "nope")
	assert.Equal(t, 2, count)
}

func TestSummarizeEmpty(t *testing.T) {
	assert.Equal(t, domain.RunSummary{}, Summarize(nil))
}
