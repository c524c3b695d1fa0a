package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/genosma/internal/domain"
)

func sampleReport() domain.RunReport {
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	plan := domain.NewPlan(domain.SourceSynthesized, 0, []domain.StepDraft{{Command: "mkdir -p reports", Description: "create directory reports"}})
	plan.Steps[0].RiskTier = domain.RiskLow
	return domain.RunReport{
		RunID:       "run-42",
		RequestText: "create a directory named reports",
		Outcome:     domain.OutcomeSuccess,
		FinalState:  domain.StateDone,
		Intent:      &domain.Intent{Summary: "create a directory named reports", TaskType: domain.TaskFilesystem, Complexity: domain.ComplexitySimple},
		Plans:       []domain.Plan{plan},
		Results: []domain.ExecutionResult{{
			StepOrdinal: 1, Command: "mkdir -p reports", Stdout: "made\n", Duration: 5 * time.Millisecond,
		}},
		Summary:    domain.RunSummary{Total: 1, Succeeded: 1},
		Persisted:  true,
		StartedAt:  started,
		FinishedAt: started.Add(40 * time.Millisecond),
	}
}

func TestRendererReport(t *testing.T) {
	var out bytes.Buffer
	NewRenderer(&out).Report(sampleReport())
	text := out.String()
	assert.Contains(t, text, "Intent:")
	assert.Contains(t, text, "mkdir -p reports")
	assert.Contains(t, text, "    made")
	assert.Contains(t, text, "SUCCESS")
	assert.Contains(t, text, "1/1 steps succeeded in 40ms")
	assert.Contains(t, text, "Plan remembered for similar requests")
	assert.Contains(t, text, "Run run-42")
}

func TestRendererReportFailure(t *testing.T) {
	report := sampleReport()
	report.Outcome = domain.OutcomeFailure
	report.Persisted = false
	report.Results[0].ExitCode = 1
	report.Results[0].Stderr = "mkdir: permission denied\n"
	report.Err = errors.New("replan budget exhausted")

	var out bytes.Buffer
	NewRenderer(&out).Report(report)
	text := out.String()
	assert.Contains(t, text, "failed")
	assert.Contains(t, text, "exit code 1: mkdir: permission denied")
	assert.Contains(t, text, "replan budget exhausted")
	assert.NotContains(t, text, "Plan remembered")
}

func TestRendererDryRunShowsPlan(t *testing.T) {
	report := sampleReport()
	report.DryRun = true
	report.Results = nil
	report.Summary = domain.RunSummary{}
	report.Outcome = domain.OutcomeAborted
	report.Persisted = false

	var out bytes.Buffer
	NewRenderer(&out).Report(report)
	text := out.String()
	assert.Contains(t, text, "Plan (synthesized)")
	assert.Contains(t, text, "LOW")
	assert.Contains(t, text, "create directory reports")
	assert.Contains(t, text, "DRY RUN")
	assert.Contains(t, text, "nothing was executed")
}

func TestRendererBatchSummary(t *testing.T) {
	ok := sampleReport()
	aborted := sampleReport()
	aborted.RequestText = "delete all files in /etc"
	aborted.Outcome = domain.OutcomeAborted
	aborted.Err = errors.New("confirmation denied")

	var out bytes.Buffer
	NewRenderer(&out).BatchSummary([]domain.RunReport{ok, aborted})
	text := out.String()
	assert.Contains(t, text, "delete all files in /etc")
	assert.Contains(t, text, "(confirmation denied)")
	assert.Contains(t, text, "1 succeeded, 0 partial, 0 failed, 1 aborted")
}

func TestProgressSink(t *testing.T) {
	var out bytes.Buffer
	sink := NewRenderer(&out).ProgressSink()
	ctx := context.Background()

	require.NoError(t, sink.Write(ctx, domain.AuditRecord{Event: domain.EventStepStarted, StepOrdinal: 3, Detail: "make build"}))
	require.NoError(t, sink.Write(ctx, domain.AuditRecord{Event: domain.EventStepFinished, StepOrdinal: 3, Error: "exit code 2"}))
	require.NoError(t, sink.Write(ctx, domain.AuditRecord{Event: domain.EventTransition, State: domain.StateReplanning}))
	require.NoError(t, sink.Write(ctx, domain.AuditRecord{Event: domain.EventTransition, State: domain.StateExecuting}))

	text := out.String()
	assert.Contains(t, text, "[3]")
	assert.Contains(t, text, "make build")
	assert.Contains(t, text, "exit code 2")
	assert.Contains(t, text, "revising the rest of the plan")
	assert.NotContains(t, text, "EXECUTING")
}
