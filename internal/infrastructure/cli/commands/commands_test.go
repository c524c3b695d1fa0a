package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/genosma/internal/domain"
	configinfra "github.com/doeshing/genosma/internal/infrastructure/config"
)

func entry(text string, commands ...string) domain.KnowledgeEntry {
	drafts := make([]domain.StepDraft, len(commands))
	for i, c := range commands {
		drafts[i] = domain.StepDraft{Command: c}
	}
	return domain.KnowledgeEntry{
		RequestText: text,
		Plan:        domain.NewPlan(domain.SourceSynthesized, 0, drafts),
		Outcome:     domain.OutcomeSuccess,
		Timestamp:   time.Now().Add(-time.Hour),
	}
}

func TestRankEntriesOrdersBySimilarityThenFuzzy(t *testing.T) {
	entries := []domain.KnowledgeEntry{
		entry("install the nginx web server", "apt-get install -y nginx"),
		entry("create a directory named reports", "mkdir -p reports"),
		entry("create a directory named report", "mkdir -p report"),
	}

	hits := rankEntries("create a directory named reports", entries, 0.6)
	require.Len(t, hits, 2)
	assert.Equal(t, "create a directory named reports", hits[0].entry.RequestText)
	assert.Equal(t, 1.0, hits[0].score)
	assert.False(t, hits[0].fuzzy)
	assert.Equal(t, "create a directory named report", hits[1].entry.RequestText)

	hits = rankEntries("ngnx", entries, 0.9)
	require.Len(t, hits, 1)
	assert.True(t, hits[0].fuzzy)
	assert.Equal(t, "install the nginx web server", hits[0].entry.RequestText)

	assert.Empty(t, rankEntries("zzzz", entries, 0.9))
}

func TestWriteEntries(t *testing.T) {
	var buf bytes.Buffer
	writeEntries(&buf, []domain.KnowledgeEntry{entry("list files", "ls -la")}, []float64{0.75}, true)
	out := buf.String()
	assert.Contains(t, out, "SCORE")
	assert.Contains(t, out, "0.75")
	assert.Contains(t, out, "1 hour ago")
	assert.Contains(t, out, "1. ls -la")
}

func TestCalculateDirectorySize(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), []byte("12345"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.json"), []byte("123"), 0o600))

	files, size, err := calculateDirectorySize(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, files)
	assert.EqualValues(t, 8, size)

	files, size, err = calculateDirectorySize(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.Zero(t, files)
	assert.Zero(t, size)
}

func TestWriteAuditRecordsAndSummary(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	result := domain.ExecutionResult{StepOrdinal: 1, Command: "false", ExitCode: 1, Duration: 20 * time.Millisecond}
	records := []domain.AuditRecord{
		{RunID: "0123456789abcdef", Stage: domain.StagePlanning, Event: domain.EventTransition, State: domain.StatePlanning, Timestamp: at},
		{RunID: "0123456789abcdef", Stage: domain.StageExecution, Event: domain.EventStepFinished, StepOrdinal: 1,
			Timestamp: at.Add(time.Second), Error: "exit code 1", Result: &result},
	}

	var buf bytes.Buffer
	writeAuditRecords(&buf, records)
	out := buf.String()
	assert.Contains(t, out, "2026-01-02 03:04:05 01234567 PLANNING")
	assert.Contains(t, out, "-> PLANNING")
	assert.Contains(t, out, "step 1/r0")
	assert.Contains(t, out, "(error: exit code 1)")

	buf.Reset()
	writeAuditSummary(&buf, domain.RunSummary{
		Total: 1, Failed: 1, Elapsed: time.Second, Busy: 20 * time.Millisecond,
		Steps: []domain.StepTiming{{Ordinal: 1, Command: "false", Duration: 20 * time.Millisecond, Failed: true}},
	})
	assert.Contains(t, buf.String(), "1 steps: 0 succeeded, 1 failed (0 timed out)")
	assert.Contains(t, buf.String(), "FAILED")
}

func TestUnifiedConfigDiff(t *testing.T) {
	base := configinfra.Default()
	same, err := unifiedConfigDiff(base, base)
	require.NoError(t, err)
	assert.Empty(t, same)

	changed := configinfra.Default()
	changed.Risk.ConfirmMedium = true
	diff, err := unifiedConfigDiff(base, changed)
	require.NoError(t, err)
	assert.Contains(t, diff, "--- defaults")
	assert.Contains(t, diff, "+++ config.yaml")
	assert.Contains(t, diff, "+    confirm_medium: true")
}

func TestWriteHealthReportCounts(t *testing.T) {
	var out bytes.Buffer
	writeHealthReport(&out, domain.HealthReport{Checks: []domain.HealthCheck{
		{Name: "Config file", Status: domain.HealthOK, Details: "format version 1"},
		{Name: "Context search", Status: domain.HealthWarn, Details: "disabled"},
		{Name: "Shell", Status: domain.HealthError, Details: "/bin/zsh not found"},
	}})
	assert.Contains(t, out.String(), "Context search")
	assert.Contains(t, out.String(), "/bin/zsh not found")
	assert.Contains(t, out.String(), "1 ok, 1 warnings, 1 errors")
}
