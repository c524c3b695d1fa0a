package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/genosma/internal/domain"
)

func TestJSONLLogRoundTrip(t *testing.T) {
	log := NewJSONLLog(filepath.Join(t.TempDir(), "nested", "audit.jsonl"))
	ctx := context.Background()

	records, err := log.Records(ctx, "", 0)
	require.NoError(t, err)
	assert.Empty(t, records)

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, runID := range []string{"a", "b", "a", "a"} {
		require.NoError(t, log.Write(ctx, domain.AuditRecord{
			RunID:     runID,
			Stage:     domain.StageExecution,
			Event:     domain.EventStepFinished,
			Timestamp: ts.Add(time.Duration(i) * time.Second),
			Detail:    "step",
			Result:    &domain.ExecutionResult{StepOrdinal: i + 1, ExitCode: i},
		}))
	}

	all, err := log.Records(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	runA, err := log.Records(ctx, "a", 2)
	require.NoError(t, err)
	require.Len(t, runA, 2)
	assert.Equal(t, 3, runA[0].Result.StepOrdinal)
	assert.Equal(t, 4, runA[1].Result.StepOrdinal)
	assert.True(t, runA[1].Timestamp.Equal(ts.Add(3*time.Second)))
}
