package executor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/doeshing/genosma/internal/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func lowStep(ordinal int, command string) domain.Step {
	return domain.Step{Ordinal: ordinal, Command: command, RiskTier: domain.RiskLow}
}

func request(step domain.Step) domain.ExecutionRequest {
	return domain.ExecutionRequest{RunID: "run-1", Step: step, Revision: 0}
}

func TestExecuteCapturesOutput(t *testing.T) {
	exec := NewLocalExecutor(Options{Shell: "/bin/sh", StepTimeout: 5 * time.Second})

	result, err := exec.Execute(context.Background(), request(lowStep(1, "echo out; echo err >&2")))
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, "out\n", result.Stdout)
	assert.Equal(t, "err\n", result.Stderr)
	assert.Equal(t, 1, result.StepOrdinal)
	assert.False(t, result.Failed())
}

func TestExecuteNonZeroExit(t *testing.T) {
	exec := NewLocalExecutor(Options{Shell: "/bin/sh", StepTimeout: 5 * time.Second})

	result, err := exec.Execute(context.Background(), request(lowStep(2, "echo boom >&2; exit 3")))
	require.NoError(t, err)
	assert.Equal(t, 3, result.ExitCode)
	assert.True(t, result.Failed())
	assert.Equal(t, "exit code 3: boom", result.FailureReason())
}

func TestExecuteTimeout(t *testing.T) {
	exec := NewLocalExecutor(Options{Shell: "/bin/sh", StepTimeout: 200 * time.Millisecond})

	start := time.Now()
	result, err := exec.Execute(context.Background(), request(lowStep(1, "sleep 10")))
	require.NoError(t, err)
	assert.True(t, result.TimedOut)
	assert.Equal(t, domain.TimeoutExitCode, result.ExitCode)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestExecuteTruncatesOutput(t *testing.T) {
	exec := NewLocalExecutor(Options{Shell: "/bin/sh", StepTimeout: 5 * time.Second, MaxOutputBytes: 10})

	result, err := exec.Execute(context.Background(), request(lowStep(1, "printf '%s' 0123456789abcdef")))
	require.NoError(t, err)
	assert.Equal(t, "0123456789", result.Stdout)
	assert.True(t, result.Truncated)
}

func TestExecuteRequiresToken(t *testing.T) {
	exec := NewLocalExecutor(Options{Shell: "/bin/sh", StepTimeout: 5 * time.Second})
	flagged := domain.Step{Ordinal: 2, Command: "true", RiskTier: domain.RiskHigh, RequiresConfirmation: true}

	tests := []struct {
		name    string
		req     domain.ExecutionRequest
		allowed bool
	}{
		{name: "no token", req: domain.ExecutionRequest{RunID: "r", Step: flagged, Revision: 1}},
		{
			name: "stale revision",
			req: domain.ExecutionRequest{RunID: "r", Step: flagged, Revision: 1,
				Token: &domain.ConfirmationToken{RunID: "r", Ordinal: 2, Revision: 0}},
		},
		{
			name: "other run",
			req: domain.ExecutionRequest{RunID: "r", Step: flagged, Revision: 1,
				Token: &domain.ConfirmationToken{RunID: "x", Ordinal: 2, Revision: 1}},
		},
		{
			name: "matching token",
			req: domain.ExecutionRequest{RunID: "r", Step: flagged, Revision: 1,
				Token: &domain.ConfirmationToken{RunID: "r", Ordinal: 2, Revision: 1}},
			allowed: true,
		},
		{name: "unexamined step", req: domain.ExecutionRequest{RunID: "r", Step: domain.Step{Ordinal: 1, Command: "true"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := exec.Execute(context.Background(), tt.req)
			if tt.allowed {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, domain.ErrUnauthorizedStep)
		})
	}
}

func TestExecuteCancellation(t *testing.T) {
	exec := NewLocalExecutor(Options{Shell: "/bin/sh", StepTimeout: 5 * time.Second})

	t.Run("before start", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := exec.Execute(ctx, request(lowStep(1, "echo never")))
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("during step", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(50*time.Millisecond, cancel)
		defer cancel()

		result, err := exec.Execute(ctx, request(lowStep(1, "sleep 0.3; echo done")))
		require.NoError(t, err)
		assert.Equal(t, 0, result.ExitCode)
		assert.Equal(t, "done\n", result.Stdout)
	})
}
