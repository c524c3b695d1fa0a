package cli

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/genosma/internal/domain"
)

func TestReadBatchRequests(t *testing.T) {
	texts, err := readBatchRequests(strings.NewReader("# nightly\nlist files\n\n  show disk usage  \n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"list files", "show disk usage"}, texts)
}

func TestWorstExitCode(t *testing.T) {
	reports := []domain.RunReport{
		{Outcome: domain.OutcomeSuccess},
		{Outcome: domain.OutcomeFailure},
		{Outcome: domain.OutcomeAborted},
	}
	assert.Equal(t, 2, worstExitCode(reports))
	assert.Equal(t, 0, worstExitCode(reports[:1]))
	assert.Equal(t, 0, worstExitCode([]domain.RunReport{{Outcome: domain.OutcomeAborted, DryRun: true}}))
}

func TestRunOptionsApplyOnlyChangedFlags(t *testing.T) {
	opts := &runOptions{}
	flags := pflag.NewFlagSet("run", pflag.ContinueOnError)
	opts.bind(flags)

	cfg := domain.Config{}
	cfg.Risk.ConfirmMedium = true
	require.NoError(t, flags.Parse([]string{"--replan-budget", "0", "--step-timeout", "90s"}))
	require.NoError(t, opts.apply(flags, &cfg))

	assert.Equal(t, 0, cfg.GetReplanBudget())
	assert.Equal(t, 90*time.Second, cfg.GetStepTimeout())
	assert.True(t, cfg.Risk.ConfirmMedium, "unset flags leave config alone")
}

func TestRunOptionsRejectInvalidValues(t *testing.T) {
	opts := &runOptions{}
	flags := pflag.NewFlagSet("run", pflag.ContinueOnError)
	opts.bind(flags)
	require.NoError(t, flags.Parse([]string{"--replan-budget=-1"}))
	assert.Error(t, opts.apply(flags, &domain.Config{}))
}

func TestExitError(t *testing.T) {
	cause := errors.New("denied")
	err := error(&ExitError{Code: 2, Err: cause})
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "denied", err.Error())
	assert.Equal(t, "exit status 1", (&ExitError{Code: 1}).Error())
}

func TestParseGlobalFlags(t *testing.T) {
	opts := Options{ConfigPath: "/from/env.yaml"}
	ParseGlobalFlags([]string{"run", "--yes", "--config=/tmp/alt.yaml", "--debug", "make a dir"}, &opts)
	assert.True(t, opts.Verbose)
	assert.Equal(t, "/tmp/alt.yaml", opts.ConfigPath)

	opts = Options{ConfigPath: "/from/env.yaml"}
	ParseGlobalFlags([]string{"kb", "list"}, &opts)
	assert.False(t, opts.Verbose)
	assert.Equal(t, "/from/env.yaml", opts.ConfigPath)
}

func TestBatchProgressCountsTerminalTransitions(t *testing.T) {
	spinner := NewSpinner(&lockedBuffer{})
	sink := batchProgress(spinner, 3)
	for _, state := range []domain.RunState{domain.StatePlanning, domain.StateDone, domain.StateExecuting, domain.StateAborted} {
		require.NoError(t, sink.Write(context.Background(), domain.AuditRecord{Event: domain.EventTransition, State: state}))
	}
	assert.Equal(t, "running 3 requests, 2 finished", spinner.label)
}
