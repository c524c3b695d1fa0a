// Package executor runs approved plan steps on the host shell.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/doeshing/genosma/internal/domain"
	"github.com/doeshing/genosma/internal/ports"
)

// waitDelay bounds how long Wait blocks on pipes held open by orphaned
// grandchildren after the process group was killed.
const waitDelay = 2 * time.Second

// Options configures a LocalExecutor.
type Options struct {
	Shell          string
	StepTimeout    time.Duration
	MaxOutputBytes int64
	WorkDir        string
	Logger         ports.Logger
}

// LocalExecutor implements ports.StepExecutor with `shell -c`.
type LocalExecutor struct {
	shell     string
	timeout   time.Duration
	maxOutput int64
	workDir   string
	logger    ports.Logger
	now       func() time.Time
}

// NewLocalExecutor builds a new executor, shell defaults to $SHELL then /bin/sh.
func NewLocalExecutor(opts Options) *LocalExecutor {
	shell := opts.Shell
	if shell == "" {
		shell = os.Getenv("SHELL")
	}
	if shell == "" {
		shell = "/bin/sh"
	}
	timeout := opts.StepTimeout
	if timeout <= 0 {
		timeout = domain.DefaultStepTimeout
	}
	maxOutput := opts.MaxOutputBytes
	if maxOutput <= 0 {
		maxOutput = domain.DefaultMaxOutputBytes
	}
	return &LocalExecutor{
		shell:     shell,
		timeout:   timeout,
		maxOutput: maxOutput,
		workDir:   opts.WorkDir,
		logger:    opts.Logger,
		now:       time.Now,
	}
}

// WorkDir reports the directory steps run in; empty means the process cwd.
func (e *LocalExecutor) WorkDir() string { return e.workDir }

// Execute implements ports.StepExecutor.
//
// A step that needs confirmation is refused unless the request carries a
// token for this run, ordinal and revision. Once started, a step runs to
// completion or to its timeout even if ctx is cancelled; cancellation is
// only honoured before the step begins.
func (e *LocalExecutor) Execute(ctx context.Context, req domain.ExecutionRequest) (domain.ExecutionResult, error) {
	if !req.Authorized() {
		return domain.ExecutionResult{}, fmt.Errorf("step %d: %w", req.Step.Ordinal, domain.ErrUnauthorizedStep)
	}
	if err := ctx.Err(); err != nil {
		return domain.ExecutionResult{}, err
	}

	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, e.shell, "-c", req.Step.Command)
	cmd.Dir = e.workDir
	setupProcessGroup(cmd)
	cmd.Cancel = func() error { return killProcessGroup(cmd) }
	cmd.WaitDelay = waitDelay

	var stdoutBuf, stderrBuf bytes.Buffer
	stdout := &limitedWriter{w: &stdoutBuf, max: e.maxOutput}
	stderr := &limitedWriter{w: &stderrBuf, max: e.maxOutput}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	result := domain.ExecutionResult{
		StepOrdinal: req.Step.Ordinal,
		Revision:    req.Revision,
		Command:     req.Step.Command,
		StartedAt:   e.now(),
	}
	e.debug("step started", req)

	err := cmd.Run()

	result.Duration = time.Since(result.StartedAt)
	result.Stdout = stdoutBuf.String()
	result.Stderr = stderrBuf.String()
	result.Truncated = stdout.truncated || stderr.truncated

	var exitErr *exec.ExitError
	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		result.TimedOut = true
		result.ExitCode = domain.TimeoutExitCode
	case err == nil:
		result.ExitCode = 0
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	default:
		// the shell could not be started at all
		result.ExitCode = 127
		if result.Stderr == "" {
			result.Stderr = err.Error()
		}
	}

	if e.logger != nil {
		e.logger.Debug("step finished", map[string]interface{}{
			"run_id":    req.RunID,
			"ordinal":   req.Step.Ordinal,
			"revision":  req.Revision,
			"exit_code": result.ExitCode,
			"timed_out": result.TimedOut,
			"duration":  result.Duration.String(),
		})
	}
	return result, nil
}

func (e *LocalExecutor) debug(msg string, req domain.ExecutionRequest) {
	if e.logger == nil {
		return
	}
	e.logger.Debug(msg, map[string]interface{}{
		"run_id":   req.RunID,
		"ordinal":  req.Step.Ordinal,
		"revision": req.Revision,
		"command":  req.Step.Command,
	})
}

var _ ports.StepExecutor = (*LocalExecutor)(nil)
