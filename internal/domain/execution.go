package domain

import (
	"fmt"
	"time"
)

// TimeoutExitCode is the synthetic exit code recorded for a step that hit
// the wall-clock ceiling, matching coreutils timeout(1).
const TimeoutExitCode = 124

// ExecutionResult is what the executor observed for one step.
type ExecutionResult struct {
	StepOrdinal int           `json:"step_ordinal"`
	Revision    int           `json:"revision"`
	Command     string        `json:"command"`
	ExitCode    int           `json:"exit_code"`
	Stdout      string        `json:"stdout"`
	Stderr      string        `json:"stderr"`
	Duration    time.Duration `json:"duration"`
	TimedOut    bool          `json:"timed_out"`
	Truncated   bool          `json:"truncated,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
}

// Failed reports a nonzero exit or a timeout.
func (r ExecutionResult) Failed() bool {
	return r.TimedOut || r.ExitCode != 0
}

// FailureReason renders a short human description of the failure.
func (r ExecutionResult) FailureReason() string {
	switch {
	case r.TimedOut:
		return fmt.Sprintf("timed out after %s", r.Duration.Round(time.Millisecond))
	case r.ExitCode != 0:
		if r.Stderr != "" {
			return fmt.Sprintf("exit code %d: %s", r.ExitCode, lastLine(r.Stderr))
		}
		return fmt.Sprintf("exit code %d", r.ExitCode)
	default:
		return ""
	}
}

// ConfirmationToken authorizes execution of exactly one step of one plan
// revision. Tokens are issued by the orchestrator after the user approves.
type ConfirmationToken struct {
	RunID    string `json:"run_id"`
	Ordinal  int    `json:"ordinal"`
	Revision int    `json:"revision"`
}

// Matches reports whether the token authorizes the given step.
func (t ConfirmationToken) Matches(runID string, ordinal, revision int) bool {
	return t.RunID == runID && t.Ordinal == ordinal && t.Revision == revision
}

// ExecutionRequest is handed to the executor for each step.
type ExecutionRequest struct {
	RunID    string
	Step     Step
	Revision int
	Token    *ConfirmationToken
}

// Authorized applies the confirmation rule to the request.
func (r ExecutionRequest) Authorized() bool {
	if !r.Step.Examined() {
		return false
	}
	if !r.Step.RequiresConfirmation {
		return true
	}
	return r.Token != nil && r.Token.Matches(r.RunID, r.Step.Ordinal, r.Revision)
}

func lastLine(s string) string {
	end := len(s)
	for end > 0 && (s[end-1] == '\n' || s[end-1] == '\r' || s[end-1] == ' ') {
		end--
	}
	start := end
	for start > 0 && s[start-1] != '\n' {
		start--
	}
	return s[start:end]
}
