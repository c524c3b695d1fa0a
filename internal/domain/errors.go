package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors shared by the pipeline. Typed errors below unwrap to them
// so callers can use errors.Is without knowing the concrete type.
var (
	ErrSearchUnavailable  = errors.New("context search unavailable")
	ErrExecutionTimeout   = errors.New("step timed out")
	ErrConfirmationDenied = errors.New("confirmation denied")
	ErrUnauthorizedStep   = errors.New("step requires a matching confirmation token")
	ErrBudgetExhausted    = errors.New("replan budget exhausted")
	ErrEmptyRequest       = errors.New("request text is empty")
)

// InterpretationKind distinguishes the ways the interpreter can fail.
type InterpretationKind string

const (
	InterpretationMalformed   InterpretationKind = "malformed"
	InterpretationUnavailable InterpretationKind = "unavailable"
	InterpretationAmbiguous   InterpretationKind = "ambiguous"
)

// InterpretationError is returned when a request cannot be turned into an
// Intent or a step list.
type InterpretationError struct {
	Kind InterpretationKind
	// Question is the clarification the interpreter wants answered when
	// Kind is ambiguous.
	Question string
	Err      error
}

func (e *InterpretationError) Error() string {
	msg := fmt.Sprintf("interpretation %s", e.Kind)
	if e.Question != "" {
		msg += ": " + e.Question
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InterpretationError) Unwrap() error { return e.Err }

// Retryable reports whether asking again might succeed. An empty request
// stays empty no matter how often it is retried.
func (e *InterpretationError) Retryable() bool {
	return !errors.Is(e.Err, ErrEmptyRequest)
}

// NewInterpretationError is a small constructor used by adapters.
func NewInterpretationError(kind InterpretationKind, err error) *InterpretationError {
	return &InterpretationError{Kind: kind, Err: err}
}

// PlanningError means no viable plan could be produced.
type PlanningError struct {
	Reason string
	Err    error
}

func (e *PlanningError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("planning failed: %s: %v", e.Reason, e.Err)
	}
	return "planning failed: " + e.Reason
}

func (e *PlanningError) Unwrap() error { return e.Err }

// RiskPolicyViolation records a command the examiner could not classify.
// The step is still forced to HIGH; this error only travels to the audit log.
type RiskPolicyViolation struct {
	Ordinal int
	Command string
	Reason  string
}

func (e *RiskPolicyViolation) Error() string {
	return fmt.Sprintf("step %d could not be classified (%s): %s", e.Ordinal, e.Reason, e.Command)
}

// ExecutionFailure wraps a failed step result.
type ExecutionFailure struct {
	Result ExecutionResult
}

func (e *ExecutionFailure) Error() string {
	return fmt.Sprintf("step %d failed: %s", e.Result.StepOrdinal, e.Result.FailureReason())
}

// Unwrap exposes ErrExecutionTimeout for timed-out steps.
func (e *ExecutionFailure) Unwrap() error {
	if e.Result.TimedOut {
		return ErrExecutionTimeout
	}
	return nil
}

// ConfirmationDeniedError records which flagged steps were rejected.
type ConfirmationDeniedError struct {
	Ordinals []int
	Reason   string
}

func (e *ConfirmationDeniedError) Error() string {
	parts := make([]string, 0, len(e.Ordinals))
	for _, ordinal := range e.Ordinals {
		parts = append(parts, fmt.Sprintf("%d", ordinal))
	}
	msg := "confirmation denied"
	if len(parts) > 0 {
		msg += " for step(s) " + strings.Join(parts, ", ")
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *ConfirmationDeniedError) Unwrap() error { return ErrConfirmationDenied }
