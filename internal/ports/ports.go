// Package ports defines the interfaces (ports) for the hexagonal architecture.
//
// Every stage of the task pipeline is a port here: the orchestrator holds
// only these interfaces and never a concrete adapter, so each stage can be
// replaced by a test double.
//
// Key architectural concepts:
//   - Ports: Interfaces defined here (e.g., Interpreter, StepExecutor)
//   - Adapters: Concrete implementations in the infrastructure layer
//   - Dependency inversion: Application depends on abstractions, not implementations
package ports

import (
	"context"

	"github.com/doeshing/genosma/internal/domain"
)

// ConfigProvider loads the latest configuration from persistent storage.
// Implementations typically read from ~/.genosma/config.yaml.
type ConfigProvider interface {
	Load(context.Context) (domain.Config, error)
}

// ContextCollector gathers host details (cwd, shell, tools, git) that help
// the interpreter draft commands that fit the machine.
type ContextCollector interface {
	Collect(context.Context, domain.Config) (domain.ContextSnapshot, error)
}

// Interpreter is the external reasoning service. Interpret turns request
// text into an Intent; DraftSteps proposes commands for an intent.
//
// Failures are *domain.InterpretationError values with a kind of malformed,
// unavailable or ambiguous.
type Interpreter interface {
	Name() string
	Interpret(ctx context.Context, req InterpretRequest) (domain.Intent, error)
	DraftSteps(ctx context.Context, req DraftRequest) ([]domain.StepDraft, error)
}

// InterpretRequest carries a request and optional clarification.
type InterpretRequest struct {
	Text          string
	Clarification string
	Context       domain.ContextSnapshot
}

// DraftRequest asks the interpreter for a step list. Failure is set when the
// draft replaces the remainder of a failed plan.
type DraftRequest struct {
	Text     string
	Intent   domain.Intent
	Context  domain.ContextSnapshot
	Snippets []domain.SearchSnippet
	Failure  *DraftFailure
	// Forbidden commands must not appear in the draft.
	Forbidden []string
}

// DraftFailure describes the failed step for replanning prompts.
type DraftFailure struct {
	Command   string
	Error     string
	TimedOut  bool
	Completed []string
	Remaining []string
}

// Clarifier asks the user a follow-up question when the interpreter reports
// an ambiguous request.
type Clarifier interface {
	Clarify(ctx context.Context, question string) (string, error)
}

// ContextSearch looks up reference snippets on the web. Failures wrap
// domain.ErrSearchUnavailable and never end a run.
type ContextSearch interface {
	Search(ctx context.Context, query string) ([]domain.SearchSnippet, error)
}

// KnowledgeStore is the append-only record of past successful runs.
// FindSimilar returns the best match at or above threshold; later entries
// win ties. Implementations must allow concurrent readers with one writer.
type KnowledgeStore interface {
	FindSimilar(ctx context.Context, requestText string, threshold float64) (domain.KnowledgeMatch, bool, error)
	Append(ctx context.Context, entry domain.KnowledgeEntry) error
}

// KnowledgeRepository adds the maintenance views used by the CLI.
type KnowledgeRepository interface {
	KnowledgeStore
	List(ctx context.Context, limit int) ([]domain.KnowledgeEntry, error)
	Path() string
	Close() error
}

// Planner produces a plan for an intent, or a revised plan for the
// remainder of a failed one.
type Planner interface {
	Plan(ctx context.Context, req PlanRequest) (PlanResult, error)
}

// PlanRequest is the planner input. Prior is nil for the first plan.
type PlanRequest struct {
	// RequestText is the raw request and the knowledge key.
	RequestText   string
	Clarification string
	Intent        domain.Intent
	Context       domain.ContextSnapshot
	Prior         *domain.PriorFailure
}

// DraftText is the request as the interpreter drafts from it, with the
// clarification answer appended when there is one.
func (r PlanRequest) DraftText() string {
	if r.Clarification == "" {
		return r.RequestText
	}
	return r.RequestText + "\n" + r.Clarification
}

// PlanResult is the planner output plus what it learned along the way so
// the orchestrator can audit it.
type PlanResult struct {
	Plan      domain.Plan
	Match     *domain.KnowledgeMatch
	Snippets  int
	Searched  bool
	SearchErr error
	// SameCommandRetry marks a revision that reissues a timed-out command.
	SameCommandRetry bool
}

// RiskExaminer classifies each step. It must not execute anything and
// returns a new plan value with tiers and confirmation flags set.
type RiskExaminer interface {
	Examine(ctx context.Context, plan domain.Plan) (domain.Plan, error)
	Assess(command string) domain.RiskAssessment
}

// StepExecutor runs a single approved step on the host.
type StepExecutor interface {
	Execute(ctx context.Context, req domain.ExecutionRequest) (domain.ExecutionResult, error)
}

// ConfirmationGate is the human-in-the-loop channel. Confirm blocks until
// the user answers; AcceptPartial asks whether a PARTIAL outcome should be
// remembered.
type ConfirmationGate interface {
	Confirm(ctx context.Context, req domain.ConfirmationRequest) (domain.ConfirmationDecision, error)
	AcceptPartial(ctx context.Context, report domain.RunReport) (bool, error)
}

// AuditSink persists audit records beyond the lifetime of a run.
type AuditSink interface {
	Write(ctx context.Context, record domain.AuditRecord) error
}

// AuditLog adds read access for the CLI.
type AuditLog interface {
	AuditSink
	Records(ctx context.Context, runID string, limit int) ([]domain.AuditRecord, error)
	Path() string
}

// CacheRepository stores interpretations keyed by request hash.
type CacheRepository interface {
	Get(key string) (domain.CacheEntry, bool, error)
	Set(entry domain.CacheEntry) error
	Clear() error
	Dir() string
}

// Logger provides structured logging abstraction for the application layer.
// Implementations can route to different backends (stdout, files, external services).
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, err error, fields map[string]interface{})
}
