package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/doeshing/genosma/internal/application/audit"
	"github.com/doeshing/genosma/internal/domain"
)

type stepKey struct {
	ordinal  int
	revision int
}

// runContext owns the mutable state of one run. It is confined to the
// goroutine driving the run and discarded once the report is built.
type runContext struct {
	id       string
	request  domain.RunRequest
	state    domain.RunState
	auditor  *audit.Auditor
	started  time.Time
	snapshot domain.ContextSnapshot
	// clarification is the user's answer to an ambiguity question.
	clarification string

	intent  *domain.Intent
	plans   []domain.Plan
	results []domain.ExecutionResult

	tokens   map[stepKey]domain.ConfirmationToken
	executed map[stepKey]bool
	// retried holds commands that already used their same-command retry.
	retried map[string]bool

	optionalFailed bool
	reused         bool
	persisted      bool
}

func newRunContext(req domain.RunRequest, newAuditor func(runID string) *audit.Auditor, now time.Time) *runContext {
	id := uuid.NewString()
	return &runContext{
		id:       id,
		request:  req,
		state:    domain.StateReceived,
		auditor:  newAuditor(id),
		started:  now,
		tokens:   make(map[stepKey]domain.ConfirmationToken),
		executed: make(map[stepKey]bool),
		retried:  make(map[string]bool),
	}
}

// transition moves the run along one edge of the state machine and audits
// the move. Illegal edges are internal errors.
func (rc *runContext) transition(ctx context.Context, to domain.RunState, detail string) error {
	from := rc.state
	if !domain.CanTransition(from, to) {
		return &domain.TransitionError{From: from, To: to}
	}
	rc.state = to
	if detail == "" {
		detail = fmt.Sprintf("%s -> %s", from, to)
	}
	rc.auditor.Record(ctx, domain.AuditRecord{
		Stage:  to.Stage(),
		Event:  domain.EventTransition,
		State:  to,
		Detail: detail,
	})
	return nil
}

func (rc *runContext) currentPlan() domain.Plan {
	return rc.plans[len(rc.plans)-1]
}

func (rc *runContext) replaceCurrentPlan(plan domain.Plan) {
	rc.plans[len(rc.plans)-1] = plan
}

// revisionsUsed is how many times the run has replanned.
func (rc *runContext) revisionsUsed() int {
	if len(rc.plans) == 0 {
		return 0
	}
	return rc.currentPlan().RevisionCount
}

func (rc *runContext) issueToken(ordinal, revision int) {
	rc.tokens[stepKey{ordinal, revision}] = domain.ConfirmationToken{
		RunID:    rc.id,
		Ordinal:  ordinal,
		Revision: revision,
	}
}

func (rc *runContext) token(ordinal, revision int) *domain.ConfirmationToken {
	if tok, ok := rc.tokens[stepKey{ordinal, revision}]; ok {
		return &tok
	}
	return nil
}

// completedIn returns the successful results recorded for a revision.
func (rc *runContext) completedIn(revision int) []domain.ExecutionResult {
	var out []domain.ExecutionResult
	for _, result := range rc.results {
		if result.Revision == revision && !result.Failed() {
			out = append(out, result)
		}
	}
	return out
}

// effectivePlan is the plan that actually satisfied the request: every
// successful step across revisions, in execution order, renumbered.
func (rc *runContext) effectivePlan() domain.Plan {
	var steps []domain.Step
	for _, result := range rc.results {
		if result.Failed() || result.Revision >= len(rc.plans) {
			continue
		}
		step, ok := rc.plans[result.Revision].Step(result.StepOrdinal)
		if !ok {
			continue
		}
		steps = append(steps, step)
	}
	source := domain.SourceSynthesized
	if len(rc.plans) > 0 && rc.plans[0].Source == domain.SourceKnowledgeBase && rc.revisionsUsed() == 0 {
		source = domain.SourceKnowledgeBase
	}
	return domain.Plan{Steps: steps, Source: source}.WithoutRisk().Renumbered()
}

func (rc *runContext) report(outcome domain.Outcome, err error, finished time.Time) domain.RunReport {
	plans := make([]domain.Plan, len(rc.plans))
	for i, plan := range rc.plans {
		plans[i] = plan.Clone()
	}
	return domain.RunReport{
		RunID:       rc.id,
		RequestText: rc.request.Text,
		Outcome:     outcome,
		FinalState:  rc.state,
		Intent:      rc.intent,
		Plans:       plans,
		Results:     append([]domain.ExecutionResult(nil), rc.results...),
		Summary:     rc.auditor.Summarize(),
		Audit:       rc.auditor.Records(),
		Persisted:   rc.persisted,
		Reused:      rc.reused,
		DryRun:      rc.request.DryRun,
		StartedAt:   rc.started,
		FinishedAt:  finished,
		Err:         err,
	}
}
