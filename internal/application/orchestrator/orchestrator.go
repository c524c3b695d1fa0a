// Package orchestrator drives a request through the task pipeline:
// comprehension, planning, risk examination, confirmation, execution,
// replanning and audit. It only talks to ports; every adapter is injected.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/doeshing/genosma/internal/application/audit"
	"github.com/doeshing/genosma/internal/domain"
	"github.com/doeshing/genosma/internal/ports"
)

// Dependencies are the ports an Orchestrator drives. Collector, Clarifier,
// Knowledge, AuditSink, Logger and Tracer are optional; a nil Tracer means
// the global otel provider.
type Dependencies struct {
	Collector   ports.ContextCollector
	Interpreter ports.Interpreter
	Clarifier   ports.Clarifier
	Planner     ports.Planner
	Examiner    ports.RiskExaminer
	Executor    ports.StepExecutor
	Gate        ports.ConfirmationGate
	Knowledge   ports.KnowledgeStore
	AuditSink   ports.AuditSink
	Logger      ports.Logger
	Tracer      trace.TracerProvider
}

// Orchestrator runs requests. It holds no per-run state, so one value may
// serve concurrent runs.
type Orchestrator struct {
	cfg    domain.Config
	deps   Dependencies
	tracer trace.Tracer
	now    func() time.Time
}

// New validates the dependencies and returns an orchestrator bound to cfg.
func New(cfg domain.Config, deps Dependencies) (*Orchestrator, error) {
	var missing []string
	if deps.Interpreter == nil {
		missing = append(missing, "interpreter")
	}
	if deps.Planner == nil {
		missing = append(missing, "planner")
	}
	if deps.Examiner == nil {
		missing = append(missing, "examiner")
	}
	if deps.Executor == nil {
		missing = append(missing, "executor")
	}
	if deps.Gate == nil {
		missing = append(missing, "confirmation gate")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("orchestrator dependencies not satisfied: %s", strings.Join(missing, ", "))
	}
	provider := deps.Tracer
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	return &Orchestrator{cfg: cfg, deps: deps, tracer: provider.Tracer(tracerName), now: time.Now}, nil
}

// Config returns the configuration the orchestrator was built with.
func (o *Orchestrator) Config() domain.Config {
	return o.cfg
}

// Run drives one request to a terminal state. The report is always
// populated; the returned error is non-nil only for internal faults such as
// an illegal state transition. Ordinary failures and aborts are described
// by report.Outcome and report.Err.
func (o *Orchestrator) Run(ctx context.Context, req domain.RunRequest) (domain.RunReport, error) {
	rc := newRunContext(req, o.newAuditor, o.now())
	ctx, span := o.startSpan(ctx, "genosma.run",
		attribute.String("genosma.run_id", rc.id),
		attribute.Bool("genosma.dry_run", req.DryRun),
	)

	outcome, err := o.drive(ctx, rc)
	report := rc.report(outcome, err, o.now())

	span.SetAttributes(attribute.String("genosma.outcome", string(outcome)))
	var denied *domain.ConfirmationDeniedError
	if errors.As(err, &denied) {
		endSpan(span, nil)
	} else {
		endSpan(span, err)
	}

	o.info("run finished", map[string]interface{}{
		"run_id":   report.RunID,
		"outcome":  string(report.Outcome),
		"state":    string(report.FinalState),
		"steps":    len(report.Results),
		"duration": report.FinishedAt.Sub(report.StartedAt).String(),
	})

	if isInternal(err) {
		return report, err
	}
	return report, nil
}

func (o *Orchestrator) newAuditor(runID string) *audit.Auditor {
	return audit.NewAuditor(runID, o.deps.AuditSink, o.deps.Logger)
}

func (o *Orchestrator) drive(ctx context.Context, rc *runContext) (domain.Outcome, error) {
	if err := rc.transition(ctx, domain.StateComprehending, ""); err != nil {
		return o.abort(ctx, rc, domain.StageComprehension, err)
	}
	rc.snapshot = o.collect(ctx)

	intent, err := o.comprehend(ctx, rc)
	if err != nil {
		return o.abort(ctx, rc, domain.StageComprehension, err)
	}
	rc.intent = &intent

	var prior *domain.PriorFailure
	for {
		if err := rc.transition(ctx, domain.StatePlanning, ""); err != nil {
			return o.abort(ctx, rc, domain.StagePlanning, err)
		}
		plan, err := o.plan(ctx, rc, prior)
		if err != nil {
			return o.abort(ctx, rc, stageFor(prior), err)
		}

		if err := rc.transition(ctx, domain.StateExamining, ""); err != nil {
			return o.abort(ctx, rc, domain.StageExamination, err)
		}
		plan, err = o.examine(ctx, rc, plan)
		if err != nil {
			return o.abort(ctx, rc, domain.StageExamination, err)
		}

		if rc.request.DryRun {
			rc.auditor.Note(ctx, domain.StageExamination, "dry run: nothing executed")
			if err := rc.transition(ctx, domain.StateAborted, "dry run finished"); err != nil {
				return domain.OutcomeAborted, err
			}
			return domain.OutcomeAborted, nil
		}

		if flagged := plan.Flagged(); len(flagged) > 0 {
			if err := rc.transition(ctx, domain.StateAwaitingConfirmation, fmt.Sprintf("%d step(s) need confirmation", len(flagged))); err != nil {
				return o.abort(ctx, rc, domain.StageExamination, err)
			}
			if err := o.confirm(ctx, rc, plan, flagged); err != nil {
				return o.abort(ctx, rc, domain.StageExamination, err)
			}
		}

		if err := rc.transition(ctx, domain.StateExecuting, ""); err != nil {
			return o.abort(ctx, rc, domain.StageExecution, err)
		}
		failure, err := o.execute(ctx, rc, plan)
		if err != nil {
			return o.abort(ctx, rc, domain.StageExecution, err)
		}
		if failure == nil {
			break
		}

		used := rc.revisionsUsed()
		if used >= o.cfg.GetReplanBudget() {
			budgetErr := fmt.Errorf("%w after %d revision(s): %w", domain.ErrBudgetExhausted, used, failure)
			rc.auditor.Record(ctx, domain.AuditRecord{
				Stage:       domain.StageReplan,
				Event:       domain.EventError,
				StepOrdinal: failure.Result.StepOrdinal,
				Revision:    failure.Result.Revision,
				Detail:      "replan budget exhausted",
				Error:       budgetErr.Error(),
			})
			if err := rc.transition(ctx, domain.StateAuditing, ""); err != nil {
				return o.abort(ctx, rc, domain.StageExecution, err)
			}
			return o.finish(ctx, rc, domain.OutcomeFailure, budgetErr)
		}

		if err := rc.transition(ctx, domain.StateReplanning, fmt.Sprintf("step %d failed, revision %d of %d", failure.Result.StepOrdinal, used+1, o.cfg.GetReplanBudget())); err != nil {
			return o.abort(ctx, rc, domain.StageReplan, err)
		}
		prior = &domain.PriorFailure{
			Plan:            plan,
			Failed:          failure.Result,
			Completed:       rc.completedIn(plan.RevisionCount),
			RetriedCommands: rc.retried,
		}
	}

	if err := rc.transition(ctx, domain.StateAuditing, ""); err != nil {
		return o.abort(ctx, rc, domain.StageExecution, err)
	}
	outcome := domain.OutcomeSuccess
	if rc.optionalFailed {
		outcome = domain.OutcomePartial
	}
	return o.finish(ctx, rc, outcome, nil)
}

func (o *Orchestrator) collect(ctx context.Context) domain.ContextSnapshot {
	if o.deps.Collector == nil {
		return domain.ContextSnapshot{}
	}
	snapshot, err := o.deps.Collector.Collect(ctx, o.cfg)
	if err != nil {
		o.warn("context collection failed", map[string]interface{}{"error": err.Error()})
	}
	return snapshot
}

// comprehend asks for an intent, retrying once (per config) on failure. An
// ambiguous request is clarified with the user at most once, and that
// extra round does not count as a retry.
func (o *Orchestrator) comprehend(ctx context.Context, rc *runContext) (domain.Intent, error) {
	ctx, span := o.startSpan(ctx, "genosma.comprehend")
	attempts := 1 + o.cfg.GetInterpreterRetries()
	clarified := false
	var lastErr error

	for attempt := 0; attempt < attempts; {
		if err := ctx.Err(); err != nil {
			endSpan(span, err)
			return domain.Intent{}, err
		}
		callCtx, cancel := context.WithTimeout(ctx, o.cfg.GetInterpreterTimeout())
		intent, err := o.deps.Interpreter.Interpret(callCtx, ports.InterpretRequest{
			Text:          rc.request.Text,
			Clarification: rc.clarification,
			Context:       rc.snapshot,
		})
		cancel()
		if err == nil {
			if verr := intent.Validate(); verr != nil {
				err = domain.NewInterpretationError(domain.InterpretationMalformed, verr)
			}
		}
		if err == nil {
			rc.auditor.Record(ctx, domain.AuditRecord{
				Stage:  domain.StageComprehension,
				Event:  domain.EventNote,
				Detail: fmt.Sprintf("intent %s, %s", intent.TaskType, intent.Complexity),
				Fields: map[string]interface{}{
					"summary":         intent.Summary,
					"missing_context": intent.MissingContext,
				},
			})
			endSpan(span, nil)
			return intent, nil
		}
		lastErr = err

		var ierr *domain.InterpretationError
		isInterp := errors.As(err, &ierr)
		if isInterp && ierr.Kind == domain.InterpretationAmbiguous && !clarified && o.deps.Clarifier != nil {
			answer, cerr := o.deps.Clarifier.Clarify(ctx, ierr.Question)
			if cerr != nil {
				lastErr = fmt.Errorf("clarify %q: %w", ierr.Question, cerr)
				break
			}
			clarified = true
			rc.clarification = strings.TrimSpace(answer)
			rc.auditor.Note(ctx, domain.StageComprehension, "clarification: "+ierr.Question)
			continue
		}

		rc.auditor.Record(ctx, domain.AuditRecord{
			Stage:  domain.StageComprehension,
			Event:  domain.EventError,
			Detail: fmt.Sprintf("comprehension attempt %d failed", attempt+1),
			Error:  err.Error(),
		})
		if isInterp && !ierr.Retryable() {
			break
		}
		attempt++
	}
	endSpan(span, lastErr)
	return domain.Intent{}, lastErr
}

func (o *Orchestrator) plan(ctx context.Context, rc *runContext, prior *domain.PriorFailure) (domain.Plan, error) {
	expected := 0
	if prior != nil {
		expected = prior.Plan.RevisionCount + 1
	}
	ctx, span := o.startSpan(ctx, "genosma.plan", attribute.Int("genosma.plan.revision", expected))

	result, err := o.deps.Planner.Plan(ctx, ports.PlanRequest{
		RequestText:   rc.request.Text,
		Clarification: rc.clarification,
		Intent:        *rc.intent,
		Context:       rc.snapshot,
		Prior:         prior,
	})
	if err != nil {
		endSpan(span, err)
		return domain.Plan{}, err
	}
	stage := stageFor(prior)

	if result.Match != nil {
		rc.reused = true
		rc.auditor.Record(ctx, domain.AuditRecord{
			Stage:  stage,
			Event:  domain.EventKnowledgeHit,
			Detail: fmt.Sprintf("reusing plan of %q", result.Match.Entry.RequestText),
			Fields: map[string]interface{}{"score": result.Match.Score},
		})
	}
	if result.Searched {
		if result.SearchErr != nil {
			rc.auditor.Record(ctx, domain.AuditRecord{
				Stage:  stage,
				Event:  domain.EventSearchSkipped,
				Detail: "planning without search snippets",
				Error:  result.SearchErr.Error(),
			})
		} else {
			rc.auditor.Note(ctx, stage, fmt.Sprintf("context search returned %d snippet(s)", result.Snippets))
		}
	}
	if result.SameCommandRetry && prior != nil {
		rc.retried[strings.TrimSpace(prior.Failed.Command)] = true
		rc.auditor.Note(ctx, stage, "retrying timed-out command once: "+prior.Failed.Command)
	}

	plan := result.Plan
	if err := plan.Validate(); err != nil {
		err = &domain.PlanningError{Reason: "planner returned an invalid plan", Err: err}
		endSpan(span, err)
		return domain.Plan{}, err
	}
	if plan.RevisionCount != expected {
		err := &domain.PlanningError{Reason: fmt.Sprintf("planner returned revision %d, want %d", plan.RevisionCount, expected)}
		endSpan(span, err)
		return domain.Plan{}, err
	}

	rc.plans = append(rc.plans, plan)
	rc.auditor.Record(ctx, domain.AuditRecord{
		Stage:    stage,
		Event:    domain.EventNote,
		Revision: plan.RevisionCount,
		Detail:   fmt.Sprintf("%s plan with %d step(s)", plan.Source, len(plan.Steps)),
		Fields:   map[string]interface{}{"commands": plan.Commands()},
	})
	endSpan(span, nil)
	return plan, nil
}

func (o *Orchestrator) examine(ctx context.Context, rc *runContext, plan domain.Plan) (domain.Plan, error) {
	ctx, span := o.startSpan(ctx, "genosma.examine", attribute.Int("genosma.plan.revision", plan.RevisionCount))

	examined, err := o.deps.Examiner.Examine(ctx, plan)
	if err == nil && (len(examined.Steps) != len(plan.Steps) || !examined.FullyExamined()) {
		err = errors.New("risk examiner left steps unassessed")
	}
	if err != nil {
		endSpan(span, err)
		return domain.Plan{}, err
	}
	rc.replaceCurrentPlan(examined)

	for _, step := range examined.Steps {
		record := domain.AuditRecord{
			Stage:       domain.StageExamination,
			Event:       domain.EventNote,
			StepOrdinal: step.Ordinal,
			Revision:    examined.RevisionCount,
			Detail:      fmt.Sprintf("%s: %s", step.RiskTier, strings.Join(step.RiskReasons, "; ")),
			Fields: map[string]interface{}{
				"command":               step.Command,
				"requires_confirmation": step.RequiresConfirmation,
			},
		}
		if step.PolicyViolation != "" {
			record.Event = domain.EventError
			record.Error = (&domain.RiskPolicyViolation{Ordinal: step.Ordinal, Command: step.Command, Reason: step.PolicyViolation}).Error()
		}
		rc.auditor.Record(ctx, record)
	}
	endSpan(span, nil)
	return examined, nil
}

// confirm blocks on the gate and issues one token per approved step. Any
// rejection denies the whole plan.
func (o *Orchestrator) confirm(ctx context.Context, rc *runContext, plan domain.Plan, flagged []domain.Step) error {
	ctx, span := o.startSpan(ctx, "genosma.confirm", attribute.Int("genosma.flagged", len(flagged)))

	gateCtx := ctx
	if timeout := o.cfg.GetConfirmationTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		gateCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	decision, err := o.deps.Gate.Confirm(gateCtx, domain.ConfirmationRequest{
		RunID:       rc.id,
		RequestText: rc.request.Text,
		Plan:        plan.Clone(),
		Flagged:     flagged,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = &domain.ConfirmationDeniedError{Ordinals: ordinals(flagged), Reason: "confirmation timed out"}
		}
		endSpan(span, err)
		return err
	}
	if rejected := decision.Rejected(flagged); len(rejected) > 0 {
		endSpan(span, nil)
		return &domain.ConfirmationDeniedError{Ordinals: rejected, Reason: decision.Reason}
	}

	for _, step := range flagged {
		rc.issueToken(step.Ordinal, plan.RevisionCount)
	}
	rc.auditor.Note(ctx, domain.StageExamination, fmt.Sprintf("approved %d flagged step(s)", len(flagged)))
	endSpan(span, nil)
	return nil
}

// execute runs the plan's steps in ordinal order. It returns the first
// mandatory failure; optional failures only mark the run partial.
// Cancellation is checked between steps.
func (o *Orchestrator) execute(ctx context.Context, rc *runContext, plan domain.Plan) (*domain.ExecutionFailure, error) {
	revision := plan.RevisionCount
	for _, step := range plan.Steps {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("cancelled before step %d: %w", step.Ordinal, err)
		}
		key := stepKey{step.Ordinal, revision}
		if rc.executed[key] {
			continue
		}
		rc.executed[key] = true

		rc.auditor.Record(ctx, domain.AuditRecord{
			Stage:       domain.StageExecution,
			Event:       domain.EventStepStarted,
			StepOrdinal: step.Ordinal,
			Revision:    revision,
			Detail:      step.Command,
		})
		stepCtx, span := o.startSpan(ctx, "genosma.step", stepAttributes(step, revision)...)
		result, err := o.deps.Executor.Execute(stepCtx, domain.ExecutionRequest{
			RunID:    rc.id,
			Step:     step,
			Revision: revision,
			Token:    rc.token(step.Ordinal, revision),
		})
		if err != nil {
			endSpan(span, err)
			rc.auditor.Record(ctx, domain.AuditRecord{
				Stage:       domain.StageExecution,
				Event:       domain.EventError,
				StepOrdinal: step.Ordinal,
				Revision:    revision,
				Detail:      "step not executed",
				Error:       err.Error(),
			})
			return nil, err
		}
		span.SetAttributes(resultAttributes(result)...)
		rc.results = append(rc.results, result)

		record := domain.AuditRecord{
			Stage:       domain.StageExecution,
			Event:       domain.EventStepFinished,
			StepOrdinal: step.Ordinal,
			Revision:    revision,
			Detail:      fmt.Sprintf("exit %d in %s", result.ExitCode, result.Duration.Round(time.Millisecond)),
			Result:      &result,
		}
		if !result.Failed() {
			rc.auditor.Record(ctx, record)
			endSpan(span, nil)
			continue
		}

		failure := &domain.ExecutionFailure{Result: result}
		record.Error = failure.Error()
		rc.auditor.Record(ctx, record)
		endSpan(span, failure)
		if step.Optional {
			rc.optionalFailed = true
			rc.auditor.Note(ctx, domain.StageExecution, fmt.Sprintf("optional step %d failed, continuing", step.Ordinal))
			continue
		}
		return failure, nil
	}
	return nil, nil
}

// finish runs in AUDITING: it remembers the plan when allowed and moves
// the run to DONE.
func (o *Orchestrator) finish(ctx context.Context, rc *runContext, outcome domain.Outcome, runErr error) (domain.Outcome, error) {
	o.persist(context.WithoutCancel(ctx), rc, outcome)

	summary := rc.auditor.Summarize()
	rc.auditor.Record(ctx, domain.AuditRecord{
		Stage:  domain.StageExecution,
		Event:  domain.EventNote,
		Detail: fmt.Sprintf("outcome %s: %d step(s), %d succeeded, %d failed", outcome, summary.Total, summary.Succeeded, summary.Failed),
	})
	if err := rc.transition(ctx, domain.StateDone, ""); err != nil {
		return outcome, err
	}
	return outcome, runErr
}

func (o *Orchestrator) persist(ctx context.Context, rc *runContext, outcome domain.Outcome) {
	if o.deps.Knowledge == nil {
		return
	}
	accepted := false
	if outcome == domain.OutcomePartial {
		ok, err := o.deps.Gate.AcceptPartial(ctx, rc.report(outcome, nil, o.now()))
		if err != nil {
			rc.auditor.Record(ctx, domain.AuditRecord{Stage: domain.StageExecution, Event: domain.EventError, Detail: "partial acceptance failed", Error: err.Error()})
			return
		}
		accepted = ok
	}
	if !outcome.Persistable(accepted) {
		if outcome == domain.OutcomePartial {
			rc.auditor.Note(ctx, domain.StageExecution, "partial run not remembered")
		}
		return
	}
	if rc.reused && rc.revisionsUsed() == 0 && !rc.optionalFailed {
		rc.auditor.Note(ctx, domain.StageExecution, "stored plan reused unchanged")
		return
	}

	plan := rc.effectivePlan()
	entry := domain.KnowledgeEntry{
		RequestText: rc.request.Text,
		Plan:        plan,
		Outcome:     outcome,
		Timestamp:   o.now(),
	}
	if err := o.deps.Knowledge.Append(ctx, entry); err != nil {
		rc.auditor.Record(ctx, domain.AuditRecord{Stage: domain.StageExecution, Event: domain.EventError, Detail: "knowledge append failed", Error: err.Error()})
		return
	}
	rc.persisted = true
	rc.auditor.Note(ctx, domain.StageExecution, fmt.Sprintf("remembered %d step(s) as %s", len(plan.Steps), outcome))
}

// abort records err and ends the run in ABORTED. A denied confirmation is
// an outcome, not an error, and is audited as a note.
func (o *Orchestrator) abort(ctx context.Context, rc *runContext, stage domain.Stage, err error) (domain.Outcome, error) {
	record := domain.AuditRecord{Stage: stage, Event: domain.EventError, Detail: "run aborted", Error: err.Error()}
	var denied *domain.ConfirmationDeniedError
	if errors.As(err, &denied) {
		record.Event = domain.EventNote
		record.Detail = err.Error()
		record.Error = ""
	}
	var failure *domain.ExecutionFailure
	if errors.As(err, &failure) {
		record.StepOrdinal = failure.Result.StepOrdinal
		record.Revision = failure.Result.Revision
	}
	rc.auditor.Record(ctx, record)

	if !rc.state.IsTerminal() {
		if terr := rc.transition(ctx, domain.StateAborted, ""); terr != nil {
			return domain.OutcomeAborted, errors.Join(err, terr)
		}
	}
	return domain.OutcomeAborted, err
}

func stageFor(prior *domain.PriorFailure) domain.Stage {
	if prior != nil {
		return domain.StageReplan
	}
	return domain.StagePlanning
}

func ordinals(steps []domain.Step) []int {
	out := make([]int, 0, len(steps))
	for _, step := range steps {
		out = append(out, step.Ordinal)
	}
	return out
}

func isInternal(err error) bool {
	var terr *domain.TransitionError
	return errors.As(err, &terr) || errors.Is(err, domain.ErrUnauthorizedStep)
}

func (o *Orchestrator) info(msg string, fields map[string]interface{}) {
	if o.deps.Logger != nil {
		o.deps.Logger.Info(msg, fields)
	}
}

func (o *Orchestrator) warn(msg string, fields map[string]interface{}) {
	if o.deps.Logger != nil {
		o.deps.Logger.Warn(msg, fields)
	}
}
