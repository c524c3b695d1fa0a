package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/doeshing/genosma/internal/domain"
	"github.com/doeshing/genosma/internal/ports"
)

type scriptedInterpreter struct {
	mu             sync.Mutex
	intent         domain.Intent
	interpretErrs  []error
	drafts         [][]domain.StepDraft
	interpretCalls []ports.InterpretRequest
	draftCalls     []ports.DraftRequest
}

func (s *scriptedInterpreter) Name() string { return "scripted" }

func (s *scriptedInterpreter) Interpret(_ context.Context, req ports.InterpretRequest) (domain.Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interpretCalls = append(s.interpretCalls, req)
	if len(s.interpretErrs) > 0 {
		err := s.interpretErrs[0]
		s.interpretErrs = s.interpretErrs[1:]
		if err != nil {
			return domain.Intent{}, err
		}
	}
	intent := s.intent
	if intent.TaskType == "" {
		intent = domain.Intent{TaskType: domain.TaskOther, Complexity: domain.ComplexitySimple}
	}
	return intent, nil
}

func (s *scriptedInterpreter) DraftSteps(_ context.Context, req ports.DraftRequest) ([]domain.StepDraft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draftCalls = append(s.draftCalls, req)
	if len(s.drafts) == 0 {
		return nil, domain.NewInterpretationError(domain.InterpretationUnavailable, errors.New("script exhausted"))
	}
	next := s.drafts[0]
	s.drafts = s.drafts[1:]
	return next, nil
}

func steps(commands ...string) []domain.StepDraft {
	out := make([]domain.StepDraft, 0, len(commands))
	for _, c := range commands {
		out = append(out, domain.StepDraft{Command: c})
	}
	return out
}

// prefixExaminer marks commands starting with "sudo" HIGH and everything
// else LOW.
type prefixExaminer struct{}

func (prefixExaminer) Assess(command string) domain.RiskAssessment {
	if strings.HasPrefix(command, "sudo") {
		return domain.RiskAssessment{Tier: domain.RiskHigh, Reasons: []string{"elevated privileges"}}
	}
	return domain.RiskAssessment{Tier: domain.RiskLow, Reasons: []string{"harmless"}}
}

func (e prefixExaminer) Examine(_ context.Context, plan domain.Plan) (domain.Plan, error) {
	out := plan.Clone()
	for i := range out.Steps {
		a := e.Assess(out.Steps[i].Command)
		out.Steps[i].RiskTier = a.Tier
		out.Steps[i].RiskReasons = a.Reasons
		out.Steps[i].RequiresConfirmation = domain.RiskPolicy{}.RequiresConfirmation(a.Tier)
	}
	return out, nil
}

type recordingExecutor struct {
	mu        sync.Mutex
	script    map[string][]domain.ExecutionResult
	requests  []domain.ExecutionRequest
	onExecute func(domain.ExecutionRequest)
}

func (e *recordingExecutor) Execute(ctx context.Context, req domain.ExecutionRequest) (domain.ExecutionResult, error) {
	if !req.Authorized() {
		return domain.ExecutionResult{}, fmt.Errorf("step %d: %w", req.Step.Ordinal, domain.ErrUnauthorizedStep)
	}
	if err := ctx.Err(); err != nil {
		return domain.ExecutionResult{}, err
	}

	e.mu.Lock()
	e.requests = append(e.requests, req)
	var result domain.ExecutionResult
	if queue := e.script[req.Step.Command]; len(queue) > 0 {
		result = queue[0]
		e.script[req.Step.Command] = queue[1:]
	}
	hook := e.onExecute
	e.mu.Unlock()

	if hook != nil {
		hook(req)
	}
	result.StepOrdinal = req.Step.Ordinal
	result.Revision = req.Revision
	result.Command = req.Step.Command
	result.StartedAt = time.Now()
	if result.Duration == 0 {
		result.Duration = time.Millisecond
	}
	return result, nil
}

func (e *recordingExecutor) commands() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.requests))
	for _, req := range e.requests {
		out = append(out, req.Step.Command)
	}
	return out
}

func fail(code int) domain.ExecutionResult {
	return domain.ExecutionResult{ExitCode: code, Stderr: "failed\n"}
}

func timeout() domain.ExecutionResult {
	return domain.ExecutionResult{ExitCode: domain.TimeoutExitCode, TimedOut: true, Duration: time.Second}
}

type memoryKnowledge struct {
	mu      sync.Mutex
	entries []domain.KnowledgeEntry
}

func (m *memoryKnowledge) FindSimilar(_ context.Context, text string, _ float64) (domain.KnowledgeMatch, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].RequestText == text {
			return domain.KnowledgeMatch{Entry: m.entries[i], Score: 1}, true, nil
		}
	}
	return domain.KnowledgeMatch{}, false, nil
}

func (m *memoryKnowledge) Append(_ context.Context, entry domain.KnowledgeEntry) error {
	if err := entry.Plan.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memoryKnowledge) all() []domain.KnowledgeEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.KnowledgeEntry(nil), m.entries...)
}

type stubClarifier struct {
	answer    string
	questions []string
}

func (c *stubClarifier) Clarify(_ context.Context, question string) (string, error) {
	c.questions = append(c.questions, question)
	return c.answer, nil
}

func transitions(report domain.RunReport) []domain.RunState {
	var out []domain.RunState
	for _, record := range report.Audit {
		if record.Event == domain.EventTransition {
			out = append(out, record.State)
		}
	}
	return out
}
