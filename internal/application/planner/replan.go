package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/doeshing/genosma/internal/domain"
	"github.com/doeshing/genosma/internal/ports"
)

var errRepeatsFailure = errors.New("revision repeats the failing command")

// revise replaces the failed-or-unexecuted remainder of the prior plan.
// Completed steps are never part of the revision.
func (s *Service) revise(ctx context.Context, req ports.PlanRequest) (ports.PlanResult, error) {
	prior := req.Prior
	revision := prior.Plan.RevisionCount + 1
	remainder := prior.Remainder()
	if len(remainder) == 0 {
		return ports.PlanResult{}, &domain.PlanningError{
			Reason: fmt.Sprintf("step %d is not part of revision %d", prior.Failed.StepOrdinal, prior.Plan.RevisionCount),
		}
	}
	failedCommand := strings.TrimSpace(prior.Failed.Command)

	if prior.Failed.TimedOut && s.Config.RetrySameOnTimeout() && !prior.RetriedCommands[failedCommand] {
		plan := domain.Plan{Steps: remainder, Source: domain.SourceRevised, RevisionCount: revision}
		plan = plan.WithoutRisk().Renumbered()
		s.debug("retrying timed-out command", map[string]interface{}{"command": failedCommand, "revision": revision})
		return ports.PlanResult{Plan: plan, SameCommandRetry: true}, nil
	}

	remaining := make([]string, 0, len(remainder))
	for _, step := range remainder {
		remaining = append(remaining, step.Command)
	}
	completed := make([]string, 0, len(prior.Completed))
	for _, result := range prior.Completed {
		completed = append(completed, result.Command)
	}

	draftReq := ports.DraftRequest{
		Text:    req.DraftText(),
		Intent:  req.Intent,
		Context: req.Context,
		Failure: &ports.DraftFailure{
			Command:   failedCommand,
			Error:     failureText(prior.Failed),
			TimedOut:  prior.Failed.TimedOut,
			Completed: completed,
			Remaining: remaining,
		},
	}

	drafts, err := s.draft(ctx, draftReq)
	if err != nil {
		return ports.PlanResult{}, &domain.PlanningError{Reason: "revise plan", Err: err}
	}
	if repeats(drafts, failedCommand) {
		s.debug("revision repeated the failing command, drafting again", map[string]interface{}{"command": failedCommand})
		draftReq.Forbidden = []string{failedCommand}
		drafts, err = s.draft(ctx, draftReq)
		if err != nil {
			return ports.PlanResult{}, &domain.PlanningError{Reason: "revise plan", Err: err}
		}
		if repeats(drafts, failedCommand) {
			return ports.PlanResult{}, &domain.PlanningError{Reason: failedCommand, Err: errRepeatsFailure}
		}
	}

	plan := domain.NewPlan(domain.SourceRevised, revision, drafts)
	if err := plan.Validate(); err != nil {
		return ports.PlanResult{}, &domain.PlanningError{Reason: "revised plan is invalid", Err: err}
	}
	return ports.PlanResult{Plan: plan}, nil
}

func repeats(drafts []domain.StepDraft, command string) bool {
	for _, d := range drafts {
		if strings.TrimSpace(d.Command) == command {
			return true
		}
	}
	return false
}

// failureText is what the interpreter sees about the failure: the reason
// plus the tail of stderr, cut on a rune boundary.
func failureText(result domain.ExecutionResult) string {
	reason := result.FailureReason()
	stderr := strings.TrimSpace(result.Stderr)
	if stderr == "" {
		return reason
	}
	const maxTail = 500
	if len(stderr) > maxTail {
		tail := stderr[len(stderr)-maxTail:]
		for len(tail) > 0 && !utf8.RuneStart(tail[0]) {
			tail = tail[1:]
		}
		stderr = tail
	}
	return reason + "\n" + stderr
}
