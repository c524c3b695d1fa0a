// Package planner turns an intent into a plan. It reuses a remembered plan
// when a similar request succeeded before, and otherwise asks the
// interpreter to draft one, optionally grounded with search snippets.
package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/doeshing/genosma/internal/domain"
	"github.com/doeshing/genosma/internal/ports"
)

// Service implements ports.Planner.
type Service struct {
	Config      domain.Config
	Knowledge   ports.KnowledgeStore
	Interpreter ports.Interpreter
	Search      ports.ContextSearch
	Logger      ports.Logger
}

// Plan implements ports.Planner.
func (s *Service) Plan(ctx context.Context, req ports.PlanRequest) (ports.PlanResult, error) {
	if s.Interpreter == nil {
		return ports.PlanResult{}, errors.New("planner.Service dependencies not satisfied")
	}
	if req.Prior != nil {
		return s.revise(ctx, req)
	}

	if result, ok := s.fromKnowledge(ctx, req.RequestText); ok {
		return result, nil
	}

	var result ports.PlanResult
	var snippets []domain.SearchSnippet
	if s.Config.ShouldSearch(req.Intent) {
		result.Searched = true
		snippets, result.SearchErr = s.search(ctx, searchQuery(req))
		result.Snippets = len(snippets)
	}

	drafts, err := s.draft(ctx, ports.DraftRequest{
		Text:     req.DraftText(),
		Intent:   req.Intent,
		Context:  req.Context,
		Snippets: snippets,
	})
	if err != nil {
		return result, &domain.PlanningError{Reason: "draft steps", Err: err}
	}

	plan := domain.NewPlan(domain.SourceSynthesized, 0, drafts)
	if err := plan.Validate(); err != nil {
		return result, &domain.PlanningError{Reason: "drafted plan is invalid", Err: err}
	}
	result.Plan = plan
	return result, nil
}

// fromKnowledge returns a copy of the best remembered plan. Lookup failures
// only cost the reuse, never the run.
func (s *Service) fromKnowledge(ctx context.Context, requestText string) (ports.PlanResult, bool) {
	if s.Knowledge == nil {
		return ports.PlanResult{}, false
	}
	match, ok, err := s.Knowledge.FindSimilar(ctx, requestText, s.Config.GetSimilarityThreshold())
	if err != nil {
		s.warn("knowledge lookup failed", map[string]interface{}{"error": err.Error()})
		return ports.PlanResult{}, false
	}
	if !ok || match.Entry.Outcome != domain.OutcomeSuccess {
		return ports.PlanResult{}, false
	}

	plan := match.Entry.Plan.WithoutRisk().Renumbered()
	plan.Source = domain.SourceKnowledgeBase
	plan.RevisionCount = 0
	if err := plan.Validate(); err != nil {
		s.warn("stored plan is unusable", map[string]interface{}{"error": err.Error()})
		return ports.PlanResult{}, false
	}
	s.debug("reusing stored plan", map[string]interface{}{
		"score":   match.Score,
		"request": match.Entry.RequestText,
	})
	return ports.PlanResult{Plan: plan, Match: &match}, true
}

func (s *Service) search(ctx context.Context, query string) ([]domain.SearchSnippet, error) {
	if s.Search == nil {
		return nil, fmt.Errorf("%w: no search adapter", domain.ErrSearchUnavailable)
	}
	searchCtx, cancel := context.WithTimeout(ctx, s.Config.GetSearchTimeout())
	defer cancel()

	snippets, err := s.Search.Search(searchCtx, query)
	if err != nil {
		if !errors.Is(err, domain.ErrSearchUnavailable) {
			err = fmt.Errorf("%w: %v", domain.ErrSearchUnavailable, err)
		}
		s.warn("context search failed", map[string]interface{}{"error": err.Error()})
		return nil, err
	}
	return snippets, nil
}

// draft calls the interpreter under the configured timeout.
func (s *Service) draft(ctx context.Context, req ports.DraftRequest) ([]domain.StepDraft, error) {
	draftCtx, cancel := context.WithTimeout(ctx, s.Config.GetInterpreterTimeout())
	defer cancel()

	drafts, err := s.Interpreter.DraftSteps(draftCtx, req)
	if err != nil {
		return nil, err
	}
	if len(drafts) == 0 {
		return nil, domain.NewInterpretationError(domain.InterpretationMalformed, errors.New("no steps drafted"))
	}
	return drafts, nil
}

func searchQuery(req ports.PlanRequest) string {
	parts := []string{strings.TrimSpace(req.RequestText)}
	if req.Context.Distro != "" {
		parts = append(parts, req.Context.Distro)
	} else if req.Context.OS != "" {
		parts = append(parts, req.Context.OS)
	}
	return strings.Join(parts, " ")
}

func (s *Service) debug(msg string, fields map[string]interface{}) {
	if s.Logger != nil {
		s.Logger.Debug(msg, fields)
	}
}

func (s *Service) warn(msg string, fields map[string]interface{}) {
	if s.Logger != nil {
		s.Logger.Warn(msg, fields)
	}
}

var _ ports.Planner = (*Service)(nil)
