package domain

import (
	"errors"
	"fmt"
	"strings"
)

// PlanSource records where a plan came from.
type PlanSource string

const (
	SourceKnowledgeBase PlanSource = "KNOWLEDGE_BASE"
	SourceSynthesized   PlanSource = "SYNTHESIZED"
	SourceRevised       PlanSource = "REVISED"
)

// Step is one shell command plus the metadata the pipeline attaches to it.
type Step struct {
	Ordinal              int      `json:"ordinal"`
	Command              string   `json:"command"`
	Description          string   `json:"description,omitempty"`
	Optional             bool     `json:"optional,omitempty"`
	RiskTier             RiskTier `json:"risk_tier,omitempty"`
	RequiresConfirmation bool     `json:"requires_confirmation"`
	RiskReasons          []string `json:"risk_reasons,omitempty"`
	PolicyViolation      string   `json:"policy_violation,omitempty"`
}

// Examined reports whether the risk examiner has visited the step.
func (s Step) Examined() bool {
	return s.RiskTier != RiskUnassessed
}

// Plan is an ordered sequence of steps. Revisions produce a new Plan value;
// nothing edits a plan's steps after it has been examined.
type Plan struct {
	Steps         []Step     `json:"steps"`
	Source        PlanSource `json:"source"`
	RevisionCount int        `json:"revision_count"`
}

var (
	errEmptyPlan    = errors.New("plan has no steps")
	errEmptyCommand = errors.New("step has an empty command")
)

// Validate checks the structural invariants of a plan.
func (p Plan) Validate() error {
	if len(p.Steps) == 0 {
		return errEmptyPlan
	}
	prev := 0
	for i, step := range p.Steps {
		if strings.TrimSpace(step.Command) == "" {
			return fmt.Errorf("step %d: %w", step.Ordinal, errEmptyCommand)
		}
		if i > 0 && step.Ordinal <= prev {
			return fmt.Errorf("step ordinals must be strictly increasing: %d after %d", step.Ordinal, prev)
		}
		if step.Ordinal < 1 {
			return fmt.Errorf("step ordinal %d must be positive", step.Ordinal)
		}
		prev = step.Ordinal
	}
	if p.RevisionCount < 0 {
		return fmt.Errorf("revision count %d is negative", p.RevisionCount)
	}
	return nil
}

// Clone returns a deep copy of the plan.
func (p Plan) Clone() Plan {
	out := Plan{Source: p.Source, RevisionCount: p.RevisionCount}
	out.Steps = make([]Step, len(p.Steps))
	for i, step := range p.Steps {
		step.RiskReasons = append([]string(nil), step.RiskReasons...)
		out.Steps[i] = step
	}
	return out
}

// Renumbered returns a copy with ordinals 1..n in current order.
func (p Plan) Renumbered() Plan {
	out := p.Clone()
	for i := range out.Steps {
		out.Steps[i].Ordinal = i + 1
	}
	return out
}

// WithoutRisk returns a copy whose steps must be examined again.
func (p Plan) WithoutRisk() Plan {
	out := p.Clone()
	for i := range out.Steps {
		out.Steps[i].RiskTier = RiskUnassessed
		out.Steps[i].RequiresConfirmation = false
		out.Steps[i].RiskReasons = nil
		out.Steps[i].PolicyViolation = ""
	}
	return out
}

// FullyExamined reports whether every step carries a risk tier.
func (p Plan) FullyExamined() bool {
	for _, step := range p.Steps {
		if !step.Examined() {
			return false
		}
	}
	return true
}

// Flagged lists the steps that need explicit confirmation.
func (p Plan) Flagged() []Step {
	var flagged []Step
	for _, step := range p.Steps {
		if step.RequiresConfirmation {
			flagged = append(flagged, step)
		}
	}
	return flagged
}

// Step looks up a step by ordinal.
func (p Plan) Step(ordinal int) (Step, bool) {
	for _, step := range p.Steps {
		if step.Ordinal == ordinal {
			return step, true
		}
	}
	return Step{}, false
}

// Commands returns the plan's commands in order.
func (p Plan) Commands() []string {
	commands := make([]string, 0, len(p.Steps))
	for _, step := range p.Steps {
		commands = append(commands, step.Command)
	}
	return commands
}

// NewPlan builds a plan from drafted steps, assigning ordinals 1..n.
func NewPlan(source PlanSource, revision int, drafts []StepDraft) Plan {
	plan := Plan{Source: source, RevisionCount: revision}
	for i, draft := range drafts {
		plan.Steps = append(plan.Steps, Step{
			Ordinal:     i + 1,
			Command:     strings.TrimSpace(draft.Command),
			Description: strings.TrimSpace(draft.Description),
			Optional:    draft.Optional,
		})
	}
	return plan
}

// StepDraft is a proposed step before ordinals and risk are assigned.
type StepDraft struct {
	Command     string `json:"command"`
	Description string `json:"description,omitempty"`
	Optional    bool   `json:"optional,omitempty"`
}
