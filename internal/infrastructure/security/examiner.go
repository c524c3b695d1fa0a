package security

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/doeshing/genosma/internal/domain"
	"github.com/doeshing/genosma/internal/pkg/filesystem"
	"github.com/doeshing/genosma/internal/ports"
)

// ExaminerOptions configures NewExaminer.
type ExaminerOptions struct {
	RulesFile string
	Policy    domain.RiskPolicy
	// HomeDir and WorkDir bound where destructive commands may operate.
	// Empty values fall back to the user's home and the process cwd.
	HomeDir string
	WorkDir string
}

// Examiner implements the RiskExaminer port. It classifies commands with
// regex rules plus a parse of the shell syntax and never runs anything.
type Examiner struct {
	patterns []compiledPattern
	policy   domain.RiskPolicy
	scope    pathScope
	stat     func(string) (os.FileInfo, error)
}

// NewExaminer loads rules from disk (or the embedded defaults when missing).
func NewExaminer(opts ExaminerOptions) (*Examiner, error) {
	rules, err := loadRules(opts.RulesFile)
	if err != nil {
		return nil, err
	}
	compiled, err := compile(rules)
	if err != nil {
		return nil, err
	}

	home := opts.HomeDir
	if home == "" {
		home = filesystem.UserHomeDir()
	}
	workDir := opts.WorkDir
	if workDir == "" {
		if wd, err := os.Getwd(); err == nil {
			workDir = wd
		}
	}
	workDir = filesystem.ExpandPath(workDir)
	if abs, err := filepath.Abs(workDir); err == nil {
		workDir = abs
	}

	return &Examiner{
		patterns: compiled,
		policy:   opts.Policy,
		scope: pathScope{
			home:    filepath.Clean(home),
			workDir: filepath.Clean(workDir),
			tmpDir:  filepath.Clean(os.TempDir()),
		},
		stat: os.Stat,
	}, nil
}

// WorkDir reports the directory destructive commands are allowed to touch.
func (e *Examiner) WorkDir() string { return e.scope.workDir }

// Examine implements ports.RiskExaminer. The input plan is left untouched.
func (e *Examiner) Examine(ctx context.Context, plan domain.Plan) (domain.Plan, error) {
	if e == nil {
		return domain.Plan{}, errors.New("examiner nil")
	}
	if err := plan.Validate(); err != nil {
		return domain.Plan{}, fmt.Errorf("examine: %w", err)
	}

	examined := plan.Clone()
	for i := range examined.Steps {
		if err := ctx.Err(); err != nil {
			return domain.Plan{}, err
		}
		step := &examined.Steps[i]
		assessment := e.Assess(step.Command)
		step.RiskTier = assessment.Tier
		step.RiskReasons = assessment.Reasons
		step.PolicyViolation = assessment.Violation
		step.RequiresConfirmation = e.policy.RequiresConfirmation(assessment.Tier)
	}
	return examined, nil
}

// Assess classifies a single command. Evaluation stops at the first tier
// that applies, from HIGH down to LOW.
func (e *Examiner) Assess(command string) domain.RiskAssessment {
	command = strings.TrimSpace(command)
	if command == "" {
		return violation("empty command")
	}

	facts, err := inspect(command)
	if err != nil {
		return violation(fmt.Sprintf("cannot parse command: %v", err))
	}

	if p, ok := firstMatchIn(e.patterns, domain.RiskHigh, facts.Scripts); ok {
		return fromPattern(p)
	}
	if len(facts.Opaque) > 0 {
		return violation("cannot tell what runs: " + strings.Join(facts.Opaque, ", "))
	}

	finding := e.scope.checkScope(facts, e.stat)
	if len(finding.unresolved) > 0 {
		return violation("cannot resolve target of " + strings.Join(finding.unresolved, ", "))
	}
	if len(finding.outside) > 0 {
		return domain.RiskAssessment{
			Tier:    domain.RiskHigh,
			Reasons: []string{"destructive operation outside home/work directory: " + strings.Join(finding.outside, ", ")},
		}
	}

	if p, ok := firstMatchIn(e.patterns, domain.RiskMedium, facts.Scripts); ok {
		return fromPattern(p)
	}
	if len(finding.edits) > 0 {
		return domain.RiskAssessment{
			Tier:    domain.RiskMedium,
			Reasons: []string{"modifies existing file " + strings.Join(finding.edits, ", ")},
		}
	}

	if p, ok := firstMatch(e.patterns, domain.RiskLow, command); ok {
		return fromPattern(p)
	}
	return domain.RiskAssessment{Tier: domain.RiskLow, Reasons: []string{"no risk rule matched"}}
}

func fromPattern(p compiledPattern) domain.RiskAssessment {
	return domain.RiskAssessment{
		Tier:         p.tier,
		Reasons:      []string{p.rule.Message},
		MatchedRules: []string{p.rule.Pattern},
	}
}

func violation(reason string) domain.RiskAssessment {
	return domain.RiskAssessment{
		Tier:      domain.RiskHigh,
		Reasons:   []string{reason},
		Violation: reason,
	}
}

var _ ports.RiskExaminer = (*Examiner)(nil)
