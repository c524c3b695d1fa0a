package ai

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/doeshing/genosma/internal/domain"
	"github.com/doeshing/genosma/internal/ports"
)

// HeuristicInterpreter is the offline fallback used when no reasoning
// service is configured. It understands a small set of phrasings.
type HeuristicInterpreter struct{}

// NewHeuristicInterpreter returns the offline interpreter.
func NewHeuristicInterpreter() *HeuristicInterpreter {
	return &HeuristicInterpreter{}
}

// Name implements ports.Interpreter.
func (h *HeuristicInterpreter) Name() string {
	return "heuristic"
}

var errNoRule = errors.New("no offline rule matches the request")

type draftRule struct {
	re    *regexp.Regexp
	build func(m []string) domain.StepDraft
}

const pathArg = `["']?([^\s"']+)["']?`

var draftRules = []draftRule{
	{
		re: regexp.MustCompile(`^(?:create|make)\s+(?:a\s+|an\s+)?(?:new\s+)?(?:directory|folder|dir)\s+(?:named\s+|called\s+)?` + pathArg + `$`),
		build: func(m []string) domain.StepDraft {
			return domain.StepDraft{Command: "mkdir -p " + quote(m[1]), Description: "create directory " + m[1]}
		},
	},
	{
		re: regexp.MustCompile(`^(?:create|make|touch)\s+(?:a\s+|an\s+)?(?:new\s+|empty\s+)*file\s+(?:named\s+|called\s+)?` + pathArg + `$`),
		build: func(m []string) domain.StepDraft {
			return domain.StepDraft{Command: "touch " + quote(m[1]), Description: "create file " + m[1]}
		},
	},
	{
		re: regexp.MustCompile(`^(?:delete|remove)\s+(?:all\s+)?(?:the\s+)?files\s+(?:in|from|under)\s+` + pathArg + `$`),
		build: func(m []string) domain.StepDraft {
			return domain.StepDraft{Command: "rm -rf " + strings.TrimSuffix(m[1], "/") + "/*", Description: "delete everything in " + m[1]}
		},
	},
	{
		re: regexp.MustCompile(`^(?:delete|remove)\s+(?:the\s+)?(?:file|directory|folder|dir)\s+(?:named\s+|called\s+)?` + pathArg + `$`),
		build: func(m []string) domain.StepDraft {
			return domain.StepDraft{Command: "rm -rf " + quote(m[1]), Description: "delete " + m[1]}
		},
	},
	{
		re: regexp.MustCompile(`^(?:copy)\s+` + pathArg + `\s+(?:to|into)\s+` + pathArg + `$`),
		build: func(m []string) domain.StepDraft {
			return domain.StepDraft{Command: fmt.Sprintf("cp -r %s %s", quote(m[1]), quote(m[2])), Description: "copy " + m[1]}
		},
	},
	{
		re: regexp.MustCompile(`^(?:move|rename)\s+` + pathArg + `\s+(?:to|into)\s+` + pathArg + `$`),
		build: func(m []string) domain.StepDraft {
			return domain.StepDraft{Command: fmt.Sprintf("mv %s %s", quote(m[1]), quote(m[2])), Description: "move " + m[1]}
		},
	},
	{
		re: regexp.MustCompile(`^(?:list|show)\s+(?:all\s+)?(?:the\s+)?files(?:\s+(?:in|under)\s+` + pathArg + `)?$`),
		build: func(m []string) domain.StepDraft {
			if m[1] == "" {
				return domain.StepDraft{Command: "ls -la", Description: "list files"}
			}
			return domain.StepDraft{Command: "ls -la " + quote(m[1]), Description: "list files in " + m[1]}
		},
	},
	{
		re: regexp.MustCompile(`^(?:show|check)\s+(?:the\s+)?disk\s+(?:usage|space)$`),
		build: func([]string) domain.StepDraft {
			return domain.StepDraft{Command: "df -h", Description: "show disk usage"}
		},
	},
	{
		re: regexp.MustCompile(`^install\s+(?:the\s+)?(?:package\s+)?([a-z0-9][a-z0-9.+-]*)$`),
		build: func(m []string) domain.StepDraft {
			return domain.StepDraft{Command: "apt-get install -y " + m[1], Description: "install " + m[1]}
		},
	},
}

var clauseSplitter = regexp.MustCompile(`\s*(?:;|,?\s+and\s+then\s+|,?\s+then\s+|,\s+and\s+|\s+and\s+)\s*`)

// Interpret implements ports.Interpreter with keyword classification.
func (h *HeuristicInterpreter) Interpret(_ context.Context, req ports.InterpretRequest) (domain.Intent, error) {
	text := strings.ToLower(strings.TrimSpace(req.Text))
	if text == "" {
		return domain.Intent{}, domain.NewInterpretationError(domain.InterpretationMalformed, domain.ErrEmptyRequest)
	}

	intent := domain.Intent{
		Summary:    strings.TrimSpace(req.Text),
		TaskType:   classify(text),
		Complexity: domain.ComplexitySimple,
	}
	switch clauses := len(splitClauses(text)); {
	case clauses >= 4:
		intent.Complexity = domain.ComplexityComplex
	case clauses >= 2:
		intent.Complexity = domain.ComplexityModerate
	}
	if intent.TaskType == domain.TaskInstallation {
		intent.Requirements = []string{"package manager"}
	}
	if strings.Contains(text, "delete") || strings.Contains(text, "remove") {
		intent.RiskHints = append(intent.RiskHints, "removes data")
	}
	return intent, nil
}

// DraftSteps implements ports.Interpreter. Each clause of the request must
// match a rule; revisions drop the failed command and keep the rest.
func (h *HeuristicInterpreter) DraftSteps(_ context.Context, req ports.DraftRequest) ([]domain.StepDraft, error) {
	forbidden := make(map[string]bool, len(req.Forbidden))
	for _, c := range req.Forbidden {
		forbidden[strings.TrimSpace(c)] = true
	}

	if req.Failure != nil {
		var drafts []domain.StepDraft
		for _, c := range req.Failure.Remaining {
			if c == req.Failure.Command && !req.Failure.TimedOut {
				continue
			}
			if forbidden[c] {
				continue
			}
			drafts = append(drafts, domain.StepDraft{Command: c})
		}
		if len(drafts) == 0 {
			return nil, domain.NewInterpretationError(domain.InterpretationUnavailable,
				fmt.Errorf("cannot find an alternative to %q offline", req.Failure.Command))
		}
		return drafts, nil
	}

	var drafts []domain.StepDraft
	for _, clause := range splitClauses(strings.ToLower(strings.TrimSpace(req.Text))) {
		draft, ok := matchClause(clause)
		if !ok {
			return nil, domain.NewInterpretationError(domain.InterpretationMalformed, fmt.Errorf("%w: %q", errNoRule, clause))
		}
		if forbidden[draft.Command] {
			continue
		}
		drafts = append(drafts, draft)
	}
	if len(drafts) == 0 {
		return nil, domain.NewInterpretationError(domain.InterpretationMalformed, errNoRule)
	}
	return drafts, nil
}

func matchClause(clause string) (domain.StepDraft, bool) {
	clause = strings.TrimRight(clause, ".!")
	for _, rule := range draftRules {
		if m := rule.re.FindStringSubmatch(clause); m != nil {
			return rule.build(m), true
		}
	}
	return domain.StepDraft{}, false
}

func splitClauses(text string) []string {
	var clauses []string
	for _, part := range clauseSplitter.Split(text, -1) {
		if part = strings.TrimSpace(part); part != "" {
			clauses = append(clauses, part)
		}
	}
	return clauses
}

func classify(text string) domain.TaskType {
	words := make(map[string]bool)
	for _, w := range strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	}) {
		words[w] = true
	}
	has := func(candidates ...string) bool {
		for _, w := range candidates {
			if words[w] {
				return true
			}
		}
		return false
	}
	switch {
	case has("install", "uninstall", "apt", "apt-get", "pip", "package", "packages"):
		return domain.TaskInstallation
	case has("service", "systemctl", "firewall", "user", "users", "network", "hostname", "cron", "sudoers"):
		return domain.TaskSystemConfig
	case has("git", "compile", "test", "tests", "repository", "repo", "makefile"):
		return domain.TaskDevelopment
	case has("file", "files", "directory", "folder", "dir", "delete", "remove", "copy", "move", "rename", "disk", "list"):
		return domain.TaskFilesystem
	default:
		return domain.TaskOther
	}
}

// quote single-quotes a path when it contains shell metacharacters.
func quote(s string) string {
	if strings.ContainsAny(s, " \t$`\\!&|;<>()*?[]{}") {
		return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
	}
	return s
}

var _ ports.Interpreter = (*HeuristicInterpreter)(nil)
