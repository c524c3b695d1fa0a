package domain

import (
	"fmt"
	"strings"
)

// TaskType classifies what a request is trying to accomplish.
type TaskType string

const (
	TaskFilesystem   TaskType = "FILESYSTEM"
	TaskInstallation TaskType = "INSTALLATION"
	TaskSystemConfig TaskType = "SYSTEM_CONFIG"
	TaskDevelopment  TaskType = "DEVELOPMENT"
	TaskOther        TaskType = "OTHER"
)

// ParseTaskType accepts both the canonical names and the loose labels
// reasoning services tend to emit ("file_management", "install").
func ParseTaskType(value string) (TaskType, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "filesystem", "file_management", "file", "files":
		return TaskFilesystem, true
	case "installation", "install", "package":
		return TaskInstallation, true
	case "system_config", "system", "configuration", "config":
		return TaskSystemConfig, true
	case "development", "dev", "build":
		return TaskDevelopment, true
	case "other":
		return TaskOther, true
	default:
		return TaskOther, false
	}
}

// Complexity is an ordinal estimate of how much work a request needs.
type Complexity int

const (
	ComplexitySimple   Complexity = 1
	ComplexityModerate Complexity = 2
	ComplexityComplex  Complexity = 3
)

// ParseComplexity maps a label or digit to a Complexity.
func ParseComplexity(value string) (Complexity, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "simple", "low", "1":
		return ComplexitySimple, true
	case "moderate", "medium", "2":
		return ComplexityModerate, true
	case "complex", "high", "3":
		return ComplexityComplex, true
	default:
		return ComplexityModerate, false
	}
}

func (c Complexity) String() string {
	switch c {
	case ComplexitySimple:
		return "simple"
	case ComplexityModerate:
		return "moderate"
	case ComplexityComplex:
		return "complex"
	default:
		return fmt.Sprintf("complexity(%d)", int(c))
	}
}

// Intent is the structured interpretation of a request. It is produced once
// per run and never modified afterwards.
type Intent struct {
	Summary        string     `json:"summary,omitempty"`
	TaskType       TaskType   `json:"task_type"`
	Complexity     Complexity `json:"complexity"`
	Requirements   []string   `json:"requirements,omitempty"`
	RiskHints      []string   `json:"risk_hints,omitempty"`
	MissingContext bool       `json:"missing_context"`
}

// Validate reports whether the intent is usable for planning.
func (i Intent) Validate() error {
	switch i.TaskType {
	case TaskFilesystem, TaskInstallation, TaskSystemConfig, TaskDevelopment, TaskOther:
	default:
		return fmt.Errorf("unknown task type %q", i.TaskType)
	}
	if i.Complexity < ComplexitySimple || i.Complexity > ComplexityComplex {
		return fmt.Errorf("complexity %d out of range", int(i.Complexity))
	}
	return nil
}

// IsComplex reports whether the request was judged complex.
func (i Intent) IsComplex() bool {
	return i.Complexity >= ComplexityComplex
}
