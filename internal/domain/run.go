package domain

import "time"

// RunRequest is a single natural-language task submitted to the orchestrator.
type RunRequest struct {
	Text string
	// DryRun stops after examination; nothing is executed.
	DryRun bool
}

// RunReport is returned to the caller once a run reaches a terminal state.
type RunReport struct {
	RunID       string            `json:"run_id"`
	RequestText string            `json:"request_text"`
	Outcome     Outcome           `json:"outcome"`
	FinalState  RunState          `json:"final_state"`
	Intent      *Intent           `json:"intent,omitempty"`
	Plans       []Plan            `json:"plans"`
	Results     []ExecutionResult `json:"results"`
	Summary     RunSummary        `json:"summary"`
	Audit       []AuditRecord     `json:"audit"`
	Persisted   bool              `json:"persisted"`
	Reused      bool              `json:"reused"`
	DryRun      bool              `json:"dry_run,omitempty"`
	StartedAt   time.Time         `json:"started_at"`
	FinishedAt  time.Time         `json:"finished_at"`
	// Err is the error that ended an aborted or failed run, if any.
	Err error `json:"-"`
}

// CurrentPlan is the last plan the run worked on.
func (r RunReport) CurrentPlan() (Plan, bool) {
	if len(r.Plans) == 0 {
		return Plan{}, false
	}
	return r.Plans[len(r.Plans)-1], true
}

// ExitCode maps the outcome to a process exit status.
func (r RunReport) ExitCode() int {
	if r.DryRun && r.Err == nil {
		return 0
	}
	switch r.Outcome {
	case OutcomeSuccess, OutcomePartial:
		return 0
	case OutcomeAborted:
		return 2
	default:
		return 1
	}
}

// PriorFailure is handed to the planner when a step failed.
type PriorFailure struct {
	Plan      Plan
	Failed    ExecutionResult
	Completed []ExecutionResult
	// RetriedCommands holds commands already given their one same-command
	// retry after a timeout.
	RetriedCommands map[string]bool
}

// Remainder returns the failed step and every step after it.
func (f PriorFailure) Remainder() []Step {
	var rest []Step
	for _, step := range f.Plan.Steps {
		if step.Ordinal >= f.Failed.StepOrdinal {
			rest = append(rest, step)
		}
	}
	return rest
}

// SearchSnippet is one reference text returned by context search.
type SearchSnippet struct {
	Title   string  `json:"title,omitempty"`
	URL     string  `json:"url,omitempty"`
	Content string  `json:"content"`
	Score   float64 `json:"score,omitempty"`
}

// ConfirmationRequest asks the user to approve flagged steps of one plan.
type ConfirmationRequest struct {
	RunID       string
	RequestText string
	Plan        Plan
	Flagged     []Step
}

// ConfirmationDecision is the user's answer, keyed by step ordinal.
type ConfirmationDecision struct {
	Approved map[int]bool
	Reason   string
}

// Rejected lists flagged ordinals that were not approved.
func (d ConfirmationDecision) Rejected(flagged []Step) []int {
	var rejected []int
	for _, step := range flagged {
		if !d.Approved[step.Ordinal] {
			rejected = append(rejected, step.Ordinal)
		}
	}
	return rejected
}

// ApproveAll builds a decision approving every flagged step.
func ApproveAll(flagged []Step) ConfirmationDecision {
	approved := make(map[int]bool, len(flagged))
	for _, step := range flagged {
		approved[step.Ordinal] = true
	}
	return ConfirmationDecision{Approved: approved}
}
