package domain

import "time"

// Stage identifies which part of the pipeline produced an audit record.
type Stage string

const (
	StageComprehension Stage = "COMPREHENSION"
	StagePlanning      Stage = "PLANNING"
	StageExamination   Stage = "EXAMINATION"
	StageExecution     Stage = "EXECUTION"
	StageReplan        Stage = "REPLAN"
)

// AuditEvent narrows down what happened inside a stage.
type AuditEvent string

const (
	EventTransition    AuditEvent = "transition"
	EventStepStarted   AuditEvent = "step_started"
	EventStepFinished  AuditEvent = "step_finished"
	EventSearchSkipped AuditEvent = "search_skipped"
	EventKnowledgeHit  AuditEvent = "knowledge_hit"
	EventError         AuditEvent = "error"
	EventNote          AuditEvent = "note"
)

// AuditRecord is one append-only entry in a run's audit trail.
type AuditRecord struct {
	RunID       string                 `json:"run_id"`
	Stage       Stage                  `json:"stage"`
	Event       AuditEvent             `json:"event"`
	State       RunState               `json:"state,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
	Detail      string                 `json:"detail"`
	StepOrdinal int                    `json:"step_ordinal,omitempty"`
	Revision    int                    `json:"revision,omitempty"`
	Error       string                 `json:"error,omitempty"`
	Fields      map[string]interface{} `json:"fields,omitempty"`
	// Result is attached to step_finished records so summaries can be
	// computed from the trail alone.
	Result *ExecutionResult `json:"result,omitempty"`
}

// StepTiming is one row of a run summary.
type StepTiming struct {
	Ordinal  int           `json:"ordinal"`
	Revision int           `json:"revision"`
	Command  string        `json:"command"`
	Duration time.Duration `json:"duration"`
	Failed   bool          `json:"failed"`
	TimedOut bool          `json:"timed_out"`
}

// RunSummary aggregates execution statistics for a run.
type RunSummary struct {
	Total     int           `json:"total"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	TimedOut  int           `json:"timed_out"`
	Elapsed   time.Duration `json:"elapsed"`
	Busy      time.Duration `json:"busy"`
	Steps     []StepTiming  `json:"steps"`
}
