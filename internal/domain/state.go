package domain

import "fmt"

// RunState is a node of the orchestration state machine.
type RunState string

const (
	StateReceived             RunState = "RECEIVED"
	StateComprehending        RunState = "COMPREHENDING"
	StatePlanning             RunState = "PLANNING"
	StateExamining            RunState = "EXAMINING"
	StateAwaitingConfirmation RunState = "AWAITING_CONFIRMATION"
	StateExecuting            RunState = "EXECUTING"
	StateReplanning           RunState = "REPLANNING"
	StateAuditing             RunState = "AUDITING"
	StateDone                 RunState = "DONE"
	StateAborted              RunState = "ABORTED"
)

// AllStates lists every state in pipeline order.
func AllStates() []RunState {
	return []RunState{
		StateReceived,
		StateComprehending,
		StatePlanning,
		StateExamining,
		StateAwaitingConfirmation,
		StateExecuting,
		StateReplanning,
		StateAuditing,
		StateDone,
		StateAborted,
	}
}

// IsTerminal reports whether no transition leaves the state.
func (s RunState) IsTerminal() bool {
	return s == StateDone || s == StateAborted
}

// IsValid reports whether s is a known state.
func (s RunState) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

// Stage maps a state to the audit stage it belongs to.
func (s RunState) Stage() Stage {
	switch s {
	case StateReceived, StateComprehending:
		return StageComprehension
	case StatePlanning:
		return StagePlanning
	case StateExamining, StateAwaitingConfirmation:
		return StageExamination
	case StateReplanning:
		return StageReplan
	default:
		return StageExecution
	}
}

// ABORTED is reachable from every non-terminal state and is added by
// CanTransition rather than listed here.
var transitions = map[RunState][]RunState{
	StateReceived:             {StateComprehending},
	StateComprehending:        {StatePlanning},
	StatePlanning:             {StateExamining},
	StateExamining:            {StateAwaitingConfirmation, StateExecuting},
	StateAwaitingConfirmation: {StateExecuting},
	StateExecuting:            {StateReplanning, StateAuditing},
	StateReplanning:           {StatePlanning},
	StateAuditing:             {StateDone},
	StateDone:                 nil,
	StateAborted:              nil,
}

// CanTransition reports whether from → to is a legal edge.
func CanTransition(from, to RunState) bool {
	if from.IsTerminal() {
		return false
	}
	if to == StateAborted {
		return from.IsValid()
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionError reports an illegal state change.
type TransitionError struct {
	From RunState
	To   RunState
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal transition %s -> %s", e.From, e.To)
}
