package domain_test

import (
	"testing"

	"github.com/doeshing/genosma/internal/domain"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to domain.RunState
		want     bool
	}{
		{domain.StateReceived, domain.StateComprehending, true},
		{domain.StateComprehending, domain.StatePlanning, true},
		{domain.StatePlanning, domain.StateExamining, true},
		{domain.StateExamining, domain.StateAwaitingConfirmation, true},
		{domain.StateExamining, domain.StateExecuting, true},
		{domain.StateAwaitingConfirmation, domain.StateExecuting, true},
		{domain.StateExecuting, domain.StateReplanning, true},
		{domain.StateExecuting, domain.StateAuditing, true},
		{domain.StateReplanning, domain.StatePlanning, true},
		{domain.StateAuditing, domain.StateDone, true},
		{domain.StatePlanning, domain.StateExecuting, false},
		{domain.StateReceived, domain.StateExecuting, false},
		{domain.StateReplanning, domain.StateExecuting, false},
		{domain.StateDone, domain.StateAborted, false},
		{domain.StateAborted, domain.StateReceived, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := domain.CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestAbortedReachableFromEveryNonTerminalState(t *testing.T) {
	for _, state := range domain.AllStates() {
		if state.IsTerminal() {
			continue
		}
		if !domain.CanTransition(state, domain.StateAborted) {
			t.Errorf("expected %s -> ABORTED to be legal", state)
		}
	}
}
