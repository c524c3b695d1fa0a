package domain_test

import (
	"errors"
	"testing"

	"github.com/doeshing/genosma/internal/domain"
)

func TestPlan_Validate(t *testing.T) {
	tests := []struct {
		name    string
		plan    domain.Plan
		wantErr bool
	}{
		{
			name: "ordered plan is valid",
			plan: domain.Plan{Steps: []domain.Step{
				{Ordinal: 1, Command: "mkdir reports"},
				{Ordinal: 2, Command: "touch reports/a.txt"},
			}},
		},
		{
			name:    "empty plan is rejected",
			plan:    domain.Plan{},
			wantErr: true,
		},
		{
			name: "duplicate ordinals are rejected",
			plan: domain.Plan{Steps: []domain.Step{
				{Ordinal: 1, Command: "ls"},
				{Ordinal: 1, Command: "pwd"},
			}},
			wantErr: true,
		},
		{
			name: "decreasing ordinals are rejected",
			plan: domain.Plan{Steps: []domain.Step{
				{Ordinal: 2, Command: "ls"},
				{Ordinal: 1, Command: "pwd"},
			}},
			wantErr: true,
		},
		{
			name:    "blank command is rejected",
			plan:    domain.Plan{Steps: []domain.Step{{Ordinal: 1, Command: "  "}}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.plan.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPlan_WithoutRiskAndRenumbered(t *testing.T) {
	original := domain.Plan{
		Source: domain.SourceSynthesized,
		Steps: []domain.Step{
			{Ordinal: 3, Command: "mkdir a", RiskTier: domain.RiskLow, RiskReasons: []string{"scoped"}},
			{Ordinal: 7, Command: "rm -rf /etc", RiskTier: domain.RiskHigh, RequiresConfirmation: true},
		},
	}

	copied := original.Renumbered().WithoutRisk()

	if copied.Steps[0].Ordinal != 1 || copied.Steps[1].Ordinal != 2 {
		t.Fatalf("expected ordinals 1,2 got %d,%d", copied.Steps[0].Ordinal, copied.Steps[1].Ordinal)
	}
	if copied.FullyExamined() {
		t.Fatal("expected risk to be cleared")
	}
	if len(copied.Flagged()) != 0 {
		t.Fatal("cleared plan should not flag steps")
	}
	if original.Steps[0].Ordinal != 3 || original.Steps[1].RiskTier != domain.RiskHigh {
		t.Fatal("original plan was modified")
	}
	copied.Steps[0].RiskReasons = append(copied.Steps[0].RiskReasons, "x")
	if len(original.Steps[0].RiskReasons) != 1 {
		t.Fatal("clone shares reason slice with original")
	}
}

func TestExecutionRequest_Authorized(t *testing.T) {
	high := domain.Step{Ordinal: 2, Command: "rm -rf /etc/x", RiskTier: domain.RiskHigh, RequiresConfirmation: true}
	low := domain.Step{Ordinal: 1, Command: "ls", RiskTier: domain.RiskLow}

	tests := []struct {
		name string
		req  domain.ExecutionRequest
		want bool
	}{
		{"low step needs no token", domain.ExecutionRequest{RunID: "r", Step: low}, true},
		{"unexamined step is refused", domain.ExecutionRequest{RunID: "r", Step: domain.Step{Ordinal: 1, Command: "ls"}}, false},
		{"high step without token", domain.ExecutionRequest{RunID: "r", Step: high, Revision: 0}, false},
		{
			"high step with matching token",
			domain.ExecutionRequest{RunID: "r", Step: high, Revision: 1, Token: &domain.ConfirmationToken{RunID: "r", Ordinal: 2, Revision: 1}},
			true,
		},
		{
			"token for another revision",
			domain.ExecutionRequest{RunID: "r", Step: high, Revision: 1, Token: &domain.ConfirmationToken{RunID: "r", Ordinal: 2, Revision: 0}},
			false,
		},
		{
			"token for another run",
			domain.ExecutionRequest{RunID: "r", Step: high, Token: &domain.ConfirmationToken{RunID: "other", Ordinal: 2}},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.req.Authorized(); got != tt.want {
				t.Errorf("Authorized() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExecutionFailure_UnwrapsTimeout(t *testing.T) {
	timedOut := &domain.ExecutionFailure{Result: domain.ExecutionResult{StepOrdinal: 1, TimedOut: true, ExitCode: domain.TimeoutExitCode}}
	if !errors.Is(timedOut, domain.ErrExecutionTimeout) {
		t.Fatal("expected timeout failure to match ErrExecutionTimeout")
	}
	plain := &domain.ExecutionFailure{Result: domain.ExecutionResult{StepOrdinal: 1, ExitCode: 1, Stderr: "boom\n"}}
	if errors.Is(plain, domain.ErrExecutionTimeout) {
		t.Fatal("nonzero exit should not match ErrExecutionTimeout")
	}
	if got := plain.Result.FailureReason(); got != "exit code 1: boom" {
		t.Fatalf("FailureReason() = %q", got)
	}
}

func TestPriorFailure_Remainder(t *testing.T) {
	plan := domain.NewPlan(domain.SourceSynthesized, 0, []domain.StepDraft{
		{Command: "mkdir a"}, {Command: "false"}, {Command: "touch a/b"},
	})
	failure := domain.PriorFailure{Plan: plan, Failed: domain.ExecutionResult{StepOrdinal: 2, ExitCode: 1}}

	rest := failure.Remainder()
	if len(rest) != 2 || rest[0].Command != "false" || rest[1].Command != "touch a/b" {
		t.Fatalf("unexpected remainder %+v", rest)
	}
}
