package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	auditapp "github.com/doeshing/genosma/internal/application/audit"
	"github.com/doeshing/genosma/internal/domain"
	"github.com/doeshing/genosma/internal/ports"
)

var (
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	commandStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))

	lowStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	mediumStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	highStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))

	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failureStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

func riskStyle(tier domain.RiskTier) lipgloss.Style {
	switch tier {
	case domain.RiskLow:
		return lowStyle
	case domain.RiskMedium:
		return mediumStyle
	default:
		return highStyle
	}
}

func outcomeStyle(outcome domain.Outcome) lipgloss.Style {
	switch outcome {
	case domain.OutcomeSuccess:
		return successStyle
	case domain.OutcomePartial:
		return warnStyle
	default:
		return failureStyle
	}
}

// Renderer prints plans, prompts and reports. Writes are serialized so
// progress from the audit sink does not interleave with prompts.
type Renderer struct {
	mu  sync.Mutex
	out io.Writer
}

// NewRenderer writes to out.
func NewRenderer(out io.Writer) *Renderer {
	return &Renderer{out: out}
}

func (r *Renderer) printf(format string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, format, args...)
}

// Plan lists every step with its risk tier.
func (r *Renderer) Plan(plan domain.Plan) {
	var b strings.Builder
	header := fmt.Sprintf("Plan (%s", strings.ToLower(string(plan.Source)))
	if plan.RevisionCount > 0 {
		header += fmt.Sprintf(", revision %d", plan.RevisionCount)
	}
	b.WriteString(titleStyle.Render(header+")") + "\n")
	for _, step := range plan.Steps {
		writeStep(&b, step)
	}
	r.printf("%s", b.String())
}

func writeStep(b *strings.Builder, step domain.Step) {
	tier := "UNASSESSED"
	if step.Examined() {
		tier = string(step.RiskTier)
	}
	fmt.Fprintf(b, "  %2d. [%s] %s", step.Ordinal, riskStyle(step.RiskTier).Render(tier), commandStyle.Render(step.Command))
	if step.Optional {
		b.WriteString(dimStyle.Render(" (optional)"))
	}
	b.WriteString("\n")
	if step.Description != "" {
		fmt.Fprintf(b, "      %s\n", dimStyle.Render(step.Description))
	}
	for _, reason := range step.RiskReasons {
		fmt.Fprintf(b, "      - %s\n", reason)
	}
	if step.PolicyViolation != "" {
		fmt.Fprintf(b, "      ! %s\n", step.PolicyViolation)
	}
}

// Confirmation shows the plan and which steps need approval.
func (r *Renderer) Confirmation(req domain.ConfirmationRequest) {
	r.Plan(req.Plan)
	ordinals := make([]string, len(req.Flagged))
	for i, step := range req.Flagged {
		ordinals[i] = fmt.Sprintf("%d", step.Ordinal)
	}
	r.printf("\n%s step(s) %s need confirmation.\n", warnStyle.Render("!"), strings.Join(ordinals, ", "))
}

// Report prints the outcome of one run.
func (r *Renderer) Report(report domain.RunReport) {
	var b strings.Builder

	if report.Intent != nil && report.Intent.Summary != "" {
		fmt.Fprintf(&b, "%s %s %s\n", dimStyle.Render("Intent:"), report.Intent.Summary,
			dimStyle.Render(fmt.Sprintf("(%s, %s)", report.Intent.TaskType, report.Intent.Complexity)))
	}
	if report.Reused {
		b.WriteString(dimStyle.Render("Plan reused from knowledge base") + "\n")
	}

	for _, result := range report.Results {
		writeResult(&b, result)
	}

	label := string(report.Outcome)
	if report.DryRun && report.Err == nil {
		label = "DRY RUN"
		if plan, ok := report.CurrentPlan(); ok {
			b.WriteString("\n")
			r.printf("%s", b.String())
			b.Reset()
			r.Plan(plan)
		}
	}
	fmt.Fprintf(&b, "\n%s", outcomeStyle(report.Outcome).Render(label))
	if report.DryRun && report.Err == nil {
		b.WriteString(" nothing was executed")
	}
	if s := report.Summary; s.Total > 0 {
		fmt.Fprintf(&b, " %s", dimStyle.Render(fmt.Sprintf("%d/%d steps succeeded in %s",
			s.Succeeded, s.Total, report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))))
	}
	b.WriteString("\n")
	if report.Err != nil {
		fmt.Fprintf(&b, "%s %v\n", failureStyle.Render("Reason:"), report.Err)
	}
	if report.Persisted {
		b.WriteString(dimStyle.Render("Plan remembered for similar requests") + "\n")
	}
	fmt.Fprintf(&b, "%s\n", dimStyle.Render("Run "+report.RunID))
	r.printf("%s", b.String())
}

func writeResult(b *strings.Builder, result domain.ExecutionResult) {
	mark := successStyle.Render("ok")
	if result.Failed() {
		mark = failureStyle.Render("failed")
	}
	fmt.Fprintf(b, "%s %s %s\n", mark, commandStyle.Render(result.Command),
		dimStyle.Render(result.Duration.Round(time.Millisecond).String()))
	writeIndented(b, result.Stdout)
	if result.Failed() {
		if reason := result.FailureReason(); reason != "" {
			fmt.Fprintf(b, "    %s\n", failureStyle.Render(reason))
		}
		writeIndented(b, result.Stderr)
	}
	if result.Truncated {
		size := len(result.Stdout) + len(result.Stderr)
		fmt.Fprintf(b, "    %s\n", dimStyle.Render("output truncated to "+humanize.Bytes(uint64(size))))
	}
}

func writeIndented(b *strings.Builder, text string) {
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return
	}
	for _, line := range strings.Split(text, "\n") {
		fmt.Fprintf(b, "    %s\n", line)
	}
}

// BatchSummary prints one line per run in submission order.
func (r *Renderer) BatchSummary(reports []domain.RunReport) {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Batch results") + "\n")
	counts := map[domain.Outcome]int{}
	for i, report := range reports {
		counts[report.Outcome]++
		fmt.Fprintf(&b, "  %2d. %s %s", i+1, outcomeStyle(report.Outcome).Render(fmt.Sprintf("%-8s", report.Outcome)), report.RequestText)
		if report.Err != nil {
			fmt.Fprintf(&b, " %s", dimStyle.Render("("+report.Err.Error()+")"))
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "%d succeeded, %d partial, %d failed, %d aborted\n",
		counts[domain.OutcomeSuccess], counts[domain.OutcomePartial], counts[domain.OutcomeFailure], counts[domain.OutcomeAborted])
	r.printf("%s", b.String())
}

// ProgressSink reports step progress live while a run is executing.
func (r *Renderer) ProgressSink() ports.AuditSink {
	return auditapp.SinkFunc(func(_ context.Context, record domain.AuditRecord) error {
		switch {
		case record.Event == domain.EventStepStarted:
			r.printf("%s %s\n", dimStyle.Render(fmt.Sprintf("[%d]", record.StepOrdinal)), commandStyle.Render(record.Detail))
		case record.Event == domain.EventStepFinished && record.Error != "":
			r.printf("    %s\n", failureStyle.Render(record.Error))
		case record.Event == domain.EventKnowledgeHit:
			r.printf("%s\n", dimStyle.Render(record.Detail))
		case record.Event == domain.EventTransition && record.State == domain.StateReplanning:
			r.printf("%s\n", warnStyle.Render("Step failed, revising the rest of the plan..."))
		case record.Event == domain.EventSearchSkipped:
			r.printf("%s\n", dimStyle.Render("Context search unavailable, planning without it"))
		}
		return nil
	})
}
