package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/doeshing/genosma/internal/domain"
	"github.com/doeshing/genosma/internal/ports"
)

// TerminalGate asks the person at the terminal. A plan with any HIGH step
// needs the word "yes"; otherwise y is enough. The answer covers every
// flagged step of that plan revision.
type TerminalGate struct {
	Prompter *Prompter
	Renderer *Renderer
}

// Confirm implements ports.ConfirmationGate.
func (g *TerminalGate) Confirm(ctx context.Context, req domain.ConfirmationRequest) (domain.ConfirmationDecision, error) {
	g.Renderer.Confirmation(req)

	high := false
	for _, step := range req.Flagged {
		if step.RiskTier == domain.RiskHigh || !step.Examined() {
			high = true
		}
	}

	var (
		approved bool
		err      error
	)
	if high {
		approved, err = g.Prompter.AskExplicit(ctx, highStyle.Render("This plan contains high-risk steps.")+" Run it?")
	} else {
		approved, err = g.Prompter.AskYesNo(ctx, "Run these steps?")
	}
	switch {
	case errors.Is(err, io.EOF):
		return denied("no answer on input"), nil
	case err != nil:
		return domain.ConfirmationDecision{}, err
	case !approved:
		return denied("declined by user"), nil
	}
	return domain.ApproveAll(req.Flagged), nil
}

// AcceptPartial implements ports.ConfirmationGate.
func (g *TerminalGate) AcceptPartial(ctx context.Context, report domain.RunReport) (bool, error) {
	keep, err := g.Prompter.AskYesNo(ctx, "Optional steps failed. Remember this plan for similar requests?")
	if errors.Is(err, io.EOF) {
		return false, nil
	}
	return keep, err
}

func denied(reason string) domain.ConfirmationDecision {
	return domain.ConfirmationDecision{Approved: map[int]bool{}, Reason: reason}
}

// TerminalClarifier relays the interpreter's follow-up question.
type TerminalClarifier struct {
	Prompter *Prompter
}

// Clarify implements ports.Clarifier.
func (c *TerminalClarifier) Clarify(ctx context.Context, question string) (string, error) {
	answer, err := c.Prompter.ReadLine(ctx, fmt.Sprintf("%s\n> ", question))
	if err != nil {
		return "", err
	}
	if answer = strings.TrimSpace(answer); answer == "" {
		return "", errNoInput
	}
	return answer, nil
}

var (
	_ ports.ConfirmationGate = (*TerminalGate)(nil)
	_ ports.Clarifier        = (*TerminalClarifier)(nil)
)
