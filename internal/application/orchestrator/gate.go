package orchestrator

import (
	"context"

	"github.com/doeshing/genosma/internal/domain"
	"github.com/doeshing/genosma/internal/ports"
)

// Prompt is one pending confirmation delivered by a ChannelGate.
type Prompt struct {
	Request domain.ConfirmationRequest
	reply   chan domain.ConfirmationDecision
}

// Answer delivers the decision. Only the first answer counts.
func (p Prompt) Answer(decision domain.ConfirmationDecision) {
	select {
	case p.reply <- decision:
	default:
	}
}

// ApproveAll approves every flagged step of the prompt.
func (p Prompt) ApproveAll() {
	p.Answer(domain.ApproveAll(p.Request.Flagged))
}

// Deny rejects every flagged step.
func (p Prompt) Deny(reason string) {
	p.Answer(domain.ConfirmationDecision{Approved: map[int]bool{}, Reason: reason})
}

// ChannelGate hands confirmation requests to whoever reads Prompts. It
// suits embedding the orchestrator in another program and driving it from
// tests.
type ChannelGate struct {
	prompts       chan Prompt
	acceptPartial bool
}

// NewChannelGate creates a gate; acceptPartial is the fixed answer to
// AcceptPartial.
func NewChannelGate(acceptPartial bool) *ChannelGate {
	return &ChannelGate{prompts: make(chan Prompt), acceptPartial: acceptPartial}
}

// Prompts yields one Prompt per Confirm call.
func (g *ChannelGate) Prompts() <-chan Prompt {
	return g.prompts
}

// Confirm implements ports.ConfirmationGate. It blocks until the prompt is
// answered or ctx ends.
func (g *ChannelGate) Confirm(ctx context.Context, req domain.ConfirmationRequest) (domain.ConfirmationDecision, error) {
	prompt := Prompt{Request: req, reply: make(chan domain.ConfirmationDecision, 1)}
	select {
	case g.prompts <- prompt:
	case <-ctx.Done():
		return domain.ConfirmationDecision{}, ctx.Err()
	}
	select {
	case decision := <-prompt.reply:
		return decision, nil
	case <-ctx.Done():
		return domain.ConfirmationDecision{}, ctx.Err()
	}
}

// AcceptPartial implements ports.ConfirmationGate.
func (g *ChannelGate) AcceptPartial(context.Context, domain.RunReport) (bool, error) {
	return g.acceptPartial, nil
}

// StaticGate answers every confirmation the same way. It backs the CLI's
// --yes flag and non-interactive batch runs.
type StaticGate struct {
	Approve bool
	// KeepPartial is the answer to AcceptPartial.
	KeepPartial bool
	Reason      string
}

// Confirm implements ports.ConfirmationGate.
func (g StaticGate) Confirm(_ context.Context, req domain.ConfirmationRequest) (domain.ConfirmationDecision, error) {
	if g.Approve {
		return domain.ApproveAll(req.Flagged), nil
	}
	reason := g.Reason
	if reason == "" {
		reason = "confirmation not available"
	}
	return domain.ConfirmationDecision{Approved: map[int]bool{}, Reason: reason}, nil
}

// AcceptPartial implements ports.ConfirmationGate.
func (g StaticGate) AcceptPartial(context.Context, domain.RunReport) (bool, error) {
	return g.KeepPartial, nil
}

var (
	_ ports.ConfirmationGate = (*ChannelGate)(nil)
	_ ports.ConfirmationGate = StaticGate{}
)
