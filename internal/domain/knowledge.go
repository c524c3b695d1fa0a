package domain

import "time"

// Outcome is the final verdict of a run.
type Outcome string

const (
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomePartial Outcome = "PARTIAL"
	OutcomeFailure Outcome = "FAILURE"
	// OutcomeAborted is never persisted to the knowledge store.
	OutcomeAborted Outcome = "ABORTED"
)

// Persistable reports whether an outcome may become a knowledge entry.
// PARTIAL additionally needs the user's acceptance.
func (o Outcome) Persistable(partialAccepted bool) bool {
	switch o {
	case OutcomeSuccess:
		return true
	case OutcomePartial:
		return partialAccepted
	default:
		return false
	}
}

// KnowledgeEntry links a past request to the plan that satisfied it.
type KnowledgeEntry struct {
	RequestText string    `json:"request_text"`
	Plan        Plan      `json:"plan"`
	Outcome     Outcome   `json:"outcome"`
	Timestamp   time.Time `json:"timestamp"`
}

// KnowledgeMatch is a similarity query hit.
type KnowledgeMatch struct {
	Entry KnowledgeEntry
	Score float64
}
