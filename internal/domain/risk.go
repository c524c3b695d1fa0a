package domain

import "strings"

// RiskTier is the coarse risk classification attached to each Step.
// The empty tier means the step has not been examined yet.
type RiskTier string

const (
	RiskUnassessed RiskTier = ""
	RiskLow        RiskTier = "LOW"
	RiskMedium     RiskTier = "MEDIUM"
	RiskHigh       RiskTier = "HIGH"
)

// ParseRiskTier maps rule-file labels onto tiers. Unknown labels report false.
func ParseRiskTier(value string) (RiskTier, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "low":
		return RiskLow, true
	case "medium":
		return RiskMedium, true
	case "high", "critical":
		return RiskHigh, true
	default:
		return RiskUnassessed, false
	}
}

// Rank orders tiers so callers can compare severity.
func (t RiskTier) Rank() int {
	switch t {
	case RiskLow:
		return 1
	case RiskMedium:
		return 2
	case RiskHigh:
		return 3
	default:
		return 0
	}
}

// RiskAssessment is the examiner's verdict for a single command.
type RiskAssessment struct {
	Tier         RiskTier `json:"tier"`
	Reasons      []string `json:"reasons,omitempty"`
	MatchedRules []string `json:"matched_rules,omitempty"`
	// Violation is set when the command could not be classified and was
	// forced to HIGH.
	Violation string `json:"violation,omitempty"`
}

// RiskPolicy carries the confirmation rules applied after classification.
type RiskPolicy struct {
	ConfirmMedium bool
}

// RequiresConfirmation applies the policy to a tier.
func (p RiskPolicy) RequiresConfirmation(tier RiskTier) bool {
	switch tier {
	case RiskHigh, RiskUnassessed:
		return true
	case RiskMedium:
		return p.ConfirmMedium
	default:
		return false
	}
}
