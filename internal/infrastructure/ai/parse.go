package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/doeshing/genosma/internal/domain"
)

var errNoJSON = errors.New("no JSON object in response")

// cleanModelOutput strips a surrounding ``` fence and its language tag.
func cleanModelOutput(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "```") {
		return raw
	}
	raw = strings.TrimSpace(strings.TrimPrefix(raw, "```"))
	if i := strings.IndexByte(raw, '\n'); i != -1 {
		firstLine := strings.ToLower(strings.TrimSpace(raw[:i]))
		if firstLine == "json" || firstLine == "application/json" {
			raw = raw[i+1:]
		}
	}
	raw = strings.TrimSpace(raw)
	raw = strings.TrimSuffix(raw, "```")
	return strings.TrimSpace(raw)
}

// extractJSONObject returns the span from the first '{' to the last '}'.
// Models often wrap the object in prose.
func extractJSONObject(raw string) (string, error) {
	raw = cleanModelOutput(raw)
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start == -1 || end <= start {
		return "", errNoJSON
	}
	return raw[start : end+1], nil
}

type intentJSON struct {
	Intent         string          `json:"intent"`
	TaskType       string          `json:"task_type"`
	Complexity     json.RawMessage `json:"complexity"`
	Requirements   []string        `json:"requirements"`
	Risks          []string        `json:"risks"`
	MissingContext bool            `json:"missing_context"`
	Clarification  string          `json:"clarification_question"`
}

// parseIntent decodes a comprehension reply. Unknown task types and
// complexities degrade to OTHER and moderate rather than failing.
func parseIntent(raw string) (domain.Intent, error) {
	object, err := extractJSONObject(raw)
	if err != nil {
		return domain.Intent{}, domain.NewInterpretationError(domain.InterpretationMalformed, err)
	}
	var ij intentJSON
	if err := json.Unmarshal([]byte(object), &ij); err != nil {
		return domain.Intent{}, domain.NewInterpretationError(domain.InterpretationMalformed, fmt.Errorf("decode intent: %w", err))
	}
	if q := strings.TrimSpace(ij.Clarification); q != "" {
		return domain.Intent{}, &domain.InterpretationError{Kind: domain.InterpretationAmbiguous, Question: q}
	}

	taskType, _ := domain.ParseTaskType(ij.TaskType)
	complexity, _ := domain.ParseComplexity(rawScalar(ij.Complexity))
	intent := domain.Intent{
		Summary:        strings.TrimSpace(ij.Intent),
		TaskType:       taskType,
		Complexity:     complexity,
		Requirements:   nonEmpty(ij.Requirements),
		RiskHints:      nonEmpty(ij.Risks),
		MissingContext: ij.MissingContext,
	}
	if err := intent.Validate(); err != nil {
		return domain.Intent{}, domain.NewInterpretationError(domain.InterpretationMalformed, err)
	}
	return intent, nil
}

// stepJSON accepts both {"command": ...} objects and bare strings.
type stepJSON struct {
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
}

func (s *stepJSON) UnmarshalJSON(data []byte) error {
	var bare string
	if err := json.Unmarshal(data, &bare); err == nil {
		s.Command = bare
		return nil
	}
	type alias stepJSON
	var obj alias
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*s = stepJSON(obj)
	return nil
}

// parseSteps decodes a drafting reply into step drafts.
func parseSteps(raw string) ([]domain.StepDraft, error) {
	object, err := extractJSONObject(raw)
	if err != nil {
		return nil, domain.NewInterpretationError(domain.InterpretationMalformed, err)
	}
	var payload struct {
		Steps []stepJSON `json:"steps"`
	}
	if err := json.Unmarshal([]byte(object), &payload); err != nil {
		return nil, domain.NewInterpretationError(domain.InterpretationMalformed, fmt.Errorf("decode steps: %w", err))
	}

	drafts := make([]domain.StepDraft, 0, len(payload.Steps))
	for _, s := range payload.Steps {
		command := strings.TrimSpace(s.Command)
		if command == "" {
			continue
		}
		drafts = append(drafts, domain.StepDraft{
			Command:     command,
			Description: strings.TrimSpace(s.Description),
			Optional:    s.Optional,
		})
	}
	if len(drafts) == 0 {
		return nil, domain.NewInterpretationError(domain.InterpretationMalformed, errors.New("reply contains no steps"))
	}
	return drafts, nil
}

func rawScalar(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

func nonEmpty(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
