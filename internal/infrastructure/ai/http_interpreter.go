package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/doeshing/genosma/internal/domain"
	"github.com/doeshing/genosma/internal/ports"
)

// errMissingKey is returned when the model's auth env var is unset.
var errMissingKey = errors.New("missing API key")

// HTTPInterpreter talks to a chat-completion endpoint. All provider-specific
// behavior comes from the model's APIFormat configuration.
type HTTPInterpreter struct {
	model      domain.ModelDefinition
	httpClient *http.Client
	lookupEnv  func(string) string
}

// NewHTTPInterpreter creates a new HTTP-based interpreter.
func NewHTTPInterpreter(model domain.ModelDefinition, client *http.Client, lookupEnv func(string) string) *HTTPInterpreter {
	if client == nil {
		client = &http.Client{Timeout: domain.DefaultHTTPClientTimeout}
	}
	return &HTTPInterpreter{model: model, httpClient: client, lookupEnv: lookupEnv}
}

// Name implements ports.Interpreter.
func (p *HTTPInterpreter) Name() string {
	return p.model.Name
}

// Interpret implements ports.Interpreter.
func (p *HTTPInterpreter) Interpret(ctx context.Context, req ports.InterpretRequest) (domain.Intent, error) {
	if strings.TrimSpace(req.Text) == "" {
		return domain.Intent{}, domain.NewInterpretationError(domain.InterpretationMalformed, domain.ErrEmptyRequest)
	}
	messages, err := interpretMessages(p.model, req)
	if err != nil {
		return domain.Intent{}, domain.NewInterpretationError(domain.InterpretationMalformed, fmt.Errorf("render prompt: %w", err))
	}
	content, err := p.complete(ctx, messages)
	if err != nil {
		return domain.Intent{}, err
	}
	return parseIntent(content)
}

// DraftSteps implements ports.Interpreter.
func (p *HTTPInterpreter) DraftSteps(ctx context.Context, req ports.DraftRequest) ([]domain.StepDraft, error) {
	messages, err := draftMessages(p.model, req)
	if err != nil {
		return nil, domain.NewInterpretationError(domain.InterpretationMalformed, fmt.Errorf("render prompt: %w", err))
	}
	content, err := p.complete(ctx, messages)
	if err != nil {
		return nil, err
	}
	return parseSteps(content)
}

// complete sends one chat request and returns the generated text. Transport
// problems are reported as unavailable, undecodable bodies as malformed.
func (p *HTTPInterpreter) complete(ctx context.Context, messages []domain.PromptMessage) (string, error) {
	requestBody, err := p.buildRequestBody(messages)
	if err != nil {
		return "", domain.NewInterpretationError(domain.InterpretationMalformed, fmt.Errorf("build request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.model.Endpoint, bytes.NewReader(requestBody))
	if err != nil {
		return "", domain.NewInterpretationError(domain.InterpretationUnavailable, fmt.Errorf("create HTTP request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if err := p.setAuthHeaders(httpReq); err != nil {
		return "", domain.NewInterpretationError(domain.InterpretationUnavailable, err)
	}
	for key, value := range p.model.APIFormat.ExtraHeaders {
		httpReq.Header.Set(key, value)
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return "", domain.NewInterpretationError(domain.InterpretationUnavailable, fmt.Errorf("HTTP request failed: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", domain.NewInterpretationError(domain.InterpretationUnavailable, fmt.Errorf("read response body: %w", err))
	}
	if resp.StatusCode >= 400 {
		return "", domain.NewInterpretationError(domain.InterpretationUnavailable, fmt.Errorf("HTTP %d: %s", resp.StatusCode, snippet(body)))
	}

	content, err := p.parseResponse(body)
	if err != nil {
		return "", domain.NewInterpretationError(domain.InterpretationMalformed, fmt.Errorf("parse response: %w", err))
	}
	return content, nil
}

// buildRequestBody constructs the JSON request body based on the model's APIFormat configuration.
func (p *HTTPInterpreter) buildRequestBody(messages []domain.PromptMessage) ([]byte, error) {
	format := p.model.APIFormat
	request := map[string]interface{}{
		"model": p.model.ModelID,
	}
	if p.model.MaxTokens > 0 {
		request["max_tokens"] = p.model.MaxTokens
	}
	if p.model.Temperature > 0 {
		request["temperature"] = p.model.Temperature
	}

	if format.IsSystemMessageSeparate() {
		systemPrompt, chatMessages := splitSystemMessages(messages, format)
		if systemPrompt != "" {
			request["system"] = systemPrompt
		}
		request["messages"] = chatMessages
	} else {
		inline := make([]map[string]interface{}, 0, len(messages))
		for _, msg := range messages {
			inline = append(inline, formatMessage(msg, format))
		}
		request["messages"] = inline
	}
	return json.Marshal(request)
}

// splitSystemMessages separates system messages from chat messages for providers
// that require system messages in a separate field (e.g., Anthropic).
func splitSystemMessages(messages []domain.PromptMessage, format domain.APIFormat) (string, []map[string]interface{}) {
	var systemLines []string
	var chatMessages []map[string]interface{}
	for _, msg := range messages {
		if strings.EqualFold(msg.Role, "system") {
			systemLines = append(systemLines, msg.Content)
			continue
		}
		chatMessages = append(chatMessages, formatMessage(msg, format))
	}
	return strings.TrimSpace(strings.Join(systemLines, "\n")), chatMessages
}

func formatMessage(msg domain.PromptMessage, format domain.APIFormat) map[string]interface{} {
	message := map[string]interface{}{
		"role": strings.ToLower(msg.Role),
	}
	if format.IsContentWrapped() {
		message["content"] = []map[string]string{
			{"type": "text", "text": msg.Content},
		}
	} else {
		message["content"] = msg.Content
	}
	return message
}

func (p *HTTPInterpreter) setAuthHeaders(req *http.Request) error {
	if p.model.AuthEnvVar == "" {
		return nil
	}
	apiKey := p.env(p.model.AuthEnvVar)
	if apiKey == "" {
		return fmt.Errorf("%w: set %s environment variable", errMissingKey, p.model.AuthEnvVar)
	}
	format := p.model.APIFormat
	req.Header.Set(format.GetAuthHeaderName(), format.GetAuthHeaderPrefix()+apiKey)

	if p.model.OrgEnvVar != "" {
		if orgID := p.env(p.model.OrgEnvVar); orgID != "" {
			req.Header.Set("OpenAI-Organization", orgID)
		}
	}
	return nil
}

func (p *HTTPInterpreter) env(key string) string {
	if p.lookupEnv == nil {
		return ""
	}
	return p.lookupEnv(key)
}

// parseResponse extracts the generated text using the configured JSON path.
func (p *HTTPInterpreter) parseResponse(body []byte) (string, error) {
	var response map[string]interface{}
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("unmarshal JSON: %w", err)
	}
	path := p.model.APIFormat.GetResponseJSONPath()
	content, err := extractJSONPath(response, path)
	if err != nil {
		return "", fmt.Errorf("extract from path '%s': %w", path, err)
	}
	return strings.TrimSpace(content), nil
}

// extractJSONPath walks a decoded JSON document.
// Supported paths: "field", "field.nested", "field[0]", "field[0].nested.field"
func extractJSONPath(data map[string]interface{}, path string) (string, error) {
	var current interface{} = data
	for _, part := range parseJSONPath(path) {
		switch part.kind {
		case pathField:
			obj, ok := current.(map[string]interface{})
			if !ok {
				return "", fmt.Errorf("expected object at '%s'", part.value)
			}
			next, found := obj[part.value]
			if !found {
				return "", fmt.Errorf("field '%s' not found", part.value)
			}
			current = next
		case pathIndex:
			arr, ok := current.([]interface{})
			if !ok {
				return "", fmt.Errorf("expected array at index %d", part.index)
			}
			if part.index < 0 || part.index >= len(arr) {
				return "", fmt.Errorf("index %d out of bounds (len=%d)", part.index, len(arr))
			}
			current = arr[part.index]
		}
	}
	if str, ok := current.(string); ok {
		return str, nil
	}
	return "", fmt.Errorf("final value is not a string: %T", current)
}

type pathKind int

const (
	pathField pathKind = iota
	pathIndex
)

type pathPart struct {
	kind  pathKind
	value string
	index int
}

// parseJSONPath converts "choices[0].message.content" into path parts.
func parseJSONPath(path string) []pathPart {
	var parts []pathPart
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			parts = append(parts, pathPart{kind: pathField, value: current.String()})
			current.Reset()
		}
	}
	for i := 0; i < len(path); i++ {
		switch ch := path[i]; ch {
		case '.':
			flush()
		case '[':
			flush()
			j := i + 1
			for j < len(path) && path[j] != ']' {
				j++
			}
			if j < len(path) {
				var idx int
				fmt.Sscanf(path[i+1:j], "%d", &idx)
				parts = append(parts, pathPart{kind: pathIndex, index: idx})
				i = j
			}
		default:
			current.WriteByte(ch)
		}
	}
	flush()
	return parts
}

func snippet(body []byte) string {
	const max = 200
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

var _ ports.Interpreter = (*HTTPInterpreter)(nil)
