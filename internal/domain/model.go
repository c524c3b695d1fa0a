// Package domain defines the entities of the task pipeline: intents, plans,
// steps, execution results, knowledge entries and audit records, plus the
// configuration that drives them.
//
// The domain layer has no infrastructure dependencies. This file holds the
// reasoning-service model definitions read from the config file.
package domain

// ModelDefinition describes a chat-completion endpoint used as the
// interpreter. Requests are built from APIFormat so any provider speaking a
// close cousin of the OpenAI or Anthropic wire format can be configured.
type ModelDefinition struct {
	Name        string          `yaml:"name"`
	Endpoint    string          `yaml:"endpoint"`
	AuthEnvVar  string          `yaml:"auth_env_var"`
	OrgEnvVar   string          `yaml:"org_env_var,omitempty"`
	ModelID     string          `yaml:"model_id"`
	MaxTokens   int             `yaml:"max_tokens"`
	Temperature float64         `yaml:"temperature,omitempty"`
	Prompt      []PromptMessage `yaml:"prompt,omitempty"`
	APIFormat   APIFormat       `yaml:"api_format,omitempty"`
}

// HasCredentials reports whether the model's API key is present in env.
func (m ModelDefinition) HasCredentials(lookup func(string) string) bool {
	if m.AuthEnvVar == "" {
		return true
	}
	return lookup(m.AuthEnvVar) != ""
}

// APIFormat adapts request and response shapes to a provider. The zero
// value speaks the OpenAI chat-completions format.
type APIFormat struct {
	AuthHeaderName   string `yaml:"auth_header_name,omitempty"`
	AuthHeaderPrefix string `yaml:"auth_header_prefix,omitempty"`
	// SystemMessageMode is "inline" or "separate" (top-level system field).
	SystemMessageMode string `yaml:"system_message_mode,omitempty"`
	// ContentWrapper is "standard" or "anthropic" (content block arrays).
	ContentWrapper   string            `yaml:"content_wrapper,omitempty"`
	ResponseJSONPath string            `yaml:"response_json_path,omitempty"`
	ExtraHeaders     map[string]string `yaml:"extra_headers,omitempty"`
}

// PromptMessage is a role/content pair sent to the interpreter.
type PromptMessage struct {
	Role    string `yaml:"role" json:"role"`
	Content string `yaml:"content" json:"content"`
}

const (
	DefaultAuthHeaderName   = "Authorization"
	DefaultAuthHeaderPrefix = "Bearer "

	SystemMessageModeInline   = "inline"
	SystemMessageModeSeparate = "separate"

	ContentWrapperStandard  = "standard"
	ContentWrapperAnthropic = "anthropic"

	DefaultResponsePath   = "choices[0].message.content"
	AnthropicResponsePath = "content[0].text"
)

func (f APIFormat) GetAuthHeaderName() string {
	return orDefault(f.AuthHeaderName, DefaultAuthHeaderName)
}

// GetAuthHeaderPrefix keeps an empty prefix when the header name was
// customised, so "x-api-key" style headers carry the bare key.
func (f APIFormat) GetAuthHeaderPrefix() string {
	if f.AuthHeaderName != "" {
		return f.AuthHeaderPrefix
	}
	return orDefault(f.AuthHeaderPrefix, DefaultAuthHeaderPrefix)
}

func (f APIFormat) GetResponseJSONPath() string {
	return orDefault(f.ResponseJSONPath, DefaultResponsePath)
}

func (f APIFormat) IsSystemMessageSeparate() bool {
	return orDefault(f.SystemMessageMode, SystemMessageModeInline) == SystemMessageModeSeparate
}

func (f APIFormat) IsContentWrapped() bool {
	return orDefault(f.ContentWrapper, ContentWrapperStandard) == ContentWrapperAnthropic
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
