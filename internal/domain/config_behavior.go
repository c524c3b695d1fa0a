package domain

import (
	"fmt"
	"strings"
	"time"
)

// Rich Domain Model: 將業務邏輯封裝在 Domain 實體中
// Getters below return the effective value, falling back to defaults.

// GetDefaultModel retrieves the default model definition from configuration
// Returns an error if the default model is not found
func (c *Config) GetDefaultModel() (ModelDefinition, error) {
	if c.Preferences.DefaultModel == "" {
		if len(c.Models) > 0 {
			return c.Models[0], nil
		}
		return ModelDefinition{}, fmt.Errorf("no default model configured")
	}

	if model, ok := c.FindModelByName(c.Preferences.DefaultModel); ok {
		return model, nil
	}
	return ModelDefinition{}, fmt.Errorf("default model %s not found in configuration", c.Preferences.DefaultModel)
}

// FindModelByName searches for a model by its name
func (c *Config) FindModelByName(name string) (ModelDefinition, bool) {
	for _, model := range c.Models {
		if model.Name == name {
			return model, true
		}
	}
	return ModelDefinition{}, false
}

// HasModel checks if a model with the given name exists in the configuration
func (c *Config) HasModel(name string) bool {
	_, exists := c.FindModelByName(name)
	return exists
}

// GetReplanBudget returns how many plan revisions a run may make.
func (c *Config) GetReplanBudget() int {
	if c.Planning.ReplanBudget == nil || *c.Planning.ReplanBudget < 0 {
		return DefaultReplanBudget
	}
	return *c.Planning.ReplanBudget
}

// RetrySameOnTimeout reports whether a timed-out command gets one identical retry.
func (c *Config) RetrySameOnTimeout() bool {
	if c.Planning.RetrySameOnTimeout == nil {
		return true
	}
	return *c.Planning.RetrySameOnTimeout
}

// GetSimilarityThreshold returns the minimum score for knowledge reuse.
func (c *Config) GetSimilarityThreshold() float64 {
	t := c.Planning.SimilarityThreshold
	if t <= 0 || t > 1 {
		return DefaultSimilarityThreshold
	}
	return t
}

// GetInterpreterTimeout bounds a single call to the reasoning service.
func (c *Config) GetInterpreterTimeout() time.Duration {
	return durationOr(c.Planning.InterpreterTimeout, DefaultInterpreterTimeout)
}

// GetInterpreterRetries returns how many extra attempts comprehension gets.
func (c *Config) GetInterpreterRetries() int {
	if c.Planning.InterpreterRetries == nil || *c.Planning.InterpreterRetries < 0 {
		return DefaultInterpreterRetries
	}
	return *c.Planning.InterpreterRetries
}

// GetSearchTimeout bounds a single context search call.
func (c *Config) GetSearchTimeout() time.Duration {
	return durationOr(c.Planning.SearchTimeout, DefaultSearchTimeout)
}

// ShouldSearch applies the configured search policy to an intent.
func (c *Config) ShouldSearch(intent Intent) bool {
	if intent.MissingContext {
		return true
	}
	if strings.EqualFold(c.Planning.SearchPolicy, SearchPolicyInstallationOrComplex) {
		return intent.TaskType == TaskInstallation || intent.IsComplex()
	}
	return false
}

// GetStepTimeout returns the wall-clock ceiling for one step.
func (c *Config) GetStepTimeout() time.Duration {
	return durationOr(c.Execution.StepTimeout, DefaultStepTimeout)
}

// GetMaxOutputBytes caps captured stdout and stderr per step.
func (c *Config) GetMaxOutputBytes() int64 {
	if c.Execution.MaxOutputBytes <= 0 {
		return DefaultMaxOutputBytes
	}
	return c.Execution.MaxOutputBytes
}

// GetConfirmationTimeout returns zero when confirmation may wait forever.
func (c *Config) GetConfirmationTimeout() time.Duration {
	return durationOr(c.Execution.ConfirmationTimeout, 0)
}

// GetRiskPolicy builds the confirmation policy.
func (c *Config) GetRiskPolicy() RiskPolicy {
	return RiskPolicy{ConfirmMedium: c.Risk.ConfirmMedium}
}

// GetKnowledgeBackend returns "sqlite" or "jsonl".
func (c *Config) GetKnowledgeBackend() string {
	switch strings.ToLower(c.Knowledge.Backend) {
	case KnowledgeBackendJSONL:
		return KnowledgeBackendJSONL
	default:
		return KnowledgeBackendSQLite
	}
}

// GetSearchMaxResults returns how many snippets to request.
func (c *Config) GetSearchMaxResults() int {
	if c.Search.MaxResults <= 0 {
		return DefaultSearchMaxResults
	}
	return c.Search.MaxResults
}

// GetCacheTTL returns the interpretation cache lifetime.
func (c *Config) GetCacheTTL() time.Duration {
	return durationOr(c.Cache.TTL, DefaultCacheTTL)
}

// GetCacheMaxEntries returns the interpretation cache size limit.
func (c *Config) GetCacheMaxEntries() int {
	if c.Cache.MaxEntries <= 0 {
		return DefaultMaxCacheEntries
	}
	return c.Cache.MaxEntries
}

// GetMaxConcurrentRuns bounds batch parallelism.
func (c *Config) GetMaxConcurrentRuns() int {
	if c.Runtime.MaxConcurrentRuns <= 0 {
		return DefaultMaxConcurrentRuns
	}
	return c.Runtime.MaxConcurrentRuns
}

func durationOr(raw string, fallback time.Duration) time.Duration {
	if strings.TrimSpace(raw) == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

// IsGitContextEnabled reports whether git status is collected for prompts.
func (c *Config) IsGitContextEnabled() bool {
	return !strings.EqualFold(c.Context.IncludeGit, "never")
}

// GetMaxFiles returns how many files the context collector lists.
func (c *Config) GetMaxFiles() int {
	if c.Context.MaxFiles <= 0 {
		return DefaultPreviewMaxFiles
	}
	return c.Context.MaxFiles
}
