package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/doeshing/genosma/internal/domain"
)

// Validate ensures config structure is consistent.
func Validate(cfg domain.Config) error {
	if len(cfg.Models) == 0 && !cfg.Preferences.Offline {
		return errors.New("at least one model must be configured unless preferences.offline is set")
	}
	if len(cfg.Models) > 0 {
		name := cfg.Preferences.DefaultModel
		if name == "" {
			name = cfg.Models[0].Name
		}
		if _, ok := cfg.FindModelByName(name); !ok {
			return fmt.Errorf("default model %s not found in models list", name)
		}
		for _, model := range cfg.Models {
			if err := validateModel(model); err != nil {
				return err
			}
		}
	}

	var errs []error
	errs = append(errs, validatePlanning(cfg.Planning))
	errs = append(errs, validateExecution(cfg.Execution))
	errs = append(errs, validateKnowledge(cfg.Knowledge))
	errs = append(errs, validateSearch(cfg.Search))
	errs = append(errs, validateContext(cfg.Context))
	errs = append(errs, validateCache(cfg.Cache))
	if cfg.Runtime.MaxConcurrentRuns < 0 {
		errs = append(errs, errors.New("runtime.max_concurrent_runs must be >= 0"))
	}
	return errors.Join(errs...)
}

func validateModel(model domain.ModelDefinition) error {
	if strings.TrimSpace(model.Name) == "" {
		return errors.New("models: every model needs a name")
	}
	if strings.TrimSpace(model.Endpoint) == "" {
		return fmt.Errorf("model %s: endpoint must be set", model.Name)
	}
	if strings.TrimSpace(model.ModelID) == "" {
		return fmt.Errorf("model %s: model_id must be set", model.Name)
	}
	return nil
}

func validatePlanning(p domain.PlanningSettings) error {
	if p.ReplanBudget != nil && *p.ReplanBudget < 0 {
		return fmt.Errorf("planning.replan_budget must be >= 0, got %d", *p.ReplanBudget)
	}
	if p.InterpreterRetries != nil && *p.InterpreterRetries < 0 {
		return fmt.Errorf("planning.interpreter_retries must be >= 0, got %d", *p.InterpreterRetries)
	}
	if p.SimilarityThreshold < 0 || p.SimilarityThreshold > 1 {
		return fmt.Errorf("planning.similarity_threshold must be within [0,1], got %v", p.SimilarityThreshold)
	}
	switch strings.ToLower(p.SearchPolicy) {
	case "", domain.SearchPolicyMissingContext, domain.SearchPolicyInstallationOrComplex:
	default:
		return fmt.Errorf("planning.search_policy must be %s|%s, got %s",
			domain.SearchPolicyMissingContext, domain.SearchPolicyInstallationOrComplex, p.SearchPolicy)
	}
	if err := validateDuration("planning.interpreter_timeout", p.InterpreterTimeout); err != nil {
		return err
	}
	return validateDuration("planning.search_timeout", p.SearchTimeout)
}

func validateExecution(e domain.ExecutionSettings) error {
	if e.MaxOutputBytes < 0 {
		return errors.New("execution.max_output_bytes must be >= 0")
	}
	if err := validateDuration("execution.step_timeout", e.StepTimeout); err != nil {
		return err
	}
	return validateDuration("execution.confirmation_timeout", e.ConfirmationTimeout)
}

func validateKnowledge(k domain.KnowledgeSettings) error {
	switch strings.ToLower(k.Backend) {
	case "", domain.KnowledgeBackendSQLite, domain.KnowledgeBackendJSONL:
		return nil
	default:
		return fmt.Errorf("knowledge.backend must be %s|%s, got %s",
			domain.KnowledgeBackendSQLite, domain.KnowledgeBackendJSONL, k.Backend)
	}
}

func validateSearch(s domain.SearchSettings) error {
	if s.MaxResults < 0 {
		return errors.New("search.max_results must be >= 0")
	}
	if s.Enabled && strings.TrimSpace(s.Endpoint) == "" {
		return errors.New("search.endpoint must be set when search is enabled")
	}
	return nil
}

func validateContext(ctx domain.ContextSettings) error {
	switch strings.ToLower(ctx.IncludeGit) {
	case "", "auto", "always", "never":
	default:
		return fmt.Errorf("context.include_git must be auto|always|never, got %s", ctx.IncludeGit)
	}
	if ctx.MaxFiles < 0 {
		return fmt.Errorf("context.max_files must be >= 0")
	}
	return nil
}

func validateCache(cache domain.CacheSettings) error {
	if err := validateDuration("cache.ttl", cache.TTL); err != nil {
		return err
	}
	if cache.MaxEntries < 0 {
		return fmt.Errorf("cache.max_entries must be >= 0")
	}
	return nil
}

func validateDuration(field, raw string) error {
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("%s invalid: %w", field, err)
	}
	if d < 0 {
		return fmt.Errorf("%s must not be negative", field)
	}
	return nil
}
