package config

import (
	"strings"
	"testing"

	"github.com/doeshing/genosma/internal/domain"
)

func validConfig() domain.Config {
	return domain.Config{
		Preferences: domain.Preferences{DefaultModel: "m"},
		Models: []domain.ModelDefinition{
			{Name: "m", Endpoint: "https://example.invalid/v1/chat", ModelID: "x"},
		},
	}
}

func TestValidate(t *testing.T) {
	negative := -1
	tests := []struct {
		name    string
		mutate  func(*domain.Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*domain.Config) {}},
		{name: "offline without models", mutate: func(c *domain.Config) {
			c.Models = nil
			c.Preferences = domain.Preferences{Offline: true}
		}},
		{name: "no models", mutate: func(c *domain.Config) { c.Models = nil }, wantErr: "at least one model"},
		{name: "unknown default", mutate: func(c *domain.Config) { c.Preferences.DefaultModel = "nope" }, wantErr: "default model nope"},
		{name: "model without endpoint", mutate: func(c *domain.Config) { c.Models[0].Endpoint = "" }, wantErr: "endpoint must be set"},
		{name: "negative budget", mutate: func(c *domain.Config) { c.Planning.ReplanBudget = &negative }, wantErr: "replan_budget"},
		{name: "threshold out of range", mutate: func(c *domain.Config) { c.Planning.SimilarityThreshold = 1.5 }, wantErr: "similarity_threshold"},
		{name: "bad search policy", mutate: func(c *domain.Config) { c.Planning.SearchPolicy = "always" }, wantErr: "search_policy"},
		{name: "bad step timeout", mutate: func(c *domain.Config) { c.Execution.StepTimeout = "soon" }, wantErr: "execution.step_timeout"},
		{name: "bad backend", mutate: func(c *domain.Config) { c.Knowledge.Backend = "redis" }, wantErr: "knowledge.backend"},
		{name: "search without endpoint", mutate: func(c *domain.Config) { c.Search.Enabled = true }, wantErr: "search.endpoint"},
		{name: "bad include_git", mutate: func(c *domain.Config) { c.Context.IncludeGit = "sometimes" }, wantErr: "include_git"},
		{name: "bad cache ttl", mutate: func(c *domain.Config) { c.Cache.TTL = "-1h" }, wantErr: "cache.ttl"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateReportsEverySection(t *testing.T) {
	cfg := validConfig()
	cfg.Knowledge.Backend = "redis"
	cfg.Context.IncludeGit = "sometimes"
	err := Validate(cfg)
	if err == nil {
		t.Fatal("Validate() error = nil")
	}
	for _, want := range []string{"knowledge.backend", "include_git"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}
