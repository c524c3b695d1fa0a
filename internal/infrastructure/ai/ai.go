// Package ai provides the Interpreter adapters used for comprehension and
// step drafting.
//
// This package implements a unified, configuration-driven approach to reasoning services:
//   - Factory: picks an interpreter for the configured model
//   - HTTPInterpreter: generic chat-completion client driven by the model's APIFormat
//   - HeuristicInterpreter: offline keyword rules used when no API key is available
//   - CachedInterpreter: reuses recent interpretations of identical requests
//
// All provider-specific behavior is controlled through the model's APIFormat configuration,
// so no provider needs its own adapter.
package ai

import (
	"fmt"
	"net/http"
	"os"

	"github.com/doeshing/genosma/internal/domain"
	"github.com/doeshing/genosma/internal/ports"
)

// Factory creates interpreters based on configuration. It keeps a single
// HTTP client shared across all of them.
type Factory struct {
	httpClient *http.Client
	lookupEnv  func(string) string
}

// NewFactory creates a new factory with a configured HTTP client.
func NewFactory() *Factory {
	return &Factory{
		httpClient: &http.Client{Timeout: domain.DefaultHTTPClientTimeout},
		lookupEnv:  os.Getenv,
	}
}

// ForModel creates an HTTP interpreter for any model definition.
func (f *Factory) ForModel(model domain.ModelDefinition) *HTTPInterpreter {
	return NewHTTPInterpreter(model, f.httpClient, f.lookupEnv)
}

// ForConfig returns the interpreter for the configured default model. It
// falls back to the offline heuristic interpreter when the user asked for
// offline mode or the model's API key is missing.
func (f *Factory) ForConfig(cfg domain.Config) (ports.Interpreter, error) {
	if cfg.Preferences.Offline {
		return NewHeuristicInterpreter(), nil
	}
	model, err := cfg.GetDefaultModel()
	if err != nil {
		return nil, fmt.Errorf("select model: %w", err)
	}
	if !model.HasCredentials(f.lookupEnv) {
		return NewHeuristicInterpreter(), nil
	}
	return f.ForModel(model), nil
}
