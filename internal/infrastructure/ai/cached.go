package ai

import (
	"context"

	"github.com/doeshing/genosma/internal/domain"
	"github.com/doeshing/genosma/internal/infrastructure/cache"
	"github.com/doeshing/genosma/internal/ports"
)

// CachedInterpreter reuses interpretations of recently seen requests.
// Drafting is never cached: plans depend on host state and failures.
type CachedInterpreter struct {
	inner  ports.Interpreter
	cache  ports.CacheRepository
	logger ports.Logger
}

// NewCachedInterpreter wraps inner with a cache.
func NewCachedInterpreter(inner ports.Interpreter, repo ports.CacheRepository, logger ports.Logger) *CachedInterpreter {
	return &CachedInterpreter{inner: inner, cache: repo, logger: logger}
}

// Name implements ports.Interpreter.
func (c *CachedInterpreter) Name() string {
	return c.inner.Name()
}

// Interpret implements ports.Interpreter. Clarified requests bypass the cache.
func (c *CachedInterpreter) Interpret(ctx context.Context, req ports.InterpretRequest) (domain.Intent, error) {
	if req.Clarification != "" {
		return c.inner.Interpret(ctx, req)
	}
	key := cache.Key(c.inner.Name(), req.Text)
	if entry, ok, err := c.cache.Get(key); err == nil && ok {
		c.debug("interpretation cache hit", key)
		return entry.Intent, nil
	}

	intent, err := c.inner.Interpret(ctx, req)
	if err != nil {
		return domain.Intent{}, err
	}
	if err := c.cache.Set(domain.CacheEntry{
		Key:     key,
		Request: req.Text,
		Intent:  intent,
		Model:   c.inner.Name(),
	}); err != nil && c.logger != nil {
		c.logger.Warn("interpretation cache write failed", map[string]interface{}{"error": err.Error()})
	}
	return intent, nil
}

// DraftSteps implements ports.Interpreter.
func (c *CachedInterpreter) DraftSteps(ctx context.Context, req ports.DraftRequest) ([]domain.StepDraft, error) {
	return c.inner.DraftSteps(ctx, req)
}

func (c *CachedInterpreter) debug(msg, key string) {
	if c.logger != nil {
		c.logger.Debug(msg, map[string]interface{}{"key": key})
	}
}

var _ ports.Interpreter = (*CachedInterpreter)(nil)
