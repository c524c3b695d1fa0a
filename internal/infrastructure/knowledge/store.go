// Package knowledge stores requests together with the plans that satisfied
// them, and finds the closest earlier request for reuse.
package knowledge

import (
	"context"
	"encoding/json"
	"io"

	"github.com/doeshing/genosma/internal/domain"
	"github.com/doeshing/genosma/internal/pkg/filesystem"
	"github.com/doeshing/genosma/internal/ports"
)

// ResolvePath returns the configured store path or the backend default.
func ResolvePath(cfg domain.Config) string {
	if cfg.Knowledge.Path != "" {
		return filesystem.ExpandPath(cfg.Knowledge.Path)
	}
	if cfg.GetKnowledgeBackend() == domain.KnowledgeBackendJSONL {
		return filesystem.DataPath("knowledge", "knowledge.jsonl")
	}
	return filesystem.DataPath("knowledge", "knowledge.db")
}

// Open builds the configured repository. When SQLite cannot be opened the
// store falls back to a jsonl file next to the database.
func Open(cfg domain.Config, logger ports.Logger) (ports.KnowledgeRepository, error) {
	path := ResolvePath(cfg)
	if cfg.GetKnowledgeBackend() == domain.KnowledgeBackendJSONL {
		return NewFileStore(path), nil
	}
	store, err := NewSQLiteStore(path)
	if err != nil {
		fallback := path + ".jsonl"
		if logger != nil {
			logger.Warn("sqlite knowledge store unavailable, using jsonl", map[string]interface{}{
				"path":     path,
				"fallback": fallback,
				"error":    err.Error(),
			})
		}
		return NewFileStore(fallback), nil
	}
	return store, nil
}

// Export writes every entry, oldest first, as one JSON object per line.
func Export(ctx context.Context, repo ports.KnowledgeRepository, w io.Writer) (int, error) {
	entries, err := repo.List(ctx, 0)
	if err != nil {
		return 0, err
	}
	enc := json.NewEncoder(w)
	for i := len(entries) - 1; i >= 0; i-- {
		if err := enc.Encode(entries[i]); err != nil {
			return len(entries) - 1 - i, err
		}
	}
	return len(entries), nil
}
