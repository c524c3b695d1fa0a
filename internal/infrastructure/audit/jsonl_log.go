// Package audit persists audit records as JSON lines.
package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/doeshing/genosma/internal/domain"
	"github.com/doeshing/genosma/internal/pkg/filesystem"
	"github.com/doeshing/genosma/internal/ports"
)

// JSONLLog appends every audit record to a single file.
type JSONLLog struct {
	path string
	mu   sync.Mutex
}

// ResolvePath returns the configured log path, defaulting to
// ~/.genosma/audit/audit.jsonl.
func ResolvePath(cfg domain.Config) string {
	if cfg.Audit.Path != "" {
		return filesystem.ExpandPath(cfg.Audit.Path)
	}
	return filesystem.DataPath("audit", "audit.jsonl")
}

// NewJSONLLog creates a log writing to path.
func NewJSONLLog(path string) *JSONLLog {
	return &JSONLLog{path: path}
}

// Write implements ports.AuditSink.
func (l *JSONLLog) Write(ctx context.Context, record domain.AuditRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(l.path), domain.DirectoryPermissions); err != nil {
		return err
	}
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, domain.SecureFilePermissions)
	if err != nil {
		return err
	}
	defer file.Close()
	_, err = file.Write(append(data, '\n'))
	return err
}

// Records returns the last limit records, optionally for one run only.
// A limit of zero returns everything.
func (l *JSONLLog) Records(ctx context.Context, runID string, limit int) ([]domain.AuditRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	file, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var records []domain.AuditRecord
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		var rec domain.AuditRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}
		if runID != "" && rec.RunID != runID {
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}
	return records, nil
}

// Path returns the backing file path.
func (l *JSONLLog) Path() string {
	return l.path
}

var _ ports.AuditLog = (*JSONLLog)(nil)
