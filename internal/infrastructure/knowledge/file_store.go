package knowledge

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/doeshing/genosma/internal/domain"
	"github.com/doeshing/genosma/internal/ports"
)

// FileStore appends knowledge entries to a jsonl file.
type FileStore struct {
	path string
	mu   sync.RWMutex
}

// NewFileStore creates a store backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Append implements ports.KnowledgeStore.
func (f *FileStore) Append(ctx context.Context, entry domain.KnowledgeEntry) error {
	if err := validateEntry(entry); err != nil {
		return err
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(f.path), domain.DirectoryPermissions); err != nil {
		return err
	}
	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, domain.LogFilePermissions)
	if err != nil {
		return err
	}
	defer file.Close()
	_, err = file.Write(append(data, '\n'))
	return err
}

// FindSimilar implements ports.KnowledgeStore.
func (f *FileStore) FindSimilar(ctx context.Context, requestText string, threshold float64) (domain.KnowledgeMatch, bool, error) {
	entries, err := f.entries()
	if err != nil {
		return domain.KnowledgeMatch{}, false, err
	}
	return bestMatch(entries, requestText, threshold)
}

// List returns up to limit entries, newest first.
func (f *FileStore) List(ctx context.Context, limit int) ([]domain.KnowledgeEntry, error) {
	entries, err := f.entries()
	if err != nil {
		return nil, err
	}
	out := make([]domain.KnowledgeEntry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		out = append(out, entries[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// entries loads all records (best-effort, unreadable lines are skipped).
func (f *FileStore) entries() ([]domain.KnowledgeEntry, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	file, err := os.Open(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var entries []domain.KnowledgeEntry
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry domain.KnowledgeEntry
		if err := json.Unmarshal(line, &entry); err == nil {
			entries = append(entries, entry)
		}
	}
	return entries, scanner.Err()
}

// Path returns the backing file path.
func (f *FileStore) Path() string {
	return f.path
}

// Close is a no-op; the file is opened per call.
func (f *FileStore) Close() error {
	return nil
}

var _ ports.KnowledgeRepository = (*FileStore)(nil)
