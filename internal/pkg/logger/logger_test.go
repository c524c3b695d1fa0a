package logger

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLoggerWritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "genosma.jsonl")
	log, err := New(Options{FilePath: path})
	require.NoError(t, err)

	log.Info("step finished", map[string]interface{}{"ordinal": 1, "exit_code": 0})
	log.Error("step failed", errors.New("boom"), map[string]interface{}{"ordinal": 2})
	require.NoError(t, log.Sync())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []map[string]interface{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec map[string]interface{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		lines = append(lines, rec)
	}
	require.Len(t, lines, 2)
	assert.Equal(t, "step finished", lines[0]["msg"])
	assert.EqualValues(t, 1, lines[0]["ordinal"])
	assert.Equal(t, "boom", lines[1]["error"])
}

func TestNopLoggerAcceptsCalls(t *testing.T) {
	log := NewNop()
	log.Debug("ignored", nil)
	log.Warn("ignored", map[string]interface{}{"k": "v"})
	assert.NoError(t, log.Sync())
}
