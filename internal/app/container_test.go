package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/genosma/internal/domain"
	"github.com/doeshing/genosma/internal/infrastructure/config"
	"github.com/doeshing/genosma/internal/pkg/logger"
)

func testContainer(t *testing.T, workDir string) *Container {
	t.Helper()
	t.Setenv("GENOSMA_HOME", t.TempDir())
	cfg := config.Default()
	cfg.Risk.RulesFile = ""
	cfg.Risk.WorkDir = workDir
	cfg.Execution.Shell = "/bin/sh"
	return &Container{Config: cfg, Logger: logger.NewNop()}
}

func TestExaminerAndExecutorShareWorkDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	site := filepath.Join(home, "site")
	require.NoError(t, os.Mkdir(site, 0o755))

	c := testContainer(t, "~/site")

	examiner, err := c.Examiner()
	require.NoError(t, err)
	exec := c.Executor()

	assert.Equal(t, site, c.WorkDir())
	assert.Equal(t, site, examiner.WorkDir())
	assert.Equal(t, site, exec.WorkDir())

	// The directory the examiner allows is the one the step really runs in.
	assert.Equal(t, domain.RiskLow, examiner.Assess("rm -rf build").Tier)
	result, err := exec.Execute(context.Background(), domain.ExecutionRequest{
		RunID: "run-1",
		Step:  domain.Step{Ordinal: 1, Command: "pwd", RiskTier: domain.RiskLow},
	})
	require.NoError(t, err)
	want, err := filepath.EvalSymlinks(site)
	require.NoError(t, err)
	got, err := filepath.EvalSymlinks(strings.TrimSpace(result.Stdout))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestWorkDirDefaultsToProcessDir(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)

	c := testContainer(t, "")
	examiner, err := c.Examiner()
	require.NoError(t, err)

	assert.Equal(t, wd, c.WorkDir())
	assert.Equal(t, wd, examiner.WorkDir())
	assert.Equal(t, wd, c.Executor().WorkDir())
}

func TestWorkDirMadeAbsolute(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)

	c := testContainer(t, "testdata/../sandbox")
	examiner, err := c.Examiner()
	require.NoError(t, err)

	want := filepath.Join(wd, "sandbox")
	assert.Equal(t, want, examiner.WorkDir())
	assert.Equal(t, want, c.Executor().WorkDir())
}
