package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/genosma/internal/domain"
	"github.com/doeshing/genosma/internal/ports"
)

func TestHeuristicDraftSteps(t *testing.T) {
	h := NewHeuristicInterpreter()
	tests := []struct {
		text string
		want []string
	}{
		{"Create a directory named reports", []string{"mkdir -p reports"}},
		{"delete all files in /etc", []string{"rm -rf /etc/*"}},
		{"install nginx", []string{"apt-get install -y nginx"}},
		{"create a folder called build and then list files in build", []string{"mkdir -p build", "ls -la build"}},
		{"show disk usage", []string{"df -h"}},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			drafts, err := h.DraftSteps(context.Background(), ports.DraftRequest{Text: tt.text})
			require.NoError(t, err)
			var got []string
			for _, d := range drafts {
				got = append(got, d.Command)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHeuristicUnknownRequest(t *testing.T) {
	_, err := NewHeuristicInterpreter().DraftSteps(context.Background(), ports.DraftRequest{Text: "compose a haiku"})
	var ierr *domain.InterpretationError
	require.True(t, errors.As(err, &ierr))
	assert.ErrorIs(t, err, errNoRule)
}

func TestHeuristicInterpret(t *testing.T) {
	h := NewHeuristicInterpreter()
	intent, err := h.Interpret(context.Background(), ports.InterpretRequest{Text: "install nginx"})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskInstallation, intent.TaskType)
	assert.NoError(t, intent.Validate())

	_, err = h.Interpret(context.Background(), ports.InterpretRequest{Text: ""})
	assert.ErrorIs(t, err, domain.ErrEmptyRequest)
}

func TestHeuristicRevision(t *testing.T) {
	h := NewHeuristicInterpreter()
	drafts, err := h.DraftSteps(context.Background(), ports.DraftRequest{
		Failure: &ports.DraftFailure{Command: "broken", Remaining: []string{"broken", "ls"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []domain.StepDraft{{Command: "ls"}}, drafts)

	_, err = h.DraftSteps(context.Background(), ports.DraftRequest{
		Failure: &ports.DraftFailure{Command: "broken", Remaining: []string{"broken"}},
	})
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	tests := map[string]domain.TaskType{
		"create a directory named reports": domain.TaskFilesystem,
		"install nginx":                    domain.TaskInstallation,
		"restart the ssh service":          domain.TaskSystemConfig,
		"run the tests in this repo":       domain.TaskDevelopment,
		"tell me a joke":                   domain.TaskOther,
	}
	for text, want := range tests {
		assert.Equal(t, want, classify(text), text)
	}
}
