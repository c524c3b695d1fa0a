package ai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/doeshing/genosma/internal/domain"
	"github.com/doeshing/genosma/internal/ports"
)

// templateData is available to the built-in prompts and to any custom
// system messages configured on the model.
//
// Template Variables Available:
//   - {{.Request}}: the user's request text
//   - {{.WorkingDir}}, {{.HomeDir}}, {{.Shell}}, {{.OS}}, {{.Distro}}, {{.User}}
//   - {{.Files}}: comma-separated list of files in the working directory
//   - {{.AvailableTools}}: comma-separated list of installed CLI tools
//   - {{.GitStatus}}: git repository summary
type templateData struct {
	Request        string
	Clarification  string
	WorkingDir     string
	HomeDir        string
	Shell          string
	OS             string
	Distro         string
	User           string
	Files          string
	AvailableTools string
	GitStatus      string
	Intent         string
	Snippets       []domain.SearchSnippet
	Failure        *ports.DraftFailure
	Forbidden      []string
}

const interpretSystemPrompt = `You are Genosma, a careful assistant that turns requests into Linux shell work.
Classify the request. Respond with a single JSON object and nothing else:
{
  "intent": "one sentence describing what the user wants",
  "task_type": "filesystem|installation|system_config|development|other",
  "complexity": "simple|moderate|complex",
  "requirements": ["tools or packages the task depends on"],
  "risks": ["anything that could damage the system or data"],
  "missing_context": false,
  "clarification_question": ""
}
Set "missing_context" to true when you would need documentation you do not know.
Only fill "clarification_question" when the request cannot be carried out without an answer.
Host:
- Directory: {{.WorkingDir}}
- Shell: {{.Shell}}
- OS: {{.OS}}{{if .Distro}} ({{.Distro}}){{end}}
{{if .AvailableTools}}- Tools: {{.AvailableTools}}
{{end}}{{if .GitStatus}}- Git: {{.GitStatus}}
{{end}}`

const interpretUserPrompt = `Request: {{.Request}}{{if .Clarification}}
Clarification from the user: {{.Clarification}}{{end}}`

const draftSystemPrompt = `You are Genosma, a careful assistant that writes Linux shell plans.
Produce the smallest ordered list of shell commands that fulfils the request.
Each command runs with "sh -c" in {{.WorkingDir}}; do not rely on state from earlier commands except the filesystem.
Prefer commands that stay inside {{.HomeDir}} or the working directory. Never use sudo unless the task requires it.
Respond with a single JSON object and nothing else:
{"steps": [{"command": "...", "description": "...", "optional": false}]}
Mark a step optional only if the task still succeeds when it fails.
Host:
- Shell: {{.Shell}}
- OS: {{.OS}}{{if .Distro}} ({{.Distro}}){{end}}
- User: {{.User}}
{{if .AvailableTools}}- Tools: {{.AvailableTools}}
{{end}}{{if .Files}}- Files: {{.Files}}
{{end}}`

const draftUserPrompt = `Request: {{.Request}}
Interpretation: {{.Intent}}
{{range .Snippets}}Reference ({{.Title}}): {{.Content}}
{{end}}{{with .Failure}}The plan failed and must be revised.
Failed command: {{.Command}}
Error: {{.Error}}{{if .TimedOut}} (the command timed out){{end}}
{{if .Completed}}Already completed, do not repeat: {{join .Completed "; "}}
{{end}}Remaining steps of the old plan: {{join .Remaining "; "}}
Return only the steps that still need to run.
{{end}}{{if .Forbidden}}Do not use these commands: {{join .Forbidden "; "}}
{{end}}`

var funcs = template.FuncMap{"join": strings.Join}

func interpretMessages(model domain.ModelDefinition, req ports.InterpretRequest) ([]domain.PromptMessage, error) {
	data := buildTemplateData(req.Text, req.Context)
	data.Clarification = req.Clarification
	return renderMessages(model, data, interpretSystemPrompt, interpretUserPrompt)
}

func draftMessages(model domain.ModelDefinition, req ports.DraftRequest) ([]domain.PromptMessage, error) {
	data := buildTemplateData(req.Text, req.Context)
	intent, err := json.Marshal(req.Intent)
	if err != nil {
		return nil, err
	}
	data.Intent = string(intent)
	data.Snippets = req.Snippets
	data.Failure = req.Failure
	data.Forbidden = req.Forbidden
	return renderMessages(model, data, draftSystemPrompt, draftUserPrompt)
}

// renderMessages builds [system, custom system..., user]. Custom messages
// configured on the model are rendered with the same data.
func renderMessages(model domain.ModelDefinition, data templateData, system, user string) ([]domain.PromptMessage, error) {
	systemText, err := executeTemplate(system, data)
	if err != nil {
		return nil, err
	}
	messages := []domain.PromptMessage{{Role: "system", Content: systemText}}
	for _, extra := range model.Prompt {
		content, err := executeTemplate(extra.Content, data)
		if err != nil {
			return nil, fmt.Errorf("model prompt: %w", err)
		}
		messages = append(messages, domain.PromptMessage{Role: extra.Role, Content: content})
	}
	userText, err := executeTemplate(user, data)
	if err != nil {
		return nil, err
	}
	return append(messages, domain.PromptMessage{Role: "user", Content: userText}), nil
}

func buildTemplateData(request string, ctx domain.ContextSnapshot) templateData {
	return templateData{
		Request:        strings.TrimSpace(request),
		WorkingDir:     ctx.WorkingDir,
		HomeDir:        ctx.HomeDir,
		Shell:          ctx.Shell,
		OS:             ctx.OS,
		Distro:         ctx.Distro,
		User:           ctx.User,
		Files:          filesSummary(ctx.Files),
		AvailableTools: strings.Join(ctx.AvailableTools, ", "),
		GitStatus:      gitSummary(ctx.Git),
	}
}

func filesSummary(files []domain.FileInfo) string {
	if len(files) == 0 {
		return ""
	}
	names := make([]string, 0, len(files))
	for _, file := range files {
		names = append(names, file.Path)
	}
	return strings.Join(names, ", ")
}

func gitSummary(status *domain.GitStatus) string {
	if status == nil {
		return ""
	}
	return fmt.Sprintf("branch %s, modified %d, untracked %d", status.Branch, status.ModifiedCount, status.UntrackedCount)
}

func executeTemplate(raw string, data templateData) (string, error) {
	tmpl, err := template.New("prompt").Funcs(funcs).Parse(raw)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}
