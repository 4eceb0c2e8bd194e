// Package skill provides workspace skill file generation for agents.
package skill

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/template"
)

const skillTemplate = `---
name: status-relay-workspace
description: Workspace-specific context for the Status relay accounts
---

# Status Relay Workspace

Auto-generated skill with workspace-specific context.

## Accounts

| Name | Port | Public Key |
|------|------|------------|
{{- range .Accounts}}
| {{.Name}} | {{.Port}} | {{.PublicKey}} |
{{- end}}
{{range .Accounts}}
## Chats ({{.Name}})

| ID | Type | Name |
|----|------|------|
{{- range .Chats}}
| {{.ID}} | {{.Type}} | {{.Name}} |
{{- end}}
{{end}}
## Quick Commands

` + "```" + `bash
# List chats for an account
status-relay chats -a {{.FirstAccount}}

# Show recent messages (chat id or fuzzy name)
status-relay messages <chat> --since "2h ago"

# Send a direct message
status-relay send <chat> "message text"

# Run the relay gateway for all accounts
status-relay run
` + "```" + `
`

// ChatInfo is one chat row in the generated skill.
type ChatInfo struct {
	ID   string
	Type string
	Name string
}

// AccountInfo is one account section in the generated skill.
type AccountInfo struct {
	Name      string
	Port      int
	PublicKey string
	Chats     []ChatInfo
}

// WorkspaceData holds the data needed to generate a workspace skill.
type WorkspaceData struct {
	Accounts []AccountInfo
}

// FirstAccount returns the name of the first account, for command
// examples in the template.
func (d WorkspaceData) FirstAccount() string {
	if len(d.Accounts) == 0 {
		return "default"
	}
	return d.Accounts[0].Name
}

// Render writes the workspace skill markdown to w.
func Render(w io.Writer, data WorkspaceData) error {
	tmpl, err := template.New("skill").Parse(skillTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}
	return tmpl.Execute(w, data)
}

// WriteWorkspaceSkill renders the skill to its well-known path,
// creating the directory as needed.
func WriteWorkspaceSkill(data WorkspaceData) (string, error) {
	path, err := SkillPath()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create skill directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create skill file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := Render(f, data); err != nil {
		return "", fmt.Errorf("failed to write skill: %w", err)
	}
	return path, nil
}

// SkillPath returns the path where the workspace skill is stored.
func SkillPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".claude", "skills", "status-relay-workspace", "SKILL.md"), nil
}
