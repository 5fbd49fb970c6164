package prompts

import (
	"bytes"
	"fmt"
	"text/template"

	"nav-agent/internal/domain/entity"
	"nav-agent/internal/domain/session"
)

type TurnPromptData struct {
	Goal       string
	GlobalGoal string
	SessionID  string
	LoopStep   int
	LastError  string
	RetryCount int
	Context    string
}

// NewTurnPromptData snapshots the context into the fields the turn template uses.
func NewTurnPromptData(goal string, c entity.SessionContext) (TurnPromptData, error) {
	snapshot, err := session.Encode(c)
	if err != nil {
		return TurnPromptData{}, err
	}

	data := TurnPromptData{
		Goal:       goal,
		SessionID:  c.SessionID,
		LoopStep:   c.LoopStep,
		RetryCount: c.ErrorState.RetryCountForCurrentGoal,
		Context:    snapshot,
	}
	if c.GlobalGoal != goal {
		data.GlobalGoal = c.GlobalGoal
	}
	if c.ErrorState.HasError && c.ErrorState.LastErrorMessage != nil {
		data.LastError = *c.ErrorState.LastErrorMessage
	}
	return data, nil
}

func GenerateTurnPrompt(baseTemplate string, data TurnPromptData) (string, error) {
	tmpl, err := template.New("turn").Option("missingkey=error").Parse(baseTemplate)
	if err != nil {
		return "", fmt.Errorf("parse turn template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render turn template: %w", err)
	}

	return buf.String(), nil
}
