package input

import (
	"context"

	"nav-agent/internal/domain/entity"
)

type RunRequest struct {
	StartURL     string
	Goal         string
	PlannedSteps []string
	SessionID    string
	Environment  entity.Environment
}

// TaskExecutor drives a whole run: it owns the session context and decides
// when to retry.
type TaskExecutor interface {
	Execute(ctx context.Context, req RunRequest) (*entity.Workflow, error)
}
