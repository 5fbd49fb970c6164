package output

import (
	"context"

	"nav-agent/internal/domain/entity"
)

// WorkflowExporter persists a finished run and reports where it went.
type WorkflowExporter interface {
	Export(ctx context.Context, wf *entity.Workflow) (string, error)
}
