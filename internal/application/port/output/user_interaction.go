package output

import (
	"context"

	"nav-agent/internal/domain/entity"
)

type UserInteractionPort interface {
	ShowStep(ctx context.Context, step, maxSteps int, goal string)
	ShowAction(ctx context.Context, action entity.Action)
	ShowTurnError(ctx context.Context, err error, attempt int)
	ShowFinished(ctx context.Context, wf entity.Workflow)
}
