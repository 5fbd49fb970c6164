package input

import (
	"context"

	"nav-agent/internal/domain/entity"
)

type TurnRequest struct {
	Screenshot entity.Screenshot
	Goal       string
	Context    entity.SessionContext
}

type TurnResult struct {
	Action  entity.Action
	Context entity.SessionContext
}

// TurnTaker runs one agent turn. On failure the error is an *entity.TurnError
// carrying the context with the failure recorded, or wraps
// entity.ErrInvalidRequest when the request never reached the model.
type TurnTaker interface {
	TakeTurn(ctx context.Context, req TurnRequest) (*TurnResult, error)
}
