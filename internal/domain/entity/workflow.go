package entity

import "time"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusExhausted RunStatus = "step_limit"
)

// Workflow is the exportable record of a run: goal, planned steps, final
// context and every action taken, in order.
type Workflow struct {
	GlobalGoal   string         `json:"global_goal"`
	PlannedSteps []string       `json:"planned_steps"`
	Context      SessionContext `json:"context"`
	Actions      []Action       `json:"actions"`
	Status       RunStatus      `json:"status"`
	Error        string         `json:"error,omitempty"`
	ExportedAt   time.Time      `json:"exported_at"`
}
