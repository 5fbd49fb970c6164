package entity

// HistoryCapacity is the number of turn summaries kept in RecentHistory.
const HistoryCapacity = 10

// Environment describes where the screenshots come from.
type Environment struct {
	Browser string `json:"browser,omitempty"`
	OS      string `json:"os,omitempty"`
	Locale  string `json:"locale,omitempty"`
	Profile string `json:"profile,omitempty"`
}

// ErrorState tracks the last failed turn and the retries spent on the current goal.
type ErrorState struct {
	HasError                 bool    `json:"has_error"`
	LastErrorMessage         *string `json:"last_error_message"`
	RetryCountForCurrentGoal int     `json:"retry_count_for_current_goal"`
}

// HistoryEntry summarises one completed turn.
type HistoryEntry struct {
	Step       int          `json:"step"`
	Goal       string       `json:"goal"`
	Action     ActionType   `json:"action"`
	Target     string       `json:"target"`
	Coords     Coords       `json:"coords"`
	TextInput  string       `json:"text_input"`
	Status     ActionStatus `json:"status"`
	Screenshot string       `json:"screenshot,omitempty"`
}

// SessionContext is the per-run state carried by the caller across turns.
// It is updated only through the session package, which returns new values.
type SessionContext struct {
	SessionID      string         `json:"session_id"`
	LoopStep       int            `json:"loop_step"`
	GlobalGoal     string         `json:"global_goal"`
	CurrentSubgoal string         `json:"current_subgoal"`
	LastScreenshot string         `json:"last_screenshot"`
	LastAction     *Action        `json:"last_action"`
	RecentHistory  []HistoryEntry `json:"recent_history"`
	Environment    Environment    `json:"environment"`
	ErrorState     ErrorState     `json:"error_state"`
}
