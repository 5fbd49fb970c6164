// Package session implements the bookkeeping of a multi-turn navigation run.
//
// Every operation takes a SessionContext by value and returns a new one; slices
// are cloned so that the input is never mutated. There is no session table:
// the caller owns the context and passes it back on every turn.
package session

import (
	"slices"

	"nav-agent/internal/domain/entity"

	"github.com/google/uuid"
)

const idPrefix = "nav-"

func NewID() string {
	return idPrefix + uuid.NewString()
}

// New returns a fresh context. An empty sessionID gets a generated one.
func New(sessionID string) entity.SessionContext {
	if sessionID == "" {
		sessionID = NewID()
	}
	return entity.SessionContext{
		SessionID:     sessionID,
		LoopStep:      1,
		RecentHistory: []entity.HistoryEntry{},
	}
}

// Advance records a completed turn: the step counter moves by one, the action
// becomes LastAction and a summary is pushed onto the bounded history.
func Advance(c entity.SessionContext, action entity.Action, sentGoal, screenshotRef string) entity.SessionContext {
	next := clone(c)

	entry := entity.HistoryEntry{
		Step:       c.LoopStep,
		Goal:       sentGoal,
		Action:     action.Action,
		Target:     action.Target,
		Coords:     action.Coords,
		TextInput:  action.TextInput,
		Status:     action.Status,
		Screenshot: screenshotRef,
	}
	next.RecentHistory = append(next.RecentHistory, entry)
	if over := len(next.RecentHistory) - entity.HistoryCapacity; over > 0 {
		next.RecentHistory = slices.Clone(next.RecentHistory[over:])
	}

	last := action
	next.LastAction = &last
	next.LoopStep = c.LoopStep + 1
	if screenshotRef != "" {
		next.LastScreenshot = screenshotRef
	}
	if next.GlobalGoal == "" {
		next.GlobalGoal = sentGoal
	}
	next.ErrorState.HasError = false
	return next
}

// RecordError flags the failure and spends one attempt of the current goal's budget.
func RecordError(c entity.SessionContext, message string) entity.SessionContext {
	next := clone(c)
	msg := message
	next.ErrorState.HasError = true
	next.ErrorState.LastErrorMessage = &msg
	next.ErrorState.RetryCountForCurrentGoal = c.ErrorState.RetryCountForCurrentGoal + 1
	return next
}

// ClearErrorOnGoalChange switches to subgoal. A different subgoal starts with a
// fresh attempt budget; the same subgoal leaves the error state untouched.
func ClearErrorOnGoalChange(c entity.SessionContext, subgoal string) entity.SessionContext {
	if subgoal == c.CurrentSubgoal {
		return c
	}
	next := clone(c)
	next.CurrentSubgoal = subgoal
	next.ErrorState.HasError = false
	next.ErrorState.RetryCountForCurrentGoal = 0
	return next
}

func ReplaceGlobalGoal(c entity.SessionContext, goal string) entity.SessionContext {
	next := clone(c)
	next.GlobalGoal = goal
	return next
}

func WithEnvironment(c entity.SessionContext, env entity.Environment) entity.SessionContext {
	next := clone(c)
	next.Environment = env
	return next
}

func clone(c entity.SessionContext) entity.SessionContext {
	next := c
	if c.RecentHistory == nil {
		next.RecentHistory = []entity.HistoryEntry{}
	} else {
		next.RecentHistory = slices.Clone(c.RecentHistory)
	}
	if c.LastAction != nil {
		a := *c.LastAction
		next.LastAction = &a
	}
	if c.ErrorState.LastErrorMessage != nil {
		m := *c.ErrorState.LastErrorMessage
		next.ErrorState.LastErrorMessage = &m
	}
	return next
}
