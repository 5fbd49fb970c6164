package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"nav-agent/internal/domain/entity"
)

func Encode(c entity.SessionContext) (string, error) {
	c = clone(c)
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode session context: %w", err)
	}
	return string(data), nil
}

// Decode parses a wire context. Absent fields take their defaults, an
// over-long history keeps only its newest entries. A last_action or history
// entry that no validated Action could have produced is rejected.
func Decode(wire string) (entity.SessionContext, error) {
	c := entity.SessionContext{}
	if strings.TrimSpace(wire) != "" {
		if err := json.Unmarshal([]byte(wire), &c); err != nil {
			return entity.SessionContext{}, fmt.Errorf("%w: context is not a valid session context: %v", entity.ErrInvalidRequest, err)
		}
	}
	c = normalize(c)
	if err := checkActions(c); err != nil {
		return entity.SessionContext{}, fmt.Errorf("%w: %v", entity.ErrInvalidRequest, err)
	}
	return c, nil
}

// Resolve builds the context for a turn from the wire form and the request's
// session id. A missing id on both sides starts a new session; disagreeing ids
// are rejected because a session id never changes.
func Resolve(wire, sessionID string) (entity.SessionContext, error) {
	c, err := Decode(wire)
	if err != nil {
		return entity.SessionContext{}, err
	}
	switch {
	case c.SessionID == "" && sessionID == "":
		c.SessionID = NewID()
	case c.SessionID == "":
		c.SessionID = sessionID
	case sessionID != "" && sessionID != c.SessionID:
		return entity.SessionContext{}, fmt.Errorf("%w: session_id %q does not match context session_id %q",
			entity.ErrInvalidRequest, sessionID, c.SessionID)
	}
	return c, nil
}

func normalize(c entity.SessionContext) entity.SessionContext {
	if c.LoopStep < 1 {
		c.LoopStep = 1
	}
	if c.RecentHistory == nil {
		c.RecentHistory = []entity.HistoryEntry{}
	}
	if over := len(c.RecentHistory) - entity.HistoryCapacity; over > 0 {
		c.RecentHistory = c.RecentHistory[over:]
	}
	if c.ErrorState.RetryCountForCurrentGoal < 0 {
		c.ErrorState.RetryCountForCurrentGoal = 0
	}
	return c
}

func checkActions(c entity.SessionContext) error {
	if a := c.LastAction; a != nil {
		if err := checkAction(a.Action, a.Status, a.Coords, a.TextInput); err != nil {
			return fmt.Errorf("last_action: %w", err)
		}
	}
	for i, h := range c.RecentHistory {
		if err := checkAction(h.Action, h.Status, h.Coords, h.TextInput); err != nil {
			return fmt.Errorf("recent_history[%d]: %w", i, err)
		}
	}
	return nil
}

func checkAction(kind entity.ActionType, status entity.ActionStatus, at entity.Coords, text string) error {
	switch {
	case !kind.Valid():
		return fmt.Errorf("unknown action %q", kind)
	case !status.Valid():
		return fmt.Errorf("unknown status %q", status)
	case !at.InRange():
		return fmt.Errorf("coords (%d, %d) outside [0, %d]", at.X, at.Y, entity.CoordMax)
	case kind == entity.ActionTypeText && strings.TrimSpace(text) == "":
		return errors.New("text_input must be non-empty when action is TYPE")
	case kind != entity.ActionTypeText && text != "":
		return errors.New("text_input must be empty unless action is TYPE")
	}
	return nil
}
