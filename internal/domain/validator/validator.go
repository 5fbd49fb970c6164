// Package validator turns untrusted model output into entity.Action values.
//
// Validation is strict and all-or-nothing: the first failing field is
// reported as an *entity.ValidationError and no partial Action is returned.
package validator

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"nav-agent/internal/domain/entity"
)

var requiredFields = []string{"plan", "action", "target", "coords", "text_input", "status"}

// Validate checks, in order: shape and required keys, the action enum, the
// status enum, coordinate range, and the text_input rule for TYPE.
func Validate(raw any) (entity.Action, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return entity.Action{}, fail("$", "must be a JSON object", typeName(raw))
	}

	for _, key := range requiredFields {
		if _, ok := obj[key]; !ok {
			return entity.Action{}, fail(key, "required", nil)
		}
	}

	plan, err := stringField(obj, "plan")
	if err != nil {
		return entity.Action{}, err
	}
	target, err := stringField(obj, "target")
	if err != nil {
		return entity.Action{}, err
	}

	actionStr, err := stringField(obj, "action")
	if err != nil {
		return entity.Action{}, err
	}
	action := entity.ActionType(actionStr)
	if !action.Valid() {
		return entity.Action{}, fail("action", "must be one of "+joinEnum(entity.ActionTypes()), actionStr)
	}

	statusStr, err := stringField(obj, "status")
	if err != nil {
		return entity.Action{}, err
	}
	status := entity.ActionStatus(statusStr)
	if !status.Valid() {
		return entity.Action{}, fail("status", "must be one of "+joinEnum(entity.ActionStatuses()), statusStr)
	}

	coords, err := coordsField(obj["coords"])
	if err != nil {
		return entity.Action{}, err
	}

	textInput, err := stringField(obj, "text_input")
	if err != nil {
		return entity.Action{}, err
	}
	if action == entity.ActionTypeText && strings.TrimSpace(textInput) == "" {
		return entity.Action{}, fail("text_input", "must be non-empty when action is TYPE", nil)
	}
	if action != entity.ActionTypeText && textInput != "" {
		return entity.Action{}, fail("text_input", "must be empty unless action is TYPE", textInput)
	}

	return entity.Action{
		Plan:      plan,
		Action:    action,
		Target:    target,
		Coords:    coords,
		TextInput: textInput,
		Status:    status,
	}, nil
}

func fail(field, constraint string, value any) *entity.ValidationError {
	return &entity.ValidationError{Field: field, Constraint: constraint, Value: value}
}

func stringField(obj map[string]any, key string) (string, error) {
	s, ok := obj[key].(string)
	if !ok {
		return "", fail(key, "must be a string", typeName(obj[key]))
	}
	return s, nil
}

func coordsField(v any) (entity.Coords, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return entity.Coords{}, fail("coords", "must be an object with integer x and y", typeName(v))
	}
	x, err := coordinate(obj, "x")
	if err != nil {
		return entity.Coords{}, err
	}
	y, err := coordinate(obj, "y")
	if err != nil {
		return entity.Coords{}, err
	}
	return entity.Coords{X: x, Y: y}, nil
}

func coordinate(obj map[string]any, axis string) (int, error) {
	field := "coords." + axis
	v, ok := obj[axis]
	if !ok {
		return 0, fail(field, "required", nil)
	}
	n, ok := toInt(v)
	if !ok {
		return 0, fail(field, "must be an integer", v)
	}
	if n < 0 || n > entity.CoordMax {
		return 0, fail(field, fmt.Sprintf("must be within [0, %d]", entity.CoordMax), n)
	}
	return n, nil
}

// toInt accepts integral JSON numbers, including float spellings such as 512.0
// or 5.12e2, and numeric strings. Fractional values are rejected rather than
// rounded. Values outside the int32 range are rejected before conversion.
func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return fromInt64(int64(n))
	case int64:
		return fromInt64(n)
	case float64:
		return fromFloat(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return fromInt64(i)
		}
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return fromFloat(f)
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, false
		}
		return fromInt64(i)
	}
	return 0, false
}

func fromInt64(i int64) (int, bool) {
	if i > math.MaxInt32 || i < math.MinInt32 {
		return 0, false
	}
	return int(i), true
}

func fromFloat(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f > math.MaxInt32 || f < math.MinInt32 {
		return 0, false
	}
	return int(f), true
}

func joinEnum[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, json.Number, int, int64:
		return "number"
	}
	return fmt.Sprintf("%T", v)
}
