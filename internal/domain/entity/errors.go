package entity

import (
	"errors"
	"fmt"
)

// ErrInvalidRequest marks caller mistakes detected before any model call.
var ErrInvalidRequest = errors.New("invalid request")

// ValidationError reports the first field of a model response that broke the Action schema.
type ValidationError struct {
	Field      string
	Constraint string
	Value      any
}

func (e *ValidationError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("field %q: %s", e.Field, e.Constraint)
	}
	return fmt.Sprintf("field %q: %s (got %v)", e.Field, e.Constraint, e.Value)
}

type ProviderErrorKind string

const (
	ProviderNetwork         ProviderErrorKind = "network"
	ProviderTimeout         ProviderErrorKind = "timeout"
	ProviderRateLimited     ProviderErrorKind = "rate_limit"
	ProviderRefused         ProviderErrorKind = "refused"
	ProviderInvalidResponse ProviderErrorKind = "invalid_response"
	ProviderUnknown         ProviderErrorKind = "unknown"
)

// ProviderError is a failed call to the hosted model. Message is the provider's own text.
type ProviderError struct {
	Provider   string
	Kind       ProviderErrorKind
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (status %d): %s", e.Provider, e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// ConfigurationError means required connection or credential material is missing.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %s", e.Key, e.Reason)
}

type TurnStage string

const (
	StageModel      TurnStage = "model"
	StageValidation TurnStage = "validation"
)

// TurnError is returned by a failed turn. Context already has the failure recorded
// and is what the caller should carry into its next attempt.
type TurnError struct {
	Stage   TurnStage
	Err     error
	Context SessionContext
}

func (e *TurnError) Error() string {
	return fmt.Sprintf("turn failed at %s stage: %v", e.Stage, e.Err)
}

func (e *TurnError) Unwrap() error {
	return e.Err
}
