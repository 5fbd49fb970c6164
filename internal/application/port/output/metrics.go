package output

import "time"

type TurnOutcome string

const (
	OutcomeSuccess         TurnOutcome = "success"
	OutcomeProviderError   TurnOutcome = "provider_error"
	OutcomeValidationError TurnOutcome = "validation_error"
	OutcomeCanceled        TurnOutcome = "canceled"
)

type MetricsPort interface {
	ObserveTurn(outcome TurnOutcome)
	ObserveModelCall(provider string, d time.Duration)
}
