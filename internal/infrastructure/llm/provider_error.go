// Package llm holds what the vision model adapters share.
package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"net"
	"net/http"

	"nav-agent/internal/domain/entity"
)

// NewProviderError classifies a failed call. message must be the provider's
// own text; it is passed through unmodified.
func NewProviderError(provider string, status int, message string, err error) *entity.ProviderError {
	if message == "" && err != nil {
		message = err.Error()
	}
	return &entity.ProviderError{
		Provider:   provider,
		Kind:       classify(status, err),
		StatusCode: status,
		Message:    message,
		Err:        err,
	}
}

func classify(status int, err error) entity.ProviderErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return entity.ProviderTimeout
	}
	switch status {
	case http.StatusTooManyRequests:
		return entity.ProviderRateLimited
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return entity.ProviderTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return entity.ProviderTimeout
		}
		return entity.ProviderNetwork
	}
	if status == 0 && err != nil {
		return entity.ProviderNetwork
	}
	return entity.ProviderUnknown
}

func Refused(provider, reason string) *entity.ProviderError {
	return &entity.ProviderError{Provider: provider, Kind: entity.ProviderRefused, Message: reason}
}

func InvalidResponse(provider, reason string) *entity.ProviderError {
	return &entity.ProviderError{Provider: provider, Kind: entity.ProviderInvalidResponse, Message: reason}
}

func DataURL(shot entity.Screenshot) string {
	return "data:" + shot.MimeType + ";base64," + base64.StdEncoding.EncodeToString(shot.Data)
}
