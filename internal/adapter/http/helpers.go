package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"nav-agent/internal/application/port/output"
	"nav-agent/internal/domain/entity"
)

// readJSON decodes a JSON request body with a size limit.
func readJSON[T any](w http.ResponseWriter, r *http.Request, bodyLimit int64) (T, bool) {
	var v T
	r.Body = http.MaxBytesReader(w, r.Body, bodyLimit)
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		} else {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		}
		return v, false
	}
	return v, true
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

// statusFor maps a failed turn onto the HTTP status the caller sees.
func statusFor(err error) int {
	var pe *entity.ProviderError
	var ve *entity.ValidationError
	var ce *entity.ConfigurationError
	switch {
	case errors.Is(err, entity.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.As(err, &pe):
		switch pe.Kind {
		case entity.ProviderRateLimited:
			return http.StatusTooManyRequests
		case entity.ProviderTimeout:
			return http.StatusGatewayTimeout
		case entity.ProviderRefused:
			return http.StatusUnprocessableEntity
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	case errors.As(err, &ve):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &ce):
		return http.StatusInternalServerError
	}
	var te *entity.TurnError
	if errors.As(err, &te) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeTurnError(w http.ResponseWriter, log output.LoggerPort, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error("Turn request failed", "error", err)
		writeError(w, status, "internal server error")
		return
	}
	writeError(w, status, err.Error())
}
