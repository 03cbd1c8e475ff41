package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"trivia-quiz-service/internal/domain"
)

type apiResponse struct {
	Data  interface{} `json:"data,omitempty"`
	Error *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(apiResponse{Data: data}); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("failed to encode response")
	}
}

func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(apiResponse{Error: &apiError{Code: code, Message: message}}); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("failed to encode error response")
	}
}

// respondDomainError maps a service error onto its HTTP status and error code.
func respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)
	message := err.Error()
	if status == http.StatusGatewayTimeout {
		hlog.FromRequest(r).Warn().Err(err).Msg("request abandoned")
	} else if status >= http.StatusInternalServerError {
		hlog.FromRequest(r).Error().Err(err).Str("code", code).Msg("request failed")
		if status == http.StatusInternalServerError {
			message = "internal server error"
		}
	}
	respondError(w, r, status, code, message)
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "INVALID_INPUT"
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound, "SESSION_NOT_FOUND"
	case errors.Is(err, domain.ErrGameNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrNoTemplate):
		return http.StatusUnprocessableEntity, "NO_TEMPLATE"
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE"
	case errors.Is(err, domain.ErrMalformedUpstreamData):
		return http.StatusBadGateway, "UPSTREAM_MALFORMED"
	case errors.Is(err, domain.ErrPersistence):
		return http.StatusInternalServerError, "PERSISTENCE_FAILED"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "TIMEOUT"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}
