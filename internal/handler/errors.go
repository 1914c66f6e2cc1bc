package handler // handler defines the HTTP handlers of the API

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/aether/internal/completion"
	"github.com/iliyamo/aether/internal/repository"
	"github.com/iliyamo/aether/internal/service"
)

// API error codes returned in JSON {"error": "...", "code": "..."} for
// stable client handling.
const (
	ErrCodeInvalidRequest      = "invalid_request"
	ErrCodeUnauthorized        = "unauthorized"
	ErrCodeInsufficientCredits = "insufficient_credits"
	ErrCodeNotFound            = "not_found"
	ErrCodeRevisionInProgress  = "revision_in_progress"
	ErrCodeGenerationFailed    = "generation_failed"
	ErrCodeGenerationRunning   = "generation_running"
	ErrCodeInternal            = "internal_error"
)

func writeErr(c echo.Context, status int, code, msg string) error {
	return c.JSON(status, echo.Map{"error": msg, "code": code})
}

// classify maps a domain error to its HTTP status, code and client message.
func classify(err error) (status int, code, msg string) {
	var pe *completion.ProviderError
	switch {
	case errors.Is(err, service.ErrEmptyPrompt):
		return http.StatusBadRequest, ErrCodeInvalidRequest, err.Error()
	case errors.Is(err, repository.ErrProjectNotFound):
		return http.StatusNotFound, ErrCodeNotFound, "project not found"
	case errors.Is(err, repository.ErrVersionNotFound):
		return http.StatusNotFound, ErrCodeNotFound, "version not found"
	case errors.Is(err, repository.ErrUserNotFound):
		return http.StatusNotFound, ErrCodeNotFound, "user not found"
	case errors.Is(err, repository.ErrInsufficientCredits):
		return http.StatusPaymentRequired, ErrCodeInsufficientCredits, "not enough credits, try again tomorrow"
	case errors.Is(err, service.ErrRevisionInProgress):
		return http.StatusConflict, ErrCodeRevisionInProgress, err.Error()
	case errors.As(err, &pe), errors.Is(err, completion.ErrNoUsableResponse), errors.Is(err, service.ErrEmptyCode):
		return http.StatusBadGateway, ErrCodeGenerationFailed, "website generation failed, your credits were refunded"
	case errors.Is(err, context.Canceled):
		return http.StatusAccepted, ErrCodeGenerationRunning, "generation continues in the background, poll the project for the result"
	default:
		return http.StatusInternalServerError, ErrCodeInternal, "internal server error"
	}
}

// respondErr writes err as JSON, logging anything that is not the client's
// fault.
func respondErr(c echo.Context, log zerolog.Logger, err error) error {
	status, code, msg := classify(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	}
	return writeErr(c, status, code, msg)
}
