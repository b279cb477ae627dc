package validation

import (
	"errors"
	"net/http"

	"github.com/JaimeStill/rtoval/internal/prompts"
	"github.com/JaimeStill/rtoval/internal/requirements"
	"github.com/JaimeStill/rtoval/internal/results"
	"github.com/JaimeStill/rtoval/internal/sessions"
)

// Error taxonomy. Transient errors are retried and then downgraded to
// requirement failures. Requirement failures become failed result rows.
// Configuration and integrity errors, and expired handles, fail the session.
var (
	ErrTransient         = errors.New("transient provider failure")
	ErrRequirementFailed = errors.New("requirement validation failed")
	ErrConfiguration     = errors.New("configuration error")
	ErrSessionIntegrity  = errors.New("session integrity violation")
	ErrHandleExpired     = errors.New("document handle expired")
)

// Runner errors.
var (
	ErrSessionBusy    = errors.New("session is already queued or running")
	ErrQueueFull      = errors.New("validation queue is full")
	ErrNotRunnable    = errors.New("session cannot be validated in its current state")
	ErrNoDocuments    = errors.New("session has no documents")
	ErrInvalidRequest = errors.New("requirement_type and requirement_number are required")
)

// MapHTTPStatus maps validation errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, sessions.ErrNotFound),
		errors.Is(err, requirements.ErrNotFound),
		errors.Is(err, results.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrSessionBusy),
		errors.Is(err, ErrNotRunnable),
		errors.Is(err, ErrHandleExpired),
		errors.Is(err, ErrNoDocuments),
		errors.Is(err, sessions.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, ErrQueueFull):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrConfiguration),
		errors.Is(err, prompts.ErrNoDefault),
		errors.Is(err, prompts.ErrMultipleDefaults):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, requirements.ErrInvalidType),
		errors.Is(err, requirements.ErrInvalidDocumentType):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
