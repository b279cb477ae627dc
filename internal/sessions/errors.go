package sessions

import (
	"errors"
	"net/http"
)

// Domain errors for session operations.
var (
	ErrNotFound          = errors.New("session not found")
	ErrDuplicate         = errors.New("session already exists")
	ErrInvalidSession    = errors.New("unit_code, rto_code and a valid document_type are required")
	ErrInvalidState      = errors.New("unknown session state")
	ErrInvalidTransition = errors.New("invalid session state transition")
	ErrIncomplete        = errors.New("session has outstanding requirements")
)

// MapHTTPStatus maps session domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicate), errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrIncomplete):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidSession), errors.Is(err, ErrInvalidState):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
