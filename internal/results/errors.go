package results

import (
	"errors"
	"fmt"
	"net/http"
)

// Domain errors for result operations.
var (
	ErrNotFound           = errors.New("result not found")
	ErrDuplicate          = errors.New("result already exists")
	ErrInvalidStatus      = errors.New("status must be Met, Partially Met or Not Met")
	ErrInvalidResult      = errors.New("invalid result")
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionNotWritable = errors.New("session does not accept results")
)

func missing(field string) error {
	return fmt.Errorf("%w: %s is required", ErrInvalidResult, field)
}

// MapHTTPStatus maps result domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicate), errors.Is(err, ErrSessionNotWritable):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidResult), errors.Is(err, ErrInvalidStatus):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
