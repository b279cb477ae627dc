package prompts

import (
	"errors"
	"net/http"
)

// Domain errors for prompt operations.
var (
	ErrNotFound         = errors.New("prompt not found")
	ErrDuplicate        = errors.New("prompt already exists")
	ErrInvalidTaskType  = errors.New("task type must be validation or revalidation")
	ErrInvalidPrompt    = errors.New("invalid prompt")
	ErrNoDefault        = errors.New("no active default prompt")
	ErrMultipleDefaults = errors.New("multiple active default prompts")
)

// MapHTTPStatus maps prompt domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrNoDefault):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicate), errors.Is(err, ErrMultipleDefaults):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidTaskType), errors.Is(err, ErrInvalidPrompt):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
