package requirements

import (
	"errors"
	"net/http"
)

// Domain errors for requirement operations.
var (
	ErrNotFound            = errors.New("requirements not found")
	ErrDuplicate           = errors.New("requirement already exists")
	ErrInvalidType         = errors.New("unknown requirement type")
	ErrInvalidDocumentType = errors.New("document type must be unit or learner_guide")
	ErrInvalidImport       = errors.New("invalid requirement import")
	ErrUnitRequired        = errors.New("unit_code is required")
)

// MapHTTPStatus maps requirement domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidType),
		errors.Is(err, ErrInvalidDocumentType),
		errors.Is(err, ErrInvalidImport),
		errors.Is(err, ErrUnitRequired):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
