// Package sessions implements validation sessions (validation_detail): one
// isolated run over a unit and its uploaded documents. The stored state
// column moves through guarded transitions; extraction and validation
// statuses and progress are derived on read.
package sessions

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/rtoval/internal/requirements"
)

// Derived extraction and validation status labels.
const (
	StatusPending     = "Pending"
	StatusProcessing  = "Processing"
	StatusCompleted   = "Completed"
	StatusUnderReview = "Under Review"
	StatusFinalised   = "Finalised"
	StatusError       = "Error"
)

// Session is one validation run.
type Session struct {
	ID               uuid.UUID                 `json:"id"`
	UnitCode         string                    `json:"unit_code"`
	RTOCode          string                    `json:"rto_code"`
	DocumentType     requirements.DocumentType `json:"document_type"`
	State            State                     `json:"state"`
	ExtractStatus    string                    `json:"extract_status"`
	ValidationStatus string                    `json:"validation_status"`
	ResultCount      int                       `json:"result_count"`
	ResultTotal      int                       `json:"result_total"`
	ProgressPercent  float64                   `json:"progress_percent"`
	ErrorReason      *string                   `json:"error_reason"`
	CreatedAt        time.Time                 `json:"created_at"`
	UpdatedAt        time.Time                 `json:"updated_at"`
	CompletedAt      *time.Time                `json:"completed_at"`
}

// Derive recomputes the statuses and progress from the stored columns.
func (s *Session) Derive() {
	s.ProgressPercent = Progress(s.ResultCount, s.ResultTotal)

	switch s.State {
	case StatePending:
		s.ExtractStatus, s.ValidationStatus = StatusPending, StatusPending
	case StateProcessing:
		s.ExtractStatus, s.ValidationStatus = StatusProcessing, StatusPending
	case StateUnderReview:
		s.ExtractStatus, s.ValidationStatus = StatusCompleted, StatusUnderReview
	case StateFinalised:
		s.ExtractStatus, s.ValidationStatus = StatusCompleted, StatusFinalised
	case StateError:
		s.ExtractStatus, s.ValidationStatus = StatusError, StatusError
		if s.ResultTotal > 0 {
			s.ExtractStatus = StatusCompleted
		}
	}
}

// Complete reports whether every requirement has a result.
func (s Session) Complete() bool {
	return s.ResultTotal > 0 && s.ResultCount == s.ResultTotal
}

// Progress returns count/total as a percentage rounded to two decimals,
// or 0 while the total is unknown.
func Progress(count, total int) float64 {
	if total <= 0 {
		return 0
	}
	p := float64(count) / float64(total) * 100
	return math.Round(p*100) / 100
}

// CreateCommand carries the data needed to open a session.
type CreateCommand struct {
	UnitCode     string                    `json:"unit_code"`
	RTOCode      string                    `json:"rto_code"`
	DocumentType requirements.DocumentType `json:"document_type"`
}

// Validate checks required fields.
func (c CreateCommand) Validate() error {
	if strings.TrimSpace(c.UnitCode) == "" || strings.TrimSpace(c.RTOCode) == "" {
		return ErrInvalidSession
	}
	if _, err := requirements.ParseDocumentType(string(c.DocumentType)); err != nil {
		return ErrInvalidSession
	}
	return nil
}
