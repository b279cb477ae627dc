// Package results stores one validation verdict per (session, requirement
// type, requirement number) and aggregates them on demand. Rows are written
// only by the validation orchestrator, always through an upsert that also
// recounts session progress.
package results

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/rtoval/internal/requirements"
)

// NoEvidenceCitation is the single citation carried by a failed result.
const NoEvidenceCitation = "No evidence assessed: validation did not complete for this requirement"

// Result is a stored verdict for one requirement of a session.
type Result struct {
	ID                uuid.UUID         `json:"id"`
	SessionID         uuid.UUID         `json:"session_id"`
	RequirementID     int64             `json:"requirement_id"`
	RequirementType   requirements.Type `json:"requirement_type"`
	RequirementNumber string            `json:"requirement_number"`
	RequirementText   string            `json:"requirement_text"`
	Status            Status            `json:"status"`
	Reasoning         string            `json:"reasoning"`
	MappedContent     string            `json:"mapped_content"`
	Citations         []string          `json:"citations"`
	SmartQuestion     string            `json:"smart_question"`
	BenchmarkAnswer   string            `json:"benchmark_answer"`
	Failed            bool              `json:"failed"`
	Error             *string           `json:"error"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// Key identifies the requirement a result belongs to within its session.
type Key struct {
	Type   requirements.Type
	Number string
}

// Key returns the upsert key of the result.
func (r Result) Key() Key {
	return Key{Type: r.RequirementType, Number: r.RequirementNumber}
}

// KeyOf returns the result key for a requirement.
func KeyOf(req requirements.Requirement) Key {
	return Key{Type: req.Type, Number: req.Number}
}

// Verdict is the judgement a provider returns for one requirement.
type Verdict struct {
	Status          Status   `json:"status"`
	Reasoning       string   `json:"reasoning"`
	MappedContent   string   `json:"mapped_content"`
	Citations       []string `json:"citations"`
	SmartQuestion   string   `json:"smart_question"`
	BenchmarkAnswer string   `json:"benchmark_answer"`
}

// Validate checks that every field is present and at least one citation
// carries text.
func (v Verdict) Validate() error {
	if v.Status == "" {
		return missing("status")
	}
	if strings.TrimSpace(v.Reasoning) == "" {
		return missing("reasoning")
	}
	if strings.TrimSpace(v.MappedContent) == "" {
		return missing("mapped_content")
	}
	if strings.TrimSpace(v.SmartQuestion) == "" {
		return missing("smart_question")
	}
	if strings.TrimSpace(v.BenchmarkAnswer) == "" {
		return missing("benchmark_answer")
	}
	for _, c := range v.Citations {
		if strings.TrimSpace(c) != "" {
			return nil
		}
	}
	return missing("citations")
}

// UpsertCommand writes the verdict for one requirement of a session.
type UpsertCommand struct {
	SessionID   uuid.UUID
	Requirement requirements.Requirement
	Verdict     Verdict
	Failed      bool
	Error       *string
}

// Validate checks the command before it reaches the database. Failed rows
// carry a synthesised verdict and pass the same checks.
func (c UpsertCommand) Validate() error {
	if c.SessionID == uuid.Nil {
		return ErrInvalidResult
	}
	if c.Requirement.Type == "" || strings.TrimSpace(c.Requirement.Number) == "" {
		return ErrInvalidResult
	}
	return c.Verdict.Validate()
}

// Succeeded builds the upsert for a verdict that passed validation.
func Succeeded(sessionID uuid.UUID, req requirements.Requirement, v Verdict) UpsertCommand {
	v.Citations = compact(v.Citations)
	return UpsertCommand{SessionID: sessionID, Requirement: req, Verdict: v}
}

// Failure builds the row recorded when a requirement could not be assessed.
func Failure(sessionID uuid.UUID, req requirements.Requirement, reason string) UpsertCommand {
	msg := reason
	return UpsertCommand{
		SessionID:   sessionID,
		Requirement: req,
		Verdict: Verdict{
			Status:          StatusNotMet,
			Reasoning:       "validation failed: " + reason,
			MappedContent:   "Not assessed.",
			Citations:       []string{NoEvidenceCitation},
			SmartQuestion:   "Re-run validation for requirement " + req.Number + ".",
			BenchmarkAnswer: "Not available.",
		},
		Failed: true,
		Error:  &msg,
	}
}

func compact(citations []string) []string {
	out := make([]string, 0, len(citations))
	for _, c := range citations {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

// requirementsOrder sorts rows into requirement resolution order.
func requirementsOrder(rows []Result) {
	slices.SortStableFunc(rows, func(a, b Result) int {
		return requirements.Compare(a.RequirementType, a.RequirementNumber, b.RequirementType, b.RequirementNumber)
	})
}
