package results

import (
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"github.com/JaimeStill/rtoval/internal/requirements"
	"github.com/JaimeStill/rtoval/pkg/query"
	"github.com/JaimeStill/rtoval/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "validation_results", "r").
	Project("id", "ID").
	Project("session_id", "SessionID").
	Project("requirement_id", "RequirementID").
	Project("requirement_type", "RequirementType").
	Project("requirement_number", "RequirementNumber").
	Project("requirement_text", "RequirementText").
	Project("status", "Status").
	Project("reasoning", "Reasoning").
	Project("mapped_content", "MappedContent").
	Project("citations", "Citations").
	Project("smart_question", "SmartQuestion").
	Project("benchmark_answer", "BenchmarkAnswer").
	Project("failed", "Failed").
	Project("error", "Error").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

const returning = `id, session_id, requirement_id, requirement_type, requirement_number,
	requirement_text, status, reasoning, mapped_content, citations, smart_question,
	benchmark_answer, failed, error, created_at, updated_at`

var defaultSort = query.SortField{
	Field: "UpdatedAt",
}

// Filters contains optional filtering criteria for result queries.
type Filters struct {
	SessionID       *uuid.UUID         `json:"session_id,omitempty"`
	RequirementType *requirements.Type `json:"requirement_type,omitempty"`
	Status          *Status            `json:"status,omitempty"`
	Failed          *bool              `json:"failed,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("SessionID", f.SessionID).
		WhereEquals("RequirementType", f.RequirementType).
		WhereEquals("Status", f.Status).
		WhereEquals("Failed", f.Failed)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if s := values.Get("session_id"); s != "" {
		if id, err := uuid.Parse(s); err == nil {
			f.SessionID = &id
		}
	}

	if s := values.Get("requirement_type"); s != "" {
		if v, err := requirements.ParseType(s); err == nil {
			f.RequirementType = &v
		}
	}

	if s := values.Get("status"); s != "" {
		if v, err := ParseStatus(s); err == nil {
			f.Status = &v
		}
	}

	if s := values.Get("failed"); s != "" {
		if v, err := strconv.ParseBool(s); err == nil {
			f.Failed = &v
		}
	}

	return f
}

func scanResult(s repository.Scanner) (Result, error) {
	var (
		r         Result
		citations []byte
	)
	err := s.Scan(
		&r.ID,
		&r.SessionID,
		&r.RequirementID,
		&r.RequirementType,
		&r.RequirementNumber,
		&r.RequirementText,
		&r.Status,
		&r.Reasoning,
		&r.MappedContent,
		&citations,
		&r.SmartQuestion,
		&r.BenchmarkAnswer,
		&r.Failed,
		&r.Error,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return r, err
	}
	r.Citations = []string{}
	if len(citations) > 0 {
		if err := json.Unmarshal(citations, &r.Citations); err != nil {
			return r, err
		}
	}
	return r, nil
}
