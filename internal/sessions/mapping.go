package sessions

import (
	"net/url"

	"github.com/JaimeStill/rtoval/internal/requirements"
	"github.com/JaimeStill/rtoval/pkg/query"
	"github.com/JaimeStill/rtoval/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "validation_detail", "v").
	Project("id", "ID").
	Project("unit_code", "UnitCode").
	Project("rto_code", "RTOCode").
	Project("document_type", "DocumentType").
	Project("state", "State").
	Project("result_count", "ResultCount").
	Project("result_total", "ResultTotal").
	Project("error_reason", "ErrorReason").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt").
	Project("completed_at", "CompletedAt")

const returning = `id, unit_code, rto_code, document_type, state, result_count, result_total,
	error_reason, created_at, updated_at, completed_at`

var defaultSort = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

// Filters contains optional filtering criteria for session queries.
// UnitCode and RTOCode use contains matching; State and DocumentType are exact.
type Filters struct {
	UnitCode     *string                    `json:"unit_code,omitempty"`
	RTOCode      *string                    `json:"rto_code,omitempty"`
	DocumentType *requirements.DocumentType `json:"document_type,omitempty"`
	State        *State                     `json:"state,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereContains("UnitCode", f.UnitCode).
		WhereContains("RTOCode", f.RTOCode).
		WhereEquals("DocumentType", f.DocumentType).
		WhereEquals("State", f.State)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if u := values.Get("unit_code"); u != "" {
		f.UnitCode = &u
	}

	if r := values.Get("rto_code"); r != "" {
		f.RTOCode = &r
	}

	if s := values.Get("document_type"); s != "" {
		if v, err := requirements.ParseDocumentType(s); err == nil {
			f.DocumentType = &v
		}
	}

	if s := values.Get("state"); s != "" {
		if v, err := ParseState(s); err == nil {
			f.State = &v
		}
	}

	return f
}

func scanSession(s repository.Scanner) (Session, error) {
	var v Session
	err := s.Scan(
		&v.ID,
		&v.UnitCode,
		&v.RTOCode,
		&v.DocumentType,
		&v.State,
		&v.ResultCount,
		&v.ResultTotal,
		&v.ErrorReason,
		&v.CreatedAt,
		&v.UpdatedAt,
		&v.CompletedAt,
	)
	v.Derive()
	return v, err
}
