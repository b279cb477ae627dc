package requirements

import (
	"net/url"

	"github.com/JaimeStill/rtoval/pkg/query"
	"github.com/JaimeStill/rtoval/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "requirements", "r").
	Project("id", "ID").
	Project("unit_code", "UnitCode").
	Project("type", "Type").
	Project("number", "Number").
	Project("text", "Text").
	Project("element_number", "ElementNumber").
	Project("element_name", "ElementName")

var defaultSort = query.SortField{
	Field: "UnitCode",
}

// Filters contains optional filtering criteria for requirement queries.
// UnitCode and Type use exact matching; Text uses contains matching.
type Filters struct {
	UnitCode *string `json:"unit_code,omitempty"`
	Type     *Type   `json:"type,omitempty"`
	Text     *string `json:"text,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("UnitCode", f.UnitCode).
		WhereEquals("Type", f.Type).
		WhereContains("Text", f.Text)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if u := values.Get("unit_code"); u != "" {
		f.UnitCode = &u
	}

	if t := values.Get("type"); t != "" {
		if v, err := ParseType(t); err == nil {
			f.Type = &v
		}
	}

	if s := values.Get("text"); s != "" {
		f.Text = &s
	}

	return f
}

func scanRequirement(s repository.Scanner) (Requirement, error) {
	var r Requirement
	err := s.Scan(
		&r.ID,
		&r.UnitCode,
		&r.Type,
		&r.Number,
		&r.Text,
		&r.ElementNumber,
		&r.ElementName,
	)
	return r, err
}
