package prompts

import (
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/JaimeStill/rtoval/internal/requirements"
	"github.com/JaimeStill/rtoval/pkg/query"
	"github.com/JaimeStill/rtoval/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "prompts", "p").
	Project("id", "ID").
	Project("name", "Name").
	Project("task_type", "TaskType").
	Project("requirement_type", "RequirementType").
	Project("document_type", "DocumentType").
	Project("text", "Text").
	Project("system_instruction", "SystemInstruction").
	Project("output_schema", "OutputSchema").
	Project("generation_config", "GenerationConfig").
	Project("version", "Version").
	Project("is_active", "IsActive").
	Project("is_default", "IsDefault").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

const returning = `id, name, task_type, requirement_type, document_type, text, system_instruction,
	output_schema, generation_config, version, is_active, is_default, created_at, updated_at`

var defaultSort = query.SortField{
	Field: "Name",
}

// Filters contains optional filtering criteria for prompt queries.
// Nil fields are ignored. Name uses case-insensitive contains matching;
// everything else is exact.
type Filters struct {
	Name            *string                    `json:"name,omitempty"`
	TaskType        *TaskType                  `json:"task_type,omitempty"`
	RequirementType *requirements.Type         `json:"requirement_type,omitempty"`
	DocumentType    *requirements.DocumentType `json:"document_type,omitempty"`
	IsActive        *bool                      `json:"is_active,omitempty"`
	IsDefault       *bool                      `json:"is_default,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereContains("Name", f.Name).
		WhereEquals("TaskType", f.TaskType).
		WhereEquals("RequirementType", f.RequirementType).
		WhereEquals("DocumentType", f.DocumentType).
		WhereEquals("IsActive", f.IsActive).
		WhereEquals("IsDefault", f.IsDefault)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if n := values.Get("name"); n != "" {
		f.Name = &n
	}

	if s := values.Get("task_type"); s != "" {
		if v, err := ParseTaskType(s); err == nil {
			f.TaskType = &v
		}
	}

	if s := values.Get("requirement_type"); s != "" {
		if v, err := requirements.ParseType(s); err == nil {
			f.RequirementType = &v
		}
	}

	if s := values.Get("document_type"); s != "" {
		if v, err := requirements.ParseDocumentType(s); err == nil {
			f.DocumentType = &v
		}
	}

	if a := values.Get("is_active"); a != "" {
		if v, err := strconv.ParseBool(a); err == nil {
			f.IsActive = &v
		}
	}

	if d := values.Get("is_default"); d != "" {
		if v, err := strconv.ParseBool(d); err == nil {
			f.IsDefault = &v
		}
	}

	return f
}

// KeyFromQuery reads a lookup key from task_type, requirement_type and
// document_type query parameters.
func KeyFromQuery(values url.Values) (Key, error) {
	k := Key{
		TaskType:        TaskType(values.Get("task_type")),
		RequirementType: requirements.Type(values.Get("requirement_type")),
		DocumentType:    requirements.DocumentType(values.Get("document_type")),
	}
	if k.TaskType == "" {
		k.TaskType = TaskValidation
	}
	return k, k.Validate()
}

func scanPrompt(s repository.Scanner) (Prompt, error) {
	var (
		p      Prompt
		schema []byte
		gen    []byte
	)
	err := s.Scan(
		&p.ID,
		&p.Name,
		&p.TaskType,
		&p.RequirementType,
		&p.DocumentType,
		&p.Text,
		&p.SystemInstruction,
		&schema,
		&gen,
		&p.Version,
		&p.IsActive,
		&p.IsDefault,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if len(schema) > 0 {
		p.OutputSchema = json.RawMessage(schema)
	}
	if len(gen) > 0 {
		p.GenerationConfig = json.RawMessage(gen)
	}
	return p, err
}

// jsonArg passes a raw document to a jsonb column, NULL when empty.
func jsonArg(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
