// Package prompts implements the prompt template store. Templates are keyed
// by task type, requirement type and document type; exactly one active
// default may exist per key, and that invariant is enforced on write.
package prompts

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/rtoval/internal/requirements"
)

// Prompt is a versioned template for one (task, requirement, document) key.
type Prompt struct {
	ID                uuid.UUID                 `json:"id"`
	Name              string                    `json:"name"`
	TaskType          TaskType                  `json:"task_type"`
	RequirementType   requirements.Type         `json:"requirement_type"`
	DocumentType      requirements.DocumentType `json:"document_type"`
	Text              string                    `json:"text"`
	SystemInstruction *string                   `json:"system_instruction"`
	OutputSchema      json.RawMessage           `json:"output_schema,omitempty"`
	GenerationConfig  json.RawMessage           `json:"generation_config,omitempty"`
	Version           int                       `json:"version"`
	IsActive          bool                      `json:"is_active"`
	IsDefault         bool                      `json:"is_default"`
	CreatedAt         time.Time                 `json:"created_at"`
	UpdatedAt         time.Time                 `json:"updated_at"`
}

// Key returns the lookup key of the prompt.
func (p Prompt) Key() Key {
	return Key{
		TaskType:        p.TaskType,
		RequirementType: p.RequirementType,
		DocumentType:    p.DocumentType,
	}
}

// Key identifies the template slot a prompt fills.
type Key struct {
	TaskType        TaskType                  `json:"task_type"`
	RequirementType requirements.Type         `json:"requirement_type"`
	DocumentType    requirements.DocumentType `json:"document_type"`
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s", k.TaskType, k.RequirementType, k.DocumentType)
}

// Validate checks every component of the key against its known values.
func (k Key) Validate() error {
	if _, err := ParseTaskType(string(k.TaskType)); err != nil {
		return err
	}
	if _, err := requirements.ParseType(string(k.RequirementType)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPrompt, err)
	}
	if _, err := requirements.ParseDocumentType(string(k.DocumentType)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPrompt, err)
	}
	return nil
}

// CreateCommand carries the data needed to create a new prompt version.
// When IsDefault is set the new row becomes the active default for its key.
type CreateCommand struct {
	Name              string                    `json:"name" yaml:"name"`
	TaskType          TaskType                  `json:"task_type" yaml:"task_type"`
	RequirementType   requirements.Type         `json:"requirement_type" yaml:"requirement_type"`
	DocumentType      requirements.DocumentType `json:"document_type" yaml:"document_type"`
	Text              string                    `json:"text" yaml:"text"`
	SystemInstruction *string                   `json:"system_instruction,omitempty" yaml:"system_instruction,omitempty"`
	OutputSchema      json.RawMessage           `json:"output_schema,omitempty" yaml:"-"`
	GenerationConfig  json.RawMessage           `json:"generation_config,omitempty" yaml:"-"`
	IsDefault         bool                      `json:"is_default" yaml:"is_default"`
}

// Key returns the lookup key the command targets.
func (c CreateCommand) Key() Key {
	return Key{TaskType: c.TaskType, RequirementType: c.RequirementType, DocumentType: c.DocumentType}
}

// Validate checks required fields and that JSON payloads are well formed.
func (c CreateCommand) Validate() error {
	if strings.TrimSpace(c.Name) == "" || strings.TrimSpace(c.Text) == "" {
		return ErrInvalidPrompt
	}
	if err := c.Key().Validate(); err != nil {
		return err
	}
	return validJSON(c.OutputSchema, c.GenerationConfig)
}

// UpdateCommand carries editable prompt content. The key and version are fixed.
type UpdateCommand struct {
	Name              string          `json:"name"`
	Text              string          `json:"text"`
	SystemInstruction *string         `json:"system_instruction"`
	OutputSchema      json.RawMessage `json:"output_schema,omitempty"`
	GenerationConfig  json.RawMessage `json:"generation_config,omitempty"`
}

// Validate checks required fields and that JSON payloads are well formed.
func (c UpdateCommand) Validate() error {
	if strings.TrimSpace(c.Name) == "" || strings.TrimSpace(c.Text) == "" {
		return ErrInvalidPrompt
	}
	return validJSON(c.OutputSchema, c.GenerationConfig)
}

func validJSON(docs ...json.RawMessage) error {
	for _, d := range docs {
		if len(d) > 0 && !json.Valid(d) {
			return fmt.Errorf("%w: malformed JSON", ErrInvalidPrompt)
		}
	}
	return nil
}
