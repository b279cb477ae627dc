package requirements

import (
	"encoding/json"
	"slices"
	"strings"
)

// Type identifies a requirement category. Four types are sourced from the
// database per unit; assessment conditions and instructions are fixed sets
// shared by every unit.
type Type string

const (
	KnowledgeEvidence      Type = "knowledge_evidence"
	PerformanceEvidence    Type = "performance_evidence"
	FoundationSkills       Type = "foundation_skills"
	PerformanceCriteria    Type = "performance_criteria"
	AssessmentConditions   Type = "assessment_conditions"
	AssessmentInstructions Type = "assessment_instructions"
)

var types = []Type{
	KnowledgeEvidence,
	PerformanceEvidence,
	FoundationSkills,
	PerformanceCriteria,
	AssessmentConditions,
	AssessmentInstructions,
}

// Types returns every requirement type in resolution order.
func Types() []Type {
	return slices.Clone(types)
}

// DatabaseTypes returns the types stored per unit in the requirements table.
func DatabaseTypes() []Type {
	return slices.Clone(types[:4])
}

// Fixed reports whether t is one of the constant requirement sets.
func (t Type) Fixed() bool {
	return t == AssessmentConditions || t == AssessmentInstructions
}

// Label returns the human-readable name used in prompts and reports.
func (t Type) Label() string {
	words := strings.Split(string(t), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

func (t Type) order() int {
	return slices.Index(types, t)
}

// UnmarshalJSON validates that the decoded string is a known requirement type.
func (t *Type) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v, err := ParseType(raw)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// ParseType validates s as a known requirement type.
func ParseType(s string) (Type, error) {
	v := Type(s)
	if !slices.Contains(types, v) {
		return "", ErrInvalidType
	}
	return v, nil
}

// DocumentType identifies the kind of assessment document a session validates.
type DocumentType string

const (
	DocumentUnit         DocumentType = "unit"
	DocumentLearnerGuide DocumentType = "learner_guide"
)

// DocumentTypes returns the supported document types.
func DocumentTypes() []DocumentType {
	return []DocumentType{DocumentUnit, DocumentLearnerGuide}
}

// ParseDocumentType validates s as a known document type.
func ParseDocumentType(s string) (DocumentType, error) {
	v := DocumentType(s)
	if !slices.Contains(DocumentTypes(), v) {
		return "", ErrInvalidDocumentType
	}
	return v, nil
}

// UnmarshalJSON validates that the decoded string is a known document type.
func (d *DocumentType) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v, err := ParseDocumentType(raw)
	if err != nil {
		return err
	}
	*d = v
	return nil
}
