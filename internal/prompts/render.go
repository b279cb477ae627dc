package prompts

import (
	"regexp"
	"slices"
)

// Placeholder names substituted into template text as {{name}}.
const (
	VarSessionID         = "session_id"
	VarUnitCode          = "unit_code"
	VarRTOCode           = "rto_code"
	VarDocumentType      = "document_type"
	VarDocumentNames     = "document_names"
	VarRequirementType   = "requirement_type"
	VarRequirementNumber = "requirement_number"
	VarRequirementText   = "requirement_text"
	VarElementNumber     = "element_number"
	VarElementName       = "element_name"
	VarRequirements      = "requirements"
	VarPriorStatus       = "prior_status"
	VarPriorReasoning    = "prior_reasoning"
)

// Vars maps placeholder names to their values.
type Vars map[string]string

var placeholder = regexp.MustCompile(`\{\{\s*([a-z_]+)\s*\}\}`)

// Render substitutes vars into the prompt text. Placeholders without a
// value are left in place so they show up in Placeholders.
func (p Prompt) Render(vars Vars) string {
	return Render(p.Text, vars)
}

// Render substitutes {{name}} placeholders in text, tolerating inner spaces.
func Render(text string, vars Vars) string {
	return placeholder.ReplaceAllStringFunc(text, func(m string) string {
		name := placeholder.FindStringSubmatch(m)[1]
		if v, ok := vars[name]; ok {
			return v
		}
		return m
	})
}

// Placeholders returns the distinct placeholder names in text, sorted.
func Placeholders(text string) []string {
	var names []string
	for _, m := range placeholder.FindAllStringSubmatch(text, -1) {
		if !slices.Contains(names, m[1]) {
			names = append(names, m[1])
		}
	}
	slices.Sort(names)
	return names
}

// Unresolved returns the placeholders in text that vars does not supply.
func Unresolved(text string, vars Vars) []string {
	var missing []string
	for _, name := range Placeholders(text) {
		if _, ok := vars[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}
