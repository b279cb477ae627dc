package requirements

import "strconv"

// Reserved ID ranges for the fixed sets. Database rows are constrained
// below MaxDatabaseID.
const (
	MaxDatabaseID    int64 = 900000
	conditionsBase   int64 = 900000
	instructionsBase int64 = 910000
)

var conditionTexts = []string{
	"Assessment is conducted in a workplace or a simulated environment that reflects workplace conditions.",
	"The candidate has access to the equipment, resources and documentation specified for the unit.",
	"Assessment is conducted by an assessor who meets the credential requirements of the training package and the Standards for RTOs.",
	"Evidence is gathered over a period sufficient to demonstrate consistent performance.",
	"Reasonable adjustments are available to candidates without compromising the integrity of the assessment.",
}

var instructionTexts = []string{
	"Clear instructions tell the candidate what they are required to do for each assessment task.",
	"Instructions state the conditions under which each task is completed, including time allowed and resources permitted.",
	"Instructions describe the evidence the candidate must submit and the format it must take.",
	"Instructions to the assessor describe how the task is administered and observed.",
	"Benchmark or model answers are provided to support consistent assessor judgement.",
	"Criteria for a satisfactory outcome are stated for every task.",
	"The process for resubmission and reassessment is explained to the candidate.",
	"Instructions explain the candidate's rights to appeal and how to request reasonable adjustment.",
}

var (
	conditions   = buildFixed(AssessmentConditions, conditionsBase, conditionTexts)
	instructions = buildFixed(AssessmentInstructions, instructionsBase, instructionTexts)
)

func buildFixed(t Type, base int64, texts []string) []Requirement {
	reqs := make([]Requirement, len(texts))
	for i, text := range texts {
		reqs[i] = Requirement{
			ID:     base + int64(i) + 1,
			Type:   t,
			Number: strconv.Itoa(i + 1),
			Text:   text,
		}
	}
	return reqs
}

// Fixed returns the constant requirements of t stamped with unitCode,
// or nil when t is database-backed.
func Fixed(t Type, unitCode string) []Requirement {
	var src []Requirement
	switch t {
	case AssessmentConditions:
		src = conditions
	case AssessmentInstructions:
		src = instructions
	default:
		return nil
	}

	out := make([]Requirement, len(src))
	for i, r := range src {
		r.UnitCode = unitCode
		out[i] = r
	}
	return out
}

// FixedCount is the number of constant requirements appended to every unit.
func FixedCount() int {
	return len(conditions) + len(instructions)
}

// IsFixedID reports whether id falls within a reserved fixed range.
func IsFixedID(id int64) bool {
	return id > MaxDatabaseID
}
