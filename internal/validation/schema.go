package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/JaimeStill/rtoval/internal/results"
	"github.com/JaimeStill/rtoval/pkg/formatting"
)

// VerdictSchema is the response schema sent with a single-requirement call
// when the prompt does not carry its own.
var VerdictSchema = json.RawMessage(`{
  "type": "OBJECT",
  "properties": {
    "status": {"type": "STRING", "enum": ["Met", "Partially Met", "Not Met"]},
    "reasoning": {"type": "STRING"},
    "mapped_content": {"type": "STRING", "description": "Content mapped to the requirement, with an inline page reference such as (Page 4) for every claim."},
    "citations": {"type": "ARRAY", "minItems": 1, "items": {"type": "STRING", "description": "<document>, Page <n[-m]>, <section/task>: <title>"}},
    "smart_question": {"type": "STRING"},
    "benchmark_answer": {"type": "STRING"}
  },
  "required": ["status", "reasoning", "mapped_content", "citations", "smart_question", "benchmark_answer"]
}`)

// BatchSchema wraps one verdict per requirement number.
var BatchSchema = json.RawMessage(`{
  "type": "OBJECT",
  "properties": {
    "results": {
      "type": "ARRAY",
      "items": {
        "type": "OBJECT",
        "properties": {
          "requirement_number": {"type": "STRING"},
          "status": {"type": "STRING", "enum": ["Met", "Partially Met", "Not Met"]},
          "reasoning": {"type": "STRING"},
          "mapped_content": {"type": "STRING", "description": "Content mapped to the requirement, with an inline page reference such as (Page 4) for every claim."},
          "citations": {"type": "ARRAY", "minItems": 1, "items": {"type": "STRING", "description": "<document>, Page <n[-m]>, <section/task>: <title>"}},
          "smart_question": {"type": "STRING"},
          "benchmark_answer": {"type": "STRING"}
        },
        "required": ["requirement_number", "status", "reasoning", "mapped_content", "citations", "smart_question", "benchmark_answer"]
      }
    }
  },
  "required": ["results"]
}`)

// ParseVerdict decodes and checks a single verdict. Any failure is a
// requirement failure.
func ParseVerdict(text string) (results.Verdict, error) {
	v, err := formatting.Parse[results.Verdict](text)
	if err != nil {
		return v, fmt.Errorf("%w: %w", ErrRequirementFailed, err)
	}
	if err := v.Validate(); err != nil {
		return v, fmt.Errorf("%w: %w", ErrRequirementFailed, err)
	}
	return v, nil
}

type batchEnvelope struct {
	Results []json.RawMessage `json:"results"`
}

type batchItem struct {
	RequirementNumber string `json:"requirement_number"`
	results.Verdict
}

// ParseBatch decodes a batch response into verdicts keyed by requirement
// number. An unreadable envelope fails the whole batch; an unreadable or
// invalid item is reported per number in failures.
func ParseBatch(text string) (verdicts map[string]results.Verdict, failures map[string]error, err error) {
	env, err := formatting.Parse[batchEnvelope](text)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrRequirementFailed, err)
	}

	verdicts = make(map[string]results.Verdict)
	failures = make(map[string]error)

	for _, raw := range env.Results {
		var probe struct {
			RequirementNumber string `json:"requirement_number"`
		}
		if json.Unmarshal(raw, &probe) != nil || strings.TrimSpace(probe.RequirementNumber) == "" {
			continue
		}
		number := strings.TrimSpace(probe.RequirementNumber)

		var item batchItem
		if err := json.Unmarshal(raw, &item); err != nil {
			failures[number] = fmt.Errorf("%w: %w", ErrRequirementFailed, err)
			continue
		}
		if err := item.Verdict.Validate(); err != nil {
			failures[number] = fmt.Errorf("%w: %w", ErrRequirementFailed, err)
			continue
		}
		verdicts[number] = item.Verdict
	}
	return verdicts, failures, nil
}
