package results

import (
	"encoding/json"
	"strings"
)

// Status is the compliance judgement for one requirement.
type Status string

const (
	StatusMet          Status = "Met"
	StatusPartiallyMet Status = "Partially Met"
	StatusNotMet       Status = "Not Met"
)

// Statuses returns the valid statuses from best to worst.
func Statuses() []Status {
	return []Status{StatusMet, StatusPartiallyMet, StatusNotMet}
}

// ParseStatus accepts the canonical labels and the usual model variations
// of case and separator ("met", "PARTIALLY_MET", "not-met").
func ParseStatus(s string) (Status, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("_", " ", "-", " ").Replace(norm)
	norm = strings.Join(strings.Fields(norm), " ")

	switch norm {
	case "met":
		return StatusMet, nil
	case "partially met", "partial":
		return StatusPartiallyMet, nil
	case "not met", "unmet":
		return StatusNotMet, nil
	}
	return "", ErrInvalidStatus
}

// UnmarshalJSON parses a status leniently.
func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = v
	return nil
}
