package results

import (
	"math"

	"github.com/google/uuid"

	"github.com/JaimeStill/rtoval/internal/requirements"
)

// Tally counts verdicts by status. Failed rows are also counted as Not Met.
type Tally struct {
	Total             int     `json:"total"`
	Met               int     `json:"met"`
	PartiallyMet      int     `json:"partially_met"`
	NotMet            int     `json:"not_met"`
	Failed            int     `json:"failed"`
	CompliancePercent float64 `json:"compliance_percent"`
}

func (t *Tally) add(r Result) {
	t.Total++
	switch r.Status {
	case StatusMet:
		t.Met++
	case StatusPartiallyMet:
		t.PartiallyMet++
	default:
		t.NotMet++
	}
	if r.Failed {
		t.Failed++
	}
}

func (t *Tally) finish() {
	if t.Total == 0 {
		t.CompliancePercent = 0
		return
	}
	p := float64(t.Met) / float64(t.Total) * 100
	t.CompliancePercent = math.Round(p*100) / 100
}

// TypeTally is the tally for one requirement type.
type TypeTally struct {
	Type  requirements.Type `json:"requirement_type"`
	Label string            `json:"label"`
	Tally
}

// Summary aggregates a session's results. It is computed from the rows on
// every request and never stored.
type Summary struct {
	SessionID uuid.UUID   `json:"session_id"`
	Overall   Tally       `json:"overall"`
	ByType    []TypeTally `json:"by_type"`
}

// Summarize builds a Summary from a session's results. Types without rows
// are omitted; present types follow requirement resolution order.
func Summarize(sessionID uuid.UUID, rows []Result) Summary {
	byType := make(map[requirements.Type]*Tally)
	s := Summary{SessionID: sessionID, ByType: []TypeTally{}}

	for _, r := range rows {
		s.Overall.add(r)
		t, ok := byType[r.RequirementType]
		if !ok {
			t = &Tally{}
			byType[r.RequirementType] = t
		}
		t.add(r)
	}
	s.Overall.finish()

	for _, rt := range requirements.Types() {
		t, ok := byType[rt]
		if !ok {
			continue
		}
		t.finish()
		s.ByType = append(s.ByType, TypeTally{Type: rt, Label: rt.Label(), Tally: *t})
	}
	return s
}
