// Package requirements implements the unit-of-competency requirement store.
// Database-backed requirements are imported per unit; assessment conditions
// and instructions are constant sets appended on resolution.
package requirements

import (
	"cmp"
	"slices"
	"strconv"
	"strings"
)

// Requirement is one atomic compliance item an assessment must address.
type Requirement struct {
	ID            int64   `json:"id"`
	UnitCode      string  `json:"unit_code"`
	Type          Type    `json:"type"`
	Number        string  `json:"number"`
	Text          string  `json:"text"`
	ElementNumber *string `json:"element_number,omitempty"`
	ElementName   *string `json:"element_name,omitempty"`
}

// Query selects the requirements a session validates.
type Query struct {
	UnitCode     string       `json:"unit_code"`
	DocumentType DocumentType `json:"document_type"`
	IncludeFixed bool         `json:"include_fixed"`
}

// Item is one database-backed requirement in an import.
type Item struct {
	Type          Type    `json:"type" yaml:"type"`
	Number        string  `json:"number" yaml:"number"`
	Text          string  `json:"text" yaml:"text"`
	ElementNumber *string `json:"element_number,omitempty" yaml:"element_number,omitempty"`
	ElementName   *string `json:"element_name,omitempty" yaml:"element_name,omitempty"`
}

// ImportCommand replaces the database-backed requirements of a unit.
type ImportCommand struct {
	UnitCode string `json:"unit_code" yaml:"unit_code"`
	Items    []Item `json:"items" yaml:"items"`
}

// ImportResult reports how many rows an import replaced and inserted.
type ImportResult struct {
	UnitCode string `json:"unit_code"`
	Removed  int    `json:"removed"`
	Inserted int    `json:"inserted"`
}

// CountResult reports a unit's requirement totals.
type CountResult struct {
	UnitCode string `json:"unit_code"`
	Database int    `json:"database"`
	Fixed    int    `json:"fixed"`
	Total    int    `json:"total"`
}

// Total is the number of results a session over a unit must produce:
// the unit's database requirements plus both fixed sets.
func Total(databaseCount int) int {
	return databaseCount + FixedCount()
}

// Validate checks an import for unknown or fixed types and duplicate keys.
func (c ImportCommand) Validate() error {
	if strings.TrimSpace(c.UnitCode) == "" {
		return ErrInvalidImport
	}
	seen := make(map[string]bool, len(c.Items))
	for _, it := range c.Items {
		if _, err := ParseType(string(it.Type)); err != nil || it.Type.Fixed() {
			return ErrInvalidImport
		}
		if strings.TrimSpace(it.Number) == "" || strings.TrimSpace(it.Text) == "" {
			return ErrInvalidImport
		}
		key := string(it.Type) + "/" + it.Number
		if seen[key] {
			return ErrInvalidImport
		}
		seen[key] = true
	}
	return nil
}

// Sort orders requirements by type then by dotted number ("1.2" < "1.10").
func Sort(reqs []Requirement) {
	slices.SortStableFunc(reqs, func(a, b Requirement) int {
		return Compare(a.Type, a.Number, b.Type, b.Number)
	})
}

// Compare orders two requirement keys by type resolution order, then number.
func Compare(at Type, an string, bt Type, bn string) int {
	if c := cmp.Compare(at.order(), bt.order()); c != 0 {
		return c
	}
	return CompareNumbers(an, bn)
}

// CompareNumbers compares dotted requirement numbers segment by segment,
// numerically where both segments are integers.
func CompareNumbers(a, b string) int {
	as, bs := strings.Split(a, "."), strings.Split(b, ".")
	for i := 0; i < len(as) && i < len(bs); i++ {
		ai, aerr := strconv.Atoi(as[i])
		bi, berr := strconv.Atoi(bs[i])
		var c int
		if aerr == nil && berr == nil {
			c = cmp.Compare(ai, bi)
		} else {
			c = strings.Compare(as[i], bs[i])
		}
		if c != 0 {
			return c
		}
	}
	return cmp.Compare(len(as), len(bs))
}

// GroupByType splits reqs into per-type slices in resolution order.
func GroupByType(reqs []Requirement) map[Type][]Requirement {
	groups := make(map[Type][]Requirement)
	for _, r := range reqs {
		groups[r.Type] = append(groups[r.Type], r)
	}
	return groups
}
