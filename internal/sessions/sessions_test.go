package sessions_test

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"testing"

	"github.com/JaimeStill/rtoval/internal/requirements"
	"github.com/JaimeStill/rtoval/internal/sessions"
)

func TestCanTransition(t *testing.T) {
	allowed := map[[2]sessions.State]bool{
		{sessions.StatePending, sessions.StateProcessing}:     true,
		{sessions.StatePending, sessions.StateError}:          true,
		{sessions.StateProcessing, sessions.StateUnderReview}: true,
		{sessions.StateProcessing, sessions.StateError}:       true,
		{sessions.StateUnderReview, sessions.StateFinalised}:  true,
		{sessions.StateUnderReview, sessions.StateError}:      true,
		{sessions.StateError, sessions.StatePending}:          true,
	}

	for _, from := range sessions.States() {
		for _, to := range sessions.States() {
			want := allowed[[2]sessions.State{from, to}]
			if got := sessions.CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestFinalisedIsTerminal(t *testing.T) {
	for _, to := range sessions.States() {
		if sessions.CanTransition(sessions.StateFinalised, to) {
			t.Errorf("finalised must not move to %s", to)
		}
	}
}

func TestSources(t *testing.T) {
	tests := []struct {
		to   sessions.State
		want []sessions.State
	}{
		{sessions.StateProcessing, []sessions.State{sessions.StatePending}},
		{sessions.StateUnderReview, []sessions.State{sessions.StateProcessing}},
		{sessions.StateFinalised, []sessions.State{sessions.StateUnderReview}},
		{sessions.StatePending, []sessions.State{sessions.StateError}},
		{sessions.StateError, []sessions.State{sessions.StatePending, sessions.StateProcessing, sessions.StateUnderReview}},
	}

	for _, tt := range tests {
		t.Run(string(tt.to), func(t *testing.T) {
			if got := sessions.Sources(tt.to); !slices.Equal(got, tt.want) {
				t.Errorf("Sources(%s) = %v, want %v", tt.to, got, tt.want)
			}
		})
	}
}

func TestStatePredicates(t *testing.T) {
	accepts := []sessions.State{sessions.StateUnderReview, sessions.StateFinalised}
	for _, s := range sessions.States() {
		if got := s.AcceptsResults(); got != slices.Contains(accepts, s) {
			t.Errorf("%s.AcceptsResults() = %v", s, got)
		}
	}

	if !sessions.StateError.Terminal() || sessions.StateUnderReview.Terminal() {
		t.Error("only finalised and error are terminal")
	}

	if _, err := sessions.ParseState("done"); !errors.Is(err, sessions.ErrInvalidState) {
		t.Errorf("ParseState(done) err = %v", err)
	}
}

func TestDerive(t *testing.T) {
	tests := []struct {
		name       string
		state      sessions.State
		count      int
		total      int
		extract    string
		validation string
		progress   float64
	}{
		{"pending", sessions.StatePending, 0, 0, sessions.StatusPending, sessions.StatusPending, 0},
		{"processing", sessions.StateProcessing, 0, 0, sessions.StatusProcessing, sessions.StatusPending, 0},
		{"under review", sessions.StateUnderReview, 16, 47, sessions.StatusCompleted, sessions.StatusUnderReview, 34.04},
		{"finalised", sessions.StateFinalised, 47, 47, sessions.StatusCompleted, sessions.StatusFinalised, 100},
		{"error before review", sessions.StateError, 0, 0, sessions.StatusError, sessions.StatusError, 0},
		{"error after review", sessions.StateError, 1, 3, sessions.StatusCompleted, sessions.StatusError, 33.33},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := sessions.Session{State: tt.state, ResultCount: tt.count, ResultTotal: tt.total}
			s.Derive()

			if s.ExtractStatus != tt.extract {
				t.Errorf("extract = %q, want %q", s.ExtractStatus, tt.extract)
			}
			if s.ValidationStatus != tt.validation {
				t.Errorf("validation = %q, want %q", s.ValidationStatus, tt.validation)
			}
			if s.ProgressPercent != tt.progress {
				t.Errorf("progress = %v, want %v", s.ProgressPercent, tt.progress)
			}
		})
	}
}

func TestComplete(t *testing.T) {
	if (sessions.Session{}).Complete() {
		t.Error("unset total must not be complete")
	}
	if (sessions.Session{ResultCount: 46, ResultTotal: 47}).Complete() {
		t.Error("46 of 47 must not be complete")
	}
	if !(sessions.Session{ResultCount: 47, ResultTotal: 47}).Complete() {
		t.Error("47 of 47 must be complete")
	}
	if (sessions.Session{ResultCount: 52, ResultTotal: 47}).Complete() {
		t.Error("52 of 47 must not be complete")
	}
}

func TestCreateCommandValidate(t *testing.T) {
	valid := sessions.CreateCommand{
		UnitCode:     "BSBOPS304",
		RTOCode:      "7148",
		DocumentType: requirements.DocumentUnit,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid command: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*sessions.CreateCommand)
	}{
		{"blank unit", func(c *sessions.CreateCommand) { c.UnitCode = " " }},
		{"blank rto", func(c *sessions.CreateCommand) { c.RTOCode = "" }},
		{"bad document type", func(c *sessions.CreateCommand) { c.DocumentType = "assessment" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := valid
			tt.mutate(&cmd)
			if err := cmd.Validate(); !errors.Is(err, sessions.ErrInvalidSession) {
				t.Errorf("err = %v, want ErrInvalidSession", err)
			}
		})
	}
}

func TestMapHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{sessions.ErrNotFound, http.StatusNotFound},
		{sessions.ErrInvalidTransition, http.StatusConflict},
		{fmt.Errorf("%w: 3 of 47", sessions.ErrIncomplete), http.StatusConflict},
		{sessions.ErrInvalidSession, http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := sessions.MapHTTPStatus(tt.err); got != tt.want {
			t.Errorf("MapHTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestFiltersFromQuery(t *testing.T) {
	f := sessions.FiltersFromQuery(url.Values{
		"unit_code":     {"BSB"},
		"state":         {"under_review"},
		"document_type": {"learner_guide"},
	})

	if f.UnitCode == nil || *f.UnitCode != "BSB" {
		t.Errorf("unit_code = %v", f.UnitCode)
	}
	if f.State == nil || *f.State != sessions.StateUnderReview {
		t.Errorf("state = %v", f.State)
	}
	if f.DocumentType == nil || *f.DocumentType != requirements.DocumentLearnerGuide {
		t.Errorf("document_type = %v", f.DocumentType)
	}

	if f := sessions.FiltersFromQuery(url.Values{"state": {"bogus"}}); f.State != nil {
		t.Errorf("invalid state should be ignored, got %v", *f.State)
	}
}
