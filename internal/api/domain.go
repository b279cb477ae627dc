package api

import (
	"github.com/JaimeStill/rtoval/internal/documents"
	"github.com/JaimeStill/rtoval/internal/prompts"
	"github.com/JaimeStill/rtoval/internal/requirements"
	"github.com/JaimeStill/rtoval/internal/results"
	"github.com/JaimeStill/rtoval/internal/sessions"
	"github.com/JaimeStill/rtoval/internal/validation"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Requirements requirements.System
	Documents    documents.System
	Prompts      prompts.System
	Sessions     sessions.System
	Results      results.System
	Validation   validation.System
}

// NewDomain creates all domain systems from the API runtime.
func NewDomain(runtime *Runtime) *Domain {
	db := runtime.Database.Connection()

	requirementsSystem := requirements.New(db, runtime.Logger, runtime.Pagination)
	docsSystem := documents.New(db, runtime.Storage, runtime.Logger, runtime.Pagination)
	promptsSystem := prompts.New(db, runtime.Logger, runtime.Pagination)

	sessionsSystem := sessions.New(
		db,
		runtime.Storage,
		runtime.Events,
		runtime.Logger,
		runtime.Pagination,
	)

	resultsSystem := results.New(db, runtime.Events, runtime.Logger, runtime.Pagination)

	validationSystem := validation.New(&validation.Runtime{
		Provider:     runtime.Provider,
		Pacer:        runtime.Pacer,
		Retry:        validation.RetryPolicy(runtime.Validation),
		Tracer:       runtime.Telemetry.Tracer(),
		Sessions:     sessionsSystem,
		Documents:    docsSystem,
		Requirements: requirementsSystem,
		Prompts:      promptsSystem,
		Results:      resultsSystem,
		Config:       runtime.Validation,
		Logger:       runtime.Logger,
	})

	return &Domain{
		Requirements: requirementsSystem,
		Documents:    docsSystem,
		Prompts:      promptsSystem,
		Sessions:     sessionsSystem,
		Results:      resultsSystem,
		Validation:   validationSystem,
	}
}
