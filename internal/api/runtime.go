package api

import (
	"github.com/JaimeStill/rtoval/internal/config"
	"github.com/JaimeStill/rtoval/internal/infrastructure"
	"github.com/JaimeStill/rtoval/pkg/pagination"
)

// Runtime extends Infrastructure with API-specific configuration.
type Runtime struct {
	*infrastructure.Infrastructure
	Pagination pagination.Config
	Validation config.ValidationConfig
}

// NewRuntime creates an API runtime with a module-scoped logger.
func NewRuntime(cfg *config.Config, infra *infrastructure.Infrastructure) *Runtime {
	return &Runtime{
		Infrastructure: &infrastructure.Infrastructure{
			Lifecycle: infra.Lifecycle,
			Logger:    infra.Logger.With("module", "api"),
			Database:  infra.Database,
			Storage:   infra.Storage,
			Events:    infra.Events,
			Telemetry: infra.Telemetry,
			Provider:  infra.Provider,
			Pacer:     infra.Pacer,
		},
		Pagination: cfg.API.Pagination,
		Validation: cfg.Validation,
	}
}
