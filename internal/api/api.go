// Package api assembles the API module with all domain systems and route registration.
package api

import (
	"fmt"
	"net/http"

	"github.com/JaimeStill/rtoval/internal/config"
	"github.com/JaimeStill/rtoval/internal/infrastructure"
	"github.com/JaimeStill/rtoval/pkg/lifecycle"
	"github.com/JaimeStill/rtoval/pkg/middleware"
	"github.com/JaimeStill/rtoval/pkg/module"
)

// API is the mounted HTTP module together with the domain systems behind it.
type API struct {
	Module *module.Module
	Domain *Domain
}

// New creates the API module with all domain handlers and middleware. When
// bearer auth is enabled the OIDC issuer is discovered here, so New fails
// if the issuer is unreachable.
func New(cfg *config.Config, infra *infrastructure.Infrastructure) (*API, error) {
	runtime := NewRuntime(cfg, infra)
	domain := NewDomain(runtime)

	mux := http.NewServeMux()
	if err := registerRoutes(mux, domain, cfg); err != nil {
		return nil, err
	}

	m := module.New(cfg.API.BasePath, mux)
	m.Use(middleware.CORS(&cfg.API.CORS))
	m.Use(middleware.Trace(runtime.Telemetry.Tracer()))
	m.Use(middleware.Logger(runtime.Logger))

	if cfg.API.Auth.Enabled {
		verifier, err := middleware.NewOIDCVerifier(infra.Lifecycle.Context(), &cfg.API.Auth)
		if err != nil {
			return nil, fmt.Errorf("auth verifier: %w", err)
		}
		m.Use(middleware.Auth(verifier, cfg.API.Auth.SkipPaths, runtime.Logger))
	}

	return &API{Module: m, Domain: domain}, nil
}

// Start launches the validation runner. Call it after infrastructure has
// started so resumed sessions find an open database.
func (a *API) Start(lc *lifecycle.Coordinator) error {
	if err := a.Domain.Validation.Start(lc); err != nil {
		return fmt.Errorf("validation start failed: %w", err)
	}
	return nil
}
