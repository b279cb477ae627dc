package api

import (
	"fmt"
	"net/http"

	"github.com/JaimeStill/rtoval/internal/config"
	"github.com/JaimeStill/rtoval/pkg/openapi"
	"github.com/JaimeStill/rtoval/pkg/routes"
)

func groups(domain *Domain, cfg *config.Config) []routes.Group {
	return []routes.Group{
		domain.Requirements.Handler().Routes(),
		domain.Documents.Handler(cfg.API.MaxUploadSizeBytes()).Routes(),
		domain.Prompts.Handler().Routes(),
		domain.Sessions.Handler().Routes(),
		domain.Results.Handler().Routes(),
		domain.Validation.Handler().Routes(),
	}
}

func registerRoutes(mux *http.ServeMux, domain *Domain, cfg *config.Config) error {
	all := groups(domain, cfg)
	routes.Register(mux, all...)

	spec := openapi.FromRoutes(&cfg.API.OpenAPI, cfg.Version, cfg.API.BasePath, all...)
	data, err := openapi.MarshalJSON(spec)
	if err != nil {
		return fmt.Errorf("openapi spec: %w", err)
	}
	mux.HandleFunc("GET /openapi.json", openapi.ServeSpec(data))

	return nil
}
