package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/JaimeStill/rtoval/internal/api"
	"github.com/JaimeStill/rtoval/internal/config"
	"github.com/JaimeStill/rtoval/internal/infrastructure"
	"github.com/JaimeStill/rtoval/pkg/database"
	"github.com/JaimeStill/rtoval/pkg/events"
	"github.com/JaimeStill/rtoval/pkg/llm/gemini"
	"github.com/JaimeStill/rtoval/pkg/middleware"
	"github.com/JaimeStill/rtoval/pkg/openapi"
	"github.com/JaimeStill/rtoval/pkg/pagination"
	"github.com/JaimeStill/rtoval/pkg/storage"
	"github.com/JaimeStill/rtoval/pkg/telemetry"
)

const azuriteConnString = "DefaultEndpointsProtocol=http;AccountName=rtovalstore;AccountKey=Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw==;BlobEndpoint=http://127.0.0.1:10000/rtovalstore;"

func validConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     "1m",
			WriteTimeout:    "15m",
			ShutdownTimeout: "30s",
		},
		Database: database.Config{
			Host:            "localhost",
			Port:            5432,
			Name:            "rtoval",
			User:            "rtoval",
			Password:        "rtoval",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: "15m",
			ConnTimeout:     "5s",
		},
		Storage: storage.Config{
			Provider:         storage.ProviderAzure,
			ContainerName:    "documents",
			ConnectionString: azuriteConnString,
		},
		API: config.APIConfig{
			BasePath:      "/api",
			MaxUploadSize: "10MB",
			CORS:          middleware.CORSConfig{Enabled: false},
			OpenAPI:       openapi.Config{Title: "RTO Validation API"},
			Pagination: pagination.Config{
				DefaultPageSize: 20,
				MaxPageSize:     100,
			},
		},
		Provider: gemini.Config{
			BaseURL: "http://127.0.0.1:1",
			APIKey:  "key",
			Model:   "gemini-test",
			Timeout: "5s",
		},
		Validation: config.ValidationConfig{
			Strategy:          config.StrategyIndividual,
			BatchSize:         10,
			Workers:           1,
			QueueSize:         4,
			MaxAttempts:       3,
			BaseDelay:         "10ms",
			MaxDelay:          "100ms",
			UploadConcurrency: 2,
		},
		Events:          events.Config{Buffer: 8},
		Telemetry:       telemetry.Config{ServiceName: "rtoval"},
		ShutdownTimeout: "30s",
		Version:         "0.1.0",
		LogLevel:        "info",
	}
}

func setupInfra(t *testing.T) *infrastructure.Infrastructure {
	t.Helper()
	infra, err := infrastructure.New(validConfig())
	if err != nil {
		t.Fatalf("infrastructure.New() error = %v", err)
	}
	return infra
}

func TestNew(t *testing.T) {
	a, err := api.New(validConfig(), setupInfra(t))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if a.Module.Prefix() != "/api" {
		t.Errorf("prefix: got %s, want /api", a.Module.Prefix())
	}
	if a.Domain.Validation == nil {
		t.Error("validation system is nil")
	}
}

func TestNewRuntime(t *testing.T) {
	cfg := validConfig()
	infra := setupInfra(t)

	runtime := api.NewRuntime(cfg, infra)

	if runtime.Pagination.DefaultPageSize != 20 {
		t.Errorf("pagination default page size: got %d, want 20", runtime.Pagination.DefaultPageSize)
	}
	if runtime.Pagination.MaxPageSize != 100 {
		t.Errorf("pagination max page size: got %d, want 100", runtime.Pagination.MaxPageSize)
	}
	if runtime.Validation.Workers != 1 {
		t.Errorf("validation workers: got %d, want 1", runtime.Validation.Workers)
	}
	if runtime.Logger == nil || runtime.Logger == infra.Logger {
		t.Error("runtime logger should be module scoped")
	}
	if runtime.Database == nil || runtime.Storage == nil || runtime.Lifecycle == nil {
		t.Error("runtime is missing infrastructure systems")
	}
	if runtime.Provider == nil || runtime.Pacer == nil || runtime.Events == nil || runtime.Telemetry == nil {
		t.Error("runtime is missing validation dependencies")
	}
}

func TestNewDomain(t *testing.T) {
	runtime := api.NewRuntime(validConfig(), setupInfra(t))

	domain := api.NewDomain(runtime)
	if domain == nil {
		t.Fatal("NewDomain() returned nil")
	}
	if domain.Requirements == nil || domain.Documents == nil || domain.Prompts == nil {
		t.Error("catalogue systems should be set")
	}
	if domain.Sessions == nil || domain.Results == nil || domain.Validation == nil {
		t.Error("session systems should be set")
	}
}

func TestOpenAPISpecServed(t *testing.T) {
	a, err := api.New(validConfig(), setupInfra(t))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	rec := httptest.NewRecorder()
	a.Module.Serve(rec, httptest.NewRequest(http.MethodGet, "/api/openapi.json", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}

	var spec openapi.Spec
	if err := json.Unmarshal(rec.Body.Bytes(), &spec); err != nil {
		t.Fatalf("decode spec: %v", err)
	}

	for _, path := range []string{
		"/sessions",
		"/sessions/{id}",
		"/sessions/{id}/validate",
		"/sessions/{id}/revalidate",
	} {
		if _, ok := spec.Paths[path]; !ok {
			t.Errorf("spec missing path %s", path)
		}
	}
	if spec.Info.Version != "0.1.0" {
		t.Errorf("version: got %s", spec.Info.Version)
	}
}

func TestInvalidSessionID(t *testing.T) {
	a, err := api.New(validConfig(), setupInfra(t))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	rec := httptest.NewRecorder()
	a.Module.Serve(rec, httptest.NewRequest(http.MethodPost, "/api/sessions/not-a-uuid/validate", nil))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", rec.Code)
	}
}
