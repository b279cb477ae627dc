package config

import (
	"fmt"
	"os"

	"github.com/JaimeStill/rtoval/pkg/formatting"
	"github.com/JaimeStill/rtoval/pkg/middleware"
	"github.com/JaimeStill/rtoval/pkg/openapi"
	"github.com/JaimeStill/rtoval/pkg/pagination"
)

var corsEnv = &middleware.CORSEnv{
	Enabled:          "RTOVAL_CORS_ENABLED",
	Origins:          "RTOVAL_CORS_ORIGINS",
	AllowedMethods:   "RTOVAL_CORS_ALLOWED_METHODS",
	AllowedHeaders:   "RTOVAL_CORS_ALLOWED_HEADERS",
	AllowCredentials: "RTOVAL_CORS_ALLOW_CREDENTIALS",
	MaxAge:           "RTOVAL_CORS_MAX_AGE",
}

var authEnv = &middleware.AuthEnv{
	Enabled:  "RTOVAL_AUTH_ENABLED",
	Issuer:   "RTOVAL_AUTH_ISSUER",
	ClientID: "RTOVAL_AUTH_CLIENT_ID",
}

var openapiEnv = &openapi.ConfigEnv{
	Title:       "RTOVAL_OPENAPI_TITLE",
	Description: "RTOVAL_OPENAPI_DESCRIPTION",
}

var paginationEnv = &pagination.ConfigEnv{
	DefaultPageSize: "RTOVAL_PAGINATION_DEFAULT_PAGE_SIZE",
	MaxPageSize:     "RTOVAL_PAGINATION_MAX_PAGE_SIZE",
}

// APIConfig holds API routing, CORS, bearer auth, OpenAPI metadata, and pagination settings.
type APIConfig struct {
	BasePath      string                `toml:"base_path"`
	MaxUploadSize string                `toml:"max_upload_size"`
	CORS          middleware.CORSConfig `toml:"cors"`
	Auth          middleware.AuthConfig `toml:"auth"`
	OpenAPI       openapi.Config        `toml:"openapi"`
	Pagination    pagination.Config     `toml:"pagination"`
}

func (c *APIConfig) MaxUploadSizeBytes() int64 {
	size, err := formatting.ParseBytes(c.MaxUploadSize)
	if err != nil {
		return 50 * 1024 * 1024 // 50MB fallback
	}
	return size
}

// Finalize applies defaults, environment variable overrides, and validation
// for the API config and its nested configs.
func (c *APIConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.CORS.Finalize(corsEnv); err != nil {
		return fmt.Errorf("cors: %w", err)
	}
	if err := c.Auth.Finalize(authEnv); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if err := c.OpenAPI.Finalize(openapiEnv); err != nil {
		return fmt.Errorf("openapi: %w", err)
	}
	if err := c.Pagination.Finalize(paginationEnv); err != nil {
		return fmt.Errorf("pagination: %w", err)
	}
	return nil
}

// Merge overwrites non-zero fields from overlay across nested configs.
func (c *APIConfig) Merge(overlay *APIConfig) {
	if overlay.BasePath != "" {
		c.BasePath = overlay.BasePath
	}
	if overlay.MaxUploadSize != "" {
		c.MaxUploadSize = overlay.MaxUploadSize
	}

	c.CORS.Merge(&overlay.CORS)
	c.Auth.Merge(&overlay.Auth)
	c.OpenAPI.Merge(&overlay.OpenAPI)
	c.Pagination.Merge(&overlay.Pagination)
}

func (c *APIConfig) loadDefaults() {
	if c.BasePath == "" {
		c.BasePath = "/api"
	}
	if c.MaxUploadSize == "" {
		c.MaxUploadSize = "50MB"
	}
}

func (c *APIConfig) loadEnv() {
	if v := os.Getenv("RTOVAL_API_BASE_PATH"); v != "" {
		c.BasePath = v
	}
	if v := os.Getenv("RTOVAL_API_MAX_UPLOAD_SIZE"); v != "" {
		c.MaxUploadSize = v
	}
}
