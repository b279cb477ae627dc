// Package infrastructure provides core service initialization for application startup.
// It assembles the shared dependencies domain systems require: logging,
// database, blob storage, session events, tracing, the LLM provider and the
// provider call pacer.
package infrastructure

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/JaimeStill/rtoval/internal/config"
	"github.com/JaimeStill/rtoval/pkg/database"
	"github.com/JaimeStill/rtoval/pkg/events"
	"github.com/JaimeStill/rtoval/pkg/lifecycle"
	"github.com/JaimeStill/rtoval/pkg/llm"
	"github.com/JaimeStill/rtoval/pkg/llm/gemini"
	"github.com/JaimeStill/rtoval/pkg/ratelimit"
	"github.com/JaimeStill/rtoval/pkg/storage"
	"github.com/JaimeStill/rtoval/pkg/telemetry"
)

// Infrastructure holds the core systems required by all domain modules.
type Infrastructure struct {
	Lifecycle *lifecycle.Coordinator
	Logger    *slog.Logger
	Database  database.System
	Storage   storage.System
	Events    events.Publisher
	Telemetry telemetry.System
	Provider  llm.Provider
	Pacer     *ratelimit.Pacer
}

// New creates an Infrastructure from the application configuration.
// It initializes all systems but does not start them; call Start separately.
func New(cfg *config.Config) (*Infrastructure, error) {
	lc := lifecycle.New()
	logger := NewLogger(cfg, os.Stderr)

	db, err := database.New(&cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("database init failed: %w", err)
	}

	store, err := storage.New(&cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("storage init failed: %w", err)
	}

	tel, err := telemetry.New(lc.Context(), &cfg.Telemetry, cfg.Version, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry init failed: %w", err)
	}

	return &Infrastructure{
		Lifecycle: lc,
		Logger:    logger,
		Database:  db,
		Storage:   store,
		Events:    events.New(&cfg.Events, logger),
		Telemetry: tel,
		Provider:  gemini.New(cfg.Provider, logger),
		Pacer:     ratelimit.NewPacer(cfg.Validation.RPM, cfg.Validation.Jitter),
	}, nil
}

// NewLogger builds the process logger from the configured level and format.
func NewLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if strings.EqualFold(cfg.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Start registers all infrastructure systems with the lifecycle coordinator.
func (i *Infrastructure) Start() error {
	if err := i.Database.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("database start failed: %w", err)
	}
	if err := i.Storage.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("storage start failed: %w", err)
	}
	if err := i.Events.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("events start failed: %w", err)
	}
	if err := i.Telemetry.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("telemetry start failed: %w", err)
	}
	return nil
}
