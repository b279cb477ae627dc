package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/JaimeStill/rtoval/pkg/database"
	"github.com/JaimeStill/rtoval/pkg/events"
	"github.com/JaimeStill/rtoval/pkg/llm/gemini"
	"github.com/JaimeStill/rtoval/pkg/storage"
	"github.com/JaimeStill/rtoval/pkg/telemetry"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvRtovalEnv             = "RTOVAL_ENV"
	EnvRtovalShutdownTimeout = "RTOVAL_SHUTDOWN_TIMEOUT"
	EnvRtovalVersion         = "RTOVAL_VERSION"
	EnvRtovalLogLevel        = "RTOVAL_LOG_LEVEL"
	EnvRtovalLogFormat       = "RTOVAL_LOG_FORMAT"
)

var databaseEnv = &database.Env{
	Host:            "RTOVAL_DB_HOST",
	Port:            "RTOVAL_DB_PORT",
	Name:            "RTOVAL_DB_NAME",
	User:            "RTOVAL_DB_USER",
	Password:        "RTOVAL_DB_PASSWORD",
	SSLMode:         "RTOVAL_DB_SSL_MODE",
	MaxOpenConns:    "RTOVAL_DB_MAX_OPEN_CONNS",
	MaxIdleConns:    "RTOVAL_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: "RTOVAL_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "RTOVAL_DB_CONN_TIMEOUT",
}

var storageEnv = &storage.Env{
	Provider:         "RTOVAL_STORAGE_PROVIDER",
	ContainerName:    "RTOVAL_STORAGE_CONTAINER_NAME",
	ConnectionString: "RTOVAL_STORAGE_CONNECTION_STRING",
	AccountURL:       "RTOVAL_STORAGE_ACCOUNT_URL",
	Bucket:           "RTOVAL_STORAGE_BUCKET",
	CredentialsFile:  "RTOVAL_STORAGE_CREDENTIALS_FILE",
	Endpoint:         "RTOVAL_STORAGE_ENDPOINT",
}

var providerEnv = &gemini.Env{
	BaseURL: "RTOVAL_PROVIDER_BASE_URL",
	APIKey:  "RTOVAL_PROVIDER_API_KEY",
	Model:   "RTOVAL_PROVIDER_MODEL",
	FileTTL: "RTOVAL_PROVIDER_FILE_TTL",
	Timeout: "RTOVAL_PROVIDER_TIMEOUT",
}

var eventsEnv = &events.Env{
	Enabled:  "RTOVAL_EVENTS_ENABLED",
	Addr:     "RTOVAL_EVENTS_ADDR",
	Password: "RTOVAL_EVENTS_PASSWORD",
	DB:       "RTOVAL_EVENTS_DB",
	Channel:  "RTOVAL_EVENTS_CHANNEL",
}

var telemetryEnv = &telemetry.Env{
	Enabled:     "RTOVAL_TELEMETRY_ENABLED",
	ServiceName: "RTOVAL_TELEMETRY_SERVICE_NAME",
	Endpoint:    "RTOVAL_TELEMETRY_ENDPOINT",
	Insecure:    "RTOVAL_TELEMETRY_INSECURE",
	Headers:     "RTOVAL_TELEMETRY_HEADERS",
	SampleRatio: "RTOVAL_TELEMETRY_SAMPLE_RATIO",
}

// Config is the root configuration for the validation service.
type Config struct {
	Server          ServerConfig     `toml:"server"`
	Database        database.Config  `toml:"database"`
	Storage         storage.Config   `toml:"storage"`
	API             APIConfig        `toml:"api"`
	Provider        gemini.Config    `toml:"provider"`
	Validation      ValidationConfig `toml:"validation"`
	Events          events.Config    `toml:"events"`
	Telemetry       telemetry.Config `toml:"telemetry"`
	ShutdownTimeout string           `toml:"shutdown_timeout"`
	Version         string           `toml:"version"`
	LogLevel        string           `toml:"log_level"`
	LogFormat       string           `toml:"log_format"`
}

// Env returns the RTOVAL_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvRtovalEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// SlogLevel returns LogLevel as a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Load reads the base config (if present), applies any environment overlay,
// and finalizes all values. If no config.toml exists, defaults and environment
// variables provide all configuration.
func Load() (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(BaseConfigFile); err == nil {
		loaded, err := load(BaseConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if path := overlayPath(); path != "" {
		overlay, err := load(path)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", path, err)
		}
		cfg.Merge(overlay)
	}

	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sub-configs.
func (c *Config) Merge(overlay *Config) {
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	if overlay.LogLevel != "" {
		c.LogLevel = overlay.LogLevel
	}
	if overlay.LogFormat != "" {
		c.LogFormat = overlay.LogFormat
	}
	c.Server.Merge(&overlay.Server)
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
	c.API.Merge(&overlay.API)
	c.Provider.Merge(&overlay.Provider)
	c.Validation.Merge(&overlay.Validation)
	c.Events.Merge(&overlay.Events)
	c.Telemetry.Merge(&overlay.Telemetry)
}

func (c *Config) finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}
	if err := c.Server.Finalize(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Database.Finalize(databaseEnv); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Storage.Finalize(storageEnv); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.API.Finalize(); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	if err := c.Provider.Finalize(providerEnv); err != nil {
		return fmt.Errorf("provider: %w", err)
	}
	if err := c.Validation.Finalize(); err != nil {
		return fmt.Errorf("validation: %w", err)
	}
	if err := c.Events.Finalize(eventsEnv); err != nil {
		return fmt.Errorf("events: %w", err)
	}
	if err := c.Telemetry.Finalize(telemetryEnv); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	return nil
}

func (c *Config) loadDefaults() {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvRtovalShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvRtovalVersion); v != "" {
		c.Version = v
	}
	if v := os.Getenv(EnvRtovalLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvRtovalLogFormat); v != "" {
		c.LogFormat = v
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return fmt.Errorf("invalid log_level: %q", c.LogLevel)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log_format: %q", c.LogFormat)
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

func overlayPath() string {
	if env := os.Getenv(EnvRtovalEnv); env != "" {
		path := fmt.Sprintf(OverlayConfigPattern, env)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
