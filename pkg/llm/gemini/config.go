package gemini

import (
	"fmt"
	"os"
	"time"
)

// Config holds Gemini API connection and file-handling parameters.
type Config struct {
	BaseURL      string `toml:"base_url"`
	APIKey       string `toml:"api_key"`
	Model        string `toml:"model"`
	FileTTL      string `toml:"file_ttl"`
	PollInterval string `toml:"poll_interval"`
	PollTimeout  string `toml:"poll_timeout"`
	Timeout      string `toml:"timeout"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	BaseURL string
	APIKey  string
	Model   string
	FileTTL string
	Timeout string
}

// FileTTLDuration returns FileTTL as a time.Duration.
func (c *Config) FileTTLDuration() time.Duration {
	d, _ := time.ParseDuration(c.FileTTL)
	return d
}

// PollIntervalDuration returns PollInterval as a time.Duration.
func (c *Config) PollIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.PollInterval)
	return d
}

// PollTimeoutDuration returns PollTimeout as a time.Duration.
func (c *Config) PollTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.PollTimeout)
	return d
}

// TimeoutDuration returns Timeout as a time.Duration.
func (c *Config) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.BaseURL != "" {
		c.BaseURL = overlay.BaseURL
	}
	if overlay.APIKey != "" {
		c.APIKey = overlay.APIKey
	}
	if overlay.Model != "" {
		c.Model = overlay.Model
	}
	if overlay.FileTTL != "" {
		c.FileTTL = overlay.FileTTL
	}
	if overlay.PollInterval != "" {
		c.PollInterval = overlay.PollInterval
	}
	if overlay.PollTimeout != "" {
		c.PollTimeout = overlay.PollTimeout
	}
	if overlay.Timeout != "" {
		c.Timeout = overlay.Timeout
	}
}

func (c *Config) loadDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://generativelanguage.googleapis.com"
	}
	if c.Model == "" {
		c.Model = "gemini-2.5-flash"
	}
	if c.FileTTL == "" {
		c.FileTTL = "48h"
	}
	if c.PollInterval == "" {
		c.PollInterval = "2s"
	}
	if c.PollTimeout == "" {
		c.PollTimeout = "2m"
	}
	if c.Timeout == "" {
		c.Timeout = "120s"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.BaseURL != "" {
		if v := os.Getenv(env.BaseURL); v != "" {
			c.BaseURL = v
		}
	}
	if env.APIKey != "" {
		if v := os.Getenv(env.APIKey); v != "" {
			c.APIKey = v
		}
	}
	if env.Model != "" {
		if v := os.Getenv(env.Model); v != "" {
			c.Model = v
		}
	}
	if env.FileTTL != "" {
		if v := os.Getenv(env.FileTTL); v != "" {
			c.FileTTL = v
		}
	}
	if env.Timeout != "" {
		if v := os.Getenv(env.Timeout); v != "" {
			c.Timeout = v
		}
	}
}

func (c *Config) validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("api_key required")
	}
	for name, v := range map[string]string{
		"file_ttl":      c.FileTTL,
		"poll_interval": c.PollInterval,
		"poll_timeout":  c.PollTimeout,
		"timeout":       c.Timeout,
	} {
		if d, err := time.ParseDuration(v); err != nil || d <= 0 {
			return fmt.Errorf("invalid %s: %q", name, v)
		}
	}
	return nil
}
