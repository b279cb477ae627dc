package events

import (
	"fmt"
	"os"
	"strconv"
)

// Config selects the event transport. When Redis is disabled events stay
// in-process, which is enough for a single server instance.
type Config struct {
	Enabled  bool   `toml:"enabled"`
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Channel  string `toml:"channel"`
	Buffer   int    `toml:"buffer"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Enabled  string
	Addr     string
	Password string
	DB       string
	Channel  string
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay. Enabled always applies.
func (c *Config) Merge(overlay *Config) {
	c.Enabled = overlay.Enabled
	if overlay.Addr != "" {
		c.Addr = overlay.Addr
	}
	if overlay.Password != "" {
		c.Password = overlay.Password
	}
	if overlay.DB != 0 {
		c.DB = overlay.DB
	}
	if overlay.Channel != "" {
		c.Channel = overlay.Channel
	}
	if overlay.Buffer != 0 {
		c.Buffer = overlay.Buffer
	}
}

func (c *Config) loadDefaults() {
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
	if c.Channel == "" {
		c.Channel = "rtoval:sessions"
	}
	if c.Buffer <= 0 {
		c.Buffer = 32
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.Enabled != "" {
		if v := os.Getenv(env.Enabled); v != "" {
			if enabled, err := strconv.ParseBool(v); err == nil {
				c.Enabled = enabled
			}
		}
	}
	if env.Addr != "" {
		if v := os.Getenv(env.Addr); v != "" {
			c.Addr = v
		}
	}
	if env.Password != "" {
		if v := os.Getenv(env.Password); v != "" {
			c.Password = v
		}
	}
	if env.DB != "" {
		if v := os.Getenv(env.DB); v != "" {
			if db, err := strconv.Atoi(v); err == nil {
				c.DB = db
			}
		}
	}
	if env.Channel != "" {
		if v := os.Getenv(env.Channel); v != "" {
			c.Channel = v
		}
	}
}

func (c *Config) validate() error {
	if c.DB < 0 {
		return fmt.Errorf("db must be non-negative")
	}
	if c.Enabled && c.Addr == "" {
		return fmt.Errorf("addr required when enabled")
	}
	return nil
}
