package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Validation strategies.
const (
	StrategyIndividual = "individual"
	StrategyBatch      = "batch"
)

const (
	EnvValidationStrategy      = "RTOVAL_VALIDATION_STRATEGY"
	EnvValidationBatchSize     = "RTOVAL_VALIDATION_BATCH_SIZE"
	EnvValidationRPM           = "RTOVAL_VALIDATION_RPM"
	EnvValidationJitter        = "RTOVAL_VALIDATION_JITTER"
	EnvValidationWorkers       = "RTOVAL_VALIDATION_WORKERS"
	EnvValidationQueueSize     = "RTOVAL_VALIDATION_QUEUE_SIZE"
	EnvValidationSweepInterval = "RTOVAL_VALIDATION_SWEEP_INTERVAL"
	EnvValidationMaxAttempts   = "RTOVAL_VALIDATION_MAX_ATTEMPTS"
	EnvValidationBaseDelay     = "RTOVAL_VALIDATION_BASE_DELAY"
	EnvValidationMaxDelay      = "RTOVAL_VALIDATION_MAX_DELAY"
	EnvValidationUploads       = "RTOVAL_VALIDATION_UPLOAD_CONCURRENCY"
)

// ValidationConfig tunes the orchestrator and its runner.
type ValidationConfig struct {
	Strategy          string  `toml:"strategy"`
	BatchSize         int     `toml:"batch_size"`
	RPM               int     `toml:"rpm"`
	Jitter            float64 `toml:"jitter"`
	Workers           int     `toml:"workers"`
	QueueSize         int     `toml:"queue_size"`
	SweepInterval     string  `toml:"sweep_interval"`
	MaxAttempts       int     `toml:"max_attempts"`
	BaseDelay         string  `toml:"base_delay"`
	MaxDelay          string  `toml:"max_delay"`
	UploadConcurrency int     `toml:"upload_concurrency"`
}

// SweepIntervalDuration returns SweepInterval as a time.Duration.
func (c *ValidationConfig) SweepIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.SweepInterval)
	return d
}

// BaseDelayDuration returns BaseDelay as a time.Duration.
func (c *ValidationConfig) BaseDelayDuration() time.Duration {
	d, _ := time.ParseDuration(c.BaseDelay)
	return d
}

// MaxDelayDuration returns MaxDelay as a time.Duration.
func (c *ValidationConfig) MaxDelayDuration() time.Duration {
	d, _ := time.ParseDuration(c.MaxDelay)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *ValidationConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *ValidationConfig) Merge(overlay *ValidationConfig) {
	if overlay.Strategy != "" {
		c.Strategy = overlay.Strategy
	}
	if overlay.BatchSize != 0 {
		c.BatchSize = overlay.BatchSize
	}
	if overlay.RPM != 0 {
		c.RPM = overlay.RPM
	}
	if overlay.Jitter != 0 {
		c.Jitter = overlay.Jitter
	}
	if overlay.Workers != 0 {
		c.Workers = overlay.Workers
	}
	if overlay.QueueSize != 0 {
		c.QueueSize = overlay.QueueSize
	}
	if overlay.SweepInterval != "" {
		c.SweepInterval = overlay.SweepInterval
	}
	if overlay.MaxAttempts != 0 {
		c.MaxAttempts = overlay.MaxAttempts
	}
	if overlay.BaseDelay != "" {
		c.BaseDelay = overlay.BaseDelay
	}
	if overlay.MaxDelay != "" {
		c.MaxDelay = overlay.MaxDelay
	}
	if overlay.UploadConcurrency != 0 {
		c.UploadConcurrency = overlay.UploadConcurrency
	}
}

func (c *ValidationConfig) loadDefaults() {
	if c.Strategy == "" {
		c.Strategy = StrategyIndividual
	}
	if c.BatchSize == 0 {
		c.BatchSize = 10
	}
	if c.RPM == 0 {
		c.RPM = 15
	}
	if c.Jitter == 0 {
		c.Jitter = 0.25
	}
	if c.Workers == 0 {
		c.Workers = 2
	}
	if c.QueueSize == 0 {
		c.QueueSize = 32
	}
	if c.SweepInterval == "" {
		c.SweepInterval = "15m"
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 5
	}
	if c.BaseDelay == "" {
		c.BaseDelay = "1s"
	}
	if c.MaxDelay == "" {
		c.MaxDelay = "32s"
	}
	if c.UploadConcurrency == 0 {
		c.UploadConcurrency = 4
	}
}

func (c *ValidationConfig) loadEnv() {
	setInt := func(name string, dst *int) {
		if v := os.Getenv(name); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setString := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	setString(EnvValidationStrategy, &c.Strategy)
	setInt(EnvValidationBatchSize, &c.BatchSize)
	setInt(EnvValidationRPM, &c.RPM)
	if v := os.Getenv(EnvValidationJitter); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Jitter = f
		}
	}
	setInt(EnvValidationWorkers, &c.Workers)
	setInt(EnvValidationQueueSize, &c.QueueSize)
	setString(EnvValidationSweepInterval, &c.SweepInterval)
	setInt(EnvValidationMaxAttempts, &c.MaxAttempts)
	setString(EnvValidationBaseDelay, &c.BaseDelay)
	setString(EnvValidationMaxDelay, &c.MaxDelay)
	setInt(EnvValidationUploads, &c.UploadConcurrency)
}

func (c *ValidationConfig) validate() error {
	if c.Strategy != StrategyIndividual && c.Strategy != StrategyBatch {
		return fmt.Errorf("strategy must be %q or %q, got %q", StrategyIndividual, StrategyBatch, c.Strategy)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("batch_size must be positive: %d", c.BatchSize)
	}
	if c.RPM < 0 {
		return fmt.Errorf("rpm must not be negative: %d", c.RPM)
	}
	if c.Jitter < 0 || c.Jitter > 1 {
		return fmt.Errorf("jitter must be within [0, 1]: %v", c.Jitter)
	}
	if c.Workers < 1 || c.QueueSize < 1 || c.UploadConcurrency < 1 {
		return fmt.Errorf("workers, queue_size and upload_concurrency must be positive")
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be positive: %d", c.MaxAttempts)
	}
	if _, err := time.ParseDuration(c.SweepInterval); err != nil {
		return fmt.Errorf("invalid sweep_interval: %w", err)
	}
	if _, err := time.ParseDuration(c.BaseDelay); err != nil {
		return fmt.Errorf("invalid base_delay: %w", err)
	}
	if _, err := time.ParseDuration(c.MaxDelay); err != nil {
		return fmt.Errorf("invalid max_delay: %w", err)
	}
	return nil
}
