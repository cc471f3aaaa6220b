package downloader

import (
	"time"

	"extractor/internal/config"
)

// Breaker defaults are generous: the breaker exists to stop hammering a
// provider that is actively throttling, not to give up on stragglers.
const (
	defaultBreakerThreshold = 25
	defaultBreakerCooldown  = 30 * time.Second
)

// Config sizes the download worker pool.
type Config struct {
	// Concurrency caps in-flight fetches. Storage providers enforce
	// per-account connection limits, so this is a hard admission bound.
	Concurrency int // default: 30
	// BatchSize bounds how many URLs are dispatched per progress batch.
	// Batching only bounds memory and makes progress observable; it is not
	// required for correctness.
	BatchSize int // default: 100
	// HTTPTimeout is the per-file fetch timeout.
	HTTPTimeout time.Duration // default: 5m
	// RetryFailed re-enqueues failed units once under the same admission
	// discipline before reporting them.
	RetryFailed bool
}

// LoadConfigFromEnv loads downloader configuration from environment variables.
func LoadConfigFromEnv() Config {
	cfg := Config{
		Concurrency: config.GetIntEnv("EXTRACTOR_CONCURRENCY", 30),
		BatchSize:   config.GetIntEnv("EXTRACTOR_BATCH_SIZE", 100),
		HTTPTimeout: config.GetDurationEnv("EXTRACTOR_FILE_TIMEOUT", 5*time.Minute),
		RetryFailed: config.GetBoolEnv("EXTRACTOR_RETRY_FAILED", true),
	}
	return cfg.withDefaults()
}

// withDefaults fills in zero values with defaults.
func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = 30
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 5 * time.Minute
	}
	return c
}
