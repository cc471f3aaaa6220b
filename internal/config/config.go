// Package config provides configuration loading for one extraction run.
package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Config holds everything one extraction run needs: the account endpoint,
// credentials, output layout, polling cadence, and download pool sizing.
// It is built once in main and passed down explicitly; nothing here is
// shared process-wide.
type Config struct {
	// AccountURL is the account-scoped API root,
	// e.g. https://historical.example.com/accounts/acme
	AccountURL string
	Username   string
	Password   string

	// OutputRoot is the directory under which per-job output folders are created.
	OutputRoot string
	// FriendlyNames names the output folder after the sanitized job title
	// instead of the server-assigned identifier.
	FriendlyNames bool

	// SubmitInterval is the short wait between polls while confirming a
	// submission has appeared in the account job list.
	SubmitInterval time.Duration
	// QuoteInterval is the wait between polls while the server estimates the job.
	QuoteInterval time.Duration
	// RunInterval is the wait between polls while the job executes. Jobs run
	// for hours, so this is measured in minutes.
	RunInterval time.Duration

	Concurrency int // max in-flight file downloads
	BatchSize   int // URLs dispatched per progress batch

	MetricsPort string
}

// Load builds a Config from environment variables. The password may come
// from a secret file (EXTRACTOR_PASSWORD_FILE) or directly from the
// environment; the file wins when both are set.
func Load() *Config {
	password := GetSecretFile(GetEnv("EXTRACTOR_PASSWORD_FILE", ""))
	if password == "" {
		password = GetEnv("EXTRACTOR_PASSWORD", "")
	}

	return &Config{
		AccountURL:     GetEnv("EXTRACTOR_ACCOUNT_URL", ""),
		Username:       GetEnv("EXTRACTOR_USERNAME", ""),
		Password:       password,
		OutputRoot:     GetEnv("EXTRACTOR_OUTPUT_ROOT", "output"),
		FriendlyNames:  GetBoolEnv("EXTRACTOR_FRIENDLY_NAMES", false),
		SubmitInterval: GetDurationEnv("EXTRACTOR_SUBMIT_INTERVAL", 10*time.Second),
		QuoteInterval:  GetDurationEnv("EXTRACTOR_QUOTE_INTERVAL", 2*time.Minute),
		RunInterval:    GetDurationEnv("EXTRACTOR_RUN_INTERVAL", 5*time.Minute),
		Concurrency:    GetIntEnv("EXTRACTOR_CONCURRENCY", 30),
		BatchSize:      GetIntEnv("EXTRACTOR_BATCH_SIZE", 100),
		MetricsPort:    GetEnv("EXTRACTOR_METRICS_PORT", "9090"),
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.AccountURL == "" {
		return fmt.Errorf("account URL is required (EXTRACTOR_ACCOUNT_URL)")
	}
	parsed, err := url.Parse(c.AccountURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("account URL %q is not a valid absolute URL", c.AccountURL)
	}
	if c.Username == "" {
		return fmt.Errorf("username is required (EXTRACTOR_USERNAME)")
	}
	if c.Password == "" {
		return fmt.Errorf("password is required (EXTRACTOR_PASSWORD or EXTRACTOR_PASSWORD_FILE)")
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive, got %d", c.Concurrency)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	return nil
}

// JobsURL returns the account job-list endpoint.
func (c *Config) JobsURL() string {
	return strings.TrimSuffix(c.AccountURL, "/") + "/jobs.json"
}

var unsafeNameChars = regexp.MustCompile(`[^a-z0-9._-]+`)

// OutputDir returns the per-job output directory: the sanitized title when
// friendly naming is on, the server-assigned identifier otherwise.
func (c *Config) OutputDir(title, identifier string) string {
	name := identifier
	if c.FriendlyNames {
		name = SanitizeTitle(title)
	}
	return filepath.Join(c.OutputRoot, name)
}

// SanitizeTitle turns a job title into a filesystem-safe folder name.
func SanitizeTitle(title string) string {
	name := strings.ToLower(strings.TrimSpace(title))
	name = unsafeNameChars.ReplaceAllString(name, "-")
	return strings.Trim(name, "-")
}
