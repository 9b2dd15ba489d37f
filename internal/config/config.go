// Package config loads engine configuration from environment variables.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all sync engine configuration.
type Config struct {
	// Remote service
	ServerURL string
	AuthToken string

	// Logging
	LogLevel  string
	LogFormat string

	// Workspace state directory (holds workspace.json and token.json)
	StateDir string

	// Transfer codec ("none", "gzip", "zstd")
	CodecAlgorithm string

	// Retry policy
	RetryMaxAttempts int
	RetryInitialWait time.Duration
	RetryMaxWait     time.Duration

	// Concurrency
	Workers        int
	ProjectTimeout time.Duration

	// Conflict handling
	ConflictStrategy string
	PruneRemote      bool
	PruneLocal       bool

	// Metrics endpoint ("" = disabled)
	MetricsAddr string
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		ServerURL:        envOr("DRAFTSYNC_SERVER", "http://localhost:8080"),
		AuthToken:        envOr("DRAFTSYNC_TOKEN", ""),
		LogLevel:         envOr("DRAFTSYNC_LOG_LEVEL", "info"),
		LogFormat:        envOr("DRAFTSYNC_LOG_FORMAT", "console"),
		StateDir:         envOr("DRAFTSYNC_STATE_DIR", defaultStateDir()),
		CodecAlgorithm:   envOr("DRAFTSYNC_CODEC", "none"),
		RetryMaxAttempts: envInt("DRAFTSYNC_RETRY_ATTEMPTS", 3),
		RetryInitialWait: envDuration("DRAFTSYNC_RETRY_WAIT", 500*time.Millisecond),
		RetryMaxWait:     envDuration("DRAFTSYNC_RETRY_MAX_WAIT", 15*time.Second),
		Workers:          envInt("DRAFTSYNC_WORKERS", 4),
		ProjectTimeout:   envDuration("DRAFTSYNC_PROJECT_TIMEOUT", 5*time.Minute),
		ConflictStrategy: envOr("DRAFTSYNC_STRATEGY", "remote-wins"),
		PruneRemote:      envBool("DRAFTSYNC_PRUNE_REMOTE", false),
		PruneLocal:       envBool("DRAFTSYNC_PRUNE_LOCAL", false),
		MetricsAddr:      envOr("DRAFTSYNC_METRICS_ADDR", ""),
	}
}

func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".draftsync"
	}
	return filepath.Join(home, ".draftsync")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
