// Package config defines service configuration and its loading hooks.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Storage drivers.
const (
	StorageMemory = "memory"
	StorageSQLite = "sqlite"
)

// Analysis dispatch modes.
const (
	AnalysisBatch   = "batch"
	AnalysisPerTeam = "per_team"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects the handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`
	// ServerURL is the public base URL drones post telemetry to.
	ServerURL string `koanf:"server_url"`

	StorageDriver string `koanf:"storage_driver"`
	StoragePath   string `koanf:"storage_path"`

	// AnalysisURL is the base URL of the external analysis service.
	AnalysisURL            string `koanf:"analysis_url"`
	AnalysisMode           string `koanf:"analysis_mode"`
	AnalysisTimeoutMS      int    `koanf:"analysis_timeout_ms"`
	AnalysisBatchTimeoutMS int    `koanf:"analysis_batch_timeout_ms"`

	// OfflineThresholdSeconds is how stale lastSeen may get before a sweep flips a device offline.
	OfflineThresholdSeconds int `koanf:"offline_threshold_seconds"`
	// SweepIntervalSeconds schedules periodic sweeps; 0 leaves sweeps on demand only.
	SweepIntervalSeconds int `koanf:"sweep_interval_seconds"`

	DeadlineCheckMS int  `koanf:"deadline_check_ms"`
	AutoEndRounds   bool `koanf:"auto_end_rounds"`

	// MQTTBroker is the broker URL, e.g. tcp://localhost:1883. Empty disables publishing.
	MQTTBroker           string `koanf:"mqtt_broker"`
	MQTTClientID         string `koanf:"mqtt_client_id"`
	MQTTUsername         string `koanf:"mqtt_username"`
	MQTTPassword         string `koanf:"mqtt_password"`
	MQTTPublishTimeoutMS int    `koanf:"mqtt_publish_timeout_ms"`
	MQTTCommandGapMS     int    `koanf:"mqtt_command_gap_ms"`

	CommandQueueSize int `koanf:"command_queue_size"`
	CommandWorkers   int `koanf:"command_workers"`

	// DedupeSize bounds the telemetry batch idempotency cache.
	DedupeSize int `koanf:"dedupe_size"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:                "info",
		LogFormat:               "text",
		Addr:                    ":9080",
		ServerURL:               "http://localhost:9080",
		StorageDriver:           StorageMemory,
		StoragePath:             "dronesoccer.db",
		AnalysisURL:             "http://localhost:5001",
		AnalysisMode:            AnalysisBatch,
		AnalysisTimeoutMS:       30_000,
		AnalysisBatchTimeoutMS:  60_000,
		OfflineThresholdSeconds: 30,
		SweepIntervalSeconds:    0,
		DeadlineCheckMS:         1_000,
		AutoEndRounds:           false,
		MQTTClientID:            "dronesoccer-engine",
		MQTTPublishTimeoutMS:    5_000,
		MQTTCommandGapMS:        100,
		CommandQueueSize:        1_024,
		CommandWorkers:          2,
		DedupeSize:              50_000,
	}
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.StorageDriver != StorageMemory && c.StorageDriver != StorageSQLite:
		return fmt.Errorf("%w: unknown storage_driver %q", ErrInvalidConfig, c.StorageDriver)
	case c.StorageDriver == StorageSQLite && strings.TrimSpace(c.StoragePath) == "":
		return fmt.Errorf("%w: storage_path is required for sqlite", ErrInvalidConfig)
	case c.AnalysisMode != AnalysisBatch && c.AnalysisMode != AnalysisPerTeam:
		return fmt.Errorf("%w: unknown analysis_mode %q", ErrInvalidConfig, c.AnalysisMode)
	case c.AnalysisTimeoutMS <= 0 || c.AnalysisBatchTimeoutMS <= 0:
		return fmt.Errorf("%w: analysis timeouts must be positive", ErrInvalidConfig)
	case c.OfflineThresholdSeconds <= 0:
		return fmt.Errorf("%w: offline_threshold_seconds must be positive", ErrInvalidConfig)
	case c.SweepIntervalSeconds < 0:
		return fmt.Errorf("%w: sweep_interval_seconds must not be negative", ErrInvalidConfig)
	case c.DeadlineCheckMS <= 0:
		return fmt.Errorf("%w: deadline_check_ms must be positive", ErrInvalidConfig)
	}
	return nil
}

// AnalysisTimeout is the single-team call timeout.
func (c *Config) AnalysisTimeout() time.Duration {
	return time.Duration(c.AnalysisTimeoutMS) * time.Millisecond
}

// AnalysisBatchTimeout is the combined call timeout.
func (c *Config) AnalysisBatchTimeout() time.Duration {
	return time.Duration(c.AnalysisBatchTimeoutMS) * time.Millisecond
}

// OfflineThreshold is the liveness window used by sweeps.
func (c *Config) OfflineThreshold() time.Duration {
	return time.Duration(c.OfflineThresholdSeconds) * time.Second
}

// SweepInterval is the period of scheduled sweeps; zero means disabled.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

// DeadlineCheckInterval is the period of the round deadline watch.
func (c *Config) DeadlineCheckInterval() time.Duration {
	return time.Duration(c.DeadlineCheckMS) * time.Millisecond
}
