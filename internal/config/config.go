// Package config loads the gateway's configuration in three phases:
// an optional YAML file, built-in defaults for anything the file
// left unset, and environment variable overrides, in that order.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"ssw-logs-capture/pkg/types"

	"gopkg.in/yaml.v2"
)

// Load reads configPath (if non-empty), applies defaults to any field
// the file didn't set, applies environment overrides, and validates
// the result.
func Load(configPath string) (*types.Config, error) {
	cfg := &types.Config{}

	if configPath != "" {
		if err := loadConfigFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	}

	applyDefaults(cfg)
	applyEnvironmentOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return cfg, nil
}

func loadConfigFile(path string, cfg *types.Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

// applyDefaults fills in every field the config file left at its zero
// value with the default from spec.md §6.
func applyDefaults(cfg *types.Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "ssw-logs-gateway"
	}
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = "info"
	}
	if cfg.App.LogFormat == "" {
		cfg.App.LogFormat = "json"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "production"
	}

	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 15 * time.Second
	}

	if cfg.RateLimit.RPS == 0 {
		cfg.RateLimit.RPS = 100
	}
	if cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = 200
	}

	if len(cfg.Masking.BaselineKeys) == 0 {
		cfg.Masking.BaselineKeys = []string{"password", "api_key", "ssn", "credit_card"}
	}

	if cfg.WAL.WALRootPath == "" {
		cfg.WAL.WALRootPath = "./data/wal"
	}
	if cfg.WAL.SegmentMaxBytes == 0 {
		cfg.WAL.SegmentMaxBytes = 128 * 1024 * 1024
	}
	if cfg.WAL.RotationTimeActive == 0 {
		cfg.WAL.RotationTimeActive = 5 * time.Minute
	}
	if cfg.WAL.RotationTimeIdle == 0 {
		cfg.WAL.RotationTimeIdle = time.Hour
	}
	if cfg.WAL.IdleThreshold == 0 {
		cfg.WAL.IdleThreshold = 10 * time.Minute
	}
	if cfg.WAL.MinRotationBytes == 0 {
		cfg.WAL.MinRotationBytes = 64 * 1024
	}
	if cfg.WAL.ForceRotation == 0 {
		cfg.WAL.ForceRotation = 6 * time.Hour
	}
	if cfg.WAL.TenantWALQuotaBytes == 0 {
		cfg.WAL.TenantWALQuotaBytes = 2 * 1024 * 1024 * 1024
	}
	if cfg.WAL.TenantWALQuotaAge == 0 {
		cfg.WAL.TenantWALQuotaAge = 24 * time.Hour
	}
	if cfg.WAL.DiskFreeMinRatio == 0 {
		cfg.WAL.DiskFreeMinRatio = 0.20
	}

	if cfg.Downstream.PushEndpoint == "" {
		cfg.Downstream.PushEndpoint = "/loki/api/v1/push"
	}
	if cfg.Downstream.TimeoutSeconds == 0 {
		cfg.Downstream.TimeoutSeconds = 30 * time.Second
	}
	if cfg.Downstream.MaxRetries == 0 {
		cfg.Downstream.MaxRetries = 3
	}
	if len(cfg.Downstream.BackoffSeconds) == 0 {
		cfg.Downstream.BackoffSeconds = []int{5, 10, 20}
	}
	if cfg.Downstream.BackoffParkSeconds == 0 {
		cfg.Downstream.BackoffParkSeconds = 60
	}
	if cfg.Downstream.BatchMaxEntries == 0 {
		cfg.Downstream.BatchMaxEntries = 1000
	}
	if cfg.Downstream.BatchMaxBytes == 0 {
		cfg.Downstream.BatchMaxBytes = 1024 * 1024
	}
	if cfg.Downstream.CompressionAlgo == "" {
		cfg.Downstream.CompressionAlgo = "gzip"
	}
	if cfg.Downstream.CompressionMinBytes == 0 {
		cfg.Downstream.CompressionMinBytes = 512
	}
	if cfg.Downstream.DeadLetterDir == "" {
		cfg.Downstream.DeadLetterDir = "./data/dead-letter"
	}

	if cfg.Scheduler.IntervalSeconds == 0 {
		cfg.Scheduler.IntervalSeconds = 30 * time.Second
	}
	if cfg.Scheduler.ShutdownTimeoutSeconds == 0 {
		cfg.Scheduler.ShutdownTimeoutSeconds = 10 * time.Second
	}

	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = cfg.App.Name
	}
	if cfg.Tracing.SampleRatio == 0 {
		cfg.Tracing.SampleRatio = 1.0
	}

	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9090"
	}
}

// applyEnvironmentOverrides applies SSW_-prefixed environment
// variables over whatever the file/defaults produced, matching the
// teacher's override precedence (env always wins last).
func applyEnvironmentOverrides(cfg *types.Config) {
	cfg.App.LogLevel = getEnvString("SSW_LOG_LEVEL", cfg.App.LogLevel)
	cfg.App.Environment = getEnvString("SSW_ENVIRONMENT", cfg.App.Environment)

	cfg.Server.Host = getEnvString("SSW_SERVER_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvInt("SSW_SERVER_PORT", cfg.Server.Port)

	cfg.RateLimit.RPS = getEnvFloat("SSW_RATE_LIMIT_RPS", cfg.RateLimit.RPS)
	cfg.RateLimit.Burst = getEnvInt("SSW_RATE_LIMIT_BURST", cfg.RateLimit.Burst)

	cfg.WAL.WALRootPath = getEnvString("SSW_WAL_ROOT_PATH", cfg.WAL.WALRootPath)

	cfg.Downstream.BaseURL = getEnvString("SSW_DOWNSTREAM_BASE_URL", cfg.Downstream.BaseURL)
	cfg.Downstream.DeadLetterDir = getEnvString("SSW_DOWNSTREAM_DEAD_LETTER_DIR", cfg.Downstream.DeadLetterDir)

	cfg.Auth.AdminToken = getEnvString("SSW_ADMIN_TOKEN", cfg.Auth.AdminToken)

	cfg.Tracing.Enabled = getEnvBool("SSW_TRACING_ENABLED", cfg.Tracing.Enabled)
	cfg.Tracing.OTLPEndpoint = getEnvString("SSW_TRACING_OTLP_ENDPOINT", cfg.Tracing.OTLPEndpoint)

	cfg.Metrics.Addr = getEnvString("SSW_METRICS_ADDR", cfg.Metrics.Addr)
}

func getEnvString(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}
