package config

import (
	"fmt"
	"strings"

	"ssw-logs-capture/pkg/errors"
	"ssw-logs-capture/pkg/types"
)

// Validate runs comprehensive checks over a loaded Config, accumulating
// every failure rather than stopping at the first one so an operator
// sees the whole list of problems in one pass.
//
// Grounded on the teacher's ConfigValidator: same accumulate-then-join
// shape, narrowed to the sections this gateway actually has.
func Validate(cfg *types.Config) error {
	v := &validator{cfg: cfg}
	v.validateApp()
	v.validateServer()
	v.validateRateLimit()
	v.validateWAL()
	v.validateDownstream()
	v.validateAuth()

	if len(v.errs) > 0 {
		return v.buildError()
	}
	return nil
}

type validator struct {
	cfg  *types.Config
	errs []error
}

func (v *validator) addError(component, operation, message string) {
	v.errs = append(v.errs, errors.ConfigError(operation, message).WithMetadata("component", component))
}

var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true,
	"warn": true, "error": true, "fatal": true, "panic": true,
}

var validLogFormats = map[string]bool{"json": true, "text": true}

func (v *validator) validateApp() {
	if v.cfg.App.Name == "" {
		v.addError("app", "validate_name", "application name cannot be empty")
	}
	if !validLogLevels[strings.ToLower(v.cfg.App.LogLevel)] {
		v.addError("app", "validate_log_level", fmt.Sprintf("invalid log level: %s", v.cfg.App.LogLevel))
	}
	if !validLogFormats[strings.ToLower(v.cfg.App.LogFormat)] {
		v.addError("app", "validate_log_format", fmt.Sprintf("invalid log format: %s", v.cfg.App.LogFormat))
	}
}

func (v *validator) validateServer() {
	if v.cfg.Server.Port <= 0 || v.cfg.Server.Port > 65535 {
		v.addError("server", "validate_port", fmt.Sprintf("invalid server port: %d", v.cfg.Server.Port))
	}
	if v.cfg.Server.Host == "" {
		v.addError("server", "validate_host", "server host cannot be empty")
	}
}

func (v *validator) validateRateLimit() {
	if v.cfg.RateLimit.RPS <= 0 {
		v.addError("rate_limit", "validate_rps", "rate_limit.rps must be positive")
	}
	if v.cfg.RateLimit.Burst <= 0 {
		v.addError("rate_limit", "validate_burst", "rate_limit.burst must be positive")
	}
}

func (v *validator) validateWAL() {
	if v.cfg.WAL.WALRootPath == "" {
		v.addError("wal", "validate_root_path", "wal.wal_root_path cannot be empty")
	}
	if v.cfg.WAL.SegmentMaxBytes <= 0 {
		v.addError("wal", "validate_segment_max_bytes", "wal.segment_max_bytes must be positive")
	}
	if v.cfg.WAL.DiskFreeMinRatio < 0 || v.cfg.WAL.DiskFreeMinRatio > 1 {
		v.addError("wal", "validate_disk_free_min_ratio", "wal.disk_free_min_ratio must be between 0 and 1")
	}
}

func (v *validator) validateDownstream() {
	if v.cfg.Downstream.BaseURL == "" {
		v.addError("downstream", "validate_base_url", "downstream.base_url cannot be empty")
	}
	if v.cfg.Downstream.MaxRetries < 0 {
		v.addError("downstream", "validate_max_retries", "downstream.max_retries cannot be negative")
	}
	if v.cfg.Downstream.BatchMaxEntries <= 0 {
		v.addError("downstream", "validate_batch_max_entries", "downstream.batch_max_entries must be positive")
	}
	switch v.cfg.Downstream.CompressionAlgo {
	case "", "none", "gzip", "zstd", "snappy", "lz4":
	default:
		v.addError("downstream", "validate_compression_algo", fmt.Sprintf("unsupported compression_algo: %s", v.cfg.Downstream.CompressionAlgo))
	}
}

func (v *validator) validateAuth() {
	for token, key := range v.cfg.Auth.APIKeys {
		if token == "" {
			v.addError("auth", "validate_api_key_token", "api_keys cannot contain an empty token")
		}
		if key.Name == "" {
			v.addError("auth", "validate_api_key_name", fmt.Sprintf("api key for token ending %q has no name", shortSuffix(token)))
		}
	}
}

func shortSuffix(s string) string {
	if len(s) <= 4 {
		return s
	}
	return s[len(s)-4:]
}

func (v *validator) buildError() error {
	messages := make([]string, len(v.errs))
	for i, err := range v.errs {
		messages[i] = err.Error()
	}
	return fmt.Errorf("%d configuration error(s): %s", len(v.errs), strings.Join(messages, "; "))
}
