package types

import "time"

// Config is the root configuration object for the gateway. See
// spec.md §6 ("Configuration (recognized options)").
type Config struct {
	App        AppConfig        `yaml:"app"`
	Server     ServerConfig     `yaml:"server"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Masking    MaskingConfig    `yaml:"masking"`
	WAL        WALConfig        `yaml:"wal"`
	Downstream DownstreamConfig `yaml:"downstream"`
	Auth       AuthConfig       `yaml:"auth"`
	Tracing    TracingConfig    `yaml:"tracing"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// MetricsConfig configures the separate Prometheus/liveness listener,
// kept apart from the main API listener per the teacher's dual-server
// pattern.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// AppConfig contains core application identification and logging
// settings.
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// RateLimitConfig is the per-tenant token bucket shape. Every tenant
// uses these values; there are no per-tenant overrides. See spec.md §4.4.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// PartialRule configures a partial-masking strategy for a specific key.
// Exactly one of KeepPrefix, KeepSuffix, MaskEmail should be set; see
// spec.md §4.2.
type PartialRule struct {
	KeepPrefix int  `yaml:"keep_prefix"`
	KeepSuffix int  `yaml:"keep_suffix"`
	MaskEmail  bool `yaml:"mask_email"`
}

// MaskingConfig configures the masking engine. See spec.md §4.2.
type MaskingConfig struct {
	BaselineKeys    []string               `yaml:"baseline_keys"`
	PartialRules    map[string]PartialRule `yaml:"partial_rules"`
	TenantOverrides map[string][]string    `yaml:"tenant_overrides"`
}

// WALConfig configures segment sizing, rotation thresholds, and
// per-tenant quotas. Defaults mirror spec.md §6 exactly.
type WALConfig struct {
	WALRootPath               string        `yaml:"wal_root_path"`
	SegmentMaxBytes           int64         `yaml:"segment_max_bytes"`
	RotationTimeActive        time.Duration `yaml:"rotation_time_active_minutes"`
	RotationTimeIdle          time.Duration `yaml:"rotation_time_idle_hours"`
	IdleThreshold             time.Duration `yaml:"idle_threshold_minutes"`
	MinRotationBytes          int64         `yaml:"min_rotation_bytes"`
	ForceRotation             time.Duration `yaml:"force_rotation_hours"`
	TenantWALQuotaBytes       int64         `yaml:"tenant_wal_quota_bytes"`
	TenantWALQuotaAge         time.Duration `yaml:"tenant_wal_quota_age_hours"`
	DiskFreeMinRatio          float64       `yaml:"disk_free_min_ratio"`
}

// DownstreamConfig configures the forwarder's push target. See
// spec.md §6.
type DownstreamConfig struct {
	BaseURL           string        `yaml:"base_url"`
	PushEndpoint      string        `yaml:"push_endpoint"`
	TimeoutSeconds    time.Duration `yaml:"timeout_seconds"`
	MaxRetries        int           `yaml:"max_retries"`
	BackoffSeconds    []int         `yaml:"backoff_seconds"`
	BackoffParkSeconds int          `yaml:"backoff_park_seconds"`
	BatchMaxEntries   int           `yaml:"batch_max_entries"`
	BatchMaxBytes     int64         `yaml:"batch_max_bytes"`
	CompressionAlgo   string        `yaml:"compression_algo"`
	CompressionMinBytes int         `yaml:"compression_min_bytes"`
	DeadLetterDir     string        `yaml:"dead_letter_dir"`
}

// SchedulerConfig configures the background forwarder loop. See
// spec.md §4.7.
type SchedulerConfig struct {
	IntervalSeconds        time.Duration `yaml:"interval_seconds"`
	ShutdownTimeoutSeconds time.Duration `yaml:"shutdown_timeout_seconds"`
}

// APIKey describes a single bearer token accepted by the ingest
// endpoint.
type APIKey struct {
	Name        string `yaml:"name"`
	Active      bool   `yaml:"active"`
	Description string `yaml:"description"`
}

// AuthConfig configures bearer-token authentication. See spec.md §6.
type AuthConfig struct {
	APIKeys    map[string]APIKey `yaml:"api_keys"`
	AdminToken string            `yaml:"admin_token"`
}

// TracingConfig configures the optional OTLP exporter. Disabled by
// default; the gateway runs correctly with a no-op tracer.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	ServiceName string  `yaml:"service_name"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	SampleRatio float64 `yaml:"sample_ratio"`
}
