// Package types defines the core data structures shared across the
// ingestion gateway: the client-facing LogEntry and IngestBatch, and
// the server-side Tenant and Segment bookkeeping types.
package types

import "time"

// Level is a validated log severity.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
	LevelFatal Level = "FATAL"
)

// ValidLevels is the allow-list of accepted Level values.
var ValidLevels = map[Level]bool{
	LevelDebug: true,
	LevelInfo:  true,
	LevelWarn:  true,
	LevelError: true,
	LevelFatal: true,
}

// AllowedLabelKeys is the fixed set of keys permitted in LogEntry.Labels.
var AllowedLabelKeys = map[string]bool{
	"service":        true,
	"env":            true,
	"level":          true,
	"schema_version": true,
	"region":         true,
	"tenant":         true,
}

// LogEntry is an immutable record produced by a client. See spec.md §3.
//
// ReceivedAt and Tenant are set by the gateway, never by the client,
// and are not part of the wire request body.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	Service   string    `json:"service"`
	Env       string    `json:"env"`

	Labels   map[string]string `json:"labels,omitempty"`
	TraceID  string            `json:"trace_id,omitempty"`
	SpanID   string            `json:"span_id,omitempty"`
	Metadata map[string]any    `json:"metadata,omitempty"`

	ReceivedAt time.Time `json:"-"`
	Tenant     string    `json:"-"`
}

// IngestBatch is an ordered sequence of 1-500 LogEntry values submitted
// in a single request. See spec.md §3.
type IngestBatch struct {
	Entries        []LogEntry `json:"entries"`
	IdempotencyKey string     `json:"idempotency_key,omitempty"`
}

const (
	MaxEntryBytes       = 32 * 1024
	MaxBatchBytes       = 1 * 1024 * 1024
	MaxBatchEntries     = 500
	MinBatchEntries     = 1
	MaxMessageLen       = 8192
	MaxServiceLen       = 64
	MaxEnvLen           = 32
	MaxLabelKeys        = 6
	MaxLabelValueLen    = 64
	MaxTraceIDLen       = 128
	MaxSpanIDLen        = 64
	MaxMetadataDepth    = 5
	MaxIdempotencyKeyLen = 128
)

// SegmentState describes whether a WAL segment is still accepting
// writes or has been handed off to the forwarder.
type SegmentState string

const (
	SegmentActive SegmentState = "active"
	SegmentReady  SegmentState = "ready"
)

// SegmentInfo describes a WAL segment on disk, as returned by the
// directory scanner. See spec.md §3 ("Segment").
type SegmentInfo struct {
	TenantDir      string
	Path           string
	SequenceNumber int
	State          SegmentState
	SizeBytes      int64
	CreationTime   time.Time
	LastWriteTime  time.Time
	RecordCount    int
}

// WALStats summarizes a tenant's WAL directory, per spec.md §4.3
// ("stats(tenant)").
type WALStats struct {
	ActiveSegments int
	ReadySegments  int
	DiskBytes      int64
}
