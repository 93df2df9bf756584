// Package validate implements the record and batch validation rules
// from spec.md §4.1. It is stateless and side-effect-free: every
// function here takes its input by value (or read-only reference) and
// returns an error without mutating anything.
package validate

import (
	"encoding/json"
	"fmt"
	"regexp"

	"ssw-logs-capture/pkg/errors"
	"ssw-logs-capture/pkg/types"
	"ssw-logs-capture/pkg/valuetree"
)

var serviceEnvPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// Entry validates a single LogEntry against the field constraints in
// spec.md §3. The reason tag is carried in the returned
// GatewayError's Reason field, apart from its message; HTTP callers
// should treat any non-nil error as a 400 validation_error.
func Entry(e *types.LogEntry) error {
	if e.Timestamp.IsZero() {
		return fail("missing_field", "timestamp is required")
	}
	if !types.ValidLevels[e.Level] {
		return fail("bad_level", fmt.Sprintf("level %q is not one of DEBUG,INFO,WARN,ERROR,FATAL", e.Level))
	}
	if e.Message == "" || len(e.Message) > types.MaxMessageLen {
		return fail("missing_field", "message must be 1-8192 characters")
	}
	if e.Service == "" || len(e.Service) > types.MaxServiceLen || !serviceEnvPattern.MatchString(e.Service) {
		return fail("missing_field", "service must match [a-z0-9-]+ and be at most 64 characters")
	}
	if e.Env == "" || len(e.Env) > types.MaxEnvLen || !serviceEnvPattern.MatchString(e.Env) {
		return fail("missing_field", "env must match [a-z0-9-]+ and be at most 32 characters")
	}
	if len(e.TraceID) > types.MaxTraceIDLen {
		return fail("missing_field", "trace_id exceeds 128 characters")
	}
	if len(e.SpanID) > types.MaxSpanIDLen {
		return fail("missing_field", "span_id exceeds 64 characters")
	}
	if err := labels(e.Labels); err != nil {
		return err
	}
	if e.Metadata != nil {
		tree := valuetree.FromAny(map[string]any(e.Metadata))
		if tree.Depth() > types.MaxMetadataDepth {
			return fail("metadata_too_deep", fmt.Sprintf("metadata nesting exceeds %d levels", types.MaxMetadataDepth))
		}
	}
	if n, err := EntrySize(e); err != nil {
		return err
	} else if n > types.MaxEntryBytes {
		return fail("entry_too_large", fmt.Sprintf("entry is %d bytes, exceeds %d", n, types.MaxEntryBytes))
	}
	return nil
}

func labels(labels map[string]string) error {
	if len(labels) == 0 {
		return nil
	}
	if len(labels) > types.MaxLabelKeys {
		return fail("bad_label_key", fmt.Sprintf("labels has %d keys, max %d", len(labels), types.MaxLabelKeys))
	}
	for k, v := range labels {
		if !types.AllowedLabelKeys[k] {
			return fail("bad_label_key", fmt.Sprintf("label key %q is not in the allow-list", k))
		}
		if len(v) > types.MaxLabelValueLen {
			return fail("label_too_long", fmt.Sprintf("label %q value exceeds %d characters", k, types.MaxLabelValueLen))
		}
	}
	return nil
}

// EntrySize returns the entry's serialized byte size, the measure
// spec.md §3 uses for the 32 KiB per-entry bound and the 1 MiB batch
// bound.
func EntrySize(e *types.LogEntry) (int, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return 0, errors.Internal(err)
	}
	return len(b), nil
}

// Batch validates an IngestBatch: entry count bounds, total
// serialized size, and each entry individually. It stops at the first
// failure, matching spec.md §4.1's "batch-level size is measured as
// the sum of the entries' serialized forms".
func Batch(b *types.IngestBatch) error {
	if len(b.Entries) < types.MinBatchEntries {
		return fail("too_many_entries", "batch must contain at least 1 entry")
	}
	if len(b.Entries) > types.MaxBatchEntries {
		return fail("too_many_entries", fmt.Sprintf("batch has %d entries, max %d", len(b.Entries), types.MaxBatchEntries))
	}
	if len(b.IdempotencyKey) > types.MaxIdempotencyKeyLen {
		return fail("missing_field", "idempotency_key exceeds 128 characters")
	}

	total := 0
	for i := range b.Entries {
		e := &b.Entries[i]
		if err := Entry(e); err != nil {
			return err
		}
		n, err := EntrySize(e)
		if err != nil {
			return err
		}
		total += n
	}
	if total > types.MaxBatchBytes {
		return fail("batch_too_large", fmt.Sprintf("batch is %d bytes, exceeds %d", total, types.MaxBatchBytes))
	}
	return nil
}

func fail(reason, message string) error {
	return errors.Validation(reason, message)
}
