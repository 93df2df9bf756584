// Package ingest orchestrates one ingest request end to end, per
// spec.md §4.6: rate-limit, validate, mask, append, accept.
// Authentication happens in the HTTP layer before Submit is called;
// Submit receives the tenant identity it resolved.
package ingest

import (
	"context"
	"time"

	"ssw-logs-capture/internal/metrics"
	"ssw-logs-capture/pkg/errors"
	"ssw-logs-capture/pkg/masking"
	"ssw-logs-capture/pkg/tenant"
	"ssw-logs-capture/pkg/types"
	"ssw-logs-capture/pkg/validate"
	"ssw-logs-capture/pkg/wal"

	"github.com/google/uuid"
)

// RateLimiter is the subset of *ratelimit.Manager the pipeline needs.
type RateLimiter interface {
	Consume(tenant string, n int) bool
	RetryAfterSeconds(tenant string) int
}

// WALAppender is the subset of *wal.Writer the pipeline needs.
type WALAppender interface {
	Append(tenant string, entries []types.LogEntry) error
}

// Result is returned on a successful Submit, per spec.md §4.6 step 6.
type Result struct {
	EntriesAccepted int
	RequestID       string
	Timestamp       time.Time
}

// Pipeline wires the per-request stages together. masker is a getter
// rather than a fixed *masking.Engine so a Runtime can swap the engine
// behind an atomic.Pointer (spec.md §5's "global masking config ...
// readers never block") without the Pipeline needing to be rebuilt.
type Pipeline struct {
	limiter RateLimiter
	masker  func() *masking.Engine
	writer  WALAppender
	tenants *tenant.Manager
}

// New builds a Pipeline. masker is called once per Submit to fetch
// the currently active masking engine.
func New(limiter RateLimiter, masker func() *masking.Engine, writer WALAppender, tenants *tenant.Manager) *Pipeline {
	return &Pipeline{limiter: limiter, masker: masker, writer: writer, tenants: tenants}
}

// Submit runs one batch through rate-limiting, validation, masking,
// and WAL append, returning a *errors.GatewayError on any failure.
// It is cancel-safe in the sense spec.md §4.6 describes: once Append
// returns nil the entries are durable even if ctx is later canceled
// before Submit returns to its caller.
func (p *Pipeline) Submit(ctx context.Context, tenantID string, batch types.IngestBatch) (Result, error) {
	p.tenants.Touch(tenantID)

	if !p.limiter.Consume(tenantID, 1) {
		return Result{}, errors.RateLimited(p.limiter.RetryAfterSeconds(tenantID))
	}

	if err := validate.Batch(&batch); err != nil {
		return Result{}, err
	}

	masker := p.masker()
	masked := make([]types.LogEntry, len(batch.Entries))
	for i, entry := range batch.Entries {
		masked[i] = masker.Mask(entry, tenantID)
		masked[i].Tenant = tenantID
		masked[i].ReceivedAt = time.Now().UTC()
	}

	if err := p.writer.Append(tenantID, masked); err != nil {
		if err == wal.ErrQuotaExceeded {
			metrics.RecordWALAppend(tenantID, "quota_exceeded")
			return Result{}, errors.QuotaExceeded("tenant WAL quota exceeded")
		}
		metrics.RecordWALAppend(tenantID, "error")
		return Result{}, errors.WALError(err)
	}
	metrics.RecordWALAppend(tenantID, "success")

	return Result{
		EntriesAccepted: len(masked),
		RequestID:       uuid.NewString(),
		Timestamp:       time.Now().UTC(),
	}, nil
}
