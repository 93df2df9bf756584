package wal

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"ssw-logs-capture/pkg/types"

	"github.com/sirupsen/logrus"
)

// tenantHandle holds the open active segment and bookkeeping for one
// tenant directory. All fields are guarded by mu; a Writer holds one
// handle per tenant so concurrent appends for different tenants never
// contend (spec.md §5, "per-tenant active segment file handle").
type tenantHandle struct {
	mu sync.Mutex

	dir  string
	file *os.File
	seq  int

	size      int64
	creation  time.Time
	lastWrite time.Time
}

// Writer is the per-tenant WAL append path described in spec.md §4.3.
// It owns one open file handle per tenant, rotates segments according
// to rules R1-R4, and hands completed segments off to the forwarder
// by renaming them to their immutable ".ready" name.
//
// Grounded on pkg/buffer/disk_buffer.go's rotate-and-recover file
// management, reworked into a per-tenant directory model with a
// crash-safe rename hand-off instead of a single shared buffer file.
type Writer struct {
	cfg    types.WALConfig
	logger *logrus.Logger

	mu      sync.Mutex
	tenants map[string]*tenantHandle
}

// NewWriter builds a Writer rooted at cfg.WALRootPath.
func NewWriter(cfg types.WALConfig, logger *logrus.Logger) *Writer {
	return &Writer{
		cfg:     cfg,
		logger:  logger,
		tenants: make(map[string]*tenantHandle),
	}
}

// TenantDir returns the sanitized on-disk directory for a tenant.
func (w *Writer) TenantDir(tenant string) string {
	return filepath.Join(w.cfg.WALRootPath, sanitizeTenant(tenant))
}

func (w *Writer) handle(tenant string) (*tenantHandle, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if h, ok := w.tenants[tenant]; ok {
		return h, nil
	}

	dir := w.TenantDir(tenant)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("wal: create tenant directory: %w", err)
	}

	h := &tenantHandle{dir: dir}
	if err := w.openActive(h); err != nil {
		return nil, err
	}

	w.tenants[tenant] = h
	return h, nil
}

// openActive finds or creates this tenant's active segment and
// primes h's bookkeeping from the existing file, if any.
func (w *Writer) openActive(h *tenantHandle) error {
	segments, err := listSegments(h.dir)
	if err != nil {
		return fmt.Errorf("wal: list segments: %w", err)
	}

	seq, found := highestActiveSequence(segments)
	if !found {
		seq = 1
	}

	path := filepath.Join(h.dir, segmentName(seq))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("wal: open active segment: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("wal: stat active segment: %w", err)
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		f.Close()
		return fmt.Errorf("wal: seek active segment: %w", err)
	}

	h.file = f
	h.seq = seq
	h.size = info.Size()
	now := time.Now().UTC()
	h.creation = now
	h.lastWrite = now
	if found {
		for _, s := range segments {
			if s.SequenceNumber == seq && s.State == types.SegmentActive {
				h.creation = s.CreationTime
				h.lastWrite = s.LastWriteTime
			}
		}
	}

	return nil
}

// rotate renames h's active segment to its ready name and opens the
// next one, per spec.md §4.3's rotation procedure. Step 1 (rename)
// always precedes step 2 (create next); if step 2 fails here, the
// handle is left without an open file and the next Append call will
// retry creation via openActive.
func (w *Writer) rotate(h *tenantHandle) error {
	activePath := filepath.Join(h.dir, segmentName(h.seq))
	readyPath := filepath.Join(h.dir, readySegmentName(h.seq))

	if err := h.file.Close(); err != nil {
		return fmt.Errorf("wal: close segment before rotation: %w", err)
	}
	h.file = nil

	if err := os.Rename(activePath, readyPath); err != nil {
		return fmt.Errorf("wal: rotate segment: %w", err)
	}

	nextSeq := h.seq + 1
	nextPath := filepath.Join(h.dir, segmentName(nextSeq))
	f, err := os.OpenFile(nextPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("wal: create next segment: %w", err)
	}

	now := time.Now().UTC()
	h.file = f
	h.seq = nextSeq
	h.size = 0
	h.creation = now
	h.lastWrite = now
	return nil
}

// Append writes entries to tenant's active segment, rotating first if
// a rotation rule fires and failing the whole call if the tenant is
// over its disk or ready-segment-age quota. No bytes are written for
// any entry in the batch when Append returns a quota error; on a
// lower-level I/O failure partway through, the segment is truncated
// back to its last good offset before the error is returned.
func (w *Writer) Append(tenant string, entries []types.LogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	h, err := w.handle(tenant)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	frames := make([][]byte, len(entries))
	var total int64
	for i := range entries {
		payload, err := json.Marshal(&entries[i])
		if err != nil {
			return fmt.Errorf("wal: marshal entry: %w", err)
		}
		frames[i] = encodeFrame(payload)
		total += int64(len(frames[i]))
	}

	if err := w.checkQuota(h, total); err != nil {
		return err
	}

	lastGood := h.size
	for _, frame := range frames {
		if shouldRotate(w.cfg, h.size, h.creation, h.lastWrite, time.Now().UTC()) {
			if err := w.rotate(h); err != nil {
				return err
			}
			lastGood = h.size
		}

		n, err := h.file.Write(frame)
		if err != nil {
			if truncErr := h.file.Truncate(lastGood); truncErr != nil {
				w.logger.WithError(truncErr).Error("wal: failed to truncate segment after write error")
			}
			h.file.Seek(lastGood, io.SeekStart)
			h.size = lastGood
			return fmt.Errorf("wal: write frame: %w", err)
		}

		h.size += int64(n)
		h.lastWrite = time.Now().UTC()
		lastGood = h.size
	}

	return nil
}

// checkQuota implements spec.md §4.3's disk and age quotas. It
// rescans the tenant directory rather than tracking a running total,
// matching the forwarder's "the directory is the source of truth"
// model so the two never drift apart.
func (w *Writer) checkQuota(h *tenantHandle, incoming int64) error {
	if w.cfg.TenantWALQuotaBytes > 0 {
		segments, err := listSegments(h.dir)
		if err != nil {
			return fmt.Errorf("wal: list segments for quota check: %w", err)
		}
		var used int64
		var oldestReady time.Time
		for _, s := range segments {
			used += s.SizeBytes
			if s.State == types.SegmentReady && (oldestReady.IsZero() || s.CreationTime.Before(oldestReady)) {
				oldestReady = s.CreationTime
			}
		}
		if used+incoming > w.cfg.TenantWALQuotaBytes {
			return ErrQuotaExceeded
		}
		if w.cfg.TenantWALQuotaAge > 0 && !oldestReady.IsZero() &&
			time.Since(oldestReady) > w.cfg.TenantWALQuotaAge {
			return ErrQuotaExceeded
		}
	}
	return nil
}

// ReadySegments returns every ready segment for tenant, or for every
// tenant directory under the WAL root when tenant is "".
func (w *Writer) ReadySegments(tenant string) ([]types.SegmentInfo, error) {
	var dirs []string
	if tenant != "" {
		dirs = []string{w.TenantDir(tenant)}
	} else {
		entries, err := os.ReadDir(w.cfg.WALRootPath)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, nil
			}
			return nil, err
		}
		for _, e := range entries {
			if e.IsDir() {
				dirs = append(dirs, filepath.Join(w.cfg.WALRootPath, e.Name()))
			}
		}
	}

	var out []types.SegmentInfo
	for _, dir := range dirs {
		segments, err := listSegments(dir)
		if err != nil {
			return nil, err
		}
		for _, s := range segments {
			if s.State == types.SegmentReady {
				out = append(out, s)
			}
		}
	}
	return out, nil
}

// DeleteSegment removes a ready segment file. Idempotent: a missing
// file is not an error, per spec.md §4.3.
func (w *Writer) DeleteSegment(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("wal: delete segment: %w", err)
	}
	return nil
}

// Stats summarizes a tenant's WAL directory, per spec.md §4.3.
func (w *Writer) Stats(tenant string) (types.WALStats, error) {
	segments, err := listSegments(w.TenantDir(tenant))
	if err != nil {
		return types.WALStats{}, err
	}

	var stats types.WALStats
	for _, s := range segments {
		stats.DiskBytes += s.SizeBytes
		switch s.State {
		case types.SegmentActive:
			stats.ActiveSegments++
		case types.SegmentReady:
			stats.ReadySegments++
		}
	}
	return stats, nil
}

// Close flushes and closes every open active segment handle. Called
// during graceful shutdown.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var firstErr error
	for _, h := range w.tenants {
		h.mu.Lock()
		if h.file != nil {
			if err := h.file.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
			h.file = nil
		}
		h.mu.Unlock()
	}
	return firstErr
}
