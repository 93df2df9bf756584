package forwarder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"ssw-logs-capture/internal/metrics"
	"ssw-logs-capture/pkg/batching"
	"ssw-logs-capture/pkg/circuit"
	"ssw-logs-capture/pkg/compression"
	"ssw-logs-capture/pkg/dlq"
	"ssw-logs-capture/pkg/retry"
	"ssw-logs-capture/pkg/types"
	"ssw-logs-capture/pkg/wal"
	"ssw-logs-capture/pkg/workerpool"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Segments is the subset of *wal.Writer the forwarder depends on,
// narrowed so tests can substitute a fake.
type Segments interface {
	ReadySegments(tenant string) ([]types.SegmentInfo, error)
	DeleteSegment(path string) error
}

// CycleStats summarizes one forwarder cycle or force-flush, per
// spec.md §4.7.
type CycleStats struct {
	SegmentsProcessed    int
	EntriesForwarded     int
	SegmentsDeadLettered int
}

// Forwarder implements the IDLE → SCAN → (SEND → DELETE)* → IDLE
// cycle. One cycle runs at a time; a concurrent Cycle caller waits on
// an internal mutex until the running cycle finishes and then runs its
// own, matching spec.md §4.5's "one cycle at a time per forwarder
// instance".
type Forwarder struct {
	cfg    types.DownstreamConfig
	wal    Segments
	dlq    *dlq.Queue
	logger *logrus.Logger

	httpClient *http.Client
	breaker    *circuit.Breaker
	compressor *compression.Manager
	tracer     oteltrace.Tracer
	pool       *workerpool.WorkerPool

	cycleMu sync.Mutex
}

// New builds a Forwarder. The HTTP client is tuned the way the
// teacher tunes its Loki client: a bounded per-host connection pool
// with keep-alives disabled, trading a little latency for never
// letting idle connections (and their reader/writer goroutines)
// accumulate across scheduler cycles.
func New(cfg types.DownstreamConfig, walWriter Segments, dlqQueue *dlq.Queue, logger *logrus.Logger) *Forwarder {
	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	httpClient := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			MaxConnsPerHost:       50,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			ResponseHeaderTimeout: timeout,
			DisableKeepAlives:     true,
			ForceAttemptHTTP2:     false,
		},
	}

	breaker := circuit.NewBreaker(circuit.Config{
		Name:             "forwarder",
		FailureThreshold: 20,
		SuccessThreshold: 3,
		Timeout:          60 * time.Second,
		HalfOpenMaxCalls: 10,
	}, logger)
	breaker.SetStateChangeCallback(func(_, to circuit.State) {
		metrics.SetCircuitBreakerState("forwarder", int(to))
	})

	// One task per tenant per cycle, so segments belonging to the same
	// tenant are always processed sequentially by whichever worker picks
	// up that tenant's task, while distinct tenants' ready segments are
	// processed concurrently, per spec.md §4.5's "implementations may
	// parallelize by tenant but must not process the same segment
	// concurrently". WorkerTimeout is generous since a task can include
	// several segments' worth of retry/backoff sleeps, not just one HTTP
	// round trip.
	pool := workerpool.New(workerpool.Config{WorkerTimeout: 10 * time.Minute}, logger)
	pool.Start()

	return &Forwarder{
		cfg:        cfg,
		wal:        walWriter,
		dlq:        dlqQueue,
		logger:     logger,
		httpClient: httpClient,
		breaker:    breaker,
		compressor: compression.NewManager(cfg.CompressionAlgo, cfg.CompressionMinBytes),
		tracer:     otel.Tracer("forwarder"),
		pool:       pool,
	}
}

// Close stops the forwarder's worker pool, waiting for any in-flight
// per-tenant task to finish.
func (f *Forwarder) Close() error {
	return f.pool.Stop()
}

// Cycle runs one IDLE → SCAN → (SEND → DELETE)* → IDLE pass. tenant
// restricts the scan to one tenant's ready segments (force-flush);
// "" scans every tenant.
func (f *Forwarder) Cycle(ctx context.Context, tenant string) (CycleStats, error) {
	f.cycleMu.Lock()
	defer f.cycleMu.Unlock()

	var stats CycleStats

	segments, err := f.wal.ReadySegments(tenant)
	if err != nil {
		metrics.RecordForwarderCycle("error", 0, 0, 0)
		return stats, fmt.Errorf("forwarder: list ready segments: %w", err)
	}

	byTenant := make(map[string][]types.SegmentInfo)
	for _, seg := range segments {
		t := tenantOf(seg)
		byTenant[t] = append(byTenant[t], seg)
	}

	var (
		mu         sync.Mutex
		wg         sync.WaitGroup
		cycleErred bool
	)

	for tenantID, segs := range byTenant {
		wg.Add(1)
		segs := segs
		task := workerpool.Task{
			ID: tenantID,
			Execute: func(taskCtx context.Context) error {
				defer wg.Done()
				for _, seg := range segs {
					forwarded, deadLettered, err := f.processSegment(taskCtx, seg)
					mu.Lock()
					stats.SegmentsProcessed++
					stats.EntriesForwarded += forwarded
					if deadLettered {
						stats.SegmentsDeadLettered++
					}
					mu.Unlock()
					if err != nil {
						mu.Lock()
						cycleErred = true
						mu.Unlock()
						f.logger.WithFields(logrus.Fields{
							"segment": seg.Path,
							"tenant":  tenantOf(seg),
						}).WithError(err).Warn("forwarder: segment processing ended without delivery")
					}
				}
				return nil
			},
		}
		if err := f.pool.Submit(task); err != nil {
			wg.Done()
			mu.Lock()
			cycleErred = true
			mu.Unlock()
			f.logger.WithField("tenant", tenantID).WithError(err).Warn("forwarder: could not submit tenant's segments to worker pool")
		}
	}
	wg.Wait()

	outcome := "success"
	if cycleErred {
		outcome = "partial_failure"
	}
	metrics.RecordForwarderCycle(outcome, stats.SegmentsProcessed, stats.SegmentsDeadLettered, stats.EntriesForwarded)

	return stats, nil
}

// processSegment scans, sends, and deletes or dead-letters one
// segment, per spec.md §4.5 steps a-f.
func (f *Forwarder) processSegment(ctx context.Context, seg types.SegmentInfo) (int, bool, error) {
	tenant := tenantOf(seg)

	result, err := wal.ScanSegment(seg.Path, f.logger)
	if err != nil {
		return 0, false, fmt.Errorf("scan segment: %w", err)
	}
	if len(result.Entries) == 0 {
		if err := f.wal.DeleteSegment(seg.Path); err != nil {
			return 0, false, fmt.Errorf("delete empty segment: %w", err)
		}
		return 0, false, nil
	}

	batches := batching.Split(result.Entries, batching.Limits{
		MaxEntries: f.cfg.BatchMaxEntries,
		MaxBytes:   f.cfg.BatchMaxBytes,
	})

	policy := retry.Policy{
		MaxRetries:         f.cfg.MaxRetries,
		BackoffSeconds:     f.cfg.BackoffSeconds,
		BackoffParkSeconds: f.cfg.BackoffParkSeconds,
	}

	for _, batch := range batches {
		now := time.Now().UTC()
		payload := pushPayload{Streams: groupByStream(batch, now)}

		var fatal bool
		sendErr := retry.Schedule(ctx, policy, func(attempt int) (retry.Outcome, error) {
			status, err := f.send(ctx, payload)
			if err != nil {
				return retry.OutcomeRetryable, err
			}
			outcome := classifyStatus(status)
			if outcome == retry.OutcomeSuccess {
				return retry.OutcomeSuccess, nil
			}
			fatal = outcome == retry.OutcomeFatal
			return outcome, fmt.Errorf("downstream returned status %d", status)
		})

		if sendErr != nil {
			if fatal {
				if moveErr := f.dlq.Move(tenant, seg.Path, "fatal_4xx"); moveErr != nil {
					return 0, false, fmt.Errorf("dead-letter segment after fatal push: %w", moveErr)
				}
				return 0, true, fmt.Errorf("segment dead-lettered: %w", sendErr)
			}
			return 0, false, fmt.Errorf("send batch: %w", sendErr)
		}
	}

	if err := f.wal.DeleteSegment(seg.Path); err != nil {
		return len(result.Entries), false, fmt.Errorf("delete delivered segment: %w", err)
	}
	return len(result.Entries), false, nil
}

// send executes one POST attempt under circuit-breaker protection and
// returns the response status code (0 on a network-level failure).
func (f *Forwarder) send(ctx context.Context, payload pushPayload) (int, error) {
	ctx, span := f.tracer.Start(ctx, "forwarder.send")
	defer span.End()

	data, err := json.Marshal(payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("marshal push payload: %w", err)
	}

	body, encoding, _, err := f.compressor.Compress(data)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("compress push payload: %w", err)
	}

	url := f.cfg.BaseURL + f.cfg.PushEndpoint
	span.SetAttributes(attribute.String("http.url", url), attribute.Int("push.streams", len(payload.Streams)))

	var statusCode int
	breakerErr := f.breaker.Execute(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		if encoding != "" {
			req.Header.Set("Content-Encoding", encoding)
		}

		resp, err := f.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

		statusCode = resp.StatusCode
		if statusCode >= 200 && statusCode < 300 {
			return nil
		}
		if classifyStatus(statusCode) == retry.OutcomeFatal {
			return nil // fatal responses don't count against the circuit: the endpoint is healthy, the payload isn't.
		}
		return fmt.Errorf("downstream status %d", statusCode)
	})

	if breakerErr != nil && statusCode == 0 {
		span.RecordError(breakerErr)
		span.SetStatus(codes.Error, breakerErr.Error())
		return 0, breakerErr
	}
	return statusCode, nil
}

// tenantOf derives a dead-letter namespace from the segment's already
// filesystem-safe tenant directory name, avoiding a second sanitize
// pass over the raw tenant identity.
func tenantOf(seg types.SegmentInfo) string {
	return lastPathElement(seg.TenantDir)
}

func lastPathElement(p string) string {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' {
			return p[i+1:]
		}
	}
	return p
}
