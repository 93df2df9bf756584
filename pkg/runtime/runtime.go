// Package runtime wires every gateway component into one explicit
// value, replacing the teacher's process-wide package-level
// singletons (global metrics vars aside, which Prometheus idiom keeps
// package-level). See spec.md §9 REDESIGN FLAGS: "no package-level
// mutable state outside of what the Go ecosystem idiomatically keeps
// there (e.g. promauto metrics)."
package runtime

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"ssw-logs-capture/pkg/dlq"
	"ssw-logs-capture/pkg/forwarder"
	"ssw-logs-capture/pkg/ingest"
	"ssw-logs-capture/pkg/masking"
	"ssw-logs-capture/pkg/monitoring"
	"ssw-logs-capture/pkg/ratelimit"
	"ssw-logs-capture/pkg/scheduler"
	"ssw-logs-capture/pkg/security"
	"ssw-logs-capture/pkg/tenant"
	"ssw-logs-capture/pkg/tracing"
	"ssw-logs-capture/pkg/types"
	"ssw-logs-capture/pkg/wal"

	"github.com/sirupsen/logrus"
)

// Runtime holds every long-lived component the HTTP layer and the
// scheduler share. Masking config is held behind an atomic.Pointer so
// a future config reload can swap it in without readers ever
// blocking, per spec.md §5's "Global masking/validation config:
// read-only after load, or loaded under an atomic snapshot pointer;
// readers never block."
type Runtime struct {
	Config *types.Config
	Logger *logrus.Logger

	Auth      *security.AuthManager
	Tenants   *tenant.Manager
	RateLimit *ratelimit.Manager
	WAL       *wal.Writer
	DLQ       *dlq.Queue
	Forwarder *forwarder.Forwarder
	Scheduler *scheduler.Scheduler
	Ingest    *ingest.Pipeline
	Disk      *monitoring.DiskMonitor
	Tracing   *tracing.Manager

	maskingCfg atomic.Pointer[types.MaskingConfig]
	masker     atomic.Pointer[masking.Engine]
}

// New builds a fully wired Runtime from a loaded Config.
func New(cfg *types.Config, logger *logrus.Logger) *Runtime {
	rt := &Runtime{
		Config:    cfg,
		Logger:    logger,
		Auth:      security.NewAuthManager(cfg.Auth),
		Tenants:   tenant.New(),
		RateLimit: ratelimit.NewManager(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
		WAL:       wal.NewWriter(cfg.WAL, logger),
	}

	rt.SetMaskingConfig(cfg.Masking)

	rt.DLQ = dlq.New(dlq.Config{Enabled: true, Directory: cfg.Downstream.DeadLetterDir}, logger)
	rt.Forwarder = forwarder.New(cfg.Downstream, rt.WAL, rt.DLQ, logger)
	rt.Scheduler = scheduler.New(rt.Forwarder, cfg.Scheduler.IntervalSeconds, cfg.Scheduler.ShutdownTimeoutSeconds, logger)
	rt.Ingest = ingest.New(rt.RateLimit, rt.Masker, rt.WAL, rt.Tenants)
	rt.Disk = monitoring.NewDiskMonitor(monitoring.Config{
		Enabled:          true,
		Path:             cfg.WAL.WALRootPath,
		CheckInterval:    30 * time.Second,
		MinFreeRatio:     cfg.WAL.DiskFreeMinRatio,
		AlertOnThreshold: true,
	}, logger)
	rt.Tracing = tracing.New(cfg.Tracing, logger)

	return rt
}

// SetMaskingConfig atomically swaps the masking engine used by future
// Ingest.Submit calls. In-flight calls keep using whatever engine
// they already captured.
func (rt *Runtime) SetMaskingConfig(cfg types.MaskingConfig) {
	rt.maskingCfg.Store(&cfg)
	rt.masker.Store(masking.New(cfg))
}

// Masker returns the currently active masking engine.
func (rt *Runtime) Masker() *masking.Engine {
	return rt.masker.Load()
}

// Start begins the background scheduler, disk monitor, and tracer.
func (rt *Runtime) Start(ctx context.Context) error {
	if err := rt.Tracing.Start(ctx); err != nil {
		return fmt.Errorf("runtime: start tracing: %w", err)
	}
	if err := rt.Disk.Start(); err != nil {
		return fmt.Errorf("runtime: start disk monitor: %w", err)
	}
	return rt.Scheduler.Start(ctx)
}

// Ready reports whether the gateway is ready to accept traffic: the
// WAL root's disk free ratio must be at or above the configured
// minimum.
func (rt *Runtime) Ready() (bool, monitoring.Metrics) {
	m := rt.Disk.GetMetrics()
	return m.Healthy, m
}

// Shutdown stops the scheduler, the disk monitor, and closes the WAL writer.
func (rt *Runtime) Shutdown() error {
	if err := rt.Scheduler.Stop(); err != nil {
		rt.Logger.WithError(err).Warn("runtime: scheduler stop did not complete cleanly")
	}
	if err := rt.Forwarder.Close(); err != nil {
		rt.Logger.WithError(err).Warn("runtime: forwarder worker pool stop did not complete cleanly")
	}
	if err := rt.Disk.Stop(); err != nil {
		rt.Logger.WithError(err).Warn("runtime: disk monitor stop did not complete cleanly")
	}
	if err := rt.Tracing.Shutdown(context.Background()); err != nil {
		rt.Logger.WithError(err).Warn("runtime: tracing shutdown did not complete cleanly")
	}
	if err := rt.WAL.Close(); err != nil {
		return fmt.Errorf("runtime: close WAL: %w", err)
	}
	return nil
}
