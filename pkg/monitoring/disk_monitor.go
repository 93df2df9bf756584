// Package monitoring provides system resource monitoring capabilities
package monitoring

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/sirupsen/logrus"
)

// DiskMonitor periodically samples free disk space on the WAL root
// path and exposes the result as a readiness signal: readiness health
// turns unhealthy when the disk's free ratio drops below MinFreeRatio.
type DiskMonitor struct {
	config Config
	logger *logrus.Logger

	latest atomic.Pointer[Metrics]
	alerts chan Alert

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Config holds configuration for disk monitoring.
type Config struct {
	Enabled          bool          `yaml:"enabled"`
	Path             string        `yaml:"path"`               // directory whose filesystem is sampled
	CheckInterval    time.Duration `yaml:"check_interval"`     // how often to resample
	MinFreeRatio     float64       `yaml:"min_free_ratio"`     // readiness turns unhealthy below this
	AlertOnThreshold bool          `yaml:"alert_on_threshold"` // emit Alert values when unhealthy
}

// Metrics holds the most recently sampled disk usage.
type Metrics struct {
	Timestamp time.Time `json:"timestamp"`
	Path      string    `json:"path"`
	TotalMB   int64     `json:"total_mb"`
	FreeMB    int64     `json:"free_mb"`
	FreeRatio float64   `json:"free_ratio"`
	Healthy   bool      `json:"healthy"`
}

// Alert represents a disk-space alert.
type Alert struct {
	Timestamp    time.Time `json:"timestamp"`
	Severity     string    `json:"severity"` // "warning", "critical"
	Message      string    `json:"message"`
	CurrentValue float64   `json:"current_value"`
	Threshold    float64   `json:"threshold"`
	Metrics      Metrics   `json:"metrics"`
}

// NewDiskMonitor creates a new disk monitor instance.
func NewDiskMonitor(config Config, logger *logrus.Logger) *DiskMonitor {
	ctx, cancel := context.WithCancel(context.Background())

	dm := &DiskMonitor{
		config: config,
		logger: logger,
		alerts: make(chan Alert, 100),
		ctx:    ctx,
		cancel: cancel,
	}
	dm.latest.Store(&Metrics{Healthy: true})
	return dm
}

// Start begins periodic disk sampling.
func (dm *DiskMonitor) Start() error {
	if !dm.config.Enabled {
		dm.logger.Info("Disk monitoring disabled")
		return nil
	}

	dm.logger.WithFields(logrus.Fields{
		"path":           dm.config.Path,
		"check_interval": dm.config.CheckInterval,
		"min_free_ratio": dm.config.MinFreeRatio,
	}).Info("Starting disk monitor")

	dm.sample()

	dm.wg.Add(1)
	go dm.monitorDisk()

	if dm.config.AlertOnThreshold {
		dm.wg.Add(1)
		go dm.processAlerts()
	}

	return nil
}

// Stop stops disk monitoring.
func (dm *DiskMonitor) Stop() error {
	if !dm.config.Enabled {
		return nil
	}

	dm.logger.Info("Stopping disk monitor")
	dm.cancel()

	done := make(chan struct{})
	go func() {
		dm.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		dm.logger.Info("Disk monitor stopped cleanly")
	case <-time.After(5 * time.Second):
		dm.logger.Warn("Timeout waiting for disk monitor to stop")
	}

	close(dm.alerts)
	return nil
}

func (dm *DiskMonitor) monitorDisk() {
	defer dm.wg.Done()

	ticker := time.NewTicker(dm.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-dm.ctx.Done():
			return
		case <-ticker.C:
			dm.sample()
		}
	}
}

// sample reads current disk usage and stores it as the latest metrics,
// raising an alert when the free ratio is below MinFreeRatio.
func (dm *DiskMonitor) sample() {
	usage, err := disk.Usage(dm.config.Path)
	if err != nil {
		dm.logger.WithError(err).Warn("disk monitor: failed to sample disk usage")
		return
	}

	freeBytes := usage.Total - usage.Used
	freeRatio := 0.0
	if usage.Total > 0 {
		freeRatio = float64(freeBytes) / float64(usage.Total)
	}

	metrics := Metrics{
		Timestamp: time.Now().UTC(),
		Path:      dm.config.Path,
		TotalMB:   int64(usage.Total / 1024 / 1024),
		FreeMB:    int64(freeBytes / 1024 / 1024),
		FreeRatio: freeRatio,
		Healthy:   freeRatio >= dm.config.MinFreeRatio,
	}
	dm.latest.Store(&metrics)

	dm.logger.WithFields(logrus.Fields{
		"free_ratio": fmt.Sprintf("%.3f", freeRatio),
		"free_mb":    metrics.FreeMB,
	}).Debug("disk metrics sampled")

	if !metrics.Healthy {
		dm.sendAlert(Alert{
			Timestamp:    metrics.Timestamp,
			Severity:     dm.determineSeverity(freeRatio, dm.config.MinFreeRatio),
			Message:      fmt.Sprintf("disk free ratio (%.3f) fell below minimum (%.3f)", freeRatio, dm.config.MinFreeRatio),
			CurrentValue: freeRatio,
			Threshold:    dm.config.MinFreeRatio,
			Metrics:      metrics,
		})
	}
}

func (dm *DiskMonitor) determineSeverity(freeRatio, minRatio float64) string {
	if freeRatio < minRatio/2 {
		return "critical"
	}
	return "warning"
}

func (dm *DiskMonitor) sendAlert(alert Alert) {
	select {
	case dm.alerts <- alert:
	default:
		dm.logger.Warn("Alert channel full, dropping alert")
	}
}

func (dm *DiskMonitor) processAlerts() {
	defer dm.wg.Done()

	for {
		select {
		case <-dm.ctx.Done():
			return
		case alert, ok := <-dm.alerts:
			if !ok {
				return
			}
			dm.logger.WithFields(logrus.Fields{
				"severity":      alert.Severity,
				"current_value": alert.CurrentValue,
				"threshold":     alert.Threshold,
			}).Warn(alert.Message)
		}
	}
}

// GetMetrics returns the most recently sampled metrics (thread-safe,
// lock-free). Before Start is called, or if Enabled is false, it
// reports Healthy: true so readiness does not fail on an unconfigured
// monitor.
func (dm *DiskMonitor) GetMetrics() Metrics {
	return *dm.latest.Load()
}

// Healthy reports whether the last sample was at or above MinFreeRatio.
func (dm *DiskMonitor) Healthy() bool {
	return dm.GetMetrics().Healthy
}

// GetAlertChannel returns the alert channel for external consumers.
func (dm *DiskMonitor) GetAlertChannel() <-chan Alert {
	return dm.alerts
}
