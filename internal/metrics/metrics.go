// Package metrics exposes the gateway's Prometheus metrics: ingest
// throughput, WAL append outcomes, forwarder cycle results, and
// rate-limit rejections.
//
// Grounded on the teacher's internal/metrics/metrics.go: the
// package-level promauto vars, safeRegister-guarded registration
// (duplicate registration is tolerated rather than fatal, since tests
// construct more than one *metrics.Server in the same process), and
// the http.ServeMux-based metrics server are all kept; the several
// hundred lines of file-tailing/container/Kafka/position-tracking
// metrics that have no analogue in this gateway are dropped.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	IngestRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_ingest_requests_total",
		Help: "Total ingest requests, by tenant and outcome",
	}, []string{"tenant", "outcome"})

	IngestEntriesAccepted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_ingest_entries_accepted_total",
		Help: "Total log entries accepted into the WAL, by tenant",
	}, []string{"tenant"})

	IngestRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_ingest_request_duration_seconds",
		Help:    "Ingest request latency from auth to response",
		Buckets: prometheus.DefBuckets,
	}, []string{"tenant"})

	RateLimitRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_rate_limit_rejections_total",
		Help: "Requests rejected by the per-tenant token bucket",
	}, []string{"tenant"})

	WALAppendsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_wal_appends_total",
		Help: "WAL append calls, by tenant and outcome",
	}, []string{"tenant", "outcome"})

	WALSegmentRotations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_wal_segment_rotations_total",
		Help: "Segment rotations, by tenant",
	}, []string{"tenant"})

	WALDiskBytes = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gateway_wal_disk_bytes",
		Help: "Current on-disk WAL bytes, by tenant",
	}, []string{"tenant"})

	ForwarderCyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_forwarder_cycles_total",
		Help: "Forwarder cycles run, by outcome",
	}, []string{"outcome"})

	ForwarderSegmentsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_forwarder_segments_processed_total",
		Help: "Segments processed by the forwarder across all cycles",
	})

	ForwarderSegmentsDeadLettered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_forwarder_segments_dead_lettered_total",
		Help: "Segments moved to the dead-letter directory after a fatal downstream response",
	})

	ForwarderEntriesForwarded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_forwarder_entries_forwarded_total",
		Help: "Log entries successfully pushed downstream",
	})

	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gateway_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half_open)",
	}, []string{"name"})

	TenantsDiscovered = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gateway_tenants_discovered",
		Help: "Distinct tenants seen since process start",
	})
)

var registerOnce sync.Once

// Server serves /metrics and a liveness endpoint over its own
// listener, separate from the gateway's main HTTP API.
type Server struct {
	server *http.Server
	logger *logrus.Logger
}

// NewServer builds a metrics Server bound to addr.
func NewServer(addr string, logger *logrus.Logger) *Server {
	registerOnce.Do(func() {
		safeRegister(IngestRequestsTotal)
		safeRegister(IngestEntriesAccepted)
		safeRegister(IngestRequestDuration)
		safeRegister(RateLimitRejections)
		safeRegister(WALAppendsTotal)
		safeRegister(WALSegmentRotations)
		safeRegister(WALDiskBytes)
		safeRegister(ForwarderCyclesTotal)
		safeRegister(ForwarderSegmentsProcessed)
		safeRegister(ForwarderSegmentsDeadLettered)
		safeRegister(ForwarderEntriesForwarded)
		safeRegister(CircuitBreakerState)
		safeRegister(TenantsDiscovered)
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{Addr: addr, Handler: mux},
		logger: logger,
	}
}

// Start begins serving in the background.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.server.Addr).Info("metrics: starting server")
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.WithError(err).Error("metrics: server error")
		}
	}()
	return nil
}

// Stop closes the listener.
func (s *Server) Stop() error {
	return s.server.Close()
}

func safeRegister(collector prometheus.Collector) {
	defer func() {
		recover() // tolerate duplicate registration across repeated NewServer calls (tests)
	}()
	prometheus.MustRegister(collector)
}

// RecordIngest records one ingest request outcome and its accepted
// entry count.
func RecordIngest(tenant, outcome string, entriesAccepted int, duration time.Duration) {
	IngestRequestsTotal.WithLabelValues(tenant, outcome).Inc()
	IngestEntriesAccepted.WithLabelValues(tenant).Add(float64(entriesAccepted))
	IngestRequestDuration.WithLabelValues(tenant).Observe(duration.Seconds())
}

// RecordRateLimitRejection increments the per-tenant rejection counter.
func RecordRateLimitRejection(tenant string) {
	RateLimitRejections.WithLabelValues(tenant).Inc()
}

// RecordWALAppend records one WAL append call's outcome.
func RecordWALAppend(tenant, outcome string) {
	WALAppendsTotal.WithLabelValues(tenant, outcome).Inc()
}

// RecordForwarderCycle records one forwarder cycle's summary.
func RecordForwarderCycle(outcome string, segmentsProcessed, segmentsDeadLettered, entriesForwarded int) {
	ForwarderCyclesTotal.WithLabelValues(outcome).Inc()
	ForwarderSegmentsProcessed.Add(float64(segmentsProcessed))
	ForwarderSegmentsDeadLettered.Add(float64(segmentsDeadLettered))
	ForwarderEntriesForwarded.Add(float64(entriesForwarded))
}

// SetCircuitBreakerState publishes the forwarder's circuit breaker
// state as a gauge (0=closed, 1=open, 2=half_open).
func SetCircuitBreakerState(name string, state int) {
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// SetTenantsDiscovered publishes the tenant registry's current size.
func SetTenantsDiscovered(count int) {
	TenantsDiscovered.Set(float64(count))
}
