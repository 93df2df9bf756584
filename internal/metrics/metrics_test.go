package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func TestRecordIngest_IncrementsCountersAndHistogram(t *testing.T) {
	IngestRequestsTotal.Reset()
	IngestEntriesAccepted.Reset()

	RecordIngest("acme", "accepted", 3, 0)

	assert.Equal(t, float64(1), testutil.ToFloat64(IngestRequestsTotal.WithLabelValues("acme", "accepted")))
	assert.Equal(t, float64(3), testutil.ToFloat64(IngestEntriesAccepted.WithLabelValues("acme")))
}

func TestRecordRateLimitRejection_IncrementsPerTenant(t *testing.T) {
	RateLimitRejections.Reset()
	RecordRateLimitRejection("acme")
	assert.Equal(t, float64(1), testutil.ToFloat64(RateLimitRejections.WithLabelValues("acme")))
}

func TestRecordForwarderCycle_AccumulatesTotals(t *testing.T) {
	before := testutil.ToFloat64(ForwarderEntriesForwarded)
	RecordForwarderCycle("success", 2, 0, 5)
	assert.Equal(t, before+5, testutil.ToFloat64(ForwarderEntriesForwarded))
}

func TestNewServer_ServesMetricsEndpoint(t *testing.T) {
	s := NewServer(":0", testLogger())
	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, req)
	assert.Equal(t, 200, rec.Code)
}
