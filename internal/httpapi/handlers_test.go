package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ssw-logs-capture/pkg/runtime"
	"ssw-logs-capture/pkg/types"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func testConfig(t *testing.T) *types.Config {
	cfg := &types.Config{}
	cfg.WAL.WALRootPath = t.TempDir()
	cfg.WAL.SegmentMaxBytes = 1 << 20
	cfg.WAL.DiskFreeMinRatio = 0.0
	cfg.RateLimit.RPS = 100
	cfg.RateLimit.Burst = 100
	cfg.Downstream.BaseURL = "http://127.0.0.1:0"
	cfg.Downstream.PushEndpoint = "/loki/api/v1/push"
	cfg.Downstream.TimeoutSeconds = time.Second
	cfg.Downstream.DeadLetterDir = t.TempDir()
	cfg.Downstream.BatchMaxEntries = 100
	cfg.Downstream.BatchMaxBytes = 1 << 20
	cfg.Downstream.CompressionAlgo = "none"
	cfg.Scheduler.IntervalSeconds = time.Hour
	cfg.Scheduler.ShutdownTimeoutSeconds = time.Second
	cfg.Auth.APIKeys = map[string]types.APIKey{
		"valid-token": {Name: "acme", Active: true},
	}
	cfg.Auth.AdminToken = "admin-secret"
	return cfg
}

func testServer(t *testing.T) *Server {
	rt := runtime.New(testConfig(t), testLogger())
	t.Cleanup(func() { rt.Shutdown() })
	return NewServer(rt, testLogger())
}

func ingestRequest(token string, body interface{}) *http.Request {
	buf, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/v1/logs:ingest", bytes.NewReader(buf))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func sampleBatch() types.IngestBatch {
	return types.IngestBatch{Entries: []types.LogEntry{
		{Timestamp: time.Now().UTC(), Level: types.LevelInfo, Message: "hello", Service: "api", Env: "prod"},
	}}
}

func TestIngestHandler_AcceptsValidRequest(t *testing.T) {
	s := testServer(t)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, ingestRequest("valid-token", sampleBatch()))

	require.Equal(t, http.StatusAccepted, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(1), body["entries_accepted"])
	assert.NotEmpty(t, body["request_id"])
}

func TestIngestHandler_MissingAuthReturns403(t *testing.T) {
	s := testServer(t)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, ingestRequest("", sampleBatch()))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestIngestHandler_UnknownTokenReturns401(t *testing.T) {
	s := testServer(t)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, ingestRequest("bogus-token", sampleBatch()))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestIngestHandler_InvalidBatchReturns400(t *testing.T) {
	s := testServer(t)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, ingestRequest("valid-token", types.IngestBatch{}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "validation_error", body["error"])
}

func TestIngestHandler_RateLimitedReturns429WithRetryAfter(t *testing.T) {
	s := testServer(t)
	for i := 0; i < 100; i++ {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, ingestRequest("valid-token", sampleBatch()))
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, ingestRequest("valid-token", sampleBatch()))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestAdminFlushHandler_RequiresAdminToken(t *testing.T) {
	s := testServer(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/admin/flush", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminFlushHandler_ReturnsCountsWhenAuthorized(t *testing.T) {
	s := testServer(t)
	require.NoError(t, s.rt.Start(context.Background()))
	defer s.rt.Shutdown()

	req := httptest.NewRequest(http.MethodPost, "/v1/admin/flush", nil)
	req.Header.Set("Authorization", "Bearer admin-secret")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body, "entries_forwarded")
	assert.Contains(t, body, "segments_processed")
}

func TestLivenessHandler_AlwaysOK(t *testing.T) {
	s := testServer(t)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadinessHandler_UnhealthyReturns503(t *testing.T) {
	cfg := testConfig(t)
	cfg.WAL.DiskFreeMinRatio = 2.0 // unreachable, forces unhealthy
	rt := runtime.New(cfg, testLogger())
	s := NewServer(rt, testLogger())
	require.NoError(t, s.rt.Start(context.Background()))
	defer s.rt.Shutdown()

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
