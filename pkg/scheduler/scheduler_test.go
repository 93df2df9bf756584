package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"ssw-logs-capture/pkg/forwarder"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// TestMain guards against the ticker/WaitGroup loop in Start/Stop
// leaking a goroutine across test cases.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

type fakeForwarder struct {
	calls   int32
	tenants []string
	stats   forwarder.CycleStats
	err     error
}

func (f *fakeForwarder) Cycle(ctx context.Context, tenant string) (forwarder.CycleStats, error) {
	atomic.AddInt32(&f.calls, 1)
	f.tenants = append(f.tenants, tenant)
	return f.stats, f.err
}

func TestScheduler_RunsCycleOnInterval(t *testing.T) {
	fw := &fakeForwarder{}
	s := New(fw, 5*time.Millisecond, time.Second, testLogger())

	require.NoError(t, s.Start(context.Background()))
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, s.Stop())

	assert.True(t, atomic.LoadInt32(&fw.calls) >= 2)
}

func TestScheduler_ForceFlushRunsImmediatelyAndReturnsCounts(t *testing.T) {
	fw := &fakeForwarder{stats: forwarder.CycleStats{EntriesForwarded: 7, SegmentsProcessed: 2}}
	s := New(fw, time.Hour, time.Second, testLogger())

	entries, segments, err := s.ForceFlush(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, 7, entries)
	assert.Equal(t, 2, segments)
	assert.Equal(t, []string{"acme"}, fw.tenants)
}

func TestScheduler_StartIsIdempotent(t *testing.T) {
	fw := &fakeForwarder{}
	s := New(fw, time.Hour, time.Second, testLogger())

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.Running())

	require.NoError(t, s.Stop())
	assert.False(t, s.Running())
}

func TestScheduler_StopWaitsForInFlightCycle(t *testing.T) {
	fw := &fakeForwarder{}
	s := New(fw, time.Millisecond, time.Second, testLogger())

	require.NoError(t, s.Start(context.Background()))
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, s.Stop())
	assert.False(t, s.Running())
}
