package workerpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func TestWorkerPool_ExecutesSubmittedTasks(t *testing.T) {
	pool := New(Config{MaxWorkers: 4, QueueSize: 10}, testLogger())
	require.NoError(t, pool.Start())
	defer pool.Stop()

	var completed int32
	for i := 0; i < 5; i++ {
		err := pool.Submit(Task{
			ID: "task",
			Execute: func(ctx context.Context) error {
				atomic.AddInt32(&completed, 1)
				return nil
			},
		})
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&completed) == 5
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, int64(5), pool.Stats().CompletedTasks)
}

func TestWorkerPool_RecordsFailedTasks(t *testing.T) {
	pool := New(Config{MaxWorkers: 1, QueueSize: 5}, testLogger())
	require.NoError(t, pool.Start())
	defer pool.Stop()

	require.NoError(t, pool.Submit(Task{
		ID:      "fails",
		Execute: func(ctx context.Context) error { return errors.New("boom") },
	}))

	require.Eventually(t, func() bool {
		return pool.Stats().FailedTasks == 1
	}, time.Second, 5*time.Millisecond)
}

func TestWorkerPool_SubmitBeforeStartFails(t *testing.T) {
	pool := New(Config{MaxWorkers: 1}, testLogger())
	err := pool.Submit(Task{ID: "x", Execute: func(ctx context.Context) error { return nil }})
	assert.ErrorIs(t, err, ErrPoolNotRunning)
}
