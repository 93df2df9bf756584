package task

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

func TestTask_StartRunsFnUntilStopped(t *testing.T) {
	tk := New("test", testLogger())
	var runs int32

	err := tk.Start(context.Background(), func(ctx context.Context) error {
		for {
			atomic.AddInt32(&runs, 1)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Millisecond):
			}
		}
	})
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StateRunning, tk.State())

	require.NoError(t, tk.Stop(time.Second))
	assert.Equal(t, StateStopped, tk.State())
	assert.True(t, atomic.LoadInt32(&runs) > 0)
}

func TestTask_StartWhileRunningIsNoOp(t *testing.T) {
	tk := New("test", testLogger())
	var starts int32

	run := func(ctx context.Context) error {
		atomic.AddInt32(&starts, 1)
		<-ctx.Done()
		return nil
	}

	require.NoError(t, tk.Start(context.Background(), run))
	require.NoError(t, tk.Start(context.Background(), run))

	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&starts))

	require.NoError(t, tk.Stop(time.Second))
}

func TestTask_FnErrorMarksFailed(t *testing.T) {
	tk := New("test", testLogger())
	require.NoError(t, tk.Start(context.Background(), func(ctx context.Context) error {
		return errors.New("boom")
	}))

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StateFailed, tk.State())
}

func TestTask_PanicRecoveredAsFailed(t *testing.T) {
	tk := New("test", testLogger())
	require.NoError(t, tk.Start(context.Background(), func(ctx context.Context) error {
		panic("unexpected")
	}))

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StateFailed, tk.State())
}

func TestTask_StopOnIdleTaskIsNoOp(t *testing.T) {
	tk := New("test", testLogger())
	assert.NoError(t, tk.Stop(time.Second))
	assert.Equal(t, StateIdle, tk.State())
}

func TestTask_StopTimesOutWhenFnIgnoresCancellation(t *testing.T) {
	tk := New("test", testLogger())
	started := make(chan struct{})
	require.NoError(t, tk.Start(context.Background(), func(ctx context.Context) error {
		close(started)
		time.Sleep(100 * time.Millisecond)
		return nil
	}))
	<-started

	err := tk.Stop(10 * time.Millisecond)
	assert.Error(t, err)
	assert.Equal(t, StateFailed, tk.State())
}
