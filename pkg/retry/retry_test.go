package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedule_SucceedsImmediately(t *testing.T) {
	calls := 0
	err := Schedule(context.Background(), Policy{MaxRetries: 3}, func(attempt int) (Outcome, error) {
		calls++
		return OutcomeSuccess, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestSchedule_FatalStopsImmediately(t *testing.T) {
	fatalErr := errors.New("bad request")
	calls := 0
	err := Schedule(context.Background(), Policy{MaxRetries: 5, BackoffSeconds: []int{1}}, func(attempt int) (Outcome, error) {
		calls++
		return OutcomeFatal, fatalErr
	})
	assert.Equal(t, fatalErr, err)
	assert.Equal(t, 1, calls)
}

func TestSchedule_RetriesThenSucceeds(t *testing.T) {
	calls := 0
	err := Schedule(context.Background(), Policy{MaxRetries: 3, BackoffSeconds: []int{0, 0}}, func(attempt int) (Outcome, error) {
		calls++
		if calls < 3 {
			return OutcomeRetryable, errors.New("retry me")
		}
		return OutcomeSuccess, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestSchedule_ExhaustsRetriesAndParks(t *testing.T) {
	calls := 0
	start := time.Now()
	retryErr := errors.New("still failing")
	err := Schedule(context.Background(), Policy{
		MaxRetries:         2,
		BackoffSeconds:     []int{0},
		BackoffParkSeconds: 0,
	}, func(attempt int) (Outcome, error) {
		calls++
		return OutcomeRetryable, retryErr
	})
	assert.Equal(t, retryErr, err)
	assert.Equal(t, 3, calls)
	assert.Less(t, time.Since(start), time.Second)
}

func TestBackoffFor_ClampsToLastEntry(t *testing.T) {
	schedule := []int{5, 10, 20}
	assert.Equal(t, 5*time.Second, backoffFor(schedule, 0))
	assert.Equal(t, 20*time.Second, backoffFor(schedule, 2))
	assert.Equal(t, 20*time.Second, backoffFor(schedule, 99))
	assert.Equal(t, time.Duration(0), backoffFor(nil, 0))
}

func TestSchedule_ContextCancellationDuringBackoffStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Schedule(ctx, Policy{MaxRetries: 3, BackoffSeconds: []int{10}}, func(attempt int) (Outcome, error) {
		calls++
		cancel()
		return OutcomeRetryable, errors.New("retry me")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
