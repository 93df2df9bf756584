package circuit

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func TestCircuitBreakerBasicOperation(t *testing.T) {
	config := Config{
		Name:             "test",
		FailureThreshold: 3,
		SuccessThreshold: 2,
		Timeout:          100 * time.Millisecond,
		HalfOpenMaxCalls: 5,
	}

	breaker := NewBreaker(config, testLogger())

	err := breaker.Execute(func() error { return nil })
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if breaker.State() != StateClosed {
		t.Errorf("Expected state CLOSED, got %v", breaker.State())
	}
}

func TestCircuitBreakerOpensAfterFailures(t *testing.T) {
	config := Config{
		Name:             "test",
		FailureThreshold: 3,
		SuccessThreshold: 2,
		Timeout:          100 * time.Millisecond,
		HalfOpenMaxCalls: 5,
	}

	breaker := NewBreaker(config, testLogger())

	testErr := errors.New("test error")
	for i := 0; i < 3; i++ {
		breaker.Execute(func() error { return testErr })
	}

	if breaker.State() != StateOpen {
		t.Errorf("Expected state OPEN after 3 failures, got %v", breaker.State())
	}

	err := breaker.Execute(func() error {
		t.Error("Function should not be executed when circuit is open")
		return nil
	})
	if err == nil {
		t.Error("Expected error when circuit is open")
	}
}

func TestCircuitBreakerHalfOpenTransition(t *testing.T) {
	config := Config{
		Name:             "test",
		FailureThreshold: 2,
		SuccessThreshold: 2,
		Timeout:          50 * time.Millisecond,
		HalfOpenMaxCalls: 5,
	}

	breaker := NewBreaker(config, testLogger())

	testErr := errors.New("test error")
	for i := 0; i < 2; i++ {
		breaker.Execute(func() error { return testErr })
	}
	if breaker.State() != StateOpen {
		t.Fatalf("Expected state OPEN, got %v", breaker.State())
	}

	time.Sleep(60 * time.Millisecond)

	var executedCount int32
	breaker.Execute(func() error {
		atomic.AddInt32(&executedCount, 1)
		return nil
	})

	if breaker.State() != StateHalfOpen {
		t.Errorf("Expected state HALF_OPEN after timeout, got %v", breaker.State())
	}
	if executedCount != 1 {
		t.Errorf("Expected function to execute once, got %d", executedCount)
	}
}

func TestCircuitBreakerClosesAfterSuccesses(t *testing.T) {
	config := Config{
		Name:             "test",
		FailureThreshold: 2,
		SuccessThreshold: 2,
		Timeout:          50 * time.Millisecond,
		HalfOpenMaxCalls: 5,
	}

	breaker := NewBreaker(config, testLogger())

	testErr := errors.New("test error")
	for i := 0; i < 2; i++ {
		breaker.Execute(func() error { return testErr })
	}

	time.Sleep(60 * time.Millisecond)

	for i := 0; i < 2; i++ {
		if err := breaker.Execute(func() error { return nil }); err != nil {
			t.Fatalf("Unexpected error in success call %d: %v", i, err)
		}
	}

	if breaker.State() != StateClosed {
		t.Errorf("Expected state CLOSED after successes, got %v", breaker.State())
	}
}

func TestCircuitBreakerConcurrentExecutionsRunInParallel(t *testing.T) {
	config := Config{
		Name:             "test",
		FailureThreshold: 100,
		SuccessThreshold: 2,
		Timeout:          1 * time.Second,
		HalfOpenMaxCalls: 50,
	}

	breaker := NewBreaker(config, testLogger())

	const concurrentCalls = 10
	const sleepDuration = 100 * time.Millisecond

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(concurrentCalls)

	for i := 0; i < concurrentCalls; i++ {
		go func() {
			defer wg.Done()
			breaker.Execute(func() error {
				time.Sleep(sleepDuration)
				return nil
			})
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	maxExpectedTime := sleepDuration * 3
	if elapsed > maxExpectedTime {
		t.Errorf("concurrent executions appear to be serial: took %v, expected ~%v", elapsed, sleepDuration)
	}
}

func TestCircuitBreakerHalfOpenFailureReturnsToOpen(t *testing.T) {
	config := Config{
		Name:             "test",
		FailureThreshold: 2,
		SuccessThreshold: 2,
		Timeout:          50 * time.Millisecond,
		HalfOpenMaxCalls: 5,
	}

	breaker := NewBreaker(config, testLogger())

	testErr := errors.New("test error")
	for i := 0; i < 2; i++ {
		breaker.Execute(func() error { return testErr })
	}

	time.Sleep(60 * time.Millisecond)

	breaker.Execute(func() error { return nil })
	if breaker.State() != StateHalfOpen {
		t.Fatalf("Expected HALF_OPEN, got %v", breaker.State())
	}

	breaker.Execute(func() error { return testErr })
	if breaker.State() != StateOpen {
		t.Errorf("Expected state OPEN after failure in HALF_OPEN, got %v", breaker.State())
	}
}

func TestCircuitBreakerHalfOpenMaxCalls(t *testing.T) {
	config := Config{
		Name:             "test",
		FailureThreshold: 2,
		SuccessThreshold: 5,
		Timeout:          50 * time.Millisecond,
		HalfOpenMaxCalls: 3,
	}

	breaker := NewBreaker(config, testLogger())

	testErr := errors.New("test error")
	for i := 0; i < 2; i++ {
		breaker.Execute(func() error { return testErr })
	}

	time.Sleep(60 * time.Millisecond)

	var executedCount int32
	for i := 0; i < 5; i++ {
		breaker.Execute(func() error {
			atomic.AddInt32(&executedCount, 1)
			return nil
		})
	}

	if executedCount > int32(config.HalfOpenMaxCalls) {
		t.Errorf("Executed %d calls, expected max %d", executedCount, config.HalfOpenMaxCalls)
	}
}

func TestCircuitBreakerRaceConditions(t *testing.T) {
	config := Config{
		Name:             "test",
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          10 * time.Millisecond,
		HalfOpenMaxCalls: 10,
	}

	breaker := NewBreaker(config, testLogger())

	const goroutines = 50
	const iterations = 100

	var wg sync.WaitGroup
	wg.Add(goroutines)

	for g := 0; g < goroutines; g++ {
		go func(id int) {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				breaker.Execute(func() error {
					time.Sleep(time.Microsecond)
					if i%10 == 0 {
						return fmt.Errorf("error %d", i)
					}
					return nil
				})
			}
		}(g)
	}

	wg.Wait()

	stats := breaker.GetStats()
	expectedRequests := int64(goroutines * iterations)
	if stats.Requests < expectedRequests/2 {
		t.Errorf("request count too low: %d, expected around %d", stats.Requests, expectedRequests)
	}
}

func TestCircuitBreakerStateChangeCallback(t *testing.T) {
	config := Config{
		Name:             "test",
		FailureThreshold: 2,
		SuccessThreshold: 2,
		Timeout:          50 * time.Millisecond,
		HalfOpenMaxCalls: 5,
	}

	breaker := NewBreaker(config, testLogger())

	var stateChanges []string
	breaker.SetStateChangeCallback(func(from, to State) {
		stateChanges = append(stateChanges, fmt.Sprintf("%v->%v", from, to))
	})

	testErr := errors.New("test error")
	for i := 0; i < 2; i++ {
		breaker.Execute(func() error { return testErr })
	}

	time.Sleep(60 * time.Millisecond)

	for i := 0; i < 2; i++ {
		breaker.Execute(func() error { return nil })
	}

	if len(stateChanges) < 2 {
		t.Errorf("Expected at least 2 state changes, got %d: %v", len(stateChanges), stateChanges)
	}
}

func BenchmarkCircuitBreakerSerial(b *testing.B) {
	config := Config{Name: "bench", FailureThreshold: 1000, SuccessThreshold: 2, Timeout: time.Second}
	breaker := NewBreaker(config, testLogger())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		breaker.Execute(func() error {
			time.Sleep(10 * time.Microsecond)
			return nil
		})
	}
}

func BenchmarkCircuitBreakerParallel(b *testing.B) {
	config := Config{Name: "bench", FailureThreshold: 1000, SuccessThreshold: 2, Timeout: time.Second}
	breaker := NewBreaker(config, testLogger())

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			breaker.Execute(func() error {
				time.Sleep(10 * time.Microsecond)
				return nil
			})
		}
	})
}
