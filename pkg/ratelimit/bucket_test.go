package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBucket_ConsumeWithinBurst(t *testing.T) {
	b := newBucket(10, 5)
	for i := 0; i < 5; i++ {
		assert.True(t, b.Consume(1))
	}
	assert.False(t, b.Consume(1))
}

func TestBucket_RefillsOverTime(t *testing.T) {
	b := newBucket(100, 1)
	assert.True(t, b.Consume(1))
	assert.False(t, b.Consume(1))

	time.Sleep(20 * time.Millisecond)
	assert.True(t, b.Consume(1))
}

func TestBucket_RetryAfterSecondsIsAtLeastOne(t *testing.T) {
	b := newBucket(1, 1)
	b.Consume(1)
	assert.GreaterOrEqual(t, b.RetryAfterSeconds(), 1)
}

func TestManager_SeparateTenantsDoNotShareBuckets(t *testing.T) {
	m := NewManager(1, 1)
	assert.True(t, m.Consume("acme", 1))
	assert.True(t, m.Consume("globex", 1))
	assert.False(t, m.Consume("acme", 1))
}

func TestManager_FirstWriterWinsOnConcurrentCreation(t *testing.T) {
	m := NewManager(5, 5)
	done := make(chan *Bucket, 2)
	go func() { done <- m.bucketFor("acme") }()
	go func() { done <- m.bucketFor("acme") }()
	first := <-done
	second := <-done
	assert.Same(t, first, second)
}
