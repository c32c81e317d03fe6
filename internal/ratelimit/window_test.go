package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiter_Allow(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("Rejects requests above the quota until the window resets", func(t *testing.T) {
		// Given: a limiter of 2 requests per 10 seconds
		limiter := New(2, 10*time.Second)

		// When: three requests arrive in the same window
		ok1, _ := limiter.Allow("1.2.3.4", start)
		ok2, _ := limiter.Allow("1.2.3.4", start.Add(time.Second))
		ok3, retry := limiter.Allow("1.2.3.4", start.Add(4*time.Second))

		// Then: the third is rejected with the time left in the window
		assert.True(t, ok1)
		assert.True(t, ok2)
		assert.False(t, ok3)
		assert.Equal(t, 6*time.Second, retry)

		// And: a request after the reset is allowed again
		ok4, _ := limiter.Allow("1.2.3.4", start.Add(10*time.Second))
		assert.True(t, ok4)
	})

	t.Run("Keys are counted independently", func(t *testing.T) {
		limiter := New(1, time.Minute)

		okA, _ := limiter.Allow("a", start)
		okB, _ := limiter.Allow("b", start)
		okA2, _ := limiter.Allow("a", start)

		assert.True(t, okA)
		assert.True(t, okB)
		assert.False(t, okA2)
	})
}

func TestLimiter_Prune(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	// Given: one expired and one live window
	limiter := New(5, 10*time.Second)
	limiter.Allow("old", start)
	limiter.Allow("new", start.Add(8*time.Second))

	// When: pruning after the first window reset
	pruned := limiter.Prune(start.Add(12 * time.Second))

	// Then: only the expired window is dropped
	assert.Equal(t, 1, pruned)
	assert.Equal(t, 1, limiter.Len())

	limiter.Reset()
	assert.Zero(t, limiter.Len())
}
