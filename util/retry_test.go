package util

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRetryRespectsMaxRetries(t *testing.T) {
	r := NewRetry(&RetryOption{MaxRetries: 3, InitBackoff: time.Millisecond})

	var attempts int
	for ok, n := r.Next(); ok; ok, n = r.Next() {
		attempts = n
	}
	require.Equal(t, 3, attempts)
}

func TestRetryStop(t *testing.T) {
	r := NewRetry(&RetryOption{InitBackoff: time.Millisecond})
	ok, _ := r.Next()
	require.True(t, ok)

	r.Stop()
	ok, _ = r.Next()
	require.False(t, ok)
}

func TestRetryContextCancellationStopsLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := NewRetry(&RetryOption{Context: ctx, InitBackoff: time.Hour})

	ok, _ := r.Next()
	require.True(t, ok)

	cancel()
	ok, _ = r.Next()
	require.False(t, ok)
}

func TestRetryBackoffCappedAtMaxBackoff(t *testing.T) {
	r := NewRetry(&RetryOption{
		MaxRetries:  8,
		InitBackoff: time.Millisecond,
		MaxBackoff:  3 * time.Millisecond,
		MaskBackoff: 2,
		RandFactor:  0,
	})

	start := time.Now()
	for ok, _ := r.Next(); ok; ok, _ = r.Next() {
	}
	elapsed := time.Since(start)

	// Uncapped exponential growth (1ms * 2^7) would alone exceed 100ms;
	// capped at 3ms per step it should finish comfortably under that.
	require.Less(t, elapsed, 100*time.Millisecond)
}
