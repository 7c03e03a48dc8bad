package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_AllowsUpToLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := NewClient(mr.Addr())
	t.Cleanup(func() { _ = client.Close() })

	limiter := NewRateLimiter(client, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := limiter.Allow(ctx, "amr-01")
		require.NoError(t, err)
		assert.True(t, ok, "request %d should be allowed", i+1)
	}

	ok, err := limiter.Allow(ctx, "amr-01")
	require.NoError(t, err)
	assert.False(t, ok, "request over the limit should be denied")
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	mr := miniredis.RunT(t)
	client := NewClient(mr.Addr())
	t.Cleanup(func() { _ = client.Close() })

	limiter := NewRateLimiter(client, 1, time.Minute)
	ctx := context.Background()

	ok, err := limiter.Allow(ctx, "amr-01")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = limiter.Allow(ctx, "amr-01")
	require.NoError(t, err)
	require.False(t, ok)

	// A different robot has its own window.
	ok, err = limiter.Allow(ctx, "amr-02")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRateLimiter_Limit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := NewClient(mr.Addr())
	t.Cleanup(func() { _ = client.Close() })

	assert.Equal(t, 25, NewRateLimiter(client, 25, time.Minute).Limit())
}
