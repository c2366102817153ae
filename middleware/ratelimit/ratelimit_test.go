package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/dk26/anyfs"
	"github.com/dk26/anyfs/backend/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimitAllowsWithinBudget(t *testing.T) {
	ctx := context.Background()
	inner := memory.New()
	require.NoError(t, inner.Write(ctx, "/f", []byte("v")))

	b, err := NewBuilder[*memory.MemoryBackend]().MaxOps(10).Window(time.Second).Layer(inner)
	require.NoError(t, err)

	_, err = b.Read(ctx, "/f")
	require.NoError(t, err)
}

func TestRateLimitRejectsOnceBurstExhausted(t *testing.T) {
	ctx := context.Background()
	inner := memory.New()
	require.NoError(t, inner.Write(ctx, "/f", []byte("v")))

	// MaxOps(1) over a long window with the default burst of 1 means the
	// second call within the window has no token left.
	b, err := NewBuilder[*memory.MemoryBackend]().MaxOps(1).Window(time.Hour).Layer(inner)
	require.NoError(t, err)

	_, err = b.Read(ctx, "/f")
	require.NoError(t, err)

	_, err = b.Read(ctx, "/f")
	require.Error(t, err)
	assert.Equal(t, anyfs.KindRateLimitExceeded, anyfs.KindOf(err))
}

func TestRateLimitBurstOverride(t *testing.T) {
	ctx := context.Background()
	inner := memory.New()
	require.NoError(t, inner.Write(ctx, "/f", []byte("v")))

	b, err := NewBuilder[*memory.MemoryBackend]().
		MaxOps(1).
		Window(time.Hour).
		Burst(3).
		Layer(inner)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = b.Read(ctx, "/f")
		require.NoError(t, err)
	}
	_, err = b.Read(ctx, "/f")
	require.Error(t, err)
	assert.Equal(t, anyfs.KindRateLimitExceeded, anyfs.KindOf(err))
}

func TestRateLimitLockPassesThroughToInvalidOperation(t *testing.T) {
	ctx := context.Background()
	b, err := NewBuilder[*memory.MemoryBackend]().MaxOps(10).Window(time.Second).Layer(memory.New())
	require.NoError(t, err)

	// MemoryBackend does support Lock, so a bogus handle reaches the
	// inner backend's own invalid-handle error rather than being
	// rejected by the rate limiter's capability check.
	err = b.Lock(ctx, 0)
	require.Error(t, err)
	assert.Equal(t, anyfs.KindInvalidOperation, anyfs.KindOf(err))
}
