package tracing

import (
	"context"
	"testing"

	"github.com/dk26/anyfs/backend/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The global otel tracer is a no-op until an SDK TracerProvider is
// registered, so these tests only check that tracing never changes
// the wrapped backend's observable behavior, matching the non-goal
// that excludes subscriber wiring (spec §1).

func TestTracingPassesThroughSuccess(t *testing.T) {
	ctx := context.Background()
	b, err := NewBuilder[*memory.MemoryBackend]().Layer(memory.New())
	require.NoError(t, err)

	require.NoError(t, b.Write(ctx, "/f", []byte("traced")))
	data, err := b.Read(ctx, "/f")
	require.NoError(t, err)
	assert.Equal(t, "traced", string(data))
}

func TestTracingPassesThroughError(t *testing.T) {
	ctx := context.Background()
	b, err := NewBuilder[*memory.MemoryBackend]().Layer(memory.New())
	require.NoError(t, err)

	_, err = b.Read(ctx, "/missing")
	require.Error(t, err)
}

func TestTracingWrapsStreams(t *testing.T) {
	ctx := context.Background()
	b, err := NewBuilder[*memory.MemoryBackend]().Layer(memory.New())
	require.NoError(t, err)

	w, err := b.OpenWrite(ctx, "/streamed")
	require.NoError(t, err)
	n, err := w.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	require.NoError(t, w.Close())
}
