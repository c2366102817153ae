package cache

import (
	"context"
	"testing"
	"time"

	"github.com/dk26/anyfs"
	"github.com/dk26/anyfs/backend/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wrapped(t *testing.T) *Backend[*memory.MemoryBackend] {
	t.Helper()
	b, err := NewBuilder[*memory.MemoryBackend]().MaxEntries(8).Layer(memory.New())
	require.NoError(t, err)
	return b
}

func TestCacheServesRepeatedRead(t *testing.T) {
	ctx := context.Background()
	b := wrapped(t)
	require.NoError(t, b.Write(ctx, "/f", []byte("v1")))

	data, err := b.Read(ctx, "/f")
	require.NoError(t, err)
	assert.Equal(t, "v1", string(data))

	// Second read is served from cache; content still matches since
	// there has been no intervening write.
	data, err = b.Read(ctx, "/f")
	require.NoError(t, err)
	assert.Equal(t, "v1", string(data))
}

func TestCacheCoherenceAfterWrite(t *testing.T) {
	ctx := context.Background()
	b := wrapped(t)
	require.NoError(t, b.Write(ctx, "/f", []byte("v1")))
	_, err := b.Read(ctx, "/f")
	require.NoError(t, err)

	require.NoError(t, b.Write(ctx, "/f", []byte("v2")))
	data, err := b.Read(ctx, "/f")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))
}

func TestCacheReadRangeInvalidatedByWrite(t *testing.T) {
	ctx := context.Background()
	b := wrapped(t)
	require.NoError(t, b.Write(ctx, "/f", []byte("0123456789")))

	got, err := b.ReadRange(ctx, "/f", 0, 4)
	require.NoError(t, err)
	assert.Equal(t, "0123", string(got))

	require.NoError(t, b.Write(ctx, "/f", []byte("abcdefghij")))
	got, err = b.ReadRange(ctx, "/f", 0, 4)
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(got))
}

func TestCacheTTLExpires(t *testing.T) {
	ctx := context.Background()
	b, err := NewBuilder[*memory.MemoryBackend]().MaxEntries(8).TTL(time.Millisecond).Layer(memory.New())
	require.NoError(t, err)
	require.NoError(t, b.Write(ctx, "/f", []byte("v1")))

	_, err = b.Read(ctx, "/f")
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	_, cached := b.whole.Get("/f")
	assert.False(t, cached)

	_, err = b.Read(ctx, "/f")
	require.NoError(t, err)
}

func TestCacheInodeOpsPassThrough(t *testing.T) {
	ctx := context.Background()
	b := wrapped(t)
	require.NoError(t, b.Write(ctx, "/f", []byte("v1")))

	inode, err := b.PathToInode(ctx, "/f")
	require.NoError(t, err)

	_, err = b.MetadataByInode(ctx, inode)
	require.NoError(t, err)

	_, err = b.PathToInode(ctx, "/missing")
	require.Error(t, err)
	assert.Equal(t, anyfs.KindNotFound, anyfs.KindOf(err))
}
