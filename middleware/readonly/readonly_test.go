package readonly

import (
	"context"
	"testing"

	"github.com/dk26/anyfs"
	"github.com/dk26/anyfs/backend/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadOnlyAllowsReads(t *testing.T) {
	ctx := context.Background()
	inner := memory.New()
	require.NoError(t, inner.Write(ctx, "/f", []byte("v1")))

	b, err := NewBuilder[*memory.MemoryBackend]().Layer(inner)
	require.NoError(t, err)

	data, err := b.Read(ctx, "/f")
	require.NoError(t, err)
	assert.Equal(t, "v1", string(data))
}

func TestReadOnlyRejectsWrite(t *testing.T) {
	ctx := context.Background()
	b, err := NewBuilder[*memory.MemoryBackend]().Layer(memory.New())
	require.NoError(t, err)

	err = b.Write(ctx, "/f", []byte("v1"))
	require.Error(t, err)
	assert.Equal(t, anyfs.KindReadOnly, anyfs.KindOf(err))
}

func TestReadOnlyRejectsCreateDirAndRemove(t *testing.T) {
	ctx := context.Background()
	b, err := NewBuilder[*memory.MemoryBackend]().Layer(memory.New())
	require.NoError(t, err)

	require.Equal(t, anyfs.KindReadOnly, anyfs.KindOf(b.CreateDir(ctx, "/a")))
	require.Equal(t, anyfs.KindReadOnly, anyfs.KindOf(b.RemoveFile(ctx, "/a")))
	require.Equal(t, anyfs.KindReadOnly, anyfs.KindOf(b.RemoveDirAll(ctx, "/a")))
}

func TestReadOnlyRejectsOpenWriteButAllowsOpenRead(t *testing.T) {
	ctx := context.Background()
	inner := memory.New()
	require.NoError(t, inner.Write(ctx, "/f", []byte("v1")))
	b, err := NewBuilder[*memory.MemoryBackend]().Layer(inner)
	require.NoError(t, err)

	_, err = b.OpenWrite(ctx, "/f")
	require.Error(t, err)
	assert.Equal(t, anyfs.KindReadOnly, anyfs.KindOf(err))

	r, err := b.OpenRead(ctx, "/f")
	require.NoError(t, err)
	require.NoError(t, r.Close())
}

func TestReadOnlyDoesNotMutateInner(t *testing.T) {
	ctx := context.Background()
	inner := memory.New()
	b, err := NewBuilder[*memory.MemoryBackend]().Layer(inner)
	require.NoError(t, err)

	_ = b.Write(ctx, "/f", []byte("v1"))

	exists, err := inner.Exists(ctx, "/f")
	require.NoError(t, err)
	assert.False(t, exists)
}
