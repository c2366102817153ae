package dryrun

import (
	"context"
	"testing"

	"github.com/dk26/anyfs/backend/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDryRunRecordsWriteWithoutMutating(t *testing.T) {
	ctx := context.Background()
	inner := memory.New()
	b, err := NewBuilder[*memory.MemoryBackend]().Layer(inner)
	require.NoError(t, err)

	require.NoError(t, b.Write(ctx, "/f", []byte("hello")))

	exists, err := inner.Exists(ctx, "/f")
	require.NoError(t, err)
	assert.False(t, exists)

	ops := b.Operations()
	require.Len(t, ops, 1)
	assert.Equal(t, "write", ops[0].Kind)
	assert.Equal(t, []string{"/f"}, ops[0].Paths)
	assert.Equal(t, 5, ops[0].Bytes)
}

func TestDryRunReadsPassThrough(t *testing.T) {
	ctx := context.Background()
	inner := memory.New()
	require.NoError(t, inner.Write(ctx, "/f", []byte("real")))
	b, err := NewBuilder[*memory.MemoryBackend]().Layer(inner)
	require.NoError(t, err)

	data, err := b.Read(ctx, "/f")
	require.NoError(t, err)
	assert.Equal(t, "real", string(data))
}

func TestDryRunRecordsRemoveAndRename(t *testing.T) {
	ctx := context.Background()
	inner := memory.New()
	b, err := NewBuilder[*memory.MemoryBackend]().Layer(inner)
	require.NoError(t, err)

	require.NoError(t, b.RemoveFile(ctx, "/gone"))
	require.NoError(t, b.Rename(ctx, "/old", "/new"))

	ops := b.Operations()
	require.Len(t, ops, 2)
	assert.Equal(t, "remove_file", ops[0].Kind)
	assert.Equal(t, "rename", ops[1].Kind)
	assert.Equal(t, []string{"/old", "/new"}, ops[1].Paths)
}

func TestDryRunOpenWriteRecordsOnClose(t *testing.T) {
	ctx := context.Background()
	b, err := NewBuilder[*memory.MemoryBackend]().Layer(memory.New())
	require.NoError(t, err)

	w, err := b.OpenWrite(ctx, "/streamed")
	require.NoError(t, err)
	n, err := w.Write([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	assert.Empty(t, b.Operations())
	require.NoError(t, w.Close())

	ops := b.Operations()
	require.Len(t, ops, 1)
	assert.Equal(t, "open_write", ops[0].Kind)
	assert.Equal(t, 3, ops[0].Bytes)
}
