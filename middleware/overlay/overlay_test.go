package overlay

import (
	"context"
	"testing"

	"github.com/dk26/anyfs"
	"github.com/dk26/anyfs/backend/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOverlayReadsThroughToBase(t *testing.T) {
	ctx := context.Background()
	base := memory.New()
	require.NoError(t, base.Write(ctx, "/base.txt", []byte("A")))

	o := New[*memory.MemoryBackend, *memory.MemoryBackend](base, memory.New())

	data, err := o.Read(ctx, "/base.txt")
	require.NoError(t, err)
	assert.Equal(t, "A", string(data))
}

func TestOverlayWhiteoutHidesBaseEntry(t *testing.T) {
	ctx := context.Background()
	base := memory.New()
	require.NoError(t, base.Write(ctx, "/base.txt", []byte("A")))

	o := New[*memory.MemoryBackend, *memory.MemoryBackend](base, memory.New())

	data, err := o.Read(ctx, "/base.txt")
	require.NoError(t, err)
	assert.Equal(t, "A", string(data))

	require.NoError(t, o.RemoveFile(ctx, "/base.txt"))

	_, err = o.Read(ctx, "/base.txt")
	require.Error(t, err)
	assert.Equal(t, anyfs.KindNotFound, anyfs.KindOf(err))

	// base itself is unaffected by the overlay's removal.
	baseData, err := base.Read(ctx, "/base.txt")
	require.NoError(t, err)
	assert.Equal(t, "A", string(baseData))
}

func TestOverlayWriteLandsInUpper(t *testing.T) {
	ctx := context.Background()
	base := memory.New()
	upper := memory.New()
	o := New[*memory.MemoryBackend, *memory.MemoryBackend](base, upper)

	require.NoError(t, o.Write(ctx, "/new.txt", []byte("U")))

	_, err := base.Read(ctx, "/new.txt")
	require.Error(t, err)

	data, err := upper.Read(ctx, "/new.txt")
	require.NoError(t, err)
	assert.Equal(t, "U", string(data))
}

func TestOverlayWriteUnderBaseOnlyDirectory(t *testing.T) {
	ctx := context.Background()
	base := memory.New()
	require.NoError(t, base.CreateDirAll(ctx, "/a/b"))
	upper := memory.New()
	o := New[*memory.MemoryBackend, *memory.MemoryBackend](base, upper)

	require.NoError(t, o.Write(ctx, "/a/b/f", []byte("x")))

	data, err := o.Read(ctx, "/a/b/f")
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))
}

func TestOverlayReadDirMergesAndDedupes(t *testing.T) {
	ctx := context.Background()
	base := memory.New()
	require.NoError(t, base.Write(ctx, "/both", []byte("base-version")))
	require.NoError(t, base.Write(ctx, "/base-only", []byte("b")))
	upper := memory.New()
	o := New[*memory.MemoryBackend, *memory.MemoryBackend](base, upper)

	require.NoError(t, o.Write(ctx, "/both", []byte("upper-version")))
	require.NoError(t, o.Write(ctx, "/upper-only", []byte("u")))

	entries, err := o.ReadDir(ctx, "/")
	require.NoError(t, err)
	names := map[string]bool{}
	for _, e := range entries {
		names[e.Name] = true
	}
	assert.True(t, names["both"])
	assert.True(t, names["base-only"])
	assert.True(t, names["upper-only"])
	assert.Len(t, entries, 3)

	data, err := o.Read(ctx, "/both")
	require.NoError(t, err)
	assert.Equal(t, "upper-version", string(data))
}

func TestOverlayRenameFromBaseCopiesUp(t *testing.T) {
	ctx := context.Background()
	base := memory.New()
	require.NoError(t, base.Write(ctx, "/old", []byte("from base")))
	upper := memory.New()
	o := New[*memory.MemoryBackend, *memory.MemoryBackend](base, upper)

	require.NoError(t, o.Rename(ctx, "/old", "/new"))

	data, err := o.Read(ctx, "/new")
	require.NoError(t, err)
	assert.Equal(t, "from base", string(data))

	_, err = o.Read(ctx, "/old")
	require.Error(t, err)
	assert.Equal(t, anyfs.KindNotFound, anyfs.KindOf(err))

	baseData, err := base.Read(ctx, "/old")
	require.NoError(t, err)
	assert.Equal(t, "from base", string(baseData))
}
