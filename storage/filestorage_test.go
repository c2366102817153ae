package storage

import (
	"context"
	"testing"

	"github.com/dk26/anyfs"
	"github.com/dk26/anyfs/backend/memory"
	"github.com/dk26/anyfs/conformance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sandboxMarker distinguishes FileStorage instances at compile time
// without affecting runtime behavior.
type sandboxMarker struct{}

func TestConformance(t *testing.T) {
	conformance.RunFileStorageConformance(t, func() conformance.Facade {
		return New[*memory.MemoryBackend, sandboxMarker](memory.New())
	})
}

func TestFileStorageResolvesSymlinksOnRead(t *testing.T) {
	ctx := context.Background()
	fsx := New[*memory.MemoryBackend, sandboxMarker](memory.New())

	require.NoError(t, fsx.CreateDirAll(ctx, "/a/b"))
	require.NoError(t, fsx.Write(ctx, "/a/b/real.txt", []byte("content")))
	require.NoError(t, fsx.Symlink(ctx, "/a/b/real.txt", "/shortcut"))

	data, err := fsx.Read(ctx, "/shortcut")
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))
}

func TestFileStorageSymlinkMetadataDoesNotFollow(t *testing.T) {
	ctx := context.Background()
	fsx := New[*memory.MemoryBackend, sandboxMarker](memory.New())

	require.NoError(t, fsx.Write(ctx, "/real.txt", []byte("x")))
	require.NoError(t, fsx.Symlink(ctx, "/real.txt", "/link"))

	m, err := fsx.SymlinkMetadata(ctx, "/link")
	require.NoError(t, err)
	assert.Equal(t, anyfs.TypeSymlink, m.Type)
}

func TestFileStorageRejectsRenameIntoOwnSubtree(t *testing.T) {
	ctx := context.Background()
	fsx := New[*memory.MemoryBackend, sandboxMarker](memory.New())

	require.NoError(t, fsx.CreateDirAll(ctx, "/a/b"))
	err := fsx.Rename(ctx, "/a", "/a/b/c")
	require.Error(t, err)
	assert.Equal(t, anyfs.KindInvalidOperation, anyfs.KindOf(err))
}

func TestBoxedPreservesMarkerAndDropsBackendType(t *testing.T) {
	ctx := context.Background()
	fsx := New[*memory.MemoryBackend, sandboxMarker](memory.New())
	require.NoError(t, fsx.Write(ctx, "/f", []byte("boxed")))

	boxed := fsx.Boxed()
	data, err := boxed.Read(ctx, "/f")
	require.NoError(t, err)
	assert.Equal(t, "boxed", string(data))
}

func TestFileStoragePathToInodeNotFound(t *testing.T) {
	ctx := context.Background()
	fsx := New[*memory.MemoryBackend, sandboxMarker](memory.New())
	_, err := fsx.PathToInode(ctx, "/nonexistent")
	require.Error(t, err)
	assert.Equal(t, anyfs.KindNotFound, anyfs.KindOf(err))
}
