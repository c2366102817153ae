package memory

import (
	"context"
	"testing"

	"github.com/dk26/anyfs"
	"github.com/dk26/anyfs/conformance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConformance(t *testing.T) {
	conformance.RunFsConformance(t, func() anyfs.Fs { return New() })
}

func TestBasicWriteRead(t *testing.T) {
	ctx := context.Background()
	b := New()

	require.NoError(t, b.Write(ctx, "/hello.txt", []byte("Hello")))
	data, err := b.Read(ctx, "/hello.txt")
	require.NoError(t, err)
	assert.Equal(t, "Hello", string(data))

	s, err := b.ReadToString(ctx, "/hello.txt")
	require.NoError(t, err)
	assert.Equal(t, "Hello", s)

	meta, err := b.Metadata(ctx, "/hello.txt")
	require.NoError(t, err)
	assert.EqualValues(t, 5, meta.Size)
}

func TestCreateDirAllThenWrite(t *testing.T) {
	ctx := context.Background()
	b := New()

	require.NoError(t, b.CreateDirAll(ctx, "/a/b/c"))
	require.NoError(t, b.Write(ctx, "/a/b/c/f", []byte("x")))

	entries, err := b.ReadDir(ctx, "/a/b")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "c", entries[0].Name)
	assert.Equal(t, anyfs.TypeDirectory, entries[0].Type)

	exists, err := b.Exists(ctx, "/a/b/c/f")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestCreateDirAllIdempotent(t *testing.T) {
	ctx := context.Background()
	b := New()
	require.NoError(t, b.CreateDirAll(ctx, "/a/b"))
	require.NoError(t, b.CreateDirAll(ctx, "/a/b"))
}

func TestHardLinkSharesContent(t *testing.T) {
	ctx := context.Background()
	b := New()
	require.NoError(t, b.Write(ctx, "/orig", []byte("data")))
	require.NoError(t, b.HardLink(ctx, "/orig", "/alias"))

	data, err := b.Read(ctx, "/alias")
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))

	require.NoError(t, b.Write(ctx, "/orig", []byte("changed")))
	data, err = b.Read(ctx, "/alias")
	require.NoError(t, err)
	assert.Equal(t, "changed", string(data))

	require.NoError(t, b.RemoveFile(ctx, "/orig"))
	data, err = b.Read(ctx, "/alias")
	require.NoError(t, err)
	assert.Equal(t, "changed", string(data))
}

func TestSymlinkMetadataDoesNotFollow(t *testing.T) {
	ctx := context.Background()
	b := New()
	require.NoError(t, b.Write(ctx, "/real", []byte("R")))
	require.NoError(t, b.Symlink(ctx, "/real", "/link"))

	m, err := b.SymlinkMetadata(ctx, "/link")
	require.NoError(t, err)
	assert.Equal(t, anyfs.TypeSymlink, m.Type)

	target, err := b.ReadLink(ctx, "/link")
	require.NoError(t, err)
	assert.Equal(t, "/real", target)
}

func TestRemoveDirAllRemovesSubtree(t *testing.T) {
	ctx := context.Background()
	b := New()
	require.NoError(t, b.CreateDirAll(ctx, "/a/b"))
	require.NoError(t, b.Write(ctx, "/a/b/f", []byte("x")))

	require.NoError(t, b.RemoveDirAll(ctx, "/a"))
	exists, err := b.Exists(ctx, "/a")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRenameAtomicReplace(t *testing.T) {
	ctx := context.Background()
	b := New()
	require.NoError(t, b.Write(ctx, "/src", []byte("s")))
	require.NoError(t, b.Write(ctx, "/dst", []byte("d")))
	require.NoError(t, b.Rename(ctx, "/src", "/dst"))

	data, err := b.Read(ctx, "/dst")
	require.NoError(t, err)
	assert.Equal(t, "s", string(data))

	exists, err := b.Exists(ctx, "/src")
	require.NoError(t, err)
	assert.False(t, exists)
}
