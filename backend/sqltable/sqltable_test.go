package sqltable

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/dk26/anyfs"
	"github.com/dk26/anyfs/conformance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConformance(t *testing.T) {
	conformance.RunFsConformance(t, func() anyfs.Fs { return open(t) })
}

func open(t *testing.T) *SqlTableBackend {
	t.Helper()
	path := filepath.Join(t.TempDir(), "store.db")
	b, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestBasicWriteRead(t *testing.T) {
	ctx := context.Background()
	b := open(t)

	require.NoError(t, b.Write(ctx, "/hello.txt", []byte("Hello")))
	data, err := b.Read(ctx, "/hello.txt")
	require.NoError(t, err)
	assert.Equal(t, "Hello", string(data))

	meta, err := b.Metadata(ctx, "/hello.txt")
	require.NoError(t, err)
	assert.EqualValues(t, 5, meta.Size)
	assert.Equal(t, anyfs.TypeFile, meta.Type)
}

// TestAppendToExistingFile guards against a regression where Append read
// the current bytes through b.db instead of the open transaction: with
// the pool capped to one connection (SetMaxOpenConns(1)), that nested
// read would block forever behind the write transaction's own connection.
func TestAppendToExistingFile(t *testing.T) {
	ctx := context.Background()
	b := open(t)

	require.NoError(t, b.Write(ctx, "/log", []byte("first")))
	require.NoError(t, b.Append(ctx, "/log", []byte("-second")))

	data, err := b.Read(ctx, "/log")
	require.NoError(t, err)
	assert.Equal(t, "first-second", string(data))
}

func TestCreateDirAllThenWrite(t *testing.T) {
	ctx := context.Background()
	b := open(t)

	require.NoError(t, b.CreateDirAll(ctx, "/a/b/c"))
	require.NoError(t, b.Write(ctx, "/a/b/c/f", []byte("x")))

	entries, err := b.ReadDir(ctx, "/a/b")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "c", entries[0].Name)
	assert.Equal(t, anyfs.TypeDirectory, entries[0].Type)
}

func TestCreateDirAllIdempotent(t *testing.T) {
	ctx := context.Background()
	b := open(t)
	require.NoError(t, b.CreateDirAll(ctx, "/a/b"))
	require.NoError(t, b.CreateDirAll(ctx, "/a/b"))
}

func TestHardLinkSharesContentAndNlink(t *testing.T) {
	ctx := context.Background()
	b := open(t)
	require.NoError(t, b.Write(ctx, "/orig", []byte("data")))
	require.NoError(t, b.HardLink(ctx, "/orig", "/alias"))

	data, err := b.Read(ctx, "/alias")
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))

	meta, err := b.Metadata(ctx, "/orig")
	require.NoError(t, err)
	assert.EqualValues(t, 2, meta.Nlink)

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
	b := open(t)
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
	b := open(t)
	require.NoError(t, b.CreateDirAll(ctx, "/a/b"))
	require.NoError(t, b.Write(ctx, "/a/b/f", []byte("x")))

	require.NoError(t, b.RemoveDirAll(ctx, "/a"))
	exists, err := b.Exists(ctx, "/a")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRenameAtomicReplace(t *testing.T) {
	ctx := context.Background()
	b := open(t)
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

func TestInodeRoundTrip(t *testing.T) {
	ctx := context.Background()
	b := open(t)
	require.NoError(t, b.CreateDirAll(ctx, "/a/b"))
	require.NoError(t, b.Write(ctx, "/a/b/f", []byte("x")))

	inode, err := b.PathToInode(ctx, "/a/b/f")
	require.NoError(t, err)

	path, err := b.InodeToPath(ctx, inode)
	require.NoError(t, err)
	assert.Equal(t, anyfs.Path("/a/b/f"), path)
}

func TestXattrRoundTrip(t *testing.T) {
	ctx := context.Background()
	b := open(t)
	require.NoError(t, b.Write(ctx, "/f", []byte("x")))
	require.NoError(t, b.SetXattr(ctx, "/f", "user.tag", []byte("v1")))

	v, err := b.GetXattr(ctx, "/f", "user.tag")
	require.NoError(t, err)
	assert.Equal(t, "v1", string(v))

	names, err := b.ListXattr(ctx, "/f")
	require.NoError(t, err)
	assert.Equal(t, []string{"user.tag"}, names)

	require.NoError(t, b.RemoveXattr(ctx, "/f", "user.tag"))
	_, err = b.GetXattr(ctx, "/f", "user.tag")
	assert.True(t, anyfs.Is(err, anyfs.KindNotFound))
}

func TestPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store.db")

	b1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, b1.Write(ctx, "/persisted", []byte("still here")))
	require.NoError(t, b1.Close())

	b2, err := Open(path)
	require.NoError(t, err)
	defer b2.Close()

	data, err := b2.Read(ctx, "/persisted")
	require.NoError(t, err)
	assert.Equal(t, "still here", string(data))
}
