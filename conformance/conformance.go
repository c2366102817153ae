// Package conformance holds the shared contract test kit every backend
// and every middleware is run against. Grounded on rclone's own
// fstest/fstests package (a single suite of subtests parameterized over
// whichever remote a given backend_test.go wires in) — the same
// table-driven-against-an-interface shape, reused here against the
// capability traits (§4.1) instead of rclone's fs.Fs.
//
// RunFsConformance exercises a fresh anyfs.Fs via its raw backend
// methods (no path resolution, no symlink following) and checks the
// universal invariants spec §8 lists. RunFileStorageConformance runs
// the façade-level scenarios that depend on the resolution engine
// (a read through a symlink, Exists on a dangling symlink).
package conformance

import (
	"context"
	"testing"

	"github.com/dk26/anyfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Facade is the subset of storage.FileStorage's behavior the
// façade-level conformance suite drives. Declared here instead of
// importing package storage, which would create an import cycle
// (storage's own tests want to reuse this kit).
type Facade interface {
	Read(ctx context.Context, path string) ([]byte, error)
	Write(ctx context.Context, path string, data []byte) error
	CreateDirAll(ctx context.Context, path string) error
	Exists(ctx context.Context, path string) (bool, error)
	Symlink(ctx context.Context, original string, link string) error
}

// RunFsConformance runs the backend-level contract suite against a
// fresh instance produced by newBackend for every subtest (each subtest
// wants an empty container).
func RunFsConformance(t *testing.T, newBackend func() anyfs.Fs) {
	t.Run("ExistsImpliesMetadata", func(t *testing.T) { testExistsImpliesMetadata(t, newBackend()) })
	t.Run("WriteReadRoundTrip", func(t *testing.T) { testWriteReadRoundTrip(t, newBackend()) })
	t.Run("MetadataSizeMatchesData", func(t *testing.T) { testMetadataSizeMatchesData(t, newBackend()) })
	t.Run("CreateDirAllIdempotent", func(t *testing.T) { testCreateDirAllIdempotent(t, newBackend()) })
	t.Run("RemoveDirAllRemovesEverything", func(t *testing.T) { testRemoveDirAllRemovesEverything(t, newBackend()) })
	t.Run("RemoveDirNonEmptyFails", func(t *testing.T) { testRemoveDirNonEmptyFails(t, newBackend()) })
	t.Run("RenameReplacesNonDirectory", func(t *testing.T) { testRenameReplacesNonDirectory(t, newBackend()) })
	t.Run("ReadRangeClampsToEOF", func(t *testing.T) { testReadRangeClampsToEOF(t, newBackend()) })
	t.Run("ReadRangeBeyondEOFIsEmpty", func(t *testing.T) { testReadRangeBeyondEOFIsEmpty(t, newBackend()) })
	t.Run("WriteToMissingParentFails", func(t *testing.T) { testWriteToMissingParentFails(t, newBackend()) })
	t.Run("WriteToDirectoryFails", func(t *testing.T) { testWriteToDirectoryFails(t, newBackend()) })
	t.Run("RemoveFileOnDirectoryFails", func(t *testing.T) { testRemoveFileOnDirectoryFails(t, newBackend()) })

	if b, ok := anyfs.Supports[anyfs.Link](newBackend()); ok {
		_ = b
		t.Run("HardLinkSharesContent", func(t *testing.T) { testHardLinkSharesContent(t, newBackend()) })
		t.Run("HardLinkSurvivesSingleRemoval", func(t *testing.T) { testHardLinkSurvivesSingleRemoval(t, newBackend()) })
	}
}

func testExistsImpliesMetadata(t *testing.T, b anyfs.Fs) {
	ctx := context.Background()
	require.NoError(t, b.Write(ctx, "/f", []byte("x")))

	exists, err := b.Exists(ctx, "/f")
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = b.Metadata(ctx, "/f")
	require.NoError(t, err)

	exists, err = b.Exists(ctx, "/missing")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = b.Metadata(ctx, "/missing")
	require.Error(t, err)
	assert.Equal(t, anyfs.KindNotFound, anyfs.KindOf(err))
}

func testWriteReadRoundTrip(t *testing.T, b anyfs.Fs) {
	ctx := context.Background()
	data := []byte("round trip payload")
	require.NoError(t, b.Write(ctx, "/roundtrip", data))

	got, err := b.Read(ctx, "/roundtrip")
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func testMetadataSizeMatchesData(t *testing.T, b anyfs.Fs) {
	ctx := context.Background()
	data := []byte("exactly seventeen")
	require.NoError(t, b.Write(ctx, "/sized", data))

	m, err := b.Metadata(ctx, "/sized")
	require.NoError(t, err)
	assert.EqualValues(t, len(data), m.Size)
}

func testCreateDirAllIdempotent(t *testing.T, b anyfs.Fs) {
	ctx := context.Background()
	require.NoError(t, b.CreateDirAll(ctx, "/a/b/c"))
	require.NoError(t, b.CreateDirAll(ctx, "/a/b/c"))

	exists, err := b.Exists(ctx, "/a/b/c")
	require.NoError(t, err)
	assert.True(t, exists)
}

func testRemoveDirAllRemovesEverything(t *testing.T, b anyfs.Fs) {
	ctx := context.Background()
	require.NoError(t, b.CreateDirAll(ctx, "/tree/a/b"))
	require.NoError(t, b.Write(ctx, "/tree/a/b/leaf", []byte("x")))

	require.NoError(t, b.RemoveDirAll(ctx, "/tree"))

	exists, err := b.Exists(ctx, "/tree")
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = b.Exists(ctx, "/tree/a/b/leaf")
	require.NoError(t, err)
	assert.False(t, exists)
}

func testRemoveDirNonEmptyFails(t *testing.T, b anyfs.Fs) {
	ctx := context.Background()
	require.NoError(t, b.CreateDirAll(ctx, "/nonempty"))
	require.NoError(t, b.Write(ctx, "/nonempty/f", []byte("x")))

	err := b.RemoveDir(ctx, "/nonempty")
	require.Error(t, err)
	assert.Equal(t, anyfs.KindDirectoryNotEmpty, anyfs.KindOf(err))
}

func testRenameReplacesNonDirectory(t *testing.T, b anyfs.Fs) {
	ctx := context.Background()
	require.NoError(t, b.Write(ctx, "/src", []byte("new")))
	require.NoError(t, b.Write(ctx, "/dst", []byte("old")))

	require.NoError(t, b.Rename(ctx, "/src", "/dst"))

	srcExists, _ := b.Exists(ctx, "/src")
	assert.False(t, srcExists)

	data, err := b.Read(ctx, "/dst")
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func testReadRangeClampsToEOF(t *testing.T, b anyfs.Fs) {
	ctx := context.Background()
	require.NoError(t, b.Write(ctx, "/ranged", []byte("0123456789")))

	got, err := b.ReadRange(ctx, "/ranged", 5, 1000)
	require.NoError(t, err)
	assert.Equal(t, "56789", string(got))
}

func testReadRangeBeyondEOFIsEmpty(t *testing.T, b anyfs.Fs) {
	ctx := context.Background()
	require.NoError(t, b.Write(ctx, "/shortfile", []byte("abc")))

	got, err := b.ReadRange(ctx, "/shortfile", 100, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func testWriteToMissingParentFails(t *testing.T, b anyfs.Fs) {
	ctx := context.Background()
	err := b.Write(ctx, "/no/such/parent/f", []byte("x"))
	require.Error(t, err)
}

func testWriteToDirectoryFails(t *testing.T, b anyfs.Fs) {
	ctx := context.Background()
	require.NoError(t, b.CreateDir(ctx, "/adir"))

	err := b.Write(ctx, "/adir", []byte("x"))
	require.Error(t, err)
	assert.Equal(t, anyfs.KindIsADirectory, anyfs.KindOf(err))
}

func testRemoveFileOnDirectoryFails(t *testing.T, b anyfs.Fs) {
	ctx := context.Background()
	require.NoError(t, b.CreateDir(ctx, "/adir2"))

	err := b.RemoveFile(ctx, "/adir2")
	require.Error(t, err)
	assert.Equal(t, anyfs.KindIsADirectory, anyfs.KindOf(err))
}

func testHardLinkSharesContent(t *testing.T, b anyfs.Fs) {
	ctx := context.Background()
	l := b.(anyfs.Link)
	require.NoError(t, b.Write(ctx, "/orig", []byte("shared")))
	require.NoError(t, l.HardLink(ctx, "/orig", "/linked"))

	d1, err := b.Read(ctx, "/orig")
	require.NoError(t, err)
	d2, err := b.Read(ctx, "/linked")
	require.NoError(t, err)
	assert.Equal(t, d1, d2)
}

func testHardLinkSurvivesSingleRemoval(t *testing.T, b anyfs.Fs) {
	ctx := context.Background()
	l := b.(anyfs.Link)
	require.NoError(t, b.Write(ctx, "/orig2", []byte("shared")))
	require.NoError(t, l.HardLink(ctx, "/orig2", "/linked2"))

	require.NoError(t, b.RemoveFile(ctx, "/orig2"))

	data, err := b.Read(ctx, "/linked2")
	require.NoError(t, err)
	assert.Equal(t, "shared", string(data))
}

// RunFileStorageConformance runs façade-level scenarios that depend on
// the resolution engine: symlink following on read and Exists on a
// dangling symlink.
func RunFileStorageConformance(t *testing.T, newFacade func() Facade) {
	t.Run("ReadFollowsSymlink", func(t *testing.T) {
		ctx := context.Background()
		f := newFacade()
		require.NoError(t, f.CreateDirAll(ctx, "/d"))
		require.NoError(t, f.Write(ctx, "/d/real", []byte("R")))
		require.NoError(t, f.Symlink(ctx, "/d/real", "/link"))

		data, err := f.Read(ctx, "/link")
		require.NoError(t, err)
		assert.Equal(t, "R", string(data))
	})

	t.Run("ExistsFalseForDanglingSymlink", func(t *testing.T) {
		ctx := context.Background()
		f := newFacade()
		require.NoError(t, f.Symlink(ctx, "/nowhere", "/dangling"))

		exists, err := f.Exists(ctx, "/dangling")
		require.NoError(t, err)
		assert.False(t, exists)
	})
}
