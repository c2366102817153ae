package vpath

import (
	"context"
	"testing"

	"github.com/dk26/anyfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeResolver is a minimal in-memory Resolver used to exercise the
// canonicalization engine in isolation from any real backend.
type fakeResolver struct {
	dirs     map[string]bool
	files    map[string]bool
	symlinks map[string]string
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{
		dirs:     map[string]bool{"/": true},
		files:    map[string]bool{},
		symlinks: map[string]string{},
	}
}

func (f *fakeResolver) mkdir(p string)          { f.dirs[p] = true }
func (f *fakeResolver) touch(p string)          { f.files[p] = true }
func (f *fakeResolver) link(p, target string)   { f.symlinks[p] = target }

func (f *fakeResolver) SymlinkMetadata(ctx context.Context, path anyfs.Path) (anyfs.Metadata, error) {
	p := path.String()
	if target, ok := f.symlinks[p]; ok {
		return anyfs.Metadata{Type: anyfs.TypeSymlink, Size: uint64(len(target))}, nil
	}
	if f.dirs[p] {
		return anyfs.Metadata{Type: anyfs.TypeDirectory}, nil
	}
	if f.files[p] {
		return anyfs.Metadata{Type: anyfs.TypeFile}, nil
	}
	return anyfs.Metadata{}, anyfs.NewError("symlink_metadata", p, anyfs.KindNotFound, nil)
}

func (f *fakeResolver) ReadLink(ctx context.Context, path anyfs.Path) (string, error) {
	target, ok := f.symlinks[path.String()]
	if !ok {
		return "", anyfs.NewError("read_link", path.String(), anyfs.KindNotASymlink, nil)
	}
	return target, nil
}

func TestNormalizeIdempotent(t *testing.T) {
	in := "/a//b/./c/"
	p1, err := Normalize(in)
	require.NoError(t, err)
	p2, err := Normalize(p1.String())
	require.NoError(t, err)
	assert.Equal(t, p1, p2)
	assert.Equal(t, anyfs.Path("/a/b/c"), p1)
}

func TestNormalizeRejectsEmptyAndRelative(t *testing.T) {
	_, err := Normalize("")
	require.Error(t, err)
	assert.True(t, anyfs.Is(err, anyfs.KindInvalidPath))

	_, err = Normalize("a/b")
	require.Error(t, err)
	assert.True(t, anyfs.Is(err, anyfs.KindInvalidPath))
}

func TestCanonicalizeFollowsSymlink(t *testing.T) {
	r := newFakeResolver()
	r.mkdir("/d")
	r.touch("/d/real")
	r.link("/link", "/d/real")

	got, err := Canonicalize(context.Background(), r, "/link", 0)
	require.NoError(t, err)
	assert.Equal(t, anyfs.Path("/d/real"), got)
}

func TestCanonicalizeFailsOnMissingComponent(t *testing.T) {
	r := newFakeResolver()
	_, err := Canonicalize(context.Background(), r, "/nope", 0)
	require.Error(t, err)
	assert.True(t, anyfs.Is(err, anyfs.KindNotFound))
}

func TestCanonicalizeDetectsLoop(t *testing.T) {
	r := newFakeResolver()
	r.link("/a", "/b")
	r.link("/b", "/a")

	_, err := Canonicalize(context.Background(), r, "/a", 40)
	require.Error(t, err)
	assert.True(t, anyfs.Is(err, anyfs.KindSymlinkLoop))
}

func TestSoftCanonicalizeAppendsRemainder(t *testing.T) {
	r := newFakeResolver()
	r.mkdir("/d")

	got, err := SoftCanonicalize(context.Background(), r, "/d/missing/more", 0)
	require.NoError(t, err)
	assert.Equal(t, anyfs.Path("/d/missing/more"), got)
}

func TestSoftCanonicalizePreservesExistingPrefix(t *testing.T) {
	r := newFakeResolver()
	r.mkdir("/d")
	r.mkdir("/d/e")

	got, err := SoftCanonicalize(context.Background(), r, "/d/e/missing", 0)
	require.NoError(t, err)

	prefix, err := Canonicalize(context.Background(), r, "/d/e", 0)
	require.NoError(t, err)
	assert.True(t, anyfs.HasPrefixPath(got, prefix))
}

func TestAnchoredCanonicalizeClampsEscape(t *testing.T) {
	r := newFakeResolver()
	r.mkdir("/sandbox")

	got, err := AnchoredCanonicalize(context.Background(), r, "/x/../../../etc/passwd", "/sandbox", 0)
	require.NoError(t, err)
	assert.Equal(t, anyfs.Path("/sandbox/etc/passwd"), got)
	assert.True(t, anyfs.HasPrefixPath(got, "/sandbox"))
}

func TestAnchoredCanonicalizeClampsSymlinkEscape(t *testing.T) {
	r := newFakeResolver()
	r.mkdir("/sandbox")
	r.link("/sandbox/link", "/etc/passwd")

	got, err := AnchoredCanonicalize(context.Background(), r, "/link", "/sandbox", 0)
	require.NoError(t, err)
	assert.True(t, anyfs.HasPrefixPath(got, "/sandbox"))
}
