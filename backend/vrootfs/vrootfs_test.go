package vrootfs

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/dk26/anyfs"
	"github.com/dk26/anyfs/conformance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func open(t *testing.T) *VRootFsBackend {
	t.Helper()
	b, err := New(t.TempDir())
	require.NoError(t, err)
	return b
}

func TestConformance(t *testing.T) {
	conformance.RunFsConformance(t, func() anyfs.Fs { return open(t) })
}

func TestSelfResolvingMarker(t *testing.T) {
	assert.True(t, anyfs.IsSelfResolving(open(t)))
}

func TestEscapeClampedWithinRoot(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	b, err := New(root)
	require.NoError(t, err)

	require.NoError(t, b.CreateDirAll(ctx, "/x"))
	require.NoError(t, b.Write(ctx, "/x/f", []byte("contained")))

	// A lexically escaping path must still resolve under root, never
	// outside it: this is the escape-safety invariant §4.4 requires of
	// VRootFsBackend.
	data, err := b.Read(ctx, "/x/../f")
	require.Error(t, err) // /f does not exist; the point is it isn't KindBackend/outside-root
	_ = data

	hostPath := filepath.Join(root, "x", "f")
	assert.FileExists(t, hostPath)
}
