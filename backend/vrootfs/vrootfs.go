// Package vrootfs provides VRootFsBackend: a backend rooted at a real
// host directory, delegating I/O to the OS while containing every path
// beneath its root the way a chroot would.
//
// Grounded on rclone's backend/local: host path construction,
// os.IsNotExist/os.IsExist-based error classification, and the
// about_unix.go/about_windows.go build-tag split for Statfs all follow
// the same shape local.Fs uses, adapted from a cloud-remote's "root" to
// AnyFS's virtual root.
package vrootfs

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/dk26/anyfs"
	"github.com/dk26/anyfs/vpath"
	"github.com/sirupsen/logrus"
)

// VRootFsBackend roots a virtual filesystem at a directory on the host.
// It is SelfResolving: rather than have storage.FileStorage walk its
// own vpath engine over an abstract tree, VRootFsBackend resolves
// symlinks itself, the same way the host OS would, while clamping the
// walk to stay under root.
type VRootFsBackend struct {
	root string
}

// New opens root as the backend's jail. root must already exist and be
// a directory.
func New(root string) (*VRootFsBackend, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, anyfs.NewError("open", root, anyfs.KindInvalidPath, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, mapErr("open", anyfs.Root, err)
	}
	if !info.IsDir() {
		return nil, anyfs.NewError("open", root, anyfs.KindNotADirectory, nil)
	}
	logrus.WithField("root", abs).Debug("vrootfs: backend opened")
	return &VRootFsBackend{root: abs}, nil
}

// SelfResolvingMarker implements anyfs.SelfResolving.
func (b *VRootFsBackend) SelfResolvingMarker() {}

// hostPath joins an already-resolved, already-contained virtual path
// onto the host root.
func (b *VRootFsBackend) hostPath(p anyfs.Path) string {
	return filepath.Join(b.root, filepath.FromSlash(p.String()))
}

// SymlinkMetadata and ReadLink make VRootFsBackend its own
// vpath.Resolver: canon below reuses the same cycle-bounded walk the
// façade would run for an ordinary backend, just pointed at the host
// filesystem instead of an abstract tree.
func (b *VRootFsBackend) SymlinkMetadata(ctx context.Context, path anyfs.Path) (anyfs.Metadata, error) {
	info, err := os.Lstat(b.hostPath(path))
	if err != nil {
		return anyfs.Metadata{}, mapErr("symlink_metadata", path, err)
	}
	return b.metadataOf(info), nil
}

func (b *VRootFsBackend) ReadLink(ctx context.Context, path anyfs.Path) (string, error) {
	target, err := os.Readlink(b.hostPath(path))
	if err != nil {
		return "", mapErr("read_link", path, err)
	}
	return target, nil
}

// canon resolves path the way storage.FileStorage would for a backend
// it manages itself, anchored at the virtual root so symlinks cannot
// walk the host path outside the jail.
func (b *VRootFsBackend) canon(ctx context.Context, path anyfs.Path) (anyfs.Path, error) {
	return vpath.AnchoredCanonicalize(ctx, b, path, anyfs.Root, anyfs.DefaultMaxSymlinkResolution)
}

// canonFinal resolves path's parent but leaves the final component
// literal, for operations (Symlink, HardLink target, SymlinkMetadata
// callers) that must not follow a symlink sitting at the path itself.
func (b *VRootFsBackend) canonFinal(ctx context.Context, path anyfs.Path) (anyfs.Path, error) {
	if path.IsRoot() {
		return anyfs.Root, nil
	}
	parent, err := vpath.AnchoredCanonicalize(ctx, b, path.Dir(), anyfs.Root, anyfs.DefaultMaxSymlinkResolution)
	if err != nil {
		return "", err
	}
	return parent.Join(path.Base()), nil
}

func (b *VRootFsBackend) metadataOf(info os.FileInfo) anyfs.Metadata {
	typ := anyfs.TypeFile
	switch {
	case info.IsDir():
		typ = anyfs.TypeDirectory
	case info.Mode()&os.ModeSymlink != 0:
		typ = anyfs.TypeSymlink
	}
	modMs := info.ModTime().UnixMilli()
	m := anyfs.Metadata{
		Type:        typ,
		Size:        uint64(info.Size()),
		Nlink:       1,
		Permissions: uint32(info.Mode().Perm()),
		ModifiedMs:  &modMs,
	}
	fillPlatformMetadata(info, &m)
	return m
}

// mapErr classifies a host os error into the matching anyfs.Kind,
// grounded on local.go's use of os.IsNotExist/os.IsExist/os.IsPermission
// throughout its Object methods.
func mapErr(op string, path anyfs.Path, err error) error {
	switch {
	case os.IsNotExist(err):
		return anyfs.NewError(op, path.String(), anyfs.KindNotFound, err)
	case os.IsExist(err):
		return anyfs.NewError(op, path.String(), anyfs.KindAlreadyExists, err)
	case os.IsPermission(err):
		return anyfs.NewError(op, path.String(), anyfs.KindPermissionDenied, err)
	case isDirNotEmpty(err):
		return anyfs.NewError(op, path.String(), anyfs.KindDirectoryNotEmpty, err)
	default:
		return anyfs.NewError(op, path.String(), anyfs.KindIo, err)
	}
}

var _ io.Closer = hostReadCloser{}

type hostReadCloser struct{ *os.File }

func (h hostReadCloser) Close() error { return h.File.Close() }

var _ anyfs.FsFull = (*VRootFsBackend)(nil)
var _ anyfs.Xattr = (*VRootFsBackend)(nil)
var _ anyfs.SelfResolving = (*VRootFsBackend)(nil)
