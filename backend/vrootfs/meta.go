package vrootfs

import (
	"context"
	"os"

	"github.com/dk26/anyfs"
)

func (b *VRootFsBackend) SetPermissions(ctx context.Context, path anyfs.Path, mode uint32) error {
	resolved, err := b.canon(ctx, path)
	if err != nil {
		return err
	}
	if err := os.Chmod(b.hostPath(resolved), os.FileMode(mode).Perm()); err != nil {
		return mapErr("set_permissions", path, err)
	}
	return nil
}

// Sync flushes the host filesystem's buffer cache for the backend's
// root, the closest portable equivalent to a whole-store fsync.
func (b *VRootFsBackend) Sync(ctx context.Context) error {
	f, err := os.Open(b.root)
	if err != nil {
		return anyfs.NewError("sync", "", anyfs.KindIo, err)
	}
	defer f.Close()
	if err := f.Sync(); err != nil {
		return anyfs.NewError("sync", "", anyfs.KindIo, err)
	}
	return nil
}

func (b *VRootFsBackend) Fsync(ctx context.Context, path anyfs.Path) error {
	resolved, err := b.canon(ctx, path)
	if err != nil {
		return err
	}
	f, err := os.Open(b.hostPath(resolved))
	if err != nil {
		return mapErr("fsync", path, err)
	}
	defer f.Close()
	if err := f.Sync(); err != nil {
		return mapErr("fsync", path, err)
	}
	return nil
}
