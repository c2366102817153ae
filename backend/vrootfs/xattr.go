//go:build !openbsd && !plan9 && !windows && !js

package vrootfs

import (
	"context"

	"github.com/dk26/anyfs"
	"github.com/pkg/xattr"
)

// xattrPrefix mirrors rclone's own convention for exposing arbitrary
// attributes under the "user." namespace Linux/BSD require for
// unprivileged xattrs.
const xattrPrefix = "user."

func (b *VRootFsBackend) GetXattr(ctx context.Context, path anyfs.Path, name string) ([]byte, error) {
	resolved, err := b.canon(ctx, path)
	if err != nil {
		return nil, err
	}
	v, err := xattr.LGet(b.hostPath(resolved), xattrPrefix+name)
	if err != nil {
		return nil, xattrErr("get_xattr", path, err)
	}
	return v, nil
}

func (b *VRootFsBackend) SetXattr(ctx context.Context, path anyfs.Path, name string, value []byte) error {
	resolved, err := b.canon(ctx, path)
	if err != nil {
		return err
	}
	if err := xattr.LSet(b.hostPath(resolved), xattrPrefix+name, value); err != nil {
		return xattrErr("set_xattr", path, err)
	}
	return nil
}

func (b *VRootFsBackend) RemoveXattr(ctx context.Context, path anyfs.Path, name string) error {
	resolved, err := b.canon(ctx, path)
	if err != nil {
		return err
	}
	if err := xattr.LRemove(b.hostPath(resolved), xattrPrefix+name); err != nil {
		return xattrErr("remove_xattr", path, err)
	}
	return nil
}

func (b *VRootFsBackend) ListXattr(ctx context.Context, path anyfs.Path) ([]string, error) {
	resolved, err := b.canon(ctx, path)
	if err != nil {
		return nil, err
	}
	list, err := xattr.LList(b.hostPath(resolved))
	if err != nil {
		return nil, xattrErr("list_xattr", path, err)
	}
	out := make([]string, 0, len(list))
	for _, k := range list {
		if len(k) > len(xattrPrefix) && k[:len(xattrPrefix)] == xattrPrefix {
			out = append(out, k[len(xattrPrefix):])
		}
	}
	return out, nil
}

func xattrErr(op string, path anyfs.Path, err error) error {
	if xerr, ok := err.(*xattr.Error); ok && xerr.Err == xattr.ENOATTR {
		return anyfs.NewError(op, path.String(), anyfs.KindNotFound, err)
	}
	return mapErr(op, path, err)
}
