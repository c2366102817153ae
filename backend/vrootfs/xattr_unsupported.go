// The pkg/xattr module doesn't compile for openbsd, plan9, windows or js.

//go:build openbsd || plan9 || windows || js

package vrootfs

import (
	"context"

	"github.com/dk26/anyfs"
)

func (b *VRootFsBackend) GetXattr(ctx context.Context, path anyfs.Path, name string) ([]byte, error) {
	return nil, anyfs.NewError("get_xattr", path.String(), anyfs.KindNotSupported, nil)
}

func (b *VRootFsBackend) SetXattr(ctx context.Context, path anyfs.Path, name string, value []byte) error {
	return anyfs.NewError("set_xattr", path.String(), anyfs.KindNotSupported, nil)
}

func (b *VRootFsBackend) RemoveXattr(ctx context.Context, path anyfs.Path, name string) error {
	return anyfs.NewError("remove_xattr", path.String(), anyfs.KindNotSupported, nil)
}

func (b *VRootFsBackend) ListXattr(ctx context.Context, path anyfs.Path) ([]string, error) {
	return nil, anyfs.NewError("list_xattr", path.String(), anyfs.KindNotSupported, nil)
}
