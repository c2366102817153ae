//go:build !darwin && !linux && !freebsd

package vrootfs

import (
	"context"

	"github.com/dk26/anyfs"
)

func (b *VRootFsBackend) Statfs(ctx context.Context) (anyfs.Statfs, error) {
	return anyfs.Statfs{}, anyfs.NewError("statfs", "", anyfs.KindNotSupported, nil)
}
