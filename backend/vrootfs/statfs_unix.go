//go:build darwin || linux || freebsd

package vrootfs

import (
	"context"
	"syscall"

	"github.com/dk26/anyfs"
)

func (b *VRootFsBackend) Statfs(ctx context.Context) (anyfs.Statfs, error) {
	var s syscall.Statfs_t
	if err := syscall.Statfs(b.root, &s); err != nil {
		return anyfs.Statfs{}, anyfs.NewError("statfs", "", anyfs.KindIo, err)
	}
	bs := uint64(s.Bsize) // nolint: unconvert
	return anyfs.Statfs{
		TotalBytes:      bs * uint64(s.Blocks),
		AvailableBytes:  bs * uint64(s.Bavail),
		TotalInodes:     uint64(s.Files),
		AvailableInodes: uint64(s.Ffree),
		BlockSize:       uint32(s.Bsize),
	}, nil
}
