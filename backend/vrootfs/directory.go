package vrootfs

import (
	"context"
	"os"

	"github.com/dk26/anyfs"
)

func (b *VRootFsBackend) ReadDir(ctx context.Context, path anyfs.Path) ([]anyfs.DirEntry, error) {
	resolved, err := b.canon(ctx, path)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(b.hostPath(resolved))
	if err != nil {
		return nil, mapErr("read_dir", path, err)
	}
	out := make([]anyfs.DirEntry, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue // vanished between readdir and stat; skip like a concurrent ls would
		}
		m := b.metadataOf(info)
		size := m.Size
		out = append(out, anyfs.DirEntry{
			Name: e.Name(),
			Type: m.Type,
			Size: &size,
		})
	}
	return out, nil
}

func (b *VRootFsBackend) CreateDir(ctx context.Context, path anyfs.Path) error {
	resolved, err := b.canonFinal(ctx, path)
	if err != nil {
		return err
	}
	if err := os.Mkdir(b.hostPath(resolved), 0o755); err != nil {
		return mapErr("create_dir", path, err)
	}
	return nil
}

func (b *VRootFsBackend) CreateDirAll(ctx context.Context, path anyfs.Path) error {
	resolved, err := b.canonFinal(ctx, path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(b.hostPath(resolved), 0o755); err != nil {
		return mapErr("create_dir_all", path, err)
	}
	return nil
}

func (b *VRootFsBackend) RemoveDir(ctx context.Context, path anyfs.Path) error {
	resolved, err := b.canonFinal(ctx, path)
	if err != nil {
		return err
	}
	if err := os.Remove(b.hostPath(resolved)); err != nil {
		return mapErr("remove_dir", path, err)
	}
	return nil
}

func (b *VRootFsBackend) RemoveDirAll(ctx context.Context, path anyfs.Path) error {
	resolved, err := b.canonFinal(ctx, path)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(b.hostPath(resolved)); err != nil {
		return mapErr("remove_dir_all", path, err)
	}
	return nil
}
