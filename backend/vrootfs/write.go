package vrootfs

import (
	"context"
	"io"
	"os"

	"github.com/dk26/anyfs"
)

func (b *VRootFsBackend) Write(ctx context.Context, path anyfs.Path, data []byte) error {
	resolved, err := b.canonFinal(ctx, path)
	if err != nil {
		return err
	}
	if err := os.WriteFile(b.hostPath(resolved), data, 0o644); err != nil {
		return mapErr("write", path, err)
	}
	return nil
}

func (b *VRootFsBackend) Append(ctx context.Context, path anyfs.Path, data []byte) error {
	resolved, err := b.canonFinal(ctx, path)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(b.hostPath(resolved), os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return mapErr("append", path, err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return mapErr("append", path, err)
	}
	return nil
}

func (b *VRootFsBackend) RemoveFile(ctx context.Context, path anyfs.Path) error {
	resolved, err := b.canonFinal(ctx, path)
	if err != nil {
		return err
	}
	info, err := os.Lstat(b.hostPath(resolved))
	if err != nil {
		return mapErr("remove_file", path, err)
	}
	if info.IsDir() {
		return anyfs.NewError("remove_file", path.String(), anyfs.KindIsADirectory, nil)
	}
	if err := os.Remove(b.hostPath(resolved)); err != nil {
		return mapErr("remove_file", path, err)
	}
	return nil
}

func (b *VRootFsBackend) Rename(ctx context.Context, from, to anyfs.Path) error {
	if anyfs.HasPrefixPath(to, from) && !from.IsRoot() {
		return anyfs.NewErrorPaths("rename", []string{from.String(), to.String()}, anyfs.KindInvalidOperation, nil)
	}
	src, err := b.canonFinal(ctx, from)
	if err != nil {
		return err
	}
	dst, err := b.canonFinal(ctx, to)
	if err != nil {
		return err
	}
	if err := os.Rename(b.hostPath(src), b.hostPath(dst)); err != nil {
		return anyfs.NewErrorPaths("rename", []string{from.String(), to.String()}, mapKind(err), err)
	}
	return nil
}

func (b *VRootFsBackend) Copy(ctx context.Context, from, to anyfs.Path) error {
	src, err := b.canon(ctx, from)
	if err != nil {
		return err
	}
	dst, err := b.canonFinal(ctx, to)
	if err != nil {
		return err
	}
	in, err := os.Open(b.hostPath(src))
	if err != nil {
		return anyfs.NewErrorPaths("copy", []string{from.String(), to.String()}, mapKind(err), err)
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return anyfs.NewErrorPaths("copy", []string{from.String(), to.String()}, mapKind(err), err)
	}
	out, err := os.OpenFile(b.hostPath(dst), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return anyfs.NewErrorPaths("copy", []string{from.String(), to.String()}, mapKind(err), err)
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return anyfs.NewErrorPaths("copy", []string{from.String(), to.String()}, anyfs.KindIo, err)
	}
	return nil
}

func (b *VRootFsBackend) Truncate(ctx context.Context, path anyfs.Path, size uint64) error {
	resolved, err := b.canon(ctx, path)
	if err != nil {
		return err
	}
	if err := os.Truncate(b.hostPath(resolved), int64(size)); err != nil {
		return mapErr("truncate", path, err)
	}
	return nil
}

func (b *VRootFsBackend) OpenWrite(ctx context.Context, path anyfs.Path) (anyfs.WriteStream, error) {
	resolved, err := b.canonFinal(ctx, path)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(b.hostPath(resolved), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, mapErr("open_write", path, err)
	}
	return f, nil
}

func mapKind(err error) anyfs.Kind {
	switch {
	case os.IsNotExist(err):
		return anyfs.KindNotFound
	case os.IsExist(err):
		return anyfs.KindAlreadyExists
	case isDirNotEmpty(err):
		return anyfs.KindDirectoryNotEmpty
	case os.IsPermission(err):
		return anyfs.KindPermissionDenied
	default:
		return anyfs.KindIo
	}
}
