package storage

import (
	"context"
	"fmt"

	"github.com/dk26/anyfs"
	"github.com/dk26/anyfs/vpath"
)

// Boxed is the type-erased form of FileStorage: it drops the concrete
// backend type parameter B but keeps the marker M, so functions that
// only care about container identity can accept heterogeneous
// backends behind a single type.
type Boxed[M any] struct {
	backend     any
	selfResolve bool
	maxFollow   int
}

// Boxed_ type-erases fsx's backend while preserving its marker M.
func Boxed_[B anyfs.Fs, M any](fsx *FileStorage[B, M]) *Boxed[M] {
	return &Boxed[M]{backend: fsx.backend, selfResolve: fsx.selfResolve, maxFollow: fsx.maxFollow}
}

func (b *Boxed[M]) resolver() (vpath.Resolver, bool) {
	r, ok := anyfs.Supports[vpath.Resolver](b.backend)
	return r, ok
}

func (b *Boxed[M]) resolveFollow(ctx context.Context, op, raw string) (anyfs.Path, error) {
	p, err := vpath.Normalize(raw)
	if err != nil {
		return "", err
	}
	if b.selfResolve {
		return p, nil
	}
	r, ok := b.resolver()
	if !ok {
		return p, nil
	}
	resolved, err := vpath.Canonicalize(ctx, r, p, b.maxFollow)
	if anyfs.Is(err, anyfs.KindNotFound) {
		return "", anyfs.NewError(op, raw, anyfs.KindNotFound, nil)
	}
	return resolved, err
}

func (b *Boxed[M]) resolveSoft(ctx context.Context, raw string) (anyfs.Path, error) {
	p, err := vpath.Normalize(raw)
	if err != nil {
		return "", err
	}
	if b.selfResolve {
		return p, nil
	}
	r, ok := b.resolver()
	if !ok {
		return p, nil
	}
	return vpath.SoftCanonicalize(ctx, r, p, b.maxFollow)
}

func (b *Boxed[M]) resolveNoFollowFinal(ctx context.Context, raw string) (anyfs.Path, error) {
	p, err := vpath.Normalize(raw)
	if err != nil {
		return "", err
	}
	if b.selfResolve {
		return p, nil
	}
	r, ok := b.resolver()
	if !ok {
		return p, nil
	}
	if p.IsRoot() {
		return p, nil
	}
	parent, err := vpath.SoftCanonicalize(ctx, r, p.Dir(), b.maxFollow)
	if err != nil {
		return "", err
	}
	return parent.Join(p.Base()), nil
}

func notSupported(op string, path string) error {
	return anyfs.NewError(op, path, anyfs.KindNotSupported, nil)
}

func boxedErr(capability string) error {
	return fmt.Errorf("boxed backend does not implement %s", capability)
}

// --- Read ---

func (b *Boxed[M]) Read(ctx context.Context, path string) ([]byte, error) {
	rd, ok := anyfs.Supports[anyfs.Read](b.backend)
	if !ok {
		return nil, boxedErr("Read")
	}
	p, err := b.resolveFollow(ctx, "read", path)
	if err != nil {
		return nil, err
	}
	return rd.Read(ctx, p)
}

func (b *Boxed[M]) ReadToString(ctx context.Context, path string) (string, error) {
	rd, ok := anyfs.Supports[anyfs.Read](b.backend)
	if !ok {
		return "", boxedErr("Read")
	}
	p, err := b.resolveFollow(ctx, "read_to_string", path)
	if err != nil {
		return "", err
	}
	return rd.ReadToString(ctx, p)
}

func (b *Boxed[M]) ReadRange(ctx context.Context, path string, offset, length uint64) ([]byte, error) {
	rd, ok := anyfs.Supports[anyfs.Read](b.backend)
	if !ok {
		return nil, boxedErr("Read")
	}
	p, err := b.resolveFollow(ctx, "read_range", path)
	if err != nil {
		return nil, err
	}
	return rd.ReadRange(ctx, p, offset, length)
}

func (b *Boxed[M]) Exists(ctx context.Context, path string) (bool, error) {
	rd, ok := anyfs.Supports[anyfs.Read](b.backend)
	if !ok {
		return false, boxedErr("Read")
	}
	p, err := b.resolveFollow(ctx, "exists", path)
	if err != nil {
		if anyfs.Is(err, anyfs.KindNotFound) {
			return false, nil
		}
		return false, err
	}
	return rd.Exists(ctx, p)
}

func (b *Boxed[M]) Metadata(ctx context.Context, path string) (anyfs.Metadata, error) {
	rd, ok := anyfs.Supports[anyfs.Read](b.backend)
	if !ok {
		return anyfs.Metadata{}, boxedErr("Read")
	}
	p, err := b.resolveFollow(ctx, "metadata", path)
	if err != nil {
		return anyfs.Metadata{}, err
	}
	return rd.Metadata(ctx, p)
}

func (b *Boxed[M]) OpenRead(ctx context.Context, path string) (anyfs.ReadStream, error) {
	rd, ok := anyfs.Supports[anyfs.Read](b.backend)
	if !ok {
		return nil, boxedErr("Read")
	}
	p, err := b.resolveFollow(ctx, "open_read", path)
	if err != nil {
		return nil, err
	}
	return rd.OpenRead(ctx, p)
}

// --- Write ---

func (b *Boxed[M]) Write(ctx context.Context, path string, data []byte) error {
	w, ok := anyfs.Supports[anyfs.Write](b.backend)
	if !ok {
		return boxedErr("Write")
	}
	p, err := b.resolveSoft(ctx, path)
	if err != nil {
		return err
	}
	return w.Write(ctx, p, data)
}

func (b *Boxed[M]) Append(ctx context.Context, path string, data []byte) error {
	w, ok := anyfs.Supports[anyfs.Write](b.backend)
	if !ok {
		return boxedErr("Write")
	}
	p, err := b.resolveSoft(ctx, path)
	if err != nil {
		return err
	}
	return w.Append(ctx, p, data)
}

func (b *Boxed[M]) RemoveFile(ctx context.Context, path string) error {
	w, ok := anyfs.Supports[anyfs.Write](b.backend)
	if !ok {
		return boxedErr("Write")
	}
	p, err := b.resolveNoFollowFinal(ctx, path)
	if err != nil {
		return err
	}
	return w.RemoveFile(ctx, p)
}

func (b *Boxed[M]) Rename(ctx context.Context, from, to string) error {
	w, ok := anyfs.Supports[anyfs.Write](b.backend)
	if !ok {
		return boxedErr("Write")
	}
	fp, err := b.resolveNoFollowFinal(ctx, from)
	if err != nil {
		return err
	}
	tp, err := b.resolveNoFollowFinal(ctx, to)
	if err != nil {
		return err
	}
	if anyfs.HasPrefixPath(tp, fp) {
		return anyfs.NewErrorPaths("rename", []string{from, to}, anyfs.KindInvalidOperation, nil)
	}
	return w.Rename(ctx, fp, tp)
}

func (b *Boxed[M]) Copy(ctx context.Context, from, to string) error {
	w, ok := anyfs.Supports[anyfs.Write](b.backend)
	if !ok {
		return boxedErr("Write")
	}
	fp, err := b.resolveFollow(ctx, "copy", from)
	if err != nil {
		return err
	}
	tp, err := b.resolveSoft(ctx, to)
	if err != nil {
		return err
	}
	return w.Copy(ctx, fp, tp)
}

func (b *Boxed[M]) Truncate(ctx context.Context, path string, size uint64) error {
	w, ok := anyfs.Supports[anyfs.Write](b.backend)
	if !ok {
		return boxedErr("Write")
	}
	p, err := b.resolveFollow(ctx, "truncate", path)
	if err != nil {
		return err
	}
	return w.Truncate(ctx, p, size)
}

func (b *Boxed[M]) OpenWrite(ctx context.Context, path string) (anyfs.WriteStream, error) {
	w, ok := anyfs.Supports[anyfs.Write](b.backend)
	if !ok {
		return nil, boxedErr("Write")
	}
	p, err := b.resolveSoft(ctx, path)
	if err != nil {
		return nil, err
	}
	return w.OpenWrite(ctx, p)
}

// --- Directory ---

func (b *Boxed[M]) ReadDir(ctx context.Context, path string) ([]anyfs.DirEntry, error) {
	d, ok := anyfs.Supports[anyfs.Directory](b.backend)
	if !ok {
		return nil, boxedErr("Directory")
	}
	p, err := b.resolveFollow(ctx, "read_dir", path)
	if err != nil {
		return nil, err
	}
	return d.ReadDir(ctx, p)
}

func (b *Boxed[M]) CreateDir(ctx context.Context, path string) error {
	d, ok := anyfs.Supports[anyfs.Directory](b.backend)
	if !ok {
		return boxedErr("Directory")
	}
	p, err := b.resolveSoft(ctx, path)
	if err != nil {
		return err
	}
	return d.CreateDir(ctx, p)
}

func (b *Boxed[M]) CreateDirAll(ctx context.Context, path string) error {
	d, ok := anyfs.Supports[anyfs.Directory](b.backend)
	if !ok {
		return boxedErr("Directory")
	}
	p, err := b.resolveSoft(ctx, path)
	if err != nil {
		return err
	}
	return d.CreateDirAll(ctx, p)
}

func (b *Boxed[M]) RemoveDir(ctx context.Context, path string) error {
	d, ok := anyfs.Supports[anyfs.Directory](b.backend)
	if !ok {
		return boxedErr("Directory")
	}
	p, err := b.resolveFollow(ctx, "remove_dir", path)
	if err != nil {
		return err
	}
	return d.RemoveDir(ctx, p)
}

func (b *Boxed[M]) RemoveDirAll(ctx context.Context, path string) error {
	d, ok := anyfs.Supports[anyfs.Directory](b.backend)
	if !ok {
		return boxedErr("Directory")
	}
	p, err := b.resolveFollow(ctx, "remove_dir_all", path)
	if err != nil {
		return err
	}
	return d.RemoveDirAll(ctx, p)
}

// --- Link / Permissions / Sync / Stats (optional capabilities) ---

func (b *Boxed[M]) Symlink(ctx context.Context, original, link string) error {
	l, ok := anyfs.Supports[anyfs.Link](b.backend)
	if !ok {
		return notSupported("symlink", link)
	}
	lp, err := b.resolveNoFollowFinal(ctx, link)
	if err != nil {
		return err
	}
	return l.Symlink(ctx, original, lp)
}

func (b *Boxed[M]) HardLink(ctx context.Context, original, link string) error {
	l, ok := anyfs.Supports[anyfs.Link](b.backend)
	if !ok {
		return notSupported("hard_link", link)
	}
	op, err := b.resolveFollow(ctx, "hard_link", original)
	if err != nil {
		return err
	}
	lp, err := b.resolveNoFollowFinal(ctx, link)
	if err != nil {
		return err
	}
	return l.HardLink(ctx, op, lp)
}

func (b *Boxed[M]) ReadLink(ctx context.Context, path string) (string, error) {
	l, ok := anyfs.Supports[anyfs.Link](b.backend)
	if !ok {
		return "", notSupported("read_link", path)
	}
	p, err := b.resolveNoFollowFinal(ctx, path)
	if err != nil {
		return "", err
	}
	return l.ReadLink(ctx, p)
}

func (b *Boxed[M]) SymlinkMetadata(ctx context.Context, path string) (anyfs.Metadata, error) {
	l, ok := anyfs.Supports[anyfs.Link](b.backend)
	if !ok {
		return anyfs.Metadata{}, notSupported("symlink_metadata", path)
	}
	p, err := b.resolveNoFollowFinal(ctx, path)
	if err != nil {
		return anyfs.Metadata{}, err
	}
	return l.SymlinkMetadata(ctx, p)
}

func (b *Boxed[M]) SetPermissions(ctx context.Context, path string, mode uint32) error {
	perm, ok := anyfs.Supports[anyfs.Permissions](b.backend)
	if !ok {
		return notSupported("set_permissions", path)
	}
	p, err := b.resolveFollow(ctx, "set_permissions", path)
	if err != nil {
		return err
	}
	return perm.SetPermissions(ctx, p, mode)
}

func (b *Boxed[M]) Sync(ctx context.Context) error {
	s, ok := anyfs.Supports[anyfs.Sync](b.backend)
	if !ok {
		return notSupported("sync", "")
	}
	return s.Sync(ctx)
}

func (b *Boxed[M]) Fsync(ctx context.Context, path string) error {
	s, ok := anyfs.Supports[anyfs.Sync](b.backend)
	if !ok {
		return notSupported("fsync", path)
	}
	p, err := b.resolveFollow(ctx, "fsync", path)
	if err != nil {
		return err
	}
	return s.Fsync(ctx, p)
}

func (b *Boxed[M]) Statfs(ctx context.Context) (anyfs.Statfs, error) {
	s, ok := anyfs.Supports[anyfs.Stats](b.backend)
	if !ok {
		return anyfs.Statfs{}, notSupported("statfs", "")
	}
	return s.Statfs(ctx)
}

// --- Xattr (optional capability) ---

func (b *Boxed[M]) GetXattr(ctx context.Context, path, name string) ([]byte, error) {
	x, ok := anyfs.Supports[anyfs.Xattr](b.backend)
	if !ok {
		return nil, notSupported("get_xattr", path)
	}
	p, err := b.resolveFollow(ctx, "get_xattr", path)
	if err != nil {
		return nil, err
	}
	return x.GetXattr(ctx, p, name)
}

func (b *Boxed[M]) SetXattr(ctx context.Context, path, name string, value []byte) error {
	x, ok := anyfs.Supports[anyfs.Xattr](b.backend)
	if !ok {
		return notSupported("set_xattr", path)
	}
	p, err := b.resolveFollow(ctx, "set_xattr", path)
	if err != nil {
		return err
	}
	return x.SetXattr(ctx, p, name, value)
}

func (b *Boxed[M]) RemoveXattr(ctx context.Context, path, name string) error {
	x, ok := anyfs.Supports[anyfs.Xattr](b.backend)
	if !ok {
		return notSupported("remove_xattr", path)
	}
	p, err := b.resolveFollow(ctx, "remove_xattr", path)
	if err != nil {
		return err
	}
	return x.RemoveXattr(ctx, p, name)
}

func (b *Boxed[M]) ListXattr(ctx context.Context, path string) ([]string, error) {
	x, ok := anyfs.Supports[anyfs.Xattr](b.backend)
	if !ok {
		return nil, notSupported("list_xattr", path)
	}
	p, err := b.resolveFollow(ctx, "list_xattr", path)
	if err != nil {
		return nil, err
	}
	return x.ListXattr(ctx, p)
}
