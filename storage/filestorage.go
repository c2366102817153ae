// Package storage provides the FileStorage façade: an ergonomic wrapper
// that accepts path-like inputs, resolves them through the vpath
// canonicalization engine (unless the wrapped backend is
// self-resolving), and forwards the resolved path to the backend.
package storage

import (
	"context"

	"github.com/dk26/anyfs"
	"github.com/dk26/anyfs/vpath"
)

// FileStorage is a generic wrapper parameterized by the backend type B
// and a zero-sized marker type M used only at compile time to
// distinguish container identities. M never affects runtime behavior.
type FileStorage[B anyfs.Fs, M any] struct {
	backend     B
	selfResolve bool
	maxFollow   int
}

// New wraps backend in a FileStorage façade carrying marker M.
func New[B anyfs.Fs, M any](backend B) *FileStorage[B, M] {
	return &FileStorage[B, M]{
		backend:     backend,
		selfResolve: anyfs.IsSelfResolving(backend),
		maxFollow:   anyfs.DefaultMaxSymlinkResolution,
	}
}

// Backend returns the wrapped backend.
func (fsx *FileStorage[B, M]) Backend() B { return fsx.backend }

func (fsx *FileStorage[B, M]) resolver() (vpath.Resolver, bool) {
	r, ok := anyfs.Supports[vpath.Resolver](fsx.backend)
	return r, ok
}

// resolveFollow resolves path following every component, including the
// final one (used by read-only operations and any write that targets
// an existing symlink).
func (fsx *FileStorage[B, M]) resolveFollow(ctx context.Context, op, raw string) (anyfs.Path, error) {
	p, err := vpath.Normalize(raw)
	if err != nil {
		return "", err
	}
	if fsx.selfResolve {
		return p, nil
	}
	r, ok := fsx.resolver()
	if !ok {
		return p, nil
	}
	resolved, err := vpath.Canonicalize(ctx, r, p, fsx.maxFollow)
	if anyfs.Is(err, anyfs.KindNotFound) {
		// Translate to NotFound carrying the originally requested path,
		// not whatever partial path the engine saw.
		return "", anyfs.NewError(op, raw, anyfs.KindNotFound, nil)
	}
	if err != nil {
		return "", err
	}
	return resolved, nil
}

// resolveSoft resolves path, stopping at the first non-existent
// component and appending the remainder lexically (used by writes that
// may create a new entry).
func (fsx *FileStorage[B, M]) resolveSoft(ctx context.Context, raw string) (anyfs.Path, error) {
	p, err := vpath.Normalize(raw)
	if err != nil {
		return "", err
	}
	if fsx.selfResolve {
		return p, nil
	}
	r, ok := fsx.resolver()
	if !ok {
		return p, nil
	}
	return vpath.SoftCanonicalize(ctx, r, p, fsx.maxFollow)
}

// resolveNoFollowFinal resolves path's parent directory (following
// symlinks), then joins the raw final component unresolved. Used by
// operations that must not follow a symlink at the final path segment:
// remove_file, rename's endpoints, symlink/hard_link's link name,
// read_link, symlink_metadata.
func (fsx *FileStorage[B, M]) resolveNoFollowFinal(ctx context.Context, raw string) (anyfs.Path, error) {
	p, err := vpath.Normalize(raw)
	if err != nil {
		return "", err
	}
	if fsx.selfResolve {
		return p, nil
	}
	r, ok := fsx.resolver()
	if !ok {
		return p, nil
	}
	if p.IsRoot() {
		return p, nil
	}
	parent, err := vpath.SoftCanonicalize(ctx, r, p.Dir(), fsx.maxFollow)
	if err != nil {
		return "", err
	}
	return parent.Join(p.Base()), nil
}

// --- Read capability ---

func (fsx *FileStorage[B, M]) Read(ctx context.Context, path string) ([]byte, error) {
	p, err := fsx.resolveFollow(ctx, "read", path)
	if err != nil {
		return nil, err
	}
	return fsx.backend.Read(ctx, p)
}

func (fsx *FileStorage[B, M]) ReadToString(ctx context.Context, path string) (string, error) {
	p, err := fsx.resolveFollow(ctx, "read_to_string", path)
	if err != nil {
		return "", err
	}
	return fsx.backend.ReadToString(ctx, p)
}

func (fsx *FileStorage[B, M]) ReadRange(ctx context.Context, path string, offset, length uint64) ([]byte, error) {
	p, err := fsx.resolveFollow(ctx, "read_range", path)
	if err != nil {
		return nil, err
	}
	return fsx.backend.ReadRange(ctx, p, offset, length)
}

func (fsx *FileStorage[B, M]) Exists(ctx context.Context, path string) (bool, error) {
	p, err := fsx.resolveFollow(ctx, "exists", path)
	if err != nil {
		if anyfs.Is(err, anyfs.KindNotFound) {
			return false, nil
		}
		return false, err
	}
	return fsx.backend.Exists(ctx, p)
}

func (fsx *FileStorage[B, M]) Metadata(ctx context.Context, path string) (anyfs.Metadata, error) {
	p, err := fsx.resolveFollow(ctx, "metadata", path)
	if err != nil {
		return anyfs.Metadata{}, err
	}
	return fsx.backend.Metadata(ctx, p)
}

func (fsx *FileStorage[B, M]) OpenRead(ctx context.Context, path string) (anyfs.ReadStream, error) {
	p, err := fsx.resolveFollow(ctx, "open_read", path)
	if err != nil {
		return nil, err
	}
	return fsx.backend.OpenRead(ctx, p)
}

// --- Write capability ---

func (fsx *FileStorage[B, M]) Write(ctx context.Context, path string, data []byte) error {
	p, err := fsx.resolveSoft(ctx, path)
	if err != nil {
		return err
	}
	return fsx.backend.Write(ctx, p, data)
}

func (fsx *FileStorage[B, M]) Append(ctx context.Context, path string, data []byte) error {
	p, err := fsx.resolveSoft(ctx, path)
	if err != nil {
		return err
	}
	return fsx.backend.Append(ctx, p, data)
}

func (fsx *FileStorage[B, M]) RemoveFile(ctx context.Context, path string) error {
	p, err := fsx.resolveNoFollowFinal(ctx, path)
	if err != nil {
		return err
	}
	return fsx.backend.RemoveFile(ctx, p)
}

func (fsx *FileStorage[B, M]) Rename(ctx context.Context, from, to string) error {
	fp, err := fsx.resolveNoFollowFinal(ctx, from)
	if err != nil {
		return err
	}
	tp, err := fsx.resolveNoFollowFinal(ctx, to)
	if err != nil {
		return err
	}
	if anyfs.HasPrefixPath(tp, fp) {
		return anyfs.NewErrorPaths("rename", []string{from, to}, anyfs.KindInvalidOperation, nil)
	}
	return fsx.backend.Rename(ctx, fp, tp)
}

func (fsx *FileStorage[B, M]) Copy(ctx context.Context, from, to string) error {
	fp, err := fsx.resolveFollow(ctx, "copy", from)
	if err != nil {
		return err
	}
	tp, err := fsx.resolveSoft(ctx, to)
	if err != nil {
		return err
	}
	return fsx.backend.Copy(ctx, fp, tp)
}

func (fsx *FileStorage[B, M]) Truncate(ctx context.Context, path string, size uint64) error {
	p, err := fsx.resolveFollow(ctx, "truncate", path)
	if err != nil {
		return err
	}
	return fsx.backend.Truncate(ctx, p, size)
}

func (fsx *FileStorage[B, M]) OpenWrite(ctx context.Context, path string) (anyfs.WriteStream, error) {
	p, err := fsx.resolveSoft(ctx, path)
	if err != nil {
		return nil, err
	}
	return fsx.backend.OpenWrite(ctx, p)
}

// --- Directory capability ---

func (fsx *FileStorage[B, M]) ReadDir(ctx context.Context, path string) ([]anyfs.DirEntry, error) {
	p, err := fsx.resolveFollow(ctx, "read_dir", path)
	if err != nil {
		return nil, err
	}
	return fsx.backend.ReadDir(ctx, p)
}

func (fsx *FileStorage[B, M]) CreateDir(ctx context.Context, path string) error {
	p, err := fsx.resolveSoft(ctx, path)
	if err != nil {
		return err
	}
	return fsx.backend.CreateDir(ctx, p)
}

func (fsx *FileStorage[B, M]) CreateDirAll(ctx context.Context, path string) error {
	p, err := fsx.resolveSoft(ctx, path)
	if err != nil {
		return err
	}
	return fsx.backend.CreateDirAll(ctx, p)
}

func (fsx *FileStorage[B, M]) RemoveDir(ctx context.Context, path string) error {
	p, err := fsx.resolveFollow(ctx, "remove_dir", path)
	if err != nil {
		return err
	}
	return fsx.backend.RemoveDir(ctx, p)
}

func (fsx *FileStorage[B, M]) RemoveDirAll(ctx context.Context, path string) error {
	p, err := fsx.resolveFollow(ctx, "remove_dir_all", path)
	if err != nil {
		return err
	}
	return fsx.backend.RemoveDirAll(ctx, p)
}

// --- Link capability (only reachable if B implements anyfs.Link) ---

func (fsx *FileStorage[B, M]) Symlink(ctx context.Context, original, link string) error {
	l, ok := anyfs.Supports[anyfs.Link](fsx.backend)
	if !ok {
		return anyfs.NewError("symlink", link, anyfs.KindNotSupported, nil)
	}
	lp, err := fsx.resolveNoFollowFinal(ctx, link)
	if err != nil {
		return err
	}
	return l.Symlink(ctx, original, lp)
}

func (fsx *FileStorage[B, M]) HardLink(ctx context.Context, original, link string) error {
	l, ok := anyfs.Supports[anyfs.Link](fsx.backend)
	if !ok {
		return anyfs.NewError("hard_link", link, anyfs.KindNotSupported, nil)
	}
	op, err := fsx.resolveFollow(ctx, "hard_link", original)
	if err != nil {
		return err
	}
	lp, err := fsx.resolveNoFollowFinal(ctx, link)
	if err != nil {
		return err
	}
	return l.HardLink(ctx, op, lp)
}

func (fsx *FileStorage[B, M]) ReadLink(ctx context.Context, path string) (string, error) {
	l, ok := anyfs.Supports[anyfs.Link](fsx.backend)
	if !ok {
		return "", anyfs.NewError("read_link", path, anyfs.KindNotSupported, nil)
	}
	p, err := fsx.resolveNoFollowFinal(ctx, path)
	if err != nil {
		return "", err
	}
	return l.ReadLink(ctx, p)
}

func (fsx *FileStorage[B, M]) SymlinkMetadata(ctx context.Context, path string) (anyfs.Metadata, error) {
	l, ok := anyfs.Supports[anyfs.Link](fsx.backend)
	if !ok {
		return anyfs.Metadata{}, anyfs.NewError("symlink_metadata", path, anyfs.KindNotSupported, nil)
	}
	p, err := fsx.resolveNoFollowFinal(ctx, path)
	if err != nil {
		return anyfs.Metadata{}, err
	}
	return l.SymlinkMetadata(ctx, p)
}

// --- Permissions / Sync / Stats (optional capabilities) ---

func (fsx *FileStorage[B, M]) SetPermissions(ctx context.Context, path string, mode uint32) error {
	perm, ok := anyfs.Supports[anyfs.Permissions](fsx.backend)
	if !ok {
		return anyfs.NewError("set_permissions", path, anyfs.KindNotSupported, nil)
	}
	p, err := fsx.resolveFollow(ctx, "set_permissions", path)
	if err != nil {
		return err
	}
	return perm.SetPermissions(ctx, p, mode)
}

func (fsx *FileStorage[B, M]) Sync(ctx context.Context) error {
	s, ok := anyfs.Supports[anyfs.Sync](fsx.backend)
	if !ok {
		return anyfs.NewError("sync", "", anyfs.KindNotSupported, nil)
	}
	return s.Sync(ctx)
}

func (fsx *FileStorage[B, M]) Fsync(ctx context.Context, path string) error {
	s, ok := anyfs.Supports[anyfs.Sync](fsx.backend)
	if !ok {
		return anyfs.NewError("fsync", path, anyfs.KindNotSupported, nil)
	}
	p, err := fsx.resolveFollow(ctx, "fsync", path)
	if err != nil {
		return err
	}
	return s.Fsync(ctx, p)
}

func (fsx *FileStorage[B, M]) Statfs(ctx context.Context) (anyfs.Statfs, error) {
	s, ok := anyfs.Supports[anyfs.Stats](fsx.backend)
	if !ok {
		return anyfs.Statfs{}, anyfs.NewError("statfs", "", anyfs.KindNotSupported, nil)
	}
	return s.Statfs(ctx)
}

// --- Xattr (optional capability) ---

func (fsx *FileStorage[B, M]) GetXattr(ctx context.Context, path string, name string) ([]byte, error) {
	x, ok := anyfs.Supports[anyfs.Xattr](fsx.backend)
	if !ok {
		return nil, anyfs.NewError("get_xattr", path, anyfs.KindNotSupported, nil)
	}
	p, err := fsx.resolveFollow(ctx, "get_xattr", path)
	if err != nil {
		return nil, err
	}
	return x.GetXattr(ctx, p, name)
}

func (fsx *FileStorage[B, M]) SetXattr(ctx context.Context, path, name string, value []byte) error {
	x, ok := anyfs.Supports[anyfs.Xattr](fsx.backend)
	if !ok {
		return anyfs.NewError("set_xattr", path, anyfs.KindNotSupported, nil)
	}
	p, err := fsx.resolveFollow(ctx, "set_xattr", path)
	if err != nil {
		return err
	}
	return x.SetXattr(ctx, p, name, value)
}

func (fsx *FileStorage[B, M]) RemoveXattr(ctx context.Context, path, name string) error {
	x, ok := anyfs.Supports[anyfs.Xattr](fsx.backend)
	if !ok {
		return anyfs.NewError("remove_xattr", path, anyfs.KindNotSupported, nil)
	}
	p, err := fsx.resolveFollow(ctx, "remove_xattr", path)
	if err != nil {
		return err
	}
	return x.RemoveXattr(ctx, p, name)
}

func (fsx *FileStorage[B, M]) ListXattr(ctx context.Context, path string) ([]string, error) {
	x, ok := anyfs.Supports[anyfs.Xattr](fsx.backend)
	if !ok {
		return nil, anyfs.NewError("list_xattr", path, anyfs.KindNotSupported, nil)
	}
	p, err := fsx.resolveFollow(ctx, "list_xattr", path)
	if err != nil {
		return nil, err
	}
	return x.ListXattr(ctx, p)
}

// --- InodeOps (optional capability) ---

func (fsx *FileStorage[B, M]) PathToInode(ctx context.Context, path string) (anyfs.Inode, error) {
	i, ok := anyfs.Supports[anyfs.InodeOps](fsx.backend)
	if !ok {
		return 0, anyfs.NewError("path_to_inode", path, anyfs.KindNotSupported, nil)
	}
	p, err := fsx.resolveFollow(ctx, "path_to_inode", path)
	if err != nil {
		return 0, err
	}
	return i.PathToInode(ctx, p)
}

func (fsx *FileStorage[B, M]) InodeToPath(ctx context.Context, inode anyfs.Inode) (anyfs.Path, error) {
	i, ok := anyfs.Supports[anyfs.InodeOps](fsx.backend)
	if !ok {
		return "", anyfs.NewError("inode_to_path", "", anyfs.KindNotSupported, nil)
	}
	return i.InodeToPath(ctx, inode)
}

// Boxed type-erases fsx's backend while preserving its marker M. See
// boxed.go for the Boxed[M] type itself.
func (fsx *FileStorage[B, M]) Boxed() *Boxed[M] {
	return Boxed_[B, M](fsx)
}
