// Package readonly provides a Layer that rejects every write-capability
// operation with anyfs.KindReadOnly while passing every read-capability
// operation straight through to the wrapped backend. Grounded on
// rclone's backend/crypt wrapping pattern (crypt.go's Fs methods that
// delegate to f.Fs for the operations crypt itself does not intercept),
// generalized to a blanket interceptor instead of a per-method rewrite.
package readonly

import (
	"context"

	"github.com/dk26/anyfs"
)

// Backend wraps B, refusing every operation that would mutate it.
type Backend[B anyfs.Fs] struct {
	backend B
}

// New wraps backend so that every write-capability operation fails with
// KindReadOnly.
func New[B anyfs.Fs](backend B) *Backend[B] {
	return &Backend[B]{backend: backend}
}

// Builder constructs a Backend via the anyfs.Layer convention. Unlike
// Quota, PathFilter, and RateLimit, ReadOnly has no configuration, so
// its builder is unconditionally constructible.
type Builder[B anyfs.Fs] struct{}

// NewBuilder returns a ReadOnly layer builder.
func NewBuilder[B anyfs.Fs]() Builder[B] { return Builder[B]{} }

// Layer implements anyfs.Layer.
func (Builder[B]) Layer(backend B) (*Backend[B], error) {
	return New(backend), nil
}

func readOnlyErr(op, path string) error {
	return anyfs.NewError(op, path, anyfs.KindReadOnly, nil)
}

// --- Read (pass-through) ---

func (b *Backend[B]) Read(ctx context.Context, path anyfs.Path) ([]byte, error) {
	return b.backend.Read(ctx, path)
}

func (b *Backend[B]) ReadToString(ctx context.Context, path anyfs.Path) (string, error) {
	return b.backend.ReadToString(ctx, path)
}

func (b *Backend[B]) ReadRange(ctx context.Context, path anyfs.Path, offset, length uint64) ([]byte, error) {
	return b.backend.ReadRange(ctx, path, offset, length)
}

func (b *Backend[B]) Exists(ctx context.Context, path anyfs.Path) (bool, error) {
	return b.backend.Exists(ctx, path)
}

func (b *Backend[B]) Metadata(ctx context.Context, path anyfs.Path) (anyfs.Metadata, error) {
	return b.backend.Metadata(ctx, path)
}

func (b *Backend[B]) OpenRead(ctx context.Context, path anyfs.Path) (anyfs.ReadStream, error) {
	return b.backend.OpenRead(ctx, path)
}

// --- Write (rejected) ---

func (b *Backend[B]) Write(ctx context.Context, path anyfs.Path, data []byte) error {
	return readOnlyErr("write", path.String())
}

func (b *Backend[B]) Append(ctx context.Context, path anyfs.Path, data []byte) error {
	return readOnlyErr("append", path.String())
}

func (b *Backend[B]) RemoveFile(ctx context.Context, path anyfs.Path) error {
	return readOnlyErr("remove_file", path.String())
}

func (b *Backend[B]) Rename(ctx context.Context, from, to anyfs.Path) error {
	return anyfs.NewErrorPaths("rename", []string{from.String(), to.String()}, anyfs.KindReadOnly, nil)
}

func (b *Backend[B]) Copy(ctx context.Context, from, to anyfs.Path) error {
	return anyfs.NewErrorPaths("copy", []string{from.String(), to.String()}, anyfs.KindReadOnly, nil)
}

func (b *Backend[B]) Truncate(ctx context.Context, path anyfs.Path, size uint64) error {
	return readOnlyErr("truncate", path.String())
}

func (b *Backend[B]) OpenWrite(ctx context.Context, path anyfs.Path) (anyfs.WriteStream, error) {
	return nil, readOnlyErr("open_write", path.String())
}

// --- Directory ---

func (b *Backend[B]) ReadDir(ctx context.Context, path anyfs.Path) ([]anyfs.DirEntry, error) {
	return b.backend.ReadDir(ctx, path)
}

func (b *Backend[B]) CreateDir(ctx context.Context, path anyfs.Path) error {
	return readOnlyErr("create_dir", path.String())
}

func (b *Backend[B]) CreateDirAll(ctx context.Context, path anyfs.Path) error {
	return readOnlyErr("create_dir_all", path.String())
}

func (b *Backend[B]) RemoveDir(ctx context.Context, path anyfs.Path) error {
	return readOnlyErr("remove_dir", path.String())
}

func (b *Backend[B]) RemoveDirAll(ctx context.Context, path anyfs.Path) error {
	return readOnlyErr("remove_dir_all", path.String())
}

// --- Link (read side pass-through, write side rejected) ---

func (b *Backend[B]) Symlink(ctx context.Context, original string, link anyfs.Path) error {
	return readOnlyErr("symlink", link.String())
}

func (b *Backend[B]) HardLink(ctx context.Context, original, link anyfs.Path) error {
	return anyfs.NewErrorPaths("hard_link", []string{original.String(), link.String()}, anyfs.KindReadOnly, nil)
}

func (b *Backend[B]) ReadLink(ctx context.Context, path anyfs.Path) (string, error) {
	l, ok := anyfs.Supports[anyfs.Link](b.backend)
	if !ok {
		return "", anyfs.NewError("read_link", path.String(), anyfs.KindNotSupported, nil)
	}
	return l.ReadLink(ctx, path)
}

func (b *Backend[B]) SymlinkMetadata(ctx context.Context, path anyfs.Path) (anyfs.Metadata, error) {
	l, ok := anyfs.Supports[anyfs.Link](b.backend)
	if !ok {
		return anyfs.Metadata{}, anyfs.NewError("symlink_metadata", path.String(), anyfs.KindNotSupported, nil)
	}
	return l.SymlinkMetadata(ctx, path)
}

// --- Permissions (rejected), Sync (pass-through), Stats (pass-through) ---

func (b *Backend[B]) SetPermissions(ctx context.Context, path anyfs.Path, mode uint32) error {
	return readOnlyErr("set_permissions", path.String())
}

func (b *Backend[B]) Sync(ctx context.Context) error {
	s, ok := anyfs.Supports[anyfs.Sync](b.backend)
	if !ok {
		return anyfs.NewError("sync", "", anyfs.KindNotSupported, nil)
	}
	return s.Sync(ctx)
}

func (b *Backend[B]) Fsync(ctx context.Context, path anyfs.Path) error {
	s, ok := anyfs.Supports[anyfs.Sync](b.backend)
	if !ok {
		return anyfs.NewError("fsync", path.String(), anyfs.KindNotSupported, nil)
	}
	return s.Fsync(ctx, path)
}

func (b *Backend[B]) Statfs(ctx context.Context) (anyfs.Statfs, error) {
	s, ok := anyfs.Supports[anyfs.Stats](b.backend)
	if !ok {
		return anyfs.Statfs{}, anyfs.NewError("statfs", "", anyfs.KindNotSupported, nil)
	}
	return s.Statfs(ctx)
}

// --- InodeOps (pass-through) ---

func (b *Backend[B]) PathToInode(ctx context.Context, path anyfs.Path) (anyfs.Inode, error) {
	i, ok := anyfs.Supports[anyfs.InodeOps](b.backend)
	if !ok {
		return 0, anyfs.NewError("path_to_inode", path.String(), anyfs.KindNotSupported, nil)
	}
	return i.PathToInode(ctx, path)
}

func (b *Backend[B]) InodeToPath(ctx context.Context, inode anyfs.Inode) (anyfs.Path, error) {
	i, ok := anyfs.Supports[anyfs.InodeOps](b.backend)
	if !ok {
		return "", anyfs.NewError("inode_to_path", "", anyfs.KindNotSupported, nil)
	}
	return i.InodeToPath(ctx, inode)
}

func (b *Backend[B]) Lookup(ctx context.Context, parent anyfs.Inode, name string) (anyfs.Inode, error) {
	i, ok := anyfs.Supports[anyfs.InodeOps](b.backend)
	if !ok {
		return 0, anyfs.NewError("lookup", name, anyfs.KindNotSupported, nil)
	}
	return i.Lookup(ctx, parent, name)
}

func (b *Backend[B]) MetadataByInode(ctx context.Context, inode anyfs.Inode) (anyfs.Metadata, error) {
	i, ok := anyfs.Supports[anyfs.InodeOps](b.backend)
	if !ok {
		return anyfs.Metadata{}, anyfs.NewError("metadata_by_inode", "", anyfs.KindNotSupported, nil)
	}
	return i.MetadataByInode(ctx, inode)
}

// --- Xattr (read side pass-through, write side rejected) ---

func (b *Backend[B]) GetXattr(ctx context.Context, path anyfs.Path, name string) ([]byte, error) {
	x, ok := anyfs.Supports[anyfs.Xattr](b.backend)
	if !ok {
		return nil, anyfs.NewError("get_xattr", path.String(), anyfs.KindNotSupported, nil)
	}
	return x.GetXattr(ctx, path, name)
}

func (b *Backend[B]) SetXattr(ctx context.Context, path anyfs.Path, name string, value []byte) error {
	return readOnlyErr("set_xattr", path.String())
}

func (b *Backend[B]) RemoveXattr(ctx context.Context, path anyfs.Path, name string) error {
	return readOnlyErr("remove_xattr", path.String())
}

func (b *Backend[B]) ListXattr(ctx context.Context, path anyfs.Path) ([]string, error) {
	x, ok := anyfs.Supports[anyfs.Xattr](b.backend)
	if !ok {
		return nil, anyfs.NewError("list_xattr", path.String(), anyfs.KindNotSupported, nil)
	}
	return x.ListXattr(ctx, path)
}

// --- Handles (raw positional I/O follows Write's read/write split) ---

func (b *Backend[B]) Open(ctx context.Context, path anyfs.Path, flags anyfs.OpenFlags) (anyfs.Handle, error) {
	h, ok := anyfs.Supports[anyfs.Handles](b.backend)
	if !ok {
		return 0, anyfs.NewError("open", path.String(), anyfs.KindNotSupported, nil)
	}
	if flags&(anyfs.OpenWrite|anyfs.OpenCreate|anyfs.OpenTruncate|anyfs.OpenAppend) != 0 {
		return 0, readOnlyErr("open", path.String())
	}
	return h.Open(ctx, path, flags)
}

func (b *Backend[B]) ReadAt(ctx context.Context, h anyfs.Handle, buf []byte, off uint64) (int, error) {
	hs, ok := anyfs.Supports[anyfs.Handles](b.backend)
	if !ok {
		return 0, anyfs.NewError("read_at", "", anyfs.KindNotSupported, nil)
	}
	return hs.ReadAt(ctx, h, buf, off)
}

func (b *Backend[B]) WriteAt(ctx context.Context, h anyfs.Handle, data []byte, off uint64) (int, error) {
	return 0, anyfs.NewError("write_at", "", anyfs.KindReadOnly, nil)
}

func (b *Backend[B]) CloseHandle(ctx context.Context, h anyfs.Handle) error {
	hs, ok := anyfs.Supports[anyfs.Handles](b.backend)
	if !ok {
		return anyfs.NewError("close_handle", "", anyfs.KindNotSupported, nil)
	}
	return hs.CloseHandle(ctx, h)
}

// --- Lock (advisory, harmless under read-only, passed through) ---

func (b *Backend[B]) Lock(ctx context.Context, h anyfs.Handle) error {
	l, ok := anyfs.Supports[anyfs.Lock](b.backend)
	if !ok {
		return anyfs.NewError("lock", "", anyfs.KindNotSupported, nil)
	}
	return l.Lock(ctx, h)
}

func (b *Backend[B]) TryLock(ctx context.Context, h anyfs.Handle) (bool, error) {
	l, ok := anyfs.Supports[anyfs.Lock](b.backend)
	if !ok {
		return false, anyfs.NewError("try_lock", "", anyfs.KindNotSupported, nil)
	}
	return l.TryLock(ctx, h)
}

func (b *Backend[B]) Unlock(ctx context.Context, h anyfs.Handle) error {
	l, ok := anyfs.Supports[anyfs.Lock](b.backend)
	if !ok {
		return anyfs.NewError("unlock", "", anyfs.KindNotSupported, nil)
	}
	return l.Unlock(ctx, h)
}

var _ anyfs.FsPosix = (*Backend[anyfs.FsPosix])(nil)
var _ anyfs.Layer[anyfs.Fs, *Backend[anyfs.Fs]] = Builder[anyfs.Fs]{}
