// Package dryrun provides a Layer that lets reads through unmodified
// while recording writes instead of performing them. Grounded on
// rclone's --dry-run flag behavior (operations package logs what would
// happen instead of calling through to the remote) and on the wrapping
// shape of backend/crypt.
package dryrun

import (
	"context"
	"sync"

	"github.com/dk26/anyfs"
)

// Operation is one recorded write that dry-run intercepted instead of
// performing.
type Operation struct {
	Kind  string
	Paths []string
	Bytes int
}

// Backend wraps B. Every write-capability call is recorded and returns
// success without touching the underlying backend; reads pass through.
type Backend[B anyfs.Fs] struct {
	backend B

	mu  sync.Mutex
	ops []Operation
}

// New wraps backend in dry-run recording mode.
func New[B anyfs.Fs](backend B) *Backend[B] {
	return &Backend[B]{backend: backend}
}

// Builder constructs a Backend via the anyfs.Layer convention. DryRun
// has no configuration, so its builder is unconditionally constructible.
type Builder[B anyfs.Fs] struct{}

// NewBuilder returns a DryRun layer builder.
func NewBuilder[B anyfs.Fs]() Builder[B] { return Builder[B]{} }

// Layer implements anyfs.Layer.
func (Builder[B]) Layer(backend B) (*Backend[B], error) { return New(backend), nil }

// Operations returns the writes recorded so far, in call order.
func (b *Backend[B]) Operations() []Operation {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Operation, len(b.ops))
	copy(out, b.ops)
	return out
}

func (b *Backend[B]) record(op Operation) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ops = append(b.ops, op)
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

// --- Write (recorded, never reaches backend) ---

func (b *Backend[B]) Write(ctx context.Context, path anyfs.Path, data []byte) error {
	b.record(Operation{Kind: "write", Paths: []string{path.String()}, Bytes: len(data)})
	return nil
}

func (b *Backend[B]) Append(ctx context.Context, path anyfs.Path, data []byte) error {
	b.record(Operation{Kind: "append", Paths: []string{path.String()}, Bytes: len(data)})
	return nil
}

func (b *Backend[B]) RemoveFile(ctx context.Context, path anyfs.Path) error {
	b.record(Operation{Kind: "remove_file", Paths: []string{path.String()}})
	return nil
}

func (b *Backend[B]) Rename(ctx context.Context, from, to anyfs.Path) error {
	b.record(Operation{Kind: "rename", Paths: []string{from.String(), to.String()}})
	return nil
}

func (b *Backend[B]) Copy(ctx context.Context, from, to anyfs.Path) error {
	var size int
	if m, err := b.backend.Metadata(ctx, from); err == nil {
		size = int(m.Size)
	}
	b.record(Operation{Kind: "copy", Paths: []string{from.String(), to.String()}, Bytes: size})
	return nil
}

func (b *Backend[B]) Truncate(ctx context.Context, path anyfs.Path, size uint64) error {
	b.record(Operation{Kind: "truncate", Paths: []string{path.String()}, Bytes: int(size)})
	return nil
}

// dryRunWriteStream discards everything written to it, counting bytes
// so the final record reflects what would have been written.
type dryRunWriteStream struct {
	record func(Operation)
	path   string
	n      int
}

func (w *dryRunWriteStream) Write(p []byte) (int, error) {
	w.n += len(p)
	return len(p), nil
}

func (w *dryRunWriteStream) Close() error {
	w.record(Operation{Kind: "open_write", Paths: []string{w.path}, Bytes: w.n})
	return nil
}

func (b *Backend[B]) OpenWrite(ctx context.Context, path anyfs.Path) (anyfs.WriteStream, error) {
	return &dryRunWriteStream{record: b.record, path: path.String()}, nil
}

// --- Directory (recorded) ---

func (b *Backend[B]) ReadDir(ctx context.Context, path anyfs.Path) ([]anyfs.DirEntry, error) {
	return b.backend.ReadDir(ctx, path)
}

func (b *Backend[B]) CreateDir(ctx context.Context, path anyfs.Path) error {
	b.record(Operation{Kind: "create_dir", Paths: []string{path.String()}})
	return nil
}

func (b *Backend[B]) CreateDirAll(ctx context.Context, path anyfs.Path) error {
	b.record(Operation{Kind: "create_dir_all", Paths: []string{path.String()}})
	return nil
}

func (b *Backend[B]) RemoveDir(ctx context.Context, path anyfs.Path) error {
	b.record(Operation{Kind: "remove_dir", Paths: []string{path.String()}})
	return nil
}

func (b *Backend[B]) RemoveDirAll(ctx context.Context, path anyfs.Path) error {
	b.record(Operation{Kind: "remove_dir_all", Paths: []string{path.String()}})
	return nil
}

// --- Link ---

func (b *Backend[B]) Symlink(ctx context.Context, original string, link anyfs.Path) error {
	if _, ok := anyfs.Supports[anyfs.Link](b.backend); !ok {
		return anyfs.NewError("symlink", link.String(), anyfs.KindNotSupported, nil)
	}
	b.record(Operation{Kind: "symlink", Paths: []string{original, link.String()}, Bytes: len(original)})
	return nil
}

func (b *Backend[B]) HardLink(ctx context.Context, original, link anyfs.Path) error {
	if _, ok := anyfs.Supports[anyfs.Link](b.backend); !ok {
		return anyfs.NewError("hard_link", link.String(), anyfs.KindNotSupported, nil)
	}
	b.record(Operation{Kind: "hard_link", Paths: []string{original.String(), link.String()}})
	return nil
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

// --- Permissions (recorded) / Sync (pass-through) / Stats (pass-through) ---

func (b *Backend[B]) SetPermissions(ctx context.Context, path anyfs.Path, mode uint32) error {
	if _, ok := anyfs.Supports[anyfs.Permissions](b.backend); !ok {
		return anyfs.NewError("set_permissions", path.String(), anyfs.KindNotSupported, nil)
	}
	b.record(Operation{Kind: "set_permissions", Paths: []string{path.String()}})
	return nil
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

// --- Xattr ---

func (b *Backend[B]) GetXattr(ctx context.Context, path anyfs.Path, name string) ([]byte, error) {
	x, ok := anyfs.Supports[anyfs.Xattr](b.backend)
	if !ok {
		return nil, anyfs.NewError("get_xattr", path.String(), anyfs.KindNotSupported, nil)
	}
	return x.GetXattr(ctx, path, name)
}

func (b *Backend[B]) SetXattr(ctx context.Context, path anyfs.Path, name string, value []byte) error {
	if _, ok := anyfs.Supports[anyfs.Xattr](b.backend); !ok {
		return anyfs.NewError("set_xattr", path.String(), anyfs.KindNotSupported, nil)
	}
	b.record(Operation{Kind: "set_xattr", Paths: []string{path.String()}, Bytes: len(value)})
	return nil
}

func (b *Backend[B]) RemoveXattr(ctx context.Context, path anyfs.Path, name string) error {
	if _, ok := anyfs.Supports[anyfs.Xattr](b.backend); !ok {
		return anyfs.NewError("remove_xattr", path.String(), anyfs.KindNotSupported, nil)
	}
	b.record(Operation{Kind: "remove_xattr", Paths: []string{path.String()}})
	return nil
}

func (b *Backend[B]) ListXattr(ctx context.Context, path anyfs.Path) ([]string, error) {
	x, ok := anyfs.Supports[anyfs.Xattr](b.backend)
	if !ok {
		return nil, anyfs.NewError("list_xattr", path.String(), anyfs.KindNotSupported, nil)
	}
	return x.ListXattr(ctx, path)
}

// --- Handles / Lock (pass-through; raw positional writes are recorded) ---

func (b *Backend[B]) Open(ctx context.Context, path anyfs.Path, flags anyfs.OpenFlags) (anyfs.Handle, error) {
	h, ok := anyfs.Supports[anyfs.Handles](b.backend)
	if !ok {
		return 0, anyfs.NewError("open", path.String(), anyfs.KindNotSupported, nil)
	}
	if flags&(anyfs.OpenWrite|anyfs.OpenCreate|anyfs.OpenTruncate|anyfs.OpenAppend) != 0 {
		b.record(Operation{Kind: "open", Paths: []string{path.String()}})
		return 0, nil
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
	b.record(Operation{Kind: "write_at", Bytes: len(data)})
	return len(data), nil
}

func (b *Backend[B]) CloseHandle(ctx context.Context, h anyfs.Handle) error {
	hs, ok := anyfs.Supports[anyfs.Handles](b.backend)
	if !ok {
		return nil
	}
	return hs.CloseHandle(ctx, h)
}

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
