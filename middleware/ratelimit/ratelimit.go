// Package ratelimit provides a Layer that throttles operation
// frequency using golang.org/x/time/rate's token bucket, grounded on
// rclone's direct dependency on that module. §4.5.4 describes a fixed
// window counter; a token bucket is the equivalent, non-blocking
// implementation the ecosystem actually reaches for (rate.Limiter.Allow
// never blocks), and its burst parameter maps directly onto the
// contract's optional burst setting. Every path- or inode-addressed
// operation call counts, including stream-opening and Open, excluding
// the bytes transferred through an already-open stream. ReadAt,
// WriteAt, CloseHandle, Lock, TryLock and Unlock pass through without
// drawing a token.
package ratelimit

import (
	"context"
	"time"

	"github.com/dk26/anyfs"
	"golang.org/x/time/rate"
)

// Backend wraps B, failing fast with KindRateLimitExceeded once the
// configured operation rate is exceeded.
type Backend[B anyfs.Fs] struct {
	backend B
	limiter *rate.Limiter
}

func (b *Backend[B]) allow(op, path string) error {
	if !b.limiter.Allow() {
		return anyfs.NewError(op, path, anyfs.KindRateLimitExceeded, nil)
	}
	return nil
}

// Builder0 is the unconfigured, unbuildable state.
type Builder0[B anyfs.Fs] struct{}

// NewBuilder starts an unconfigured RateLimit layer. MaxOps must be set
// before Window becomes available, and Window before Layer becomes
// available, enforcing both required settings at compile time.
func NewBuilder[B anyfs.Fs]() Builder0[B] { return Builder0[B]{} }

// MaxOps sets the operation budget per window.
func (Builder0[B]) MaxOps(n int) Builder1[B] { return Builder1[B]{maxOps: n} }

// Builder1 has MaxOps set; Window is still required.
type Builder1[B anyfs.Fs] struct {
	maxOps int
}

// Window sets the interval over which MaxOps applies and unlocks Layer.
func (bld Builder1[B]) Window(d time.Duration) Builder2[B] {
	return Builder2[B]{maxOps: bld.maxOps, window: d, burst: bld.maxOps}
}

// Builder2 has both required settings and provides Layer.
type Builder2[B anyfs.Fs] struct {
	maxOps int
	window time.Duration
	burst  int
}

// Burst overrides the token bucket's burst size; defaults to MaxOps.
func (bld Builder2[B]) Burst(n int) Builder2[B] {
	bld.burst = n
	return bld
}

// Layer implements anyfs.Layer.
func (bld Builder2[B]) Layer(backend B) (*Backend[B], error) {
	perSecond := float64(bld.maxOps) / bld.window.Seconds()
	return &Backend[B]{
		backend: backend,
		limiter: rate.NewLimiter(rate.Limit(perSecond), bld.burst),
	}, nil
}

// --- Read ---

func (b *Backend[B]) Read(ctx context.Context, path anyfs.Path) ([]byte, error) {
	if err := b.allow("read", path.String()); err != nil {
		return nil, err
	}
	return b.backend.Read(ctx, path)
}

func (b *Backend[B]) ReadToString(ctx context.Context, path anyfs.Path) (string, error) {
	if err := b.allow("read_to_string", path.String()); err != nil {
		return "", err
	}
	return b.backend.ReadToString(ctx, path)
}

func (b *Backend[B]) ReadRange(ctx context.Context, path anyfs.Path, offset, length uint64) ([]byte, error) {
	if err := b.allow("read_range", path.String()); err != nil {
		return nil, err
	}
	return b.backend.ReadRange(ctx, path, offset, length)
}

func (b *Backend[B]) Exists(ctx context.Context, path anyfs.Path) (bool, error) {
	if err := b.allow("exists", path.String()); err != nil {
		return false, err
	}
	return b.backend.Exists(ctx, path)
}

func (b *Backend[B]) Metadata(ctx context.Context, path anyfs.Path) (anyfs.Metadata, error) {
	if err := b.allow("metadata", path.String()); err != nil {
		return anyfs.Metadata{}, err
	}
	return b.backend.Metadata(ctx, path)
}

func (b *Backend[B]) OpenRead(ctx context.Context, path anyfs.Path) (anyfs.ReadStream, error) {
	if err := b.allow("open_read", path.String()); err != nil {
		return nil, err
	}
	return b.backend.OpenRead(ctx, path)
}

// --- Write ---

func (b *Backend[B]) Write(ctx context.Context, path anyfs.Path, data []byte) error {
	if err := b.allow("write", path.String()); err != nil {
		return err
	}
	return b.backend.Write(ctx, path, data)
}

func (b *Backend[B]) Append(ctx context.Context, path anyfs.Path, data []byte) error {
	if err := b.allow("append", path.String()); err != nil {
		return err
	}
	return b.backend.Append(ctx, path, data)
}

func (b *Backend[B]) RemoveFile(ctx context.Context, path anyfs.Path) error {
	if err := b.allow("remove_file", path.String()); err != nil {
		return err
	}
	return b.backend.RemoveFile(ctx, path)
}

func (b *Backend[B]) Rename(ctx context.Context, from, to anyfs.Path) error {
	if err := b.allow("rename", from.String()); err != nil {
		return err
	}
	return b.backend.Rename(ctx, from, to)
}

func (b *Backend[B]) Copy(ctx context.Context, from, to anyfs.Path) error {
	if err := b.allow("copy", from.String()); err != nil {
		return err
	}
	return b.backend.Copy(ctx, from, to)
}

func (b *Backend[B]) Truncate(ctx context.Context, path anyfs.Path, size uint64) error {
	if err := b.allow("truncate", path.String()); err != nil {
		return err
	}
	return b.backend.Truncate(ctx, path, size)
}

func (b *Backend[B]) OpenWrite(ctx context.Context, path anyfs.Path) (anyfs.WriteStream, error) {
	if err := b.allow("open_write", path.String()); err != nil {
		return nil, err
	}
	return b.backend.OpenWrite(ctx, path)
}

// --- Directory ---

func (b *Backend[B]) ReadDir(ctx context.Context, path anyfs.Path) ([]anyfs.DirEntry, error) {
	if err := b.allow("read_dir", path.String()); err != nil {
		return nil, err
	}
	return b.backend.ReadDir(ctx, path)
}

func (b *Backend[B]) CreateDir(ctx context.Context, path anyfs.Path) error {
	if err := b.allow("create_dir", path.String()); err != nil {
		return err
	}
	return b.backend.CreateDir(ctx, path)
}

func (b *Backend[B]) CreateDirAll(ctx context.Context, path anyfs.Path) error {
	if err := b.allow("create_dir_all", path.String()); err != nil {
		return err
	}
	return b.backend.CreateDirAll(ctx, path)
}

func (b *Backend[B]) RemoveDir(ctx context.Context, path anyfs.Path) error {
	if err := b.allow("remove_dir", path.String()); err != nil {
		return err
	}
	return b.backend.RemoveDir(ctx, path)
}

func (b *Backend[B]) RemoveDirAll(ctx context.Context, path anyfs.Path) error {
	if err := b.allow("remove_dir_all", path.String()); err != nil {
		return err
	}
	return b.backend.RemoveDirAll(ctx, path)
}

// --- Link ---

func (b *Backend[B]) Symlink(ctx context.Context, original string, link anyfs.Path) error {
	l, ok := anyfs.Supports[anyfs.Link](b.backend)
	if !ok {
		return anyfs.NewError("symlink", link.String(), anyfs.KindNotSupported, nil)
	}
	if err := b.allow("symlink", link.String()); err != nil {
		return err
	}
	return l.Symlink(ctx, original, link)
}

func (b *Backend[B]) HardLink(ctx context.Context, original, link anyfs.Path) error {
	l, ok := anyfs.Supports[anyfs.Link](b.backend)
	if !ok {
		return anyfs.NewError("hard_link", link.String(), anyfs.KindNotSupported, nil)
	}
	if err := b.allow("hard_link", link.String()); err != nil {
		return err
	}
	return l.HardLink(ctx, original, link)
}

func (b *Backend[B]) ReadLink(ctx context.Context, path anyfs.Path) (string, error) {
	l, ok := anyfs.Supports[anyfs.Link](b.backend)
	if !ok {
		return "", anyfs.NewError("read_link", path.String(), anyfs.KindNotSupported, nil)
	}
	if err := b.allow("read_link", path.String()); err != nil {
		return "", err
	}
	return l.ReadLink(ctx, path)
}

func (b *Backend[B]) SymlinkMetadata(ctx context.Context, path anyfs.Path) (anyfs.Metadata, error) {
	l, ok := anyfs.Supports[anyfs.Link](b.backend)
	if !ok {
		return anyfs.Metadata{}, anyfs.NewError("symlink_metadata", path.String(), anyfs.KindNotSupported, nil)
	}
	if err := b.allow("symlink_metadata", path.String()); err != nil {
		return anyfs.Metadata{}, err
	}
	return l.SymlinkMetadata(ctx, path)
}

// --- Permissions / Sync / Stats ---

func (b *Backend[B]) SetPermissions(ctx context.Context, path anyfs.Path, mode uint32) error {
	p, ok := anyfs.Supports[anyfs.Permissions](b.backend)
	if !ok {
		return anyfs.NewError("set_permissions", path.String(), anyfs.KindNotSupported, nil)
	}
	if err := b.allow("set_permissions", path.String()); err != nil {
		return err
	}
	return p.SetPermissions(ctx, path, mode)
}

func (b *Backend[B]) Sync(ctx context.Context) error {
	s, ok := anyfs.Supports[anyfs.Sync](b.backend)
	if !ok {
		return anyfs.NewError("sync", "", anyfs.KindNotSupported, nil)
	}
	if err := b.allow("sync", ""); err != nil {
		return err
	}
	return s.Sync(ctx)
}

func (b *Backend[B]) Fsync(ctx context.Context, path anyfs.Path) error {
	s, ok := anyfs.Supports[anyfs.Sync](b.backend)
	if !ok {
		return anyfs.NewError("fsync", path.String(), anyfs.KindNotSupported, nil)
	}
	if err := b.allow("fsync", path.String()); err != nil {
		return err
	}
	return s.Fsync(ctx, path)
}

func (b *Backend[B]) Statfs(ctx context.Context) (anyfs.Statfs, error) {
	s, ok := anyfs.Supports[anyfs.Stats](b.backend)
	if !ok {
		return anyfs.Statfs{}, anyfs.NewError("statfs", "", anyfs.KindNotSupported, nil)
	}
	if err := b.allow("statfs", ""); err != nil {
		return anyfs.Statfs{}, err
	}
	return s.Statfs(ctx)
}

// --- InodeOps ---

func (b *Backend[B]) PathToInode(ctx context.Context, path anyfs.Path) (anyfs.Inode, error) {
	i, ok := anyfs.Supports[anyfs.InodeOps](b.backend)
	if !ok {
		return 0, anyfs.NewError("path_to_inode", path.String(), anyfs.KindNotSupported, nil)
	}
	if err := b.allow("path_to_inode", path.String()); err != nil {
		return 0, err
	}
	return i.PathToInode(ctx, path)
}

func (b *Backend[B]) InodeToPath(ctx context.Context, inode anyfs.Inode) (anyfs.Path, error) {
	i, ok := anyfs.Supports[anyfs.InodeOps](b.backend)
	if !ok {
		return "", anyfs.NewError("inode_to_path", "", anyfs.KindNotSupported, nil)
	}
	if err := b.allow("inode_to_path", ""); err != nil {
		return "", err
	}
	return i.InodeToPath(ctx, inode)
}

func (b *Backend[B]) Lookup(ctx context.Context, parent anyfs.Inode, name string) (anyfs.Inode, error) {
	i, ok := anyfs.Supports[anyfs.InodeOps](b.backend)
	if !ok {
		return 0, anyfs.NewError("lookup", name, anyfs.KindNotSupported, nil)
	}
	if err := b.allow("lookup", name); err != nil {
		return 0, err
	}
	return i.Lookup(ctx, parent, name)
}

func (b *Backend[B]) MetadataByInode(ctx context.Context, inode anyfs.Inode) (anyfs.Metadata, error) {
	i, ok := anyfs.Supports[anyfs.InodeOps](b.backend)
	if !ok {
		return anyfs.Metadata{}, anyfs.NewError("metadata_by_inode", "", anyfs.KindNotSupported, nil)
	}
	if err := b.allow("metadata_by_inode", ""); err != nil {
		return anyfs.Metadata{}, err
	}
	return i.MetadataByInode(ctx, inode)
}

// --- Xattr ---

func (b *Backend[B]) GetXattr(ctx context.Context, path anyfs.Path, name string) ([]byte, error) {
	x, ok := anyfs.Supports[anyfs.Xattr](b.backend)
	if !ok {
		return nil, anyfs.NewError("get_xattr", path.String(), anyfs.KindNotSupported, nil)
	}
	if err := b.allow("get_xattr", path.String()); err != nil {
		return nil, err
	}
	return x.GetXattr(ctx, path, name)
}

func (b *Backend[B]) SetXattr(ctx context.Context, path anyfs.Path, name string, value []byte) error {
	x, ok := anyfs.Supports[anyfs.Xattr](b.backend)
	if !ok {
		return anyfs.NewError("set_xattr", path.String(), anyfs.KindNotSupported, nil)
	}
	if err := b.allow("set_xattr", path.String()); err != nil {
		return err
	}
	return x.SetXattr(ctx, path, name, value)
}

func (b *Backend[B]) RemoveXattr(ctx context.Context, path anyfs.Path, name string) error {
	x, ok := anyfs.Supports[anyfs.Xattr](b.backend)
	if !ok {
		return anyfs.NewError("remove_xattr", path.String(), anyfs.KindNotSupported, nil)
	}
	if err := b.allow("remove_xattr", path.String()); err != nil {
		return err
	}
	return x.RemoveXattr(ctx, path, name)
}

func (b *Backend[B]) ListXattr(ctx context.Context, path anyfs.Path) ([]string, error) {
	x, ok := anyfs.Supports[anyfs.Xattr](b.backend)
	if !ok {
		return nil, anyfs.NewError("list_xattr", path.String(), anyfs.KindNotSupported, nil)
	}
	if err := b.allow("list_xattr", path.String()); err != nil {
		return nil, err
	}
	return x.ListXattr(ctx, path)
}

// --- Handles / Lock ---

func (b *Backend[B]) Open(ctx context.Context, path anyfs.Path, flags anyfs.OpenFlags) (anyfs.Handle, error) {
	h, ok := anyfs.Supports[anyfs.Handles](b.backend)
	if !ok {
		return 0, anyfs.NewError("open", path.String(), anyfs.KindNotSupported, nil)
	}
	if err := b.allow("open", path.String()); err != nil {
		return 0, err
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
	hs, ok := anyfs.Supports[anyfs.Handles](b.backend)
	if !ok {
		return 0, anyfs.NewError("write_at", "", anyfs.KindNotSupported, nil)
	}
	return hs.WriteAt(ctx, h, data, off)
}

func (b *Backend[B]) CloseHandle(ctx context.Context, h anyfs.Handle) error {
	hs, ok := anyfs.Supports[anyfs.Handles](b.backend)
	if !ok {
		return anyfs.NewError("close_handle", "", anyfs.KindNotSupported, nil)
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
var _ anyfs.Layer[anyfs.Fs, *Backend[anyfs.Fs]] = Builder2[anyfs.Fs]{}
