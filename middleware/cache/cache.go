// Package cache provides a Layer that caches whole-read results
// (read, read_to_string, read_range, metadata, exists) with LRU
// eviction and an optional TTL, grounded on rclone's backend/cache
// package — specifically the LRU+TTL shape hashicorp/golang-lru/v2's
// expirable.LRU gives for free, which is the same "bound the working
// set, age entries out" contract backend/cache's storage layer
// provides for chunked remote reads. open_read streams are never
// cached (§4.5.6): a stream is a handle into backend state, not a
// value that can be memoized.
package cache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/dk26/anyfs"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// entry holds whatever has been cached so far for a single path. A
// path may have some fields populated and others not: a Metadata call
// populates meta without touching data, and vice versa.
type entry struct {
	data     []byte
	dataOK   bool
	str      string
	strOK    bool
	meta     anyfs.Metadata
	metaOK   bool
	exists   bool
	existsOK bool
}

// Backend wraps B, caching the bulk-read surface and invalidating on
// any write to the affected path.
type Backend[B anyfs.Fs] struct {
	backend       B
	maxEntrySize  uint64
	whole         *lru.LRU[string, *entry]
	ranges        *lru.LRU[string, []byte]
	mu            sync.Mutex
	rangeKeysByPath map[string]map[string]struct{}
}

func rangeKey(path anyfs.Path, offset, length uint64) string {
	return path.String() + "#" + strconv.FormatUint(offset, 10) + "#" + strconv.FormatUint(length, 10)
}

func (b *Backend[B]) trackRangeKey(path anyfs.Path, key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.rangeKeysByPath[path.String()]
	if !ok {
		set = make(map[string]struct{})
		b.rangeKeysByPath[path.String()] = set
	}
	set[key] = struct{}{}
}

// invalidate drops every cached form (whole-read, range) for path.
// Called on every write-capability operation that targets path.
func (b *Backend[B]) invalidate(path anyfs.Path) {
	b.whole.Remove(path.String())
	b.mu.Lock()
	keys := b.rangeKeysByPath[path.String()]
	delete(b.rangeKeysByPath, path.String())
	b.mu.Unlock()
	for k := range keys {
		b.ranges.Remove(k)
	}
}

func (b *Backend[B]) getEntry(path anyfs.Path) *entry {
	e, ok := b.whole.Get(path.String())
	if !ok {
		return &entry{}
	}
	return e
}

func (b *Backend[B]) putEntry(path anyfs.Path, mutate func(*entry)) {
	e := b.getEntry(path)
	mutate(e)
	b.whole.Add(path.String(), e)
}

// --- Builder (typestate: MaxEntries and/or MaxEntrySize required) ---

// Builder0 is the unconfigured, unbuildable state.
type Builder0[B anyfs.Fs] struct{}

// NewBuilder starts an unconfigured Cache layer.
func NewBuilder[B anyfs.Fs]() Builder0[B] { return Builder0[B]{} }

// MaxEntries bounds the number of cached paths and unlocks Layer.
func (Builder0[B]) MaxEntries(n int) Builder1[B] {
	return Builder1[B]{maxEntries: n}
}

// MaxEntrySize bounds the payload size eligible for caching (bytes
// larger than this are read through uncached) and unlocks Layer.
func (Builder0[B]) MaxEntrySize(n uint64) Builder1[B] {
	return Builder1[B]{maxEntries: 1024, maxEntrySize: n}
}

// Builder1 has at least one meaningful setting and provides Layer.
type Builder1[B anyfs.Fs] struct {
	maxEntries   int
	maxEntrySize uint64
	ttl          time.Duration
}

// MaxEntries overrides the entry-count ceiling.
func (bld Builder1[B]) MaxEntries(n int) Builder1[B] {
	bld.maxEntries = n
	return bld
}

// MaxEntrySize sets the per-entry byte ceiling eligible for caching.
func (bld Builder1[B]) MaxEntrySize(n uint64) Builder1[B] {
	bld.maxEntrySize = n
	return bld
}

// TTL sets entry expiry; zero (the default) means entries never expire
// on their own and are only evicted by LRU pressure or invalidation.
func (bld Builder1[B]) TTL(d time.Duration) Builder1[B] {
	bld.ttl = d
	return bld
}

// Layer implements anyfs.Layer.
func (bld Builder1[B]) Layer(backend B) (*Backend[B], error) {
	maxEntries := bld.maxEntries
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	return &Backend[B]{
		backend:         backend,
		maxEntrySize:    bld.maxEntrySize,
		whole:           lru.NewLRU[string, *entry](maxEntries, nil, bld.ttl),
		ranges:          lru.NewLRU[string, []byte](maxEntries, nil, bld.ttl),
		rangeKeysByPath: make(map[string]map[string]struct{}),
	}, nil
}

func (b *Backend[B]) tooBigToCache(n int) bool {
	return b.maxEntrySize > 0 && uint64(n) > b.maxEntrySize
}

// --- Read (cached) ---

func (b *Backend[B]) Read(ctx context.Context, path anyfs.Path) ([]byte, error) {
	if e := b.getEntry(path); e.dataOK {
		out := make([]byte, len(e.data))
		copy(out, e.data)
		return out, nil
	}
	data, err := b.backend.Read(ctx, path)
	if err != nil {
		return nil, err
	}
	if !b.tooBigToCache(len(data)) {
		b.putEntry(path, func(e *entry) { e.data, e.dataOK = append([]byte(nil), data...), true })
	}
	return data, nil
}

func (b *Backend[B]) ReadToString(ctx context.Context, path anyfs.Path) (string, error) {
	if e := b.getEntry(path); e.strOK {
		return e.str, nil
	}
	s, err := b.backend.ReadToString(ctx, path)
	if err != nil {
		return "", err
	}
	if !b.tooBigToCache(len(s)) {
		b.putEntry(path, func(e *entry) { e.str, e.strOK = s, true })
	}
	return s, nil
}

func (b *Backend[B]) ReadRange(ctx context.Context, path anyfs.Path, offset, length uint64) ([]byte, error) {
	key := rangeKey(path, offset, length)
	if data, ok := b.ranges.Get(key); ok {
		out := make([]byte, len(data))
		copy(out, data)
		return out, nil
	}
	data, err := b.backend.ReadRange(ctx, path, offset, length)
	if err != nil {
		return nil, err
	}
	if !b.tooBigToCache(len(data)) {
		b.ranges.Add(key, append([]byte(nil), data...))
		b.trackRangeKey(path, key)
	}
	return data, nil
}

func (b *Backend[B]) Exists(ctx context.Context, path anyfs.Path) (bool, error) {
	if e := b.getEntry(path); e.existsOK {
		return e.exists, nil
	}
	ok, err := b.backend.Exists(ctx, path)
	if err != nil {
		return false, err
	}
	b.putEntry(path, func(e *entry) { e.exists, e.existsOK = ok, true })
	return ok, nil
}

func (b *Backend[B]) Metadata(ctx context.Context, path anyfs.Path) (anyfs.Metadata, error) {
	if e := b.getEntry(path); e.metaOK {
		return e.meta, nil
	}
	m, err := b.backend.Metadata(ctx, path)
	if err != nil {
		return anyfs.Metadata{}, err
	}
	b.putEntry(path, func(e *entry) { e.meta, e.metaOK = m, true })
	return m, nil
}

// OpenRead is never cached (§4.5.6): a stream is a live handle, not a
// memoizable value.
func (b *Backend[B]) OpenRead(ctx context.Context, path anyfs.Path) (anyfs.ReadStream, error) {
	return b.backend.OpenRead(ctx, path)
}

// --- Write (invalidating) ---

func (b *Backend[B]) Write(ctx context.Context, path anyfs.Path, data []byte) error {
	if err := b.backend.Write(ctx, path, data); err != nil {
		return err
	}
	b.invalidate(path)
	return nil
}

func (b *Backend[B]) Append(ctx context.Context, path anyfs.Path, data []byte) error {
	if err := b.backend.Append(ctx, path, data); err != nil {
		return err
	}
	b.invalidate(path)
	return nil
}

func (b *Backend[B]) RemoveFile(ctx context.Context, path anyfs.Path) error {
	if err := b.backend.RemoveFile(ctx, path); err != nil {
		return err
	}
	b.invalidate(path)
	return nil
}

func (b *Backend[B]) Rename(ctx context.Context, from, to anyfs.Path) error {
	if err := b.backend.Rename(ctx, from, to); err != nil {
		return err
	}
	b.invalidate(from)
	b.invalidate(to)
	return nil
}

func (b *Backend[B]) Copy(ctx context.Context, from, to anyfs.Path) error {
	if err := b.backend.Copy(ctx, from, to); err != nil {
		return err
	}
	b.invalidate(to)
	return nil
}

func (b *Backend[B]) Truncate(ctx context.Context, path anyfs.Path, size uint64) error {
	if err := b.backend.Truncate(ctx, path, size); err != nil {
		return err
	}
	b.invalidate(path)
	return nil
}

// cacheWriteStream invalidates path once the wrapped write completes.
type cacheWriteStream struct {
	inner anyfs.WriteStream
	owner interface{ invalidate(anyfs.Path) }
	path  anyfs.Path
}

func (w *cacheWriteStream) Write(p []byte) (int, error) { return w.inner.Write(p) }

func (w *cacheWriteStream) Close() error {
	err := w.inner.Close()
	w.owner.invalidate(w.path)
	return err
}

func (b *Backend[B]) OpenWrite(ctx context.Context, path anyfs.Path) (anyfs.WriteStream, error) {
	inner, err := b.backend.OpenWrite(ctx, path)
	if err != nil {
		return nil, err
	}
	return &cacheWriteStream{inner: inner, owner: b, path: path}, nil
}

// --- Directory (pass-through; no directory listing cache) ---

func (b *Backend[B]) ReadDir(ctx context.Context, path anyfs.Path) ([]anyfs.DirEntry, error) {
	return b.backend.ReadDir(ctx, path)
}

func (b *Backend[B]) CreateDir(ctx context.Context, path anyfs.Path) error {
	if err := b.backend.CreateDir(ctx, path); err != nil {
		return err
	}
	b.invalidate(path)
	return nil
}

func (b *Backend[B]) CreateDirAll(ctx context.Context, path anyfs.Path) error {
	if err := b.backend.CreateDirAll(ctx, path); err != nil {
		return err
	}
	b.invalidate(path)
	return nil
}

func (b *Backend[B]) RemoveDir(ctx context.Context, path anyfs.Path) error {
	if err := b.backend.RemoveDir(ctx, path); err != nil {
		return err
	}
	b.invalidate(path)
	return nil
}

func (b *Backend[B]) RemoveDirAll(ctx context.Context, path anyfs.Path) error {
	if err := b.backend.RemoveDirAll(ctx, path); err != nil {
		return err
	}
	b.invalidate(path)
	return nil
}

// --- Link ---

func (b *Backend[B]) Symlink(ctx context.Context, original string, link anyfs.Path) error {
	l, ok := anyfs.Supports[anyfs.Link](b.backend)
	if !ok {
		return anyfs.NewError("symlink", link.String(), anyfs.KindNotSupported, nil)
	}
	if err := l.Symlink(ctx, original, link); err != nil {
		return err
	}
	b.invalidate(link)
	return nil
}

func (b *Backend[B]) HardLink(ctx context.Context, original, link anyfs.Path) error {
	l, ok := anyfs.Supports[anyfs.Link](b.backend)
	if !ok {
		return anyfs.NewError("hard_link", link.String(), anyfs.KindNotSupported, nil)
	}
	if err := l.HardLink(ctx, original, link); err != nil {
		return err
	}
	b.invalidate(link)
	b.invalidate(original)
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

// --- Permissions / Sync / Stats ---

func (b *Backend[B]) SetPermissions(ctx context.Context, path anyfs.Path, mode uint32) error {
	p, ok := anyfs.Supports[anyfs.Permissions](b.backend)
	if !ok {
		return anyfs.NewError("set_permissions", path.String(), anyfs.KindNotSupported, nil)
	}
	if err := p.SetPermissions(ctx, path, mode); err != nil {
		return err
	}
	b.invalidate(path)
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

// --- InodeOps / Xattr / Handles / Lock (pass-through, uncached) ---

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

func (b *Backend[B]) GetXattr(ctx context.Context, path anyfs.Path, name string) ([]byte, error) {
	x, ok := anyfs.Supports[anyfs.Xattr](b.backend)
	if !ok {
		return nil, anyfs.NewError("get_xattr", path.String(), anyfs.KindNotSupported, nil)
	}
	return x.GetXattr(ctx, path, name)
}

func (b *Backend[B]) SetXattr(ctx context.Context, path anyfs.Path, name string, value []byte) error {
	x, ok := anyfs.Supports[anyfs.Xattr](b.backend)
	if !ok {
		return anyfs.NewError("set_xattr", path.String(), anyfs.KindNotSupported, nil)
	}
	return x.SetXattr(ctx, path, name, value)
}

func (b *Backend[B]) RemoveXattr(ctx context.Context, path anyfs.Path, name string) error {
	x, ok := anyfs.Supports[anyfs.Xattr](b.backend)
	if !ok {
		return anyfs.NewError("remove_xattr", path.String(), anyfs.KindNotSupported, nil)
	}
	return x.RemoveXattr(ctx, path, name)
}

func (b *Backend[B]) ListXattr(ctx context.Context, path anyfs.Path) ([]string, error) {
	x, ok := anyfs.Supports[anyfs.Xattr](b.backend)
	if !ok {
		return nil, anyfs.NewError("list_xattr", path.String(), anyfs.KindNotSupported, nil)
	}
	return x.ListXattr(ctx, path)
}

func (b *Backend[B]) Open(ctx context.Context, path anyfs.Path, flags anyfs.OpenFlags) (anyfs.Handle, error) {
	h, ok := anyfs.Supports[anyfs.Handles](b.backend)
	if !ok {
		return 0, anyfs.NewError("open", path.String(), anyfs.KindNotSupported, nil)
	}
	if flags&(anyfs.OpenWrite|anyfs.OpenCreate|anyfs.OpenTruncate|anyfs.OpenAppend) != 0 {
		b.invalidate(path)
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
var _ anyfs.Layer[anyfs.Fs, *Backend[anyfs.Fs]] = Builder1[anyfs.Fs]{}
