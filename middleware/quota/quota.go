// Package quota provides a Layer that accounts for and bounds resource
// consumption (total bytes, per-file size, node count, path depth, name
// length) on top of a wrapped backend. A MaxDirEntries limit is stored
// but no operation checks it. Grounded on the usage
// counters anyfs.CapacityLimits/anyfs.Usage already define, and on
// rclone's backend/cache storage_persistent.go pattern of maintaining
// running totals alongside the store rather than re-deriving them on
// every query.
package quota

import (
	"context"
	"sync"

	"github.com/dk26/anyfs"
)

// counters holds the mutable, mutex-guarded usage state. It is kept
// behind a pointer and shared by reference (never copied by value) so
// that a quotaWriteStream spawned from a Backend[B] mutates the same
// counters the owning Backend[B] reports through Usage().
type counters struct {
	mu    sync.Mutex
	usage anyfs.Usage
}

// Backend wraps B, rejecting any operation that would push usage past
// the configured limits and keeping a running anyfs.Usage snapshot.
type Backend[B anyfs.Fs] struct {
	backend B
	limits  anyfs.CapacityLimits
	c       *counters
}

// Usage returns a point-in-time snapshot of current resource
// consumption.
func (b *Backend[B]) Usage() anyfs.Usage {
	b.c.mu.Lock()
	defer b.c.mu.Unlock()
	return b.c.usage
}

// Remaining returns how much headroom is left under MaxTotalSize (in
// TotalSize) and MaxNodeCount (in TotalNodeCount); its other fields are
// always 0, and a limit of 0 (unlimited) reports 0 remaining since there
// is no ceiling to measure against.
func (b *Backend[B]) Remaining() anyfs.Usage {
	b.c.mu.Lock()
	defer b.c.mu.Unlock()
	r := anyfs.Usage{}
	if b.limits.MaxTotalSize > 0 && b.limits.MaxTotalSize > b.c.usage.TotalSize {
		r.TotalSize = b.limits.MaxTotalSize - b.c.usage.TotalSize
	}
	if b.limits.MaxNodeCount > 0 && b.limits.MaxNodeCount > b.c.usage.TotalNodeCount {
		r.TotalNodeCount = b.limits.MaxNodeCount - b.c.usage.TotalNodeCount
	}
	return r
}

// scan walks the whole backend tree once, computing the initial usage
// counters. Called at construction time and again by rescan.
func scan[B anyfs.Fs](ctx context.Context, backend B) (anyfs.Usage, error) {
	var u anyfs.Usage
	var walk func(dir anyfs.Path) error
	walk = func(dir anyfs.Path) error {
		entries, err := backend.ReadDir(ctx, dir)
		if err != nil {
			return err
		}
		for _, e := range entries {
			u.TotalNodeCount++
			switch e.Type {
			case anyfs.TypeFile:
				u.FileCount++
				if e.Size != nil {
					u.TotalSize += *e.Size
				}
			case anyfs.TypeDirectory:
				u.DirectoryCount++
				if err := walk(dir.Join(e.Name)); err != nil {
					return err
				}
			case anyfs.TypeSymlink:
				u.SymlinkCount++
			}
		}
		return nil
	}
	if err := walk(anyfs.Root); err != nil {
		return anyfs.Usage{}, err
	}
	u.DirectoryCount++ // the root itself
	u.TotalNodeCount++
	return u, nil
}

func quotaErr(op, path string, kind anyfs.Kind, limit, usage uint64) error {
	e := anyfs.NewError(op, path, kind, nil)
	e.Limit = int64(limit)
	e.Usage = int64(usage)
	return e
}

func depthAndNameOK(limits anyfs.CapacityLimits, path anyfs.Path) error {
	comps := path.Components()
	if limits.MaxPathDepth > 0 && len(comps) > limits.MaxPathDepth {
		return quotaErr("quota", path.String(), anyfs.KindPathDepthExceeded, uint64(limits.MaxPathDepth), uint64(len(comps)))
	}
	if limits.MaxNameLength > 0 && len(comps) > 0 {
		name := comps[len(comps)-1]
		if len(name) > limits.MaxNameLength {
			return quotaErr("quota", path.String(), anyfs.KindNameLengthExceeded, uint64(limits.MaxNameLength), uint64(len(name)))
		}
	}
	return nil
}

// reserve checks that adding sizeDelta bytes and nodeDelta nodes would
// not exceed configured limits, and if not, commits the change to the
// running counters. Must be called with b.c.mu held.
func (b *Backend[B]) reserve(op, path string, sizeDelta int64, fileDelta, dirDelta, symlinkDelta, nodeDelta int64) error {
	newTotal := addDelta(b.c.usage.TotalSize, sizeDelta)
	if b.limits.MaxTotalSize > 0 && newTotal > b.limits.MaxTotalSize {
		return quotaErr(op, path, anyfs.KindQuotaExceeded, b.limits.MaxTotalSize, newTotal)
	}
	newNodes := addDelta(b.c.usage.TotalNodeCount, nodeDelta)
	if b.limits.MaxNodeCount > 0 && newNodes > b.limits.MaxNodeCount {
		return quotaErr(op, path, anyfs.KindNodeCountExceeded, b.limits.MaxNodeCount, newNodes)
	}
	b.c.usage.TotalSize = newTotal
	b.c.usage.FileCount = addDelta(b.c.usage.FileCount, fileDelta)
	b.c.usage.DirectoryCount = addDelta(b.c.usage.DirectoryCount, dirDelta)
	b.c.usage.SymlinkCount = addDelta(b.c.usage.SymlinkCount, symlinkDelta)
	b.c.usage.TotalNodeCount = newNodes
	return nil
}

func addDelta(u uint64, delta int64) uint64 {
	if delta < 0 {
		d := uint64(-delta)
		if d > u {
			return 0
		}
		return u - d
	}
	return u + uint64(delta)
}

// Builder0 is the unconfigured, unbuildable state: no limit has been
// set. At least one limit is required before Layer becomes reachable.
type Builder0[B anyfs.Fs] struct {
	limits anyfs.CapacityLimits
}

// NewBuilder starts an empty, unbuildable Quota configuration.
func NewBuilder[B anyfs.Fs]() Builder0[B] { return Builder0[B]{} }

func (bld Builder0[B]) withLimit(set func(*anyfs.CapacityLimits)) Builder1[B] {
	l := bld.limits
	set(&l)
	return Builder1[B]{limits: l}
}

// MaxTotalSize sets the aggregate byte ceiling and unlocks Layer.
func (bld Builder0[B]) MaxTotalSize(n uint64) Builder1[B] {
	return bld.withLimit(func(l *anyfs.CapacityLimits) { l.MaxTotalSize = n })
}

// MaxFileSize sets the per-file byte ceiling and unlocks Layer.
func (bld Builder0[B]) MaxFileSize(n uint64) Builder1[B] {
	return bld.withLimit(func(l *anyfs.CapacityLimits) { l.MaxFileSize = n })
}

// MaxNodeCount sets the aggregate node ceiling and unlocks Layer.
func (bld Builder0[B]) MaxNodeCount(n uint64) Builder1[B] {
	return bld.withLimit(func(l *anyfs.CapacityLimits) { l.MaxNodeCount = n })
}

// MaxDirEntries records a per-directory entry ceiling and unlocks Layer.
// No operation checks this ceiling.
func (bld Builder0[B]) MaxDirEntries(n uint64) Builder1[B] {
	return bld.withLimit(func(l *anyfs.CapacityLimits) { l.MaxDirEntries = n })
}

// MaxPathDepth sets the path component depth ceiling and unlocks Layer.
func (bld Builder0[B]) MaxPathDepth(n int) Builder1[B] {
	return bld.withLimit(func(l *anyfs.CapacityLimits) { l.MaxPathDepth = n })
}

// MaxNameLength sets the per-component name length ceiling and unlocks
// Layer.
func (bld Builder0[B]) MaxNameLength(n int) Builder1[B] {
	return bld.withLimit(func(l *anyfs.CapacityLimits) { l.MaxNameLength = n })
}

// Builder1 has at least one limit configured and provides Layer.
type Builder1[B anyfs.Fs] struct {
	limits anyfs.CapacityLimits
}

func (bld Builder1[B]) withLimit(set func(*anyfs.CapacityLimits)) Builder1[B] {
	set(&bld.limits)
	return bld
}

// MaxTotalSize sets the aggregate byte ceiling.
func (bld Builder1[B]) MaxTotalSize(n uint64) Builder1[B] {
	return bld.withLimit(func(l *anyfs.CapacityLimits) { l.MaxTotalSize = n })
}

// MaxFileSize sets the per-file byte ceiling.
func (bld Builder1[B]) MaxFileSize(n uint64) Builder1[B] {
	return bld.withLimit(func(l *anyfs.CapacityLimits) { l.MaxFileSize = n })
}

// MaxNodeCount sets the aggregate node ceiling.
func (bld Builder1[B]) MaxNodeCount(n uint64) Builder1[B] {
	return bld.withLimit(func(l *anyfs.CapacityLimits) { l.MaxNodeCount = n })
}

// MaxDirEntries records a per-directory entry ceiling; no operation
// checks it.
func (bld Builder1[B]) MaxDirEntries(n uint64) Builder1[B] {
	return bld.withLimit(func(l *anyfs.CapacityLimits) { l.MaxDirEntries = n })
}

// MaxPathDepth sets the path component depth ceiling.
func (bld Builder1[B]) MaxPathDepth(n int) Builder1[B] {
	return bld.withLimit(func(l *anyfs.CapacityLimits) { l.MaxPathDepth = n })
}

// MaxNameLength sets the per-component name length ceiling.
func (bld Builder1[B]) MaxNameLength(n int) Builder1[B] {
	return bld.withLimit(func(l *anyfs.CapacityLimits) { l.MaxNameLength = n })
}

// Layer implements anyfs.Layer. It performs the one-time backend scan
// §4.5.1 requires before the wrapped backend becomes usable.
func (bld Builder1[B]) Layer(backend B) (*Backend[B], error) {
	usage, err := scan[B](context.Background(), backend)
	if err != nil {
		return nil, err
	}
	return &Backend[B]{backend: backend, limits: bld.limits, c: &counters{usage: usage}}, nil
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

// --- Write (quota-checked) ---

func (b *Backend[B]) existingSize(ctx context.Context, path anyfs.Path) (uint64, bool) {
	m, err := b.backend.Metadata(ctx, path)
	if err != nil {
		return 0, false
	}
	return m.Size, true
}

func (b *Backend[B]) Write(ctx context.Context, path anyfs.Path, data []byte) error {
	if err := depthAndNameOK(b.limits, path); err != nil {
		return err
	}
	if b.limits.MaxFileSize > 0 && uint64(len(data)) > b.limits.MaxFileSize {
		return quotaErr("write", path.String(), anyfs.KindFileSizeExceeded, b.limits.MaxFileSize, uint64(len(data)))
	}
	old, existed := b.existingSize(ctx, path)
	b.c.mu.Lock()
	nodeDelta := int64(0)
	fileDelta := int64(0)
	if !existed {
		nodeDelta, fileDelta = 1, 1
	}
	sizeDelta := int64(len(data)) - int64(old)
	if err := b.reserve("write", path.String(), sizeDelta, fileDelta, 0, 0, nodeDelta); err != nil {
		b.c.mu.Unlock()
		return err
	}
	b.c.mu.Unlock()
	if err := b.backend.Write(ctx, path, data); err != nil {
		b.c.mu.Lock()
		b.reserve("write", path.String(), -sizeDelta, -fileDelta, 0, 0, -nodeDelta)
		b.c.mu.Unlock()
		return err
	}
	return nil
}

func (b *Backend[B]) Append(ctx context.Context, path anyfs.Path, data []byte) error {
	old, existed := b.existingSize(ctx, path)
	newSize := old + uint64(len(data))
	if b.limits.MaxFileSize > 0 && newSize > b.limits.MaxFileSize {
		return quotaErr("append", path.String(), anyfs.KindFileSizeExceeded, b.limits.MaxFileSize, newSize)
	}
	b.c.mu.Lock()
	nodeDelta, fileDelta := int64(0), int64(0)
	if !existed {
		nodeDelta, fileDelta = 1, 1
	}
	if err := b.reserve("append", path.String(), int64(len(data)), fileDelta, 0, 0, nodeDelta); err != nil {
		b.c.mu.Unlock()
		return err
	}
	b.c.mu.Unlock()
	if err := b.backend.Append(ctx, path, data); err != nil {
		b.c.mu.Lock()
		b.reserve("append", path.String(), -int64(len(data)), -fileDelta, 0, 0, -nodeDelta)
		b.c.mu.Unlock()
		return err
	}
	return nil
}

func (b *Backend[B]) RemoveFile(ctx context.Context, path anyfs.Path) error {
	old, existed := b.existingSize(ctx, path)
	if err := b.backend.RemoveFile(ctx, path); err != nil {
		return err
	}
	if existed {
		b.c.mu.Lock()
		b.reserve("remove_file", path.String(), -int64(old), -1, 0, 0, -1)
		b.c.mu.Unlock()
	}
	return nil
}

func (b *Backend[B]) Rename(ctx context.Context, from, to anyfs.Path) error {
	if err := depthAndNameOK(b.limits, to); err != nil {
		return err
	}
	dstOld, dstExisted := b.existingSize(ctx, to)
	if err := b.backend.Rename(ctx, from, to); err != nil {
		return err
	}
	if dstExisted {
		b.c.mu.Lock()
		b.reserve("rename", to.String(), -int64(dstOld), -1, 0, 0, -1)
		b.c.mu.Unlock()
	}
	return nil
}

func (b *Backend[B]) Copy(ctx context.Context, from, to anyfs.Path) error {
	if err := depthAndNameOK(b.limits, to); err != nil {
		return err
	}
	src, err := b.backend.Metadata(ctx, from)
	if err != nil {
		return err
	}
	if b.limits.MaxFileSize > 0 && src.Size > b.limits.MaxFileSize {
		return quotaErr("copy", to.String(), anyfs.KindFileSizeExceeded, b.limits.MaxFileSize, src.Size)
	}
	dstOld, dstExisted := b.existingSize(ctx, to)
	b.c.mu.Lock()
	nodeDelta, fileDelta := int64(0), int64(0)
	if !dstExisted {
		nodeDelta, fileDelta = 1, 1
	}
	delta := int64(src.Size) - int64(dstOld)
	if err := b.reserve("copy", to.String(), delta, fileDelta, 0, 0, nodeDelta); err != nil {
		b.c.mu.Unlock()
		return err
	}
	b.c.mu.Unlock()
	if err := b.backend.Copy(ctx, from, to); err != nil {
		b.c.mu.Lock()
		b.reserve("copy", to.String(), -delta, -fileDelta, 0, 0, -nodeDelta)
		b.c.mu.Unlock()
		return err
	}
	return nil
}

func (b *Backend[B]) Truncate(ctx context.Context, path anyfs.Path, size uint64) error {
	old, _ := b.existingSize(ctx, path)
	if b.limits.MaxFileSize > 0 && size > b.limits.MaxFileSize {
		return quotaErr("truncate", path.String(), anyfs.KindFileSizeExceeded, b.limits.MaxFileSize, size)
	}
	b.c.mu.Lock()
	delta := int64(size) - int64(old)
	if err := b.reserve("truncate", path.String(), delta, 0, 0, 0, 0); err != nil {
		b.c.mu.Unlock()
		return err
	}
	b.c.mu.Unlock()
	if err := b.backend.Truncate(ctx, path, size); err != nil {
		b.c.mu.Lock()
		b.reserve("truncate", path.String(), -delta, 0, 0, 0, 0)
		b.c.mu.Unlock()
		return err
	}
	return nil
}

// quotaWriteStream counts bytes as they are written and adds each
// chunk's size to the running usage as it is written, failing fast once
// the total or per-file ceiling would be exceeded mid-stream. It holds the
// owning Backend[B]'s counters pointer directly (not a copy of
// Backend[B] itself, which would fork the usage state) so streamed
// bytes land on the same counters Usage() reports.
type quotaWriteStream struct {
	inner  anyfs.WriteStream
	c      *counters
	limits anyfs.CapacityLimits
	path   string
	old    uint64
	n      uint64
}

func (w *quotaWriteStream) Write(p []byte) (int, error) {
	if w.limits.MaxFileSize > 0 && w.n+uint64(len(p)) > w.limits.MaxFileSize {
		return 0, quotaErr("open_write", w.path, anyfs.KindFileSizeExceeded, w.limits.MaxFileSize, w.n+uint64(len(p)))
	}
	w.c.mu.Lock()
	projected := addDelta(w.c.usage.TotalSize, int64(len(p)))
	if w.limits.MaxTotalSize > 0 && projected > w.limits.MaxTotalSize {
		w.c.mu.Unlock()
		return 0, quotaErr("open_write", w.path, anyfs.KindQuotaExceeded, w.limits.MaxTotalSize, projected)
	}
	w.c.usage.TotalSize = projected
	w.c.mu.Unlock()
	n, err := w.inner.Write(p)
	w.n += uint64(n)
	return n, err
}

func (w *quotaWriteStream) Close() error {
	return w.inner.Close()
}

func (b *Backend[B]) OpenWrite(ctx context.Context, path anyfs.Path) (anyfs.WriteStream, error) {
	if err := depthAndNameOK(b.limits, path); err != nil {
		return nil, err
	}
	old, existed := b.existingSize(ctx, path)
	inner, err := b.backend.OpenWrite(ctx, path)
	if err != nil {
		return nil, err
	}
	if !existed {
		b.c.mu.Lock()
		b.c.usage.FileCount++
		b.c.usage.TotalNodeCount++
		b.c.mu.Unlock()
	}
	b.c.mu.Lock()
	b.c.usage.TotalSize = addDelta(b.c.usage.TotalSize, -int64(old))
	b.c.mu.Unlock()
	return &quotaWriteStream{inner: inner, c: b.c, limits: b.limits, path: path.String(), old: old}, nil
}

// --- Directory ---

func (b *Backend[B]) ReadDir(ctx context.Context, path anyfs.Path) ([]anyfs.DirEntry, error) {
	return b.backend.ReadDir(ctx, path)
}

func (b *Backend[B]) CreateDir(ctx context.Context, path anyfs.Path) error {
	if err := depthAndNameOK(b.limits, path); err != nil {
		return err
	}
	b.c.mu.Lock()
	if err := b.reserve("create_dir", path.String(), 0, 0, 1, 0, 1); err != nil {
		b.c.mu.Unlock()
		return err
	}
	b.c.mu.Unlock()
	if err := b.backend.CreateDir(ctx, path); err != nil {
		b.c.mu.Lock()
		b.reserve("create_dir", path.String(), 0, 0, -1, 0, -1)
		b.c.mu.Unlock()
		return err
	}
	return nil
}

// CreateDirAll re-scans the backend after a successful call rather than
// computing an incremental delta for an unknown number of created
// components; simpler to reason about and still satisfies the "usage()
// equals a fresh scan" invariant.
func (b *Backend[B]) CreateDirAll(ctx context.Context, path anyfs.Path) error {
	if err := depthAndNameOK(b.limits, path); err != nil {
		return err
	}
	if err := b.backend.CreateDirAll(ctx, path); err != nil {
		return err
	}
	return b.rescan(ctx)
}

func (b *Backend[B]) RemoveDir(ctx context.Context, path anyfs.Path) error {
	if err := b.backend.RemoveDir(ctx, path); err != nil {
		return err
	}
	b.c.mu.Lock()
	b.reserve("remove_dir", path.String(), 0, 0, -1, 0, -1)
	b.c.mu.Unlock()
	return nil
}

// RemoveDirAll re-scans for the same reason CreateDirAll does.
func (b *Backend[B]) RemoveDirAll(ctx context.Context, path anyfs.Path) error {
	if err := b.backend.RemoveDirAll(ctx, path); err != nil {
		return err
	}
	return b.rescan(ctx)
}

func (b *Backend[B]) rescan(ctx context.Context) error {
	u, err := scan[B](ctx, b.backend)
	if err != nil {
		return err
	}
	b.c.mu.Lock()
	b.c.usage = u
	b.c.mu.Unlock()
	return nil
}

// --- Link ---

func (b *Backend[B]) Symlink(ctx context.Context, original string, link anyfs.Path) error {
	l, ok := anyfs.Supports[anyfs.Link](b.backend)
	if !ok {
		return anyfs.NewError("symlink", link.String(), anyfs.KindNotSupported, nil)
	}
	if err := depthAndNameOK(b.limits, link); err != nil {
		return err
	}
	b.c.mu.Lock()
	if err := b.reserve("symlink", link.String(), int64(len(original)), 0, 0, 1, 1); err != nil {
		b.c.mu.Unlock()
		return err
	}
	b.c.mu.Unlock()
	if err := l.Symlink(ctx, original, link); err != nil {
		b.c.mu.Lock()
		b.reserve("symlink", link.String(), -int64(len(original)), 0, 0, -1, -1)
		b.c.mu.Unlock()
		return err
	}
	return nil
}

func (b *Backend[B]) HardLink(ctx context.Context, original, link anyfs.Path) error {
	l, ok := anyfs.Supports[anyfs.Link](b.backend)
	if !ok {
		return anyfs.NewError("hard_link", link.String(), anyfs.KindNotSupported, nil)
	}
	if err := depthAndNameOK(b.limits, link); err != nil {
		return err
	}
	b.c.mu.Lock()
	if err := b.reserve("hard_link", link.String(), 0, 0, 0, 0, 1); err != nil {
		b.c.mu.Unlock()
		return err
	}
	b.c.mu.Unlock()
	if err := l.HardLink(ctx, original, link); err != nil {
		b.c.mu.Lock()
		b.reserve("hard_link", link.String(), 0, 0, 0, 0, -1)
		b.c.mu.Unlock()
		return err
	}
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
	return p.SetPermissions(ctx, path, mode)
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

// --- InodeOps / Xattr / Handles / Lock (pass-through) ---

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
