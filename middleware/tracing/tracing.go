// Package tracing provides a Layer that emits a span for each Read,
// Write, Directory, Link, Permissions, Sync and Stats operation,
// describing the operation name, the path(s) involved, and (for
// data-bearing operations) the byte count, then completes the span with
// success or error. InodeOps, Xattr, Handles and Lock calls pass through
// without a span. Grounded on go.opentelemetry.io/otel's
// trace.Tracer/trace.Span interfaces, which is exactly the "external
// subscriber abstraction" §4.5.8 calls for: this middleware never
// formats or exports a span itself, it only calls Start/End/RecordError
// on whatever trace.Tracer the caller supplied (a no-op tracer by
// default, matching the observability-wiring non-goal in spec §1).
package tracing

import (
	"context"

	"github.com/dk26/anyfs"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Backend wraps B, emitting a span around each traced operation.
type Backend[B anyfs.Fs] struct {
	backend B
	tracer  trace.Tracer
}

// New wraps backend, emitting spans via tracer.
func New[B anyfs.Fs](backend B, tracer trace.Tracer) *Backend[B] {
	return &Backend[B]{backend: backend, tracer: tracer}
}

// Builder constructs a Backend via the anyfs.Layer convention. Tracing
// has a meaningful zero-configuration default (the global no-op
// tracer), so its builder is unconditionally constructible, unlike
// Quota, PathFilter, and RateLimit.
type Builder[B anyfs.Fs] struct {
	tracer trace.Tracer
}

// NewBuilder returns a Tracing layer builder using the global otel
// tracer named for this module.
func NewBuilder[B anyfs.Fs]() Builder[B] {
	return Builder[B]{tracer: otel.Tracer("github.com/dk26/anyfs")}
}

// Tracer overrides the tracer spans are emitted through.
func (bld Builder[B]) Tracer(t trace.Tracer) Builder[B] {
	bld.tracer = t
	return bld
}

// Layer implements anyfs.Layer.
func (bld Builder[B]) Layer(backend B) (*Backend[B], error) {
	return New(backend, bld.tracer), nil
}

func (b *Backend[B]) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return b.tracer.Start(ctx, op, trace.WithAttributes(attrs...))
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func pathAttr(path anyfs.Path) attribute.KeyValue { return attribute.String("path", path.String()) }

// --- Read ---

func (b *Backend[B]) Read(ctx context.Context, path anyfs.Path) ([]byte, error) {
	ctx, span := b.start(ctx, "read", pathAttr(path))
	data, err := b.backend.Read(ctx, path)
	span.SetAttributes(attribute.Int("bytes", len(data)))
	finish(span, err)
	return data, err
}

func (b *Backend[B]) ReadToString(ctx context.Context, path anyfs.Path) (string, error) {
	ctx, span := b.start(ctx, "read_to_string", pathAttr(path))
	s, err := b.backend.ReadToString(ctx, path)
	span.SetAttributes(attribute.Int("bytes", len(s)))
	finish(span, err)
	return s, err
}

func (b *Backend[B]) ReadRange(ctx context.Context, path anyfs.Path, offset, length uint64) ([]byte, error) {
	ctx, span := b.start(ctx, "read_range", pathAttr(path),
		attribute.Int64("offset", int64(offset)), attribute.Int64("length", int64(length)))
	data, err := b.backend.ReadRange(ctx, path, offset, length)
	span.SetAttributes(attribute.Int("bytes", len(data)))
	finish(span, err)
	return data, err
}

func (b *Backend[B]) Exists(ctx context.Context, path anyfs.Path) (bool, error) {
	ctx, span := b.start(ctx, "exists", pathAttr(path))
	ok, err := b.backend.Exists(ctx, path)
	finish(span, err)
	return ok, err
}

func (b *Backend[B]) Metadata(ctx context.Context, path anyfs.Path) (anyfs.Metadata, error) {
	ctx, span := b.start(ctx, "metadata", pathAttr(path))
	m, err := b.backend.Metadata(ctx, path)
	finish(span, err)
	return m, err
}

// tracingReadStream wraps a ReadStream only to count bytes through the
// span; it ends the span on Close since that is when the byte total is
// known, matching streams' call-scoped lifetime (§4.1, §5).
type tracingReadStream struct {
	inner anyfs.ReadStream
	span  trace.Span
	n     int
}

func (s *tracingReadStream) Read(p []byte) (int, error) {
	n, err := s.inner.Read(p)
	s.n += n
	return n, err
}

func (s *tracingReadStream) Close() error {
	s.span.SetAttributes(attribute.Int("bytes", s.n))
	err := s.inner.Close()
	finish(s.span, err)
	return err
}

func (b *Backend[B]) OpenRead(ctx context.Context, path anyfs.Path) (anyfs.ReadStream, error) {
	_, span := b.start(ctx, "open_read", pathAttr(path))
	inner, err := b.backend.OpenRead(ctx, path)
	if err != nil {
		finish(span, err)
		return nil, err
	}
	return &tracingReadStream{inner: inner, span: span}, nil
}

// --- Write ---

func (b *Backend[B]) Write(ctx context.Context, path anyfs.Path, data []byte) error {
	ctx, span := b.start(ctx, "write", pathAttr(path), attribute.Int("bytes", len(data)))
	err := b.backend.Write(ctx, path, data)
	finish(span, err)
	return err
}

func (b *Backend[B]) Append(ctx context.Context, path anyfs.Path, data []byte) error {
	ctx, span := b.start(ctx, "append", pathAttr(path), attribute.Int("bytes", len(data)))
	err := b.backend.Append(ctx, path, data)
	finish(span, err)
	return err
}

func (b *Backend[B]) RemoveFile(ctx context.Context, path anyfs.Path) error {
	ctx, span := b.start(ctx, "remove_file", pathAttr(path))
	err := b.backend.RemoveFile(ctx, path)
	finish(span, err)
	return err
}

func (b *Backend[B]) Rename(ctx context.Context, from, to anyfs.Path) error {
	ctx, span := b.start(ctx, "rename", attribute.String("from", from.String()), attribute.String("to", to.String()))
	err := b.backend.Rename(ctx, from, to)
	finish(span, err)
	return err
}

func (b *Backend[B]) Copy(ctx context.Context, from, to anyfs.Path) error {
	ctx, span := b.start(ctx, "copy", attribute.String("from", from.String()), attribute.String("to", to.String()))
	err := b.backend.Copy(ctx, from, to)
	finish(span, err)
	return err
}

func (b *Backend[B]) Truncate(ctx context.Context, path anyfs.Path, size uint64) error {
	ctx, span := b.start(ctx, "truncate", pathAttr(path), attribute.Int64("size", int64(size)))
	err := b.backend.Truncate(ctx, path, size)
	finish(span, err)
	return err
}

// tracingWriteStream mirrors tracingReadStream for the write side.
type tracingWriteStream struct {
	inner anyfs.WriteStream
	span  trace.Span
	n     int
}

func (s *tracingWriteStream) Write(p []byte) (int, error) {
	n, err := s.inner.Write(p)
	s.n += n
	return n, err
}

func (s *tracingWriteStream) Close() error {
	s.span.SetAttributes(attribute.Int("bytes", s.n))
	err := s.inner.Close()
	finish(s.span, err)
	return err
}

func (b *Backend[B]) OpenWrite(ctx context.Context, path anyfs.Path) (anyfs.WriteStream, error) {
	_, span := b.start(ctx, "open_write", pathAttr(path))
	inner, err := b.backend.OpenWrite(ctx, path)
	if err != nil {
		finish(span, err)
		return nil, err
	}
	return &tracingWriteStream{inner: inner, span: span}, nil
}

// --- Directory ---

func (b *Backend[B]) ReadDir(ctx context.Context, path anyfs.Path) ([]anyfs.DirEntry, error) {
	ctx, span := b.start(ctx, "read_dir", pathAttr(path))
	entries, err := b.backend.ReadDir(ctx, path)
	span.SetAttributes(attribute.Int("entries", len(entries)))
	finish(span, err)
	return entries, err
}

func (b *Backend[B]) CreateDir(ctx context.Context, path anyfs.Path) error {
	ctx, span := b.start(ctx, "create_dir", pathAttr(path))
	err := b.backend.CreateDir(ctx, path)
	finish(span, err)
	return err
}

func (b *Backend[B]) CreateDirAll(ctx context.Context, path anyfs.Path) error {
	ctx, span := b.start(ctx, "create_dir_all", pathAttr(path))
	err := b.backend.CreateDirAll(ctx, path)
	finish(span, err)
	return err
}

func (b *Backend[B]) RemoveDir(ctx context.Context, path anyfs.Path) error {
	ctx, span := b.start(ctx, "remove_dir", pathAttr(path))
	err := b.backend.RemoveDir(ctx, path)
	finish(span, err)
	return err
}

func (b *Backend[B]) RemoveDirAll(ctx context.Context, path anyfs.Path) error {
	ctx, span := b.start(ctx, "remove_dir_all", pathAttr(path))
	err := b.backend.RemoveDirAll(ctx, path)
	finish(span, err)
	return err
}

// --- Link ---

func (b *Backend[B]) Symlink(ctx context.Context, original string, link anyfs.Path) error {
	l, ok := anyfs.Supports[anyfs.Link](b.backend)
	if !ok {
		return anyfs.NewError("symlink", link.String(), anyfs.KindNotSupported, nil)
	}
	ctx, span := b.start(ctx, "symlink", pathAttr(link), attribute.String("original", original))
	err := l.Symlink(ctx, original, link)
	finish(span, err)
	return err
}

func (b *Backend[B]) HardLink(ctx context.Context, original, link anyfs.Path) error {
	l, ok := anyfs.Supports[anyfs.Link](b.backend)
	if !ok {
		return anyfs.NewError("hard_link", link.String(), anyfs.KindNotSupported, nil)
	}
	ctx, span := b.start(ctx, "hard_link", attribute.String("original", original.String()), attribute.String("link", link.String()))
	err := l.HardLink(ctx, original, link)
	finish(span, err)
	return err
}

func (b *Backend[B]) ReadLink(ctx context.Context, path anyfs.Path) (string, error) {
	l, ok := anyfs.Supports[anyfs.Link](b.backend)
	if !ok {
		return "", anyfs.NewError("read_link", path.String(), anyfs.KindNotSupported, nil)
	}
	ctx, span := b.start(ctx, "read_link", pathAttr(path))
	target, err := l.ReadLink(ctx, path)
	finish(span, err)
	return target, err
}

func (b *Backend[B]) SymlinkMetadata(ctx context.Context, path anyfs.Path) (anyfs.Metadata, error) {
	l, ok := anyfs.Supports[anyfs.Link](b.backend)
	if !ok {
		return anyfs.Metadata{}, anyfs.NewError("symlink_metadata", path.String(), anyfs.KindNotSupported, nil)
	}
	ctx, span := b.start(ctx, "symlink_metadata", pathAttr(path))
	m, err := l.SymlinkMetadata(ctx, path)
	finish(span, err)
	return m, err
}

// --- Permissions / Sync / Stats ---

func (b *Backend[B]) SetPermissions(ctx context.Context, path anyfs.Path, mode uint32) error {
	p, ok := anyfs.Supports[anyfs.Permissions](b.backend)
	if !ok {
		return anyfs.NewError("set_permissions", path.String(), anyfs.KindNotSupported, nil)
	}
	ctx, span := b.start(ctx, "set_permissions", pathAttr(path))
	err := p.SetPermissions(ctx, path, mode)
	finish(span, err)
	return err
}

func (b *Backend[B]) Sync(ctx context.Context) error {
	s, ok := anyfs.Supports[anyfs.Sync](b.backend)
	if !ok {
		return anyfs.NewError("sync", "", anyfs.KindNotSupported, nil)
	}
	ctx, span := b.start(ctx, "sync")
	err := s.Sync(ctx)
	finish(span, err)
	return err
}

func (b *Backend[B]) Fsync(ctx context.Context, path anyfs.Path) error {
	s, ok := anyfs.Supports[anyfs.Sync](b.backend)
	if !ok {
		return anyfs.NewError("fsync", path.String(), anyfs.KindNotSupported, nil)
	}
	ctx, span := b.start(ctx, "fsync", pathAttr(path))
	err := s.Fsync(ctx, path)
	finish(span, err)
	return err
}

func (b *Backend[B]) Statfs(ctx context.Context) (anyfs.Statfs, error) {
	s, ok := anyfs.Supports[anyfs.Stats](b.backend)
	if !ok {
		return anyfs.Statfs{}, anyfs.NewError("statfs", "", anyfs.KindNotSupported, nil)
	}
	ctx, span := b.start(ctx, "statfs")
	st, err := s.Statfs(ctx)
	finish(span, err)
	return st, err
}

// --- InodeOps / Xattr / Handles / Lock (pass-through, untraced detail) ---

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
var _ anyfs.Layer[anyfs.Fs, *Backend[anyfs.Fs]] = Builder[anyfs.Fs]{}
