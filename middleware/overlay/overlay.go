// Package overlay provides a copy-on-write union Layer over two
// backends: a read-only base and a writable upper. Grounded on the
// layering shape of rclone's backend/crypt (a backend wrapping another
// backend's fs.Fs) generalized from "transform everything" to "prefer
// upper, fall back to base, remember what upper hid" — the same
// whiteout-and-copy-up discipline overlayfs and Docker's layered image
// filesystem use, which §4.5.7 describes at the VFS-operation level
// instead of the block level.
package overlay

import (
	"context"
	"sync"

	"github.com/dk26/anyfs"
)

// Backend unions base (read-only) under upper (writable). Reads prefer
// upper; writes always land in upper; removals of a base-visible path
// record a whiteout instead of mutating base.
type Backend[Base anyfs.Fs, Upper anyfs.Fs] struct {
	base  Base
	upper Upper

	mu        sync.Mutex
	whiteouts map[string]struct{}
}

// New unions base under upper.
func New[Base anyfs.Fs, Upper anyfs.Fs](base Base, upper Upper) *Backend[Base, Upper] {
	return &Backend[Base, Upper]{base: base, upper: upper, whiteouts: make(map[string]struct{})}
}

// Builder fixes base at construction time; Layer then unions it under
// whichever upper backend it is applied to, matching the anyfs.Layer
// convention of wrapping one "inner" backend (here, upper).
type Builder[Base anyfs.Fs, Upper anyfs.Fs] struct {
	base Base
}

// NewBuilder starts an Overlay builder with base fixed as the read-only
// lower layer.
func NewBuilder[Base anyfs.Fs, Upper anyfs.Fs](base Base) Builder[Base, Upper] {
	return Builder[Base, Upper]{base: base}
}

// Layer implements anyfs.Layer.
func (bld Builder[Base, Upper]) Layer(upper Upper) (*Backend[Base, Upper], error) {
	return New(bld.base, upper), nil
}

// isWhitedOut reports whether path itself, or any ancestor directory of
// path, has been recorded as removed. A whiteout on a directory hides
// its whole subtree, matching remove_dir_all's depth-first contract.
func (b *Backend[Base, Upper]) isWhitedOut(path anyfs.Path) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for w := range b.whiteouts {
		if anyfs.HasPrefixPath(path, anyfs.Path(w)) {
			return true
		}
	}
	return false
}

func (b *Backend[Base, Upper]) addWhiteout(path anyfs.Path) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.whiteouts[path.String()] = struct{}{}
	for w := range b.whiteouts {
		if w != path.String() && anyfs.HasPrefixPath(anyfs.Path(w), path) {
			delete(b.whiteouts, w)
		}
	}
}

func (b *Backend[Base, Upper]) clearWhiteout(path anyfs.Path) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.whiteouts, path.String())
}

// ensureUpperDir walks dir's ancestors top-down, creating any missing
// directory nodes in upper so a subsequent write through upper
// succeeds. This is the copy-up of directory structure (metadata only,
// never content) §4.5.7 requires before a write under a base-only
// parent.
func (b *Backend[Base, Upper]) ensureUpperDir(ctx context.Context, dir anyfs.Path) error {
	if dir.IsRoot() {
		return nil
	}
	if ok, _ := b.upper.Exists(ctx, dir); ok {
		return nil
	}
	if err := b.ensureUpperDir(ctx, dir.Dir()); err != nil {
		return err
	}
	if err := b.upper.CreateDir(ctx, dir); err != nil && anyfs.KindOf(err) != anyfs.KindAlreadyExists {
		return err
	}
	b.clearWhiteout(dir)
	return nil
}

// --- Read ---

func (b *Backend[Base, Upper]) Read(ctx context.Context, path anyfs.Path) ([]byte, error) {
	if b.isWhitedOut(path) {
		return nil, anyfs.NewError("read", path.String(), anyfs.KindNotFound, nil)
	}
	if ok, _ := b.upper.Exists(ctx, path); ok {
		return b.upper.Read(ctx, path)
	}
	return b.base.Read(ctx, path)
}

func (b *Backend[Base, Upper]) ReadToString(ctx context.Context, path anyfs.Path) (string, error) {
	if b.isWhitedOut(path) {
		return "", anyfs.NewError("read_to_string", path.String(), anyfs.KindNotFound, nil)
	}
	if ok, _ := b.upper.Exists(ctx, path); ok {
		return b.upper.ReadToString(ctx, path)
	}
	return b.base.ReadToString(ctx, path)
}

func (b *Backend[Base, Upper]) ReadRange(ctx context.Context, path anyfs.Path, offset, length uint64) ([]byte, error) {
	if b.isWhitedOut(path) {
		return nil, anyfs.NewError("read_range", path.String(), anyfs.KindNotFound, nil)
	}
	if ok, _ := b.upper.Exists(ctx, path); ok {
		return b.upper.ReadRange(ctx, path, offset, length)
	}
	return b.base.ReadRange(ctx, path, offset, length)
}

func (b *Backend[Base, Upper]) Exists(ctx context.Context, path anyfs.Path) (bool, error) {
	if b.isWhitedOut(path) {
		return false, nil
	}
	if ok, _ := b.upper.Exists(ctx, path); ok {
		return true, nil
	}
	return b.base.Exists(ctx, path)
}

func (b *Backend[Base, Upper]) Metadata(ctx context.Context, path anyfs.Path) (anyfs.Metadata, error) {
	if b.isWhitedOut(path) {
		return anyfs.Metadata{}, anyfs.NewError("metadata", path.String(), anyfs.KindNotFound, nil)
	}
	if ok, _ := b.upper.Exists(ctx, path); ok {
		return b.upper.Metadata(ctx, path)
	}
	return b.base.Metadata(ctx, path)
}

func (b *Backend[Base, Upper]) OpenRead(ctx context.Context, path anyfs.Path) (anyfs.ReadStream, error) {
	if b.isWhitedOut(path) {
		return nil, anyfs.NewError("open_read", path.String(), anyfs.KindNotFound, nil)
	}
	if ok, _ := b.upper.Exists(ctx, path); ok {
		return b.upper.OpenRead(ctx, path)
	}
	return b.base.OpenRead(ctx, path)
}

// --- Write (always upper, with copy-up of parent directory shape) ---

func (b *Backend[Base, Upper]) Write(ctx context.Context, path anyfs.Path, data []byte) error {
	if err := b.ensureUpperDir(ctx, path.Dir()); err != nil {
		return err
	}
	if err := b.upper.Write(ctx, path, data); err != nil {
		return err
	}
	b.clearWhiteout(path)
	return nil
}

func (b *Backend[Base, Upper]) Append(ctx context.Context, path anyfs.Path, data []byte) error {
	if err := b.ensureUpperDir(ctx, path.Dir()); err != nil {
		return err
	}
	if ok, _ := b.upper.Exists(ctx, path); !ok && !b.isWhitedOut(path) {
		if existing, err := b.base.Read(ctx, path); err == nil {
			if err := b.upper.Write(ctx, path, existing); err != nil {
				return err
			}
		}
	}
	if err := b.upper.Append(ctx, path, data); err != nil {
		return err
	}
	b.clearWhiteout(path)
	return nil
}

func (b *Backend[Base, Upper]) RemoveFile(ctx context.Context, path anyfs.Path) error {
	upperHas, _ := b.upper.Exists(ctx, path)
	baseHas, _ := b.base.Exists(ctx, path)
	if upperHas {
		if err := b.upper.RemoveFile(ctx, path); err != nil {
			return err
		}
	} else if !baseHas {
		return anyfs.NewError("remove_file", path.String(), anyfs.KindNotFound, nil)
	}
	if baseHas {
		b.addWhiteout(path)
	}
	return nil
}

func (b *Backend[Base, Upper]) Rename(ctx context.Context, from, to anyfs.Path) error {
	if b.isWhitedOut(from) {
		return anyfs.NewErrorPaths("rename", []string{from.String(), to.String()}, anyfs.KindNotFound, nil)
	}
	upperHas, _ := b.upper.Exists(ctx, from)
	baseHas, _ := b.base.Exists(ctx, from)
	if !upperHas && baseHas {
		if err := b.copyUp(ctx, from); err != nil {
			return err
		}
	}
	if err := b.ensureUpperDir(ctx, to.Dir()); err != nil {
		return err
	}
	if err := b.upper.Rename(ctx, from, to); err != nil {
		return err
	}
	if baseHas {
		b.addWhiteout(from)
	}
	b.clearWhiteout(to)
	return nil
}

// copyUp materializes a base-only path into upper (content for files,
// a directory node for directories), the precondition Rename needs
// before it can move something that currently lives only in base.
func (b *Backend[Base, Upper]) copyUp(ctx context.Context, path anyfs.Path) error {
	m, err := b.base.Metadata(ctx, path)
	if err != nil {
		return err
	}
	if err := b.ensureUpperDir(ctx, path.Dir()); err != nil {
		return err
	}
	if m.IsDir() {
		return b.upper.CreateDir(ctx, path)
	}
	data, err := b.base.Read(ctx, path)
	if err != nil {
		return err
	}
	return b.upper.Write(ctx, path, data)
}

func (b *Backend[Base, Upper]) Copy(ctx context.Context, from, to anyfs.Path) error {
	if b.isWhitedOut(from) {
		return anyfs.NewErrorPaths("copy", []string{from.String(), to.String()}, anyfs.KindNotFound, nil)
	}
	if err := b.ensureUpperDir(ctx, to.Dir()); err != nil {
		return err
	}
	var data []byte
	var err error
	if ok, _ := b.upper.Exists(ctx, from); ok {
		data, err = b.upper.Read(ctx, from)
	} else {
		data, err = b.base.Read(ctx, from)
	}
	if err != nil {
		return err
	}
	if err := b.upper.Write(ctx, to, data); err != nil {
		return err
	}
	b.clearWhiteout(to)
	return nil
}

func (b *Backend[Base, Upper]) Truncate(ctx context.Context, path anyfs.Path, size uint64) error {
	if ok, _ := b.upper.Exists(ctx, path); !ok {
		if baseHas, _ := b.base.Exists(ctx, path); baseHas {
			if err := b.copyUp(ctx, path); err != nil {
				return err
			}
		}
	}
	if err := b.upper.Truncate(ctx, path, size); err != nil {
		return err
	}
	b.clearWhiteout(path)
	return nil
}

func (b *Backend[Base, Upper]) OpenWrite(ctx context.Context, path anyfs.Path) (anyfs.WriteStream, error) {
	if err := b.ensureUpperDir(ctx, path.Dir()); err != nil {
		return nil, err
	}
	w, err := b.upper.OpenWrite(ctx, path)
	if err != nil {
		return nil, err
	}
	b.clearWhiteout(path)
	return w, nil
}

// --- Directory ---

func (b *Backend[Base, Upper]) ReadDir(ctx context.Context, path anyfs.Path) ([]anyfs.DirEntry, error) {
	if b.isWhitedOut(path) {
		return nil, anyfs.NewError("read_dir", path.String(), anyfs.KindNotFound, nil)
	}
	byName := make(map[string]anyfs.DirEntry)
	if upperEntries, err := b.upper.ReadDir(ctx, path); err == nil {
		for _, e := range upperEntries {
			if !b.isWhitedOut(path.Join(e.Name)) {
				byName[e.Name] = e
			}
		}
	}
	if baseEntries, err := b.base.ReadDir(ctx, path); err == nil {
		for _, e := range baseEntries {
			if b.isWhitedOut(path.Join(e.Name)) {
				continue
			}
			if _, ok := byName[e.Name]; ok {
				continue // upper wins
			}
			byName[e.Name] = e
		}
	} else if len(byName) == 0 {
		return nil, err
	}
	out := make([]anyfs.DirEntry, 0, len(byName))
	for _, e := range byName {
		out = append(out, e)
	}
	return out, nil
}

func (b *Backend[Base, Upper]) CreateDir(ctx context.Context, path anyfs.Path) error {
	if ok, _ := b.Exists(ctx, path); ok {
		return anyfs.NewError("create_dir", path.String(), anyfs.KindAlreadyExists, nil)
	}
	if err := b.ensureUpperDir(ctx, path.Dir()); err != nil {
		return err
	}
	if err := b.upper.CreateDir(ctx, path); err != nil {
		return err
	}
	b.clearWhiteout(path)
	return nil
}

func (b *Backend[Base, Upper]) CreateDirAll(ctx context.Context, path anyfs.Path) error {
	if err := b.ensureUpperDir(ctx, path); err != nil {
		return err
	}
	b.clearWhiteout(path)
	return nil
}

func (b *Backend[Base, Upper]) RemoveDir(ctx context.Context, path anyfs.Path) error {
	entries, err := b.ReadDir(ctx, path)
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		return anyfs.NewError("remove_dir", path.String(), anyfs.KindDirectoryNotEmpty, nil)
	}
	upperHas, _ := b.upper.Exists(ctx, path)
	baseHas, _ := b.base.Exists(ctx, path)
	if upperHas {
		if err := b.upper.RemoveDir(ctx, path); err != nil {
			return err
		}
	} else if !baseHas {
		return anyfs.NewError("remove_dir", path.String(), anyfs.KindNotFound, nil)
	}
	if baseHas {
		b.addWhiteout(path)
	}
	return nil
}

func (b *Backend[Base, Upper]) RemoveDirAll(ctx context.Context, path anyfs.Path) error {
	upperHas, _ := b.upper.Exists(ctx, path)
	baseHas, _ := b.base.Exists(ctx, path)
	if !upperHas && !baseHas {
		return anyfs.NewError("remove_dir_all", path.String(), anyfs.KindNotFound, nil)
	}
	if upperHas {
		if err := b.upper.RemoveDirAll(ctx, path); err != nil {
			return err
		}
	}
	if baseHas {
		b.addWhiteout(path)
	}
	return nil
}

// --- Link (upper-only; a symlink/hardlink always lands in upper) ---

func (b *Backend[Base, Upper]) Symlink(ctx context.Context, original string, link anyfs.Path) error {
	ul, ok := anyfs.Supports[anyfs.Link](b.upper)
	if !ok {
		return anyfs.NewError("symlink", link.String(), anyfs.KindNotSupported, nil)
	}
	if err := b.ensureUpperDir(ctx, link.Dir()); err != nil {
		return err
	}
	if err := ul.Symlink(ctx, original, link); err != nil {
		return err
	}
	b.clearWhiteout(link)
	return nil
}

func (b *Backend[Base, Upper]) HardLink(ctx context.Context, original, link anyfs.Path) error {
	ul, ok := anyfs.Supports[anyfs.Link](b.upper)
	if !ok {
		return anyfs.NewError("hard_link", link.String(), anyfs.KindNotSupported, nil)
	}
	if ok, _ := b.upper.Exists(ctx, original); !ok {
		if err := b.copyUp(ctx, original); err != nil {
			return err
		}
	}
	if err := b.ensureUpperDir(ctx, link.Dir()); err != nil {
		return err
	}
	if err := ul.HardLink(ctx, original, link); err != nil {
		return err
	}
	b.clearWhiteout(link)
	return nil
}

func (b *Backend[Base, Upper]) ReadLink(ctx context.Context, path anyfs.Path) (string, error) {
	if ok, _ := b.upper.Exists(ctx, path); ok {
		if ul, ok := anyfs.Supports[anyfs.Link](b.upper); ok {
			return ul.ReadLink(ctx, path)
		}
	}
	if bl, ok := anyfs.Supports[anyfs.Link](b.base); ok {
		return bl.ReadLink(ctx, path)
	}
	return "", anyfs.NewError("read_link", path.String(), anyfs.KindNotSupported, nil)
}

func (b *Backend[Base, Upper]) SymlinkMetadata(ctx context.Context, path anyfs.Path) (anyfs.Metadata, error) {
	if ok, _ := b.upper.Exists(ctx, path); ok {
		if ul, ok := anyfs.Supports[anyfs.Link](b.upper); ok {
			return ul.SymlinkMetadata(ctx, path)
		}
	}
	if bl, ok := anyfs.Supports[anyfs.Link](b.base); ok {
		return bl.SymlinkMetadata(ctx, path)
	}
	return anyfs.Metadata{}, anyfs.NewError("symlink_metadata", path.String(), anyfs.KindNotSupported, nil)
}

// --- Permissions / Sync / Stats (upper-authoritative) ---

func (b *Backend[Base, Upper]) SetPermissions(ctx context.Context, path anyfs.Path, mode uint32) error {
	up, ok := anyfs.Supports[anyfs.Permissions](b.upper)
	if !ok {
		return anyfs.NewError("set_permissions", path.String(), anyfs.KindNotSupported, nil)
	}
	if ok, _ := b.upper.Exists(ctx, path); !ok {
		if err := b.copyUp(ctx, path); err != nil {
			return err
		}
	}
	return up.SetPermissions(ctx, path, mode)
}

func (b *Backend[Base, Upper]) Sync(ctx context.Context) error {
	if s, ok := anyfs.Supports[anyfs.Sync](b.upper); ok {
		return s.Sync(ctx)
	}
	return anyfs.NewError("sync", "", anyfs.KindNotSupported, nil)
}

func (b *Backend[Base, Upper]) Fsync(ctx context.Context, path anyfs.Path) error {
	if s, ok := anyfs.Supports[anyfs.Sync](b.upper); ok {
		return s.Fsync(ctx, path)
	}
	return anyfs.NewError("fsync", path.String(), anyfs.KindNotSupported, nil)
}

func (b *Backend[Base, Upper]) Statfs(ctx context.Context) (anyfs.Statfs, error) {
	if s, ok := anyfs.Supports[anyfs.Stats](b.upper); ok {
		return s.Statfs(ctx)
	}
	return anyfs.Statfs{}, anyfs.NewError("statfs", "", anyfs.KindNotSupported, nil)
}

var _ anyfs.Fs = (*Backend[anyfs.Fs, anyfs.Fs])(nil)
var _ anyfs.Layer[anyfs.Fs, *Backend[anyfs.Fs, anyfs.Fs]] = Builder[anyfs.Fs, anyfs.Fs]{}
