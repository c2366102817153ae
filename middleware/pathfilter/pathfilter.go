// Package pathfilter provides a Layer that allows or denies operations
// by matching the target path against an ordered list of glob rules,
// first match wins, default deny. Grounded on rclone's backend/crypt
// wrapping pattern for the pass-through shape, with the glob matching
// itself done via the standard library's path.Match: no third-party
// glob library appears anywhere in the example corpus, so this is one
// of the few stdlib-only corners (documented in DESIGN.md).
package pathfilter

import (
	"context"
	"path"

	"github.com/dk26/anyfs"
)

// Decision is the outcome of matching a rule.
type Decision int

// The two decisions a rule can produce.
const (
	Deny Decision = iota
	Allow
)

// Rule is one ordered glob match.
type Rule struct {
	Pattern  string
	Decision Decision
}

// Backend wraps B, filtering every operation's target path(s) against an
// ordered rule list.
type Backend[B anyfs.Fs] struct {
	backend B
	rules   []Rule
}

func (b *Backend[B]) allowed(p anyfs.Path) bool {
	s := p.String()
	for _, r := range b.rules {
		if ok, _ := path.Match(r.Pattern, s); ok {
			return r.Decision == Allow
		}
	}
	return false
}

func (b *Backend[B]) check(op string, paths ...anyfs.Path) error {
	for _, p := range paths {
		if !b.allowed(p) {
			ps := make([]string, len(paths))
			for i, q := range paths {
				ps[i] = q.String()
			}
			if len(ps) == 1 {
				return anyfs.NewError(op, ps[0], anyfs.KindAccessDenied, nil)
			}
			return anyfs.NewErrorPaths(op, ps, anyfs.KindAccessDenied, nil)
		}
	}
	return nil
}

// Builder0 is the unconfigured, unbuildable state: no rules have been
// added yet. At least one rule is required before Layer becomes
// reachable, per §4.5.2's "at least one rule required".
type Builder0[B anyfs.Fs] struct {
	rules []Rule
}

// NewBuilder starts an empty, unbuildable PathFilter configuration.
func NewBuilder[B anyfs.Fs]() Builder0[B] { return Builder0[B]{} }

// Allow adds an allow rule and unlocks Layer.
func (bld Builder0[B]) Allow(pattern string) Builder1[B] {
	return Builder1[B]{rules: append(append([]Rule(nil), bld.rules...), Rule{Pattern: pattern, Decision: Allow})}
}

// Deny adds a deny rule and unlocks Layer.
func (bld Builder0[B]) Deny(pattern string) Builder1[B] {
	return Builder1[B]{rules: append(append([]Rule(nil), bld.rules...), Rule{Pattern: pattern, Decision: Deny})}
}

// Builder1 has at least one rule and provides Layer.
type Builder1[B anyfs.Fs] struct {
	rules []Rule
}

// Allow appends another allow rule, evaluated after all previously
// added rules.
func (bld Builder1[B]) Allow(pattern string) Builder1[B] {
	bld.rules = append(append([]Rule(nil), bld.rules...), Rule{Pattern: pattern, Decision: Allow})
	return bld
}

// Deny appends another deny rule, evaluated after all previously added
// rules.
func (bld Builder1[B]) Deny(pattern string) Builder1[B] {
	bld.rules = append(append([]Rule(nil), bld.rules...), Rule{Pattern: pattern, Decision: Deny})
	return bld
}

// Layer implements anyfs.Layer.
func (bld Builder1[B]) Layer(backend B) (*Backend[B], error) {
	return &Backend[B]{backend: backend, rules: bld.rules}, nil
}

// --- Read ---

func (b *Backend[B]) Read(ctx context.Context, path anyfs.Path) ([]byte, error) {
	if err := b.check("read", path); err != nil {
		return nil, err
	}
	return b.backend.Read(ctx, path)
}

func (b *Backend[B]) ReadToString(ctx context.Context, path anyfs.Path) (string, error) {
	if err := b.check("read_to_string", path); err != nil {
		return "", err
	}
	return b.backend.ReadToString(ctx, path)
}

func (b *Backend[B]) ReadRange(ctx context.Context, path anyfs.Path, offset, length uint64) ([]byte, error) {
	if err := b.check("read_range", path); err != nil {
		return nil, err
	}
	return b.backend.ReadRange(ctx, path, offset, length)
}

func (b *Backend[B]) Exists(ctx context.Context, path anyfs.Path) (bool, error) {
	if !b.allowed(path) {
		return false, nil
	}
	return b.backend.Exists(ctx, path)
}

func (b *Backend[B]) Metadata(ctx context.Context, path anyfs.Path) (anyfs.Metadata, error) {
	if err := b.check("metadata", path); err != nil {
		return anyfs.Metadata{}, err
	}
	return b.backend.Metadata(ctx, path)
}

func (b *Backend[B]) OpenRead(ctx context.Context, path anyfs.Path) (anyfs.ReadStream, error) {
	if err := b.check("open_read", path); err != nil {
		return nil, err
	}
	return b.backend.OpenRead(ctx, path)
}

// --- Write ---

func (b *Backend[B]) Write(ctx context.Context, path anyfs.Path, data []byte) error {
	if err := b.check("write", path); err != nil {
		return err
	}
	return b.backend.Write(ctx, path, data)
}

func (b *Backend[B]) Append(ctx context.Context, path anyfs.Path, data []byte) error {
	if err := b.check("append", path); err != nil {
		return err
	}
	return b.backend.Append(ctx, path, data)
}

func (b *Backend[B]) RemoveFile(ctx context.Context, path anyfs.Path) error {
	if err := b.check("remove_file", path); err != nil {
		return err
	}
	return b.backend.RemoveFile(ctx, path)
}

func (b *Backend[B]) Rename(ctx context.Context, from, to anyfs.Path) error {
	if err := b.check("rename", from, to); err != nil {
		return err
	}
	return b.backend.Rename(ctx, from, to)
}

func (b *Backend[B]) Copy(ctx context.Context, from, to anyfs.Path) error {
	if err := b.check("copy", from, to); err != nil {
		return err
	}
	return b.backend.Copy(ctx, from, to)
}

func (b *Backend[B]) Truncate(ctx context.Context, path anyfs.Path, size uint64) error {
	if err := b.check("truncate", path); err != nil {
		return err
	}
	return b.backend.Truncate(ctx, path, size)
}

func (b *Backend[B]) OpenWrite(ctx context.Context, path anyfs.Path) (anyfs.WriteStream, error) {
	if err := b.check("open_write", path); err != nil {
		return nil, err
	}
	return b.backend.OpenWrite(ctx, path)
}

// --- Directory ---

// ReadDir filters denied entries out of the listing rather than merely
// denying the listing call itself, per §4.5.2's leakage invariant.
func (b *Backend[B]) ReadDir(ctx context.Context, dir anyfs.Path) ([]anyfs.DirEntry, error) {
	if err := b.check("read_dir", dir); err != nil {
		return nil, err
	}
	entries, err := b.backend.ReadDir(ctx, dir)
	if err != nil {
		return nil, err
	}
	out := entries[:0:0]
	for _, e := range entries {
		if b.allowed(dir.Join(e.Name)) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (b *Backend[B]) CreateDir(ctx context.Context, path anyfs.Path) error {
	if err := b.check("create_dir", path); err != nil {
		return err
	}
	return b.backend.CreateDir(ctx, path)
}

func (b *Backend[B]) CreateDirAll(ctx context.Context, path anyfs.Path) error {
	if err := b.check("create_dir_all", path); err != nil {
		return err
	}
	return b.backend.CreateDirAll(ctx, path)
}

func (b *Backend[B]) RemoveDir(ctx context.Context, path anyfs.Path) error {
	if err := b.check("remove_dir", path); err != nil {
		return err
	}
	return b.backend.RemoveDir(ctx, path)
}

func (b *Backend[B]) RemoveDirAll(ctx context.Context, path anyfs.Path) error {
	if err := b.check("remove_dir_all", path); err != nil {
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
	if err := b.check("symlink", link); err != nil {
		return err
	}
	return l.Symlink(ctx, original, link)
}

func (b *Backend[B]) HardLink(ctx context.Context, original, link anyfs.Path) error {
	l, ok := anyfs.Supports[anyfs.Link](b.backend)
	if !ok {
		return anyfs.NewError("hard_link", link.String(), anyfs.KindNotSupported, nil)
	}
	if err := b.check("hard_link", original, link); err != nil {
		return err
	}
	return l.HardLink(ctx, original, link)
}

func (b *Backend[B]) ReadLink(ctx context.Context, path anyfs.Path) (string, error) {
	l, ok := anyfs.Supports[anyfs.Link](b.backend)
	if !ok {
		return "", anyfs.NewError("read_link", path.String(), anyfs.KindNotSupported, nil)
	}
	if err := b.check("read_link", path); err != nil {
		return "", err
	}
	return l.ReadLink(ctx, path)
}

func (b *Backend[B]) SymlinkMetadata(ctx context.Context, path anyfs.Path) (anyfs.Metadata, error) {
	l, ok := anyfs.Supports[anyfs.Link](b.backend)
	if !ok {
		return anyfs.Metadata{}, anyfs.NewError("symlink_metadata", path.String(), anyfs.KindNotSupported, nil)
	}
	if err := b.check("symlink_metadata", path); err != nil {
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
	if err := b.check("set_permissions", path); err != nil {
		return err
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
	if err := b.check("fsync", path); err != nil {
		return err
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

// --- InodeOps ---

func (b *Backend[B]) PathToInode(ctx context.Context, path anyfs.Path) (anyfs.Inode, error) {
	i, ok := anyfs.Supports[anyfs.InodeOps](b.backend)
	if !ok {
		return 0, anyfs.NewError("path_to_inode", path.String(), anyfs.KindNotSupported, nil)
	}
	if err := b.check("path_to_inode", path); err != nil {
		return 0, err
	}
	return i.PathToInode(ctx, path)
}

func (b *Backend[B]) InodeToPath(ctx context.Context, inode anyfs.Inode) (anyfs.Path, error) {
	i, ok := anyfs.Supports[anyfs.InodeOps](b.backend)
	if !ok {
		return "", anyfs.NewError("inode_to_path", "", anyfs.KindNotSupported, nil)
	}
	p, err := i.InodeToPath(ctx, inode)
	if err != nil {
		return "", err
	}
	if !b.allowed(p) {
		return "", anyfs.NewError("inode_to_path", "", anyfs.KindAccessDenied, nil)
	}
	return p, nil
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
	if err := b.check("get_xattr", path); err != nil {
		return nil, err
	}
	return x.GetXattr(ctx, path, name)
}

func (b *Backend[B]) SetXattr(ctx context.Context, path anyfs.Path, name string, value []byte) error {
	x, ok := anyfs.Supports[anyfs.Xattr](b.backend)
	if !ok {
		return anyfs.NewError("set_xattr", path.String(), anyfs.KindNotSupported, nil)
	}
	if err := b.check("set_xattr", path); err != nil {
		return err
	}
	return x.SetXattr(ctx, path, name, value)
}

func (b *Backend[B]) RemoveXattr(ctx context.Context, path anyfs.Path, name string) error {
	x, ok := anyfs.Supports[anyfs.Xattr](b.backend)
	if !ok {
		return anyfs.NewError("remove_xattr", path.String(), anyfs.KindNotSupported, nil)
	}
	if err := b.check("remove_xattr", path); err != nil {
		return err
	}
	return x.RemoveXattr(ctx, path, name)
}

func (b *Backend[B]) ListXattr(ctx context.Context, path anyfs.Path) ([]string, error) {
	x, ok := anyfs.Supports[anyfs.Xattr](b.backend)
	if !ok {
		return nil, anyfs.NewError("list_xattr", path.String(), anyfs.KindNotSupported, nil)
	}
	if err := b.check("list_xattr", path); err != nil {
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
	if err := b.check("open", path); err != nil {
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
var _ anyfs.Layer[anyfs.Fs, *Backend[anyfs.Fs]] = Builder1[anyfs.Fs]{}
