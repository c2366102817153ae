// Package memory provides an in-process MemoryBackend: a tree-based
// filesystem with simulated symlinks and hard links, isolated from any
// host resource. It is grounded on rclone's backend/cache in-RAM
// storage (backend/cache/storage_memory.go), generalized from a flat
// chunk cache into a full directory tree.
//
// By the time an operation reaches MemoryBackend, the path resolution
// engine (package vpath, invoked by storage.FileStorage) has already
// followed every symlink on the path that the operation's contract
// requires following. MemoryBackend's own methods therefore do a
// literal component-by-component tree walk; the one exception is
// SymlinkMetadata/ReadLink, which intentionally do not follow, because
// that is precisely what lets the resolution engine inspect one
// component at a time.
package memory

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/dk26/anyfs"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type node struct {
	inode   anyfs.Inode
	typ     anyfs.FileType
	mode    uint32
	data    []byte            // File
	target  string            // Symlink
	children map[string]anyfs.Inode // Directory
	xattrs  map[string][]byte
	nlink   uint32
	created int64
	modified int64
	accessed int64
}

// MemoryBackend is a process-local, tree-based filesystem. The zero
// value is not usable; construct one with New.
type MemoryBackend struct {
	mu    sync.RWMutex
	nodes map[anyfs.Inode]*node
	root  anyfs.Inode

	handles   map[anyfs.Handle]*openHandle
	nextHand  uint64
	locks     map[anyfs.Inode]bool
}

type openHandle struct {
	inode anyfs.Inode
	flags anyfs.OpenFlags
}

func nowMs() int64 { return time.Now().UnixMilli() }

func newInode() anyfs.Inode {
	id := uuid.New()
	var v uint64
	for _, b := range id[:8] {
		v = v<<8 | uint64(b)
	}
	if v == 0 {
		v = 1
	}
	return anyfs.Inode(v)
}

// New constructs an empty MemoryBackend containing only the root
// directory.
func New() *MemoryBackend {
	root := anyfs.Inode(1)
	b := &MemoryBackend{
		nodes:   make(map[anyfs.Inode]*node),
		root:    root,
		handles: make(map[anyfs.Handle]*openHandle),
		locks:   make(map[anyfs.Inode]bool),
	}
	now := nowMs()
	b.nodes[root] = &node{
		inode:    root,
		typ:      anyfs.TypeDirectory,
		mode:     0o755,
		children: make(map[string]anyfs.Inode),
		nlink:    1,
		created:  now,
		modified: now,
		accessed: now,
	}
	logrus.Debug("memory: backend created")
	return b
}

// walk performs a literal, non-following lookup of path, returning the
// resolved node.
func (b *MemoryBackend) walk(path anyfs.Path) (*node, error) {
	cur := b.nodes[b.root]
	for _, name := range path.Components() {
		if cur.typ != anyfs.TypeDirectory {
			return nil, anyfs.NewError("lookup", path.String(), anyfs.KindNotADirectory, nil)
		}
		child, ok := cur.children[name]
		if !ok {
			return nil, anyfs.NewError("lookup", path.String(), anyfs.KindNotFound, nil)
		}
		cur = b.nodes[child]
	}
	return cur, nil
}

// walkParent resolves path's parent directory, returning it together
// with path's final component name.
func (b *MemoryBackend) walkParent(path anyfs.Path) (*node, string, error) {
	if path.IsRoot() {
		return nil, "", anyfs.NewError("lookup", path.String(), anyfs.KindInvalidOperation, nil)
	}
	parent, err := b.walk(path.Dir())
	if err != nil {
		return nil, "", err
	}
	if parent.typ != anyfs.TypeDirectory {
		return nil, "", anyfs.NewError("lookup", path.String(), anyfs.KindNotADirectory, nil)
	}
	return parent, path.Base(), nil
}

func metadataOf(n *node) anyfs.Metadata {
	m := anyfs.Metadata{
		Type:        n.typ,
		Permissions: n.mode,
		Nlink:       n.nlink,
		Inode:       n.inode,
	}
	created, modified, accessed := n.created, n.modified, n.accessed
	m.CreatedMs = &created
	m.ModifiedMs = &modified
	m.AccessedMs = &accessed
	switch n.typ {
	case anyfs.TypeFile:
		m.Size = uint64(len(n.data))
	case anyfs.TypeSymlink:
		m.Size = uint64(len(n.target))
	}
	return m
}

// --- Read ---

func (b *MemoryBackend) Read(ctx context.Context, path anyfs.Path) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n, err := b.walk(path)
	if err != nil {
		return nil, err
	}
	if n.typ == anyfs.TypeDirectory {
		return nil, anyfs.NewError("read", path.String(), anyfs.KindIsADirectory, nil)
	}
	if n.typ != anyfs.TypeFile {
		return nil, anyfs.NewError("read", path.String(), anyfs.KindNotAFile, nil)
	}
	out := make([]byte, len(n.data))
	copy(out, n.data)
	return out, nil
}

func (b *MemoryBackend) ReadToString(ctx context.Context, path anyfs.Path) (string, error) {
	data, err := b.Read(ctx, path)
	if err != nil {
		return "", err
	}
	if !utf8Valid(data) {
		return "", anyfs.NewError("read_to_string", path.String(), anyfs.KindInvalidUtf8, nil)
	}
	return string(data), nil
}

func (b *MemoryBackend) ReadRange(ctx context.Context, path anyfs.Path, offset, length uint64) ([]byte, error) {
	data, err := b.Read(ctx, path)
	if err != nil {
		return nil, err
	}
	if offset >= uint64(len(data)) {
		return []byte{}, nil
	}
	end := offset + length
	if end > uint64(len(data)) {
		end = uint64(len(data))
	}
	return data[offset:end], nil
}

func (b *MemoryBackend) Exists(ctx context.Context, path anyfs.Path) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n, err := b.walk(path)
	if anyfs.Is(err, anyfs.KindNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if n.typ == anyfs.TypeSymlink {
		// Exists does not follow symlinks: it reports false for every
		// symlink node, dangling or not. Metadata does not follow them
		// either; it returns the link's own metadata. storage.FileStorage
		// resolves symlinks before calling either.
		return false, nil
	}
	return true, nil
}

func (b *MemoryBackend) Metadata(ctx context.Context, path anyfs.Path) (anyfs.Metadata, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n, err := b.walk(path)
	if err != nil {
		return anyfs.Metadata{}, err
	}
	return metadataOf(n), nil
}

func (b *MemoryBackend) OpenRead(ctx context.Context, path anyfs.Path) (anyfs.ReadStream, error) {
	data, err := b.Read(ctx, path)
	if err != nil {
		return nil, err
	}
	return readCloser{bytes.NewReader(data)}, nil
}

type readCloser struct{ *bytes.Reader }

func (readCloser) Close() error { return nil }

func utf8Valid(b []byte) bool {
	return utf8.Valid(b)
}

// --- Write ---

func (b *MemoryBackend) Write(ctx context.Context, path anyfs.Path, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	parent, name, err := b.walkParent(path)
	if err != nil {
		return err
	}
	if existing, ok := parent.children[name]; ok {
		n := b.nodes[existing]
		if n.typ == anyfs.TypeDirectory {
			return anyfs.NewError("write", path.String(), anyfs.KindIsADirectory, nil)
		}
		n.data = append([]byte(nil), data...)
		n.modified = nowMs()
		n.typ = anyfs.TypeFile
		return nil
	}
	id := newInode()
	now := nowMs()
	b.nodes[id] = &node{
		inode: id, typ: anyfs.TypeFile, mode: 0o644,
		data: append([]byte(nil), data...), nlink: 1,
		created: now, modified: now, accessed: now,
	}
	parent.children[name] = id
	return nil
}

func (b *MemoryBackend) Append(ctx context.Context, path anyfs.Path, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	parent, name, err := b.walkParent(path)
	if err != nil {
		return err
	}
	if existing, ok := parent.children[name]; ok {
		n := b.nodes[existing]
		if n.typ != anyfs.TypeFile {
			return anyfs.NewError("append", path.String(), anyfs.KindNotAFile, nil)
		}
		n.data = append(n.data, data...)
		n.modified = nowMs()
		return nil
	}
	id := newInode()
	now := nowMs()
	b.nodes[id] = &node{
		inode: id, typ: anyfs.TypeFile, mode: 0o644,
		data: append([]byte(nil), data...), nlink: 1,
		created: now, modified: now, accessed: now,
	}
	parent.children[name] = id
	return nil
}

func (b *MemoryBackend) RemoveFile(ctx context.Context, path anyfs.Path) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	parent, name, err := b.walkParent(path)
	if err != nil {
		return err
	}
	id, ok := parent.children[name]
	if !ok {
		return anyfs.NewError("remove_file", path.String(), anyfs.KindNotFound, nil)
	}
	n := b.nodes[id]
	if n.typ == anyfs.TypeDirectory {
		return anyfs.NewError("remove_file", path.String(), anyfs.KindIsADirectory, nil)
	}
	delete(parent.children, name)
	b.unlink(id)
	return nil
}

// unlink decrements the reference count of inode id and frees it once
// the count reaches zero. Must be called with b.mu held.
func (b *MemoryBackend) unlink(id anyfs.Inode) {
	n, ok := b.nodes[id]
	if !ok {
		return
	}
	if n.nlink > 0 {
		n.nlink--
	}
	if n.nlink == 0 {
		delete(b.nodes, id)
	}
}

func (b *MemoryBackend) Rename(ctx context.Context, from, to anyfs.Path) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if anyfs.HasPrefixPath(to, from) && !from.IsRoot() {
		return anyfs.NewErrorPaths("rename", []string{from.String(), to.String()}, anyfs.KindInvalidOperation, nil)
	}
	srcParent, srcName, err := b.walkParent(from)
	if err != nil {
		return err
	}
	srcID, ok := srcParent.children[srcName]
	if !ok {
		return anyfs.NewError("rename", from.String(), anyfs.KindNotFound, nil)
	}
	dstParent, dstName, err := b.walkParent(to)
	if err != nil {
		return err
	}
	src := b.nodes[srcID]
	if dstID, exists := dstParent.children[dstName]; exists {
		dst := b.nodes[dstID]
		if src.typ == anyfs.TypeDirectory && dst.typ != anyfs.TypeDirectory {
			return anyfs.NewErrorPaths("rename", []string{from.String(), to.String()}, anyfs.KindNotADirectory, nil)
		}
		if src.typ != anyfs.TypeDirectory && dst.typ == anyfs.TypeDirectory {
			return anyfs.NewErrorPaths("rename", []string{from.String(), to.String()}, anyfs.KindIsADirectory, nil)
		}
		if dst.typ == anyfs.TypeDirectory && len(dst.children) > 0 {
			return anyfs.NewErrorPaths("rename", []string{from.String(), to.String()}, anyfs.KindDirectoryNotEmpty, nil)
		}
		delete(dstParent.children, dstName)
		b.unlink(dstID)
	}
	delete(srcParent.children, srcName)
	dstParent.children[dstName] = srcID
	return nil
}

func (b *MemoryBackend) Copy(ctx context.Context, from, to anyfs.Path) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	src, err := b.walk(from)
	if err != nil {
		return err
	}
	if src.typ != anyfs.TypeFile {
		return anyfs.NewErrorPaths("copy", []string{from.String(), to.String()}, anyfs.KindNotAFile, nil)
	}
	dstParent, dstName, err := b.walkParent(to)
	if err != nil {
		return err
	}
	if existing, ok := dstParent.children[dstName]; ok {
		n := b.nodes[existing]
		if n.typ == anyfs.TypeDirectory {
			return anyfs.NewErrorPaths("copy", []string{from.String(), to.String()}, anyfs.KindIsADirectory, nil)
		}
		n.data = append([]byte(nil), src.data...)
		n.modified = nowMs()
		return nil
	}
	id := newInode()
	now := nowMs()
	b.nodes[id] = &node{
		inode: id, typ: anyfs.TypeFile, mode: src.mode,
		data: append([]byte(nil), src.data...), nlink: 1,
		created: now, modified: now, accessed: now,
	}
	dstParent.children[dstName] = id
	return nil
}

func (b *MemoryBackend) Truncate(ctx context.Context, path anyfs.Path, size uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	n, err := b.walk(path)
	if err != nil {
		return err
	}
	if n.typ != anyfs.TypeFile {
		return anyfs.NewError("truncate", path.String(), anyfs.KindNotAFile, nil)
	}
	if uint64(len(n.data)) >= size {
		n.data = n.data[:size]
	} else {
		padded := make([]byte, size)
		copy(padded, n.data)
		n.data = padded
	}
	n.modified = nowMs()
	return nil
}

func (b *MemoryBackend) OpenWrite(ctx context.Context, path anyfs.Path) (anyfs.WriteStream, error) {
	return &memWriteStream{backend: b, path: path}, nil
}

type memWriteStream struct {
	backend *MemoryBackend
	path    anyfs.Path
	buf     bytes.Buffer
}

func (w *memWriteStream) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *memWriteStream) Close() error {
	return w.backend.Write(context.Background(), w.path, w.buf.Bytes())
}

// --- Directory ---

func (b *MemoryBackend) ReadDir(ctx context.Context, path anyfs.Path) ([]anyfs.DirEntry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n, err := b.walk(path)
	if err != nil {
		return nil, err
	}
	if n.typ != anyfs.TypeDirectory {
		return nil, anyfs.NewError("read_dir", path.String(), anyfs.KindNotADirectory, nil)
	}
	out := make([]anyfs.DirEntry, 0, len(n.children))
	for name, id := range n.children {
		child := b.nodes[id]
		var size *uint64
		if child.typ == anyfs.TypeFile {
			s := uint64(len(child.data))
			size = &s
		}
		out = append(out, anyfs.DirEntry{Name: name, Type: child.typ, Inode: child.inode, Size: size})
	}
	return out, nil
}

func (b *MemoryBackend) CreateDir(ctx context.Context, path anyfs.Path) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	parent, name, err := b.walkParent(path)
	if err != nil {
		return err
	}
	if _, exists := parent.children[name]; exists {
		return anyfs.NewError("create_dir", path.String(), anyfs.KindAlreadyExists, nil)
	}
	id := newInode()
	now := nowMs()
	b.nodes[id] = &node{
		inode: id, typ: anyfs.TypeDirectory, mode: 0o755,
		children: make(map[string]anyfs.Inode), nlink: 1,
		created: now, modified: now, accessed: now,
	}
	parent.children[name] = id
	return nil
}

func (b *MemoryBackend) CreateDirAll(ctx context.Context, path anyfs.Path) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	cur := b.nodes[b.root]
	for _, name := range path.Components() {
		if cur.typ != anyfs.TypeDirectory {
			return anyfs.NewError("create_dir_all", path.String(), anyfs.KindNotADirectory, nil)
		}
		id, exists := cur.children[name]
		if !exists {
			newID := newInode()
			now := nowMs()
			b.nodes[newID] = &node{
				inode: newID, typ: anyfs.TypeDirectory, mode: 0o755,
				children: make(map[string]anyfs.Inode), nlink: 1,
				created: now, modified: now, accessed: now,
			}
			cur.children[name] = newID
			cur = b.nodes[newID]
			continue
		}
		cur = b.nodes[id]
	}
	return nil
}

func (b *MemoryBackend) RemoveDir(ctx context.Context, path anyfs.Path) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	parent, name, err := b.walkParent(path)
	if err != nil {
		return err
	}
	id, ok := parent.children[name]
	if !ok {
		return anyfs.NewError("remove_dir", path.String(), anyfs.KindNotFound, nil)
	}
	n := b.nodes[id]
	if n.typ != anyfs.TypeDirectory {
		return anyfs.NewError("remove_dir", path.String(), anyfs.KindNotADirectory, nil)
	}
	if len(n.children) > 0 {
		return anyfs.NewError("remove_dir", path.String(), anyfs.KindDirectoryNotEmpty, nil)
	}
	delete(parent.children, name)
	b.unlink(id)
	return nil
}

func (b *MemoryBackend) RemoveDirAll(ctx context.Context, path anyfs.Path) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if path.IsRoot() {
		n := b.nodes[b.root]
		for name, id := range n.children {
			b.removeSubtree(id)
			delete(n.children, name)
		}
		return nil
	}
	parent, name, err := b.walkParent(path)
	if err != nil {
		return err
	}
	id, ok := parent.children[name]
	if !ok {
		return anyfs.NewError("remove_dir_all", path.String(), anyfs.KindNotFound, nil)
	}
	b.removeSubtree(id)
	delete(parent.children, name)
	return nil
}

// removeSubtree recursively frees id and, if it is a directory,
// everything below it. Must be called with b.mu held.
func (b *MemoryBackend) removeSubtree(id anyfs.Inode) {
	n, ok := b.nodes[id]
	if !ok {
		return
	}
	if n.typ == anyfs.TypeDirectory {
		for _, childID := range n.children {
			b.removeSubtree(childID)
		}
	}
	b.unlink(id)
}

// --- Link ---

func (b *MemoryBackend) Symlink(ctx context.Context, original string, link anyfs.Path) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	parent, name, err := b.walkParent(link)
	if err != nil {
		return err
	}
	if _, exists := parent.children[name]; exists {
		return anyfs.NewError("symlink", link.String(), anyfs.KindAlreadyExists, nil)
	}
	id := newInode()
	now := nowMs()
	b.nodes[id] = &node{
		inode: id, typ: anyfs.TypeSymlink, mode: 0o777,
		target: original, nlink: 1,
		created: now, modified: now, accessed: now,
	}
	parent.children[name] = id
	return nil
}

func (b *MemoryBackend) HardLink(ctx context.Context, original, link anyfs.Path) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	src, err := b.walk(original)
	if err != nil {
		return err
	}
	if src.typ != anyfs.TypeFile {
		return anyfs.NewErrorPaths("hard_link", []string{original.String(), link.String()}, anyfs.KindNotAFile, nil)
	}
	parent, name, err := b.walkParent(link)
	if err != nil {
		return err
	}
	if _, exists := parent.children[name]; exists {
		return anyfs.NewError("hard_link", link.String(), anyfs.KindAlreadyExists, nil)
	}
	parent.children[name] = src.inode
	src.nlink++
	return nil
}

func (b *MemoryBackend) ReadLink(ctx context.Context, path anyfs.Path) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n, err := b.walk(path)
	if err != nil {
		return "", err
	}
	if n.typ != anyfs.TypeSymlink {
		return "", anyfs.NewError("read_link", path.String(), anyfs.KindNotASymlink, nil)
	}
	return n.target, nil
}

func (b *MemoryBackend) SymlinkMetadata(ctx context.Context, path anyfs.Path) (anyfs.Metadata, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n, err := b.walk(path)
	if err != nil {
		return anyfs.Metadata{}, err
	}
	return metadataOf(n), nil
}

// --- Permissions / Sync / Stats ---

func (b *MemoryBackend) SetPermissions(ctx context.Context, path anyfs.Path, mode uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	n, err := b.walk(path)
	if err != nil {
		return err
	}
	n.mode = mode
	return nil
}

func (b *MemoryBackend) Sync(ctx context.Context) error { return nil }

func (b *MemoryBackend) Fsync(ctx context.Context, path anyfs.Path) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, err := b.walk(path)
	return err
}

func (b *MemoryBackend) Statfs(ctx context.Context) (anyfs.Statfs, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var total uint64
	for _, n := range b.nodes {
		if n.typ == anyfs.TypeFile {
			total += uint64(len(n.data))
		}
	}
	return anyfs.Statfs{
		TotalBytes:      ^uint64(0),
		AvailableBytes:  ^uint64(0) - total,
		TotalInodes:     ^uint64(0),
		AvailableInodes: ^uint64(0) - uint64(len(b.nodes)),
		BlockSize:       4096,
	}, nil
}

// --- Inode ---

func (b *MemoryBackend) PathToInode(ctx context.Context, path anyfs.Path) (anyfs.Inode, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n, err := b.walk(path)
	if err != nil {
		return 0, err
	}
	return n.inode, nil
}

func (b *MemoryBackend) InodeToPath(ctx context.Context, inode anyfs.Inode) (anyfs.Path, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if inode == b.root {
		return anyfs.Root, nil
	}
	path, ok := b.findPath(b.root, anyfs.Root, inode)
	if !ok {
		return "", anyfs.NewError("inode_to_path", "", anyfs.KindNotFound, nil)
	}
	return path, nil
}

func (b *MemoryBackend) findPath(id anyfs.Inode, prefix anyfs.Path, target anyfs.Inode) (anyfs.Path, bool) {
	n := b.nodes[id]
	if n.typ != anyfs.TypeDirectory {
		return "", false
	}
	for name, childID := range n.children {
		candidate := prefix.Join(name)
		if childID == target {
			return candidate, true
		}
		if b.nodes[childID].typ == anyfs.TypeDirectory {
			if p, ok := b.findPath(childID, candidate, target); ok {
				return p, true
			}
		}
	}
	return "", false
}

func (b *MemoryBackend) Lookup(ctx context.Context, parent anyfs.Inode, name string) (anyfs.Inode, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n, ok := b.nodes[parent]
	if !ok || n.typ != anyfs.TypeDirectory {
		return 0, anyfs.NewError("lookup", name, anyfs.KindNotADirectory, nil)
	}
	id, ok := n.children[name]
	if !ok {
		return 0, anyfs.NewError("lookup", name, anyfs.KindNotFound, nil)
	}
	return id, nil
}

func (b *MemoryBackend) MetadataByInode(ctx context.Context, inode anyfs.Inode) (anyfs.Metadata, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n, ok := b.nodes[inode]
	if !ok {
		return anyfs.Metadata{}, anyfs.NewError("metadata_by_inode", "", anyfs.KindNotFound, nil)
	}
	return metadataOf(n), nil
}

var _ io.Closer = readCloser{}

var _ anyfs.FsPosix = (*MemoryBackend)(nil)
