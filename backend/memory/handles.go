package memory

import (
	"context"
	"sync/atomic"

	"github.com/dk26/anyfs"
)

var handleCounter uint64

func nextHandle() anyfs.Handle {
	return anyfs.Handle(atomic.AddUint64(&handleCounter, 1))
}

// Open returns a Handle for path, honoring OpenCreate/OpenTruncate the
// way Write/CreateDir do for the higher-level capabilities.
func (b *MemoryBackend) Open(ctx context.Context, path anyfs.Path, flags anyfs.OpenFlags) (anyfs.Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n, err := b.walk(path)
	if err != nil {
		if !anyfs.Is(err, anyfs.KindNotFound) || flags&anyfs.OpenCreate == 0 {
			return 0, err
		}
		parent, name, perr := b.walkParent(path)
		if perr != nil {
			return 0, perr
		}
		id := newInode()
		now := nowMs()
		b.nodes[id] = &node{inode: id, typ: anyfs.TypeFile, mode: 0o644, nlink: 1, created: now, modified: now, accessed: now}
		parent.children[name] = id
		n = b.nodes[id]
	}
	if n.typ != anyfs.TypeFile {
		return 0, anyfs.NewError("open", path.String(), anyfs.KindNotAFile, nil)
	}
	if flags&anyfs.OpenTruncate != 0 {
		n.data = nil
	}
	h := nextHandle()
	b.handles[h] = &openHandle{inode: n.inode, flags: flags}
	return h, nil
}

func (b *MemoryBackend) ReadAt(ctx context.Context, h anyfs.Handle, buf []byte, off uint64) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	oh, ok := b.handles[h]
	if !ok {
		return 0, anyfs.NewError("read_at", "", anyfs.KindInvalidOperation, nil)
	}
	n, ok := b.nodes[oh.inode]
	if !ok {
		return 0, anyfs.NewError("read_at", "", anyfs.KindNotFound, nil)
	}
	if off >= uint64(len(n.data)) {
		return 0, nil
	}
	return copy(buf, n.data[off:]), nil
}

func (b *MemoryBackend) WriteAt(ctx context.Context, h anyfs.Handle, data []byte, off uint64) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	oh, ok := b.handles[h]
	if !ok {
		return 0, anyfs.NewError("write_at", "", anyfs.KindInvalidOperation, nil)
	}
	n, ok := b.nodes[oh.inode]
	if !ok {
		return 0, anyfs.NewError("write_at", "", anyfs.KindNotFound, nil)
	}
	end := off + uint64(len(data))
	if end > uint64(len(n.data)) {
		grown := make([]byte, end)
		copy(grown, n.data)
		n.data = grown
	}
	copy(n.data[off:end], data)
	n.modified = nowMs()
	return len(data), nil
}

func (b *MemoryBackend) CloseHandle(ctx context.Context, h anyfs.Handle) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handles, h)
	return nil
}

// Lock/TryLock/Unlock implement a simple per-inode advisory lock. There
// is no blocking wait: callers that need that build it on top of
// TryLock.

func (b *MemoryBackend) Lock(ctx context.Context, h anyfs.Handle) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	oh, ok := b.handles[h]
	if !ok {
		return anyfs.NewError("lock", "", anyfs.KindInvalidOperation, nil)
	}
	b.locks[oh.inode] = true
	return nil
}

func (b *MemoryBackend) TryLock(ctx context.Context, h anyfs.Handle) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	oh, ok := b.handles[h]
	if !ok {
		return false, anyfs.NewError("try_lock", "", anyfs.KindInvalidOperation, nil)
	}
	if b.locks[oh.inode] {
		return false, nil
	}
	b.locks[oh.inode] = true
	return true, nil
}

func (b *MemoryBackend) Unlock(ctx context.Context, h anyfs.Handle) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	oh, ok := b.handles[h]
	if !ok {
		return anyfs.NewError("unlock", "", anyfs.KindInvalidOperation, nil)
	}
	delete(b.locks, oh.inode)
	return nil
}
