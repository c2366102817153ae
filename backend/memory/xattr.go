package memory

import (
	"context"

	"github.com/dk26/anyfs"
)

func (b *MemoryBackend) GetXattr(ctx context.Context, path anyfs.Path, name string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n, err := b.walk(path)
	if err != nil {
		return nil, err
	}
	v, ok := n.xattrs[name]
	if !ok {
		return nil, anyfs.NewError("get_xattr", path.String(), anyfs.KindNotFound, nil)
	}
	return append([]byte(nil), v...), nil
}

func (b *MemoryBackend) SetXattr(ctx context.Context, path anyfs.Path, name string, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	n, err := b.walk(path)
	if err != nil {
		return err
	}
	if n.xattrs == nil {
		n.xattrs = make(map[string][]byte)
	}
	n.xattrs[name] = append([]byte(nil), value...)
	return nil
}

func (b *MemoryBackend) RemoveXattr(ctx context.Context, path anyfs.Path, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	n, err := b.walk(path)
	if err != nil {
		return err
	}
	if _, ok := n.xattrs[name]; !ok {
		return anyfs.NewError("remove_xattr", path.String(), anyfs.KindNotFound, nil)
	}
	delete(n.xattrs, name)
	return nil
}

func (b *MemoryBackend) ListXattr(ctx context.Context, path anyfs.Path) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n, err := b.walk(path)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(n.xattrs))
	for k := range n.xattrs {
		out = append(out, k)
	}
	return out, nil
}
