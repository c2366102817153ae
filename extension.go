package anyfs

import "context"

// Ext is a blanket convenience wrapper available for any backend that
// implements at least Read: it adds is_file/is_dir/size/mod-time style
// helpers with no new capability contract of its own, pure composition
// over Metadata.
type Ext[B Read] struct {
	Backend B
}

// NewExt wraps backend with the Ext convenience surface.
func NewExt[B Read](backend B) Ext[B] { return Ext[B]{Backend: backend} }

// IsFile reports whether path exists and is a regular file.
func (e Ext[B]) IsFile(ctx context.Context, path Path) (bool, error) {
	m, err := e.Backend.Metadata(ctx, path)
	if Is(err, KindNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return m.IsFile(), nil
}

// IsDir reports whether path exists and is a directory.
func (e Ext[B]) IsDir(ctx context.Context, path Path) (bool, error) {
	m, err := e.Backend.Metadata(ctx, path)
	if Is(err, KindNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return m.IsDir(), nil
}

// Size returns the size of path, following symlinks.
func (e Ext[B]) Size(ctx context.Context, path Path) (uint64, error) {
	m, err := e.Backend.Metadata(ctx, path)
	if err != nil {
		return 0, err
	}
	return m.Size, nil
}

// ModTime returns the modification time of path in epoch milliseconds,
// if the backend records one.
func (e Ext[B]) ModTime(ctx context.Context, path Path) (int64, bool, error) {
	m, err := e.Backend.Metadata(ctx, path)
	if err != nil {
		return 0, false, err
	}
	if m.ModifiedMs == nil {
		return 0, false, nil
	}
	return *m.ModifiedMs, true, nil
}
