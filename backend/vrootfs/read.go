package vrootfs

import (
	"context"
	"errors"
	"io"
	"os"
	"unicode/utf8"

	"github.com/dk26/anyfs"
)

func (b *VRootFsBackend) Read(ctx context.Context, path anyfs.Path) ([]byte, error) {
	resolved, err := b.canon(ctx, path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(b.hostPath(resolved))
	if err != nil {
		return nil, mapErr("read", path, err)
	}
	if info.IsDir() {
		return nil, anyfs.NewError("read", path.String(), anyfs.KindIsADirectory, nil)
	}
	data, err := os.ReadFile(b.hostPath(resolved))
	if err != nil {
		return nil, mapErr("read", path, err)
	}
	return data, nil
}

func (b *VRootFsBackend) ReadToString(ctx context.Context, path anyfs.Path) (string, error) {
	data, err := b.Read(ctx, path)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", anyfs.NewError("read_to_string", path.String(), anyfs.KindInvalidUtf8, nil)
	}
	return string(data), nil
}

func (b *VRootFsBackend) ReadRange(ctx context.Context, path anyfs.Path, offset, length uint64) ([]byte, error) {
	resolved, err := b.canon(ctx, path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(b.hostPath(resolved))
	if err != nil {
		return nil, mapErr("read_range", path, err)
	}
	defer f.Close()
	buf := make([]byte, length)
	n, err := f.ReadAt(buf, int64(offset))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, mapErr("read_range", path, err)
	}
	return buf[:n], nil
}

func (b *VRootFsBackend) Exists(ctx context.Context, path anyfs.Path) (bool, error) {
	resolved, err := b.canon(ctx, path)
	if anyfs.Is(err, anyfs.KindNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(b.hostPath(resolved)); os.IsNotExist(err) {
		return false, nil
	} else if err != nil {
		return false, mapErr("exists", path, err)
	}
	return true, nil
}

func (b *VRootFsBackend) Metadata(ctx context.Context, path anyfs.Path) (anyfs.Metadata, error) {
	resolved, err := b.canon(ctx, path)
	if err != nil {
		return anyfs.Metadata{}, err
	}
	info, err := os.Stat(b.hostPath(resolved))
	if err != nil {
		return anyfs.Metadata{}, mapErr("metadata", path, err)
	}
	return b.metadataOf(info), nil
}

func (b *VRootFsBackend) OpenRead(ctx context.Context, path anyfs.Path) (anyfs.ReadStream, error) {
	resolved, err := b.canon(ctx, path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(b.hostPath(resolved))
	if err != nil {
		return nil, mapErr("open_read", path, err)
	}
	return hostReadCloser{f}, nil
}
