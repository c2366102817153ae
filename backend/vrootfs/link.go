package vrootfs

import (
	"context"
	"os"

	"github.com/dk26/anyfs"
)

func (b *VRootFsBackend) Symlink(ctx context.Context, original string, link anyfs.Path) error {
	resolved, err := b.canonFinal(ctx, link)
	if err != nil {
		return err
	}
	if err := os.Symlink(original, b.hostPath(resolved)); err != nil {
		return anyfs.NewErrorPaths("symlink", []string{original, link.String()}, mapKind(err), err)
	}
	return nil
}

func (b *VRootFsBackend) HardLink(ctx context.Context, original, link anyfs.Path) error {
	src, err := b.canon(ctx, original)
	if err != nil {
		return err
	}
	info, err := os.Stat(b.hostPath(src))
	if err != nil {
		return anyfs.NewErrorPaths("hard_link", []string{original.String(), link.String()}, mapKind(err), err)
	}
	if info.IsDir() {
		return anyfs.NewErrorPaths("hard_link", []string{original.String(), link.String()}, anyfs.KindNotAFile, nil)
	}
	dst, err := b.canonFinal(ctx, link)
	if err != nil {
		return err
	}
	if err := os.Link(b.hostPath(src), b.hostPath(dst)); err != nil {
		return anyfs.NewErrorPaths("hard_link", []string{original.String(), link.String()}, mapKind(err), err)
	}
	return nil
}

// ReadLink and SymlinkMetadata (the Link capability's literal forms)
// are implemented in vrootfs.go, where they double as this backend's
// own vpath.Resolver: both rely on the host kernel resolving
// intermediate path components the same way it would for any lstat(2)
// call, which is also what keeps canon()'s component-at-a-time walk
// correctly contained.
