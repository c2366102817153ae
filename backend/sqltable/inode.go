package sqltable

import (
	"context"

	"github.com/dk26/anyfs"
)

func (b *SqlTableBackend) PathToInode(ctx context.Context, path anyfs.Path) (anyfs.Inode, error) {
	n, err := walk(ctx, b.db, path)
	if err != nil {
		return 0, err
	}
	return anyfs.Inode(n.inode), nil
}

// InodeToPath reconstructs a path by walking parent edges up to the
// root. The nodes/edges schema has no reverse (child -> parent) index,
// so this is a linear scan per level; acceptable for the occasional
// inode-identity lookups InodeOps callers make.
func (b *SqlTableBackend) InodeToPath(ctx context.Context, inode anyfs.Inode) (anyfs.Path, error) {
	if inode == rootInode {
		return anyfs.Root, nil
	}
	var components []string
	cur := inode
	for cur != rootInode {
		var parent int64
		var name string
		row := b.db.QueryRowContext(ctx, `SELECT parent_inode, name FROM edges WHERE child_inode = ? LIMIT 1`, int64(cur))
		if err := row.Scan(&parent, &name); err != nil {
			return "", anyfs.NewError("inode_to_path", "", anyfs.KindNotFound, nil)
		}
		components = append([]string{name}, components...)
		cur = anyfs.Inode(parent)
	}
	return anyfs.FromComponents(components), nil
}

func (b *SqlTableBackend) Lookup(ctx context.Context, parent anyfs.Inode, name string) (anyfs.Inode, error) {
	return childInode(ctx, b.db, parent, name)
}

func (b *SqlTableBackend) MetadataByInode(ctx context.Context, inode anyfs.Inode) (anyfs.Metadata, error) {
	n, err := getNode(ctx, b.db, inode)
	if err != nil {
		return anyfs.Metadata{}, err
	}
	return n.metadata(), nil
}
