package sqltable

import (
	"context"
	"database/sql"

	"github.com/dk26/anyfs"
)

func (b *SqlTableBackend) Symlink(ctx context.Context, original string, link anyfs.Path) error {
	return b.withTx(ctx, func(tx *sql.Tx) error {
		parent, name, err := walkParent(ctx, tx, link)
		if err != nil {
			return err
		}
		if _, err := childInode(ctx, tx, parent, name); err == nil {
			return anyfs.NewErrorPaths("symlink", []string{original, link.String()}, anyfs.KindAlreadyExists, nil)
		}
		now := nowMs()
		res, err := tx.ExecContext(ctx,
			`INSERT INTO nodes (kind, symlink_target, size, mode, nlink, ctime, mtime, atime) VALUES (?,?,?,?,?,?,?,?)`,
			kindSymlink, original, len(original), 0o777, 1, now, now, now)
		if err != nil {
			return anyfs.NewErrorPaths("symlink", []string{original, link.String()}, anyfs.KindBackend, err)
		}
		inode, _ := res.LastInsertId()
		_, err = tx.ExecContext(ctx, `INSERT INTO edges (parent_inode, name, child_inode) VALUES (?,?,?)`, int64(parent), name, inode)
		return err
	})
}

func (b *SqlTableBackend) HardLink(ctx context.Context, original, link anyfs.Path) error {
	return b.withTx(ctx, func(tx *sql.Tx) error {
		origNode, err := walk(ctx, tx, original)
		if err != nil {
			return err
		}
		if typeOf(origNode.kind) != anyfs.TypeFile {
			return anyfs.NewErrorPaths("hard_link", []string{original.String(), link.String()}, anyfs.KindNotAFile, nil)
		}
		parent, name, err := walkParent(ctx, tx, link)
		if err != nil {
			return err
		}
		if _, err := childInode(ctx, tx, parent, name); err == nil {
			return anyfs.NewErrorPaths("hard_link", []string{original.String(), link.String()}, anyfs.KindAlreadyExists, nil)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO edges (parent_inode, name, child_inode) VALUES (?,?,?)`, int64(parent), name, origNode.inode); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `UPDATE nodes SET nlink = nlink + 1 WHERE inode = ?`, origNode.inode)
		return err
	})
}

func (b *SqlTableBackend) ReadLink(ctx context.Context, path anyfs.Path) (string, error) {
	n, err := walk(ctx, b.db, path)
	if err != nil {
		return "", err
	}
	if typeOf(n.kind) != anyfs.TypeSymlink {
		return "", anyfs.NewError("read_link", path.String(), anyfs.KindNotASymlink, nil)
	}
	if !n.target.Valid {
		return "", nil
	}
	return n.target.String, nil
}

func (b *SqlTableBackend) SymlinkMetadata(ctx context.Context, path anyfs.Path) (anyfs.Metadata, error) {
	n, err := walk(ctx, b.db, path)
	if err != nil {
		return anyfs.Metadata{}, err
	}
	return n.metadata(), nil
}
