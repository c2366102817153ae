package sqltable

import (
	"context"
	"database/sql"

	"github.com/dk26/anyfs"
)

func (b *SqlTableBackend) ReadDir(ctx context.Context, path anyfs.Path) ([]anyfs.DirEntry, error) {
	n, err := walk(ctx, b.db, path)
	if err != nil {
		return nil, err
	}
	if typeOf(n.kind) != anyfs.TypeDirectory {
		return nil, anyfs.NewError("read_dir", path.String(), anyfs.KindNotADirectory, nil)
	}
	rows, err := b.db.QueryContext(ctx, `SELECT name, child_inode FROM edges WHERE parent_inode = ? ORDER BY name`, n.inode)
	if err != nil {
		return nil, anyfs.NewError("read_dir", path.String(), anyfs.KindBackend, err)
	}
	defer rows.Close()

	var entries []anyfs.DirEntry
	for rows.Next() {
		var name string
		var child int64
		if err := rows.Scan(&name, &child); err != nil {
			return nil, anyfs.NewError("read_dir", path.String(), anyfs.KindBackend, err)
		}
		cn, err := getNode(ctx, b.db, anyfs.Inode(child))
		if err != nil {
			return nil, err
		}
		size := cn.metadata().Size
		entries = append(entries, anyfs.DirEntry{
			Name:  name,
			Type:  typeOf(cn.kind),
			Inode: anyfs.Inode(child),
			Size:  &size,
		})
	}
	return entries, nil
}

func (b *SqlTableBackend) CreateDir(ctx context.Context, path anyfs.Path) error {
	return b.withTx(ctx, func(tx *sql.Tx) error {
		parent, name, err := walkParent(ctx, tx, path)
		if err != nil {
			return err
		}
		if _, err := childInode(ctx, tx, parent, name); err == nil {
			return anyfs.NewError("create_dir", path.String(), anyfs.KindAlreadyExists, nil)
		}
		return b.insertDir(ctx, tx, parent, name)
	})
}

func (b *SqlTableBackend) insertDir(ctx context.Context, tx *sql.Tx, parent anyfs.Inode, name string) error {
	now := nowMs()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO nodes (kind, size, mode, nlink, ctime, mtime, atime) VALUES (?,?,?,?,?,?,?)`,
		kindDirectory, 0, 0o755, 1, now, now, now)
	if err != nil {
		return anyfs.NewError("create_dir", name, anyfs.KindBackend, err)
	}
	inode, _ := res.LastInsertId()
	_, err = tx.ExecContext(ctx, `INSERT INTO edges (parent_inode, name, child_inode) VALUES (?,?,?)`, int64(parent), name, inode)
	return err
}

func (b *SqlTableBackend) CreateDirAll(ctx context.Context, path anyfs.Path) error {
	return b.withTx(ctx, func(tx *sql.Tx) error {
		cur := rootInode
		for _, name := range path.Components() {
			n, err := getNode(ctx, tx, cur)
			if err != nil {
				return err
			}
			if typeOf(n.kind) != anyfs.TypeDirectory {
				return anyfs.NewError("create_dir_all", path.String(), anyfs.KindNotADirectory, nil)
			}
			child, err := childInode(ctx, tx, cur, name)
			if err != nil {
				if err := b.insertDir(ctx, tx, cur, name); err != nil {
					return err
				}
				child, err = childInode(ctx, tx, cur, name)
				if err != nil {
					return err
				}
			}
			cur = child
		}
		return nil
	})
}

func (b *SqlTableBackend) RemoveDir(ctx context.Context, path anyfs.Path) error {
	return b.withTx(ctx, func(tx *sql.Tx) error {
		parent, name, err := walkParent(ctx, tx, path)
		if err != nil {
			return err
		}
		id, err := childInode(ctx, tx, parent, name)
		if err != nil {
			return anyfs.NewError("remove_dir", path.String(), anyfs.KindNotFound, nil)
		}
		n, err := getNode(ctx, tx, id)
		if err != nil {
			return err
		}
		if typeOf(n.kind) != anyfs.TypeDirectory {
			return anyfs.NewError("remove_dir", path.String(), anyfs.KindNotADirectory, nil)
		}
		var count int
		row := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM edges WHERE parent_inode = ?`, id)
		if err := row.Scan(&count); err != nil {
			return err
		}
		if count > 0 {
			return anyfs.NewError("remove_dir", path.String(), anyfs.KindDirectoryNotEmpty, nil)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM edges WHERE parent_inode = ? AND name = ?`, int64(parent), name); err != nil {
			return err
		}
		return unlinkNode(ctx, tx, n)
	})
}

func (b *SqlTableBackend) RemoveDirAll(ctx context.Context, path anyfs.Path) error {
	return b.withTx(ctx, func(tx *sql.Tx) error {
		parent, name, err := walkParent(ctx, tx, path)
		if err != nil {
			return err
		}
		id, err := childInode(ctx, tx, parent, name)
		if err != nil {
			return anyfs.NewError("remove_dir_all", path.String(), anyfs.KindNotFound, nil)
		}
		if err := removeSubtree(ctx, tx, anyfs.Inode(id)); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM edges WHERE parent_inode = ? AND name = ?`, int64(parent), name)
		return err
	})
}

// removeSubtree deletes inode and, if it is a directory, everything
// beneath it, recursively.
func removeSubtree(ctx context.Context, tx *sql.Tx, inode anyfs.Inode) error {
	n, err := getNode(ctx, tx, inode)
	if err != nil {
		return err
	}
	if typeOf(n.kind) == anyfs.TypeDirectory {
		rows, err := tx.QueryContext(ctx, `SELECT child_inode FROM edges WHERE parent_inode = ?`, int64(inode))
		if err != nil {
			return err
		}
		var children []int64
		for rows.Next() {
			var c int64
			if err := rows.Scan(&c); err != nil {
				rows.Close()
				return err
			}
			children = append(children, c)
		}
		rows.Close()
		for _, c := range children {
			if err := removeSubtree(ctx, tx, anyfs.Inode(c)); err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM edges WHERE parent_inode = ?`, int64(inode)); err != nil {
			return err
		}
	}
	return unlinkNode(ctx, tx, n)
}
