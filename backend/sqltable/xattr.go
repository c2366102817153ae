package sqltable

import (
	"context"
	"database/sql"

	"github.com/dk26/anyfs"
)

func (b *SqlTableBackend) GetXattr(ctx context.Context, path anyfs.Path, name string) ([]byte, error) {
	n, err := walk(ctx, b.db, path)
	if err != nil {
		return nil, err
	}
	var value []byte
	row := b.db.QueryRowContext(ctx, `SELECT value FROM xattrs WHERE inode = ? AND name = ?`, n.inode, name)
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return nil, anyfs.NewError("get_xattr", path.String(), anyfs.KindNotFound, nil)
		}
		return nil, anyfs.NewError("get_xattr", path.String(), anyfs.KindBackend, err)
	}
	return value, nil
}

func (b *SqlTableBackend) SetXattr(ctx context.Context, path anyfs.Path, name string, value []byte) error {
	return b.withTx(ctx, func(tx *sql.Tx) error {
		n, err := walk(ctx, tx, path)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO xattrs (inode, name, value) VALUES (?,?,?)
			 ON CONFLICT(inode, name) DO UPDATE SET value = excluded.value`,
			n.inode, name, value)
		return err
	})
}

func (b *SqlTableBackend) RemoveXattr(ctx context.Context, path anyfs.Path, name string) error {
	return b.withTx(ctx, func(tx *sql.Tx) error {
		n, err := walk(ctx, tx, path)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM xattrs WHERE inode = ? AND name = ?`, n.inode, name)
		if err != nil {
			return err
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			return anyfs.NewError("remove_xattr", path.String(), anyfs.KindNotFound, nil)
		}
		return nil
	})
}

func (b *SqlTableBackend) ListXattr(ctx context.Context, path anyfs.Path) ([]string, error) {
	n, err := walk(ctx, b.db, path)
	if err != nil {
		return nil, err
	}
	rows, err := b.db.QueryContext(ctx, `SELECT name FROM xattrs WHERE inode = ? ORDER BY name`, n.inode)
	if err != nil {
		return nil, anyfs.NewError("list_xattr", path.String(), anyfs.KindBackend, err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, anyfs.NewError("list_xattr", path.String(), anyfs.KindBackend, err)
		}
		names = append(names, name)
	}
	return names, nil
}
