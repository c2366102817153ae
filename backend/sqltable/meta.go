package sqltable

import (
	"context"
	"database/sql"

	"github.com/dk26/anyfs"
)

func (b *SqlTableBackend) SetPermissions(ctx context.Context, path anyfs.Path, mode uint32) error {
	return b.withTx(ctx, func(tx *sql.Tx) error {
		n, err := walk(ctx, tx, path)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `UPDATE nodes SET mode = ? WHERE inode = ?`, mode, n.inode)
		return err
	})
}

// Sync checkpoints the write-ahead log, matching the durability contract
// a single fsync(2) of the store file would give.
func (b *SqlTableBackend) Sync(ctx context.Context) error {
	_, err := b.db.ExecContext(ctx, `PRAGMA wal_checkpoint(FULL)`)
	if err != nil {
		return anyfs.NewError("sync", "", anyfs.KindBackend, err)
	}
	return nil
}

// Fsync is equivalent to Sync: sqlite has no concept of per-file
// durability finer than the whole store.
func (b *SqlTableBackend) Fsync(ctx context.Context, path anyfs.Path) error {
	if _, err := walk(ctx, b.db, path); err != nil {
		return err
	}
	return b.Sync(ctx)
}

func (b *SqlTableBackend) Statfs(ctx context.Context) (anyfs.Statfs, error) {
	var nodeCount int64
	row := b.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM nodes`)
	if err := row.Scan(&nodeCount); err != nil {
		return anyfs.Statfs{}, anyfs.NewError("statfs", "", anyfs.KindBackend, err)
	}
	var totalBytes sql.NullInt64
	row = b.db.QueryRowContext(ctx, `SELECT SUM(LENGTH(bytes)) FROM contents`)
	if err := row.Scan(&totalBytes); err != nil {
		return anyfs.Statfs{}, anyfs.NewError("statfs", "", anyfs.KindBackend, err)
	}
	return anyfs.Statfs{
		TotalBytes:     uint64(totalBytes.Int64),
		AvailableBytes: 0,
		TotalInodes:    uint64(nodeCount),
		BlockSize:      4096,
	}, nil
}
