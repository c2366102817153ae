package sqltable

import (
	"context"
	"database/sql"
	"os"
	"time"

	"github.com/dk26/anyfs"
)

func nowMs() int64 { return time.Now().UnixMilli() }

func removeFile(path string) error { return os.Remove(path) }

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type nodeRow struct {
	inode   int64
	kind    int
	content sql.NullInt64
	target  sql.NullString
	size    int64
	mode    int64
	nlink   int64
	ctime   sql.NullInt64
	mtime   sql.NullInt64
	atime   sql.NullInt64
}

func (n nodeRow) metadata() anyfs.Metadata {
	m := anyfs.Metadata{
		Type:        typeOf(n.kind),
		Size:        uint64(n.size),
		Nlink:       uint32(n.nlink),
		Permissions: uint32(n.mode),
		Inode:       anyfs.Inode(n.inode),
	}
	if n.ctime.Valid {
		v := n.ctime.Int64
		m.CreatedMs = &v
	}
	if n.mtime.Valid {
		v := n.mtime.Int64
		m.ModifiedMs = &v
	}
	if n.atime.Valid {
		v := n.atime.Int64
		m.AccessedMs = &v
	}
	return m
}

func getNode(ctx context.Context, q querier, inode anyfs.Inode) (nodeRow, error) {
	var n nodeRow
	n.inode = int64(inode)
	row := q.QueryRowContext(ctx,
		`SELECT kind, content_id, symlink_target, size, mode, nlink, ctime, mtime, atime FROM nodes WHERE inode = ?`,
		int64(inode))
	err := row.Scan(&n.kind, &n.content, &n.target, &n.size, &n.mode, &n.nlink, &n.ctime, &n.mtime, &n.atime)
	if err == sql.ErrNoRows {
		return nodeRow{}, anyfs.NewError("lookup", "", anyfs.KindNotFound, nil)
	}
	if err != nil {
		return nodeRow{}, anyfs.NewError("lookup", "", anyfs.KindBackend, err)
	}
	return n, nil
}

func childInode(ctx context.Context, q querier, parent anyfs.Inode, name string) (anyfs.Inode, error) {
	var id int64
	row := q.QueryRowContext(ctx, `SELECT child_inode FROM edges WHERE parent_inode = ? AND name = ?`, int64(parent), name)
	err := row.Scan(&id)
	if err == sql.ErrNoRows {
		return 0, anyfs.NewError("lookup", name, anyfs.KindNotFound, nil)
	}
	if err != nil {
		return 0, anyfs.NewError("lookup", name, anyfs.KindBackend, err)
	}
	return anyfs.Inode(id), nil
}

// walk performs a literal, non-following lookup, exactly like
// memory.MemoryBackend's walk: by the time a path reaches this layer,
// storage.FileStorage has already resolved any symlinks the operation's
// contract requires it to follow.
func walk(ctx context.Context, q querier, path anyfs.Path) (nodeRow, error) {
	cur := rootInode
	comps := path.Components()
	for i, name := range comps {
		n, err := getNode(ctx, q, cur)
		if err != nil {
			return nodeRow{}, err
		}
		if typeOf(n.kind) != anyfs.TypeDirectory {
			return nodeRow{}, anyfs.NewError("lookup", path.String(), anyfs.KindNotADirectory, nil)
		}
		child, err := childInode(ctx, q, cur, name)
		if err != nil {
			if anyfs.Is(err, anyfs.KindNotFound) {
				return nodeRow{}, anyfs.NewError("lookup", path.String(), anyfs.KindNotFound, nil)
			}
			return nodeRow{}, err
		}
		cur = child
		if i == len(comps)-1 {
			return getNode(ctx, q, cur)
		}
	}
	return getNode(ctx, q, rootInode)
}

func walkParent(ctx context.Context, q querier, path anyfs.Path) (anyfs.Inode, string, error) {
	if path.IsRoot() {
		return 0, "", anyfs.NewError("lookup", path.String(), anyfs.KindInvalidOperation, nil)
	}
	parent, err := walk(ctx, q, path.Dir())
	if err != nil {
		return 0, "", err
	}
	if typeOf(parent.kind) != anyfs.TypeDirectory {
		return 0, "", anyfs.NewError("lookup", path.String(), anyfs.KindNotADirectory, nil)
	}
	return anyfs.Inode(parent.inode), path.Base(), nil
}
