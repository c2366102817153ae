// Package sqltable provides SqlTableBackend: a single-file embedded SQL
// store (schema: nodes, edges, contents, xattrs) with transactional
// mutations and a write-ahead log for concurrent reads.
//
// Grounded on rclone's backend/cache/storage_persistent.go, which opens
// a single-file store (there, bbolt) and wraps every mutation in an
// Update(func(tx) error) transaction; the same wrap-every-mutation
// shape is reused here with database/sql transactions against sqlite.
package sqltable

import (
	"context"
	"database/sql"

	"github.com/dk26/anyfs"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS schema_meta (key TEXT PRIMARY KEY, value TEXT);
CREATE TABLE IF NOT EXISTS nodes (
	inode INTEGER PRIMARY KEY AUTOINCREMENT,
	kind INTEGER NOT NULL,
	content_id INTEGER,
	symlink_target TEXT,
	size INTEGER NOT NULL DEFAULT 0,
	mode INTEGER NOT NULL,
	nlink INTEGER NOT NULL,
	ctime INTEGER,
	mtime INTEGER,
	atime INTEGER
);
CREATE TABLE IF NOT EXISTS edges (
	parent_inode INTEGER NOT NULL,
	name TEXT NOT NULL,
	child_inode INTEGER NOT NULL,
	PRIMARY KEY (parent_inode, name)
);
CREATE TABLE IF NOT EXISTS contents (
	content_id INTEGER PRIMARY KEY AUTOINCREMENT,
	bytes BLOB,
	refcount INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS xattrs (
	inode INTEGER NOT NULL,
	name TEXT NOT NULL,
	value BLOB,
	PRIMARY KEY (inode, name)
);
`

// kind mirrors anyfs.FileType as stored in the nodes table.
const (
	kindFile      = 0
	kindDirectory = 1
	kindSymlink   = 2
)

func kindOf(t anyfs.FileType) int {
	switch t {
	case anyfs.TypeDirectory:
		return kindDirectory
	case anyfs.TypeSymlink:
		return kindSymlink
	default:
		return kindFile
	}
}

func typeOf(k int) anyfs.FileType {
	switch k {
	case kindDirectory:
		return anyfs.TypeDirectory
	case kindSymlink:
		return anyfs.TypeSymlink
	default:
		return anyfs.TypeFile
	}
}

// rootInode is the fixed, never-reclaimed inode of the backend's root
// directory.
const rootInode anyfs.Inode = 1

// SqlTableBackend is a single-file persistent filesystem store backed
// by sqlite.
type SqlTableBackend struct {
	db   *sql.DB
	path string
}

// Open opens the store at path, creating it (and the root directory
// row) if it does not exist.
func Open(path string) (*SqlTableBackend, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, errors.Wrapf(err, "sqltable: failed to open %q", path)
	}
	db.SetMaxOpenConns(1) // sqlite does not benefit from a pool of writers

	b := &SqlTableBackend{db: db, path: path}
	if err := b.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	logrus.WithField("path", path).Debug("sqltable: backend opened")
	return b, nil
}

func (b *SqlTableBackend) migrate() error {
	if _, err := b.db.Exec(schema); err != nil {
		return errors.Wrap(err, "sqltable: failed to apply schema")
	}
	return b.withTx(context.Background(), func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT OR IGNORE INTO schema_meta (key, value) VALUES ('schema_version', ?)`, schemaVersion); err != nil {
			return err
		}
		var existing int
		row := tx.QueryRow(`SELECT COUNT(*) FROM nodes WHERE inode = ?`, rootInode)
		if err := row.Scan(&existing); err != nil {
			return err
		}
		if existing > 0 {
			return nil
		}
		_, err := tx.Exec(
			`INSERT INTO nodes (inode, kind, size, mode, nlink, ctime, mtime, atime) VALUES (?,?,?,?,?,?,?,?)`,
			rootInode, kindDirectory, 0, 0o755, 1, nowMs(), nowMs(), nowMs(),
		)
		return err
	})
}

// Close closes the underlying sqlite connection.
func (b *SqlTableBackend) Close() error {
	logrus.WithField("path", b.path).Debug("sqltable: backend closed")
	return b.db.Close()
}

// Destroy deletes the store file at path. It does not close any backend
// that has the file open.
func Destroy(path string) error {
	return removeFile(path)
}

// withTx runs fn inside a transaction, committing on success and
// rolling back on error or panic, mirroring storage_persistent.go's
// db.Update(func(tx) error) shape.
func (b *SqlTableBackend) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "sqltable: begin transaction")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

var _ anyfs.FsFuse = (*SqlTableBackend)(nil)
