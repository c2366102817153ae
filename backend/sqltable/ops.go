package sqltable

import (
	"bytes"
	"context"
	"database/sql"
	"unicode/utf8"

	"github.com/dk26/anyfs"
)

// --- Read ---

func (b *SqlTableBackend) Read(ctx context.Context, path anyfs.Path) ([]byte, error) {
	n, err := walk(ctx, b.db, path)
	if err != nil {
		return nil, err
	}
	if typeOf(n.kind) == anyfs.TypeDirectory {
		return nil, anyfs.NewError("read", path.String(), anyfs.KindIsADirectory, nil)
	}
	if typeOf(n.kind) != anyfs.TypeFile {
		return nil, anyfs.NewError("read", path.String(), anyfs.KindNotAFile, nil)
	}
	if !n.content.Valid {
		return []byte{}, nil
	}
	var data []byte
	row := b.db.QueryRowContext(ctx, `SELECT bytes FROM contents WHERE content_id = ?`, n.content.Int64)
	if err := row.Scan(&data); err != nil {
		return nil, anyfs.NewError("read", path.String(), anyfs.KindBackend, err)
	}
	return data, nil
}

func (b *SqlTableBackend) ReadToString(ctx context.Context, path anyfs.Path) (string, error) {
	data, err := b.Read(ctx, path)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", anyfs.NewError("read_to_string", path.String(), anyfs.KindInvalidUtf8, nil)
	}
	return string(data), nil
}

func (b *SqlTableBackend) ReadRange(ctx context.Context, path anyfs.Path, offset, length uint64) ([]byte, error) {
	data, err := b.Read(ctx, path)
	if err != nil {
		return nil, err
	}
	if offset >= uint64(len(data)) {
		return []byte{}, nil
	}
	end := offset + length
	if end > uint64(len(data)) {
		end = uint64(len(data))
	}
	return data[offset:end], nil
}

func (b *SqlTableBackend) Exists(ctx context.Context, path anyfs.Path) (bool, error) {
	_, err := walk(ctx, b.db, path)
	if anyfs.Is(err, anyfs.KindNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (b *SqlTableBackend) Metadata(ctx context.Context, path anyfs.Path) (anyfs.Metadata, error) {
	n, err := walk(ctx, b.db, path)
	if err != nil {
		return anyfs.Metadata{}, err
	}
	return n.metadata(), nil
}

func (b *SqlTableBackend) OpenRead(ctx context.Context, path anyfs.Path) (anyfs.ReadStream, error) {
	data, err := b.Read(ctx, path)
	if err != nil {
		return nil, err
	}
	return sqlReadCloser{bytes.NewReader(data)}, nil
}

type sqlReadCloser struct{ *bytes.Reader }

func (sqlReadCloser) Close() error { return nil }

// --- Write ---

func (b *SqlTableBackend) Write(ctx context.Context, path anyfs.Path, data []byte) error {
	return b.withTx(ctx, func(tx *sql.Tx) error {
		parent, name, err := walkParent(ctx, tx, path)
		if err != nil {
			return err
		}
		if existing, err := childInode(ctx, tx, parent, name); err == nil {
			n, err := getNode(ctx, tx, existing)
			if err != nil {
				return err
			}
			if typeOf(n.kind) == anyfs.TypeDirectory {
				return anyfs.NewError("write", path.String(), anyfs.KindIsADirectory, nil)
			}
			return b.replaceContent(ctx, tx, n, data)
		}
		return b.createFile(ctx, tx, parent, name, data)
	})
}

func (b *SqlTableBackend) replaceContent(ctx context.Context, tx *sql.Tx, n nodeRow, data []byte) error {
	if n.content.Valid {
		if _, err := tx.ExecContext(ctx, `UPDATE contents SET bytes = ? WHERE content_id = ?`, data, n.content.Int64); err != nil {
			return anyfs.NewError("write", "", anyfs.KindBackend, err)
		}
	} else {
		res, err := tx.ExecContext(ctx, `INSERT INTO contents (bytes, refcount) VALUES (?, 1)`, data)
		if err != nil {
			return anyfs.NewError("write", "", anyfs.KindBackend, err)
		}
		cid, _ := res.LastInsertId()
		if _, err := tx.ExecContext(ctx, `UPDATE nodes SET content_id = ? WHERE inode = ?`, cid, n.inode); err != nil {
			return anyfs.NewError("write", "", anyfs.KindBackend, err)
		}
	}
	_, err := tx.ExecContext(ctx, `UPDATE nodes SET size = ?, mtime = ? WHERE inode = ?`, len(data), nowMs(), n.inode)
	return err
}

func (b *SqlTableBackend) createFile(ctx context.Context, tx *sql.Tx, parent anyfs.Inode, name string, data []byte) error {
	cres, err := tx.ExecContext(ctx, `INSERT INTO contents (bytes, refcount) VALUES (?, 1)`, data)
	if err != nil {
		return anyfs.NewError("write", name, anyfs.KindBackend, err)
	}
	cid, _ := cres.LastInsertId()
	now := nowMs()
	nres, err := tx.ExecContext(ctx,
		`INSERT INTO nodes (kind, content_id, size, mode, nlink, ctime, mtime, atime) VALUES (?,?,?,?,?,?,?,?)`,
		kindFile, cid, len(data), 0o644, 1, now, now, now)
	if err != nil {
		return anyfs.NewError("write", name, anyfs.KindBackend, err)
	}
	inode, _ := nres.LastInsertId()
	_, err = tx.ExecContext(ctx, `INSERT INTO edges (parent_inode, name, child_inode) VALUES (?,?,?)`, int64(parent), name, inode)
	return err
}

func (b *SqlTableBackend) Append(ctx context.Context, path anyfs.Path, data []byte) error {
	return b.withTx(ctx, func(tx *sql.Tx) error {
		parent, name, err := walkParent(ctx, tx, path)
		if err != nil {
			return err
		}
		existing, err := childInode(ctx, tx, parent, name)
		if err != nil {
			return b.createFile(ctx, tx, parent, name, data)
		}
		n, err := getNode(ctx, tx, existing)
		if err != nil {
			return err
		}
		if typeOf(n.kind) != anyfs.TypeFile {
			return anyfs.NewError("append", path.String(), anyfs.KindNotAFile, nil)
		}
		var current []byte
		if n.content.Valid {
			row := tx.QueryRowContext(ctx, `SELECT bytes FROM contents WHERE content_id = ?`, n.content.Int64)
			if err := row.Scan(&current); err != nil {
				return anyfs.NewError("append", path.String(), anyfs.KindBackend, err)
			}
		}
		return b.replaceContent(ctx, tx, n, append(current, data...))
	})
}

func (b *SqlTableBackend) RemoveFile(ctx context.Context, path anyfs.Path) error {
	return b.withTx(ctx, func(tx *sql.Tx) error {
		parent, name, err := walkParent(ctx, tx, path)
		if err != nil {
			return err
		}
		id, err := childInode(ctx, tx, parent, name)
		if err != nil {
			return anyfs.NewError("remove_file", path.String(), anyfs.KindNotFound, nil)
		}
		n, err := getNode(ctx, tx, id)
		if err != nil {
			return err
		}
		if typeOf(n.kind) == anyfs.TypeDirectory {
			return anyfs.NewError("remove_file", path.String(), anyfs.KindIsADirectory, nil)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM edges WHERE parent_inode = ? AND name = ?`, int64(parent), name); err != nil {
			return err
		}
		return unlinkNode(ctx, tx, n)
	})
}

// unlinkNode decrements a node's nlink and, once it reaches zero, frees
// the node and its content row.
func unlinkNode(ctx context.Context, tx *sql.Tx, n nodeRow) error {
	if n.nlink <= 1 {
		if n.content.Valid {
			if _, err := tx.ExecContext(ctx, `DELETE FROM contents WHERE content_id = ?`, n.content.Int64); err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM xattrs WHERE inode = ?`, n.inode); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM nodes WHERE inode = ?`, n.inode)
		return err
	}
	_, err := tx.ExecContext(ctx, `UPDATE nodes SET nlink = nlink - 1 WHERE inode = ?`, n.inode)
	return err
}

func (b *SqlTableBackend) Rename(ctx context.Context, from, to anyfs.Path) error {
	return b.withTx(ctx, func(tx *sql.Tx) error {
		if anyfs.HasPrefixPath(to, from) && !from.IsRoot() {
			return anyfs.NewErrorPaths("rename", []string{from.String(), to.String()}, anyfs.KindInvalidOperation, nil)
		}
		srcParent, srcName, err := walkParent(ctx, tx, from)
		if err != nil {
			return err
		}
		srcID, err := childInode(ctx, tx, srcParent, srcName)
		if err != nil {
			return anyfs.NewError("rename", from.String(), anyfs.KindNotFound, nil)
		}
		src, err := getNode(ctx, tx, srcID)
		if err != nil {
			return err
		}
		dstParent, dstName, err := walkParent(ctx, tx, to)
		if err != nil {
			return err
		}
		if dstID, err := childInode(ctx, tx, dstParent, dstName); err == nil {
			dst, err := getNode(ctx, tx, dstID)
			if err != nil {
				return err
			}
			if typeOf(src.kind) == anyfs.TypeDirectory && typeOf(dst.kind) != anyfs.TypeDirectory {
				return anyfs.NewErrorPaths("rename", []string{from.String(), to.String()}, anyfs.KindNotADirectory, nil)
			}
			if typeOf(src.kind) != anyfs.TypeDirectory && typeOf(dst.kind) == anyfs.TypeDirectory {
				return anyfs.NewErrorPaths("rename", []string{from.String(), to.String()}, anyfs.KindIsADirectory, nil)
			}
			if typeOf(dst.kind) == anyfs.TypeDirectory {
				var count int
				row := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM edges WHERE parent_inode = ?`, dstID)
				if err := row.Scan(&count); err != nil {
					return err
				}
				if count > 0 {
					return anyfs.NewErrorPaths("rename", []string{from.String(), to.String()}, anyfs.KindDirectoryNotEmpty, nil)
				}
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM edges WHERE parent_inode = ? AND name = ?`, int64(dstParent), dstName); err != nil {
				return err
			}
			if err := unlinkNode(ctx, tx, dst); err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM edges WHERE parent_inode = ? AND name = ?`, int64(srcParent), srcName); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO edges (parent_inode, name, child_inode) VALUES (?,?,?)`, int64(dstParent), dstName, srcID)
		return err
	})
}

func (b *SqlTableBackend) Copy(ctx context.Context, from, to anyfs.Path) error {
	data, err := b.Read(ctx, from)
	if err != nil {
		return err
	}
	return b.Write(ctx, to, data)
}

func (b *SqlTableBackend) Truncate(ctx context.Context, path anyfs.Path, size uint64) error {
	return b.withTx(ctx, func(tx *sql.Tx) error {
		n, err := walk(ctx, tx, path)
		if err != nil {
			return err
		}
		if typeOf(n.kind) != anyfs.TypeFile {
			return anyfs.NewError("truncate", path.String(), anyfs.KindNotAFile, nil)
		}
		var data []byte
		if n.content.Valid {
			row := tx.QueryRowContext(ctx, `SELECT bytes FROM contents WHERE content_id = ?`, n.content.Int64)
			if err := row.Scan(&data); err != nil {
				return err
			}
		}
		if uint64(len(data)) >= size {
			data = data[:size]
		} else {
			padded := make([]byte, size)
			copy(padded, data)
			data = padded
		}
		return b.replaceContent(ctx, tx, n, data)
	})
}

func (b *SqlTableBackend) OpenWrite(ctx context.Context, path anyfs.Path) (anyfs.WriteStream, error) {
	return &sqlWriteStream{backend: b, path: path}, nil
}

type sqlWriteStream struct {
	backend *SqlTableBackend
	path    anyfs.Path
	buf     bytes.Buffer
}

func (w *sqlWriteStream) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *sqlWriteStream) Close() error {
	return w.backend.Write(context.Background(), w.path, w.buf.Bytes())
}
