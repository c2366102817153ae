// Package vpath implements the path canonicalization engine: the
// symlink-aware, cycle-bounded walker that turns user-facing paths into
// validated target references. None of its functions touch the host OS
// directly; they consume only a backend's Read/Link capability methods
// through the Resolver interface.
package vpath

import (
	"strings"
	"unicode/utf8"

	"github.com/dk26/anyfs"
)

// Normalize performs pure lexical normalization of an absolute path: it
// collapses repeated separators, strips a trailing separator, and
// elides "." components. It does not resolve ".." and does not touch
// any backend. It fails on an empty path, a null byte, invalid UTF-8,
// or a path that does not start with "/".
func Normalize(raw string) (anyfs.Path, error) {
	if raw == "" {
		return "", anyfs.NewError("normalize", raw, anyfs.KindInvalidPath, nil)
	}
	if strings.ContainsRune(raw, 0) {
		return "", anyfs.NewError("normalize", raw, anyfs.KindInvalidPath, nil)
	}
	if !utf8.ValidString(raw) {
		return "", anyfs.NewError("normalize", raw, anyfs.KindInvalidUtf8, nil)
	}
	if !strings.HasPrefix(raw, anyfs.Separator) {
		return "", anyfs.NewError("normalize", raw, anyfs.KindInvalidPath, nil)
	}

	parts := strings.Split(raw, anyfs.Separator)
	comps := make([]string, 0, len(parts))
	for _, c := range parts {
		if c == "" || c == "." {
			continue
		}
		comps = append(comps, c)
	}
	return anyfs.FromComponents(comps), nil
}
