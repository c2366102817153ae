package vpath

import (
	"context"
	"strings"

	"github.com/dk26/anyfs"
)

// Resolver is the minimal backend surface the canonicalization engine
// needs: a non-following stat and a symlink-target read. Any backend
// implementing anyfs.Link (plus the part of anyfs.Read it shares)
// satisfies it.
type Resolver interface {
	SymlinkMetadata(ctx context.Context, path anyfs.Path) (anyfs.Metadata, error)
	ReadLink(ctx context.Context, path anyfs.Path) (string, error)
}

type mode int

const (
	modeStrict mode = iota
	modeSoft
	modeAnchored
)

// Canonicalize walks path component by component from root, following
// symlinks and resolving ".." against the real (post-expansion)
// location. It fails if any component does not exist.
func Canonicalize(ctx context.Context, r Resolver, path anyfs.Path, maxFollow int) (anyfs.Path, error) {
	return walk(ctx, r, path, modeStrict, anyfs.Root, maxFollow)
}

// SoftCanonicalize behaves like Canonicalize, but on the first
// non-existent component it stops resolving and appends the remainder
// lexically instead of failing with NotFound.
func SoftCanonicalize(ctx context.Context, r Resolver, path anyfs.Path, maxFollow int) (anyfs.Path, error) {
	return walk(ctx, r, path, modeSoft, anyfs.Root, maxFollow)
}

// AnchoredCanonicalize behaves like SoftCanonicalize, but clamps any
// step (lexical ".." or symlink expansion) that would leave anchor,
// re-rooting the escaping result at anchor instead of failing. This is
// the virtual-root semantic used by VRootFsBackend.
func AnchoredCanonicalize(ctx context.Context, r Resolver, path anyfs.Path, anchor anyfs.Path, maxFollow int) (anyfs.Path, error) {
	return walk(ctx, r, path, modeAnchored, anchor, maxFollow)
}

func walk(ctx context.Context, r Resolver, path anyfs.Path, m mode, anchor anyfs.Path, maxFollow int) (anyfs.Path, error) {
	if maxFollow <= 0 {
		maxFollow = anyfs.DefaultMaxSymlinkResolution
	}
	base := anyfs.Root
	if m == modeAnchored {
		base = anchor
	}

	current := base
	pending := path.Components()
	followCount := 0

	for len(pending) > 0 {
		name := pending[0]
		pending = pending[1:]

		if name == ".." {
			current = popDir(current, base, m == modeAnchored)
			continue
		}

		candidate := current.Join(name)
		meta, err := r.SymlinkMetadata(ctx, candidate)
		if err != nil {
			if anyfs.Is(err, anyfs.KindNotFound) {
				if m == modeStrict {
					return "", anyfs.NewError("canonicalize", path.String(), anyfs.KindNotFound, nil)
				}
				return appendLexically(current, append([]string{name}, pending...), base, m == modeAnchored), nil
			}
			return "", err
		}

		if meta.IsSymlink() {
			followCount++
			if followCount > maxFollow {
				return "", anyfs.NewError("canonicalize", path.String(), anyfs.KindSymlinkLoop, nil)
			}
			target, err := r.ReadLink(ctx, candidate)
			if err != nil {
				return "", err
			}
			target = strings.TrimSuffix(target, anyfs.Separator)
			if strings.HasPrefix(target, anyfs.Separator) {
				current = base
				pending = append(anyfs.Path(target).Components(), pending...)
			} else {
				// current is already the symlink's parent directory.
				pending = append(anyfs.Path(target).Components(), pending...)
			}
			continue
		}

		if meta.IsFile() && len(pending) > 0 {
			return "", anyfs.NewError("canonicalize", path.String(), anyfs.KindNotADirectory, nil)
		}
		current = candidate
		if m == modeAnchored && !anyfs.HasPrefixPath(current, base) {
			current = base
		}
	}
	return current, nil
}

func popDir(current, anchor anyfs.Path, clamp bool) anyfs.Path {
	if current.IsRoot() {
		return current
	}
	parent := current.Dir()
	if clamp && !anyfs.HasPrefixPath(parent, anchor) {
		return anchor
	}
	return parent
}

// appendLexically folds the remaining components onto current without
// any backend resolution, collapsing ".." purely lexically. Used once
// soft/anchored canonicalization hits the first missing component.
func appendLexically(current anyfs.Path, remainder []string, anchor anyfs.Path, clamp bool) anyfs.Path {
	for _, c := range remainder {
		if c == ".." {
			current = popDir(current, anchor, clamp)
			continue
		}
		current = current.Join(c)
		if clamp && !anyfs.HasPrefixPath(current, anchor) {
			current = anchor
		}
	}
	return current
}
