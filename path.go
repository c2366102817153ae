package anyfs

import "strings"

// Separator is the path component separator AnyFS uses internally,
// regardless of host platform. Host-filesystem backends translate to
// and from the platform separator at their boundary.
const Separator = "/"

// Path is a validated, absolute, "/"-separated virtual path. The zero
// value is not a valid Path; construct one with NewPath or through the
// vpath normalization functions.
type Path string

// Root is the distinguished root path.
const Root Path = "/"

// NewPath validates and returns p as a Path. It performs no lexical
// normalization (no "." elision, no duplicate-separator collapsing);
// use vpath.Normalize for that. It only checks the absoluteness, null
// byte, and UTF-8 requirements that every AnyFS path must satisfy.
func NewPath(p string) (Path, error) {
	if p == "" {
		return "", NewError("new_path", p, KindInvalidPath, nil)
	}
	if strings.ContainsRune(p, 0) {
		return "", NewError("new_path", p, KindInvalidPath, nil)
	}
	if !strings.HasPrefix(p, Separator) {
		return "", NewError("new_path", p, KindInvalidPath, nil)
	}
	return Path(p), nil
}

// String returns the path as a plain string.
func (p Path) String() string { return string(p) }

// Components splits p into its non-empty, non-"." name components. It
// does not resolve "..".
func (p Path) Components() []string {
	raw := strings.Split(string(p), Separator)
	out := make([]string, 0, len(raw))
	for _, c := range raw {
		if c == "" || c == "." {
			continue
		}
		out = append(out, c)
	}
	return out
}

// IsRoot reports whether p denotes the root directory.
func (p Path) IsRoot() bool {
	return len(p.Components()) == 0
}

// Base returns the final component of p, or "" for the root path.
func (p Path) Base() string {
	c := p.Components()
	if len(c) == 0 {
		return ""
	}
	return c[len(c)-1]
}

// Dir returns the parent path of p. Dir(Root) == Root.
func (p Path) Dir() Path {
	c := p.Components()
	if len(c) == 0 {
		return Root
	}
	return FromComponents(c[:len(c)-1])
}

// Join appends name as a new final component of p.
func (p Path) Join(name string) Path {
	if p.IsRoot() {
		return Path(Separator + name)
	}
	return Path(string(p) + Separator + name)
}

// FromComponents rebuilds a Path from a component slice.
func FromComponents(c []string) Path {
	if len(c) == 0 {
		return Root
	}
	return Path(Separator + strings.Join(c, Separator))
}

// HasPrefixPath reports whether p is equal to, or nested under, anchor.
// Used by anchored canonicalization and overlay/pathfilter containment
// checks.
func HasPrefixPath(p, anchor Path) bool {
	if anchor.IsRoot() {
		return true
	}
	ps, as := string(p), string(anchor)
	if ps == as {
		return true
	}
	return strings.HasPrefix(ps, as+Separator)
}
