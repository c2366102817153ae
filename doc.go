// Package anyfs provides a virtual filesystem abstraction over pluggable
// storage backends, together with a composable middleware stack.
//
// A single uniform API, modeled on a conventional filesystem interface
// (Read, Write, Create, Rename, Symlink, ...), is decomposed into small
// capability groups (Read, Write, Directory, Link, Permissions, Sync,
// Stats, InodeOps, Handles, Lock, Xattr) that a backend implements in
// whichever subset it can support. Tier interfaces (Fs, FsFull, FsFuse,
// FsPosix) compose the common combinations.
//
// Backends live under anyfs/backend; policy middleware (quota, path
// filtering, rate limiting, read-only enforcement, dry-run recording,
// caching, union/overlay, tracing) live under anyfs/middleware and wrap
// a backend to intercept operations before they reach storage. The
// anyfs/storage package provides the ergonomic FileStorage façade that
// accepts path-like inputs and resolves them through anyfs/vpath.
package anyfs
