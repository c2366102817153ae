package anyfs

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies an Error. The set is closed but may grow across major
// versions; callers should always fall back to a default case on Kind.
type Kind int

// The error kinds a backend or middleware may report.
const (
	KindUnknown Kind = iota
	KindNotFound
	KindAlreadyExists
	KindNotAFile
	KindNotADirectory
	KindNotASymlink
	KindIsADirectory
	KindDirectoryNotEmpty
	KindInvalidPath
	KindInvalidUtf8
	KindPermissionDenied
	KindReadOnly
	KindSymlinkLoop
	KindFeatureNotEnabled
	KindAccessDenied
	KindQuotaExceeded
	KindFileSizeExceeded
	KindNodeCountExceeded
	KindDirEntriesExceeded
	KindPathDepthExceeded
	KindNameLengthExceeded
	KindRateLimitExceeded
	KindNotSupported
	KindInvalidOperation
	KindIo
	KindBackend
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindAlreadyExists:
		return "already exists"
	case KindNotAFile:
		return "not a file"
	case KindNotADirectory:
		return "not a directory"
	case KindNotASymlink:
		return "not a symlink"
	case KindIsADirectory:
		return "is a directory"
	case KindDirectoryNotEmpty:
		return "directory not empty"
	case KindInvalidPath:
		return "invalid path"
	case KindInvalidUtf8:
		return "invalid utf-8"
	case KindPermissionDenied:
		return "permission denied"
	case KindReadOnly:
		return "read-only"
	case KindSymlinkLoop:
		return "symlink loop"
	case KindFeatureNotEnabled:
		return "feature not enabled"
	case KindAccessDenied:
		return "access denied"
	case KindQuotaExceeded:
		return "quota exceeded"
	case KindFileSizeExceeded:
		return "file size exceeded"
	case KindNodeCountExceeded:
		return "node count exceeded"
	case KindDirEntriesExceeded:
		return "directory entry count exceeded"
	case KindPathDepthExceeded:
		return "path depth exceeded"
	case KindNameLengthExceeded:
		return "name length exceeded"
	case KindRateLimitExceeded:
		return "rate limit exceeded"
	case KindNotSupported:
		return "not supported"
	case KindInvalidOperation:
		return "invalid operation"
	case KindIo:
		return "i/o error"
	case KindBackend:
		return "backend error"
	default:
		return "unknown error"
	}
}

// Error is the single error type returned by anyfs operations. It always
// carries the operation that failed and the path(s) it failed on, plus a
// classified Kind so callers can branch without string matching.
type Error struct {
	Op    string
	Path  string
	Paths []string // set instead of Path for two-path ops (rename, copy, symlink, hard_link)
	Kind  Kind
	Limit int64 // set for capacity-related kinds; the limit that was hit
	Usage int64 // set for capacity-related kinds; the usage that would result
	Err   error // wrapped cause, may be nil
}

func (e *Error) Error() string {
	paths := e.Path
	if len(e.Paths) > 0 {
		paths = fmt.Sprintf("%v", e.Paths)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %s: %v", e.Op, paths, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %s", e.Op, paths, e.Kind)
}

// Unwrap lets errors.Is / errors.As see through to the wrapped cause.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Kind, which is
// the comparison callers care about (a specific path rarely matters).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NewError builds an *Error for a single-path operation.
func NewError(op, path string, kind Kind, cause error) *Error {
	return &Error{Op: op, Path: path, Kind: kind, Err: cause}
}

// NewErrorPaths builds an *Error for a multi-path operation (rename,
// copy, symlink, hard_link).
func NewErrorPaths(op string, paths []string, kind Kind, cause error) *Error {
	return &Error{Op: op, Paths: paths, Kind: kind, Err: cause}
}

// NewCapacityError builds an *Error for a quota/capacity rejection.
func NewCapacityError(op, path string, kind Kind, limit, usage int64) *Error {
	return &Error{Op: op, Path: path, Kind: kind, Limit: limit, Usage: usage}
}

// KindOf extracts the Kind of err if it is (or wraps) an *anyfs.Error,
// and KindUnknown otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err is an *anyfs.Error of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
