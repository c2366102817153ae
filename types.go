package anyfs

import (
	"strings"
	"unicode/utf8"
)

// FileType classifies a filesystem entity.
type FileType int

// The file types AnyFS recognizes. An entity has exactly one.
const (
	TypeFile FileType = iota
	TypeDirectory
	TypeSymlink
)

func (t FileType) String() string {
	switch t {
	case TypeFile:
		return "file"
	case TypeDirectory:
		return "directory"
	case TypeSymlink:
		return "symlink"
	default:
		return "unknown"
	}
}

// Inode is an opaque identity for a filesystem entity, stable within a
// mount session. Backends are free to choose their own encoding as long
// as it does not change for the life of the mounted backend.
type Inode uint64

// Metadata describes a filesystem entity.
type Metadata struct {
	Type        FileType
	Size        uint64 // bytes; 0 for directories, target length for symlinks
	Nlink       uint32 // directory entries referencing the same content identity
	Permissions uint32 // lower 9 bits are standard rwx
	CreatedMs   *int64 // milliseconds since the POSIX epoch, optional
	ModifiedMs  *int64
	AccessedMs  *int64
	Inode       Inode
}

// IsFile reports whether the metadata describes a regular file.
func (m Metadata) IsFile() bool { return m.Type == TypeFile }

// IsDir reports whether the metadata describes a directory.
func (m Metadata) IsDir() bool { return m.Type == TypeDirectory }

// IsSymlink reports whether the metadata describes a symlink.
func (m Metadata) IsSymlink() bool { return m.Type == TypeSymlink }

// DirEntry is one entry of a directory listing.
type DirEntry struct {
	Name  string
	Type  FileType
	Inode Inode
	Size  *uint64 // optional; some backends only know size lazily
}

// CapacityLimits bounds the resources a container, or a Quota
// middleware instance, is willing to host. A zero value for any field
// means "unlimited" for that dimension.
type CapacityLimits struct {
	MaxTotalSize         uint64
	MaxFileSize          uint64
	MaxNodeCount         uint64
	MaxDirEntries        uint64
	MaxPathDepth         int
	MaxNameLength        int
	MaxSymlinkResolution int
}

// DefaultMaxSymlinkResolution is the default follow-count bound used by
// the path canonicalization engine.
const DefaultMaxSymlinkResolution = 40

// Usage is a point-in-time snapshot of resource consumption, returned by
// the Quota middleware's usage()/remaining() queries.
type Usage struct {
	TotalSize      uint64
	FileCount      uint64
	DirectoryCount uint64
	SymlinkCount   uint64
	TotalNodeCount uint64
}

// Statfs reports aggregate container statistics (the Stats capability).
type Statfs struct {
	TotalBytes     uint64
	AvailableBytes uint64
	TotalInodes    uint64
	AvailableInodes uint64
	BlockSize      uint32
}

// ValidateName reports whether name is a legal single path component: a
// non-empty string containing no path separator or null byte, and not
// "." or "..".
func ValidateName(name string) error {
	if name == "" {
		return NewError("validate_name", name, KindInvalidPath, nil)
	}
	if name == "." || name == ".." {
		return NewError("validate_name", name, KindInvalidPath, nil)
	}
	if strings.ContainsRune(name, '/') || strings.ContainsRune(name, 0) {
		return NewError("validate_name", name, KindInvalidPath, nil)
	}
	if !utf8.ValidString(name) {
		return NewError("validate_name", name, KindInvalidUtf8, nil)
	}
	return nil
}
