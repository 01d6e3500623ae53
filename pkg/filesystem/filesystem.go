// Package filesystem defines the contract the file pool uses to talk to a
// local disk. It exists so that pkg/filepool can be exercised against a
// fake in tests without touching any real storage, and so that the pool
// never reaches for an *os.File or syscall number directly.
package filesystem

import (
	"os"
	"time"
)

// RenameFlag modifies the semantics of FileSystem.Rename.
type RenameFlag int

const (
	// RenameReplace is the default rename behavior: the destination is
	// silently replaced if it already exists.
	RenameReplace RenameFlag = iota
	// RenameNoReplace fails with os.ErrExist when the destination
	// already exists, instead of replacing it. This is the mode the
	// pool relies on to serialize concurrent GetFile calls against the
	// same target path.
	RenameNoReplace
)

// FallocateMode selects which fallocate(2) operation to perform.
type FallocateMode int

const (
	// FallocateReserve reserves [offset, offset+length) for the file,
	// extending it if necessary, without necessarily zeroing the
	// reserved range's contents on disk.
	FallocateReserve FallocateMode = iota
	// FallocateZeroRange guarantees that [offset, offset+length) reads
	// back as zero, converting the region to a hole where the
	// filesystem supports it. Used by the "fast zero" path in
	// CleanChunk(onlyMarked=true).
	FallocateZeroRange
)

// SpaceInfo is a statfs(2)-style snapshot of a filesystem's capacity,
// used by FormatWorker to decide how many chunks it may pre-allocate.
type SpaceInfo struct {
	TotalBytes     uint64
	AvailableBytes uint64
}

// FileInfo is the subset of os.FileInfo the pool consults.
type FileInfo struct {
	SizeBytes uint64
	IsDir     bool
}

// File is a single open file descriptor as handed back by FileSystem.Open.
// Every method it exposes maps onto one of the POSIX primitives the pool's
// allocator needs; nothing more.
type File interface {
	ReadAt(p []byte, off int64) (int, error)
	WriteAt(p []byte, off int64) (int, error)
	Fallocate(mode FallocateMode, offset, length int64) error
	Fsync() error
	Stat() (FileInfo, error)
	Close() error
}

// FileSystem is the pool's sole means of touching local storage; it never
// opens a path through any other means. A single FileSystem value is
// shared, read-only, across the pool and all of its background workers.
type FileSystem interface {
	// Open opens path, creating it first if create is true. The
	// returned File is read-write.
	Open(path string, create bool) (File, error)
	// Delete removes a single file. It is not an error if path does not
	// exist.
	Delete(path string) error
	// Rename moves oldpath to newpath. With RenameNoReplace it fails
	// with os.ErrExist if newpath is already present.
	Rename(oldpath, newpath string, flag RenameFlag) error
	// Mkdir creates dir and any of its missing parents.
	Mkdir(dir string) error
	// DirExists reports whether dir exists and is a directory.
	DirExists(dir string) bool
	// FileExists reports whether path exists and is a regular file.
	FileExists(path string) bool
	// List returns the base names of dir's immediate children,
	// non-recursively, in unspecified order.
	List(dir string) ([]string, error)
	// Statfs reports capacity information for the filesystem backing
	// dir.
	Statfs(dir string) (SpaceInfo, error)
}

// Now is overridable in tests; production code always uses time.Now.
var Now = time.Now

// IsNotExist reports whether err indicates that a path does not exist,
// mirroring os.IsNotExist for the errors FileSystem implementations return.
func IsNotExist(err error) bool {
	return os.IsNotExist(err)
}

// IsExist reports whether err indicates that a path already exists.
func IsExist(err error) bool {
	return os.IsExist(err)
}
