// Package objstorage defines the storage abstraction the triple-file and
// layer builders depend on: named, write-once byte blobs grouped into
// directories, with append-only writers, whole-blob memory maps, and
// read-at-offset streams. Two backends are provided: an in-memory one for
// tests, and a disk-backed one that mmaps blobs for zero-copy reads.
package objstorage

import (
	"io"

	"github.com/cockroachdb/errors"
)

// ErrNotFound is returned when a directory or file does not exist.
var ErrNotFound = errors.New("objstorage: not found")

// File is a single named, write-once blob.
type File interface {
	// Exists reports whether the blob has ever been written to.
	Exists() (bool, error)
	// Size returns the blob's current byte length.
	Size() (int64, error)
	// OpenWriteFrom returns an append-only writer starting at offset.
	// Writing at a nonzero offset on an empty blob is a caller error.
	OpenWriteFrom(offset int64) (io.WriteCloser, error)
	// OpenReadFrom returns a stream over the blob starting at offset.
	OpenReadFrom(offset int64) (io.ReadCloser, error)
	// Map returns the blob's full contents as a byte slice. Backends that
	// support memory-mapping return a zero-copy view; callers must not
	// retain the slice past Close.
	Map() ([]byte, error)
	// Close releases any resources (e.g. an open mmap) held by Map.
	Close() error
}

// Directory groups related named blobs (conventionally, one layer's
// files).
type Directory interface {
	// Name returns the directory's identifier (e.g. a layer's hex name).
	Name() string
	// GetFile returns the named file within this directory, creating no
	// blob yet -- the file begins to exist only once written.
	GetFile(name string) (File, error)
	// FileExists reports whether name has ever been written within this
	// directory.
	FileExists(name string) (bool, error)
}

// Backend is the root of the storage abstraction: a set of named
// directories.
type Backend interface {
	// Directories lists every directory name known to the backend.
	Directories() ([]string, error)
	// CreateDirectory allocates and returns a new, empty directory with a
	// backend-chosen unique name.
	CreateDirectory() (Directory, error)
	// DirectoryExists reports whether name has been created.
	DirectoryExists(name string) (bool, error)
	// GetDirectory returns the named directory, which must already exist.
	GetDirectory(name string) (Directory, error)
	// CreateNamedDirectory returns the directory identified by name,
	// creating it if it does not already exist. Unlike CreateDirectory,
	// the caller picks the name; used by pack import to recreate layer
	// directories under the hex name recorded in the pack.
	CreateNamedDirectory(name string) (Directory, error)
}
