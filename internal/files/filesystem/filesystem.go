package filesystem

import (
	"io"
	"io/fs"
)

// FileInfo is an alias for fs.FileInfo from the standard library.
// This provides compatibility with the fs.FS ecosystem while maintaining
// a stable local type for our abstraction layer.
type FileInfo = fs.FileInfo

// FileSystemProvider gives read-only access to a source directory.
type FileSystemProvider interface {
	// Stat returns file information for the given path
	Stat(path string) (FileInfo, error)

	// ReadDir returns the entries of the directory at path, one level deep.
	// The order of the result is unspecified; callers sort.
	ReadDir(path string) ([]FileInfo, error)

	// Open opens the file at path for streaming reads.
	Open(path string) (io.ReadCloser, error)
}
