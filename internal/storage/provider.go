// Package storage defines the rooted file-system abstraction the note store works through.
package storage

import "io/fs"

// Provider is the interface for store file operations. Every path is
// relative to the provider root.
type Provider interface {
	// Root returns the absolute root directory.
	Root() string
	// Abs resolves a relative path to an absolute one under the root.
	Abs(path string) (string, error)
	// ReadDir lists a directory, sorted by name.
	ReadDir(path string) ([]fs.DirEntry, error)
	// Stat returns file info for path.
	Stat(path string) (fs.FileInfo, error)
	// Exists reports whether path exists.
	Exists(path string) (bool, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// WriteAtomic replaces the file at path with content via temp file + rename.
	WriteAtomic(path string, content []byte) error
	// MkdirAll creates path and any missing parents.
	MkdirAll(path string) error
	// Rename moves oldPath to newPath.
	Rename(oldPath, newPath string) error
	// RemoveAll removes path recursively; a missing path is not an error.
	RemoveAll(path string) error
	// ImportFile copies an absolute source file to path.
	ImportFile(src, path string) error
	// CopyDirFrom copies an absolute source directory tree to path.
	CopyDirFrom(src, path string) error
}
