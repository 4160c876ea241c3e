// Package storage defines the export-tree file-system abstraction.
package storage

import "time"

// DocMeta describes one rendered note document found under the tree.
type DocMeta struct {
	Path      string
	Checksum  string
	UpdatedAt time.Time
}

// FileInfo describes a regular file directly inside a directory.
type FileInfo struct {
	Name string
	Size int64
}

// Provider is the interface for export-tree file operations. All paths are
// relative to the export root.
type Provider interface {
	// Root returns the absolute export root.
	Root() string
	// Abs resolves a relative path, rejecting traversal out of the root.
	Abs(path string) (string, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path, creating parent directories.
	Write(path string, content []byte) error
	// Exists reports whether path exists (file or directory).
	Exists(path string) bool
	// MkdirAll creates the directory at path with its parents.
	MkdirAll(path string) error
	// Dirs returns the sorted names of immediate sub-directories of dir.
	Dirs(dir string) ([]string, error)
	// Files returns the sorted regular files directly inside dir.
	Files(dir string) ([]FileInfo, error)
	// Documents walks dir and returns every file named name (e.g. "note.md").
	Documents(dir, name string) ([]DocMeta, error)
	// Delete removes the file at path.
	Delete(path string) error
}
