// Package storage defines the working-directory file-system abstraction
// used by the asset tools.
package storage

import (
	"io/fs"
	"os"
)

// WalkFunc is called for every regular file found by Walk.
type WalkFunc func(rel string, d fs.DirEntry) error

// Provider is the interface for file operations rooted at one directory.
type Provider interface {
	// Root returns the absolute root directory.
	Root() string
	// Walk visits every regular file under the root in lexical order.
	Walk(fn WalkFunc) error
	// Glob lists files directly under the root matching pattern.
	Glob(pattern string) ([]string, error)
	// Open opens the file at path (relative to root) for reading.
	Open(path string) (*os.File, error)
	// Read returns the raw bytes of the file at path (relative to root).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to root).
	Write(path string, content []byte) error
}

var _ Provider = (*FS)(nil)
