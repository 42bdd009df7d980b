// Package loader reads arbor configuration layers into plain maps.
//
// Files may be TOML, YAML or JSON; the format follows the file extension.
// Environment variables with the ARBOR_ prefix form another layer. Layers
// are combined with DeepMerge, later layers winning.
package loader

import (
	"io/fs"
	"os"
)

// Loader reads one configuration layer.
type Loader interface {
	// Load returns the layer, or nil, nil when its source does not exist.
	Load() (map[string]any, error)
}

// FileSystem is the file access a FileLoader needs. Tests substitute an
// in-memory implementation.
type FileSystem interface {
	ReadFile(path string) ([]byte, error)
	Stat(path string) (fs.FileInfo, error)
}

// OSFS reads from the operating system.
type OSFS struct{}

// ReadFile implements FileSystem.
func (OSFS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Stat implements FileSystem.
func (OSFS) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

// DefaultFS returns the operating system file system.
func DefaultFS() FileSystem {
	return OSFS{}
}
