package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rpattn/iptvsync/internal/domain"

	"github.com/spf13/afero"
)

// FileReader is what the pipeline needs from upload storage.
type FileReader interface {
	Stat(path string) (os.FileInfo, error)
	ReadFile(path string) ([]byte, error)
}

// FileStore reads and writes upload files on an afero filesystem. Relative
// paths are resolved against root.
type FileStore struct {
	fs   afero.Fs
	root string
}

// NewFileStore creates a store over fs rooted at root.
func NewFileStore(fs afero.Fs, root string) *FileStore {
	return &FileStore{fs: fs, root: root}
}

// NewOSFileStore creates a store over the local disk.
func NewOSFileStore(root string) *FileStore {
	return NewFileStore(afero.NewOsFs(), root)
}

func (s *FileStore) resolve(path string) string {
	if filepath.IsAbs(path) || s.root == "" {
		return filepath.Clean(path)
	}
	return filepath.Join(s.root, path)
}

// Stat reports file metadata. Missing files and directories wrap
// domain.ErrFileUnreachable.
func (s *FileStore) Stat(path string) (os.FileInfo, error) {
	info, err := s.fs.Stat(s.resolve(path))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrFileUnreachable, path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", domain.ErrFileUnreachable, path)
	}
	return info, nil
}

// ReadFile returns the whole file.
func (s *FileStore) ReadFile(path string) ([]byte, error) {
	data, err := afero.ReadFile(s.fs, s.resolve(path))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrFileUnreachable, path, err)
	}
	return data, nil
}

// Create opens path for writing, creating parent directories.
func (s *FileStore) Create(path string) (io.WriteCloser, error) {
	full := s.resolve(path)
	if err := s.fs.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	f, err := s.fs.Create(full)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	return f, nil
}
