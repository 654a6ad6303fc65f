// Package partition maps knowledge base names to directories under an upload root.
package partition

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cloo-solutions/kbrelay/internal/domain"
)

// Store manages one directory per knowledge base under Root.
type Store struct {
	root string
}

// NewStore creates a Store rooted at root. The root itself is created lazily.
func NewStore(root string) *Store {
	return &Store{root: root}
}

// Root returns the upload root directory.
func (s *Store) Root() string {
	return s.root
}

// Path returns the directory for name without touching the filesystem.
func (s *Store) Path(name string) string {
	return filepath.Join(s.root, name)
}

// Ensure creates the directory for name if it is missing and returns its path.
func (s *Store) Ensure(name string) (string, error) {
	if err := domain.ValidateKBName(name); err != nil {
		return "", err
	}
	dir := s.Path(name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create partition %q: %w", name, err)
	}
	return dir, nil
}

// Exists reports whether the directory for name exists.
func (s *Store) Exists(name string) bool {
	info, err := os.Stat(s.Path(name))
	return err == nil && info.IsDir()
}

// Save writes r to the partition under the base name of filename,
// replacing any file with the same name.
func (s *Store) Save(name, filename string, r io.Reader) (string, error) {
	base := filepath.Base(filepath.Clean("/" + filename))
	if base == "/" || base == "." || base == ".." {
		return "", domain.ErrInvalidFilename
	}

	dir, err := s.Ensure(name)
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, base)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}

	// A partial file must not be listed or read back as a document.
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to close %s: %w", path, err)
	}
	return path, nil
}

// Delete removes the partition directory and everything below it.
func (s *Store) Delete(name string) error {
	if err := domain.ValidateKBName(name); err != nil {
		return err
	}
	if !s.Exists(name) {
		return domain.ErrKnowledgeBaseNotFound
	}
	if err := os.RemoveAll(s.Path(name)); err != nil {
		return fmt.Errorf("failed to delete partition %q: %w", name, err)
	}
	return nil
}

// ListFiles returns the base name of every file below the partition in walk
// order. A missing partition yields an empty list.
func (s *Store) ListFiles(name string) ([]string, error) {
	files := []string{}
	if domain.ValidateKBName(name) != nil {
		return files, nil
	}

	err := filepath.WalkDir(s.Path(name), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if !d.IsDir() {
			files = append(files, d.Name())
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list partition %q: %w", name, err)
	}
	return files, nil
}
