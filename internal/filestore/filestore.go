// Package filestore manages raw uploads on disk, namespaced per knowledge
// base on a {root}/{kb_name}/{filename} convention.
package filestore

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Store saves and resolves uploaded files under a root directory.
type Store struct {
	root string
}

// New creates a file store rooted at dir.
func New(dir string) *Store {
	return &Store{root: dir}
}

// Save writes content under the KB's directory and returns the full path.
// A filename carrying path components is reduced to its base name so it
// cannot escape the store root.
func (s *Store) Save(content []byte, filename, kbName string) (string, error) {
	dir := filepath.Join(s.root, kbName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create kb dir %q: %w", kbName, err)
	}
	path := filepath.Join(dir, filepath.Base(filename))
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("save %q to kb %q: %w", filename, kbName, err)
	}
	return path, nil
}

// List returns the filenames stored for a KB, sorted. A missing KB
// directory yields an empty list.
func (s *Store) List(kbName string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, kbName))
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("list kb %q: %w", kbName, err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

// Delete removes a file and reports whether it existed.
func (s *Store) Delete(filename, kbName string) (bool, error) {
	path := filepath.Join(s.root, kbName, filepath.Base(filename))
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("delete %q from kb %q: %w", filename, kbName, err)
	}
	return true, nil
}

// DeleteKB removes a KB's entire upload directory.
func (s *Store) DeleteKB(kbName string) error {
	if err := os.RemoveAll(filepath.Join(s.root, kbName)); err != nil {
		return fmt.Errorf("delete kb dir %q: %w", kbName, err)
	}
	return nil
}

// ResolvePath returns the full path of a stored file, or empty when absent.
func (s *Store) ResolvePath(filename, kbName string) string {
	path := filepath.Join(s.root, kbName, filepath.Base(filename))
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return ""
	}
	return path
}

// Size returns a stored file's size in bytes, 0 when absent.
func (s *Store) Size(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
