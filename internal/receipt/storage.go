package receipt

import (
	"fmt"
	"os"
	"path/filepath"
)

// Storage is the blob store holding original uploads. The receipt only
// keeps the returned reference; bytes are never inspected.
type Storage interface {
	// Save stores data under name and returns its storage reference
	Save(name string, data []byte) (string, error)

	// Get retrieves the bytes behind a storage reference
	Get(ref string) ([]byte, error)

	// Delete removes the blob behind a storage reference
	Delete(ref string) error
}

// LocalStorage keeps blobs as files below a base directory
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates the base directory if needed
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}
	return &LocalStorage{basePath: basePath}, nil
}

// Save writes to a temp file first so a failed write never leaves a partial blob
func (l *LocalStorage) Save(name string, data []byte) (string, error) {
	path, err := l.resolve(name)
	if err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(l.basePath, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("writing file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("closing file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("moving file into place: %w", err)
	}
	return name, nil
}

// Get reads a blob from local storage
func (l *LocalStorage) Get(ref string) ([]byte, error) {
	path, err := l.resolve(ref)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}

// Delete removes a blob from local storage
func (l *LocalStorage) Delete(ref string) error {
	path, err := l.resolve(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}

// resolve keeps references inside the base directory
func (l *LocalStorage) resolve(ref string) (string, error) {
	if ref == "" || !filepath.IsLocal(ref) {
		return "", fmt.Errorf("invalid storage reference %q", ref)
	}
	return filepath.Join(l.basePath, ref), nil
}
