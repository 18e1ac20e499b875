package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/cuemby/filedb/pkg/hashutil"
)

// LocalStorage is a DirectTransport adapter over a local or
// network-mounted filesystem directory, sharded by a two-character
// prefix of the storage-path so no directory accumulates every blob.
type LocalStorage struct {
	name string
	root string
}

// NewLocalStorage returns a LocalStorage named name, rooted at root.
func NewLocalStorage(name, root string) *LocalStorage {
	return &LocalStorage{name: name, root: root}
}

func (s *LocalStorage) Name() string { return s.name }

func (s *LocalStorage) filePath(storagePath string) string {
	if len(storagePath) <= 2 {
		return filepath.Join(s.root, storagePath)
	}
	return filepath.Join(s.root, storagePath[:2], storagePath[2:])
}

func (s *LocalStorage) ReadHandle(storagePath string) (io.ReadCloser, error) {
	f, err := os.Open(s.filePath(storagePath))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("storage: %s: %w", storagePath, ErrNotFound)
		}
		return nil, fmt.Errorf("storage: open %s: %w", storagePath, err)
	}
	return f, nil
}

func (s *LocalStorage) WriteHandle(storagePath string) (io.WriteCloser, error) {
	path := s.filePath(storagePath)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("storage: create directory for %s: %w", storagePath, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("storage: create %s: %w", storagePath, err)
	}
	return f, nil
}

func (s *LocalStorage) Copy(src, dst string) error {
	srcPath := s.filePath(src)
	dstPath := s.filePath(dst)

	in, err := os.Open(srcPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("storage: %s: %w", src, ErrNotFound)
		}
		return fmt.Errorf("storage: open %s: %w", src, err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return fmt.Errorf("storage: create directory for %s: %w", dst, err)
	}
	out, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("storage: create %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("storage: copy %s to %s: %w", src, dst, err)
	}
	return nil
}

func (s *LocalStorage) Delete(storagePath string) error {
	err := os.Remove(s.filePath(storagePath))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("storage: delete %s: %w", storagePath, err)
	}
	return nil
}

func (s *LocalStorage) CRC32(storagePath string) (string, error) {
	sum, err := hashutil.CRC32(s.filePath(storagePath))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("storage: %s: %w", storagePath, ErrNotFound)
		}
		return "", fmt.Errorf("storage: crc32 %s: %w", storagePath, err)
	}
	return sum, nil
}

// ErrNotFound is returned by this package's adapters for a
// storage-path that does not exist. pkg/filedb reports a missing Copy
// or Move source as its public NotFound; other operations return this
// error wrapped, matched with errors.Is(err, ErrNotFound).
var ErrNotFound = errors.New("storage path not found")
