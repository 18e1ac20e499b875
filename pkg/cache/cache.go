// Package cache implements FileDB's local cache: the on-disk layout of
// downloaded copies of remote blobs, and the lock-guarded primitives
// the façade composes into its read/write pipeline.
//
// The cache owns no knowledge of Storage or Index; it only knows how
// to compute a deterministic path for a (storage-path, storage-name,
// index-name) triple, and how to read/write-lock that path via
// pkg/lockfile.
package cache

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cuemby/filedb/pkg/hashutil"
	"github.com/cuemby/filedb/pkg/lockfile"
	"github.com/cuemby/filedb/pkg/metrics"
)

// Cache roots every downloaded copy under RootPath, namespaced first
// by index name and then by storage name so two storages (or two
// FileDB instances sharing a host) never collide on a storage-path.
type Cache struct {
	RootPath string
}

// New returns a Cache rooted at rootPath.
func New(rootPath string) *Cache {
	return &Cache{RootPath: rootPath}
}

// Path returns the on-disk location for storagePath within storageName
// under indexName, creating its parent directory if necessary.
func (c *Cache) Path(storagePath, storageName, indexName string) (string, error) {
	dir := filepath.Join(c.RootPath, indexName, storageName, storagePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("cache: create %s: %w", dir, err)
	}
	return filepath.Join(dir, "data"), nil
}

// ReadLock acquires a read lock on cachePath's directory. Multiple
// readers may hold it concurrently.
func (c *Cache) ReadLock(cachePath string) (lockfile.Release, error) {
	return lockfile.ReadLock(cachePath)
}

// WriteLock acquires a write lock on cachePath's directory, excluding
// every other reader and writer.
func (c *Cache) WriteLock(cachePath string) (lockfile.Release, error) {
	return lockfile.WriteLock(cachePath)
}

// CRC32 computes the checksum of the bytes currently at cachePath,
// under a read lock so a concurrent writer cannot truncate or replace
// the file mid-read.
func (c *Cache) CRC32(cachePath string) (string, error) {
	release, err := c.ReadLock(cachePath)
	if err != nil {
		return "", err
	}
	defer release()

	sum, err := hashutil.CRC32(cachePath)
	if err != nil {
		metrics.OperationsTotal.WithLabelValues("cache_crc32", "error").Inc()
		return "", fmt.Errorf("cache: crc32 %s: %w", cachePath, err)
	}
	metrics.OperationsTotal.WithLabelValues("cache_crc32", "ok").Inc()
	return sum, nil
}

// Exists reports whether cachePath currently has a downloaded copy,
// without acquiring any lock: callers use it only to decide whether
// they must populate the cache, always inside a held lock of their own.
func (c *Cache) Exists(cachePath string) bool {
	_, err := os.Stat(cachePath)
	return err == nil
}

// Remove deletes the cache entry at cachePath; an already-absent entry
// is not an error. The façade's Move and Delete do not call it: the
// Index and Storage, not the cache, are the durable source of truth.
func (c *Cache) Remove(cachePath string) error {
	err := os.Remove(cachePath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("cache: remove %s: %w", cachePath, err)
	}
	return nil
}
