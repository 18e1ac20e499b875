// Package storage implements FileDB's Storage adapters: byte blobs
// keyed by an opaque storage-path, with a stable name included in the
// cache path and Index namespace.
package storage

import "io"

// Storage is the contract every adapter implements: a name and the
// three operations that apply to any storage-path regardless of
// whether bytes are reached directly or through a local cache.
type Storage interface {
	// Name is this adapter's stable identifier, used in cache paths
	// and as the Index's per-storage namespace.
	Name() string

	// Copy performs a server-side copy from src to dst, atomic from a
	// client's perspective. Returns NotFound-flavored errors if src is
	// absent or the underlying adapter cannot copy server-side.
	Copy(src, dst string) error

	// Delete removes storagePath. Deleting an absent path is not an
	// error.
	Delete(storagePath string) error

	// CRC32 returns the checksum the adapter currently serves for
	// storagePath.
	CRC32(storagePath string) (string, error)
}

// DirectTransport is implemented by adapters whose bytes are reachable
// as a local or network-mounted file, so the façade can skip the local
// cache entirely and hand back a handle straight onto storagePath.
type DirectTransport interface {
	Storage

	ReadHandle(storagePath string) (io.ReadCloser, error)
	WriteHandle(storagePath string) (io.WriteCloser, error)
}

// Sync is implemented by adapters whose bytes live in a remote object
// store and must be mirrored through the local cache before a caller
// can read or write them.
type Sync interface {
	Storage

	// Download copies storagePath's bytes into cachePath.
	Download(storagePath, cachePath string) error

	// Upload copies cachePath's bytes to storagePath, recording
	// checksum as the adapter's integrity metadata for storagePath.
	Upload(cachePath, storagePath, checksum string) error
}
