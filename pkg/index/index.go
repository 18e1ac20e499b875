// Package index implements the metadata half of FileDB: the mapping
// from a user's structured key to the opaque storage-path a Storage
// adapter uses to locate bytes.
package index

import (
	"github.com/cuemby/filedb/pkg/key"
	"github.com/cuemby/filedb/pkg/query"
)

// Record is one per-storage data-table row: the user key together with
// the storage-path it currently resolves to.
type Record struct {
	Key         key.Key
	StoragePath string
}

// Index is the contract every metadata backend must satisfy: a
// key-id table mapping canonical keys to a permanent key-id, plus one
// data table per storage name mapping key-id to storage-path.
//
// Implementations perform no multi-document transaction; upsert may
// race across processes on the key-id table, and the loser is expected
// to re-read the winner's key-id rather than fail.
type Index interface {
	// Name identifies this Index instance, used in cache paths
	// alongside the storage name.
	Name() string

	// StoragePath resolves key to a storage-path within storageName's
	// data table. The second return is false if either the key-id or
	// the data-table record is absent.
	StoragePath(k key.Key, storageName string) (string, bool, error)

	// Upsert assigns (or reuses) a key-id for k and records
	// storagePath against it within storageName's data table.
	Upsert(k key.Key, storagePath string, storageName string) error

	// Delete removes the data-table record for k within storageName.
	// The key-id binding itself is never removed. Deleting an absent
	// record is not an error.
	Delete(k key.Key, storageName string) error

	// Find renders q against storageName's data table and returns the
	// user-key portion of every matching record.
	Find(q query.Query, storageName string) ([]key.Key, error)

	Close() error
}
