// Package filedb implements the FileDB façade: the read/write
// coordination pipeline tying the Index, Storage, and local Cache
// together into Read, Write, Copy, Move, Delete, Find, and Exists.
package filedb

import (
	"fmt"

	"github.com/cuemby/filedb/pkg/cache"
	"github.com/cuemby/filedb/pkg/index"
	"github.com/cuemby/filedb/pkg/key"
	"github.com/cuemby/filedb/pkg/metrics"
	"github.com/cuemby/filedb/pkg/query"
	"github.com/cuemby/filedb/pkg/storage"
)

// FileDB ties one Index and one Storage adapter into the read/write
// pipeline. Cache is only consulted when Storage is a storage.Sync
// adapter; it is nil for a purely DirectTransport deployment.
type FileDB struct {
	Index   index.Index
	Storage storage.Storage
	Cache   *cache.Cache
}

// New returns a FileDB over idx and store. c may be nil only if store
// implements storage.DirectTransport.
func New(idx index.Index, store storage.Storage, c *cache.Cache) (*FileDB, error) {
	if _, direct := store.(storage.DirectTransport); !direct {
		if _, sync := store.(storage.Sync); !sync {
			return nil, fmt.Errorf("filedb: storage %q implements neither DirectTransport nor Sync: %w", store.Name(), InvalidArgument)
		}
		if c == nil {
			return nil, fmt.Errorf("filedb: storage %q needs a cache: %w", store.Name(), InvalidArgument)
		}
	}
	return &FileDB{Index: idx, Storage: store, Cache: c}, nil
}

// File returns a handle on k. Building the handle does no I/O; it is
// a cheap local value, not a proof the key exists.
func (db *FileDB) File(k key.Key) *File {
	return &File{Key: k, db: db}
}

// Find renders q against the Index and returns a File handle for
// every matching key.
func (db *FileDB) Find(q query.Query) ([]*File, error) {
	keys, err := db.Index.Find(q, db.Storage.Name())
	if err != nil {
		metrics.OperationsTotal.WithLabelValues("find", "error").Inc()
		return nil, fmt.Errorf("filedb: find: %w", err)
	}
	metrics.OperationsTotal.WithLabelValues("find", "ok").Inc()

	files := make([]*File, len(keys))
	for i, k := range keys {
		files[i] = db.File(k)
	}
	return files, nil
}
