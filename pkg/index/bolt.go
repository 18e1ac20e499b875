package index

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/cuemby/filedb/pkg/key"
	"github.com/cuemby/filedb/pkg/query"
	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

// bucketKeyIDs holds the permanent canonical-key -> key-id mapping
// shared across every storage name.
var bucketKeyIDs = []byte("key_ids")

func dataBucketName(storageName string) []byte {
	return []byte("data_" + storageName)
}

// onDiskRecord is the JSON body of one data-table row.
type onDiskRecord struct {
	Key         key.Key `json:"key"`
	StoragePath string  `json:"storage_path"`
}

// BoltIndex is an embedded, single-file Index backed by BoltDB. It
// exists for a FileDB instance with no document-store server of its
// own — for example, a single-host deployment or a test harness.
//
// BoltDB's transactions are single-writer, so the key-id race the
// specification allows for a document-store-backed Index (two
// processes each minting a candidate key-id for the same canonical
// key) cannot happen here: Upsert always holds the one write
// transaction that decides the winner.
type BoltIndex struct {
	name string
	db   *bolt.DB
}

// NewBoltIndex opens (creating if absent) a BoltDB file named
// "<name>.index.db" inside dataDir.
func NewBoltIndex(name, dataDir string) (*BoltIndex, error) {
	path := filepath.Join(dataDir, name+".index.db")

	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("index: open %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketKeyIDs)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("index: initialize %s: %w", path, err)
	}

	return &BoltIndex{name: name, db: db}, nil
}

func (x *BoltIndex) Name() string { return x.name }

func (x *BoltIndex) Close() error { return x.db.Close() }

func (x *BoltIndex) StoragePath(k key.Key, storageName string) (string, bool, error) {
	canonical, err := key.Canonical(k)
	if err != nil {
		return "", false, fmt.Errorf("index: canonicalize key: %w", err)
	}

	var (
		storagePath string
		found       bool
	)
	err = x.db.View(func(tx *bolt.Tx) error {
		id := tx.Bucket(bucketKeyIDs).Get(canonical)
		if id == nil {
			return nil
		}

		data := tx.Bucket(dataBucketName(storageName))
		if data == nil {
			return nil
		}

		raw := data.Get(id)
		if raw == nil {
			return nil
		}

		var rec onDiskRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("index: decode record: %w", err)
		}
		storagePath = rec.StoragePath
		found = true
		return nil
	})
	return storagePath, found, err
}

func (x *BoltIndex) Upsert(k key.Key, storagePath string, storageName string) error {
	if err := key.Validate(k); err != nil {
		return fmt.Errorf("index: %w", err)
	}
	canonical, err := key.Canonical(k)
	if err != nil {
		return fmt.Errorf("index: canonicalize key: %w", err)
	}

	return x.db.Update(func(tx *bolt.Tx) error {
		ids := tx.Bucket(bucketKeyIDs)
		id := ids.Get(canonical)
		if id == nil {
			id = []byte(uuid.NewString())
			if err := ids.Put(canonical, id); err != nil {
				return fmt.Errorf("index: mint key-id: %w", err)
			}
		}

		data, err := tx.CreateBucketIfNotExists(dataBucketName(storageName))
		if err != nil {
			return fmt.Errorf("index: open data table for %s: %w", storageName, err)
		}

		body, err := json.Marshal(onDiskRecord{Key: k, StoragePath: storagePath})
		if err != nil {
			return fmt.Errorf("index: encode record: %w", err)
		}
		return data.Put(id, body)
	})
}

func (x *BoltIndex) Delete(k key.Key, storageName string) error {
	canonical, err := key.Canonical(k)
	if err != nil {
		return fmt.Errorf("index: canonicalize key: %w", err)
	}

	return x.db.Update(func(tx *bolt.Tx) error {
		id := tx.Bucket(bucketKeyIDs).Get(canonical)
		if id == nil {
			return nil
		}

		data := tx.Bucket(dataBucketName(storageName))
		if data == nil {
			return nil
		}
		return data.Delete(id)
	})
}

func (x *BoltIndex) Find(q query.Query, storageName string) ([]key.Key, error) {
	var results []key.Key

	err := x.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(dataBucketName(storageName))
		if data == nil {
			return nil
		}

		return data.ForEach(func(_, v []byte) error {
			var rec onDiskRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("index: decode record: %w", err)
			}
			if q.Match(rec.Key) {
				results = append(results, rec.Key)
			}
			return nil
		})
	})
	return results, err
}
