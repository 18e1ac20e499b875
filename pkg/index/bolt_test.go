package index

import (
	"path/filepath"
	"testing"

	"github.com/cuemby/filedb/pkg/key"
	"github.com/cuemby/filedb/pkg/query"
	bolt "go.etcd.io/bbolt"
)

func newTestBoltIndex(t *testing.T) *BoltIndex {
	t.Helper()
	idx, err := NewBoltIndex("test", t.TempDir())
	if err != nil {
		t.Fatalf("NewBoltIndex: %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

// keyIDFor returns a copy of the key-id bound to k's canonical form, or
// nil if none has been minted.
func keyIDFor(t *testing.T, idx *BoltIndex, k key.Key) []byte {
	t.Helper()
	canonical, err := key.Canonical(k)
	if err != nil {
		t.Fatalf("Canonical: %v", err)
	}
	var id []byte
	if err := idx.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketKeyIDs).Get(canonical); v != nil {
			id = append([]byte(nil), v...)
		}
		return nil
	}); err != nil {
		t.Fatalf("View: %v", err)
	}
	return id
}

func TestStoragePathAbsentBeforeUpsert(t *testing.T) {
	idx := newTestBoltIndex(t)
	k := key.Key{"name": "a.png"}

	_, found, err := idx.StoragePath(k, "local")
	if err != nil {
		t.Fatalf("StoragePath: %v", err)
	}
	if found {
		t.Fatalf("expected no storage path before any upsert")
	}
}

func TestUpsertThenStoragePathRoundTrips(t *testing.T) {
	idx := newTestBoltIndex(t)
	k := key.Key{"name": "a.png", "size": int64(12)}

	if err := idx.Upsert(k, "ab/cdef", "local"); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	path, found, err := idx.StoragePath(k, "local")
	if err != nil {
		t.Fatalf("StoragePath: %v", err)
	}
	if !found || path != "ab/cdef" {
		t.Fatalf("StoragePath = (%q, %v), want (ab/cdef, true)", path, found)
	}
}

func TestUpsertOverwritesStoragePath(t *testing.T) {
	idx := newTestBoltIndex(t)
	k := key.Key{"name": "a.png"}

	if err := idx.Upsert(k, "ab/first", "local"); err != nil {
		t.Fatalf("first Upsert: %v", err)
	}
	if err := idx.Upsert(k, "cd/second", "local"); err != nil {
		t.Fatalf("second Upsert: %v", err)
	}

	path, found, err := idx.StoragePath(k, "local")
	if err != nil {
		t.Fatalf("StoragePath: %v", err)
	}
	if !found || path != "cd/second" {
		t.Fatalf("StoragePath = (%q, %v), want (cd/second, true)", path, found)
	}
}

func TestSameCanonicalKeySharesKeyIDAcrossStorages(t *testing.T) {
	idx := newTestBoltIndex(t)
	k := key.Key{"name": "a.png"}

	if err := idx.Upsert(k, "ab/local", "local"); err != nil {
		t.Fatalf("Upsert local: %v", err)
	}
	if err := idx.Upsert(k, "s3key", "s3"); err != nil {
		t.Fatalf("Upsert s3: %v", err)
	}

	localPath, found, err := idx.StoragePath(k, "local")
	if err != nil || !found || localPath != "ab/local" {
		t.Fatalf("StoragePath(local) = (%q, %v, %v)", localPath, found, err)
	}
	s3Path, found, err := idx.StoragePath(k, "s3")
	if err != nil || !found || s3Path != "s3key" {
		t.Fatalf("StoragePath(s3) = (%q, %v, %v)", s3Path, found, err)
	}

	var ids int
	if err := idx.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketKeyIDs).ForEach(func(_, _ []byte) error {
			ids++
			return nil
		})
	}); err != nil {
		t.Fatalf("count key-ids: %v", err)
	}
	if ids != 1 {
		t.Fatalf("expected one key-id shared by both storages, got %d", ids)
	}
}

func TestDeleteRemovesDataRecordButKeepsKeyID(t *testing.T) {
	idx := newTestBoltIndex(t)
	k := key.Key{"name": "a.png"}

	if err := idx.Upsert(k, "ab/local", "local"); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	original := keyIDFor(t, idx, k)
	if original == nil {
		t.Fatalf("expected a key-id after upsert")
	}
	if err := idx.Delete(k, "local"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got := keyIDFor(t, idx, k); string(got) != string(original) {
		t.Fatalf("key-id after delete = %q, want %q", got, original)
	}

	_, found, err := idx.StoragePath(k, "local")
	if err != nil {
		t.Fatalf("StoragePath: %v", err)
	}
	if found {
		t.Fatalf("expected no storage path after delete")
	}

	// Re-upserting the same key, here under a different storage name,
	// must reuse the original key-id binding rather than failing or
	// minting a second one.
	if err := idx.Upsert(k, "ef/other", "other"); err != nil {
		t.Fatalf("Upsert after delete: %v", err)
	}
	if got := keyIDFor(t, idx, k); string(got) != string(original) {
		t.Fatalf("key-id after re-upsert = %q, want %q", got, original)
	}
}

func TestDeleteOfAbsentRecordIsNotAnError(t *testing.T) {
	idx := newTestBoltIndex(t)
	k := key.Key{"name": "never-written"}

	if err := idx.Delete(k, "local"); err != nil {
		t.Fatalf("Delete of absent record should not error, got: %v", err)
	}
}

func TestFindMatchesQueryAgainstUserKeyFields(t *testing.T) {
	idx := newTestBoltIndex(t)

	photos := []key.Key{
		{"kind": "photo", "owner": "alice"},
		{"kind": "photo", "owner": "bob"},
		{"kind": "video", "owner": "alice"},
	}
	for i, k := range photos {
		if err := idx.Upsert(k, filepath.Join("sp", string(rune('a'+i))), "local"); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}

	q := query.New(query.Field{Name: "kind", Predicate: query.Equal("photo")})
	results, err := idx.Find(q, "local")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 photo records, got %d", len(results))
	}
	for _, r := range results {
		if r["kind"] != "photo" {
			t.Fatalf("Find leaked a non-photo record: %+v", r)
		}
	}
}

func TestFindReturnsUserFieldsWithoutInternalColumns(t *testing.T) {
	idx := newTestBoltIndex(t)
	k := key.Key{"name": "a.png"}
	if err := idx.Upsert(k, "ab/local", "local"); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	results, err := idx.Find(query.New(), "local")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 record, got %d", len(results))
	}
	if _, has := results[0][key.FieldStoragePath]; has {
		t.Fatalf("Find leaked the internal storage-path field")
	}
	if results[0]["name"] != "a.png" {
		t.Fatalf("Find result missing user field: %+v", results[0])
	}
}
