package filedb_test

import (
	"errors"
	"io"
	"testing"

	"github.com/cuemby/filedb/pkg/cache"
	"github.com/cuemby/filedb/pkg/filedb"
	"github.com/cuemby/filedb/pkg/index"
	"github.com/cuemby/filedb/pkg/key"
	"github.com/cuemby/filedb/pkg/query"
	"github.com/cuemby/filedb/pkg/storage"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *filedb.FileDB {
	t.Helper()
	idx, err := index.NewBoltIndex("main", t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })

	store := storage.NewLocalStorage("local", t.TempDir())
	db, err := filedb.New(idx, store, nil)
	require.NoError(t, err)
	return db
}

func writeString(t *testing.T, f *filedb.File, overwrite bool, data string) {
	t.Helper()
	w, err := f.Write(overwrite)
	require.NoError(t, err)
	_, err = io.WriteString(w, data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

func readString(t *testing.T, f *filedb.File) string {
	t.Helper()
	r, err := f.Read()
	require.NoError(t, err)
	defer r.Close()
	b, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(b)
}

// TestBasicRoundTrip covers scenario S1: write a key, read it back,
// confirm existence, and find it with the empty query.
func TestBasicRoundTrip(t *testing.T) {
	db := newTestDB(t)
	f := db.File(key.Key{"a": "1"})

	writeString(t, f, true, "hi!")

	require.Equal(t, "hi!", readString(t, f))

	exists, err := f.Exists()
	require.NoError(t, err)
	require.True(t, exists)

	files, err := db.Find(query.New())
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Equal(t, "1", files[0].Key["a"])
}

// TestCopy covers scenario S2: copying a key to a new one leaves both
// readable and both present in an unfiltered find.
func TestCopy(t *testing.T) {
	db := newTestDB(t)
	src := db.File(key.Key{"a": "1"})
	writeString(t, src, true, "hi!")

	dst := db.File(key.Key{"b": "2"})
	require.NoError(t, src.Copy(dst))

	require.Equal(t, "hi!", readString(t, dst))
	require.Equal(t, "hi!", readString(t, src))

	all, err := db.Find(query.New())
	require.NoError(t, err)
	require.Len(t, all, 2)

	filtered, err := db.Find(query.New(query.Field{Name: "a", Predicate: query.Equal("1")}))
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	require.Equal(t, "1", filtered[0].Key["a"])
}

// TestMove covers scenario S3: after a move, the destination reads
// the original bytes and the source key no longer exists.
func TestMove(t *testing.T) {
	db := newTestDB(t)
	src := db.File(key.Key{"b": "2"})
	writeString(t, src, true, "hi!")

	dst := db.File(key.Key{"b": "3"})
	require.NoError(t, src.Move(dst))

	require.Equal(t, "hi!", readString(t, dst))

	exists, err := src.Exists()
	require.NoError(t, err)
	require.False(t, exists, "expected source key to no longer exist after move")
}

// TestDeleteAllEmptiesFind covers scenario S4.
func TestDeleteAllEmptiesFind(t *testing.T) {
	db := newTestDB(t)
	a := db.File(key.Key{"a": "1"})
	b := db.File(key.Key{"b": "3"})
	writeString(t, a, true, "hi!")
	writeString(t, b, true, "hi!")

	require.NoError(t, a.Delete())
	require.NoError(t, b.Delete())

	all, err := db.Find(query.New())
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestDeleteIsIdempotentOnItsOwn(t *testing.T) {
	db := newTestDB(t)
	f := db.File(key.Key{"a": "1"})
	writeString(t, f, true, "hi!")

	require.NoError(t, f.Delete())
	require.NoError(t, f.Delete(), "deleting an already-absent key must not error")
}

func TestReadMissingKeyReturnsNotFound(t *testing.T) {
	db := newTestDB(t)
	f := db.File(key.Key{"missing": "yes"})

	_, err := f.Read()
	require.Error(t, err)
	require.True(t, errors.Is(err, filedb.NotFound))
}

func TestWriteWithoutOverwriteRejectsExistingKey(t *testing.T) {
	db := newTestDB(t)
	f := db.File(key.Key{"a": "1"})
	writeString(t, f, true, "hi!")

	_, err := f.Write(false)
	require.Error(t, err)
	require.True(t, errors.Is(err, filedb.AlreadyExists))
}

func TestOverwriteReplacesBytes(t *testing.T) {
	db := newTestDB(t)
	f := db.File(key.Key{"a": "1"})
	writeString(t, f, true, "first")
	writeString(t, f, true, "second")

	require.Equal(t, "second", readString(t, f))
}

func TestNewRejectsSyncStorageWithoutCache(t *testing.T) {
	idx, err := index.NewBoltIndex("main", t.TempDir())
	require.NoError(t, err)
	defer idx.Close()

	sync := newFakeSync("remote")
	_, err = filedb.New(idx, sync, nil)
	require.Error(t, err)
}

func TestNewAcceptsSyncStorageWithCache(t *testing.T) {
	idx, err := index.NewBoltIndex("main", t.TempDir())
	require.NoError(t, err)
	defer idx.Close()

	sync := newFakeSync("remote")
	c := cache.New(t.TempDir())
	_, err = filedb.New(idx, sync, c)
	require.NoError(t, err)
}
