package filedb

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cuemby/filedb/pkg/key"
	"github.com/cuemby/filedb/pkg/lockfile"
	"github.com/cuemby/filedb/pkg/log"
	"github.com/cuemby/filedb/pkg/metrics"
	"github.com/cuemby/filedb/pkg/storage"
	"github.com/google/uuid"
)

// File is a handle on a single key within a FileDB. It carries no
// state beyond the key and a reference to its owning FileDB; building
// one does no I/O.
type File struct {
	Key key.Key
	db  *FileDB
}

// Exists reports whether Key currently resolves to a storage-path.
func (f *File) Exists() (bool, error) {
	_, found, err := f.db.Index.StoragePath(f.Key, f.db.Storage.Name())
	if err != nil {
		return false, fmt.Errorf("filedb: exists %v: %w", f.Key, err)
	}
	return found, nil
}

// Read resolves Key to its storage-path and returns a handle to its
// bytes. For a storage.Sync adapter this refreshes the local cache
// first if it is missing or stale, under the read/write lock protocol
// documented on pkg/lockfile; the returned handle's Close releases
// whatever lock Read acquired.
func (f *File) Read() (io.ReadCloser, error) {
	timer := metrics.NewTimer()
	sp, found, err := f.db.Index.StoragePath(f.Key, f.db.Storage.Name())
	if err != nil {
		metrics.OperationsTotal.WithLabelValues("read", "error").Inc()
		return nil, fmt.Errorf("filedb: read %v: %w", f.Key, err)
	}
	if !found {
		metrics.OperationsTotal.WithLabelValues("read", "not_found").Inc()
		return nil, notFoundf("filedb: read %v", f.Key)
	}

	if direct, ok := f.db.Storage.(storage.DirectTransport); ok {
		rc, err := direct.ReadHandle(sp)
		if err != nil {
			metrics.OperationsTotal.WithLabelValues("read", "error").Inc()
			return nil, fmt.Errorf("filedb: read %v: %w", f.Key, err)
		}
		metrics.OperationsTotal.WithLabelValues("read", "ok").Inc()
		timer.ObserveDurationVec(metrics.OperationDuration, "read")
		return rc, nil
	}

	sync, ok := f.db.Storage.(storage.Sync)
	if !ok {
		return nil, fmt.Errorf("filedb: storage %q supports neither read path: %w", f.db.Storage.Name(), InvalidArgument)
	}

	cachePath, err := f.db.Cache.Path(sp, f.db.Storage.Name(), f.db.Index.Name())
	if err != nil {
		return nil, fmt.Errorf("filedb: read %v: %w", f.Key, err)
	}

	releaseRead, err := f.db.Cache.ReadLock(cachePath)
	if err != nil {
		metrics.OperationsTotal.WithLabelValues("read", "locked").Inc()
		return nil, err
	}

	if err := f.refreshCacheIfStale(sync, sp, cachePath); err != nil {
		releaseRead()
		metrics.OperationsTotal.WithLabelValues("read", "error").Inc()
		return nil, err
	}

	handle, err := os.Open(cachePath)
	if err != nil {
		releaseRead()
		metrics.OperationsTotal.WithLabelValues("read", "error").Inc()
		return nil, fmt.Errorf("filedb: open cache file for %v: %w", f.Key, err)
	}

	metrics.OperationsTotal.WithLabelValues("read", "ok").Inc()
	timer.ObserveDurationVec(metrics.OperationDuration, "read")
	return &lockedReadCloser{file: handle, release: releaseRead}, nil
}

// refreshCacheIfStale implements steps 5 of the read pipeline: if the
// cache entry is missing or its checksum disagrees with Storage's, it
// upgrades to a write lock (permitted on top of the held read lock by
// the own-lock skip rule) and downloads a fresh copy.
func (f *File) refreshCacheIfStale(sync storage.Sync, sp, cachePath string) error {
	fresh := f.db.Cache.Exists(cachePath)
	if fresh {
		cacheSum, err := f.db.Cache.CRC32(cachePath)
		if err != nil {
			return fmt.Errorf("filedb: checksum cache entry for %v: %w", f.Key, err)
		}
		storageSum, err := sync.CRC32(sp)
		if err != nil {
			return fmt.Errorf("filedb: checksum storage entry for %v: %w", f.Key, err)
		}
		fresh = cacheSum == storageSum
	}
	if fresh {
		metrics.CacheHitsTotal.Inc()
		return nil
	}
	metrics.CacheMissesTotal.Inc()

	releaseWrite, err := f.db.Cache.WriteLock(cachePath)
	if err != nil {
		return err
	}
	defer releaseWrite()

	if err := sync.Download(sp, cachePath); err != nil {
		return fmt.Errorf("filedb: download %v: %w", f.Key, err)
	}

	info, err := os.Stat(cachePath)
	if err == nil {
		metrics.CacheBytesDownloaded.Add(float64(info.Size()))
	}

	cacheSum, err := f.db.Cache.CRC32(cachePath)
	if err != nil {
		return fmt.Errorf("filedb: checksum downloaded cache entry for %v: %w", f.Key, err)
	}
	storageSum, err := sync.CRC32(sp)
	if err != nil {
		return fmt.Errorf("filedb: checksum storage entry for %v: %w", f.Key, err)
	}
	if cacheSum != storageSum {
		return fmt.Errorf("filedb: %v: %w", f.Key, IntegrityError)
	}
	log.WithStoragePath(sp).Debug().Str("key", fmt.Sprint(f.Key)).Msg("refreshed stale cache entry")
	return nil
}

// Write allocates a fresh storage-path and returns a handle to write
// its bytes to. On Close it uploads (for a Sync adapter) and finally
// publishes the key -> storage-path mapping in the Index; the
// publication is deliberately the last step, so a crash before it
// leaves only an orphaned blob, never a corrupt mapping.
//
// If overwrite is false and Key already resolves to a storage-path,
// Write returns AlreadyExists without allocating anything.
func (f *File) Write(overwrite bool) (io.WriteCloser, error) {
	if err := key.Validate(f.Key); err != nil {
		return nil, fmt.Errorf("filedb: write %v: %w: %w", f.Key, err, InvalidArgument)
	}
	if !overwrite {
		exists, err := f.Exists()
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, fmt.Errorf("filedb: write %v: %w", f.Key, AlreadyExists)
		}
	}

	timer := metrics.NewTimer()
	sp := uuid.NewString()

	if direct, ok := f.db.Storage.(storage.DirectTransport); ok {
		wc, err := direct.WriteHandle(sp)
		if err != nil {
			metrics.OperationsTotal.WithLabelValues("write", "error").Inc()
			return nil, fmt.Errorf("filedb: write %v: %w", f.Key, err)
		}
		return &publishingWriteCloser{
			inner: wc,
			onClose: func() error {
				err := f.db.Index.Upsert(f.Key, sp, f.db.Storage.Name())
				timer.ObserveDurationVec(metrics.OperationDuration, "write")
				return err
			},
		}, nil
	}

	sync, ok := f.db.Storage.(storage.Sync)
	if !ok {
		return nil, fmt.Errorf("filedb: storage %q supports neither write path: %w", f.db.Storage.Name(), InvalidArgument)
	}

	cachePath, err := f.db.Cache.Path(sp, f.db.Storage.Name(), f.db.Index.Name())
	if err != nil {
		return nil, fmt.Errorf("filedb: write %v: %w", f.Key, err)
	}

	releaseRead, err := f.db.Cache.ReadLock(cachePath)
	if err != nil {
		metrics.OperationsTotal.WithLabelValues("write", "locked").Inc()
		return nil, err
	}
	releaseWrite, err := f.db.Cache.WriteLock(cachePath)
	if err != nil {
		releaseRead()
		metrics.OperationsTotal.WithLabelValues("write", "locked").Inc()
		return nil, err
	}

	handle, err := os.OpenFile(cachePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		releaseWrite()
		releaseRead()
		metrics.OperationsTotal.WithLabelValues("write", "error").Inc()
		return nil, fmt.Errorf("filedb: open cache file for %v: %w", f.Key, err)
	}

	return &syncWriteCloser{
		file:        handle,
		releaseRead: releaseRead,
		onWriteDone: releaseWrite,
		publish: func() error {
			checksum, err := f.db.Cache.CRC32(cachePath)
			if err != nil {
				return fmt.Errorf("filedb: checksum cache entry for %v: %w", f.Key, err)
			}
			if err := sync.Upload(cachePath, sp, checksum); err != nil {
				return fmt.Errorf("filedb: upload %v: %w", f.Key, err)
			}
			return nil
		},
		index: func() error {
			err := f.db.Index.Upsert(f.Key, sp, f.db.Storage.Name())
			timer.ObserveDurationVec(metrics.OperationDuration, "write")
			return err
		},
	}, nil
}

// Copy server-side copies the bytes behind Key to a new storage-path,
// then upserts to's key pointing at it. to must belong to the same
// FileDB instance; cross-storage or cross-index copies are not
// implemented.
func (f *File) Copy(to *File) error {
	if err := f.checkSameDB(to); err != nil {
		return err
	}
	if err := key.Validate(to.Key); err != nil {
		return fmt.Errorf("filedb: copy to %v: %w: %w", to.Key, err, InvalidArgument)
	}

	sp1, found, err := f.db.Index.StoragePath(f.Key, f.db.Storage.Name())
	if err != nil {
		return fmt.Errorf("filedb: copy %v: %w", f.Key, err)
	}
	if !found {
		return notFoundf("filedb: copy %v", f.Key)
	}

	sp2 := uuid.NewString()
	if err := f.db.Storage.Copy(sp1, sp2); err != nil {
		metrics.OperationsTotal.WithLabelValues("copy", "error").Inc()
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("filedb: copy %v to %v: %w: %w", f.Key, to.Key, err, NotFound)
		}
		return fmt.Errorf("filedb: copy %v to %v: %w", f.Key, to.Key, err)
	}
	if err := f.db.Index.Upsert(to.Key, sp2, f.db.Storage.Name()); err != nil {
		metrics.OperationsTotal.WithLabelValues("copy", "error").Inc()
		return fmt.Errorf("filedb: copy %v to %v: %w", f.Key, to.Key, err)
	}
	metrics.OperationsTotal.WithLabelValues("copy", "ok").Inc()
	return nil
}

// Move copies the bytes behind Key under a new storage-path pointed
// at by to's key, then deletes Key's old Index record and the
// original blob. The window between those two deletes means a crash
// can leave the new copy published with the old one not yet cleaned
// up, never the reverse.
func (f *File) Move(to *File) error {
	if err := f.checkSameDB(to); err != nil {
		return err
	}
	if err := key.Validate(to.Key); err != nil {
		return fmt.Errorf("filedb: move to %v: %w: %w", to.Key, err, InvalidArgument)
	}

	sp1, found, err := f.db.Index.StoragePath(f.Key, f.db.Storage.Name())
	if err != nil {
		return fmt.Errorf("filedb: move %v: %w", f.Key, err)
	}
	if !found {
		return notFoundf("filedb: move %v", f.Key)
	}

	sp2 := uuid.NewString()
	if err := f.db.Storage.Copy(sp1, sp2); err != nil {
		metrics.OperationsTotal.WithLabelValues("move", "error").Inc()
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("filedb: move %v to %v: %w: %w", f.Key, to.Key, err, NotFound)
		}
		return fmt.Errorf("filedb: move %v to %v: %w", f.Key, to.Key, err)
	}
	if err := f.db.Index.Upsert(to.Key, sp2, f.db.Storage.Name()); err != nil {
		metrics.OperationsTotal.WithLabelValues("move", "error").Inc()
		return fmt.Errorf("filedb: move %v to %v: %w", f.Key, to.Key, err)
	}
	if err := f.db.Index.Delete(f.Key, f.db.Storage.Name()); err != nil {
		metrics.OperationsTotal.WithLabelValues("move", "error").Inc()
		return fmt.Errorf("filedb: move %v to %v: %w", f.Key, to.Key, err)
	}
	if err := f.db.Storage.Delete(sp1); err != nil {
		metrics.OperationsTotal.WithLabelValues("move", "error").Inc()
		metrics.OrphanedBlobsTotal.Inc()
		return fmt.Errorf("filedb: move %v to %v: %w", f.Key, to.Key, err)
	}
	metrics.OperationsTotal.WithLabelValues("move", "ok").Inc()
	return nil
}

// Delete removes Key's Index record and its underlying blob. Deleting
// an already-absent key is not an error.
func (f *File) Delete() error {
	sp, found, err := f.db.Index.StoragePath(f.Key, f.db.Storage.Name())
	if err != nil {
		return fmt.Errorf("filedb: delete %v: %w", f.Key, err)
	}
	if !found {
		metrics.OperationsTotal.WithLabelValues("delete", "ok").Inc()
		return nil
	}

	if err := f.db.Index.Delete(f.Key, f.db.Storage.Name()); err != nil {
		metrics.OperationsTotal.WithLabelValues("delete", "error").Inc()
		return fmt.Errorf("filedb: delete %v: %w", f.Key, err)
	}
	if err := f.db.Storage.Delete(sp); err != nil {
		metrics.OperationsTotal.WithLabelValues("delete", "error").Inc()
		metrics.OrphanedBlobsTotal.Inc()
		return fmt.Errorf("filedb: delete %v: %w", f.Key, err)
	}
	metrics.OperationsTotal.WithLabelValues("delete", "ok").Inc()
	return nil
}

func (f *File) checkSameDB(to *File) error {
	if f.db.Index != to.db.Index || f.db.Storage != to.db.Storage {
		return fmt.Errorf("filedb: copy/move across a different storage or index is not supported: %w", InvalidArgument)
	}
	return nil
}

// lockedReadCloser releases a held cache read lock when the
// underlying file is closed, regardless of how the caller closed it.
type lockedReadCloser struct {
	file    *os.File
	release lockfile.Release
}

func (l *lockedReadCloser) Read(p []byte) (int, error) { return l.file.Read(p) }

func (l *lockedReadCloser) Close() error {
	closeErr := l.file.Close()
	releaseErr := l.release()
	if closeErr != nil {
		return closeErr
	}
	return releaseErr
}

// publishingWriteCloser wraps a DirectTransport write handle: closing
// it closes the underlying handle, then publishes the Index mapping.
type publishingWriteCloser struct {
	inner   io.WriteCloser
	onClose func() error
}

func (p *publishingWriteCloser) Write(b []byte) (int, error) { return p.inner.Write(b) }

func (p *publishingWriteCloser) Close() error {
	if err := p.inner.Close(); err != nil {
		return err
	}
	return p.onClose()
}

// syncWriteCloser implements the Sync-adapter write pipeline's close
// sequence: close the cache file, release the write lock, upload,
// release the read lock, then publish the Index mapping — in that
// order, so publication always happens last.
type syncWriteCloser struct {
	file        *os.File
	releaseRead lockfile.Release
	onWriteDone lockfile.Release
	publish     func() error
	index       func() error
}

func (s *syncWriteCloser) Write(b []byte) (int, error) { return s.file.Write(b) }

func (s *syncWriteCloser) Close() error {
	closeErr := s.file.Close()
	writeUnlockErr := s.onWriteDone()
	if closeErr != nil {
		s.releaseRead()
		return closeErr
	}
	if writeUnlockErr != nil {
		s.releaseRead()
		return writeUnlockErr
	}

	publishErr := s.publish()
	readUnlockErr := s.releaseRead()
	if publishErr != nil {
		return publishErr
	}
	if readUnlockErr != nil {
		return readUnlockErr
	}
	return s.index()
}
