/*
Package filedb implements the FileDB façade: the read/write
coordination pipeline that is the hard, interesting part of this
repository.

A FileDB ties together exactly one pkg/index.Index and one
pkg/storage.Storage adapter (plus a pkg/cache.Cache when that adapter
is a storage.Sync rather than a storage.DirectTransport). File, built
by FileDB.File or returned from FileDB.Find, exposes Read, Write, Copy,
Move, Delete, and Exists on a single key.

Read resolves the key to a storage-path, then — for a Sync adapter —
acquires a read lock on the cache entry, refreshes it under a nested
write-lock upgrade if it is missing or its checksum disagrees with
Storage, and yields a handle that releases the read lock on Close.

Write allocates a fresh storage-path, writes bytes into the cache under
a held write lock, uploads to Storage with the cache's checksum, and
only as the very last step upserts the key -> storage-path mapping in
the Index — bytes and checksum always reach Storage before the mapping
changes, so a crash mid-pipeline leaves an orphaned blob, never a
corrupt mapping.
*/
package filedb
