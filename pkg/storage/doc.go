/*
Package storage implements FileDB's Storage adapters: the byte-blob
half of the system, addressed by an opaque storage-path rather than by
the user's key.

Every adapter implements Storage (name, copy, delete, crc32). Adapters
split into two shapes:

  - DirectTransport adapters (LocalStorage) expose ReadHandle and
    WriteHandle directly onto the storage-path; the façade never
    touches the local cache for these.
  - Sync adapters (S3Storage, GCSStorage) instead expose Download and
    Upload against a cache_path supplied by pkg/cache; the façade is
    responsible for the read/write lock around that cache_path.

S3Storage and GCSStorage both store the checksum as object metadata
under the "crc32" key, written at Upload and read back by CRC32;
GCSStorage does not read GCS's native crc32c object attribute.
*/
package storage
