/*
Package cache implements FileDB's local cache: the directory layout
for downloaded copies of remote blobs, and the lock-guarded primitives
(Path, ReadLock, WriteLock, CRC32) the façade composes into its
read/write pipeline.

A cache entry lives at root/index-name/storage-name/storage-path/data,
so two storages or two FileDB instances sharing one cache root never
collide. The cache itself never decides freshness or orchestrates
downloads — that sequencing belongs to the façade in pkg/filedb; this
package only knows how to name a path and guard it with pkg/lockfile.
*/
package cache
