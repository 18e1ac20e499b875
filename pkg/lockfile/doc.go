/*
Package lockfile implements the reader/writer lock that guards a single
cache entry against concurrent access from other FileDB processes.

There is no shared kernel or database involved: each lock is a small
JSON file living next to the cache entry it protects, named
"{role}_{pid}_{pid_create_time}_{timestamp}_{seq}". Acquiring a lock
means writing that file and then checking every sibling lock file for a
conflicting, still-live holder:

  - A read lock conflicts only with a live write lock.
  - A write lock conflicts with any live read or write lock.
  - A lock whose pid is no longer running, or whose pid has been
    recycled by an unrelated process (detected by comparing OS-reported
    process creation time, not just the pid number), is stale and is
    ignored rather than deleted — a concurrently probing process might
    still need to see it to make the same determination.
  - A sibling lock file that happens to name our own pid and creation
    time is always skipped. This is what allows a single process to
    hold a read lock and then acquire a nested write lock on the same
    path without deadlocking on itself.

Acquisition never blocks or retries, and neither do FileDB's Read and
Write, which return the lock conflict to their caller: a caller that
needs to wait for a busy lock retries the operation itself.
*/
package lockfile
