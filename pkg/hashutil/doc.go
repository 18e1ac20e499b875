/*
Package hashutil computes the CRC32 checksum FileDB uses to decide
whether a cached copy of a blob is still fresh.

CRC32 is deliberately implemented on the standard library's
hash/crc32: it is the exact, specified algorithm (IEEE polynomial) and
stdlib's implementation already uses architecture-specific
acceleration on amd64/arm64, so no third-party checksum library in the
dependency surface does anything this package couldn't already do
directly — see the design log for the full justification.

# Usage

	sum, err := hashutil.CRC32("/var/cache/filedb/.../data")

Never loads a whole file into memory: CRC32 streams fixed-size chunks
into a running checksum so a large blob costs O(ChunkSize) memory.
*/
package hashutil
