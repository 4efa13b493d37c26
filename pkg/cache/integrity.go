package cache

import "lukechampine.com/blake3"

// chunkDigest computes a lightweight content-integrity digest used only
// for cache drift detection (a cached file that has been truncated or
// corrupted on disk, independent of the cache's own bookkeeping). Chunk
// identity itself stays UUID-based; this digest never leaves the cache
// package and is not the chunk_id.
func chunkDigest(data []byte) [32]byte {
	return blake3.Sum256(data)
}
