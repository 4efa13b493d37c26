// Package constants defines cross-cutting default values shared by the
// ingest pipeline, the cache, and the object store, so a caller building
// pkg/musiccore/config.DefaultConfig() has one place to read them from.
package constants

// Chunking defaults.
const (
	// ChunkSizeBytes is the plaintext size of one chunk before encryption.
	ChunkSizeBytes = 1024 * 1024 // 1 MiB

	// MaxEncryptWorkers is the floor for the CPU-bound encrypt stage
	// parallelism; config.DefaultConfig uses 2×runtime.NumCPU() when that
	// is larger.
	MaxEncryptWorkers = 4

	// MaxUploadWorkers is the default I/O-bound upload stage parallelism.
	MaxUploadWorkers = 20

	// MaxImportDBWriteWorkers bounds concurrent DB writers during import.
	MaxImportDBWriteWorkers = 10
)

// Streaming defaults.
const (
	// PrefetchWindowChunks is how many chunks ahead a stream reader
	// speculatively warms into the cache.
	PrefetchWindowChunks = 3
)

// Hash algorithm used for cache integrity checks (chunk ids are random
// UUIDs, not hashes).
const HashAlgorithm = "blake3-256"
