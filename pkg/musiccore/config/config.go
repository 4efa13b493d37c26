// Package config collects every tunable the ingest pipeline, cache, and
// object store need into one struct, with a DefaultConfig() constructor
// and LoadFromEnv() reading BAE_*-prefixed environment variables with
// fallback to those defaults.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"runtime"
	"strconv"

	"github.com/hideselfview/bae/pkg/cache"
	"github.com/hideselfview/bae/pkg/constants"
	"github.com/hideselfview/bae/pkg/objectstore"
)

// ObjectStoreConfig is the S3-compatible target a release's chunks are
// uploaded to.
type ObjectStoreConfig struct {
	Bucket   string
	Region   string
	Endpoint string
	Key      string
	Secret   string
}

// Config is the single top-level configuration surface for baecore.
type Config struct {
	ChunkSizeBytes          int64
	MaxEncryptWorkers       int
	MaxUploadWorkers        int
	MaxImportDBWriteWorkers int

	CacheDir          string
	CacheMaxSizeBytes int64
	CacheMaxChunks    int

	ObjectStore ObjectStoreConfig

	// EncryptionMasterKey is the 32-byte master key, hex-encoded. Empty
	// means "generate and persist one on first run" (see
	// chunkcodec.LoadOrCreateMasterKey).
	EncryptionMasterKey string
}

// DefaultConfig returns every tunable at its documented default.
func DefaultConfig() Config {
	cacheDefaults := cache.DefaultConfig()
	encryptWorkers := 2 * runtime.NumCPU()
	if encryptWorkers < constants.MaxEncryptWorkers {
		encryptWorkers = constants.MaxEncryptWorkers
	}
	return Config{
		ChunkSizeBytes:          constants.ChunkSizeBytes,
		MaxEncryptWorkers:       encryptWorkers,
		MaxUploadWorkers:        constants.MaxUploadWorkers,
		MaxImportDBWriteWorkers: constants.MaxImportDBWriteWorkers,
		CacheDir:                cacheDefaults.CacheDir,
		CacheMaxSizeBytes:       cache.DefaultMaxSizeBytes,
		CacheMaxChunks:          cache.DefaultMaxChunks,
	}
}

// Validate rejects configurations that would misbehave rather than fail
// fast: zero or negative sizes/worker counts, and (when an object store
// bucket is configured at all) a missing region.
func (c Config) Validate() error {
	if c.ChunkSizeBytes <= 0 {
		return fmt.Errorf("config: chunk_size_bytes must be positive, got %d", c.ChunkSizeBytes)
	}
	if c.MaxEncryptWorkers <= 0 {
		return fmt.Errorf("config: max_encrypt_workers must be positive, got %d", c.MaxEncryptWorkers)
	}
	if c.MaxUploadWorkers <= 0 {
		return fmt.Errorf("config: max_upload_workers must be positive, got %d", c.MaxUploadWorkers)
	}
	if c.MaxImportDBWriteWorkers <= 0 {
		return fmt.Errorf("config: max_import_db_write_workers must be positive, got %d", c.MaxImportDBWriteWorkers)
	}
	if c.CacheMaxSizeBytes <= 0 {
		return fmt.Errorf("config: cache_max_size_bytes must be positive, got %d", c.CacheMaxSizeBytes)
	}
	if c.CacheMaxChunks <= 0 {
		return fmt.Errorf("config: cache_max_chunks must be positive, got %d", c.CacheMaxChunks)
	}
	if c.ObjectStore.Bucket != "" && c.ObjectStore.Region == "" {
		return fmt.Errorf("config: object_store.region is required when object_store.bucket is set")
	}
	if c.EncryptionMasterKey != "" {
		key, err := hex.DecodeString(c.EncryptionMasterKey)
		if err != nil {
			return fmt.Errorf("config: encryption_master_key is not valid hex: %w", err)
		}
		if len(key) != 32 {
			return fmt.Errorf("config: encryption_master_key must decode to 32 bytes, got %d", len(key))
		}
	}
	return nil
}

// CacheConfig projects the cache-relevant fields into cache.Config.
func (c Config) CacheConfig() cache.Config {
	return cache.Config{
		CacheDir:     c.CacheDir,
		MaxSizeBytes: c.CacheMaxSizeBytes,
		MaxChunks:    c.CacheMaxChunks,
	}
}

// S3Config projects the object-store fields into objectstore.S3Config.
func (c Config) S3Config() objectstore.S3Config {
	return objectstore.S3Config{
		Bucket:          c.ObjectStore.Bucket,
		Region:          c.ObjectStore.Region,
		Endpoint:        c.ObjectStore.Endpoint,
		AccessKeyID:     c.ObjectStore.Key,
		SecretAccessKey: c.ObjectStore.Secret,
	}
}

// LoadFromEnv builds a Config starting from DefaultConfig() and
// overriding any field whose BAE_* environment variable is set.
func LoadFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v, ok := os.LookupEnv("BAE_CHUNK_SIZE_BYTES"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("config: invalid BAE_CHUNK_SIZE_BYTES: %w", err)
		}
		cfg.ChunkSizeBytes = n
	}
	if v, ok := os.LookupEnv("BAE_MAX_ENCRYPT_WORKERS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: invalid BAE_MAX_ENCRYPT_WORKERS: %w", err)
		}
		cfg.MaxEncryptWorkers = n
	}
	if v, ok := os.LookupEnv("BAE_MAX_UPLOAD_WORKERS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: invalid BAE_MAX_UPLOAD_WORKERS: %w", err)
		}
		cfg.MaxUploadWorkers = n
	}
	if v, ok := os.LookupEnv("BAE_MAX_IMPORT_DB_WRITE_WORKERS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: invalid BAE_MAX_IMPORT_DB_WRITE_WORKERS: %w", err)
		}
		cfg.MaxImportDBWriteWorkers = n
	}

	if v, ok := os.LookupEnv("BAE_CACHE_DIR"); ok {
		cfg.CacheDir = v
	}
	if v, ok := os.LookupEnv("BAE_CACHE_MAX_SIZE_BYTES"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("config: invalid BAE_CACHE_MAX_SIZE_BYTES: %w", err)
		}
		cfg.CacheMaxSizeBytes = n
	}
	if v, ok := os.LookupEnv("BAE_CACHE_MAX_CHUNKS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: invalid BAE_CACHE_MAX_CHUNKS: %w", err)
		}
		cfg.CacheMaxChunks = n
	}

	cfg.ObjectStore = ObjectStoreConfig{
		Bucket:   os.Getenv("BAE_S3_BUCKET"),
		Region:   os.Getenv("BAE_S3_REGION"),
		Endpoint: os.Getenv("BAE_S3_ENDPOINT_URL"),
		Key:      os.Getenv("BAE_S3_ACCESS_KEY_ID"),
		Secret:   os.Getenv("BAE_S3_SECRET_ACCESS_KEY"),
	}

	if v, ok := os.LookupEnv("BAE_ENCRYPTION_MASTER_KEY"); ok {
		cfg.EncryptionMasterKey = v
	}

	return cfg, nil
}
