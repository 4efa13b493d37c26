// Command baecore drives the encrypted chunk pipeline from the command
// line: importing a local folder and inspecting the on-disk chunk cache.
// Mirrors cmd/beenet's switch os.Args[1] dispatch pattern.
package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/hideselfview/bae/pkg/cache"
	"github.com/hideselfview/bae/pkg/chunkcodec"
	"github.com/hideselfview/bae/pkg/cuesheet"
	"github.com/hideselfview/bae/pkg/ingest"
	"github.com/hideselfview/bae/pkg/layout"
	"github.com/hideselfview/bae/pkg/musiccore/config"
	"github.com/hideselfview/bae/pkg/objectstore"
	"github.com/hideselfview/bae/pkg/persistence"
)

// Build-time variables set by ldflags.
var (
	version    = "dev"
	buildTime  = "unknown"
	commitHash = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "version", "--version", "-v":
		printVersion()
	case "help", "--help", "-h":
		printUsage()
	case "import":
		err = runImport(os.Args[2:])
	case "cache":
		err = runCache(os.Args[2:])
	default:
		fmt.Printf("Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "baecore: %v\n", err)
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("baecore %s\n", version)
	fmt.Printf("Built: %s\n", buildTime)
	fmt.Printf("Commit: %s\n", commitHash)
}

func printUsage() {
	fmt.Printf(`baecore v%s - encrypted chunk pipeline for a local music library

Usage:
  baecore <command> [options]

Commands:
  import <folder>   Import a folder of audio files (or a CUE/FLAC pair)
                     as one release: plan its layout, encrypt and upload
                     every chunk, and persist the import metadata.
  cache stats        Print the local chunk cache's occupancy and hit/miss
                     counters.
  cache clear        Remove every entry from the local chunk cache.
  version            Show version information.
  help               Show this help message.

Configuration is read from BAE_* environment variables (see
pkg/musiccore/config); with no object store configured, import runs
against an in-memory object store so the pipeline can be exercised
without cloud credentials.
`, version)
}

// runImport discovers a release folder's audio files, resolves it as
// either a CUE/FLAC image or one file per track, and runs it through
// ImportRelease end to end.
func runImport(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: baecore import <folder>")
	}
	folder := args[0]

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	scanned, err := ingest.CollectReleaseFiles(folder)
	if err != nil {
		return fmt.Errorf("scanning %s: %w", folder, err)
	}
	if len(scanned.Tracks) == 0 {
		return fmt.Errorf("no audio files found under %s", folder)
	}

	files := make([]layout.File, 0, len(scanned.Tracks))
	for _, f := range scanned.Tracks {
		files = append(files, layout.File{Path: f.Path, Size: f.Size})
	}

	releaseID := uuid.NewString()
	album := persistence.Album{ID: uuid.NewString(), Title: filepath.Base(folder)}

	params := ingest.ImportParams{
		ReleaseID:      releaseID,
		Album:          album,
		ChunkSizeBytes: cfg.ChunkSizeBytes,
		Files:          files,
	}

	cuePairs, err := cuesheet.DetectPairs(folder)
	if err != nil {
		return fmt.Errorf("detecting cue/flac pairs: %w", err)
	}
	if len(cuePairs) > 0 {
		params.CueTracks, err = cueTrackAssignments(cuePairs)
		if err != nil {
			return err
		}
	} else {
		params.DirectTracks = directTrackAssignments(scanned.Tracks)
	}

	objStore, err := buildObjectStore(cfg)
	if err != nil {
		return err
	}
	writer, err := buildWriter(cfg)
	if err != nil {
		return err
	}
	diskCache, err := cache.New(cfg.CacheConfig())
	if err != nil {
		return err
	}
	codec, err := buildCodec(cfg)
	if err != nil {
		return err
	}

	params.Writer = writer
	params.Pipeline = &ingest.Pipeline{
		Config: ingest.Config{MaxEncryptWorkers: cfg.MaxEncryptWorkers, MaxUploadWorkers: cfg.MaxUploadWorkers},
		Codec:  codec,
		Store:  objStore,
		Cache:  diskCache,
		Writer: writer,
	}

	fmt.Printf("importing %s as release %s (%d files, %d-byte chunks)\n", folder, releaseID, len(files), cfg.ChunkSizeBytes)
	if err := ingest.ImportRelease(context.Background(), params); err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	fmt.Printf("release %s complete\n", releaseID)
	return nil
}

// directTrackAssignments builds a one-track-per-file assignment for a
// release with no CUE sheet, in discovery order.
func directTrackAssignments(files []ingest.ScannedFile) []ingest.DirectTrackAssignment {
	out := make([]ingest.DirectTrackAssignment, 0, len(files))
	for _, f := range files {
		out = append(out, ingest.DirectTrackAssignment{
			TrackID: uuid.NewString(),
			Title:   strippedExt(filepath.Base(f.Path)),
			Path:    f.Path,
		})
	}
	return out
}

func strippedExt(name string) string {
	return name[:len(name)-len(filepath.Ext(name))]
}

// cueTrackAssignments parses every detected CUE sheet and flattens its
// tracks into CueTrackAssignments keyed against the physical FLAC path.
func cueTrackAssignments(pairs []cuesheet.Pair) ([]ingest.CueTrackAssignment, error) {
	var out []ingest.CueTrackAssignment
	for _, pair := range pairs {
		content, err := os.ReadFile(pair.CuePath)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", pair.CuePath, err)
		}
		sheet, err := cuesheet.Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", pair.CuePath, err)
		}
		for _, t := range sheet.Tracks {
			out = append(out, ingest.CueTrackAssignment{
				TrackID:  uuid.NewString(),
				FlacPath: pair.FlacPath,
				CueTrack: t,
			})
		}
	}
	return out, nil
}

// buildObjectStore returns the S3-compatible store when a bucket is
// configured, otherwise an in-memory store so import can be exercised
// without cloud credentials.
func buildObjectStore(cfg config.Config) (objectstore.Store, error) {
	if cfg.ObjectStore.Bucket == "" {
		return objectstore.NewMemoryStore(), nil
	}
	return objectstore.NewS3Store(cfg.S3Config())
}

// buildWriter returns an in-memory persistence.Writer snapshotted to a
// CBOR file under the cache directory, since the relational schema itself
// is out of this core's scope.
func buildWriter(cfg config.Config) (persistence.Writer, error) {
	snapPath := filepath.Join(cfg.CacheDir, "persistence.cbor")
	return persistence.NewMemoryWriter(snapPath)
}

// buildCodec loads (or, on first run, generates and persists) the
// install's master key from a file-backed keystore under the cache
// directory, deriving a stable key id from the configured key material
// when one was supplied via BAE_ENCRYPTION_MASTER_KEY.
func buildCodec(cfg config.Config) (*chunkcodec.Codec, error) {
	keyDir := filepath.Join(cfg.CacheDir, "keys")
	if err := os.MkdirAll(keyDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating key directory: %w", err)
	}
	storage := chunkcodec.NewFileKeyStorage(keyDir)

	if cfg.EncryptionMasterKey == "" {
		return chunkcodec.LoadOrCreateMasterKey(storage, "default")
	}

	raw, err := hex.DecodeString(cfg.EncryptionMasterKey)
	if err != nil {
		return nil, fmt.Errorf("decoding encryption_master_key: %w", err)
	}
	var key [32]byte
	copy(key[:], raw)
	keyID := keyIDFor(key)
	if _, err := storage.LoadKey(keyID); err != nil {
		if err := storage.StoreKey(keyID, key); err != nil {
			return nil, err
		}
	}
	return chunkcodec.NewCodec(key, keyID)
}

// keyIDFor derives a stable, non-secret identifier for a master key so
// blobs encrypted under a configured (rather than generated) key can
// still be matched on decrypt.
func keyIDFor(key [32]byte) string {
	sum := sha256.Sum256(key[:])
	return hex.EncodeToString(sum[:8])
}

func runCache(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: baecore cache <stats|clear>")
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}
	c, err := cache.New(cfg.CacheConfig())
	if err != nil {
		return err
	}

	switch args[0] {
	case "stats":
		s := c.Stats()
		fmt.Printf("chunks:    %d / %d\n", s.TotalChunks, s.MaxChunks)
		fmt.Printf("bytes:     %d / %d\n", s.TotalSizeBytes, s.MaxSizeBytes)
		fmt.Printf("hits:      %d\n", s.Hits)
		fmt.Printf("misses:    %d\n", s.Misses)
		return nil
	case "clear":
		c.Clear()
		fmt.Println("cache cleared")
		return nil
	default:
		return fmt.Errorf("unknown cache subcommand %q", args[0])
	}
}
