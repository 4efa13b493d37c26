package ingest

import (
	"context"
	"log"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hideselfview/bae/pkg/cache"
	"github.com/hideselfview/bae/pkg/chunkcodec"
	"github.com/hideselfview/bae/pkg/musicerr"
	"github.com/hideselfview/bae/pkg/objectstore"
	"github.com/hideselfview/bae/pkg/persistence"
)

// ProducedChunk is one unencrypted chunk record read off a producer.
type ProducedChunk struct {
	ChunkID    string
	ChunkIndex int
	Data       []byte
}

type encryptedChunk struct {
	ChunkID    string
	ChunkIndex int
	Blob       []byte
}

// Config bounds the pipeline's worker concurrency.
type Config struct {
	MaxEncryptWorkers int
	MaxUploadWorkers  int
}

// DefaultConfig returns 20 upload workers and the 4-worker encrypt floor;
// sizing encrypt workers to 2×cores (runtime.NumCPU) is an ambient-config
// concern, done in pkg/musiccore/config.
func DefaultConfig() Config {
	return Config{MaxEncryptWorkers: 4, MaxUploadWorkers: 20}
}

// Producer reads a release's source bytes and emits unencrypted chunk
// records on out. It must not close out; the pipeline owns that. It
// should return promptly when ctx is cancelled.
type Producer func(ctx context.Context, out chan<- ProducedChunk) error

// Pipeline runs the produce→encrypt→upload→persist pipeline for one
// release import as a staged, channel-connected flow: bounded channels
// give each stage backpressure, and golang.org/x/sync/errgroup cancels
// every stage as soon as one of them fails.
type Pipeline struct {
	Config Config
	Codec  *chunkcodec.Codec
	Store  objectstore.Store
	Cache  *cache.Cache // optional; warms the local cache with freshly uploaded chunks
	Writer persistence.Writer

	// Stats, if set, records the error code of every stage failure this
	// pipeline sees, for operational visibility across releases.
	Stats *musicerr.ErrorStats
}

// Import runs one release's full import: produce, encrypt, upload,
// persist chunk rows, attribute progress, then runs finalize (writing
// file/track/piece metadata) and flips the release to Complete. On any
// stage failure the release is marked Failed, its uploaded chunks are
// best-effort deleted from the object store, and the error is returned.
func (p *Pipeline) Import(ctx context.Context, releaseID string, produce Producer, tracker *ProgressTracker, finalize func(ctx context.Context) error) error {
	bufSize := maxInt(p.Config.MaxEncryptWorkers, p.Config.MaxUploadWorkers)
	if bufSize <= 0 {
		bufSize = 1
	}
	produced := make(chan ProducedChunk, bufSize)
	encryptedCh := make(chan encryptedChunk, bufSize)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(produced)
		return produce(gctx, produced)
	})

	encryptWorkers := p.Config.MaxEncryptWorkers
	if encryptWorkers <= 0 {
		encryptWorkers = 1
	}
	var encryptWG sync.WaitGroup
	encryptWG.Add(encryptWorkers)
	for i := 0; i < encryptWorkers; i++ {
		g.Go(func() error {
			defer encryptWG.Done()
			return p.runEncryptWorker(gctx, produced, encryptedCh)
		})
	}
	go func() {
		encryptWG.Wait()
		close(encryptedCh)
	}()

	uploadWorkers := p.Config.MaxUploadWorkers
	if uploadWorkers <= 0 {
		uploadWorkers = 1
	}
	for i := 0; i < uploadWorkers; i++ {
		g.Go(func() error {
			return p.runUploadWorker(gctx, releaseID, encryptedCh, tracker)
		})
	}

	if err := g.Wait(); err != nil {
		p.fail(releaseID, tracker, err)
		return err
	}

	if finalize != nil {
		if err := finalize(ctx); err != nil {
			p.fail(releaseID, tracker, err)
			return err
		}
	}

	if err := p.Writer.SetReleaseStatus(ctx, releaseID, persistence.StatusComplete); err != nil {
		return err
	}
	if tracker != nil {
		tracker.Complete()
	}
	return nil
}

func (p *Pipeline) runEncryptWorker(ctx context.Context, in <-chan ProducedChunk, out chan<- encryptedChunk) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunk, ok := <-in:
			if !ok {
				return nil
			}
			blob, err := p.Codec.Encrypt(chunk.Data)
			if err != nil {
				return err
			}
			select {
			case out <- encryptedChunk{ChunkID: chunk.ChunkID, ChunkIndex: chunk.ChunkIndex, Blob: blob}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (p *Pipeline) runUploadWorker(ctx context.Context, releaseID string, in <-chan encryptedChunk, tracker *ProgressTracker) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunk, ok := <-in:
			if !ok {
				return nil
			}
			location, err := p.Store.Upload(ctx, chunk.ChunkID, chunk.Blob)
			if err != nil {
				return err
			}
			if p.Cache != nil {
				_ = p.Cache.Put(chunk.ChunkID, chunk.Blob)
			}
			if err := p.Writer.InsertChunk(ctx, persistence.Chunk{
				ID:              chunk.ChunkID,
				ReleaseID:       releaseID,
				ChunkIndex:      chunk.ChunkIndex,
				EncryptedSize:   int64(len(chunk.Blob)),
				StorageLocation: location,
			}); err != nil {
				return err
			}
			if tracker != nil {
				for _, trackID := range tracker.OnChunkComplete(chunk.ChunkIndex) {
					if err := p.Writer.SetTrackStatus(ctx, trackID, persistence.StatusComplete); err != nil {
						return err
					}
				}
			}
		}
	}
}

func (p *Pipeline) fail(releaseID string, tracker *ProgressTracker, cause error) {
	ctx := context.Background()
	if p.Stats != nil {
		p.Stats.Record(cause)
	}
	_ = p.Writer.SetReleaseStatus(ctx, releaseID, persistence.StatusFailed)
	p.cleanupRelease(ctx, releaseID)
	if tracker != nil {
		tracker.Failed(cause)
	}
}

// cleanupRelease best-effort deletes every uploaded chunk for a failed
// release; cached-only state is allowed to remain. A NotFound delete
// error means the chunk is already gone and isn't worth a warning; any
// other delete failure is logged since it leaves orphaned cloud storage.
func (p *Pipeline) cleanupRelease(ctx context.Context, releaseID string) {
	chunks, err := p.Writer.ListChunks(ctx, releaseID)
	if err != nil {
		return
	}
	for _, c := range chunks {
		if err := p.Store.Delete(ctx, c.StorageLocation); err != nil && !musicerr.Is(err, musicerr.CodeStoreNotFound) {
			log.Printf("ingest: failed to delete chunk at %s for release %s during cleanup: %v", c.StorageLocation, releaseID, err)
		}
	}
}

// NewChunkID generates a fresh chunk id (UUIDv4), per the object-store
// key schema.
func NewChunkID() string {
	return uuid.NewString()
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
