package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hideselfview/bae/pkg/chunkcodec"
	"github.com/hideselfview/bae/pkg/objectstore"
	"github.com/hideselfview/bae/pkg/persistence"
)

func newTestCodec(t *testing.T) *chunkcodec.Codec {
	t.Helper()
	storage := chunkcodec.NewInMemoryKeyStorage()
	codec, err := chunkcodec.LoadOrCreateMasterKey(storage, "test-key")
	if err != nil {
		t.Fatalf("LoadOrCreateMasterKey failed: %v", err)
	}
	return codec
}

func TestPipelineImportHappyPath(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	data := make([]byte, 2500)
	for i := range data {
		data[i] = byte(i)
	}
	if err := os.WriteFile(filepath.Join(dir, "01.flac"), data, 0o644); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	store := objectstore.NewMemoryStore()
	writer, err := persistence.NewMemoryWriter("")
	if err != nil {
		t.Fatalf("NewMemoryWriter failed: %v", err)
	}
	codec := newTestCodec(t)

	const releaseID = "rel1"
	if err := writer.InsertAlbumReleaseTracks(ctx,
		persistence.Album{ID: "alb1", Title: "Test"},
		persistence.Release{ID: releaseID, AlbumID: "alb1", Status: persistence.StatusImporting, ChunkSize: 1000},
		[]persistence.Track{{ID: "t1", ReleaseID: releaseID, TrackNumber: 1}},
	); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	tracker := NewProgressTracker(releaseID, 3, map[int][]string{0: {"t1"}, 1: {"t1"}, 2: {"t1"}}, map[string]int{"t1": 3}, nil)

	pipeline := &Pipeline{
		Config: Config{MaxEncryptWorkers: 2, MaxUploadWorkers: 2},
		Codec:  codec,
		Store:  store,
		Writer: writer,
	}

	producer := FilesystemProducer([]FileSource{{Path: filepath.Join(dir, "01.flac"), Size: int64(len(data))}}, 1000)

	err = pipeline.Import(ctx, releaseID, producer, tracker, nil)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	release, err := writer.GetRelease(ctx, releaseID)
	if err != nil {
		t.Fatalf("GetRelease failed: %v", err)
	}
	if release.Status != persistence.StatusComplete {
		t.Fatalf("release status = %v, want Complete", release.Status)
	}

	chunks, err := writer.ListChunks(ctx, releaseID)
	if err != nil {
		t.Fatalf("ListChunks failed: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("len(chunks) = %d, want 3", len(chunks))
	}

	// Round-trip: download + decrypt every chunk, reassemble, compare.
	var reassembled []byte
	for _, c := range chunks {
		blob, err := store.Download(ctx, c.StorageLocation)
		if err != nil {
			t.Fatalf("Download failed: %v", err)
		}
		plaintext, err := codec.Decrypt(blob)
		if err != nil {
			t.Fatalf("Decrypt failed: %v", err)
		}
		reassembled = append(reassembled, plaintext...)
	}
	if len(reassembled) != len(data) {
		t.Fatalf("reassembled length = %d, want %d", len(reassembled), len(data))
	}
	for i := range data {
		if reassembled[i] != data[i] {
			t.Fatalf("reassembled byte %d mismatch", i)
		}
	}
}

func TestPipelineImportMarksReleaseFailedOnProducerError(t *testing.T) {
	ctx := context.Background()
	store := objectstore.NewMemoryStore()
	writer, _ := persistence.NewMemoryWriter("")
	codec := newTestCodec(t)

	const releaseID = "rel-fail"
	_ = writer.InsertAlbumReleaseTracks(ctx, persistence.Album{ID: "a"}, persistence.Release{ID: releaseID, AlbumID: "a", Status: persistence.StatusImporting}, nil)

	pipeline := &Pipeline{
		Config: DefaultConfig(),
		Codec:  codec,
		Store:  store,
		Writer: writer,
	}

	boom := errors.New("boom")
	failingProducer := Producer(func(ctx context.Context, out chan<- ProducedChunk) error {
		return boom
	})

	err := pipeline.Import(ctx, releaseID, failingProducer, nil, nil)
	if err == nil {
		t.Fatal("expected Import to fail")
	}

	release, _ := writer.GetRelease(ctx, releaseID)
	if release.Status != persistence.StatusFailed {
		t.Fatalf("release status = %v, want Failed", release.Status)
	}
}
