package persistence

import (
	"context"
	"path/filepath"
	"testing"
)

func TestMemoryWriterInsertAndGet(t *testing.T) {
	ctx := context.Background()
	w, err := NewMemoryWriter("")
	if err != nil {
		t.Fatalf("NewMemoryWriter failed: %v", err)
	}

	album := Album{ID: "alb1", Title: "Test Album", Artist: "Test Artist"}
	release := Release{ID: "rel1", AlbumID: "alb1", Status: StatusQueued, ChunkSize: 1 << 20}
	tracks := []Track{{ID: "t1", ReleaseID: "rel1", TrackNumber: 1, Title: "One"}}

	if err := w.InsertAlbumReleaseTracks(ctx, album, release, tracks); err != nil {
		t.Fatalf("InsertAlbumReleaseTracks failed: %v", err)
	}

	got, err := w.GetRelease(ctx, "rel1")
	if err != nil {
		t.Fatalf("GetRelease failed: %v", err)
	}
	if got.Status != StatusQueued {
		t.Fatalf("Status = %v, want Queued", got.Status)
	}

	if err := w.SetReleaseStatus(ctx, "rel1", StatusComplete); err != nil {
		t.Fatalf("SetReleaseStatus failed: %v", err)
	}
	got, _ = w.GetRelease(ctx, "rel1")
	if got.Status != StatusComplete {
		t.Fatalf("Status after update = %v, want Complete", got.Status)
	}
}

func TestMemoryWriterDeleteByReleaseCascades(t *testing.T) {
	ctx := context.Background()
	w, _ := NewMemoryWriter("")

	album := Album{ID: "alb1"}
	release := Release{ID: "rel1", AlbumID: "alb1"}
	tracks := []Track{{ID: "t1", ReleaseID: "rel1"}}
	_ = w.InsertAlbumReleaseTracks(ctx, album, release, tracks)
	_ = w.InsertChunk(ctx, Chunk{ID: "c1", ReleaseID: "rel1", ChunkIndex: 0})
	_ = w.InsertFileChunk(ctx, FileChunk{ReleaseID: "rel1", FilePath: "a.flac"})
	_ = w.InsertTrackChunkCoords(ctx, TrackChunkCoords{TrackID: "t1"})
	_ = w.InsertCueSheet(ctx, CueSheetRecord{ReleaseID: "rel1"})
	_ = w.InsertPieceMapping(ctx, PieceMapping{ReleaseID: "rel1", PieceIndex: 0})

	if err := w.DeleteByRelease(ctx, "rel1"); err != nil {
		t.Fatalf("DeleteByRelease failed: %v", err)
	}

	if _, err := w.GetRelease(ctx, "rel1"); err == nil {
		t.Fatal("expected release to be gone")
	}
	if _, err := w.GetTrackChunkCoords(ctx, "t1"); err == nil {
		t.Fatal("expected track chunk coords to be gone")
	}
	if _, ok, _ := w.GetCueSheet(ctx, "rel1"); ok {
		t.Fatal("expected cue sheet to be gone")
	}
	chunks, _ := w.ListChunks(ctx, "rel1")
	if len(chunks) != 0 {
		t.Fatalf("expected no chunks, got %d", len(chunks))
	}
}

func TestMemoryWriterSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "snapshot.cbor")

	w1, err := NewMemoryWriter(path)
	if err != nil {
		t.Fatalf("NewMemoryWriter failed: %v", err)
	}
	album := Album{ID: "alb1", Title: "Persisted"}
	release := Release{ID: "rel1", AlbumID: "alb1", Status: StatusImporting}
	if err := w1.InsertAlbumReleaseTracks(ctx, album, release, nil); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	w2, err := NewMemoryWriter(path)
	if err != nil {
		t.Fatalf("reopening snapshot failed: %v", err)
	}
	got, err := w2.GetRelease(ctx, "rel1")
	if err != nil {
		t.Fatalf("GetRelease after reopen failed: %v", err)
	}
	if got.Status != StatusImporting {
		t.Fatalf("Status after reopen = %v, want Importing", got.Status)
	}
}

func TestMemoryWriterListChunksSortedByIndex(t *testing.T) {
	ctx := context.Background()
	w, _ := NewMemoryWriter("")
	_ = w.InsertChunk(ctx, Chunk{ID: "c2", ReleaseID: "rel1", ChunkIndex: 2})
	_ = w.InsertChunk(ctx, Chunk{ID: "c0", ReleaseID: "rel1", ChunkIndex: 0})
	_ = w.InsertChunk(ctx, Chunk{ID: "c1", ReleaseID: "rel1", ChunkIndex: 1})

	chunks, err := w.ListChunks(ctx, "rel1")
	if err != nil {
		t.Fatalf("ListChunks failed: %v", err)
	}
	for i, c := range chunks {
		if c.ChunkIndex != i {
			t.Fatalf("chunks not sorted: %+v", chunks)
		}
	}
}
