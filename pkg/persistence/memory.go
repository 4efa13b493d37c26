package persistence

import (
	"context"
	"os"
	"sort"
	"sync"

	"github.com/fxamacker/cbor/v2"

	"github.com/hideselfview/bae/pkg/musicerr"
)

// canonicalMode encodes with deterministic map key order so two snapshots
// of identical data always produce identical bytes.
var canonicalMode = mustCanonicalMode()

func mustCanonicalMode() cbor.EncMode {
	mode, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic("persistence: building canonical CBOR mode: " + err.Error())
	}
	return mode
}

// snapshot is the whole in-memory store's CBOR-serializable shape.
type snapshot struct {
	Albums            map[string]Album
	Releases          map[string]Release
	Tracks            map[string]Track
	Chunks            map[string]Chunk
	FileChunks        []FileChunk
	TrackChunkCoords  map[string]TrackChunkCoords
	CueSheets         map[string]CueSheetRecord
	PieceMappings     []PieceMapping
}

func newSnapshot() snapshot {
	return snapshot{
		Albums:           make(map[string]Album),
		Releases:         make(map[string]Release),
		Tracks:           make(map[string]Track),
		Chunks:           make(map[string]Chunk),
		TrackChunkCoords: make(map[string]TrackChunkCoords),
		CueSheets:        make(map[string]CueSheetRecord),
	}
}

// MemoryWriter is an in-memory Writer, optionally persisted to a canonical
// CBOR snapshot file between calls — a reference implementation for
// development and testing, not a production database.
type MemoryWriter struct {
	mu       sync.Mutex
	data     snapshot
	snapPath string
}

// NewMemoryWriter constructs a MemoryWriter. If snapPath is non-empty, the
// store loads its prior state from that file (if present) and rewrites it
// after every mutation.
func NewMemoryWriter(snapPath string) (*MemoryWriter, error) {
	w := &MemoryWriter{data: newSnapshot(), snapPath: snapPath}
	if snapPath == "" {
		return w, nil
	}
	raw, err := os.ReadFile(snapPath)
	if os.IsNotExist(err) {
		return w, nil
	}
	if err != nil {
		return nil, musicerr.NewPersistenceError("reading snapshot file", err)
	}
	var loaded snapshot
	if err := cbor.Unmarshal(raw, &loaded); err != nil {
		return nil, musicerr.NewPersistenceError("decoding snapshot file", err)
	}
	w.data = loaded
	return w, nil
}

func (w *MemoryWriter) persistLocked() error {
	if w.snapPath == "" {
		return nil
	}
	raw, err := canonicalMode.Marshal(w.data)
	if err != nil {
		return musicerr.NewPersistenceError("encoding snapshot", err)
	}
	if err := os.WriteFile(w.snapPath, raw, 0o600); err != nil {
		return musicerr.NewPersistenceError("writing snapshot file", err)
	}
	return nil
}

func (w *MemoryWriter) InsertAlbumReleaseTracks(ctx context.Context, album Album, release Release, tracks []Track) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.data.Albums[album.ID]; !ok {
		w.data.Albums[album.ID] = album
	}
	w.data.Releases[release.ID] = release
	for _, t := range tracks {
		w.data.Tracks[t.ID] = t
	}
	return w.persistLocked()
}

func (w *MemoryWriter) SetReleaseStatus(ctx context.Context, releaseID string, status Status) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	r, ok := w.data.Releases[releaseID]
	if !ok {
		return musicerr.NewPersistenceError("release not found: "+releaseID, nil)
	}
	r.Status = status
	w.data.Releases[releaseID] = r
	return w.persistLocked()
}

func (w *MemoryWriter) SetTrackStatus(ctx context.Context, trackID string, status Status) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	t, ok := w.data.Tracks[trackID]
	if !ok {
		return musicerr.NewPersistenceError("track not found: "+trackID, nil)
	}
	t.Status = status
	w.data.Tracks[trackID] = t
	return w.persistLocked()
}

func (w *MemoryWriter) InsertChunk(ctx context.Context, chunk Chunk) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.data.Chunks[chunk.ID] = chunk
	return w.persistLocked()
}

func (w *MemoryWriter) InsertFileChunk(ctx context.Context, fc FileChunk) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.data.FileChunks = append(w.data.FileChunks, fc)
	return w.persistLocked()
}

func (w *MemoryWriter) InsertTrackChunkCoords(ctx context.Context, coords TrackChunkCoords) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.data.TrackChunkCoords[coords.TrackID] = coords
	return w.persistLocked()
}

func (w *MemoryWriter) InsertCueSheet(ctx context.Context, sheet CueSheetRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.data.CueSheets[sheet.ReleaseID] = sheet
	return w.persistLocked()
}

func (w *MemoryWriter) InsertPieceMapping(ctx context.Context, mapping PieceMapping) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.data.PieceMappings = append(w.data.PieceMappings, mapping)
	return w.persistLocked()
}

func (w *MemoryWriter) DeleteByRelease(ctx context.Context, releaseID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	delete(w.data.Releases, releaseID)
	delete(w.data.CueSheets, releaseID)

	for id, t := range w.data.Tracks {
		if t.ReleaseID == releaseID {
			delete(w.data.Tracks, id)
			delete(w.data.TrackChunkCoords, id)
		}
	}
	for id, c := range w.data.Chunks {
		if c.ReleaseID == releaseID {
			delete(w.data.Chunks, id)
		}
	}

	fileChunks := w.data.FileChunks[:0]
	for _, fc := range w.data.FileChunks {
		if fc.ReleaseID != releaseID {
			fileChunks = append(fileChunks, fc)
		}
	}
	w.data.FileChunks = fileChunks

	pieces := w.data.PieceMappings[:0]
	for _, p := range w.data.PieceMappings {
		if p.ReleaseID != releaseID {
			pieces = append(pieces, p)
		}
	}
	w.data.PieceMappings = pieces

	return w.persistLocked()
}

func (w *MemoryWriter) GetRelease(ctx context.Context, releaseID string) (Release, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	r, ok := w.data.Releases[releaseID]
	if !ok {
		return Release{}, musicerr.NewPersistenceError("release not found: "+releaseID, nil)
	}
	return r, nil
}

func (w *MemoryWriter) GetTrackChunkCoords(ctx context.Context, trackID string) (TrackChunkCoords, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	c, ok := w.data.TrackChunkCoords[trackID]
	if !ok {
		return TrackChunkCoords{}, musicerr.NewPersistenceError("track chunk coords not found: "+trackID, nil)
	}
	return c, nil
}

func (w *MemoryWriter) GetCueSheet(ctx context.Context, releaseID string) (CueSheetRecord, bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	sheet, ok := w.data.CueSheets[releaseID]
	return sheet, ok, nil
}

func (w *MemoryWriter) ListChunks(ctx context.Context, releaseID string) ([]Chunk, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []Chunk
	for _, c := range w.data.Chunks {
		if c.ReleaseID == releaseID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChunkIndex < out[j].ChunkIndex })
	return out, nil
}

func (w *MemoryWriter) GetPieceMapping(ctx context.Context, releaseID string, pieceIndex int) (PieceMapping, bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, p := range w.data.PieceMappings {
		if p.ReleaseID == releaseID && p.PieceIndex == pieceIndex {
			return p, true, nil
		}
	}
	return PieceMapping{}, false, nil
}

var _ Writer = (*MemoryWriter)(nil)
