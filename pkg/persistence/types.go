// Package persistence defines the DB writer contract the ingest pipeline
// and streaming read path depend on, plus an in-memory reference
// implementation backed by canonical CBOR snapshots.
package persistence

// Status is a release or track's import lifecycle state.
type Status string

const (
	StatusQueued    Status = "Queued"
	StatusImporting Status = "Importing"
	StatusComplete  Status = "Complete"
	StatusFailed    Status = "Failed"
)

// Album groups one or more releases under a common title/artist.
type Album struct {
	ID     string
	Title  string
	Artist string
}

// Release is one concrete import of an album (a specific rip, torrent,
// or CUE image).
type Release struct {
	ID       string
	AlbumID  string
	Status   Status
	ChunkSize int64
}

// Track is one logical audio track within a release.
type Track struct {
	ID              string
	ReleaseID       string
	TrackNumber     int
	Title           string
	DiscogsPosition string
	Status          Status
}

// Chunk is one persisted, encrypted chunk row.
type Chunk struct {
	ID              string
	ReleaseID       string
	ChunkIndex      int
	EncryptedSize   int64
	StorageLocation string
}

// FileChunk maps an original file to the chunk range it spans, per the
// album layout planner's output (pkg/layout.FileChunkMapping).
type FileChunk struct {
	ReleaseID       string
	FilePath        string
	StartChunkIndex int
	EndChunkIndex   int
	StartByteOffset int64
	EndByteOffset   int64
}

// TrackChunkCoords is the byte range a track occupies within a release's
// chunk sequence — the input to the streaming read source.
type TrackChunkCoords struct {
	TrackID         string
	StartChunkIndex int
	EndChunkIndex   int
	StartByteOffset int64
	EndByteOffset   int64
}

// CueSheetRecord persists a CUE/FLAC pair's header prefix and audio
// properties alongside the tracks it indexes.
type CueSheetRecord struct {
	ReleaseID      string
	HeaderPrefix   []byte
	AudioStartByte uint64
	SampleRate     uint32
	TotalSamples   uint64
	Channels       uint16
	BitsPerSample  uint16
}

// PieceMapping records a torrent piece's chunk coverage for persistence,
// the side-channel output of the torrent producer.
type PieceMapping struct {
	ReleaseID      string
	PieceIndex     int
	ChunkIDs       []string
	StartByteFirst int64
	EndByteLast    int64
}
