// Package layout implements the album layout planner: given an ordered
// file list and the track→file assignment, it computes file_mappings,
// total_chunks, and chunk_index → [track_id], letting a single chunk
// list more than one track when small files share a chunk boundary.
package layout

import "github.com/hideselfview/bae/pkg/musicerr"

// File is one input file in deterministic layout order: by filename,
// case-sensitive, codepoint order, subdirectories flattened.
type File struct {
	Path string
	Size int64
}

// TrackFile assigns a track to the file that backs it.
type TrackFile struct {
	TrackID  string
	FilePath string
}

// FileChunkMapping records the chunk range a single file spans.
type FileChunkMapping struct {
	FilePath        string
	StartChunkIndex int
	EndChunkIndex   int
	StartByteOffset int64
	EndByteOffset   int64
}

// AlbumLayout is the planner's complete output: enough to stream chunks
// and track import progress without touching the filesystem again.
type AlbumLayout struct {
	FileMappings      []FileChunkMapping
	TotalChunks       int
	ChunkToTrack      map[int][]string
	TrackChunkCounts  map[string]int
}

// Analyze computes the layout for files in the given order, assigning
// track ids to the chunks their backing files touch. It is a pure
// function: the same ordered file list and chunk size always produce the
// same layout (invariant 4, layout determinism).
func Analyze(files []File, tracks []TrackFile, chunkSize int64) (*AlbumLayout, error) {
	if chunkSize <= 0 {
		return nil, musicerr.NewLayoutError("chunk size must be positive")
	}

	mappings := calculateFileMappings(files, chunkSize)

	totalChunks := 0
	if len(mappings) > 0 {
		totalChunks = mappings[len(mappings)-1].EndChunkIndex + 1
	}

	chunkToTrack, trackChunkCounts, err := buildChunkTrackMappings(mappings, tracks)
	if err != nil {
		return nil, err
	}

	return &AlbumLayout{
		FileMappings:     mappings,
		TotalChunks:      totalChunks,
		ChunkToTrack:     chunkToTrack,
		TrackChunkCounts: trackChunkCounts,
	}, nil
}

// calculateFileMappings treats files as one virtual concatenated stream,
// cut into chunk_size-sized pieces. A zero-byte file produces no mapping
// (it occupies no chunks) and does not advance the byte cursor.
func calculateFileMappings(files []File, chunkSize int64) []FileChunkMapping {
	mappings := make([]FileChunkMapping, 0, len(files))
	var totalBytesProcessed int64

	for _, f := range files {
		if f.Size == 0 {
			continue
		}

		startByte := totalBytesProcessed
		endByte := totalBytesProcessed + f.Size // exclusive

		mappings = append(mappings, FileChunkMapping{
			FilePath:        f.Path,
			StartChunkIndex: int(startByte / chunkSize),
			EndChunkIndex:   int((endByte - 1) / chunkSize),
			StartByteOffset: startByte % chunkSize,
			EndByteOffset:   (endByte - 1) % chunkSize,
		})

		totalBytesProcessed = endByte
	}

	return mappings
}

// buildChunkTrackMappings builds the reverse chunk→track index and each
// track's distinct-chunk count. A chunk may list multiple tracks when
// small files share it.
func buildChunkTrackMappings(mappings []FileChunkMapping, tracks []TrackFile) (map[int][]string, map[string]int, error) {
	fileToTracks := make(map[string][]string)
	for _, t := range tracks {
		fileToTracks[t.FilePath] = append(fileToTracks[t.FilePath], t.TrackID)
	}

	chunkToTrack := make(map[int][]string)
	trackChunks := make(map[string]map[int]bool)

	for _, m := range mappings {
		trackIDs, ok := fileToTracks[m.FilePath]
		if !ok {
			continue
		}
		for idx := m.StartChunkIndex; idx <= m.EndChunkIndex; idx++ {
			for _, trackID := range trackIDs {
				if !containsString(chunkToTrack[idx], trackID) {
					chunkToTrack[idx] = append(chunkToTrack[idx], trackID)
				}
				if trackChunks[trackID] == nil {
					trackChunks[trackID] = make(map[int]bool)
				}
				trackChunks[trackID][idx] = true
			}
		}
	}

	trackChunkCounts := make(map[string]int, len(trackChunks))
	for trackID, chunks := range trackChunks {
		trackChunkCounts[trackID] = len(chunks)
	}

	for _, t := range tracks {
		if _, ok := trackChunkCounts[t.TrackID]; !ok {
			return nil, nil, musicerr.NewLayoutError("track " + t.TrackID + " has no backing file in the discovered file list")
		}
	}

	return chunkToTrack, trackChunkCounts, nil
}

func containsString(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
