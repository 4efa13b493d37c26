package ingest

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/hideselfview/bae/pkg/cuesheet"
	"github.com/hideselfview/bae/pkg/layout"
	"github.com/hideselfview/bae/pkg/persistence"
)

// CueTrackAssignment is one CUE sheet track indexed inside a shared FLAC
// file, rather than backed by its own file.
type CueTrackAssignment struct {
	TrackID  string
	FlacPath string
	CueTrack cuesheet.Track
}

// ImportParams is everything ImportRelease needs to plan and run one
// release's import. Discogs/MusicBrainz matching (deciding which file
// backs which track, or a track's title/performer) is out of scope and
// assumed already resolved by the caller.
type ImportParams struct {
	ReleaseID      string
	Album          persistence.Album
	ChunkSizeBytes int64

	// Files is every audio file in the release, in deterministic layout
	// order (by path, case-sensitive).
	Files []layout.File

	// DirectTracks are tracks backed one-to-one by a file in Files.
	DirectTracks []DirectTrackAssignment

	// CueTracks are tracks indexed within a shared FLAC file via a CUE
	// sheet; FlacPath must also appear in Files.
	CueTracks []CueTrackAssignment

	// DiscogsPositions optionally assigns vinyl/Discogs side+index
	// notation ("A1", "B9") to track ids, producing a dense track_number
	// ordering instead of file discovery order.
	DiscogsPositions map[string]string

	Pipeline *Pipeline
	Writer   persistence.Writer
}

// DirectTrackAssignment is a track backed by its own whole file.
type DirectTrackAssignment struct {
	TrackID string
	Title   string
	Path    string
}

// ImportRelease plans a release's layout, persists its album/release/track/
// file/cue-sheet metadata, then runs the streaming produce→encrypt→
// upload→persist pipeline over its files. It is the single entry point
// tying together pkg/layout, pkg/cuesheet, pkg/ingest's position/progress/
// producer pieces, and pkg/persistence.
func ImportRelease(ctx context.Context, p ImportParams) error {
	if p.ChunkSizeBytes <= 0 {
		return fmt.Errorf("ingest: chunk size must be positive")
	}

	trackFiles := make([]layout.TrackFile, 0, len(p.DirectTracks)+len(p.CueTracks))
	for _, t := range p.DirectTracks {
		trackFiles = append(trackFiles, layout.TrackFile{TrackID: t.TrackID, FilePath: t.Path})
	}
	for _, t := range p.CueTracks {
		trackFiles = append(trackFiles, layout.TrackFile{TrackID: t.TrackID, FilePath: t.FlacPath})
	}

	albumLayout, err := layout.Analyze(p.Files, trackFiles, p.ChunkSizeBytes)
	if err != nil {
		return err
	}

	fileMappingByPath := make(map[string]layout.FileChunkMapping, len(albumLayout.FileMappings))
	for _, m := range albumLayout.FileMappings {
		fileMappingByPath[m.FilePath] = m
	}

	trackNumbers, err := assignTrackNumbers(p)
	if err != nil {
		return err
	}

	tracks := make([]persistence.Track, 0, len(p.DirectTracks)+len(p.CueTracks))
	coords := make([]persistence.TrackChunkCoords, 0, cap(tracks))

	for _, t := range p.DirectTracks {
		mapping, ok := fileMappingByPath[t.Path]
		if !ok {
			return fmt.Errorf("ingest: track %s's file %s has no layout mapping", t.TrackID, t.Path)
		}
		tracks = append(tracks, persistence.Track{
			ID:              t.TrackID,
			ReleaseID:       p.ReleaseID,
			TrackNumber:     trackNumbers[t.TrackID],
			Title:           t.Title,
			DiscogsPosition: p.DiscogsPositions[t.TrackID],
			Status:          persistence.StatusImporting,
		})
		coords = append(coords, trackCoordsFromFileMapping(t.TrackID, mapping, p.ChunkSizeBytes))
	}

	cueHeadersByFile := make(map[string]*cuesheet.FlacHeaders)
	for flacPath, group := range groupCueTracksByFile(p.CueTracks) {
		mapping, ok := fileMappingByPath[flacPath]
		if !ok {
			return fmt.Errorf("ingest: cue file %s has no layout mapping", flacPath)
		}
		fileInfo, err := os.Stat(flacPath)
		if err != nil {
			return fmt.Errorf("ingest: stat %s: %w", flacPath, err)
		}
		headers, err := cuesheet.ExtractFlacHeaders(flacPath)
		if err != nil {
			return err
		}
		cueHeadersByFile[flacPath] = headers

		for _, assignment := range group {
			startByte := cuesheet.EstimateBytePosition(assignment.CueTrack.StartTimeMS, headers, uint64(fileInfo.Size()))
			var endByte uint64
			if assignment.CueTrack.EndTimeMS != nil {
				endByte = cuesheet.EstimateBytePosition(*assignment.CueTrack.EndTimeMS, headers, uint64(fileInfo.Size())) - 1
			} else {
				endByte = uint64(fileInfo.Size()) - 1
			}

			tracks = append(tracks, persistence.Track{
				ID:              assignment.TrackID,
				ReleaseID:       p.ReleaseID,
				TrackNumber:     trackNumbers[assignment.TrackID],
				Title:           assignment.CueTrack.Title,
				DiscogsPosition: p.DiscogsPositions[assignment.TrackID],
				Status:          persistence.StatusImporting,
			})
			coords = append(coords, trackCoordsFromByteRange(assignment.TrackID, mapping, p.ChunkSizeBytes, int64(startByte), int64(endByte)))
		}
	}

	release := persistence.Release{ID: p.ReleaseID, AlbumID: p.Album.ID, Status: persistence.StatusImporting, ChunkSize: p.ChunkSizeBytes}
	if err := p.Writer.InsertAlbumReleaseTracks(ctx, p.Album, release, tracks); err != nil {
		return err
	}
	for _, m := range albumLayout.FileMappings {
		if err := p.Writer.InsertFileChunk(ctx, persistence.FileChunk{
			ReleaseID:       p.ReleaseID,
			FilePath:        m.FilePath,
			StartChunkIndex: m.StartChunkIndex,
			EndChunkIndex:   m.EndChunkIndex,
			StartByteOffset: m.StartByteOffset,
			EndByteOffset:   m.EndByteOffset,
		}); err != nil {
			return err
		}
	}
	for _, c := range coords {
		if err := p.Writer.InsertTrackChunkCoords(ctx, c); err != nil {
			return err
		}
	}
	for _, headers := range cueHeadersByFile {
		if err := p.Writer.InsertCueSheet(ctx, persistence.CueSheetRecord{
			ReleaseID:      p.ReleaseID,
			HeaderPrefix:   headers.Headers,
			AudioStartByte: headers.AudioStartByte,
			SampleRate:     headers.SampleRate,
			TotalSamples:   headers.TotalSamples,
			Channels:       headers.Channels,
			BitsPerSample:  headers.BitsPerSample,
		}); err != nil {
			return err
		}
	}

	tracker := NewProgressTracker(p.ReleaseID, albumLayout.TotalChunks, albumLayout.ChunkToTrack, albumLayout.TrackChunkCounts, nil)

	sources := make([]FileSource, 0, len(p.Files))
	for _, f := range p.Files {
		sources = append(sources, FileSource{Path: f.Path, Size: f.Size})
	}
	producer := FilesystemProducer(sources, p.ChunkSizeBytes)

	return p.Pipeline.Import(ctx, p.ReleaseID, producer, tracker, nil)
}

// assignTrackNumbers orders tracks either by Discogs/vinyl position
// notation (if provided for every track) or by the order DirectTracks/
// CueTracks were given.
func assignTrackNumbers(p ImportParams) (map[string]int, error) {
	allIDs := make([]string, 0, len(p.DirectTracks)+len(p.CueTracks))
	for _, t := range p.DirectTracks {
		allIDs = append(allIDs, t.TrackID)
	}
	for _, t := range p.CueTracks {
		allIDs = append(allIDs, t.TrackID)
	}

	if len(p.DiscogsPositions) == len(allIDs) && len(allIDs) > 0 {
		positioned := make([]PositionedTrack, 0, len(allIDs))
		for _, id := range allIDs {
			positioned = append(positioned, PositionedTrack{TrackID: id, DiscogsPosition: p.DiscogsPositions[id]})
		}
		numbers, err := AssignTrackNumbers(positioned)
		if err != nil {
			return nil, err
		}
		out := make(map[string]int, len(allIDs))
		for i, id := range allIDs {
			out[id] = numbers[i]
		}
		return out, nil
	}

	out := make(map[string]int, len(allIDs))
	for i, id := range allIDs {
		out[id] = i + 1
	}
	return out, nil
}

func groupCueTracksByFile(assignments []CueTrackAssignment) map[string][]CueTrackAssignment {
	byFile := make(map[string][]CueTrackAssignment)
	for _, a := range assignments {
		byFile[a.FlacPath] = append(byFile[a.FlacPath], a)
	}
	for _, group := range byFile {
		sort.Slice(group, func(i, j int) bool { return group[i].CueTrack.StartTimeMS < group[j].CueTrack.StartTimeMS })
	}
	return byFile
}

// trackCoordsFromFileMapping builds coords for a track that occupies its
// entire backing file.
func trackCoordsFromFileMapping(trackID string, m layout.FileChunkMapping, chunkSizeBytes int64) persistence.TrackChunkCoords {
	return persistence.TrackChunkCoords{
		TrackID:         trackID,
		StartChunkIndex: m.StartChunkIndex,
		EndChunkIndex:   m.EndChunkIndex,
		StartByteOffset: m.StartByteOffset,
		EndByteOffset:   m.EndByteOffset,
	}
}

// trackCoordsFromByteRange builds coords for a track occupying
// [startByteInFile, endByteInFile] of a shared file, translating
// file-relative bytes into the release's absolute chunk sequence via the
// file's own layout mapping.
func trackCoordsFromByteRange(trackID string, m layout.FileChunkMapping, chunkSizeBytes, startByteInFile, endByteInFile int64) persistence.TrackChunkCoords {
	fileAbsoluteStart := int64(m.StartChunkIndex)*chunkSizeBytes + m.StartByteOffset
	absoluteStart := fileAbsoluteStart + startByteInFile
	absoluteEnd := fileAbsoluteStart + endByteInFile

	return persistence.TrackChunkCoords{
		TrackID:         trackID,
		StartChunkIndex: int(absoluteStart / chunkSizeBytes),
		EndChunkIndex:   int(absoluteEnd / chunkSizeBytes),
		StartByteOffset: absoluteStart % chunkSizeBytes,
		EndByteOffset:   absoluteEnd % chunkSizeBytes,
	}
}
