// Package torrentstore adapts a release's chunk cache into the read/write
// piece storage a torrent engine expects, so seeding and leeching a
// release never requires decoding the full file layout: pieces are
// reconstructed from whichever chunks they overlap. Unlike every other
// path in this module, chunks here are held unencrypted in the local
// cache — encryption only happens on the cloud upload path — since the
// swarm's own piece hashes are the integrity check that matters for this
// transport.
package torrentstore

import (
	"context"
	"fmt"

	"github.com/hideselfview/bae/pkg/cache"
	"github.com/hideselfview/bae/pkg/persistence"
	"github.com/hideselfview/bae/pkg/piecemap"
)

// Store reads and writes torrent pieces for one release against its
// unencrypted chunk cache.
type Store struct {
	cache     *cache.Cache
	writer    persistence.Writer
	mapper    *piecemap.Mapper
	releaseID string
}

// New builds a Store for one release's torrent.
func New(c *cache.Cache, writer persistence.Writer, mapper *piecemap.Mapper, releaseID string) *Store {
	return &Store{cache: c, writer: writer, mapper: mapper, releaseID: releaseID}
}

// ReadPiece reconstructs pieceIndex's bytes from whichever chunks it
// overlaps, then slices out [offset, offset+size). size of 0 means "to
// the end of the piece".
func (s *Store) ReadPiece(ctx context.Context, pieceIndex, offset, size int) ([]byte, error) {
	mapping, ok, err := s.writer.GetPieceMapping(ctx, s.releaseID, pieceIndex)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("torrentstore: no piece mapping for piece %d", pieceIndex)
	}
	if len(mapping.ChunkIDs) == 0 {
		return nil, fmt.Errorf("torrentstore: piece %d has no chunks mapped", pieceIndex)
	}

	var combined []byte
	for _, chunkID := range mapping.ChunkIDs {
		data, ok := s.cache.Get(chunkID)
		if !ok {
			return nil, fmt.Errorf("torrentstore: chunk %s not in cache", chunkID)
		}
		combined = append(combined, data...)
	}

	// Every chunk before the last is a full ChunkSize, so the last chunk
	// starts at (len(ChunkIDs)-1)*ChunkSize within combined.
	start := int(mapping.StartByteFirst)
	end := (len(mapping.ChunkIDs)-1)*int(s.mapper.ChunkSize) + int(mapping.EndByteLast) + 1
	if end > len(combined) {
		return nil, fmt.Errorf("torrentstore: piece %d data length mismatch: expected %d bytes, got %d", pieceIndex, end, len(combined))
	}
	pieceData := combined[start:end]

	readStart := offset
	readEnd := len(pieceData)
	if size > 0 {
		readEnd = offset + size
	}
	if readStart > len(pieceData) {
		return nil, fmt.Errorf("torrentstore: offset %d exceeds piece size %d", readStart, len(pieceData))
	}
	if readEnd > len(pieceData) {
		readEnd = len(pieceData)
	}
	return pieceData[readStart:readEnd], nil
}

// WritePiece stores a freshly-downloaded piece's bytes into the chunks it
// overlaps and records a piece mapping row. A chunk touched by more than
// one piece accumulates writes under one deterministic id; bytes never
// written by any piece stay zero until a later piece fills them in.
func (s *Store) WritePiece(ctx context.Context, pieceIndex int, data []byte) error {
	overlaps := s.mapper.OverlapsForPiece(pieceIndex)
	if len(overlaps) == 0 {
		return fmt.Errorf("torrentstore: invalid piece index %d", pieceIndex)
	}

	mapping := persistence.PieceMapping{ReleaseID: s.releaseID, PieceIndex: pieceIndex}
	for _, ov := range overlaps {
		chunkStart := int64(ov.ChunkIndex) * s.mapper.ChunkSize
		chunkEnd := chunkStart + s.mapper.ChunkSize
		if chunkEnd > s.mapper.TotalSize {
			chunkEnd = s.mapper.TotalSize
		}
		chunkLen := int(chunkEnd - chunkStart)

		chunkID := newChunkID(s.releaseID, ov.ChunkIndex)
		buf, ok := s.cache.Get(chunkID)
		if !ok || len(buf) != chunkLen {
			buf = make([]byte, chunkLen)
		} else {
			buf = append([]byte(nil), buf...)
		}

		intraChunkOffset := ov.StreamStart - chunkStart
		copy(buf[intraChunkOffset:], data[ov.PieceLocalStart:ov.PieceLocalEnd])

		if err := s.cache.Put(chunkID, buf); err != nil {
			return err
		}
		mapping.ChunkIDs = append(mapping.ChunkIDs, chunkID)
	}

	first, last := overlaps[0], overlaps[len(overlaps)-1]
	mapping.StartByteFirst = first.StreamStart - int64(first.ChunkIndex)*s.mapper.ChunkSize
	mapping.EndByteLast = last.StreamEnd - 1 - int64(last.ChunkIndex)*s.mapper.ChunkSize

	return s.writer.InsertPieceMapping(ctx, mapping)
}

// newChunkID is deterministic per (release, chunk) so repeated piece
// writes that touch the same chunk accumulate into one cache entry
// instead of each minting a fresh, disconnected id.
func newChunkID(releaseID string, chunkIndex int) string {
	return fmt.Sprintf("torrent-%s-c%d", releaseID, chunkIndex)
}
