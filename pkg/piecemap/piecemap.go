// Package piecemap implements the torrent piece↔chunk mapper: two
// independent fixed-size grids over the same N-byte stream, as a pure
// value type with a full reverse (chunk→pieces) index alongside the
// forward (piece→chunks) one.
package piecemap

// Overlap describes the byte range a piece and a chunk share, expressed
// both in absolute stream coordinates and in piece-local coordinates.
type Overlap struct {
	ChunkIndex     int
	PieceIndex     int
	StreamStart    int64 // inclusive, absolute offset in the N-byte stream
	StreamEnd      int64 // exclusive
	PieceLocalStart int64 // inclusive, offset within the piece
	PieceLocalEnd   int64 // exclusive
}

// Mapper computes the piece↔chunk duality for a fixed (piece_length,
// chunk_size, total_size) triple.
type Mapper struct {
	PieceLength int64
	ChunkSize   int64
	NumPieces   int
	TotalSize   int64
}

// NewMapper constructs a Mapper, deriving NumPieces from TotalSize and
// PieceLength if numPieces is zero.
func NewMapper(pieceLength, chunkSize, totalSize int64, numPieces int) *Mapper {
	if numPieces <= 0 && pieceLength > 0 {
		numPieces = int((totalSize + pieceLength - 1) / pieceLength)
	}
	return &Mapper{PieceLength: pieceLength, ChunkSize: chunkSize, NumPieces: numPieces, TotalSize: totalSize}
}

// NumChunks is ⌈N/C⌉, the chunk-grid size over the same stream.
func (m *Mapper) NumChunks() int {
	if m.ChunkSize <= 0 {
		return 0
	}
	return int((m.TotalSize + m.ChunkSize - 1) / m.ChunkSize)
}

func (m *Mapper) pieceBounds(pieceIndex int) (start, end int64) {
	start = int64(pieceIndex) * m.PieceLength
	end = start + m.PieceLength
	if end > m.TotalSize {
		end = m.TotalSize
	}
	return start, end
}

func (m *Mapper) chunkBounds(chunkIndex int) (start, end int64) {
	start = int64(chunkIndex) * m.ChunkSize
	end = start + m.ChunkSize
	if end > m.TotalSize {
		end = m.TotalSize
	}
	return start, end
}

// OverlapsForPiece returns every chunk a piece intersects, with exact
// overlap arithmetic.
func (m *Mapper) OverlapsForPiece(pieceIndex int) []Overlap {
	pieceStart, pieceEnd := m.pieceBounds(pieceIndex)
	if pieceStart >= pieceEnd {
		return nil
	}

	firstChunk := int(pieceStart / m.ChunkSize)
	lastChunk := int((pieceEnd - 1) / m.ChunkSize)

	overlaps := make([]Overlap, 0, lastChunk-firstChunk+1)
	for k := firstChunk; k <= lastChunk; k++ {
		chunkStart, chunkEnd := m.chunkBounds(k)

		overlapStart := max64(pieceStart, chunkStart)
		overlapEnd := min64(pieceEnd, chunkEnd)

		overlaps = append(overlaps, Overlap{
			ChunkIndex:      k,
			PieceIndex:      pieceIndex,
			StreamStart:     overlapStart,
			StreamEnd:       overlapEnd,
			PieceLocalStart: overlapStart - pieceStart,
			PieceLocalEnd:   overlapEnd - pieceStart,
		})
	}
	return overlaps
}

// PiecesForChunk returns the set of piece indices that must be complete
// before chunkIndex can be emitted (the symmetric reverse mapping).
func (m *Mapper) PiecesForChunk(chunkIndex int) []int {
	chunkStart, chunkEnd := m.chunkBounds(chunkIndex)
	if chunkStart >= chunkEnd {
		return nil
	}

	firstPiece := int(chunkStart / m.PieceLength)
	lastPiece := int((chunkEnd - 1) / m.PieceLength)

	pieces := make([]int, 0, lastPiece-firstPiece+1)
	for p := firstPiece; p <= lastPiece; p++ {
		pieces = append(pieces, p)
	}
	return pieces
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
