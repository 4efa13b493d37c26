package piecemap

import "testing"

// Scenario (f): P = 256 KiB, C = 1 MiB, N = 3.5 MiB.
func TestTorrentMappingScenarioF(t *testing.T) {
	const (
		pieceLength = 256 * 1024
		chunkSize   = 1024 * 1024
		totalSize   = 3*1024*1024 + 512*1024
	)
	m := NewMapper(pieceLength, chunkSize, totalSize, 0)

	wantChunkForPieces := map[int]int{
		0: 0, 1: 0, 2: 0, 3: 0,
		4: 1, 5: 1, 6: 1, 7: 1,
		8: 2, 9: 2, 10: 2, 11: 2,
		12: 3, 13: 3,
	}
	for piece, wantChunk := range wantChunkForPieces {
		overlaps := m.OverlapsForPiece(piece)
		if len(overlaps) != 1 || overlaps[0].ChunkIndex != wantChunk {
			t.Fatalf("piece %d overlaps = %+v, want single overlap with chunk %d", piece, overlaps, wantChunk)
		}
	}
}

func TestPieceChunkDuality(t *testing.T) {
	const (
		pieceLength = 256 * 1024
		chunkSize   = 1024 * 1024
		totalSize   = 3*1024*1024 + 512*1024
	)
	m := NewMapper(pieceLength, chunkSize, totalSize, 0)

	covered := make(map[int]bool)
	for p := 0; p < m.NumPieces; p++ {
		for _, ov := range m.OverlapsForPiece(p) {
			covered[ov.ChunkIndex] = true
		}
	}
	if len(covered) != m.NumChunks() {
		t.Fatalf("union of piece->chunk overlaps covers %d chunks, want %d", len(covered), m.NumChunks())
	}
	for k := 0; k < m.NumChunks(); k++ {
		if !covered[k] {
			t.Fatalf("chunk %d not covered by any piece", k)
		}
	}
}

func TestReverseMappingIsSymmetric(t *testing.T) {
	const (
		pieceLength = 256 * 1024
		chunkSize   = 1024 * 1024
		totalSize   = 3*1024*1024 + 512*1024
	)
	m := NewMapper(pieceLength, chunkSize, totalSize, 0)

	for p := 0; p < m.NumPieces; p++ {
		for _, ov := range m.OverlapsForPiece(p) {
			pieces := m.PiecesForChunk(ov.ChunkIndex)
			found := false
			for _, candidate := range pieces {
				if candidate == p {
					found = true
					break
				}
			}
			if !found {
				t.Fatalf("chunk %d's piece list %v does not include piece %d, which overlaps it", ov.ChunkIndex, pieces, p)
			}
		}
	}
}

func TestBoundaryPieceSplitsExactly(t *testing.T) {
	// Piece 3 spans bytes [768KiB, 1024KiB) — straddles the chunk-0/chunk-1
	// boundary only when P does not divide C evenly; here P=256KiB divides
	// C=1MiB evenly so no piece straddles. Use a non-dividing P instead.
	const (
		pieceLength = 300 * 1024
		chunkSize   = 1024 * 1024
		totalSize   = 2 * 1024 * 1024
	)
	m := NewMapper(pieceLength, chunkSize, totalSize, 0)

	// Piece 3 starts at 900KiB, ends at 1200KiB — straddles chunk 0/1 at 1024KiB.
	overlaps := m.OverlapsForPiece(3)
	if len(overlaps) != 2 {
		t.Fatalf("expected piece 3 to straddle two chunks, got %+v", overlaps)
	}
	boundary := int64(chunkSize)
	pieceStart := int64(3 * pieceLength)
	for _, ov := range overlaps {
		wantLocalStart := max64(ov.StreamStart, pieceStart) - pieceStart
		if ov.PieceLocalStart != wantLocalStart {
			t.Fatalf("overlap %+v has wrong local start", ov)
		}
		if ov.ChunkIndex == 0 && ov.StreamEnd != boundary {
			t.Fatalf("overlap into chunk 0 should end exactly at boundary: %+v", ov)
		}
	}
}
