package ingest

import (
	"context"

	"github.com/hideselfview/bae/pkg/persistence"
	"github.com/hideselfview/bae/pkg/piecemap"
)

// ReadyPiece is one torrent piece delivered by the host torrent engine
// once fully downloaded and hash-verified.
type ReadyPiece struct {
	PieceIndex int
	Data       []byte
}

// PieceSource is the torrent handle's "piece N is ready" signal,
// abstracted so the producer does not depend on a specific torrent
// engine. NextReadyPiece blocks until a piece arrives, ctx is cancelled,
// or the torrent is complete (ok=false, err=nil).
type PieceSource interface {
	NextReadyPiece(ctx context.Context) (piece ReadyPiece, ok bool, err error)
}

// TorrentProducer drives off a PieceSource, accumulating each chunk's
// bytes from whichever pieces overlap it until the chunk is complete,
// then emitting it. Out-of-order piece arrival is normal; a chunk is
// emitted as soon as every piece intersecting it has arrived.
// pieceMappings receives the side-channel piece→chunk persistence record
// for every piece consumed, for the pipeline's finalize stage to persist.
func TorrentProducer(mapper *piecemap.Mapper, source PieceSource, pieceMappings *[]persistence.PieceMapping) Producer {
	return func(ctx context.Context, out chan<- ProducedChunk) error {
		acc := newChunkAccumulator(mapper)

		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			piece, ok, err := source.NextReadyPiece(ctx)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}

			overlaps := mapper.OverlapsForPiece(piece.PieceIndex)
			mapping := persistence.PieceMapping{PieceIndex: piece.PieceIndex}

			for _, ov := range overlaps {
				chunkStart := int64(ov.ChunkIndex) * mapper.ChunkSize
				intraChunkOffset := ov.StreamStart - chunkStart
				pieceBytes := piece.Data[ov.PieceLocalStart:ov.PieceLocalEnd]

				chunkID, complete, chunkData := acc.write(ov.ChunkIndex, intraChunkOffset, pieceBytes)
				mapping.ChunkIDs = append(mapping.ChunkIDs, chunkID)

				if complete {
					select {
					case out <- ProducedChunk{ChunkID: chunkID, ChunkIndex: ov.ChunkIndex, Data: chunkData}:
					case <-ctx.Done():
						return ctx.Err()
					}
				}
			}

			if len(overlaps) > 0 {
				first, last := overlaps[0], overlaps[len(overlaps)-1]
				mapping.StartByteFirst = first.StreamStart - int64(first.ChunkIndex)*mapper.ChunkSize
				mapping.EndByteLast = last.StreamEnd - 1 - int64(last.ChunkIndex)*mapper.ChunkSize
			}
			*pieceMappings = append(*pieceMappings, mapping)
		}
	}
}

// chunkAccumulator holds partially-filled chunk buffers keyed by chunk
// index while torrent pieces arrive out of order.
type chunkAccumulator struct {
	mapper    *piecemap.Mapper
	buffers   map[int][]byte
	filled    map[int]int64
	chunkIDs  map[int]string
}

func newChunkAccumulator(mapper *piecemap.Mapper) *chunkAccumulator {
	return &chunkAccumulator{
		mapper:   mapper,
		buffers:  make(map[int][]byte),
		filled:   make(map[int]int64),
		chunkIDs: make(map[int]string),
	}
}

// write copies data into chunkIndex's buffer at offset, returning the
// chunk's id, whether it is now fully filled, and (if complete) its data.
func (a *chunkAccumulator) write(chunkIndex int, offset int64, data []byte) (chunkID string, complete bool, chunkData []byte) {
	chunkLen := a.chunkLength(chunkIndex)

	buf, ok := a.buffers[chunkIndex]
	if !ok {
		buf = make([]byte, chunkLen)
		a.buffers[chunkIndex] = buf
		a.chunkIDs[chunkIndex] = NewChunkID()
	}
	copy(buf[offset:], data)
	a.filled[chunkIndex] += int64(len(data))

	id := a.chunkIDs[chunkIndex]
	if a.filled[chunkIndex] >= chunkLen {
		delete(a.buffers, chunkIndex)
		delete(a.filled, chunkIndex)
		delete(a.chunkIDs, chunkIndex)
		return id, true, buf
	}
	return id, false, nil
}

func (a *chunkAccumulator) chunkLength(chunkIndex int) int64 {
	start := int64(chunkIndex) * a.mapper.ChunkSize
	end := start + a.mapper.ChunkSize
	if end > a.mapper.TotalSize {
		end = a.mapper.TotalSize
	}
	return end - start
}
