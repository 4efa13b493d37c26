// Package streaming implements the byte-addressable, seekable read path
// over a release's encrypted chunks: a track's logical byte stream,
// optionally preceded by a header prefix (for CUE/FLAC tracks sharing one
// physical FLAC file), resolved chunk-by-chunk through the local cache
// with object-store fallback, exposed as io.Reader/io.Seeker.
package streaming

import (
	"context"
	"fmt"
	"io"

	"github.com/hideselfview/bae/pkg/cache"
	"github.com/hideselfview/bae/pkg/chunkcodec"
	"github.com/hideselfview/bae/pkg/objectstore"
	"github.com/hideselfview/bae/pkg/persistence"
)

// ChunkSource resolves a release's chunks to encrypted bytes, checking the
// cache before falling back to the object store and warming the cache on
// miss. It is shared by every open stream for a release.
type ChunkSource struct {
	store  objectstore.Store
	cache  *cache.Cache
	writer persistence.Writer

	prefetchWindow int
}

// NewChunkSource builds a ChunkSource. cache may be nil, in which case
// every read goes straight to the object store.
func NewChunkSource(store objectstore.Store, c *cache.Cache, writer persistence.Writer, prefetchWindow int) *ChunkSource {
	if prefetchWindow < 0 {
		prefetchWindow = 0
	}
	return &ChunkSource{store: store, cache: c, writer: writer, prefetchWindow: prefetchWindow}
}

// resolveEncrypted returns chunkID's encrypted blob, trying the cache
// first and downloading + warming the cache on miss.
func (s *ChunkSource) resolveEncrypted(ctx context.Context, chunkID, location string) ([]byte, error) {
	if s.cache != nil {
		if data, ok := s.cache.Get(chunkID); ok {
			return data, nil
		}
	}
	data, err := s.store.Download(ctx, location)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		_ = s.cache.Put(chunkID, data)
	}
	return data, nil
}

// prefetch asynchronously warms the cache for the next few chunks of a
// release, starting at chunkIndex+1. Errors are swallowed: prefetch is
// speculative, never load-bearing.
func (s *ChunkSource) prefetch(releaseID string, chunks []persistence.Chunk, fromIndex int) {
	if s.prefetchWindow == 0 || s.cache == nil {
		return
	}
	byIndex := make(map[int]persistence.Chunk, len(chunks))
	for _, c := range chunks {
		byIndex[c.ChunkIndex] = c
	}
	go func() {
		ctx := context.Background()
		for i := fromIndex + 1; i <= fromIndex+s.prefetchWindow; i++ {
			c, ok := byIndex[i]
			if !ok {
				continue
			}
			if _, hit := s.cache.Get(c.ID); hit {
				continue
			}
			data, err := s.store.Download(ctx, c.StorageLocation)
			if err != nil {
				continue
			}
			_ = s.cache.Put(c.ID, data)
		}
	}()
}

// TrackStream is an io.ReadSeeker over one track's logical byte stream:
// an optional header prefix followed by the track's audio bytes, which
// may span multiple chunks. Each TrackStream decrypts into its own
// private plaintext buffer; decrypted bytes are never written back into
// the shared cache, which only ever holds encrypted blobs.
type TrackStream struct {
	ctx    context.Context
	source *ChunkSource
	codec  *chunkcodec.Codec

	releaseID     string
	chunkSizeBytes int64
	coords        persistence.TrackChunkCoords
	header        []byte
	chunks        []persistence.Chunk // all chunks of the release, sorted by ChunkIndex

	pos   int64 // logical position in [0, totalSize)
	total int64

	// cachedChunkIndex/cachedPlaintext memoize the last decrypted chunk so
	// sequential reads don't redecrypt on every call.
	cachedChunkIndex int
	cachedPlaintext  []byte
	haveCached       bool
}

// Open builds a TrackStream for one track. chunks must be every chunk
// belonging to the release, sorted ascending by ChunkIndex (as returned
// by persistence.Writer.ListChunks). header is the bytes to prepend
// (FLAC headers for a CUE-indexed track sharing a file with other
// tracks), or nil.
func Open(ctx context.Context, source *ChunkSource, codec *chunkcodec.Codec, releaseID string, chunkSizeBytes int64, coords persistence.TrackChunkCoords, header []byte, chunks []persistence.Chunk) (*TrackStream, error) {
	body, err := trackBodySize(coords, chunkSizeBytes)
	if err != nil {
		return nil, err
	}
	return &TrackStream{
		ctx:            ctx,
		source:         source,
		codec:          codec,
		releaseID:      releaseID,
		chunkSizeBytes: chunkSizeBytes,
		coords:         coords,
		header:         header,
		chunks:         chunks,
		total:          int64(len(header)) + body,
	}, nil
}

// trackBodySize computes a track's audio byte length from its chunk
// coordinates: the span of chunks it occupies, minus what's trimmed off
// the front of the first chunk and the back of the last.
func trackBodySize(c persistence.TrackChunkCoords, chunkSizeBytes int64) (int64, error) {
	if c.EndChunkIndex < c.StartChunkIndex {
		return 0, fmt.Errorf("streaming: end chunk %d precedes start chunk %d", c.EndChunkIndex, c.StartChunkIndex)
	}
	span := int64(c.EndChunkIndex - c.StartChunkIndex)
	return span*chunkSizeBytes + c.EndByteOffset + 1 - c.StartByteOffset, nil
}

// Len reports the stream's total logical size: header prefix plus body.
func (t *TrackStream) Len() int64 { return t.total }

// Read implements io.Reader, serving bytes from the header prefix first,
// then decrypting and slicing chunks as the read position advances into
// the track body.
func (t *TrackStream) Read(p []byte) (int, error) {
	if t.pos >= t.total {
		return 0, io.EOF
	}

	if t.pos < int64(len(t.header)) {
		n := copy(p, t.header[t.pos:])
		t.pos += int64(n)
		return n, nil
	}

	bodyPos := t.pos - int64(len(t.header))
	totalFromChunkStart := t.coords.StartByteOffset + bodyPos
	chunkIndex := t.coords.StartChunkIndex + int(totalFromChunkStart/t.chunkSizeBytes)
	offsetInChunk := totalFromChunkStart % t.chunkSizeBytes

	plaintext, err := t.plaintextForChunk(chunkIndex)
	if err != nil {
		return 0, err
	}
	if offsetInChunk >= int64(len(plaintext)) {
		return 0, io.EOF
	}

	available := int64(len(plaintext)) - offsetInChunk
	remainingInTrack := t.total - t.pos
	toRead := int64(len(p))
	if toRead > available {
		toRead = available
	}
	if toRead > remainingInTrack {
		toRead = remainingInTrack
	}
	n := copy(p[:toRead], plaintext[offsetInChunk:offsetInChunk+toRead])
	t.pos += int64(n)

	t.source.prefetch(t.releaseID, t.chunks, chunkIndex)
	return n, nil
}

// plaintextForChunk decrypts chunkIndex, memoizing the most recent result
// since sequential Read calls repeatedly hit the same chunk near its
// boundary.
func (t *TrackStream) plaintextForChunk(chunkIndex int) ([]byte, error) {
	if t.haveCached && t.cachedChunkIndex == chunkIndex {
		return t.cachedPlaintext, nil
	}
	chunk, ok := chunkByIndex(t.chunks, chunkIndex)
	if !ok {
		return nil, fmt.Errorf("streaming: chunk %d not found for release %s", chunkIndex, t.releaseID)
	}
	blob, err := t.source.resolveEncrypted(t.ctx, chunk.ID, chunk.StorageLocation)
	if err != nil {
		return nil, err
	}
	plaintext, err := t.codec.Decrypt(blob)
	if err != nil {
		return nil, err
	}
	t.cachedChunkIndex = chunkIndex
	t.cachedPlaintext = plaintext
	t.haveCached = true
	return plaintext, nil
}

func chunkByIndex(chunks []persistence.Chunk, index int) (persistence.Chunk, bool) {
	for _, c := range chunks {
		if c.ChunkIndex == index {
			return c, true
		}
	}
	return persistence.Chunk{}, false
}

// Seek implements io.Seeker over the stream's logical [0, Len()) range.
func (t *TrackStream) Seek(offset int64, whence int) (int64, error) {
	var newPos int64
	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = t.pos + offset
	case io.SeekEnd:
		newPos = t.total + offset
	default:
		return 0, fmt.Errorf("streaming: invalid whence %d", whence)
	}
	if newPos < 0 {
		return 0, fmt.Errorf("streaming: seek before start of stream")
	}
	if newPos > t.total {
		return 0, fmt.Errorf("streaming: seek beyond end of track")
	}
	t.pos = newPos
	return t.pos, nil
}

var (
	_ io.Reader = (*TrackStream)(nil)
	_ io.Seeker = (*TrackStream)(nil)
)
