package ingest

import (
	"context"
	"io"
	"os"

	"github.com/hideselfview/bae/pkg/musicerr"
)

// FileSource is one file in a release's virtual concatenated stream.
type FileSource struct {
	Path string
	Size int64
}

// FilesystemProducer reads files in order into a rolling chunk_size
// buffer, emitting a chunk each time it fills: it opens each file once,
// emits at most one chunk at a time (the pipeline's channel backpressure
// sets the rate), and flushes any final partial buffer on EOF of the
// last file.
func FilesystemProducer(files []FileSource, chunkSize int64) Producer {
	return func(ctx context.Context, out chan<- ProducedChunk) error {
		buf := make([]byte, 0, chunkSize)
		chunkIndex := 0

		flush := func() error {
			if len(buf) == 0 {
				return nil
			}
			chunk := ProducedChunk{ChunkID: NewChunkID(), ChunkIndex: chunkIndex, Data: append([]byte(nil), buf...)}
			chunkIndex++
			buf = buf[:0]
			select {
			case out <- chunk:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		for _, f := range files {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := readFileIntoChunks(ctx, f, chunkSize, &buf, flush); err != nil {
				return err
			}
		}
		return flush()
	}
}

func readFileIntoChunks(ctx context.Context, f FileSource, chunkSize int64, buf *[]byte, flush func() error) error {
	file, err := os.Open(f.Path)
	if err != nil {
		return musicerr.NewProducerError("opening source file "+f.Path, err)
	}
	defer file.Close()

	readBuf := make([]byte, 64*1024)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := file.Read(readBuf)
		if n > 0 {
			remaining := readBuf[:n]
			for len(remaining) > 0 {
				space := int(chunkSize) - len(*buf)
				take := len(remaining)
				if take > space {
					take = space
				}
				*buf = append(*buf, remaining[:take]...)
				remaining = remaining[take:]
				if len(*buf) == int(chunkSize) {
					if err := flush(); err != nil {
						return err
					}
				}
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return musicerr.NewProducerError("reading source file "+f.Path, err)
		}
	}
}
