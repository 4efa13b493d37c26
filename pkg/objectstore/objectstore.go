// Package objectstore defines the chunk object-store capability set
// (upload/download/delete/exists) and its in-memory and S3-compatible
// implementations. Blobs are opaque; the store never interprets them.
package objectstore

import "context"

// Store is the polymorphic capability set every object-store backend
// implements. Chunk keys follow the "chunks/<chunk_id>" schema; Location
// is the fully-qualified handle persisted in the DB (e.g.
// "s3://bucket/chunks/<id>" or "mem://chunks/<id>").
type Store interface {
	Upload(ctx context.Context, chunkID string, data []byte) (location string, err error)
	Download(ctx context.Context, location string) ([]byte, error)
	Delete(ctx context.Context, location string) error
	Exists(ctx context.Context, location string) (bool, error)
}

// ChunkKey returns the object-store key schema for a chunk id.
func ChunkKey(chunkID string) string {
	return "chunks/" + chunkID
}
