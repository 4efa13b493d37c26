// Package musicerr defines the structured error taxonomy shared across the
// chunk pipeline components (codec, object store, cache, producers,
// persistence, layout planner).
package musicerr

import (
	"fmt"
	"time"
)

// Code identifies which component-level error kind occurred.
type Code string

const (
	// Producer errors: source file unreadable, torrent piece verify
	// failure, unexpected EOF.
	CodeProducer Code = "PRODUCER_ERROR"

	// Codec errors: CSPRNG failure on encrypt, auth-tag mismatch on
	// decrypt, malformed framing, key-id mismatch.
	CodeCodecCSPRNGFailure Code = "CODEC_CSPRNG_FAILURE"
	CodeCodecAuthFailure   Code = "CODEC_AUTH_FAILURE"
	CodeCodecMalformed     Code = "CODEC_MALFORMED"
	CodeCodecKeyMismatch   Code = "CODEC_KEY_MISMATCH"

	// Object store errors.
	CodeStoreTransient Code = "STORE_TRANSIENT"
	CodeStorePermanent Code = "STORE_PERMANENT"
	CodeStoreNotFound  Code = "STORE_NOT_FOUND"

	// Cache errors: I/O against the cache dir, or index drift (the
	// entry is dropped and the error is otherwise self-healed).
	CodeCacheIO    Code = "CACHE_IO"
	CodeCacheDrift Code = "CACHE_DRIFT"

	// Persistence errors surface verbatim from the DB writer.
	CodePersistence Code = "PERSISTENCE_ERROR"

	// Layout errors: track without a backing file, CUE track count
	// mismatch, empty release.
	CodeLayout Code = "LAYOUT_ERROR"

	// Cue sheet errors: malformed grammar, missing FLAC signature,
	// STREAMINFO block not found, truncated metadata.
	CodeCueSheet Code = "CUE_SHEET_ERROR"
)

// ChunkError is the single structured error type shared by every
// component: a code, human message, optional chunk/release context, a
// retryable flag, and a wrapped cause.
type ChunkError struct {
	Code      Code
	Message   string
	ChunkID   string
	ReleaseID string
	Timestamp time.Time
	Retryable bool
	Cause     error
}

func (e *ChunkError) Error() string {
	switch {
	case e.ChunkID != "" && e.ReleaseID != "":
		return fmt.Sprintf("%s: %s (release %s, chunk %s)", e.Code, e.Message, e.ReleaseID, e.ChunkID)
	case e.ChunkID != "":
		return fmt.Sprintf("%s: %s (chunk %s)", e.Code, e.Message, e.ChunkID)
	case e.ReleaseID != "":
		return fmt.Sprintf("%s: %s (release %s)", e.Code, e.Message, e.ReleaseID)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

func (e *ChunkError) Unwrap() error { return e.Cause }

// IsRetryable reports whether the failing operation is worth retrying.
func (e *ChunkError) IsRetryable() bool { return e.Retryable }

func new(code Code, message string, retryable bool, cause error) *ChunkError {
	return &ChunkError{
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
		Retryable: retryable,
		Cause:     cause,
	}
}

// WithChunk attaches a chunk id to an error for context.
func (e *ChunkError) WithChunk(chunkID string) *ChunkError {
	e.ChunkID = chunkID
	return e
}

// WithRelease attaches a release id to an error for context.
func (e *ChunkError) WithRelease(releaseID string) *ChunkError {
	e.ReleaseID = releaseID
	return e
}

// NewProducerError wraps a producer-stage failure (file open/read, torrent
// piece verify, unexpected EOF).
func NewProducerError(message string, cause error) *ChunkError {
	return new(CodeProducer, message, false, cause)
}

// NewCSPRNGFailure reports that a fresh nonce could not be sampled; the
// codec fails closed rather than ever reusing or deriving a nonce.
func NewCSPRNGFailure(cause error) *ChunkError {
	return new(CodeCodecCSPRNGFailure, "failed to sample nonce from CSPRNG", false, cause)
}

// NewAuthFailure reports an AES-GCM authentication tag mismatch.
func NewAuthFailure(cause error) *ChunkError {
	return new(CodeCodecAuthFailure, "authentication tag mismatch", false, cause)
}

// NewMalformed reports a framing or length error while parsing a blob.
func NewMalformed(message string) *ChunkError {
	return new(CodeCodecMalformed, message, false, nil)
}

// NewKeyMismatch reports that a blob's key_id does not match the
// configured master key.
func NewKeyMismatch(wantKeyID, gotKeyID string) *ChunkError {
	return new(CodeCodecKeyMismatch, fmt.Sprintf("key id mismatch: configured %q, blob has %q", wantKeyID, gotKeyID), false, nil)
}

// NewStoreTransient wraps a retry-worthy object store failure (timeouts,
// 5xx, connection reset).
func NewStoreTransient(message string, cause error) *ChunkError {
	return new(CodeStoreTransient, message, true, cause)
}

// NewStorePermanent wraps a non-retryable object store failure (4xx other
// than 404).
func NewStorePermanent(message string, cause error) *ChunkError {
	return new(CodeStorePermanent, message, false, cause)
}

// NewStoreNotFound reports a 404 on download/exists.
func NewStoreNotFound(location string) *ChunkError {
	return new(CodeStoreNotFound, fmt.Sprintf("object not found: %s", location), false, nil)
}

// NewCacheIO wraps an I/O failure against the cache directory. Cache
// errors never fail a user-visible operation on their own; the cache is a
// performance layer, not the source of truth.
func NewCacheIO(message string, cause error) *ChunkError {
	return new(CodeCacheIO, message, false, cause)
}

// NewCacheDrift reports an index entry whose backing file no longer
// matches the digest recorded when it was written; the caller self-heals
// by dropping the entry.
func NewCacheDrift(chunkID string) *ChunkError {
	return new(CodeCacheDrift, "cache entry content no longer matches its recorded digest", false, nil).WithChunk(chunkID)
}

// NewPersistenceError wraps a DB writer failure verbatim.
func NewPersistenceError(message string, cause error) *ChunkError {
	return new(CodePersistence, message, false, cause)
}

// NewLayoutError reports a structural problem with a release's layout
// (track with no backing file, CUE track count mismatch, empty release).
func NewLayoutError(message string) *ChunkError {
	return new(CodeLayout, message, false, nil)
}

// NewCueSheetError reports a malformed CUE sheet or an unreadable FLAC
// header (bad signature, missing STREAMINFO, truncated metadata block).
func NewCueSheetError(message string, cause error) *ChunkError {
	return new(CodeCueSheet, message, false, cause)
}

// Is reports whether err is a ChunkError carrying the given code.
func Is(err error, code Code) bool {
	ce, ok := err.(*ChunkError)
	return ok && ce.Code == code
}

// ErrorStats accumulates counts of each error code seen, for operational
// visibility.
type ErrorStats struct {
	counts map[Code]uint64
}

// NewErrorStats constructs an empty stats recorder.
func NewErrorStats() *ErrorStats {
	return &ErrorStats{counts: make(map[Code]uint64)}
}

// Record increments the count for err's code, if err is a *ChunkError.
func (s *ErrorStats) Record(err error) {
	ce, ok := err.(*ChunkError)
	if !ok {
		return
	}
	s.counts[ce.Code]++
}

// Count returns how many times a given code has been recorded.
func (s *ErrorStats) Count(code Code) uint64 {
	return s.counts[code]
}
