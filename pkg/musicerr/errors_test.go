package musicerr

import (
	"errors"
	"testing"
)

func TestChunkErrorMessageAndUnwrap(t *testing.T) {
	cause := errors.New("tag mismatch")
	err := NewAuthFailure(cause)

	if err.Code != CodeCodecAuthFailure {
		t.Errorf("Code = %s, want %s", err.Code, CodeCodecAuthFailure)
	}
	if err.IsRetryable() {
		t.Error("auth failure should not be retryable")
	}
	if err.Unwrap() != cause {
		t.Error("Unwrap did not return the wrapped cause")
	}

	want := "CODEC_AUTH_FAILURE: authentication tag mismatch"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestChunkErrorContext(t *testing.T) {
	err := NewStoreTransient("timeout", nil).WithChunk("chunk-1").WithRelease("release-1")

	if !err.IsRetryable() {
		t.Error("store transient error should be retryable")
	}

	want := "STORE_TRANSIENT: timeout (release release-1, chunk chunk-1)"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestIs(t *testing.T) {
	err := NewStoreNotFound("chunks/abc")

	if !Is(err, CodeStoreNotFound) {
		t.Error("Is should match the error's own code")
	}
	if Is(err, CodeStoreTransient) {
		t.Error("Is should not match a different code")
	}
	if Is(errors.New("plain error"), CodeStoreNotFound) {
		t.Error("Is should not match a non-ChunkError")
	}
}

func TestErrorStats(t *testing.T) {
	stats := NewErrorStats()

	if stats.Count(CodeStoreTransient) != 0 {
		t.Error("initial count should be 0")
	}

	stats.Record(NewStoreTransient("timeout", nil))
	stats.Record(NewStoreTransient("connection reset", nil))
	stats.Record(NewAuthFailure(nil))

	if got := stats.Count(CodeStoreTransient); got != 2 {
		t.Errorf("CodeStoreTransient count = %d, want 2", got)
	}
	if got := stats.Count(CodeCodecAuthFailure); got != 1 {
		t.Errorf("CodeCodecAuthFailure count = %d, want 1", got)
	}
	if got := stats.Count(CodeLayout); got != 0 {
		t.Errorf("CodeLayout count = %d, want 0", got)
	}
}

func TestErrorStatsIgnoresNonChunkErrors(t *testing.T) {
	stats := NewErrorStats()
	stats.Record(errors.New("not a ChunkError"))

	if got := stats.Count(CodeStoreTransient); got != 0 {
		t.Errorf("recording a plain error should not affect any count, got %d", got)
	}
}
