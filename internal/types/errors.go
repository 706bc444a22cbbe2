package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure kinds callers need to branch on. Recoverable
// per-chunk and per-pass failures are absorbed locally and reflected as
// degraded output; these sentinels classify what is left.
var (
	// ErrSizeLimit marks a chunk that exceeds the transcription API's hard
	// payload ceiling. Fatal for that chunk, never for the batch, and raised
	// before any network call.
	ErrSizeLimit = errors.New("chunk exceeds transcription payload limit")

	// ErrTranscriptionTimeout marks a per-chunk call that hit the client-side
	// deadline. The chunk is skipped, not the batch.
	ErrTranscriptionTimeout = errors.New("transcription call timed out")

	// ErrTokenExpired means the stored access token is no longer usable and a
	// refresh is needed.
	ErrTokenExpired = errors.New("access token expired")

	// ErrReauthRequired means refresh cannot recover the credential; the user
	// must run the authorization flow again. Fatal for the current operation
	// and surfaced as an actionable state.
	ErrReauthRequired = errors.New("re-authentication required")

	// ErrUploadInitTimeout means the resumable session could not be opened in
	// time; callers should fall back to the non-resumable handoff path.
	ErrUploadInitTimeout = errors.New("resumable upload init timed out")

	// ErrCredentialNotFound is returned by credential stores for an unknown
	// (user, provider) pair.
	ErrCredentialNotFound = errors.New("credential not found")
)

// ChunkError records one chunk's transcription failure without aborting the
// batch.
type ChunkError struct {
	Index int
	Err   error
}

func (e ChunkError) Error() string {
	return fmt.Sprintf("chunk %d: %v", e.Index, e.Err)
}

func (e ChunkError) Unwrap() error { return e.Err }

// UploadChunkError is terminal for the whole upload session: one byte range
// exhausted its retries.
type UploadChunkError struct {
	Offset   int64
	Attempts int
	Err      error
}

func (e *UploadChunkError) Error() string {
	return fmt.Sprintf("upload chunk at offset %d failed after %d attempts: %v", e.Offset, e.Attempts, e.Err)
}

func (e *UploadChunkError) Unwrap() error { return e.Err }
