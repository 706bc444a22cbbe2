package ports

import (
	"context"

	"github.com/clipforge/clipforge/internal/types"
)

// MediaTool probes and slices local media. No network.
type MediaTool interface {
	Probe(ctx context.Context, path string) (types.MediaInfo, error)
	ExtractAudio(ctx context.Context, inPath, outPath string) error
}

// Transcriber sends one audio chunk to the external transcription endpoint
// and returns its text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// ClipModel is a text-in, text-out generative call. Prompt construction and
// response parsing live with the caller; the model response is an opaque blob
// that may or may not contain usable JSON.
type ClipModel interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// TokenProvider yields a bearer token valid "now". Implementations own
// validation and refresh; callers never see refresh tokens or expiry.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// CredentialStore persists credentials per (user, provider) pair. Get returns
// types.ErrCredentialNotFound for unknown pairs.
type CredentialStore interface {
	Get(ctx context.Context, userID, provider string) (types.Credential, error)
	Put(ctx context.Context, cred types.Credential) error
	Delete(ctx context.Context, userID, provider string) error
}

// Uploader transfers the source media to the external object store and
// returns the remote object id.
type Uploader interface {
	Upload(ctx context.Context, path, mime string, onProgress func(confirmed, total int64)) (string, error)
}

// HandoffResult identifies an asynchronous processing job on the backend.
type HandoffResult struct {
	ProcessingID string `json:"processing_id"`
	StatusURL    string `json:"status_url"`
}

// Backend is the non-resumable fallback: one multipart POST of the whole
// video plus project metadata.
type Backend interface {
	Handoff(ctx context.Context, path string, media types.MediaInfo, title string) (HandoffResult, error)
}
