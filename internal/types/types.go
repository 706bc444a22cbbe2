package types

import (
	"strings"
	"time"
)

// MediaInfo is derived once by probing the source file and never mutated.
type MediaInfo struct {
	Duration  time.Duration
	SizeBytes int64
	Width     int
	Height    int
	Codec     string
	MIME      string
}

type SourceMedia struct {
	Path string
	Info MediaInfo
}

// Chunk is a time-bounded, size-bounded slice of source media written to disk
// so it can satisfy the transcription API's payload limit. Chunks of one
// source are 0-indexed, contiguous and ordered; the final chunk's End equals
// the probed duration exactly.
type Chunk struct {
	Index     int
	Start     time.Duration
	End       time.Duration
	Path      string
	SizeBytes int64
}

func (c Chunk) Span() time.Duration { return c.End - c.Start }

// ChunkTranscript is one chunk's transcription outcome. Failed chunks keep
// their position with an empty Text.
type ChunkTranscript struct {
	ChunkIndex int    `json:"chunk_index"`
	Text       string `json:"text"`
}

type Transcript struct {
	Entries []ChunkTranscript `json:"entries"`
}

// FullText joins per-chunk texts in chunk order with single spaces. The join
// is lossy at chunk boundaries: overlapping words are not de-duplicated, so
// positions near boundaries are approximate.
func (t Transcript) FullText() string {
	parts := make([]string, 0, len(t.Entries))
	for _, e := range t.Entries {
		parts = append(parts, e.Text)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// Segment is a structural slice of the transcript's word stream with a
// synthetic time range. It does not re-analyze audio; its score is a
// tie-break and fallback ranking signal only.
type Segment struct {
	Start     time.Duration
	End       time.Duration
	Text      string
	Score     float64
	WordCount int
}

type Platform string

const (
	PlatformTikTok        Platform = "tiktok"
	PlatformInstagramReel Platform = "instagram-reel"
	PlatformYouTubeShort  Platform = "youtube-short"
	PlatformXTwitter      Platform = "x-twitter"
)

// Clip is a candidate short produced by the selection engine, either
// AI-selected or built deterministically from a top-scored segment.
type Clip struct {
	Start          time.Duration
	End            time.Duration
	ViralScore     int // 1..10
	Caption        string
	Hashtags       []string
	Hook           string
	CallToAction   string
	Platforms      []Platform
	Reasoning      string
	Confidence     float64 // 0..1
	UserCompliance float64 // 0..1
}

type Disposition string

const (
	DispositionApproved Disposition = "approved"
	DispositionRefined  Disposition = "refined"
	DispositionRejected Disposition = "rejected"
)

// ReviewedClip is a pass-2 outcome: the reviewed clip plus its disposition.
// Rejected clips never reach assembly.
type ReviewedClip struct {
	Clip
	Disposition Disposition
}

// Credential is scoped to one (user, provider) pair. Components other than
// the lifecycle manager only ever see the access token as an opaque bearer
// string valid "now".
type Credential struct {
	UserID       string    `json:"user_id"`
	Provider     string    `json:"provider"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// FreshFor reports whether the access token is still valid at now plus the
// given safety margin.
func (c Credential) FreshFor(now time.Time, margin time.Duration) bool {
	if c.AccessToken == "" || c.ExpiresAt.IsZero() {
		return false
	}
	return c.ExpiresAt.After(now.Add(margin))
}

// UploadSession tracks a resumable transfer. BytesConfirmed only advances on
// a server-acknowledged offset, never optimistically; that is what makes
// resumption after a crash safe.
type UploadSession struct {
	UploadURL      string `json:"upload_url"`
	TotalBytes     int64  `json:"total_bytes"`
	BytesConfirmed int64  `json:"bytes_confirmed"`
	ChunkSize      int64  `json:"chunk_size"`
}

// Manifest is the run output written next to the clips.
type Manifest struct {
	RunID         string           `json:"run_id"`
	Input         string           `json:"input"`
	DurationSec   float64          `json:"duration_sec"`
	Clips         []ManifestClip   `json:"clips"`
	Transcription TranscriptReport `json:"transcription"`
	Upload        *UploadReport    `json:"upload,omitempty"`
}

type ManifestClip struct {
	ID             string   `json:"id"`
	StartSec       float64  `json:"start_sec"`
	EndSec         float64  `json:"end_sec"`
	ViralScore     int      `json:"viral_score"`
	Caption        string   `json:"caption"`
	Hashtags       []string `json:"hashtags"`
	Hook           string   `json:"hook"`
	CallToAction   string   `json:"call_to_action,omitempty"`
	Platforms      []string `json:"platforms"`
	Reasoning      string   `json:"reasoning"`
	Confidence     float64  `json:"confidence"`
	UserCompliance float64  `json:"user_compliance,omitempty"`
}

// TranscriptReport carries the partial-success caveats: a run with failed
// chunks is still a success, but callers see "N of M chunks failed".
type TranscriptReport struct {
	Chunks       int      `json:"chunks"`
	FailedChunks []int    `json:"failed_chunks,omitempty"`
	Errors       []string `json:"errors,omitempty"`
	Truncated    bool     `json:"truncated"`
}

type UploadReport struct {
	RemoteID     string `json:"remote_id,omitempty"`
	ProcessingID string `json:"processing_id,omitempty"`
	StatusURL    string `json:"status_url,omitempty"`
	Error        string `json:"error,omitempty"`
}
