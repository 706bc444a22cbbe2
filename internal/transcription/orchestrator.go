package transcription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/clipforge/clipforge/internal/ports"
	"github.com/clipforge/clipforge/internal/types"
	"github.com/rs/zerolog"
)

const (
	defaultCallTimeout  = 10 * time.Minute
	defaultMaxCallBytes = 25 << 20
)

type Options struct {
	// CallTimeout is the hard per-chunk bound; a call that exceeds it is
	// recorded as a timeout and the batch continues.
	CallTimeout time.Duration
	// Delay is inserted between calls (not after the last) to respect the
	// endpoint's rate limits.
	Delay time.Duration
	// MaxCallBytes is the endpoint's hard payload ceiling. Oversized chunks
	// fail fast with types.ErrSizeLimit before any network call.
	MaxCallBytes int64
}

func (o Options) withDefaults() Options {
	if o.CallTimeout <= 0 {
		o.CallTimeout = defaultCallTimeout
	}
	if o.Delay < 0 {
		o.Delay = 0
	}
	if o.MaxCallBytes <= 0 {
		o.MaxCallBytes = defaultMaxCallBytes
	}
	return o
}

// Result is a stitched transcript plus the per-chunk failures that were
// absorbed along the way. Failed chunks contribute empty entries, so the
// entry count always equals the chunk count.
type Result struct {
	Transcript types.Transcript
	Failures   []types.ChunkError
}

// Orchestrator feeds chunks to the transcription endpoint strictly
// sequentially. One bad chunk never aborts the batch.
type Orchestrator struct {
	asr  ports.Transcriber
	opts Options
	log  zerolog.Logger
}

func New(asr ports.Transcriber, opts Options, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		asr:  asr,
		opts: opts.withDefaults(),
		log:  log.With().Str("component", "transcription").Logger(),
	}
}

// Transcribe makes exactly one call per eligible chunk, in index order. It
// returns an error only when the parent context is cancelled; everything else
// is reflected in Result.Failures.
func (o *Orchestrator) Transcribe(ctx context.Context, chunks []types.Chunk) (Result, error) {
	res := Result{Transcript: types.Transcript{Entries: make([]types.ChunkTranscript, 0, len(chunks))}}

	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		text, err := o.transcribeChunk(ctx, chunk)
		if err != nil {
			res.Failures = append(res.Failures, types.ChunkError{Index: chunk.Index, Err: err})
			o.log.Warn().Err(err).Int("chunk", chunk.Index).Msg("chunk transcription failed, continuing")
			text = ""
		}
		res.Transcript.Entries = append(res.Transcript.Entries, types.ChunkTranscript{
			ChunkIndex: chunk.Index,
			Text:       text,
		})

		if i < len(chunks)-1 && o.opts.Delay > 0 {
			if err := sleep(ctx, o.opts.Delay); err != nil {
				return res, err
			}
		}
	}

	o.log.Info().
		Int("chunks", len(chunks)).
		Int("failed", len(res.Failures)).
		Msg("transcript assembled")
	return res, nil
}

func (o *Orchestrator) transcribeChunk(ctx context.Context, chunk types.Chunk) (string, error) {
	if chunk.SizeBytes > o.opts.MaxCallBytes {
		return "", fmt.Errorf("%w: %d bytes > %d", types.ErrSizeLimit, chunk.SizeBytes, o.opts.MaxCallBytes)
	}

	callCtx, cancel := context.WithTimeout(ctx, o.opts.CallTimeout)
	defer cancel()

	text, err := o.asr.Transcribe(callCtx, chunk.Path)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w after %s: %v", types.ErrTranscriptionTimeout, o.opts.CallTimeout, err)
		}
		return "", fmt.Errorf("transcription transport: %w", err)
	}
	return text, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
