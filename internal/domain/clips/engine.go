package clips

import (
	"context"
	"fmt"

	"github.com/clipforge/clipforge/internal/ports"
	"github.com/clipforge/clipforge/internal/types"
	"github.com/rs/zerolog"
)

const defaultMaxTranscriptWords = 4000

type Options struct {
	// MaxTranscriptWords bounds the condensed transcript embedded in both
	// prompts.
	MaxTranscriptWords int
	// Fallback supplies templated metadata for deterministically selected
	// clips.
	Fallback FallbackTemplates
}

// Engine runs the two-pass selection protocol: GENERATE proposes candidates,
// REVIEW approves/refines/rejects them, ASSEMBLE tops up with deterministic
// fallback clips. AI-layer failures degrade to empty results and never abort
// an invocation; total latency is bounded to at most two model calls.
type Engine struct {
	model ports.ClipModel
	opts  Options
	log   zerolog.Logger
}

func New(model ports.ClipModel, opts Options, log zerolog.Logger) *Engine {
	if opts.MaxTranscriptWords <= 0 {
		opts.MaxTranscriptWords = defaultMaxTranscriptWords
	}
	return &Engine{
		model: model,
		opts:  opts,
		log:   log.With().Str("component", "clips").Logger(),
	}
}

// Select returns exactly min(requestedCount, len(segments)) clips. It errors
// only on caller-contract violations; model failures are absorbed.
func (e *Engine) Select(ctx context.Context, segs []types.Segment, transcript string, requestedCount int, directives string) ([]types.Clip, error) {
	if requestedCount <= 0 {
		return nil, fmt.Errorf("requested clip count must be > 0, got %d", requestedCount)
	}

	condensed := condenseTranscript(transcript, e.opts.MaxTranscriptWords)

	candidates := e.generate(ctx, condensed, segs, requestedCount, directives)
	final := e.review(ctx, condensed, candidates)

	if len(final) > requestedCount {
		final = final[:requestedCount]
	}
	if missing := requestedCount - len(final); missing > 0 {
		fb := buildFallback(segs, missing, e.opts.Fallback)
		e.log.Info().Int("ai", len(final)).Int("fallback", len(fb)).Msg("topping up with fallback clips")
		final = append(final, fb...)
	}
	return final, nil
}

// generate is pass 1. Any failure yields an empty candidate set.
func (e *Engine) generate(ctx context.Context, transcript string, segs []types.Segment, requestedCount int, directives string) []types.Clip {
	raw, err := e.model.Complete(ctx, buildGenerationPrompt(transcript, segs, requestedCount, directives))
	if err != nil {
		e.log.Warn().Err(err).Msg("generation call failed, degrading to empty candidate set")
		return nil
	}
	candidates, ok := ParseGenerated(raw)
	if !ok {
		e.log.Warn().Msg("generation response unparsable, degrading to empty candidate set")
		return nil
	}
	e.log.Debug().Int("candidates", len(candidates)).Msg("generation pass complete")
	return candidates
}

// review is pass 2. The final set is approved ∪ refined; rejected clips are
// dropped. With no candidates the pass is skipped entirely, and any failure
// degrades to empty partitions.
func (e *Engine) review(ctx context.Context, transcript string, candidates []types.Clip) []types.Clip {
	if len(candidates) == 0 {
		return nil
	}
	raw, err := e.model.Complete(ctx, buildReviewPrompt(candidates, transcript))
	if err != nil {
		e.log.Warn().Err(err).Msg("review call failed, degrading to empty partitions")
		return nil
	}
	rev, ok := ParseReview(raw)
	if !ok {
		e.log.Warn().Msg("review response unparsable, degrading to empty partitions")
		return nil
	}
	e.log.Debug().
		Int("approved", len(rev.Approved)).
		Int("refined", len(rev.Refined)).
		Int("rejected", len(rev.Rejected)).
		Str("summary", rev.Summary).
		Msg("review pass complete")
	return append(rev.Approved, rev.Refined...)
}
