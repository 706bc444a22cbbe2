package clips

import (
	"fmt"
	"sort"
	"strings"

	"github.com/clipforge/clipforge/internal/types"
)

// FallbackTemplates supplies the templated, non-AI metadata for fallback
// clips. CaptionTemplate receives the segment excerpt via %s.
type FallbackTemplates struct {
	CaptionTemplate string
	Hook            string
	CallToAction    string
	Hashtags        []string
	Platforms       []types.Platform
}

const fallbackExcerptWords = 12

// buildFallback maps the top n segments, ranked by heuristic score descending
// with ties broken by earlier start time, into clip shape. Ordering is fully
// deterministic so a total AI failure still yields a stable result.
func buildFallback(segs []types.Segment, n int, tpl FallbackTemplates) []types.Clip {
	if n <= 0 || len(segs) == 0 {
		return nil
	}

	ranked := make([]types.Segment, len(segs))
	copy(ranked, segs)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score == ranked[j].Score {
			return ranked[i].Start < ranked[j].Start
		}
		return ranked[i].Score > ranked[j].Score
	})

	if n > len(ranked) {
		n = len(ranked)
	}
	out := make([]types.Clip, 0, n)
	for _, s := range ranked[:n] {
		out = append(out, fallbackClip(s, tpl))
	}
	return out
}

func fallbackClip(s types.Segment, tpl FallbackTemplates) types.Clip {
	excerpt := excerptOf(s.Text, fallbackExcerptWords)

	caption := excerpt
	if tpl.CaptionTemplate != "" {
		caption = fmt.Sprintf(tpl.CaptionTemplate, excerpt)
	}
	hook := tpl.Hook
	if hook == "" {
		hook = excerpt
	}

	score := int(s.Score + 0.5)
	if score < 1 {
		score = 1
	}
	if score > 10 {
		score = 10
	}

	return types.Clip{
		Start:        s.Start,
		End:          s.End,
		ViralScore:   score,
		Caption:      caption,
		Hashtags:     tpl.Hashtags,
		Hook:         hook,
		CallToAction: tpl.CallToAction,
		Platforms:    tpl.Platforms,
		Reasoning:    fmt.Sprintf("fallback: selected by transcript heuristics (score %.1f)", s.Score),
		Confidence:   0.3,
	}
}

func excerptOf(text string, maxWords int) string {
	words := strings.Fields(text)
	if len(words) > maxWords {
		words = words[:maxWords]
		return strings.Join(words, " ") + "..."
	}
	return strings.Join(words, " ")
}
