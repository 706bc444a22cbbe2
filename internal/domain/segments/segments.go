package segments

import (
	"strings"
	"time"

	"github.com/clipforge/clipforge/internal/types"
)

// Split divides the transcript's word stream into targetCount roughly equal
// groups and assigns each a synthetic time range by dividing the total
// duration evenly. This is structural, not semantic: it never re-analyzes
// audio, and its scores only rank the fallback pool and feed pass-1 input.
func Split(tr types.Transcript, totalDuration time.Duration, targetCount int) []types.Segment {
	if targetCount <= 0 || totalDuration <= 0 {
		return nil
	}

	words := strings.Fields(tr.FullText())
	if len(words) == 0 {
		return nil
	}
	if targetCount > len(words) {
		targetCount = len(words)
	}

	perGroup := (len(words) + targetCount - 1) / targetCount
	groups := make([][]string, 0, targetCount)
	for i := 0; i < len(words); i += perGroup {
		end := i + perGroup
		if end > len(words) {
			end = len(words)
		}
		groups = append(groups, words[i:end])
	}

	span := totalDuration / time.Duration(len(groups))
	out := make([]types.Segment, 0, len(groups))
	for i, g := range groups {
		start := time.Duration(i) * span
		end := start + span
		if i == len(groups)-1 {
			end = totalDuration
		}
		text := strings.Join(g, " ")
		out = append(out, types.Segment{
			Start:     start,
			End:       end,
			Text:      text,
			Score:     Score(text),
			WordCount: len(g),
		})
	}
	return out
}
