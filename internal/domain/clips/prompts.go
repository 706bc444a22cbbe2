package clips

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/clipforge/clipforge/internal/types"
)

const maxPromptSegments = 80

type promptSegment struct {
	StartSec float64 `json:"start_sec"`
	EndSec   float64 `json:"end_sec"`
	Score    float64 `json:"score"`
	Text     string  `json:"text"`
}

func buildGenerationPrompt(transcript string, segs []types.Segment, requestedCount int, directives string) string {
	arr := make([]promptSegment, 0, len(segs))
	for i, s := range segs {
		if i >= maxPromptSegments {
			break
		}
		arr = append(arr, promptSegment{
			StartSec: s.Start.Seconds(),
			EndSec:   s.End.Seconds(),
			Score:    s.Score,
			Text:     s.Text,
		})
	}
	segJSON, _ := json.Marshal(arr)

	var b strings.Builder
	fmt.Fprintf(&b, "You are selecting up to %d short-form clip candidates from a long video transcript.\n", requestedCount)
	b.WriteString("Return strictly valid JSON (no markdown, no code fences) shaped as " +
		`{"selected_clips":[{"start_time":0.0,"end_time":0.0,"viral_score":1,"caption":"","hashtags":[],"hook":"","call_to_action":"","target_platforms":[],"reasoning":"","confidence_score":0.0,"user_compliance_score":0.0}]}` + ".\n")
	b.WriteString("viral_score is 1-10, confidence_score and user_compliance_score are 0-1, times are seconds from the start of the video, end_time must be greater than start_time.\n")
	if strings.TrimSpace(directives) != "" {
		b.WriteString("\nUser directives (these OVERRIDE every default heuristic below):\n")
		b.WriteString(strings.TrimSpace(directives))
		b.WriteString("\n")
	}
	b.WriteString("\nDefault heuristics: prefer moments that open with a hook, deliver one complete idea, and end on a payoff. Avoid mid-sentence boundaries.\n")
	b.WriteString("\nPre-scored segments JSON:\n")
	b.Write(segJSON)
	b.WriteString("\n\nTranscript (condensed):\n")
	b.WriteString(transcript)
	return b.String()
}

func buildReviewPrompt(candidates []types.Clip, transcript string) string {
	arr := make([]clipJSON, 0, len(candidates))
	for _, c := range candidates {
		arr = append(arr, clipJSON{
			StartTime:           c.Start.Seconds(),
			EndTime:             c.End.Seconds(),
			ViralScore:          float64(c.ViralScore),
			Caption:             c.Caption,
			Hashtags:            c.Hashtags,
			Hook:                c.Hook,
			CallToAction:        c.CallToAction,
			TargetPlatforms:     platformNames(c.Platforms),
			Reasoning:           c.Reasoning,
			ConfidenceScore:     c.Confidence,
			UserComplianceScore: c.UserCompliance,
		})
	}
	candJSON, _ := json.Marshal(arr)

	var b strings.Builder
	b.WriteString("You are an independent short-form content expert reviewing clip candidates another system selected.\n")
	b.WriteString("Approve candidates that stand on their own, refine ones that need adjusted boundaries or metadata (return the refined version), and reject the rest.\n")
	b.WriteString("Return strictly valid JSON (no markdown, no code fences) shaped as " +
		`{"review_results":{"approved_clips":[],"refined_clips":[],"rejected_clips":[],"review_summary":""}}` +
		" where each clip uses the same fields as the candidates and carries your reasoning.\n")
	b.WriteString("\nCandidates JSON:\n")
	b.Write(candJSON)
	b.WriteString("\n\nOriginal transcript (condensed):\n")
	b.WriteString(transcript)
	return b.String()
}

// condenseTranscript bounds the word count so two passes stay within model
// context limits regardless of source length.
func condenseTranscript(transcript string, maxWords int) string {
	words := strings.Fields(transcript)
	if len(words) <= maxWords {
		return strings.Join(words, " ")
	}
	// Keep the head and tail; the middle is summarized by omission.
	head := words[:maxWords*2/3]
	tail := words[len(words)-maxWords/3:]
	return strings.Join(head, " ") + " [...] " + strings.Join(tail, " ")
}

func platformNames(ps []types.Platform) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, string(p))
	}
	return out
}
