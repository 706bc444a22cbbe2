package clips

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/clipforge/clipforge/internal/types"
)

// Parsing is a dedicated boundary: model responses are text blobs that may
// contain a JSON object, optionally fenced in markdown. Failure here is a
// value, never an error that escapes into the selection state machine.

type clipJSON struct {
	StartTime           float64  `json:"start_time"`
	EndTime             float64  `json:"end_time"`
	ViralScore          float64  `json:"viral_score"`
	Caption             string   `json:"caption"`
	Hashtags            []string `json:"hashtags"`
	Hook                string   `json:"hook"`
	CallToAction        string   `json:"call_to_action"`
	TargetPlatforms     []string `json:"target_platforms"`
	Reasoning           string   `json:"reasoning"`
	ConfidenceScore     float64  `json:"confidence_score"`
	UserComplianceScore float64  `json:"user_compliance_score"`
}

type generatedPayload struct {
	SelectedClips []clipJSON `json:"selected_clips"`
}

type reviewPayload struct {
	ReviewResults struct {
		Approved []clipJSON `json:"approved_clips"`
		Refined  []clipJSON `json:"refined_clips"`
		Rejected []clipJSON `json:"rejected_clips"`
		Summary  string     `json:"review_summary"`
	} `json:"review_results"`
}

// Review is pass 2's parsed outcome.
type Review struct {
	Approved []types.Clip
	Refined  []types.Clip
	Rejected []types.Clip
	Summary  string
}

// ParseGenerated extracts pass-1 candidates. ok=false means the pass degrades
// to an empty candidate set.
func ParseGenerated(raw string) ([]types.Clip, bool) {
	body, ok := extractJSONObject(raw)
	if !ok {
		return nil, false
	}
	var p generatedPayload
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return nil, false
	}
	return convertClips(p.SelectedClips), true
}

// ParseReview extracts pass-2 partitions. ok=false degrades to empty
// partitions.
func ParseReview(raw string) (Review, bool) {
	body, ok := extractJSONObject(raw)
	if !ok {
		return Review{}, false
	}
	var p reviewPayload
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return Review{}, false
	}
	return Review{
		Approved: convertClips(p.ReviewResults.Approved),
		Refined:  convertClips(p.ReviewResults.Refined),
		Rejected: convertClips(p.ReviewResults.Rejected),
		Summary:  p.ReviewResults.Summary,
	}, true
}

// convertClips applies the numeric edge policy: timestamps rounded to 2
// decimal places, viral score clamped to [1,10], confidence and compliance to
// [0,1]. Clips with endTime <= startTime are invalid and dropped here, before
// assembly ever sees them.
func convertClips(in []clipJSON) []types.Clip {
	out := make([]types.Clip, 0, len(in))
	for _, c := range in {
		start := roundTimestamp(c.StartTime)
		end := roundTimestamp(c.EndTime)
		if start < 0 || end <= start {
			continue
		}
		out = append(out, types.Clip{
			Start:          start,
			End:            end,
			ViralScore:     clampInt(int(c.ViralScore+0.5), 1, 10),
			Caption:        strings.TrimSpace(c.Caption),
			Hashtags:       c.Hashtags,
			Hook:           strings.TrimSpace(c.Hook),
			CallToAction:   strings.TrimSpace(c.CallToAction),
			Platforms:      toPlatforms(c.TargetPlatforms),
			Reasoning:      strings.TrimSpace(c.Reasoning),
			Confidence:     clampFloat(c.ConfidenceScore, 0, 1),
			UserCompliance: clampFloat(c.UserComplianceScore, 0, 1),
		})
	}
	return out
}

func toPlatforms(names []string) []types.Platform {
	out := make([]types.Platform, 0, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		out = append(out, types.Platform(n))
	}
	return out
}

// roundTimestamp keeps two decimal places of seconds.
func roundTimestamp(sec float64) time.Duration {
	return time.Duration(sec * float64(time.Second)).Round(10 * time.Millisecond)
}

// extractJSONObject strips markdown code fences and takes the first JSON
// object found in the blob.
func extractJSONObject(s string) (string, bool) {
	t := strings.TrimSpace(s)
	if t == "" {
		return "", false
	}

	if strings.HasPrefix(t, "```") {
		if i := strings.Index(t, "\n"); i >= 0 {
			t = t[i+1:]
		}
		if j := strings.LastIndex(t, "```"); j >= 0 {
			t = t[:j]
		}
		t = strings.TrimSpace(t)
	}

	start := strings.Index(t, "{")
	end := strings.LastIndex(t, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return t[start : end+1], true
}

func clampInt(x, a, b int) int {
	if x < a {
		return a
	}
	if x > b {
		return b
	}
	return x
}

func clampFloat(x, a, b float64) float64 {
	if x < a {
		return a
	}
	if x > b {
		return b
	}
	return x
}
