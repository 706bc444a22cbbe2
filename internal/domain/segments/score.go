package segments

import (
	"regexp"
	"strings"
)

var (
	reNumber  = regexp.MustCompile(`\b\d+(?:[\.,]\d+)?\b`)
	reAttn    = regexp.MustCompile(`(?i)\b(important|key|secret|mistake|never|always|remember|here\s+is\s+why)\b`)
	reProcess = regexp.MustCompile(`(?i)\b(how\s+to|step\s+\d+|first|second|third|do\s+this)\b`)
)

// Score rates a segment's text in [0..10]. Deterministic and cheap on
// purpose: this is a tie-break and fallback ranking signal, not the primary
// viral-quality judgment (that belongs to the generate/review passes).
func Score(text string) float64 {
	t := strings.TrimSpace(text)
	if t == "" {
		return 0
	}
	lower := strings.ToLower(t)

	s := float64(len(reNumber.FindAllStringIndex(t, -1))) * 0.4
	s += float64(len(reAttn.FindAllStringIndex(lower, -1))) * 0.9
	if reProcess.MatchString(lower) {
		s += 1.2
	}
	s += float64(strings.Count(t, "?")) * 0.7
	s += float64(strings.Count(t, "!")) * 0.3

	// Very long segments dilute any single moment.
	s -= 0.0006 * float64(len([]rune(t)))

	return clamp(s, 0, 10)
}

func clamp(x, a, b float64) float64 {
	if x < a {
		return a
	}
	if x > b {
		return b
	}
	return x
}
