package clips

import (
	"testing"
	"time"
)

func TestParseGenerated_StripsMarkdownFences(t *testing.T) {
	t.Parallel()

	raw := "Here you go:\n```json\n{\"selected_clips\":[{\"start_time\":1.004,\"end_time\":30.5,\"viral_score\":8,\"caption\":\"x\"}]}\n```\nHope that helps!"
	out, ok := ParseGenerated(raw)
	if !ok {
		t.Fatalf("expected fenced JSON to parse")
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 clip, got %d", len(out))
	}
	if out[0].Start != 1*time.Second {
		t.Fatalf("timestamps must round to 2 decimal places, got %s", out[0].Start)
	}
	if out[0].End != 30500*time.Millisecond {
		t.Fatalf("unexpected end %s", out[0].End)
	}
}

func TestParseGenerated_Unparsable(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "no json here", "```\nstill nothing\n```", "[1,2,3]"} {
		if _, ok := ParseGenerated(raw); ok {
			t.Fatalf("expected parse failure for %q", raw)
		}
	}
}

func TestConvertClips_DropsInvalidRanges(t *testing.T) {
	t.Parallel()

	raw := `{"selected_clips":[
		{"start_time":10,"end_time":10,"viral_score":5,"caption":"zero-length"},
		{"start_time":20,"end_time":15,"viral_score":5,"caption":"inverted"},
		{"start_time":-5,"end_time":10,"viral_score":5,"caption":"negative start"},
		{"start_time":30,"end_time":60,"viral_score":5,"caption":"keeper"}
	]}`
	out, ok := ParseGenerated(raw)
	if !ok {
		t.Fatalf("parse failed")
	}
	if len(out) != 1 || out[0].Caption != "keeper" {
		t.Fatalf("invalid ranges must be dropped before assembly, got %+v", out)
	}
}

func TestConvertClips_ClampsScores(t *testing.T) {
	t.Parallel()

	raw := `{"selected_clips":[
		{"start_time":0,"end_time":10,"viral_score":42,"confidence_score":3.5,"user_compliance_score":-1},
		{"start_time":0,"end_time":10,"viral_score":0,"confidence_score":-0.5}
	]}`
	out, ok := ParseGenerated(raw)
	if !ok {
		t.Fatalf("parse failed")
	}
	if out[0].ViralScore != 10 || out[0].Confidence != 1 || out[0].UserCompliance != 0 {
		t.Fatalf("clamping failed: %+v", out[0])
	}
	if out[1].ViralScore != 1 || out[1].Confidence != 0 {
		t.Fatalf("lower clamping failed: %+v", out[1])
	}
}

func TestParseReview_Partitions(t *testing.T) {
	t.Parallel()

	raw := `{"review_results":{
		"approved_clips":[{"start_time":0,"end_time":10,"viral_score":7,"caption":"a"}],
		"refined_clips":[{"start_time":20,"end_time":30,"viral_score":6,"caption":"b"}],
		"rejected_clips":[{"start_time":40,"end_time":50,"viral_score":2,"caption":"c"}],
		"review_summary":"one of each"
	}}`
	rev, ok := ParseReview(raw)
	if !ok {
		t.Fatalf("parse failed")
	}
	if len(rev.Approved) != 1 || len(rev.Refined) != 1 || len(rev.Rejected) != 1 {
		t.Fatalf("unexpected partitions: %+v", rev)
	}
	if rev.Summary != "one of each" {
		t.Fatalf("summary lost: %q", rev.Summary)
	}
}

func TestCondenseTranscript_Bounds(t *testing.T) {
	t.Parallel()

	short := condenseTranscript("a b c", 10)
	if short != "a b c" {
		t.Fatalf("short transcripts pass through, got %q", short)
	}

	long := ""
	for i := 0; i < 100; i++ {
		long += "word "
	}
	out := condenseTranscript(long, 30)
	if len(out) >= len(long) {
		t.Fatalf("long transcripts must be condensed")
	}
}
