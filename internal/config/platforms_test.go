package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadPlatforms_EmptyPathUsesDefaults(t *testing.T) {
	t.Parallel()

	p, err := LoadPlatforms("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(p.Default) == 0 || len(p.Presets) == 0 {
		t.Fatalf("defaults missing: %+v", p)
	}
}

func TestLoadPlatforms_File(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "platforms.yaml")
	data := `
default: [tiktok]
presets:
  - name: tiktok
    caption_template: "HOT: %s"
    hook_template: "Stop scrolling"
    call_to_action: "Follow"
    hashtags: ["#fyp"]
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := LoadPlatforms(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(p.Default) != 1 || p.Default[0] != "tiktok" {
		t.Fatalf("default platforms %v", p.Default)
	}
	pr := p.Preset("tiktok")
	if pr.CaptionTemplate != "HOT: %s" || pr.HookTemplate != "Stop scrolling" {
		t.Fatalf("preset not parsed: %+v", pr)
	}
}

func TestPreset_UnknownNameGetsPassthroughTemplate(t *testing.T) {
	t.Parallel()

	pr := DefaultPlatforms().Preset("x-twitter")
	if pr.Name != "x-twitter" || pr.CaptionTemplate != "%s" {
		t.Fatalf("unexpected zero preset: %+v", pr)
	}
}
