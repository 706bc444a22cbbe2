package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PlatformPreset supplies the templated, non-AI metadata used for fallback
// clips targeting one platform.
type PlatformPreset struct {
	Name            string   `yaml:"name"`
	CaptionTemplate string   `yaml:"caption_template"`
	HookTemplate    string   `yaml:"hook_template"`
	CallToAction    string   `yaml:"call_to_action"`
	Hashtags        []string `yaml:"hashtags"`
}

type Platforms struct {
	Default []string         `yaml:"default"`
	Presets []PlatformPreset `yaml:"presets"`
}

// DefaultPlatforms is used when no platforms file is configured.
func DefaultPlatforms() Platforms {
	return Platforms{
		Default: []string{"tiktok", "instagram-reel", "youtube-short"},
		Presets: []PlatformPreset{
			{
				Name:            "tiktok",
				CaptionTemplate: "You need to hear this: %s",
				HookTemplate:    "Wait for it...",
				CallToAction:    "Follow for more",
				Hashtags:        []string{"#fyp", "#viral"},
			},
			{
				Name:            "instagram-reel",
				CaptionTemplate: "%s",
				HookTemplate:    "Don't scroll past this",
				CallToAction:    "Save this for later",
				Hashtags:        []string{"#reels", "#explore"},
			},
			{
				Name:            "youtube-short",
				CaptionTemplate: "%s",
				HookTemplate:    "Here's something most people miss",
				CallToAction:    "Subscribe for more",
				Hashtags:        []string{"#shorts"},
			},
		},
	}
}

// LoadPlatforms reads platform presets from a YAML file, falling back to the
// built-in defaults when path is empty.
func LoadPlatforms(path string) (Platforms, error) {
	if path == "" {
		return DefaultPlatforms(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Platforms{}, fmt.Errorf("read platforms file: %w", err)
	}
	var p Platforms
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Platforms{}, fmt.Errorf("parse platforms file: %w", err)
	}
	if len(p.Default) == 0 {
		p.Default = DefaultPlatforms().Default
	}
	if len(p.Presets) == 0 {
		p.Presets = DefaultPlatforms().Presets
	}
	return p, nil
}

// Preset returns the preset for a platform name, or a zero preset with the
// name filled in when none is configured.
func (p Platforms) Preset(name string) PlatformPreset {
	for _, pr := range p.Presets {
		if pr.Name == name {
			return pr
		}
	}
	return PlatformPreset{Name: name, CaptionTemplate: "%s"}
}
