package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/clipforge/clipforge/internal/types"
)

type Adapter struct {
	ffmpeg  string
	ffprobe string
}

func New(ffmpegPath, ffprobePath string) *Adapter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Adapter{ffmpeg: ffmpegPath, ffprobe: ffprobePath}
}

type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
		Size     string `json:"size"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
}

// Probe runs ffprobe once and returns duration, size, dimensions and codec.
func (a *Adapter) Probe(ctx context.Context, path string) (types.MediaInfo, error) {
	cmd := exec.CommandContext(ctx, a.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration,size",
		"-show_entries", "stream=codec_type,codec_name,width,height",
		"-of", "json",
		path,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return types.MediaInfo{}, fmt.Errorf("ffprobe: %w\n%s", err, string(b))
	}

	var out probeOutput
	if err := json.Unmarshal(b, &out); err != nil {
		return types.MediaInfo{}, fmt.Errorf("parse ffprobe output: %w", err)
	}

	sec, err := strconv.ParseFloat(strings.TrimSpace(out.Format.Duration), 64)
	if err != nil {
		return types.MediaInfo{}, fmt.Errorf("parse duration %q: %w", out.Format.Duration, err)
	}

	info := types.MediaInfo{
		Duration: time.Duration(sec * float64(time.Second)),
		MIME:     mimeForPath(path),
	}
	if sz, err := strconv.ParseInt(strings.TrimSpace(out.Format.Size), 10, 64); err == nil {
		info.SizeBytes = sz
	} else if fi, err := os.Stat(path); err == nil {
		info.SizeBytes = fi.Size()
	}
	for _, s := range out.Streams {
		if s.CodecType == "video" {
			info.Width = s.Width
			info.Height = s.Height
			info.Codec = s.CodecName
			break
		}
	}
	// Audio-only sources still carry a codec.
	if info.Codec == "" {
		for _, s := range out.Streams {
			if s.CodecType == "audio" {
				info.Codec = s.CodecName
				break
			}
		}
	}
	return info, nil
}

// ExtractAudio drops the video track and writes a mono MP3. MP3 framing
// tolerates the byte-proportional slicing the chunker applies afterwards.
func (a *Adapter) ExtractAudio(ctx context.Context, inPath, outPath string) error {
	cmd := exec.CommandContext(ctx, a.ffmpeg,
		"-y",
		"-i", inPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "libmp3lame",
		"-b:a", "64k",
		"-f", "mp3",
		outPath,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg extract audio: %w\n%s", err, string(b))
	}
	return nil
}

func mimeForPath(path string) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return "application/octet-stream"
}
