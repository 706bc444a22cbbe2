package chunking

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/clipforge/clipforge/internal/ports"
	"github.com/clipforge/clipforge/internal/types"
	"github.com/rs/zerolog"
)

// Chunker splits oversized media into time-bounded sub-files that respect the
// transcription API's payload ceiling. Slicing is byte-proportional against
// the extracted audio: startByte = floor(startTime/duration * audioSize).
// Byte offsets are not frame-accurate for compressed audio; this is a known
// lossy approximation accepted to avoid a full decode.
type Chunker struct {
	media ports.MediaTool
	log   zerolog.Logger
}

func New(media ports.MediaTool, log zerolog.Logger) *Chunker {
	return &Chunker{media: media, log: log.With().Str("component", "chunker").Logger()}
}

// Chunk returns ordered chunks whose time ranges cover [0, duration] with at
// most overlap seconds of duplication at boundaries. The final chunk absorbs
// any rounding remainder so its End equals the probed duration exactly.
//
// When the whole file fits under maxChunkBytes a single chunk referencing the
// source path is returned, with no audio extraction and no copies.
func (c *Chunker) Chunk(ctx context.Context, media types.SourceMedia, cacheDir string, maxChunkBytes int64, overlap time.Duration) ([]types.Chunk, error) {
	if maxChunkBytes <= 0 {
		return nil, fmt.Errorf("max chunk bytes must be > 0")
	}
	if media.Info.Duration <= 0 {
		return nil, fmt.Errorf("media duration must be > 0")
	}
	if overlap < 0 {
		overlap = 0
	}

	if media.Info.SizeBytes <= maxChunkBytes {
		return []types.Chunk{{
			Index:     0,
			Start:     0,
			End:       media.Info.Duration,
			Path:      media.Path,
			SizeBytes: media.Info.SizeBytes,
		}}, nil
	}

	chunkCount := int((media.Info.SizeBytes + maxChunkBytes - 1) / maxChunkBytes)
	chunkDur := media.Info.Duration / time.Duration(chunkCount)
	// An overlap wider than a chunk would push starts behind the previous
	// chunk's start and duplicate whole chunks.
	if overlap > chunkDur {
		c.log.Warn().Dur("overlap", overlap).Dur("chunk_duration", chunkDur).Msg("overlap clamped to chunk duration")
		overlap = chunkDur
	}

	// Video is not needed downstream of chunking; extract the audio track once
	// and slice that. If extraction fails (unsupported codec, decoder error)
	// fall back to slicing the raw video bytes: transcription quality degrades
	// but the pipeline stays live.
	slicePath := filepath.Join(cacheDir, "audio.mp3")
	ext := ".mp3"
	if err := c.media.ExtractAudio(ctx, media.Path, slicePath); err != nil {
		c.log.Warn().Err(err).Msg("audio extraction failed, slicing raw media bytes")
		slicePath = media.Path
		ext = filepath.Ext(media.Path)
	}
	fi, err := os.Stat(slicePath)
	if err != nil {
		return nil, fmt.Errorf("stat slice source: %w", err)
	}
	sliceSize := fi.Size()

	src, err := os.Open(slicePath)
	if err != nil {
		return nil, fmt.Errorf("open slice source: %w", err)
	}
	defer src.Close()

	total := media.Info.Duration
	chunks := make([]types.Chunk, 0, chunkCount)
	for i := 0; i < chunkCount; i++ {
		start := time.Duration(i) * chunkDur
		if i > 0 && overlap > 0 {
			start -= overlap
			if start < 0 {
				start = 0
			}
		}
		end := time.Duration(i+1) * chunkDur
		if i == chunkCount-1 {
			end = total
		}

		startByte := int64(float64(start) / float64(total) * float64(sliceSize))
		endByte := int64(float64(end) / float64(total) * float64(sliceSize))
		if i == chunkCount-1 {
			endByte = sliceSize
		}

		path := filepath.Join(cacheDir, fmt.Sprintf("chunk_%03d%s", i, ext))
		n, err := writeSlice(src, path, startByte, endByte)
		if err != nil {
			return nil, fmt.Errorf("write chunk %d: %w", i, err)
		}

		chunks = append(chunks, types.Chunk{
			Index:     i,
			Start:     start,
			End:       end,
			Path:      path,
			SizeBytes: n,
		})
	}

	c.log.Info().
		Int("chunks", chunkCount).
		Dur("chunk_duration", chunkDur).
		Int64("slice_size", sliceSize).
		Msg("media chunked")
	return chunks, nil
}

func writeSlice(src *os.File, dst string, start, end int64) (int64, error) {
	if end < start {
		end = start
	}
	out, err := os.Create(dst)
	if err != nil {
		return 0, err
	}
	defer out.Close()

	n, err := io.Copy(out, io.NewSectionReader(src, start, end-start))
	if err != nil {
		return 0, err
	}
	return n, nil
}
