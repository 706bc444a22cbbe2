package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/clipforge/clipforge/internal/domain/segments"
	"github.com/clipforge/clipforge/internal/ports"
	"github.com/clipforge/clipforge/internal/transcription"
	"github.com/clipforge/clipforge/internal/types"
)

// Deps are the pipeline stages the usecase coordinates. Uploader and Backend
// are optional: without them the run is analysis-only.
type Deps struct {
	Media    ports.MediaTool
	Chunker  Chunker
	ASR      Transcriber
	Clips    ClipSelector
	Uploader ports.Uploader
	Backend  ports.Backend
}

// Stage interfaces are defined where they are consumed so tests can swap in
// fakes without touching the concrete packages.
type Chunker interface {
	Chunk(ctx context.Context, media types.SourceMedia, cacheDir string, maxChunkBytes int64, overlap time.Duration) ([]types.Chunk, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, chunks []types.Chunk) (transcription.Result, error)
}

type ClipSelector interface {
	Select(ctx context.Context, segs []types.Segment, transcript string, requestedCount int, directives string) ([]types.Clip, error)
}

type Usecase struct {
	d   Deps
	log zerolog.Logger
}

func New(d Deps, log zerolog.Logger) Usecase {
	return Usecase{d: d, log: log.With().Str("component", "usecase").Logger()}
}

type Input struct {
	RunID      string
	InputPath  string
	ClipsN     int
	Directives string
	CacheDir   string
	// MaxChunkBytes caps each transcription payload; Overlap is duplicated
	// speech at chunk boundaries to survive mid-word cuts.
	MaxChunkBytes int64
	Overlap       time.Duration
	// Upload pushes the source video out after analysis. Title labels the
	// remote object.
	Upload bool
	Title  string
}

type Result struct {
	Manifest types.Manifest
}

// Run executes probe, chunk, transcribe, segment and clip selection, with the
// optional upload proceeding concurrently on the same source file. Partial
// failures degrade the manifest; Run errors only when nothing usable came out.
func (u Usecase) Run(ctx context.Context, in Input) (Result, error) {
	info, err := u.d.Media.Probe(ctx, in.InputPath)
	if err != nil {
		return Result{}, fmt.Errorf("probe input: %w", err)
	}
	media := types.SourceMedia{Path: in.InputPath, Info: info}

	chunks, err := u.d.Chunker.Chunk(ctx, media, in.CacheDir, in.MaxChunkBytes, in.Overlap)
	if err != nil {
		return Result{}, fmt.Errorf("chunk input: %w", err)
	}
	defer u.cleanupChunks(in, chunks)

	var (
		selected []types.Clip
		report   types.TranscriptReport
		upload   *types.UploadReport
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		selected, report, err = u.analyze(gctx, media, chunks, in)
		return err
	})
	if in.Upload && (u.d.Uploader != nil || u.d.Backend != nil) {
		g.Go(func() error {
			upload = u.deliver(gctx, media, in.Title)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	if len(selected) == 0 && (upload == nil || upload.Error != "") {
		return Result{}, fmt.Errorf("no clips selected and no successful delivery (chunks failed: %d of %d)",
			len(report.FailedChunks), report.Chunks)
	}

	m := types.Manifest{
		RunID:         in.RunID,
		Input:         in.InputPath,
		DurationSec:   info.Duration.Seconds(),
		Transcription: report,
		Upload:        upload,
	}
	for i, c := range selected {
		m.Clips = append(m.Clips, manifestClip(fmt.Sprintf("%03d", i+1), c))
	}
	return Result{Manifest: m}, nil
}

// analyze is the transcript half of the run: transcribe, segment, select.
func (u Usecase) analyze(ctx context.Context, media types.SourceMedia, chunks []types.Chunk, in Input) ([]types.Clip, types.TranscriptReport, error) {
	res, err := u.d.ASR.Transcribe(ctx, chunks)
	if err != nil {
		return nil, types.TranscriptReport{}, err
	}

	report := types.TranscriptReport{Chunks: len(chunks)}
	for _, f := range res.Failures {
		report.FailedChunks = append(report.FailedChunks, f.Index)
		report.Errors = append(report.Errors, f.Err.Error())
	}
	report.Truncated = len(res.Failures) > 0

	segs := segments.Split(res.Transcript, media.Info.Duration, segmentTarget(in.ClipsN))
	if len(segs) == 0 {
		u.log.Warn().Int("failed_chunks", len(res.Failures)).Msg("empty transcript, skipping clip selection")
		return nil, report, nil
	}

	selected, err := u.d.Clips.Select(ctx, segs, res.Transcript.FullText(), in.ClipsN, in.Directives)
	if err != nil {
		return nil, report, err
	}
	return selected, report, nil
}

// deliver uploads the source through the resumable path, falling back to a
// direct backend handoff when the session cannot even be opened. Delivery
// failures are reported, never fatal: the clip analysis still stands.
func (u Usecase) deliver(ctx context.Context, media types.SourceMedia, title string) *types.UploadReport {
	rep := &types.UploadReport{}

	// Backend-only configuration: there is no resumable endpoint to try, the
	// handoff IS the delivery path.
	if u.d.Uploader == nil {
		res, err := u.d.Backend.Handoff(ctx, media.Path, media.Info, title)
		if err != nil {
			u.log.Error().Err(err).Msg("delivery failed")
			rep.Error = err.Error()
			return rep
		}
		rep.ProcessingID = res.ProcessingID
		rep.StatusURL = res.StatusURL
		return rep
	}

	id, err := u.d.Uploader.Upload(ctx, media.Path, media.Info.MIME, func(confirmed, total int64) {
		u.log.Debug().Int64("confirmed", confirmed).Int64("total", total).Msg("upload progress")
	})
	if err == nil {
		rep.RemoteID = id
		return rep
	}

	if errors.Is(err, types.ErrUploadInitTimeout) && u.d.Backend != nil {
		u.log.Warn().Err(err).Msg("resumable init unavailable, handing off to backend")
		res, hErr := u.d.Backend.Handoff(ctx, media.Path, media.Info, title)
		if hErr == nil {
			rep.ProcessingID = res.ProcessingID
			rep.StatusURL = res.StatusURL
			return rep
		}
		err = fmt.Errorf("%v; backend handoff: %w", err, hErr)
	}

	u.log.Error().Err(err).Msg("delivery failed")
	rep.Error = err.Error()
	return rep
}

// cleanupChunks removes chunk files the run created. The source file is never
// a candidate even when a single-chunk run references it directly.
func (u Usecase) cleanupChunks(in Input, chunks []types.Chunk) {
	cacheDir := filepath.Clean(in.CacheDir)
	for _, c := range chunks {
		if c.Path == in.InputPath {
			continue
		}
		if filepath.Dir(filepath.Clean(c.Path)) != cacheDir {
			continue
		}
		if err := os.Remove(c.Path); err != nil && !os.IsNotExist(err) {
			u.log.Warn().Err(err).Str("path", c.Path).Msg("chunk cleanup failed")
		}
	}
	// The extracted audio track, if any, lives next to the chunks.
	_ = os.Remove(filepath.Join(cacheDir, "audio.mp3"))
}

// segmentTarget sizes the candidate pool: enough segments that selection has
// real choices, bounded so prompts stay small.
func segmentTarget(clipsN int) int {
	t := clipsN * 4
	if t < 8 {
		t = 8
	}
	if t > 40 {
		t = 40
	}
	return t
}

func manifestClip(id string, c types.Clip) types.ManifestClip {
	platforms := make([]string, 0, len(c.Platforms))
	for _, p := range c.Platforms {
		platforms = append(platforms, string(p))
	}
	return types.ManifestClip{
		ID:             id,
		StartSec:       c.Start.Seconds(),
		EndSec:         c.End.Seconds(),
		ViralScore:     c.ViralScore,
		Caption:        strings.TrimSpace(c.Caption),
		Hashtags:       c.Hashtags,
		Hook:           c.Hook,
		CallToAction:   c.CallToAction,
		Platforms:      platforms,
		Reasoning:      c.Reasoning,
		Confidence:     c.Confidence,
		UserCompliance: c.UserCompliance,
	}
}
