package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/clipforge/clipforge/internal/auth"
	"github.com/clipforge/clipforge/internal/config"
	"github.com/clipforge/clipforge/internal/domain/chunking"
	"github.com/clipforge/clipforge/internal/domain/clips"
	"github.com/clipforge/clipforge/internal/ports"
	"github.com/clipforge/clipforge/internal/ports/adapters/backend"
	"github.com/clipforge/clipforge/internal/ports/adapters/ffmpeg"
	"github.com/clipforge/clipforge/internal/ports/adapters/openrouter"
	"github.com/clipforge/clipforge/internal/ports/adapters/whisperapi"
	"github.com/clipforge/clipforge/internal/transcription"
	"github.com/clipforge/clipforge/internal/types"
	"github.com/clipforge/clipforge/internal/upload"
	"github.com/clipforge/clipforge/internal/usecase"
)

// Config is one run's worth of wiring: the CLI-facing knobs plus the loaded
// application config.
type Config struct {
	Input      string
	OutDir     string
	ClipsN     int
	Directives string
	Upload     bool
	Title      string

	App *config.Config
	Log zerolog.Logger
}

func (c Config) Validate() error {
	if c.Input == "" {
		return errors.New("input is empty")
	}
	if _, err := os.Stat(c.Input); err != nil {
		return fmt.Errorf("stat input: %w", err)
	}
	if c.ClipsN <= 0 {
		return fmt.Errorf("clips must be > 0")
	}
	if c.App == nil {
		return errors.New("application config is required")
	}
	if c.App.TranscribeURL == "" {
		return errors.New("transcription endpoint is required")
	}
	if c.Upload && c.App.UploadInitURL == "" && c.App.BackendURL == "" {
		return errors.New("upload requested but neither upload endpoint nor backend is configured")
	}
	return openrouter.ValidateBaseURL(
		c.App.OpenRouterBaseURL,
		c.App.OpenRouterAllowedHosts,
	)
}

func Run(ctx context.Context, cfg Config) error {
	app := cfg.App
	log := cfg.Log

	plats, err := config.LoadPlatforms(app.PlatformsFile)
	if err != nil {
		return err
	}

	credStore := auth.NewFileStore(app.CredentialsFile)
	mgr := auth.NewManager(credStore, &oauth2.Config{
		ClientID:     app.OAuthClientID,
		ClientSecret: app.OAuthClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: app.OAuthTokenURL},
	}, log)

	// A static API key short-circuits the OAuth lifecycle for transcription;
	// without one the stored credential is used.
	var asrTokens ports.TokenProvider = auth.Static(app.TranscribeAPIKey)
	if app.TranscribeAPIKey == "" {
		asrTokens = mgr.Provider(app.UserID, "transcribe")
	}

	media := ffmpeg.New(app.FFmpegPath, app.FFprobePath)
	asr := whisperapi.New(app.TranscribeURL, app.TranscribeModel, app.TranscribeLanguage, asrTokens)
	llm := openrouter.New(app.OpenRouterAPIKey, app.OpenRouterModel, app.OpenRouterBaseURL)

	deps := usecase.Deps{
		Media:   media,
		Chunker: chunking.New(media, log),
		ASR: transcription.New(asr, transcription.Options{
			CallTimeout:  app.TranscribeTimeout,
			Delay:        app.TranscribeDelay,
			MaxCallBytes: app.TranscribeMaxMB << 20,
		}, log),
		Clips: clips.New(llm, clips.Options{Fallback: fallbackTemplates(plats)}, log),
	}
	if app.UploadInitURL != "" {
		deps.Uploader = upload.NewEngine(
			&http.Client{},
			mgr.Provider(app.UserID, app.UploadProvider),
			app.UploadInitURL,
			upload.Options{
				ChunkSize:   app.UploadChunkMB << 20,
				InitTimeout: app.UploadInitTimeout,
			},
			log,
		)
	}
	if app.BackendURL != "" {
		deps.Backend = backend.New(app.BackendURL, mgr.Provider(app.UserID, app.UploadProvider), log)
	}

	uc := usecase.New(deps, log)

	runID := uuid.NewString()
	cacheDir := filepath.Join(app.CacheDir, "runs", hash(cfg.Input))
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return err
	}
	log.Debug().Str("cache", cacheDir).Msg("workspace prepared")

	outDir := cfg.OutDir
	if outDir == "" {
		outDir = "out"
	}
	runOutDir := buildRunOutDir(outDir, cfg.Input, time.Now().UTC())
	if err := os.MkdirAll(runOutDir, 0o755); err != nil {
		return err
	}
	log.Info().Str("run_id", runID).Str("out", runOutDir).Msg("run started")

	title := cfg.Title
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(cfg.Input), filepath.Ext(cfg.Input))
	}

	res, err := uc.Run(ctx, usecase.Input{
		RunID:         runID,
		InputPath:     cfg.Input,
		ClipsN:        cfg.ClipsN,
		Directives:    cfg.Directives,
		CacheDir:      cacheDir,
		MaxChunkBytes: app.ChunkMaxMB << 20,
		Overlap:       app.ChunkOverlap,
		Upload:        cfg.Upload,
		Title:         title,
	})
	if err != nil {
		return err
	}

	b, err := json.MarshalIndent(res.Manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	manifestPath := filepath.Join(runOutDir, "manifest.json")
	if err := os.WriteFile(manifestPath, b, 0o644); err != nil {
		return err
	}
	log.Info().Int("clips", len(res.Manifest.Clips)).Str("manifest", manifestPath).Msg("run complete")
	return nil
}

// fallbackTemplates projects the default platform's preset into the clip
// engine's template shape.
func fallbackTemplates(p config.Platforms) clips.FallbackTemplates {
	platforms := make([]types.Platform, 0, len(p.Default))
	for _, name := range p.Default {
		platforms = append(platforms, types.Platform(name))
	}
	var primary config.PlatformPreset
	if len(p.Default) > 0 {
		primary = p.Preset(p.Default[0])
	}
	return clips.FallbackTemplates{
		CaptionTemplate: primary.CaptionTemplate,
		Hook:            primary.HookTemplate,
		CallToAction:    primary.CallToAction,
		Hashtags:        primary.Hashtags,
		Platforms:       platforms,
	}
}

func buildRunOutDir(outRoot, input string, now time.Time) string {
	name := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	name = normalizePathSegment(name)
	if name == "" {
		name = "input"
	}
	ts := now.UTC().Format("20060102-150405Z")
	runSeed := fmt.Sprintf("%s|%d", input, now.UTC().UnixNano())
	suffix := hash(runSeed)[:6]
	return filepath.Join(outRoot, fmt.Sprintf("%s-%s-%s", name, ts, suffix))
}

func normalizePathSegment(s string) string {
	var b strings.Builder
	prevDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:12]
}

// ensure adapters implement ports
var _ ports.MediaTool = (*ffmpeg.Adapter)(nil)
var _ ports.Transcriber = (*whisperapi.Client)(nil)
var _ ports.ClipModel = (*openrouter.Adapter)(nil)
var _ ports.Uploader = (*upload.Engine)(nil)
var _ ports.Backend = (*backend.Client)(nil)
var _ ports.CredentialStore = (*auth.FileStore)(nil)
