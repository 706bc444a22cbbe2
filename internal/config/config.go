package config

import (
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	TranscribeURL      string        `env:"TRANSCRIBE_URL" envDefault:"https://api.openai.com/v1/audio/transcriptions"`
	TranscribeModel    string        `env:"TRANSCRIBE_MODEL" envDefault:"whisper-1"`
	TranscribeLanguage string        `env:"TRANSCRIBE_LANGUAGE" envDefault:"en"`
	TranscribeAPIKey   string        `env:"TRANSCRIBE_API_KEY"`
	TranscribeTimeout  time.Duration `env:"TRANSCRIBE_TIMEOUT" envDefault:"10m"`
	TranscribeDelay    time.Duration `env:"TRANSCRIBE_DELAY" envDefault:"2s"`
	TranscribeMaxMB    int64         `env:"TRANSCRIBE_MAX_MB" envDefault:"25"`

	ChunkMaxMB   int64         `env:"CHUNK_MAX_MB" envDefault:"24"`
	ChunkOverlap time.Duration `env:"CHUNK_OVERLAP" envDefault:"2s"`

	OpenRouterAPIKey       string   `env:"OPENROUTER_API_KEY"`
	OpenRouterModel        string   `env:"OPENROUTER_MODEL" envDefault:"anthropic/claude-3.5-sonnet"`
	OpenRouterBaseURL      string   `env:"OPENROUTER_BASE_URL" envDefault:"https://openrouter.ai"`
	OpenRouterAllowedHosts []string `env:"OPENROUTER_ALLOWED_HOSTS" envSeparator:","`

	UploadInitURL     string        `env:"UPLOAD_INIT_URL"`
	UploadChunkMB     int64         `env:"UPLOAD_CHUNK_MB" envDefault:"8"`
	UploadInitTimeout time.Duration `env:"UPLOAD_INIT_TIMEOUT" envDefault:"15s"`
	UploadProvider    string        `env:"UPLOAD_PROVIDER" envDefault:"google"`
	BackendURL        string        `env:"BACKEND_URL"`

	OAuthTokenURL     string `env:"OAUTH_TOKEN_URL"`
	OAuthClientID     string `env:"OAUTH_CLIENT_ID"`
	OAuthClientSecret string `env:"OAUTH_CLIENT_SECRET"`
	CredentialsFile   string `env:"CREDENTIALS_FILE" envDefault:".clipforge/credentials.json"`
	UserID            string `env:"USER_ID" envDefault:"default"`

	PlatformsFile string `env:"PLATFORMS_FILE"`
	CacheDir      string `env:"CACHE_DIR" envDefault:".cache"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`

	FFmpegPath  string `env:"FFMPEG_PATH" envDefault:"ffmpeg"`
	FFprobePath string `env:"FFPROBE_PATH" envDefault:"ffprobe"`
}

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile  string
	LogLevel string
	CacheDir string
}

// Load reads configuration from .env file, environment variables, and CLI
// overrides. Priority: CLI flags > environment variables > .env file >
// struct defaults.
func Load(overrides Overrides) (*Config, error) {
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.CacheDir != "" {
		cfg.CacheDir = overrides.CacheDir
	}

	return cfg, nil
}
