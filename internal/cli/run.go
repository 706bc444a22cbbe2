package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clipforge/clipforge/internal/config"
	"github.com/clipforge/clipforge/internal/pipeline"
)

func run(cmd *cobra.Command, input string) error {
	outDir, _ := cmd.Flags().GetString("out")
	clipsN, _ := cmd.Flags().GetInt("clips")
	directives, _ := cmd.Flags().GetString("directives")
	doUpload, _ := cmd.Flags().GetBool("upload")
	title, _ := cmd.Flags().GetString("title")
	envFile, _ := cmd.Flags().GetString("env-file")
	logLevel, _ := cmd.Flags().GetString("log-level")
	cacheDir, _ := cmd.Flags().GetString("cache-dir")

	app, err := config.Load(config.Overrides{
		EnvFile:  envFile,
		LogLevel: logLevel,
		CacheDir: cacheDir,
	})
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := newLogger(app.LogLevel)
	if err != nil {
		return err
	}

	absIn, err := filepath.Abs(input)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Hour)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := pipeline.Config{
		Input:      absIn,
		OutDir:     outDir,
		ClipsN:     clipsN,
		Directives: directives,
		Upload:     doUpload,
		Title:      title,
		App:        app,
		Log:        log,
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return pipeline.Run(ctx, cfg)
}

func newLogger(level string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("parse log level %q: %w", level, err)
	}
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger(), nil
}
