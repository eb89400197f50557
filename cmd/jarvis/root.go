package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/jarvis/internal/config"
	"github.com/MikeSquared-Agency/jarvis/internal/embeddings"
	"github.com/MikeSquared-Agency/jarvis/internal/extractor"
	"github.com/MikeSquared-Agency/jarvis/internal/gemini"
	"github.com/MikeSquared-Agency/jarvis/internal/persist"
	"github.com/MikeSquared-Agency/jarvis/internal/pipeline"
	"github.com/MikeSquared-Agency/jarvis/internal/segmenter"
	"github.com/MikeSquared-Agency/jarvis/internal/store"
)

var rootCmd = &cobra.Command{
	Use:          "jarvis",
	Short:        "Transcription processing pipeline",
	SilenceUsage: true,
	RunE:         runServe,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd, backfillCmd)
}

// loadConfig reads configuration and installs the JSON logger.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	setupLogging(cfg.LogLevel)
	return cfg, nil
}

// components are the pieces shared by the server and the backfill runner.
type components struct {
	db  *store.Store
	seg *segmenter.Segmenter
	ext *extractor.Extractor
	per *persist.Coordinator
}

func buildComponents(ctx context.Context, cfg config.Config) (*components, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}

	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	slog.Info("database connected")

	llm := gemini.NewClient(cfg.GeminiAPIKey, cfg.GeminiModel,
		gemini.WithBaseURL(cfg.GeminiBaseURL),
		gemini.WithMaxRetries(cfg.GeminiMaxRetries),
	)
	slog.Info("gemini client ready", "model", llm.Model())

	// Embeddings are optional; without a key nothing is indexed.
	var embedder persist.Embedder
	if cfg.EmbedAPIKey != "" {
		embedder = embeddings.NewClient(cfg.EmbedAPIKey, cfg.EmbedModel, cfg.EmbedEndpoint)
		slog.Info("embeddings client ready", "model", cfg.EmbedModel)
	} else {
		slog.Warn("embeddings not configured, skipping vector indexing")
	}

	return &components{
		db:  db,
		seg: segmenter.New(llm, slog.Default(), cfg.SegmentConcurrency),
		ext: extractor.New(llm, slog.Default()),
		per: persist.New(db, embedder, slog.Default()),
	}, nil
}

func (c *components) pipeline(cfg config.Config, notifier pipeline.Notifier, publisher pipeline.Publisher) *pipeline.Pipeline {
	return pipeline.New(c.db, c.seg, c.ext, c.per, notifier, publisher, pipeline.Config{
		ProtectedNames: cfg.ProtectedNames,
		Concurrency:    cfg.SegmentConcurrency,
	}, slog.Default())
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
