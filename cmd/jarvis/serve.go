package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/jarvis/internal/api"
	"github.com/MikeSquared-Agency/jarvis/internal/hermes"
	"github.com/MikeSquared-Agency/jarvis/internal/notify"
	"github.com/MikeSquared-Agency/jarvis/internal/pipeline"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and NATS subscriber",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	slog.Info("jarvis starting", "port", cfg.Port)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := buildComponents(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.db.Close()

	// NATS/Hermes
	hermesClient, err := hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, slog.Default())
	if err != nil {
		return fmt.Errorf("connect NATS: %w", err)
	}
	defer hermesClient.Close()
	slog.Info("NATS connected", "url", cfg.NatsURL)

	var notifier pipeline.Notifier
	if cfg.NotifyURL != "" {
		notifier = notify.NewPoster(cfg.NotifyURL, cfg.NotifyToken, slog.Default())
		slog.Info("notification poster ready", "url", cfg.NotifyURL)
	} else {
		notifier = notify.NewBus(hermesClient)
		slog.Info("notifications routed over NATS", "subject", notify.SubjectNotify)
	}

	pipe := c.pipeline(cfg, notifier, hermesClient)

	if err := hermesClient.Subscribe(hermes.SubjectSubmitted, pipe.HandleSubmitted); err != nil {
		return fmt.Errorf("subscribe %s: %w", hermes.SubjectSubmitted, err)
	}

	// HTTP API
	srv := api.NewServer(cfg.Port, cfg.APIToken, pipe, c.db, slog.Default())
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
			stop()
		}
	}()

	if cfg.APIToken == "" {
		slog.Warn("JARVIS_API_TOKEN not set, bearer auth disabled")
	}
	slog.Info("jarvis ready", "port", cfg.Port)

	// Graceful shutdown
	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown error", "error", err)
	}
	if err := hermesClient.DrainSubscriptions(shutdownCtx); err != nil {
		slog.Warn("NATS drain error", "error", err)
	}
	// Submitted events still running must finish before NATS and the DB close.
	pipe.Wait()
	slog.Info("jarvis stopped")
	return nil
}
