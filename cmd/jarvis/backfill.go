package main

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/jarvis/internal/backfill"
	"github.com/MikeSquared-Agency/jarvis/internal/notify"
)

var backfillFlags struct {
	dir       string
	file      string
	statePath string
	user      string
	since     string
	until     string
	source    string
	dryRun    bool
	batchSize int
	pause     time.Duration
}

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Import a directory of transcript exports through the pipeline",
	RunE:  runBackfill,
}

func init() {
	f := backfillCmd.Flags()
	f.StringVar(&backfillFlags.dir, "dir", "", "Directory of .txt, .md or .jsonl transcript exports")
	f.StringVar(&backfillFlags.file, "file", "", "Import a single export file")
	f.StringVar(&backfillFlags.statePath, "state", backfill.DefaultStatePath, "Path of the resumable state file")
	f.StringVar(&backfillFlags.user, "user", "", "User ID the transcriptions belong to (required)")
	f.StringVar(&backfillFlags.since, "since", "", "Skip recordings before this date (YYYY-MM-DD)")
	f.StringVar(&backfillFlags.until, "until", "", "Skip recordings after this date (YYYY-MM-DD)")
	f.StringVar(&backfillFlags.source, "source", "", "Source label for imported transcriptions")
	f.BoolVar(&backfillFlags.dryRun, "dry-run", false, "Parse and deduplicate without processing")
	f.IntVar(&backfillFlags.batchSize, "batch-size", 20, "Recordings per batch before pausing (0 disables)")
	f.DurationVar(&backfillFlags.pause, "pause", 30*time.Second, "Pause between batches")
	_ = backfillCmd.MarkFlagRequired("user")
}

func runBackfill(cmd *cobra.Command, _ []string) error {
	bf := backfillFlags
	if bf.dir == "" && bf.file == "" {
		return fmt.Errorf("one of --dir or --file is required")
	}
	userID, err := uuid.Parse(bf.user)
	if err != nil {
		return fmt.Errorf("invalid --user: %w", err)
	}
	since, err := parseDateFlag("since", bf.since)
	if err != nil {
		return err
	}
	until, err := parseDateFlag("until", bf.until)
	if err != nil {
		return err
	}
	if !until.IsZero() {
		until = until.Add(24*time.Hour - time.Nanosecond)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := buildComponents(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.db.Close()

	// Per-recording notifications are suppressed; one summary goes out at the end.
	var summaryNotifier backfill.Notifier
	if cfg.NotifyURL != "" {
		summaryNotifier = notify.NewPoster(cfg.NotifyURL, cfg.NotifyToken, slog.Default())
	}
	pipe := c.pipeline(cfg, nil, nil)
	runner := backfill.NewRunner(backfill.Config{
		Dir:        bf.dir,
		SingleFile: bf.file,
		StatePath:  bf.statePath,
		UserID:     userID,
		Since:      since,
		Until:      until,
		DryRun:     bf.dryRun,
		BatchSize:  bf.batchSize,
		Pause:      bf.pause,
		Source:     bf.source,
	}, pipe, summaryNotifier, slog.Default())

	state, err := runner.Run(ctx)
	if err != nil {
		return fmt.Errorf("backfill: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\n=== Backfill Summary ===\n")
	fmt.Fprintf(out, "Files processed: %d\n", len(state.FilesProcessed))
	fmt.Fprintf(out, "Recordings processed: %d\n", state.RecordingsProcessed)
	fmt.Fprintf(out, "Transcriptions created: %d\n", state.TranscriptionsCreated)
	fmt.Fprintf(out, "Errors: %d\n", len(state.Errors))
	if bf.dryRun {
		fmt.Fprintf(out, "Mode: DRY RUN (no DB writes)\n")
	}
	fmt.Fprintf(out, "State file: %s\n", state.Path())
	return nil
}

func parseDateFlag(name, v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s: %w", name, err)
	}
	return t, nil
}
