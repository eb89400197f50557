package backfill

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/jarvis/internal/pipeline"
)

const defaultSource = "backfill"

// Config holds the backfill command configuration.
type Config struct {
	Dir        string
	SingleFile string // process a single file only
	StatePath  string
	UserID     uuid.UUID
	Since      time.Time
	Until      time.Time
	DryRun     bool
	BatchSize  int           // recordings between state saves and pauses; 0 disables pausing
	Pause      time.Duration // wait after each batch
	Source     string        // source label for transcriptions (default: "backfill")
}

// Processor is the pipeline entry point recordings are submitted to.
type Processor interface {
	Process(ctx context.Context, req pipeline.Request) (*pipeline.Response, error)
}

type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, message string) error
}

// Runner imports a directory of transcript exports through the pipeline.
type Runner struct {
	cfg      Config
	proc     Processor
	notifier Notifier
	logger   *slog.Logger
}

// NewRunner creates a backfill runner. notifier may be nil, in which case
// batch summaries are only logged.
func NewRunner(cfg Config, proc Processor, notifier Notifier, logger *slog.Logger) *Runner {
	return &Runner{cfg: cfg, proc: proc, notifier: notifier, logger: logger}
}

func (r *Runner) sourceLabel(rec Recording) string {
	if rec.Source != "" {
		return rec.Source
	}
	if r.cfg.Source != "" {
		return r.cfg.Source
	}
	return defaultSource
}

// Run imports every unprocessed export file. Progress is saved after each
// file so an interrupted run resumes where it stopped.
func (r *Runner) Run(ctx context.Context) (*State, error) {
	state, err := LoadState(r.cfg.StatePath)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}

	files, err := r.discoverFiles()
	if err != nil {
		return nil, fmt.Errorf("discover files: %w", err)
	}
	r.logger.Info("files discovered", "files", len(files), "dir", r.cfg.Dir)

	var summaries []FileSummary
	inBatch := 0

	for _, path := range files {
		if state.IsProcessed(path) {
			continue
		}
		if err := ctx.Err(); err != nil {
			r.logger.Info("backfill interrupted, saving state")
			r.save(state)
			r.postSummary(ctx, summaries)
			return state, err
		}

		sum := FileSummary{Path: path}
		recs, err := ParseFile(path)
		if err != nil {
			r.logger.Warn("failed to parse export file", "path", path, "error", err)
			state.AddError(fmt.Sprintf("parse %s: %v", path, err))
			continue
		}
		recs = r.inDateRange(recs)
		recs, sum.Skipped = Dedupe(recs, state.Fingerprints)
		if len(recs) > 0 && !recs[0].RecordedAt.IsZero() {
			sum.Date = recs[0].RecordedAt.Format(time.DateOnly)
		}

		for _, rec := range recs {
			if err := ctx.Err(); err != nil {
				r.save(state)
				return state, err
			}
			sum.Recordings++
			n, err := r.importRecording(ctx, rec)
			if err != nil {
				r.logger.Error("import failed", "ref", rec.Ref, "error", err)
				state.AddError(fmt.Sprintf("process %s: %v", rec.Ref, err))
				sum.Errors++
				continue
			}
			state.Fingerprints[Fingerprint(rec.Text)] = true
			sum.Transcriptions += n
			state.RecordingsProcessed++
			state.TranscriptionsCreated += n
			inBatch++

			if r.cfg.BatchSize > 0 && inBatch >= r.cfg.BatchSize {
				r.logger.Info("batch complete, saving state and pausing",
					"recordings_in_batch", inBatch,
					"total_recordings", state.RecordingsProcessed,
				)
				r.save(state)
				inBatch = 0
				select {
				case <-ctx.Done():
					return state, ctx.Err()
				case <-time.After(r.cfg.Pause):
				}
			}
		}

		summaries = append(summaries, sum)
		state.MarkProcessed(path)
		r.save(state)
	}

	r.postSummary(ctx, summaries)
	r.logger.Info("backfill complete",
		"files", len(summaries),
		"recordings", state.RecordingsProcessed,
		"transcriptions", state.TranscriptionsCreated,
		"errors", len(state.Errors),
		"dry_run", r.cfg.DryRun,
	)
	return state, nil
}

// save persists progress. Dry runs never touch the state file.
func (r *Runner) save(state *State) {
	if r.cfg.DryRun {
		return
	}
	if err := state.Save(); err != nil {
		r.logger.Warn("failed to save state", "path", state.Path(), "error", err)
	}
}

// importRecording submits one recording and returns the number of
// transcriptions it produced.
func (r *Runner) importRecording(ctx context.Context, rec Recording) (int, error) {
	if err := pipeline.ValidateText(rec.Text); err != nil {
		return 0, err
	}
	if r.cfg.DryRun {
		r.logger.Info("dry run, skipping", "ref", rec.Ref, "chars", len(rec.Text))
		return 0, nil
	}
	resp, err := r.proc.Process(ctx, pipeline.Request{
		RequestID: "backfill:" + rec.Ref,
		UserID:    r.cfg.UserID,
		Text:      rec.Text,
		Source:    r.sourceLabel(rec),
		Quiet:     true,
	})
	if err != nil {
		return 0, err
	}
	return len(resp.Transcriptions()), nil
}

func (r *Runner) postSummary(ctx context.Context, summaries []FileSummary) {
	if len(summaries) == 0 {
		return
	}
	text := FormatDailySummary(summaries)
	if r.notifier == nil || r.cfg.DryRun {
		r.logger.Info("backfill summary", "summary", text)
		return
	}
	if err := r.notifier.Notify(ctx, r.cfg.UserID, text); err != nil {
		r.logger.Warn("failed to send backfill summary, logging instead",
			"error", err,
			"summary", text,
		)
	}
}

// FormatDailySummary formats file summaries grouped by recording date.
func FormatDailySummary(summaries []FileSummary) string {
	byDate := make(map[string][]FileSummary)
	for _, s := range summaries {
		date := s.Date
		if date == "" {
			date = "unknown"
		}
		byDate[date] = append(byDate[date], s)
	}

	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	var sb strings.Builder
	sb.WriteString("Backfill summary\n")

	for _, date := range dates {
		files := byDate[date]
		recs, trans := 0, 0
		for _, f := range files {
			recs += f.Recordings
			trans += f.Transcriptions
		}
		fmt.Fprintf(&sb, "\n%s (%d files, %d recordings, %d transcriptions)\n", date, len(files), recs, trans)
		for _, f := range files {
			fmt.Fprintf(&sb, "  - %s: %d rec, %d trans", filepath.Base(f.Path), f.Recordings, f.Transcriptions)
			if f.Skipped > 0 {
				fmt.Fprintf(&sb, ", %d duplicate", f.Skipped)
			}
			if f.Errors > 0 {
				fmt.Fprintf(&sb, " (%d errors)", f.Errors)
			}
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

func (r *Runner) discoverFiles() ([]string, error) {
	if r.cfg.SingleFile != "" {
		path := expandHome(r.cfg.SingleFile)
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("single file not found: %s", path)
		}
		return []string{path}, nil
	}

	dir := expandHome(r.cfg.Dir)
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	var files []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && Supported(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// inDateRange keeps recordings inside the configured since/until range.
// Undated recordings are always kept.
func (r *Runner) inDateRange(recs []Recording) []Recording {
	if r.cfg.Since.IsZero() && r.cfg.Until.IsZero() {
		return recs
	}
	var out []Recording
	for _, rec := range recs {
		switch {
		case rec.RecordedAt.IsZero():
		case !r.cfg.Since.IsZero() && rec.RecordedAt.Before(r.cfg.Since):
			continue
		case !r.cfg.Until.IsZero() && rec.RecordedAt.After(r.cfg.Until):
			continue
		}
		out = append(out, rec)
	}
	return out
}
