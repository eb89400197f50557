package backfill

import "time"

// Recording is one transcript found in an export directory.
type Recording struct {
	Ref        string // file path, or path:line for JSONL exports
	Text       string
	RecordedAt time.Time
	Source     string // optional per-recording source label
}

// FileSummary counts what one export file produced.
type FileSummary struct {
	Path           string
	Date           string
	Recordings     int
	Transcriptions int
	Skipped        int
	Errors         int
}
