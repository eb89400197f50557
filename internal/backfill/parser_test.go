package backfill

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseFile_PlainText(t *testing.T) {
	path := writeFile(t, t.TempDir(), "call.txt", "\n  Ana: nos vemos el lunes.\n")

	recs, err := ParseFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 recording, got %d", len(recs))
	}
	if recs[0].Text != "Ana: nos vemos el lunes." {
		t.Errorf("expected trimmed text, got %q", recs[0].Text)
	}
	if recs[0].Ref != path || recs[0].RecordedAt.IsZero() {
		t.Errorf("unexpected recording metadata %+v", recs[0])
	}
}

func TestParseFile_EmptyText(t *testing.T) {
	path := writeFile(t, t.TempDir(), "empty.md", "   \n")
	recs, err := ParseFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("expected no recordings, got %d", len(recs))
	}
}

func TestParseFile_JSONL(t *testing.T) {
	lines := []string{
		`{"text": "first recording text", "recorded_at": "2026-03-01T09:30:00Z", "source": "plaud"}`,
		`not json`,
		`{"transcript": "second recording", "recorded_at": "2026-03-02"}`,
		`{"text": "   "}`,
		`{"text": "third", "recorded_at": "garbage"}`,
	}
	path := writeFile(t, t.TempDir(), "export.jsonl", strings.Join(lines, "\n"))

	recs, err := ParseFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 recordings, got %d", len(recs))
	}
	if recs[0].Source != "plaud" || !recs[0].RecordedAt.Equal(time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)) {
		t.Errorf("unexpected first recording %+v", recs[0])
	}
	if recs[0].Ref != path+":1" || recs[1].Ref != path+":3" {
		t.Errorf("expected line refs, got %q and %q", recs[0].Ref, recs[1].Ref)
	}
	if recs[1].Text != "second recording" {
		t.Errorf("expected transcript fallback, got %q", recs[1].Text)
	}
	if !recs[2].RecordedAt.IsZero() {
		t.Error("expected unparseable timestamp to be zero")
	}
}

func TestSupported(t *testing.T) {
	for path, want := range map[string]bool{
		"a.txt":   true,
		"b.MD":    true,
		"c.jsonl": true,
		"d.json":  false,
		"e.mp3":   false,
	} {
		if got := Supported(path); got != want {
			t.Errorf("Supported(%q) = %v, want %v", path, got, want)
		}
	}
}
