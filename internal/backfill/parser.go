package backfill

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// exportLine is one recording in a JSONL export.
type exportLine struct {
	Text       string `json:"text"`
	Transcript string `json:"transcript"`
	RecordedAt string `json:"recorded_at"`
	Source     string `json:"source"`
}

// Supported reports whether path has an extension the importer reads.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md", ".jsonl":
		return true
	}
	return false
}

// ParseFile reads the recordings in one export file. Plain text files hold a
// single recording dated by modification time; JSONL files hold one per line.
func ParseFile(path string) ([]Recording, error) {
	if strings.EqualFold(filepath.Ext(path), ".jsonl") {
		return parseJSONL(path)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, nil
	}
	return []Recording{{Ref: path, Text: text, RecordedAt: info.ModTime().UTC()}}, nil
}

func parseJSONL(path string) ([]Recording, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	var out []Recording
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 10*1024*1024)
	n := 0
	for scanner.Scan() {
		n++
		var line exportLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			continue
		}
		text := line.Text
		if text == "" {
			text = line.Transcript
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		out = append(out, Recording{
			Ref:        fmt.Sprintf("%s:%d", path, n),
			Text:       text,
			RecordedAt: parseTimestamp(line.RecordedAt),
			Source:     line.Source,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	return out, nil
}

func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
