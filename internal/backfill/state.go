package backfill

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"
)

const DefaultStatePath = "~/.jarvis/backfill-state.json"

// State tracks progress for resumable backfill runs.
type State struct {
	StartedAt             time.Time       `json:"started_at"`
	LastProcessedAt       time.Time       `json:"last_processed_at"`
	FilesProcessed        []string        `json:"files_processed"`
	Fingerprints          map[string]bool `json:"fingerprints"`
	RecordingsProcessed   int             `json:"recordings_processed"`
	TranscriptionsCreated int             `json:"transcriptions_created"`
	Errors                []string        `json:"errors"`

	path string
}

// LoadState loads the state at path, or returns a fresh one if the file does
// not exist yet.
func LoadState(path string) (*State, error) {
	if path == "" {
		path = DefaultStatePath
	}
	p := expandHome(path)

	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return &State{
				StartedAt:    time.Now().UTC(),
				Fingerprints: make(map[string]bool),
				path:         p,
			}, nil
		}
		return nil, fmt.Errorf("read state: %w", err)
	}

	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}
	if s.Fingerprints == nil {
		s.Fingerprints = make(map[string]bool)
	}
	s.path = p
	return &s, nil
}

func (s *State) Path() string { return s.path }

func (s *State) Save() error {
	s.LastProcessedAt = time.Now().UTC()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	return os.WriteFile(s.path, data, 0o644)
}

func (s *State) IsProcessed(path string) bool {
	return slices.Contains(s.FilesProcessed, path)
}

func (s *State) MarkProcessed(path string) {
	s.FilesProcessed = append(s.FilesProcessed, path)
}

func (s *State) AddError(msg string) {
	s.Errors = append(s.Errors, msg)
}

func expandHome(path string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
