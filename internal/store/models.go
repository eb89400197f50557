package store

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Transcription struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"user_id"`
	Source    string          `json:"source"`
	RawText   string          `json:"raw_text"`
	Brain     string          `json:"brain"`
	Title     string          `json:"title"`
	Summary   string          `json:"summary"`
	Sentiment string          `json:"sentiment"`
	Entities  json.RawMessage `json:"entities_json"`
	GroupID   *uuid.UUID      `json:"group_id,omitempty"`
	IsAmbient bool            `json:"is_ambient"`
	CreatedAt time.Time       `json:"created_at"`
}

type Commitment struct {
	UserID          uuid.UUID
	TranscriptionID uuid.UUID
	Description     string
	Type            string
	PersonName      string
	Deadline        *time.Time
}

type Contact struct {
	ID               uuid.UUID
	UserID           uuid.UUID
	Name             string
	Relationship     string
	Company          string
	Role             string
	Context          string
	InteractionCount int
	LastContact      time.Time
	Brain            string
}

type FollowUp struct {
	UserID          uuid.UUID
	TranscriptionID uuid.UUID
	Topic           string
	Reason          string
	Date            *time.Time
}

type IdeaNote struct {
	Text   string `json:"text"`
	Date   string `json:"date"`
	Source string `json:"source"`
}

type Idea struct {
	ID                    uuid.UUID
	UserID                uuid.UUID
	Name                  string
	Description           string
	Category              string
	MentionCount          int
	Notes                 []IdeaNote
	MaturityState         string
	SourceTranscriptionID uuid.UUID
}

type Suggestion struct {
	UserID          uuid.UUID
	TranscriptionID uuid.UUID
	Type            string
	Content         string
}

type Task struct {
	UserID   uuid.UUID
	Title    string
	Priority string
	Type     string
	DueDate  *time.Time
	Source   string
}

type Embedding struct {
	UserID          uuid.UUID
	TranscriptionID uuid.UUID
	Content         string
	Vector          []float32
	People          []string
	Brain           string
	Date            time.Time
	Metadata        map[string]any
}

type Interaction struct {
	UserID          uuid.UUID
	ContactID       uuid.UUID
	TranscriptionID uuid.UUID
	Summary         string
	Commitments     []string
	Date            time.Time
}

type Profile struct {
	UserID  uuid.UUID
	Name    string
	Aliases []string
}
