package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
)

func (s *Store) InsertCommitments(ctx context.Context, rows []Commitment) error {
	return s.sendBatch(ctx, "commitments", len(rows), func(b *pgx.Batch, i int) {
		c := rows[i]
		b.Queue(`
			INSERT INTO commitments (user_id, transcription_id, description, commitment_type, person_name, deadline)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			c.UserID, c.TranscriptionID, c.Description, c.Type, c.PersonName, c.Deadline,
		)
	})
}

func (s *Store) InsertFollowUps(ctx context.Context, rows []FollowUp) error {
	return s.sendBatch(ctx, "follow_ups", len(rows), func(b *pgx.Batch, i int) {
		f := rows[i]
		b.Queue(`
			INSERT INTO follow_ups (user_id, transcription_id, topic, reason, follow_up_date)
			VALUES ($1, $2, $3, $4, $5)`,
			f.UserID, f.TranscriptionID, f.Topic, f.Reason, f.Date,
		)
	})
}

func (s *Store) InsertSuggestions(ctx context.Context, rows []Suggestion) error {
	return s.sendBatch(ctx, "suggestions", len(rows), func(b *pgx.Batch, i int) {
		sg := rows[i]
		b.Queue(`
			INSERT INTO suggestions (user_id, transcription_id, suggestion_type, content)
			VALUES ($1, $2, $3, $4)`,
			sg.UserID, sg.TranscriptionID, sg.Type, sg.Content,
		)
	})
}

func (s *Store) InsertTasks(ctx context.Context, rows []Task) error {
	return s.sendBatch(ctx, "tasks", len(rows), func(b *pgx.Batch, i int) {
		t := rows[i]
		b.Queue(`
			INSERT INTO tasks (user_id, title, priority, type, due_date, source, completed)
			VALUES ($1, $2, $3, $4, $5, $6, false)`,
			t.UserID, t.Title, t.Priority, t.Type, t.DueDate, t.Source,
		)
	})
}

func (s *Store) InsertEmbeddings(ctx context.Context, rows []Embedding) error {
	return s.sendBatch(ctx, "conversation_embeddings", len(rows), func(b *pgx.Batch, i int) {
		e := rows[i]
		people := e.People
		if people == nil {
			people = []string{}
		}
		b.Queue(`
			INSERT INTO conversation_embeddings (user_id, transcription_id, content, embedding, people, brain, date, metadata)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			e.UserID, e.TranscriptionID, e.Content, pgvector.NewVector(e.Vector), people, e.Brain, e.Date, e.Metadata,
		)
	})
}

func (s *Store) InsertInteractions(ctx context.Context, rows []Interaction) error {
	return s.sendBatch(ctx, "interactions", len(rows), func(b *pgx.Batch, i int) {
		in := rows[i]
		commitments := in.Commitments
		if commitments == nil {
			commitments = []string{}
		}
		b.Queue(`
			INSERT INTO interactions (user_id, contact_id, transcription_id, summary, commitments, date)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			in.UserID, in.ContactID, in.TranscriptionID, in.Summary, commitments, in.Date,
		)
	})
}
