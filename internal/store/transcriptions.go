package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const transcriptionColumns = `id, user_id, source, raw_text, brain, title, summary, sentiment,
	entities_json, group_id, is_ambient, created_at`

// InsertTranscription writes t, assigning ID and CreatedAt when unset.
func (s *Store) InsertTranscription(ctx context.Context, t *Transcription) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO transcriptions (id, user_id, source, raw_text, brain, title, summary, sentiment,
			entities_json, group_id, is_ambient, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
		RETURNING created_at`,
		t.ID, t.UserID, t.Source, t.RawText, t.Brain, t.Title, t.Summary, t.Sentiment,
		t.Entities, t.GroupID, t.IsAmbient,
	).Scan(&t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert transcription: %w", err)
	}
	return nil
}

// GetTranscription returns the user's transcription or ErrNotFound.
func (s *Store) GetTranscription(ctx context.Context, userID, id uuid.UUID) (*Transcription, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+transcriptionColumns+`
		FROM transcriptions
		WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	t, err := scanTranscription(row)
	if err != nil {
		return nil, fmt.Errorf("get transcription %s: %w", id, notFound(err))
	}
	return t, nil
}

// ListGroup returns every transcription created by one request, oldest first.
func (s *Store) ListGroup(ctx context.Context, userID, groupID uuid.UUID) ([]Transcription, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+transcriptionColumns+`
		FROM transcriptions
		WHERE user_id = $1 AND group_id = $2
		ORDER BY created_at, id`,
		userID, groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("list group: %w", err)
	}
	defer rows.Close()

	var out []Transcription
	for rows.Next() {
		t, err := scanTranscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transcription: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// DeleteTranscriptionCascade removes a transcription and the rows derived
// from it in one transaction. Contacts, ideas, tasks and interactions are
// kept since they aggregate across transcriptions.
func (s *Store) DeleteTranscriptionCascade(ctx context.Context, userID, id uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, table := range []string{"conversation_embeddings", "commitments", "follow_ups", "suggestions"} {
		if _, err := tx.Exec(ctx,
			`DELETE FROM `+table+` WHERE transcription_id = $1 AND user_id = $2`, id, userID,
		); err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
	}

	tag, err := tx.Exec(ctx, `DELETE FROM transcriptions WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete transcription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete transcription %s: %w", id, ErrNotFound)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func scanTranscription(row pgx.Row) (*Transcription, error) {
	var t Transcription
	err := row.Scan(&t.ID, &t.UserID, &t.Source, &t.RawText, &t.Brain, &t.Title, &t.Summary,
		&t.Sentiment, &t.Entities, &t.GroupID, &t.IsAmbient, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
