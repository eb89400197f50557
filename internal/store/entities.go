package store

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Entities is the name-matched read-modify-write surface for contacts and
// ideas. It is only valid inside WithUserLock.
type Entities interface {
	FindContactByNameCI(ctx context.Context, userID uuid.UUID, name string) (*Contact, error)
	InsertContact(ctx context.Context, c *Contact) error
	UpdateContact(ctx context.Context, c *Contact) error
	FindIdeaByNameCI(ctx context.Context, userID uuid.UUID, name string) (*Idea, error)
	InsertIdea(ctx context.Context, idea *Idea) error
	UpdateIdea(ctx context.Context, idea *Idea) error
}

type txEntities struct {
	tx pgx.Tx
}

// WithUserLock runs fn in a transaction holding a per-user advisory lock, so
// concurrent requests for the same user serialise their name upserts.
func (s *Store) WithUserLock(ctx context.Context, userID uuid.UUID, fn func(Entities) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, advisoryKey("entities", userID)); err != nil {
		return fmt.Errorf("advisory lock: %w", err)
	}
	if err := fn(&txEntities{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func advisoryKey(namespace string, id uuid.UUID) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(namespace))
	_, _ = h.Write([]byte{':'})
	_, _ = h.Write(id[:])
	return int64(h.Sum64())
}

func (e *txEntities) FindContactByNameCI(ctx context.Context, userID uuid.UUID, name string) (*Contact, error) {
	var c Contact
	err := e.tx.QueryRow(ctx, `
		SELECT id, user_id, name, coalesce(relationship, ''), coalesce(company, ''), coalesce(role, ''),
			coalesce(context, ''), interaction_count, coalesce(last_contact, now()), coalesce(brain, '')
		FROM people_contacts
		WHERE user_id = $1 AND lower(name) = lower($2)
		ORDER BY interaction_count DESC
		LIMIT 1`,
		userID, name,
	).Scan(&c.ID, &c.UserID, &c.Name, &c.Relationship, &c.Company, &c.Role, &c.Context,
		&c.InteractionCount, &c.LastContact, &c.Brain)
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (e *txEntities) InsertContact(ctx context.Context, c *Contact) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	_, err := e.tx.Exec(ctx, `
		INSERT INTO people_contacts (id, user_id, name, relationship, company, role, context, interaction_count, last_contact, brain)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		c.ID, c.UserID, c.Name, c.Relationship, c.Company, c.Role, c.Context, c.InteractionCount, c.LastContact, c.Brain,
	)
	if err != nil {
		return fmt.Errorf("insert contact: %w", err)
	}
	return nil
}

func (e *txEntities) UpdateContact(ctx context.Context, c *Contact) error {
	_, err := e.tx.Exec(ctx, `
		UPDATE people_contacts
		SET relationship = $3, company = $4, role = $5, context = $6,
			interaction_count = $7, last_contact = $8
		WHERE id = $1 AND user_id = $2`,
		c.ID, c.UserID, c.Relationship, c.Company, c.Role, c.Context, c.InteractionCount, c.LastContact,
	)
	if err != nil {
		return fmt.Errorf("update contact: %w", err)
	}
	return nil
}

func (e *txEntities) FindIdeaByNameCI(ctx context.Context, userID uuid.UUID, name string) (*Idea, error) {
	var idea Idea
	err := e.tx.QueryRow(ctx, `
		SELECT id, user_id, name, coalesce(description, ''), coalesce(category, ''), mention_count,
			coalesce(notes, '[]'::jsonb), coalesce(maturity_state, 'seed')
		FROM ideas_projects
		WHERE user_id = $1 AND lower(name) = lower($2)
		ORDER BY mention_count DESC
		LIMIT 1`,
		userID, name,
	).Scan(&idea.ID, &idea.UserID, &idea.Name, &idea.Description, &idea.Category,
		&idea.MentionCount, &idea.Notes, &idea.MaturityState)
	if err != nil {
		return nil, notFound(err)
	}
	return &idea, nil
}

func (e *txEntities) InsertIdea(ctx context.Context, idea *Idea) error {
	if idea.ID == uuid.Nil {
		idea.ID = uuid.New()
	}
	_, err := e.tx.Exec(ctx, `
		INSERT INTO ideas_projects (id, user_id, name, description, category, mention_count, notes, maturity_state, source_transcription_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		idea.ID, idea.UserID, idea.Name, idea.Description, idea.Category, idea.MentionCount,
		notesOrEmpty(idea.Notes), idea.MaturityState, idea.SourceTranscriptionID,
	)
	if err != nil {
		return fmt.Errorf("insert idea: %w", err)
	}
	return nil
}

func (e *txEntities) UpdateIdea(ctx context.Context, idea *Idea) error {
	_, err := e.tx.Exec(ctx, `
		UPDATE ideas_projects
		SET mention_count = $3, notes = $4, maturity_state = $5, updated_at = now()
		WHERE id = $1 AND user_id = $2`,
		idea.ID, idea.UserID, idea.MentionCount, notesOrEmpty(idea.Notes), idea.MaturityState,
	)
	if err != nil {
		return fmt.Errorf("update idea: %w", err)
	}
	return nil
}

func notesOrEmpty(n []IdeaNote) []IdeaNote {
	if n == nil {
		return []IdeaNote{}
	}
	return n
}
