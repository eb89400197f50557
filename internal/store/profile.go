package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// GetProfile loads the user's name and aliases, or ErrNotFound.
func (s *Store) GetProfile(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	p := Profile{UserID: userID}
	err := s.pool.QueryRow(ctx, `
		SELECT coalesce(name, ''), coalesce(aliases, '{}')
		FROM user_profile
		WHERE user_id = $1`,
		userID,
	).Scan(&p.Name, &p.Aliases)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", notFound(err))
	}
	return &p, nil
}
