package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/glagolgames/wordchain/internal/store"
)

// UserStore implements store.Users backed by Postgres.
type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) Ensure(ctx context.Context, u store.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, first_name, total_points)
		 VALUES ($1, $2, $3, 0)
		 ON CONFLICT (id) DO NOTHING`,
		u.ID, u.Username, u.FirstName)
	if err != nil {
		return fmt.Errorf("ensure user %d: %w", u.ID, err)
	}
	return nil
}

func (s *UserStore) ByID(ctx context.Context, id int64) (store.User, error) {
	var u store.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, first_name, total_points FROM users WHERE id = $1`,
		id).Scan(&u.ID, &u.Username, &u.FirstName, &u.TotalPoints)
	if errors.Is(err, sql.ErrNoRows) {
		return store.User{}, store.ErrNotFound
	}
	if err != nil {
		return store.User{}, fmt.Errorf("user %d: %w", id, err)
	}
	return u, nil
}

func (s *UserStore) AddTotalPoints(ctx context.Context, id int64, points int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET total_points = total_points + $2 WHERE id = $1`,
		id, points)
	if err != nil {
		return fmt.Errorf("add points to user %d: %w", id, err)
	}
	return nil
}
