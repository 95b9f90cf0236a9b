package pg

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/glagolgames/wordchain/internal/store"
)

// SettingsStore implements store.SettingsStore on the singleton
// game_settings row, inserting the defaults on first read.
type SettingsStore struct {
	db *sql.DB
}

func NewSettingsStore(db *sql.DB) *SettingsStore {
	return &SettingsStore{db: db}
}

func (s *SettingsStore) Get(ctx context.Context) (store.Settings, error) {
	d := store.DefaultSettings
	var out store.Settings
	// The no-op DO UPDATE makes RETURNING yield the row whether it existed
	// or was just seeded.
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO game_settings (id, response_time, poll_time, anonymous_poll, starting_lives)
		 VALUES (1, $1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET id = game_settings.id
		 RETURNING response_time, poll_time, anonymous_poll, starting_lives`,
		d.ResponseTime, d.PollTime, d.AnonymousPoll, d.StartingLives).
		Scan(&out.ResponseTime, &out.PollTime, &out.AnonymousPoll, &out.StartingLives)
	if err != nil {
		return store.Settings{}, fmt.Errorf("load game settings: %w", err)
	}
	return out, nil
}
