package pg

import (
	"context"
	"database/sql"
	"fmt"
)

// WordStore implements store.Words on the words and words_in_game tables.
// Words are global and capitalized; per-session usage is a join table.
type WordStore struct {
	db *sql.DB
}

func NewWordStore(db *sql.DB) *WordStore {
	return &WordStore{db: db}
}

func (s *WordStore) IsUsed(ctx context.Context, sessionID int64, name string) (bool, error) {
	var used bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM words_in_game wg
		   JOIN words w ON w.id = wg.word_id
		   WHERE wg.session_id = $1 AND w.name = $2
		 )`, sessionID, name).Scan(&used)
	if err != nil {
		return false, fmt.Errorf("check word %q in session %d: %w", name, sessionID, err)
	}
	return used, nil
}

func (s *WordStore) MarkUsed(ctx context.Context, sessionID int64, name string) error {
	// The no-op DO UPDATE makes RETURNING yield the id whether the word is
	// new or already known.
	_, err := s.db.ExecContext(ctx,
		`WITH w AS (
		   INSERT INTO words (name) VALUES ($2)
		   ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		   RETURNING id
		 )
		 INSERT INTO words_in_game (session_id, word_id)
		 SELECT $1, id FROM w
		 ON CONFLICT (session_id, word_id) DO NOTHING`,
		sessionID, name)
	if err != nil {
		return fmt.Errorf("mark word %q used in session %d: %w", name, sessionID, err)
	}
	return nil
}
