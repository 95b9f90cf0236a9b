package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/glagolgames/wordchain/internal/store"
)

const sessionColumns = `id, chat_id, kind, is_active, next_letter, next_user_id,
	poll_id, creator_id, words, response_time, poll_time, anonymous_poll,
	starting_lives, created_at`

// SessionStore implements store.Sessions backed by Postgres.
type SessionStore struct {
	db *sql.DB
}

func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db}
}

func (s *SessionStore) Create(ctx context.Context, gs store.Session) (store.Session, error) {
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO game_sessions
		   (chat_id, kind, is_active, next_letter, next_user_id, poll_id,
		    creator_id, words, response_time, poll_time, anonymous_poll, starting_lives)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING id, created_at`,
		gs.ChatID, gs.Kind, gs.IsActive, gs.NextLetter,
		nullInt64(gs.NextUserID), nullString(gs.PollID),
		gs.CreatorID, gs.Words,
		gs.ResponseTime, gs.PollTime, gs.AnonymousPoll, gs.StartingLives,
	).Scan(&gs.ID, &gs.CreatedAt)
	if err != nil {
		return store.Session{}, fmt.Errorf("create session for chat %d: %w", gs.ChatID, err)
	}
	return gs, nil
}

func (s *SessionStore) ByID(ctx context.Context, id int64) (store.Session, error) {
	return s.one(ctx,
		`SELECT `+sessionColumns+` FROM game_sessions WHERE id = $1`, id)
}

func (s *SessionStore) ActiveByChat(ctx context.Context, chatID int64) (store.Session, error) {
	return s.one(ctx,
		`SELECT `+sessionColumns+` FROM game_sessions
		 WHERE chat_id = $1 AND is_active
		 ORDER BY id DESC LIMIT 1`, chatID)
}

func (s *SessionStore) ByPollID(ctx context.Context, pollID string) (store.Session, error) {
	return s.one(ctx,
		`SELECT `+sessionColumns+` FROM game_sessions
		 WHERE poll_id = $1 AND is_active
		 ORDER BY id DESC LIMIT 1`, pollID)
}

func (s *SessionStore) SetInactive(ctx context.Context, id int64) error {
	return s.exec(ctx, id,
		`UPDATE game_sessions SET is_active = false WHERE id = $1`, id)
}

func (s *SessionStore) SetNextLetter(ctx context.Context, id int64, letter string) error {
	return s.exec(ctx, id,
		`UPDATE game_sessions SET next_letter = $2 WHERE id = $1`, id, letter)
}

func (s *SessionStore) SetNextUser(ctx context.Context, id int64, userID int64) error {
	return s.exec(ctx, id,
		`UPDATE game_sessions SET next_user_id = $2 WHERE id = $1`, id, nullInt64(userID))
}

func (s *SessionStore) SetPollID(ctx context.Context, id int64, pollID string) error {
	return s.exec(ctx, id,
		`UPDATE game_sessions SET poll_id = $2 WHERE id = $1`, id, nullString(pollID))
}

func (s *SessionStore) AppendWord(ctx context.Context, id int64, word string) error {
	return s.exec(ctx, id,
		`UPDATE game_sessions SET words = ltrim(words || ' ' || $2) WHERE id = $1`,
		id, word)
}

func (s *SessionStore) one(ctx context.Context, query string, args ...any) (store.Session, error) {
	var (
		gs       store.Session
		nextUser sql.NullInt64
		pollID   sql.NullString
	)
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&gs.ID, &gs.ChatID, &gs.Kind, &gs.IsActive, &gs.NextLetter,
		&nextUser, &pollID, &gs.CreatorID, &gs.Words,
		&gs.ResponseTime, &gs.PollTime, &gs.AnonymousPoll, &gs.StartingLives,
		&gs.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Session{}, store.ErrNotFound
	}
	if err != nil {
		return store.Session{}, fmt.Errorf("load session: %w", err)
	}
	gs.NextUserID = nextUser.Int64
	gs.PollID = pollID.String
	return gs, nil
}

func (s *SessionStore) exec(ctx context.Context, id int64, query string, args ...any) error {
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update session %d: %w", id, err)
	}
	return nil
}

func nullInt64(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v != 0}
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
