package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/glagolgames/wordchain/internal/store"
)

// PlayerStore implements store.Players on the user_game_sessions table.
type PlayerStore struct {
	db *sql.DB
}

func NewPlayerStore(db *sql.DB) *PlayerStore {
	return &PlayerStore{db: db}
}

func (s *PlayerStore) Add(ctx context.Context, sessionID, userID int64, lives int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_game_sessions (session_id, user_id, lives, round_, points)
		 VALUES ($1, $2, $3, 0, 0)
		 ON CONFLICT (session_id, user_id) DO NOTHING`,
		sessionID, userID, lives)
	if err != nil {
		return fmt.Errorf("add player %d to session %d: %w", userID, sessionID, err)
	}
	return nil
}

const playerSelect = `
	SELECT p.session_id, p.user_id, u.username, p.lives, p.round_, p.points, p.poll_vote
	FROM user_game_sessions p
	JOIN users u ON u.id = p.user_id`

func (s *PlayerStore) Get(ctx context.Context, sessionID, userID int64) (store.Player, error) {
	row := s.db.QueryRowContext(ctx,
		playerSelect+` WHERE p.session_id = $1 AND p.user_id = $2`,
		sessionID, userID)
	p, err := scanPlayer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Player{}, store.ErrNotFound
	}
	if err != nil {
		return store.Player{}, fmt.Errorf("player %d in session %d: %w", userID, sessionID, err)
	}
	return p, nil
}

func (s *PlayerStore) Alive(ctx context.Context, sessionID int64) ([]store.Player, error) {
	return s.list(ctx,
		playerSelect+` WHERE p.session_id = $1 AND p.lives > 0
		 ORDER BY p.round_ ASC, p.user_id ASC`, sessionID)
}

func (s *PlayerStore) All(ctx context.Context, sessionID int64) ([]store.Player, error) {
	return s.list(ctx,
		playerSelect+` WHERE p.session_id = $1 ORDER BY p.points DESC, p.user_id ASC`,
		sessionID)
}

func (s *PlayerStore) RemoveLife(ctx context.Context, sessionID, userID int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE user_game_sessions SET lives = lives - 1
		 WHERE session_id = $1 AND user_id = $2 AND lives > 0`,
		sessionID, userID)
	if err != nil {
		return fmt.Errorf("remove life of player %d in session %d: %w", userID, sessionID, err)
	}
	return nil
}

func (s *PlayerStore) AddPointAndRound(ctx context.Context, sessionID, userID int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE user_game_sessions SET points = points + 1, round_ = round_ + 1
		 WHERE session_id = $1 AND user_id = $2`,
		sessionID, userID)
	if err != nil {
		return fmt.Errorf("score player %d in session %d: %w", userID, sessionID, err)
	}
	return nil
}

func (s *PlayerStore) SetPollVote(ctx context.Context, sessionID, userID int64, vote bool) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE user_game_sessions SET poll_vote = $3
		 WHERE session_id = $1 AND user_id = $2`,
		sessionID, userID, vote)
	if err != nil {
		return fmt.Errorf("record vote of player %d in session %d: %w", userID, sessionID, err)
	}
	return nil
}

func (s *PlayerStore) ClearPollVotes(ctx context.Context, sessionID int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE user_game_sessions SET poll_vote = NULL WHERE session_id = $1`,
		sessionID)
	if err != nil {
		return fmt.Errorf("clear votes in session %d: %w", sessionID, err)
	}
	return nil
}

func (s *PlayerStore) PollVotes(ctx context.Context, sessionID int64) (yes, no int, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT count(*) FILTER (WHERE poll_vote),
		        count(*) FILTER (WHERE NOT poll_vote)
		 FROM user_game_sessions WHERE session_id = $1`,
		sessionID).Scan(&yes, &no)
	if err != nil {
		return 0, 0, fmt.Errorf("tally votes in session %d: %w", sessionID, err)
	}
	return yes, no, nil
}

func (s *PlayerStore) list(ctx context.Context, query string, args ...any) ([]store.Player, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	defer rows.Close()

	var players []store.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPlayer(row scanner) (store.Player, error) {
	var (
		p    store.Player
		vote sql.NullBool
	)
	err := row.Scan(&p.SessionID, &p.UserID, &p.Username, &p.Lives, &p.Round, &p.Points, &vote)
	if err != nil {
		return store.Player{}, err
	}
	if vote.Valid {
		p.PollVote = &vote.Bool
	}
	return p, nil
}
