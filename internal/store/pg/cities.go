package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/glagolgames/wordchain/internal/store"
)

// CityStore implements store.Cities on the cities and used_cities tables.
type CityStore struct {
	db *sql.DB
}

func NewCityStore(db *sql.DB) *CityStore {
	return &CityStore{db: db}
}

func (s *CityStore) ByName(ctx context.Context, name string) (store.City, error) {
	var c store.City
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name FROM cities WHERE name = $1`, name).
		Scan(&c.ID, &c.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return store.City{}, store.ErrNotFound
	}
	if err != nil {
		return store.City{}, fmt.Errorf("city %q: %w", name, err)
	}
	return c, nil
}

func (s *CityStore) RandomByLetter(ctx context.Context, sessionID int64, letter string) (store.City, error) {
	var c store.City
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name FROM cities
		 WHERE name ILIKE $2 || '%'
		   AND id NOT IN (SELECT city_id FROM used_cities WHERE session_id = $1)
		 ORDER BY random() LIMIT 1`,
		sessionID, letter).Scan(&c.ID, &c.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return store.City{}, store.ErrNotFound
	}
	if err != nil {
		return store.City{}, fmt.Errorf("random city on %q: %w", letter, err)
	}
	return c, nil
}

func (s *CityStore) MarkUsed(ctx context.Context, sessionID, cityID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO used_cities (session_id, city_id) VALUES ($1, $2)
		 ON CONFLICT (session_id, city_id) DO NOTHING`,
		sessionID, cityID)
	if err != nil {
		return fmt.Errorf("mark city %d used in session %d: %w", cityID, sessionID, err)
	}
	return nil
}

func (s *CityStore) IsUsed(ctx context.Context, sessionID, cityID int64) (bool, error) {
	var used bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM used_cities WHERE session_id = $1 AND city_id = $2
		 )`, sessionID, cityID).Scan(&used)
	if err != nil {
		return false, fmt.Errorf("check city %d in session %d: %w", cityID, sessionID, err)
	}
	return used, nil
}

func (s *CityStore) UsedNames(ctx context.Context, sessionID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.name FROM used_cities u
		 JOIN cities c ON c.id = u.city_id
		 WHERE u.session_id = $1
		 ORDER BY u.id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("used cities of session %d: %w", sessionID, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan city name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
