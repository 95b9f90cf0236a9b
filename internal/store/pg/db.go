// Package pg implements the store interfaces on Postgres through
// database/sql with the pgx driver.
package pg

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/glagolgames/wordchain/internal/store"
)

// OpenDB opens a pooled Postgres connection and verifies it responds.
func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// NewStore builds every per-entity store on one connection pool.
func NewStore(db *sql.DB) *store.Store {
	return &store.Store{
		Users:    NewUserStore(db),
		Sessions: NewSessionStore(db),
		Players:  NewPlayerStore(db),
		Cities:   NewCityStore(db),
		Words:    NewWordStore(db),
		Settings: NewSettingsStore(db),
	}
}
