// Package store is the Postgres implementation of the inventory repositories.
// Per-sku mutual exclusion comes from row locks (SELECT ... FOR UPDATE) taken
// under a bounded lock_timeout.
package store

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"inventory-service/internal/service"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

//go:embed schema.sql
var schema string

type Store struct {
	db          *sqlx.DB
	lockTimeout time.Duration
}

var _ service.Repository = (*Store)(nil)

// NewStore creates a new database store. lockTimeout bounds how long a
// mutation waits for a row lock before failing with Busy.
func NewStore(databaseURL string, lockTimeout time.Duration) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db, lockTimeout: lockTimeout}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return classify(err, "ping database")
	}
	return nil
}

// Migrate creates the tables and indexes if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// inTx runs fn in a transaction with the store's lock timeout applied.
// The transaction commits only when fn returns nil.
func (s *Store) inTx(ctx context.Context, what string, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return classify(err, what)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, lockTimeoutStmt(s.lockTimeout)); err != nil {
		return classify(err, what)
	}

	if err := fn(tx); err != nil {
		return classify(err, what)
	}

	if err := tx.Commit(); err != nil {
		return classify(err, what)
	}
	return nil
}

func lockTimeoutStmt(d time.Duration) string {
	ms := d.Milliseconds()
	if ms <= 0 {
		ms = 1
	}
	return fmt.Sprintf("SET LOCAL lock_timeout = %d", ms)
}
