// Package mysqlstore provides a MySQL session storage implementation.
//
// MySQLStore allows storing, retrieving, and deleting session data keyed
// by a session id. Each record has an expiration time, and the store
// periodically sweeps expired sessions. It works with any *sql.DB opened
// with the github.com/go-sql-driver/mysql driver, MariaDB included.
package mysqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bluescreen10/sessionstore"
)

// MySQLStore is a MySQL backed storage for session data.
type MySQLStore struct {
	db      *sql.DB
	ttl     time.Duration
	now     func() time.Time
	sweeper *sessionstore.Sweeper
}

var _ sessionstore.Store = (*MySQLStore)(nil)

// Option configures a store.
type Option func(*storeConfig)

type storeConfig struct {
	ttl             time.Duration
	cleanupInterval time.Duration
	now             func() time.Time
	logger          sessionstore.Logger
	onError         func(error)
}

// WithTTL sets the lifespan applied to every write. Non-positive values
// are ignored. (default 24hr.)
func WithTTL(ttl time.Duration) Option {
	return Option(func(c *storeConfig) {
		if ttl > 0 {
			c.ttl = ttl
		}
	})
}

// WithCleanupInterval sets the period of the expiration sweep.
// (default 1 minute.)
func WithCleanupInterval(interval time.Duration) Option {
	return Option(func(c *storeConfig) {
		c.cleanupInterval = interval
	})
}

// WithClock sets the clock used to stamp and expire records.
func WithClock(now func() time.Time) Option {
	return Option(func(c *storeConfig) {
		c.now = now
	})
}

// WithLogger sets the logger used by the sweep.
func WithLogger(logger sessionstore.Logger) Option {
	return Option(func(c *storeConfig) {
		c.logger = logger
	})
}

// OnError registers the function receiving sweep failures.
func OnError(fn func(error)) Option {
	return Option(func(c *storeConfig) {
		c.onError = fn
	})
}

// New creates the sessions table if needed and starts the sweep. The
// DSN of db must set parseTime=true.
func New(db *sql.DB, cfgs ...Option) (*MySQLStore, error) {
	c := &storeConfig{
		ttl:             sessionstore.DefaultTTL,
		cleanupInterval: sessionstore.DefaultCleanupInterval,
		now:             time.Now,
		logger:          sessionstore.DefaultLogger("mysqlstore"),
	}
	for _, cfg := range cfgs {
		cfg(c)
	}

	if err := createTable(context.Background(), db); err != nil {
		return nil, err
	}

	s := &MySQLStore{db: db, ttl: c.ttl, now: c.now}
	s.sweeper = sessionstore.StartSweeper(c.cleanupInterval, s.deleteExpired,
		sessionstore.WithSweepErrorHandler(c.onError),
		sessionstore.WithSweepLogger(c.logger),
		sessionstore.WithSweepClock(c.now),
	)
	return s, nil
}

// Get retrieves the data associated with the given id. Returns the data,
// a boolean indicating whether the id was found and not expired, and an
// error.
func (s *MySQLStore) Get(ctx context.Context, id string) ([]byte, bool, error) {
	stmt := "SELECT data FROM sessions WHERE token = ? AND expires_at >= ?"
	row := s.db.QueryRowContext(ctx, stmt, id, s.now().UTC())

	var data []byte
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get session: %w", err)
	}
	return data, true, nil
}

// Set stores the data under the given id with an expiration of now plus
// the time-to-live, overwriting any existing record.
func (s *MySQLStore) Set(ctx context.Context, id string, data []byte) error {
	stmt := "INSERT INTO sessions(token, data, expires_at) VALUES (?, ?, ?) ON DUPLICATE KEY UPDATE data = VALUES(data), expires_at = VALUES(expires_at)"
	if _, err := s.db.ExecContext(ctx, stmt, id, data, s.now().Add(s.ttl).UTC()); err != nil {
		return fmt.Errorf("failed to set session: %w", err)
	}
	return nil
}

// Destroy removes the data associated with the given id.
func (s *MySQLStore) Destroy(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE token = ?", id); err != nil {
		return fmt.Errorf("failed to destroy session: %w", err)
	}
	return nil
}

// All returns the data of every stored session.
func (s *MySQLStore) All(ctx context.Context) ([][]byte, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT data FROM sessions")
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var all [][]byte
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to list sessions: %w", err)
		}
		all = append(all, data)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return all, nil
}

// Clear removes every stored session.
func (s *MySQLStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM sessions"); err != nil {
		return fmt.Errorf("failed to clear sessions: %w", err)
	}
	return nil
}

// Length returns the number of stored sessions.
func (s *MySQLStore) Length(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return n, nil
}

// Close stops the sweep. The database handle is left open.
func (s *MySQLStore) Close() error {
	s.sweeper.Stop()
	return nil
}

func (s *MySQLStore) deleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at < ?", now.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return res.RowsAffected()
}

func createTable(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS sessions (
			token VARCHAR(255) COLLATE utf8mb4_bin PRIMARY KEY,
			data BLOB NOT NULL,
			expires_at TIMESTAMP(6) NOT NULL,
			INDEX sessions_expires_at_idx (expires_at)
		)`)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}
