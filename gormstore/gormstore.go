// Package gormstore provides a gorm session storage implementation.
//
// GORMStore allows storing, retrieving, and deleting session data keyed
// by a session id in any database gorm supports. Each record has an
// expiration time, and the store periodically sweeps expired sessions.
package gormstore

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bluescreen10/sessionstore"
)

// GORMStore is a gorm backed storage for session data.
type GORMStore struct {
	db      *gorm.DB
	table   string
	ttl     time.Duration
	now     func() time.Time
	sweeper *sessionstore.Sweeper
}

var _ sessionstore.Store = (*GORMStore)(nil)

// session represents a single stored session, containing the data
// and its expiration time.
type session struct {
	Token     string `gorm:"primaryKey;size:255"`
	Data      []byte
	ExpiresAt time.Time `gorm:"index"`
}

// Option configures a store.
type Option func(*storeConfig)

type storeConfig struct {
	table           string
	ttl             time.Duration
	cleanupInterval time.Duration
	now             func() time.Time
	logger          sessionstore.Logger
	onError         func(error)
}

// WithTable sets the table sessions are stored in. (default "sessions".)
func WithTable(table string) Option {
	return Option(func(c *storeConfig) {
		c.table = table
	})
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
// (default logs at error level.)
func OnError(fn func(error)) Option {
	return Option(func(c *storeConfig) {
		c.onError = fn
	})
}

// New creates and returns a new GORMStore instance and starts the sweep.
// If the sessions table doesn't exist it is created.
func New(db *gorm.DB, cfgs ...Option) (*GORMStore, error) {
	c := &storeConfig{
		table:           sessionstore.DefaultCollectionName,
		ttl:             sessionstore.DefaultTTL,
		cleanupInterval: sessionstore.DefaultCleanupInterval,
		now:             time.Now,
		logger:          sessionstore.DefaultLogger("gormstore"),
	}
	for _, cfg := range cfgs {
		cfg(c)
	}

	s := &GORMStore{db: db, table: c.table, ttl: c.ttl, now: c.now}
	if err := s.model(context.Background()).AutoMigrate(&session{}); err != nil {
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	s.sweeper = sessionstore.StartSweeper(c.cleanupInterval, s.deleteExpired,
		sessionstore.WithSweepErrorHandler(c.onError),
		sessionstore.WithSweepLogger(c.logger),
		sessionstore.WithSweepClock(c.now),
	)
	return s, nil
}

// model returns a session scoped to the store's table.
func (s *GORMStore) model(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Table(s.table)
}

// Get retrieves the data associated with the given id. Returns the data,
// a boolean indicating whether the id was found and not expired, and an
// error.
func (s *GORMStore) Get(ctx context.Context, id string) ([]byte, bool, error) {
	sess := &session{}
	tx := s.model(ctx).Where("token = ? AND expires_at >= ?", id, s.now()).Limit(1).Find(sess)
	if tx.Error != nil {
		return nil, false, fmt.Errorf("failed to get session: %w", tx.Error)
	}
	if tx.RowsAffected == 0 {
		return nil, false, nil
	}

	return sess.Data, true, nil
}

// Set stores the data under the given id with an expiration of now plus
// the time-to-live. If a record with the same id already exists, it is
// overwritten in the same statement.
func (s *GORMStore) Set(ctx context.Context, id string, data []byte) error {
	sess := &session{Token: id, Data: data, ExpiresAt: s.now().Add(s.ttl)}
	tx := s.model(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "expires_at"}),
	}).Create(sess)
	if tx.Error != nil {
		return fmt.Errorf("failed to set session: %w", tx.Error)
	}
	return nil
}

// Destroy removes the data associated with the given id.
func (s *GORMStore) Destroy(ctx context.Context, id string) error {
	tx := s.model(ctx).Delete(&session{}, "token = ?", id)
	if tx.Error != nil {
		return fmt.Errorf("failed to destroy session: %w", tx.Error)
	}
	return nil
}

// All returns the data of every stored session.
func (s *GORMStore) All(ctx context.Context) ([][]byte, error) {
	var sessions []session
	tx := s.model(ctx).Select("data").Find(&sessions)
	if tx.Error != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", tx.Error)
	}

	all := make([][]byte, 0, len(sessions))
	for _, sess := range sessions {
		all = append(all, sess.Data)
	}
	return all, nil
}

// Clear removes every stored session.
func (s *GORMStore) Clear(ctx context.Context) error {
	tx := s.model(ctx).Where("1 = 1").Delete(&session{})
	if tx.Error != nil {
		return fmt.Errorf("failed to clear sessions: %w", tx.Error)
	}
	return nil
}

// Length returns the number of stored sessions, expired but not yet
// swept ones included.
func (s *GORMStore) Length(ctx context.Context) (int64, error) {
	var n int64
	tx := s.model(ctx).Count(&n)
	if tx.Error != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", tx.Error)
	}
	return n, nil
}

// Close stops the sweep. The database handle is left open.
func (s *GORMStore) Close() error {
	s.sweeper.Stop()
	return nil
}

// deleteExpired removes all sessions that expired before now.
func (s *GORMStore) deleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tx := s.model(ctx).Delete(&session{}, "expires_at < ?", now)
	if tx.Error != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", tx.Error)
	}
	return tx.RowsAffected, nil
}
