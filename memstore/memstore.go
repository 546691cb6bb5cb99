// Package memstore provides an in-memory session storage implementation.
//
// Memstore allows storing, retrieving, and deleting session data keyed by
// a session id. Each record expires after the store's time-to-live, and
// the store can periodically sweep expired records.
//
// This package is suitable for single-process applications or testing
// scenarios. It is not persistent and does not share state across
// processes.
package memstore

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/bluescreen10/sessionstore"
)

// Memstore is an in-memory storage for session data.
// It is safe for concurrent use by multiple goroutines.
type Memstore struct {
	sessions sync.Map
	ttl      time.Duration
	now      func() time.Time
	sweeper  *sessionstore.Sweeper
}

var _ sessionstore.Store = (*Memstore)(nil)

// record represents a single stored session, containing the data
// and its expiration time.
type record struct {
	expiresAt time.Time
	data      []byte
}

// Option configures a store.
type Option func(*memstoreConfig)

type memstoreConfig struct {
	ttl             time.Duration
	cleanupInterval time.Duration
	now             func() time.Time
	logger          sessionstore.Logger
}

// WithTTL sets the lifespan of every write. Non-positive values are
// ignored. (default 24hr.)
func WithTTL(ttl time.Duration) Option {
	return Option(func(c *memstoreConfig) {
		if ttl > 0 {
			c.ttl = ttl
		}
	})
}

// WithCleanupInterval starts a background sweep of expired records with
// the given period. (default no sweep; expired records are dropped on Get.)
func WithCleanupInterval(interval time.Duration) Option {
	return Option(func(c *memstoreConfig) {
		c.cleanupInterval = interval
	})
}

// WithClock sets the clock used to stamp and expire records.
func WithClock(now func() time.Time) Option {
	return Option(func(c *memstoreConfig) {
		c.now = now
	})
}

// WithLogger sets the logger used by the sweep.
func WithLogger(logger sessionstore.Logger) Option {
	return Option(func(c *memstoreConfig) {
		c.logger = logger
	})
}

// New creates and returns a new Memstore instance.
func New(cfgs ...Option) *Memstore {
	c := &memstoreConfig{
		ttl:    sessionstore.DefaultTTL,
		now:    time.Now,
		logger: sessionstore.DefaultLogger("memstore"),
	}
	for _, cfg := range cfgs {
		cfg(c)
	}

	m := &Memstore{ttl: c.ttl, now: c.now}
	if c.cleanupInterval > 0 {
		m.sweeper = sessionstore.StartSweeper(c.cleanupInterval, m.deleteExpired,
			sessionstore.WithSweepLogger(c.logger),
			sessionstore.WithSweepClock(c.now),
		)
	}
	return m
}

// Get retrieves the data associated with the given id. Returns the data,
// a boolean indicating whether the id was found and not expired, and an
// error. If the record has expired, it is deleted and Get returns false.
func (m *Memstore) Get(_ context.Context, id string) ([]byte, bool, error) {
	r, ok := m.sessions.Load(id)
	if !ok {
		return nil, false, nil
	}

	rec := r.(*record)
	if m.now().After(rec.expiresAt) {
		m.sessions.CompareAndDelete(id, r)
		return nil, false, nil
	}

	return bytes.Clone(rec.data), true, nil
}

// Set stores the data under the given id, expiring after the store's
// time-to-live. If a record with the same id already exists, it is
// overwritten.
func (m *Memstore) Set(_ context.Context, id string, data []byte) error {
	m.sessions.Store(id, &record{expiresAt: m.now().Add(m.ttl), data: bytes.Clone(data)})
	return nil
}

// Destroy removes the data associated with the given id. If the id
// does not exist, this is a no-op.
func (m *Memstore) Destroy(_ context.Context, id string) error {
	m.sessions.Delete(id)
	return nil
}

// All returns the data of every stored record.
func (m *Memstore) All(_ context.Context) ([][]byte, error) {
	all := [][]byte{}
	m.sessions.Range(func(_, value any) bool {
		all = append(all, bytes.Clone(value.(*record).data))
		return true
	})
	return all, nil
}

// Clear removes every record.
func (m *Memstore) Clear(_ context.Context) error {
	m.sessions.Clear()
	return nil
}

// Length returns the number of stored records, expired ones included
// until they are swept.
func (m *Memstore) Length(_ context.Context) (int64, error) {
	var n int64
	m.sessions.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n, nil
}

// Close stops the background sweep, if any.
func (m *Memstore) Close() error {
	if m.sweeper != nil {
		m.sweeper.Stop()
	}
	return nil
}

// deleteExpired removes all records that expired before now.
func (m *Memstore) deleteExpired(_ context.Context, now time.Time) (int64, error) {
	var n int64
	m.sessions.Range(func(key, value any) bool {
		if now.After(value.(*record).expiresAt) {
			if m.sessions.CompareAndDelete(key, value) {
				n++
			}
		}
		return true
	})
	return n, nil
}
