// Package sessionstore defines the storage contract used by the session
// middleware and the pieces shared by its backends.
//
// A backend persists opaque session payloads keyed by session id. Every
// write stamps the record with an absolute expiration computed from the
// backend's time-to-live; expired records are removed by the backend, either
// natively (redis) or by a periodic Sweeper.
//
// Backends live in their own packages:
//
//	mongostore  MongoDB collection (the reference backend)
//	gormstore   any GORM supported SQL database
//	mysqlstore  MySQL or MariaDB through database/sql
//	redisstore  Redis keys with native expiry
//	memstore    process memory, for tests and single instance setups
package sessionstore

import (
	"context"
	"time"
)

const (
	// DefaultCollectionName is the collection (or table) sessions are
	// written to when none is configured.
	DefaultCollectionName = "sessions"

	// DefaultTTL is the lifespan applied to every write. (1 day)
	DefaultTTL = 24 * time.Hour

	// DefaultCleanupInterval is the period of the expiration sweep.
	DefaultCleanupInterval = time.Minute
)

// Store defines the interface for session storage backends.
// A Store is responsible for persisting and retrieving session data
// by a unique session id. The payload is opaque to the store: it is
// written and returned as-is and never interpreted.
type Store interface {
	// Get retrieves the session data associated with the given id.
	// It returns the raw session data, a boolean indicating whether
	// the session was found, and an error if the lookup failed. A
	// missing session is not an error.
	Get(ctx context.Context, id string) (data []byte, found bool, err error)

	// Set stores the session data for the given id. If a session with
	// the same id already exists, it is replaced. The expiration is
	// recomputed on every call from the store's time-to-live.
	Set(ctx context.Context, id string, data []byte) error

	// Destroy removes the session associated with the given id. It
	// does not return an error if the session does not exist.
	Destroy(ctx context.Context, id string) error

	// All returns the data of every stored session. Order is not
	// specified and may include sessions that expired but were not
	// swept yet.
	All(ctx context.Context) ([][]byte, error)

	// Clear removes every stored session.
	Clear(ctx context.Context) error

	// Length returns the number of stored sessions, including the ones
	// that expired but were not swept yet.
	Length(ctx context.Context) (int64, error)
}
