package mongostore

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/bluescreen10/sessionstore"
)

// defaultDatabase is used by Connect when neither the URI nor
// WithDatabase name a database. It matches the server's own default.
const defaultDatabase = "test"

// Option configures a store.
type Option func(*storeConfig)

type storeConfig struct {
	collectionName  string
	database        string
	ttl             time.Duration
	cleanupInterval time.Duration
	clientOptions   *options.ClientOptions
	logger          sessionstore.Logger
	now             func() time.Time
	onConnect       func()
	onError         func(error)
}

func newConfig(cfgs []Option) *storeConfig {
	c := &storeConfig{
		collectionName:  sessionstore.DefaultCollectionName,
		ttl:             sessionstore.DefaultTTL,
		cleanupInterval: sessionstore.DefaultCleanupInterval,
		logger:          sessionstore.DefaultLogger("mongostore"),
		now:             time.Now,
	}

	for _, cfg := range cfgs {
		cfg(c)
	}

	c.logger = c.logger.WithField("collection", c.collectionName)
	if c.onConnect == nil {
		logger := c.logger
		c.onConnect = func() {
			logger.Info("session store connected")
		}
	}
	if c.onError == nil {
		logger := c.logger
		c.onError = func(err error) {
			logger.WithError(err).Error("session store error")
		}
	}
	return c
}

// WithCollectionName sets the collection sessions are stored in.
// (default "sessions".)
func WithCollectionName(name string) Option {
	return Option(func(c *storeConfig) {
		if name != "" {
			c.collectionName = name
		}
	})
}

// WithDatabase sets the database used by Connect, overriding the one in
// the connection string. It has no effect on New. (default the database
// in the URI, or "test".)
func WithDatabase(name string) Option {
	return Option(func(c *storeConfig) {
		c.database = name
	})
}

// WithTTL sets the lifespan applied to every write. (default 24hr.)
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
		if interval > 0 {
			c.cleanupInterval = interval
		}
	})
}

// WithClientOptions sets driver options passed unchanged to mongo.Connect.
// They are applied after the connection string, so they win over it. A
// ServerMonitor set here replaces the one forwarding heartbeat failures to
// OnError. It has no effect on New.
func WithClientOptions(opts *options.ClientOptions) Option {
	return Option(func(c *storeConfig) {
		c.clientOptions = opts
	})
}

// WithLogger sets the logger used by the default observers and the sweep.
// (default logrus standard logger.)
func WithLogger(logger sessionstore.Logger) Option {
	return Option(func(c *storeConfig) {
		if logger != nil {
			c.logger = logger
		}
	})
}

// WithClock sets the clock used to stamp writes and to pick expired
// records. (default time.Now.)
func WithClock(now func() time.Time) Option {
	return Option(func(c *storeConfig) {
		if now != nil {
			c.now = now
		}
	})
}

// OnConnect registers the function called once the store is ready.
// (default logs at info level.)
func OnConnect(fn func()) Option {
	return Option(func(c *storeConfig) {
		c.onConnect = fn
	})
}

// OnError registers the function receiving failures that have no caller
// to return to: connection, collection and index setup, and sweeps.
// (default logs at error level.)
func OnError(fn func(error)) Option {
	return Option(func(c *storeConfig) {
		c.onError = fn
	})
}
