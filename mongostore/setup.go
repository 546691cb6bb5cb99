package mongostore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/event"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.mongodb.org/mongo-driver/v2/x/mongo/driver/connstring"

	"github.com/bluescreen10/sessionstore"
)

// State is the lifecycle state of a MongoStore.
type State int32

const (
	StateUninitialized State = iota
	StateConnecting
	StateReady
	StateFailed
	StateClosed
)

// errCodeNamespaceExists is returned by create on an existing collection.
const errCodeNamespaceExists = 48

func (st State) String() string {
	switch st {
	case StateUninitialized:
		return "uninitialized"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int32(st))
	}
}

// State returns the current lifecycle state.
func (s *MongoStore) State() State {
	return State(s.state.Load())
}

// Ready blocks until setup finished or ctx is done. It returns nil once
// the store accepts operations, or the setup failure wrapped in
// sessionstore.ErrNotReady.
func (s *MongoStore) Ready(ctx context.Context) error {
	_, err := s.collection(ctx)
	return err
}

// collection waits for setup and returns the collection handle.
func (s *MongoStore) collection(ctx context.Context) (*mongo.Collection, error) {
	select {
	case <-s.ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	switch s.State() {
	case StateClosed:
		return nil, sessionstore.ErrClosed
	case StateFailed:
		return nil, fmt.Errorf("%w: %w", sessionstore.ErrNotReady, s.setupErr)
	}
	return s.coll, nil
}

// start runs setup in the background and notifies the observers once it
// is done. Nothing is reported when the store was closed meanwhile.
func (s *MongoStore) start(resolve func(context.Context) (*mongo.Database, error)) {
	go func() {
		err := s.setup(resolve)
		close(s.ready)

		if s.ctx.Err() != nil {
			return
		}
		if err != nil {
			s.cfg.onError(err)
			return
		}
		s.cfg.onConnect()
	}()
}

// setup resolves the database, ensures the collection and its indexes and
// starts the sweep. A failed index creation is reported but does not
// prevent the store from becoming ready.
func (s *MongoStore) setup(resolve func(context.Context) (*mongo.Database, error)) error {
	db, err := resolve(s.ctx)
	if err != nil {
		return s.fail(err)
	}

	coll, err := s.ensureCollection(s.ctx, db)
	if err != nil {
		return s.fail(err)
	}

	if err := ensureIndexes(s.ctx, coll); err != nil && s.ctx.Err() == nil {
		s.cfg.onError(err)
	}

	s.coll = coll
	s.sweeper = sessionstore.StartSweeper(s.cfg.cleanupInterval, s.deleteExpired,
		sessionstore.WithSweepErrorHandler(s.cfg.onError),
		sessionstore.WithSweepLogger(s.cfg.logger),
		sessionstore.WithSweepClock(s.cfg.now),
	)
	s.state.Store(int32(StateReady))
	return nil
}

func (s *MongoStore) fail(err error) error {
	s.setupErr = err
	s.state.Store(int32(StateFailed))
	return err
}

// connect creates a client for uri, checks the server is reachable and
// returns the target database.
func (s *MongoStore) connect(ctx context.Context, uri string) (*mongo.Database, error) {
	name := s.cfg.database
	if name == "" {
		cs, err := connstring.ParseAndValidate(uri)
		if err != nil {
			return nil, fmt.Errorf("failed to parse connection string: %w", err)
		}
		name = cs.Database
	}
	if name == "" {
		name = defaultDatabase
	}

	monitor := &event.ServerMonitor{
		ServerHeartbeatFailed: s.heartbeatFailed,
	}
	opts := []*options.ClientOptions{options.Client().ApplyURI(uri).SetServerMonitor(monitor)}
	if s.cfg.clientOptions != nil {
		opts = append(opts, s.cfg.clientOptions)
	}

	client, err := mongo.Connect(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	s.client = client
	return client.Database(name), nil
}

// heartbeatFailed forwards monitoring failures of a ready store to the
// OnError observer. Failures during setup are reported by setup itself.
func (s *MongoStore) heartbeatFailed(e *event.ServerHeartbeatFailedEvent) {
	if s.ctx.Err() != nil || s.State() != StateReady {
		return
	}
	s.cfg.onError(fmt.Errorf("server heartbeat failed: %w", e.Failure))
}

// ensureCollection creates the session collection unless it exists.
func (s *MongoStore) ensureCollection(ctx context.Context, db *mongo.Database) (*mongo.Collection, error) {
	err := db.CreateCollection(ctx, s.cfg.collectionName)
	if err != nil {
		var serverErr mongo.ServerError
		if !errors.As(err, &serverErr) || !serverErr.HasErrorCode(errCodeNamespaceExists) {
			return nil, fmt.Errorf("failed to create collection: %w", err)
		}
	}
	return db.Collection(s.cfg.collectionName), nil
}

// ensureIndexes creates the unique index on the session id and the index
// on the expiration used by the sweep.
func ensureIndexes(ctx context.Context, coll *mongo.Collection) error {
	_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: fieldID, Value: 1}},
			Options: options.Index().SetUnique(true).SetName("sid_unique"),
		},
		{
			Keys:    bson.D{{Key: fieldExpires, Value: 1}},
			Options: options.Index().SetName("expires"),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	return nil
}
