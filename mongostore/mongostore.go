// Package mongostore provides a MongoDB session storage implementation.
//
// MongoStore stores session data in a collection, one document per
// session id. Every write stamps the document with an absolute expiration
// (now plus the configured time-to-live) and a background sweep removes
// expired documents every cleanup interval.
//
// Usage:
//
//	store := mongostore.Connect("mongodb://localhost:27017/app",
//	    mongostore.WithTTL(2*time.Hour),
//	    mongostore.OnError(func(err error) { log.Print(err) }),
//	)
//	defer store.Close(context.Background())
//
//	mgr := session.NewManager(store)
//
// The sweep is best effort: a session may stay readable, and be counted by
// Length and returned by All, for up to one cleanup interval after it
// expired.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/bluescreen10/sessionstore"
)

// Document field names. The id field is not _id so that the uniqueness
// constraint is an explicit index owned by the store.
const (
	fieldID      = "sid"
	fieldData    = "data"
	fieldExpires = "expires"
)

var errNilDatabase = errors.New("mongostore: nil database")

// record is a single stored session.
type record struct {
	ID        string    `bson:"sid"`
	Data      []byte    `bson:"data"`
	ExpiresAt time.Time `bson:"expires"`
}

// MongoStore is a MongoDB backed storage for session data. It is safe for
// concurrent use by multiple goroutines.
type MongoStore struct {
	cfg   *storeConfig
	state atomic.Int32

	// closed once setup finished, whatever the outcome. coll, client,
	// sweeper and setupErr are written before and only read after.
	ready    chan struct{}
	coll     *mongo.Collection
	client   *mongo.Client
	sweeper  *sessionstore.Sweeper
	setupErr error

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	closeErr  error
}

var _ sessionstore.Store = (*MongoStore)(nil)

// New creates a MongoStore on an already connected database. The store
// goes straight to setup: it creates the collection if needed, ensures
// the unique index on the session id, starts the sweep and calls the
// OnConnect observer. Setup runs in the background; operations issued
// before it finishes wait for it.
func New(db *mongo.Database, cfgs ...Option) *MongoStore {
	s := newStore(cfgs)
	s.start(func(context.Context) (*mongo.Database, error) {
		if db == nil {
			return nil, errNilDatabase
		}
		return db, nil
	})
	return s
}

// Connect creates a MongoStore and connects to the server at uri in the
// background. Connection failures are reported to the OnError observer
// and make every operation fail with sessionstore.ErrNotReady. Once the
// store is ready, failed server heartbeats are reported to OnError too.
// The client is owned by the store and disconnected by Close.
func Connect(uri string, cfgs ...Option) *MongoStore {
	s := newStore(cfgs)
	s.state.Store(int32(StateConnecting))
	s.start(func(ctx context.Context) (*mongo.Database, error) {
		return s.connect(ctx, uri)
	})
	return s
}

func newStore(cfgs []Option) *MongoStore {
	ctx, cancel := context.WithCancel(context.Background())
	return &MongoStore{
		cfg:    newConfig(cfgs),
		ready:  make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Get retrieves the data associated with the given id. Returns the data,
// a boolean indicating whether the id was found, and an error. Sessions
// that expired but were not swept yet are still returned.
func (s *MongoStore) Get(ctx context.Context, id string) ([]byte, bool, error) {
	coll, err := s.collection(ctx)
	if err != nil {
		return nil, false, err
	}

	var rec record
	err = coll.FindOne(ctx, bson.D{{Key: fieldID, Value: id}}).Decode(&rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get session: %w", err)
	}

	return rec.Data, true, nil
}

// Set stores the data under the given id, replacing any existing
// document, and sets its expiration to now plus the time-to-live.
func (s *MongoStore) Set(ctx context.Context, id string, data []byte) error {
	coll, err := s.collection(ctx)
	if err != nil {
		return err
	}

	rec := record{
		ID:        id,
		Data:      data,
		ExpiresAt: s.cfg.now().Add(s.cfg.ttl),
	}
	_, err = coll.ReplaceOne(ctx, bson.D{{Key: fieldID, Value: id}}, rec, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to set session: %w", err)
	}
	return nil
}

// Destroy removes the session with the given id. If the id does not
// exist, this is a no-op.
func (s *MongoStore) Destroy(ctx context.Context, id string) error {
	coll, err := s.collection(ctx)
	if err != nil {
		return err
	}

	if _, err := coll.DeleteOne(ctx, bson.D{{Key: fieldID, Value: id}}); err != nil {
		return fmt.Errorf("failed to destroy session: %w", err)
	}
	return nil
}

// All returns the data of every stored session in storage order.
func (s *MongoStore) All(ctx context.Context) ([][]byte, error) {
	coll, err := s.collection(ctx)
	if err != nil {
		return nil, err
	}

	cur, err := coll.Find(ctx, bson.D{}, options.Find().SetProjection(bson.D{{Key: fieldData, Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	var recs []record
	if err := cur.All(ctx, &recs); err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	all := make([][]byte, 0, len(recs))
	for _, rec := range recs {
		all = append(all, rec.Data)
	}
	return all, nil
}

// Clear removes every session in the collection.
func (s *MongoStore) Clear(ctx context.Context) error {
	coll, err := s.collection(ctx)
	if err != nil {
		return err
	}

	if _, err := coll.DeleteMany(ctx, bson.D{}); err != nil {
		return fmt.Errorf("failed to clear sessions: %w", err)
	}
	return nil
}

// Length returns the number of documents in the collection, expired but
// not yet swept sessions included.
func (s *MongoStore) Length(ctx context.Context) (int64, error) {
	coll, err := s.collection(ctx)
	if err != nil {
		return 0, err
	}

	n, err := coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return n, nil
}

// deleteExpired removes every session whose expiration is before now.
func (s *MongoStore) deleteExpired(ctx context.Context, now time.Time) (int64, error) {
	filter := bson.D{{Key: fieldExpires, Value: bson.D{{Key: "$lt", Value: now}}}}
	res, err := s.coll.DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return res.DeletedCount, nil
}

// Close stops the sweep and, when the store was created with Connect,
// disconnects the client. Operations issued after Close fail with
// sessionstore.ErrClosed. It is safe to call Close more than once.
func (s *MongoStore) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.cancel()
		<-s.ready
		s.state.Store(int32(StateClosed))

		if s.sweeper != nil {
			s.sweeper.Stop()
		}
		if s.client != nil {
			if err := s.client.Disconnect(ctx); err != nil {
				s.closeErr = fmt.Errorf("failed to disconnect: %w", err)
			}
		}
	})
	return s.closeErr
}
