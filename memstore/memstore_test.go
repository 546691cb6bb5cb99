package memstore_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bluescreen10/sessionstore"
	"github.com/bluescreen10/sessionstore/memstore"
	"github.com/bluescreen10/sessionstore/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) sessionstore.Store {
		s := memstore.New()
		t.Cleanup(func() { s.Close() })
		return s
	})
}

// clock is a manually advanced time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestGetExpired(t *testing.T) {
	ctx := context.Background()
	c := &clock{now: time.Now()}

	s := memstore.New(memstore.WithTTL(time.Hour), memstore.WithClock(c.Now))
	require.NoError(t, s.Set(ctx, "abc123", []byte("hello world")))

	c.Advance(2 * time.Hour)
	_, found, err := s.Get(ctx, "abc123")
	require.NoError(t, err)
	assert.False(t, found)

	n, err := s.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n, "expired record should be dropped on Get")
}

func TestSetRefreshesExpiry(t *testing.T) {
	ctx := context.Background()
	c := &clock{now: time.Now()}

	s := memstore.New(memstore.WithTTL(time.Hour), memstore.WithClock(c.Now))
	require.NoError(t, s.Set(ctx, "abc123", []byte("first")))

	c.Advance(50 * time.Minute)
	require.NoError(t, s.Set(ctx, "abc123", []byte("second")))

	c.Advance(50 * time.Minute)
	data, found, err := s.Get(ctx, "abc123")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("second"), data)
}

func TestPeriodicCleanup(t *testing.T) {
	ctx := context.Background()

	s := memstore.New(
		memstore.WithTTL(10*time.Millisecond),
		memstore.WithCleanupInterval(20*time.Millisecond),
	)
	defer s.Close()

	require.NoError(t, s.Set(ctx, "abc123", []byte("hello world")))

	assert.Eventually(t, func() bool {
		n, err := s.Length(ctx)
		return err == nil && n == 0
	}, time.Second, 10*time.Millisecond)
}

func TestSetCopiesData(t *testing.T) {
	ctx := context.Background()
	data := []byte("hello")

	s := memstore.New()
	require.NoError(t, s.Set(ctx, "abc123", data))
	data[0] = 'j'

	got, _, err := s.Get(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)
}

func TestGetReturnsCopy(t *testing.T) {
	ctx := context.Background()

	s := memstore.New()
	require.NoError(t, s.Set(ctx, "abc123", []byte("hello")))

	got, _, err := s.Get(ctx, "abc123")
	require.NoError(t, err)
	got[0] = 'X'

	all, err := s.All(ctx)
	require.NoError(t, err)
	all[0][1] = 'Y'

	got, _, err = s.Get(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)
}

func TestZeroTTLIgnored(t *testing.T) {
	ctx := context.Background()

	s := memstore.New(memstore.WithTTL(0))
	require.NoError(t, s.Set(ctx, "abc123", []byte("hello")))

	_, found, err := s.Get(ctx, "abc123")
	require.NoError(t, err)
	assert.True(t, found)
}
