// Package storetest provides a conformance suite for sessionstore.Store
// implementations.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bluescreen10/sessionstore"
)

// Factory returns an empty store. It is called once per subtest.
type Factory func(t *testing.T) sessionstore.Store

const concurrentWriters = 16

// Run exercises the Store contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s sessionstore.Store)
	}{
		{"GetMissing", testGetMissing},
		{"SetGet", testSetGet},
		{"Overwrite", testOverwrite},
		{"Destroy", testDestroy},
		{"DestroyMissing", testDestroyMissing},
		{"LengthClear", testLengthClear},
		{"All", testAll},
		{"ConcurrentSet", testConcurrentSet},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

func testGetMissing(t *testing.T, s sessionstore.Store) {
	data, found, err := s.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, data)
}

func testSetGet(t *testing.T, s sessionstore.Store) {
	ctx := context.Background()
	expected := []byte("hello world")

	require.NoError(t, s.Set(ctx, "abc123", expected))

	data, found, err := s.Get(ctx, "abc123")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, expected, data)
}

func testOverwrite(t *testing.T, s sessionstore.Store) {
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "abc123", []byte("first")))
	require.NoError(t, s.Set(ctx, "abc123", []byte("second")))

	data, found, err := s.Get(ctx, "abc123")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("second"), data)

	n, err := s.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func testDestroy(t *testing.T, s sessionstore.Store) {
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "abc123", []byte("hello world")))
	require.NoError(t, s.Destroy(ctx, "abc123"))

	_, found, err := s.Get(ctx, "abc123")
	require.NoError(t, err)
	assert.False(t, found)
}

func testDestroyMissing(t *testing.T, s sessionstore.Store) {
	ctx := context.Background()

	require.NoError(t, s.Destroy(ctx, "missing"))
	require.NoError(t, s.Destroy(ctx, "missing"))
}

func testLengthClear(t *testing.T, s sessionstore.Store) {
	ctx := context.Background()

	for i := range 3 {
		require.NoError(t, s.Set(ctx, fmt.Sprintf("id-%d", i), []byte("data")))
	}

	n, err := s.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	require.NoError(t, s.Clear(ctx))

	n, err = s.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	_, found, err := s.Get(ctx, "id-0")
	require.NoError(t, err)
	assert.False(t, found)
}

func testAll(t *testing.T, s sessionstore.Store) {
	ctx := context.Background()
	a := []byte(`{"a":1}`)
	b := []byte(`{"b":1}`)

	require.NoError(t, s.Set(ctx, "a", a))
	require.NoError(t, s.Set(ctx, "b", b))

	all, err := s.All(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, [][]byte{a, b}, all)
}

func testConcurrentSet(t *testing.T, s sessionstore.Store) {
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, concurrentWriters*2)
	for i := range concurrentWriters {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("id-%d", i)
			errs <- s.Set(ctx, id, []byte("first"))
			errs <- s.Set(ctx, id, []byte(id))
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	for i := range concurrentWriters {
		id := fmt.Sprintf("id-%d", i)
		data, found, err := s.Get(ctx, id)
		require.NoError(t, err)
		require.True(t, found, id)
		assert.Equal(t, []byte(id), data)
	}

	n, err := s.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(concurrentWriters), n)
}
