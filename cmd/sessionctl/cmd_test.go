package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bluescreen10/sessionstore/memstore"
)

func TestCount(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	require.NoError(t, store.Set(ctx, "a", []byte("1")))
	require.NoError(t, store.Set(ctx, "b", []byte("2")))

	var out bytes.Buffer
	require.NoError(t, countHwd.count(ctx, &out, store))
	assert.Equal(t, "2\n", out.String())
}

func TestList(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	require.NoError(t, store.Set(ctx, "a", []byte("hello")))

	var out bytes.Buffer
	require.NoError(t, listHwd.list(ctx, &out, store))
	assert.Equal(t, "5\taGVsbG8=\n", out.String())
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	require.NoError(t, store.Set(ctx, "a", []byte("1")))

	var out bytes.Buffer
	require.NoError(t, clearHwd.clear(ctx, &out, store))
	assert.Equal(t, "cleared 1 sessions\n", out.String())

	n, err := store.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestClearRequiresConfirmation(t *testing.T) {
	err := newApp().Run(context.Background(), []string{"sessionctl", "clear"})
	assert.ErrorContains(t, err, "--yes")
}

func TestServeHandlerCountsVisits(t *testing.T) {
	store := memstore.New()
	h := serveHwd.handler(store, time.Hour)

	var cookie string
	for i, want := range []string{"You have visited 1 times\n", "You have visited 2 times\n"} {
		r := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
		if cookie != "" {
			r.Header.Set("Cookie", cookie)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)

		require.Equal(t, http.StatusOK, w.Code, "request %d", i)
		assert.Equal(t, want, w.Body.String())
		cookie = w.Result().Header.Get("Set-Cookie")
	}

	r := httptest.NewRequest(http.MethodPost, "/logout", http.NoBody)
	r.Header.Set("Cookie", cookie)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusNoContent, w.Code)

	n, err := store.Length(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}
