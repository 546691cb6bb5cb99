package mongostore

import (
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"

	"github.com/bluescreen10/sessionstore"
)

func TestConfigDefaults(t *testing.T) {
	c := newConfig(nil)

	assert.Equal(t, "sessions", c.collectionName)
	assert.Equal(t, 24*time.Hour, c.ttl)
	assert.Equal(t, time.Minute, c.cleanupInterval)
	assert.Nil(t, c.clientOptions)
	assert.NotNil(t, c.onConnect)
	assert.NotNil(t, c.onError)
}

func TestConfigOptions(t *testing.T) {
	c := newConfig([]Option{
		WithCollectionName("web_sessions"),
		WithDatabase("app"),
		WithTTL(time.Hour),
		WithCleanupInterval(time.Second),
	})

	assert.Equal(t, "web_sessions", c.collectionName)
	assert.Equal(t, "app", c.database)
	assert.Equal(t, time.Hour, c.ttl)
	assert.Equal(t, time.Second, c.cleanupInterval)
}

func TestConfigIgnoresZeroValues(t *testing.T) {
	c := newConfig([]Option{
		WithCollectionName(""),
		WithTTL(0),
		WithCleanupInterval(-time.Second),
		WithLogger(nil),
		WithClock(nil),
	})

	assert.Equal(t, sessionstore.DefaultCollectionName, c.collectionName)
	assert.Equal(t, sessionstore.DefaultTTL, c.ttl)
	assert.Equal(t, sessionstore.DefaultCleanupInterval, c.cleanupInterval)
	assert.NotNil(t, c.logger)
	assert.NotNil(t, c.now)
}

func TestDefaultErrorHandlerLogs(t *testing.T) {
	logger, hook := test.NewNullLogger()
	c := newConfig([]Option{WithLogger(logger)})

	c.onError(errors.New("boom"))

	entry := hook.LastEntry()
	if assert.NotNil(t, entry) {
		assert.Equal(t, logrus.ErrorLevel, entry.Level)
		assert.Equal(t, "sessions", entry.Data["collection"])
		assert.EqualError(t, entry.Data[logrus.ErrorKey].(error), "boom")
	}
}
