package mysqlstore_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bluescreen10/sessionstore"
	"github.com/bluescreen10/sessionstore/mysqlstore"
	"github.com/bluescreen10/sessionstore/storetest"
)

func TestStore(t *testing.T) {
	db := getDB(t)

	storetest.Run(t, func(t *testing.T) sessionstore.Store {
		s := newStore(t, db)
		require.NoError(t, s.Clear(context.Background()))
		return s
	})
}

func TestGetExpired(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, getDB(t), mysqlstore.WithTTL(time.Millisecond))

	require.NoError(t, s.Set(ctx, "abc123", []byte("hello world")))
	time.Sleep(50 * time.Millisecond)

	_, found, err := s.Get(ctx, "abc123")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestPeriodicCleanup(t *testing.T) {
	ctx := context.Background()
	db := getDB(t)

	long := newStore(t, db)
	require.NoError(t, long.Set(ctx, "abc123", []byte("hello world")))

	short := newStore(t, db,
		mysqlstore.WithTTL(10*time.Millisecond),
		mysqlstore.WithCleanupInterval(20*time.Millisecond),
	)
	require.NoError(t, short.Set(ctx, "abc1234", []byte("hello world")))

	assert.Eventually(t, func() bool {
		n, err := short.Length(ctx)
		return err == nil && n == 1
	}, 2*time.Second, 20*time.Millisecond)
}

func newStore(t *testing.T, db *sql.DB, cfgs ...mysqlstore.Option) *mysqlstore.MySQLStore {
	t.Helper()

	s, err := mysqlstore.New(db, cfgs...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func getDB(t *testing.T) *sql.DB {
	t.Helper()

	ctx := context.Background()
	server, err := testcontainers.Run(
		ctx, "mariadb:latest",
		testcontainers.WithEnv(map[string]string{
			"MARIADB_ROOT_PASSWORD": "rootpass",
			"MARIADB_DATABASE":      "testdb",
			"MARIADB_USER":          "testuser",
			"MARIADB_PASSWORD":      "testpass",
		}),
		testcontainers.WithExposedPorts("3306/tcp"),
		testcontainers.WithWaitStrategy(
			wait.ForListeningPort("3306/tcp"),
			wait.ForLog("ready for connections"),
		),
	)
	testcontainers.CleanupContainer(t, server)
	require.NoError(t, err)

	host, err := server.Host(ctx)
	require.NoError(t, err)
	port, err := server.MappedPort(ctx, "3306")
	require.NoError(t, err)

	dsn := fmt.Sprintf("testuser:testpass@tcp(%s:%s)/testdb?parseTime=true", host, port.Port())
	db, err := sql.Open("mysql", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.Eventually(t, func() bool { return db.PingContext(ctx) == nil }, 30*time.Second, 500*time.Millisecond)
	return db
}
