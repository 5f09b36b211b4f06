// Package testutil wires throwaway SQLite and Redis instances for package tests.
package testutil

import (
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/oggyb/campus-match/internal/cache"
	"github.com/oggyb/campus-match/internal/config"
	"github.com/oggyb/campus-match/internal/db"
)

// NewTestDB opens an isolated in-memory SQLite database with the full schema.
//
// The pool is capped at one connection: SQLite has no row locks, so
// transactions are serialized by the pool the way row locks serialize them
// on MySQL/Postgres.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		NowFunc:                func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.Migrate(gdb))
	return gdb
}

// NewServerDB connects to the MySQL or Postgres database named by
// CAMPUS_MATCH_TEST_DB_DRIVER and CAMPUS_MATCH_TEST_DSN, recreates the schema
// and allows maxConns concurrent connections. The test is skipped when the
// variables are unset.
func NewServerDB(t *testing.T, maxConns int) *gorm.DB {
	t.Helper()

	driver, dsn := os.Getenv("CAMPUS_MATCH_TEST_DB_DRIVER"), os.Getenv("CAMPUS_MATCH_TEST_DSN")
	if driver == "" || dsn == "" {
		t.Skip("CAMPUS_MATCH_TEST_DB_DRIVER and CAMPUS_MATCH_TEST_DSN not set")
	}

	gdb, err := db.NewDB(&config.Config{DB: config.DBConfig{Driver: driver, DSN: dsn}})
	require.NoError(t, err)
	gdb = gdb.Session(&gorm.Session{Logger: logger.Default.LogMode(logger.Silent)})

	require.NoError(t, gdb.Migrator().DropTable(db.AllModels()...))
	require.NoError(t, db.Migrate(gdb))

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(maxConns)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return gdb
}

// NewSeededDB is NewTestDB plus db.SeedMinimalTestData.
func NewSeededDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb := NewTestDB(t)
	require.NoError(t, db.SeedMinimalTestData(gdb))
	return gdb
}

// NewTestRedis starts a miniredis and returns a cache bound to it.
func NewTestRedis(t *testing.T) (*cache.RedisCache, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	cfg := &config.Config{Redis: config.RedisConfig{Addr: mr.Addr()}}
	rc := cache.NewRedisCache(cfg)
	t.Cleanup(func() { _ = rc.Client.Close() })
	return rc, mr
}

// CreateUsers inserts fresh available users with the given ids.
func CreateUsers(t *testing.T, gdb *gorm.DB, ids ...string) {
	t.Helper()
	for _, id := range ids {
		u := db.NewUser(id, strings.ToUpper(id))
		require.NoError(t, gdb.Create(&u).Error)
	}
}
