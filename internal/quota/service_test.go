package quota_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/oggyb/campus-match/internal/db"
	"github.com/oggyb/campus-match/internal/logger"
	"github.com/oggyb/campus-match/internal/quota"
	"github.com/oggyb/campus-match/internal/repository"
	"github.com/oggyb/campus-match/internal/testutil"
)

func TestCountRecentSwipesCacheFirst(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.NewTestDB(t)
	rc, mr := testutil.NewTestRedis(t)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	svc := quota.NewService(gdb, rc, quota.Policy{Limit: 5, Location: time.UTC}, logger.Discard()).
		WithClock(func() time.Time { return now })

	counters := repository.NewCounterRepository(gdb)
	require.NoError(t, counters.Put(ctx, db.SwipeCounter{UserID: "a", Count: 2, ResetDate: now.Add(-time.Hour)}))

	st, err := svc.CountRecentSwipes(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, quota.Status{SwipeCount: 2, DailyLimit: 5, CanSwipe: true}, st)

	// populated until the end of the day
	key := rc.KeyForSwipeCount("a", "20260310")
	assert.True(t, mr.Exists(key))
	assert.Equal(t, 12*time.Hour, mr.TTL(key))

	// cache wins over the DB
	require.NoError(t, counters.Put(ctx, db.SwipeCounter{UserID: "a", Count: 5, ResetDate: now}))
	st, err = svc.CountRecentSwipes(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 2, st.SwipeCount)

	svc.Record(ctx, db.SwipeCounter{UserID: "a", Count: 5, ResetDate: now})
	st, err = svc.CountRecentSwipes(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 5, st.SwipeCount)
	assert.False(t, st.CanSwipe)
}

func TestCountRecentSwipesStaleCounter(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.NewTestDB(t)
	rc, _ := testutil.NewTestRedis(t)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	svc := quota.NewService(gdb, rc, quota.Policy{Limit: 5, Location: time.UTC}, logger.Discard()).
		WithClock(func() time.Time { return now })
	require.NoError(t, repository.NewCounterRepository(gdb).
		Put(ctx, db.SwipeCounter{UserID: "a", Count: 5, ResetDate: now.AddDate(0, 0, -1)}))

	st, err := svc.CountRecentSwipes(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 0, st.SwipeCount)
	assert.True(t, st.CanSwipe)
}

func TestCacheFillDoesNotOverwriteRecord(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.NewTestDB(t)
	rc, mr := testutil.NewTestRedis(t)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	svc := quota.NewService(gdb, rc, quota.Policy{Limit: 5, Location: time.UTC}, logger.Discard()).
		WithClock(func() time.Time { return now })
	require.NoError(t, repository.NewCounterRepository(gdb).
		Put(ctx, db.SwipeCounter{UserID: "a", Count: 2, ResetDate: now}))

	// a swipe commits while the miss path is reading the old counter
	recorded := false
	require.NoError(t, gdb.Callback().Query().After("gorm:query").Register("test:swipe-during-read", func(*gorm.DB) {
		if !recorded {
			recorded = true
			svc.Record(ctx, db.SwipeCounter{UserID: "a", Count: 3, ResetDate: now})
		}
	}))

	st, err := svc.CountRecentSwipes(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 2, st.SwipeCount)
	require.True(t, recorded)

	v, err := mr.Get(rc.KeyForSwipeCount("a", "20260310"))
	require.NoError(t, err)
	assert.Equal(t, "3", v)

	st, err = svc.CountRecentSwipes(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 3, st.SwipeCount)
}

func TestResetAllReturnsNearLimitUsers(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.NewTestDB(t)
	rc, _ := testutil.NewTestRedis(t)
	now := time.Date(2026, 3, 10, 0, 0, 5, 0, time.UTC)

	svc := quota.NewService(gdb, rc, quota.Policy{Limit: 5, Location: time.UTC}, logger.Discard())
	counters := repository.NewCounterRepository(gdb)
	yesterday := now.Add(-3 * time.Hour)
	require.NoError(t, counters.Put(ctx, db.SwipeCounter{UserID: "full", Count: 5, ResetDate: yesterday}))
	require.NoError(t, counters.Put(ctx, db.SwipeCounter{UserID: "near", Count: 4, ResetDate: yesterday}))
	require.NoError(t, counters.Put(ctx, db.SwipeCounter{UserID: "light", Count: 1, ResetDate: yesterday}))
	require.NoError(t, counters.Put(ctx, db.SwipeCounter{UserID: "old", Count: 5, ResetDate: now.AddDate(0, 0, -5)}))

	users, err := svc.ResetAll(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, []string{"full", "near"}, users)

	for _, id := range []string{"full", "near", "light", "old"} {
		c, err := counters.Get(ctx, id, false)
		require.NoError(t, err)
		assert.Equal(t, 0, c.Count, id)
	}
}
