package jobs_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/campus-match/internal/config"
	"github.com/oggyb/campus-match/internal/db"
	"github.com/oggyb/campus-match/internal/jobs"
	"github.com/oggyb/campus-match/internal/logger"
	"github.com/oggyb/campus-match/internal/notify"
	"github.com/oggyb/campus-match/internal/quota"
	"github.com/oggyb/campus-match/internal/repository"
	"github.com/oggyb/campus-match/internal/testutil"
)

func TestRunOnceResetsAndNotifiesOncePerDay(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.NewTestDB(t)
	rc, mr := testutil.NewTestRedis(t)
	log := logger.Discard()

	qs := quota.NewService(gdb, rc, quota.Policy{Limit: 5, Location: time.UTC}, log)
	job, err := jobs.NewDailyReset(config.JobsConfig{ResetAt: "00:00"}, qs, rc, notify.NewRedisOutbox(rc), log)
	require.NoError(t, err)

	now := time.Date(2026, 3, 10, 0, 0, 1, 0, time.UTC)
	counters := repository.NewCounterRepository(gdb)
	require.NoError(t, counters.Put(ctx, db.SwipeCounter{UserID: "full", Count: 5, ResetDate: now.Add(-time.Hour)}))
	require.NoError(t, counters.Put(ctx, db.SwipeCounter{UserID: "light", Count: 1, ResetDate: now.Add(-time.Hour)}))

	res, err := job.RunOnce(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, jobs.Result{Day: "20260310", Ran: true, Notified: 1}, res)

	c, err := counters.Get(ctx, "full", false)
	require.NoError(t, err)
	assert.Equal(t, 0, c.Count)

	items, err := mr.List(notify.OutboxKey)
	require.NoError(t, err)
	require.Len(t, items, 1)
	var n notify.Notification
	require.NoError(t, json.Unmarshal([]byte(items[0]), &n))
	assert.Equal(t, "full", n.UserID)
	assert.Equal(t, notify.KindSwipesReset, n.Kind)

	// a second replica loses the claim
	res, err = job.RunOnce(ctx, now.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, res.Ran)
	items, _ = mr.List(notify.OutboxKey)
	assert.Len(t, items, 1)
}

func TestNextRunFollowsTimezone(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	gdb := testutil.NewTestDB(t)
	rc, _ := testutil.NewTestRedis(t)
	log := logger.Discard()

	qs := quota.NewService(gdb, rc, quota.Policy{Limit: 5, Location: loc}, log)
	job, err := jobs.NewDailyReset(config.JobsConfig{ResetAt: "00:00"}, qs, rc, notify.LogNotifier{Log: log}, log)
	require.NoError(t, err)

	// 03:30 UTC on March 10th is still March 9th in New York
	next := job.Next(time.Date(2026, 3, 10, 3, 30, 0, 0, time.UTC))
	assert.True(t, next.Equal(time.Date(2026, 3, 10, 4, 0, 0, 0, time.UTC)), next)

	next = job.Next(time.Date(2026, 3, 10, 4, 0, 0, 0, time.UTC))
	assert.True(t, next.Equal(time.Date(2026, 3, 11, 4, 0, 0, 0, time.UTC)), next)
}

func TestRunStopsWithContext(t *testing.T) {
	gdb := testutil.NewTestDB(t)
	rc, _ := testutil.NewTestRedis(t)
	log := logger.Discard()
	qs := quota.NewService(gdb, rc, quota.Policy{Limit: 5, Location: time.UTC}, log)
	job, err := jobs.NewDailyReset(config.JobsConfig{ResetAt: "03:00"}, qs, rc, notify.LogNotifier{Log: log}, log)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, job.Run(ctx), context.Canceled)

	_, err = jobs.NewDailyReset(config.JobsConfig{ResetAt: "25:99"}, qs, rc, notify.LogNotifier{Log: log}, log)
	assert.Error(t, err)
}
