package match_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/oggyb/campus-match/internal/cache"
	"github.com/oggyb/campus-match/internal/channel"
	"github.com/oggyb/campus-match/internal/chat"
	"github.com/oggyb/campus-match/internal/config"
	"github.com/oggyb/campus-match/internal/db"
	svcErr "github.com/oggyb/campus-match/internal/errors"
	"github.com/oggyb/campus-match/internal/logger"
	"github.com/oggyb/campus-match/internal/match"
	"github.com/oggyb/campus-match/internal/notify"
	"github.com/oggyb/campus-match/internal/quota"
	"github.com/oggyb/campus-match/internal/repository"
	"github.com/oggyb/campus-match/internal/testutil"
	"github.com/oggyb/campus-match/internal/worker"
)

// recorder collects pushes.
type recorder struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (r *recorder) Notify(_ context.Context, n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

func (r *recorder) kinds(userID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, n := range r.sent {
		if n.UserID == userID {
			out = append(out, n.Kind)
		}
	}
	return out
}

type fixture struct {
	db     *gorm.DB
	cache  *cache.RedisCache
	engine *match.Engine
	pool   *worker.Pool
	chat   *chat.Store
	pushes *recorder
	now    time.Time
}

func setup(t *testing.T, users ...string) *fixture {
	t.Helper()
	return newFixture(t, testutil.NewTestDB(t), match.Config{MaxTxAttempts: 4, ConsentThreshold: 30}, users...)
}

func newFixture(t *testing.T, gdb *gorm.DB, cfg match.Config, users ...string) *fixture {
	t.Helper()
	rc, _ := testutil.NewTestRedis(t)
	testutil.CreateUsers(t, gdb, users...)
	log := logger.Discard()

	pool := worker.NewPool(config.WorkerConfig{Workers: 2, QueueSize: 64, TaskTimeout: time.Second, MaxAttempts: 2}, log)
	pool.Start()
	t.Cleanup(pool.Stop)

	f := &fixture{
		db:     gdb,
		cache:  rc,
		pool:   pool,
		chat:   chat.NewStore(gdb, log),
		pushes: &recorder{},
		now:    time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }

	qs := quota.NewService(gdb, rc, quota.Policy{Limit: 5, Location: time.UTC}, log).WithClock(clock)
	prov := channel.NewProvisioner(f.chat, gdb, log)
	f.engine = match.NewEngine(gdb, cfg, qs, rc, prov, f.pushes, pool, log).
		WithClock(clock)
	f.chat.OnNewMessage(f.engine.IncrementMessageCount)
	return f
}

func (f *fixture) user(t *testing.T, id string) db.User {
	t.Helper()
	u, err := repository.NewUserRepository(f.db).Get(context.Background(), id)
	require.NoError(t, err)
	return *u
}

func (f *fixture) activeMatches(t *testing.T) []db.Match {
	t.Helper()
	var out []db.Match
	require.NoError(t, f.db.Where("is_active = ?", true).Find(&out).Error)
	return out
}

func TestSwipeScenario(t *testing.T) {
	ctx := context.Background()
	f := setup(t, "a", "b", "c")

	res, err := f.engine.CreateSwipe(ctx, "a", "b", db.DirectionRight)
	require.NoError(t, err)
	assert.False(t, res.Matched)
	assert.Equal(t, 4, res.Remaining)
	assert.Equal(t, match.MessageRecorded, res.Message)

	res, err = f.engine.CreateSwipe(ctx, "b", "a", db.DirectionRight)
	require.NoError(t, err)
	require.True(t, res.Matched)
	require.NotEmpty(t, res.MatchID)
	assert.Equal(t, match.MessageMatched, res.Message)

	a, b := f.user(t, "a"), f.user(t, "b")
	assert.Contains(t, []string(a.CurrentMatches), res.MatchID)
	assert.Contains(t, []string(b.CurrentMatches), res.MatchID)
	assert.False(t, a.IsAvailable)
	assert.False(t, b.IsAvailable)

	_, err = f.engine.CreateSwipe(ctx, "c", "a", db.DirectionRight)
	assert.ErrorIs(t, err, svcErr.ErrTargetMatched)

	_, err = f.engine.CreateSwipe(ctx, "a", "c", db.DirectionLeft)
	assert.ErrorIs(t, err, svcErr.ErrSwiperMatched)

	// post-commit: channel provisioned, matched message posted, both pushed
	f.pool.Wait()
	m, err := repository.NewMatchRepository(f.db).Get(ctx, res.MatchID)
	require.NoError(t, err)
	assert.Equal(t, channel.ChannelID("a", "b"), m.ChannelID)
	assert.True(t, m.MatchedMessageSent)
	msgs, err := f.chat.Messages(ctx, m.ChannelID, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, channel.MatchedMessage, msgs[0].Text)
	assert.Contains(t, f.pushes.kinds("a"), notify.KindNewMatch)
	assert.Contains(t, f.pushes.kinds("b"), notify.KindNewMatch)
}

// On SQLite the pool has a single connection, so this only checks the
// outcome accounting. engine_integration_test.go runs the same swarm against
// MySQL or Postgres where the row locks and unique index do the work.
func TestConcurrentMutualSwipesCreateOneMatch(t *testing.T) {
	assertMutualSwipeSwarm(t, setup(t, "a", "b"))
}

func assertMutualSwipeSwarm(t *testing.T, f *fixture) {
	t.Helper()
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make(chan *match.SwipeResult, 20)
	for i := 0; i < 10; i++ {
		for _, pair := range [][2]string{{"a", "b"}, {"b", "a"}} {
			wg.Add(1)
			go func(swiper, swiped string) {
				defer wg.Done()
				res, err := f.engine.CreateSwipe(ctx, swiper, swiped, db.DirectionRight)
				if assert.NoError(t, err) {
					results <- res
				}
			}(pair[0], pair[1])
		}
	}
	wg.Wait()
	close(results)

	matched, duplicates := 0, 0
	for r := range results {
		if r.Matched {
			matched++
		}
		if r.Duplicate {
			duplicates++
		}
	}
	assert.Equal(t, 1, matched)
	assert.Equal(t, 18, duplicates)
	assert.Len(t, f.activeMatches(t), 1)

	var records int64
	require.NoError(t, f.db.Model(&db.SwipeRecord{}).Count(&records).Error)
	assert.Equal(t, int64(4), records)
}

func TestQuota(t *testing.T) {
	ctx := context.Background()
	f := setup(t, "me", "t1", "t2", "t3", "t4", "t5", "t6")

	for i, target := range []string{"t1", "t2", "t3", "t4", "t5"} {
		dir := db.DirectionLeft
		if i%2 == 0 {
			dir = db.DirectionRight
		}
		res, err := f.engine.CreateSwipe(ctx, "me", target, dir)
		require.NoError(t, err)
		assert.Equal(t, 5-(i+1), res.Remaining)
	}

	_, err := f.engine.CreateSwipe(ctx, "me", "t6", db.DirectionLeft)
	assert.ErrorIs(t, err, svcErr.ErrQuotaExceeded)
	assert.True(t, svcErr.IsAdmission(err))

	// next calendar day: the stored count is stale before any reset job runs
	f.now = f.now.Add(24 * time.Hour)
	res, err := f.engine.CreateSwipe(ctx, "me", "t6", db.DirectionRight)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Remaining)
}

func TestDuplicateSwipeIsNoop(t *testing.T) {
	ctx := context.Background()
	f := setup(t, "a", "b")

	first, err := f.engine.CreateSwipe(ctx, "a", "b", db.DirectionRight)
	require.NoError(t, err)
	second, err := f.engine.CreateSwipe(ctx, "a", "b", db.DirectionRight)
	require.NoError(t, err)

	assert.True(t, second.Duplicate)
	assert.False(t, second.Matched)
	assert.Equal(t, match.MessageDuplicate, second.Message)
	assert.True(t, first.Swipe.CreatedAt.Equal(second.Swipe.CreatedAt))
	// no quota spent on the retry
	assert.Equal(t, 4, second.Remaining)

	var records int64
	require.NoError(t, f.db.Model(&db.SwipeRecord{}).Where("owner_id = ? AND box = ?", "a", db.BoxOutgoing).Count(&records).Error)
	assert.Equal(t, int64(1), records)
}

func TestRetryAfterMatchIsNoop(t *testing.T) {
	ctx := context.Background()
	f := setup(t, "a", "b")

	_, err := f.engine.CreateSwipe(ctx, "a", "b", db.DirectionRight)
	require.NoError(t, err)
	res, err := f.engine.CreateSwipe(ctx, "b", "a", db.DirectionRight)
	require.NoError(t, err)
	require.True(t, res.Matched)

	// a timed-out client retries the matching swipe
	retry, err := f.engine.CreateSwipe(ctx, "b", "a", db.DirectionRight)
	require.NoError(t, err)
	assert.True(t, retry.Duplicate)
	assert.Len(t, f.activeMatches(t), 1)
}

func TestGuards(t *testing.T) {
	ctx := context.Background()
	f := setup(t, "a")

	_, err := f.engine.CreateSwipe(ctx, "a", "a", db.DirectionRight)
	assert.ErrorIs(t, err, svcErr.ErrSelfSwipe)

	_, err = f.engine.CreateSwipe(ctx, "a", "ghost", db.DirectionRight)
	assert.ErrorIs(t, err, svcErr.ErrUserNotFound)

	_, err = f.engine.CreateSwipe(ctx, "a", "b", "up")
	assert.ErrorIs(t, err, svcErr.ErrInvalidDirection)
}

func TestPremiumUsersKeepSwiping(t *testing.T) {
	ctx := context.Background()
	f := setup(t, "p", "x", "y")
	require.NoError(t, f.db.Model(&db.User{}).Where("id = ?", "p").Update("is_premium", true).Error)

	for _, other := range []string{"x", "y"} {
		_, err := f.engine.CreateSwipe(ctx, other, "p", db.DirectionRight)
		require.NoError(t, err)
		res, err := f.engine.CreateSwipe(ctx, "p", other, db.DirectionRight)
		require.NoError(t, err)
		assert.True(t, res.Matched)
	}

	p := f.user(t, "p")
	assert.True(t, p.IsAvailable)
	assert.Len(t, p.CurrentMatches, 2)
	assert.False(t, f.user(t, "x").IsAvailable)
}

func TestUnmatch(t *testing.T) {
	ctx := context.Background()
	f := setup(t, "a", "b", "c")

	_, err := f.engine.CreateSwipe(ctx, "a", "b", db.DirectionRight)
	require.NoError(t, err)
	res, err := f.engine.CreateSwipe(ctx, "b", "a", db.DirectionRight)
	require.NoError(t, err)
	f.pool.Wait()

	_, err = f.engine.Unmatch(ctx, "c", res.MatchID, match.ReasonUnmatched)
	assert.ErrorIs(t, err, svcErr.ErrNotParticipant)

	m, err := f.engine.Unmatch(ctx, "a", res.MatchID, match.ReasonUnmatched)
	require.NoError(t, err)
	assert.False(t, m.IsActive)
	assert.Nil(t, m.ActivePairKey)
	assert.Equal(t, match.ReasonUnmatched, m.DeactivationReason)

	// idempotent
	again, err := f.engine.Unmatch(ctx, "b", res.MatchID, match.ReasonUnmatched)
	require.NoError(t, err)
	assert.False(t, again.IsActive)
	f.pool.Wait()

	a := f.user(t, "a")
	assert.Empty(t, a.CurrentMatches)
	assert.True(t, a.IsAvailable)
	assert.True(t, f.user(t, "b").IsAvailable)

	assert.ErrorIs(t, f.chat.PostMessage(ctx, m.ChannelID, "a", "hello?"), chat.ErrChannelFrozen)
	assert.Contains(t, f.pushes.kinds("b"), notify.KindUnmatched)

	// both can swipe again
	_, err = f.engine.CreateSwipe(ctx, "c", "a", db.DirectionRight)
	require.NoError(t, err)
}

func TestMessageHookSurfacesConsentPromptOnce(t *testing.T) {
	ctx := context.Background()
	f := setup(t, "a", "b")

	_, err := f.engine.CreateSwipe(ctx, "a", "b", db.DirectionRight)
	require.NoError(t, err)
	res, err := f.engine.CreateSwipe(ctx, "b", "a", db.DirectionRight)
	require.NoError(t, err)
	f.pool.Wait()

	chID := channel.ChannelID("a", "b")
	var wg sync.WaitGroup
	for i := 0; i < 35; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sender := "a"
			if i%2 == 1 {
				sender = "b"
			}
			assert.NoError(t, f.chat.PostMessage(ctx, chID, sender, "msg"))
		}(i)
	}
	wg.Wait()
	f.pool.Wait()

	m, err := repository.NewMatchRepository(f.db).Get(ctx, res.MatchID)
	require.NoError(t, err)
	assert.Equal(t, int64(35), m.MessageCount)
	assert.True(t, m.WarningShown)

	prompts := 0
	for _, k := range append(f.pushes.kinds("a"), f.pushes.kinds("b")...) {
		if k == notify.KindConsentPrompt {
			prompts++
		}
	}
	assert.Equal(t, 2, prompts)

	err = f.engine.IncrementMessageCount(ctx, "missing")
	assert.ErrorIs(t, err, svcErr.ErrMatchNotFound)
}

func TestIncomingLikeCacheFollowsSwipes(t *testing.T) {
	ctx := context.Background()
	f := setup(t, "a", "b", "c")
	key := f.cache.KeyForIncomingLikes("c")
	require.NoError(t, f.cache.Set(ctx, key, "0", time.Hour))

	_, err := f.engine.CreateSwipe(ctx, "a", "c", db.DirectionRight)
	require.NoError(t, err)
	n, ok, err := f.cache.GetInt(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1), n)

	// c passes on a: the cached count is dropped
	_, err = f.engine.CreateSwipe(ctx, "c", "a", db.DirectionLeft)
	require.NoError(t, err)
	_, ok, err = f.cache.GetInt(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}
