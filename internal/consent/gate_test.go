package consent_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/oggyb/campus-match/internal/channel"
	"github.com/oggyb/campus-match/internal/chat"
	"github.com/oggyb/campus-match/internal/config"
	"github.com/oggyb/campus-match/internal/consent"
	"github.com/oggyb/campus-match/internal/db"
	"github.com/oggyb/campus-match/internal/disclosure"
	svcErr "github.com/oggyb/campus-match/internal/errors"
	"github.com/oggyb/campus-match/internal/logger"
	"github.com/oggyb/campus-match/internal/match"
	"github.com/oggyb/campus-match/internal/notify"
	"github.com/oggyb/campus-match/internal/quota"
	"github.com/oggyb/campus-match/internal/repository"
	"github.com/oggyb/campus-match/internal/testutil"
	"github.com/oggyb/campus-match/internal/worker"
)

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

func (r *recorder) count(kind string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.sent {
		if s.Kind == kind {
			n++
		}
	}
	return n
}

type fixture struct {
	db     *gorm.DB
	chat   *chat.Store
	pool   *worker.Pool
	pushes *recorder
	gate   *consent.Gate
	match  *db.Match
}

func setup(t *testing.T, opts consent.Options) *fixture {
	t.Helper()
	ctx := context.Background()
	gdb := testutil.NewTestDB(t)
	rc, _ := testutil.NewTestRedis(t)
	testutil.CreateUsers(t, gdb, "a", "b", "c")
	log := logger.Discard()

	pool := worker.NewPool(config.WorkerConfig{Workers: 2, QueueSize: 64, TaskTimeout: time.Second, MaxAttempts: 2}, log)
	pool.Start()
	t.Cleanup(pool.Stop)

	f := &fixture{db: gdb, chat: chat.NewStore(gdb, log), pool: pool, pushes: &recorder{}}
	prov := channel.NewProvisioner(f.chat, gdb, log)
	qs := quota.NewService(gdb, rc, quota.Policy{Limit: 10, Location: time.UTC}, log)
	engine := match.NewEngine(gdb, match.Config{MaxTxAttempts: 3, ConsentThreshold: 30}, qs, rc, prov, f.pushes, pool, log)
	f.chat.OnNewMessage(engine.IncrementMessageCount)

	policy := disclosure.Policy{Phase1Threshold: 30, Phase2Threshold: 50, Phase2Start: 80, MaxRadius: 25}
	f.gate = consent.NewGate(gdb, policy, opts, prov, engine, f.pushes, pool, log)

	_, err := engine.CreateSwipe(ctx, "a", "b", db.DirectionRight)
	require.NoError(t, err)
	res, err := engine.CreateSwipe(ctx, "b", "a", db.DirectionRight)
	require.NoError(t, err)
	require.True(t, res.Matched)
	pool.Wait()

	f.match = f.reload(t, res.MatchID)
	require.NotEmpty(t, f.match.ChannelID)
	return f
}

func (f *fixture) reload(t *testing.T, id string) *db.Match {
	t.Helper()
	m, err := repository.NewMatchRepository(f.db).Get(context.Background(), id)
	require.NoError(t, err)
	return m
}

func (f *fixture) systemMessages(t *testing.T, text string) int {
	t.Helper()
	msgs, err := f.chat.Messages(context.Background(), f.match.ChannelID, 100)
	require.NoError(t, err)
	n := 0
	for _, m := range msgs {
		if m.System && m.Text == text {
			n++
		}
	}
	return n
}

func TestBothConsentedFiresOnce(t *testing.T) {
	ctx := context.Background()
	f := setup(t, consent.Options{})

	res, err := f.gate.Update(ctx, f.match.ID, "a", true)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.False(t, res.BothConsented)

	res, err = f.gate.Update(ctx, f.match.ID, "a", true)
	require.NoError(t, err)
	assert.False(t, res.BothConsented)

	res, err = f.gate.Update(ctx, f.match.ID, "b", true)
	require.NoError(t, err)
	assert.True(t, res.BothConsented)
	f.pool.Wait()

	_, err = f.gate.Update(ctx, f.match.ID, "b", true)
	require.NoError(t, err)
	f.pool.Wait()

	assert.Equal(t, 1, f.systemMessages(t, consent.BothConsentedMessage))
	assert.Equal(t, 2, f.pushes.count(notify.KindBothConsented))
	assert.True(t, f.reload(t, f.match.ID).BothConsentedNotified)

	_, err = f.gate.Update(ctx, f.match.ID, "c", true)
	assert.ErrorIs(t, err, svcErr.ErrNotParticipant)
}

func TestConsentIsFinal(t *testing.T) {
	ctx := context.Background()
	f := setup(t, consent.Options{DeclineUnmatches: true})

	_, err := f.gate.Update(ctx, f.match.ID, "a", true)
	require.NoError(t, err)

	_, err = f.gate.Update(ctx, f.match.ID, "a", false)
	assert.ErrorIs(t, err, svcErr.ErrConsentFinal)
	assert.True(t, f.reload(t, f.match.ID).IsActive)
}

func TestDeclineUnmatches(t *testing.T) {
	ctx := context.Background()
	f := setup(t, consent.Options{DeclineUnmatches: true})

	res, err := f.gate.Update(ctx, f.match.ID, "b", false)
	require.NoError(t, err)
	assert.True(t, res.Declined)
	f.pool.Wait()

	m := f.reload(t, f.match.ID)
	assert.False(t, m.IsActive)
	assert.Equal(t, "b", m.DeclinedBy)
	assert.Equal(t, match.ReasonDeclined, m.DeactivationReason)

	a, err := repository.NewUserRepository(f.db).Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, a.IsAvailable)
	assert.Empty(t, a.CurrentMatches)

	ch, err := f.chat.Channel(ctx, m.ChannelID)
	require.NoError(t, err)
	assert.True(t, ch.Frozen)
}

func TestDeclineRetryAfterUnmatch(t *testing.T) {
	ctx := context.Background()
	f := setup(t, consent.Options{DeclineUnmatches: true})

	_, err := f.gate.Update(ctx, f.match.ID, "b", false)
	require.NoError(t, err)
	f.pool.Wait()

	res, err := f.gate.Update(ctx, f.match.ID, "b", false)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.Declined)

	// the other participant did not decline, so the match is simply gone
	_, err = f.gate.Update(ctx, f.match.ID, "a", false)
	assert.ErrorIs(t, err, svcErr.ErrMatchInactive)
}

func TestDeclineKeepsMatchFrozen(t *testing.T) {
	ctx := context.Background()
	f := setup(t, consent.Options{DeclineUnmatches: false})

	_, err := f.gate.Update(ctx, f.match.ID, "a", false)
	require.NoError(t, err)
	f.pool.Wait()

	m := f.reload(t, f.match.ID)
	assert.True(t, m.IsActive)
	assert.Equal(t, "a", m.DeclinedBy)

	err = f.chat.PostMessage(ctx, m.ChannelID, "b", "hello?")
	assert.ErrorIs(t, err, chat.ErrChannelFrozen)

	_, err = f.gate.Update(ctx, f.match.ID, "b", true)
	assert.ErrorIs(t, err, svcErr.ErrMatchDeclined)

	// declining again is harmless
	_, err = f.gate.Update(ctx, f.match.ID, "b", false)
	require.NoError(t, err)
}

func TestStatusSurfacesPromptUntilConsent(t *testing.T) {
	ctx := context.Background()
	f := setup(t, consent.Options{})

	for i := 0; i < 29; i++ {
		require.NoError(t, f.chat.PostMessage(ctx, f.match.ChannelID, "a", "hi"))
	}
	st, err := f.gate.Status(ctx, f.match.ID, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(29), st.MessageCount)
	assert.False(t, st.ShouldShowConsentScreen)

	require.NoError(t, f.chat.PostMessage(ctx, f.match.ChannelID, "b", "hey"))
	f.pool.Wait()

	for _, user := range []string{"a", "b"} {
		st, err = f.gate.Status(ctx, f.match.ID, user)
		require.NoError(t, err)
		assert.True(t, st.ShouldShowConsentScreen, user)
	}
	assert.Equal(t, 2, f.pushes.count(notify.KindConsentPrompt))

	_, err = f.gate.Update(ctx, f.match.ID, "a", true)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		require.NoError(t, f.chat.PostMessage(ctx, f.match.ChannelID, "b", "more"))
	}

	st, err = f.gate.Status(ctx, f.match.ID, "a")
	require.NoError(t, err)
	assert.False(t, st.ShouldShowConsentScreen)
	assert.True(t, st.User1Consented)
	assert.False(t, st.BothConsented)
	assert.Equal(t, "a", st.User1ID)

	st, err = f.gate.Status(ctx, f.match.ID, "b")
	require.NoError(t, err)
	assert.True(t, st.ShouldShowConsentScreen)

	_, err = f.gate.Status(ctx, f.match.ID, "c")
	assert.ErrorIs(t, err, svcErr.ErrNotParticipant)
	assert.Equal(t, 2, f.pushes.count(notify.KindConsentPrompt))
}
