// Package match is the transactional core: it records swipes, detects mutual
// right swipes and creates matches, and tears matches down again.
//
// Everything that must hold under concurrent swiping (quota, write-once
// swipes, one active match per pair and per non-premium user) is decided
// inside one database transaction. Chat provisioning and pushes run after
// commit on the side-effect queue and never fail the swipe.
package match

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/oggyb/campus-match/internal/cache"
	"github.com/oggyb/campus-match/internal/channel"
	"github.com/oggyb/campus-match/internal/db"
	svcErr "github.com/oggyb/campus-match/internal/errors"
	"github.com/oggyb/campus-match/internal/notify"
	"github.com/oggyb/campus-match/internal/quota"
	"github.com/oggyb/campus-match/internal/repository"
	"github.com/oggyb/campus-match/internal/worker"
)

// Result messages returned with a swipe.
const (
	MessageRecorded  = "Swipe recorded"
	MessageMatched   = "It's a match!"
	MessageDuplicate = "Swipe already recorded"
)

// Deactivation reasons stored on a match.
const (
	ReasonUnmatched = "unmatched"
	ReasonDeclined  = "declined"
)

// Dispatcher accepts post-commit side effects. *worker.Pool satisfies it.
type Dispatcher interface {
	Submit(t worker.Task) error
}

// SwipeResult is the outcome of CreateSwipe.
type SwipeResult struct {
	Message string
	// Swipe is the swiper's outgoing record. On a duplicate it is the record
	// stored by the first call.
	Swipe     db.SwipeRecord
	Matched   bool
	MatchID   string
	Duplicate bool
	Remaining int
}

type Config struct {
	// MaxTxAttempts bounds how often a swipe transaction is retried on contention.
	MaxTxAttempts uint64
	// ConsentThreshold is the message count at which the consent prompt surfaces.
	ConsentThreshold int
}

type Engine struct {
	db       *gorm.DB
	cfg      Config
	quota    *quota.Service
	cache    *cache.RedisCache
	channels *channel.Provisioner
	notifier notify.Notifier
	tasks    Dispatcher
	log      *slog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

func NewEngine(
	database *gorm.DB,
	cfg Config,
	quotaSvc *quota.Service,
	rc *cache.RedisCache,
	channels *channel.Provisioner,
	notifier notify.Notifier,
	tasks Dispatcher,
	log *slog.Logger,
) *Engine {
	if cfg.MaxTxAttempts == 0 {
		cfg.MaxTxAttempts = 1
	}
	return &Engine{
		db:       database,
		cfg:      cfg,
		quota:    quotaSvc,
		cache:    rc,
		channels: channels,
		notifier: notifier,
		tasks:    tasks,
		log:      log,
		tracer:   otel.Tracer("github.com/oggyb/campus-match/internal/match"),
		now:      time.Now,
	}
}

// WithClock overrides the time source. Tests only.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// swipeOutcome is what the transaction decided, consumed after commit.
type swipeOutcome struct {
	result  SwipeResult
	match   *db.Match
	counter db.SwipeCounter
	// reverse is the swiped user's earlier swipe on the swiper, if any.
	reverse *db.SwipeRecord
}

// CreateSwipe records swiperID's decision on swipedID and creates a match
// when both sides swiped right.
//
// Guards, in order:
//   - self-swipe and unknown direction are invalid arguments
//   - both users must exist
//   - a repeated swipe on the same target is a no-op (Duplicate=true)
//   - non-premium swiper and target must not be in an active match
//   - the swiper must have quota left today
//
// Only the second of two mutual right swipes creates the match. Contention
// errors are retried up to Config.MaxTxAttempts and then surface as
// svcErr.ErrContention.
func (e *Engine) CreateSwipe(ctx context.Context, swiperID, swipedID, direction string) (*SwipeResult, error) {
	ctx, span := e.tracer.Start(ctx, "match.CreateSwipe", trace.WithAttributes(
		attribute.String("swipe.swiper", swiperID),
		attribute.String("swipe.swiped", swipedID),
		attribute.String("swipe.direction", direction),
	))
	defer span.End()

	if direction != db.DirectionLeft && direction != db.DirectionRight {
		return nil, svcErr.ErrInvalidDirection
	}
	if swiperID == swipedID {
		return nil, svcErr.ErrSelfSwipe
	}

	var out *swipeOutcome
	attempts := 0
	err := e.retry(ctx, func() error {
		attempts++
		now := e.now().UTC().Truncate(time.Millisecond)
		return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			o, err := e.swipeTx(ctx, tx, swiperID, swipedID, direction, now)
			out = o
			return err
		})
	})
	span.SetAttributes(attribute.Int("swipe.tx_attempts", attempts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.Bool("swipe.matched", out.result.Matched),
		attribute.Bool("swipe.duplicate", out.result.Duplicate),
	)
	if !out.result.Duplicate {
		e.afterSwipe(ctx, out)
	}
	return &out.result, nil
}

func (e *Engine) swipeTx(
	ctx context.Context,
	tx *gorm.DB,
	swiperID, swipedID, direction string,
	now time.Time,
) (*swipeOutcome, error) {
	users := repository.NewUserRepository(tx)
	swipes := repository.NewSwipeRepository(tx)
	matches := repository.NewMatchRepository(tx)
	counters := repository.NewCounterRepository(tx)

	// reads first, in a fixed lock order: users, swipes, counter
	swiper, swiped, err := users.LockPair(ctx, swiperID, swipedID)
	if err != nil {
		return nil, err
	}

	existing, err := swipes.GetOutgoing(ctx, swiperID, swipedID, true)
	if err != nil {
		return nil, err
	}
	counter, err := counters.Get(ctx, swiperID, true)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &swipeOutcome{result: SwipeResult{
			Message:   MessageDuplicate,
			Swipe:     *existing,
			Duplicate: true,
			Remaining: e.quota.Policy.Admit(counter, now).Remaining,
		}}, nil
	}

	if !swiper.IsPremium {
		active, err := matches.FindActiveByUser(ctx, swiperID)
		if err != nil {
			return nil, err
		}
		if active != nil {
			return nil, svcErr.ErrSwiperMatched
		}
	}
	if !swiped.IsPremium {
		active, err := matches.FindActiveByUser(ctx, swipedID)
		if err != nil {
			return nil, err
		}
		if active != nil {
			return nil, svcErr.ErrTargetMatched
		}
	}

	if !e.quota.Policy.Admit(counter, now).Allowed {
		return nil, svcErr.ErrQuotaExceeded
	}

	reverse, err := swipes.GetOutgoing(ctx, swipedID, swiperID, true)
	if err != nil {
		return nil, err
	}

	out := &swipeOutcome{reverse: reverse}
	if direction == db.DirectionRight && reverse != nil && reverse.Direction == db.DirectionRight {
		m, err := e.createMatch(ctx, users, matches, swiper, swiped, now)
		if err != nil {
			return nil, err
		}
		out.match = m
	}

	records, err := swipes.CreateMirrored(ctx, swiperID, swipedID, direction, now)
	if err != nil {
		return nil, err
	}

	out.counter = e.quota.Policy.Next(counter, now)
	if err := counters.Put(ctx, out.counter); err != nil {
		return nil, err
	}

	out.result = SwipeResult{
		Message:   MessageRecorded,
		Swipe:     records[0],
		Remaining: e.quota.Policy.Admit(out.counter, now).Remaining,
	}
	if out.match != nil {
		out.result.Message = MessageMatched
		out.result.Matched = true
		out.result.MatchID = out.match.ID
	}
	return out, nil
}

func (e *Engine) createMatch(
	ctx context.Context,
	users *repository.UserRepository,
	matches *repository.MatchRepository,
	swiper, swiped *db.User,
	now time.Time,
) (*db.Match, error) {
	// Premium pairs skip the active-match guard, so an imported or earlier
	// match between them may still be active.
	if existing, err := matches.FindActiveBetween(ctx, swiper.ID, swiped.ID); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	a, b, key := db.PairKey(swiper.ID, swiped.ID)
	m := &db.Match{
		ID:            uuid.NewString(),
		UserAID:       a,
		UserBID:       b,
		ActivePairKey: &key,
		IsActive:      true,
		MatchDate:     now,
	}
	if err := matches.Create(ctx, m); err != nil {
		return nil, err
	}

	for _, u := range []*db.User{swiper, swiped} {
		u.AddMatch(m.ID)
		if !u.IsPremium {
			u.IsAvailable = false
		}
		if err := users.SaveMembership(ctx, u); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (e *Engine) afterSwipe(ctx context.Context, out *swipeOutcome) {
	swipe := out.result.Swipe
	e.quota.Record(ctx, out.counter)

	// likes:count:{user} mirrors CountIncomingLikes, which hides people the
	// owner passed on.
	switch {
	case swipe.Direction == db.DirectionRight && (out.reverse == nil || out.reverse.Direction == db.DirectionRight):
		if err := e.cache.IncrIfExists(ctx, e.cache.KeyForIncomingLikes(swipe.OtherID), time.Hour); err != nil {
			e.log.Warn("incoming likes cache bump failed", "user", swipe.OtherID, "err", err)
		}
	case swipe.Direction == db.DirectionLeft && out.reverse != nil && out.reverse.Direction == db.DirectionRight:
		if err := e.cache.Del(ctx, e.cache.KeyForIncomingLikes(swipe.OwnerID)); err != nil {
			e.log.Warn("incoming likes cache drop failed", "user", swipe.OwnerID, "err", err)
		}
	}

	if out.match == nil {
		return
	}
	m := *out.match
	e.log.Info("match created", "match", m.ID, "user_a", m.UserAID, "user_b", m.UserBID)

	e.submit(worker.Task{Name: "provision-channel", Run: func(ctx context.Context) error {
		_, err := e.channels.Provision(ctx, &m)
		return err
	}})
	for _, userID := range []string{m.UserAID, m.UserBID} {
		e.push(notify.NewMatch(userID, m.ID))
	}
}

// Unmatch deactivates matchID on behalf of userID. Deactivating an inactive
// match is a no-op. Membership and availability of both users are updated
// in the same transaction; the chat channel is frozen afterwards.
func (e *Engine) Unmatch(ctx context.Context, userID, matchID, reason string) (*db.Match, error) {
	ctx, span := e.tracer.Start(ctx, "match.Unmatch", trace.WithAttributes(
		attribute.String("match.id", matchID),
		attribute.String("match.reason", reason),
	))
	defer span.End()

	var (
		m       *db.Match
		changed bool
	)
	err := e.retry(ctx, func() error {
		changed = false
		return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			matches := repository.NewMatchRepository(tx)
			users := repository.NewUserRepository(tx)

			peek, err := matches.Get(ctx, matchID)
			if err != nil {
				return err
			}
			if !peek.HasUser(userID) {
				return svcErr.ErrNotParticipant
			}

			// users before the match row, the same order CreateSwipe locks in
			locked, err := users.Lock(ctx, peek.UserAID, peek.UserBID)
			if err != nil {
				return err
			}
			if m, err = matches.GetForUpdate(ctx, matchID); err != nil {
				return err
			}
			if !m.IsActive {
				return nil
			}

			now := e.now().UTC()
			m.IsActive = false
			m.ActivePairKey = nil
			m.DeactivatedAt = &now
			m.DeactivationReason = reason
			if err := matches.Save(ctx, m); err != nil {
				return err
			}

			for _, id := range []string{m.UserAID, m.UserBID} {
				u := locked[id]
				if u == nil {
					continue
				}
				u.RemoveMatch(m.ID)
				u.IsAvailable = u.IsPremium || len(u.CurrentMatches) == 0
				if err := users.SaveMembership(ctx, u); err != nil {
					return err
				}
			}
			changed = true
			return nil
		})
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}
	if !changed {
		return m, nil
	}

	e.log.Info("match deactivated", "match", m.ID, "by", userID, "reason", reason)
	frozen := *m
	e.submit(worker.Task{Name: "freeze-channel", Run: func(ctx context.Context) error {
		return e.channels.Freeze(ctx, &frozen)
	}})
	if other, ok := m.OtherUser(userID); ok {
		e.push(notify.Unmatched(other, m.ID))
	}
	return m, nil
}

// IncrementMessageCount is the chat layer's new-message hook. The count is
// added atomically; the first increment that reaches the consent threshold
// pushes the consent prompt to every participant who has not consented.
func (e *Engine) IncrementMessageCount(ctx context.Context, matchID string) error {
	matches := repository.NewMatchRepository(e.db)

	ok, err := matches.IncrementMessageCount(ctx, matchID)
	if err != nil {
		return err
	}
	if !ok {
		m, err := matches.Get(ctx, matchID)
		if err != nil {
			return err
		}
		if !m.IsActive {
			return svcErr.ErrMatchInactive
		}
		return svcErr.ErrContention
	}

	claimed, err := matches.ClaimConsentPrompt(ctx, matchID, e.cfg.ConsentThreshold)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}

	m, err := matches.Get(ctx, matchID)
	if err != nil {
		return err
	}
	e.log.Info("consent prompt surfaced", "match", m.ID, "messages", m.MessageCount)
	for _, userID := range []string{m.UserAID, m.UserBID} {
		if !m.ConsentOf(userID) {
			e.push(notify.ConsentPrompt(userID, m.ID))
		}
	}
	return nil
}

// retry runs op until it succeeds, fails with a non-retryable error, or
// MaxTxAttempts is used up.
func (e *Engine) retry(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond

	err := backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if !svcErr.IsRetryableDB(err) {
			return backoff.Permanent(err)
		}
		e.log.Debug("transaction contention, retrying", "err", err)
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(b, e.cfg.MaxTxAttempts-1), ctx))

	if err != nil && svcErr.IsRetryableDB(err) {
		return svcErr.Wrap(svcErr.ErrContention, err)
	}
	return err
}

func (e *Engine) submit(t worker.Task) {
	if err := e.tasks.Submit(t); err != nil {
		e.log.Warn("side effect not queued", "task", t.Name, "err", err)
	}
}

func (e *Engine) push(n notify.Notification) {
	e.submit(worker.Task{Name: "push:" + n.Kind, Run: func(ctx context.Context) error {
		return e.notifier.Notify(ctx, n)
	}})
}
