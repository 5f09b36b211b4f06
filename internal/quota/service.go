package quota

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/campus-match/internal/cache"
	"github.com/oggyb/campus-match/internal/db"
	"github.com/oggyb/campus-match/internal/repository"
)

// Status is the read-only quota snapshot returned to clients.
type Status struct {
	SwipeCount int
	DailyLimit int
	CanSwipe   bool
}

// Service reads and maintains swipe counters outside the swipe transaction.
// Admission itself is decided inside the transaction with Policy; the cache
// here only serves the UI check.
type Service struct {
	Policy   Policy
	counters *repository.CounterRepository
	cache    *cache.RedisCache
	log      *slog.Logger
	now      func() time.Time
}

func NewService(database *gorm.DB, rc *cache.RedisCache, policy Policy, log *slog.Logger) *Service {
	return &Service{
		Policy:   policy,
		counters: repository.NewCounterRepository(database),
		cache:    rc,
		log:      log,
		now:      time.Now,
	}
}

// WithClock overrides the time source. Tests only.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CountRecentSwipes returns how many swipes userID used today.
//
// Cache-first strategy:
//  1. Attempts to read swipes:count:{user}:{day} from Redis.
//  2. On miss, reads the counter from the DB and applies the lazy reset.
//  3. Stores the DB value until the end of the day, unless Record got there
//     first.
func (s *Service) CountRecentSwipes(ctx context.Context, userID string) (Status, error) {
	now := s.now()
	key := s.cache.KeyForSwipeCount(userID, s.Policy.DayKey(now))

	if n, ok, err := s.cache.GetInt(ctx, key); err == nil && ok {
		return s.status(int(n)), nil
	} else if err != nil {
		s.log.Warn("swipe count cache read failed", "user", userID, "err", err)
	}

	c, err := s.counters.Get(ctx, userID, false)
	if err != nil {
		return Status{}, err
	}
	count := s.Policy.Effective(c, now)

	if _, err := s.cache.SetIfAbsent(ctx, key, strconv.Itoa(count), s.Policy.EndOfDay(now).Sub(now)); err != nil {
		s.log.Warn("swipe count cache write failed", "user", userID, "err", err)
	}
	return s.status(count), nil
}

// Record refreshes the cached count after a committed swipe.
func (s *Service) Record(ctx context.Context, c db.SwipeCounter) {
	key := s.cache.KeyForSwipeCount(c.UserID, s.Policy.DayKey(c.ResetDate))
	ttl := s.Policy.EndOfDay(c.ResetDate).Sub(s.now())
	if ttl <= 0 {
		return
	}
	if err := s.cache.Set(ctx, key, strconv.Itoa(c.Count), ttl); err != nil {
		s.log.Warn("swipe count cache write failed", "user", c.UserID, "err", err)
	}
}

// ResetAll zeroes every counter left over from a previous day and returns
// the users that had at most one swipe left when yesterday ended.
func (s *Service) ResetAll(ctx context.Context, now time.Time) ([]string, error) {
	today := s.Policy.StartOfDay(now)
	near, err := s.counters.ListAtLeast(ctx, max(s.Policy.Limit-1, 1), today.AddDate(0, 0, -1), today)
	if err != nil {
		return nil, err
	}
	n, err := s.counters.ResetBefore(ctx, today, now)
	if err != nil {
		return nil, err
	}
	s.log.Info("swipe counters reset", "rows", n, "near_limit", len(near))

	users := make([]string, 0, len(near))
	for _, c := range near {
		users = append(users, c.UserID)
	}
	return users, nil
}

func (s *Service) status(count int) Status {
	return Status{
		SwipeCount: count,
		DailyLimit: s.Policy.Limit,
		CanSwipe:   count < s.Policy.Limit,
	}
}
