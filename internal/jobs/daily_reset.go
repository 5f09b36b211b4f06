// Package jobs holds scheduled background work.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/oggyb/campus-match/internal/cache"
	"github.com/oggyb/campus-match/internal/config"
	"github.com/oggyb/campus-match/internal/notify"
	"github.com/oggyb/campus-match/internal/quota"
)

// claimTTL outlives one day so a slow replica cannot re-run yesterday.
const claimTTL = 26 * time.Hour

// DailyReset zeroes swipe counters once per day and tells users who were
// close to their limit that they can swipe again.
//
// Several replicas may run it; the day is claimed in Redis so only one of
// them resets and notifies.
type DailyReset struct {
	quota    *quota.Service
	cache    *cache.RedisCache
	notifier notify.Notifier
	hour     int
	minute   int
	log      *slog.Logger
	now      func() time.Time
}

// Result describes one RunOnce.
type Result struct {
	Day      string
	Ran      bool
	Notified int
}

func NewDailyReset(cfg config.JobsConfig, quotaSvc *quota.Service, rc *cache.RedisCache, notifier notify.Notifier, log *slog.Logger) (*DailyReset, error) {
	at, err := time.Parse("15:04", cfg.ResetAt)
	if err != nil {
		return nil, fmt.Errorf("invalid JOBS_RESET_AT %q: %w", cfg.ResetAt, err)
	}
	return &DailyReset{
		quota:    quotaSvc,
		cache:    rc,
		notifier: notifier,
		hour:     at.Hour(),
		minute:   at.Minute(),
		log:      log.With("job", "daily-reset"),
		now:      time.Now,
	}, nil
}

// WithClock overrides the time source. Tests only.
func (d *DailyReset) WithClock(now func() time.Time) *DailyReset {
	d.now = now
	return d
}

// Run blocks until ctx is done, firing RunOnce at the configured wall-clock
// time every day.
func (d *DailyReset) Run(ctx context.Context) error {
	for {
		next := d.Next(d.now())
		d.log.Debug("next run scheduled", "at", next)

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		res, err := d.RunOnce(ctx, d.now())
		if err != nil {
			d.log.Error("daily reset failed", "err", err)
			continue
		}
		if !res.Ran {
			d.log.Info("daily reset already claimed", "day", res.Day)
		}
	}
}

// Next returns the first run time strictly after now.
func (d *DailyReset) Next(now time.Time) time.Time {
	loc := d.quota.Policy.Location
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), d.hour, d.minute, 0, 0, loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, d.hour, d.minute, 0, 0, loc)
	}
	return next
}

// RunOnce resets counters for the day containing now, unless another run
// already claimed that day.
func (d *DailyReset) RunOnce(ctx context.Context, now time.Time) (Result, error) {
	res := Result{Day: d.quota.Policy.DayKey(now)}
	key := d.cache.KeyForDailyReset(res.Day)

	claimed, err := d.cache.Claim(ctx, key, claimTTL)
	if err != nil {
		return res, fmt.Errorf("claim %s: %w", key, err)
	}
	if !claimed {
		return res, nil
	}

	users, err := d.quota.ResetAll(ctx, now)
	if err != nil {
		if delErr := d.cache.Del(ctx, key); delErr != nil {
			d.log.Warn("release claim failed", "key", key, "err", delErr)
		}
		return res, err
	}
	res.Ran = true

	for _, userID := range users {
		if err := d.notifier.Notify(ctx, notify.SwipesReset(userID)); err != nil {
			d.log.Warn("swipes reset push failed", "user", userID, "err", err)
			continue
		}
		res.Notified++
	}
	d.log.Info("daily reset done", "day", res.Day, "notified", res.Notified)
	return res, nil
}
