package quota_test

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"github.com/oggyb/campus-match/internal/db"
	"github.com/oggyb/campus-match/internal/quota"
)

func newYork(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatal(err)
	}
	return loc
}

func TestEffectiveLazyReset(t *testing.T) {
	loc := newYork(t)
	p := quota.Policy{Limit: 5, Location: loc}
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, loc)

	yesterday := db.SwipeCounter{UserID: "a", Count: 5, ResetDate: now.Add(-10 * time.Hour)}
	assert.Equal(t, 0, p.Effective(yesterday, now))
	assert.True(t, p.Admit(yesterday, now).Allowed)

	today := db.SwipeCounter{UserID: "a", Count: 5, ResetDate: now.Add(-8 * time.Hour)}
	assert.Equal(t, 5, p.Effective(today, now))
	assert.False(t, p.Admit(today, now).Allowed)
	assert.Equal(t, 0, p.Admit(today, now).Remaining)
}

func TestDayBoundaryFollowsTimezone(t *testing.T) {
	loc := newYork(t)
	p := quota.Policy{Limit: 5, Location: loc}

	// 02:30 and 03:30 UTC are both still March 9th in New York (EDT).
	written := time.Date(2026, 3, 10, 2, 30, 0, 0, time.UTC)
	read := time.Date(2026, 3, 10, 3, 30, 0, 0, time.UTC)
	c := db.SwipeCounter{Count: 3, ResetDate: written}

	assert.Equal(t, 3, p.Effective(c, read))
	assert.Equal(t, "20260309", p.DayKey(read))
	assert.Equal(t, 0, p.Effective(c, read.Add(24*time.Hour)))
}

func TestNextStampsResetDate(t *testing.T) {
	p := quota.Policy{Limit: 5, Location: time.UTC}
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	stale := db.SwipeCounter{UserID: "a", Count: 4, ResetDate: now.AddDate(0, 0, -2)}
	next := p.Next(stale, now)

	assert.Equal(t, 1, next.Count)
	assert.Equal(t, now, next.ResetDate)
	assert.Equal(t, "a", next.UserID)
}

func TestQuotaProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	properties.Property("n accepted swipes leave limit-n remaining", prop.ForAll(
		func(limit, k int) bool {
			n := k % (limit + 1)
			p := quota.Policy{Limit: limit, Location: time.UTC}
			c := db.SwipeCounter{UserID: "u"}
			for i := 0; i < n; i++ {
				if !p.Admit(c, now).Allowed {
					return false
				}
				c = p.Next(c, now)
			}
			adm := p.Admit(c, now)
			return adm.Remaining == limit-n && adm.Allowed == (n < limit)
		},
		gen.IntRange(1, 20),
		gen.IntRange(0, 1000),
	))

	properties.Property("the swipe after the limit is always rejected", prop.ForAll(
		func(limit int) bool {
			p := quota.Policy{Limit: limit, Location: time.UTC}
			c := db.SwipeCounter{UserID: "u"}
			for i := 0; i < limit; i++ {
				c = p.Next(c, now)
			}
			return !p.Admit(c, now).Allowed
		},
		gen.IntRange(1, 50),
	))

	properties.Property("a counter from a previous day reads as zero", prop.ForAll(
		func(count int, daysAgo int) bool {
			p := quota.Policy{Limit: 5, Location: time.UTC}
			c := db.SwipeCounter{Count: count, ResetDate: now.AddDate(0, 0, -daysAgo)}
			return p.Effective(c, now) == 0
		},
		gen.IntRange(0, 100),
		gen.IntRange(1, 400),
	))

	properties.TestingRun(t)
}
