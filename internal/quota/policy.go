// Package quota implements the per-user daily swipe counter.
//
// The stored counter is never trusted on its own: a counter last written
// before the start of the current calendar day (in the configured timezone)
// counts as zero, whether or not the scheduled reset already ran.
package quota

import (
	"time"

	"github.com/oggyb/campus-match/internal/db"
)

// Policy is the daily swipe cap and the timezone that defines a day.
type Policy struct {
	Limit    int
	Location *time.Location
}

// Admission is the outcome of checking a counter against the cap.
type Admission struct {
	Allowed   bool
	Remaining int
	// Count is the effective number of swipes already used today.
	Count int
}

// StartOfDay returns midnight of t's calendar day in the policy timezone.
func (p Policy) StartOfDay(t time.Time) time.Time {
	local := t.In(p.location())
	y, m, d := local.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, p.location())
}

// EndOfDay returns the first instant of the day after t.
func (p Policy) EndOfDay(t time.Time) time.Time {
	return p.StartOfDay(t).AddDate(0, 0, 1)
}

// DayKey formats t's calendar day as yyyymmdd, for cache keys.
func (p Policy) DayKey(t time.Time) string {
	return t.In(p.location()).Format("20060102")
}

// Effective returns the logical count of c at now.
func (p Policy) Effective(c db.SwipeCounter, now time.Time) int {
	if c.ResetDate.Before(p.StartOfDay(now)) {
		return 0
	}
	return c.Count
}

func (p Policy) Admit(c db.SwipeCounter, now time.Time) Admission {
	used := p.Effective(c, now)
	remaining := p.Limit - used
	if remaining < 0 {
		remaining = 0
	}
	return Admission{
		Allowed:   used < p.Limit,
		Remaining: remaining,
		Count:     used,
	}
}

// Next returns c after one accepted swipe at now. ResetDate is stamped with
// now so the lazy reset can tell which day the count belongs to.
func (p Policy) Next(c db.SwipeCounter, now time.Time) db.SwipeCounter {
	return db.SwipeCounter{
		UserID:    c.UserID,
		Count:     p.Effective(c, now) + 1,
		ResetDate: now,
	}
}

func (p Policy) location() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}
