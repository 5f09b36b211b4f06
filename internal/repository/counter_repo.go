package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/campus-match/internal/db"
)

// CounterRepository stores the per-user daily swipe counters.
type CounterRepository struct {
	db *gorm.DB
}

func NewCounterRepository(database *gorm.DB) *CounterRepository {
	return &CounterRepository{db: database}
}

// Get returns the stored counter or a zero counter for users who never swiped.
func (r *CounterRepository) Get(ctx context.Context, userID string, lock bool) (db.SwipeCounter, error) {
	q := r.db.WithContext(ctx)
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var c db.SwipeCounter
	err := q.Where("user_id = ?", userID).Take(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return db.SwipeCounter{UserID: userID}, nil
	}
	return c, err
}

// Put upserts a counter.
func (r *CounterRepository) Put(ctx context.Context, c db.SwipeCounter) error {
	c.ResetDate = c.ResetDate.UTC()
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"count", "reset_date"}),
		}).
		Create(&c).Error
}

// ListAtLeast returns counters last written in [from, to) with count >= minCount.
func (r *CounterRepository) ListAtLeast(ctx context.Context, minCount int, from, to time.Time) ([]db.SwipeCounter, error) {
	var out []db.SwipeCounter
	err := r.db.WithContext(ctx).
		Where("count >= ? AND reset_date >= ? AND reset_date < ?", minCount, from.UTC(), to.UTC()).
		Order("user_id").
		Find(&out).Error
	return out, err
}

// ResetBefore zeroes the counters last written before cutoff and stamps them
// with at. Counters already written on the current day are left alone.
func (r *CounterRepository) ResetBefore(ctx context.Context, cutoff, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&db.SwipeCounter{}).
		Where("reset_date < ? AND count > ?", cutoff.UTC(), 0).
		Updates(map[string]any{"count": 0, "reset_date": at.UTC()})
	return res.RowsAffected, res.Error
}
