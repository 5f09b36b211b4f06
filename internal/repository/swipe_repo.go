package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/campus-match/internal/db"
	svcErr "github.com/oggyb/campus-match/internal/errors"
	"github.com/oggyb/campus-match/internal/utils/pagination"
)

// SwipeRepository provides data access methods for the swipe ledger.
// Every swipe is stored twice: an outgoing record under the swiper and an
// incoming record under the swiped user.
type SwipeRepository struct {
	db *gorm.DB
}

// NewSwipeRepository creates a new repository bound to the given DB connection
// or transaction.
func NewSwipeRepository(database *gorm.DB) *SwipeRepository {
	return &SwipeRepository{db: database}
}

// GetOutgoing returns swiper's outgoing record on swiped, or nil if none.
// With lock=true the read takes a row lock (no-op on SQLite).
//
// Called with the arguments reversed it is the lookup for mutual match
// detection, and must then be a locking read inside the swipe transaction.
func (r *SwipeRepository) GetOutgoing(
	ctx context.Context,
	swiperID, swipedID string,
	lock bool,
) (*db.SwipeRecord, error) {
	q := r.db.WithContext(ctx)
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var rec db.SwipeRecord
	err := q.
		Where("owner_id = ? AND other_id = ? AND box = ?", swiperID, swipedID, db.BoxOutgoing).
		Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CreateMirrored inserts the outgoing and incoming records of one swipe.
//
// A second swipe on the same pair fails with gorm.ErrDuplicatedKey (when the
// connection translates errors): swipes are write-once.
func (r *SwipeRepository) CreateMirrored(
	ctx context.Context,
	swiperID, swipedID, direction string,
	at time.Time,
) ([]db.SwipeRecord, error) {
	records := db.MirroredSwipe(swiperID, swipedID, direction, at)
	if err := r.db.WithContext(ctx).Create(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// ListIncomingLikes returns the users who swiped right on userID.
//
// Behavior:
//   - Only incoming records with direction = right are returned.
//   - Excludes users that userID explicitly swiped left on.
//   - Ordered by created_at DESC, other_id DESC.
//   - Supports cursor-based pagination via paginationToken.
//
// Example:
//
//	repo.ListIncomingLikes(ctx, "u42", nil, 20) // first 20 people who liked u42
func (r *SwipeRepository) ListIncomingLikes(
	ctx context.Context,
	userID string,
	paginationToken *string,
	limit int,
) ([]db.SwipeRecord, *string, error) {
	return r.listIncoming(ctx, userID, paginationToken, limit, `
		NOT EXISTS (
			SELECT 1 FROM swipe_records s2
			WHERE s2.owner_id = s.owner_id
			  AND s2.other_id = s.other_id
			  AND s2.box = 'outgoing'
			  AND s2.direction = 'left'
		)`)
}

// ListNewIncomingLikes returns users who swiped right on userID and whom
// userID has not swiped on yet in either direction.
//
// Example:
//
//	repo.ListNewIncomingLikes(ctx, "u42", nil, 20) // pending decisions for u42
func (r *SwipeRepository) ListNewIncomingLikes(
	ctx context.Context,
	userID string,
	paginationToken *string,
	limit int,
) ([]db.SwipeRecord, *string, error) {
	return r.listIncoming(ctx, userID, paginationToken, limit, `
		NOT EXISTS (
			SELECT 1 FROM swipe_records s2
			WHERE s2.owner_id = s.owner_id
			  AND s2.other_id = s.other_id
			  AND s2.box = 'outgoing'
		)`)
}

func (r *SwipeRepository) listIncoming(
	ctx context.Context,
	userID string,
	paginationToken *string,
	limit int,
	exclusion string,
) ([]db.SwipeRecord, *string, error) {
	var records []db.SwipeRecord

	cursor, err := pagination.Decode(getString(paginationToken))
	if err != nil {
		return nil, nil, svcErr.Wrap(svcErr.ErrBadPageToken, err)
	}

	query := r.db.WithContext(ctx).
		Table("swipe_records s").
		Where("s.owner_id = ? AND s.box = ? AND s.direction = ?", userID, db.BoxIncoming, db.DirectionRight).
		Where(exclusion).
		Order("s.created_at DESC, s.other_id DESC").
		Limit(limit + 1)

	// apply cursor
	if !cursor.IsZero() {
		ts := time.UnixMilli(cursor.CreatedUnix).UTC()
		query = query.Where(
			"(s.created_at < ? OR (s.created_at = ? AND s.other_id < ?))",
			ts, ts, cursor.UserID,
		)
	}

	if err := query.Find(&records).Error; err != nil {
		return nil, nil, err
	}

	// pagination: build next cursor if needed
	var nextToken *string
	if len(records) > limit {
		last := records[limit-1]
		token, _ := pagination.Encode(pagination.Cursor{
			UserID:      last.OtherID,
			CreatedUnix: last.CreatedAt.UnixMilli(),
		})
		nextToken = &token
		records = records[:limit]
	}

	return records, nextToken, nil
}

// CountIncomingLikes returns how many users swiped right on userID,
// excluding the ones userID swiped left on.
// Used in conjunction with Redis cache (DB is fallback).
func (r *SwipeRepository) CountIncomingLikes(
	ctx context.Context,
	userID string,
) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table("swipe_records s").
		Where("s.owner_id = ? AND s.box = ? AND s.direction = ?", userID, db.BoxIncoming, db.DirectionRight).
		Where(`
			NOT EXISTS (
				SELECT 1 FROM swipe_records s2
				WHERE s2.owner_id = s.owner_id
				  AND s2.other_id = s.other_id
				  AND s2.box = 'outgoing'
				  AND s2.direction = 'left'
			)`).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// getString safely dereferences a string pointer for pagination tokens.
func getString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
