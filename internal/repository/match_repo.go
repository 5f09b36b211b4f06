package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/campus-match/internal/db"
	svcErr "github.com/oggyb/campus-match/internal/errors"
)

// Flag is a fire-once boolean column on matches.
type Flag string

const (
	FlagMatchedMessageSent    Flag = "matched_message_sent"
	FlagBothConsentedNotified Flag = "both_consented_notified"
	FlagWarningShown          Flag = "warning_shown"
)

// MatchRepository provides data access for matches.
type MatchRepository struct {
	db *gorm.DB
}

func NewMatchRepository(database *gorm.DB) *MatchRepository {
	return &MatchRepository{db: database}
}

func (r *MatchRepository) Create(ctx context.Context, m *db.Match) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// Get loads a match by id. Missing matches map to svcErr.ErrMatchNotFound.
func (r *MatchRepository) Get(ctx context.Context, id string) (*db.Match, error) {
	return r.get(ctx, id, false)
}

// GetForUpdate is Get with a row lock, for use inside a transaction.
func (r *MatchRepository) GetForUpdate(ctx context.Context, id string) (*db.Match, error) {
	return r.get(ctx, id, true)
}

func (r *MatchRepository) get(ctx context.Context, id string, lock bool) (*db.Match, error) {
	q := r.db.WithContext(ctx)
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var m db.Match
	err := q.Where("id = ?", id).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, svcErr.ErrMatchNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// FindActiveByUser returns any active match containing userID, or nil.
//
// Served by idx_match_a_active / idx_match_b_active.
func (r *MatchRepository) FindActiveByUser(ctx context.Context, userID string) (*db.Match, error) {
	var m db.Match
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND (user_a_id = ? OR user_b_id = ?)", true, userID, userID).
		Order("match_date DESC").
		Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// FindActiveBetween returns the active match of an unordered pair, or nil.
func (r *MatchRepository) FindActiveBetween(ctx context.Context, x, y string) (*db.Match, error) {
	_, _, key := db.PairKey(x, y)
	var m db.Match
	err := r.db.WithContext(ctx).
		Where("active_pair_key = ?", key).
		Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Save writes every column of a (locked) match.
func (r *MatchRepository) Save(ctx context.Context, m *db.Match) error {
	return r.db.WithContext(ctx).Save(m).Error
}

// IncrementMessageCount adds one to message_count of an active match with a
// single atomic UPDATE, so concurrent message hooks never lose increments.
// Returns false when no active match with that id exists.
func (r *MatchRepository) IncrementMessageCount(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&db.Match{}).
		Where("id = ? AND is_active = ?", id, true).
		UpdateColumn("message_count", gorm.Expr("message_count + ?", 1))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ClaimFlag flips a fire-once flag from false to true. Exactly one caller
// ever observes true for a given match and flag.
func (r *MatchRepository) ClaimFlag(ctx context.Context, id string, flag Flag) (bool, error) {
	return r.claim(r.db.WithContext(ctx).Where("id = ?", id), flag)
}

// ClaimConsentPrompt claims FlagWarningShown once message_count has reached
// threshold on an active match.
func (r *MatchRepository) ClaimConsentPrompt(ctx context.Context, id string, threshold int) (bool, error) {
	q := r.db.WithContext(ctx).
		Where("id = ? AND is_active = ? AND message_count >= ?", id, true, threshold)
	return r.claim(q, FlagWarningShown)
}

func (r *MatchRepository) claim(q *gorm.DB, flag Flag) (bool, error) {
	if err := validFlag(flag); err != nil {
		return false, err
	}
	res := q.Model(&db.Match{}).
		Where(string(flag)+" = ?", false).
		UpdateColumn(string(flag), true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ReleaseFlag undoes a claim whose side effect failed.
func (r *MatchRepository) ReleaseFlag(ctx context.Context, id string, flag Flag) error {
	if err := validFlag(flag); err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Model(&db.Match{}).
		Where("id = ?", id).
		UpdateColumn(string(flag), false).Error
}

func validFlag(flag Flag) error {
	switch flag {
	case FlagMatchedMessageSent, FlagBothConsentedNotified, FlagWarningShown:
		return nil
	}
	return fmt.Errorf("unknown match flag %q", flag)
}

// SetChannelID records the provisioned chat channel.
func (r *MatchRepository) SetChannelID(ctx context.Context, id, channelID string) error {
	return r.db.WithContext(ctx).
		Model(&db.Match{}).
		Where("id = ?", id).
		UpdateColumn("channel_id", channelID).Error
}

// MarkViewed records that userID has opened the match.
func (r *MatchRepository) MarkViewed(ctx context.Context, m *db.Match, userID string) error {
	col := "user_a_viewed"
	if userID == m.UserBID {
		col = "user_b_viewed"
	}
	return r.db.WithContext(ctx).
		Model(&db.Match{}).
		Where("id = ?", m.ID).
		UpdateColumn(col, true).Error
}
