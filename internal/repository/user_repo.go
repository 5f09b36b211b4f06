package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/campus-match/internal/db"
	svcErr "github.com/oggyb/campus-match/internal/errors"
)

// UserRepository reads and updates the match-related fields of users.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(database *gorm.DB) *UserRepository {
	return &UserRepository{db: database}
}

// Get loads one user. Missing users map to svcErr.ErrUserNotFound.
func (r *UserRepository) Get(ctx context.Context, id string) (*db.User, error) {
	var u db.User
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, svcErr.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// LockPair loads and row-locks two users in a single statement. Rows are
// locked in primary key order so two transactions on the same pair can
// never deadlock on each other.
//
// Returns the users in argument order; a missing user maps to
// svcErr.ErrUserNotFound.
func (r *UserRepository) LockPair(ctx context.Context, firstID, secondID string) (*db.User, *db.User, error) {
	users, err := r.Lock(ctx, firstID, secondID)
	if err != nil {
		return nil, nil, err
	}
	first, second := users[firstID], users[secondID]
	if first == nil || second == nil {
		return nil, nil, svcErr.ErrUserNotFound
	}
	return first, second, nil
}

// Lock row-locks the given users in primary key order and returns the ones
// that exist, keyed by id.
func (r *UserRepository) Lock(ctx context.Context, ids ...string) (map[string]*db.User, error) {
	var users []db.User
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id").
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]*db.User, len(users))
	for i := range users {
		out[users[i].ID] = &users[i]
	}
	return out, nil
}

// SaveMembership persists CurrentMatches and IsAvailable.
func (r *UserRepository) SaveMembership(ctx context.Context, u *db.User) error {
	return r.db.WithContext(ctx).
		Model(u).
		Select("current_matches", "is_available").
		Updates(u).Error
}
