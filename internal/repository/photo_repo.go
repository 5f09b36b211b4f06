package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/oggyb/campus-match/internal/db"
	svcErr "github.com/oggyb/campus-match/internal/errors"
)

// PhotoRepository stores uploaded photos and their blur ladders.
type PhotoRepository struct {
	db *gorm.DB
}

func NewPhotoRepository(database *gorm.DB) *PhotoRepository {
	return &PhotoRepository{db: database}
}

// Append stores p at the next free position of its owner. The owner's user
// row is locked while the position is chosen; a position taken anyway (no
// user row to lock) is retried a few times before the conflict is returned.
func (r *PhotoRepository) Append(ctx context.Context, p *db.Photo) error {
	var err error
	for attempt := 0; attempt < appendAttempts; attempt++ {
		err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if _, err := NewUserRepository(tx).Lock(ctx, p.UserID); err != nil {
				return err
			}
			var next int64
			if err := tx.Model(&db.Photo{}).Where("user_id = ?", p.UserID).Count(&next).Error; err != nil {
				return err
			}
			p.Position = int(next)
			return tx.Create(p).Error
		})
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
	}
	return err
}

const appendAttempts = 3

// GetByPosition returns the photo at index of userID's ordered photos.
func (r *PhotoRepository) GetByPosition(ctx context.Context, userID string, index int) (*db.Photo, error) {
	var p db.Photo
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND position = ?", userID, index).
		Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, svcErr.ErrPhotoNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListByUser returns userID's photos in display order.
func (r *PhotoRepository) ListByUser(ctx context.Context, userID string) ([]db.Photo, error) {
	var out []db.Photo
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("position").
		Find(&out).Error
	return out, err
}
