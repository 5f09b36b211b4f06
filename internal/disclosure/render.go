package disclosure

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/oggyb/campus-match/internal/assets"
	"github.com/oggyb/campus-match/internal/db"
	svcErr "github.com/oggyb/campus-match/internal/errors"
	"github.com/oggyb/campus-match/internal/repository"
)

// maxEdge bounds stored renditions; larger uploads are downscaled first.
const maxEdge = 1440

// Renderer produces the blurred derivatives of an upload.
type Renderer struct {
	// MaxSigma is the Gaussian sigma of the 100% step.
	MaxSigma float64
	// BaselineBlur is the blur percent of the theatrical asset.
	BaselineBlur float64
}

// Rendered holds every derivative of one photo.
type Rendered struct {
	Original image.Image
	Blurred  image.Image
	Ladder   map[int]image.Image
}

func (r Renderer) Render(img image.Image) Rendered {
	b := img.Bounds()
	if b.Dx() > maxEdge || b.Dy() > maxEdge {
		img = imaging.Fit(img, maxEdge, maxEdge, imaging.Lanczos)
	}

	out := Rendered{
		Original: img,
		Blurred:  imaging.Blur(img, r.sigma(r.BaselineBlur)),
		Ladder:   make(map[int]image.Image, len(LadderSteps)),
	}
	for _, step := range LadderSteps {
		out.Ladder[step] = imaging.Blur(img, r.sigma(float64(step)))
	}
	return out
}

func (r Renderer) sigma(percent float64) float64 {
	return r.MaxSigma * percent / 100
}

// Uploader decodes an upload, renders the ladder at upload time and stores
// every rendition before the photo row is written.
type Uploader struct {
	renderer Renderer
	store    assets.Store
	photos   *repository.PhotoRepository
	users    *repository.UserRepository
	log      *slog.Logger
}

func NewUploader(database *gorm.DB, store assets.Store, renderer Renderer, log *slog.Logger) *Uploader {
	return &Uploader{
		renderer: renderer,
		store:    store,
		photos:   repository.NewPhotoRepository(database),
		users:    repository.NewUserRepository(database),
		log:      log,
	}
}

func (u *Uploader) Upload(ctx context.Context, userID string, data io.Reader) (*db.Photo, error) {
	if _, err := u.users.Get(ctx, userID); err != nil {
		return nil, err
	}

	img, err := imaging.Decode(data, imaging.AutoOrientation(true))
	if err != nil {
		return nil, svcErr.Wrap(svcErr.ErrBadImage, err)
	}
	rendered := u.renderer.Render(img)

	id := uuid.NewString()
	prefix := fmt.Sprintf("photos/%s/%s/", userID, id)
	photo := &db.Photo{
		ID:          id,
		UserID:      userID,
		OriginalKey: prefix + "original.jpg",
		BlurredKey:  prefix + "blurred.jpg",
	}

	if err := u.put(ctx, photo.OriginalKey, rendered.Original); err != nil {
		return nil, err
	}
	if err := u.put(ctx, photo.BlurredKey, rendered.Blurred); err != nil {
		return nil, err
	}
	ladder := make(db.Ladder, len(rendered.Ladder))
	for step, im := range rendered.Ladder {
		key := fmt.Sprintf("%sblur-%d.jpg", prefix, step)
		if err := u.put(ctx, key, im); err != nil {
			return nil, err
		}
		ladder[step] = key
	}
	photo.Ladder = datatypes.NewJSONType(ladder)

	if err := u.photos.Append(ctx, photo); err != nil {
		return nil, err
	}
	u.log.Info("photo uploaded", "user", userID, "photo", id, "position", photo.Position)
	return photo, nil
}

func (u *Uploader) put(ctx context.Context, key string, img image.Image) error {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := u.store.Put(ctx, key, &buf); err != nil {
		return fmt.Errorf("store %s: %w", key, err)
	}
	return nil
}
