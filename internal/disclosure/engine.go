package disclosure

import (
	"context"
	"log/slog"

	"gorm.io/gorm"

	"github.com/oggyb/campus-match/internal/assets"
	"github.com/oggyb/campus-match/internal/db"
	"github.com/oggyb/campus-match/internal/repository"
)

// Clarity is the continuous-backend answer for one photo.
type Clarity struct {
	URL            string
	ClarityPercent float64
	// Radius is the blur the client still applies on top of the asset.
	Radius       int
	Phase        Phase
	MessageCount int64
}

// BlurredImage is the ladder-backend answer for one photo.
type BlurredImage struct {
	URL          string
	BlurLevel    int
	MessageCount int64
}

// Image is one entry of the batched continuous-backend listing.
type Image struct {
	URL           string
	BlurLevel     int
	MessageCount  int64
	BothConsented bool
}

// Engine serves photo URLs at the disclosure a viewer is entitled to.
// Match state is read from the database on every call; nothing the client
// sends about the match is trusted.
type Engine struct {
	policy     Policy
	photos     *repository.PhotoRepository
	matches    *repository.MatchRepository
	signer     *assets.Signer
	ladder     Backend
	continuous Backend
	log        *slog.Logger
}

func NewEngine(database *gorm.DB, policy Policy, signer *assets.Signer, log *slog.Logger) *Engine {
	return &Engine{
		policy:     policy,
		photos:     repository.NewPhotoRepository(database),
		matches:    repository.NewMatchRepository(database),
		signer:     signer,
		ladder:     LadderBackend{},
		continuous: ContinuousBackend{},
		log:        log,
	}
}

// Policy returns the policy the engine assesses with.
func (e *Engine) Policy() Policy { return e.policy }

// ResolveClarity returns the asset and client blur for targetID's photo at
// index as seen by viewerID.
func (e *Engine) ResolveClarity(ctx context.Context, viewerID, targetID string, index int) (*Clarity, error) {
	photo, err := e.photos.GetByPosition(ctx, targetID, index)
	if err != nil {
		return nil, err
	}
	st, _, err := e.state(ctx, viewerID, targetID)
	if err != nil {
		return nil, err
	}
	r := e.continuous.Render(st, *photo)
	return &Clarity{
		URL:            e.signer.URL(r.Key),
		ClarityPercent: st.ClarityPercent,
		Radius:         r.Level,
		Phase:          st.Phase,
		MessageCount:   st.MessageCount,
	}, nil
}

// BlurredImageURL returns the pre-rendered ladder step for targetID's photo
// at index as seen by viewerID.
func (e *Engine) BlurredImageURL(ctx context.Context, viewerID, targetID string, index int) (*BlurredImage, error) {
	photo, err := e.photos.GetByPosition(ctx, targetID, index)
	if err != nil {
		return nil, err
	}
	st, _, err := e.state(ctx, viewerID, targetID)
	if err != nil {
		return nil, err
	}
	r := e.ladder.Render(st, *photo)
	return &BlurredImage{
		URL:          e.signer.URL(r.Key),
		BlurLevel:    r.Level,
		MessageCount: st.MessageCount,
	}, nil
}

// Images lists all of targetID's photos for the continuous backend.
func (e *Engine) Images(ctx context.Context, viewerID, targetID string) ([]Image, error) {
	photos, err := e.photos.ListByUser(ctx, targetID)
	if err != nil {
		return nil, err
	}
	st, both, err := e.state(ctx, viewerID, targetID)
	if err != nil {
		return nil, err
	}

	out := make([]Image, 0, len(photos))
	for _, p := range photos {
		r := e.continuous.Render(st, p)
		out = append(out, Image{
			URL:           e.signer.URL(r.Key),
			BlurLevel:     r.Level,
			MessageCount:  st.MessageCount,
			BothConsented: both,
		})
	}
	e.log.Debug("images resolved", "viewer", viewerID, "target", targetID, "phase", st.Phase, "count", len(out))
	return out, nil
}

func (e *Engine) state(ctx context.Context, viewerID, targetID string) (State, bool, error) {
	if viewerID == targetID {
		return e.policy.Self(), false, nil
	}
	m, err := e.matches.FindActiveBetween(ctx, viewerID, targetID)
	if err != nil {
		return State{}, false, err
	}
	if m == nil {
		return e.policy.Assess(false, 0, false), false, nil
	}
	return e.assessMatch(m), m.BothConsented(), nil
}

func (e *Engine) assessMatch(m *db.Match) State {
	return e.policy.Assess(m.IsActive, m.MessageCount, m.BothConsented())
}
