package disclosure

import (
	"maps"
	"slices"

	"github.com/oggyb/campus-match/internal/db"
)

// LadderSteps are the blur percents pre-rendered for every upload. The 80
// rung matches the phase-1 floor, so a matched pair leaves the most blurred
// step once the theatrical blur drops to it.
var LadderSteps = []int{100, 80, 75, 50, 25, 1}

// Rendition is what a backend serves for one photo.
type Rendition struct {
	Key string
	// Level is the ladder step for LadderBackend and the blur radius for
	// ContinuousBackend.
	Level int
}

// Backend maps a disclosure State onto a stored asset.
type Backend interface {
	Render(st State, photo db.Photo) Rendition
}

// LadderBackend serves the pre-rendered step at least as blurred as the
// state demands. It never serves the original, except to its owner.
type LadderBackend struct{}

func (LadderBackend) Render(st State, photo db.Photo) Rendition {
	if st.Phase == PhaseSelf {
		return Rendition{Key: photo.OriginalKey}
	}
	ladder := photo.Ladder.Data()
	step := LadderStep(st.AbsoluteBlur, slices.Collect(maps.Keys(ladder)))
	return Rendition{Key: ladder[step], Level: step}
}

// LadderStep returns the smallest available step >= blur, or the largest
// step when blur exceeds all of them.
func LadderStep(blur float64, steps []int) int {
	if len(steps) == 0 {
		return 0
	}
	sorted := slices.Clone(steps)
	slices.Sort(sorted)
	for _, s := range sorted {
		if float64(s) >= blur {
			return s
		}
	}
	return sorted[len(sorted)-1]
}

// ContinuousBackend serves the coarse asset for the phase and leaves the
// remaining blur to the client as a radius.
type ContinuousBackend struct{}

func (ContinuousBackend) Render(st State, photo db.Photo) Rendition {
	switch st.Asset {
	case AssetOriginal:
		return Rendition{Key: photo.OriginalKey, Level: st.Radius}
	case AssetBlurred:
		return Rendition{Key: photo.BlurredKey, Level: st.Radius}
	default:
		ladder := photo.Ladder.Data()
		step := LadderStep(100, slices.Collect(maps.Keys(ladder)))
		key, ok := ladder[step]
		if !ok {
			key = photo.BlurredKey
		}
		return Rendition{Key: key, Level: st.Radius}
	}
}
