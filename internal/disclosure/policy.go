// Package disclosure decides how much of a user's photos a viewer may see.
//
// A single pure Policy turns (matched, message count, mutual consent) into a
// State. Two backends render that State: the ladder backend picks one of the
// pre-rendered blur steps, the continuous backend hands out the blurred or
// original asset plus a blur radius for the client to apply.
package disclosure

import (
	"math"

	"github.com/oggyb/campus-match/internal/config"
)

type Phase string

const (
	PhasePreMatch   Phase = "pre_match"
	PhaseTheatrical Phase = "phase1_theatrical"
	PhaseReal       Phase = "phase2_real"
	PhaseSelf       Phase = "self"
)

// Asset is which stored rendition of a photo a State allows.
type Asset int

const (
	// AssetMostBlurred is the strongest ladder step.
	AssetMostBlurred Asset = iota
	// AssetBlurred is the fixed theatrical-phase rendition.
	AssetBlurred
	AssetOriginal
)

// State is the derived disclosure of one photo to one viewer.
type State struct {
	Phase Phase
	// BlurPercent is the phase-relative blur still to apply, in [0,100].
	BlurPercent float64
	// ClarityPercent is 100 - BlurPercent.
	ClarityPercent float64
	// AbsoluteBlur is the blur the viewer actually sees, including the
	// baseline baked into the served asset.
	AbsoluteBlur float64
	Asset        Asset
	Radius       int
	MessageCount int64
}

type Policy struct {
	Phase1Threshold int
	Phase2Threshold int
	// Phase2Start is the blur percent phase 2 starts from, and the baseline
	// blur of the theatrical asset.
	Phase2Start float64
	MaxRadius   int
}

func PolicyFromConfig(c config.DisclosureConfig) Policy {
	return Policy{
		Phase1Threshold: c.Phase1Threshold,
		Phase2Threshold: c.Phase2Threshold,
		Phase2Start:     c.Phase2Start,
		MaxRadius:       c.MaxRadius,
	}
}

// Assess derives the disclosure state. It never looks at storage; callers
// pass match state re-read from the database.
func (p Policy) Assess(matched bool, messageCount int64, bothConsented bool) State {
	if messageCount < 0 {
		messageCount = 0
	}
	var st State
	switch {
	case !matched:
		st = State{Phase: PhasePreMatch, BlurPercent: 100, AbsoluteBlur: 100, Asset: AssetMostBlurred}
	case !bothConsented:
		blur := 100 * (1 - progress(messageCount, p.Phase1Threshold))
		st = State{
			Phase:        PhaseTheatrical,
			BlurPercent:  blur,
			AbsoluteBlur: math.Max(p.Phase2Start, blur),
			Asset:        AssetBlurred,
		}
	default:
		blur := p.Phase2Start * (1 - progress(messageCount, p.Phase2Threshold))
		st = State{
			Phase:        PhaseReal,
			BlurPercent:  blur,
			AbsoluteBlur: blur,
			Asset:        AssetOriginal,
		}
	}
	st.ClarityPercent = 100 - st.BlurPercent
	st.Radius = p.Radius(st.BlurPercent)
	st.MessageCount = messageCount
	return st
}

// Self is the state of a user looking at their own photos.
func (p Policy) Self() State {
	return State{Phase: PhaseSelf, ClarityPercent: 100, Asset: AssetOriginal}
}

// Radius converts a blur percent into a client blur radius.
func (p Policy) Radius(blurPercent float64) int {
	pct := math.Min(math.Max(blurPercent, 0), 100)
	return int(math.Round(pct / 100 * float64(p.MaxRadius)))
}

// ShouldPromptConsent reports whether the consent screen applies to a
// participant: the theatrical phase is exhausted and they have not agreed.
func (p Policy) ShouldPromptConsent(active bool, messageCount int64, viewerConsented bool) bool {
	return active && messageCount >= int64(p.Phase1Threshold) && !viewerConsented
}

func progress(messageCount int64, threshold int) float64 {
	if threshold <= 0 {
		return 1
	}
	return math.Min(float64(messageCount)/float64(threshold), 1)
}
