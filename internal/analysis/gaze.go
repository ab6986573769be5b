package analysis

import (
	"math"

	"github.com/cadenza-ai/cadenza/pkg/provider/landmarks"
)

const (
	// gazeHistorySize is the number of recent frame classifications kept for
	// the eye-contact percentage.
	gazeHistorySize = 20

	// headCenterLo and headCenterHi bound the normalized nose-tip x position
	// considered "facing the camera".
	headCenterLo = 0.35
	headCenterHi = 0.65

	// irisCenterLo and irisCenterHi bound the iris position expressed as a
	// fraction of the eye corner span. Both eyes must fall inside the band.
	irisCenterLo = 0.35
	irisCenterHi = 0.65

	// attentionThreshold is the in-history looking fraction below which the
	// eye-contact score is penalized by the fraction itself.
	attentionThreshold = 0.75
)

// GazeTracker classifies landmark frames as looking-at-camera or away and
// maintains a bounded history from which the eye-contact score is derived.
// Pure computation; the Engine serializes access.
type GazeTracker struct {
	history []bool
}

// NewGazeTracker creates an empty GazeTracker.
func NewGazeTracker() *GazeTracker {
	return &GazeTracker{history: make([]bool, 0, gazeHistorySize)}
}

// Observe folds one frame classification into the history and returns the
// updated eye-contact score, 0–100.
func (g *GazeTracker) Observe(frame *landmarks.Frame) float64 {
	looking := isLookingAtCamera(frame)
	if len(g.history) == gazeHistorySize {
		copy(g.history, g.history[1:])
		g.history = g.history[:gazeHistorySize-1]
	}
	g.history = append(g.history, looking)
	return g.eyeContact()
}

// Reset clears the gaze history.
func (g *GazeTracker) Reset() {
	g.history = g.history[:0]
}

// eyeContact is the percentage of looking frames in the history. When the
// looking fraction falls below the attention threshold the score is further
// multiplied by that fraction, so intermittent glances score disproportionately
// low: 50% looking frames yield 25, not 50.
func (g *GazeTracker) eyeContact() float64 {
	if len(g.history) == 0 {
		return 0
	}
	looking := 0
	for _, l := range g.history {
		if l {
			looking++
		}
	}
	fraction := float64(looking) / float64(len(g.history))
	score := fraction * 100
	if fraction < attentionThreshold {
		score *= fraction
	}
	return round1(score)
}

// isLookingAtCamera applies the geometric gaze test: the nose tip must sit in
// the central horizontal band and both irises must be centered between their
// eye corners.
func isLookingAtCamera(frame *landmarks.Frame) bool {
	if frame == nil {
		return false
	}
	if frame.NoseTip.X < headCenterLo || frame.NoseTip.X > headCenterHi {
		return false
	}
	return irisCentered(frame.LeftEye) && irisCentered(frame.RightEye)
}

// irisCentered reports whether the iris sits in the central band of the span
// between the eye corners. Corner ordering is normalized so the test holds
// for either eye.
func irisCentered(eye landmarks.Eye) bool {
	lo := math.Min(eye.InnerCorner.X, eye.OuterCorner.X)
	hi := math.Max(eye.InnerCorner.X, eye.OuterCorner.X)
	span := hi - lo
	if span <= 0 {
		return false
	}
	ratio := (eye.Iris.X - lo) / span
	return ratio >= irisCenterLo && ratio <= irisCenterHi
}
