// Package landmarks defines the Detector interface for facial landmark
// backends.
//
// A detector takes an encoded video frame and returns zero or one set of
// normalized 2-D landmark coordinates: the nose tip plus, per eye, the inner
// and outer corner and the iris center. These are the inputs to gaze
// classification; the package deliberately knows nothing about how the
// coordinates are used.
//
// Implementations must be safe for concurrent use.
package landmarks

import "context"

// Point is a 2-D landmark position normalized to the frame: x and y are in
// [0, 1] with the origin at the top-left corner.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Eye holds the landmark points for a single eye.
type Eye struct {
	// InnerCorner is the corner nearest the nose.
	InnerCorner Point `json:"inner_corner"`

	// OuterCorner is the corner nearest the temple.
	OuterCorner Point `json:"outer_corner"`

	// Iris is the iris center.
	Iris Point `json:"iris"`
}

// Frame is one detected face's landmark set.
type Frame struct {
	// NoseTip is the tip of the nose, the head-yaw proxy.
	NoseTip Point `json:"nose_tip"`

	// LeftEye and RightEye are from the subject's perspective.
	LeftEye  Eye `json:"left_eye"`
	RightEye Eye `json:"right_eye"`
}

// Detector is the abstraction over any facial landmark backend.
type Detector interface {
	// Detect runs landmark inference on one encoded video frame (JPEG or PNG
	// bytes). Returns nil with no error when no face is present; returns an
	// error only for inference or transport failures.
	Detect(ctx context.Context, image []byte) (*Frame, error)
}
