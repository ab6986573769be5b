// Package mock provides a test double for the landmarks.Detector interface.
package mock

import (
	"context"
	"sync"

	"github.com/cadenza-ai/cadenza/pkg/provider/landmarks"
)

// DetectCall records a single invocation of Detector.Detect.
type DetectCall struct {
	// Image is a copy of the encoded frame passed to Detect.
	Image []byte
}

// Detector is a mock implementation of landmarks.Detector.
//
// FrameResult is returned by every Detect call; leave it nil to simulate
// "no face detected". Set Frames to script a sequence of per-call results
// that takes precedence over FrameResult until exhausted.
type Detector struct {
	mu sync.Mutex

	// FrameResult is the frame returned by Detect when Frames is exhausted.
	FrameResult *landmarks.Frame

	// Frames is an optional scripted sequence of results, consumed one per
	// Detect call.
	Frames []*landmarks.Frame

	// DetectErr, if non-nil, is returned by every Detect call.
	DetectErr error

	// DetectCalls records every call to Detect in order.
	DetectCalls []DetectCall
}

// Detect records the call and returns the next scripted frame, or FrameResult.
func (d *Detector) Detect(_ context.Context, image []byte) (*landmarks.Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cp := make([]byte, len(image))
	copy(cp, image)
	d.DetectCalls = append(d.DetectCalls, DetectCall{Image: cp})

	if d.DetectErr != nil {
		return nil, d.DetectErr
	}
	if len(d.Frames) > 0 {
		f := d.Frames[0]
		d.Frames = d.Frames[1:]
		return f, nil
	}
	return d.FrameResult, nil
}

// DetectCallCount returns the number of Detect calls. Thread-safe.
func (d *Detector) DetectCallCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.DetectCalls)
}

// Ensure Detector implements landmarks.Detector at compile time.
var _ landmarks.Detector = (*Detector)(nil)
