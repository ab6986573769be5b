// Package mock provides in-memory mock implementations of the
// [audio.Devices], [audio.CaptureStream], and [audio.PlaybackSink]
// interfaces for use in unit tests.
//
// All mocks are safe for concurrent use. They record every method call so
// that tests can assert on call counts and arguments, and they expose
// exported fields that the test can set to control return values.
//
// Typical usage:
//
//	in := make(chan audio.Frame, 16)
//	cap := &mock.CaptureStream{FramesResult: in, Rate: 48000}
//	devices := &mock.Devices{CaptureResult: cap, PlaybackResult: &mock.PlaybackSink{}}
package mock

import (
	"context"
	"sync"

	"github.com/cadenza-ai/cadenza/pkg/audio"
)

// ─── CaptureStream ────────────────────────────────────────────────────────────

// CaptureStream is a mock implementation of [audio.CaptureStream].
// Feed frames into FramesResult to simulate microphone input.
type CaptureStream struct {
	mu sync.Mutex

	// FramesResult is returned by [CaptureStream.Frames].
	FramesResult chan audio.Frame

	// Rate is returned by [CaptureStream.SampleRate]. Defaults to 48000.
	Rate int

	// CloseError is returned by the first call to [CaptureStream.Close].
	CloseError error

	// CallCountClose records how many times Close was called.
	CallCountClose int

	closeOnce sync.Once
}

// Frames implements [audio.CaptureStream].
func (c *CaptureStream) Frames() <-chan audio.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FramesResult == nil {
		c.FramesResult = make(chan audio.Frame)
	}
	return c.FramesResult
}

// SampleRate implements [audio.CaptureStream].
func (c *CaptureStream) SampleRate() int {
	if c.Rate == 0 {
		return 48000
	}
	return c.Rate
}

// Close implements [audio.CaptureStream]. The frames channel is closed on
// the first call; subsequent calls only bump the counter.
func (c *CaptureStream) Close() error {
	c.mu.Lock()
	c.CallCountClose++
	ch := c.FramesResult
	c.mu.Unlock()
	if ch != nil {
		c.closeOnce.Do(func() { close(ch) })
	}
	return c.CloseError
}

// ─── PlaybackSink ─────────────────────────────────────────────────────────────

// PlaybackSink is a mock implementation of [audio.PlaybackSink] that records
// every written buffer.
type PlaybackSink struct {
	mu sync.Mutex

	// WriteError is returned by [PlaybackSink.Write].
	WriteError error

	// Written holds every PCM buffer passed to Write, in order.
	Written [][]byte

	// CallCountClose records how many times Close was called.
	CallCountClose int
}

// Write implements [audio.PlaybackSink].
func (p *PlaybackSink) Write(pcm []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.WriteError != nil {
		return p.WriteError
	}
	buf := make([]byte, len(pcm))
	copy(buf, pcm)
	p.Written = append(p.Written, buf)
	return nil
}

// Close implements [audio.PlaybackSink].
func (p *PlaybackSink) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CallCountClose++
	return nil
}

// WrittenCount returns the number of buffers written so far.
func (p *PlaybackSink) WrittenCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Written)
}

// ─── Devices ──────────────────────────────────────────────────────────────────

// Devices is a mock implementation of [audio.Devices].
type Devices struct {
	mu sync.Mutex

	// CaptureResult is returned by OpenCapture.
	CaptureResult audio.CaptureStream

	// CaptureError is returned by OpenCapture.
	CaptureError error

	// PlaybackResult is returned by OpenPlayback.
	PlaybackResult audio.PlaybackSink

	// PlaybackError is returned by OpenPlayback.
	PlaybackError error

	// CallCountOpenCapture records how many times OpenCapture was called.
	CallCountOpenCapture int

	// CallCountOpenPlayback records how many times OpenPlayback was called.
	CallCountOpenPlayback int
}

// OpenCapture implements [audio.Devices].
func (d *Devices) OpenCapture(_ context.Context) (audio.CaptureStream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.CallCountOpenCapture++
	return d.CaptureResult, d.CaptureError
}

// OpenPlayback implements [audio.Devices].
func (d *Devices) OpenPlayback(_ context.Context) (audio.PlaybackSink, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.CallCountOpenPlayback++
	return d.PlaybackResult, d.PlaybackError
}
