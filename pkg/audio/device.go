// Package audio defines the frame type, DSP helpers, and device interfaces
// for audio capture and playback within Cadenza.
//
// The two primary abstractions are:
//
//   - [Devices] — acquires the capture and playback devices for a session.
//   - [CaptureStream] / [PlaybackSink] — the per-session device handles.
//
// Implementations are provided by platform-specific adapter packages; the
// mock subpackage provides scripted in-memory devices for tests. The
// interfaces are intentionally narrow to keep the streaming channel and the
// analysis engine decoupled from device details.
package audio

import "context"

// CaptureStream is an open microphone capture stream.
//
// Implementations must be safe for concurrent use. The Frames channel is
// closed when the stream is closed or the device fails.
type CaptureStream interface {
	// Frames returns the read-only channel delivering captured frames in
	// capture order. The channel is closed on Close or device failure.
	Frames() <-chan Frame

	// SampleRate returns the device's native capture rate in Hz.
	SampleRate() int

	// Close stops capture and releases the device. Safe to call more than
	// once; subsequent calls return nil.
	Close() error
}

// PlaybackSink is an open audio output device. Frames written here are
// played as soon as the device's internal buffer allows; scheduling
// decisions (gapless ordering) are made upstream by the playback scheduler.
type PlaybackSink interface {
	// Write queues PCM data for playout. Returns an error if the sink is
	// closed.
	Write(pcm []byte) error

	// Close stops playout immediately, discarding any buffered audio, and
	// releases the device. Safe to call more than once.
	Close() error
}

// Devices acquires audio devices for a session. Acquisition may block while
// the operating system prompts for permission, so it takes a context.
//
// Exactly one capture stream may be open at a time per session.
type Devices interface {
	// OpenCapture acquires the microphone and begins capturing frames.
	// Returns an error if the device is denied or unavailable.
	OpenCapture(ctx context.Context) (CaptureStream, error)

	// OpenPlayback acquires the output device.
	OpenPlayback(ctx context.Context) (PlaybackSink, error)
}
