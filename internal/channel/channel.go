// Package channel manages the single logical connection between an interview
// session and the remote conversational agent.
//
// A [Channel] owns the connection lifecycle (connect, disconnect, mid-session
// faults), gates outbound microphone audio with voice-activity detection,
// schedules inbound agent audio for gapless playback, and forwards text
// fragments and tool calls to the orchestrator.
//
// The open flag is the concurrency linchpin: it is flipped false before any
// close I/O begins, and every producer (capture loop, playback dispatch,
// control sends) checks it before acting, so a frame produced after close is
// dropped, never queued.
package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cadenza-ai/cadenza/internal/observe"
	"github.com/cadenza-ai/cadenza/pkg/audio"
	"github.com/cadenza-ai/cadenza/pkg/audio/playback"
	"github.com/cadenza-ai/cadenza/pkg/provider/agent"
)

// State is the connection state of a Channel.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateError
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

// ErrNotConnected is returned by StartAudioInput when no session is open.
var ErrNotConnected = errors.New("channel: not connected")

// Channel owns one logical agent connection at a time. Reconnecting tears
// down the prior connection first; at most one capture stream feeds the
// channel at a time.
//
// All exported methods are safe for concurrent use. Handler registration
// (OnText, OnToolCall, OnError, OnStateChange) must happen before Connect.
type Channel struct {
	provider agent.Provider
	sink     audio.PlaybackSink
	log      *slog.Logger
	metrics  *observe.Metrics

	voiceThreshold float64
	hangover       time.Duration
	clock          playback.Clock

	onText        func(string)
	onToolCall    agent.ToolCallHandler
	onError       func(error)
	onStateChange func(State)

	open        atomic.Bool
	state       atomic.Int32
	transmitted atomic.Int64

	mu      sync.Mutex
	sess    agent.SessionHandle
	sched   *playback.Scheduler
	capture audio.CaptureStream
}

// Option configures a [Channel] during construction.
type Option func(*Channel)

// WithLogger sets the structured logger. The default is slog.Default.
func WithLogger(log *slog.Logger) Option {
	return func(c *Channel) { c.log = log }
}

// WithVAD overrides the voice-activity threshold (normalized RMS) and
// hangover interval used by the capture loop.
func WithVAD(threshold float64, hangover time.Duration) Option {
	return func(c *Channel) {
		c.voiceThreshold = threshold
		c.hangover = hangover
	}
}

// WithPlaybackClock injects the playback clock. Tests use this to drive
// gapless scheduling deterministically; the default is a wall clock.
func WithPlaybackClock(clock playback.Clock) Option {
	return func(c *Channel) { c.clock = clock }
}

// WithMetrics overrides the metrics instance recording frame and playback
// counters. The default is the package-wide observe default.
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Channel) {
		if m != nil {
			c.metrics = m
		}
	}
}

// New creates a Channel that connects through provider and plays agent audio
// into sink. The Channel starts in StateDisconnected.
func New(provider agent.Provider, sink audio.PlaybackSink, opts ...Option) *Channel {
	c := &Channel{
		provider:       provider,
		sink:           sink,
		log:            slog.Default(),
		metrics:        observe.DefaultMetrics(),
		voiceThreshold: DefaultVoiceThreshold,
		hangover:       DefaultHangover,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnText registers the callback receiving incremental agent text fragments.
func (c *Channel) OnText(fn func(string)) { c.onText = fn }

// OnToolCall registers the tool-call handler forwarded to the agent session.
// The handler's return is the acknowledgment sent back to the agent, so it
// must only return once the call's effects are durable.
func (c *Channel) OnToolCall(fn agent.ToolCallHandler) { c.onToolCall = fn }

// OnError registers the callback invoked when the channel enters StateError.
func (c *Channel) OnError(fn func(error)) { c.onError = fn }

// OnStateChange registers the callback invoked on every state transition.
func (c *Channel) OnStateChange(fn func(State)) { c.onStateChange = fn }

// State returns the current connection state.
func (c *Channel) State() State {
	return State(c.state.Load())
}

// TransmittedFrames returns the number of audio frames sent to the agent so
// far, silent filler included.
func (c *Channel) TransmittedFrames() int64 {
	return c.transmitted.Load()
}

// Connect establishes a new agent session, tearing down any existing
// connection first. On failure the channel lands in StateError and the error
// is returned; no automatic retry is attempted.
func (c *Channel) Connect(ctx context.Context, params agent.SessionParams) error {
	c.Disconnect()
	c.setState(StateConnecting)

	sess, err := c.provider.Connect(ctx, params)
	if err != nil {
		c.setState(StateError)
		return fmt.Errorf("channel: connect: %w", err)
	}

	c.mu.Lock()
	c.sess = sess
	c.sched = playback.New(c.sink, agent.OutputSampleRate, c.clock, playback.WithMetrics(c.metrics))
	c.mu.Unlock()

	sess.OnToolCall(c.onToolCall)
	sess.OnError(c.fault)

	go c.dispatchAudio(sess)
	go c.dispatchText(sess)

	// Producers may act only after the flag is up and the state is visible.
	c.open.Store(true)
	c.setState(StateConnected)
	return nil
}

// Disconnect closes the session and releases the capture device and playback
// queue. The open flag goes down before any close I/O, so in-flight capture
// and playback callbacks observe it and no-op. Safe to call multiple times
// and from any state.
func (c *Channel) Disconnect() {
	c.open.Store(false)
	c.teardown()
	c.setState(StateDisconnected)
}

// StartAudioInput begins the capture-transmit loop over stream. The channel
// must be connected. The loop runs until the stream's frame channel closes;
// frames arriving after disconnect are dropped, never queued.
func (c *Channel) StartAudioInput(stream audio.CaptureStream) error {
	if c.State() != StateConnected {
		return ErrNotConnected
	}

	c.mu.Lock()
	if c.capture != nil {
		c.mu.Unlock()
		return errors.New("channel: audio input already started")
	}
	c.capture = stream
	c.mu.Unlock()

	go c.captureLoop(stream)
	return nil
}

// SendText transmits a discrete control message to the agent. While the
// channel is not open the send is a silent no-op.
func (c *Channel) SendText(text string) error {
	if !c.open.Load() {
		return nil
	}
	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()
	if sess == nil {
		return nil
	}
	if err := sess.SendText(text); err != nil {
		return fmt.Errorf("channel: send text: %w", err)
	}
	return nil
}

// captureLoop gates each captured frame with VAD. Voiced frames are resampled
// to the agent's input rate and transmitted; silent frames are replaced with
// zero-filled PCM of equal duration so the channel stays fed without leaking
// speech content. Per-frame errors are swallowed: a dropped frame must never
// crash the loop.
func (c *Channel) captureLoop(stream audio.CaptureStream) {
	gate := newVADGate(c.voiceThreshold, c.hangover)
	ctx := context.Background()

	for frame := range stream.Frames() {
		if !c.open.Load() {
			continue
		}

		var chunk []byte
		if gate.Classify(audio.RMS(frame.PCM), frame.Timestamp) {
			chunk = audio.ResampleMono16(frame.PCM, frame.SampleRate, agent.InputSampleRate)
		} else {
			chunk = audio.SilentPCM(frame.Duration(), agent.InputSampleRate)
		}

		c.mu.Lock()
		sess := c.sess
		c.mu.Unlock()
		if sess == nil {
			continue
		}
		if err := sess.SendAudio(chunk); err != nil {
			if c.open.Load() {
				c.log.Warn("dropped capture frame", "error", err)
				c.metrics.RecordFrameDropped(ctx, "agent")
			}
			continue
		}
		c.transmitted.Add(1)
		c.metrics.FramesTransmitted.Add(ctx, 1)
	}
}

// dispatchAudio schedules inbound agent audio for gapless playout until the
// session's audio channel closes. A transport-terminated session surfaces as
// a fault; a deliberately closed one does not.
func (c *Channel) dispatchAudio(sess agent.SessionHandle) {
	for pcm := range sess.Audio() {
		if !c.open.Load() {
			continue
		}
		c.mu.Lock()
		sched := c.sched
		c.mu.Unlock()
		if sched == nil {
			continue
		}
		if _, err := sched.Schedule(pcm); err != nil && !errors.Is(err, playback.ErrClosed) {
			c.log.Warn("dropped playback buffer", "error", err)
		}
	}
	if err := sess.Err(); err != nil {
		c.fault(err)
	}
}

// dispatchText forwards inbound agent text fragments to the orchestrator.
func (c *Channel) dispatchText(sess agent.SessionHandle) {
	for text := range sess.Text() {
		if !c.open.Load() {
			continue
		}
		if c.onText != nil {
			c.onText(text)
		}
	}
}

// fault handles a mid-session transport error: the open flag goes down first,
// then capture, playback, and the session are torn down and the channel lands
// in StateError. All pending sends become no-ops. A fault racing a deliberate
// Disconnect loses and does nothing.
func (c *Channel) fault(err error) {
	if !c.open.CompareAndSwap(true, false) {
		return
	}
	c.teardown()
	c.setState(StateError)
	c.log.Error("agent session fault", "error", err)
	if c.onError != nil {
		c.onError(err)
	}
}

// teardown stops capture, flushes pending playback without letting it finish,
// and closes the session. Callers must have lowered the open flag first.
func (c *Channel) teardown() {
	c.mu.Lock()
	capture, sched, sess := c.capture, c.sched, c.sess
	c.capture, c.sched, c.sess = nil, nil, nil
	c.mu.Unlock()

	if capture != nil {
		_ = capture.Close()
	}
	if sched != nil {
		sched.Close()
	}
	if sess != nil {
		_ = sess.Close()
	}
}

func (c *Channel) setState(s State) {
	if State(c.state.Swap(int32(s))) == s {
		return
	}
	if c.onStateChange != nil {
		c.onStateChange(s)
	}
}
